// ABOUTME: Tests for session coordination: mutual exclusion, bookkeeping, notification deferral

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader-sync/models"
)

type stubRunner struct {
	mu      sync.Mutex
	kinds   []models.SyncKind
	session *models.SyncSession
	err     error
	started chan struct{} // signalled on every Run entry
	gate    chan struct{} // Run blocks until this is closed or fed
}

func (s *stubRunner) Run(_ context.Context, kind models.SyncKind) (*models.SyncSession, error) {
	s.mu.Lock()
	s.kinds = append(s.kinds, kind)
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}

	if s.session != nil {
		return s.session, s.err
	}
	session := models.NewSyncSession(kind, time.Now().Add(-time.Second))
	session.Finish(models.SyncStatusCompleted, time.Now())
	return session, s.err
}

type stubSessionRepo struct {
	mu      sync.Mutex
	saveErr error
	saved   []*models.SyncSession
}

func (s *stubSessionRepo) Save(_ context.Context, session *models.SyncSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, session)
	return nil
}

func (s *stubSessionRepo) GetRecent(context.Context, int) ([]*models.SyncSession, error) {
	return nil, nil
}

type stubEventPublisher struct {
	mu         sync.Mutex
	publishErr error
	events     []*models.SyncEvent
}

func (s *stubEventPublisher) Publish(_ context.Context, event *models.SyncEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishErr != nil {
		return "", s.publishErr
	}
	s.events = append(s.events, event)
	return "1-0", nil
}

type notifyRecorder struct {
	mu      sync.Mutex
	results []models.SyncResult
}

func (r *notifyRecorder) fn() NotifyFunc {
	return func(result models.SyncResult) {
		r.mu.Lock()
		r.results = append(r.results, result)
		r.mu.Unlock()
	}
}

func (r *notifyRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func (r *notifyRecorder) at(i int) models.SyncResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[i]
}

func terminalSession(kind models.SyncKind, status models.SyncStatus, newArticles int) *models.SyncSession {
	session := models.NewSyncSession(kind, time.Now().Add(-30*time.Second))
	session.Metrics.NewArticles = newArticles
	session.Finish(status, time.Now())
	return session
}

func TestCoordinator_RunManual_PersistsAndPublishes(t *testing.T) {
	runner := &stubRunner{session: terminalSession(models.SyncKindManual, models.SyncStatusCompleted, 3)}
	repo := &stubSessionRepo{}
	pub := &stubEventPublisher{}
	rec := &notifyRecorder{}
	c := NewCoordinator(runner, repo, pub, rec.fn(), newTestLogger())

	session, err := c.RunManual(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusCompleted, session.Status)

	require.Len(t, repo.saved, 1)
	assert.Equal(t, session.ID, repo.saved[0].ID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, session.ID, pub.events[0].SyncID)
	assert.Equal(t, 3, pub.events[0].NewArticles)

	// Manual results go back to the caller, never through the notifier.
	assert.Zero(t, rec.count())

	status := c.Status()
	assert.False(t, status.Running)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, session.ID, status.LastResult.SyncID)
}

func TestCoordinator_RejectsConcurrentSessions(t *testing.T) {
	runner := &stubRunner{started: make(chan struct{}, 1), gate: make(chan struct{})}
	c := NewCoordinator(runner, &stubSessionRepo{}, nil, nil, newTestLogger())

	done := make(chan error, 1)
	go func() {
		_, err := c.RunManual(context.Background())
		done <- err
	}()
	<-runner.started

	_, err := c.RunBackground(context.Background())
	assert.ErrorIs(t, err, ErrSyncAlreadyRunning)
	_, err = c.RunManual(context.Background())
	assert.ErrorIs(t, err, ErrSyncAlreadyRunning)

	status := c.Status()
	assert.True(t, status.Running)
	assert.Equal(t, models.SyncKindManual, status.RunningKind)

	close(runner.gate)
	require.NoError(t, <-done)

	// Slot is free again once the manual session finished.
	_, err = c.RunBackground(context.Background())
	require.NoError(t, err)
}

func TestCoordinator_RunBackground_NotifiesWithNewArticles(t *testing.T) {
	runner := &stubRunner{session: terminalSession(models.SyncKindBackground, models.SyncStatusCompleted, 5)}
	rec := &notifyRecorder{}
	c := NewCoordinator(runner, &stubSessionRepo{}, nil, rec.fn(), newTestLogger())

	_, err := c.RunBackground(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, rec.count())
	assert.Equal(t, 5, rec.at(0).Metrics.NewArticles)
	assert.Equal(t, models.SyncKindBackground, rec.at(0).Kind)
}

func TestCoordinator_RunBackground_QuietWithoutNewArticles(t *testing.T) {
	runner := &stubRunner{session: terminalSession(models.SyncKindBackground, models.SyncStatusCompleted, 0)}
	rec := &notifyRecorder{}
	c := NewCoordinator(runner, &stubSessionRepo{}, nil, rec.fn(), newTestLogger())

	_, err := c.RunBackground(context.Background())
	require.NoError(t, err)

	assert.Zero(t, rec.count())
	assert.False(t, c.Status().NotificationPending)
}

func TestCoordinator_FailedBackgroundNeverNotifies(t *testing.T) {
	runner := &stubRunner{
		session: terminalSession(models.SyncKindBackground, models.SyncStatusFailed, 4),
		err:     assert.AnError,
	}
	repo := &stubSessionRepo{}
	pub := &stubEventPublisher{}
	rec := &notifyRecorder{}
	c := NewCoordinator(runner, repo, pub, rec.fn(), newTestLogger())

	_, err := c.RunBackground(context.Background())
	require.Error(t, err)

	assert.Zero(t, rec.count())
	assert.False(t, c.Status().NotificationPending)

	// The failed session is still persisted and published with its status.
	require.Len(t, repo.saved, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.SyncStatusFailed, pub.events[0].Status)
}

func TestCoordinator_SaveFailureDoesNotFailSession(t *testing.T) {
	runner := &stubRunner{session: terminalSession(models.SyncKindManual, models.SyncStatusCompleted, 1)}
	repo := &stubSessionRepo{saveErr: assert.AnError}
	pub := &stubEventPublisher{}
	c := NewCoordinator(runner, repo, pub, nil, newTestLogger())

	session, err := c.RunManual(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusCompleted, session.Status)
	// The event still goes out.
	assert.Len(t, pub.events, 1)
}

func TestCoordinator_PublishFailureDoesNotFailSession(t *testing.T) {
	runner := &stubRunner{session: terminalSession(models.SyncKindManual, models.SyncStatusCompleted, 1)}
	pub := &stubEventPublisher{publishErr: assert.AnError}
	c := NewCoordinator(runner, &stubSessionRepo{}, pub, nil, newTestLogger())

	session, err := c.RunManual(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusCompleted, session.Status)
}

func TestNotifier_CollapsesDeferredCompletions(t *testing.T) {
	rec := &notifyRecorder{}
	n := newNotifier(rec.fn(), newTestLogger())

	n.beginManual()

	for i := 0; i < 3; i++ {
		result := terminalSession(models.SyncKindBackground, models.SyncStatusCompleted, i+1).Result()
		n.backgroundCompleted(result)
	}

	assert.Zero(t, rec.count())
	assert.True(t, n.pendingNow())

	n.endManual()

	// Three blocked completions collapse into one notification carrying the
	// most recent result.
	require.Equal(t, 1, rec.count())
	assert.Equal(t, 3, rec.at(0).Metrics.NewArticles)
	assert.False(t, n.pendingNow())

	// Outside the window completions notify directly again.
	n.backgroundCompleted(terminalSession(models.SyncKindBackground, models.SyncStatusCompleted, 9).Result())
	assert.Equal(t, 2, rec.count())
}
