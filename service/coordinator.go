// ABOUTME: Coordinates manual and background sync sessions under mutual exclusion
// ABOUTME: Persists session summaries, publishes completion events, defers notifications

package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"reader-sync/models"
	"reader-sync/repository"
)

// ErrSyncAlreadyRunning is returned when a session is requested while another
// one holds the run slot.
var ErrSyncAlreadyRunning = errors.New("sync session already running")

// SessionRunner executes one sync session. Implemented by SyncService.
type SessionRunner interface {
	Run(ctx context.Context, kind models.SyncKind) (*models.SyncSession, error)
}

// EventPublisher posts session completion events downstream. Implemented by
// driver.StreamPublisher.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.SyncEvent) (string, error)
}

// NotifyFunc delivers one background-completion notification to the consumer
// surface. It must be cheap and non-blocking; the coordinator calls it from
// the session goroutine.
type NotifyFunc func(result models.SyncResult)

// CoordinatorStatus is the live state surface for the status endpoint.
type CoordinatorStatus struct {
	Running             bool               `json:"running"`
	RunningKind         models.SyncKind    `json:"running_kind,omitempty"`
	LastResult          *models.SyncResult `json:"last_result,omitempty"`
	NotificationPending bool               `json:"notification_pending"`
}

// Coordinator owns the run slot shared by manual and background sessions: at
// most one session of either kind executes at a time. Around the engine it
// handles the bookkeeping a session itself does not: persisting the summary
// row, publishing the completion event, and routing background notifications
// through the deferral window.
type Coordinator struct {
	runner      SessionRunner
	sessionRepo repository.SessionRepository
	publisher   EventPublisher
	notifier    *notifier
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	current models.SyncKind
	last    *models.SyncResult
}

// NewCoordinator creates a coordinator. publisher and notify may be nil when
// no downstream consumer is configured.
func NewCoordinator(
	runner SessionRunner,
	sessionRepo repository.SessionRepository,
	publisher EventPublisher,
	notify NotifyFunc,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		runner:      runner,
		sessionRepo: sessionRepo,
		publisher:   publisher,
		notifier:    newNotifier(notify, logger),
		logger:      logger,
	}
}

// RunManual executes a user-triggered session. While it runs, background
// completion notifications are deferred; the deferred notification is flushed
// once the manual session leaves the running state.
func (c *Coordinator) RunManual(ctx context.Context) (*models.SyncSession, error) {
	if !c.acquire(models.SyncKindManual) {
		return nil, ErrSyncAlreadyRunning
	}
	c.notifier.beginManual()

	session, err := c.execute(ctx, models.SyncKindManual)

	c.release()
	c.notifier.endManual()

	return session, err
}

// RunBackground executes a scheduled session. A failed session produces no
// notification; a successful one notifies only when it brought new articles,
// after the run slot has been released.
func (c *Coordinator) RunBackground(ctx context.Context) (*models.SyncSession, error) {
	if !c.acquire(models.SyncKindBackground) {
		return nil, ErrSyncAlreadyRunning
	}

	session, err := c.execute(ctx, models.SyncKindBackground)
	c.release()

	if err == nil && session != nil && session.Metrics.NewArticles > 0 {
		c.notifier.backgroundCompleted(session.Result())
	}

	return session, err
}

// Status reports the live coordinator state.
func (c *Coordinator) Status() CoordinatorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CoordinatorStatus{
		Running:             c.running,
		RunningKind:         c.current,
		LastResult:          c.last,
		NotificationPending: c.notifier.pendingNow(),
	}
}

func (c *Coordinator) acquire(kind models.SyncKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.logger.Warn("sync session rejected, run slot busy",
			"requested", kind,
			"running", c.current)
		return false
	}
	c.running = true
	c.current = kind
	return true
}

func (c *Coordinator) release() {
	c.mu.Lock()
	c.running = false
	c.current = ""
	c.mu.Unlock()
}

// execute runs the engine and performs the post-session bookkeeping. Persist
// and publish failures are logged but never change the session outcome.
func (c *Coordinator) execute(ctx context.Context, kind models.SyncKind) (*models.SyncSession, error) {
	session, err := c.runner.Run(ctx, kind)
	if session == nil {
		return nil, err
	}

	if saveErr := c.sessionRepo.Save(ctx, session); saveErr != nil {
		c.logger.Error("failed to persist session summary",
			"sync_id", session.ID,
			"error", saveErr)
	}

	c.publish(ctx, session)

	result := session.Result()
	c.mu.Lock()
	c.last = &result
	c.mu.Unlock()

	return session, err
}

func (c *Coordinator) publish(ctx context.Context, session *models.SyncSession) {
	if c.publisher == nil {
		return
	}

	event, err := models.NewSyncEvent(session)
	if err != nil {
		c.logger.Error("failed to build sync event", "sync_id", session.ID, "error", err)
		return
	}

	if _, err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish sync event",
			"sync_id", session.ID,
			"error", err)
	}
}

// notifier defers background completion notifications while a manual session
// is in flight. The pending flag is a boolean, never a counter: completions
// arriving while blocked collapse into a single notification carrying the
// most recent result.
type notifier struct {
	notify NotifyFunc
	logger *slog.Logger

	mu           sync.Mutex
	manualActive bool
	pending      bool
	last         models.SyncResult
}

func newNotifier(notify NotifyFunc, logger *slog.Logger) *notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &notifier{notify: notify, logger: logger}
}

func (n *notifier) beginManual() {
	n.mu.Lock()
	n.manualActive = true
	n.mu.Unlock()
}

// endManual closes the deferral window and flushes the pending notification
// if one accumulated.
func (n *notifier) endManual() {
	n.mu.Lock()
	n.manualActive = false
	flush := n.pending
	result := n.last
	n.pending = false
	n.mu.Unlock()

	if flush {
		n.fire(result)
	}
}

// backgroundCompleted notifies immediately, or defers when a manual session
// is active.
func (n *notifier) backgroundCompleted(result models.SyncResult) {
	n.mu.Lock()
	if n.manualActive {
		n.pending = true
		n.last = result
		n.mu.Unlock()
		n.logger.Debug("notification deferred behind manual session", "sync_id", result.SyncID)
		return
	}
	n.mu.Unlock()

	n.fire(result)
}

func (n *notifier) pendingNow() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending
}

func (n *notifier) fire(result models.SyncResult) {
	if n.notify == nil {
		return
	}
	n.notify(result)
	n.logger.Info("sync notification delivered",
		"sync_id", result.SyncID,
		"new_articles", result.Metrics.NewArticles)
}
