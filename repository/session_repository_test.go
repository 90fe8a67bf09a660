// ABOUTME: Tests for the PostgreSQL session repository using pgxmock

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"reader-sync/models"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSessionRepository(mock, newTestLogger())

	started := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	session := &models.SyncSession{
		ID:         "sync-20250614-093000",
		Kind:       models.SyncKindBackground,
		StartedAt:  started,
		FinishedAt: &finished,
		Status:     models.SyncStatusCompleted,
		Metrics: models.SyncMetrics{
			NewArticles:     12,
			UpdatedArticles: 3,
			DeletedArticles: 1,
			NewTags:         2,
			FailedFeeds:     0,
		},
	}

	mock.ExpectExec("INSERT INTO sync_sessions").
		WithArgs(session.ID, session.Kind, session.StartedAt, session.FinishedAt, session.Status,
			12, 3, 1, 2, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Save(context.Background(), session)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_Save_RunningRowHasNoFinish(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSessionRepository(mock, newTestLogger())
	session := models.NewSyncSession(models.SyncKindManual, time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC))

	mock.ExpectExec("INSERT INTO sync_sessions").
		WithArgs(session.ID, session.Kind, session.StartedAt, (*time.Time)(nil), models.SyncStatusRunning,
			0, 0, 0, 0, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Save(context.Background(), session)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_Save_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSessionRepository(mock, newTestLogger())
	session := models.NewSyncSession(models.SyncKindBackground, time.Now().UTC())

	mock.ExpectExec("INSERT INTO sync_sessions").
		WillReturnError(errors.New("connection reset"))

	err = repo.Save(context.Background(), session)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save sync session")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSessionRepository(mock, newTestLogger())

	newer := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	newerDone := newer.Add(45 * time.Second)
	older := time.Date(2025, 6, 14, 11, 30, 0, 0, time.UTC)
	olderDone := older.Add(2 * time.Minute)

	mock.ExpectQuery("FROM sync_sessions").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "kind", "started_at", "finished_at", "status",
			"new_articles", "updated_articles", "deleted_articles", "new_tags", "failed_feeds",
		}).
			AddRow("sync-20250614-120000", models.SyncKindManual, newer, &newerDone, models.SyncStatusCompleted, 4, 0, 0, 1, 0).
			AddRow("sync-20250614-113000", models.SyncKindBackground, older, &olderDone, models.SyncStatusPartial, 9, 2, 0, 0, 3))

	sessions, err := repo.GetRecent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "sync-20250614-120000", sessions[0].ID)
	assert.Equal(t, models.SyncKindManual, sessions[0].Kind)
	assert.Equal(t, models.SyncStatusCompleted, sessions[0].Status)
	assert.Equal(t, 4, sessions[0].Metrics.NewArticles)

	assert.Equal(t, models.SyncStatusPartial, sessions[1].Status)
	assert.Equal(t, 3, sessions[1].Metrics.FailedFeeds)
	require.NotNil(t, sessions[1].FinishedAt)
	assert.Equal(t, olderDone, *sessions[1].FinishedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetRecent_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresSessionRepository(mock, newTestLogger())

	mock.ExpectQuery("FROM sync_sessions").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "kind", "started_at", "finished_at", "status",
			"new_articles", "updated_articles", "deleted_articles", "new_tags", "failed_feeds",
		}))

	sessions, err := repo.GetRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}
