// ABOUTME: PostgreSQL implementation of SessionRepository on a pgx pool
// ABOUTME: Persists sync session summaries for the status endpoint and audits

package repository

import (
	"context"
	"fmt"
	"log/slog"

	"reader-sync/models"
)

// PostgresSessionRepository implements SessionRepository using PostgreSQL
type PostgresSessionRepository struct {
	db     Pool
	logger *slog.Logger
}

// NewPostgresSessionRepository creates a new PostgreSQL session repository
func NewPostgresSessionRepository(db Pool, logger *slog.Logger) SessionRepository {
	return &PostgresSessionRepository{
		db:     db,
		logger: logger,
	}
}

// Save upserts a session summary row. Called once when the session starts
// (status running) and again when it finishes.
func (r *PostgresSessionRepository) Save(ctx context.Context, session *models.SyncSession) error {
	query := `
		INSERT INTO sync_sessions (
			id, kind, started_at, finished_at, status,
			new_articles, updated_articles, deleted_articles, new_tags, failed_feeds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			new_articles = EXCLUDED.new_articles,
			updated_articles = EXCLUDED.updated_articles,
			deleted_articles = EXCLUDED.deleted_articles,
			new_tags = EXCLUDED.new_tags,
			failed_feeds = EXCLUDED.failed_feeds`

	_, err := r.db.Exec(ctx, query,
		session.ID,
		session.Kind,
		session.StartedAt,
		session.FinishedAt,
		session.Status,
		session.Metrics.NewArticles,
		session.Metrics.UpdatedArticles,
		session.Metrics.DeletedArticles,
		session.Metrics.NewTags,
		session.Metrics.FailedFeeds,
	)
	if err != nil {
		r.logger.Error("Failed to save sync session",
			"sync_id", session.ID,
			"error", err)
		return fmt.Errorf("failed to save sync session: %w", err)
	}

	return nil
}

// GetRecent returns the most recently started sessions, newest first.
func (r *PostgresSessionRepository) GetRecent(ctx context.Context, limit int) ([]*models.SyncSession, error) {
	query := `
		SELECT id, kind, started_at, finished_at, status,
		       new_articles, updated_articles, deleted_articles, new_tags, failed_feeds
		FROM sync_sessions
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.SyncSession
	for rows.Next() {
		session := &models.SyncSession{}
		err := rows.Scan(
			&session.ID,
			&session.Kind,
			&session.StartedAt,
			&session.FinishedAt,
			&session.Status,
			&session.Metrics.NewArticles,
			&session.Metrics.UpdatedArticles,
			&session.Metrics.DeletedArticles,
			&session.Metrics.NewTags,
			&session.Metrics.FailedFeeds,
		)
		if err != nil {
			r.logger.Error("Failed to scan sync session row", "error", err)
			continue
		}

		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}
