// ABOUTME: PostgreSQL implementation of ConflictRepository on a pgx pool
// ABOUTME: Appends structured conflict log entries and reads them back per session

package repository

import (
	"context"
	"fmt"
	"log/slog"

	"reader-sync/models"
)

// PostgresConflictRepository implements ConflictRepository using PostgreSQL
type PostgresConflictRepository struct {
	db     Pool
	logger *slog.Logger
}

// NewPostgresConflictRepository creates a new PostgreSQL conflict repository
func NewPostgresConflictRepository(db Pool, logger *slog.Logger) ConflictRepository {
	return &PostgresConflictRepository{
		db:     db,
		logger: logger,
	}
}

// InsertBatch appends conflict log entries in a single transaction. The log
// is append-only; nothing ever updates or deletes these rows.
func (r *PostgresConflictRepository) InsertBatch(ctx context.Context, conflicts []models.Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO sync_conflicts (
			session_id, inoreader_id, feed_id, conflict_type,
			local_is_read, local_is_starred, remote_is_read, remote_is_starred,
			resolution, last_local_update, last_sync_update, note, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for _, c := range conflicts {
		if _, err := tx.Exec(ctx, query,
			c.SessionID,
			c.InoreaderID,
			c.FeedID,
			c.Type,
			c.Local.IsRead,
			c.Local.IsStarred,
			c.Remote.IsRead,
			c.Remote.IsStarred,
			c.Resolution,
			c.LastLocalUpdate,
			c.LastSyncUpdate,
			c.Note,
			c.DetectedAt,
		); err != nil {
			return fmt.Errorf("failed to insert conflict for %s: %w", c.InoreaderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info("Recorded sync conflicts", "count", len(conflicts))

	return nil
}

// ListBySessionID returns the conflict log entries recorded by one session.
func (r *PostgresConflictRepository) ListBySessionID(ctx context.Context, sessionID string) ([]models.Conflict, error) {
	query := `
		SELECT session_id, inoreader_id, feed_id, conflict_type,
		       local_is_read, local_is_starred, remote_is_read, remote_is_starred,
		       resolution, last_local_update, last_sync_update, note, detected_at
		FROM sync_conflicts
		WHERE session_id = $1
		ORDER BY detected_at ASC`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []models.Conflict
	for rows.Next() {
		var c models.Conflict
		err := rows.Scan(
			&c.SessionID,
			&c.InoreaderID,
			&c.FeedID,
			&c.Type,
			&c.Local.IsRead,
			&c.Local.IsStarred,
			&c.Remote.IsRead,
			&c.Remote.IsStarred,
			&c.Resolution,
			&c.LastLocalUpdate,
			&c.LastSyncUpdate,
			&c.Note,
			&c.DetectedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan conflict row", "error", err)
			continue
		}

		conflicts = append(conflicts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return conflicts, nil
}
