// ABOUTME: PostgreSQL implementation of TombstoneRepository on a pgx pool
// ABOUTME: Tracks deleted article IDs so re-sync does not resurrect purged rows

package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reader-sync/models"
)

// PostgresTombstoneRepository implements TombstoneRepository using PostgreSQL
type PostgresTombstoneRepository struct {
	db     Pool
	logger *slog.Logger
}

// NewPostgresTombstoneRepository creates a new PostgreSQL tombstone repository
func NewPostgresTombstoneRepository(db Pool, logger *slog.Logger) TombstoneRepository {
	return &PostgresTombstoneRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertBatch writes tombstones in a single transaction, refreshing
// deleted_at on conflict so a retried purge stays idempotent.
func (r *PostgresTombstoneRepository) UpsertBatch(ctx context.Context, tombstones []*models.ArticleTombstone) (int, error) {
	if len(tombstones) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO article_tombstones (inoreader_id, feed_id, was_read, deleted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (inoreader_id) DO UPDATE SET
			was_read = EXCLUDED.was_read,
			deleted_at = EXCLUDED.deleted_at`

	written := 0
	for _, tombstone := range tombstones {
		tag, err := tx.Exec(ctx, query,
			tombstone.InoreaderID,
			tombstone.FeedID,
			tombstone.WasRead,
			tombstone.DeletedAt,
		)
		if err != nil {
			r.logger.Warn("Failed to upsert tombstone in batch",
				"inoreader_id", tombstone.InoreaderID,
				"error", err)
			continue
		}

		if tag.RowsAffected() > 0 {
			written++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return written, nil
}

// ExistsByInoreaderIDs reports which of the given remote IDs have a
// tombstone. IDs without one are absent from the map.
func (r *PostgresTombstoneRepository) ExistsByInoreaderIDs(ctx context.Context, inoreaderIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(inoreaderIDs))
	if len(inoreaderIDs) == 0 {
		return result, nil
	}

	query := `SELECT inoreader_id FROM article_tombstones WHERE inoreader_id = ANY($1)`

	rows, err := r.db.Query(ctx, query, inoreaderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query tombstones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			r.logger.Error("Failed to scan tombstone row", "error", err)
			continue
		}
		result[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}

// DeleteExpired removes tombstones older than the cutoff.
func (r *PostgresTombstoneRepository) DeleteExpired(ctx context.Context, deletedBefore time.Time) (int, error) {
	query := `DELETE FROM article_tombstones WHERE deleted_at < $1`

	tag, err := r.db.Exec(ctx, query, deletedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tombstones: %w", err)
	}

	deleted := int(tag.RowsAffected())
	r.logger.Info("Deleted expired tombstones",
		"count", deleted,
		"deleted_before", deletedBefore)

	return deleted, nil
}

// CountTotal returns the total number of tombstones
func (r *PostgresTombstoneRepository) CountTotal(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM article_tombstones`

	var count int
	err := r.db.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tombstones: %w", err)
	}

	return count, nil
}
