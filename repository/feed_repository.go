// ABOUTME: PostgreSQL implementation of FeedRepository on a pgx pool
// ABOUTME: Handles feed rows mirrored from the remote subscription list

package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"reader-sync/models"

	"github.com/jackc/pgx/v5"
)

// PostgresFeedRepository implements FeedRepository using PostgreSQL
type PostgresFeedRepository struct {
	db     Pool
	logger *slog.Logger
}

// NewPostgresFeedRepository creates a new PostgreSQL feed repository
func NewPostgresFeedRepository(db Pool, logger *slog.Logger) FeedRepository {
	return &PostgresFeedRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a feed discovered on the remote subscription list.
func (r *PostgresFeedRepository) Create(ctx context.Context, feed *models.Feed) error {
	query := `
		INSERT INTO feeds (id, inoreader_id, title, url, category, synced_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		feed.ID,
		feed.InoreaderID,
		feed.Title,
		feed.URL,
		feed.Category,
		feed.SyncedAt,
		feed.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create feed",
			"inoreader_id", feed.InoreaderID,
			"error", err)
		return fmt.Errorf("failed to create feed: %w", err)
	}

	return nil
}

// Update refreshes the mutable feed columns from the remote copy.
func (r *PostgresFeedRepository) Update(ctx context.Context, feed *models.Feed) error {
	query := `
		UPDATE feeds
		SET title = $2, url = $3, category = $4, synced_at = $5
		WHERE inoreader_id = $1`

	tag, err := r.db.Exec(ctx, query,
		feed.InoreaderID,
		feed.Title,
		feed.URL,
		feed.Category,
		feed.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("feed not found for update: %s", feed.InoreaderID)
	}

	return nil
}

// GetAll returns every local feed.
func (r *PostgresFeedRepository) GetAll(ctx context.Context) ([]*models.Feed, error) {
	query := `
		SELECT id, inoreader_id, title, url, category, synced_at, created_at
		FROM feeds
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*models.Feed
	for rows.Next() {
		feed := &models.Feed{}
		err := rows.Scan(
			&feed.ID,
			&feed.InoreaderID,
			&feed.Title,
			&feed.URL,
			&feed.Category,
			&feed.SyncedAt,
			&feed.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan feed row", "error", err)
			continue
		}

		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return feeds, nil
}

// FindByInoreaderID finds a feed by its remote ID. Returns nil without error
// when no row exists.
func (r *PostgresFeedRepository) FindByInoreaderID(ctx context.Context, inoreaderID string) (*models.Feed, error) {
	query := `
		SELECT id, inoreader_id, title, url, category, synced_at, created_at
		FROM feeds
		WHERE inoreader_id = $1`

	feed := &models.Feed{}
	err := r.db.QueryRow(ctx, query, inoreaderID).Scan(
		&feed.ID,
		&feed.InoreaderID,
		&feed.Title,
		&feed.URL,
		&feed.Category,
		&feed.SyncedAt,
		&feed.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find feed by inoreader_id: %w", err)
	}

	return feed, nil
}

// DeleteByInoreaderIDs removes feeds no longer present on the remote side.
// Article rows cascade through the feed_id foreign key.
func (r *PostgresFeedRepository) DeleteByInoreaderIDs(ctx context.Context, inoreaderIDs []string) (int, error) {
	if len(inoreaderIDs) == 0 {
		return 0, nil
	}

	query := `DELETE FROM feeds WHERE inoreader_id = ANY($1)`

	tag, err := r.db.Exec(ctx, query, inoreaderIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete feeds: %w", err)
	}

	deleted := int(tag.RowsAffected())
	r.logger.Info("Deleted feeds",
		"requested", len(inoreaderIDs),
		"deleted", deleted)

	return deleted, nil
}

// CountTotal returns the total number of feeds
func (r *PostgresFeedRepository) CountTotal(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM feeds`

	var count int
	err := r.db.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count total feeds: %w", err)
	}

	return count, nil
}
