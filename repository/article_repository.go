// ABOUTME: PostgreSQL implementation of ArticleRepository on a pgx pool
// ABOUTME: Handles replica upserts, state reconciliation and retention purges

package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reader-sync/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const articleColumns = `id, inoreader_id, feed_id, article_url, title, author,
	       body, COALESCE(full_content, ''), has_full_content, extracted_at,
	       is_read, is_starred, published_at,
	       last_local_update, last_sync_update, created_at`

// PostgresArticleRepository implements ArticleRepository using PostgreSQL
type PostgresArticleRepository struct {
	db     Pool
	logger *slog.Logger
}

// NewPostgresArticleRepository creates a new PostgreSQL article repository
func NewPostgresArticleRepository(db Pool, logger *slog.Logger) ArticleRepository {
	return &PostgresArticleRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertBatch writes a batch of articles in a single transaction. Rows that
// already exist (same inoreader_id) are refreshed from the remote copy;
// locally-owned columns (full_content, last_local_update) are left untouched.
// Returns the number of rows written.
func (r *PostgresArticleRepository) UpsertBatch(ctx context.Context, articles []*models.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO articles (
			id, inoreader_id, feed_id, article_url, title, author, body,
			is_read, is_starred, published_at, last_sync_update, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (inoreader_id) DO UPDATE SET
			article_url = EXCLUDED.article_url,
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			body = EXCLUDED.body,
			is_read = EXCLUDED.is_read,
			is_starred = EXCLUDED.is_starred,
			published_at = EXCLUDED.published_at,
			last_sync_update = EXCLUDED.last_sync_update`

	written := 0
	for _, article := range articles {
		tag, err := tx.Exec(ctx, query,
			article.ID,
			article.InoreaderID,
			article.FeedID,
			article.ArticleURL,
			article.Title,
			article.Author,
			article.Body,
			article.IsRead,
			article.IsStarred,
			article.PublishedAt,
			article.LastSyncUpdate,
			article.CreatedAt,
		)
		if err != nil {
			r.logger.Warn("Failed to upsert article in batch",
				"inoreader_id", article.InoreaderID,
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

	r.logger.Info("Batch article upsert completed",
		"total_articles", len(articles),
		"written", written)

	return written, nil
}

// FindByInoreaderID finds an article by its remote ID. Returns nil without
// error when no row exists.
func (r *PostgresArticleRepository) FindByInoreaderID(ctx context.Context, inoreaderID string) (*models.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE inoreader_id = $1`

	article, err := r.scanArticle(r.db.QueryRow(ctx, query, inoreaderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find article by inoreader_id: %w", err)
	}

	return article, nil
}

// FindByInoreaderIDs loads the local counterparts of a set of remote IDs,
// keyed by inoreader_id. IDs without a local row are simply absent.
func (r *PostgresArticleRepository) FindByInoreaderIDs(ctx context.Context, inoreaderIDs []string) (map[string]*models.Article, error) {
	result := make(map[string]*models.Article, len(inoreaderIDs))
	if len(inoreaderIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE inoreader_id = ANY($1)`

	articles, err := r.queryArticles(ctx, query, inoreaderIDs)
	if err != nil {
		return nil, err
	}

	for _, article := range articles {
		result[article.InoreaderID] = article
	}

	return result, nil
}

// FindPendingLocalChanges returns articles whose local edits have not been
// written back to the remote API yet.
func (r *PostgresArticleRepository) FindPendingLocalChanges(ctx context.Context, limit int) ([]*models.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE last_local_update IS NOT NULL
		  AND (last_sync_update IS NULL OR last_local_update > last_sync_update)
		ORDER BY last_local_update ASC
		LIMIT $1`

	return r.queryArticles(ctx, query, limit)
}

// FindCandidatesOlderThan pages through articles published (or, lacking a
// published timestamp, created) before the cutoff. The (afterPublished,
// afterID) pair is a keyset cursor so callers never see the same row twice
// even when they skip deleting some of a batch.
func (r *PostgresArticleRepository) FindCandidatesOlderThan(ctx context.Context, publishedBefore, afterPublished time.Time, afterID uuid.UUID, limit int) ([]*models.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE COALESCE(published_at, created_at) < $1
		  AND (COALESCE(published_at, created_at), id) > ($2, $3)
		ORDER BY COALESCE(published_at, created_at) ASC, id ASC
		LIMIT $4`

	return r.queryArticles(ctx, query, publishedBefore, afterPublished, afterID, limit)
}

// MarkRead records a local read-state edit and stamps last_local_update.
func (r *PostgresArticleRepository) MarkRead(ctx context.Context, inoreaderID string, read bool, at time.Time) error {
	query := `UPDATE articles SET is_read = $2, last_local_update = $3 WHERE inoreader_id = $1`

	tag, err := r.db.Exec(ctx, query, inoreaderID, read, at)
	if err != nil {
		return fmt.Errorf("failed to mark article read state: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article not found for read update: %s", inoreaderID)
	}

	return nil
}

// MarkStarred records a local starred-state edit and stamps last_local_update.
func (r *PostgresArticleRepository) MarkStarred(ctx context.Context, inoreaderID string, starred bool, at time.Time) error {
	query := `UPDATE articles SET is_starred = $2, last_local_update = $3 WHERE inoreader_id = $1`

	tag, err := r.db.Exec(ctx, query, inoreaderID, starred, at)
	if err != nil {
		return fmt.Errorf("failed to mark article starred state: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article not found for starred update: %s", inoreaderID)
	}

	return nil
}

// ApplyRemoteState overwrites both state flags from the remote copy and
// stamps last_sync_update, leaving last_local_update as it was.
func (r *PostgresArticleRepository) ApplyRemoteState(ctx context.Context, inoreaderID string, isRead, isStarred bool, syncedAt time.Time) error {
	query := `
		UPDATE articles
		SET is_read = $2, is_starred = $3, last_sync_update = $4
		WHERE inoreader_id = $1`

	tag, err := r.db.Exec(ctx, query, inoreaderID, isRead, isStarred, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to apply remote state: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article not found for remote state: %s", inoreaderID)
	}

	return nil
}

// SaveFullContent stores an extracted article body.
func (r *PostgresArticleRepository) SaveFullContent(ctx context.Context, inoreaderID, content string, extractedAt time.Time) error {
	query := `
		UPDATE articles
		SET full_content = $2, has_full_content = TRUE, extracted_at = $3
		WHERE inoreader_id = $1`

	tag, err := r.db.Exec(ctx, query, inoreaderID, content, extractedAt)
	if err != nil {
		return fmt.Errorf("failed to save full content: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article not found for content save: %s", inoreaderID)
	}

	return nil
}

// ClearExpiredFullContent drops cached extraction bodies older than the
// cutoff while keeping the article rows themselves.
func (r *PostgresArticleRepository) ClearExpiredFullContent(ctx context.Context, extractedBefore time.Time) (int, error) {
	query := `
		UPDATE articles
		SET full_content = NULL, has_full_content = FALSE, extracted_at = NULL
		WHERE has_full_content = TRUE AND extracted_at < $1`

	tag, err := r.db.Exec(ctx, query, extractedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired full content: %w", err)
	}

	cleared := int(tag.RowsAffected())
	r.logger.Info("Cleared expired full content",
		"count", cleared,
		"extracted_before", extractedBefore)

	return cleared, nil
}

// PurgeWithTombstones deletes a batch of articles inside one transaction,
// upserting a tombstone for every row before any delete happens. A re-run
// after a crash is safe: tombstone upserts are idempotent on inoreader_id.
func (r *PostgresArticleRepository) PurgeWithTombstones(ctx context.Context, articles []*models.Article, deletedAt time.Time) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tombstoneQuery := `
		INSERT INTO article_tombstones (inoreader_id, feed_id, was_read, deleted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (inoreader_id) DO UPDATE SET
			was_read = EXCLUDED.was_read,
			deleted_at = EXCLUDED.deleted_at`

	ids := make([]string, 0, len(articles))
	for _, article := range articles {
		tombstone := models.NewTombstone(article, deletedAt)
		if _, err := tx.Exec(ctx, tombstoneQuery,
			tombstone.InoreaderID,
			tombstone.FeedID,
			tombstone.WasRead,
			tombstone.DeletedAt,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert tombstone for %s: %w", article.InoreaderID, err)
		}
		ids = append(ids, article.InoreaderID)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM articles WHERE inoreader_id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete purged articles: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	deleted := int(tag.RowsAffected())
	r.logger.Info("Purged articles with tombstones",
		"requested", len(articles),
		"deleted", deleted)

	return deleted, nil
}

// CountTotal returns the total number of articles
func (r *PostgresArticleRepository) CountTotal(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM articles`

	var count int
	err := r.db.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count total articles: %w", err)
	}

	return count, nil
}

// queryArticles is a helper method to execute queries that return multiple articles
func (r *PostgresArticleRepository) queryArticles(ctx context.Context, query string, args ...interface{}) ([]*models.Article, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		article, err := r.scanArticle(rows)
		if err != nil {
			r.logger.Error("Failed to scan article row", "error", err)
			continue
		}

		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return articles, nil
}

func (r *PostgresArticleRepository) scanArticle(row pgx.Row) (*models.Article, error) {
	article := &models.Article{}
	err := row.Scan(
		&article.ID,
		&article.InoreaderID,
		&article.FeedID,
		&article.ArticleURL,
		&article.Title,
		&article.Author,
		&article.Body,
		&article.FullContent,
		&article.HasFullContent,
		&article.ExtractedAt,
		&article.IsRead,
		&article.IsStarred,
		&article.PublishedAt,
		&article.LastLocalUpdate,
		&article.LastSyncUpdate,
		&article.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return article, nil
}
