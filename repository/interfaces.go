// ABOUTME: Repository layer contracts for the local replica store
// ABOUTME: Defines the pgx pool subset and per-table data access interfaces

package repository

import (
	"context"
	"time"

	"reader-sync/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of pgxpool.Pool used by the repositories. Tests satisfy
// it with pgxmock.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// ArticleRepository provides article replica database operations.
type ArticleRepository interface {
	// Create operations
	UpsertBatch(ctx context.Context, articles []*models.Article) (int, error)

	// Read operations
	FindByInoreaderID(ctx context.Context, inoreaderID string) (*models.Article, error)
	FindByInoreaderIDs(ctx context.Context, inoreaderIDs []string) (map[string]*models.Article, error)
	FindPendingLocalChanges(ctx context.Context, limit int) ([]*models.Article, error)
	FindCandidatesOlderThan(ctx context.Context, publishedBefore, afterPublished time.Time, afterID uuid.UUID, limit int) ([]*models.Article, error)

	// Update operations: the user-action path writes last_local_update, the
	// reconciliation path writes last_sync_update. Never both.
	MarkRead(ctx context.Context, inoreaderID string, read bool, at time.Time) error
	MarkStarred(ctx context.Context, inoreaderID string, starred bool, at time.Time) error
	ApplyRemoteState(ctx context.Context, inoreaderID string, isRead, isStarred bool, syncedAt time.Time) error
	SaveFullContent(ctx context.Context, inoreaderID, content string, extractedAt time.Time) error
	ClearExpiredFullContent(ctx context.Context, extractedBefore time.Time) (int, error)

	// Delete operations
	PurgeWithTombstones(ctx context.Context, articles []*models.Article, deletedAt time.Time) (int, error)

	// Count operations
	CountTotal(ctx context.Context) (int, error)
}

// FeedRepository provides feed database operations.
type FeedRepository interface {
	Create(ctx context.Context, feed *models.Feed) error
	Update(ctx context.Context, feed *models.Feed) error
	GetAll(ctx context.Context) ([]*models.Feed, error)
	FindByInoreaderID(ctx context.Context, inoreaderID string) (*models.Feed, error)
	DeleteByInoreaderIDs(ctx context.Context, inoreaderIDs []string) (int, error)
	CountTotal(ctx context.Context) (int, error)
}

// TombstoneRepository provides deleted-article tombstone operations.
type TombstoneRepository interface {
	UpsertBatch(ctx context.Context, tombstones []*models.ArticleTombstone) (int, error)
	ExistsByInoreaderIDs(ctx context.Context, inoreaderIDs []string) (map[string]bool, error)
	DeleteExpired(ctx context.Context, deletedBefore time.Time) (int, error)
	CountTotal(ctx context.Context) (int, error)
}

// ConflictRepository appends and reads the structured conflict log.
type ConflictRepository interface {
	InsertBatch(ctx context.Context, conflicts []models.Conflict) error
	ListBySessionID(ctx context.Context, sessionID string) ([]models.Conflict, error)
}

// SessionRepository persists sync session summaries for operability.
type SessionRepository interface {
	Save(ctx context.Context, session *models.SyncSession) error
	GetRecent(ctx context.Context, limit int) ([]*models.SyncSession, error)
}

// QuotaRepository persists per-zone quota snapshots.
type QuotaRepository interface {
	UpsertZone(ctx context.Context, zone models.ZoneUsage) error
	GetZones(ctx context.Context) (map[string]models.ZoneUsage, error)
}
