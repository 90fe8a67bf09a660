// ABOUTME: Tests for the PostgreSQL article repository using pgxmock

package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"reader-sync/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var articleRowColumns = []string{
	"id", "inoreader_id", "feed_id", "article_url", "title", "author",
	"body", "full_content", "has_full_content", "extracted_at",
	"is_read", "is_starred", "published_at",
	"last_local_update", "last_sync_update", "created_at",
}

func articleRows(articles ...*models.Article) *pgxmock.Rows {
	rows := pgxmock.NewRows(articleRowColumns)
	for _, a := range articles {
		rows.AddRow(
			a.ID, a.InoreaderID, a.FeedID, a.ArticleURL, a.Title, a.Author,
			a.Body, a.FullContent, a.HasFullContent, a.ExtractedAt,
			a.IsRead, a.IsStarred, a.PublishedAt,
			a.LastLocalUpdate, a.LastSyncUpdate, a.CreatedAt,
		)
	}
	return rows
}

func sampleArticle(inoreaderID string) *models.Article {
	now := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	return &models.Article{
		ID:             uuid.New(),
		InoreaderID:    inoreaderID,
		FeedID:         uuid.New(),
		ArticleURL:     "https://example.com/post",
		Title:          "Sample",
		Author:         "someone",
		Body:           "<p>summary</p>",
		PublishedAt:    &now,
		LastSyncUpdate: &now,
		CreatedAt:      now,
	}
}

func TestArticleRepository_UpsertBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())

	articles := []*models.Article{sampleArticle("tag:google.com,2005:reader/item/001"), sampleArticle("tag:google.com,2005:reader/item/002")}

	mock.ExpectBegin()
	for range articles {
		mock.ExpectExec("INSERT INTO articles").
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	written, err := repo.UpsertBatch(context.Background(), articles)
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_UpsertBatch_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())

	written, err := repo.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_FindByInoreaderID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())

	t.Run("found", func(t *testing.T) {
		article := sampleArticle("tag:google.com,2005:reader/item/010")
		mock.ExpectQuery("FROM articles").
			WithArgs(article.InoreaderID).
			WillReturnRows(articleRows(article))

		got, err := repo.FindByInoreaderID(context.Background(), article.InoreaderID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, article.InoreaderID, got.InoreaderID)
		assert.Equal(t, article.Title, got.Title)
	})

	t.Run("missing row returns nil", func(t *testing.T) {
		mock.ExpectQuery("FROM articles").
			WithArgs("tag:google.com,2005:reader/item/404").
			WillReturnError(pgx.ErrNoRows)

		got, err := repo.FindByInoreaderID(context.Background(), "tag:google.com,2005:reader/item/404")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_FindByInoreaderIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())

	first := sampleArticle("tag:google.com,2005:reader/item/020")
	second := sampleArticle("tag:google.com,2005:reader/item/021")
	ids := []string{first.InoreaderID, second.InoreaderID, "tag:google.com,2005:reader/item/404"}

	mock.ExpectQuery("WHERE inoreader_id = ANY").
		WithArgs(ids).
		WillReturnRows(articleRows(first, second))

	got, err := repo.FindByInoreaderIDs(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, first.InoreaderID)
	assert.Contains(t, got, second.InoreaderID)
	assert.NotContains(t, got, "tag:google.com,2005:reader/item/404")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_FindPendingLocalChanges(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())

	edited := sampleArticle("tag:google.com,2005:reader/item/030")
	local := edited.LastSyncUpdate.Add(time.Minute)
	edited.LastLocalUpdate = &local

	mock.ExpectQuery("last_local_update IS NOT NULL").
		WithArgs(100).
		WillReturnRows(articleRows(edited))

	got, err := repo.FindPendingLocalChanges(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, edited.InoreaderID, got[0].InoreaderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_FindCandidatesOlderThan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())

	old := sampleArticle("tag:google.com,2005:reader/item/040")
	cutoff := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("COALESCE").
		WithArgs(cutoff, time.Time{}, uuid.Nil, 1000).
		WillReturnRows(articleRows(old))

	got, err := repo.FindCandidatesOlderThan(context.Background(), cutoff, time.Time{}, uuid.Nil, 1000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, old.InoreaderID, got[0].InoreaderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_MarkRead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())
	at := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)

	t.Run("updates row", func(t *testing.T) {
		mock.ExpectExec("UPDATE articles SET is_read").
			WithArgs("tag:google.com,2005:reader/item/050", true, at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkRead(context.Background(), "tag:google.com,2005:reader/item/050", true, at)
		assert.NoError(t, err)
	})

	t.Run("missing row errors", func(t *testing.T) {
		mock.ExpectExec("UPDATE articles SET is_read").
			WithArgs("tag:google.com,2005:reader/item/404", true, at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkRead(context.Background(), "tag:google.com,2005:reader/item/404", true, at)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_ApplyRemoteState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())
	syncedAt := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("SET is_read = \\$2, is_starred = \\$3, last_sync_update = \\$4").
		WithArgs("tag:google.com,2005:reader/item/060", true, false, syncedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.ApplyRemoteState(context.Background(), "tag:google.com,2005:reader/item/060", true, false, syncedAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_SaveFullContent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())
	extractedAt := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("SET full_content = \\$2, has_full_content = TRUE").
		WithArgs("tag:google.com,2005:reader/item/070", "<article>text</article>", extractedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.SaveFullContent(context.Background(), "tag:google.com,2005:reader/item/070", "<article>text</article>", extractedAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_ClearExpiredFullContent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("SET full_content = NULL").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	cleared, err := repo.ClearExpiredFullContent(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, cleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_PurgeWithTombstones(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())

	articles := []*models.Article{sampleArticle("tag:google.com,2005:reader/item/080"), sampleArticle("tag:google.com,2005:reader/item/081")}
	deletedAt := time.Date(2025, 6, 14, 11, 0, 0, 0, time.UTC)

	// Expectation order matters here: both tombstone upserts must happen
	// before the delete inside the same transaction.
	mock.ExpectBegin()
	for _, a := range articles {
		mock.ExpectExec("INSERT INTO article_tombstones").
			WithArgs(a.InoreaderID, a.FeedID, a.IsRead, deletedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("DELETE FROM articles").
		WithArgs([]string{articles[0].InoreaderID, articles[1].InoreaderID}).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	deleted, err := repo.PurgeWithTombstones(context.Background(), articles, deletedAt)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_PurgeWithTombstones_TombstoneFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())

	articles := []*models.Article{sampleArticle("tag:google.com,2005:reader/item/090")}
	deletedAt := time.Date(2025, 6, 14, 11, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO article_tombstones").
		WithArgs(articles[0].InoreaderID, articles[0].FeedID, articles[0].IsRead, deletedAt).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = repo.PurgeWithTombstones(context.Background(), articles, deletedAt)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_CountTotal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresArticleRepository(mock, newTestLogger())

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountTotal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
