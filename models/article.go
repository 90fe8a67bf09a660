// ABOUTME: This file defines the local article replica row and its state transitions
// ABOUTME: Keeps last_local_update and last_sync_update on disjoint write paths for conflict detection

package models

import (
	"time"

	"github.com/google/uuid"
)

// Article represents one row of the local replica of the remote reading list.
//
// LastLocalUpdate is written only by the user-action path (mark read/starred).
// LastSyncUpdate is written only by reconciliation. Conflict detection relies
// on the two timestamps never being touched by the same code path.
type Article struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	InoreaderID     string     `json:"inoreader_id" db:"inoreader_id"`
	FeedID          uuid.UUID  `json:"feed_id" db:"feed_id"`
	ArticleURL      string     `json:"article_url" db:"article_url"`
	Title           string     `json:"title" db:"title"`
	Author          string     `json:"author" db:"author"`
	Body            string     `json:"body" db:"body"`
	FullContent     string     `json:"full_content,omitempty" db:"full_content"`
	HasFullContent  bool       `json:"has_full_content" db:"has_full_content"`
	ExtractedAt     *time.Time `json:"extracted_at,omitempty" db:"extracted_at"`
	IsRead          bool       `json:"is_read" db:"is_read"`
	IsStarred       bool       `json:"is_starred" db:"is_starred"`
	PublishedAt     *time.Time `json:"published_at" db:"published_at"`
	LastLocalUpdate *time.Time `json:"last_local_update,omitempty" db:"last_local_update"`
	LastSyncUpdate  *time.Time `json:"last_sync_update,omitempty" db:"last_sync_update"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// NewArticleFromRemote creates a local article from a remote stream item.
// The sync-update timestamp is stamped because creation happens on the
// reconciliation path.
func NewArticleFromRemote(item StreamItem, feedID uuid.UUID, syncedAt time.Time) *Article {
	articleURL := ""
	if len(item.Canonical) > 0 {
		articleURL = item.Canonical[0].Href
	}

	var publishedAt *time.Time
	if item.Published > 0 {
		published := time.Unix(item.Published, 0)
		publishedAt = &published
	}

	synced := syncedAt

	return &Article{
		ID:             uuid.New(),
		InoreaderID:    item.ID,
		FeedID:         feedID,
		ArticleURL:     articleURL,
		Title:          item.Title,
		Author:         item.Author,
		Body:           item.Summary.Content,
		IsRead:         item.IsRead(),
		IsStarred:      item.IsStarred(),
		PublishedAt:    publishedAt,
		LastSyncUpdate: &synced,
		CreatedAt:      time.Now(),
	}
}

// MarkRead sets the read flag through the user-action path.
func (a *Article) MarkRead(read bool, at time.Time) {
	a.IsRead = read
	a.LastLocalUpdate = &at
}

// MarkStarred sets the starred flag through the user-action path.
func (a *Article) MarkStarred(starred bool, at time.Time) {
	a.IsStarred = starred
	a.LastLocalUpdate = &at
}

// ApplyRemoteState overwrites the read/starred flags from a remote snapshot
// through the reconciliation path.
func (a *Article) ApplyRemoteState(isRead, isStarred bool, syncedAt time.Time) {
	a.IsRead = isRead
	a.IsStarred = isStarred
	a.LastSyncUpdate = &syncedAt
}

// AgeBasis returns the timestamp article age is measured from: the remote
// publication time when the feed supplied one, the local creation time
// otherwise.
func (a *Article) AgeBasis() time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

// Age returns the time elapsed since AgeBasis.
func (a *Article) Age(now time.Time) time.Duration {
	return now.Sub(a.AgeBasis())
}
