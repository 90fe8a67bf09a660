// ABOUTME: This file defines the deleted-article tombstone model
// ABOUTME: Tombstones stop a purged article from resurrecting as unread on a later sync

package models

import (
	"time"

	"github.com/google/uuid"
)

// ArticleTombstone marks a purged article so that a later remote redelivery
// of the same id is not re-inserted as a fresh unread article.
type ArticleTombstone struct {
	InoreaderID string    `json:"inoreader_id" db:"inoreader_id"`
	FeedID      uuid.UUID `json:"feed_id" db:"feed_id"`
	WasRead     bool      `json:"was_read" db:"was_read"`
	DeletedAt   time.Time `json:"deleted_at" db:"deleted_at"`
}

// NewTombstone creates a tombstone for an article about to be purged.
func NewTombstone(article *Article, deletedAt time.Time) *ArticleTombstone {
	return &ArticleTombstone{
		InoreaderID: article.InoreaderID,
		FeedID:      article.FeedID,
		WasRead:     article.IsRead,
		DeletedAt:   deletedAt,
	}
}

// Expired reports whether the tombstone has outlived its retention window.
func (t *ArticleTombstone) Expired(now time.Time, retentionDays int) bool {
	if retentionDays <= 0 {
		return false
	}
	return now.Sub(t.DeletedAt) > time.Duration(retentionDays)*24*time.Hour
}
