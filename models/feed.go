// ABOUTME: This file defines the local feed model backing the article replica
// ABOUTME: Feeds mirror the remote subscription list and cascade deletes to articles

package models

import (
	"time"

	"github.com/google/uuid"
)

// Feed represents a locally mirrored subscription.
type Feed struct {
	ID          uuid.UUID `json:"id" db:"id"`
	InoreaderID string    `json:"inoreader_id" db:"inoreader_id"`
	Title       string    `json:"title" db:"title"`
	URL         string    `json:"url" db:"url"`
	Category    string    `json:"category" db:"category"`
	SyncedAt    time.Time `json:"synced_at" db:"synced_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewFeedFromRemote creates a local feed from a remote subscription entry.
func NewFeedFromRemote(sub RemoteSubscription) *Feed {
	now := time.Now()

	category := ""
	if len(sub.Categories) > 0 {
		category = sub.Categories[0].Label
	}

	return &Feed{
		ID:          uuid.New(),
		InoreaderID: sub.ID,
		Title:       sub.Title,
		URL:         sub.URL,
		Category:    category,
		SyncedAt:    now,
		CreatedAt:   now,
	}
}

// UpdateFromRemote refreshes mutable fields from a remote subscription entry.
// Category is overwritten even when the remote entry carries none, so the
// mirror converges instead of re-detecting the same diff every sync.
func (f *Feed) UpdateFromRemote(sub RemoteSubscription) {
	f.Title = sub.Title
	f.URL = sub.URL

	category := ""
	if len(sub.Categories) > 0 {
		category = sub.Categories[0].Label
	}
	f.Category = category

	f.SyncedAt = time.Now()
}
