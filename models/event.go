// ABOUTME: This file defines the session completion event published to Redis Streams
// ABOUTME: Downstream consumers refresh their own views from these events

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// StreamKeySessions is the Redis stream carrying session completion events.
const StreamKeySessions = "reader-sync.sessions"

// SyncEvent is one session completion record published to the stream.
type SyncEvent struct {
	EventID         string     `json:"event_id"`
	SyncID          string     `json:"sync_id"`
	Kind            SyncKind   `json:"kind"`
	Status          SyncStatus `json:"status"`
	NewArticles     int        `json:"new_articles"`
	DeletedArticles int        `json:"deleted_articles"`
	FailedFeeds     int        `json:"failed_feeds"`
	FinishedAt      time.Time  `json:"finished_at"`
}

// NewSyncEvent builds an event from a finished session.
func NewSyncEvent(session *SyncSession) (*SyncEvent, error) {
	if session == nil {
		return nil, errors.New("session is nil")
	}
	if session.FinishedAt == nil {
		return nil, errors.New("session has not finished")
	}

	return &SyncEvent{
		EventID:         uuid.New().String(),
		SyncID:          session.ID,
		Kind:            session.Kind,
		Status:          session.Status,
		NewArticles:     session.Metrics.NewArticles,
		DeletedArticles: session.Metrics.DeletedArticles,
		FailedFeeds:     session.Metrics.FailedFeeds,
		FinishedAt:      *session.FinishedAt,
	}, nil
}
