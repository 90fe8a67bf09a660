// ABOUTME: This file defines the sync session lifecycle, kinds and result surface
// ABOUTME: Sessions are ephemeral; a summary row is persisted for operability only

package models

import (
	"time"
)

// SyncKind distinguishes user-triggered from scheduled sessions.
type SyncKind string

const (
	SyncKindManual     SyncKind = "manual"
	SyncKindBackground SyncKind = "background"
)

// SyncStatus is the terminal state of a session.
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusPartial   SyncStatus = "partial"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncMetrics aggregates the per-session counters exposed to callers.
type SyncMetrics struct {
	NewArticles     int `json:"new_articles"`
	UpdatedArticles int `json:"updated_articles"`
	DeletedArticles int `json:"deleted_articles"`
	NewTags         int `json:"new_tags"`
	FailedFeeds     int `json:"failed_feeds"`
}

// SyncSession is one end-to-end sync run.
type SyncSession struct {
	ID         string      `json:"sync_id" db:"id"`
	Kind       SyncKind    `json:"kind" db:"kind"`
	StartedAt  time.Time   `json:"started_at" db:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty" db:"finished_at"`
	Status     SyncStatus  `json:"status" db:"status"`
	Metrics    SyncMetrics `json:"metrics" db:"-"`
	Conflicts  []Conflict  `json:"conflicts,omitempty" db:"-"`
}

// NewSyncSession creates a running session with an id derived from its start
// time, e.g. "sync-20250614-093000".
func NewSyncSession(kind SyncKind, startedAt time.Time) *SyncSession {
	return &SyncSession{
		ID:        "sync-" + startedAt.UTC().Format("20060102-150405"),
		Kind:      kind,
		StartedAt: startedAt,
		Status:    SyncStatusRunning,
	}
}

// Finish marks the session terminal with the given status.
func (s *SyncSession) Finish(status SyncStatus, at time.Time) {
	s.Status = status
	s.FinishedAt = &at
}

// Duration returns the session duration, or the elapsed time so far when the
// session has not finished.
func (s *SyncSession) Duration(now time.Time) time.Duration {
	if s.FinishedAt != nil {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// SyncResult is the surface handed to notification and HTTP consumers.
type SyncResult struct {
	SyncID  string      `json:"syncId"`
	Kind    SyncKind    `json:"kind"`
	Status  SyncStatus  `json:"status"`
	Metrics SyncMetrics `json:"metrics"`
}

// Result snapshots the session into the externally consumed shape.
func (s *SyncSession) Result() SyncResult {
	return SyncResult{
		SyncID:  s.ID,
		Kind:    s.Kind,
		Status:  s.Status,
		Metrics: s.Metrics,
	}
}
