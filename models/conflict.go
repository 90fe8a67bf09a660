// ABOUTME: This file defines conflict classification types and the structured conflict log entry
// ABOUTME: Resolution is always remote because the API exposes no article change timestamps

package models

import (
	"time"

	"github.com/google/uuid"
)

// ConflictType classifies which user-state fields diverged between the local
// article and the remote snapshot.
type ConflictType string

const (
	ConflictTypeNone          ConflictType = "none"
	ConflictTypeReadStatus    ConflictType = "read_status"
	ConflictTypeStarredStatus ConflictType = "starred_status"
	ConflictTypeBoth          ConflictType = "both"
)

// ResolutionRemote is the only resolution the engine produces.
const ResolutionRemote = "remote"

// StateSnapshot captures the user-visible state of one side of a comparison.
type StateSnapshot struct {
	IsRead    bool `json:"is_read"`
	IsStarred bool `json:"is_starred"`
}

// Conflict is one structured conflict-log entry. Entries are append-only
// diagnostics; nothing reads them back to undo a resolution.
type Conflict struct {
	SessionID       string        `json:"session_id" db:"session_id"`
	InoreaderID     string        `json:"inoreader_id" db:"inoreader_id"`
	FeedID          uuid.UUID     `json:"feed_id" db:"feed_id"`
	Type            ConflictType  `json:"conflict_type" db:"conflict_type"`
	Local           StateSnapshot `json:"local" db:"-"`
	Remote          StateSnapshot `json:"remote" db:"-"`
	Resolution      string        `json:"resolution" db:"resolution"`
	LastLocalUpdate *time.Time    `json:"last_local_update" db:"last_local_update"`
	LastSyncUpdate  *time.Time    `json:"last_sync_update" db:"last_sync_update"`
	Note            string        `json:"note" db:"note"`
	DetectedAt      time.Time     `json:"detected_at" db:"detected_at"`
}

// ConflictTally accumulates per-session conflict statistics.
type ConflictTally struct {
	ByType      map[ConflictType]int `json:"by_type"`
	Resolutions map[string]int       `json:"resolutions"`
	Total       int                  `json:"total"`
}

// NewConflictTally creates an empty tally.
func NewConflictTally() *ConflictTally {
	return &ConflictTally{
		ByType:      make(map[ConflictType]int),
		Resolutions: make(map[string]int),
	}
}

// Record adds one resolved conflict to the tally.
func (t *ConflictTally) Record(c Conflict) {
	t.ByType[c.Type]++
	t.Resolutions[c.Resolution]++
	t.Total++
}
