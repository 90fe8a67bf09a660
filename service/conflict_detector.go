// ABOUTME: Conflict detection between a local article and its remote snapshot
// ABOUTME: Remote always wins; the detector only classifies and records what diverged

package service

import (
	"log/slog"
	"time"

	"reader-sync/metrics"
	"reader-sync/models"
)

// conflictNote is attached to every conflict-log entry. The remote API exposes
// no per-article modification timestamp, so local precedence can never be
// established.
const conflictNote = "remote wins; API exposes no server-side modification timestamp"

// ConflictDetector evaluates (local, remote) article pairs. It holds no
// mutable state, so one instance is safe to use concurrently for disjoint
// article ids; callers own the per-session tally and conflict log.
type ConflictDetector struct {
	logger *slog.Logger
}

// NewConflictDetector creates a conflict detector.
func NewConflictDetector(logger *slog.Logger) *ConflictDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConflictDetector{logger: logger}
}

// HasLocalChanges reports whether the local article carries user edits that
// reconciliation has not yet seen. Both timestamps are required; if either is
// absent there is nothing to substantiate a claim of local changes.
func (d *ConflictDetector) HasLocalChanges(local *models.Article) bool {
	if local == nil {
		return false
	}
	if local.LastLocalUpdate == nil || local.LastSyncUpdate == nil {
		return false
	}
	return local.LastLocalUpdate.After(*local.LastSyncUpdate)
}

// StatesDiffer reports whether the user-visible flags diverge between the
// local article and the remote snapshot.
func (d *ConflictDetector) StatesDiffer(local *models.Article, remote models.StateSnapshot) bool {
	if local == nil {
		return false
	}
	return local.IsRead != remote.IsRead || local.IsStarred != remote.IsStarred
}

// Classify derives the conflict type by comparing each flag independently.
func (d *ConflictDetector) Classify(local *models.Article, remote models.StateSnapshot) models.ConflictType {
	if local == nil {
		return models.ConflictTypeNone
	}

	readDiffers := local.IsRead != remote.IsRead
	starredDiffers := local.IsStarred != remote.IsStarred

	switch {
	case readDiffers && starredDiffers:
		return models.ConflictTypeBoth
	case readDiffers:
		return models.ConflictTypeReadStatus
	case starredDiffers:
		return models.ConflictTypeStarredStatus
	default:
		return models.ConflictTypeNone
	}
}

// Detect evaluates one pair and, when a true conflict exists, returns the
// structured log entry for it. A conflict exists only when the local article
// has unreconciled user edits AND the flags diverge. Missing inputs are never
// an error: absent data cannot substantiate a conflict.
func (d *ConflictDetector) Detect(sessionID string, local *models.Article, remote *models.StateSnapshot, detectedAt time.Time) (*models.Conflict, bool) {
	if local == nil || remote == nil {
		return nil, false
	}

	if !d.HasLocalChanges(local) {
		return nil, false
	}

	conflictType := d.Classify(local, *remote)
	if conflictType == models.ConflictTypeNone {
		return nil, false
	}

	conflict := &models.Conflict{
		SessionID:   sessionID,
		InoreaderID: local.InoreaderID,
		FeedID:      local.FeedID,
		Type:        conflictType,
		Local: models.StateSnapshot{
			IsRead:    local.IsRead,
			IsStarred: local.IsStarred,
		},
		Remote:          *remote,
		Resolution:      models.ResolutionRemote,
		LastLocalUpdate: local.LastLocalUpdate,
		LastSyncUpdate:  local.LastSyncUpdate,
		Note:            conflictNote,
		DetectedAt:      detectedAt,
	}

	metrics.RecordConflict(string(conflictType))
	d.logger.Info("sync conflict detected",
		"session_id", sessionID,
		"inoreader_id", local.InoreaderID,
		"conflict_type", string(conflictType),
		"local_is_read", local.IsRead,
		"remote_is_read", remote.IsRead,
		"local_is_starred", local.IsStarred,
		"remote_is_starred", remote.IsStarred,
		"resolution", models.ResolutionRemote)

	return conflict, true
}
