// ABOUTME: Tests for conflict detection and classification

package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader-sync/models"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func localArticle(isRead, isStarred bool, localUpdate, syncUpdate *time.Time) *models.Article {
	return &models.Article{
		ID:              uuid.New(),
		InoreaderID:     "tag:google.com,2005:reader/item/0001",
		FeedID:          uuid.New(),
		IsRead:          isRead,
		IsStarred:       isStarred,
		LastLocalUpdate: localUpdate,
		LastSyncUpdate:  syncUpdate,
	}
}

func TestConflictDetector_HasLocalChanges(t *testing.T) {
	detector := NewConflictDetector(newTestLogger())
	now := time.Now()

	tests := map[string]struct {
		local    *models.Article
		expected bool
	}{
		"local update after sync update": {
			local:    localArticle(true, false, timePtr(now), timePtr(now.Add(-time.Hour))),
			expected: true,
		},
		"local update before sync update": {
			local:    localArticle(true, false, timePtr(now.Add(-time.Hour)), timePtr(now)),
			expected: false,
		},
		"equal timestamps": {
			local:    localArticle(true, false, timePtr(now), timePtr(now)),
			expected: false,
		},
		"missing local update": {
			local:    localArticle(true, false, nil, timePtr(now)),
			expected: false,
		},
		"missing sync update": {
			local:    localArticle(true, false, timePtr(now), nil),
			expected: false,
		},
		"both timestamps missing": {
			local:    localArticle(true, false, nil, nil),
			expected: false,
		},
		"nil article": {
			local:    nil,
			expected: false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, detector.HasLocalChanges(tc.local))
		})
	}
}

func TestConflictDetector_Classify(t *testing.T) {
	detector := NewConflictDetector(newTestLogger())

	tests := map[string]struct {
		localRead     bool
		localStarred  bool
		remoteRead    bool
		remoteStarred bool
		expected      models.ConflictType
	}{
		"read differs": {
			localRead: true, remoteRead: false,
			expected: models.ConflictTypeReadStatus,
		},
		"starred differs": {
			localStarred: true, remoteStarred: false,
			expected: models.ConflictTypeStarredStatus,
		},
		"both differ": {
			localRead: true, localStarred: false,
			remoteRead: false, remoteStarred: true,
			expected: models.ConflictTypeBoth,
		},
		"identical states": {
			localRead: true, localStarred: true,
			remoteRead: true, remoteStarred: true,
			expected: models.ConflictTypeNone,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			local := localArticle(tc.localRead, tc.localStarred, nil, nil)
			remote := models.StateSnapshot{IsRead: tc.remoteRead, IsStarred: tc.remoteStarred}

			assert.Equal(t, tc.expected, detector.Classify(local, remote))
		})
	}
}

func TestConflictDetector_Detect(t *testing.T) {
	detector := NewConflictDetector(newTestLogger())
	now := time.Now()

	t.Run("flags read status conflict with remote resolution", func(t *testing.T) {
		// Local marked read an hour after the last reconciliation; remote says unread.
		local := localArticle(true, false, timePtr(now), timePtr(now.Add(-time.Hour)))
		remote := &models.StateSnapshot{IsRead: false, IsStarred: false}

		conflict, detected := detector.Detect("sync-20250614-093000", local, remote, now)

		require.True(t, detected)
		require.NotNil(t, conflict)
		assert.Equal(t, "sync-20250614-093000", conflict.SessionID)
		assert.Equal(t, local.InoreaderID, conflict.InoreaderID)
		assert.Equal(t, local.FeedID, conflict.FeedID)
		assert.Equal(t, models.ConflictTypeReadStatus, conflict.Type)
		assert.True(t, conflict.Local.IsRead)
		assert.False(t, conflict.Remote.IsRead)
		assert.Equal(t, models.ResolutionRemote, conflict.Resolution)
		assert.Equal(t, local.LastLocalUpdate, conflict.LastLocalUpdate)
		assert.Equal(t, local.LastSyncUpdate, conflict.LastSyncUpdate)
		assert.Contains(t, conflict.Note, "no server-side modification timestamp")
		assert.Equal(t, now, conflict.DetectedAt)
	})

	t.Run("no conflict without local changes", func(t *testing.T) {
		// States diverge but the local article has no unreconciled edits.
		local := localArticle(true, false, nil, timePtr(now.Add(-time.Hour)))
		remote := &models.StateSnapshot{IsRead: false}

		conflict, detected := detector.Detect("sync-1", local, remote, now)

		assert.False(t, detected)
		assert.Nil(t, conflict)
	})

	t.Run("no conflict when states agree", func(t *testing.T) {
		local := localArticle(true, true, timePtr(now), timePtr(now.Add(-time.Hour)))
		remote := &models.StateSnapshot{IsRead: true, IsStarred: true}

		_, detected := detector.Detect("sync-1", local, remote, now)

		assert.False(t, detected)
	})

	t.Run("missing inputs never conflict", func(t *testing.T) {
		local := localArticle(true, false, timePtr(now), timePtr(now.Add(-time.Hour)))

		_, detected := detector.Detect("sync-1", nil, &models.StateSnapshot{}, now)
		assert.False(t, detected)

		_, detected = detector.Detect("sync-1", local, nil, now)
		assert.False(t, detected)
	})

	t.Run("tally accumulates by type and resolution", func(t *testing.T) {
		tally := models.NewConflictTally()

		pairs := []struct {
			local  *models.Article
			remote models.StateSnapshot
		}{
			{localArticle(true, false, timePtr(now), timePtr(now.Add(-time.Hour))), models.StateSnapshot{IsRead: false}},
			{localArticle(false, true, timePtr(now), timePtr(now.Add(-time.Hour))), models.StateSnapshot{IsStarred: false}},
			{localArticle(true, true, timePtr(now), timePtr(now.Add(-time.Hour))), models.StateSnapshot{}},
		}

		for _, p := range pairs {
			remote := p.remote
			if conflict, ok := detector.Detect("sync-1", p.local, &remote, now); ok {
				tally.Record(*conflict)
			}
		}

		assert.Equal(t, 3, tally.Total)
		assert.Equal(t, 1, tally.ByType[models.ConflictTypeReadStatus])
		assert.Equal(t, 1, tally.ByType[models.ConflictTypeStarredStatus])
		assert.Equal(t, 1, tally.ByType[models.ConflictTypeBoth])
		assert.Equal(t, 3, tally.Resolutions[models.ResolutionRemote])
	})
}
