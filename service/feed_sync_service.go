// ABOUTME: Feed sync service mirroring the remote subscription list into local feeds
// ABOUTME: Absent-feed deletion passes a mass-deletion gate so a bad response cannot wipe the mirror

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reader-sync/metrics"
	"reader-sync/models"
	"reader-sync/repository"
	apperrors "reader-sync/utils/errors"
)

// feedDeletionMaxShare caps how much of the local mirror one cleanup pass may
// remove. A larger share is treated as a truncated or corrupt remote list.
const feedDeletionMaxShare = 0.5

// ErrFeedSafetyThreshold signals that absent-feed deletion was refused because
// it would remove more than feedDeletionMaxShare of the local mirror.
var ErrFeedSafetyThreshold = errors.New("feed cleanup aborted: too many local feeds would be deleted")

// FeedSyncResult represents the outcome of one subscription list sync.
type FeedSyncResult struct {
	Created        int                      `json:"created"`
	Updated        int                      `json:"updated"`
	Deleted        int                      `json:"deleted"`
	TotalProcessed int                      `json:"total_processed"`
	Cleanup        models.FeedCleanupResult `json:"cleanup"`
	SyncTime       time.Time                `json:"sync_time"`
	Duration       time.Duration            `json:"duration"`
	Errors         []string                 `json:"errors,omitempty"`
}

// FeedSyncService reconciles the local feed mirror against the remote
// subscription list.
type FeedSyncService struct {
	api      ReaderAPI
	feedRepo repository.FeedRepository
	quota    *QuotaTracker
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewFeedSyncService creates a new feed synchronization service.
func NewFeedSyncService(
	api ReaderAPI,
	feedRepo repository.FeedRepository,
	quota *QuotaTracker,
	logger *slog.Logger,
) *FeedSyncService {
	if logger == nil {
		logger = slog.Default()
	}

	return &FeedSyncService{
		api:      api,
		feedRepo: feedRepo,
		quota:    quota,
		logger:   logger,
	}
}

// SyncFeeds fetches the remote subscription list and applies creates, updates
// and gated deletes to the local mirror. Per-feed failures are collected in
// the result; only the fetch itself and the local list query are fatal.
func (s *FeedSyncService) SyncFeeds(ctx context.Context) (*FeedSyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &FeedSyncResult{SyncTime: start}

	if allowed, reason := s.quota.CheckAllowed(models.QuotaZone1); !allowed {
		return nil, apperrors.NewRateLimitError(
			"subscription sync blocked by quota", "service", "feed_sync", "fetch_subscriptions", nil,
			map[string]interface{}{"zone": models.QuotaZone1, "reason": reason},
		)
	}

	list, headers, err := s.api.FetchSubscriptionList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription list: %w", err)
	}
	s.quota.UpdateFromHeaders(ctx, headers)

	local, err := s.feedRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load local feeds: %w", err)
	}

	s.logger.Info("starting feed sync",
		"remote_count", len(list.Subscriptions),
		"local_count", len(local))

	localByID := make(map[string]*models.Feed, len(local))
	for _, feed := range local {
		localByID[feed.InoreaderID] = feed
	}

	remoteIDs := make(map[string]bool, len(list.Subscriptions))
	for _, sub := range list.Subscriptions {
		remoteIDs[sub.ID] = true
		result.TotalProcessed++

		existing, ok := localByID[sub.ID]
		if !ok {
			if err := s.feedRepo.Create(ctx, models.NewFeedFromRemote(sub)); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("create %s: %v", sub.ID, err))
				continue
			}
			result.Created++
			continue
		}

		if !feedChanged(existing, sub) {
			continue
		}
		existing.UpdateFromRemote(sub)
		if err := s.feedRepo.Update(ctx, existing); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("update %s: %v", sub.ID, err))
			continue
		}
		result.Updated++
	}

	result.Cleanup = s.cleanupAbsentFeeds(ctx, local, remoteIDs)
	result.Deleted = result.Cleanup.Deleted
	result.Errors = append(result.Errors, result.Cleanup.Errors...)

	metrics.RecordFeeds("created", result.Created)
	metrics.RecordFeeds("updated", result.Updated)
	metrics.RecordFeeds("deleted", result.Deleted)

	result.Duration = time.Since(start)
	s.logger.Info("feed sync completed",
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"total_processed", result.TotalProcessed,
		"cleanup_aborted", result.Cleanup.Aborted,
		"errors", len(result.Errors),
		"duration", result.Duration)

	return result, nil
}

// cleanupAbsentFeeds deletes local feeds missing from the remote list. The
// pass refuses to delete more than half the mirror in one go: a subscription
// list that suddenly shrinks that much is a remote malfunction, not a mass
// unsubscribe.
func (s *FeedSyncService) cleanupAbsentFeeds(ctx context.Context, local []*models.Feed, remoteIDs map[string]bool) models.FeedCleanupResult {
	result := models.FeedCleanupResult{LocalFeeds: len(local)}

	var absent []string
	for _, feed := range local {
		if !remoteIDs[feed.InoreaderID] {
			absent = append(absent, feed.InoreaderID)
		}
	}
	result.Candidates = len(absent)

	if len(absent) == 0 {
		return result
	}

	if float64(len(absent)) > float64(len(local))*feedDeletionMaxShare {
		result.Aborted = true
		result.Errors = append(result.Errors, ErrFeedSafetyThreshold.Error())
		s.logger.Warn("refusing to delete absent feeds",
			"candidates", len(absent),
			"local_feeds", len(local),
			"max_share", feedDeletionMaxShare)
		return result
	}

	deleted, err := s.feedRepo.DeleteByInoreaderIDs(ctx, absent)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("delete absent feeds: %v", err))
		return result
	}
	result.Deleted = deleted

	return result
}

// feedChanged reports whether the remote entry differs from the local mirror.
func feedChanged(feed *models.Feed, sub models.RemoteSubscription) bool {
	category := ""
	if len(sub.Categories) > 0 {
		category = sub.Categories[0].Label
	}

	return feed.Title != sub.Title ||
		feed.URL != sub.URL ||
		feed.Category != category
}
