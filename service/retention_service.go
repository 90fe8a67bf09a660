// ABOUTME: Retention service bounding local replica growth under a configurable policy
// ABOUTME: Tombstones are written in the same transaction as deletes so nothing resurrects

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reader-sync/metrics"
	"reader-sync/models"
	"reader-sync/repository"
)

// EligibleForDeletion reports whether one article may be deleted under the
// policy at the given instant. Age is measured from published_at, falling
// back to the local creation time for articles whose feed supplied none.
func EligibleForDeletion(article *models.Article, policy models.RetentionPolicy, now time.Time) bool {
	if article == nil {
		return false
	}

	age := article.Age(now)
	day := 24 * time.Hour

	// Recent articles are untouchable regardless of state.
	if age <= time.Duration(policy.PreserveRecentDays)*day {
		return false
	}

	if article.IsStarred {
		if policy.StarredArticlesDays == models.StarredKeepForever {
			return false
		}
		return age > time.Duration(policy.StarredArticlesDays)*day
	}

	if article.IsRead {
		return age > time.Duration(policy.ReadArticlesDays)*day
	}

	return age > time.Duration(policy.UnreadArticlesDays)*day
}

// RetentionService deletes aged articles in fixed-size batches, expires the
// full-content cache and prunes old tombstones.
type RetentionService struct {
	policy        models.RetentionPolicy
	articleRepo   repository.ArticleRepository
	tombstoneRepo repository.TombstoneRepository
	logger        *slog.Logger
}

// NewRetentionService creates a retention service after validating the policy.
func NewRetentionService(
	policy models.RetentionPolicy,
	articleRepo repository.ArticleRepository,
	tombstoneRepo repository.TombstoneRepository,
	logger *slog.Logger,
) (*RetentionService, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retention policy: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RetentionService{
		policy:        policy,
		articleRepo:   articleRepo,
		tombstoneRepo: tombstoneRepo,
		logger:        logger,
	}, nil
}

// Policy returns the active retention policy.
func (s *RetentionService) Policy() models.RetentionPolicy {
	return s.policy
}

// Run executes one retention pass. Batch failures are collected, never fatal:
// the cursor has already advanced, so the next batch proceeds regardless.
// With dryRun (or the policy's own dry_run flag) eligible rows are counted
// but nothing is mutated.
func (s *RetentionService) Run(ctx context.Context, dryRun bool) (*models.CleanupResult, error) {
	start := time.Now()
	dryRun = dryRun || s.policy.DryRun

	result := &models.CleanupResult{DryRun: dryRun}

	if !s.policy.Enabled {
		s.logger.Info("retention disabled by policy, skipping run")
		return result, nil
	}

	s.logger.Info("starting retention run",
		"dry_run", dryRun,
		"batch_size", s.policy.BatchSize,
		"read_days", s.policy.ReadArticlesDays,
		"unread_days", s.policy.UnreadArticlesDays,
		"starred_days", s.policy.StarredArticlesDays)

	s.purgeAgedArticles(ctx, result, start)

	if !dryRun {
		s.clearExpiredCache(ctx, result, start)
		s.expireTombstones(ctx, result, start)
	}

	result.Duration = time.Since(start)

	s.logger.Info("retention run finished",
		"processed", result.Processed,
		"deleted", result.Deleted,
		"cache_cleared", result.CacheCleared,
		"tombstones_expired", result.TombstonesExpired,
		"batches", result.Batches,
		"errors", len(result.Errors),
		"dry_run", dryRun,
		"duration", result.Duration)

	return result, nil
}

// purgeAgedArticles walks deletion candidates in keyset-paged batches.
func (s *RetentionService) purgeAgedArticles(ctx context.Context, result *models.CleanupResult, now time.Time) {
	day := 24 * time.Hour
	publishedBefore := now.Add(-time.Duration(s.policy.PreserveRecentDays) * day)

	afterPublished := time.Time{}
	afterID := uuid.Nil

	for {
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, fmt.Sprintf("retention interrupted: %v", ctx.Err()))
			return
		default:
		}

		candidates, err := s.articleRepo.FindCandidatesOlderThan(ctx, publishedBefore, afterPublished, afterID, s.policy.BatchSize)
		if err != nil {
			// A failing candidate query would loop forever; stop the walk here.
			result.Errors = append(result.Errors, fmt.Sprintf("candidate query failed: %v", err))
			return
		}
		if len(candidates) == 0 {
			return
		}

		last := candidates[len(candidates)-1]
		afterPublished = last.AgeBasis()
		afterID = last.ID

		result.Batches++
		result.Processed += len(candidates)

		eligible := make([]*models.Article, 0, len(candidates))
		for _, candidate := range candidates {
			if EligibleForDeletion(candidate, s.policy, now) {
				eligible = append(eligible, candidate)
			}
		}

		if len(eligible) == 0 {
			if len(candidates) < s.policy.BatchSize {
				return
			}
			continue
		}

		if result.DryRun {
			result.Deleted += len(eligible)
		} else {
			deleted, err := s.articleRepo.PurgeWithTombstones(ctx, eligible, now)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("batch purge failed: %v", err))
			} else {
				result.Deleted += deleted
				metrics.RecordRetentionDeleted("articles", deleted)
			}
		}

		if len(candidates) < s.policy.BatchSize {
			return
		}
	}
}

// clearExpiredCache drops cached full content past the cache window. The
// articles themselves stay.
func (s *RetentionService) clearExpiredCache(ctx context.Context, result *models.CleanupResult, now time.Time) {
	if s.policy.FullContentCacheDays <= 0 {
		return
	}

	extractedBefore := now.Add(-time.Duration(s.policy.FullContentCacheDays) * 24 * time.Hour)

	cleared, err := s.articleRepo.ClearExpiredFullContent(ctx, extractedBefore)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("cache clear failed: %v", err))
		return
	}

	result.CacheCleared = cleared
	metrics.RecordRetentionDeleted("full_content", cleared)
}

// expireTombstones prunes tombstones old enough that the remote can no
// longer re-deliver their articles.
func (s *RetentionService) expireTombstones(ctx context.Context, result *models.CleanupResult, now time.Time) {
	if s.policy.TombstoneRetentionDays <= 0 {
		return
	}

	deletedBefore := now.Add(-time.Duration(s.policy.TombstoneRetentionDays) * 24 * time.Hour)

	expired, err := s.tombstoneRepo.DeleteExpired(ctx, deletedBefore)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("tombstone expiry failed: %v", err))
		return
	}

	result.TombstonesExpired = expired
	metrics.RecordRetentionDeleted("tombstones", expired)
}
