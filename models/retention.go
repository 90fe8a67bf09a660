// ABOUTME: This file defines the retention policy knobs and cleanup result envelope
// ABOUTME: starred_articles_days of -1 means starred articles are never deleted

package models

import (
	"fmt"
	"time"
)

// StarredKeepForever disables age-based deletion of starred articles.
const StarredKeepForever = -1

// RetentionPolicy holds the cleanup configuration consumed by the retention
// service. Day values bound article age from published_at; the cache value
// bounds age from extracted_at.
type RetentionPolicy struct {
	ReadArticlesDays       int  `json:"read_articles_days"`
	UnreadArticlesDays     int  `json:"unread_articles_days"`
	StarredArticlesDays    int  `json:"starred_articles_days"`
	FullContentCacheDays   int  `json:"full_content_cache_days"`
	TombstoneRetentionDays int  `json:"tombstone_retention_days"`
	BatchSize              int  `json:"batch_size"`
	PreserveRecentDays     int  `json:"preserve_recent_days"`
	Enabled                bool `json:"enabled"`
	DryRun                 bool `json:"dry_run"`
}

// DefaultRetentionPolicy returns the shipped defaults.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		ReadArticlesDays:       30,
		UnreadArticlesDays:     90,
		StarredArticlesDays:    StarredKeepForever,
		FullContentCacheDays:   14,
		TombstoneRetentionDays: 90,
		BatchSize:              1000,
		PreserveRecentDays:     3,
		Enabled:                true,
		DryRun:                 false,
	}
}

// Validate checks the policy bounds.
func (p RetentionPolicy) Validate() error {
	if p.ReadArticlesDays < 0 {
		return fmt.Errorf("read_articles_days must be >= 0, got %d", p.ReadArticlesDays)
	}
	if p.UnreadArticlesDays < 0 {
		return fmt.Errorf("unread_articles_days must be >= 0, got %d", p.UnreadArticlesDays)
	}
	if p.StarredArticlesDays < StarredKeepForever {
		return fmt.Errorf("starred_articles_days must be >= -1, got %d", p.StarredArticlesDays)
	}
	if p.FullContentCacheDays < 0 {
		return fmt.Errorf("full_content_cache_days must be >= 0, got %d", p.FullContentCacheDays)
	}
	if p.TombstoneRetentionDays < 0 {
		return fmt.Errorf("tombstone_retention_days must be >= 0, got %d", p.TombstoneRetentionDays)
	}
	if p.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0, got %d", p.BatchSize)
	}
	if p.PreserveRecentDays < 0 {
		return fmt.Errorf("preserve_recent_days must be >= 0, got %d", p.PreserveRecentDays)
	}
	return nil
}

// CleanupResult aggregates one retention run.
type CleanupResult struct {
	Processed         int           `json:"processed"`
	Deleted           int           `json:"deleted"`
	CacheCleared      int           `json:"cache_cleared"`
	TombstonesExpired int           `json:"tombstones_expired"`
	Batches           int           `json:"batches"`
	DryRun            bool          `json:"dry_run"`
	Duration          time.Duration `json:"duration"`
	Errors            []string      `json:"errors,omitempty"`
}

// FeedCleanupResult aggregates one feed cleanup pass.
type FeedCleanupResult struct {
	LocalFeeds int      `json:"local_feeds"`
	Candidates int      `json:"candidates"`
	Deleted    int      `json:"deleted"`
	Aborted    bool     `json:"aborted"`
	Errors     []string `json:"errors,omitempty"`
}
