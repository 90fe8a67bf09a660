// ABOUTME: Drives background sync, feed refresh and retention on their own cadences
// ABOUTME: The sync interval adapts: errors stretch it, a success snaps it back to base

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reader-sync/models"
	"reader-sync/service"
)

// backoffMultiplier stretches the sync interval after a failed session.
const backoffMultiplier = 1.5

// SessionTrigger starts one background sync session. Implemented by
// service.Coordinator.
type SessionTrigger interface {
	RunBackground(ctx context.Context) (*models.SyncSession, error)
}

// FeedSyncer refreshes the local feed mirror from the remote subscription
// list. Implemented by service.FeedSyncService.
type FeedSyncer interface {
	SyncFeeds(ctx context.Context) (*service.FeedSyncResult, error)
}

// RetentionRunner executes one retention sweep. Implemented by
// service.RetentionService.
type RetentionRunner interface {
	Run(ctx context.Context, dryRun bool) (*models.CleanupResult, error)
}

// Scheduler owns the process-wide timers for unattended work. The sync timer
// is re-armed only after a session finishes, so the cadence is anchored to
// session completion and a slow session never stacks runs.
type Scheduler struct {
	trigger   SessionTrigger
	feeds     FeedSyncer
	retention RetentionRunner
	logger    *slog.Logger

	config          Config
	syncTimer       *time.Timer
	feedTicker      *time.Ticker
	retentionTicker *time.Ticker
	stopChan        chan struct{}
	isRunning       bool

	mu       sync.Mutex
	interval time.Duration
}

// Config holds the scheduler cadences.
type Config struct {
	SyncInterval      time.Duration // base delay between background sessions
	MaxSyncInterval   time.Duration // backoff ceiling after repeated failures
	FeedInterval      time.Duration // feed mirror refresh cadence
	RetentionInterval time.Duration // retention sweep cadence
	TickTimeout       time.Duration // per-operation timeout
}

// DefaultConfig returns the shipped cadences. Half-hourly sessions spend at
// most ~50 read calls a day against the free-tier quota of 100, leaving
// headroom for manual refreshes and the daily feed sync.
func DefaultConfig() Config {
	return Config{
		SyncInterval:      30 * time.Minute,
		MaxSyncInterval:   4 * time.Hour,
		FeedInterval:      24 * time.Hour,
		RetentionInterval: 24 * time.Hour,
		TickTimeout:       5 * time.Minute,
	}
}

// NewScheduler creates a scheduler over the given runners.
func NewScheduler(
	trigger SessionTrigger,
	feeds FeedSyncer,
	retention RetentionRunner,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		trigger:   trigger,
		feeds:     feeds,
		retention: retention,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the scheduling loop.
func (s *Scheduler) Start(cfg Config) {
	if s.isRunning {
		s.logger.Warn("scheduler already running")
		return
	}

	s.logger.Info("starting scheduler",
		"sync_interval", cfg.SyncInterval,
		"max_sync_interval", cfg.MaxSyncInterval,
		"feed_interval", cfg.FeedInterval,
		"retention_interval", cfg.RetentionInterval)

	s.config = cfg
	s.mu.Lock()
	s.interval = cfg.SyncInterval
	s.mu.Unlock()

	s.stopChan = make(chan struct{})
	s.syncTimer = time.NewTimer(cfg.SyncInterval)
	s.feedTicker = time.NewTicker(cfg.FeedInterval)
	s.retentionTicker = time.NewTicker(cfg.RetentionInterval)
	s.isRunning = true

	go s.runLoop()
}

// Stop halts the scheduling loop. In-flight operations run to completion.
func (s *Scheduler) Stop() {
	if !s.isRunning {
		return
	}

	s.logger.Info("stopping scheduler")
	close(s.stopChan)
	s.syncTimer.Stop()
	s.feedTicker.Stop()
	s.retentionTicker.Stop()
	s.isRunning = false
}

// CurrentInterval reports the adaptive sync interval, for the status surface.
func (s *Scheduler) CurrentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) runLoop() {
	for {
		select {
		case <-s.stopChan:
			return
		case <-s.syncTimer.C:
			s.runSync()
		case <-s.feedTicker.C:
			s.refreshFeeds()
		case <-s.retentionTicker.C:
			s.runRetention()
		}
	}
}

func (s *Scheduler) runSync() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.TickTimeout)
	session, err := s.trigger.RunBackground(ctx)
	cancel()

	next := s.nextInterval(err)

	switch {
	case errors.Is(err, service.ErrSyncAlreadyRunning):
		// A manual session holds the slot; not a failure.
		s.logger.Debug("background sync skipped", "next_run_in", next)
	case err != nil:
		s.logger.Error("background sync failed", "error", err, "next_run_in", next)
	default:
		s.logger.Info("background sync finished",
			"sync_id", session.ID,
			"status", session.Status,
			"new_articles", session.Metrics.NewArticles,
			"next_run_in", next)
	}

	s.syncTimer.Reset(next)
}

// nextInterval updates the adaptive interval from the last run's outcome: a
// success resets it to base, a busy run slot leaves it alone, a failure
// stretches it toward the ceiling.
func (s *Scheduler) nextInterval(err error) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.interval = s.config.SyncInterval
	case errors.Is(err, service.ErrSyncAlreadyRunning):
	default:
		s.interval = time.Duration(float64(s.interval) * backoffMultiplier)
		if s.config.MaxSyncInterval > 0 && s.interval > s.config.MaxSyncInterval {
			s.interval = s.config.MaxSyncInterval
		}
	}

	return s.interval
}

func (s *Scheduler) refreshFeeds() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.TickTimeout)
	defer cancel()

	result, err := s.feeds.SyncFeeds(ctx)
	if err != nil {
		s.logger.Error("scheduled feed sync failed", "error", err)
		return
	}

	s.logger.Info("scheduled feed sync finished",
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted)
}

func (s *Scheduler) runRetention() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.TickTimeout)
	defer cancel()

	result, err := s.retention.Run(ctx, false)
	if err != nil {
		s.logger.Error("scheduled retention sweep failed", "error", err)
		return
	}

	s.logger.Info("scheduled retention sweep finished",
		"deleted", result.Deleted,
		"cache_cleared", result.CacheCleared,
		"tombstones_expired", result.TombstonesExpired)
}
