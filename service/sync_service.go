// ABOUTME: Sync session engine pulling remote deltas and reconciling them into the replica
// ABOUTME: Pushes pending local read/starred edits to the remote before pulling

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"reader-sync/metrics"
	"reader-sync/models"
	"reader-sync/repository"
	"reader-sync/utils"
	apperrors "reader-sync/utils/errors"
)

// SyncConfig holds the per-session tuning knobs.
type SyncConfig struct {
	StreamID             string        // remote stream pulled each session
	PageSize             int           // articles requested per page
	MaxPages             int           // hard page cap per session
	WriteBackLimit       int           // max pending local edits pushed per session
	EditBatchSize        int           // article ids per edit-tag call
	MaxExtractPerSession int           // full-content extractions per background session
	RetryMaxAttempts     int           // attempts per remote call
	RetryBaseDelay       time.Duration // backoff base between attempts
}

// DefaultSyncConfig returns the shipped session defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		StreamID:             models.StreamReadingList,
		PageSize:             100,
		MaxPages:             5,
		WriteBackLimit:       200,
		EditBatchSize:        50,
		MaxExtractPerSession: 10,
		RetryMaxAttempts:     3,
		RetryBaseDelay:       2 * time.Second,
	}
}

// SyncService executes one sync session end to end: push pending local edits,
// pull remote pages, reconcile every item against the replica, persist the
// conflict log. It holds no session state between runs; the coordinator
// serializes invocations.
type SyncService struct {
	config        SyncConfig
	api           ReaderAPI
	articleRepo   repository.ArticleRepository
	feedRepo      repository.FeedRepository
	tombstoneRepo repository.TombstoneRepository
	conflictRepo  repository.ConflictRepository
	detector      *ConflictDetector
	quota         *QuotaTracker
	breaker       *utils.CircuitBreaker
	retrier       *apperrors.RetryExecutor
	extraction    *ExtractionService
	sanitizer     *utils.Sanitizer
	logger        *slog.Logger
}

// NewSyncService creates the session engine. breaker and extraction may be
// nil: a nil breaker disables circuit breaking, a nil extraction service
// disables background full-content enrichment.
func NewSyncService(
	config SyncConfig,
	api ReaderAPI,
	articleRepo repository.ArticleRepository,
	feedRepo repository.FeedRepository,
	tombstoneRepo repository.TombstoneRepository,
	conflictRepo repository.ConflictRepository,
	detector *ConflictDetector,
	quota *QuotaTracker,
	breaker *utils.CircuitBreaker,
	extraction *ExtractionService,
	logger *slog.Logger,
) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	if config.EditBatchSize <= 0 {
		config.EditBatchSize = DefaultSyncConfig().EditBatchSize
	}

	// Rate limits are excluded from retries: the zone quotas reset on a
	// scale of hours, so retrying inside a session only burns more calls.
	policy := apperrors.NewRetryPolicy(config.RetryMaxAttempts, config.RetryBaseDelay)
	policy.RetryableCodes = []string{apperrors.CodeNetwork, apperrors.CodeServerError, apperrors.CodeTimeout}

	return &SyncService{
		config:        config,
		api:           api,
		articleRepo:   articleRepo,
		feedRepo:      feedRepo,
		tombstoneRepo: tombstoneRepo,
		conflictRepo:  conflictRepo,
		detector:      detector,
		quota:         quota,
		breaker:       breaker,
		retrier:       apperrors.NewRetryExecutor(policy),
		extraction:    extraction,
		sanitizer:     utils.NewSanitizer(),
		logger:        logger,
	}
}

// syncRun carries the mutable state of one session through its phases.
type syncRun struct {
	session    *models.SyncSession
	tally      *models.ConflictTally
	feeds      map[string]uuid.UUID
	feedMisses map[string]bool
	labels     map[string]bool
	newOnes    []*models.Article
	suppressed int
	pages      int
	partial    bool
	fatal      error
	pushErr    error
}

// Run executes one session. The returned session is always non-nil and
// terminal; the error is non-nil only when the session failed outright (no
// page reconciled).
func (s *SyncService) Run(ctx context.Context, kind models.SyncKind) (*models.SyncSession, error) {
	start := time.Now()

	run := &syncRun{
		session:    models.NewSyncSession(kind, start),
		tally:      models.NewConflictTally(),
		feedMisses: make(map[string]bool),
		labels:     make(map[string]bool),
	}

	s.logger.Info("starting sync session",
		"sync_id", run.session.ID,
		"kind", kind,
		"stream", s.config.StreamID)

	feeds, err := s.feedRepo.GetAll(ctx)
	if err != nil {
		return s.finish(run, fmt.Errorf("failed to load feed mirror: %w", err))
	}
	run.feeds = make(map[string]uuid.UUID, len(feeds))
	for _, feed := range feeds {
		run.feeds[feed.InoreaderID] = feed.ID
	}

	s.pushLocalChanges(ctx, run)
	s.pullPages(ctx, run)

	if len(run.session.Conflicts) > 0 {
		if err := s.conflictRepo.InsertBatch(ctx, run.session.Conflicts); err != nil {
			run.partial = true
			s.logger.Error("failed to persist conflict log",
				"sync_id", run.session.ID,
				"conflicts", len(run.session.Conflicts),
				"error", err)
		}
	}

	if kind == models.SyncKindBackground && s.extraction != nil && len(run.newOnes) > 0 {
		batch := run.newOnes
		if len(batch) > s.config.MaxExtractPerSession {
			batch = batch[:s.config.MaxExtractPerSession]
		}
		extracted := s.extraction.ExtractBatch(ctx, batch)
		s.logger.Info("session extraction finished",
			"sync_id", run.session.ID,
			"attempted", extracted.Attempted,
			"extracted", extracted.Extracted,
			"failed", extracted.Failed)
	}

	return s.finish(run, nil)
}

// finish stamps the terminal status, records metrics and logs the summary.
func (s *SyncService) finish(run *syncRun, fatal error) (*models.SyncSession, error) {
	if fatal == nil {
		fatal = run.fatal
	}

	now := time.Now()
	status := models.SyncStatusCompleted
	switch {
	case fatal != nil:
		status = models.SyncStatusFailed
	case run.partial:
		status = models.SyncStatusPartial
	}

	run.session.Metrics.NewTags = len(run.labels)
	run.session.Metrics.DeletedArticles = run.suppressed
	run.session.Finish(status, now)

	metrics.RecordSession(string(run.session.Kind), string(status), run.session.Duration(now).Seconds())

	s.logger.Info("sync session finished",
		"sync_id", run.session.ID,
		"kind", run.session.Kind,
		"status", status,
		"pages", run.pages,
		"new_articles", run.session.Metrics.NewArticles,
		"updated_articles", run.session.Metrics.UpdatedArticles,
		"suppressed_tombstoned", run.suppressed,
		"conflicts", run.tally.Total,
		"failed_feeds", run.session.Metrics.FailedFeeds,
		"duration", run.session.Duration(now))

	if fatal != nil {
		s.logger.Error("sync session failed", "sync_id", run.session.ID, "error", fatal)
		return run.session, fatal
	}
	return run.session, nil
}

// callRemote runs one remote operation under retry with the breaker inside,
// so every attempt counts toward the breaker's failure threshold.
func (s *SyncService) callRemote(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := s.retrier.Execute(ctx, func(ctx context.Context) error {
		if s.breaker == nil {
			return op(ctx)
		}
		return s.breaker.Execute(ctx, op)
	})
	return err
}

// editOp is one edit-tag call shape: at most one tag added and one removed.
type editOp struct {
	add    string
	remove string
}

// opsFor maps an article's local flags to the edit-tag calls that make the
// remote side match them.
func opsFor(article *models.Article) []editOp {
	switch {
	case article.IsRead && article.IsStarred:
		return []editOp{{add: models.CategoryRead}, {add: models.CategoryStarred}}
	case article.IsRead:
		return []editOp{{add: models.CategoryRead, remove: models.CategoryStarred}}
	case article.IsStarred:
		return []editOp{{add: models.CategoryStarred, remove: models.CategoryRead}}
	default:
		return []editOp{{remove: models.CategoryRead}, {remove: models.CategoryStarred}}
	}
}

// pushLocalChanges sends pending local read/starred edits to the remote edit
// endpoint. Articles are grouped by flag combination; a group's articles get
// their sync timestamp stamped only after every call for the group succeeded,
// so a half-pushed article stays pending. Write-back is best effort: failures
// degrade the session to partial but never abort the pull.
func (s *SyncService) pushLocalChanges(ctx context.Context, run *syncRun) {
	if allowed, reason := s.quota.CheckAllowed(models.QuotaZone2); !allowed {
		s.logger.Info("skipping local edit write-back",
			"sync_id", run.session.ID,
			"reason", reason)
		return
	}

	pending, err := s.articleRepo.FindPendingLocalChanges(ctx, s.config.WriteBackLimit)
	if err != nil {
		run.partial = true
		s.logger.Error("failed to load pending local changes", "sync_id", run.session.ID, "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	groups := make(map[[2]bool][]*models.Article)
	for _, article := range pending {
		key := [2]bool{article.IsRead, article.IsStarred}
		groups[key] = append(groups[key], article)
	}

	pushed := 0
	for _, articles := range groups {
		ops := opsFor(articles[0])

		for start := 0; start < len(articles); start += s.config.EditBatchSize {
			end := start + s.config.EditBatchSize
			if end > len(articles) {
				end = len(articles)
			}
			chunk := articles[start:end]

			ids := make([]string, len(chunk))
			for i, article := range chunk {
				ids[i] = article.InoreaderID
			}

			if !s.pushChunk(ctx, run, ids, ops) {
				if apperrors.CodeOf(run.pushErr) == apperrors.CodeRateLimit {
					s.logger.Warn("write-back stopped by remote rate limit", "sync_id", run.session.ID)
					return
				}
				continue
			}

			now := time.Now()
			for _, article := range chunk {
				if err := s.articleRepo.ApplyRemoteState(ctx, article.InoreaderID, article.IsRead, article.IsStarred, now); err != nil {
					run.partial = true
					s.logger.Error("failed to clear pending flag after push",
						"inoreader_id", article.InoreaderID,
						"error", err)
					continue
				}
				pushed++
			}
		}
	}

	s.logger.Info("local edit write-back finished",
		"sync_id", run.session.ID,
		"pending", len(pending),
		"pushed", pushed)
}

// pushChunk issues every edit-tag call one chunk of articles needs. Reports
// false when any call failed after retries.
func (s *SyncService) pushChunk(ctx context.Context, run *syncRun, ids []string, ops []editOp) bool {
	for _, op := range ops {
		err := s.callRemote(ctx, func(ctx context.Context) error {
			headers, err := s.api.EditTags(ctx, ids, op.add, op.remove)
			s.quota.UpdateFromHeaders(ctx, headers)
			return err
		})
		if err != nil {
			run.partial = true
			run.pushErr = err
			s.logger.Error("edit-tag write-back failed",
				"sync_id", run.session.ID,
				"items", len(ids),
				"add", op.add,
				"remove", op.remove,
				"error", err)
			return false
		}
	}
	return true
}

// pullPages walks the stream with continuation tokens, reconciling page by
// page until the stream is exhausted, the page cap is hit, or the quota
// tracker blocks further reads.
func (s *SyncService) pullPages(ctx context.Context, run *syncRun) {
	continuation := ""

	for page := 0; page < s.config.MaxPages; page++ {
		if allowed, reason := s.quota.CheckAllowed(models.QuotaZone1); !allowed {
			if run.pages == 0 {
				run.fatal = apperrors.NewRateLimitError(
					"sync blocked by quota before the first page", "service", "sync", "fetch_stream", nil,
					map[string]interface{}{"zone": models.QuotaZone1, "reason": reason})
			} else {
				run.partial = true
				s.logger.Warn("stopping pull on quota",
					"sync_id", run.session.ID,
					"pages", run.pages,
					"reason", reason)
			}
			return
		}

		var resp *models.StreamContentsResponse
		err := s.callRemote(ctx, func(ctx context.Context) error {
			contents, headers, err := s.api.FetchStreamContents(ctx, s.config.StreamID, continuation, s.config.PageSize)
			s.quota.UpdateFromHeaders(ctx, headers)
			if err != nil {
				return err
			}
			resp = contents
			return nil
		})
		if err != nil {
			if run.pages == 0 {
				run.fatal = fmt.Errorf("failed to fetch stream page: %w", err)
			} else {
				run.partial = true
				s.logger.Error("abandoning remaining pages",
					"sync_id", run.session.ID,
					"pages", run.pages,
					"error", err)
			}
			return
		}

		run.pages++
		s.reconcilePage(ctx, run, resp.Items)

		continuation = resp.Continuation
		if continuation == "" {
			return
		}
	}
}

// reconcilePage applies one page of remote snapshots to the replica:
// tombstoned ids are suppressed, known articles converge to the remote state
// (logging a conflict when local pending edits disagree), unknown articles are
// created in one batch upsert.
func (s *SyncService) reconcilePage(ctx context.Context, run *syncRun, items []models.StreamItem) {
	if len(items) == 0 {
		return
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	tombstoned, err := s.tombstoneRepo.ExistsByInoreaderIDs(ctx, ids)
	if err != nil {
		run.partial = true
		tombstoned = map[string]bool{}
		s.logger.Error("tombstone lookup failed, treating page as live",
			"sync_id", run.session.ID,
			"error", err)
	}

	existing, err := s.articleRepo.FindByInoreaderIDs(ctx, ids)
	if err != nil {
		// Without local state the page cannot be reconciled safely; a blind
		// upsert would overwrite local flags.
		run.partial = true
		s.logger.Error("skipping page, local lookup failed",
			"sync_id", run.session.ID,
			"items", len(items),
			"error", err)
		return
	}

	now := time.Now()
	var created []*models.Article

	for _, item := range items {
		if tombstoned[item.ID] {
			run.suppressed++
			continue
		}

		local, seen := existing[item.ID]
		if !seen {
			feedID, ok := s.resolveFeed(ctx, run, item.Origin, now)
			if !ok {
				continue
			}
			created = append(created, s.newLocalArticle(item, feedID, now))
			for _, category := range item.Categories {
				if strings.Contains(category, "/label/") {
					run.labels[category] = true
				}
			}
			continue
		}

		remote := models.StateSnapshot{IsRead: item.IsRead(), IsStarred: item.IsStarred()}

		if conflict, ok := s.detector.Detect(run.session.ID, local, &remote, now); ok {
			run.session.Conflicts = append(run.session.Conflicts, *conflict)
			run.tally.Record(*conflict)
		}

		// Write only when something converges: a differing state or a pending
		// local edit whose sync stamp needs clearing.
		if !s.detector.StatesDiffer(local, remote) && !s.detector.HasLocalChanges(local) {
			continue
		}

		if err := s.articleRepo.ApplyRemoteState(ctx, item.ID, remote.IsRead, remote.IsStarred, now); err != nil {
			run.partial = true
			s.logger.Error("failed to apply remote state",
				"inoreader_id", item.ID,
				"error", err)
			continue
		}
		run.session.Metrics.UpdatedArticles++
	}

	if len(created) == 0 {
		return
	}

	count, err := s.articleRepo.UpsertBatch(ctx, created)
	if err != nil {
		run.partial = true
		s.logger.Error("failed to insert new articles",
			"sync_id", run.session.ID,
			"articles", len(created),
			"error", err)
		return
	}

	run.session.Metrics.NewArticles += count
	run.newOnes = append(run.newOnes, created...)
	metrics.RecordArticles("upserted", count)
}

// newLocalArticle builds the stored form of a remote item. The body is
// sanitized and the article URL normalized so repeated syncs of the same
// article converge on one representation.
func (s *SyncService) newLocalArticle(item models.StreamItem, feedID uuid.UUID, now time.Time) *models.Article {
	article := models.NewArticleFromRemote(item, feedID, now)
	article.Body = s.sanitizer.SanitizeAndTrim(article.Body)

	if article.ArticleURL != "" {
		if normalized, err := utils.NormalizeURL(article.ArticleURL); err == nil {
			article.ArticleURL = normalized
		}
	}

	return article
}

// resolveFeed maps an item's origin stream to a local feed id, creating the
// feed on first sight. A failed create is remembered for the session so one
// broken feed costs a single attempt.
func (s *SyncService) resolveFeed(ctx context.Context, run *syncRun, origin models.StreamOrigin, now time.Time) (uuid.UUID, bool) {
	if id, ok := run.feeds[origin.StreamID]; ok {
		return id, true
	}
	if run.feedMisses[origin.StreamID] {
		return uuid.Nil, false
	}

	feed := &models.Feed{
		ID:          uuid.New(),
		InoreaderID: origin.StreamID,
		Title:       origin.Title,
		URL:         origin.HTMLURL,
		SyncedAt:    now,
		CreatedAt:   now,
	}
	if err := s.feedRepo.Create(ctx, feed); err != nil {
		run.feedMisses[origin.StreamID] = true
		run.session.Metrics.FailedFeeds++
		s.logger.Error("failed to create feed for incoming article",
			"stream_id", origin.StreamID,
			"error", err)
		return uuid.Nil, false
	}

	run.feeds[origin.StreamID] = feed.ID
	metrics.RecordFeeds("created", 1)
	return feed.ID, true
}
