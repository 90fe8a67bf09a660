// ABOUTME: Best-effort full-content extraction for article pages
// ABOUTME: Robots-gated and host-rate-limited; every failure falls back to the feed body

package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/errgroup"

	"reader-sync/metrics"
	"reader-sync/models"
	"reader-sync/repository"
	"reader-sync/utils"
	apperrors "reader-sync/utils/errors"
	"reader-sync/utils/html_extract"
)

// Extraction outcome labels recorded per attempt.
const (
	extractionOutcomeExtracted   = "extracted"
	extractionOutcomeCacheHit    = "cache_hit"
	extractionOutcomeNegativeHit = "negative_hit"
	extractionOutcomeRobotsDeny  = "robots_denied"
	extractionOutcomeRobotsError = "robots_error"
	extractionOutcomeFetchFailed = "fetch_failed"
	extractionOutcomeTooShort    = "too_short"
	extractionOutcomeSkipped     = "skipped"
)

// PageSource abstracts the driver fetching article pages and robots policies.
type PageSource interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
	FetchRobots(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error)
}

// ExtractionConfig holds the extraction pipeline knobs.
type ExtractionConfig struct {
	PerArticleTimeout time.Duration `json:"per_article_timeout"` // whole pipeline budget per article
	HostInterval      time.Duration `json:"host_interval"`       // politeness spacing per origin host
	BatchConcurrency  int           `json:"batch_concurrency"`
	MaxAttempts       int           `json:"max_attempts"`
	RetryBaseDelay    time.Duration `json:"retry_base_delay"`
	RobotsCacheSize   int           `json:"robots_cache_size"`
	RobotsCacheTTL    time.Duration `json:"robots_cache_ttl"`
	ResultCacheSize   int           `json:"result_cache_size"`
	FailureCacheSize  int           `json:"failure_cache_size"`
	FailureCacheTTL   time.Duration `json:"failure_cache_ttl"`
	UserAgent         string        `json:"user_agent"`
}

// DefaultExtractionConfig returns the shipped extraction defaults.
func DefaultExtractionConfig() *ExtractionConfig {
	return &ExtractionConfig{
		PerArticleTimeout: 30 * time.Second,
		HostInterval:      2 * time.Second,
		BatchConcurrency:  4,
		MaxAttempts:       3,
		RetryBaseDelay:    500 * time.Millisecond,
		RobotsCacheSize:   512,
		RobotsCacheTTL:    24 * time.Hour,
		ResultCacheSize:   256,
		FailureCacheSize:  1024,
		FailureCacheTTL:   time.Hour,
		UserAgent:         "reader-sync/1.0",
	}
}

// ExtractionRunResult aggregates one extraction batch.
type ExtractionRunResult struct {
	Attempted int `json:"attempted"`
	Extracted int `json:"extracted"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ExtractionService turns article URLs into cached readable content. It is an
// enhancement layer: every path out of it yields something renderable, the
// extracted page when possible and the original feed body otherwise.
type ExtractionService struct {
	config      *ExtractionConfig
	pages       PageSource
	articleRepo repository.ArticleRepository
	breaker     *utils.CircuitBreaker
	retrier     *apperrors.RetryExecutor
	hostLimiter *utils.HostRateLimiter
	logger      *slog.Logger

	robotsCache  *expirable.LRU[string, *robotstxt.RobotsData]
	resultCache  *expirable.LRU[string, string]
	failureCache *expirable.LRU[string, string]
}

// NewExtractionService creates the extraction pipeline. The breaker is the
// injected per-process extraction breaker; pass nil to run without one.
func NewExtractionService(
	config *ExtractionConfig,
	pages PageSource,
	articleRepo repository.ArticleRepository,
	breaker *utils.CircuitBreaker,
	logger *slog.Logger,
) *ExtractionService {
	if config == nil {
		config = DefaultExtractionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ExtractionService{
		config:       config,
		pages:        pages,
		articleRepo:  articleRepo,
		breaker:      breaker,
		retrier:      apperrors.NewRetryExecutor(apperrors.NewRetryPolicy(config.MaxAttempts, config.RetryBaseDelay)),
		hostLimiter:  utils.NewHostRateLimiter(config.HostInterval),
		logger:       logger,
		robotsCache:  expirable.NewLRU[string, *robotstxt.RobotsData](config.RobotsCacheSize, nil, config.RobotsCacheTTL),
		resultCache:  expirable.NewLRU[string, string](config.ResultCacheSize, nil, 0),
		failureCache: expirable.NewLRU[string, string](config.FailureCacheSize, nil, config.FailureCacheTTL),
	}
}

// ExtractAndStore attempts full-content extraction for one article and
// persists the result. It always returns renderable content: the extracted
// page on success, the original feed body on any failure. The boolean
// reports whether the returned content is extracted full content.
func (s *ExtractionService) ExtractAndStore(ctx context.Context, article *models.Article) (string, bool) {
	if article == nil {
		metrics.RecordExtraction(extractionOutcomeSkipped)
		return "", false
	}
	if article.ArticleURL == "" {
		metrics.RecordExtraction(extractionOutcomeSkipped)
		return article.Body, false
	}

	if article.HasFullContent && article.FullContent != "" {
		metrics.RecordExtraction(extractionOutcomeCacheHit)
		return article.FullContent, true
	}

	if cached, ok := s.resultCache.Get(article.ArticleURL); ok {
		metrics.RecordExtraction(extractionOutcomeCacheHit)
		return cached, true
	}

	if reason, ok := s.failureCache.Get(article.ArticleURL); ok {
		s.logger.Debug("extraction negative cache hit",
			"url", article.ArticleURL,
			"reason", reason)
		metrics.RecordExtraction(extractionOutcomeNegativeHit)
		return article.Body, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.PerArticleTimeout)
	defer cancel()

	content, outcome := s.extract(ctx, article)
	metrics.RecordExtraction(outcome)

	if outcome != extractionOutcomeExtracted {
		s.failureCache.Add(article.ArticleURL, outcome)
		return article.Body, false
	}

	s.resultCache.Add(article.ArticleURL, content)

	extractedAt := time.Now()
	if err := s.articleRepo.SaveFullContent(ctx, article.InoreaderID, content, extractedAt); err != nil {
		// The reader still gets the extracted page; only the cache write is lost.
		s.logger.Warn("failed to persist extracted content",
			"inoreader_id", article.InoreaderID,
			"error", err)
	} else {
		article.FullContent = content
		article.HasFullContent = true
		article.ExtractedAt = &extractedAt
	}

	return content, true
}

// ExtractBatch runs ExtractAndStore over a slice of articles with bounded
// fan-out, stopping early when the context is done. Same-host articles are
// still spaced out by the host limiter.
func (s *ExtractionService) ExtractBatch(ctx context.Context, articles []*models.Article) ExtractionRunResult {
	var mu sync.Mutex
	result := ExtractionRunResult{}

	limit := s.config.BatchConcurrency
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, article := range articles {
		if gctx.Err() != nil {
			break
		}

		if article == nil || article.ArticleURL == "" {
			result.Skipped++
			continue
		}

		g.Go(func() error {
			_, ok := s.ExtractAndStore(gctx, article)

			mu.Lock()
			defer mu.Unlock()
			result.Attempted++
			if ok {
				result.Extracted++
			} else {
				result.Failed++
			}
			return nil
		})
	}

	_ = g.Wait()
	return result
}

// extract runs the gated fetch-and-parse pipeline for one article.
func (s *ExtractionService) extract(ctx context.Context, article *models.Article) (string, string) {
	parsed, err := url.Parse(article.ArticleURL)
	if err != nil || parsed.Host == "" {
		s.logger.Debug("unusable article url", "url", article.ArticleURL, "error", err)
		return "", extractionOutcomeSkipped
	}

	allowed, outcome := s.robotsAllow(ctx, parsed)
	if !allowed {
		return "", outcome
	}

	if err := s.hostLimiter.WaitForHost(ctx, article.ArticleURL); err != nil {
		s.logger.Debug("host limiter wait aborted", "host", parsed.Host, "error", err)
		return "", extractionOutcomeFetchFailed
	}

	var page string
	fetch := func(ctx context.Context) error {
		var fetchErr error
		page, fetchErr = s.pages.FetchPage(ctx, article.ArticleURL)
		return fetchErr
	}

	var attempt func(ctx context.Context) error
	if s.breaker != nil {
		attempt = func(ctx context.Context) error {
			return s.breaker.Execute(ctx, fetch)
		}
	} else {
		attempt = fetch
	}

	retryResult, err := s.retrier.Execute(ctx, attempt)
	if err != nil {
		s.logger.Info("article page fetch failed",
			"url", article.ArticleURL,
			"attempts", retryResult.Attempts,
			"error", err)
		return "", extractionOutcomeFetchFailed
	}

	content := html_extract.ExtractArticleHTML(page)
	if content == "" {
		s.logger.Debug("extraction produced no usable content",
			"url", article.ArticleURL,
			"page_bytes", len(page))
		return "", extractionOutcomeTooShort
	}

	return content, extractionOutcomeExtracted
}

// robotsAllow checks the origin's robots policy for the article path,
// caching the parsed policy per host. Robots failures fall closed: a page is
// only fetched when the origin demonstrably permits it.
func (s *ExtractionService) robotsAllow(ctx context.Context, pageURL *url.URL) (bool, string) {
	cacheKey := fmt.Sprintf("%s://%s", pageURL.Scheme, pageURL.Host)

	robots, ok := s.robotsCache.Get(cacheKey)
	if !ok {
		var err error
		robots, err = s.pages.FetchRobots(ctx, pageURL.Scheme, pageURL.Host)
		if err != nil {
			s.logger.Debug("robots fetch failed", "host", pageURL.Host, "error", err)
			return false, extractionOutcomeRobotsError
		}
		s.robotsCache.Add(cacheKey, robots)
	}

	group := robots.FindGroup(s.config.UserAgent)
	if !group.Test(pageURL.Path) {
		s.logger.Debug("robots policy denies path",
			"host", pageURL.Host,
			"path", pageURL.Path)
		return false, extractionOutcomeRobotsDeny
	}

	return true, ""
}
