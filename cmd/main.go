// ABOUTME: This file wires configuration, storage, the sync engine and the HTTP surface
// ABOUTME: A -health-check flag probes the running instance for container probes

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"reader-sync/config"
	"reader-sync/driver"
	"reader-sync/handler"
	"reader-sync/models"
	"reader-sync/repository"
	"reader-sync/security"
	"reader-sync/service"
	"reader-sync/service/scheduler"
	"reader-sync/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
)

func main() {
	healthCheck := flag.Bool("health-check", false, "Probe the running instance and exit")
	flag.Parse()

	logger := newLogger(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)

	if *healthCheck {
		if err := probeHealth(localHealthURL()); err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("OK")
		return
	}

	if err := run(logger); err != nil {
		logger.Error("service exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("configuration loaded",
		"service", cfg.ServiceName,
		"stream", cfg.Sync.StreamID,
		"sync_interval", cfg.RateLimit.SyncInterval,
		"port", cfg.Server.Port)

	pool, err := driver.NewPostgresPool(ctx, cfg.Database.ConnString(), cfg.Database.MaxConns, cfg.Database.MinConns, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	articleRepo := repository.NewPostgresArticleRepository(pool, logger)
	feedRepo := repository.NewPostgresFeedRepository(pool, logger)
	tombstoneRepo := repository.NewPostgresTombstoneRepository(pool, logger)
	conflictRepo := repository.NewPostgresConflictRepository(pool, logger)
	quotaRepo := repository.NewPostgresQuotaRepository(pool, logger)
	sessionRepo := repository.NewPostgresSessionRepository(pool, logger)

	quotaConfig := service.DefaultQuotaConfig()
	quotaConfig.Zone1DailyLimit = int64(cfg.RateLimit.Zone1DailyLimit)
	quotaConfig.Zone2DailyLimit = int64(cfg.RateLimit.Zone2DailyLimit)
	quotaConfig.SafetyBufferPercent = cfg.RateLimit.SafetyBufferPercent

	quota := service.NewQuotaTracker(quotaConfig, quotaRepo, logger)
	if err := quota.Load(ctx); err != nil {
		logger.Warn("failed to load persisted quota state, starting without it", "error", err)
	}

	readerClient := driver.NewReaderClient(cfg.Reader.BaseURL, cfg.Reader.AccessToken, logger)
	apiBreaker := utils.NewCircuitBreaker("reader_api", nil, logger)

	var extraction *service.ExtractionService
	if cfg.Extraction.Enabled {
		extractionConfig := service.DefaultExtractionConfig()
		extractionConfig.PerArticleTimeout = cfg.Extraction.PerArticleTimeout
		extractionConfig.HostInterval = cfg.Extraction.HostInterval
		extractionConfig.BatchConcurrency = cfg.Extraction.BatchConcurrency
		extractionConfig.UserAgent = cfg.Extraction.UserAgent

		extractionBreaker := utils.NewCircuitBreaker("extraction", nil, logger)
		extraction = service.NewExtractionService(extractionConfig, driver.NewPageFetcher(logger), articleRepo, extractionBreaker, logger)
	}

	syncService := service.NewSyncService(
		service.SyncConfig{
			StreamID:             cfg.Sync.StreamID,
			PageSize:             cfg.Sync.PageSize,
			MaxPages:             cfg.Sync.MaxPages,
			WriteBackLimit:       cfg.Sync.WriteBackLimit,
			EditBatchSize:        cfg.Sync.EditBatchSize,
			MaxExtractPerSession: cfg.Sync.MaxExtractPerSession,
			RetryMaxAttempts:     cfg.Sync.RetryMaxAttempts,
			RetryBaseDelay:       cfg.Sync.RetryBaseDelay,
		},
		readerClient,
		articleRepo,
		feedRepo,
		tombstoneRepo,
		conflictRepo,
		service.NewConflictDetector(logger),
		quota,
		apiBreaker,
		extraction,
		logger,
	)

	feedSync := service.NewFeedSyncService(readerClient, feedRepo, quota, logger)

	retention, err := service.NewRetentionService(cfg.Retention.Policy(), articleRepo, tombstoneRepo, logger)
	if err != nil {
		return fmt.Errorf("failed to build retention service: %w", err)
	}

	var streamPublisher *driver.StreamPublisher
	var publisher service.EventPublisher
	if cfg.Redis.EventsEnabled {
		streamPublisher = driver.NewStreamPublisher(cfg.Redis.Address, logger)
		defer streamPublisher.Close()

		if err := streamPublisher.EnsureConsumerGroup(ctx, cfg.Redis.ConsumerGroup, "0"); err != nil {
			logger.Warn("failed to ensure consumer group, events may go unread", "error", err)
		}
		publisher = streamPublisher
	}

	notify := func(result models.SyncResult) {
		logger.Info("new articles available",
			"sync_id", result.SyncID,
			"new_articles", result.Metrics.NewArticles)
	}

	coordinator := service.NewCoordinator(syncService, sessionRepo, publisher, notify, logger)

	sched := scheduler.NewScheduler(coordinator, feedSync, retention, logger)
	sched.Start(scheduler.Config{
		SyncInterval:      cfg.RateLimit.SyncInterval,
		MaxSyncInterval:   cfg.RateLimit.MaxSyncInterval,
		FeedInterval:      cfg.Sync.FeedSyncInterval,
		RetentionInterval: cfg.Retention.Interval,
		TickTimeout:       cfg.Sync.TickTimeout,
	})

	var streamProbe handler.Pinger
	if streamPublisher != nil {
		streamProbe = streamPublisher
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/v1/health"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				slog.InfoContext(rctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				slog.ErrorContext(rctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	triggerLimiter := security.NewRateLimiter(10.0/60.0, 3) // 10 req/min per client

	handler.RegisterRoutes(e, handler.Handlers{
		Sync:         handler.NewSyncHandler(coordinator, sessionRepo, logger),
		Quota:        handler.NewQuotaHandler(quota),
		Retention:    handler.NewRetentionHandler(retention, logger),
		Health:       handler.NewHealthHandler(pool, streamProbe, logger),
		TriggerLimit: triggerLimiter.Middleware(),
	})

	address := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("starting http server", "address", address)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}
