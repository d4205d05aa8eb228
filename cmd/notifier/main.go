package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danabek/notification-dispatcher/config"
	"github.com/danabek/notification-dispatcher/internal/checkpoint"
	"github.com/danabek/notification-dispatcher/internal/dispatch"
	"github.com/danabek/notification-dispatcher/internal/health"
	"github.com/danabek/notification-dispatcher/internal/infrastructure/postgres"
	ctxlog "github.com/danabek/notification-dispatcher/internal/log"
	"github.com/danabek/notification-dispatcher/internal/metrics"
	"github.com/danabek/notification-dispatcher/internal/reconciler"
	"github.com/danabek/notification-dispatcher/internal/scheduling"
	httptransport "github.com/danabek/notification-dispatcher/internal/transport/http"
	"github.com/danabek/notification-dispatcher/internal/transport/http/handler"
	"github.com/danabek/notification-dispatcher/internal/trigger"
	"github.com/danabek/notification-dispatcher/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	// Checkpoints live in Redis when configured, so a restart resumes the
	// incremental rule scan where it left off.
	var checkpoints checkpoint.Store
	var cachePinger health.Pinger
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		store := checkpoint.NewRedisStore(rdb)
		checkpoints = store
		cachePinger = store
		logger.Info("redis connected", "addr", cfg.RedisAddr)
	} else {
		checkpoints = checkpoint.NewMemoryStore()
		logger.Warn("no REDIS_ADDR set, checkpoints are in-memory only")
	}

	metrics.Register()
	checker := health.NewChecker(pool, cachePinger, logger, prometheus.DefaultRegisterer)

	ruleRepo := postgres.NewRuleRepository(pool)
	workflowRepo := postgres.NewWorkflowRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)

	schedulerClient := scheduling.NewHTTPClient(cfg.SchedulerURL, 15*time.Second)
	triggerClient := trigger.NewHTTPClient(cfg.TriggerURL, time.Duration(cfg.TriggerTimeoutSec)*time.Second)

	// Rule-schedule reconciler: fast incremental sync + slow full set-diff.
	rec := reconciler.New(ruleRepo, schedulerClient, logger)
	recLoop := reconciler.NewLoop(
		rec,
		ruleRepo,
		checkpoints,
		time.Duration(cfg.SyncIntervalSec)*time.Second,
		time.Duration(cfg.ReconcileIntervalSec)*time.Second,
		cfg.RuleBatchSize,
		logger,
	)
	go recLoop.Start(ctx)

	// Polling dispatcher: three independent claim-and-trigger loops.
	newPoller := dispatch.NewPoller(dispatch.PollNew, notificationRepo, workflowRepo, triggerClient, logger, dispatch.PollerOptions{
		Interval:    time.Duration(cfg.PollIntervalSec) * time.Second,
		BatchSize:   cfg.DispatchBatchSize,
		Concurrency: cfg.MaxConcurrentDispatches,
	})
	go newPoller.Start(ctx)

	scheduledPoller := dispatch.NewPoller(dispatch.PollScheduled, notificationRepo, workflowRepo, triggerClient, logger, dispatch.PollerOptions{
		Interval:    time.Duration(cfg.ScheduledPollIntervalSec) * time.Second,
		BatchSize:   cfg.DispatchBatchSize,
		Concurrency: cfg.MaxConcurrentDispatches,
	})
	go scheduledPoller.Start(ctx)

	failedPoller := dispatch.NewPoller(dispatch.PollFailed, notificationRepo, workflowRepo, triggerClient, logger, dispatch.PollerOptions{
		Interval:     time.Duration(cfg.FailedPollIntervalSec) * time.Second,
		StartupDelay: time.Duration(cfg.FailedPollStartupDelaySec) * time.Second,
		BatchSize:    cfg.DispatchBatchSize,
		Concurrency:  cfg.MaxConcurrentDispatches,
	})
	go failedPoller.Start(ctx)

	reclaimer := dispatch.NewReclaimer(
		notificationRepo,
		logger,
		time.Duration(cfg.ReclaimIntervalSec)*time.Second,
		time.Duration(cfg.StuckTimeoutSec)*time.Second,
	)
	go reclaimer.Start(ctx)

	// Intake API: the schedule-fired handoff, cancel, force-reconcile.
	notificationUC := usecase.NewNotificationUsecase(notificationRepo, ruleRepo, workflowRepo, logger)
	notificationHandler := handler.NewNotificationHandler(notificationUC, recLoop, logger)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, notificationHandler),
	}
	go func() {
		logger.Info("intake server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("intake server: %v", err)
		}
	}()

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("intake server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("notifier shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
