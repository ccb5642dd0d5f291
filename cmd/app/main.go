// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"subscription-billing/internal/config"
	"subscription-billing/internal/domain/ports/adapter"
	"subscription-billing/internal/infra/adapters/notify"
	"subscription-billing/internal/infra/adapters/provider"
	pg "subscription-billing/internal/infra/db/postgres"
	"subscription-billing/internal/infra/logging"
	"subscription-billing/internal/infra/metrics"
	red "subscription-billing/internal/infra/redis"
	"subscription-billing/internal/infra/sched"
	"subscription-billing/internal/infra/scheduler"
	"subscription-billing/internal/infra/web"
	"subscription-billing/internal/infra/worker"
	"subscription-billing/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect")
	}
	defer pool.Close()

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	refundRepo := pg.NewRefundRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Refund gateway ----
	var gateway adapter.RefundGateway
	switch cfg.Provider.Name {
	case "noop":
		gateway = provider.NewNoopGateway()
		logger.Warn().Msg("refund gateway: noop (no real money moves)")
	default:
		gateway, err = provider.NewRazorpayGateway(cfg.Provider.KeyID, cfg.Provider.KeySecret, cfg.Provider.BaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("refund gateway")
		}
		logger.Info().Str("gateway", gateway.Name()).Str("base_url", cfg.Provider.BaseURL).Msg("refund gateway configured")
	}

	// ---- Notification dispatcher ----
	var dispatcher adapter.NotificationDispatcher
	if cfg.Notify.WebhookURL != "" {
		dispatcher, err = notify.NewWebhookDispatcher(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("notification dispatcher")
		}
	} else {
		dispatcher = notify.NewNoopDispatcher(logger)
	}

	// ---- Use cases ----
	baseMetricsUC := usecase.NewMetricsUseCase(paymentRepo, refundRepo, cfg.Metrics.RefundSeriesMonths, cfg.Metrics.ExportLimit, logger)

	// The redis snapshot cache is optional: with no redis.url configured the
	// dashboard reads hit Postgres directly.
	var (
		metricsUC usecase.MetricsUseCase = baseMetricsUC
		inv       usecase.SnapshotInvalidator
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect")
		}
		defer redisClient.Close()
		cached := red.NewMetricsCacheDecorator(baseMetricsUC, redisClient, cfg.Redis.TTL, logger)
		metricsUC = cached
		inv = cached
		logger.Info().Dur("ttl", cfg.Redis.TTL).Msg("metrics snapshot cache enabled")
	}

	refundUC := usecase.NewRefundUseCase(paymentRepo, refundRepo, gateway, tm, inv, logger)
	lifecycleUC := usecase.NewLifecycleUseCase(subRepo, paymentRepo, cfg.Scheduler.GracePeriod, cfg.Scheduler.BatchLimit, logger)
	notifUC := usecase.NewNotificationUseCase(subRepo, dispatcher, cfg.Scheduler.WarnWindow, cfg.Scheduler.BatchLimit, logger)

	// ---- Scheduled reconciliation ----
	wpool := worker.NewPool(cfg.Scheduler.Workers, logger)
	runner := scheduler.NewRunner(sched.ReconciliationTasks(cfg.Scheduler, lifecycleUC, notifUC, logger), wpool, logger)
	runner.Start(ctx)

	// ---- Admin API ----
	srv := web.NewServer(cfg.Admin, refundUC, lifecycleUC, metricsUC, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("admin API server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	runner.Stop(cfg.Scheduler.ShutdownGrace)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin API shutdown")
	}
	cancel()
}
