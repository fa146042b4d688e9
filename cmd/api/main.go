package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"agile-bank/config"
	httpHandler "agile-bank/internal/adapter/http/handler"
	"agile-bank/internal/adapter/http/middleware"
	"agile-bank/internal/adapter/metrics"
	"agile-bank/internal/core/ports"
	"agile-bank/internal/service"
	"agile-bank/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Agile Bank ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage backend
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	// Optional Redis: idempotency cache and rate limiting
	cache, err := openCache(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer cache.close()

	// Currency ledger, loaded once and read-only afterwards
	rates, err := buildLedger(ctx, cfg.Ledger, store.rates, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build currency ledger")
	}

	// Metrics
	var (
		transferMetric ports.TransferMetrics
		requestMetric  middleware.RequestObserver
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector := metrics.NewCollector(cfg.Metrics.Namespace)
		if err := collector.Register(registry); err != nil {
			log.Fatal().Err(err).Msg("Failed to register metrics")
		}
		transferMetric = collector
		requestMetric = collector
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	// Core services
	hashSvc := service.NewArgon2HashService(service.DefaultArgon2Params())
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(store.audit, 0, log)

	// Business services
	authSvc := service.NewAuthService(store.users, hashSvc, tokenSvc)
	accountSvc := service.NewAccountService(store.accounts, store.transactions, rates, log)
	transferSvc := service.NewTransferService(
		store.accounts,
		store.transactions,
		store.idempotency,
		cache.idempotency,
		store.transactor,
		rates,
		transferMetric,
		service.TransferConfig{
			MaxRetries:     cfg.Engine.MaxRetries,
			RetryBaseDelay: cfg.Engine.RetryBaseDelay,
			IdempotencyTTL: cfg.Idempotency.TTL,
		},
		log,
	)
	reportingSvc := service.NewReportingService(store.transactions, rates)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		AccountSvc:     accountSvc,
		TransferSvc:    transferSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		Currencies:     rates,
		RateLimitStore: cache.rateLimit,
		AuditSvc:       auditSvc,
		Metrics:        requestMetric,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		HealthCheckers: append(store.health, cache.health...),
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		if err := auditSvc.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Audit trail not fully flushed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}

	log.Info().Msg("Server exited")
}
