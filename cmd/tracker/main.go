package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/pricewatch/tracker/internal/api"
	"github.com/pricewatch/tracker/internal/dashboard"
	"github.com/pricewatch/tracker/internal/httpclient"
	"github.com/pricewatch/tracker/internal/policy"
	"github.com/pricewatch/tracker/internal/publisher"
	"github.com/pricewatch/tracker/internal/rate"
	"github.com/pricewatch/tracker/internal/scanner"
	"github.com/pricewatch/tracker/internal/stats"
	"github.com/pricewatch/tracker/internal/store"
	"github.com/pricewatch/tracker/pkg/config"
	"github.com/pricewatch/tracker/pkg/logger"
	"github.com/pricewatch/tracker/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [tracker]...")
	logg.Info("connecting to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logger.L())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	if err := st.Migrate(ctx); err != nil {
		logg.Fatalw("failed to run migrations", "error", err)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	pub, err := publisher.New(logger.L(), nc, cfg.EventSubjectPrefix, cfg.ServiceName)
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Core services ---
	statsAgg := stats.NewAggregator(logger.L(), st)
	resolver := policy.NewResolver(logger.L(), st, st, pub)
	dash := dashboard.NewSummary(logger.L(), st, statsAgg, cfg.RecencyWindow, cfg.SummaryCacheTTL)

	// --- Scan scheduler (only with a fetcher configured) ---
	var scanSvc api.ScanService
	if cfg.FetcherURL != "" {
		rateMgr := rate.NewManager(rate.Config{
			RequestsPerSecond: cfg.ScanRatePerSecond,
			Burst:             cfg.ScanBurst,
		})
		exec := httpclient.New(logger.L(), nil, &http.Client{Timeout: cfg.ScanTimeout}, cfg.FetchRetryMax, "fetcher")
		source := scanner.NewFetcherSource(logger.L(), exec, cfg.FetcherURL)
		scan := scanner.New(logger.L(), st, source, pub, rateMgr, cfg.ScanSweepInterval, cfg.ScanTimeout)
		scanSvc = scan
		go scan.Run(ctx)
	} else {
		logg.Warn("FETCHER_URL not configured; scan scheduling disabled")
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	handler := api.NewHandler(logger.L(), st, statsAgg, resolver, dash, scanSvc)
	api.RegisterRoutes(app, nc, st, handler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[tracker] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"sweep_interval", cfg.ScanSweepInterval,
		"fetcher", cfg.FetcherURL != "")

	<-ctx.Done()
	logg.Info("shutting down [tracker]...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
