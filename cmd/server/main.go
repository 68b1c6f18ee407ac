package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3-frozen/pool-dashboard/internal/alerts"
	"github.com/web3-frozen/pool-dashboard/internal/cache"
	"github.com/web3-frozen/pool-dashboard/internal/collector"
	"github.com/web3-frozen/pool-dashboard/internal/config"
	"github.com/web3-frozen/pool-dashboard/internal/fetcher"
	"github.com/web3-frozen/pool-dashboard/internal/handler"
	"github.com/web3-frozen/pool-dashboard/internal/middleware"
	"github.com/web3-frozen/pool-dashboard/internal/notify"
	"github.com/web3-frozen/pool-dashboard/internal/store"
	"github.com/web3-frozen/pool-dashboard/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()
	start := time.Now()

	if cfg.DBDriver == "postgres" && cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required with DB_DRIVER=postgres")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	source := cfg.SQLitePath
	if cfg.DBDriver == "postgres" {
		source = cfg.DatabaseURL
	}
	db, err := store.Open(ctx, cfg.DBDriver, source, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	if err := db.Seed(ctx); err != nil {
		logger.Error("failed to seed sample pools", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready", "driver", cfg.DBDriver)

	// Cache: Redis when configured (retry up to 30s for ExternalSecret to
	// sync), in-memory otherwise.
	var c cache.Cache
	if cfg.RedisURL != "" {
		var rc *cache.Redis
		for i := 0; i < 6; i++ {
			rc, err = cache.NewRedis(cfg.RedisURL, cfg.RedisPassword)
			if err == nil {
				break
			}
			logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
			time.Sleep(5 * time.Second)
		}
		if err != nil {
			logger.Error("failed to connect to redis after retries", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		c = rc
		logger.Info("redis cache connected")
	} else {
		c = cache.NewMemory()
		logger.Info("using in-memory cache")
	}

	// Fetcher + live hub
	f := fetcher.New(db, c, cfg, logger)
	hub := ws.NewHub(logger, cfg.FrontendOrigin)

	// Notifier: real mail only in production
	var notifier notify.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.Production() && cfg.SMTPHost != "" {
		notifier = notify.SMTPNotifier{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}
		logger.Info("smtp notifier enabled", "host", cfg.SMTPHost)
	}

	// Background engines
	coll := collector.New(db, f, hub, logger, cfg.CollectInterval)
	coll.Start(ctx)
	defer coll.Stop()

	engine := alerts.New(db, notifier, hub, logger, cfg.AlertInterval)
	engine.Start(ctx)
	defer engine.Stop()

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger, cfg.Production()))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", handler.Health(start))
	r.Get("/readyz", handler.Ready(db))
	r.Get("/ws", hub.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/pools", func(r chi.Router) {
			r.Get("/", handler.ListPools(db))
			r.Get("/compare", handler.ComparePools(db))
			r.Get("/{id}", handler.GetPool(db))
			r.Get("/{id}/history", handler.PoolHistory(db))
			r.Get("/{id}/blocks", handler.PoolBlocks(db))
		})
		r.Route("/stats", func(r chi.Router) {
			r.Get("/dashboard", handler.Dashboard(f))
			r.Get("/network", handler.Network(f))
			r.Get("/network/history", handler.NetworkHistory(db))
			r.Get("/pools", handler.StatsPools(db))
		})
		r.Route("/alerts", func(r chi.Router) {
			r.Post("/subscribe", handler.Subscribe(db))
			r.Get("/manage/{email}", handler.ManageSubscriptions(db))
			r.Get("/history/{email}", handler.AlertHistoryByEmail(db))
			r.Put("/{id}", handler.UpdateSubscription(db))
			r.Delete("/{id}", handler.DeleteSubscription(db))
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
