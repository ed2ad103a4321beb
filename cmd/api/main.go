package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotaclub/rota/internal/cache"
	"github.com/rotaclub/rota/internal/config"
	"github.com/rotaclub/rota/internal/database"
	"github.com/rotaclub/rota/internal/logging"
	"github.com/rotaclub/rota/internal/monitoring"
	"github.com/rotaclub/rota/internal/server"
	"github.com/rotaclub/rota/internal/storage"
	"github.com/rotaclub/rota/internal/store"
	"github.com/rotaclub/rota/internal/store/memory"
	"github.com/rotaclub/rota/internal/store/postgres"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("name", cfg.Server.Name).
		Str("store", cfg.Database.Driver).
		Msg("Starting Rota API server")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize Prometheus metrics
	monitoring.Init()
	log.Info().Msg("Prometheus metrics initialized")

	st, closeStore := openStore(ctx, cfg)
	defer closeStore()

	c := cache.Connect(ctx, &cfg.Redis)
	if r, ok := c.(*cache.Redis); ok {
		defer r.Close()
	}

	svc := server.NewServices(cfg, st, c, storage.New(&cfg.Storage))

	if err := svc.Expiry.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start ad expiry scheduler")
	}
	defer svc.Expiry.Stop()

	// Start metrics server if enabled
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	srv := server.NewAPIServer(cfg, svc)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("url", cfg.Server.URL).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

// openStore returns the configured store and a function that releases it
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func()) {
	if cfg.Database.Driver == "memory" {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return memory.New(), func() {}
	}

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(cfg.Database.URL); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := database.New(connectCtx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	go recordPoolStats(ctx, db.Pool)
	return postgres.New(db.Pool), db.Close
}

func recordPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			monitoring.RecordPoolStats(pool)
		}
	}
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().
		Int("port", port).
		Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
