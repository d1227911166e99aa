// Package main is the entry point for the FairWeather API server.
//
// It loads configuration, opens the on-disk stores, wires the provider
// clients, model cache, background training runner, and analysis service,
// and serves HTTP until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fairweather/internal/analysis"
	"fairweather/internal/api"
	"fairweather/internal/artifacts"
	"fairweather/internal/config"
	"fairweather/internal/history"
	"fairweather/internal/presets"
	"fairweather/internal/providers"
	"fairweather/internal/scoring"
	"fairweather/internal/training"
	"fairweather/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("fairweather API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	clock := types.RealClock{}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Provider clients.
	historyClient := providers.NewHistoryClient(
		cfg.History.BaseURL,
		cfg.History.FetchTimeout,
		providers.RetryPolicy{
			MaxRetries: cfg.History.MaxRetries,
			MinWait:    500 * time.Millisecond,
			MaxWait:    10 * time.Second,
		},
	)
	forecastClient := providers.NewForecastClient(
		cfg.Forecast.BaseURL,
		cfg.Forecast.FetchTimeout,
		providers.DefaultRetryPolicy(),
	)

	// Historical data store.
	store, err := history.NewStore(
		filepath.Join(cfg.Storage.DataDir, cfg.Storage.HistoryDBFile),
		historyClient,
		history.Options{MaxDroppedRatio: cfg.History.MaxDroppedRatio},
		clock,
		logger,
	)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	// Model artifacts: disk store, in-memory cache, background runner.
	disk, err := artifacts.NewDiskStore(filepath.Join(cfg.Storage.DataDir, cfg.Storage.ModelDir), logger)
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}
	cache := artifacts.NewCache(disk, artifacts.CacheOptions{
		StalenessHorizon: cfg.Training.StalenessHorizon,
		FailureCooldown:  cfg.Training.FailureCooldown,
	}, clock, logger)

	trainer := training.NewTrainer(store, training.Config{
		Years:           cfg.History.Years,
		MinSamples:      cfg.Training.MinSamples,
		HoldoutFraction: cfg.Training.HoldoutFraction,
		Trees:           cfg.Training.Trees,
		MaxDepth:        cfg.Training.MaxDepth,
	}, clock, logger)

	runner := training.NewRunner(trainer, cache, cfg.Training.Workers, logger)
	defer runner.Close()
	cache.SetScheduler(runner)

	// Activity presets.
	catalog := presets.Default()
	if cfg.Presets.File != "" {
		catalog, err = presets.Load(cfg.Presets.File)
		if err != nil {
			return fmt.Errorf("loading preset catalog: %w", err)
		}
	}

	scorer := scoring.NewScorer(scoring.Config{
		TempCoeff:       cfg.Scoring.TempCoeff,
		WindCoeff:       cfg.Scoring.WindCoeff,
		RainCoeff:       cfg.Scoring.RainCoeff,
		TempPenaltyCap:  cfg.Scoring.TempPenaltyCap,
		WindPenaltyCap:  cfg.Scoring.WindPenaltyCap,
		RainPenaltyCap:  cfg.Scoring.RainPenaltyCap,
		MinRainProbPct:  cfg.Scoring.MinRainProbPct,
		ClassifierCoeff: cfg.Scoring.ClassifierCoeff,
	})

	svc := analysis.NewService(
		forecastClient,
		cache,
		runner,
		catalog,
		scorer,
		cfg.Forecast.MaxDays,
		logger,
		clock,
	)

	srv, err := api.NewServer(svc, catalog, cfg.Service, cfg.Environment, logger, clock)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer serves HTTP with graceful shutdown on SIGINT/SIGTERM.
func runHTTPServer(srv *api.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server shutdown complete")
	return nil
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

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
