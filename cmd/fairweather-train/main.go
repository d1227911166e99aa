// Package main is a CLI for training suitability classifiers for a single
// location synchronously. It shares the API server's configuration and
// stores, so artifacts it writes are picked up by a later server start (or
// by the server's lazy hydration when running against the same data
// directory while the server is stopped).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fairweather/internal/artifacts"
	"fairweather/internal/config"
	"fairweather/internal/history"
	"fairweather/internal/providers"
	"fairweather/internal/training"
	"fairweather/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	latFlag := flag.Float64("lat", 0, "Latitude of the location to train [required]")
	lonFlag := flag.Float64("lon", 0, "Longitude of the location to train [required]")
	nameFlag := flag.String("name", "", "Display name for the location (optional)")
	timeoutFlag := flag.Duration("timeout", 15*time.Minute, "Overall training timeout")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -lat <lat> -lon <lon> [options]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Trains per-category classifiers for one location and writes the artifacts to disk.")
		flag.PrintDefaults()
	}
	flag.Parse()

	seen := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	if !seen["lat"] || !seen["lon"] {
		flag.Usage()
		return fmt.Errorf("both -lat and -lon are required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	clock := types.RealClock{}

	loc := types.Location{Lat: *latFlag, Lon: *lonFlag, DisplayName: *nameFlag}
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
		return fmt.Errorf("coordinates out of range: %.4f, %.4f", loc.Lat, loc.Lon)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	historyClient := providers.NewHistoryClient(
		cfg.History.BaseURL,
		cfg.History.FetchTimeout,
		providers.RetryPolicy{
			MaxRetries: cfg.History.MaxRetries,
			MinWait:    500 * time.Millisecond,
			MaxWait:    10 * time.Second,
		},
	)

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

	disk, err := artifacts.NewDiskStore(filepath.Join(cfg.Storage.DataDir, cfg.Storage.ModelDir), logger)
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}

	trainer := training.NewTrainer(store, training.Config{
		Years:           cfg.History.Years,
		MinSamples:      cfg.Training.MinSamples,
		HoldoutFraction: cfg.Training.HoldoutFraction,
		Trees:           cfg.Training.Trees,
		MaxDepth:        cfg.Training.MaxDepth,
	}, clock, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	arts, report, err := trainer.Train(ctx, loc)
	if err != nil {
		return fmt.Errorf("training %s: %w", loc.Key(), err)
	}

	for _, a := range arts {
		if err := disk.Save(a); err != nil {
			return fmt.Errorf("saving artifact %s/%s: %w", a.LocationKey, a.Category, err)
		}
	}

	fmt.Printf("trained %s: %d samples, %d artifacts in %s\n",
		report.LocationKey,
		report.SampleCount,
		len(arts),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	for _, a := range arts {
		fmt.Printf("  %-14s holdout accuracy %.3f\n", a.Category, a.HoldoutAccuracy)
	}
	return nil
}
