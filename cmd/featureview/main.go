// Command featureview replaces a feature view over a feature group version
// and materializes a CSV training dataset for a time window.
//
// Usage:
//
//	go run ./cmd/featureview -start 2021-01-01 -end 2024-01-01
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/adapter/objectstore"
	"github.com/couchcryptid/energy-forecast/internal/config"
	"github.com/couchcryptid/energy-forecast/internal/featurestore"
	"github.com/couchcryptid/energy-forecast/internal/featureview"
	"github.com/couchcryptid/energy-forecast/internal/observability"
	"github.com/couchcryptid/energy-forecast/internal/pipeline"
)

const defaultViewName = "energy_consumption_denmark_view"

func main() {
	if err := run(); err != nil {
		slog.Error("feature view build failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	name := flag.String("name", defaultViewName, "feature view name")
	version := flag.Int("version", 1, "feature view version")
	group := flag.String("feature-group", pipeline.DefaultFeatureGroupName, "feature group to select from")
	groupVersion := flag.Int("feature-group-version", 1, "feature group version")
	startFlag := flag.String("start", "2021-01-01", "first day of the training dataset (YYYY-MM-DD)")
	endFlag := flag.String("end", "2024-01-01", "end of the training dataset, exclusive (YYYY-MM-DD)")
	flag.Parse()

	start, err := pipeline.ParseDate(*startFlag)
	if err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	end, err := pipeline.ParseDate(*endFlag)
	if err != nil {
		return fmt.Errorf("-end: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closeLog, err := observability.NewRunLogger(cfg.LogDir, cfg.LogLevel, cfg.LogFormat, time.Now())
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objects, err := objectstore.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	defer objectstore.Close(objects) //nolint:errcheck

	store, err := featurestore.Open(ctx, cfg.FeatureStorePath, objects, logger)
	if err != nil {
		return fmt.Errorf("open feature store: %w", err)
	}
	defer store.Close()

	res, err := featureview.NewBuilder(store, logger, metrics).Build(ctx, featureview.Options{
		Name:                *name,
		Version:             *version,
		Description:         "Select-all view over " + *group,
		FeatureGroup:        *group,
		FeatureGroupVersion: *groupVersion,
		Start:               start,
		End:                 end,
	})

	if cfg.MetricsTextfile != "" {
		if werr := observability.WriteTextfile(cfg.MetricsTextfile); werr != nil {
			logger.Error("write metrics textfile", "path", cfg.MetricsTextfile, "error", werr)
		}
	}
	if err != nil {
		return err
	}

	logger.Info("feature view built",
		"view", res.View.Name,
		"version", res.View.Version,
		"training_dataset_version", res.TrainingDataset.Version,
		"rows", res.TrainingDataset.Rows,
		"location", res.TrainingDataset.Location,
		"warnings", len(res.Warnings),
	)
	fmt.Println(res.TrainingDataset.Location)
	return nil
}
