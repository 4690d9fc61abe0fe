// Command featurepipeline runs one extract, transform, validate and load pass
// of the Energi Data Service consumption dataset into the feature store.
//
// Usage:
//
//	go run ./cmd/featurepipeline -start 2021-01-01 -end 2023-12-31
//	go run ./cmd/featurepipeline -job configs/job.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/adapter/energidata"
	kafkaadapter "github.com/couchcryptid/energy-forecast/internal/adapter/kafka"
	"github.com/couchcryptid/energy-forecast/internal/adapter/objectstore"
	"github.com/couchcryptid/energy-forecast/internal/config"
	"github.com/couchcryptid/energy-forecast/internal/featurestore"
	"github.com/couchcryptid/energy-forecast/internal/observability"
	"github.com/couchcryptid/energy-forecast/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("feature pipeline failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	startFlag := flag.String("start", "", "first day to extract (YYYY-MM-DD)")
	endFlag := flag.String("end", "", "last day to extract, inclusive (YYYY-MM-DD)")
	jobFlag := flag.String("job", "", "YAML job file; -start and -end override its window")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	started := time.Now()
	logger, closeLog, err := observability.NewRunLogger(cfg.LogDir, cfg.LogLevel, cfg.LogFormat, started)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck
	metrics := observability.NewMetrics()

	job := pipeline.DefaultJob(cfg.DatasetName)
	if *jobFlag != "" {
		if job, err = pipeline.LoadJob(*jobFlag, job); err != nil {
			return err
		}
	}
	if *startFlag != "" {
		if job.Start, err = pipeline.ParseDate(*startFlag); err != nil {
			return fmt.Errorf("-start: %w", err)
		}
	}
	if *endFlag != "" {
		if job.End, err = pipeline.ParseDate(*endFlag); err != nil {
			return fmt.Errorf("-end: %w", err)
		}
	}

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

	if cfg.OnlineFeaturesEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		store.SetOnlineSink(writer)
		logger.Info("online feature ingestion enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaOnlineTopic)
	}

	client := energidata.NewClient(energidata.Options{
		BaseURL:      cfg.EnergiDataBaseURL,
		MetaURL:      cfg.EnergiDataMetaURL,
		Dataset:      job.Dataset,
		DataDir:      cfg.DataDir(),
		Timeout:      cfg.EnergiDataTimeout,
		MaxRetries:   cfg.EnergiDataMaxRetries,
		RetryBackoff: cfg.EnergiDataRetryBackoff,
	}, logger, metrics)
	loader := pipeline.NewLoader(store, job.FeatureGroup, cfg.ProcessedDataDir(), logger, metrics)
	p := pipeline.New(client, pipeline.NewTransformer(logger), loader, logger, metrics)

	res, runErr := p.Run(ctx, job)

	if cfg.MetricsTextfile != "" {
		if err := observability.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}
	if runErr != nil {
		var verr *pipeline.ValidationError
		if errors.As(runErr, &verr) {
			for _, r := range verr.Report.Results {
				if !r.Success {
					logger.Error("expectation failed", "expectation", r.Expectation.Type, "column", r.Expectation.Kwargs.Column, "unexpected_count", r.UnexpectedCount)
				}
			}
		}
		return runErr
	}

	logger.Info("feature pipeline finished",
		"rows", res.Load.Rows,
		"metadata_path", res.Load.MetadataPath,
		"duration", time.Since(started),
	)
	fmt.Println(res.Load.MetadataPath)
	return nil
}
