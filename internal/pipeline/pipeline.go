package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/couchcryptid/energy-forecast/internal/observability"
)

// Extractor pulls one window of the source dataset.
type Extractor interface {
	Extract(ctx context.Context, w domain.Window) (domain.Extraction, error)
}

// FeatureLoader validates and loads a transformed table.
type FeatureLoader interface {
	Load(ctx context.Context, t *domain.Table, suite ExpectationSuite, ext domain.Extraction, w domain.Window) (LoadResult, error)
}

// Result is the outcome of one pipeline run.
type Result struct {
	Extraction domain.Extraction
	Table      *domain.Table
	Suite      ExpectationSuite
	Load       LoadResult
}

// Pipeline runs extract, transform, validate and load once per call.
type Pipeline struct {
	extractor   Extractor
	transformer *Transformer
	loader      FeatureLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, t *Transformer, l FeatureLoader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run executes the job. Any stage error aborts the run before anything is
// committed to the feature store.
func (p *Pipeline) Run(ctx context.Context, job Job) (Result, error) {
	if err := job.Validate(); err != nil {
		return Result{}, err
	}
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	began := time.Now()
	w := job.Window()
	p.logger.Info("feature pipeline started",
		"dataset", job.Dataset,
		"start", w.Start.Format(time.DateOnly),
		"end", w.End.Format(time.DateOnly),
	)

	ext, err := p.extractor.Extract(ctx, w)
	if err != nil {
		return Result{}, fmt.Errorf("extract: %w", err)
	}

	table, err := p.transformer.Transform(ext.Table, job.TransformOptions())
	if err != nil {
		return Result{}, fmt.Errorf("transform: %w", err)
	}

	suite := BuildExpectationSuite(job.SuiteName, table)
	res, err := p.loader.Load(ctx, table, suite, ext, w)
	if err != nil {
		return Result{}, fmt.Errorf("load: %w", err)
	}

	p.logger.Info("feature pipeline finished",
		"rows", res.Rows,
		"metadata_path", res.MetadataPath,
		"duration", time.Since(began),
	)
	return Result{Extraction: ext, Table: table, Suite: suite, Load: res}, nil
}
