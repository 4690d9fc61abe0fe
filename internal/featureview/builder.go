// Package featureview rebuilds a feature view and materializes a training
// dataset from it.
package featureview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/featurestore"
	"github.com/couchcryptid/energy-forecast/internal/observability"
	"github.com/hashicorp/go-multierror"
)

// Store is the part of the feature store used by the builder.
type Store interface {
	GetFeatureGroup(ctx context.Context, name string, version int) (*featurestore.FeatureGroup, error)
	GetFeatureView(ctx context.Context, name string) (*featurestore.FeatureView, error)
	CreateFeatureView(ctx context.Context, spec featurestore.FeatureViewSpec) (*featurestore.FeatureView, error)
	DeleteFeatureView(ctx context.Context, name string) error
	TrainingDatasetViewVersions(ctx context.Context, viewName string) ([]int, error)
	DeleteTrainingDatasets(ctx context.Context, viewName string, viewVersion int) error
	CreateTrainingDataset(ctx context.Context, viewName string, spec featurestore.TrainingDatasetSpec) (*featurestore.Job, error)
}

// Options describes the view to build.
type Options struct {
	Name                string
	Version             int
	Description         string
	FeatureGroup        string
	FeatureGroupVersion int
	// Start and End bound the training dataset's event time, [Start, End).
	Start time.Time
	End   time.Time
}

// BuildResult is the outcome of a build. Warnings holds deletion failures
// from tearing down the previous view; they do not fail the build.
type BuildResult struct {
	View            *featurestore.FeatureView
	TrainingDataset featurestore.TrainingDataset
	Warnings        []error
}

// Builder replaces a feature view and materializes its training dataset.
type Builder struct {
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewBuilder creates a Builder.
func NewBuilder(store Store, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	return &Builder{store: store, logger: logger, metrics: metrics}
}

// Build removes any view named opts.Name together with its training
// datasets, creates the view again as a select-all query over the feature
// group and waits for a CSV training dataset over [Start, End).
func (b *Builder) Build(ctx context.Context, opts Options) (BuildResult, error) {
	if opts.Name == "" {
		return BuildResult{}, errors.New("feature view name is required")
	}
	if !opts.Start.Before(opts.End) {
		return BuildResult{}, fmt.Errorf("training dataset window: start %s is not before end %s",
			opts.Start.Format(time.DateTime), opts.End.Format(time.DateTime))
	}

	res := BuildResult{Warnings: b.teardown(ctx, opts.Name)}

	fg, err := b.store.GetFeatureGroup(ctx, opts.FeatureGroup, opts.FeatureGroupVersion)
	if err != nil {
		return res, fmt.Errorf("get feature group: %w", err)
	}

	res.View, err = b.store.CreateFeatureView(ctx, featurestore.FeatureViewSpec{
		Name:        opts.Name,
		Version:     opts.Version,
		Description: opts.Description,
		Query:       featurestore.Query{FeatureGroup: fg.Name, Version: fg.Version},
	})
	if err != nil {
		return res, fmt.Errorf("create feature view: %w", err)
	}

	job, err := b.store.CreateTrainingDataset(ctx, opts.Name, featurestore.TrainingDatasetSpec{
		Start:       opts.Start,
		End:         opts.End,
		Format:      featurestore.FormatCSV,
		Description: opts.Description,
	})
	if err != nil {
		return res, fmt.Errorf("create training dataset: %w", err)
	}
	res.TrainingDataset, err = job.Wait(ctx)
	if err != nil {
		return res, fmt.Errorf("training dataset job %s: %w", job.ID, err)
	}
	b.metrics.TrainingDatasetRows.Observe(float64(res.TrainingDataset.Rows))

	b.logger.Info("feature view built",
		"name", res.View.Name,
		"version", res.View.Version,
		"training_dataset_version", res.TrainingDataset.Version,
		"rows", res.TrainingDataset.Rows,
		"location", res.TrainingDataset.Location,
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// teardown deletes every training dataset under name and then the view.
// Each deletion is attempted on its own; failures are logged and returned.
func (b *Builder) teardown(ctx context.Context, name string) []error {
	var merr *multierror.Error

	versions, err := b.store.TrainingDatasetViewVersions(ctx, name)
	if err != nil {
		merr = multierror.Append(merr, err)
	}

	present := true
	view, err := b.store.GetFeatureView(ctx, name)
	switch {
	case errors.Is(err, featurestore.ErrNotFound):
		present = false
	case err != nil:
		merr = multierror.Append(merr, err)
	case !slices.Contains(versions, view.Version):
		versions = append(versions, view.Version)
	}

	for _, v := range versions {
		if err := b.store.DeleteTrainingDatasets(ctx, name, v); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if present {
		if err := b.store.DeleteFeatureView(ctx, name); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("delete feature view %s: %w", name, err))
		}
	}

	warnings := merr.WrappedErrors()
	for _, w := range warnings {
		b.logger.Warn("feature view teardown failed, continuing", "name", name, "error", w)
	}
	b.metrics.ViewDeletionWarnings.Add(float64(len(warnings)))
	return warnings
}
