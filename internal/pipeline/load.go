package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/couchcryptid/energy-forecast/internal/featurestore"
	"github.com/couchcryptid/energy-forecast/internal/fsutil"
	"github.com/couchcryptid/energy-forecast/internal/observability"
)

// Keys added to the load metadata document.
const (
	MetaExtractionStart = "data_extraction_start_datetime"
	MetaExtractionEnd   = "data_extraction_end_datetime"
)

// FeatureStore is the part of the feature store used by the loader.
type FeatureStore interface {
	GetOrCreateFeatureGroup(ctx context.Context, spec featurestore.FeatureGroupSpec) (*featurestore.FeatureGroup, error)
	Insert(ctx context.Context, fg *featurestore.FeatureGroup, t *domain.Table, opts featurestore.InsertOptions) (*featurestore.FeatureGroupMetadata, error)
}

// LoadResult describes a completed load.
type LoadResult struct {
	Metadata     map[string]any
	MetadataPath string
	Rows         int
}

// Loader validates a feature table, inserts it into a feature group and
// records the returned metadata on disk.
type Loader struct {
	store   FeatureStore
	group   FeatureGroupConfig
	outDir  string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLoader creates a Loader writing metadata documents to outDir.
func NewLoader(store FeatureStore, group FeatureGroupConfig, outDir string, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		store:   store,
		group:   group,
		outDir:  outDir,
		logger:  logger,
		metrics: metrics,
	}
}

// Load runs the suite against t and, if every expectation holds, upserts
// t into the feature group. Nothing is inserted when validation fails.
func (l *Loader) Load(ctx context.Context, t *domain.Table, suite ExpectationSuite, ext domain.Extraction, w domain.Window) (LoadResult, error) {
	report := suite.Validate(t)
	if !report.Success {
		l.metrics.ValidationFailures.Inc()
		return LoadResult{}, &ValidationError{Report: report}
	}

	suiteJSON, err := json.Marshal(suite)
	if err != nil {
		return LoadResult{}, err
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return LoadResult{}, err
	}

	fg, err := l.store.GetOrCreateFeatureGroup(ctx, featurestore.FeatureGroupSpec{
		Name:          l.group.Name,
		Version:       l.group.Version,
		Description:   l.group.Description,
		PrimaryKey:    []string{domain.ColMunicipality, domain.ColBranch, domain.ColDatetimeDK},
		EventTime:     domain.ColDatetimeDK,
		OnlineEnabled: l.group.OnlineEnabled,
	})
	if err != nil {
		return LoadResult{}, fmt.Errorf("get feature group: %w", err)
	}

	meta, err := l.store.Insert(ctx, fg, t, featurestore.InsertOptions{
		ExpectationSuite: suiteJSON,
		ValidationReport: reportJSON,
	})
	if err != nil {
		return LoadResult{}, fmt.Errorf("insert into feature group %s: %w", fg.Name, err)
	}
	l.metrics.RowsLoaded.Add(float64(t.Len()))

	doc, err := decodeMetadata(meta)
	if err != nil {
		return LoadResult{}, err
	}
	doc[MetaExtractionStart] = w.Start.Format(time.DateTime)
	doc[MetaExtractionEnd] = w.QueryEnd().Format(time.DateTime)

	path := filepath.Join(l.outDir, MetadataFilename(rawName(ext, w)))
	if err := fsutil.WriteJSON(path, doc); err != nil {
		return LoadResult{}, fmt.Errorf("write load metadata: %w", err)
	}

	l.logger.Info("feature group loaded",
		"feature_group", fg.Name,
		"version", fg.Version,
		"rows", t.Len(),
		"metadata_path", path,
	)
	return LoadResult{Metadata: doc, MetadataPath: path, Rows: t.Len()}, nil
}

func rawName(ext domain.Extraction, w domain.Window) string {
	if ext.DataPath != "" {
		return ext.DataPath
	}
	start, end, err := domain.ExtractionDatetime(w.Start, w.End)
	if err != nil {
		start, end = w.Start.Format(domain.APITimeLayout), w.QueryEnd().Format(domain.APITimeLayout)
	}
	return domain.RawFilename(ext.Dataset, start, end)
}

// MetadataFilename names the load metadata document of a raw extraction
// file after the first four "_"-separated tokens of its base name. The
// extension stays on the last token when the name has fewer than five.
func MetadataFilename(rawPath string) string {
	parts := strings.Split(filepath.Base(rawPath), "_")
	if len(parts) > 4 {
		parts = parts[:4]
	}
	return strings.Join(parts, "_") + "_metadata.json"
}

// decodeMetadata turns the store metadata into a plain JSON object.
func decodeMetadata(meta *featurestore.FeatureGroupMetadata) (map[string]any, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode feature group metadata: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode feature group metadata: %w", err)
	}
	return doc, nil
}
