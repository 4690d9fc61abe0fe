package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/adapter/objectstore"
	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/couchcryptid/energy-forecast/internal/featurestore"
	"github.com/couchcryptid/energy-forecast/internal/observability"
	"github.com/couchcryptid/energy-forecast/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	ext    domain.Extraction
	err    error
	called bool
}

func (m *mockExtractor) Extract(_ context.Context, w domain.Window) (domain.Extraction, error) {
	m.called = true
	if m.err != nil {
		return domain.Extraction{}, m.err
	}
	if err := w.Validate(); err != nil {
		return domain.Extraction{}, err
	}
	return m.ext, nil
}

type mockLoader struct {
	table *domain.Table
	suite pipeline.ExpectationSuite
	err   error
}

func (m *mockLoader) Load(_ context.Context, t *domain.Table, suite pipeline.ExpectationSuite, _ domain.Extraction, _ domain.Window) (pipeline.LoadResult, error) {
	if m.err != nil {
		return pipeline.LoadResult{}, m.err
	}
	m.table, m.suite = t, suite
	return pipeline.LoadResult{Rows: t.Len(), MetadataPath: "meta.json"}, nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// rawTable is a canned source response: three hours of one municipality and branch.
func rawTable(t *testing.T) *domain.Table {
	t.Helper()
	tbl, err := domain.NewTable(domain.SourceHourUTC, domain.SourceHourDK, domain.SourceMunicipality, domain.SourceBranch, domain.SourceConsumption)
	require.NoError(t, err)
	require.NoError(t, tbl.Append("2022-12-31T23:00:00", "2023-01-01T00:00:00", int64(101), "Erhverv", 1520.25))
	require.NoError(t, tbl.Append("2023-01-01T00:00:00", "2023-01-01T01:00:00", int64(101), "Erhverv", 1498.5))
	require.NoError(t, tbl.Append("2023-01-01T01:00:00", "2023-01-01T02:00:00", int64(101), "Erhverv", int64(1402)))
	return tbl
}

func testJob() pipeline.Job {
	job := pipeline.DefaultJob("ConsumptionIndustry")
	job.Start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	job.End = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	return job
}

// --- tests ---

func TestPipeline_Run_CannedResponse(t *testing.T) {
	ext := &mockExtractor{ext: domain.Extraction{Dataset: "ConsumptionIndustry", Table: rawTable(t)}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, pipeline.NewTransformer(slog.Default()), ldr, slog.Default(), metrics)
	res, err := p.Run(context.Background(), testJob())
	require.NoError(t, err)

	want := []string{domain.ColDatetimeDK, domain.ColMunicipality, domain.ColBranch, domain.ColConsumptionKWh}
	if diff := cmp.Diff(want, res.Table.Columns()); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, res.Table.Len())
	assert.Equal(t, 3, res.Load.Rows)
	assert.Same(t, res.Table, ldr.table)
	assert.Equal(t, pipeline.DefaultSuiteName, ldr.suite.Name)

	obs, err := domain.ObservationsFromTable(res.Table)
	require.NoError(t, err)
	assert.Equal(t, domain.Observation{
		DatetimeDK:      time.Date(2023, 1, 1, 2, 0, 0, 0, time.UTC),
		MunicipalityNum: 101,
		Branch:          domain.BranchIndustry,
		ConsumptionKWh:  1402,
	}, obs[2])
}

func TestPipeline_Run_InvalidWindow(t *testing.T) {
	ext := &mockExtractor{}
	p := pipeline.New(ext, pipeline.NewTransformer(slog.Default()), &mockLoader{}, slog.Default(), newTestMetrics())

	job := testJob()
	job.Start = job.End.Add(48 * time.Hour)
	_, err := p.Run(context.Background(), job)

	var rangeErr *domain.InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.False(t, ext.called, "no extraction for an invalid window")
}

func TestPipeline_Run_StageErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("extract", func(t *testing.T) {
		p := pipeline.New(&mockExtractor{err: boom}, pipeline.NewTransformer(slog.Default()), &mockLoader{}, slog.Default(), newTestMetrics())
		_, err := p.Run(context.Background(), testJob())
		assert.ErrorIs(t, err, boom)
		assert.ErrorContains(t, err, "extract")
	})

	t.Run("transform", func(t *testing.T) {
		raw := rawTable(t)
		bad, err := raw.MapColumn(domain.SourceBranch, func(any) (any, error) { return "Landbrug", nil })
		require.NoError(t, err)
		ldr := &mockLoader{}
		p := pipeline.New(&mockExtractor{ext: domain.Extraction{Table: bad}}, pipeline.NewTransformer(slog.Default()), ldr, slog.Default(), newTestMetrics())
		_, err = p.Run(context.Background(), testJob())
		assert.ErrorContains(t, err, "transform")
		assert.Nil(t, ldr.table, "nothing loaded")
	})

	t.Run("load", func(t *testing.T) {
		p := pipeline.New(&mockExtractor{ext: domain.Extraction{Table: rawTable(t)}}, pipeline.NewTransformer(slog.Default()), &mockLoader{err: boom}, slog.Default(), newTestMetrics())
		_, err := p.Run(context.Background(), testJob())
		assert.ErrorIs(t, err, boom)
	})
}

func TestPipeline_Run_EndToEndWithSQLStore(t *testing.T) {
	dir := t.TempDir()
	objects, err := objectstore.NewLocal(filepath.Join(dir, "objects"))
	require.NoError(t, err)
	store, err := featurestore.Open(context.Background(), filepath.Join(dir, "feature_store.db"), objects, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	job := testJob()
	job.Derive = []string{pipeline.FeatureHourOfDay, pipeline.FeatureIsWeekend}
	metrics := newTestMetrics()
	loader := pipeline.NewLoader(store, job.FeatureGroup, filepath.Join(dir, "processed_data"), slog.Default(), metrics)
	ext := &mockExtractor{ext: domain.Extraction{Dataset: "ConsumptionIndustry", Table: rawTable(t)}}

	p := pipeline.New(ext, pipeline.NewTransformer(slog.Default()), loader, slog.Default(), metrics)
	res, err := p.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t,
		filepath.Join(dir, "processed_data", "ConsumptionIndustry_2023-01-01T00-00_2023-01-02T00-00.csv_metadata.json"),
		res.Load.MetadataPath)

	// Running the same window again upserts instead of duplicating rows.
	_, err = p.Run(context.Background(), job)
	require.NoError(t, err)
	meta, err := store.Metadata(context.Background(), job.FeatureGroup.Name, job.FeatureGroup.Version)
	require.NoError(t, err)
	assert.Equal(t, 3, meta.RowCount)
	assert.Len(t, meta.Features, 6)
}
