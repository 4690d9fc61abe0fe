package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/couchcryptid/energy-forecast/internal/featurestore"
	"github.com/couchcryptid/energy-forecast/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	spec     featurestore.FeatureGroupSpec
	inserted *domain.Table
	opts     featurestore.InsertOptions
	err      error
}

func (f *fakeStore) GetOrCreateFeatureGroup(_ context.Context, spec featurestore.FeatureGroupSpec) (*featurestore.FeatureGroup, error) {
	f.spec = spec
	return &featurestore.FeatureGroup{FeatureGroupSpec: spec}, nil
}

func (f *fakeStore) Insert(_ context.Context, fg *featurestore.FeatureGroup, t *domain.Table, opts featurestore.InsertOptions) (*featurestore.FeatureGroupMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inserted, f.opts = t, opts
	return &featurestore.FeatureGroupMetadata{
		Name:             fg.Name,
		Version:          fg.Version,
		Description:      fg.Description,
		PrimaryKey:       fg.PrimaryKey,
		EventTime:        fg.EventTime,
		CommitID:         "c0ffee",
		RowCount:         t.Len(),
		Statistics:       json.RawMessage(`[{"column":"consumption_kwh","count":3}]`),
		ExpectationSuite: opts.ExpectationSuite,
	}, nil
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

var loadWindow = domain.Window{
	Start: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
}

func TestMetadataFilename(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"ConsumptionIndustry_2021-01-01T00-00_2023-01-01T00-00.csv", "ConsumptionIndustry_2021-01-01T00-00_2023-01-01T00-00.csv_metadata.json"},
		{"/data/ConsumptionIndustry_2021-01-01T00-00_2023-01-01T00-00.csv", "ConsumptionIndustry_2021-01-01T00-00_2023-01-01T00-00.csv_metadata.json"},
		{"a_b_c_d_e_f.csv", "a_b_c_d_metadata.json"},
		{"a_b_c_d.csv", "a_b_c_d.csv_metadata.json"},
		{"plain", "plain_metadata.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pipeline.MetadataFilename(tt.raw), tt.raw)
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{}
	metrics := newTestMetrics()
	group := pipeline.DefaultJob("ConsumptionIndustry").FeatureGroup
	loader := pipeline.NewLoader(store, group, dir, slog.Default(), metrics)

	tbl := featureTable(t)
	ext := domain.Extraction{
		Dataset:  "ConsumptionIndustry",
		DataPath: "/data/ConsumptionIndustry_2021-01-01T00-00_2024-01-01T00-00.csv",
	}
	res, err := loader.Load(context.Background(), tbl, pipeline.BuildExpectationSuite("energy", tbl), ext, loadWindow)
	require.NoError(t, err)

	assert.Equal(t, []string{domain.ColMunicipality, domain.ColBranch, domain.ColDatetimeDK}, store.spec.PrimaryKey)
	assert.Equal(t, domain.ColDatetimeDK, store.spec.EventTime)
	assert.Same(t, tbl, store.inserted)
	assert.NotEmpty(t, store.opts.ValidationReport)
	assert.InDelta(t, 3.0, counterValue(t, metrics.RowsLoaded), 1e-9)

	assert.Equal(t, filepath.Join(dir, "ConsumptionIndustry_2021-01-01T00-00_2024-01-01T00-00.csv_metadata.json"), res.MetadataPath)
	data, err := os.ReadFile(res.MetadataPath)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "2021-01-01 00:00:00", doc[pipeline.MetaExtractionStart])
	assert.Equal(t, "2024-01-01 00:00:00", doc[pipeline.MetaExtractionEnd])
	assert.Equal(t, "c0ffee", doc["commit_id"])
	suite, ok := doc["expectation_suite"].(map[string]any)
	require.True(t, ok, "suite is a nested object")
	assert.Equal(t, "energy", suite["expectation_suite_name"])
}

func TestLoader_Load_KeepsJSONLookingStrings(t *testing.T) {
	group := pipeline.DefaultJob("ConsumptionIndustry").FeatureGroup
	group.Description = `{"note":"kWh"}`
	loader := pipeline.NewLoader(&fakeStore{}, group, t.TempDir(), slog.Default(), newTestMetrics())

	tbl := featureTable(t)
	res, err := loader.Load(context.Background(), tbl, pipeline.BuildExpectationSuite("energy", tbl), domain.Extraction{Dataset: "ConsumptionIndustry"}, loadWindow)
	require.NoError(t, err)

	assert.Equal(t, `{"note":"kWh"}`, res.Metadata["description"])

	data, err := os.ReadFile(res.MetadataPath)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, `{"note":"kWh"}`, doc["description"])
}

func TestLoader_ValidationFailureInsertsNothing(t *testing.T) {
	store := &fakeStore{}
	metrics := newTestMetrics()
	loader := pipeline.NewLoader(store, pipeline.DefaultJob("x").FeatureGroup, t.TempDir(), slog.Default(), metrics)

	tbl := featureTable(t)
	suite := pipeline.BuildExpectationSuite("energy", tbl)
	bad, err := tbl.MapColumn(domain.ColConsumptionKWh, func(any) (any, error) { return -5.0, nil })
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), bad, suite, domain.Extraction{Dataset: "x"}, loadWindow)

	var verr *pipeline.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, verr.Report.Success)
	assert.Nil(t, store.inserted)
	assert.InDelta(t, 1.0, counterValue(t, metrics.ValidationFailures), 1e-9)
}

func TestLoader_InsertRejected(t *testing.T) {
	store := &fakeStore{err: errors.New("feature group is locked")}
	loader := pipeline.NewLoader(store, pipeline.DefaultJob("x").FeatureGroup, t.TempDir(), slog.Default(), newTestMetrics())

	tbl := featureTable(t)
	_, err := loader.Load(context.Background(), tbl, pipeline.BuildExpectationSuite("energy", tbl), domain.Extraction{Dataset: "x"}, loadWindow)
	assert.ErrorContains(t, err, "feature group is locked")
}
