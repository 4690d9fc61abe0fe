package pipeline_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/couchcryptid/energy-forecast/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrop_AbsentColumnIsNoOp(t *testing.T) {
	raw := rawTable(t)
	out := pipeline.Drop(raw, "NotAColumn")
	assert.Equal(t, raw.Columns(), out.Columns())
	assert.Equal(t, raw.Len(), out.Len())
}

func TestRename_PreservesRowsAndOrder(t *testing.T) {
	raw := rawTable(t)
	out, err := pipeline.Rename(raw, pipeline.DefaultTransformOptions().Rename)
	require.NoError(t, err)

	require.Equal(t, raw.Len(), out.Len())
	for i := 0; i < raw.Len(); i++ {
		assert.Equal(t, raw.Get(i, domain.SourceConsumption), out.Get(i, domain.ColConsumptionKWh))
	}
	assert.Equal(t, raw.Columns(), rawTable(t).Columns(), "input table is untouched")
}

func TestRename_Collision(t *testing.T) {
	_, err := pipeline.Rename(rawTable(t), map[string]string{domain.SourceHourDK: domain.SourceHourUTC})
	assert.Error(t, err)
}

func TestCast(t *testing.T) {
	tbl, err := domain.NewTable(domain.ColDatetimeDK, domain.ColMunicipality, domain.ColBranch, domain.ColConsumptionKWh)
	require.NoError(t, err)
	require.NoError(t, tbl.Append("2023-03-26 02:30:00", "101", "Privat", "12.5"))
	require.NoError(t, tbl.Append(time.Date(2023, 3, 26, 3, 0, 0, 0, time.FixedZone("CEST", 7200)), float64(147), int64(1), int64(3)))
	require.NoError(t, tbl.Append(nil, nil, nil, nil))

	out, err := pipeline.Cast(tbl)
	require.NoError(t, err)

	assert.Equal(t, []any{time.Date(2023, 3, 26, 2, 0, 0, 0, time.UTC), int64(101), int64(3), 12.5}, out.Row(0))
	assert.Equal(t, []any{time.Date(2023, 3, 26, 3, 0, 0, 0, time.UTC), int64(147), int64(1), 3.0}, out.Row(1))
	assert.Equal(t, []any{nil, nil, nil, nil}, out.Row(2))
}

func TestCast_Errors(t *testing.T) {
	tests := []struct {
		name string
		col  string
		val  any
	}{
		{"bad datetime", domain.ColDatetimeDK, "yesterday"},
		{"fractional municipality", domain.ColMunicipality, 101.5},
		{"unknown branch", domain.ColBranch, "Landbrug"},
		{"branch code out of range", domain.ColBranch, int64(4)},
		{"bad consumption", domain.ColConsumptionKWh, "n/a"},
		{"NaN consumption", domain.ColConsumptionKWh, "NaN"},
		{"infinite consumption", domain.ColConsumptionKWh, "+Inf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := domain.NewTable(tt.col)
			require.NoError(t, err)
			require.NoError(t, tbl.Append(tt.val))
			_, err = pipeline.Cast(tbl)
			assert.ErrorContains(t, err, tt.col)
		})
	}
}

func TestDerive(t *testing.T) {
	tbl, err := domain.NewTable(domain.ColDatetimeDK)
	require.NoError(t, err)
	// 2023-01-01 is a Sunday, 2023-01-02 a Monday.
	require.NoError(t, tbl.Append(time.Date(2023, 1, 1, 23, 0, 0, 0, time.UTC)))
	require.NoError(t, tbl.Append(time.Date(2023, 1, 2, 5, 0, 0, 0, time.UTC)))

	out, err := pipeline.Derive(tbl, []string{
		pipeline.FeatureHourOfDay,
		pipeline.FeatureDayOfWeek,
		pipeline.FeatureMonth,
		pipeline.FeatureDayOfYear,
		pipeline.FeatureIsWeekend,
	})
	require.NoError(t, err)

	assert.Equal(t, []any{time.Date(2023, 1, 1, 23, 0, 0, 0, time.UTC), int64(23), int64(6), int64(1), int64(1), true}, out.Row(0))
	assert.Equal(t, []any{time.Date(2023, 1, 2, 5, 0, 0, 0, time.UTC), int64(5), int64(0), int64(1), int64(2), false}, out.Row(1))
}

func TestDerive_UnknownFeature(t *testing.T) {
	tbl, err := domain.NewTable(domain.ColDatetimeDK)
	require.NoError(t, err)
	_, err = pipeline.Derive(tbl, []string{"week_of_year"})
	assert.ErrorContains(t, err, "week_of_year")
}

func TestTransformer_DefaultOptions(t *testing.T) {
	tr := pipeline.NewTransformer(slog.Default())
	out, err := tr.Transform(rawTable(t), pipeline.DefaultTransformOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{domain.ColDatetimeDK, domain.ColMunicipality, domain.ColBranch, domain.ColConsumptionKWh}, out.Columns())
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), out.Get(0, domain.ColDatetimeDK))
	assert.Equal(t, int64(2), out.Get(0, domain.ColBranch))
}
