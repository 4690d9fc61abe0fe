package domain

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(SourceHourUTC, SourceHourDK, SourceMunicipality, SourceBranch, SourceConsumption)
	require.NoError(t, err)
	require.NoError(t, tbl.Append("2023-01-01T00:00:00", "2023-01-01T01:00:00", "101", "Erhverv", 10.5))
	require.NoError(t, tbl.Append("2023-01-01T01:00:00", "2023-01-01T02:00:00", "101", "Erhverv", 11.0))
	require.NoError(t, tbl.Append("2023-01-01T02:00:00", "2023-01-01T03:00:00", "101", "Erhverv", nil))
	return tbl
}

func TestNewTable_DuplicateColumn(t *testing.T) {
	_, err := NewTable("a", "b", "a")
	assert.EqualError(t, err, `duplicate column "a"`)
}

func TestAppend_WrongArity(t *testing.T) {
	tbl, err := NewTable("a", "b")
	require.NoError(t, err)
	assert.Error(t, tbl.Append(1))
}

func TestDrop(t *testing.T) {
	tbl := sampleTable(t)

	dropped := tbl.Drop(SourceHourUTC)
	assert.Equal(t, []string{SourceHourDK, SourceMunicipality, SourceBranch, SourceConsumption}, dropped.Columns())
	assert.Equal(t, 3, dropped.Len())
	assert.Equal(t, "2023-01-01T01:00:00", dropped.Get(0, SourceHourDK))
	assert.True(t, tbl.HasColumn(SourceHourUTC), "receiver is unchanged")
}

func TestDrop_AbsentColumnIsNoop(t *testing.T) {
	tbl := sampleTable(t)

	dropped := tbl.Drop("NotAColumn")

	assert.Equal(t, tbl.Columns(), dropped.Columns())
	for i := 0; i < tbl.Len(); i++ {
		assert.Equal(t, tbl.Row(i), dropped.Row(i))
	}
}

func TestRename_PreservesOrderAndCount(t *testing.T) {
	tbl := sampleTable(t)

	renamed, err := tbl.Rename(map[string]string{
		SourceHourDK:       ColDatetimeDK,
		SourceMunicipality: ColMunicipality,
		"Missing":          "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{SourceHourUTC, ColDatetimeDK, ColMunicipality, SourceBranch, SourceConsumption}, renamed.Columns())
	require.Equal(t, tbl.Len(), renamed.Len())
	for i := 0; i < tbl.Len(); i++ {
		assert.Equal(t, tbl.Row(i), renamed.Row(i))
	}
}

func TestRename_Swap(t *testing.T) {
	tbl, err := NewTable("a", "b")
	require.NoError(t, err)
	require.NoError(t, tbl.Append(1, 2))

	swapped, err := tbl.Rename(map[string]string{"a": "b", "b": "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, swapped.Columns())
	assert.Equal(t, 1, swapped.Get(0, "b"))
}

func TestRename_Collision(t *testing.T) {
	tbl := sampleTable(t)

	_, err := tbl.Rename(map[string]string{SourceHourDK: SourceHourUTC})
	assert.ErrorContains(t, err, `duplicate column "HourUTC"`)
}

func TestMapColumn(t *testing.T) {
	tbl := sampleTable(t)

	upper, err := tbl.MapColumn(SourceBranch, func(v any) (any, error) {
		return strings.ToUpper(v.(string)), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ERHVERV", upper.Get(2, SourceBranch))
	assert.Equal(t, "Erhverv", tbl.Get(2, SourceBranch))

	_, err = tbl.MapColumn("nope", func(v any) (any, error) { return v, nil })
	assert.Error(t, err)
}

func TestAddColumn(t *testing.T) {
	tbl := sampleTable(t)

	withIdx, err := tbl.AddColumn("idx", func(i int) (any, error) { return int64(i), nil })
	require.NoError(t, err)
	assert.Equal(t, "idx", withIdx.Columns()[5])
	assert.Equal(t, int64(2), withIdx.Get(2, "idx"))
	assert.False(t, tbl.HasColumn("idx"))

	_, err = withIdx.AddColumn("idx", func(int) (any, error) { return nil, nil })
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	tbl, err := NewTable(ColDatetimeDK, ColMunicipality, ColBranch, ColConsumptionKWh)
	require.NoError(t, err)
	require.NoError(t, tbl.Append(time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC), int64(101), int64(2), 10.25))
	require.NoError(t, tbl.Append(time.Date(2023, 1, 1, 2, 0, 0, 0, time.UTC), int64(101), int64(2), nil))

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	assert.Equal(t,
		"datetime_dk,municipality_num,branch,consumption_kwh\n"+
			"2023-01-01T01:00:00,101,2,10.25\n"+
			"2023-01-01T02:00:00,101,2,\n",
		buf.String())

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns(), back.Columns())
	assert.Equal(t, "10.25", back.Get(0, ColConsumptionKWh))
	assert.Nil(t, back.Get(1, ColConsumptionKWh))
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.EqualError(t, err, "read csv: missing header")
}
