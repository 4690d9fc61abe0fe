package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionDatetime(t *testing.T) {
	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		wantStart string
		wantEnd   string
	}{
		{
			name:      "multi-year window",
			start:     time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			wantStart: "2021-01-01T00:00",
			wantEnd:   "2024-01-01T00:00",
		},
		{
			name:      "single day",
			start:     time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
			wantStart: "2023-02-28T00:00",
			wantEnd:   "2023-03-01T00:00",
		},
		{
			name:      "minutes are kept",
			start:     time.Date(2022, 6, 1, 6, 30, 0, 0, time.UTC),
			end:       time.Date(2022, 6, 2, 18, 45, 0, 0, time.UTC),
			wantStart: "2022-06-01T06:30",
			wantEnd:   "2022-06-03T18:45",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ExtractionDatetime(tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestExtractionDatetime_InvalidRange(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := ExtractionDatetime(start, end)

	var rangeErr *InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, start, rangeErr.Start)
	assert.Equal(t, end, rangeErr.End)
	assert.Contains(t, err.Error(), "start 2023-01-02 00:00:00 is after end 2023-01-01 00:00:00")
}

func TestFileTimestamp(t *testing.T) {
	assert.Equal(t, "2021-01-01T00-00", FileTimestamp("2021-01-01T00:00"))
}

func TestRawFilename(t *testing.T) {
	assert.Equal(t, "ConsumptionIndustry_2021-01-01T00-00_2024-01-01T00-00.csv",
		RawFilename("ConsumptionIndustry", "2021-01-01T00:00", "2024-01-01T00:00"))
}
