package domain

import (
	"fmt"
	"strings"
	"time"
)

// APITimeLayout is the timestamp format accepted by the Energi Data Service API.
const APITimeLayout = "2006-01-02T15:04"

// Window is an inclusive extraction range [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate returns an *InvalidRangeError when Start is after End.
func (w Window) Validate() error {
	if w.Start.After(w.End) {
		return &InvalidRangeError{Start: w.Start, End: w.End}
	}
	return nil
}

// QueryEnd is the exclusive end sent to the source: End plus one day.
func (w Window) QueryEnd() time.Time {
	return w.End.Add(24 * time.Hour)
}

// ExtractionDatetime formats the query bounds for a window. The end bound is
// shifted forward by one day so the final day is returned in full.
func ExtractionDatetime(start, end time.Time) (string, string, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return "", "", err
	}
	return start.Format(APITimeLayout), w.QueryEnd().Format(APITimeLayout), nil
}

// FileTimestamp makes a formatted timestamp safe for file names.
func FileTimestamp(s string) string {
	return strings.ReplaceAll(s, ":", "-")
}

// RawFilename names the CSV of a raw extraction from its formatted query
// bounds, e.g. ConsumptionIndustry_2021-01-01T00-00_2024-01-01T00-00.csv.
func RawFilename(dataset, start, end string) string {
	return fmt.Sprintf("%s_%s_%s.csv", dataset, FileTimestamp(start), FileTimestamp(end))
}
