package featurestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/domain"
)

// inferFeatures derives the feature schema of a table from its first
// non-null value per column.
func inferFeatures(t *domain.Table, primaryKey []string, eventTime string) []Feature {
	cols := t.Columns()
	features := make([]Feature, len(cols))
	for j, c := range cols {
		features[j] = Feature{
			Name:      c,
			Type:      TypeString,
			Primary:   slices.Contains(primaryKey, c),
			EventTime: c == eventTime,
		}
		for i := 0; i < t.Len(); i++ {
			if v := t.Get(i, c); v != nil {
				features[j].Type = cellType(v)
				break
			}
		}
	}
	return features
}

func cellType(v any) string {
	switch v.(type) {
	case time.Time:
		return TypeTimestamp
	case int64, int, int32, domain.Branch:
		return TypeBigint
	case float64, float32:
		return TypeDouble
	case bool:
		return TypeBoolean
	default:
		return TypeString
	}
}

// encodeRecord serializes a row for storage. Timestamps use the naive layout.
func encodeRecord(rec map[string]any) ([]byte, error) {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		switch x := v.(type) {
		case time.Time:
			out[k] = x.Format(domain.TimestampLayout)
		case domain.Branch:
			out[k] = int64(x)
		default:
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// decodeRecord restores typed cells for the given features.
func decodeRecord(data []byte, features []Feature) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	row := make([]any, len(features))
	for j, f := range features {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			continue
		}
		cell, err := decodeCell(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", f.Name, err)
		}
		row[j] = cell
	}
	return row, nil
}

func decodeCell(v any, typ string) (any, error) {
	switch typ {
	case TypeTimestamp:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("timestamp is %T", v)
		}
		return time.Parse(domain.TimestampLayout, s)
	case TypeBigint:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("bigint is %T", v)
		}
		return n.Int64()
	case TypeDouble:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("double is %T", v)
		}
		return n.Float64()
	default:
		return v, nil
	}
}

// primaryKeyValue joins the primary key cells of row i.
func primaryKeyValue(t *domain.Table, i int, primaryKey []string) string {
	parts := make([]string, len(primaryKey))
	for k, c := range primaryKey {
		parts[k] = domain.FormatCell(t.Get(i, c))
	}
	return strings.Join(parts, "|")
}

// ColumnStatistics are descriptive statistics of one inserted column.
type ColumnStatistics struct {
	Column    string   `json:"column"`
	Count     int      `json:"count"`
	NullCount int      `json:"null_count"`
	Distinct  int      `json:"distinct"`
	Min       any      `json:"min,omitempty"`
	Max       any      `json:"max,omitempty"`
	Mean      *float64 `json:"mean,omitempty"`
	Stddev    *float64 `json:"stddev,omitempty"`
}

func computeStatistics(t *domain.Table) []ColumnStatistics {
	cols := t.Columns()
	stats := make([]ColumnStatistics, len(cols))
	for j, c := range cols {
		st := ColumnStatistics{Column: c}
		distinct := map[string]struct{}{}
		var nums []float64
		var minT, maxT time.Time
		for i := 0; i < t.Len(); i++ {
			v := t.Get(i, c)
			if v == nil {
				st.NullCount++
				continue
			}
			st.Count++
			distinct[domain.FormatCell(v)] = struct{}{}
			switch x := v.(type) {
			case time.Time:
				if minT.IsZero() || x.Before(minT) {
					minT = x
				}
				if maxT.IsZero() || x.After(maxT) {
					maxT = x
				}
			case int64, int, float64, domain.Branch:
				f, _ := domain.ToFloat64(toPlain(x))
				nums = append(nums, f)
			}
		}
		st.Distinct = len(distinct)
		if !minT.IsZero() {
			st.Min = minT.Format(domain.TimestampLayout)
			st.Max = maxT.Format(domain.TimestampLayout)
		}
		if len(nums) > 0 {
			mean, stddev := meanStddev(nums)
			st.Min = slices.Min(nums)
			st.Max = slices.Max(nums)
			st.Mean = &mean
			st.Stddev = &stddev
		}
		stats[j] = st
	}
	return stats
}

func toPlain(v any) any {
	if b, ok := v.(domain.Branch); ok {
		return int64(b)
	}
	return v
}

func meanStddev(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}
