package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/domain"
)

// Calendar features that can be derived from datetime_dk.
const (
	FeatureHourOfDay = "hour_of_day"
	FeatureDayOfWeek = "day_of_week"
	FeatureMonth     = "month"
	FeatureDayOfYear = "day_of_year"
	FeatureIsWeekend = "is_weekend"
)

var derivers = map[string]func(time.Time) any{
	FeatureHourOfDay: func(t time.Time) any { return int64(t.Hour()) },
	// Monday is 0.
	FeatureDayOfWeek: func(t time.Time) any { return int64((int(t.Weekday()) + 6) % 7) },
	FeatureMonth:     func(t time.Time) any { return int64(t.Month()) },
	FeatureDayOfYear: func(t time.Time) any { return int64(t.YearDay()) },
	FeatureIsWeekend: func(t time.Time) any {
		wd := t.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	},
}

// TransformOptions selects the stages applied by Transformer.Transform.
type TransformOptions struct {
	Drop   []string
	Rename map[string]string
	Derive []string
}

// DefaultTransformOptions drops the UTC hour and renames the source fields
// to the canonical column names.
func DefaultTransformOptions() TransformOptions {
	return TransformOptions{
		Drop: []string{domain.SourceHourUTC},
		Rename: map[string]string{
			domain.SourceHourDK:       domain.ColDatetimeDK,
			domain.SourceMunicipality: domain.ColMunicipality,
			domain.SourceBranch:       domain.ColBranch,
			domain.SourceConsumption:  domain.ColConsumptionKWh,
		},
	}
}

// Transformer turns a raw extraction table into the feature table.
type Transformer struct {
	logger *slog.Logger
}

// NewTransformer creates a Transformer.
func NewTransformer(logger *slog.Logger) *Transformer {
	return &Transformer{logger: logger}
}

// Transform applies drop, rename, cast and derive in that order. The input
// table is not modified and row order is preserved.
func (tr *Transformer) Transform(t *domain.Table, opts TransformOptions) (*domain.Table, error) {
	out := Drop(t, opts.Drop...)

	out, err := Rename(out, opts.Rename)
	if err != nil {
		return nil, err
	}
	if out, err = Cast(out); err != nil {
		return nil, err
	}
	if out, err = Derive(out, opts.Derive); err != nil {
		return nil, err
	}

	tr.logger.Info("table transformed",
		"rows", out.Len(),
		"columns", out.Columns(),
	)
	return out, nil
}

// Drop removes columns. Absent columns are ignored.
func Drop(t *domain.Table, cols ...string) *domain.Table {
	return t.Drop(cols...)
}

// Rename renames columns using a mapping from old to new name. Keys that
// are not columns are ignored.
func Rename(t *domain.Table, mapping map[string]string) (*domain.Table, error) {
	return t.Rename(mapping)
}

// Cast converts the canonical columns that are present to their typed
// representation. Nulls stay null.
func Cast(t *domain.Table) (*domain.Table, error) {
	casts := []struct {
		col string
		fn  func(any) (any, error)
	}{
		{domain.ColDatetimeDK, castDatetime},
		{domain.ColDatetimeUTC, castDatetime},
		{domain.ColMunicipality, castInt},
		{domain.ColBranch, castBranch},
		{domain.ColConsumptionKWh, castFloat},
	}

	out := t
	for _, c := range casts {
		if !out.HasColumn(c.col) {
			continue
		}
		var err error
		out, err = out.MapColumn(c.col, skipNil(c.fn))
		if err != nil {
			return nil, fmt.Errorf("cast: %w", err)
		}
	}
	return out, nil
}

// Derive appends the named calendar features computed from datetime_dk.
func Derive(t *domain.Table, features []string) (*domain.Table, error) {
	if len(features) == 0 {
		return t, nil
	}
	if !t.HasColumn(domain.ColDatetimeDK) {
		return nil, fmt.Errorf("derive: missing column %q", domain.ColDatetimeDK)
	}

	out := t
	for _, name := range features {
		fn, ok := derivers[name]
		if !ok {
			return nil, fmt.Errorf("derive: unknown feature %q", name)
		}
		src := out
		var err error
		out, err = out.AddColumn(name, func(i int) (any, error) {
			switch ts := src.Get(i, domain.ColDatetimeDK).(type) {
			case nil:
				return nil, nil
			case time.Time:
				return fn(ts), nil
			default:
				return nil, fmt.Errorf("%s is %T, not a timestamp", domain.ColDatetimeDK, ts)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("derive: %w", err)
		}
	}
	return out, nil
}

func skipNil(fn func(any) (any, error)) func(any) (any, error) {
	return func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return fn(v)
	}
}

var datetimeLayouts = []string{
	domain.TimestampLayout,
	time.DateTime,
	domain.APITimeLayout,
	time.RFC3339,
}

// castDatetime parses a timestamp and keeps its wall clock as a naive
// (UTC-located) time truncated to the hour.
func castDatetime(v any) (any, error) {
	var ts time.Time
	switch x := v.(type) {
	case time.Time:
		ts = x
	case string:
		var err error
		for _, layout := range datetimeLayouts {
			if ts, err = time.Parse(layout, x); err == nil {
				break
			}
		}
		if err != nil {
			return nil, fmt.Errorf("parse datetime %q", x)
		}
	default:
		return nil, fmt.Errorf("datetime is %T", v)
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, time.UTC), nil
}

func castInt(v any) (any, error) {
	return domain.ToInt64(v)
}

func castFloat(v any) (any, error) {
	f, err := domain.ToFloat64(v)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite value %v", v)
	}
	return f, nil
}

func castBranch(v any) (any, error) {
	b, err := domain.ParseBranch(v)
	if err != nil {
		return nil, err
	}
	return int64(b), nil
}
