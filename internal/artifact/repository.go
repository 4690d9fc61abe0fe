package artifact

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/adapter/objectstore"
	"github.com/couchcryptid/energy-forecast/internal/domain"
)

// Object keys of the artifacts written by the forecasting job.
const (
	KeyInput              = "input.parquet"
	KeyTarget             = "target.parquet"
	KeyPrediction         = "prediction.parquet"
	KeyGroundTruth        = "ground_truth.parquet"
	KeyCachedPrediction   = "cached_prediction.parquet"
	KeyPerformanceMetrics = "performance_metrics.parquet"
)

// ErrNoMetrics is returned when no performance metrics have been written.
var ErrNoMetrics = errors.New("performance metrics have not been generated")

// errEmptySeries marks a municipality and branch with no rows in an artifact.
var errEmptySeries = errors.New("no rows for the requested series")

// PredictionSeries is the history and forecast of one municipality and branch.
type PredictionSeries struct {
	HistoricalDatetime    []int64   `json:"historical_datetime"`
	HistoricalConsumption []float64 `json:"historical_consumption"`
	PredictionDatetime    []int64   `json:"prediction_datetime"`
	PredictionConsumption []float64 `json:"prediction_consumption"`
}

// MonitorSeries pairs a cached forecast with the consumption later observed.
type MonitorSeries struct {
	GroundTruthDatetime         []int64   `json:"ground_truth_datetime"`
	GroundTruthConsumption      []float64 `json:"ground_truth_consumption"`
	CachedPredictionDatetime    []int64   `json:"cached_prediction_datetime"`
	CachedPredictionConsumption []float64 `json:"cached_prediction_consumption"`
}

// MetricSeries is the model's error over time.
type MetricSeries struct {
	Datetime []int64   `json:"datetime"`
	MAPE     []float64 `json:"mape"`
	RMSPE    []float64 `json:"rmspe"`
}

// Repository reads forecast artifacts from an object store. Every call
// reads the objects again.
type Repository struct {
	store  objectstore.Store
	logger *slog.Logger
}

// NewRepository creates a Repository.
func NewRepository(store objectstore.Store, logger *slog.Logger) *Repository {
	return &Repository{store: store, logger: logger}
}

// MunicipalityNumbers returns the distinct municipalities in the model input.
func (r *Repository) MunicipalityNumbers(ctx context.Context) ([]int64, error) {
	return r.distinct(ctx, func(row ConsumptionRow) int64 { return int64(row.MunicipalityNum) })
}

// Branches returns the distinct branches in the model input.
func (r *Repository) Branches(ctx context.Context) ([]int64, error) {
	return r.distinct(ctx, func(row ConsumptionRow) int64 { return int64(row.Branch) })
}

func (r *Repository) distinct(ctx context.Context, key func(ConsumptionRow) int64) ([]int64, error) {
	rows, err := r.consumption(ctx, KeyInput)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0)
	for _, row := range rows {
		if k := key(row); !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Prediction returns the target history and the forecast of one series.
// It returns a *domain.LookupError if either is empty.
func (r *Repository) Prediction(ctx context.Context, municipality, branch int) (PredictionSeries, error) {
	hist, pred, err := r.pair(ctx, KeyTarget, KeyPrediction, municipality, branch)
	if err != nil {
		return PredictionSeries{}, err
	}
	var s PredictionSeries
	s.HistoricalDatetime, s.HistoricalConsumption = split(hist)
	s.PredictionDatetime, s.PredictionConsumption = split(pred)
	return s, nil
}

// MonitorPrediction returns the ground truth and the cached forecast of one
// series. It returns a *domain.LookupError if either is empty.
func (r *Repository) MonitorPrediction(ctx context.Context, municipality, branch int) (MonitorSeries, error) {
	truth, cached, err := r.pair(ctx, KeyGroundTruth, KeyCachedPrediction, municipality, branch)
	if err != nil {
		return MonitorSeries{}, err
	}
	var s MonitorSeries
	s.GroundTruthDatetime, s.GroundTruthConsumption = split(truth)
	s.CachedPredictionDatetime, s.CachedPredictionConsumption = split(cached)
	return s, nil
}

// Metrics returns the model performance metrics, or ErrNoMetrics if there are none.
func (r *Repository) Metrics(ctx context.Context) (MetricSeries, error) {
	data, err := r.store.Get(ctx, KeyPerformanceMetrics)
	if err != nil {
		return MetricSeries{}, fmt.Errorf("get %s: %w", KeyPerformanceMetrics, err)
	}
	rows, err := Decode[MetricRow](data)
	if err != nil {
		return MetricSeries{}, fmt.Errorf("decode %s: %w", KeyPerformanceMetrics, err)
	}
	if len(rows) == 0 {
		return MetricSeries{}, ErrNoMetrics
	}

	s := MetricSeries{
		Datetime: make([]int64, len(rows)),
		MAPE:     make([]float64, len(rows)),
		RMSPE:    make([]float64, len(rows)),
	}
	for i, row := range rows {
		s.Datetime[i] = EpochHours(row.Datetime)
		s.MAPE[i] = row.MAPE
		s.RMSPE[i] = row.RMSPE
	}
	return s, nil
}

// CheckReadiness reports whether the model input can be read.
func (r *Repository) CheckReadiness(ctx context.Context) error {
	if _, err := r.store.Get(ctx, KeyInput); err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}
	return nil
}

func (r *Repository) pair(ctx context.Context, leftKey, rightKey string, municipality, branch int) ([]ConsumptionRow, []ConsumptionRow, error) {
	left, err := r.consumption(ctx, leftKey)
	if err != nil {
		return nil, nil, err
	}
	right, err := r.consumption(ctx, rightKey)
	if err != nil {
		return nil, nil, err
	}

	left = filter(left, municipality, branch)
	right = filter(right, municipality, branch)
	if len(left) == 0 || len(right) == 0 {
		empty := leftKey
		if len(left) > 0 {
			empty = rightKey
		}
		return nil, nil, &domain.LookupError{
			MunicipalityNum: municipality,
			Branch:          branch,
			Err:             fmt.Errorf("%s: %w", empty, errEmptySeries),
		}
	}
	return left, right, nil
}

func (r *Repository) consumption(ctx context.Context, key string) ([]ConsumptionRow, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	rows, err := Decode[ConsumptionRow](data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	r.logger.Debug("artifact read", "key", key, "rows", len(rows))
	return rows, nil
}

func filter(rows []ConsumptionRow, municipality, branch int) []ConsumptionRow {
	out := rows[:0:0]
	for _, row := range rows {
		if int(row.MunicipalityNum) == municipality && int(row.Branch) == branch {
			out = append(out, row)
		}
	}
	slices.SortStableFunc(out, func(a, b ConsumptionRow) int { return cmp.Compare(a.DatetimeDK, b.DatetimeDK) })
	return out
}

func split(rows []ConsumptionRow) ([]int64, []float64) {
	ts := make([]int64, len(rows))
	vals := make([]float64, len(rows))
	for i, row := range rows {
		ts[i] = EpochHours(row.DatetimeDK)
		vals[i] = row.ConsumptionKWh
	}
	return ts, vals
}

// Put encodes rows and stores them under key.
func Put[T any](ctx context.Context, store objectstore.Store, key string, rows []T) error {
	data, err := Encode(rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Put(ctx, key, data, "application/octet-stream"); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// EpochHours converts a millisecond timestamp to whole hours since the Unix epoch.
func EpochHours(millis int64) int64 {
	return millis / time.Hour.Milliseconds()
}

// Millis converts a naive hourly timestamp to parquet milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
