package artifact

import (
	"context"
	"math"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/adapter/objectstore"
)

// MockOptions shapes the synthetic artifacts written by SeedMock.
type MockOptions struct {
	// Now splits history from forecast; it is truncated to the hour.
	Now            time.Time
	HistoryHours   int
	HorizonHours   int
	Municipalities []int32
	Branches       []int32
}

// SeedMock writes a deterministic set of all six artifacts for local
// development and tests.
func SeedMock(ctx context.Context, store objectstore.Store, opts MockOptions) error {
	now := opts.Now.Truncate(time.Hour)
	histStart := now.Add(-time.Duration(opts.HistoryHours) * time.Hour)

	var input, target, prediction, truth, cached []ConsumptionRow
	for _, m := range opts.Municipalities {
		for _, b := range opts.Branches {
			for h := 0; h < opts.HistoryHours; h++ {
				ts := histStart.Add(time.Duration(h) * time.Hour)
				row := mockRow(ts, m, b, 1)
				input = append(input, row)
				target = append(target, row)
			}
			for h := 0; h < opts.HorizonHours; h++ {
				ts := now.Add(time.Duration(h) * time.Hour)
				prediction = append(prediction, mockRow(ts, m, b, 1.03))
			}
			// The previous forecast covers the last horizon of observed history.
			for h := 0; h < min(opts.HorizonHours, opts.HistoryHours); h++ {
				ts := now.Add(-time.Duration(opts.HorizonHours-h) * time.Hour)
				truth = append(truth, mockRow(ts, m, b, 1))
				cached = append(cached, mockRow(ts, m, b, 0.97))
			}
		}
	}

	var metrics []MetricRow
	for d := 7; d >= 1; d-- {
		metrics = append(metrics, MetricRow{
			Datetime: Millis(now.AddDate(0, 0, -d)),
			MAPE:     0.05 + 0.005*float64(d),
			RMSPE:    0.07 + 0.004*float64(d),
		})
	}

	for key, rows := range map[string][]ConsumptionRow{
		KeyInput:            input,
		KeyTarget:           target,
		KeyPrediction:       prediction,
		KeyGroundTruth:      truth,
		KeyCachedPrediction: cached,
	} {
		if err := Put(ctx, store, key, rows); err != nil {
			return err
		}
	}
	return Put(ctx, store, KeyPerformanceMetrics, metrics)
}

// mockRow follows a daily cycle scaled per municipality and branch.
func mockRow(ts time.Time, m, b int32, scale float64) ConsumptionRow {
	base := 500 + float64(m%100)*10 + float64(b)*250
	daily := 0.3 * math.Sin(2*math.Pi*float64(ts.Hour()-6)/24)
	return ConsumptionRow{
		DatetimeDK:      Millis(ts),
		MunicipalityNum: m,
		Branch:          b,
		ConsumptionKWh:  math.Round(base*(1+daily)*scale*100) / 100,
	}
}
