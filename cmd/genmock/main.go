// Command genmock writes deterministic fixtures for local development: a
// canned Energi Data Service response with its dataset metadata, and the
// parquet artifacts the forecast API reads, seeded into the configured
// object store.
//
// Usage:
//
//	go run ./cmd/genmock -source-out data/mock -days 2
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/adapter/objectstore"
	"github.com/couchcryptid/energy-forecast/internal/artifact"
	"github.com/couchcryptid/energy-forecast/internal/config"
	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/couchcryptid/energy-forecast/internal/fsutil"
	"github.com/couchcryptid/energy-forecast/internal/observability"
	"github.com/jonboulle/clockwork"
)

var baseDate = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

var sourceBranches = []string{"Offentligt", "Erhverv", "Privat"}

// sourceRecord mirrors one record of the ConsumptionIndustry dataset.
type sourceRecord struct {
	HourUTC        string  `json:"HourUTC"`
	HourDK         string  `json:"HourDK"`
	MunicipalityNo string  `json:"MunicipalityNo"`
	Branche        string  `json:"Branche"`
	ConsumptionkWh float64 `json:"ConsumptionkWh"`
}

type sourceResponse struct {
	Total   int            `json:"total"`
	Dataset string         `json:"dataset"`
	Records []sourceRecord `json:"records"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	sourceOut := flag.String("source-out", "data/mock", "directory for the canned source response")
	days := flag.Int("days", 2, "days of hourly source records")
	municipalities := flag.Int("municipalities", 3, "number of municipalities in the fixtures")
	skipArtifacts := flag.Bool("skip-artifacts", false, "only write the canned source response")
	flag.Parse()

	if *municipalities < 1 || *municipalities > len(domain.MunicipalityNumbers) {
		return fmt.Errorf("-municipalities must be between 1 and %d", len(domain.MunicipalityNumbers))
	}

	// Fixed clock so the artifacts split history and forecast at the same hour every run.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	munis := domain.MunicipalityNumbers[:*municipalities]

	resp := cannedResponse(munis, *days)
	dataPath := filepath.Join(*sourceOut, "ConsumptionIndustry.json")
	if err := fsutil.WriteJSON(dataPath, resp); err != nil {
		return fmt.Errorf("writing source fixture: %w", err)
	}
	log.Printf("wrote source fixture: %s (%d records)", dataPath, resp.Total)

	metaPath := filepath.Join(*sourceOut, "ConsumptionIndustry_meta.json")
	if err := fsutil.WriteJSON(metaPath, cannedMeta()); err != nil {
		return fmt.Errorf("writing metadata fixture: %w", err)
	}
	log.Printf("wrote metadata fixture: %s", metaPath)

	if *skipArtifacts {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, nil)

	ctx := context.Background()
	store, err := objectstore.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	defer objectstore.Close(store) //nolint:errcheck

	opts := artifact.MockOptions{
		Now:          domain.Now(),
		HistoryHours: 24 * 7,
		HorizonHours: 24,
		Branches:     []int32{int32(domain.BranchPublic), int32(domain.BranchIndustry), int32(domain.BranchPrivate)},
	}
	for _, m := range munis {
		opts.Municipalities = append(opts.Municipalities, int32(m))
	}
	if err := artifact.SeedMock(ctx, store, opts); err != nil {
		return fmt.Errorf("seeding artifacts: %w", err)
	}
	log.Printf("seeded forecast artifacts into the %s object store", cfg.ObjectStore)
	return nil
}

// cannedResponse builds hourly records for every municipality and branch
// over the given number of days starting at baseDate (Danish time).
func cannedResponse(munis []int64, days int) sourceResponse {
	resp := sourceResponse{Dataset: "ConsumptionIndustry"}
	for h := 0; h < days*24; h++ {
		dk := baseDate.Add(time.Duration(h) * time.Hour)
		utc := dk.Add(-time.Hour)
		for _, m := range munis {
			for bi, b := range sourceBranches {
				resp.Records = append(resp.Records, sourceRecord{
					HourUTC:        utc.Format(domain.TimestampLayout),
					HourDK:         dk.Format(domain.TimestampLayout),
					MunicipalityNo: fmt.Sprint(m),
					Branche:        b,
					ConsumptionkWh: consumption(dk, m, bi),
				})
			}
		}
	}
	resp.Total = len(resp.Records)
	return resp
}

func consumption(ts time.Time, m int64, branch int) float64 {
	base := 400 + float64(m%100)*8 + float64(branch)*300
	daily := 0.35 * math.Sin(2*math.Pi*float64(ts.Hour()-7)/24)
	return math.Round(base*(1+daily)*100) / 100
}

func cannedMeta() map[string]any {
	return map[string]any{
		"datasetName": "ConsumptionIndustry",
		"displayName": "Consumption per Industry, Public and Private, Municipality and Hour",
		"description": "Hourly consumption per municipality and branch",
		"columns": []map[string]string{
			{"dbColumn": "HourUTC", "dataType": "datetime"},
			{"dbColumn": "HourDK", "dataType": "datetime"},
			{"dbColumn": "MunicipalityNo", "dataType": "string"},
			{"dbColumn": "Branche", "dataType": "string"},
			{"dbColumn": "ConsumptionkWh", "dataType": "number"},
		},
	}
}
