// Command validate runs the transform stage and the expectation suite over a
// raw CSV written by the extractor, without touching the feature store. It
// prints the validation report and exits non-zero when any expectation fails.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/ConsumptionIndustry_2021-01-01T00-00_2024-01-01T00-00.csv \
//	  -job configs/job.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/couchcryptid/energy-forecast/internal/pipeline"
)

func main() {
	csvPath := flag.String("csv", "", "raw CSV written by the extractor")
	jobPath := flag.String("job", "", "optional YAML job file with transform options")
	asJSON := flag.Bool("json", false, "print the full report as JSON")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(run(os.Stdout, *csvPath, *jobPath, *asJSON))
}

func run(out io.Writer, csvPath, jobPath string, asJSON bool) int {
	job := pipeline.DefaultJob("")
	if jobPath != "" {
		var err error
		if job, err = pipeline.LoadJob(jobPath, job); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
	}

	raw, err := readCSV(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", csvPath, err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	table, err := pipeline.NewTransformer(logger).Transform(raw, job.TransformOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: transform: %v\n", err)
		return 1
	}

	suite := pipeline.BuildExpectationSuite(job.SuiteName, table)
	report := suite.Validate(table)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: encode report: %v\n", err)
			return 1
		}
	} else {
		printReport(out, table, report)
	}

	if !report.Success {
		return 1
	}
	return 0
}

func readCSV(path string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return domain.ReadCSV(f)
}

func printReport(out io.Writer, table *domain.Table, report pipeline.ValidationReport) {
	fmt.Fprintf(out, "=== Validation: %s ===\n\n", report.Suite)
	fmt.Fprintf(out, "Rows: %d, columns: %v\n\n", table.Len(), table.Columns())

	for _, r := range report.Results {
		status := "\033[32mPASS\033[0m"
		if !r.Success {
			status = fmt.Sprintf("\033[31mFAIL (%d unexpected)\033[0m", r.UnexpectedCount)
		}
		fmt.Fprintf(out, "  %-60s %s\n", describe(r.Expectation), status)
		if !r.Success && r.Detail != "" {
			fmt.Fprintf(out, "      %s\n", r.Detail)
		}
	}

	s := report.Statistics
	fmt.Fprintf(out, "\n%d of %d expectations passed (%.1f%%)\n", s.Successful, s.Evaluated, s.SuccessPercent)
	if report.Success {
		fmt.Fprintln(out, "\nAll validations passed.")
		return
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
}

func describe(e pipeline.Expectation) string {
	switch {
	case e.Kwargs.Column != "":
		return e.Type + "(" + e.Kwargs.Column + ")"
	case len(e.Kwargs.ColumnList) > 0:
		return fmt.Sprintf("%s(%v)", e.Type, e.Kwargs.ColumnList)
	default:
		return e.Type
	}
}
