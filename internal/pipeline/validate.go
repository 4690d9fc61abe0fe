package pipeline

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/domain"
)

// Expectation types.
const (
	ExpectColumnsMatchOrderedList = "expect_table_columns_to_match_ordered_list"
	ExpectRowCountBetween         = "expect_table_row_count_to_be_between"
	ExpectColumnToExist           = "expect_column_to_exist"
	ExpectColumnNotNull           = "expect_column_values_to_not_be_null"
	ExpectColumnOfType            = "expect_column_values_to_be_of_type"
	ExpectColumnBetween           = "expect_column_values_to_be_between"
	ExpectColumnInSet             = "expect_column_values_to_be_in_set"
	ExpectCompoundColumnsUnique   = "expect_compound_columns_to_be_unique"
)

// Column value types named by type expectations.
const (
	TypeDatetime = "datetime64"
	TypeInt      = "int64"
	TypeFloat    = "float64"
	TypeBool     = "bool"
	TypeString   = "object"
)

var columnTypes = map[string]string{
	domain.ColDatetimeDK:     TypeDatetime,
	domain.ColDatetimeUTC:    TypeDatetime,
	domain.ColMunicipality:   TypeInt,
	domain.ColBranch:         TypeInt,
	domain.ColConsumptionKWh: TypeFloat,
	FeatureHourOfDay:         TypeInt,
	FeatureDayOfWeek:         TypeInt,
	FeatureMonth:             TypeInt,
	FeatureDayOfYear:         TypeInt,
	FeatureIsWeekend:         TypeBool,
}

type valueRange struct{ min, max *float64 }

func bound(v float64) *float64 { return &v }

var columnRanges = map[string]valueRange{
	domain.ColConsumptionKWh: {min: bound(0)},
	FeatureHourOfDay:         {min: bound(0), max: bound(23)},
	FeatureDayOfWeek:         {min: bound(0), max: bound(6)},
	FeatureMonth:             {min: bound(1), max: bound(12)},
	FeatureDayOfYear:         {min: bound(1), max: bound(366)},
}

// ExpectationSuite is a named, serializable list of expectations.
type ExpectationSuite struct {
	Name         string        `json:"expectation_suite_name"`
	Expectations []Expectation `json:"expectations"`
}

// Expectation is one declarative check.
type Expectation struct {
	Type   string `json:"expectation_type"`
	Kwargs Kwargs `json:"kwargs"`
}

// Kwargs are the arguments of an expectation. Only the fields relevant to
// its type are set.
type Kwargs struct {
	Column     string   `json:"column,omitempty"`
	ColumnList []string `json:"column_list,omitempty"`
	Type       string   `json:"type_,omitempty"`
	MinValue   *float64 `json:"min_value,omitempty"`
	MaxValue   *float64 `json:"max_value,omitempty"`
	ValueSet   []int64  `json:"value_set,omitempty"`
}

// ValidationReport is the outcome of running a suite against a table.
type ValidationReport struct {
	Suite      string               `json:"expectation_suite_name"`
	Success    bool                 `json:"success"`
	Results    []ExpectationResult  `json:"results"`
	Statistics ValidationStatistics `json:"statistics"`
}

// ExpectationResult is the outcome of one expectation.
type ExpectationResult struct {
	Expectation     Expectation `json:"expectation_config"`
	Success         bool        `json:"success"`
	UnexpectedCount int         `json:"unexpected_count"`
	Detail          string      `json:"detail,omitempty"`
}

// ValidationStatistics summarize a report.
type ValidationStatistics struct {
	Evaluated      int     `json:"evaluated_expectations"`
	Successful     int     `json:"successful_expectations"`
	Unsuccessful   int     `json:"unsuccessful_expectations"`
	SuccessPercent float64 `json:"success_percent"`
}

// ValidationError rejects a table that failed its expectation suite.
type ValidationError struct {
	Report ValidationReport
}

func (e *ValidationError) Error() string {
	var failed []string
	for _, r := range e.Report.Results {
		if r.Success {
			continue
		}
		desc := r.Expectation.Type
		if col := r.Expectation.Kwargs.Column; col != "" {
			desc += "(" + col + ")"
		}
		failed = append(failed, desc)
	}
	return fmt.Sprintf("validation failed for suite %s: %d of %d expectations unsuccessful: %s",
		e.Report.Suite, e.Report.Statistics.Unsuccessful, e.Report.Statistics.Evaluated, strings.Join(failed, ", "))
}

// BuildExpectationSuite derives a suite from the columns of a transformed
// table.
func BuildExpectationSuite(name string, t *domain.Table) ExpectationSuite {
	cols := t.Columns()
	suite := ExpectationSuite{Name: name}
	add := func(typ string, kw Kwargs) {
		suite.Expectations = append(suite.Expectations, Expectation{Type: typ, Kwargs: kw})
	}

	add(ExpectColumnsMatchOrderedList, Kwargs{ColumnList: cols})
	add(ExpectRowCountBetween, Kwargs{MinValue: bound(1)})

	for _, c := range cols {
		add(ExpectColumnToExist, Kwargs{Column: c})
		add(ExpectColumnNotNull, Kwargs{Column: c})
		add(ExpectColumnOfType, Kwargs{Column: c, Type: expectedType(t, c)})
		if r, ok := columnRanges[c]; ok {
			add(ExpectColumnBetween, Kwargs{Column: c, MinValue: r.min, MaxValue: r.max})
		}
	}

	if t.HasColumn(domain.ColMunicipality) {
		add(ExpectColumnInSet, Kwargs{Column: domain.ColMunicipality, ValueSet: slices.Clone(domain.MunicipalityNumbers)})
	}
	if t.HasColumn(domain.ColBranch) {
		set := make([]int64, len(domain.Branches))
		for i, b := range domain.Branches {
			set[i] = int64(b)
		}
		add(ExpectColumnInSet, Kwargs{Column: domain.ColBranch, ValueSet: set})
	}

	key := []string{domain.ColDatetimeDK, domain.ColMunicipality, domain.ColBranch}
	if !slices.ContainsFunc(key, func(c string) bool { return !t.HasColumn(c) }) {
		add(ExpectCompoundColumnsUnique, Kwargs{ColumnList: key})
	}
	return suite
}

// expectedType uses the canonical type of known columns and falls back to
// the first non-null value for anything else.
func expectedType(t *domain.Table, col string) string {
	if typ, ok := columnTypes[col]; ok {
		return typ
	}
	for i := 0; i < t.Len(); i++ {
		if v := t.Get(i, col); v != nil {
			return valueType(v)
		}
	}
	return TypeString
}

func valueType(v any) string {
	switch v.(type) {
	case time.Time:
		return TypeDatetime
	case int64, int, int32:
		return TypeInt
	case float64, float32:
		return TypeFloat
	case bool:
		return TypeBool
	default:
		return TypeString
	}
}

// Validate runs every expectation against t.
func (s ExpectationSuite) Validate(t *domain.Table) ValidationReport {
	report := ValidationReport{Suite: s.Name, Success: true}
	for _, e := range s.Expectations {
		r := evaluate(e, t)
		report.Results = append(report.Results, r)
		report.Statistics.Evaluated++
		if r.Success {
			report.Statistics.Successful++
		} else {
			report.Statistics.Unsuccessful++
			report.Success = false
		}
	}
	if n := report.Statistics.Evaluated; n > 0 {
		report.Statistics.SuccessPercent = 100 * float64(report.Statistics.Successful) / float64(n)
	}
	return report
}

func evaluate(e Expectation, t *domain.Table) ExpectationResult {
	res := ExpectationResult{Expectation: e}
	kw := e.Kwargs

	switch e.Type {
	case ExpectColumnsMatchOrderedList:
		got := t.Columns()
		res.Success = slices.Equal(got, kw.ColumnList)
		if !res.Success {
			res.Detail = fmt.Sprintf("columns are %v", got)
		}
		return res
	case ExpectRowCountBetween:
		n := float64(t.Len())
		res.Success = inRange(n, kw.MinValue, kw.MaxValue)
		if !res.Success {
			res.Detail = fmt.Sprintf("row count is %d", t.Len())
		}
		return res
	case ExpectCompoundColumnsUnique:
		return compoundUnique(res, t, kw.ColumnList)
	}

	values, ok := t.Column(kw.Column)
	if !ok {
		res.Detail = fmt.Sprintf("missing column %q", kw.Column)
		return res
	}

	switch e.Type {
	case ExpectColumnToExist:
	case ExpectColumnNotNull:
		res.UnexpectedCount = countIf(values, func(v any) bool { return v == nil })
	case ExpectColumnOfType:
		res.UnexpectedCount = countIf(values, func(v any) bool { return v != nil && valueType(v) != kw.Type })
	case ExpectColumnBetween:
		res.UnexpectedCount = countIf(values, func(v any) bool {
			if v == nil {
				return false
			}
			f, err := domain.ToFloat64(v)
			return err != nil || !inRange(f, kw.MinValue, kw.MaxValue)
		})
	case ExpectColumnInSet:
		res.UnexpectedCount = countIf(values, func(v any) bool {
			if v == nil {
				return false
			}
			n, err := domain.ToInt64(v)
			return err != nil || !slices.Contains(kw.ValueSet, n)
		})
	default:
		res.Detail = fmt.Sprintf("unknown expectation type %q", e.Type)
		return res
	}

	res.Success = res.UnexpectedCount == 0
	if !res.Success {
		res.Detail = fmt.Sprintf("%d unexpected values", res.UnexpectedCount)
	}
	return res
}

func compoundUnique(res ExpectationResult, t *domain.Table, cols []string) ExpectationResult {
	for _, c := range cols {
		if !t.HasColumn(c) {
			res.Detail = fmt.Sprintf("missing column %q", c)
			return res
		}
	}
	seen := make(map[string]struct{}, t.Len())
	parts := make([]string, len(cols))
	for i := 0; i < t.Len(); i++ {
		for k, c := range cols {
			parts[k] = domain.FormatCell(t.Get(i, c))
		}
		key := strings.Join(parts, "\x00")
		if _, dup := seen[key]; dup {
			res.UnexpectedCount++
			continue
		}
		seen[key] = struct{}{}
	}
	res.Success = res.UnexpectedCount == 0
	if !res.Success {
		res.Detail = fmt.Sprintf("%d duplicate rows", res.UnexpectedCount)
	}
	return res
}

func countIf(values []any, pred func(any) bool) int {
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}
	return n
}

// inRange reports whether v lies within the optional bounds. NaN and
// infinities are never in range.
func inRange(v float64, lo, hi *float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}
