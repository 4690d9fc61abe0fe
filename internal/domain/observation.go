package domain

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Canonical column names after the rename stage.
const (
	ColDatetimeDK     = "datetime_dk"
	ColDatetimeUTC    = "datetime_utc"
	ColMunicipality   = "municipality_num"
	ColBranch         = "branch"
	ColConsumptionKWh = "consumption_kwh"
)

// Source field names of the ConsumptionIndustry dataset.
const (
	SourceHourUTC      = "HourUTC"
	SourceHourDK       = "HourDK"
	SourceMunicipality = "MunicipalityNo"
	SourceBranch       = "Branche"
	SourceConsumption  = "ConsumptionkWh"
)

// Branch is the integer code of an industry branch.
type Branch int64

const (
	BranchPublic   Branch = 1
	BranchIndustry Branch = 2
	BranchPrivate  Branch = 3
)

// Branches lists every valid branch code.
var Branches = []Branch{BranchPublic, BranchIndustry, BranchPrivate}

var branchNames = map[string]Branch{
	"offentligt": BranchPublic,
	"public":     BranchPublic,
	"erhverv":    BranchIndustry,
	"industry":   BranchIndustry,
	"privat":     BranchPrivate,
	"private":    BranchPrivate,
}

func (b Branch) String() string {
	switch b {
	case BranchPublic:
		return "Public"
	case BranchIndustry:
		return "Industry"
	case BranchPrivate:
		return "Private"
	default:
		return "Branch(" + strconv.FormatInt(int64(b), 10) + ")"
	}
}

// Valid reports whether b is a known branch code.
func (b Branch) Valid() bool {
	return b >= BranchPublic && b <= BranchPrivate
}

// ParseBranch accepts a branch code or its Danish or English name.
func ParseBranch(v any) (Branch, error) {
	if s, ok := v.(string); ok {
		if b, ok := branchNames[strings.ToLower(strings.TrimSpace(s))]; ok {
			return b, nil
		}
	}
	n, err := ToInt64(v)
	if err != nil {
		return 0, fmt.Errorf("parse branch %v: %w", v, err)
	}
	b := Branch(n)
	if !b.Valid() {
		return 0, fmt.Errorf("unknown branch code %d", n)
	}
	return b, nil
}

// MunicipalityNumbers are the codes of Denmark's 98 municipalities.
var MunicipalityNumbers = []int64{
	101, 147, 151, 153, 155, 157, 159, 161, 163, 165, 167, 169, 173, 175, 183, 185,
	187, 190, 201, 210, 217, 219, 223, 230, 240, 250, 253, 259, 260, 265, 269, 270,
	306, 316, 320, 326, 329, 330, 336, 340, 350, 360, 370, 376, 390, 400, 410, 420,
	430, 440, 450, 461, 479, 480, 482, 492, 510, 530, 540, 550, 561, 563, 573, 575,
	580, 607, 615, 621, 630, 657, 661, 665, 671, 706, 707, 710, 727, 730, 740, 741,
	746, 751, 756, 760, 766, 773, 779, 787, 791, 810, 813, 820, 825, 840, 846, 849,
	851, 860,
}

// IsMunicipality reports whether n is a known municipality code.
func IsMunicipality(n int64) bool {
	_, found := slices.BinarySearch(MunicipalityNumbers, n)
	return found
}

// Observation is one hourly consumption reading.
type Observation struct {
	DatetimeDK      time.Time `json:"datetime_dk"`
	MunicipalityNum int64     `json:"municipality_num"`
	Branch          Branch    `json:"branch"`
	ConsumptionKWh  float64   `json:"consumption_kwh"`
}

// ObservationsFromTable reads the canonical columns of a cast table.
func ObservationsFromTable(t *Table) ([]Observation, error) {
	for _, c := range []string{ColDatetimeDK, ColMunicipality, ColBranch, ColConsumptionKWh} {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	out := make([]Observation, t.Len())
	for i := range out {
		ts, ok := t.Get(i, ColDatetimeDK).(time.Time)
		if !ok {
			return nil, fmt.Errorf("row %d: %s is not a timestamp", i, ColDatetimeDK)
		}
		m, err := ToInt64(t.Get(i, ColMunicipality))
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", i, ColMunicipality, err)
		}
		b, err := ParseBranch(t.Get(i, ColBranch))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		kwh, err := ToFloat64(t.Get(i, ColConsumptionKWh))
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", i, ColConsumptionKWh, err)
		}
		out[i] = Observation{DatetimeDK: ts, MunicipalityNum: m, Branch: b, ConsumptionKWh: kwh}
	}
	return out, nil
}

// ToInt64 converts a numeric cell to int64. Floats must be integral.
func ToInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case Branch:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int64(x), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	case nil:
		return 0, fmt.Errorf("null value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// ToFloat64 converts a numeric cell to float64.
func ToFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	case nil:
		return 0, fmt.Errorf("null value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
