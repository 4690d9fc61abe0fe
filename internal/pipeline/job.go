package pipeline

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Default feature group and suite names.
const (
	DefaultFeatureGroupName = "energy_consumption_denmark"
	DefaultSuiteName        = "energy_consumption_denmark_suite"
)

// FeatureGroupConfig names the feature group a run loads into.
type FeatureGroupConfig struct {
	Name          string `mapstructure:"name"`
	Version       int    `mapstructure:"version"`
	Description   string `mapstructure:"description"`
	OnlineEnabled bool   `mapstructure:"online_enabled"`
}

// Job describes one feature pipeline run.
type Job struct {
	Dataset      string             `mapstructure:"dataset"`
	Start        time.Time          `mapstructure:"start"`
	End          time.Time          `mapstructure:"end"`
	Drop         []string           `mapstructure:"drop"`
	Rename       map[string]string  `mapstructure:"rename"`
	Derive       []string           `mapstructure:"derive"`
	FeatureGroup FeatureGroupConfig `mapstructure:"feature_group"`
	SuiteName    string             `mapstructure:"expectation_suite"`
}

// DefaultJob extracts 2021 through 2023 of the dataset into version 1 of
// the default feature group.
func DefaultJob(dataset string) Job {
	opts := DefaultTransformOptions()
	return Job{
		Dataset: dataset,
		Start:   time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC),
		Drop:    opts.Drop,
		Rename:  opts.Rename,
		FeatureGroup: FeatureGroupConfig{
			Name:        DefaultFeatureGroupName,
			Version:     1,
			Description: "Hourly energy consumption per Danish municipality and branch",
		},
		SuiteName: DefaultSuiteName,
	}
}

// Window returns the extraction window of the job.
func (j Job) Window() domain.Window {
	return domain.Window{Start: j.Start, End: j.End}
}

// TransformOptions returns the transform stages of the job.
func (j Job) TransformOptions() TransformOptions {
	return TransformOptions{Drop: j.Drop, Rename: j.Rename, Derive: j.Derive}
}

// Validate checks that the job can run.
func (j Job) Validate() error {
	if j.Dataset == "" {
		return errors.New("job: dataset is required")
	}
	if j.FeatureGroup.Name == "" {
		return errors.New("job: feature_group.name is required")
	}
	if j.FeatureGroup.Version < 1 {
		return errors.New("job: feature_group.version must be positive")
	}
	if j.SuiteName == "" {
		return errors.New("job: expectation_suite is required")
	}
	return j.Window().Validate()
}

// LoadJob reads a YAML job file on top of base. Keys present in the file
// replace the corresponding fields of base; lists and maps are replaced,
// not merged.
func LoadJob(path string, base Job) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read job file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Job{}, fmt.Errorf("parse job file %s: %w", path, err)
	}

	job := base
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &job,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToTimeHook,
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return Job{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Job{}, fmt.Errorf("decode job file %s: %w", path, err)
	}
	return job, job.Validate()
}

var jobTimeLayouts = []string{
	time.DateOnly,
	time.DateTime,
	domain.TimestampLayout,
	domain.APITimeLayout,
	time.RFC3339,
}

func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) || from.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)
	for _, layout := range jobTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q", s)
}

// ParseDate parses a command-line date in any of the job file layouts.
func ParseDate(s string) (time.Time, error) {
	v, err := stringToTimeHook(reflect.TypeOf(""), reflect.TypeOf(time.Time{}), s)
	if err != nil {
		return time.Time{}, err
	}
	return v.(time.Time), nil
}
