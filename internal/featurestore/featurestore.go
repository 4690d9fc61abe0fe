// Package featurestore keeps versioned feature groups, the feature views
// defined over them and the training datasets materialized from those views.
package featurestore

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned (wrapped) when a feature group, view or training
// dataset does not exist.
var ErrNotFound = errors.New("not found")

// Training dataset job states.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// FormatCSV is the only supported training dataset format.
const FormatCSV = "csv"

// FeatureGroupSpec describes a feature group to create.
type FeatureGroupSpec struct {
	Name          string
	Version       int
	Description   string
	PrimaryKey    []string
	EventTime     string
	OnlineEnabled bool
}

// FeatureGroup is a stored feature group definition.
type FeatureGroup struct {
	FeatureGroupSpec
	Features  []Feature
	CreatedAt time.Time
}

// Feature is one column of a feature group.
type Feature struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Primary   bool   `json:"primary"`
	EventTime bool   `json:"event_time"`
}

// Feature types.
const (
	TypeTimestamp = "timestamp"
	TypeBigint    = "bigint"
	TypeDouble    = "double"
	TypeBoolean   = "boolean"
	TypeString    = "string"
)

// InsertOptions carries the validation artifacts stored alongside an insert.
type InsertOptions struct {
	ExpectationSuite json.RawMessage
	ValidationReport json.RawMessage
}

// FeatureGroupMetadata describes a feature group after an insert.
type FeatureGroupMetadata struct {
	Name             string          `json:"name"`
	Version          int             `json:"version"`
	Description      string          `json:"description"`
	PrimaryKey       []string        `json:"primary_key"`
	EventTime        string          `json:"event_time"`
	OnlineEnabled    bool            `json:"online_enabled"`
	CreatedAt        time.Time       `json:"created_at"`
	CommitID         string          `json:"commit_id"`
	CommittedAt      time.Time       `json:"committed_at"`
	RowsInserted     int             `json:"rows_inserted"`
	RowCount         int             `json:"row_count"`
	Features         []Feature       `json:"features"`
	Statistics       json.RawMessage `json:"statistics,omitempty"`
	ExpectationSuite json.RawMessage `json:"expectation_suite,omitempty"`
	ValidationReport json.RawMessage `json:"validation_report,omitempty"`
}

// Query selects features from one feature group version. An empty Features
// list selects every feature.
type Query struct {
	FeatureGroup string   `json:"feature_group"`
	Version      int      `json:"version"`
	Features     []string `json:"features,omitempty"`
}

// FeatureViewSpec describes a feature view to create.
type FeatureViewSpec struct {
	Name        string
	Version     int
	Description string
	Query       Query
}

// FeatureView is a stored feature view.
type FeatureView struct {
	FeatureViewSpec
	CreatedAt time.Time
}

// TrainingDatasetSpec selects the event-time range [Start, End) of a view.
type TrainingDatasetSpec struct {
	Start       time.Time
	End         time.Time
	Format      string
	Description string
}

// TrainingDataset is a materialization of a feature view.
type TrainingDataset struct {
	ViewName    string    `json:"view_name"`
	ViewVersion int       `json:"view_version"`
	Version     int       `json:"version"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Format      string    `json:"format"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	Rows        int       `json:"rows"`
	JobID       string    `json:"job_id"`
	CreatedAt   time.Time `json:"created_at"`
}
