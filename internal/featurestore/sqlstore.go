package featurestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/adapter/objectstore"
	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS feature_groups (
	name              TEXT    NOT NULL,
	version           INTEGER NOT NULL,
	description       TEXT    NOT NULL DEFAULT '',
	primary_key       TEXT    NOT NULL,
	event_time        TEXT    NOT NULL,
	online_enabled    INTEGER NOT NULL DEFAULT 0,
	features          TEXT    NOT NULL DEFAULT '[]',
	statistics        TEXT,
	expectation_suite TEXT,
	validation_report TEXT,
	created_at        TEXT    NOT NULL,
	PRIMARY KEY (name, version)
);

CREATE TABLE IF NOT EXISTS feature_group_rows (
	group_name    TEXT    NOT NULL,
	group_version INTEGER NOT NULL,
	pk            TEXT    NOT NULL,
	event_time    TEXT    NOT NULL,
	data          TEXT    NOT NULL,
	commit_id     TEXT    NOT NULL,
	PRIMARY KEY (group_name, group_version, pk)
);

CREATE INDEX IF NOT EXISTS idx_feature_group_rows_event_time
	ON feature_group_rows (group_name, group_version, event_time);

CREATE TABLE IF NOT EXISTS feature_group_commits (
	commit_id     TEXT    PRIMARY KEY,
	group_name    TEXT    NOT NULL,
	group_version INTEGER NOT NULL,
	rows_inserted INTEGER NOT NULL,
	committed_at  TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS feature_views (
	name        TEXT    PRIMARY KEY,
	version     INTEGER NOT NULL,
	description TEXT    NOT NULL DEFAULT '',
	query       TEXT    NOT NULL,
	created_at  TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS training_datasets (
	view_name    TEXT    NOT NULL,
	view_version INTEGER NOT NULL,
	version      INTEGER NOT NULL,
	start_time   TEXT    NOT NULL,
	end_time     TEXT    NOT NULL,
	format       TEXT    NOT NULL,
	location     TEXT    NOT NULL,
	status       TEXT    NOT NULL,
	rows         INTEGER NOT NULL DEFAULT 0,
	job_id       TEXT    NOT NULL,
	created_at   TEXT    NOT NULL,
	PRIMARY KEY (view_name, view_version, version)
);
`

const upsertRowSQL = `
INSERT INTO feature_group_rows (group_name, group_version, pk, event_time, data, commit_id)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (group_name, group_version, pk) DO UPDATE SET
	event_time = excluded.event_time,
	data       = excluded.data,
	commit_id  = excluded.commit_id`

// OnlineSink receives rows of online-enabled feature groups after they are
// committed offline.
type OnlineSink interface {
	Publish(ctx context.Context, group string, version int, keys []string, records []map[string]any) error
}

// SQLStore is a feature store backed by SQLite. Training datasets are
// written to an object store.
type SQLStore struct {
	db      *sql.DB
	objects objectstore.Store
	sink    OnlineSink
	logger  *slog.Logger
	jobs    sync.WaitGroup
}

// Open opens (creating if needed) the SQLite database at path.
func Open(ctx context.Context, path string, objects objectstore.Store, logger *slog.Logger) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create feature store dir: %w", err)
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open feature store: %w", err)
	}
	// One connection serializes writers; the background jobs only run short queries.
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db, objects, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and ensures the schema exists.
func New(ctx context.Context, db *sql.DB, objects objectstore.Store, logger *slog.Logger) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("initialize feature store schema: %w", err)
	}
	return &SQLStore{db: db, objects: objects, logger: logger}, nil
}

// SetOnlineSink enables publishing of online-enabled feature groups.
func (s *SQLStore) SetOnlineSink(sink OnlineSink) { s.sink = sink }

// CheckReadiness pings the database.
func (s *SQLStore) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close waits for running training dataset jobs and closes the database.
func (s *SQLStore) Close() error {
	s.jobs.Wait()
	return s.db.Close()
}

// --- feature groups ---

// GetFeatureGroup returns a feature group version.
func (s *SQLStore) GetFeatureGroup(ctx context.Context, name string, version int) (*FeatureGroup, error) {
	var (
		fg       = &FeatureGroup{}
		pk       string
		features string
		created  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT description, primary_key, event_time, online_enabled, features, created_at
		 FROM feature_groups WHERE name = ? AND version = ?`, name, version,
	).Scan(&fg.Description, &pk, &fg.EventTime, &fg.OnlineEnabled, &features, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feature group %s version %d: %w", name, version, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get feature group %s version %d: %w", name, version, err)
	}

	fg.Name = name
	fg.Version = version
	fg.PrimaryKey = strings.Split(pk, ",")
	if err := json.Unmarshal([]byte(features), &fg.Features); err != nil {
		return nil, fmt.Errorf("decode features of %s: %w", name, err)
	}
	if fg.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return fg, nil
}

// GetOrCreateFeatureGroup returns the feature group named by spec, creating it first if needed.
func (s *SQLStore) GetOrCreateFeatureGroup(ctx context.Context, spec FeatureGroupSpec) (*FeatureGroup, error) {
	switch {
	case spec.Name == "":
		return nil, errors.New("feature group name is required")
	case spec.Version < 1:
		return nil, fmt.Errorf("feature group %s: version must be positive", spec.Name)
	case len(spec.PrimaryKey) == 0:
		return nil, fmt.Errorf("feature group %s: primary key is required", spec.Name)
	case spec.EventTime == "":
		return nil, fmt.Errorf("feature group %s: event time is required", spec.Name)
	}

	fg, err := s.GetFeatureGroup(ctx, spec.Name, spec.Version)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return fg, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feature_groups (name, version, description, primary_key, event_time, online_enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name, version) DO NOTHING`,
		spec.Name, spec.Version, spec.Description, strings.Join(spec.PrimaryKey, ","),
		spec.EventTime, spec.OnlineEnabled, formatTime(domain.Now()))
	if err != nil {
		return nil, fmt.Errorf("create feature group %s version %d: %w", spec.Name, spec.Version, err)
	}
	s.logger.Info("feature group created", "name", spec.Name, "version", spec.Version)
	return s.GetFeatureGroup(ctx, spec.Name, spec.Version)
}

// Insert upserts every row of t into the feature group, keyed by its
// primary key, and returns the group's metadata after the commit.
func (s *SQLStore) Insert(ctx context.Context, fg *FeatureGroup, t *domain.Table, opts InsertOptions) (*FeatureGroupMetadata, error) {
	for _, c := range append(slices.Clone(fg.PrimaryKey), fg.EventTime) {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("insert into %s: missing column %q", fg.Name, c)
		}
	}
	features := inferFeatures(t, fg.PrimaryKey, fg.EventTime)
	if len(fg.Features) > 0 && !slices.Equal(fg.Features, features) {
		return nil, fmt.Errorf("insert into %s version %d: schema does not match the existing feature group", fg.Name, fg.Version)
	}
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return nil, err
	}
	statsJSON, err := json.Marshal(computeStatistics(t))
	if err != nil {
		return nil, err
	}

	commitID := uuid.NewString()
	committedAt := domain.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsertRowSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	keys := make([]string, t.Len())
	records := make([]map[string]any, t.Len())
	for i := 0; i < t.Len(); i++ {
		ts, ok := t.Get(i, fg.EventTime).(time.Time)
		if !ok {
			return nil, fmt.Errorf("insert into %s: row %d: event time %q is not a timestamp", fg.Name, i, fg.EventTime)
		}
		records[i] = t.Record(i)
		data, err := encodeRecord(records[i])
		if err != nil {
			return nil, fmt.Errorf("insert into %s: row %d: %w", fg.Name, i, err)
		}
		keys[i] = primaryKeyValue(t, i, fg.PrimaryKey)
		if _, err := stmt.ExecContext(ctx, fg.Name, fg.Version, keys[i], ts.Format(domain.TimestampLayout), string(data), commitID); err != nil {
			return nil, fmt.Errorf("insert into %s: row %d: %w", fg.Name, i, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO feature_group_commits (commit_id, group_name, group_version, rows_inserted, committed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		commitID, fg.Name, fg.Version, t.Len(), formatTime(committedAt)); err != nil {
		return nil, fmt.Errorf("record commit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE feature_groups SET features = ?, statistics = ?, expectation_suite = ?, validation_report = ?
		 WHERE name = ? AND version = ?`,
		string(featuresJSON), string(statsJSON), nullableJSON(opts.ExpectationSuite), nullableJSON(opts.ValidationReport),
		fg.Name, fg.Version); err != nil {
		return nil, fmt.Errorf("update feature group: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	fg.Features = features

	s.logger.Info("feature group rows committed",
		"name", fg.Name,
		"version", fg.Version,
		"rows", t.Len(),
		"commit_id", commitID,
	)

	if fg.OnlineEnabled && s.sink != nil {
		if err := s.sink.Publish(ctx, fg.Name, fg.Version, keys, records); err != nil {
			s.logger.Error("online publish failed after offline commit",
				"name", fg.Name,
				"version", fg.Version,
				"commit_id", commitID,
				"error", err,
			)
			return nil, fmt.Errorf("rows committed to %s v%d (commit %s); publish online features: %w",
				fg.Name, fg.Version, commitID, err)
		}
	}
	return s.Metadata(ctx, fg.Name, fg.Version)
}

// Metadata describes a feature group version and its latest commit.
func (s *SQLStore) Metadata(ctx context.Context, name string, version int) (*FeatureGroupMetadata, error) {
	fg, err := s.GetFeatureGroup(ctx, name, version)
	if err != nil {
		return nil, err
	}
	meta := &FeatureGroupMetadata{
		Name:          fg.Name,
		Version:       fg.Version,
		Description:   fg.Description,
		PrimaryKey:    fg.PrimaryKey,
		EventTime:     fg.EventTime,
		OnlineEnabled: fg.OnlineEnabled,
		CreatedAt:     fg.CreatedAt,
		Features:      fg.Features,
	}

	var stats, suite, report sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT statistics, expectation_suite, validation_report FROM feature_groups WHERE name = ? AND version = ?`,
		name, version,
	).Scan(&stats, &suite, &report); err != nil {
		return nil, fmt.Errorf("get feature group artifacts: %w", err)
	}
	meta.Statistics = rawJSON(stats)
	meta.ExpectationSuite = rawJSON(suite)
	meta.ValidationReport = rawJSON(report)

	var committed string
	err = s.db.QueryRowContext(ctx,
		`SELECT commit_id, rows_inserted, committed_at FROM feature_group_commits
		 WHERE group_name = ? AND group_version = ? ORDER BY rowid DESC LIMIT 1`,
		name, version,
	).Scan(&meta.CommitID, &meta.RowsInserted, &committed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("get latest commit: %w", err)
	default:
		if meta.CommittedAt, err = parseTime(committed); err != nil {
			return nil, err
		}
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feature_group_rows WHERE group_name = ? AND group_version = ?`,
		name, version,
	).Scan(&meta.RowCount); err != nil {
		return nil, fmt.Errorf("count feature group rows: %w", err)
	}
	return meta, nil
}

// Read returns the rows selected by q ordered by event time. When start and
// end are non-nil only rows with event time in [start, end) are returned.
func (s *SQLStore) Read(ctx context.Context, q Query, start, end *time.Time) (*domain.Table, error) {
	fg, err := s.GetFeatureGroup(ctx, q.FeatureGroup, q.Version)
	if err != nil {
		return nil, err
	}
	features, err := selectFeatures(fg.Features, q.Features)
	if err != nil {
		return nil, err
	}

	query := `SELECT data FROM feature_group_rows WHERE group_name = ? AND group_version = ?`
	args := []any{q.FeatureGroup, q.Version}
	if start != nil && end != nil {
		query += ` AND event_time >= ? AND event_time < ?`
		args = append(args, start.Format(domain.TimestampLayout), end.Format(domain.TimestampLayout))
	}
	query += ` ORDER BY event_time, pk`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", q.FeatureGroup, err)
	}
	defer rows.Close()

	names := make([]string, len(features))
	for j, f := range features {
		names[j] = f.Name
	}
	t, err := domain.NewTable(names...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		row, err := decodeRecord([]byte(data), features)
		if err != nil {
			return nil, fmt.Errorf("decode row of %s: %w", q.FeatureGroup, err)
		}
		if err := t.Append(row...); err != nil {
			return nil, err
		}
	}
	return t, rows.Err()
}

func selectFeatures(all []Feature, names []string) ([]Feature, error) {
	if len(names) == 0 {
		return all, nil
	}
	out := make([]Feature, 0, len(names))
	for _, n := range names {
		i := slices.IndexFunc(all, func(f Feature) bool { return f.Name == n })
		if i < 0 {
			return nil, fmt.Errorf("unknown feature %q", n)
		}
		out = append(out, all[i])
	}
	return out, nil
}

// --- feature views ---

// CreateFeatureView stores a feature view, replacing any view with the same name.
func (s *SQLStore) CreateFeatureView(ctx context.Context, spec FeatureViewSpec) (*FeatureView, error) {
	if spec.Name == "" {
		return nil, errors.New("feature view name is required")
	}
	if spec.Version < 1 {
		return nil, fmt.Errorf("feature view %s: version must be positive", spec.Name)
	}
	fg, err := s.GetFeatureGroup(ctx, spec.Query.FeatureGroup, spec.Query.Version)
	if err != nil {
		return nil, fmt.Errorf("create feature view %s: %w", spec.Name, err)
	}
	if _, err := selectFeatures(fg.Features, spec.Query.Features); err != nil {
		return nil, fmt.Errorf("create feature view %s: %w", spec.Name, err)
	}

	query, err := json.Marshal(spec.Query)
	if err != nil {
		return nil, err
	}
	now := domain.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feature_views (name, version, description, query, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
			version = excluded.version, description = excluded.description,
			query = excluded.query, created_at = excluded.created_at`,
		spec.Name, spec.Version, spec.Description, string(query), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create feature view %s: %w", spec.Name, err)
	}
	s.logger.Info("feature view created", "name", spec.Name, "version", spec.Version,
		"feature_group", spec.Query.FeatureGroup, "feature_group_version", spec.Query.Version)
	return &FeatureView{FeatureViewSpec: spec, CreatedAt: now}, nil
}

// GetFeatureView returns the live view under name.
func (s *SQLStore) GetFeatureView(ctx context.Context, name string) (*FeatureView, error) {
	var (
		fv      = &FeatureView{}
		query   string
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, description, query, created_at FROM feature_views WHERE name = ?`, name,
	).Scan(&fv.Version, &fv.Description, &query, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feature view %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get feature view %s: %w", name, err)
	}
	fv.Name = name
	if err := json.Unmarshal([]byte(query), &fv.Query); err != nil {
		return nil, fmt.Errorf("decode query of %s: %w", name, err)
	}
	if fv.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return fv, nil
}

// DeleteFeatureView removes the view under name.
func (s *SQLStore) DeleteFeatureView(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM feature_views WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete feature view %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("feature view %s: %w", name, ErrNotFound)
	}
	s.logger.Info("feature view deleted", "name", name)
	return nil
}

// --- training datasets ---

// ListTrainingDatasets returns the training datasets of a view version.
func (s *SQLStore) ListTrainingDatasets(ctx context.Context, viewName string, viewVersion int) ([]TrainingDataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, start_time, end_time, format, location, status, rows, job_id, created_at
		 FROM training_datasets WHERE view_name = ? AND view_version = ? ORDER BY version`,
		viewName, viewVersion)
	if err != nil {
		return nil, fmt.Errorf("list training datasets of %s: %w", viewName, err)
	}
	defer rows.Close()

	var out []TrainingDataset
	for rows.Next() {
		td := TrainingDataset{ViewName: viewName, ViewVersion: viewVersion}
		var start, end, created string
		if err := rows.Scan(&td.Version, &start, &end, &td.Format, &td.Location, &td.Status, &td.Rows, &td.JobID, &created); err != nil {
			return nil, err
		}
		if td.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if td.End, err = parseTime(end); err != nil {
			return nil, err
		}
		if td.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, td)
	}
	return out, rows.Err()
}

// TrainingDatasetViewVersions returns the view versions under name that
// still have training datasets, including versions whose view was replaced.
func (s *SQLStore) TrainingDatasetViewVersions(ctx context.Context, viewName string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT view_version FROM training_datasets WHERE view_name = ? ORDER BY view_version`, viewName)
	if err != nil {
		return nil, fmt.Errorf("list training dataset versions of %s: %w", viewName, err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteTrainingDatasets removes every training dataset of a view version
// and its materialized object. Each dataset is attempted even if an earlier
// one fails; the failures are returned together.
func (s *SQLStore) DeleteTrainingDatasets(ctx context.Context, viewName string, viewVersion int) error {
	tds, err := s.ListTrainingDatasets(ctx, viewName, viewVersion)
	if err != nil {
		return err
	}

	var merr *multierror.Error
	for _, td := range tds {
		if s.objects != nil && td.Location != "" {
			if err := s.objects.Delete(ctx, td.Location); err != nil && !errors.Is(err, objectstore.ErrNotExist) {
				merr = multierror.Append(merr, fmt.Errorf("delete training dataset %s version %d: %w", viewName, td.Version, err))
				continue
			}
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM training_datasets WHERE view_name = ? AND view_version = ? AND version = ?`,
			viewName, viewVersion, td.Version); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("delete training dataset %s version %d: %w", viewName, td.Version, err))
		}
	}
	if len(tds) > 0 {
		s.logger.Info("training datasets deleted", "view", viewName, "view_version", viewVersion, "count", len(tds))
	}
	return merr.ErrorOrNil()
}

// CreateTrainingDataset starts a background job that materializes the view
// over [spec.Start, spec.End) as CSV in the object store.
func (s *SQLStore) CreateTrainingDataset(ctx context.Context, viewName string, spec TrainingDatasetSpec) (*Job, error) {
	if s.objects == nil {
		return nil, errors.New("create training dataset: no object store configured")
	}
	if spec.Format == "" {
		spec.Format = FormatCSV
	}
	if spec.Format != FormatCSV {
		return nil, fmt.Errorf("create training dataset: unsupported format %q", spec.Format)
	}
	if !spec.Start.Before(spec.End) {
		return nil, fmt.Errorf("create training dataset: start %s is not before end %s",
			spec.Start.Format(time.DateTime), spec.End.Format(time.DateTime))
	}

	view, err := s.GetFeatureView(ctx, viewName)
	if err != nil {
		return nil, err
	}

	var next int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM training_datasets WHERE view_name = ? AND view_version = ?`,
		view.Name, view.Version,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("next training dataset version: %w", err)
	}

	td := TrainingDataset{
		ViewName:    view.Name,
		ViewVersion: view.Version,
		Version:     next,
		Start:       spec.Start,
		End:         spec.End,
		Format:      spec.Format,
		Location:    trainingDatasetKey(view.Name, view.Version, next),
		Status:      StatusRunning,
		JobID:       uuid.NewString(),
		CreatedAt:   domain.Now(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO training_datasets (view_name, view_version, version, start_time, end_time, format, location, status, job_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		td.ViewName, td.ViewVersion, td.Version, formatTime(td.Start), formatTime(td.End),
		td.Format, td.Location, td.Status, td.JobID, formatTime(td.CreatedAt)); err != nil {
		return nil, fmt.Errorf("register training dataset: %w", err)
	}

	job := newJob(td.JobID)
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.materialize(context.WithoutCancel(ctx), view, td, job)
	}()

	s.logger.Info("training dataset job started", "view", view.Name, "version", td.Version, "job_id", td.JobID)
	return job, nil
}

func (s *SQLStore) materialize(ctx context.Context, view *FeatureView, td TrainingDataset, job *Job) {
	start, end := td.Start, td.End
	t, err := s.Read(ctx, view.Query, &start, &end)
	if err == nil {
		var buf strings.Builder
		if err = t.WriteCSV(&buf); err == nil {
			err = s.objects.Put(ctx, td.Location, []byte(buf.String()), "text/csv")
		}
		td.Rows = t.Len()
	}

	td.Status = StatusSucceeded
	if err != nil {
		td.Status = StatusFailed
		s.logger.Error("training dataset job failed", "view", view.Name, "version", td.Version, "error", err)
	}
	if _, updErr := s.db.ExecContext(ctx,
		`UPDATE training_datasets SET status = ?, rows = ? WHERE view_name = ? AND view_version = ? AND version = ?`,
		td.Status, td.Rows, td.ViewName, td.ViewVersion, td.Version); updErr != nil && err == nil {
		err = fmt.Errorf("update training dataset status: %w", updErr)
	}
	job.finish(td, err)
}

func trainingDatasetKey(view string, viewVersion, version int) string {
	return fmt.Sprintf("training_datasets/%s_%d/version_%d.csv", view, viewVersion, version)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func rawJSON(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}
