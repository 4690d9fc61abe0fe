package energidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/couchcryptid/energy-forecast/internal/fsutil"
	"github.com/couchcryptid/energy-forecast/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	MetaURL string
	Dataset string

	// DataDir receives the raw CSV and metadata JSON. Empty disables persistence.
	DataDir string
	// Descending sorts records newest first.
	Descending bool

	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client extracts datasets and their metadata from the Energi Data Service API.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an Energi Data Service client.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Extract downloads every record of the configured dataset in the window
// [start, end+1 day) together with the dataset metadata. The window is
// validated before any request is made.
func (c *Client) Extract(ctx context.Context, w domain.Window) (domain.Extraction, error) {
	start, end, err := domain.ExtractionDatetime(w.Start, w.End)
	if err != nil {
		return domain.Extraction{}, err
	}
	began := time.Now()

	dataStatus, dataBody, err := c.get(ctx, c.datasetURL(start, end))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("fetch dataset %s: %w", c.opts.Dataset, err)
	}
	metaStatus, metaBody, err := c.get(ctx, c.opts.MetaURL+url.PathEscape(c.opts.Dataset))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("fetch metadata %s: %w", c.opts.Dataset, err)
	}

	var payload struct {
		Records json.RawMessage `json:"records"`
	}
	var metadata map[string]any
	if err := json.Unmarshal(dataBody, &payload); err != nil {
		return domain.Extraction{}, c.decodeError(dataStatus, metaStatus, err)
	}
	if err := json.Unmarshal(metaBody, &metadata); err != nil {
		return domain.Extraction{}, c.decodeError(dataStatus, metaStatus, err)
	}
	if err := statusError("dataset", dataStatus, dataBody); err != nil {
		return domain.Extraction{}, err
	}
	if err := statusError("metadata", metaStatus, metaBody); err != nil {
		return domain.Extraction{}, err
	}

	table, err := decodeRecords(payload.Records)
	if err != nil {
		return domain.Extraction{}, c.decodeError(dataStatus, metaStatus, err)
	}

	c.metrics.RecordsExtracted.Add(float64(table.Len()))
	c.metrics.ExtractionDuration.Observe(time.Since(began).Seconds())
	c.logger.Info("dataset extracted",
		"dataset", c.opts.Dataset,
		"start", start,
		"end", end,
		"records", table.Len(),
		"columns", len(table.Columns()),
	)

	ext := domain.Extraction{
		Dataset:  c.opts.Dataset,
		Table:    table,
		Metadata: metadata,
	}
	if c.opts.DataDir != "" {
		if err := c.persist(&ext, start, end); err != nil {
			return domain.Extraction{}, err
		}
	}
	return ext, nil
}

func (c *Client) datasetURL(start, end string) string {
	sort := domain.SourceHourUTC
	if c.opts.Descending {
		sort += " DESC"
	}
	params := url.Values{
		"offset": {"0"},
		"start":  {start},
		"end":    {end},
		"sort":   {sort},
	}
	return c.opts.BaseURL + url.PathEscape(c.opts.Dataset) + "?" + params.Encode()
}

// get performs a GET with bounded retry on transient failures. The body of
// the final attempt is returned whatever its status.
func (c *Client) get(ctx context.Context, u string) (int, []byte, error) {
	backoff := c.opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		status, body, err := c.do(ctx, u)
		if attempt >= c.opts.MaxRetries || !retryable(ctx, status, err) {
			return status, body, err
		}

		c.logger.Warn("source request failed, retrying",
			"url", u,
			"status", status,
			"error", err,
			"attempt", attempt+1,
			"backoff", backoff,
		)
		c.metrics.SourceRetries.Inc()
		if !retry.SleepWithContext(ctx, backoff) {
			return 0, nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (c *Client) do(ctx context.Context, u string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) decodeError(dataStatus, metaStatus int, err error) error {
	c.logger.Error("failed to decode source response",
		"dataset", c.opts.Dataset,
		"data_status", dataStatus,
		"metadata_status", metaStatus,
		"error", err,
	)
	return &domain.ResponseDecodeError{DataStatus: dataStatus, MetaStatus: metaStatus, Err: err}
}

func statusError(kind string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	const limit = 512
	if len(body) > limit {
		body = body[:limit]
	}
	return fmt.Errorf("energi data service %s request: status %d: %s", kind, status, body)
}

// persist writes the raw table and the metadata under DataDir and records
// their paths on ext.
func (c *Client) persist(ext *domain.Extraction, start, end string) error {
	dataPath := filepath.Join(c.opts.DataDir, domain.RawFilename(c.opts.Dataset, start, end))
	if err := fsutil.WriteAtomic(dataPath, ext.Table.WriteCSV); err != nil {
		return fmt.Errorf("save raw data: %w", err)
	}
	metaPath := filepath.Join(c.opts.DataDir, c.opts.Dataset+"_metadata.json")
	if err := fsutil.WriteJSON(metaPath, ext.Metadata); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}

	ext.DataPath = dataPath
	ext.MetadataPath = metaPath
	c.logger.Info("raw extraction saved", "data_path", dataPath, "metadata_path", metaPath)
	return nil
}
