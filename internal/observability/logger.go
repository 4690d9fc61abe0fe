package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/hashicorp/go-multierror"
)

// NewLogger builds the process logger on stdout and installs it as the slog
// default. When mirror is non-nil every record is also written to it, in the
// same format and at the same level.
func NewLogger(level, format string, mirror io.Writer) *slog.Logger {
	base := sharedobs.NewLogger(level, format)
	if mirror == nil {
		return base
	}

	opts := &slog.HandlerOptions{Level: minLevel(base.Handler())}
	var file slog.Handler
	if strings.EqualFold(format, "text") {
		file = slog.NewTextHandler(mirror, opts)
	} else {
		file = slog.NewJSONHandler(mirror, opts)
	}

	logger := slog.New(teeHandler{base.Handler(), file})
	slog.SetDefault(logger)
	return logger
}

// NewRunLogger builds the logger for a batch run. When dir is set the log is
// mirrored into a file named after started; the returned func closes it.
func NewRunLogger(dir, level, format string, started time.Time) (*slog.Logger, func() error, error) {
	if dir == "" {
		return NewLogger(level, format, nil), func() error { return nil }, nil
	}
	f, err := OpenLogFile(dir, started)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(level, format, f), f.Close, nil
}

// OpenLogFile creates dir if needed and opens a log file named after the
// run's start time. The caller owns closing the returned file.
func OpenLogFile(dir string, started time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := started.UTC().Format("2006-01-02_15-04-05") + ".log"
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// minLevel reports the lowest level h accepts.
func minLevel(h slog.Handler) slog.Level {
	for _, l := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if h.Enabled(context.Background(), l) {
			return l
		}
	}
	return slog.LevelError
}

// teeHandler fans each record out to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var merr *multierror.Error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
