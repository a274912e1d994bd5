package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

// Format specifies the output format for console log messages.
type Format string

const (
	// FormatText produces human-readable text output.
	FormatText Format = "text"
	// FormatJSON produces machine-readable JSON output.
	FormatJSON Format = "json"
)

// ParseFormat parses a format name. An empty name means FormatText.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, errors.Newf("invalid log format: %s", s)
	}
}

// ParseLevel parses a log level name. An empty name means Info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Newf("invalid log level: %s", s)
	}
}

// Config holds the configuration for creating a new logger.
type Config struct {
	// Level sets the minimum log level. Messages below this level are discarded.
	Level slog.Level
	// Format specifies the console output format.
	Format Format
	// Output is the console writer. Defaults to os.Stderr if nil.
	Output io.Writer
	// File, when set, also writes JSON records to this path.
	File string
	// MaxSize rotates File once it grows past this many bytes (0 = never).
	MaxSize int64
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger with the given configuration. The returned closer
// releases the log file, if any, and must be called before exit.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
	}

	var console slog.Handler
	switch cfg.Format {
	case FormatJSON:
		console = slog.NewJSONHandler(output, opts)
	default:
		console = NewHandler(output, opts)
	}

	if cfg.File == "" {
		return slog.New(console), nopCloser{}, nil
	}

	file, err := OpenRotating(cfg.File, cfg.MaxSize)
	if err != nil {
		return nil, nil, err
	}
	handler := NewMultiHandler(console, slog.NewJSONHandler(file, opts))
	return slog.New(handler), file, nil
}

// NewDiscard creates a logger that discards all output.
func NewDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testWriter adapts testing.T to io.Writer for use with slog handlers.
type testWriter struct {
	t *testing.T
}

// Write implements io.Writer by logging to the test.
func (w *testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// ForTest creates a Debug level logger that writes to the test's log output.
func ForTest(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(NewHandler(&testWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
