// Package logger provides the structured logging surface shared by
// every resilience-core subsystem: a package-level default logger
// plus domain-tagged child loggers so log lines from the ingestion
// pipeline, coordinator, and cascade engine can be filtered and
// correlated without each call site inventing its own attribute keys.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Structured attribute keys used across resilience-core's log
// vocabulary. Centralizing them keeps "fingerprint" from drifting
// into "fp" or "job_fingerprint" at different call sites.
const (
	KeyComponent   = "component"
	KeyFingerprint = "fingerprint"
	KeyHandle      = "handle"
)

var (
	// Default is the package-level logger every helper writes through.
	Default *slog.Logger
)

func init() {
	Default = New("info", os.Stdout)
}

// parseLevel maps a config-file level string onto a slog.Level,
// defaulting to info for anything unrecognized.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a JSON-formatted logger at the given level, suitable
// for production (machine-parsed log shipping).
func New(level string, output io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(handler)
}

// NewText creates a text-formatted logger at the given level,
// suitable for local development and cmd/resilienced's default output.
func NewText(level string, output io.Writer) *slog.Logger {
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(handler)
}

// SetDefault replaces both this package's Default and slog's global
// default, so third-party libraries logging through slog directly
// land in the same stream.
func SetDefault(l *slog.Logger) {
	Default = l
	slog.SetDefault(l)
}

// Debug logs a debug message through Default.
func Debug(msg string, args ...any) { Default.Debug(msg, args...) }

// Info logs an info message through Default.
func Info(msg string, args ...any) { Default.Info(msg, args...) }

// Warn logs a warning message through Default.
func Warn(msg string, args ...any) { Default.Warn(msg, args...) }

// Error logs an error message through Default.
func Error(msg string, args ...any) { Default.Error(msg, args...) }

// With returns Default augmented with the given attributes.
func With(args ...any) *slog.Logger {
	return Default.With(args...)
}

// Component returns Default tagged with the resilience-core subsystem
// emitting the log line ("ingest", "cascade", "coordinator", "api"),
// so operators can filter one pipeline stage's logs out of the stream
// without grepping message text.
func Component(name string) *slog.Logger {
	return Default.With(KeyComponent, name)
}

// ForFingerprint returns Default tagged with a simulation request's
// dedup fingerprint, so every log line touching one coordinator job
// — across submission, cache hits, and completion — can be correlated
// by that one value.
func ForFingerprint(fp string) *slog.Logger {
	return Default.With(KeyFingerprint, fp)
}
