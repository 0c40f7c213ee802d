// Package ops carries the ambient operational concerns of the core:
// structured logging and admin-triggered maintenance operations.
package ops

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/beacon-search/beacon/internal/config"
)

// Logger is a structured logger wrapper with component scoping and a
// handful of subsystem-specific helpers, matching the shape of a
// production service's logging surface.
type Logger struct {
	*slog.Logger
	level  slog.Level
	format string
}

func levelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured logger based on config.
func NewLogger(cfg *config.Logging) *Logger {
	return newLogger(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a logger writing to a custom writer, used
// by tests that need to assert on emitted log lines.
func NewLoggerWithWriter(cfg *config.Logging, w io.Writer) *Logger {
	return newLogger(cfg, w)
}

func newLogger(cfg *config.Logging, w io.Writer) *Logger {
	level := levelFromString(cfg.Level)
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler), level: level, format: cfg.Format}
}

// WithComponent scopes the logger to a named subsystem.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component), level: l.level, format: l.format}
}

// IsDebugEnabled reports whether debug-level logging is active.
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= slog.LevelDebug
}

// LogRelayFetch logs a Relay Pool Manager fetch attempt.
func (l *Logger) LogRelayFetch(relay string, eventCount int, duration time.Duration, err error) {
	if err != nil {
		l.Warn("relay fetch failed", "relay", relay, "error", err, "duration_ms", duration.Milliseconds())
		return
	}
	l.Debug("relay fetch completed", "relay", relay, "events", eventCount, "duration_ms", duration.Milliseconds())
}

// LogIngestEvent logs the outcome of one event moving through the
// ingestion pipeline.
func (l *Logger) LogIngestEvent(eventID string, kind int, outcome string, reason string) {
	l.Debug("event ingested", "event_id", eventID, "kind", kind, "outcome", outcome, "reason", reason)
}

// LogRetrieve logs a completed FRPEI Retrieve call.
func (l *Logger) LogRetrieve(requestID, query string, providers []string, resultCount int, duration time.Duration) {
	l.Info("frpei retrieve", "request_id", requestID, "query", query, "providers", providers, "results", resultCount, "duration_ms", duration.Milliseconds())
}

// LogBreakerTransition logs a circuit breaker state change.
func (l *Logger) LogBreakerTransition(provider, from, to string) {
	l.Info("circuit breaker transition", "provider", provider, "from", from, "to", to)
}

// LogQueryRewrite logs a completed query rewrite.
func (l *Logger) LogQueryRewrite(original string, expansionCount int, duration time.Duration) {
	l.Debug("query rewritten", "query", original, "expansions", expansionCount, "duration_ms", duration.Milliseconds())
}

// LogPurge logs an explicit admin-invoked document purge.
func (l *Logger) LogPurge(reason string, deleted int64, duration time.Duration, err error) {
	if err != nil {
		l.Warn("document purge failed", "reason", reason, "error", err, "duration_ms", duration.Milliseconds())
		return
	}
	l.Info("document purge completed", "reason", reason, "deleted", deleted, "duration_ms", duration.Milliseconds())
}

// LogBackupOperation logs a database file backup/restore operation.
func (l *Logger) LogBackupOperation(op, path string, sizeBytes int64, err error) {
	if err != nil {
		l.Error("backup operation failed", "operation", op, "path", path, "error", err)
		return
	}
	l.Info("backup operation completed", "operation", op, "path", path, "size_bytes", sizeBytes)
}
