// Package observability provides structured logging for recapd.
// All handlers redact provider credentials and sanitize untrusted values
// before they reach log output.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/recapd/recapd/internal/config"
)

// Secret is a string that must never appear in log output. Fields of this
// type are redacted by the masq filter regardless of attribute name.
type Secret string

// String implements fmt.Stringer and keeps accidental %v formatting safe.
func (Secret) String() string { return "[REDACTED]" }

// LogValue implements slog.LogValuer as a second line of defense for
// attrs added outside the configured handlers.
func (Secret) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// Reveal returns the underlying value for use at call sites that genuinely
// need it (HTTP auth headers, SDK construction).
func (s Secret) Reveal() string { return string(s) }

// credentialPattern matches provider credential shapes: OpenAI sk-* and
// sk-proj-*, Anthropic sk-ant-*, Replicate r8_*.
var credentialPattern = regexp.MustCompile(`\b(?:sk-ant-|sk-proj-|sk-|r8_)[A-Za-z0-9_-]{8,}`)

// maxLoggedValueLen truncates oversized payloads before they reach a handler.
const maxLoggedValueLen = 10 * 1024

// NewLogger creates a new slog.Logger based on the provided configuration.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// NewLoggerWithWriter creates a new slog.Logger that writes to the provided
// writer. This is useful for testing or custom output destinations.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	redact := masq.New(
		masq.WithType[Secret](),
		masq.WithRegex(credentialPattern),
		masq.WithTag("secret"),
	)

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			if a.Value.Kind() == slog.KindString {
				a.Value = slog.StringValue(Sanitize(a.Value.String()))
			}
			return redact(groups, a)
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Sanitize strips CR/LF and control characters from a value destined for a
// log line (log-injection guard), masks credential-shaped substrings, and
// truncates payloads beyond 10 KB.
func Sanitize(s string) string {
	if len(s) > maxLoggedValueLen {
		s = s[:maxLoggedValueLen] + "...[truncated]"
	}
	s = credentialPattern.ReplaceAllString(s, "[REDACTED]")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithJobID adds a job ID to the logger.
func WithJobID(logger *slog.Logger, jobID string) *slog.Logger {
	return logger.With(slog.String("job_id", jobID))
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// TimedOperation logs the start and end of an operation with duration.
// Returns a function that should be deferred to log the completion.
//
// Usage:
//
//	done := observability.TimedOperation(ctx, logger, "transcribe")
//	defer done()
func TimedOperation(ctx context.Context, logger *slog.Logger, operation string) func() {
	start := time.Now()
	logger.InfoContext(ctx, "operation started", slog.String("operation", operation))

	return func() {
		logger.InfoContext(ctx, "operation completed",
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
