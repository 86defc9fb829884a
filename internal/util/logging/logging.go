package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// New creates a zerolog.Logger writing to w at the named level
// (debug, info, warn, error; anything else means info). Pretty output uses
// zerolog's console writer instead of JSON.
func New(w io.Writer, level string, pretty bool) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the request ID from context.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// LogRequest logs an HTTP request with standard fields. Client errors are
// logged as warnings and server errors as errors.
func LogRequest(logger zerolog.Logger, ctx context.Context, method, path, route string, status int, size int64, latency time.Duration) {
	var ev *zerolog.Event
	switch {
	case status >= 500:
		ev = logger.Error()
	case status >= 400:
		ev = logger.Warn()
	default:
		ev = logger.Info()
	}
	ev.Str("request_id", RequestID(ctx)).
		Str("method", method).
		Str("path", path).
		Str("route", route).
		Int("status", status).
		Int64("size", size).
		Dur("latency", latency).
		Msg("request")
}
