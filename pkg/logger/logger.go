// Package logger provides the process-wide structured logger used by every
// core component. It wraps log/slog behind a singleton so call sites never
// thread a logger instance through constructors, and exposes zap-style
// Msg/Msgf/Msgw variants for parity with the rest of the call surface.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// singleton holds the active logger. It is an atomic pointer so tests can
// swap it out without a lock and concurrent executions never race on reads.
var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newLogger(unstructuredLogsWithEnv(osEnvReader{}), os.Stderr, slog.LevelInfo))
}

// Initialize (re)configures the singleton logger from the process
// environment. Call once at process startup, after flags are parsed.
func Initialize() {
	InitializeWithEnv(osEnvReader{})
}

// InitializeWithEnv is Initialize with an injectable environment reader
// for UNSTRUCTURED_LOGS, used by tests. DEBUG is always read from the
// process environment.
func InitializeWithEnv(env EnvReader) {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}
	singleton.Store(newLogger(unstructuredLogsWithEnv(env), os.Stderr, level))
}

// unstructuredLogsWithEnv reports whether logs should render as
// human-readable text (true, the default) rather than JSON. The value is
// parsed with strconv.ParseBool, so "false", "0", "f", "F", "FALSE" and
// "False" select JSON; an empty or unparsable value is treated as true,
// matching the fail-open posture of the rest of the config surface.
func unstructuredLogsWithEnv(env EnvReader) bool {
	v := env.Getenv("UNSTRUCTURED_LOGS")
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

func newLogger(unstructured bool, w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if unstructured {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// Get returns the current singleton logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// NewLogr adapts the singleton into a logr.Logger for libraries (notably
// MCP transports) that expect that interface.
func NewLogr() logr.Logger {
	return logr.FromSlogHandler(Get().Handler())
}

// Debug logs at debug level.
func Debug(msg string) { Get().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { Get().Debug(fmt.Sprintf(format, args...)) }

// Debugw logs a message with structured key/value pairs at debug level.
func Debugw(msg string, kv ...any) { Get().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string) { Get().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { Get().Info(fmt.Sprintf(format, args...)) }

// Infow logs a message with structured key/value pairs at info level.
func Infow(msg string, kv ...any) { Get().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string) { Get().Warn(msg) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { Get().Warn(fmt.Sprintf(format, args...)) }

// Warnw logs a message with structured key/value pairs at warn level.
func Warnw(msg string, kv ...any) { Get().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string) { Get().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { Get().Error(fmt.Sprintf(format, args...)) }

// Errorw logs a message with structured key/value pairs at error level.
func Errorw(msg string, kv ...any) { Get().Error(msg, kv...) }

// Panicf logs a formatted message at error level, then panics.
func Panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	Get().Error(msg)
	panic(msg)
}

// Panic logs at error level, then panics.
func Panic(msg string) {
	Get().Error(msg)
	panic(msg)
}

// Panicw logs a message with structured key/value pairs at error level,
// then panics.
func Panicw(msg string, kv ...any) {
	Get().Error(msg, kv...)
	panic(msg)
}

// DPanic logs at error level and panics only in debug-enabled builds; here
// it always logs and always panics, matching the zap "development panic"
// contract the rest of the pack's loggers expose.
func DPanic(msg string) { Panic(msg) }

// DPanicf is the formatted form of DPanic.
func DPanicf(format string, args ...any) { Panicf(format, args...) }

// DPanicw is the structured-kv form of DPanic.
func DPanicw(msg string, kv ...any) { Panicw(msg, kv...) }

// WithContext returns a child logger decorated with any attributes the
// caller wants attached to every subsequent line (e.g. an execution ID).
func WithContext(_ context.Context, kv ...any) *slog.Logger {
	return Get().With(kv...)
}
