package vkcache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/DrGr4f1x/vkcache/record"
	"github.com/DrGr4f1x/vkcache/reload"
	"github.com/DrGr4f1x/vkcache/resource"
	"github.com/DrGr4f1x/vkcache/tracefile"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for vkcache and all its sub-packages.
// By default, vkcache produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by vkcache:
//   - [slog.LevelDebug]: internal diagnostics (object construction, pool
//     growth, replay progress)
//   - [slog.LevelInfo]: important lifecycle events (cache warmed)
//   - [slog.LevelWarn]: non-fatal issues (redundant prepare, reset without
//     new bindings)
//   - [slog.LevelError]: soft degradations (missing binding skipped, buffer
//     range clamped)
//
// Example:
//
//	// Enable debug-level logging for full diagnostics:
//	vkcache.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	resource.SetLogger(l)
	record.SetLogger(l)
	tracefile.SetLogger(l)
	reload.SetLogger(l)
}

// Logger returns the current logger used by vkcache.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
