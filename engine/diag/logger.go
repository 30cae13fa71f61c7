// Package diag is the process-wide diagnostic sink for the renderer. Resource
// and shader failures are reported here instead of unwinding the frame loop.
package diag

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards every record. Enabled returns
// false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var (
	loggerPtr atomic.Pointer[slog.Logger]
	sinkPtr   atomic.Pointer[func(error)]

	onceMu   sync.Mutex
	onceSeen = map[string]struct{}{}
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger installs the logger used for all renderer diagnostics.
// Passing nil restores the silent default.
//
// SetLogger is safe for concurrent use.
//
// Parameters:
//   - l: the logger to install, or nil to disable logging
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the active diagnostic logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// SetSink installs a hook that observes every reported error after it has been
// logged. Passing nil removes the hook.
//
// Parameters:
//   - fn: the observer, or nil
func SetSink(fn func(error)) {
	if fn == nil {
		sinkPtr.Store(nil)
		return
	}
	sinkPtr.Store(&fn)
}

// Report logs err at the level matching its kind and forwards it to the sink.
// Warnings log at Warn, every other error at Error. A nil err is ignored.
//
// Parameters:
//   - err: the error to report
func Report(err error) {
	if err == nil {
		return
	}

	level := slog.LevelError
	if IsWarning(err) {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{slog.String("kind", Kind(err))}
	var d detailer
	if errors.As(err, &d) {
		attrs = append(attrs, d.attrs()...)
	}
	Logger().LogAttrs(context.Background(), level, err.Error(), attrs...)

	if fn := sinkPtr.Load(); fn != nil {
		(*fn)(err)
	}
}

// WarnOnce reports err the first time key is seen and drops it afterwards.
// Returns true when the error was reported.
//
// Parameters:
//   - key: the deduplication key, usually "<program>/<name>"
//   - err: the warning to report
//
// Returns:
//   - bool: true if this call reported err
func WarnOnce(key string, err error) bool {
	onceMu.Lock()
	_, seen := onceSeen[key]
	if !seen {
		onceSeen[key] = struct{}{}
	}
	onceMu.Unlock()

	if seen {
		return false
	}
	Report(err)
	return true
}

// ResetOnce forgets every WarnOnce key that starts with prefix. An empty prefix
// clears all keys.
//
// Parameters:
//   - prefix: the key prefix to forget
func ResetOnce(prefix string) {
	onceMu.Lock()
	defer onceMu.Unlock()
	for k := range onceSeen {
		if prefix == "" || len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(onceSeen, k)
		}
	}
}
