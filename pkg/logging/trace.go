package logging

import (
	"context"
	"log/slog"
)

// EnableTrace turns on per-tick output from the drive loop and the vision
// worker. Off by default.
var EnableTrace = false

// Trace logs at DEBUG on logger when tracing is on.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if !EnableTrace || !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	logger.Debug(msg, args...)
}

// TraceDefault is Trace on the default logger.
func TraceDefault(msg string, args ...any) {
	Trace(slog.Default(), msg, args...)
}
