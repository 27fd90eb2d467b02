package mhdmem

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with memory-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithID adds an entry ID field to the logger.
func (l *Logger) WithID(id EntryID) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", uint64(id)),
	}
}

// WithK adds a k (result count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithWidth adds a record width field to the logger.
func (l *Logger) WithWidth(width int) *Logger {
	return &Logger{
		Logger: l.Logger.With("width", width),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, id EntryID, existing bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"error", err,
		)
		return
	}
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	l.WithID(id).DebugContext(ctx, "insert completed",
		"existing", existing,
	)
}

// LogEviction logs a FIFO eviction.
func (l *Logger) LogEviction(ctx context.Context, evicted, insertedBy EntryID) {
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	l.WithID(evicted).DebugContext(ctx, "entry evicted",
		"inserted", uint64(insertedBy),
	)
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(ctx context.Context, id EntryID, found bool) {
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	l.WithID(id).DebugContext(ctx, "remove completed",
		"found", found,
	)
}

// LogQuery logs a query.
func (l *Logger) LogQuery(ctx context.Context, k, resultsFound int, cached bool, err error) {
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	if err != nil {
		l.WithK(k).DebugContext(ctx, "query failed",
			"error", err,
		)
		return
	}
	l.WithK(k).DebugContext(ctx, "query completed",
		"results", resultsFound,
		"cached", cached,
	)
}

// LogBatchQuery logs a batch query.
func (l *Logger) LogBatchQuery(ctx context.Context, count, k int, err error) {
	if err != nil {
		l.WithK(k).WarnContext(ctx, "batch query failed",
			"count", count,
			"error", err,
		)
		return
	}
	l.WithK(k).InfoContext(ctx, "batch query completed",
		"count", count,
	)
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "snapshot completed",
		"op", op,
		"name", name,
		"entries", entries,
	)
}
