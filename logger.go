package hnsw

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with graph-specific helpers so that operations
// are logged with consistent field names.
//
// A nil *Logger is valid and discards everything.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler writing to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, key any, dimension, level int, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"key", key,
			"dimension", dimension,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "insert completed",
		"key", key,
		"dimension", dimension,
		"level", level,
	)
}

// LogPromotion logs a new entry point raising the height of the graph.
func (l *Logger) LogPromotion(ctx context.Context, key any, level int) {
	if l == nil {
		return
	}
	l.DebugContext(ctx, "entry point promoted",
		"key", key,
		"max_level", level,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, results, distanceCalls int, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"results", results,
		"distance_calls", distanceCalls,
	)
}

// LogExport logs a graph export.
func (l *Logger) LogExport(ctx context.Context, nodes int, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.ErrorContext(ctx, "export failed", "nodes", nodes, "error", err)
		return
	}
	l.InfoContext(ctx, "graph exported", "nodes", nodes)
}

// LogImport logs a graph import.
func (l *Logger) LogImport(ctx context.Context, nodes int, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.ErrorContext(ctx, "import failed", "error", err)
		return
	}
	l.InfoContext(ctx, "graph imported", "nodes", nodes)
}
