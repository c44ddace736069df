package retrieval

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with retrieval-specific context: structured
// logging with consistent field names across the build, search,
// mutation, and snapshot paths.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. If handler is nil,
// a text handler writing to stderr at info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that writes human-readable text logs to
// stderr at the given level.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewJSONLogger creates a Logger that writes JSON logs to stderr at the
// given level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)})
	return &Logger{Logger: slog.New(handler)}
}

// LogBuild logs a build_indexes call.
func (l *Logger) LogBuild(ctx context.Context, processed, failures int, elapsedMS int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed", "processed", processed, "failures", failures, "elapsed_ms", elapsedMS, "error", err)
		return
	}
	l.InfoContext(ctx, "build completed", "processed", processed, "failures", failures, "elapsed_ms", elapsedMS)
}

// LogSearch logs a search call.
func (l *Logger) LogSearch(ctx context.Context, k, results int, cacheHit bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "search completed", "k", k, "results", results, "cache_hit", cacheHit)
}

// LogMutation logs an add/update/delete_document call.
func (l *Logger) LogMutation(ctx context.Context, kind string, docID string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "mutation failed", "kind", kind, "doc_id", docID, "error", err)
		return
	}
	l.DebugContext(ctx, "mutation applied", "kind", kind, "doc_id", docID)
}

// LogSnapshot logs a snapshot or load call.
func (l *Logger) LogSnapshot(ctx context.Context, op, path string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot operation failed", "op", op, "path", path, "error", err)
		return
	}
	l.InfoContext(ctx, "snapshot operation completed", "op", op, "path", path)
}
