package scrubgo

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/scrubgo/record"
)

// Logger wraps slog.Logger with scrubgo-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithSession adds a session field to the logger.
func (l *Logger) WithSession(key record.SessionKey) *Logger {
	return &Logger{
		Logger: l.Logger.With("session", key.String()),
	}
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogChecksum logs a checksum persist or exchange.
func (l *Logger) LogChecksum(ctx context.Context, path, digest string, exchanged bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checksum failed",
			"path", path,
			"error", err,
		)
	} else if exchanged {
		l.DebugContext(ctx, "checksum adopted from store",
			"path", path,
			"checksum", digest,
		)
	} else {
		l.DebugContext(ctx, "checksum computed",
			"path", path,
			"checksum", digest,
		)
	}
}

// LogClassified logs a backup classification.
func (l *Logger) LogClassified(ctx context.Context, subject, other string, kind record.MatchKind) {
	l.DebugContext(ctx, "classified",
		"subject", subject,
		"other", other,
		"match", kind.String(),
	)
}

// LogInvalidCopy logs a suspect copy discovery.
func (l *Logger) LogInvalidCopy(ctx context.Context, subject, other string, kind record.MatchKind) {
	l.WarnContext(ctx, "invalid copy found",
		"subject", subject,
		"other", other,
		"match", kind.String(),
	)
}

// LogDelete logs a deletion immediately before the filesystem call.
func (l *Logger) LogDelete(ctx context.Context, path string, size int64, backup string) {
	l.InfoContext(ctx, "deleting verified duplicate",
		"path", path,
		"size", size,
		"backup", backup,
	)
}

// LogKept logs why a subject was not deleted.
func (l *Logger) LogKept(ctx context.Context, path, reason string) {
	l.InfoContext(ctx, "kept",
		"path", path,
		"reason", reason,
	)
}

// LogWalk logs a completed walk.
func (l *Logger) LogWalk(ctx context.Context, root string, scanned, registered, deleted, skipped, failed int, reclaimed int64) {
	l.InfoContext(ctx, "walk completed",
		"root", root,
		"scanned", scanned,
		"registered", registered,
		"deleted", deleted,
		"skipped", skipped,
		"failed", failed,
		"reclaimed_bytes", reclaimed,
	)
}
