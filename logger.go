package vamana

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/vamana/storage"
)

// Logger is a slog.Logger with one helper per index operation, so every
// operation logs the same keys.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text at info level to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger logs JSON lines at level and above to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger logs logfmt-style text at level and above to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

func (l *Logger) WithRegion(name string) *Logger {
	return &Logger{Logger: l.With("region", name)}
}

func (l *Logger) WithK(k int) *Logger {
	return &Logger{Logger: l.With("k", k)}
}

// outcome logs "<op> failed" at error level when err is set, otherwise
// "<op> completed" at level. attrs are attached in both cases.
func (l *Logger) outcome(ctx context.Context, level slog.Level, op string, err error, attrs ...any) {
	if err != nil {
		l.Log(ctx, slog.LevelError, op+" failed", append(attrs, "error", err)...)
		return
	}
	l.Log(ctx, level, op+" completed", attrs...)
}

func (l *Logger) LogPrebuild(ctx context.Context, region string, size int64, mode storage.Memmap, err error) {
	l.outcome(ctx, slog.LevelInfo, "prebuild", err, "region", region, "bytes", size, "memmap", mode)
}

func (l *Logger) LogBuild(ctx context.Context, nodes int, entry uint32, took time.Duration, err error) {
	if err != nil {
		l.outcome(ctx, slog.LevelInfo, "build", err, "nodes", nodes, "duration", took)
		return
	}
	l.outcome(ctx, slog.LevelInfo, "build", nil, "nodes", nodes, "entry", entry, "duration", took)
}

func (l *Logger) LogLoad(ctx context.Context, region string, nodes int, err error) {
	if err != nil {
		l.outcome(ctx, slog.LevelInfo, "load", err, "region", region)
		return
	}
	l.outcome(ctx, slog.LevelInfo, "load", nil, "region", region, "nodes", nodes)
}

// LogSearch logs successful searches at debug level only.
func (l *Logger) LogSearch(ctx context.Context, k, found, visited int, err error) {
	if err != nil {
		l.outcome(ctx, slog.LevelDebug, "search", err, "k", k)
		return
	}
	l.outcome(ctx, slog.LevelDebug, "search", nil, "k", k, "results", found, "visited", visited)
}

func (l *Logger) LogInsert(ctx context.Context, id uint32) {
	l.DebugContext(ctx, "insert ignored: incremental insertion is not supported", "id", id)
}
