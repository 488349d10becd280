package vamana

import (
	"fmt"
	"log/slog"
)

// EntryStrategy selects how the build chooses its entry point.
type EntryStrategy int

const (
	// EntryMedoid picks the vector nearest the centroid of a seeded sample.
	EntryMedoid EntryStrategy = iota
	// EntryFixed uses Params.EntryID.
	EntryFixed
)

// Params controls construction. R comes from the graph.Store.
type Params struct {
	Alpha      float32
	L          int
	Passes     int
	Seed       int64
	Entry      EntryStrategy
	EntryID    uint32
	SampleSize int
}

func (p Params) validate() error {
	switch {
	case !(p.Alpha >= 1):
		return fmt.Errorf("%w: alpha must be >= 1, got %v", ErrInvalidParams, p.Alpha)
	case p.L < 1:
		return fmt.Errorf("%w: L must be >= 1, got %d", ErrInvalidParams, p.L)
	case p.Passes < 1:
		return fmt.Errorf("%w: passes must be >= 1, got %d", ErrInvalidParams, p.Passes)
	case p.Entry != EntryMedoid && p.Entry != EntryFixed:
		return fmt.Errorf("%w: unknown entry strategy %d", ErrInvalidParams, p.Entry)
	}
	return nil
}

// passAlpha returns the pruning threshold for pass i. Every pass but the last
// prunes with alpha = 1.
func (p Params) passAlpha(i int) float32 {
	if i < p.Passes-1 {
		return 1
	}
	return p.Alpha
}

// Option configures Build.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	progress func(pass, done, total int)
}

// WithLogger logs per-pass progress at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithProgress registers a callback invoked after every progressEvery nodes
// and at the end of each pass.
func WithProgress(fn func(pass, done, total int)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

const progressEvery = 4096
