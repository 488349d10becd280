package vamana

import (
	"context"

	"github.com/hupe1980/vamana/distance"
	"github.com/hupe1980/vamana/storage"
	"github.com/hupe1980/vamana/vectors"
)

// Builder provides a fluent API over Options.
//
// Example:
//
//	b := vamana.New(1_000_000).
//	    R(64).
//	    L(100).
//	    Alpha(1.2).
//	    Disk()
//	if err := b.Prebuild(ctx, store); err != nil {
//	    return err
//	}
//	idx, err := b.Build(ctx, store, data, distance.SquaredL2)
type Builder struct {
	opts   Options
	optFns []Option
}

// New starts a Builder with DefaultOptions and the given capacity.
func New(capacity uint64) *Builder {
	opts := DefaultOptions()
	opts.Capacity = capacity
	return &Builder{opts: opts}
}

// R sets the maximum out-degree.
func (b *Builder) R(r int) *Builder {
	b.opts.R = r
	return b
}

// L sets the search list width.
func (b *Builder) L(l int) *Builder {
	b.opts.L = l
	return b
}

// Alpha sets the pruning threshold of the final pass.
func (b *Builder) Alpha(alpha float32) *Builder {
	b.opts.Alpha = alpha
	return b
}

// Passes sets the number of construction passes.
func (b *Builder) Passes(n int) *Builder {
	b.opts.Passes = n
	return b
}

// Seed sets the seed of the construction order and medoid sample.
func (b *Builder) Seed(seed int64) *Builder {
	b.opts.Seed = seed
	return b
}

// SampleSize bounds the vectors averaged for the medoid.
func (b *Builder) SampleSize(n int) *Builder {
	b.opts.SampleSize = n
	return b
}

// EntryPoint fixes the search entry node instead of picking the medoid.
func (b *Builder) EntryPoint(id uint32) *Builder {
	b.opts.EntryPoint = EntryFixed(id)
	return b
}

// Disk places the graph in a memory-mapped region.
func (b *Builder) Disk() *Builder {
	b.opts.Memmap = storage.MemmapDisk
	return b
}

// RAM keeps the graph resident in process memory. This is the default.
func (b *Builder) RAM() *Builder {
	b.opts.Memmap = storage.MemmapRAM
	return b
}

// Region sets the storage region name.
func (b *Builder) Region(name string) *Builder {
	b.opts.RegionName = name
	return b
}

// With appends runtime options passed to every terminal call.
func (b *Builder) With(optFns ...Option) *Builder {
	b.optFns = append(b.optFns, optFns...)
	return b
}

// Options returns the accumulated options.
func (b *Builder) Options() Options {
	return b.opts
}

// Prebuild calls Prebuild with the accumulated options.
func (b *Builder) Prebuild(ctx context.Context, alloc storage.Preallocator) error {
	return Prebuild(ctx, alloc, b.opts, b.optFns...)
}

// Build calls Build with the accumulated options.
func (b *Builder) Build(ctx context.Context, st storage.Storage, data vectors.Dataset, dist distance.Func) (*Index, error) {
	return Build(ctx, st, data, dist, b.opts, b.optFns...)
}

// Load calls Load with the accumulated options.
func (b *Builder) Load(ctx context.Context, st storage.Storage, data vectors.Dataset, dist distance.Func) (*Index, error) {
	return Load(ctx, st, data, dist, b.opts, b.optFns...)
}
