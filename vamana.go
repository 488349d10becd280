package vamana

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/vamana/distance"
	"github.com/hupe1980/vamana/internal/graph"
	ivamana "github.com/hupe1980/vamana/internal/vamana"
	"github.com/hupe1980/vamana/storage"
	"github.com/hupe1980/vamana/vectors"
)

type (
	// Result is one search hit.
	Result = ivamana.Result
	// SearchStats counts the nodes a search evaluated and expanded.
	SearchStats = ivamana.SearchStats
	// Stats summarizes a built graph.
	Stats = ivamana.Stats
)

// Capabilities reports which optional operations an Index supports.
type Capabilities struct {
	// IncrementalInsert is false: Insert is accepted but never changes the graph.
	IncrementalInsert bool
}

// Index is a built graph bound to its storage region, dataset and distance.
// After Build or Load it is read-only and safe for concurrent searches.
//
// An Index holds a reference on its region until Close, so the storage
// refuses to unmap the region while the Index can still read it.
type Index struct {
	graph   *ivamana.Graph
	region  storage.Region
	release func()
	opts    Options
	logger  *Logger
	metrics MetricsCollector

	// mu is held shared by every reader of region memory and exclusively by Close.
	mu     sync.RWMutex
	closed bool
}

// Prebuild computes the layout for opts.Capacity and opts.R and reserves it in
// alloc under opts.RegionName. When alloc also implements storage.Storage the
// region is formatted as an empty, unbuilt graph.
//
// Prebuild never touches an existing region: reserving a name twice fails
// with ErrStorage wrapping storage.ErrRegionExists.
func Prebuild(ctx context.Context, alloc storage.Preallocator, opts Options, optFns ...Option) (err error) {
	o := applyOptions(optFns)
	start := time.Now()

	var size int64
	defer func() {
		o.metricsCollector.RecordPrebuild(size, time.Since(start), err)
		o.logger.LogPrebuild(ctx, opts.RegionName, size, opts.Memmap, err)
	}()

	if err = opts.Validate(); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	layout, err := graph.Plan(opts.Capacity, opts.R)
	if err != nil {
		return translateError(err)
	}

	if err = alloc.Reserve(opts.RegionName, layout.Size, opts.Memmap); err != nil {
		return fmt.Errorf("%w: reserve %q: %w", ErrStorage, opts.RegionName, err)
	}
	size = layout.Size

	st, ok := alloc.(storage.Storage)
	if !ok {
		return nil
	}
	region, err := st.Region(opts.RegionName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if _, err = graph.Format(region.Bytes(), layout, opts.Memmap == storage.MemmapDisk); err != nil {
		return translateError(err)
	}
	if err = region.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrStorage, err)
	}
	return nil
}

// Build constructs the graph over every vector of data inside the region
// reserved by Prebuild. Any previous graph in the region is discarded first.
// If Build fails or ctx is cancelled the region is left unbuilt and Load
// returns ErrNotBuilt.
func Build(ctx context.Context, st storage.Storage, data vectors.Dataset, dist distance.Func, opts Options, optFns ...Option) (idx *Index, err error) {
	o := applyOptions(optFns)
	start := time.Now()

	nodes := 0
	if data != nil {
		nodes = data.Len()
	}
	var entry uint32
	defer func() {
		o.metricsCollector.RecordBuild(nodes, time.Since(start), err)
		o.logger.WithRegion(opts.RegionName).LogBuild(ctx, nodes, entry, time.Since(start), err)
	}()

	if err = opts.Validate(); err != nil {
		return nil, err
	}
	if data == nil || dist == nil {
		return nil, fmt.Errorf("%w: dataset and distance are required", ErrInvalidOptions)
	}

	if err = o.rc.AcquireBuild(ctx); err != nil {
		return nil, err
	}
	defer o.rc.ReleaseBuild()

	region, store, release, err := attach(st, opts, true)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	p := ivamana.Params{
		Alpha:      opts.Alpha,
		L:          opts.L,
		Passes:     opts.Passes,
		Seed:       opts.Seed,
		SampleSize: opts.SampleSize,
	}
	if opts.EntryPoint.Fixed {
		p.Entry = ivamana.EntryFixed
		p.EntryID = opts.EntryPoint.ID
	}

	buildOpts := []ivamana.Option{ivamana.WithLogger(o.logger.WithRegion(opts.RegionName).Logger)}
	if o.progress != nil {
		buildOpts = append(buildOpts, ivamana.WithProgress(o.progress))
	}

	g, berr := ivamana.Build(ctx, store, data, dist, p, buildOpts...)
	// The region is flushed on failure too so a persisted copy reads as unbuilt.
	if ferr := region.Flush(); ferr != nil && berr == nil {
		berr = fmt.Errorf("%w: flush: %w", ErrStorage, ferr)
	}
	if berr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(berr, ctxErr) {
			return nil, berr
		}
		return nil, translateError(berr)
	}
	entry = g.EntryPoint()

	return &Index{
		graph:   g,
		region:  region,
		release: release,
		opts:    opts,
		logger:  o.logger.WithRegion(opts.RegionName),
		metrics: o.metricsCollector,
	}, nil
}

// Load attaches to a region populated by an earlier Build without any
// construction work. Capacity, R and Memmap must match the region.
//
// L and Alpha should be the values the graph was built with. A mismatch is
// not an error: Load logs a warning and searches with the caller's L, while
// Alpha only affects construction and is recorded in Options.
func Load(ctx context.Context, st storage.Storage, data vectors.Dataset, dist distance.Func, opts Options, optFns ...Option) (idx *Index, err error) {
	o := applyOptions(optFns)
	start := time.Now()

	nodes := 0
	defer func() {
		o.metricsCollector.RecordLoad(time.Since(start), err)
		o.logger.LogLoad(ctx, opts.RegionName, nodes, err)
	}()

	if err = opts.Validate(); err != nil {
		return nil, err
	}
	if data == nil || dist == nil {
		return nil, fmt.Errorf("%w: dataset and distance are required", ErrInvalidOptions)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	region, store, release, err := attach(st, opts, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()
	if !store.Built() {
		return nil, ErrNotBuilt
	}

	h := store.Header()
	if h.L != uint32(opts.L) || h.Alpha != opts.Alpha {
		o.logger.WarnContext(ctx, "load options differ from build options; L and alpha should match the build, searching with the load values",
			"region", opts.RegionName,
			"built_l", h.L,
			"built_alpha", h.Alpha,
			"l", opts.L,
			"alpha", opts.Alpha,
		)
	}

	if o.verifyChecksum {
		if err = store.Verify(); err != nil {
			return nil, translateError(err)
		}
	}

	g, err := ivamana.Load(store, data, dist, opts.L)
	if err != nil {
		return nil, translateError(err)
	}
	nodes = g.Len()

	return &Index{
		graph:   g,
		region:  region,
		release: release,
		opts:    opts,
		logger:  o.logger.WithRegion(opts.RegionName),
		metrics: o.metricsCollector,
	}, nil
}

// attach looks up the region for opts, takes a reference on it and checks
// that its layout matches Capacity, R and Memmap. With format set, a reserved
// but never formatted region is formatted in place. On success the caller
// owns release; on failure the reference is already dropped.
func attach(st storage.Storage, opts Options, format bool) (_ storage.Region, _ *graph.Store, release func(), err error) {
	if st == nil {
		return nil, nil, nil, fmt.Errorf("%w: storage is nil", ErrStorage)
	}
	layout, err := graph.Plan(opts.Capacity, opts.R)
	if err != nil {
		return nil, nil, nil, translateError(err)
	}

	region, err := st.Region(opts.RegionName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	release, err = retain(region)
	if err != nil {
		return nil, nil, nil, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	if region.Mode() != opts.Memmap {
		return nil, nil, nil, fmt.Errorf("%w: region is %v, options request %v", ErrOptionsMismatch, region.Mode(), opts.Memmap)
	}
	if region.Size() != layout.Size {
		return nil, nil, nil, fmt.Errorf("%w: region has %d bytes, capacity %d and R %d need %d",
			ErrOptionsMismatch, region.Size(), opts.Capacity, opts.R, layout.Size)
	}

	buf := region.Bytes()
	disk := opts.Memmap == storage.MemmapDisk

	store, err := graph.Attach(buf)
	if errors.Is(err, graph.ErrInvalidMagic) && blank(buf[:graph.HeaderSize]) {
		if !format {
			return nil, nil, nil, ErrNotBuilt
		}
		store, err = graph.Format(buf, layout, disk)
	}
	if err != nil {
		return nil, nil, nil, translateError(err)
	}

	if store.Capacity() != opts.Capacity || store.R() != opts.R {
		return nil, nil, nil, fmt.Errorf("%w: region laid out for capacity %d and R %d",
			ErrOptionsMismatch, store.Capacity(), store.R())
	}
	if store.Disk() != disk {
		return nil, nil, nil, fmt.Errorf("%w: region header memmap flag differs", ErrOptionsMismatch)
	}
	return region, store, release, nil
}

// retain takes a reference on regions that support it. The returned release
// is safe to call more than once.
func retain(region storage.Region) (func(), error) {
	rc, ok := region.(storage.RefCounted)
	if !ok {
		return func() {}, nil
	}
	if !rc.TryIncRef() {
		return nil, fmt.Errorf("%w: %w", ErrStorage, storage.ErrClosed)
	}
	return sync.OnceFunc(rc.DecRef), nil
}

func blank(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Insert is accepted for API compatibility and never mutates the graph.
// Check Capabilities before relying on it.
func (idx *Index) Insert(ctx context.Context, id uint32) error {
	idx.metrics.RecordInsert()
	idx.logger.LogInsert(ctx, id)
	return nil
}

// Capabilities reports the optional operations this Index supports.
func (idx *Index) Capabilities() Capabilities {
	return Capabilities{IncrementalInsert: false}
}

// Stats summarizes the graph. After Close it returns the zero Stats.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return Stats{}
	}
	return idx.graph.Stats()
}

// Options returns the options the Index was built or loaded with.
func (idx *Index) Options() Options {
	return idx.opts
}

// Len returns the number of nodes in the graph.
func (idx *Index) Len() int {
	return idx.graph.Len()
}

// Dim returns the vector dimension.
func (idx *Index) Dim() int {
	return idx.graph.Dim()
}

// EntryPoint returns the node every search starts from.
func (idx *Index) EntryPoint() uint32 {
	return idx.graph.EntryPoint()
}
