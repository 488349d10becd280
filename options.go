package vamana

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/vamana/resource"
	"github.com/hupe1980/vamana/storage"
)

// Defaults.
const (
	DefaultR          = 50
	DefaultAlpha      = float32(1.2)
	DefaultL          = 70
	DefaultPasses     = 2
	DefaultSeed       = int64(42)
	DefaultSampleSize = 10000
	DefaultRegionName = "vamana.graph"
)

// EntryPoint selects how Build picks the node every search starts from.
type EntryPoint struct {
	Fixed bool   `yaml:"fixed"`
	ID    uint32 `yaml:"id"`
}

// EntryMedoid picks the vector nearest the centroid of a seeded sample.
var EntryMedoid = EntryPoint{}

// EntryFixed always starts from id.
func EntryFixed(id uint32) EntryPoint {
	return EntryPoint{Fixed: true, ID: id}
}

// Options are the structural and construction parameters of an index.
//
// Capacity, R and Memmap define the storage layout and must be identical for
// Prebuild, Build and every later Load against the same region. L and Alpha
// may differ at Load time; the caller's values win.
type Options struct {
	// Capacity is the maximum number of vectors. Fixed at Prebuild.
	Capacity uint64 `yaml:"capacity"`
	// R bounds every node's out-degree.
	R int `yaml:"r"`
	// Alpha (>= 1) trades sparsity for long-range edges during pruning.
	Alpha float32 `yaml:"alpha"`
	// L is the search list width used by build and search.
	L int `yaml:"l"`
	// Memmap selects a resident or memory-mapped region.
	Memmap storage.Memmap `yaml:"memmap"`

	// Passes is the number of construction passes. Every pass but the last prunes with alpha = 1.
	Passes int `yaml:"passes"`
	// Seed drives the construction order and the medoid sample.
	Seed int64 `yaml:"seed"`
	// EntryPoint selects the search entry node.
	EntryPoint EntryPoint `yaml:"entry_point"`
	// SampleSize bounds the vectors averaged for the medoid. 0 uses every vector.
	SampleSize int `yaml:"sample_size"`
	// RegionName names the storage region holding the graph.
	RegionName string `yaml:"region"`
}

// DefaultOptions returns R=50, Alpha=1.2, L=70, resident memory and two passes.
// Capacity has no default and must be set.
func DefaultOptions() Options {
	return Options{
		R:          DefaultR,
		Alpha:      DefaultAlpha,
		L:          DefaultL,
		Memmap:     storage.MemmapRAM,
		Passes:     DefaultPasses,
		Seed:       DefaultSeed,
		EntryPoint: EntryMedoid,
		SampleSize: DefaultSampleSize,
		RegionName: DefaultRegionName,
	}
}

// Validate checks every field.
func (o Options) Validate() error {
	switch {
	case o.Capacity == 0:
		return fmt.Errorf("%w: capacity must be > 0", ErrInvalidOptions)
	case o.R <= 0:
		return fmt.Errorf("%w: r must be > 0, got %d", ErrInvalidOptions, o.R)
	case !(o.Alpha >= 1):
		return fmt.Errorf("%w: alpha must be >= 1, got %v", ErrInvalidOptions, o.Alpha)
	case o.L < 1:
		return fmt.Errorf("%w: l must be >= 1, got %d", ErrInvalidOptions, o.L)
	case o.Memmap != storage.MemmapRAM && o.Memmap != storage.MemmapDisk:
		return fmt.Errorf("%w: unknown memmap mode %v", ErrInvalidOptions, o.Memmap)
	case o.Passes < 1:
		return fmt.Errorf("%w: passes must be >= 1, got %d", ErrInvalidOptions, o.Passes)
	case o.SampleSize < 0:
		return fmt.Errorf("%w: sample size must be >= 0, got %d", ErrInvalidOptions, o.SampleSize)
	case o.RegionName == "":
		return fmt.Errorf("%w: region name is empty", ErrInvalidOptions)
	case o.EntryPoint.Fixed && uint64(o.EntryPoint.ID) >= o.Capacity:
		return fmt.Errorf("%w: entry point %d outside capacity %d", ErrInvalidOptions, o.EntryPoint.ID, o.Capacity)
	}
	return nil
}

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	rc               *resource.Controller
	verifyChecksum   bool
	progress         func(pass, done, total int)
}

// Option configures runtime collaborators of Prebuild, Build and Load.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vamana.BasicMetricsCollector{}
//	idx, _ := vamana.Build(ctx, store, data, dist, opts, vamana.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vamana.NewJSONLogger(slog.LevelInfo)
//	idx, _ := vamana.Load(ctx, store, data, dist, opts, vamana.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController serializes builds through rc's build slots.
// Memory budgets are enforced by the storage.Store the controller is attached to.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithVerifyChecksum makes Load recompute the region checksum and validate
// every stored neighbor id. This reads the whole region.
func WithVerifyChecksum() Option {
	return func(o *options) {
		o.verifyChecksum = true
	}
}

// WithProgress reports build progress per pass.
func WithProgress(fn func(pass, done, total int)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
