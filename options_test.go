package vamana_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vamana"
	"github.com/hupe1980/vamana/storage"
)

func TestDefaultOptions(t *testing.T) {
	opts := vamana.DefaultOptions()
	assert.Equal(t, 50, opts.R)
	assert.Equal(t, float32(1.2), opts.Alpha)
	assert.Equal(t, 70, opts.L)
	assert.Equal(t, storage.MemmapRAM, opts.Memmap)
	assert.Equal(t, 2, opts.Passes)
	assert.Equal(t, vamana.EntryMedoid, opts.EntryPoint)

	// Capacity has no default.
	assert.ErrorIs(t, opts.Validate(), vamana.ErrInvalidOptions)
	opts.Capacity = 1
	assert.NoError(t, opts.Validate())
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*vamana.Options)
		ok     bool
	}{
		{"Valid", func(*vamana.Options) {}, true},
		{"AlphaOne", func(o *vamana.Options) { o.Alpha = 1 }, true},
		{"SinglePass", func(o *vamana.Options) { o.Passes = 1 }, true},
		{"FullSample", func(o *vamana.Options) { o.SampleSize = 0 }, true},
		{"FixedEntry", func(o *vamana.Options) { o.EntryPoint = vamana.EntryFixed(99) }, true},
		{"ZeroCapacity", func(o *vamana.Options) { o.Capacity = 0 }, false},
		{"ZeroR", func(o *vamana.Options) { o.R = 0 }, false},
		{"NegativeR", func(o *vamana.Options) { o.R = -1 }, false},
		{"AlphaBelowOne", func(o *vamana.Options) { o.Alpha = 0.99 }, false},
		{"ZeroL", func(o *vamana.Options) { o.L = 0 }, false},
		{"UnknownMemmap", func(o *vamana.Options) { o.Memmap = storage.Memmap(7) }, false},
		{"ZeroPasses", func(o *vamana.Options) { o.Passes = 0 }, false},
		{"NegativeSample", func(o *vamana.Options) { o.SampleSize = -1 }, false},
		{"NoRegion", func(o *vamana.Options) { o.RegionName = "" }, false},
		{"EntryOutsideCapacity", func(o *vamana.Options) { o.EntryPoint = vamana.EntryFixed(100) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := vamana.DefaultOptions()
			opts.Capacity = 100
			tt.mutate(&opts)
			err := opts.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, vamana.ErrInvalidOptions)
			}
		})
	}
}

func TestOptions_YAML(t *testing.T) {
	src := `
capacity: 1000000
r: 64
alpha: 1.3
l: 100
memmap: disk
passes: 1
seed: 7
entry_point:
  fixed: true
  id: 12
sample_size: 500
region: docs.graph
`
	opts := vamana.DefaultOptions()
	require.NoError(t, yaml.Unmarshal([]byte(src), &opts))

	assert.Equal(t, uint64(1000000), opts.Capacity)
	assert.Equal(t, 64, opts.R)
	assert.Equal(t, float32(1.3), opts.Alpha)
	assert.Equal(t, 100, opts.L)
	assert.Equal(t, storage.MemmapDisk, opts.Memmap)
	assert.Equal(t, 1, opts.Passes)
	assert.Equal(t, int64(7), opts.Seed)
	assert.Equal(t, vamana.EntryFixed(12), opts.EntryPoint)
	assert.Equal(t, 500, opts.SampleSize)
	assert.Equal(t, "docs.graph", opts.RegionName)
	require.NoError(t, opts.Validate())

	out, err := yaml.Marshal(opts)
	require.NoError(t, err)
	assert.Contains(t, string(out), "memmap: disk")

	partial := vamana.DefaultOptions()
	require.NoError(t, yaml.Unmarshal([]byte("capacity: 10\n"), &partial))
	assert.Equal(t, vamana.DefaultR, partial.R)
	assert.Equal(t, vamana.DefaultRegionName, partial.RegionName)
}
