package vamana_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vamana"
	"github.com/hupe1980/vamana/distance"
	"github.com/hupe1980/vamana/storage"
)

func TestBuilder_Options(t *testing.T) {
	b := vamana.New(1000).
		R(32).
		L(64).
		Alpha(1.5).
		Passes(3).
		Seed(9).
		SampleSize(100).
		EntryPoint(5).
		Disk().
		Region("idx")

	opts := b.Options()
	assert.Equal(t, uint64(1000), opts.Capacity)
	assert.Equal(t, 32, opts.R)
	assert.Equal(t, 64, opts.L)
	assert.Equal(t, float32(1.5), opts.Alpha)
	assert.Equal(t, 3, opts.Passes)
	assert.Equal(t, int64(9), opts.Seed)
	assert.Equal(t, 100, opts.SampleSize)
	assert.Equal(t, vamana.EntryFixed(5), opts.EntryPoint)
	assert.Equal(t, storage.MemmapDisk, opts.Memmap)
	assert.Equal(t, "idx", opts.RegionName)

	assert.Equal(t, storage.MemmapRAM, b.RAM().Options().Memmap)
}

func TestBuilder_PrebuildBuildLoad(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	data := clusterDataset(t)
	metrics := &vamana.BasicMetricsCollector{}

	b := vamana.New(4).R(2).L(3).With(vamana.WithMetricsCollector(metrics))
	require.NoError(t, b.Prebuild(ctx, st))

	built, err := b.Build(ctx, st, data, distance.SquaredL2)
	require.NoError(t, err)

	loaded, err := b.Load(ctx, st, data, distance.SquaredL2)
	require.NoError(t, err)
	assert.Equal(t, built.Stats(), loaded.Stats())

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.PrebuildCount)
	assert.Equal(t, int64(1), stats.BuildCount)
	assert.Equal(t, int64(1), stats.LoadCount)
}
