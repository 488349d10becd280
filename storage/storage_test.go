package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vamana/internal/fs"
	"github.com/hupe1980/vamana/resource"
)

func TestMemoryStore_ReserveAndRegion(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	require.NoError(t, s.Reserve("graph", 128, MemmapRAM))

	r, err := s.Region("graph")
	require.NoError(t, err)
	assert.Equal(t, int64(128), r.Size())
	assert.Len(t, r.Bytes(), 128)
	assert.Equal(t, MemmapRAM, r.Mode())

	r.Bytes()[0] = 0xAB
	again, err := s.Region("graph")
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), again.Bytes()[0])
	assert.NoError(t, again.Flush())
}

func TestMemoryStore_Errors(t *testing.T) {
	s := NewMemoryStore()

	assert.ErrorIs(t, s.Reserve("graph", 0, MemmapRAM), ErrInvalidSize)
	assert.ErrorIs(t, s.Reserve("graph", -1, MemmapRAM), ErrInvalidSize)
	assert.ErrorIs(t, s.Reserve("graph", 64, MemmapDisk), ErrNoDirectory)

	require.NoError(t, s.Reserve("graph", 64, MemmapRAM))
	assert.ErrorIs(t, s.Reserve("graph", 64, MemmapRAM), ErrRegionExists)

	_, err := s.Region("missing")
	assert.ErrorIs(t, err, ErrRegionNotFound)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Reserve("other", 64, MemmapRAM), ErrClosed)
	_, err = s.Region("graph")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_RegionReferences(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Reserve("a", 64, MemmapRAM))
	require.NoError(t, s.Reserve("b", 64, MemmapRAM))

	ra, err := s.Region("a")
	require.NoError(t, err)
	rb, err := s.Region("b")
	require.NoError(t, err)

	a := ra.(RefCounted)
	require.True(t, a.TryIncRef())
	require.True(t, a.TryIncRef())

	assert.ErrorIs(t, s.Remove("a"), ErrRegionInUse)
	assert.ErrorIs(t, s.Close(), ErrRegionInUse)

	// A refused Close leaves every region usable.
	assert.Len(t, rb.Bytes(), 64)
	require.True(t, rb.(RefCounted).TryIncRef())
	rb.(RefCounted).DecRef()

	a.DecRef()
	assert.ErrorIs(t, s.Close(), ErrRegionInUse)
	a.DecRef()
	a.DecRef() // extra releases are ignored

	require.NoError(t, s.Close())
	assert.False(t, a.TryIncRef(), "released regions cannot be retained again")
	assert.False(t, rb.(RefCounted).TryIncRef())
}

func TestStore_RemoveUnreferenced(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	require.NoError(t, s.Reserve("a", 64, MemmapRAM))

	r, err := s.Region("a")
	require.NoError(t, err)
	rc := r.(RefCounted)
	require.True(t, rc.TryIncRef())
	rc.DecRef()

	require.NoError(t, s.Remove("a"))
	assert.False(t, rc.TryIncRef())
	_, err = s.Region("a")
	assert.ErrorIs(t, err, ErrRegionNotFound)
}

func TestMemoryStore_MemoryBudget(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	s := NewMemoryStore(WithResourceController(rc))

	require.NoError(t, s.Reserve("a", 60, MemmapRAM))
	assert.Equal(t, int64(60), rc.MemoryUsage())

	err := s.Reserve("b", 60, MemmapRAM)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)

	require.NoError(t, s.Remove("a"))
	assert.Equal(t, int64(0), rc.MemoryUsage())

	require.NoError(t, s.Reserve("b", 60, MemmapRAM))
	require.NoError(t, s.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestStore_RAMPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Reserve("graph", 16, MemmapRAM))

	r, err := s.Region("graph")
	require.NoError(t, err)
	copy(r.Bytes(), "hello vamana!!!!")
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, "graph.ram"))
	require.NoError(t, err)

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	assert.ErrorIs(t, s2.Reserve("graph", 16, MemmapRAM), ErrRegionExists)

	r2, err := s2.Region("graph")
	require.NoError(t, err)
	assert.Equal(t, MemmapRAM, r2.Mode())
	assert.Equal(t, "hello vamana!!!!", string(r2.Bytes()))
}

func TestStore_RemoveDeletesFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Reserve("graph", 32, MemmapRAM))
	require.NoError(t, s.Remove("graph"))

	_, err = os.Stat(filepath.Join(dir, "graph.ram"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = s.Region("graph")
	assert.ErrorIs(t, err, ErrRegionNotFound)
}

func TestStore_RAMFlushFailure(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("graph.ram", fs.Fault{FailAfterBytes: -1, FailOnRename: true})

	s, err := Open(dir, WithFileSystem(ffs))
	require.NoError(t, err)
	defer s.Close()

	err = s.Reserve("graph", 32, MemmapRAM)
	assert.ErrorIs(t, err, fs.ErrInjected)

	_, err = s.Region("graph")
	assert.ErrorIs(t, err, ErrRegionNotFound)
}

func TestParseMemmap(t *testing.T) {
	tests := []struct {
		in      string
		want    Memmap
		wantErr bool
	}{
		{in: "ram", want: MemmapRAM},
		{in: "RAM", want: MemmapRAM},
		{in: "", want: MemmapRAM},
		{in: "disk", want: MemmapDisk},
		{in: "mmap", want: MemmapDisk},
		{in: "tape", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMemmap(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	var m Memmap
	require.NoError(t, m.UnmarshalText([]byte("disk")))
	assert.Equal(t, MemmapDisk, m)
	text, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "disk", string(text))
	assert.Equal(t, "Memmap(7)", Memmap(7).String())
}
