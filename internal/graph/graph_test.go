package graph

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vamana/internal/hash"
)

func newStore(t *testing.T, capacity uint64, r int) *Store {
	t.Helper()
	layout, err := Plan(capacity, r)
	require.NoError(t, err)
	s, err := Format(make([]byte, layout.Size), layout, false)
	require.NoError(t, err)
	return s
}

func TestPlan(t *testing.T) {
	l, err := Plan(4, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(64), l.DegreeOffset)
	assert.Equal(t, int64(64+16), l.AdjacencyOffset)
	assert.Equal(t, int64(64+4*4+4*4*2), l.Size)

	l, err = Plan(1000, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(64+4*1000+4*1000*50), l.Size)

	_, err = Plan(0, 50)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = Plan(10, 0)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = Plan(10, -1)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = Plan(MaxCapacity+1, 1)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = Plan(MaxCapacity, math.MaxInt32)
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Magic: Magic, Version: Version, Capacity: 1 << 40, R: 50, L: 70, Alpha: 1.2,
		Dim: 128, Count: 99, Entry: 7, Flags: FlagBuilt | FlagDisk, Passes: 2, Checksum: 0xdeadbeef,
	}
	buf := make([]byte, HeaderSize)
	for i := range buf {
		buf[i] = 0xff
	}
	h.Encode(buf)

	assert.Equal(t, "VMNA", string(buf[:4]))
	assert.Equal(t, make([]byte, HeaderSize-52), buf[52:])

	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.True(t, got.Built())
	assert.True(t, got.Disk())

	_, err = DecodeHeader(buf[:10])
	assert.ErrorIs(t, err, ErrSizeMismatch)

	binary.LittleEndian.PutUint32(buf[4:], 9)
	_, err = DecodeHeader(buf)
	assert.ErrorIs(t, err, ErrInvalidVersion)

	buf[0] = 'X'
	_, err = DecodeHeader(buf)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestFormat(t *testing.T) {
	layout, err := Plan(3, 2)
	require.NoError(t, err)

	buf := make([]byte, layout.Size)
	for i := range buf {
		buf[i] = 0xAA
	}
	s, err := Format(buf, layout, true)
	require.NoError(t, err)

	assert.False(t, s.Built())
	assert.True(t, s.Disk())
	assert.Equal(t, uint64(3), s.Capacity())
	assert.Equal(t, 2, s.R())
	for id := uint32(0); id < 3; id++ {
		assert.Equal(t, 0, s.Degree(id))
		assert.Empty(t, s.Neighbors(id))
	}
	for i := layout.AdjacencyOffset; i < layout.Size; i++ {
		require.Equal(t, byte(0xff), buf[i])
	}

	_, err = Format(buf[:len(buf)-4], layout, false)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestSetNeighbors(t *testing.T) {
	s := newStore(t, 4, 3)

	require.NoError(t, s.SetNeighbors(1, []uint32{0, 2, 3}))
	assert.Equal(t, []uint32{0, 2, 3}, s.Neighbors(1))

	require.NoError(t, s.SetNeighbors(1, []uint32{2}))
	assert.Equal(t, []uint32{2}, s.Neighbors(1))
	assert.Equal(t, 1, s.Degree(1))

	err := s.SetNeighbors(1, []uint32{0, 2, 3, 0})
	assert.ErrorIs(t, err, ErrDegreeExceeded)
	assert.Equal(t, []uint32{2}, s.Neighbors(1), "failed write leaves list untouched")

	assert.ErrorIs(t, s.SetNeighbors(4, nil), ErrNodeOutOfRange)

	// Neighbors views are capped so appends cannot spill into the next node.
	view := s.Neighbors(1)
	assert.Equal(t, 3, cap(view))
	_ = append(view, 9, 9, 9)
	assert.Equal(t, 0, s.Degree(2))
	assert.Empty(t, s.Neighbors(2))
}

func TestFinalizeAttachVerify(t *testing.T) {
	layout, err := Plan(4, 2)
	require.NoError(t, err)
	buf := make([]byte, layout.Size)
	s, err := Format(buf, layout, false)
	require.NoError(t, err)

	require.NoError(t, s.SetNeighbors(0, []uint32{1}))
	require.NoError(t, s.SetNeighbors(1, []uint32{0, 2}))
	require.NoError(t, s.SetNeighbors(2, []uint32{1, 3}))
	require.NoError(t, s.SetNeighbors(3, []uint32{2}))
	require.NoError(t, s.Finalize(Meta{Count: 4, Dim: 1, Entry: 1, L: 3, Alpha: 1.2, Passes: 2}))
	assert.True(t, s.Built())

	attached, err := Attach(buf)
	require.NoError(t, err)
	assert.True(t, attached.Built())
	assert.Equal(t, uint32(1), attached.EntryPoint())
	assert.Equal(t, 4, attached.Count())
	assert.Equal(t, 1, attached.Dim())
	assert.Equal(t, float32(1.2), attached.Header().Alpha)
	assert.Equal(t, s.Snapshot(), attached.Snapshot())
	require.NoError(t, attached.Verify())

	// Flip one adjacency byte.
	buf[layout.AdjacencyOffset] ^= 0x01
	assert.ErrorIs(t, attached.Verify(), ErrChecksum)
	buf[layout.AdjacencyOffset] ^= 0x01

	assert.Error(t, s.Finalize(Meta{Count: 5}))
	assert.Error(t, s.Finalize(Meta{Count: 2, Entry: 2}))
}

func TestComputeChecksum_CoversDegreesAndAdjacency(t *testing.T) {
	s := newStore(t, 8, 3)
	require.NoError(t, s.SetNeighbors(0, []uint32{1, 2}))
	require.NoError(t, s.SetNeighbors(5, []uint32{7}))

	l := s.Layout()
	assert.Equal(t, hash.CRC32C(s.buf[HeaderSize:]), s.ComputeChecksum())

	before := s.ComputeChecksum()
	s.buf[l.DegreeOffset] ^= 0x01
	assert.NotEqual(t, before, s.ComputeChecksum())
	s.buf[l.DegreeOffset] ^= 0x01

	s.buf[l.Size-1] ^= 0x80
	assert.NotEqual(t, before, s.ComputeChecksum())
	s.buf[l.Size-1] ^= 0x80
	assert.Equal(t, before, s.ComputeChecksum())
}

func TestAttach_Errors(t *testing.T) {
	s := newStore(t, 2, 2)
	buf := s.buf

	// Unbuilt regions attach; callers decide what to do with them.
	a, err := Attach(buf)
	require.NoError(t, err)
	assert.False(t, a.Built())

	_, err = Attach(buf[:len(buf)-4])
	assert.ErrorIs(t, err, ErrSizeMismatch)

	require.NoError(t, s.SetNeighbors(0, []uint32{1}))
	require.NoError(t, s.SetNeighbors(1, []uint32{0}))
	require.NoError(t, s.Finalize(Meta{Count: 2, Dim: 1}))

	// Degree above R.
	binary.LittleEndian.PutUint32(buf[HeaderSize:], 3)
	_, err = Attach(buf)
	assert.ErrorIs(t, err, ErrCorrupt)
	binary.LittleEndian.PutUint32(buf[HeaderSize:], 1)

	// R = 0 in the header.
	binary.LittleEndian.PutUint32(buf[16:], 0)
	_, err = Attach(buf)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Attach(make([]byte, HeaderSize))
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestVerify_BadNeighbor(t *testing.T) {
	s := newStore(t, 3, 2)
	require.NoError(t, s.SetNeighbors(0, []uint32{1}))
	require.NoError(t, s.SetNeighbors(1, []uint32{2}))
	require.NoError(t, s.Finalize(Meta{Count: 2, Dim: 1}))

	assert.ErrorIs(t, s.Verify(), ErrCorrupt)
}

func TestReset(t *testing.T) {
	s := newStore(t, 2, 2)
	require.NoError(t, s.SetNeighbors(0, []uint32{1}))
	require.NoError(t, s.SetNeighbors(1, []uint32{0}))
	require.NoError(t, s.Finalize(Meta{Count: 2, Dim: 1}))

	s.Reset()
	assert.False(t, s.Built())
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.Neighbors(0))

	h, err := DecodeHeader(s.buf)
	require.NoError(t, err)
	assert.False(t, h.Built())
}
