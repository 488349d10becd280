package graph

import (
	"fmt"

	"github.com/hupe1980/vamana/internal/hash"
)

// Store is a typed view over a graph region.
//
// A Store is not safe for concurrent mutation. Concurrent reads are safe once
// the builder has finished.
type Store struct {
	buf     []byte
	layout  Layout
	header  Header
	degrees []uint32
	adj     []uint32
}

// Format initializes buf as an empty, unbuilt graph for layout and returns a
// Store over it. buf must be exactly layout.Size bytes.
func Format(buf []byte, layout Layout, disk bool) (*Store, error) {
	s, err := view(buf, layout)
	if err != nil {
		return nil, err
	}
	s.header = Header{
		Magic:    Magic,
		Version:  Version,
		Capacity: layout.Capacity,
		R:        uint32(layout.R),
	}
	if disk {
		s.header.Flags |= FlagDisk
	}
	s.Reset()
	return s, nil
}

// Attach opens an already formatted region.
func Attach(buf []byte) (*Store, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	layout, err := Plan(h.Capacity, int(h.R))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	s, err := view(buf, layout)
	if err != nil {
		return nil, err
	}
	s.header = h

	if h.Built() {
		if uint64(h.Count) > h.Capacity || h.Entry >= h.Count {
			return nil, fmt.Errorf("%w: count %d, entry %d, capacity %d", ErrCorrupt, h.Count, h.Entry, h.Capacity)
		}
		for id, d := range s.degrees {
			if d > h.R {
				return nil, fmt.Errorf("%w: node %d has degree %d > R %d", ErrCorrupt, id, d, h.R)
			}
		}
	}
	return s, nil
}

func view(buf []byte, layout Layout) (*Store, error) {
	if int64(len(buf)) != layout.Size {
		return nil, fmt.Errorf("%w: have %d bytes, layout needs %d", ErrSizeMismatch, len(buf), layout.Size)
	}
	degrees, err := uint32View(buf[layout.DegreeOffset:layout.AdjacencyOffset])
	if err != nil {
		return nil, err
	}
	adj, err := uint32View(buf[layout.AdjacencyOffset:layout.Size])
	if err != nil {
		return nil, err
	}
	return &Store{
		buf:     buf,
		layout:  layout,
		degrees: degrees,
		adj:     adj,
	}, nil
}

// Reset clears every adjacency list and the built flag.
func (s *Store) Reset() {
	clear(s.degrees)
	for i := range s.adj {
		s.adj[i] = Empty
	}
	s.header.Flags &^= FlagBuilt
	s.header.Count = 0
	s.header.Dim = 0
	s.header.Entry = 0
	s.header.Checksum = 0
	s.writeHeader()
}

func (s *Store) writeHeader() {
	s.header.Encode(s.buf[:HeaderSize])
}

func (s *Store) Layout() Layout     { return s.layout }
func (s *Store) Header() Header     { return s.header }
func (s *Store) Capacity() uint64   { return s.layout.Capacity }
func (s *Store) R() int             { return s.layout.R }
func (s *Store) Count() int         { return int(s.header.Count) }
func (s *Store) Dim() int           { return int(s.header.Dim) }
func (s *Store) EntryPoint() uint32 { return s.header.Entry }
func (s *Store) Built() bool        { return s.header.Built() }
func (s *Store) Disk() bool         { return s.header.Disk() }

// Degree returns the number of out-neighbors of id.
func (s *Store) Degree(id uint32) int {
	return int(s.degrees[id])
}

// Neighbors returns a read-only view of id's out-neighbors. The view aliases
// the region and is invalidated by SetNeighbors(id, ...).
func (s *Store) Neighbors(id uint32) []uint32 {
	off := int(id) * s.layout.R
	return s.adj[off : off+int(s.degrees[id]) : off+s.layout.R]
}

// SetNeighbors replaces id's out-neighbors.
func (s *Store) SetNeighbors(id uint32, neighbors []uint32) error {
	if uint64(id) >= s.layout.Capacity {
		return fmt.Errorf("%w: %d (capacity %d)", ErrNodeOutOfRange, id, s.layout.Capacity)
	}
	if len(neighbors) > s.layout.R {
		return fmt.Errorf("%w: node %d, %d > %d", ErrDegreeExceeded, id, len(neighbors), s.layout.R)
	}
	off := int(id) * s.layout.R
	slots := s.adj[off : off+s.layout.R]
	n := copy(slots, neighbors)
	for i := n; i < len(slots); i++ {
		slots[i] = Empty
	}
	s.degrees[id] = uint32(n)
	return nil
}

// Meta is the build summary written by Finalize.
type Meta struct {
	Count  uint32
	Dim    uint32
	Entry  uint32
	L      uint32
	Alpha  float32
	Passes uint32
}

// Finalize records meta, stamps the checksum and sets the built flag.
func (s *Store) Finalize(meta Meta) error {
	if uint64(meta.Count) > s.layout.Capacity || meta.Entry >= meta.Count {
		return fmt.Errorf("%w: count %d, entry %d", ErrNodeOutOfRange, meta.Count, meta.Entry)
	}
	s.header.Count = meta.Count
	s.header.Dim = meta.Dim
	s.header.Entry = meta.Entry
	s.header.L = meta.L
	s.header.Alpha = meta.Alpha
	s.header.Passes = meta.Passes
	s.header.Checksum = s.ComputeChecksum()
	s.header.Flags |= FlagBuilt
	s.writeHeader()
	return nil
}

// ComputeChecksum returns the CRC32C of the degree table followed by the
// adjacency, i.e. everything after the header.
func (s *Store) ComputeChecksum() uint32 {
	l := s.layout
	sum := hash.CRC32C(s.buf[l.DegreeOffset:l.AdjacencyOffset])
	return hash.Update(sum, s.buf[l.AdjacencyOffset:l.Size])
}

// Verify recomputes the checksum and checks every stored neighbor id.
func (s *Store) Verify() error {
	if got := s.ComputeChecksum(); got != s.header.Checksum {
		return fmt.Errorf("%w: header %08x, computed %08x", ErrChecksum, s.header.Checksum, got)
	}
	count := s.header.Count
	for id := uint32(0); uint64(id) < s.layout.Capacity; id++ {
		for _, n := range s.Neighbors(id) {
			if n >= count || n == id {
				return fmt.Errorf("%w: node %d links to %d (count %d)", ErrCorrupt, id, n, count)
			}
		}
	}
	return nil
}

// Snapshot copies every adjacency list of the first Count nodes.
func (s *Store) Snapshot() [][]uint32 {
	out := make([][]uint32, s.Count())
	for id := range out {
		out[id] = append([]uint32(nil), s.Neighbors(uint32(id))...)
	}
	return out
}
