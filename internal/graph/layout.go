package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// Magic identifies a graph region ("VMNA").
	Magic uint32 = 0x414E4D56
	// Version is the current layout version.
	Version uint32 = 1
	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 64
	// Empty marks an unused neighbor slot.
	Empty uint32 = math.MaxUint32
	// MaxCapacity is the largest addressable node count; Empty is reserved.
	MaxCapacity = uint64(math.MaxUint32)
)

// Header flags.
const (
	FlagBuilt uint32 = 1 << 0
	FlagDisk  uint32 = 1 << 1
)

var (
	ErrInvalidLayout  = errors.New("graph: invalid layout")
	ErrInvalidMagic   = errors.New("graph: invalid magic number")
	ErrInvalidVersion = errors.New("graph: unsupported version")
	ErrSizeMismatch   = errors.New("graph: region size does not match layout")
	ErrNodeOutOfRange = errors.New("graph: node out of range")
	ErrDegreeExceeded = errors.New("graph: degree exceeds R")
	ErrChecksum       = errors.New("graph: checksum mismatch")
	ErrCorrupt        = errors.New("graph: corrupt adjacency")
)

// Layout is the exact byte plan for a region of a given capacity and R.
type Layout struct {
	Capacity        uint64
	R               int
	DegreeOffset    int64
	AdjacencyOffset int64
	Size            int64
}

// Plan computes the layout for capacity nodes of at most r neighbors each.
func Plan(capacity uint64, r int) (Layout, error) {
	if capacity == 0 {
		return Layout{}, fmt.Errorf("%w: capacity must be > 0", ErrInvalidLayout)
	}
	if capacity > MaxCapacity {
		return Layout{}, fmt.Errorf("%w: capacity %d exceeds %d", ErrInvalidLayout, capacity, MaxCapacity)
	}
	if r <= 0 {
		return Layout{}, fmt.Errorf("%w: R must be > 0, got %d", ErrInvalidLayout, r)
	}

	// 4*C*(R+1) must fit an int64 and the slice length limit.
	if uint64(r)+1 > uint64(math.MaxInt64/4)/capacity {
		return Layout{}, fmt.Errorf("%w: capacity %d with R %d overflows", ErrInvalidLayout, capacity, r)
	}
	c := int64(capacity)
	size := HeaderSize + 4*c + 4*c*int64(r)
	if size > math.MaxInt-1 || size < 0 {
		return Layout{}, fmt.Errorf("%w: %d bytes exceeds addressable memory", ErrInvalidLayout, size)
	}

	return Layout{
		Capacity:        capacity,
		R:               r,
		DegreeOffset:    HeaderSize,
		AdjacencyOffset: HeaderSize + 4*c,
		Size:            size,
	}, nil
}

// Header is the decoded region header.
type Header struct {
	Magic    uint32
	Version  uint32
	Capacity uint64
	R        uint32
	L        uint32
	Alpha    float32
	Dim      uint32
	Count    uint32
	Entry    uint32
	Flags    uint32
	Passes   uint32
	Checksum uint32
}

// Built reports whether the built flag is set.
func (h Header) Built() bool { return h.Flags&FlagBuilt != 0 }

// Disk reports whether the region was reserved in disk mode.
func (h Header) Disk() bool { return h.Flags&FlagDisk != 0 }

// Encode writes h into buf[:HeaderSize]. The reserved tail is zeroed.
func (h *Header) Encode(buf []byte) {
	_ = buf[HeaderSize-1]
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint64(buf[8:], h.Capacity)
	binary.LittleEndian.PutUint32(buf[16:], h.R)
	binary.LittleEndian.PutUint32(buf[20:], h.L)
	binary.LittleEndian.PutUint32(buf[24:], math.Float32bits(h.Alpha))
	binary.LittleEndian.PutUint32(buf[28:], h.Dim)
	binary.LittleEndian.PutUint32(buf[32:], h.Count)
	binary.LittleEndian.PutUint32(buf[36:], h.Entry)
	binary.LittleEndian.PutUint32(buf[40:], h.Flags)
	binary.LittleEndian.PutUint32(buf[44:], h.Passes)
	binary.LittleEndian.PutUint32(buf[48:], h.Checksum)
	clear(buf[52:HeaderSize])
}

// DecodeHeader parses and validates magic and version.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is smaller than the header", ErrSizeMismatch, len(buf))
	}
	h := Header{}
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	if h.Magic != Magic {
		return Header{}, ErrInvalidMagic
	}
	h.Version = binary.LittleEndian.Uint32(buf[4:])
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrInvalidVersion, h.Version)
	}
	h.Capacity = binary.LittleEndian.Uint64(buf[8:])
	h.R = binary.LittleEndian.Uint32(buf[16:])
	h.L = binary.LittleEndian.Uint32(buf[20:])
	h.Alpha = math.Float32frombits(binary.LittleEndian.Uint32(buf[24:]))
	h.Dim = binary.LittleEndian.Uint32(buf[28:])
	h.Count = binary.LittleEndian.Uint32(buf[32:])
	h.Entry = binary.LittleEndian.Uint32(buf[36:])
	h.Flags = binary.LittleEndian.Uint32(buf[40:])
	h.Passes = binary.LittleEndian.Uint32(buf[44:])
	h.Checksum = binary.LittleEndian.Uint32(buf[48:])
	return h, nil
}
