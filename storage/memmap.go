package storage

import (
	"fmt"
	"strings"
)

// Memmap selects how a region is held in memory. It is fixed at reservation.
type Memmap uint8

const (
	// MemmapRAM keeps the region resident in process memory.
	MemmapRAM Memmap = iota
	// MemmapDisk pages the region from a memory-mapped file.
	MemmapDisk
)

func (m Memmap) String() string {
	switch m {
	case MemmapRAM:
		return "ram"
	case MemmapDisk:
		return "disk"
	default:
		return fmt.Sprintf("Memmap(%d)", uint8(m))
	}
}

// ParseMemmap parses "ram" or "disk" (case-insensitive).
func ParseMemmap(s string) (Memmap, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ram", "":
		return MemmapRAM, nil
	case "disk", "mmap":
		return MemmapDisk, nil
	default:
		return 0, fmt.Errorf("storage: unknown memmap mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Memmap) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Memmap) UnmarshalText(text []byte) error {
	v, err := ParseMemmap(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
