package mmap

import (
	"os"
	"sync/atomic"
)

// Fder is satisfied by *os.File and the fs.File abstraction.
type Fder interface {
	Fd() uintptr
}

// Mapping represents a memory-mapped file.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	prot   Protection
	closed atomic.Bool
}

// Map maps the first size bytes of f. The file must already be at least size
// bytes long.
func Map(f Fder, size int, prot Protection) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data, err := osMap(f.Fd(), size, prot)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, prot: prot}, nil
}

// Open maps the whole file at path read-only. Empty files yield an empty
// mapping.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return &Mapping{prot: ReadOnly}, nil
	}
	return Map(f, int(fi.Size()), ReadOnly)
}

// Bytes returns the mapped memory, or nil after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Flush writes dirty pages back to the file and waits for completion.
func (m *Mapping) Flush() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.prot != ReadWrite {
		return ErrReadOnly
	}
	if len(m.data) == 0 {
		return nil
	}
	return osSync(m.data)
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if len(m.data) == 0 {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if len(m.data) == 0 {
		return nil
	}
	err := osUnmap(m.data)
	m.data = nil
	return err
}
