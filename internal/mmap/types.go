package mmap

import "errors"

// Protection selects how a mapping may be accessed.
type Protection int

const (
	// ReadOnly maps pages with PROT_READ.
	ReadOnly Protection = iota
	// ReadWrite maps pages with PROT_READ|PROT_WRITE, shared with the file.
	ReadWrite
)

// AccessPattern provides hints to the kernel about how the data will be accessed.
type AccessPattern int

const (
	// AccessDefault is the default access pattern (no specific advice).
	AccessDefault AccessPattern = iota
	// AccessSequential expects data to be accessed sequentially.
	AccessSequential
	// AccessRandom expects data to be accessed randomly.
	AccessRandom
	// AccessWillNeed expects data to be accessed in the near future.
	AccessWillNeed
)

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the requested size is not positive.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrReadOnly is returned by Flush on a read-only mapping.
	ErrReadOnly = errors.New("mmap: mapping is read-only")
)
