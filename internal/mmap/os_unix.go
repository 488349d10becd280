//go:build unix

package mmap

import (
	"errors"

	"golang.org/x/sys/unix"
)

func osMap(fd uintptr, size int, prot Protection) ([]byte, error) {
	flags := unix.PROT_READ
	if prot == ReadWrite {
		flags |= unix.PROT_WRITE
	}
	return unix.Mmap(int(fd), 0, size, flags, unix.MAP_SHARED)
}

func osUnmap(data []byte) error {
	return unix.Munmap(data)
}

func osSync(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}

func osAdvise(data []byte, pattern AccessPattern) error {
	var advice int
	switch pattern {
	case AccessSequential:
		advice = unix.MADV_SEQUENTIAL
	case AccessRandom:
		advice = unix.MADV_RANDOM
	case AccessWillNeed:
		advice = unix.MADV_WILLNEED
	default:
		advice = unix.MADV_NORMAL
	}

	// The hint is advisory; unaligned sub-slices are not worth failing over.
	err := unix.Madvise(data, advice)
	if errors.Is(err, unix.EINVAL) {
		return nil
	}
	return err
}
