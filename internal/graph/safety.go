package graph

import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	ErrBigEndian       = errors.New("graph: big-endian hosts are not supported")
	ErrUnalignedRegion = errors.New("graph: region is not 4-byte aligned")
)

func isLittleEndian() bool {
	var x uint16 = 0x0102
	return *(*byte)(unsafe.Pointer(&x)) == 0x02
}

// uint32View reinterprets b as little-endian uint32s without copying.
func uint32View(b []byte) ([]uint32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if !isLittleEndian() {
		return nil, ErrBigEndian
	}
	ptr := unsafe.Pointer(&b[0])
	if uintptr(ptr)%4 != 0 {
		return nil, fmt.Errorf("%w: address 0x%x", ErrUnalignedRegion, uintptr(ptr))
	}
	return unsafe.Slice((*uint32)(ptr), len(b)/4), nil
}
