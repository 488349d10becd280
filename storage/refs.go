package storage

import "sync/atomic"

// RefCounted is implemented by every region a Store hands out. While a
// region holds references, Store.Close and Store.Remove fail with
// ErrRegionInUse instead of unmapping memory that is still being read.
type RefCounted interface {
	// TryIncRef takes a reference. It reports false once the store has
	// released the region.
	TryIncRef() bool
	// DecRef drops a reference taken by TryIncRef.
	DecRef()
}

// refs counts region users. -1 marks a region the store has released.
type refs struct {
	n atomic.Int64
}

func (r *refs) TryIncRef() bool {
	for {
		n := r.n.Load()
		if n < 0 {
			return false
		}
		if r.n.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (r *refs) DecRef() {
	for {
		n := r.n.Load()
		if n <= 0 {
			return
		}
		if r.n.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// retire marks an unreferenced region released. Later TryIncRef calls fail.
func (r *refs) retire() bool { return r.n.CompareAndSwap(0, -1) }

// revive undoes retire when a multi-region close backs out.
func (r *refs) revive() { r.n.CompareAndSwap(-1, 0) }
