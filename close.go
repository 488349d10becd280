package vamana

import "fmt"

// Flush persists the region through its storage substrate.
func (idx *Index) Flush() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return ErrClosed
	}
	if err := idx.region.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrStorage, err)
	}
	return nil
}

// Close waits for running searches, flushes the region and drops the
// Index's reference on it. Later searches fail with ErrClosed. Once every
// Index on a region is closed its storage may release the region.
// Close is idempotent.
func (idx *Index) Close() error {
	if idx == nil {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	defer idx.release()

	if err := idx.region.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrStorage, err)
	}
	return nil
}
