// Package mmap maps files into memory for the paged storage mode.
//
// A graph region in paged mode is a preallocated file mapped MAP_SHARED, so
// page residency and eviction are left to the kernel and writes made by the
// builder land in the page cache directly.
//
//	m, err := mmap.Map(f, size, mmap.ReadWrite)
//	if err != nil { ... }
//	defer m.Close()
//
//	buf := m.Bytes()   // zero-copy view, valid until Close
//	_ = m.Flush()      // msync(MS_SYNC)
//	_ = m.Advise(mmap.AccessRandom)
//
// Read-only mappings of whole files are available through Open.
//
// Only Unix platforms are supported; elsewhere every call returns
// errors.ErrUnsupported.
//
// Mapping is safe for concurrent readers. Close is idempotent; callers must not
// touch the slice returned by Bytes after Close.
package mmap
