// Package storage is the byte-addressable substrate a vamana graph lives in.
//
// A Store hands out named regions of a fixed size. Each region is reserved
// exactly once (Reserve) and afterwards opened for read/write access (Region).
// The Memmap mode chosen at reservation time decides how the bytes are held:
//
//   - MemmapRAM: an owned, resident []byte, charged to the resource
//     controller's memory budget. Stores opened on a directory persist RAM
//     regions as <name>.ram on Flush and Close (temp file + rename).
//   - MemmapDisk: a <name>.mmap file truncated to the region size and mapped
//     MAP_SHARED read-write. Page residency is left to the kernel.
//
// Reserving an existing name fails with ErrRegionExists; opening an unknown
// name fails with ErrRegionNotFound. Regions never grow.
//
// Store is safe for concurrent use. The bytes of a region are not guarded:
// callers that write (the graph builder) must have exclusive access.
package storage
