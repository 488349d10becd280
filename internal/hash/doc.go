// Package hash provides the checksum used for graph regions and snapshots.
//
// Every checksum in vamana is CRC32-Castagnoli. Go's hash/crc32 dispatches to
// SSE4.2 or the ARM CRC extension when available, so checksumming a region of a
// few hundred megabytes costs tens of milliseconds.
//
// One-shot:
//
//	sum := hash.CRC32C(data)
//
// Streaming over several disjoint slices (e.g. degree table then adjacency):
//
//	sum := hash.CRC32C(degrees)
//	sum = hash.Update(sum, adjacency)
package hash
