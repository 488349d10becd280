// Package graph owns the byte layout of a vamana graph region.
//
// A region is one contiguous, fixed-size byte slice (resident or memory
// mapped) laid out as
//
//	offset 0         header (HeaderSize bytes)
//	HeaderSize       degree table: capacity x uint32
//	+4*capacity      adjacency: capacity x R x uint32, unused slots = Empty
//
// All integers are little endian. Node n's neighbor slots start at
// adjacency + 4*R*n, so every node occupies the same space regardless of its
// actual degree.
//
// Store never reallocates: every write lands inside the slice it was given.
package graph
