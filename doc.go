// Package vamana provides a Vamana (DiskANN-style) graph index for approximate
// nearest-neighbor search over float32 vectors.
//
// The index lives in one fixed-size storage region that is reserved up front
// and never grows. The region is either resident in process memory or
// memory-mapped from a file, chosen once at Prebuild time.
//
// # Lifecycle
//
//	store, _ := storage.Open("./data")
//	opts := vamana.DefaultOptions()
//	opts.Capacity = 1_000_000
//
//	_ = vamana.Prebuild(ctx, store, opts)                      // reserve the layout
//	idx, _ := vamana.Build(ctx, store, data, distance.SquaredL2, opts) // construct
//	res, _ := idx.Search(query, 10, nil)
//
// A later process attaches to the same region without rebuilding:
//
//	idx, _ := vamana.Load(ctx, store, data, distance.SquaredL2, opts)
//
// Capacity, R and Memmap must be identical between Prebuild, Build and Load.
//
// # Filtering
//
// Search accepts an admission predicate (see package filter). The predicate
// only filters results; traversal still passes through rejected nodes, so a
// selective predicate may return fewer than k results.
//
// # Insertion
//
// Index.Insert is a no-op: the graph is immutable after Build. Capabilities
// reports IncrementalInsert = false so callers can detect this.
package vamana
