// Package searcher provides the scratch state for greedy graph traversal:
// bounded binary heaps over (distance, node) pairs, a resettable visited
// bitset and a pooled per-query context.
//
// Heaps order by distance and break ties by node id, so traversal is
// deterministic for identical inputs.
package searcher
