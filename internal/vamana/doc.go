// Package vamana builds and searches a bounded-degree navigable graph stored
// in a graph.Store.
//
// Construction follows the Vamana procedure: pick an entry point, then visit
// every node in a seeded random order, search the current graph for it,
// robust-prune the evaluated nodes down to at most R diverse neighbors and add
// the reverse edges, re-pruning any list that overflows. Early passes prune
// with alpha = 1 to form a sparse backbone; the final pass uses the
// configured alpha to add long-range edges.
//
// Search is the same greedy beam traversal. Admission predicates filter the
// evaluated nodes afterwards and never steer traversal.
package vamana
