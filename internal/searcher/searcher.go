package searcher

import (
	"sync"
)

// Searcher is a reusable execution context for one graph traversal.
// It owns all scratch memory, so steady-state searches do not allocate.
//
// Searcher is NOT thread-safe. It is owned by a single goroutine for the
// duration of a search.
type Searcher struct {
	// Visited tracks nodes whose distance was already computed.
	Visited *VisitedSet

	// Candidates is a min-heap of nodes still to expand.
	Candidates *PriorityQueue

	// Results is a bounded max-heap holding the best nodes found so far.
	Results *PriorityQueue

	// Evaluated records every node whose distance was computed, in visit order.
	Evaluated []PriorityQueueItem

	// Neighbors is scratch space for reading one adjacency list.
	Neighbors []uint32

	// Expanded counts nodes popped from Candidates and expanded.
	Expanded int
}

var searcherPool = sync.Pool{
	New: func() any {
		return NewSearcher(1024, 128)
	},
}

// NewSearcher creates a new searcher with the given initial capacities.
func NewSearcher(visitedCap, queueCap int) *Searcher {
	return &Searcher{
		Visited:    NewVisitedSet(visitedCap),
		Candidates: NewPriorityQueue(false),
		Results:    NewPriorityQueue(true),
		Evaluated:  make([]PriorityQueueItem, 0, queueCap),
		Neighbors:  make([]uint32, 0, 64),
	}
}

// Get returns a reset Searcher from the pool able to track capacity nodes.
func Get(capacity int) *Searcher {
	s := searcherPool.Get().(*Searcher)
	s.Reset()
	s.Visited.EnsureCapacity(capacity)
	return s
}

// Put returns a Searcher to the pool.
func Put(s *Searcher) {
	searcherPool.Put(s)
}

// Reset clears the searcher state for reuse.
func (s *Searcher) Reset() {
	s.Visited.Reset()
	s.Candidates.Reset()
	s.Results.Reset()
	s.Evaluated = s.Evaluated[:0]
	s.Neighbors = s.Neighbors[:0]
	s.Expanded = 0
}
