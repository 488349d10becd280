package vamana

import (
	"fmt"
	"slices"

	"github.com/hupe1980/vamana/distance"
	"github.com/hupe1980/vamana/filter"
	"github.com/hupe1980/vamana/internal/graph"
	"github.com/hupe1980/vamana/internal/searcher"
	"github.com/hupe1980/vamana/vectors"
)

// Result is one search hit.
type Result struct {
	ID       uint32
	Distance float32
}

// SearchStats counts the work done by one search.
type SearchStats struct {
	// Visited is the number of nodes whose distance was computed.
	Visited int
	// Expanded is the number of nodes whose adjacency list was read.
	Expanded int
}

// Graph is a built, read-only graph bound to its dataset and distance.
// It is safe for concurrent searches.
type Graph struct {
	store *graph.Store
	data  vectors.Dataset
	dist  distance.Func
	l     int
}

// Load binds a built store to data. l is the default search width.
func Load(store *graph.Store, data vectors.Dataset, dist distance.Func, l int) (*Graph, error) {
	if !store.Built() {
		return nil, ErrNotBuilt
	}
	if data.Dim() != store.Dim() {
		return nil, &ErrDimensionMismatch{Expected: store.Dim(), Actual: data.Dim()}
	}
	if data.Len() < store.Count() {
		return nil, fmt.Errorf("%w: graph has %d nodes, dataset %d vectors", ErrDatasetMismatch, store.Count(), data.Len())
	}
	if l < 1 {
		return nil, fmt.Errorf("%w: L must be >= 1, got %d", ErrInvalidParams, l)
	}
	return &Graph{store: store, data: data, dist: dist, l: l}, nil
}

func (g *Graph) Store() *graph.Store { return g.store }
func (g *Graph) Dim() int            { return g.store.Dim() }
func (g *Graph) Len() int            { return g.store.Count() }
func (g *Graph) L() int              { return g.l }
func (g *Graph) EntryPoint() uint32  { return g.store.EntryPoint() }

// Search returns up to k nodes nearest query that pass pred, sorted by
// (distance, id). A nil pred admits every node.
func (g *Graph) Search(query []float32, k int, pred filter.Func) ([]Result, SearchStats, error) {
	if k <= 0 {
		return nil, SearchStats{}, ErrInvalidK
	}
	if len(query) != g.store.Dim() {
		return nil, SearchStats{}, &ErrDimensionMismatch{Expected: g.store.Dim(), Actual: len(query)}
	}

	s := searcher.Get(g.store.Count())
	defer searcher.Put(s)

	if err := beamSearch(s, g.store, g.dist, g.data.Vector, query, max(g.l, k), g.store.EntryPoint(), uint32(g.store.Count())); err != nil {
		return nil, SearchStats{}, err
	}

	out := make([]Result, 0, min(k, len(s.Evaluated)))
	for _, item := range s.Evaluated {
		if pred.Matches(item.Node) {
			out = append(out, Result{ID: item.Node, Distance: item.Distance})
		}
	}
	slices.SortFunc(out, compareResults)
	if len(out) > k {
		out = out[:k]
	}
	return out, SearchStats{Visited: len(s.Evaluated), Expanded: s.Expanded}, nil
}

func compareResults(a, b Result) int {
	switch {
	case a.Distance < b.Distance:
		return -1
	case a.Distance > b.Distance:
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// Stats summarizes the graph's degree distribution.
type Stats struct {
	Count      int
	Capacity   uint64
	R          int
	Dim        int
	EntryPoint uint32
	MaxDegree  int
	AvgDegree  float64
	Edges      int
}

// Stats walks every adjacency list once.
func (g *Graph) Stats() Stats {
	st := Stats{
		Count:      g.store.Count(),
		Capacity:   g.store.Capacity(),
		R:          g.store.R(),
		Dim:        g.store.Dim(),
		EntryPoint: g.store.EntryPoint(),
	}
	for id := 0; id < st.Count; id++ {
		d := g.store.Degree(uint32(id))
		st.Edges += d
		st.MaxDegree = max(st.MaxDegree, d)
	}
	if st.Count > 0 {
		st.AvgDegree = float64(st.Edges) / float64(st.Count)
	}
	return st
}

// beamSearch runs greedy best-first search from entry over the first count
// nodes and leaves every evaluated node in s.Evaluated. width bounds the
// result heap.
func beamSearch(
	s *searcher.Searcher,
	store *graph.Store,
	dist distance.Func,
	vec func(uint32) ([]float32, error),
	query []float32,
	width int,
	entry uint32,
	count uint32,
) error {
	v, err := vec(entry)
	if err != nil {
		return err
	}
	s.Visited.Visit(entry)
	start := searcher.PriorityQueueItem{Node: entry, Distance: dist(query, v)}
	s.Evaluated = append(s.Evaluated, start)
	s.Candidates.PushItem(start)
	s.Results.PushItemBounded(start, width)

	for s.Candidates.Len() > 0 {
		cur, _ := s.Candidates.PopItem()
		if s.Results.Len() >= width {
			if worst, _ := s.Results.TopItem(); worst.Less(cur) {
				break
			}
		}
		s.Expanded++

		s.Neighbors = append(s.Neighbors[:0], store.Neighbors(cur.Node)...)
		for _, nb := range s.Neighbors {
			if nb >= count || !s.Visited.Visit(nb) {
				continue
			}
			v, err := vec(nb)
			if err != nil {
				return err
			}
			item := searcher.PriorityQueueItem{Node: nb, Distance: dist(query, v)}
			s.Evaluated = append(s.Evaluated, item)
			if s.Results.PushItemBounded(item, width) {
				s.Candidates.PushItem(item)
			}
		}
	}
	return nil
}
