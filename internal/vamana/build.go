package vamana

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/hupe1980/vamana/distance"
	"github.com/hupe1980/vamana/internal/graph"
	"github.com/hupe1980/vamana/internal/searcher"
	"github.com/hupe1980/vamana/vectors"
)

type builder struct {
	store *graph.Store
	dist  distance.Func
	p     Params
	opts  options
	r     int
	n     uint32
	entry uint32

	vecs [][]float32
	s    *searcher.Searcher

	// scratch
	seen     *searcher.VisitedSet
	cands    []searcher.PriorityQueueItem
	pruned   []bool
	selected []uint32
	list     []uint32
}

// Build constructs the graph for every vector of data into store, which must
// have enough capacity. The store's previous contents are discarded first,
// so a failed or cancelled build leaves an unbuilt region behind.
func Build(ctx context.Context, store *graph.Store, data vectors.Dataset, dist distance.Func, p Params, optFns ...Option) (*Graph, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	n := data.Len()
	if n == 0 {
		return nil, ErrEmptyDataset
	}
	if uint64(n) > store.Capacity() {
		return nil, fmt.Errorf("%w: %d vectors, capacity %d", ErrCapacityExhausted, n, store.Capacity())
	}
	dim := data.Dim()
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrDatasetMismatch, dim)
	}
	if p.Entry == EntryFixed && int(p.EntryID) >= n {
		return nil, fmt.Errorf("%w: %d (dataset has %d vectors)", ErrInvalidEntry, p.EntryID, n)
	}

	b := &builder{
		store: store,
		dist:  dist,
		p:     p,
		r:     store.R(),
		n:     uint32(n),
		vecs:  make([][]float32, n),
		s:     searcher.NewSearcher(n, max(p.L, 64)),
		seen:  searcher.NewVisitedSet(n),
	}
	for _, fn := range optFns {
		fn(&b.opts)
	}

	for id := range b.vecs {
		v, err := data.Vector(uint32(id))
		if err != nil {
			return nil, err
		}
		if len(v) != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		b.vecs[id] = v
	}

	store.Reset()
	if err := b.run(ctx); err != nil {
		store.Reset()
		return nil, err
	}

	meta := graph.Meta{
		Count:  b.n,
		Dim:    uint32(dim),
		Entry:  b.entry,
		L:      uint32(p.L),
		Alpha:  p.Alpha,
		Passes: uint32(p.Passes),
	}
	if err := store.Finalize(meta); err != nil {
		store.Reset()
		return nil, err
	}

	return &Graph{store: store, data: data, dist: dist, l: p.L}, nil
}

func (b *builder) run(ctx context.Context) error {
	rng := rand.New(rand.NewSource(b.p.Seed))

	b.entry = b.p.EntryID
	if b.p.Entry == EntryMedoid {
		b.entry = b.medoid(rng)
	}
	b.debug("vamana entry point selected", "entry", b.entry, "strategy", b.p.Entry)

	total := int(b.n)
	for pass := 0; pass < b.p.Passes; pass++ {
		alpha := b.p.passAlpha(pass)
		start := time.Now()
		order := rng.Perm(total)

		for done, id := range order {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := b.insert(uint32(id), alpha); err != nil {
				return err
			}
			if b.opts.progress != nil && (done+1)%progressEvery == 0 {
				b.opts.progress(pass, done+1, total)
			}
		}

		if b.opts.progress != nil {
			b.opts.progress(pass, total, total)
		}
		b.debug("vamana pass complete", "pass", pass, "alpha", alpha, "nodes", total, "elapsed", time.Since(start))
	}
	return nil
}

func (b *builder) debug(msg string, args ...any) {
	if b.opts.logger != nil {
		b.opts.logger.Debug(msg, args...)
	}
}

// medoid returns the vector nearest the centroid of a seeded sample of at
// most SampleSize vectors. Ties resolve to the lowest id.
func (b *builder) medoid(rng *rand.Rand) uint32 {
	n := len(b.vecs)
	dim := len(b.vecs[0])

	sample := b.p.SampleSize
	if sample <= 0 || sample > n {
		sample = n
	}

	sum := make([]float64, dim)
	if sample == n {
		for _, v := range b.vecs {
			for j, x := range v {
				sum[j] += float64(x)
			}
		}
	} else {
		for _, id := range rng.Perm(n)[:sample] {
			for j, x := range b.vecs[id] {
				sum[j] += float64(x)
			}
		}
	}

	centroid := make([]float32, dim)
	for j := range centroid {
		centroid[j] = float32(sum[j] / float64(sample))
	}

	best := uint32(0)
	bestDist := float32(math.Inf(1))
	for id, v := range b.vecs {
		if d := b.dist(v, centroid); d < bestDist {
			bestDist = d
			best = uint32(id)
		}
	}
	return best
}

func (b *builder) vector(id uint32) ([]float32, error) {
	return b.vecs[id], nil
}

// insert searches for v, prunes its neighborhood and adds the reverse edges.
func (b *builder) insert(v uint32, alpha float32) error {
	b.s.Reset()
	if err := beamSearch(b.s, b.store, b.dist, b.vector, b.vecs[v], b.p.L, b.entry, b.n); err != nil {
		return err
	}

	// Evaluated distances are already measured against vecs[v].
	b.cands = append(b.cands[:0], b.s.Evaluated...)
	b.selected = b.robustPrune(v, b.cands, alpha, b.selected[:0])
	if err := b.store.SetNeighbors(v, b.selected); err != nil {
		return err
	}

	for _, p := range b.selected {
		if err := b.addBackEdge(p, v, alpha); err != nil {
			return err
		}
	}
	return nil
}

// robustPrune selects up to R diverse neighbors of v from cands and v's
// current out-neighbors. cands must carry distances to v. The result is
// appended to dst.
func (b *builder) robustPrune(v uint32, cands []searcher.PriorityQueueItem, alpha float32, dst []uint32) []uint32 {
	b.seen.Reset()
	b.seen.Visit(v)

	pool := cands[:0]
	for _, c := range cands {
		if b.seen.Visit(c.Node) {
			pool = append(pool, c)
		}
	}
	vv := b.vecs[v]
	for _, nb := range b.store.Neighbors(v) {
		if b.seen.Visit(nb) {
			pool = append(pool, searcher.PriorityQueueItem{Node: nb, Distance: b.dist(vv, b.vecs[nb])})
		}
	}
	slices.SortFunc(pool, func(x, y searcher.PriorityQueueItem) int {
		switch {
		case x.Less(y):
			return -1
		case y.Less(x):
			return 1
		}
		return 0
	})

	b.pruned = slices.Grow(b.pruned[:0], len(pool))[:len(pool)]
	clear(b.pruned)
	for i, p := range pool {
		if len(dst) >= b.r {
			break
		}
		if b.pruned[i] {
			continue
		}
		dst = append(dst, p.Node)

		pv := b.vecs[p.Node]
		for j := i + 1; j < len(pool); j++ {
			if !b.pruned[j] && alpha*b.dist(pv, b.vecs[pool[j].Node]) <= pool[j].Distance {
				b.pruned[j] = true
			}
		}
	}
	return dst
}

// addBackEdge links src -> dst, re-pruning src when it would exceed R.
func (b *builder) addBackEdge(src, dst uint32, alpha float32) error {
	current := b.store.Neighbors(src)
	if slices.Contains(current, dst) {
		return nil
	}
	if len(current) < b.r {
		b.list = append(append(b.list[:0], current...), dst)
		return b.store.SetNeighbors(src, b.list)
	}

	// The overflowing R+1 list only ever exists here.
	sv := b.vecs[src]
	cands := make([]searcher.PriorityQueueItem, 0, len(current)+1)
	cands = append(cands, searcher.PriorityQueueItem{Node: dst, Distance: b.dist(sv, b.vecs[dst])})
	b.list = b.robustPrune(src, cands, alpha, b.list[:0])
	return b.store.SetNeighbors(src, b.list)
}
