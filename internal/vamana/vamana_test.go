package vamana

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vamana/distance"
	"github.com/hupe1980/vamana/filter"
	"github.com/hupe1980/vamana/internal/graph"
	"github.com/hupe1980/vamana/vectors"
)

func defaultParams() Params {
	return Params{Alpha: 1.2, L: 70, Passes: 2, Seed: 42, SampleSize: 10000}
}

func newStore(t testing.TB, capacity uint64, r int) (*graph.Store, []byte) {
	t.Helper()
	layout, err := graph.Plan(capacity, r)
	require.NoError(t, err)
	buf := make([]byte, layout.Size)
	s, err := graph.Format(buf, layout, false)
	require.NoError(t, err)
	return s, buf
}

func randomDataset(t testing.TB, n, dim int, seed int64) *vectors.Dense {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	d := vectors.NewDense(dim)
	v := make([]float32, dim)
	for i := 0; i < n; i++ {
		for j := range v {
			v[j] = rng.Float32()
		}
		require.NoError(t, d.Append(v))
	}
	return d
}

func bruteForce(t testing.TB, data vectors.Dataset, dist distance.Func, q []float32, k int) []uint32 {
	t.Helper()
	all := make([]Result, data.Len())
	for i := range all {
		v, err := data.Vector(uint32(i))
		require.NoError(t, err)
		all[i] = Result{ID: uint32(i), Distance: dist(q, v)}
	}
	slices.SortFunc(all, compareResults)
	ids := make([]uint32, 0, k)
	for _, r := range all[:min(k, len(all))] {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestBuild_TwoClusters(t *testing.T) {
	data, err := vectors.FromSlices([][]float32{{0}, {1}, {5}, {6}})
	require.NoError(t, err)
	store, _ := newStore(t, 4, 2)

	p := defaultParams()
	p.L = 3
	g, err := Build(context.Background(), store, data, distance.SquaredL2, p)
	require.NoError(t, err)

	// The medoid of {0,1,5,6} is 1 (first of the two nodes nearest 3).
	assert.Equal(t, uint32(1), g.EntryPoint())

	adj := store.Snapshot()
	assert.Contains(t, adj[0], uint32(1))
	assert.Contains(t, adj[1], uint32(0))
	assert.Contains(t, adj[2], uint32(3))
	assert.Contains(t, adj[3], uint32(2))

	bridged := false
	for u, list := range adj {
		for _, w := range list {
			if (u < 2) != (w < 2) {
				bridged = true
			}
		}
	}
	assert.True(t, bridged, "expected an edge between the clusters: %v", adj)

	res, _, err := g.Search([]float32{0.5}, 1, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Contains(t, []uint32{0, 1}, res[0].ID)

	res, _, err = g.Search([]float32{5.5}, 1, filter.All)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Contains(t, []uint32{2, 3}, res[0].ID)
}

func TestBuild_DegreeBound(t *testing.T) {
	data := randomDataset(t, 600, 8, 1)

	for _, tc := range []struct {
		name  string
		r     int
		alpha float32
	}{
		{"R4-alpha1", 4, 1.0},
		{"R8-alpha1.2", 8, 1.2},
		{"R16-alpha2", 16, 2.0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store, _ := newStore(t, 1000, tc.r)
			p := defaultParams()
			p.Alpha = tc.alpha
			p.L = 32

			g, err := Build(context.Background(), store, data, distance.SquaredL2, p)
			require.NoError(t, err)

			for id := uint32(0); id < 1000; id++ {
				require.LessOrEqual(t, store.Degree(id), tc.r, "node %d", id)
				for _, nb := range store.Neighbors(id) {
					require.NotEqual(t, id, nb, "self loop at %d", id)
					require.Less(t, nb, uint32(600))
				}
			}

			st := g.Stats()
			assert.Equal(t, 600, st.Count)
			assert.LessOrEqual(t, st.MaxDegree, tc.r)
			assert.Greater(t, st.AvgDegree, 1.0)
			require.NoError(t, store.Verify())
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	data := randomDataset(t, 300, 6, 2)
	p := defaultParams()
	p.L = 20

	a, _ := newStore(t, 300, 10)
	b, _ := newStore(t, 300, 10)
	_, err := Build(context.Background(), a, data, distance.SquaredL2, p)
	require.NoError(t, err)
	_, err = Build(context.Background(), b, data, distance.SquaredL2, p)
	require.NoError(t, err)

	assert.Equal(t, a.Snapshot(), b.Snapshot())
	assert.Equal(t, a.Header(), b.Header())

	p.Seed = 7
	c, _ := newStore(t, 300, 10)
	_, err = Build(context.Background(), c, data, distance.SquaredL2, p)
	require.NoError(t, err)
	assert.NotEqual(t, a.Snapshot(), c.Snapshot())
}

func TestBuild_SinglePassAndFixedEntry(t *testing.T) {
	data := randomDataset(t, 100, 4, 3)
	store, _ := newStore(t, 100, 8)

	p := defaultParams()
	p.Passes = 1
	p.Entry = EntryFixed
	p.EntryID = 42

	g, err := Build(context.Background(), store, data, distance.SquaredL2, p)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), g.EntryPoint())
	assert.Equal(t, uint32(1), store.Header().Passes)
}

func TestBuild_MedoidSample(t *testing.T) {
	data := randomDataset(t, 200, 4, 4)
	store, _ := newStore(t, 200, 8)

	p := defaultParams()
	p.SampleSize = 20
	g, err := Build(context.Background(), store, data, distance.SquaredL2, p)
	require.NoError(t, err)
	assert.Less(t, g.EntryPoint(), uint32(200))
}

type faultyDataset struct {
	vectors.Dataset
	failID uint32
	short  bool
}

func (f faultyDataset) Vector(id uint32) ([]float32, error) {
	if id == f.failID {
		if f.short {
			return []float32{1}, nil
		}
		return nil, vectors.ErrOutOfRange
	}
	return f.Dataset.Vector(id)
}

func TestBuild_Errors(t *testing.T) {
	ctx := context.Background()
	data := randomDataset(t, 10, 3, 5)

	t.Run("Empty", func(t *testing.T) {
		store, _ := newStore(t, 10, 4)
		_, err := Build(ctx, store, vectors.NewDense(3), distance.SquaredL2, defaultParams())
		assert.ErrorIs(t, err, ErrEmptyDataset)
	})

	t.Run("CapacityExhausted", func(t *testing.T) {
		store, _ := newStore(t, 9, 4)
		_, err := Build(ctx, store, data, distance.SquaredL2, defaultParams())
		assert.ErrorIs(t, err, ErrCapacityExhausted)
	})

	t.Run("InvalidParams", func(t *testing.T) {
		store, _ := newStore(t, 10, 4)
		for _, mut := range []func(*Params){
			func(p *Params) { p.Alpha = 0.9 },
			func(p *Params) { p.L = 0 },
			func(p *Params) { p.Passes = 0 },
			func(p *Params) { p.Entry = EntryStrategy(9) },
		} {
			p := defaultParams()
			mut(&p)
			_, err := Build(ctx, store, data, distance.SquaredL2, p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		}
	})

	t.Run("EntryOutOfRange", func(t *testing.T) {
		store, _ := newStore(t, 10, 4)
		p := defaultParams()
		p.Entry = EntryFixed
		p.EntryID = 10
		_, err := Build(ctx, store, data, distance.SquaredL2, p)
		assert.ErrorIs(t, err, ErrInvalidEntry)
	})

	t.Run("DatasetFailure", func(t *testing.T) {
		store, _ := newStore(t, 10, 4)
		_, err := Build(ctx, store, faultyDataset{Dataset: data, failID: 3}, distance.SquaredL2, defaultParams())
		assert.ErrorIs(t, err, vectors.ErrOutOfRange)
		assert.False(t, store.Built())
	})

	t.Run("RaggedDataset", func(t *testing.T) {
		store, _ := newStore(t, 10, 4)
		_, err := Build(ctx, store, faultyDataset{Dataset: data, failID: 3, short: true}, distance.SquaredL2, defaultParams())
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 1, dm.Actual)
	})
}

func TestBuild_Cancelled(t *testing.T) {
	data := randomDataset(t, 50, 3, 6)
	store, _ := newStore(t, 50, 4)

	// A successful build first, so the reset on failure is observable.
	_, err := Build(context.Background(), store, data, distance.SquaredL2, defaultParams())
	require.NoError(t, err)
	require.True(t, store.Built())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Build(ctx, store, data, distance.SquaredL2, defaultParams())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, store.Built())
	assert.Empty(t, store.Neighbors(0))
}

func TestBuild_ProgressAndLogging(t *testing.T) {
	data := randomDataset(t, 20, 2, 7)
	store, _ := newStore(t, 20, 4)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var calls [][3]int
	_, err := Build(context.Background(), store, data, distance.SquaredL2, defaultParams(),
		WithLogger(logger),
		WithProgress(func(pass, done, total int) {
			calls = append(calls, [3]int{pass, done, total})
		}),
	)
	require.NoError(t, err)

	assert.Equal(t, [][3]int{{0, 20, 20}, {1, 20, 20}}, calls)
	assert.Contains(t, logs.String(), "vamana pass complete")
	assert.Contains(t, logs.String(), "alpha=1.2")
}

func buildRandom(t testing.TB, n, dim, r, l int) (*Graph, *vectors.Dense, []byte) {
	t.Helper()
	data := randomDataset(t, n, dim, 11)
	store, buf := newStore(t, uint64(n), r)
	p := defaultParams()
	p.L = l
	g, err := Build(context.Background(), store, data, distance.SquaredL2, p)
	require.NoError(t, err)
	return g, data, buf
}

func TestSearch_SortedUnique(t *testing.T) {
	g, data, _ := buildRandom(t, 200, 8, 12, 250)
	rng := rand.New(rand.NewSource(99))

	for i := 0; i < 20; i++ {
		q := make([]float32, 8)
		for j := range q {
			q[j] = rng.Float32()
		}
		res, stats, err := g.Search(q, 15, nil)
		require.NoError(t, err)
		require.Len(t, res, 15)
		assert.Greater(t, stats.Visited, 0)
		assert.Greater(t, stats.Expanded, 0)

		seen := map[uint32]bool{}
		for j, r := range res {
			require.False(t, seen[r.ID], "duplicate id %d", r.ID)
			seen[r.ID] = true
			v, _ := data.Vector(r.ID)
			assert.Equal(t, distance.SquaredL2(q, v), r.Distance)
			if j > 0 {
				assert.True(t, compareResults(res[j-1], r) < 0)
			}
		}
	}

	// With L above n every reachable node is evaluated.
	res, _, err := g.Search(make([]float32, 8), 500, nil)
	require.NoError(t, err)
	assert.Len(t, res, 200)
}

func TestSearch_Filter(t *testing.T) {
	g, _, _ := buildRandom(t, 400, 8, 16, 40)
	q := []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}

	all, allStats, err := g.Search(q, 10, nil)
	require.NoError(t, err)

	even := filter.Func(func(id uint32) bool { return id%2 == 0 })
	res, stats, err := g.Search(q, 10, even)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	for _, r := range res {
		assert.Zero(t, r.ID%2)
	}
	// The predicate never changes traversal.
	assert.Equal(t, allStats, stats)

	none, noneStats, err := g.Search(q, 10, filter.None)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.GreaterOrEqual(t, allStats.Visited, noneStats.Visited)

	// A single admitted node is still found when it is evaluated.
	target := all[len(all)-1].ID
	one, _, err := g.Search(q, 10, filter.AllowIDs(target))
	require.NoError(t, err)
	assert.Equal(t, []Result{all[len(all)-1]}, one)
}

func TestSearch_Recall(t *testing.T) {
	if testing.Short() {
		t.Skip("recall test builds a 2000 node graph")
	}
	g, data, _ := buildRandom(t, 2000, 16, 24, 64)
	rng := rand.New(rand.NewSource(123))

	const k, queries = 10, 50
	hits := 0
	for i := 0; i < queries; i++ {
		q := make([]float32, 16)
		for j := range q {
			q[j] = rng.Float32()
		}
		res, _, err := g.Search(q, k, nil)
		require.NoError(t, err)

		truth := bruteForce(t, data, distance.SquaredL2, q, k)
		for _, r := range res {
			if slices.Contains(truth, r.ID) {
				hits++
			}
		}
	}
	recall := float64(hits) / float64(k*queries)
	assert.GreaterOrEqual(t, recall, 0.85, "recall@%d = %.3f", k, recall)
}

func TestSearch_Errors(t *testing.T) {
	g, _, _ := buildRandom(t, 20, 4, 4, 10)

	_, _, err := g.Search([]float32{1, 2, 3, 4}, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidK)
	_, _, err = g.Search([]float32{1, 2, 3, 4}, -1, nil)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, _, err = g.Search([]float32{1, 2}, 3, nil)
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
}

func TestSearch_Concurrent(t *testing.T) {
	g, _, _ := buildRandom(t, 300, 8, 12, 30)
	rng := rand.New(rand.NewSource(5))

	queries := make([][]float32, 32)
	want := make([][]Result, len(queries))
	for i := range queries {
		queries[i] = make([]float32, 8)
		for j := range queries[i] {
			queries[i][j] = rng.Float32()
		}
		res, _, err := g.Search(queries[i], 5, nil)
		require.NoError(t, err)
		want[i] = res
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(queries)*4)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, q := range queries {
				res, _, err := g.Search(q, 5, nil)
				if err != nil {
					errs <- err
					continue
				}
				if !slices.Equal(res, want[i]) {
					errs <- errors.New("result mismatch")
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	g, data, buf := buildRandom(t, 300, 8, 12, 30)

	// Reattach a copy of the bytes, as a reopened region would be.
	copied := slices.Clone(buf)
	store, err := graph.Attach(copied)
	require.NoError(t, err)
	require.NoError(t, store.Verify())

	loaded, err := Load(store, data, distance.SquaredL2, 30)
	require.NoError(t, err)
	assert.Equal(t, g.EntryPoint(), loaded.EntryPoint())
	assert.Equal(t, g.Len(), loaded.Len())
	assert.Equal(t, g.Dim(), loaded.Dim())
	assert.Equal(t, 30, loaded.L())

	rng := rand.New(rand.NewSource(8))
	pred := filter.Range(50, 250)
	for i := 0; i < 10; i++ {
		q := make([]float32, 8)
		for j := range q {
			q[j] = rng.Float32()
		}
		want, _, err := g.Search(q, 10, pred)
		require.NoError(t, err)
		got, _, err := loaded.Search(q, 10, pred)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLoad_Errors(t *testing.T) {
	data := randomDataset(t, 20, 4, 9)

	unbuilt, _ := newStore(t, 20, 4)
	_, err := Load(unbuilt, data, distance.SquaredL2, 10)
	assert.ErrorIs(t, err, ErrNotBuilt)

	g, _, _ := buildRandom(t, 20, 4, 4, 10)
	store := g.Store()

	_, err = Load(store, randomDataset(t, 20, 3, 9), distance.SquaredL2, 10)
	var dm *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)

	_, err = Load(store, randomDataset(t, 19, 4, 9), distance.SquaredL2, 10)
	assert.ErrorIs(t, err, ErrDatasetMismatch)

	_, err = Load(store, data, distance.SquaredL2, 0)
	assert.ErrorIs(t, err, ErrInvalidParams)
}
