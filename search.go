package vamana

import (
	"context"
	"iter"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vamana/filter"
)

// Search returns up to k admitted nodes nearest query, ascending by
// (distance, id). A nil pred admits every node. The predicate only filters
// the nodes the beam search evaluated; it never steers traversal.
func (idx *Index) Search(ctx context.Context, query []float32, k int, pred filter.Func) ([]Result, error) {
	res, _, err := idx.SearchWithStats(ctx, query, k, pred)
	return res, err
}

// SearchWithStats is Search plus the work counters of the traversal.
func (idx *Index) SearchWithStats(ctx context.Context, query []float32, k int, pred filter.Func) (res []Result, stats SearchStats, err error) {
	start := time.Now()
	defer func() {
		idx.metrics.RecordSearch(k, stats.Visited, time.Since(start), err)
		idx.logger.LogSearch(ctx, k, len(res), stats.Visited, err)
	}()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, SearchStats{}, ErrClosed
	}
	if err = ctx.Err(); err != nil {
		return nil, SearchStats{}, err
	}

	res, stats, err = idx.graph.Search(query, k, pred)
	if err != nil {
		return nil, stats, translateError(err)
	}
	return res, stats, nil
}

// SearchBatch runs one search per query concurrently, bounded by GOMAXPROCS.
// results[i] answers queries[i]. The first error cancels the batch.
func (idx *Index) SearchBatch(ctx context.Context, queries [][]float32, k int, pred filter.Func) ([][]Result, error) {
	results := make([][]Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, q := range queries {
		g.Go(func() error {
			res, err := idx.Search(gctx, q, k, pred)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Query starts a fluent search for query.
//
// Example:
//
//	results, err := idx.Query(q).
//	    KNN(10).
//	    Filter(filter.AllowIDs(1, 2, 3)).
//	    Execute(ctx)
func (idx *Index) Query(query []float32) *QueryBuilder {
	return &QueryBuilder{
		idx:   idx,
		query: query,
		k:     10, // Default k
	}
}

// QueryBuilder is a fluent builder for a single search.
type QueryBuilder struct {
	idx   *Index
	query []float32
	k     int
	pred  filter.Func
}

// KNN sets the number of nearest neighbors to return.
func (qb *QueryBuilder) KNN(k int) *QueryBuilder {
	qb.k = k
	return qb
}

// Filter restricts results to nodes admitted by pred. Repeated calls are
// combined with filter.And.
func (qb *QueryBuilder) Filter(pred filter.Func) *QueryBuilder {
	if qb.pred == nil {
		qb.pred = pred
	} else {
		qb.pred = filter.And(qb.pred, pred)
	}
	return qb
}

// Execute runs the search.
func (qb *QueryBuilder) Execute(ctx context.Context) ([]Result, error) {
	return qb.idx.Search(ctx, qb.query, qb.k, qb.pred)
}

// Stream yields the results of Execute one at a time, nearest first.
// Breaking out of the loop early is allowed.
func (qb *QueryBuilder) Stream(ctx context.Context) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		res, err := qb.Execute(ctx)
		if err != nil {
			yield(Result{}, err)
			return
		}
		for _, r := range res {
			if !yield(r, nil) {
				return
			}
		}
	}
}
