package vamana

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// PrometheusCollector for a ready-made Prometheus binding.
type MetricsCollector interface {
	// RecordPrebuild is called after each layout reservation.
	// bytes is the reserved region size.
	RecordPrebuild(bytes int64, duration time.Duration, err error)

	// RecordBuild is called after each graph construction.
	// nodes is the number of vectors indexed.
	RecordBuild(nodes int, duration time.Duration, err error)

	// RecordLoad is called after each attach to a built region.
	RecordLoad(duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// k is the number of neighbors requested, visited the number of
	// distance evaluations, err is nil if successful.
	RecordSearch(k, visited int, duration time.Duration, err error)

	// RecordInsert is called for every (ignored) insert.
	RecordInsert()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPrebuild(int64, time.Duration, error)  {}
func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)             {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordInsert()                               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PrebuildCount    atomic.Int64
	PrebuildErrors   atomic.Int64
	PrebuildBytes    atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildNodes       atomic.Int64
	BuildTotalNanos  atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchVisited    atomic.Int64
	SearchTotalNanos atomic.Int64
	InsertCount      atomic.Int64
}

// RecordPrebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPrebuild(bytes int64, duration time.Duration, err error) {
	b.PrebuildCount.Add(1)
	if err != nil {
		b.PrebuildErrors.Add(1)
		return
	}
	b.PrebuildBytes.Add(bytes)
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(nodes int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildNodes.Add(int64(nodes))
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k, visited int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchVisited.Add(int64(visited))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert() {
	b.InsertCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PrebuildCount:    b.PrebuildCount.Load(),
		PrebuildErrors:   b.PrebuildErrors.Load(),
		PrebuildBytes:    b.PrebuildBytes.Load(),
		BuildCount:       b.BuildCount.Load(),
		BuildErrors:      b.BuildErrors.Load(),
		BuildNodes:       b.BuildNodes.Load(),
		BuildAvgNanos:    avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		LoadCount:        b.LoadCount.Load(),
		LoadErrors:       b.LoadErrors.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchAvgNanos:   avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		SearchAvgVisited: avg(b.SearchVisited.Load(), b.SearchCount.Load()),
		InsertCount:      b.InsertCount.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PrebuildCount    int64
	PrebuildErrors   int64
	PrebuildBytes    int64
	BuildCount       int64
	BuildErrors      int64
	BuildNodes       int64
	BuildAvgNanos    int64
	LoadCount        int64
	LoadErrors       int64
	SearchCount      int64
	SearchErrors     int64
	SearchAvgNanos   int64
	SearchAvgVisited int64
	InsertCount      int64
}
