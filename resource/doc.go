// Package resource governs the memory, build concurrency and IO consumed by
// vamana indexes that share one process.
//
//	┌─────────────────────────────────────────────────────────┐
//	│                       Controller                        │
//	├──────────────────┬──────────────────┬───────────────────┤
//	│  Memory budget   │  Build slots     │  IO rate limiter  │
//	│  (fail-fast)     │  (blocking sem)  │  (token bucket)   │
//	├──────────────────┼──────────────────┼───────────────────┤
//	│  AcquireMemory   │  AcquireBuild    │  AcquireIO        │
//	│  ReleaseMemory   │  TryAcquireBuild │  Writer / Reader  │
//	│  MemoryUsage     │  ReleaseBuild    │                   │
//	└──────────────────┴──────────────────┴───────────────────┘
//
// Resident graph regions are charged to the memory budget when they are
// reserved, so an oversized prebuild fails before any byte is allocated.
// Builds take a build slot for their whole duration; the default of one slot
// serializes builders that share a controller. Snapshot uploads and downloads
// are metered through the IO limiter.
//
// Every method is safe for concurrent use, and every method on a nil
// *Controller is a no-op, so the controller is optional everywhere.
package resource
