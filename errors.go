package vamana

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vamana/internal/graph"
	ivamana "github.com/hupe1980/vamana/internal/vamana"
)

var (
	// ErrInvalidOptions is returned when Options fail validation.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrCapacityExhausted is returned when the dataset holds more vectors than the reserved capacity.
	ErrCapacityExhausted = errors.New("capacity exhausted")

	// ErrOptionsMismatch is returned when Capacity, R or Memmap differ from the region layout.
	ErrOptionsMismatch = errors.New("options do not match storage region")

	// ErrNotBuilt is returned when loading a region that was reserved but never built.
	ErrNotBuilt = errors.New("graph is not built")

	// ErrCorrupt is returned when the region header or adjacency fails validation.
	ErrCorrupt = errors.New("graph region is corrupt")

	// ErrDatasetMismatch is returned when the dataset cannot back the graph.
	ErrDatasetMismatch = errors.New("dataset does not match graph")

	// ErrStorage wraps failures of the storage substrate.
	ErrStorage = errors.New("storage failure")

	// ErrClosed is returned when using an Index after Close.
	ErrClosed = errors.New("index is closed")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *ivamana.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	switch {
	case errors.Is(err, ivamana.ErrInvalidK):
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	case errors.Is(err, ivamana.ErrCapacityExhausted):
		return fmt.Errorf("%w: %w", ErrCapacityExhausted, err)
	case errors.Is(err, ivamana.ErrNotBuilt):
		return fmt.Errorf("%w: %w", ErrNotBuilt, err)
	case errors.Is(err, ivamana.ErrDatasetMismatch),
		errors.Is(err, ivamana.ErrEmptyDataset):
		return fmt.Errorf("%w: %w", ErrDatasetMismatch, err)
	case errors.Is(err, ivamana.ErrInvalidParams),
		errors.Is(err, ivamana.ErrInvalidEntry),
		errors.Is(err, graph.ErrInvalidLayout):
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	case errors.Is(err, graph.ErrInvalidMagic),
		errors.Is(err, graph.ErrInvalidVersion),
		errors.Is(err, graph.ErrSizeMismatch),
		errors.Is(err, graph.ErrCorrupt),
		errors.Is(err, graph.ErrChecksum):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	case errors.Is(err, graph.ErrBigEndian),
		errors.Is(err, graph.ErrUnalignedRegion):
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return err
}
