package vamana

import (
	"errors"
	"fmt"
)

var (
	ErrNotBuilt          = errors.New("vamana: graph is not built")
	ErrEmptyDataset      = errors.New("vamana: dataset is empty")
	ErrCapacityExhausted = errors.New("vamana: dataset exceeds capacity")
	ErrDatasetMismatch   = errors.New("vamana: dataset does not match graph")
	ErrInvalidK          = errors.New("vamana: k must be positive")
	ErrInvalidEntry      = errors.New("vamana: entry point out of range")
	ErrInvalidParams     = errors.New("vamana: invalid parameters")
)

// ErrDimensionMismatch reports a vector whose length differs from the graph dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vamana: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
