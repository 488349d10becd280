package vectors

import (
	"errors"
	"fmt"

	"github.com/x448/float16"
)

var (
	// ErrOutOfRange is returned for ids outside [0, Len()).
	ErrOutOfRange = errors.New("vectors: id out of range")
	// ErrWrongDimension is returned when a vector doesn't match the dataset dimension.
	ErrWrongDimension = errors.New("vectors: wrong vector dimension")
)

// Dataset is random access to a fixed set of vectors.
//
// Implementations must be safe for concurrent reads. Callers must treat
// returned slices as read-only; they may alias internal memory.
type Dataset interface {
	Dim() int
	Len() int
	Vector(id uint32) ([]float32, error)
}

// Dense is a Dataset backed by one contiguous float32 slab.
type Dense struct {
	dim  int
	data []float32
}

// NewDense returns an empty dataset of the given dimension.
func NewDense(dim int) *Dense {
	return &Dense{dim: dim}
}

// FromSlices copies vs into a new Dense dataset. All vectors must share one dimension.
func FromSlices(vs [][]float32) (*Dense, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("vectors: empty input")
	}
	d := NewDense(len(vs[0]))
	d.data = make([]float32, 0, len(vs)*d.dim)
	for _, v := range vs {
		if err := d.Append(v); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Append adds v as the next id. Not safe for use concurrently with reads.
func (d *Dense) Append(v []float32) error {
	if d.dim <= 0 || len(v) != d.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrWrongDimension, d.dim, len(v))
	}
	d.data = append(d.data, v...)
	return nil
}

func (d *Dense) Dim() int { return d.dim }

func (d *Dense) Len() int {
	if d.dim == 0 {
		return 0
	}
	return len(d.data) / d.dim
}

// Vector returns a view into the slab.
func (d *Dense) Vector(id uint32) ([]float32, error) {
	if int(id) >= d.Len() {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrOutOfRange, id, d.Len())
	}
	off := int(id) * d.dim
	return d.data[off : off+d.dim : off+d.dim], nil
}

// Half is a Dataset stored as float16 bit patterns.
type Half struct {
	dim  int
	bits []uint16
}

// NewHalf converts src to half precision.
func NewHalf(src Dataset) (*Half, error) {
	h := &Half{dim: src.Dim(), bits: make([]uint16, 0, src.Len()*src.Dim())}
	for i := 0; i < src.Len(); i++ {
		v, err := src.Vector(uint32(i))
		if err != nil {
			return nil, err
		}
		for _, x := range v {
			h.bits = append(h.bits, float16.Fromfloat32(x).Bits())
		}
	}
	return h, nil
}

func (h *Half) Dim() int { return h.dim }

func (h *Half) Len() int {
	if h.dim == 0 {
		return 0
	}
	return len(h.bits) / h.dim
}

// Vector decodes into a freshly allocated slice.
func (h *Half) Vector(id uint32) ([]float32, error) {
	if int(id) >= h.Len() {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrOutOfRange, id, h.Len())
	}
	off := int(id) * h.dim
	out := make([]float32, h.dim)
	for i, b := range h.bits[off : off+h.dim] {
		out[i] = float16.Frombits(b).Float32()
	}
	return out, nil
}

// SizeBytes returns the resident size of the encoded vectors.
func (h *Half) SizeBytes() int64 {
	return int64(len(h.bits)) * 2
}
