package vectors

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrMalformed is returned for truncated or inconsistent .fvecs input.
var ErrMalformed = errors.New("vectors: malformed fvecs")

// ReadFvecs reads an .fvecs stream: each record is a little-endian int32
// dimension followed by that many float32 values. limit > 0 stops after
// limit records.
func ReadFvecs(r io.Reader, limit int) (*Dense, error) {
	br := bufio.NewReader(r)
	var d *Dense
	var hdr [4]byte

	for limit <= 0 || d == nil || d.Len() < limit {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		dim := int(int32(binary.LittleEndian.Uint32(hdr[:])))
		if dim <= 0 {
			return nil, fmt.Errorf("%w: dimension %d", ErrMalformed, dim)
		}
		if d == nil {
			d = NewDense(dim)
		} else if dim != d.dim {
			return nil, fmt.Errorf("%w: record %d has dimension %d, expected %d", ErrMalformed, d.Len(), dim, d.dim)
		}

		buf := make([]byte, 4*dim)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, d.Len(), err)
		}
		for i := 0; i < dim; i++ {
			d.data = append(d.data, math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
		}
	}

	if d == nil {
		return nil, fmt.Errorf("%w: no records", ErrMalformed)
	}
	return d, nil
}

// WriteFvecs writes every vector of ds in .fvecs format.
func WriteFvecs(w io.Writer, ds Dataset) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 4+4*ds.Dim())
	binary.LittleEndian.PutUint32(buf, uint32(ds.Dim()))

	for i := 0; i < ds.Len(); i++ {
		v, err := ds.Vector(uint32(i))
		if err != nil {
			return err
		}
		for j, x := range v {
			binary.LittleEndian.PutUint32(buf[4+4*j:], math.Float32bits(x))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}
