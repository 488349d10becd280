package blobstore

import (
	"context"
	"fmt"
	"io"
)

// ReadAll reads the whole blob. Mappable blobs are copied without a read call.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), data...), nil
	}

	buf := make([]byte, b.Size())
	n, err := b.ReadAt(ctx, buf, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if int64(n) != b.Size() {
		return nil, fmt.Errorf("blobstore: short read: %d of %d bytes: %w", n, b.Size(), io.ErrUnexpectedEOF)
	}
	return buf, nil
}

// NewReader returns a sequential reader over b.
func NewReader(ctx context.Context, b Blob) io.Reader {
	return &sequentialReader{ctx: ctx, blob: b}
}

type sequentialReader struct {
	ctx  context.Context
	blob Blob
	off  int64
}

func (r *sequentialReader) Read(p []byte) (int, error) {
	if r.off >= r.blob.Size() {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if rem := r.blob.Size() - r.off; int64(len(p)) > rem {
		p = p[:rem]
	}
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

type bytesBlob struct {
	data []byte
}

func (b *bytesBlob) Close() error           { return nil }
func (b *bytesBlob) Size() int64            { return int64(len(b.data)) }
func (b *bytesBlob) Bytes() ([]byte, error) { return b.data, nil }

func (b *bytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return readAt(b.data, p, off)
}

func (b *bytesBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	return io.NopCloser(sectionOf(b.data, off, length)), nil
}

// NewBytesBlob wraps data as a read-only Blob.
func NewBytesBlob(data []byte) Blob {
	return &bytesBlob{data: data}
}

func readAt(data, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("blobstore: negative offset %d", off)
	}
	if off >= int64(len(data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func sectionOf(data []byte, off, length int64) io.Reader {
	size := int64(len(data))
	off = min(max(off, 0), size)
	end := min(off+max(length, 0), size)
	return io.NewSectionReader(readerAt(data), off, end-off)
}

type readerAt []byte

func (r readerAt) ReadAt(p []byte, off int64) (int, error) { return readAt(r, p, off) }
