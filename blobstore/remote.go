package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// FetchFunc opens the inclusive byte range [first, last] of a remote object.
type FetchFunc func(ctx context.Context, first, last int64) (io.ReadCloser, error)

// NewRangedBlob returns a Blob of size bytes whose reads are served by
// fetch, one request per ReadAt or ReadRange call. Object stores use it on
// top of ranged GETs.
func NewRangedBlob(size int64, fetch FetchFunc) Blob {
	return &rangedBlob{size: size, fetch: fetch}
}

type rangedBlob struct {
	size  int64
	fetch FetchFunc
}

func (b *rangedBlob) Close() error { return nil }
func (b *rangedBlob) Size() int64  { return b.size }

func (b *rangedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	switch {
	case off < 0:
		return 0, fmt.Errorf("blobstore: negative offset %d", off)
	case len(p) == 0:
		return 0, nil
	case off >= b.size:
		return 0, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	end := min(off+int64(len(p)), b.size)
	body, err := b.fetch(ctx, off, end-1)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:end-off])
	if err != nil {
		// The object is shorter than its recorded size.
		return n, io.ErrUnexpectedEOF
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange clips [off, off+length) to the blob. An empty range yields an
// empty reader without a request.
func (b *rangedBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	off = max(off, 0)
	if off >= b.size || length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.fetch(ctx, off, min(off+length, b.size)-1)
}

// UploadFunc stores everything read from r. It must return once r reports
// EOF or an error.
type UploadFunc func(ctx context.Context, r io.Reader) error

// NewPipeBlob runs upload in a goroutine and returns a WritableBlob that
// feeds it through a pipe. Close waits for the upload result. The blob also
// implements Aborter: Abort cancels the upload's context and closes the pipe
// with an error so upload never sees a clean EOF.
func NewPipeBlob(ctx context.Context, upload UploadFunc) WritableBlob {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(ctx)

	b := &pipeBlob{
		pw:     pw,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		err := upload(ctx, pr)
		_ = pr.CloseWithError(err)
		b.done <- err
	}()
	return b
}

type pipeBlob struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan error

	mu     sync.Mutex
	closed bool
	err    error
}

func (b *pipeBlob) Write(p []byte) (int, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return b.pw.Write(p)
}

// Sync is a no-op; nothing is visible before Close.
func (b *pipeBlob) Sync() error { return nil }

func (b *pipeBlob) Close() error {
	return b.finish(func() {
		_ = b.pw.Close()
	})
}

func (b *pipeBlob) Abort() error {
	_ = b.finish(func() {
		b.cancel()
		_ = b.pw.CloseWithError(context.Canceled)
	})
	return nil
}

// finish runs end once and returns the upload result on every call.
func (b *pipeBlob) finish(end func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		end()
		b.err = <-b.done
		b.cancel()
	}
	return b.err
}
