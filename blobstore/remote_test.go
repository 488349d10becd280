package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchCall struct{ first, last int64 }

func fakeRemote(data []byte, calls *[]fetchCall) FetchFunc {
	return func(_ context.Context, first, last int64) (io.ReadCloser, error) {
		*calls = append(*calls, fetchCall{first, last})
		if first >= int64(len(data)) {
			return io.NopCloser(bytes.NewReader(nil)), nil
		}
		end := min(last+1, int64(len(data)))
		return io.NopCloser(bytes.NewReader(data[first:end])), nil
	}
}

func TestRangedBlob_ReadAt(t *testing.T) {
	ctx := context.Background()
	var calls []fetchCall
	b := NewRangedBlob(10, fakeRemote([]byte("0123456789"), &calls))
	assert.Equal(t, int64(10), b.Size())

	buf := make([]byte, 4)
	n, err := b.ReadAt(ctx, buf, 3)
	require.NoError(t, err)
	assert.Equal(t, "3456", string(buf[:n]))

	n, err = b.ReadAt(ctx, buf, 8)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "89", string(buf[:n]))

	n, err = b.ReadAt(ctx, buf, 10)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)

	n, err = b.ReadAt(ctx, nil, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = b.ReadAt(ctx, buf, -1)
	assert.Error(t, err)

	assert.Equal(t, []fetchCall{{3, 6}, {8, 9}}, calls)
	require.NoError(t, b.Close())
}

func TestRangedBlob_ShortObject(t *testing.T) {
	var calls []fetchCall
	// Recorded size is larger than what the remote actually holds.
	b := NewRangedBlob(10, fakeRemote([]byte("01234"), &calls))

	buf := make([]byte, 4)
	n, err := b.ReadAt(context.Background(), buf, 3)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 2, n)
}

func TestRangedBlob_FetchError(t *testing.T) {
	boom := errors.New("boom")
	b := NewRangedBlob(10, func(context.Context, int64, int64) (io.ReadCloser, error) {
		return nil, boom
	})

	_, err := b.ReadAt(context.Background(), make([]byte, 2), 0)
	assert.ErrorIs(t, err, boom)
	_, err = b.ReadRange(context.Background(), 0, 2)
	assert.ErrorIs(t, err, boom)
}

func TestRangedBlob_Cancelled(t *testing.T) {
	var calls []fetchCall
	b := NewRangedBlob(10, fakeRemote([]byte("0123456789"), &calls))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.ReadAt(ctx, make([]byte, 2), 0)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = b.ReadRange(ctx, 0, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestRangedBlob_ReadRange(t *testing.T) {
	ctx := context.Background()
	var calls []fetchCall
	b := NewRangedBlob(10, fakeRemote([]byte("0123456789"), &calls))

	tests := []struct {
		off, length int64
		want        string
	}{
		{2, 5, "23456"},
		{7, 100, "789"},
		{-3, 2, "01"},
		{10, 5, ""},
		{4, 0, ""},
	}
	for _, tt := range tests {
		rc, err := b.ReadRange(ctx, tt.off, tt.length)
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, tt.want, string(got), "off=%d length=%d", tt.off, tt.length)
	}
	assert.Len(t, calls, 3, "empty ranges don't hit the remote")
}

func TestPipeBlob_Close(t *testing.T) {
	var got []byte
	w := NewPipeBlob(context.Background(), func(_ context.Context, r io.Reader) error {
		var err error
		got, err = io.ReadAll(r)
		return err
	})

	_, err := io.WriteString(w, "hello ")
	require.NoError(t, err)
	_, err = io.WriteString(w, "world")
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	assert.Equal(t, "hello world", string(got))

	require.NoError(t, w.Close(), "second close repeats the result")
	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestPipeBlob_UploadError(t *testing.T) {
	boom := errors.New("boom")
	w := NewPipeBlob(context.Background(), func(context.Context, io.Reader) error {
		return boom
	})

	// Writes fail once the uploader has given up.
	_, err := w.Write([]byte("data"))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, w.Close(), boom)
}

func TestPipeBlob_Abort(t *testing.T) {
	var uploadErr error
	var uploadCtx context.Context
	w := NewPipeBlob(context.Background(), func(ctx context.Context, r io.Reader) error {
		uploadCtx = ctx
		_, uploadErr = io.ReadAll(r)
		return uploadErr
	})

	_, err := io.WriteString(w, "partial")
	require.NoError(t, err)

	a, ok := w.(Aborter)
	require.True(t, ok)
	require.NoError(t, a.Abort())

	assert.ErrorIs(t, uploadErr, context.Canceled)
	assert.ErrorIs(t, uploadCtx.Err(), context.Canceled)
	assert.ErrorIs(t, w.Close(), context.Canceled)
}
