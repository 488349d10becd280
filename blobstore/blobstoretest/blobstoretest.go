// Package blobstoretest holds a conformance suite shared by the
// blobstore.BlobStore implementations.
package blobstoretest

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vamana/blobstore"
)

// Run exercises store under names prefixed with "conf/". The store should
// start without blobs under that prefix; Run deletes what it writes.
func Run(t *testing.T, store blobstore.BlobStore) {
	t.Helper()
	ctx := context.Background()
	payload := []byte("0123456789abcdef")

	t.Cleanup(func() {
		names, _ := store.List(context.Background(), "conf/")
		for _, n := range names {
			_ = store.Delete(context.Background(), n)
		}
	})

	t.Run("PutOpen", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "conf/put", payload))
		assert.Equal(t, payload, readBlob(t, store, "conf/put"))
	})

	t.Run("ReadAt", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "conf/readat", payload))
		b, err := store.Open(ctx, "conf/readat")
		require.NoError(t, err)
		defer b.Close()
		require.Equal(t, int64(len(payload)), b.Size())

		buf := make([]byte, 4)
		n, err := b.ReadAt(ctx, buf, 10)
		require.NoError(t, err)
		assert.Equal(t, "abcd", string(buf[:n]))

		n, err = b.ReadAt(ctx, buf, 14)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, "ef", string(buf[:n]))

		rc, err := b.ReadRange(ctx, 4, 3)
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "456", string(got))
	})

	t.Run("CreatePublishesOnClose", func(t *testing.T) {
		w, err := store.Create(ctx, "conf/stream")
		require.NoError(t, err)
		for i := 0; i < 4; i++ {
			_, err = w.Write(payload)
			require.NoError(t, err)
		}
		require.NoError(t, w.Sync())

		_, err = store.Open(ctx, "conf/stream")
		require.ErrorIs(t, err, blobstore.ErrNotFound)

		require.NoError(t, w.Close())
		got := readBlob(t, store, "conf/stream")
		assert.Len(t, got, 4*len(payload))
		assert.Equal(t, payload, got[3*len(payload):])
	})

	t.Run("Abort", func(t *testing.T) {
		w, err := store.Create(ctx, "conf/aborted")
		require.NoError(t, err)
		a, ok := w.(blobstore.Aborter)
		if !ok {
			_ = w.Close()
			t.Skip("store does not support Abort")
		}
		_, err = w.Write(payload)
		require.NoError(t, err)
		require.NoError(t, a.Abort())

		_, err = store.Open(ctx, "conf/aborted")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("ListDelete", func(t *testing.T) {
		for _, n := range []string{"conf/list/b", "conf/list/a", "conf/list/c"} {
			require.NoError(t, store.Put(ctx, n, payload))
		}
		names, err := store.List(ctx, "conf/list/")
		require.NoError(t, err)
		assert.Equal(t, []string{"conf/list/a", "conf/list/b", "conf/list/c"}, names)

		require.NoError(t, store.Delete(ctx, "conf/list/b"))
		require.NoError(t, store.Delete(ctx, "conf/list/b"), "deleting twice is fine")

		names, err = store.List(ctx, "conf/list/")
		require.NoError(t, err)
		assert.Equal(t, []string{"conf/list/a", "conf/list/c"}, names)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Open(ctx, "conf/missing")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func readBlob(t *testing.T, store blobstore.BlobStore, name string) []byte {
	t.Helper()
	b, err := store.Open(context.Background(), name)
	require.NoError(t, err)
	defer b.Close()

	data, err := blobstore.ReadAll(context.Background(), b)
	require.NoError(t, err)
	return data
}
