package minio

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vamana/blobstore/blobstoretest"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// TestIntegration_MinioStore needs a MinIO server; it skips when none
// answers at MINIO_ENDPOINT (default localhost:9000).
func TestIntegration_MinioStore(t *testing.T) {
	client, err := minio.New(envOr("MINIO_ENDPOINT", "localhost:9000"), &minio.Options{
		Creds: credentials.NewStaticV4(envOr("MINIO_ACCESS_KEY", "minioadmin"), envOr("MINIO_SECRET_KEY", "minioadmin"), ""),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("minio unreachable: %v", err)
	}

	const bucket = "test-vamana"
	ok, err := client.BucketExists(context.Background(), bucket)
	require.NoError(t, err)
	if !ok {
		require.NoError(t, client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}))
	}

	blobstoretest.Run(t, NewStore(client, bucket, "it/"))
}

func TestIsNotFound(t *testing.T) {
	for code, want := range map[string]bool{
		"NoSuchKey":    true,
		"NotFound":     true,
		"AccessDenied": false,
	} {
		assert.Equal(t, want, isNotFound(minio.ErrorResponse{Code: code}), code)
	}
}

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "b", "graphs/")
	assert.Equal(t, "graphs/docs.vsnp", s.key("docs.vsnp"))
	assert.Equal(t, "docs.vsnp", NewStore(nil, "b", "").key("docs.vsnp"))
}
