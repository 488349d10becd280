package s3

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vamana/blobstore/blobstoretest"
)

// TestIntegration_S3Store runs against a real bucket named by S3_BUCKET,
// using the default AWS credential chain.
func TestIntegration_S3Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	require.NoError(t, err)

	store := NewStore(s3.NewFromConfig(cfg), bucket, fmt.Sprintf("test-vamana-%d/", time.Now().UnixNano()))
	blobstoretest.Run(t, store)

	t.Run("PutIfNotExists", func(t *testing.T) {
		require.NoError(t, store.PutIfNotExists(ctx, "conf/once", []byte("a")))
		assert.ErrorIs(t, store.PutIfNotExists(ctx, "conf/once", []byte("b")), ErrConflict)
	})
}
