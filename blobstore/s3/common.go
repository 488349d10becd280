package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/vamana/blobstore"
)

// newBlob serves reads of bucket/key through ranged GETs.
func newBlob(client Client, bucket, key string, size int64) blobstore.Blob {
	return blobstore.NewRangedBlob(size, func(ctx context.Context, first, last int64) (io.ReadCloser, error) {
		resp, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-%d", first, last)),
		})
		if err != nil {
			if isNotFound(err) {
				return nil, blobstore.ErrNotFound
			}
			return nil, err
		}
		return resp.Body, nil
	})
}

func openBlob(ctx context.Context, client Client, bucket, key string) (blobstore.Blob, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return newBlob(client, bucket, key, aws.ToInt64(head.ContentLength)), nil
}

// listObjects pages through ListObjectsV2 and returns names relative to root.
func listObjects(ctx context.Context, client Client, bucket, prefix, root string) ([]string, error) {
	var names []string

	pages := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(strings.TrimPrefix(aws.ToString(obj.Key), root), "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
