// Package minio stores snapshot blobs through minio-go, for MinIO and other
// S3-compatible servers where the AWS SDK is unwanted.
//
//	client, err := minio.New("minio.internal:9000", &minio.Options{
//		Creds: credentials.NewStaticV4(key, secret, ""),
//	})
//	if err != nil {
//		return err
//	}
//	store := minioblob.NewStore(client, "graphs", "prod/")
//	info, err := snapshot.Publish(ctx, store, "snap-0001", region)
package minio
