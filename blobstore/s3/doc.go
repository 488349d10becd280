// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "graphs/")
//	err = snapshot.Save(ctx, store, "docs-0001.vsnp", region)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart streaming uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Conditional create (If-None-Match) so a snapshot name is written once
//   - DDBCommitStore: DynamoDB conditional writes for the CURRENT pointer
package s3
