// Package snapshot copies built graph regions to and from a blob store.
//
// A snapshot is a single blob: a fixed 32-byte header followed by the
// region bytes, compressed with LZ4 (default), zstd, or stored raw.
//
//	magic "VSNP" u32 | version u32 | codec u8 | pad [7] | raw size u64 | CRC32C u32 | pad u32
//
// The checksum covers the uncompressed region. Restore writes into an
// already reserved region of exactly the recorded size; a failed restore
// leaves that region zeroed, which the index reports as not built.
//
// Commit and Latest maintain the CURRENT pointer. On S3 with the DynamoDB
// commit store the pointer update is a conditional write, so concurrent
// publishers fail with s3.ErrConcurrentModification instead of racing.
package snapshot
