// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("memories/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = mem.SaveToStore(ctx, store, "snap-0001.mhdm")
//
// # Features
//
//   - Multipart uploads for large snapshots
//   - CRC32-C integrity checksums on upload
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - DDBCommitStore: DynamoDB conditional writes for the CURRENT pointer
package s3
