// Package blobstore provides named-blob storage for memory snapshots.
//
// Store is the interface snapshot persistence writes to and reads from.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and ephemeral use
//   - LocalStore: local filesystem with atomic rename on Put
//   - s3.Store: Amazon S3, multipart uploads for large blobs
//   - minio.Store: MinIO and other S3-compatible servers
//   - badger.Store: embedded badger key-value database
//
// # Custom Implementations
//
//	type Store interface {
//	    Put(ctx, name, data) error
//	    Get(ctx, name) ([]byte, error)
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Get must return an error satisfying errors.Is(err, ErrNotFound) for a
// missing blob. Delete of a missing blob is not an error. List returns names
// sorted ascending. The blobstoretest package checks these rules.
package blobstore
