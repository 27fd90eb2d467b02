// Package fs provides the file system seam under blobstore.LocalStore.
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: wrapper that injects write, sync, close and rename failures
//
// Tests inject [FaultyFS] to check that a failed snapshot write never
// replaces the previous blob:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp-", fs.Fault{FailAfterBytes: 1024})
//	store := blobstore.NewLocalStoreWithFS(dir, ffs)
//
// Operations take no context.Context; local file system calls are not
// interruptible at the syscall level.
package fs
