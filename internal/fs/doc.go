// Package fs abstracts the filesystem calls made by the storage substrate so
// tests can inject I/O failures.
//
//   - [LocalFS]: production implementation backed by package os
//   - [FaultyFS]: wrapper that fails writes, syncs, truncates or opens on demand
//
// Production code uses fs.Default:
//
//	f, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
//
// Tests wrap it:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".mmap", fs.Fault{FailOnTruncate: true})
//
// No method takes a context.Context: local filesystem calls are not
// interruptible at the syscall level.
package fs
