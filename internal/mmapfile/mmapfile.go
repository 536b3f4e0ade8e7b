// Package mmapfile memory-maps a regular file read-only for zero-copy
// access on Linux and Darwin, falling back to a full read on Windows. No
// other platform has an implementation.
package mmapfile

import "os"

// Map returns a read-only view of f's current contents. The caller must
// call Unmap on the returned data once it is no longer needed.
func Map(f *os.File, size int64) ([]byte, error) {
	return mmap(f, size)
}

// Unmap releases a mapping previously returned by Map.
func Unmap(data []byte) error {
	return munmap(data)
}
