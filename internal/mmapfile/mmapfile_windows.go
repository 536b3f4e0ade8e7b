//go:build windows

package mmapfile

import (
	"io"
	"os"
)

// Fallback to ReadAll on Windows to avoid unsafe pointer arithmetic without
// an external mapping library.
func mmap(f *os.File, size int64) ([]byte, error) {
	return io.ReadAll(f)
}

func munmap(data []byte) error {
	return nil
}
