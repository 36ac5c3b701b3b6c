//go:build !unix

package model

import (
	"fmt"
	"os"

	"vmemo/internal/vmemoerr"
)

// OpenFile falls back to a plain read on platforms without a POSIX mmap
// (e.g. Windows); see mmap_unix.go for the memory-mapped path.
func OpenFile(path string) (data []byte, closer func() error, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading %s: %v", vmemoerr.ErrIoError, path, err)
	}
	return b, func() error { return nil }, nil
}
