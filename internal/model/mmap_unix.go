//go:build unix

package model

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"vmemo/internal/vmemoerr"
)

// OpenFile memory-maps path read-only, mirroring the teacher's
// memory-mapped-loading-for-low-memory-footprint approach (pkg/localllm).
// The returned closer must be called once the caller is done reading the
// slice; on non-POSIX platforms this falls back to a plain read, see
// mmap_other.go.
func OpenFile(path string) (data []byte, closer func() error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening %s: %v", vmemoerr.ErrIoError, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: statting %s: %v", vmemoerr.ErrIoError, path, err)
	}
	size := info.Size()
	if size == 0 {
		return nil, func() error { return nil }, nil
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: mmap %s: %v", vmemoerr.ErrIoError, path, err)
	}
	return mapped, func() error { return unix.Munmap(mapped) }, nil
}
