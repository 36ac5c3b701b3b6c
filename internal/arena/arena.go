// Package arena implements the bump-pointer region vmemo uses for its
// longest-lived, largest allocations (model weights) and for the scratch
// parses made during filter evaluation; the tokenizer vocabulary and the
// vector/text/metadata stores keep their own Go-heap-backed slices.
// There is no per-object free; callers that need scratch lifetimes use
// Snapshot/Restore instead.
package arena

import (
	"fmt"

	"vmemo/internal/vmemoerr"
)

const alignment = 8

// Arena is a single contiguous byte region with a bump-pointer offset.
// It is not safe for concurrent use; vmemo's core is single-threaded
// by design (spec §5).
type Arena struct {
	buf    []byte
	offset int
}

// New reserves a region of exactly size bytes, once, for the lifetime of
// the run.
func New(size int) *Arena {
	return &Arena{buf: make([]byte, size)}
}

// Push bumps the offset by n bytes (8-byte aligned) and returns a slice
// view over the freshly reserved region. It fails hard on exhaustion,
// matching the source's abort-on-failure allocator contract (spec §4.A).
func (a *Arena) Push(n int) []byte {
	aligned := align(a.offset)
	if aligned+n > len(a.buf) {
		panic(fmt.Errorf("%w: arena exhausted: need %d bytes at offset %d, capacity %d",
			vmemoerr.ErrIoError, n, aligned, len(a.buf)))
	}
	a.offset = aligned + n
	return a.buf[aligned : aligned+n : aligned+n]
}

// PushFloat32 reserves n float32 slots and returns them as a slice backed
// by the arena's region.
func (a *Arena) PushFloat32(n int) []float32 {
	raw := a.Push(n * 4)
	return bytesToFloat32(raw)
}

// Snapshot records the current offset so a later Restore can roll the
// arena back to this point. Used only by the filter engine's scratch
// parses (spec §4.A, §5).
func (a *Arena) Snapshot() int {
	return a.offset
}

// Restore rewinds the arena to a previously captured Snapshot. Restoring
// to a point ahead of the current offset is a caller bug and panics.
func (a *Arena) Restore(snapshot int) {
	if snapshot > a.offset {
		panic("arena: restore snapshot ahead of current offset")
	}
	a.offset = snapshot
}

// Reset clears the offset, making the whole region available again
// without releasing the backing allocation.
func (a *Arena) Reset() {
	a.offset = 0
}

// Free releases the backing region. The Arena must not be used after Free.
func (a *Arena) Free() {
	a.buf = nil
	a.offset = 0
}

// Len reports the number of bytes currently in use.
func (a *Arena) Len() int {
	return a.offset
}

// Cap reports the total size of the reserved region.
func (a *Arena) Cap() int {
	return len(a.buf)
}

func align(offset int) int {
	if rem := offset % alignment; rem != 0 {
		return offset + (alignment - rem)
	}
	return offset
}
