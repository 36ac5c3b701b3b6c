package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushAlignment(t *testing.T) {
	a := New(256)
	b1 := a.Push(3)
	require.Len(t, b1, 3)
	b2 := a.Push(8)
	require.Len(t, b2, 8)
	assert.Equal(t, 16, a.Len())
}

func TestPushFloat32RoundTrip(t *testing.T) {
	a := New(1024)
	f := a.PushFloat32(4)
	require.Len(t, f, 4)
	for i := range f {
		f[i] = float32(i) * 1.5
	}
	for i := range f {
		assert.Equal(t, float32(i)*1.5, f[i])
	}
}

func TestSnapshotRestore(t *testing.T) {
	a := New(256)
	a.Push(32)
	snap := a.Snapshot()
	a.Push(64)
	assert.Equal(t, 96, a.Len())
	a.Restore(snap)
	assert.Equal(t, 32, a.Len())
}

func TestPushExhaustionPanics(t *testing.T) {
	a := New(16)
	assert.Panics(t, func() {
		a.Push(17)
	})
}

func TestResetReclaimsWithoutFreeing(t *testing.T) {
	a := New(64)
	a.Push(40)
	a.Reset()
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 64, a.Cap())
	got := a.Push(64)
	assert.Len(t, got, 64)
}

func TestRestoreAheadOfOffsetPanics(t *testing.T) {
	a := New(64)
	a.Push(8)
	assert.Panics(t, func() {
		a.Restore(32)
	})
}
