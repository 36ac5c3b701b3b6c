package textstore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmemo/internal/vmemoerr"
)

func TestAppendAssignsPosition(t *testing.T) {
	s := New()
	id0 := s.Append("first")
	id1 := s.Append("second")
	assert.Equal(t, uint64(0), id0)
	assert.Equal(t, uint64(1), id1)
}

func TestSetReplacesBodyKeepsCount(t *testing.T) {
	s := New()
	s.Append("old")
	require.NoError(t, s.Set(0, "new"))
	got, ok := s.Get(0)
	require.True(t, ok)
	assert.Equal(t, "new", got)
	assert.Equal(t, 1, s.Count())
}

func TestSetUnknownIDReturnsNotFound(t *testing.T) {
	s := New()
	err := s.Set(3, "x")
	assert.ErrorIs(t, err, vmemoerr.ErrNotFound)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New()
	s.Append("hello world")
	s.Append("")
	s.Append("unicode: éè")

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, s.lines, loaded.lines)
}
