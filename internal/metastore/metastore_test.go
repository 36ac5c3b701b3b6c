package metastore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmemo/internal/arena"
)

func TestAppendAdvancesCount(t *testing.T) {
	s := New()
	id0 := s.Append("source: user")
	id1 := s.Append("")
	assert.Equal(t, uint64(0), id0)
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, 2, s.Count())
}

// TestFilterEmptyMetadataNeverMatches checks spec §4.I's rule that a
// record with no saved metadata produces a zero bit even under a filter
// that a record with the same key would pass.
func TestFilterEmptyMetadataNeverMatches(t *testing.T) {
	s := New()
	s.Append("source: user")
	s.Append("")
	ar := arena.New(1 << 16)

	mask, err := s.Filter(ar, "source: user")
	require.NoError(t, err)
	require.Len(t, mask, 2)
	assert.True(t, mask[0])
	assert.False(t, mask[1])
}

// TestFilterScenarioSourceUser matches spec §8 scenario 2: three records
// with source in {user, chat, user}; filtering on source: user selects
// exactly records 0 and 2.
func TestFilterScenarioSourceUser(t *testing.T) {
	s := New()
	s.Append("source: user")
	s.Append("source: chat")
	s.Append("source: user")
	ar := arena.New(1 << 16)

	mask, err := s.Filter(ar, "source: user")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, mask)
}

func TestFilterRestoresArenaHighWaterMark(t *testing.T) {
	s := New()
	for i := 0; i < 50; i++ {
		s.Append("source: user, tags: [a, b, c], priority: 7")
	}
	ar := arena.New(1 << 16)
	before := ar.Snapshot()

	_, err := s.Filter(ar, "source: user")
	require.NoError(t, err)

	assert.Equal(t, before, ar.Snapshot())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New()
	s.Append("source: user")
	s.Append("")
	s.Append("tags: [a, b]")

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Count())

	ar := arena.New(1 << 16)
	rec, err := loaded.Record(ar, 0)
	require.NoError(t, err)
	v, ok := rec.Get("source")
	require.True(t, ok)
	assert.Equal(t, "user", v.Str)

	empty, err := loaded.Record(ar, 1)
	require.NoError(t, err)
	assert.Len(t, empty.Fields, 0)
}

func TestRecordUnknownIDReturnsNotFound(t *testing.T) {
	s := New()
	s.Append("source: user")
	ar := arena.New(1 << 16)
	_, err := s.Record(ar, 5)
	require.Error(t, err)
}
