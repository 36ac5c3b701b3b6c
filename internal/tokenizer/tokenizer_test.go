package tokenizer

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildVocab writes a tokenizer file with the single-byte alphabet 'a','b',
// 'c' plus a merged token "ab" scored higher than any single byte, so the
// merge loop has something to do.
func buildVocab(t *testing.T) *Vocab {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, int32(8)))

	writeTok := func(score float32, s string) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, score))
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, int32(len(s))))
		buf.WriteString(s)
	}
	writeTok(0.0, "a")
	writeTok(0.0, "b")
	writeTok(0.0, "c")
	writeTok(10.0, "ab")

	v, err := Load(&buf)
	require.NoError(t, err)
	return v
}

func TestEncodeMergesHighestScoringPair(t *testing.T) {
	v := buildVocab(t)
	ids := v.Encode([]byte("abc"))
	require.Len(t, ids, 2)
	assert.Equal(t, []byte("ab"), v.Decode(ids[0]))
	assert.Equal(t, []byte("c"), v.Decode(ids[1]))
}

func TestEncodeNoRepresentableByteYieldsEmpty(t *testing.T) {
	v := buildVocab(t)
	ids := v.Encode([]byte{0xFF})
	assert.Len(t, ids, 0)
}

func TestEncodeDiscardsUnknownBytes(t *testing.T) {
	v := buildVocab(t)
	ids := v.Encode([]byte("axc"))
	// 'x' has no one-byte entry and is discarded during seeding.
	require.Len(t, ids, 2)
	assert.Equal(t, []byte("a"), v.Decode(ids[0]))
	assert.Equal(t, []byte("c"), v.Decode(ids[1]))
}

func TestLookupBinarySearch(t *testing.T) {
	v := buildVocab(t)
	id, found := v.Lookup([]byte("ab"))
	require.True(t, found)
	assert.Equal(t, []byte("ab"), v.Decode(id))

	_, found = v.Lookup([]byte("zz"))
	assert.False(t, found)
}
