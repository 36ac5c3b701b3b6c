package model

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmemo/internal/arena"
)

// tinyConfig is small enough to write by hand: D=4, H=8, L=1, Hq=2, Hkv=1,
// V=3, S=4. Dkv = D*Hkv/Hq = 2.
var tinyConfig = Config{D: 4, H: 8, L: 1, Hq: 2, Hkv: 1, V: 3, S: 4}

func writeConfig(t *testing.T, buf *bytes.Buffer, c Config) {
	t.Helper()
	for _, f := range []int32{c.D, c.H, c.L, c.Hq, c.Hkv, c.V, c.S} {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, f))
	}
}

func writeFloats(t *testing.T, buf *bytes.Buffer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, float32(i)))
	}
}

func TestLoadTiedClassifier(t *testing.T) {
	c := tinyConfig
	dkv := c.KVDim()
	var buf bytes.Buffer
	writeConfig(t, &buf, c)
	writeFloats(t, &buf, int(c.V*c.D))
	writeFloats(t, &buf, int(c.L*c.D))
	writeFloats(t, &buf, int(c.L*c.D*c.D))
	writeFloats(t, &buf, int(c.L*c.D*dkv))
	writeFloats(t, &buf, int(c.L*c.D*dkv))
	writeFloats(t, &buf, int(c.L*c.D*c.D))
	writeFloats(t, &buf, int(c.L*c.D))
	writeFloats(t, &buf, int(c.L*c.H*c.D))
	writeFloats(t, &buf, int(c.L*c.D*c.H))
	writeFloats(t, &buf, int(c.L*c.H*c.D))
	writeFloats(t, &buf, int(c.D))
	// no classifier slab: file ends here.

	ar := arena.New(1 << 20)
	gotCfg, w, err := Load(&buf, ar)
	require.NoError(t, err)
	assert.Equal(t, c, gotCfg)
	assert.True(t, w.TiedClassifier)
	assert.Equal(t, w.TokenEmbedding, w.Classifier)
}

func TestLoadUntiedClassifier(t *testing.T) {
	c := tinyConfig
	dkv := c.KVDim()
	var buf bytes.Buffer
	writeConfig(t, &buf, c)
	writeFloats(t, &buf, int(c.V*c.D))
	writeFloats(t, &buf, int(c.L*c.D))
	writeFloats(t, &buf, int(c.L*c.D*c.D))
	writeFloats(t, &buf, int(c.L*c.D*dkv))
	writeFloats(t, &buf, int(c.L*c.D*dkv))
	writeFloats(t, &buf, int(c.L*c.D*c.D))
	writeFloats(t, &buf, int(c.L*c.D))
	writeFloats(t, &buf, int(c.L*c.H*c.D))
	writeFloats(t, &buf, int(c.L*c.D*c.H))
	writeFloats(t, &buf, int(c.L*c.H*c.D))
	writeFloats(t, &buf, int(c.D))
	writeFloats(t, &buf, int(c.V*c.D)) // classifier slab present

	ar := arena.New(1 << 20)
	_, w, err := Load(&buf, ar)
	require.NoError(t, err)
	assert.False(t, w.TiedClassifier)
	assert.NotSame(t, &w.TokenEmbedding[0], &w.Classifier[0])
	assert.Equal(t, float32(0), w.Classifier[0])
}

func TestLoadRejectsBadHeader(t *testing.T) {
	bad := Config{D: 5, H: 8, L: 1, Hq: 2, Hkv: 1, V: 3, S: 4} // D not multiple of Hq
	var buf bytes.Buffer
	writeConfig(t, &buf, bad)
	ar := arena.New(1 << 20)
	_, _, err := Load(&buf, ar)
	require.Error(t, err)
}

func TestLoadRejectsTruncatedSlab(t *testing.T) {
	c := tinyConfig
	var buf bytes.Buffer
	writeConfig(t, &buf, c)
	writeFloats(t, &buf, 1) // far short of V*D floats
	ar := arena.New(1 << 20)
	_, _, err := Load(&buf, ar)
	require.Error(t, err)
}
