package transformer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMatMul implements MatMul as a plain row-major matrix-vector product
// against an in-memory weights blob, matching the host fallback in
// internal/gpu but without depending on that package (keeps this a pure
// unit test of the forward pass math).
type fakeMatMul struct {
	blob []float32
}

func (f *fakeMatMul) MatMul(weightOffset, n, d uint32, input []float32) ([]float32, error) {
	out := make([]float32, d)
	w := f.blob[weightOffset:]
	for row := uint32(0); row < d; row++ {
		var sum float32
		base := row * n
		for i := uint32(0); i < n; i++ {
			sum += w[base+i] * input[i]
		}
		out[row] = sum
	}
	return out, nil
}

func TestRMSNormIdempotenceLaw(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	unitWeight := []float32{1, 1, 1, 1}
	normed := make([]float32, len(x))
	rmsnorm(normed, x, unitWeight)

	again := make([]float32, len(x))
	rmsnorm(again, normed, unitWeight)

	for i := range normed {
		assert.InDelta(t, normed[i], again[i], 1e-5)
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	x := []float32{1, 2, 3}
	softmax(x)
	var sum float32
	for _, v := range x {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestApplyRoPEPreservesPairNorm(t *testing.T) {
	vec := []float32{3, 4, 1, 0}
	before0 := vec[0]*vec[0] + vec[1]*vec[1]
	applyRoPE(vec, 2, 5)
	after0 := vec[0]*vec[0] + vec[1]*vec[1]
	assert.InDelta(t, before0, after0, 1e-4)
}

func TestStepProducesLogitsAndAdvancesCache(t *testing.T) {
	cfg := Config{D: 4, H: 4, L: 1, Hq: 2, Hkv: 1, V: 3, S: 4}
	dkv := cfg.kvDim()

	identity := func(rows, cols int) []float32 {
		m := make([]float32, rows*cols)
		for i := 0; i < rows && i < cols; i++ {
			m[i*cols+i] = 1
		}
		return m
	}

	var blob []float32
	var off Offsets
	appendMat := func(dst *[]uint32, m []float32) {
		*dst = append(*dst, uint32(len(blob)))
		blob = append(blob, m...)
	}
	appendMat(&off.Wq, identity(cfg.D, cfg.D))
	appendMat(&off.Wk, identity(dkv, cfg.D))
	appendMat(&off.Wv, identity(dkv, cfg.D))
	appendMat(&off.Wo, identity(cfg.D, cfg.D))
	appendMat(&off.W1, identity(cfg.H, cfg.D))
	appendMat(&off.W2, identity(cfg.D, cfg.H))
	appendMat(&off.W3, identity(cfg.H, cfg.D))
	off.Classifier = uint32(len(blob))
	blob = append(blob, identity(cfg.V, cfg.D)...)

	tokenEmbed := make([]float32, cfg.V*cfg.D)
	for i := range tokenEmbed {
		tokenEmbed[i] = 0.1
	}
	attnRMS := make([]float32, cfg.L*cfg.D)
	ffnRMS := make([]float32, cfg.L*cfg.D)
	finalRMS := make([]float32, cfg.D)
	for i := range attnRMS {
		attnRMS[i] = 1
	}
	for i := range ffnRMS {
		ffnRMS[i] = 1
	}
	for i := range finalRMS {
		finalRMS[i] = 1
	}

	fw := New(cfg, tokenEmbed, attnRMS, ffnRMS, finalRMS, off, &fakeMatMul{blob: blob})

	require.NoError(t, fw.Step(0, 1))
	require.Len(t, fw.State().Logits, cfg.V)
	require.NoError(t, fw.Step(1, 2))
	assert.NotEqual(t, make([]float32, dkv), fw.State().KeyCache[dkv:2*dkv])
}
