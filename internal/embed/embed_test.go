package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmemo/internal/transformer"
)

type fakeTokenizer struct{}

func (fakeTokenizer) Encode(s []byte) []int32 {
	ids := make([]int32, len(s))
	for i := range s {
		ids[i] = int32(i)
	}
	return ids
}

type fakeStepper struct {
	state *transformer.RunState
	steps int
}

func newFakeStepper(dim int) *fakeStepper {
	st := &transformer.RunState{X: make([]float32, dim)}
	return &fakeStepper{state: st}
}

func (f *fakeStepper) Step(pos int, tok int32) error {
	f.steps++
	for i := range f.state.X {
		f.state.X[i] = float32(pos+1) * float32(i+1)
	}
	return nil
}

func (f *fakeStepper) State() *transformer.RunState { return f.state }

func TestEmbedL2NormalizationLaw(t *testing.T) {
	stepper := newFakeStepper(4)
	e := New(fakeTokenizer{}, stepper, 4, "test-model")

	out, err := e.Embed(context.Background(), "hi")
	require.NoError(t, err)

	var ss float64
	for _, v := range out {
		ss += float64(v) * float64(v)
	}
	norm := math.Sqrt(ss)
	assert.GreaterOrEqual(t, norm, 1-1e-4)
	assert.LessOrEqual(t, norm, 1+1e-4)
}

func TestEmbedZeroResidualYieldsZeroVector(t *testing.T) {
	e := New(fakeTokenizer{}, &zeroStepper{dim: 4}, 4, "test-model")

	out, err := e.Embed(context.Background(), "hi")
	require.NoError(t, err)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

type zeroStepper struct {
	dim int
}

func (z *zeroStepper) Step(pos int, tok int32) error { return nil }
func (z *zeroStepper) State() *transformer.RunState  { return &transformer.RunState{X: make([]float32, z.dim)} }

func TestEmbedBatchReturnsOneVectorPerText(t *testing.T) {
	stepper := newFakeStepper(4)
	e := New(fakeTokenizer{}, stepper, 4, "test-model")

	out, err := e.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Len(t, out, 2)
}
