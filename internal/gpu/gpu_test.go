package gpu

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(logr.Discard(), true)
	require.NoError(t, err)
	assert.False(t, o.OnGPU(), "no vulkan build tag: orchestrator must fall back to host compute")
	return o
}

func TestMatMulHostFallback(t *testing.T) {
	o := newTestOrchestrator(t)
	// d=2, n=3, weights row-major: row0=[1,0,0], row1=[0,1,1]
	weights := []float32{1, 0, 0, 0, 1, 1}
	require.NoError(t, o.UploadWeights(weights))

	out, err := o.MatMul(0, 3, 2, []float32{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 7}, out)
}

func TestSimilarityHostCosine(t *testing.T) {
	o := newTestOrchestrator(t)
	vectors := []float32{1, 0, 0, 1, 1, 1}
	query := []float32{1, 0}
	scores, err := o.Similarity(vectors, query, 3, 2, MetricCosine)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.InDelta(t, 1.0, scores[0], 1e-6)
	assert.InDelta(t, 0.0, scores[1], 1e-6)
	assert.Greater(t, scores[0], scores[2])
	assert.Equal(t, int64(1), o.Stats().SearchesCPU)
}

func TestSimilarityDotMetric(t *testing.T) {
	o := newTestOrchestrator(t)
	vectors := []float32{1, 2, 3, 4}
	query := []float32{1, 1}
	scores, err := o.Similarity(vectors, query, 2, 2, MetricDot)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 7}, scores)
}
