package telemetry

import (
	"context"
	"testing"

	"github.com/go-logr/stdr"
	"github.com/stretchr/testify/require"

	"vmemo/internal/gpu"
)

func TestNewConstructsInstruments(t *testing.T) {
	tel, err := New(stdr.New(nil), true)
	require.NoError(t, err)
	require.NotNil(t, tel)
}

func TestRecordGPUStatsDoesNotPanic(t *testing.T) {
	tel, err := New(stdr.New(nil), false)
	require.NoError(t, err)

	prev := gpu.Stats{}
	cur := gpu.Stats{SearchesGPU: 1, BytesUploaded: 128, KernelExecutions: 2}
	tel.RecordGPUStats(context.Background(), prev, cur)
}

func TestSpanEndsWithoutError(t *testing.T) {
	tel, err := New(stdr.New(nil), true)
	require.NoError(t, err)

	_, end := tel.Span(context.Background(), "save")
	end()
}
