// Package embed implements spec.md §4.F: tokenize a string, drive it
// through the transformer forward pass one position at a time, and
// L2-normalize the resulting residual into a fixed-dimension embedding.
// Embedder mirrors the teacher's pkg/embed.Embedder interface
// (Embed/EmbedBatch/Dimensions/Model); this package supplies the single
// in-process LocalEmbedder implementation in place of the teacher's
// HTTP-based Ollama/OpenAI backends.
package embed

import (
	"context"
	"math"

	"vmemo/internal/transformer"
)

const normFloor = 1e-5

// Embedder is the contract every embedding backend implements, matching
// the teacher's pkg/embed.Embedder shape.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// Tokenizer is the narrow view of internal/tokenizer.Vocab this package
// depends on.
type Tokenizer interface {
	Encode(s []byte) []int32
}

// Stepper is the narrow view of internal/transformer.Forward this package
// depends on.
type Stepper interface {
	Step(pos int, tok int32) error
	State() *transformer.RunState
}

// LocalEmbedder drives tokenizer -> transformer in-process; there is no
// network round trip. EmbedBatch loops sequentially since the engine is
// single-threaded by design (spec §5).
type LocalEmbedder struct {
	tok       Tokenizer
	fw        Stepper
	dim       int
	modelName string
}

// New constructs a LocalEmbedder bound to a loaded tokenizer and forward
// pass.
func New(tok Tokenizer, fw Stepper, dim int, modelName string) *LocalEmbedder {
	return &LocalEmbedder{tok: tok, fw: fw, dim: dim, modelName: modelName}
}

// Dimensions returns the model's embedding width D.
func (e *LocalEmbedder) Dimensions() int { return e.dim }

// Model returns the configured model name, for diagnostics.
func (e *LocalEmbedder) Model() string { return e.modelName }

// Embed tokenizes text, runs the forward pass sequentially over every
// position, and L2-normalizes the final residual. A near-zero residual
// (norm below 1e-5) yields the zero vector rather than a division that
// would blow up (spec §4.F).
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ids := e.tok.Encode([]byte(text))

	for pos, tok := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.fw.Step(pos, tok); err != nil {
			return nil, err
		}
	}

	residual := e.fw.State().X
	out := make([]float32, len(residual))
	copy(out, residual)
	normalize(out)
	return out, nil
}

// EmbedBatch runs Embed once per text, in order.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func normalize(v []float32) {
	var ss float64
	for _, x := range v {
		ss += float64(x) * float64(x)
	}
	norm := math.Sqrt(ss)
	if norm < normFloor {
		for i := range v {
			v[i] = 0
		}
		return
	}
	inv := float32(1.0 / norm)
	for i := range v {
		v[i] *= inv
	}
}
