// Package memo is the orchestration context spec.md §9 calls for in place
// of the source's global mutable state: a single DB struct owns the
// arena, the GPU orchestrator, the loaded model/tokenizer, and the three
// parallel stores (vector index, text, metadata), and exposes the three
// user-facing operations (Save, Overwrite, Recall) as methods on it. No
// process-wide singletons.
package memo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/logr"

	"vmemo/internal/arena"
	"vmemo/internal/embed"
	"vmemo/internal/gpu"
	"vmemo/internal/metastore"
	"vmemo/internal/model"
	"vmemo/internal/textstore"
	"vmemo/internal/tokenizer"
	"vmemo/internal/transformer"
	"vmemo/internal/vectorindex"
	"vmemo/internal/vmemoerr"
)

// maxK is the top-N cap the -k flag is subject to (spec §6).
const maxK = 100

// Result is one recalled row: the dense ID, its similarity score, the
// stored body, and its raw flow-style metadata string (empty if none was
// saved). Sentinel marks a padding row past the real candidate count
// (spec §4.G, §8); callers must check it instead of thresholding on
// Score, since a genuine cosine/dot score can itself be negative.
type Result struct {
	ID       uint64
	Score    float32
	Text     string
	Metadata string
	Sentinel bool
}

// DB is the explicit, non-singleton context owning every stateful
// component the core needs.
type DB struct {
	log   logr.Logger
	ar    *arena.Arena
	gpu   *gpu.Orchestrator
	tok   embed.Tokenizer
	embed embed.Embedder
	index *vectorindex.Index
	texts *textstore.Store
	meta  *metastore.Store
}

// New wires already-constructed components into a DB. Production callers
// use Open; tests construct a DB directly with fakes.
func New(ar *arena.Arena, gpuOrch *gpu.Orchestrator, tok embed.Tokenizer, embedder embed.Embedder, index *vectorindex.Index, texts *textstore.Store, meta *metastore.Store, log logr.Logger) *DB {
	return &DB{log: log, ar: ar, gpu: gpuOrch, tok: tok, embed: embedder, index: index, texts: texts, meta: meta}
}

// Open loads the model and tokenizer from modelPath/tokenizerPath, builds
// a GPU orchestrator, and loads the three sidecars sharing base (spec
// §4.J: "all are optional to exist at load time"; a missing sidecar
// degrades to an empty store rather than failing startup).
func Open(log logr.Logger, modelPath, tokenizerPath, base string, arenaSize int, preferVulkan bool) (*DB, error) {
	ar := arena.New(arenaSize)

	modelBytes, closeModel, err := model.OpenFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vmemoerr.ErrInvalidModel, err)
	}
	defer closeModel()
	cfg, weights, err := model.Load(bytes.NewReader(modelBytes), ar)
	if err != nil {
		return nil, err
	}

	tokBytes, closeTok, err := model.OpenFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vmemoerr.ErrInvalidTokenizer, err)
	}
	defer closeTok()
	vocab, err := tokenizer.Load(bytes.NewReader(tokBytes))
	if err != nil {
		return nil, err
	}

	log.V(1).Info("cpu features", "summary", model.CPUFeatureSummary())

	gpuOrch, err := gpu.New(log, preferVulkan)
	if err != nil {
		return nil, err
	}

	blob, offsets := model.BuildMatmulBlob(cfg, weights)
	if err := gpuOrch.UploadWeights(blob); err != nil {
		gpuOrch.Release()
		return nil, err
	}

	fwCfg := transformer.Config{
		D: int(cfg.D), H: int(cfg.H), L: int(cfg.L),
		Hq: int(cfg.Hq), Hkv: int(cfg.Hkv), V: int(cfg.V), S: int(cfg.S),
	}
	fwOffsets := transformer.Offsets(offsets)
	fw := transformer.New(fwCfg, weights.TokenEmbedding, weights.AttnRMSNorm, weights.FFNRMSNorm, weights.FinalRMSNorm, fwOffsets, gpuOrch)
	embedder := embed.New(vocab, fw, int(cfg.D), modelPath)

	index, err := loadOrCreateIndex(base+".memo", int(cfg.D), gpuOrch)
	if err != nil {
		return nil, err
	}
	texts, err := loadOrCreateTexts(base + ".txt")
	if err != nil {
		return nil, err
	}
	meta, err := loadOrCreateMeta(base + ".meta")
	if err != nil {
		return nil, err
	}

	return New(ar, gpuOrch, vocab, embedder, index, texts, meta, log), nil
}

func loadOrCreateIndex(path string, dim int, sim vectorindex.Similarity) (*vectorindex.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return vectorindex.Create(dim, gpu.MetricCosine, 1<<16, sim), nil
		}
		return vectorindex.Create(dim, gpu.MetricCosine, 1<<16, sim), nil // IoError on load is non-fatal (spec §7)
	}
	defer f.Close()
	ix, err := vectorindex.Load(f, sim, 1<<16)
	if err != nil {
		return vectorindex.Create(dim, gpu.MetricCosine, 1<<16, sim), nil
	}
	return ix, nil
}

func loadOrCreateTexts(path string) (*textstore.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return textstore.New(), nil
	}
	defer f.Close()
	s, err := textstore.Load(f)
	if err != nil {
		return textstore.New(), nil
	}
	return s, nil
}

func loadOrCreateMeta(path string) (*metastore.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return metastore.New(), nil
	}
	defer f.Close()
	s, err := metastore.Load(f)
	if err != nil {
		return metastore.New(), nil
	}
	return s, nil
}

// Persist writes the three sidecars sharing base. An IoError here is
// fatal to the operation (spec §7: "IoError on save... reported and
// fails the operation"), unlike the non-fatal load path.
func (db *DB) Persist(base string) error {
	if err := writeSidecar(base+".memo", db.index.Save); err != nil {
		return err
	}
	if err := writeSidecar(base+".txt", db.texts.Save); err != nil {
		return err
	}
	if err := writeSidecar(base+".meta", db.meta.Save); err != nil {
		return err
	}
	return nil
}

func writeSidecar(path string, save func(w *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
	}
	defer f.Close()
	if err := save(f); err != nil {
		return err
	}
	return nil
}

// GPUStats returns a snapshot of the GPU orchestrator's cumulative
// counters, for telemetry to diff across an operation.
func (db *DB) GPUStats() gpu.Stats { return db.gpu.Stats() }

// Close releases the GPU device and the arena.
func (db *DB) Close() {
	db.gpu.Release()
	db.ar.Free()
}

// Save embeds text, renders meta into the flow-style metadata line (spec
// §1.3), and appends all three stores in lockstep, returning the newly
// assigned dense ID.
func (db *DB) Save(text string, meta map[string]any) (uint64, error) {
	v, err := db.embed.Embed(context.Background(), text)
	if err != nil {
		return 0, err
	}
	id, err := db.index.Add(v)
	if err != nil {
		return 0, err
	}
	db.texts.Append(text)
	db.meta.Append(RenderMetadata(meta))
	return id, nil
}

// Overwrite replaces the body and embedding at id in place; the record
// count and every other record's ID are unchanged (spec §8 scenario 6).
// Existing metadata at id is left untouched.
func (db *DB) Overwrite(id uint64, text string) error {
	v, err := db.embed.Embed(context.Background(), text)
	if err != nil {
		return err
	}
	if err := db.index.Overwrite(id, v); err != nil {
		return err
	}
	return db.texts.Set(id, text)
}

// Recall embeds query, computes a metadata pre-filter bitmask (or an
// all-true mask when filterExpr is empty), and returns the top-k rows by
// similarity score, joined against text and metadata.
func (db *DB) Recall(query string, k int, filterExpr string) ([]Result, error) {
	if k > maxK {
		k = maxK
	}
	if k < 0 {
		k = 0
	}

	v, err := db.embed.Embed(context.Background(), query)
	if err != nil {
		return nil, err
	}

	mask, err := db.maskFor(filterExpr)
	if err != nil {
		return nil, err
	}

	hits, err := db.index.Search(v, k, mask)
	if err != nil {
		return nil, err
	}

	candidates := 0
	for _, on := range mask {
		if on {
			candidates++
		}
	}
	real := k
	if candidates < real {
		real = candidates
	}

	out := make([]Result, len(hits))
	for i, h := range hits {
		r := Result{ID: h.ID, Score: h.Score, Sentinel: i >= real}
		if !r.Sentinel {
			if text, ok := db.texts.Get(h.ID); ok {
				r.Text = text
			}
			if raw, ok := db.meta.RawAt(h.ID); ok {
				r.Metadata = raw
			}
		}
		out[i] = r
	}
	return out, nil
}

// maskFor computes the pre-filter bitmask. A malformed filterExpr yields
// an all-false mask rather than an error (spec §7: "FilterParse returns
// a failure that yields an empty candidate set rather than crashing").
func (db *DB) maskFor(filterExpr string) ([]bool, error) {
	if filterExpr == "" {
		mask := make([]bool, db.index.Count())
		for i := range mask {
			mask[i] = true
		}
		return mask, nil
	}
	mask, err := db.meta.Filter(db.ar, filterExpr)
	if err != nil {
		if errors.Is(err, vmemoerr.ErrFilterParse) {
			return make([]bool, db.index.Count()), nil
		}
		return nil, err
	}
	return mask, nil
}
