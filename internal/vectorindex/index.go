// Package vectorindex implements spec.md §4.G: a flat array of vectors
// keyed by dense, append-ordered 64-bit IDs, with GPU-dispatched top-k
// search and a binary save/load format (spec §6). Grounded on the
// teacher's pkg/gpu/accelerator.go GPUEmbeddingIndex (Add/Search/Save/
// Load shape, CPU-fallback partial sort), generalized to the
// mask-aware, sentinel-padded contract this spec requires.
package vectorindex

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"vmemo/internal/gpu"
	"vmemo/internal/vmemoerr"
)

// Result is one row of a search response. A padding sentinel has
// ID == 0 and Score == -1.0 (spec §4.G, §8).
type Result struct {
	ID    uint64
	Score float32
}

// Similarity is the narrow view of internal/gpu.Orchestrator this
// package depends on.
type Similarity interface {
	Similarity(vectors, query []float32, count, dim uint32, metric gpu.Metric) ([]float32, error)
}

// Index is the flat vector store of spec §3/§4.G.
type Index struct {
	dim      int
	metric   gpu.Metric
	capacity int
	count    int
	ids      []uint64
	vectors  []float32 // count*dim, row-major by id

	gpu Similarity
}

// Create allocates all slabs up front, sized for capacity (spec §4.G).
func Create(dim int, metric gpu.Metric, capacity int, sim Similarity) *Index {
	return &Index{
		dim: dim, metric: metric, capacity: capacity,
		ids: make([]uint64, 0, capacity), vectors: make([]float32, 0, capacity*dim),
		gpu: sim,
	}
}

// VectorAt returns the stored vector for id, for diagnostics (the
// analyze subcommand computes its norm without going through Search).
func (ix *Index) VectorAt(id uint64) ([]float32, bool) {
	if id >= uint64(ix.count) {
		return nil, false
	}
	return ix.vectors[int(id)*ix.dim : (int(id)+1)*ix.dim], true
}

// Dim returns the index's vector dimension.
func (ix *Index) Dim() int { return ix.dim }

// Count returns the number of populated entries.
func (ix *Index) Count() int { return ix.count }

// Add appends v, returning the newly assigned ID, which always equals
// the position at time of insertion (spec §8's ID invariant). Returns
// ErrFull once the index is at capacity.
func (ix *Index) Add(v []float32) (uint64, error) {
	if ix.count >= ix.capacity {
		return 0, vmemoerr.ErrFull
	}
	id := uint64(ix.count)
	ix.ids = append(ix.ids, id)
	ix.vectors = append(ix.vectors, v[:ix.dim]...)
	ix.count++
	return id, nil
}

// Overwrite replaces the vector at id in place. Returns ErrNotFound if id
// is not a populated slot.
func (ix *Index) Overwrite(id uint64, v []float32) error {
	if id >= uint64(ix.count) {
		return vmemoerr.ErrNotFound
	}
	copy(ix.vectors[int(id)*ix.dim:int(id+1)*ix.dim], v[:ix.dim])
	return nil
}

// Search returns the top-k results against q, optionally restricted to
// the records flagged in mask (nil mask means "all records"). Results
// are sorted descending by score; when fewer than k candidates exist or
// the mask selects none, the remainder is padded with (0, -1.0)
// sentinels (spec §4.G, §8).
func (ix *Index) Search(q []float32, k int, mask []bool) ([]Result, error) {
	out := make([]Result, k)
	for i := range out {
		out[i] = Result{ID: 0, Score: -1.0}
	}
	if k == 0 {
		return out, nil
	}

	candIDs := make([]uint64, 0, ix.count)
	candVecs := make([]float32, 0, ix.count*ix.dim)
	for i := 0; i < ix.count; i++ {
		if mask != nil && !mask[i] {
			continue
		}
		candIDs = append(candIDs, ix.ids[i])
		candVecs = append(candVecs, ix.vectors[i*ix.dim:(i+1)*ix.dim]...)
	}
	if len(candIDs) == 0 {
		return out, nil
	}

	scores, err := ix.gpu.Similarity(candVecs, q, uint32(len(candIDs)), uint32(ix.dim), ix.metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vmemoerr.ErrGpuDispatch, err)
	}

	ranked := make([]Result, len(candIDs))
	for i := range candIDs {
		ranked[i] = Result{ID: candIDs[i], Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	n := k
	if n > len(ranked) {
		n = len(ranked)
	}
	copy(out[:n], ranked[:n])
	return out, nil
}

// Save writes the vector index format of spec §6: int32 dim, int32
// count, int32 metric, count×u64 ids, count×dim×float32 vectors.
func (ix *Index) Save(w io.Writer) error {
	fields := []int32{int32(ix.dim), int32(ix.count), int32(ix.metric)}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, ix.ids); err != nil {
		return fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
	}
	if err := binary.Write(w, binary.LittleEndian, ix.vectors); err != nil {
		return fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
	}
	return nil
}

// Load reads the vector index format of spec §6. capacity sets the
// loaded index's append capacity and must be at least the persisted
// count; pass the persisted count itself for a read-only reload.
func Load(r io.Reader, sim Similarity, capacity int) (*Index, error) {
	var dim, count, metric int32
	for _, f := range []*int32{&dim, &count, &metric} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
		}
	}
	if capacity < int(count) {
		capacity = int(count)
	}
	ix := &Index{dim: int(dim), metric: gpu.Metric(metric), capacity: capacity, count: int(count), gpu: sim}
	ix.ids = make([]uint64, count, capacity)
	if err := binary.Read(r, binary.LittleEndian, ix.ids); err != nil {
		return nil, fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
	}
	ix.vectors = make([]float32, int(count)*int(dim), capacity*int(dim))
	if err := binary.Read(r, binary.LittleEndian, ix.vectors); err != nil {
		return nil, fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
	}
	return ix, nil
}
