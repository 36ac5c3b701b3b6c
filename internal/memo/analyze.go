package memo

import (
	"math"

	"vmemo/internal/filter"
)

// AnalyzeField names one parsed metadata field and the ValueKind it was
// parsed as, for the analyze subcommand's read-only report.
type AnalyzeField struct {
	Key  string
	Kind filter.ValueKind
}

// AnalyzeRecord is one row of the analyze subcommand's report (spec.md
// §3 supplement: this is not part of the distilled spec, it prints
// existing state for a human and adds no new index structure).
type AnalyzeRecord struct {
	ID         uint64
	GPUBackend string
	VectorNorm float32
	TokenCount int
	MetaFields []AnalyzeField
}

// Analyze returns one AnalyzeRecord per saved memory, exercising
// internal/metastore's parser outside the filter path and surfacing the
// GPU orchestrator's backend choice to a human (spec.md §3 supplement).
func (db *DB) Analyze() ([]AnalyzeRecord, error) {
	backend := "cpu"
	if db.gpu.OnGPU() {
		backend = "vulkan"
	}

	snapshot := db.ar.Snapshot()
	defer db.ar.Restore(snapshot)

	out := make([]AnalyzeRecord, 0, db.index.Count())
	for id := uint64(0); id < uint64(db.index.Count()); id++ {
		rec := AnalyzeRecord{ID: id, GPUBackend: backend}

		if v, ok := db.index.VectorAt(id); ok {
			rec.VectorNorm = l2norm(v)
		}
		if text, ok := db.texts.Get(id); ok {
			rec.TokenCount = len(db.tok.Encode([]byte(text)))
		}
		if raw, ok := db.meta.RawAt(id); ok && raw != "" {
			parsed, err := db.meta.Record(db.ar, id)
			if err == nil {
				for _, f := range parsed.Fields {
					rec.MetaFields = append(rec.MetaFields, AnalyzeField{Key: f.Key, Kind: f.Value.Kind})
				}
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func l2norm(v []float32) float32 {
	var ss float64
	for _, x := range v {
		ss += float64(x) * float64(x)
	}
	return float32(math.Sqrt(ss))
}
