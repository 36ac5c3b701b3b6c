// Package model parses the packed model file described in spec.md §3/§4.C/§6
// into a Config header and weight slabs laid out contiguously in an arena.
package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"vmemo/internal/arena"
	"vmemo/internal/vmemoerr"
)

// Config is the seven-integer model header (spec §3).
type Config struct {
	D   int32 // model dimension
	H   int32 // FFN hidden dimension
	L   int32 // layer count
	Hq  int32 // query head count
	Hkv int32 // key/value head count (<= Hq, grouped-query attention)
	V   int32 // vocabulary size
	S   int32 // maximum sequence length
}

// HeadSize returns Ds = D / Hq.
func (c Config) HeadSize() int32 { return c.D / c.Hq }

// KVDim returns Dkv = D * Hkv / Hq.
func (c Config) KVDim() int32 { return c.D * c.Hkv / c.Hq }

func (c Config) validate() error {
	if c.D <= 0 || c.H <= 0 || c.L <= 0 || c.Hq <= 0 || c.Hkv <= 0 || c.V <= 0 || c.S <= 0 {
		return fmt.Errorf("%w: all config fields must be positive", vmemoerr.ErrInvalidModel)
	}
	if c.D%c.Hq != 0 {
		return fmt.Errorf("%w: D=%d not a multiple of Hq=%d", vmemoerr.ErrInvalidModel, c.D, c.Hq)
	}
	if c.Hq%c.Hkv != 0 {
		return fmt.Errorf("%w: Hq=%d not a multiple of Hkv=%d", vmemoerr.ErrInvalidModel, c.Hq, c.Hkv)
	}
	return nil
}

// Weights holds every weight slab, arena-backed, in the exact order and
// shape spec.md §3 mandates. TiedClassifier is true when the file omitted
// a standalone classifier slab, in which case Classifier aliases
// TokenEmbedding.
type Weights struct {
	TokenEmbedding []float32 // V*D
	AttnRMSNorm    []float32 // L*D
	Wq             []float32 // L*D*D
	Wk             []float32 // L*D*Dkv
	Wv             []float32 // L*D*Dkv
	Wo             []float32 // L*D*D
	FFNRMSNorm     []float32 // L*D
	W1             []float32 // L*H*D
	W2             []float32 // L*D*H
	W3             []float32 // L*H*D
	FinalRMSNorm   []float32 // D
	Classifier     []float32 // V*D, aliases TokenEmbedding when tied
	TiedClassifier bool
}

// Load reads a Config header then the weight slabs in §3's order from r,
// allocating each slab in ar. After the last required slab, the number of
// bytes remaining in r decides whether a standalone classifier slab is
// present (exactly V*D*4 bytes) or the weights are tied to the token
// embedding table.
func Load(r io.Reader, ar *arena.Arena) (Config, *Weights, error) {
	var cfg Config
	for _, field := range []*int32{&cfg.D, &cfg.H, &cfg.L, &cfg.Hq, &cfg.Hkv, &cfg.V, &cfg.S} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return Config{}, nil, fmt.Errorf("%w: reading config header: %v", vmemoerr.ErrInvalidModel, err)
		}
	}
	if err := cfg.validate(); err != nil {
		return Config{}, nil, err
	}

	dkv := cfg.KVDim()
	w := &Weights{}

	readSlab := func(n int32, dst *[]float32, name string) error {
		buf := ar.PushFloat32(int(n))
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return fmt.Errorf("%w: reading %s slab: %v", vmemoerr.ErrInvalidModel, name, err)
		}
		*dst = buf
		return nil
	}

	type slab struct {
		n    int32
		dst  *[]float32
		name string
	}
	slabs := []slab{
		{cfg.V * cfg.D, &w.TokenEmbedding, "token_embedding"},
		{cfg.L * cfg.D, &w.AttnRMSNorm, "attn_rmsnorm"},
		{cfg.L * cfg.D * cfg.D, &w.Wq, "wq"},
		{cfg.L * cfg.D * dkv, &w.Wk, "wk"},
		{cfg.L * cfg.D * dkv, &w.Wv, "wv"},
		{cfg.L * cfg.D * cfg.D, &w.Wo, "wo"},
		{cfg.L * cfg.D, &w.FFNRMSNorm, "ffn_rmsnorm"},
		{cfg.L * cfg.H * cfg.D, &w.W1, "w1"},
		{cfg.L * cfg.D * cfg.H, &w.W2, "w2"},
		{cfg.L * cfg.H * cfg.D, &w.W3, "w3"},
		{cfg.D, &w.FinalRMSNorm, "final_rmsnorm"},
	}
	for _, s := range slabs {
		if err := readSlab(s.n, s.dst, s.name); err != nil {
			return Config{}, nil, err
		}
	}

	classifierBytes := make([]byte, int(cfg.V*cfg.D)*4)
	n, err := io.ReadFull(r, classifierBytes)
	switch {
	case n == 0 && (err == io.EOF || err == nil):
		w.Classifier = w.TokenEmbedding
		w.TiedClassifier = true
	case err == io.ErrUnexpectedEOF || err == io.EOF:
		return Config{}, nil, fmt.Errorf("%w: truncated classifier slab", vmemoerr.ErrInvalidModel)
	case err != nil:
		return Config{}, nil, fmt.Errorf("%w: reading classifier slab: %v", vmemoerr.ErrInvalidModel, err)
	default:
		classifierBuf := ar.PushFloat32(int(cfg.V * cfg.D))
		if err := binary.Read(bytes.NewReader(classifierBytes), binary.LittleEndian, classifierBuf); err != nil {
			return Config{}, nil, fmt.Errorf("%w: decoding classifier slab: %v", vmemoerr.ErrInvalidModel, err)
		}
		w.Classifier = classifierBuf
	}

	return cfg, w, nil
}
