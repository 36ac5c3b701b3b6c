// Package transformer implements the per-token forward pass of spec.md
// §4.E: RMSNorm, QKV projection, rotary positional embeddings, grouped-
// query attention with a KV cache, SwiGLU feed-forward, residual
// connections, and a final classifier projection. Every matmul is
// dispatched to internal/gpu; everything else stays on the host, per the
// rationale spec §4.E states directly (synchronization cost exceeds
// compute time for elementwise ops at sequence width 1).
package transformer

import "math"

const epsilon = 1e-5

// RunState holds the per-token scratch buffers of spec §3: the residual
// stream, branch buffers, FFN buffers, projections, attention scores, the
// classifier logits, and the KV cache.
type RunState struct {
	X, Xb, Xb2   []float32 // [D]
	Hb, Hb2      []float32 // [H]
	Q            []float32 // [D]
	K, V         []float32 // [Dkv]
	Att          []float32 // [Hq*S]
	Logits       []float32 // [V]
	KeyCache     []float32 // [L*S*Dkv]
	ValueCache   []float32 // [L*S*Dkv]
}

// NewRunState allocates scratch buffers sized for cfg.
func NewRunState(d, h, dkv, hq, s, v, l int) *RunState {
	return &RunState{
		X: make([]float32, d), Xb: make([]float32, d), Xb2: make([]float32, d),
		Hb: make([]float32, h), Hb2: make([]float32, h),
		Q: make([]float32, d), K: make([]float32, dkv), V: make([]float32, dkv),
		Att:        make([]float32, hq*s),
		Logits:     make([]float32, v),
		KeyCache:   make([]float32, l*s*dkv),
		ValueCache: make([]float32, l*s*dkv),
	}
}

// MatMul is the shape internal/gpu.Orchestrator's MatMul presents; the
// forward pass depends on this narrow interface rather than the concrete
// type so tests can substitute a fake device.
type MatMul interface {
	MatMul(weightOffset, n, d uint32, input []float32) ([]float32, error)
}

// Offsets is the narrow view of model.Offsets the forward pass needs: the
// base offset, in floats, of each layer's matmul-eligible weight matrix.
type Offsets struct {
	Wq, Wk, Wv, Wo, W1, W2, W3 []uint32
	Classifier                 uint32
}

// Config is the narrow view of model.Config the forward pass needs.
type Config struct {
	D, H, L, Hq, Hkv, V, S int
}

func (c Config) headSize() int { return c.D / c.Hq }
func (c Config) kvDim() int    { return c.D * c.Hkv / c.Hq }

// Forward drives the per-token inference loop over a loaded model's
// weights, via a GPU (or host-fallback) matmul device.
type Forward struct {
	cfg          Config
	tokenEmbed   []float32 // V*D
	attnRMSNorm  []float32 // L*D
	ffnRMSNorm   []float32 // L*D
	finalRMSNorm []float32 // D
	offsets      Offsets
	mm           MatMul
	state        *RunState
}

// New constructs a Forward pass bound to a loaded model's element-wise
// weights, offsets into the device-resident matmul blob, and a matmul
// device.
func New(cfg Config, tokenEmbed, attnRMSNorm, ffnRMSNorm, finalRMSNorm []float32, offsets Offsets, mm MatMul) *Forward {
	return &Forward{
		cfg: cfg, tokenEmbed: tokenEmbed, attnRMSNorm: attnRMSNorm,
		ffnRMSNorm: ffnRMSNorm, finalRMSNorm: finalRMSNorm, offsets: offsets, mm: mm,
		state: NewRunState(cfg.D, cfg.H, cfg.kvDim(), cfg.Hq, cfg.S, cfg.V, cfg.L),
	}
}

// State exposes the scratch buffers for the embedder to read the
// post-final-RMSNorm residual from after the last position.
func (f *Forward) State() *RunState { return f.state }

// Step runs one position of the forward pass, mutating the KV cache and
// the residual stream in place.
func (f *Forward) Step(pos int, tok int32) error {
	c := f.cfg
	s := f.state
	d, dkv, hs := c.D, c.kvDim(), c.headSize()
	kvMul := c.Hq / c.Hkv

	copy(s.X, f.tokenEmbed[int(tok)*d:int(tok)*d+d])

	for l := 0; l < c.L; l++ {
		rmsnorm(s.Xb, s.X, f.attnRMSNorm[l*d:(l+1)*d])

		q, err := f.mm.MatMul(f.offsets.Wq[l], uint32(d), uint32(d), s.Xb)
		if err != nil {
			return err
		}
		k, err := f.mm.MatMul(f.offsets.Wk[l], uint32(d), uint32(dkv), s.Xb)
		if err != nil {
			return err
		}
		v, err := f.mm.MatMul(f.offsets.Wv[l], uint32(d), uint32(dkv), s.Xb)
		if err != nil {
			return err
		}
		copy(s.Q, q)
		copy(s.K, k)
		copy(s.V, v)

		applyRoPE(s.Q, hs, pos)
		applyRoPE(s.K, hs, pos)

		kvBase := l*c.S*dkv + pos*dkv
		copy(s.KeyCache[kvBase:kvBase+dkv], s.K)
		copy(s.ValueCache[kvBase:kvBase+dkv], s.V)

		attention(s, c, l, pos, hs, dkv, kvMul)

		xb2, err := f.mm.MatMul(f.offsets.Wo[l], uint32(d), uint32(d), s.Xb)
		if err != nil {
			return err
		}
		for i := range s.X {
			s.X[i] += xb2[i]
		}

		rmsnorm(s.Xb, s.X, f.ffnRMSNorm[l*d:(l+1)*d])

		hb, err := f.mm.MatMul(f.offsets.W1[l], uint32(d), uint32(c.H), s.Xb)
		if err != nil {
			return err
		}
		hb2, err := f.mm.MatMul(f.offsets.W3[l], uint32(d), uint32(c.H), s.Xb)
		if err != nil {
			return err
		}
		for i := range hb {
			hb[i] = silu(hb[i]) * hb2[i]
		}

		xb, err := f.mm.MatMul(f.offsets.W2[l], uint32(c.H), uint32(d), hb)
		if err != nil {
			return err
		}
		for i := range s.X {
			s.X[i] += xb[i]
		}
	}

	rmsnorm(s.X, s.X, f.finalRMSNorm)

	logits, err := f.mm.MatMul(f.offsets.Classifier, uint32(d), uint32(c.V), s.X)
	if err != nil {
		return err
	}
	copy(s.Logits, logits)
	return nil
}

func attention(s *RunState, c Config, l, pos, hs, dkv, kvMul int) {
	scale := float32(1.0 / math.Sqrt(float64(hs)))
	for h := 0; h < c.Hq; h++ {
		qh := s.Q[h*hs : (h+1)*hs]
		attRow := s.Att[h*c.S : h*c.S+pos+1]

		for t := 0; t <= pos; t++ {
			kvHead := h / kvMul
			kBase := l*c.S*dkv + t*dkv + kvHead*hs
			key := s.KeyCache[kBase : kBase+hs]
			var score float32
			for i := range qh {
				score += qh[i] * key[i]
			}
			attRow[t] = score * scale
		}

		softmax(attRow)

		out := s.Xb[h*hs : (h+1)*hs]
		for i := range out {
			out[i] = 0
		}
		for t := 0; t <= pos; t++ {
			kvHead := h / kvMul
			vBase := l*c.S*dkv + t*dkv + kvHead*hs
			val := s.ValueCache[vBase : vBase+hs]
			weight := attRow[t]
			for i := range out {
				out[i] += weight * val[i]
			}
		}
	}
}

// rmsnorm computes y = w · x / sqrt(mean(x^2) + eps) into dst. dst and x
// may alias (used for the final in-place normalization, spec §4.E.3).
func rmsnorm(dst, x, w []float32) {
	var ss float32
	for _, v := range x {
		ss += v * v
	}
	ss = ss/float32(len(x)) + epsilon
	scale := float32(1.0 / math.Sqrt(float64(ss)))
	for i := range x {
		dst[i] = w[i] * x[i] * scale
	}
}

// applyRoPE rotates every pair (2i, 2i+1) within each headSize-wide head
// of vec by an angle pos*theta, theta = 10000^(-(2i mod headSize)/headSize),
// i.e. the exponent uses the pair's first element index (spec §4.E).
func applyRoPE(vec []float32, headSize, pos int) {
	for base := 0; base+1 < len(vec); base += 2 {
		i := base % headSize
		freq := 1.0 / math.Pow(10000, float64(i)/float64(headSize))
		angle := float64(pos) * freq
		cosA, sinA := float32(math.Cos(angle)), float32(math.Sin(angle))
		v0, v1 := vec[base], vec[base+1]
		vec[base] = v0*cosA - v1*sinA
		vec[base+1] = v0*sinA + v1*cosA
	}
}

// softmax applies max-subtraction softmax in place.
func softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i, v := range x {
		e := float32(math.Exp(float64(v - max)))
		x[i] = e
		sum += e
	}
	for i := range x {
		x[i] /= sum
	}
}

func silu(u float32) float32 {
	return u / (1 + float32(math.Exp(float64(-u))))
}
