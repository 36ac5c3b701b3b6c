package model

// Offsets records, in float32 elements, where each matmul-eligible weight
// matrix begins inside the blob BuildMatmulBlob produces. These are the
// "base offset into a device-resident weights buffer" spec.md §4.D's
// matmul kernel takes as a push constant.
type Offsets struct {
	Wq, Wk, Wv, Wo, W1, W2, W3 []uint32
	Classifier                 uint32
}

// BuildMatmulBlob concatenates every matrix the matmul kernel touches
// (Wq/Wk/Wv/Wo/W1/W2/W3 per layer, plus the classifier) into one flat
// buffer suitable for a single device upload. RMSNorm weights and the
// token embedding table are left out: both are consumed as elementwise or
// gather operations on the host (spec §4.E), never as matmul operands.
func BuildMatmulBlob(cfg Config, w *Weights) ([]float32, Offsets) {
	l := int(cfg.L)
	d := int(cfg.D)
	h := int(cfg.H)
	dkv := int(cfg.KVDim())

	off := Offsets{
		Wq: make([]uint32, l), Wk: make([]uint32, l), Wv: make([]uint32, l),
		Wo: make([]uint32, l), W1: make([]uint32, l), W2: make([]uint32, l), W3: make([]uint32, l),
	}

	total := l*(d*d*2+dkv*d*2+h*d*2) + len(w.Classifier)
	blob := make([]float32, 0, total)

	appendSlab := func(dst []uint32, idx int, src []float32, stride int) {
		dst[idx] = uint32(len(blob))
		blob = append(blob, src[idx*stride:(idx+1)*stride]...)
	}

	for i := 0; i < l; i++ {
		appendSlab(off.Wq, i, w.Wq, d*d)
		appendSlab(off.Wk, i, w.Wk, d*dkv)
		appendSlab(off.Wv, i, w.Wv, d*dkv)
		appendSlab(off.Wo, i, w.Wo, d*d)
		appendSlab(off.W1, i, w.W1, h*d)
		appendSlab(off.W2, i, w.W2, d*h)
		appendSlab(off.W3, i, w.W3, h*d)
	}

	off.Classifier = uint32(len(blob))
	blob = append(blob, w.Classifier...)

	return blob, off
}
