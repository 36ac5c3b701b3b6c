// Package gpu is the compute orchestrator of spec.md §4.D: one logical
// device, one compute queue, two kernels (matrix-vector multiply and
// brute-force similarity), with host-visible mapped I/O and wait-idle
// synchronization after every dispatch. It collapses the teacher's
// four-backend accelerator (pkg/gpu/accelerator.go: Metal/CUDA/OpenCL/
// Vulkan) to the single Vulkan backend spec.md actually specifies, and
// keeps the teacher's CPU-fallback shape (accelerator.go's searchCPU) for
// hosts built without the "vulkan" tag or without a usable device.
package gpu

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"

	"vmemo/internal/gpu/vulkan"
	"vmemo/internal/vmemoerr"
)

// Metric selects the similarity kernel's scoring function. Values match
// the persisted metric selector of spec.md §3/§6.
type Metric int32

const (
	MetricL2     Metric = 0
	MetricCosine Metric = 1
	MetricDot    Metric = 2
)

// Stats mirrors the teacher's AcceleratorStats field names
// (pkg/gpu/accelerator.go), now backed by this orchestrator instead of a
// mutex-guarded struct; internal/telemetry wraps these as otel counters.
type Stats struct {
	SearchesGPU      int64
	SearchesCPU      int64
	BytesUploaded    int64
	BytesDownloaded  int64
	KernelExecutions int64
}

// Orchestrator is the explicit, non-singleton GPU context spec.md §9
// requires in place of the teacher's process-wide accelerator.
type Orchestrator struct {
	log   logr.Logger
	dev   *vulkan.Device
	onGPU bool
	stats Stats

	weights       *vulkan.Buffer // GPU-resident weights buffer
	weightsHost   []float32      // CPU fallback weights
	weightsLength int
}

// New attempts to acquire a Vulkan compute device when preferVulkan is
// set. When preferVulkan is false, Vulkan support was not compiled in
// (no "vulkan" build tag), or no device is present on the host, it
// degrades to a CPU fallback rather than failing startup. The spec's
// "errors are fatal" rule (§4.D) applies to a device that exists but
// fails a call, not to the optional presence of a GPU at all. A genuine
// device-creation failure on a vulkan-tagged build with preferVulkan set
// is fatal and returns a wrapped ErrGpuInit.
func New(log logr.Logger, preferVulkan bool) (*Orchestrator, error) {
	if !preferVulkan {
		log.V(1).Info("vulkan not preferred (prefer_vulkan: false), using host compute")
		return &Orchestrator{log: log}, nil
	}
	if !vulkan.IsAvailable() {
		log.V(1).Info("vulkan unavailable, falling back to host compute")
		return &Orchestrator{log: log}, nil
	}
	dev, err := vulkan.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vmemoerr.ErrGpuInit, err)
	}
	return &Orchestrator{log: log, dev: dev, onGPU: true}, nil
}

// Release tears down the device, if one was acquired.
func (o *Orchestrator) Release() {
	if o.dev != nil {
		o.dev.Release()
	}
}

// OnGPU reports whether this orchestrator is backed by a real device.
func (o *Orchestrator) OnGPU() bool { return o.onGPU }

// Stats returns a snapshot of the orchestrator's counters.
func (o *Orchestrator) Stats() Stats { return o.stats }

// UploadWeights uploads the model's weight slab to the device once, at
// model-load time, matching spec §4.D's "device-resident weights buffer."
// On the CPU fallback, this just retains the slice.
func (o *Orchestrator) UploadWeights(weights []float32) error {
	o.weightsLength = len(weights)
	if !o.onGPU {
		o.weightsHost = weights
		return nil
	}
	buf, err := o.dev.NewBuffer(weights)
	if err != nil {
		return fmt.Errorf("%w: %v", vmemoerr.ErrGpuInit, err)
	}
	o.weights = buf
	o.stats.BytesUploaded += int64(len(weights)) * 4
	return nil
}

// MatMul dispatches the matrix-vector multiply kernel (spec §4.D.1):
// weights laid out row-major d×n starting at weightOffset, input length n,
// output length d.
func (o *Orchestrator) MatMul(weightOffset, n, d uint32, input []float32) ([]float32, error) {
	if o.onGPU {
		out, err := o.dev.MatMul(o.weights, weightOffset, n, d, input)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vmemoerr.ErrGpuDispatch, err)
		}
		o.stats.KernelExecutions++
		o.stats.BytesDownloaded += int64(len(out)) * 4
		return out, nil
	}
	return o.matMulHost(weightOffset, n, d, input), nil
}

func (o *Orchestrator) matMulHost(weightOffset, n, d uint32, input []float32) []float32 {
	out := make([]float32, d)
	w := o.weightsHost[weightOffset:]
	for row := uint32(0); row < d; row++ {
		var sum float32
		base := row * n
		wr := w[base : base+n]
		for i := uint32(0); i < n; i++ {
			sum += wr[i] * input[i]
		}
		out[row] = sum
	}
	o.stats.KernelExecutions++
	return out
}

// Similarity dispatches the brute-force similarity kernel (spec §4.D.2)
// over a packed count×dim vectors region against a single query vector.
// Metric L2 is never GPU-dispatched (see DESIGN.md's Open Question
// resolution): the shader only implements cosine and dot, so L2 always
// runs on the host regardless of backend.
func (o *Orchestrator) Similarity(vectors []float32, query []float32, count, dim uint32, metric Metric) ([]float32, error) {
	if o.onGPU && metric != MetricL2 {
		buf, err := o.dev.NewBuffer(vectors)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vmemoerr.ErrGpuDispatch, err)
		}
		defer buf.Release()
		out, err := o.dev.Similarity(buf, query, count, dim, uint32(metric))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vmemoerr.ErrGpuDispatch, err)
		}
		o.stats.SearchesGPU++
		o.stats.KernelExecutions++
		o.stats.BytesUploaded += int64(len(vectors)) * 4
		o.stats.BytesDownloaded += int64(len(out)) * 4
		return out, nil
	}
	o.stats.SearchesCPU++
	return similarityHost(vectors, query, count, dim, metric), nil
}

func similarityHost(vectors, query []float32, count, dim uint32, metric Metric) []float32 {
	out := make([]float32, count)
	for i := uint32(0); i < count; i++ {
		v := vectors[i*dim : (i+1)*dim]
		switch metric {
		case MetricDot:
			out[i] = dot(v, query)
		case MetricL2:
			out[i] = -l2(v, query)
		default: // MetricCosine
			out[i] = cosine(v, query)
		}
	}
	return out
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func l2(a, b []float32) float32 {
	var s float32
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return float32(math.Sqrt(float64(s)))
}

func cosine(a, b []float32) float32 {
	var dp, na, nb float32
	for i := range a {
		dp += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dp / float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}
