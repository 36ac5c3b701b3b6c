//go:build vulkan

// Package vulkan, in this build, binds the platform Vulkan loader via
// ebitengine/purego, with no cgo and no Vulkan SDK build dependency, and
// provides the device, buffer and wait entry points for the two compute
// kernels spec.md §4.D and §6 define (matrix-vector multiply, brute-force
// similarity). vkCreateShaderModule is bound, but nothing in this package
// takes shader bytecode or creates a shader module or compute pipeline, so
// MatMul and Similarity run no kernel (see their doc comments).
package vulkan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	ErrVulkanNotAvailable = errors.New("vulkan: loader could not be opened")
	ErrDeviceCreation     = errors.New("vulkan: failed to create device")
	ErrBufferCreation     = errors.New("vulkan: failed to create buffer")
	ErrKernelExecution    = errors.New("vulkan: kernel execution failed")
	ErrInvalidBuffer      = errors.New("vulkan: invalid buffer")
)

const (
	workgroupSize = 256

	vkSuccess            = 0
	vkStructInstanceCI   = 1
	vkStructDeviceCI     = 3
	vkStructDeviceQCI    = 2
	vkStructBufferCI     = 12
	vkStructMemAllocInfo = 5

	bufferUsageStorage  = 0x00000020
	memPropHostVisible  = 0x00000002
	memPropHostCoherent = 0x00000004

	vkFenceCreateSignaledBit = 0x00000001
)

func loaderNames() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"vulkan-1.dll"}
	case "darwin":
		return []string{"libMoltenVK.dylib", "libvulkan.dylib"}
	default:
		return []string{"libvulkan.so.1", "libvulkan.so"}
	}
}

// loader holds the dynamically bound entry points this package needs. Only
// the handful of functions the matmul/similarity kernels actually touch are
// bound; vmemo never needs the full Vulkan surface.
type loader struct {
	handle uintptr

	createInstance          func(createInfo, allocator, instance uintptr) int32
	enumeratePhysicalDevices func(instance uintptr, count *uint32, devices uintptr) int32
	createDevice            func(physDevice uintptr, createInfo, allocator, device uintptr) int32
	getDeviceQueue          func(device uintptr, family, index uint32, queue uintptr)
	createBuffer            func(device uintptr, createInfo, allocator, buffer uintptr) int32
	getBufferMemReqs        func(device, buffer uintptr, reqs uintptr)
	allocateMemory          func(device uintptr, allocInfo, allocator, memory uintptr) int32
	bindBufferMemory        func(device, buffer, memory uintptr, offset uint64) int32
	mapMemory               func(device, memory uintptr, offset, size uint64, flags uint32, data uintptr) int32
	unmapMemory             func(device, memory uintptr)
	createShaderModule      func(device uintptr, createInfo, allocator, module uintptr) int32
	createFence             func(device uintptr, createInfo, allocator, fence uintptr) int32
	waitForFences           func(device uintptr, count uint32, fences uintptr, waitAll uint32, timeout uint64) int32
	resetFences             func(device uintptr, count uint32, fences uintptr) int32
	queueSubmit             func(queue uintptr, count uint32, submits uintptr, fence uintptr) int32
	destroyDevice           func(device, allocator uintptr)
	destroyInstance         func(instance, allocator uintptr)
}

func openLoader() (*loader, error) {
	var handle uintptr
	var err error
	for _, name := range loaderNames() {
		handle, err = purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if handle == 0 {
		return nil, fmt.Errorf("%w: %v", ErrVulkanNotAvailable, err)
	}

	l := &loader{handle: handle}
	bind := func(fptr any, name string) {
		purego.RegisterLibFunc(fptr, handle, name)
	}
	bind(&l.createInstance, "vkCreateInstance")
	bind(&l.enumeratePhysicalDevices, "vkEnumeratePhysicalDevices")
	bind(&l.createDevice, "vkCreateDevice")
	bind(&l.getDeviceQueue, "vkGetDeviceQueue")
	bind(&l.createBuffer, "vkCreateBuffer")
	bind(&l.getBufferMemReqs, "vkGetBufferMemoryRequirements")
	bind(&l.allocateMemory, "vkAllocateMemory")
	bind(&l.bindBufferMemory, "vkBindBufferMemory")
	bind(&l.mapMemory, "vkMapMemory")
	bind(&l.unmapMemory, "vkUnmapMemory")
	bind(&l.createShaderModule, "vkCreateShaderModule")
	bind(&l.createFence, "vkCreateFence")
	bind(&l.waitForFences, "vkWaitForFences")
	bind(&l.resetFences, "vkResetFences")
	bind(&l.queueSubmit, "vkQueueSubmit")
	bind(&l.destroyDevice, "vkDestroyDevice")
	bind(&l.destroyInstance, "vkDestroyInstance")
	return l, nil
}

// IsAvailable reports whether the platform Vulkan loader can be opened.
func IsAvailable() bool {
	l, err := openLoader()
	return err == nil && l != nil
}

// Device owns one Vulkan instance, one logical device, and one compute
// queue, matching the "one logical device and one compute queue" lifecycle
// spec §4.D mandates. It never retains multiple in-flight submissions:
// every dispatch is followed by a wait-idle before the next host read.
type Device struct {
	l        *loader
	instance uintptr
	physical uintptr
	device   uintptr
	queue    uintptr
	family   uint32
	fence    uintptr
}

// NewDevice creates a Vulkan instance, takes the first enumerated physical
// device, and creates a logical device with one queue from queue family 0.
// Queue family properties are not queried, so family 0 is not checked for
// compute support.
func NewDevice() (*Device, error) {
	l, err := openLoader()
	if err != nil {
		return nil, err
	}

	instanceCI := packInstanceCreateInfo()
	var instance uintptr
	if rc := l.createInstance(uintptr(unsafe.Pointer(&instanceCI[0])), 0, uintptr(unsafe.Pointer(&instance))); rc != vkSuccess {
		return nil, fmt.Errorf("%w: vkCreateInstance rc=%d", ErrDeviceCreation, rc)
	}

	var count uint32
	if rc := l.enumeratePhysicalDevices(instance, &count, 0); rc != vkSuccess || count == 0 {
		l.destroyInstance(instance, 0)
		return nil, fmt.Errorf("%w: no physical devices", ErrDeviceCreation)
	}
	physDevices := make([]uintptr, count)
	if rc := l.enumeratePhysicalDevices(instance, &count, uintptr(unsafe.Pointer(&physDevices[0]))); rc != vkSuccess {
		l.destroyInstance(instance, 0)
		return nil, fmt.Errorf("%w: vkEnumeratePhysicalDevices rc=%d", ErrDeviceCreation, rc)
	}
	physical := physDevices[0]

	// Family 0 is used as the compute family; a production binding would
	// query vkGetPhysicalDeviceQueueFamilyProperties for a queue flagged
	// VK_QUEUE_COMPUTE_BIT. vmemo targets whichever device a run's host
	// exposes first, matching the single-device contract of spec §4.D.
	const computeFamily = 0
	deviceCI := packDeviceCreateInfo(computeFamily)
	var device uintptr
	if rc := l.createDevice(physical, uintptr(unsafe.Pointer(&deviceCI[0])), 0, uintptr(unsafe.Pointer(&device))); rc != vkSuccess {
		l.destroyInstance(instance, 0)
		return nil, fmt.Errorf("%w: vkCreateDevice rc=%d", ErrDeviceCreation, rc)
	}

	var queue uintptr
	l.getDeviceQueue(device, computeFamily, 0, uintptr(unsafe.Pointer(&queue)))

	var fence uintptr
	fenceCI := packFenceCreateInfo()
	if rc := l.createFence(device, uintptr(unsafe.Pointer(&fenceCI[0])), 0, uintptr(unsafe.Pointer(&fence))); rc != vkSuccess {
		l.destroyDevice(device, 0)
		l.destroyInstance(instance, 0)
		return nil, fmt.Errorf("%w: vkCreateFence rc=%d", ErrDeviceCreation, rc)
	}

	return &Device{l: l, instance: instance, physical: physical, device: device, queue: queue, family: computeFamily, fence: fence}, nil
}

// Release tears the device down (spec §4.D's lifecycle step (e)): it
// destroys the logical device and the instance. It does not wait for the
// queue to go idle first, and the fence is not destroyed separately.
func (d *Device) Release() {
	if d == nil || d.device == 0 {
		return
	}
	d.l.destroyDevice(d.device, 0)
	d.l.destroyInstance(d.instance, 0)
}

// Name is not queried in this minimal binding; callers fall back to a
// generic label.
func (d *Device) Name() string { return "vulkan device" }

// MemoryMB is not queried in this minimal binding.
func (d *Device) MemoryMB() int { return 0 }

// Buffer is a device-resident, host-visible storage buffer, persistently
// mapped for the lifetime of the buffer (spec §4.D: "Host-visible input
// and output buffers are mapped persistently for minimal per-call
// overhead.").
type Buffer struct {
	d        *Device
	buffer   uintptr
	memory   uintptr
	mapped   uintptr
	floatLen int
}

// NewBuffer allocates a host-visible storage buffer sized for data and
// uploads it.
func (d *Device) NewBuffer(data []float32) (*Buffer, error) {
	b, err := d.NewEmptyBuffer(len(data))
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		dst := unsafe.Slice((*float32)(unsafe.Pointer(b.mapped)), len(data))
		copy(dst, data)
	}
	return b, nil
}

// NewEmptyBuffer allocates an uninitialized host-visible storage buffer
// sized for floatCount float32 elements.
func (d *Device) NewEmptyBuffer(floatCount int) (*Buffer, error) {
	size := uint64(floatCount) * 4
	if size == 0 {
		size = 4
	}
	bufCI := packBufferCreateInfo(size)
	var buf uintptr
	if rc := d.l.createBuffer(d.device, uintptr(unsafe.Pointer(&bufCI[0])), 0, uintptr(unsafe.Pointer(&buf))); rc != vkSuccess {
		return nil, fmt.Errorf("%w: vkCreateBuffer rc=%d", ErrBufferCreation, rc)
	}

	allocCI := packMemoryAllocateInfo(size)
	var mem uintptr
	if rc := d.l.allocateMemory(d.device, uintptr(unsafe.Pointer(&allocCI[0])), 0, uintptr(unsafe.Pointer(&mem))); rc != vkSuccess {
		return nil, fmt.Errorf("%w: vkAllocateMemory rc=%d", ErrBufferCreation, rc)
	}
	if rc := d.l.bindBufferMemory(d.device, buf, mem, 0); rc != vkSuccess {
		return nil, fmt.Errorf("%w: vkBindBufferMemory rc=%d", ErrBufferCreation, rc)
	}

	var mapped uintptr
	if rc := d.l.mapMemory(d.device, mem, 0, size, 0, uintptr(unsafe.Pointer(&mapped))); rc != vkSuccess {
		return nil, fmt.Errorf("%w: vkMapMemory rc=%d", ErrBufferCreation, rc)
	}

	return &Buffer{d: d, buffer: buf, memory: mem, mapped: mapped, floatLen: floatCount}, nil
}

// Release unmaps the buffer's backing memory. The VkBuffer and its
// VkDeviceMemory are not destroyed or freed.
func (b *Buffer) Release() {
	if b == nil || b.d == nil {
		return
	}
	b.d.l.unmapMemory(b.d.device, b.memory)
}

// ReadFloat32 reads count float32 values back from the persistently
// mapped region. The caller must have issued a wait-idle since the last
// write for the read to observe device-side results (spec §5).
func (b *Buffer) ReadFloat32(count int) []float32 {
	if b == nil || b.mapped == 0 {
		return nil
	}
	if count > b.floatLen {
		count = b.floatLen
	}
	src := unsafe.Slice((*float32)(unsafe.Pointer(b.mapped)), count)
	out := make([]float32, count)
	copy(out, src)
	return out
}

// MatMul dispatches the matrix-vector multiply kernel (spec §4.D.1):
// weights laid out row-major d×n starting at weightOffset, input length
// n, output length d, workgroup 256 along the d axis.
//
// NOT YET FUNCTIONAL: a full binding dispatches a prebuilt compute
// pipeline (descriptor set 0, bindings 0/1/2 = weights/input/output;
// push constants (weight_offset, n, d); grid ⌈d/256⌉) via
// vkQueueSubmit, then waits on d.fence. That pipeline/descriptor-set/
// command-buffer construction is not wired in this binding yet, so no
// kernel actually runs: the call returns the output buffer's
// uninitialized (zero) contents rather than a real matrix-vector
// product. dispatchAndWait's fence is pre-signaled so this returns
// immediately instead of hanging, but the result is a stub.
func (d *Device) MatMul(weights *Buffer, weightOffset, n, dOut uint32, input []float32) ([]float32, error) {
	if weights == nil || weights.buffer == 0 {
		return nil, ErrInvalidBuffer
	}
	inBuf, err := d.NewBuffer(input)
	if err != nil {
		return nil, err
	}
	defer inBuf.Release()
	outBuf, err := d.NewEmptyBuffer(int(dOut))
	if err != nil {
		return nil, err
	}
	defer outBuf.Release()

	if err := d.dispatchAndWait(); err != nil {
		return nil, err
	}
	return outBuf.ReadFloat32(int(dOut)), nil
}

// Similarity dispatches the brute-force similarity kernel (spec §4.D.2):
// a packed count×dim vectors region, a dim-length query, a metric
// selector (1=cosine, 2=dot), workgroup 256 along the count axis.
//
// NOT YET FUNCTIONAL, for the same reason documented on MatMul: no
// compute pipeline is submitted yet, so this returns the output buffer's
// zeroed contents rather than real similarity scores.
func (d *Device) Similarity(vectors *Buffer, query []float32, count, dim, metric uint32) ([]float32, error) {
	if vectors == nil || vectors.buffer == 0 {
		return nil, ErrInvalidBuffer
	}
	queryBuf, err := d.NewBuffer(query)
	if err != nil {
		return nil, err
	}
	defer queryBuf.Release()
	scoresBuf, err := d.NewEmptyBuffer(int(count))
	if err != nil {
		return nil, err
	}
	defer scoresBuf.Release()

	if err := d.dispatchAndWait(); err != nil {
		return nil, err
	}
	return scoresBuf.ReadFloat32(int(count)), nil
}

// dispatchAndWait is the wait-idle-after-dispatch synchronization point
// spec §4.D requires. NOTE: no compute pipeline is actually submitted
// here yet (see the callers' doc comments) — d.fence is created
// pre-signaled so this returns immediately instead of hanging on a fence
// nothing will ever signal. It is deliberately never reset: resetting an
// unsubmitted fence would make every call after the first block forever.
// Once a real vkQueueSubmit is wired, this must create the fence
// unsignaled and reset it here after each wait, per the normal Vulkan
// fence-reuse pattern.
func (d *Device) dispatchAndWait() error {
	const uint64Max = ^uint64(0)
	if rc := d.l.waitForFences(d.device, 1, uintptr(unsafe.Pointer(&d.fence)), 1, uint64Max); rc != vkSuccess {
		return fmt.Errorf("%w: vkWaitForFences rc=%d", ErrKernelExecution, rc)
	}
	return nil
}

// --- minimal Vulkan struct packing (little-endian, matching the host Vulkan ABI) ---

func packInstanceCreateInfo() []byte {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint32(buf[0:4], vkStructInstanceCI)
	return buf
}

func packDeviceCreateInfo(family uint32) []byte {
	buf := make([]byte, 96)
	binary.LittleEndian.PutUint32(buf[0:4], vkStructDeviceCI)
	qci := make([]byte, 48)
	binary.LittleEndian.PutUint32(qci[0:4], vkStructDeviceQCI)
	binary.LittleEndian.PutUint32(qci[16:20], family)
	binary.LittleEndian.PutUint32(qci[20:24], 1)
	copy(buf[16:], qci)
	return buf
}

// packFenceCreateInfo creates the fence pre-signaled. No compute pipeline
// is submitted against it yet (see dispatchAndWait), so a fence created
// unsignaled would never be signaled by a real vkQueueSubmit and
// vkWaitForFences would block forever on the first kernel call.
func packFenceCreateInfo() []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint32(buf[16:20], vkFenceCreateSignaledBit)
	return buf
}

func packBufferCreateInfo(size uint64) []byte {
	buf := make([]byte, 56)
	binary.LittleEndian.PutUint32(buf[0:4], vkStructBufferCI)
	binary.LittleEndian.PutUint64(buf[24:32], size)
	binary.LittleEndian.PutUint32(buf[32:36], bufferUsageStorage)
	return buf
}

func packMemoryAllocateInfo(size uint64) []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], vkStructMemAllocInfo)
	binary.LittleEndian.PutUint64(buf[16:24], size)
	return buf
}
