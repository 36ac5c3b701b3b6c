//go:build !vulkan

// Package vulkan binds the two compute kernels spec.md §4.D and §6 require
// (matrix-vector multiply, brute-force similarity) to a Vulkan compute
// device. This file is the stub used when the "vulkan" build tag is absent;
// it keeps the package always buildable, mirroring the teacher's
// pkg/gpu/vulkan/vulkan_stub.go pattern exactly. See vulkan.go (tag
// "vulkan") for the purego-backed real device.
package vulkan

import "errors"

var (
	// ErrVulkanNotAvailable is returned by every operation in this build.
	ErrVulkanNotAvailable = errors.New("vulkan: not available (build without the vulkan tag)")
	ErrDeviceCreation      = errors.New("vulkan: failed to create device")
	ErrBufferCreation      = errors.New("vulkan: failed to create buffer")
	ErrKernelExecution     = errors.New("vulkan: kernel execution failed")
	ErrInvalidBuffer       = errors.New("vulkan: invalid buffer")
)

// Device represents a Vulkan compute device (stub).
type Device struct{}

// Buffer represents a device-resident, host-visible storage buffer (stub).
type Buffer struct{}

// IsAvailable reports whether a real Vulkan device can be created. It is
// always false in this build.
func IsAvailable() bool { return false }

// NewDevice returns ErrVulkanNotAvailable in this build.
func NewDevice() (*Device, error) { return nil, ErrVulkanNotAvailable }

// Release is a no-op stub.
func (d *Device) Release() {}

// Name returns an empty string.
func (d *Device) Name() string { return "" }

// MemoryMB returns 0.
func (d *Device) MemoryMB() int { return 0 }

// NewBuffer returns ErrVulkanNotAvailable.
func (d *Device) NewBuffer(data []float32) (*Buffer, error) { return nil, ErrVulkanNotAvailable }

// NewEmptyBuffer returns ErrVulkanNotAvailable.
func (d *Device) NewEmptyBuffer(floatCount int) (*Buffer, error) { return nil, ErrVulkanNotAvailable }

// Release is a no-op stub.
func (b *Buffer) Release() {}

// ReadFloat32 returns nil.
func (b *Buffer) ReadFloat32(count int) []float32 { return nil }

// MatMul returns ErrVulkanNotAvailable. Real signature: weights buffer,
// weightOffset into it, input length n, output length d (spec §4.D.1).
func (d *Device) MatMul(weights *Buffer, weightOffset, n, dOut uint32, input []float32) ([]float32, error) {
	return nil, ErrVulkanNotAvailable
}

// Similarity returns ErrVulkanNotAvailable. Real signature: packed
// count×dim vectors buffer, a dim-length query, a metric selector
// (1=cosine, 2=dot), producing a dense count-element score array
// (spec §4.D.2).
func (d *Device) Similarity(vectors *Buffer, query []float32, count, dim, metric uint32) ([]float32, error) {
	return nil, ErrVulkanNotAvailable
}
