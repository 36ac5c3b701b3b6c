package model

import "golang.org/x/sys/cpu"

// CPUFeatureSummary reports a one-line diagnostic of the SIMD extensions
// available on the host, logged once at startup (spec §1's portability-shim
// note: these are build/runtime diagnostics, not behavior-changing flags).
func CPUFeatureSummary() string {
	switch {
	case cpu.X86.HasAVX2:
		return "cpu: x86 AVX2 available"
	case cpu.ARM64.HasASIMD:
		return "cpu: arm64 NEON (ASIMD) available"
	default:
		return "cpu: no recognized SIMD extension"
	}
}
