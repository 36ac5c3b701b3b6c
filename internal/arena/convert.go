package arena

import "unsafe"

// bytesToFloat32 reinterprets an 8-byte-aligned byte slice as a float32
// slice without copying. The caller guarantees len(b) is a multiple of 4;
// Push always hands out 8-byte-aligned regions, which satisfies float32's
// 4-byte alignment requirement.
func bytesToFloat32(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}
