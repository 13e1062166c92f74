package util

import ( //Dark magic to make simple things fast...
	"crypto/rand"
	"fmt"
	"unsafe"
)

//DefaultAlignment is the memory alignment used for direct I/O buffers when the
// device does not report anything larger (4096 bytes, a page on most platforms)
const DefaultAlignment = 4096

//AlignedBuffer returns a slice of size bytes whose first byte is aligned to the
// provided boundary as required by O_DIRECT style unbuffered I/O
func AlignedBuffer(size, align int) []byte {
	if align < 1 {
		align = DefaultAlignment
	}
	if size < 1 {
		return nil
	}

	buf := make([]byte, size+align)
	offset := 0
	if rem := int(uintptr(unsafe.Pointer(&buf[0])) % uintptr(align)); rem != 0 {
		offset = align - rem
	}
	return buf[offset : offset+size : offset+size]
}

//IsAligned returns true if the provided buffer starts on the provided boundary
func IsAligned(buf []byte, align int) bool {
	if len(buf) < 1 || align < 1 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[0]))%uintptr(align) == 0
}

//RandomFill overwrites the provided block with random bytes so flash controllers
// that compress or deduplicate cannot shortcut the write
func RandomFill(block []byte) error {
	if _, err := rand.Read(block); err != nil {
		return fmt.Errorf("Could not fill %d byte block with random data: %w", len(block), err)
	}
	return nil
}

//IsZeros confirms the provided byte slice contains only zeros by returning true
func IsZeros(block []byte) bool {
	alignedCount := len(block) / 8
	var remainingStart int

	if alignedCount > 0 && IsAligned(block, 8) {
		longs := unsafe.Slice((*uint64)(unsafe.Pointer(&block[0])), alignedCount)
		for _, long := range longs {
			if long != 0 {
				return false
			}
		}
		remainingStart = alignedCount * 8
	}

	for _, char := range block[remainingStart:] {
		if char != 0 {
			return false
		}
	}
	return true
}
