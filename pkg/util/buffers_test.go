package util

import (
	"fmt"
	"testing"
)

func TestAlignedBuffer(t *testing.T) {
	for _, align := range []int{512, 4096, 8192} {
		for _, size := range []int{1, 511, 4096, 1024 * 1024} {
			t.Run(fmt.Sprintf("align-%d-size-%d", align, size), func(t *testing.T) {
				buf := AlignedBuffer(size, align)
				switch {
				case len(buf) != size:
					t.Fatalf("Buffer was %d bytes rather than %d", len(buf), size)
				case cap(buf) != size:
					t.Fatalf("Buffer capacity was %d rather than %d", cap(buf), size)
				case !IsAligned(buf, align):
					t.Fatalf("Buffer was not aligned to %d bytes", align)
				}
			})
		}
	}

	t.Run("empty", func(t *testing.T) {
		if buf := AlignedBuffer(0, 4096); buf != nil {
			t.Fatalf("Expected nil buffer for zero size, got %d bytes", len(buf))
		}
	})
}

func TestRandomFill(t *testing.T) {
	block := AlignedBuffer(64*1024, DefaultAlignment)
	if !IsZeros(block) {
		t.Fatal("New buffer was not zeroed")
	}
	if err := RandomFill(block); err != nil {
		t.Fatalf("Random fill failed: %s", err)
	}
	if IsZeros(block) {
		t.Fatal("Random fill left the block all zeros")
	}
}

func TestIsZeros(t *testing.T) {
	cases := []struct {
		desc    string
		data    []byte
		isZeros bool
	}{
		{desc: "nil", data: nil, isZeros: true},
		{desc: "seven-zero", data: make([]byte, 7), isZeros: true},
		{desc: "huge-zero-unaligned", data: make([]byte, 257), isZeros: true},
		{desc: "eight-zero-single-one", data: []byte{0, 0, 0, 0, 0, 0, 0, 0, 1}, isZeros: false},
		{desc: "zero-one", data: []byte{0, 1}, isZeros: false},
	}

	for _, tcase := range cases {
		t.Run(tcase.desc, func(t *testing.T) {
			if actual := IsZeros(tcase.data); actual != tcase.isZeros {
				t.Fatalf("IsZeros(%v) returned %t rather than %t", tcase.data, actual, tcase.isZeros)
			}
		})
	}
}
