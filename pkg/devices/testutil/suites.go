package testutil

import (
	"testing"

	"github.com/tarndt/flashbench/pkg/blockdev"
)

//TestDevice runs a suite of basic sanity tests on the provided fresh (zeroed)
// device and closes it
func TestDevice(t *testing.T, dev blockdev.Device, expectedSize int64) {
	t.Run("device", func(t *testing.T) {
		if _, err := dev.ReadAt(make([]byte, dev.BlockSize()), 0); err != nil {
			t.Fatalf("1 block test read to %#v failed: %s", dev, err)
		}

		TestDevSize(t, dev, expectedSize)
		TestReadEmpty(t, dev)
		TestReadHash(t, dev, TestWriteReadPattern(t, dev))
		TestClose(t, dev)
	})
}
