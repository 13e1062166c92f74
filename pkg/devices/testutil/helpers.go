package testutil

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"
	"time"

	"github.com/tarndt/flashbench/pkg/blockdev"
	"github.com/tarndt/flashbench/pkg/util/strms"
)

//CreateContext creates a context aware of the provided a testing.T's deadline
func CreateContext(t *testing.T) context.Context {
	const defaultTO = time.Minute
	deadline, hasDeadline := t.Deadline()
	if !hasDeadline {
		deadline = time.Now().Add(defaultTO)
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	t.Cleanup(cancel)
	return ctx
}

//TestDevSize verfies the provided device reports the correct size
func TestDevSize(t *testing.T, dev blockdev.Device, expectedSize int64) {
	t.Run("dev-size", func(t *testing.T) {
		if actual := dev.Size(); actual != expectedSize {
			t.Fatalf("Expected device size to be %d but it was %d", expectedSize, actual)
		}
		if bs := dev.BlockSize(); bs < 1 || bs&(bs-1) != 0 {
			t.Fatalf("Block size %d is not a positive power of two", bs)
		}
	})
}

//TestReadEmpty verifies the provided device reads as empty
func TestReadEmpty(t *testing.T, dev blockdev.Device) {
	t.Run("read-empty", func(t *testing.T) {
		t.Run("buffered", func(t *testing.T) {
			n, err := io.Copy(zeroChecker{t}, bufio.NewReader(strms.NewReadAtReader(dev, 0)))
			if err != nil {
				t.Fatalf("Failed to read device: %s", err)
			}
			if n != dev.Size() {
				t.Fatalf("Read %d bytes rather than the %d byte device size", n, dev.Size())
			}
		})

		t.Run("block", func(t *testing.T) {
			bs := dev.BlockSize()
			if dev.Size() < bs*2 {
				t.Skipf("Two blocks worth of total capacity required for test")
			}

			buf := make([]byte, bs*2)
			n, err := dev.ReadAt(buf, 0)
			switch {
			case err != nil:
				t.Fatalf("Failed to read two blocks: %s", err)
			case int64(n) != bs*2:
				t.Fatalf("Read returned %d bytes rather than two blocks (%d bytes)", n, bs*2)
			}
			zeroChecker{t}.Write(buf)
		})
	})
}

type zeroChecker struct{ t *testing.T }

func (zc zeroChecker) Write(buf []byte) (int, error) {
	for _, b := range buf {
		if b != 0 {
			zc.t.Fatalf("Expected all zeros, found %d", b)
		}
	}
	return len(buf), nil
}

//TestWriteReadPattern writes and reads a pattern to the provided device
func TestWriteReadPattern(t *testing.T, dev blockdev.Device) (writtenHash []byte) {
	count := dev.Size()

	getVal := func(idx int64) byte {
		if (idx/4096)%2 == 0 {
			return byte((idx + 16) % 256)
		}
		return 0
	}

	t.Run("write-read-pattern", func(t *testing.T) {
		t.Run("write", func(t *testing.T) {
			hashWtr := sha256.New()
			wtr := bufio.NewWriter(io.MultiWriter(strms.NewWriteAtWriter(dev, 0), hashWtr))
			for i := int64(0); i < count; i++ {
				if err := wtr.WriteByte(getVal(i)); err != nil {
					t.Fatalf("Failed to write byte %d of %d: %s", i+1, count, err)
				}
			}
			if err := wtr.Flush(); err != nil {
				t.Fatalf("Failed to flush buffered writer: %s", err)
			}
			writtenHash = hashWtr.Sum(nil)

			if err := dev.Flush(); err != nil {
				t.Fatalf("Failed to flush device: %s", err)
			}
		})

		t.Run("read", func(t *testing.T) {
			rdr := bufio.NewReader(strms.NewReadAtReader(dev, 0))
			for i := int64(0); true; i++ {
				actual, err := rdr.ReadByte()
				if err != nil {
					if err == io.EOF && i == count {
						break
					}
					t.Fatalf("Failed to read byte index %d of %d just written: %s", i, count, err)
				}
				if expected := getVal(i); actual != expected {
					t.Fatalf("Wrong value %d found at %d, expecting %d", actual, i, expected)
				}
			}
		})

		TestReadHash(t, dev, writtenHash)
	})

	return writtenHash
}

//TestReadHash confirms the SHA of the provided device matches the expected SHA
func TestReadHash(t *testing.T, dev blockdev.Device, expectedHash []byte) {
	t.Run("read-hash", func(t *testing.T) {
		hashWtr := sha256.New()
		if n, err := io.Copy(hashWtr, bufio.NewReader(strms.NewReadAtReader(dev, 0))); err != nil {
			t.Fatalf("Failed to calculate SHA256 of device: %s", err)
		} else if devSize := dev.Size(); n != devSize {
			t.Fatalf("While calculating SHA256 of device %d bytes were found instead of %d", n, devSize)
		} else if readHash := hashWtr.Sum(nil); !bytes.Equal(expectedHash, readHash) {
			t.Fatalf("SHA256 written to device was %s but %s was expected", hex.EncodeToString(expectedHash), hex.EncodeToString(readHash))
		}
	})
}

//TestClose confirms the device close without error and subsequent operations fail as expected
func TestClose(t *testing.T, dev blockdev.Device) {
	t.Run("close", func(t *testing.T) {
		if err := dev.Close(); err != nil {
			t.Fatalf("Failed to close device: %s", err)
		}

		buf := make([]byte, dev.BlockSize())
		if _, err := dev.ReadAt(buf, 0); err == nil {
			t.Fatal("Expected error during read on closed device")
		}
		if _, err := dev.WriteAt(buf, 0); err == nil {
			t.Fatal("Expected error during write on closed device")
		}
		if err := dev.Flush(); err == nil {
			t.Fatal("Expected error during flush on closed device")
		}
	})
}
