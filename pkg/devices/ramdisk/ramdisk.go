package ramdisk

import (
	"io"
	"strconv"
	"sync/atomic"

	"github.com/tarndt/flashbench/pkg/blockdev"
	"github.com/tarndt/flashbench/pkg/util/consterr"
)

const errClosed = consterr.ConstErr("Device is shutdown")

//RAMDisk is a simple memory (heap) backed block device, useful for dry runs
// and for exercising the benchmark engine without real hardware
type RAMDisk struct {
	disk []byte
	size int
	blockdev.DefaultBlockSize

	atomicOnline uint64
}

var (
	_ blockdev.Device       = (*RAMDisk)(nil)
	_ blockdev.CacheDropper = (*RAMDisk)(nil)
)

//NewRAMDisk constructs a memory backed device of the provided size
func NewRAMDisk(size int64) *RAMDisk {
	return &RAMDisk{
		disk:         make([]byte, int(size)),
		size:         int(size),
		atomicOnline: 1,
	}
}

//NewTarget returns a Target that yields a fresh RAMDisk of the provided size
// every time it is opened
func NewTarget(label string, size int64) blockdev.Target {
	return blockdev.TargetFunc{
		ID: blockdev.Identity{
			ID:         blockdev.Fingerprint("ram", label, strconv.FormatInt(size, 10)),
			Label:      label,
			Capacity:   size,
			Filesystem: "ram",
		},
		OpenFn: func() (blockdev.Device, error) {
			return NewRAMDisk(size), nil
		},
	}
}

//Size of this device in bytes
func (rdsk *RAMDisk) Size() int64 {
	return int64(rdsk.size)
}

//ReadAt fufills io.ReaderAt and in turn part of blockdev.Device
func (rdsk *RAMDisk) ReadAt(buf []byte, pos int64) (count int, err error) {
	if atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		return 0, errClosed
	}

	count = len(buf)
	end := int(pos) + count
	if pos < 0 || end > rdsk.size {
		return 0, io.EOF
	}
	copy(buf, rdsk.disk[pos:end])
	return
}

//WriteAt fufills io.WriterAt and in turn part of blockdev.Device
func (rdsk *RAMDisk) WriteAt(buf []byte, pos int64) (count int, err error) {
	if atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		return 0, errClosed
	}

	count = len(buf)
	end := int(pos) + count
	if pos < 0 || end > rdsk.size {
		return 0, io.ErrUnexpectedEOF
	}
	copy(rdsk.disk[pos:end], buf)
	return
}

//DropCache fufills blockdev.CacheDropper, there is no page cache in front of
// heap memory so this only checks the device is still online
func (rdsk *RAMDisk) DropCache(pos, count int64) error {
	if atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		return errClosed
	}

	return nil
}

//Flush fufills part of blockdev.Device
func (rdsk *RAMDisk) Flush() error {
	if atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		return errClosed
	}

	return nil
}

//Close fufills io.Closer and in turn part of blockdev.Device
func (rdsk *RAMDisk) Close() error {
	atomic.StoreUint64(&rdsk.atomicOnline, 0)
	return nil
}
