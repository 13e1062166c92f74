package testutil

import (
	"sync/atomic"
	"time"

	"github.com/tarndt/flashbench/pkg/blockdev"
	"github.com/tarndt/flashbench/pkg/util/consterr"
)

//ErrInjected is returned by FaultyDevice operations selected to fail
const ErrInjected = consterr.ConstErr("Injected I/O failure")

//FailFunc selects which operations fail, op is the zero based index of the
// operation among operations of the same type
type FailFunc func(op int64, pos int64) bool

//FaultyDevice wraps a device injecting failures and advancing a ManualClock by
// a fixed latency per operation. Only the plain blockdev.Device methods are
// exposed so capabilities of the wrapped device are hidden.
type FaultyDevice struct {
	blockdev.Device

	FailRead, FailWrite FailFunc
	FailFlush           bool

	Clock                                   *ManualClock
	ReadLatency, WriteLatency, FlushLatency time.Duration

	reads, writes, flushes atomic.Int64
}

//NewFaultyDevice wraps the provided device, with no failures configured it
// behaves like the wrapped device
func NewFaultyDevice(dev blockdev.Device, clock *ManualClock) *FaultyDevice {
	return &FaultyDevice{Device: dev, Clock: clock}
}

//ReadAt fufills io.ReaderAt
func (fd *FaultyDevice) ReadAt(buf []byte, pos int64) (int, error) {
	op := fd.reads.Add(1) - 1
	fd.advance(fd.ReadLatency)
	if fd.FailRead != nil && fd.FailRead(op, pos) {
		return 0, ErrInjected
	}
	return fd.Device.ReadAt(buf, pos)
}

//WriteAt fufills io.WriterAt
func (fd *FaultyDevice) WriteAt(buf []byte, pos int64) (int, error) {
	op := fd.writes.Add(1) - 1
	fd.advance(fd.WriteLatency)
	if fd.FailWrite != nil && fd.FailWrite(op, pos) {
		return 0, ErrInjected
	}
	return fd.Device.WriteAt(buf, pos)
}

//Flush fufills part of blockdev.Device
func (fd *FaultyDevice) Flush() error {
	fd.flushes.Add(1)
	fd.advance(fd.FlushLatency)
	if fd.FailFlush {
		return ErrInjected
	}
	return fd.Device.Flush()
}

//Reads is the number of ReadAt calls seen
func (fd *FaultyDevice) Reads() int64 { return fd.reads.Load() }

//Writes is the number of WriteAt calls seen
func (fd *FaultyDevice) Writes() int64 { return fd.writes.Load() }

//Flushes is the number of Flush calls seen
func (fd *FaultyDevice) Flushes() int64 { return fd.flushes.Load() }

func (fd *FaultyDevice) advance(d time.Duration) {
	if fd.Clock != nil && d > 0 {
		fd.Clock.Advance(d)
	}
}

//FailEvery fails every op whose index modulo n is below k, ex. FailEvery(10, 6)
// fails 6 of every 10 operations
func FailEvery(n, k int64) FailFunc {
	return func(op, _ int64) bool {
		return op%n < k
	}
}

//FailAll fails every operation
func FailAll(int64, int64) bool { return true }
