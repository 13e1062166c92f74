package bench

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/tarndt/flashbench/pkg/blockdev"
	"github.com/tarndt/flashbench/pkg/util"
)

//DefaultTimerResolution is the coarsest acceptable clock granularity
const DefaultTimerResolution = time.Microsecond

//Clock is the time source operations are timed with, it must be monotonic.
// Clocks that know their granularity may also implement
// Resolution() time.Duration to skip probing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

//SystemClock is the monotonic wall clock
func SystemClock() Clock {
	return systemClock{}
}

//TimerResolution measures the smallest observable step of the provided clock
func TimerResolution(clock Clock) time.Duration {
	if rr, ok := clock.(interface{ Resolution() time.Duration }); ok {
		return rr.Resolution()
	}

	const samples, maxSpins = 32, 1 << 20
	best := time.Duration(math.MaxInt64)
	for i := 0; i < samples; i++ {
		start := clock.Now()
		for spin := 0; spin < maxSpins; spin++ {
			if step := clock.Now().Sub(start); step > 0 {
				best = min(best, step)
				break
			}
		}
	}
	return best
}

//CheckTimerResolution fails with ErrInsufficientTimerResolution if the clock is
// coarser than required
func CheckTimerResolution(clock Clock, required time.Duration) (time.Duration, error) {
	res := TimerResolution(clock)
	if res > required {
		return res, fmt.Errorf("Could not use clock with %s resolution, %s or better is required: %w", res, required, ErrInsufficientTimerResolution)
	}
	return res, nil
}

//TimedIO performs single timed reads and writes against a device. Samples are
// placed on a measurement timeline that starts at Reset and excludes any time
// spent inside Exclude.
type TimedIO struct {
	dev         blockdev.Device
	clock       Clock
	align       int64
	flushWrites bool
	buf         []byte
	stamp       uint64

	origin   time.Time
	excluded time.Duration
}

//NewTimedIO creates a primitive for operations of up to maxSize bytes. When
// the device uses direct I/O every offset and size must be a multiple of its
// block size.
func NewTimedIO(dev blockdev.Device, clock Clock, maxSize int) (*TimedIO, error) {
	tio := &TimedIO{
		dev:   dev,
		clock: clock,
		buf:   util.AlignedBuffer(maxSize, int(max(dev.BlockSize(), util.DefaultAlignment))),
	}
	if dio, ok := dev.(blockdev.DirectIO); ok && dio.DirectIO() {
		tio.align = dev.BlockSize()
	}
	if err := util.RandomFill(tio.buf); err != nil {
		return nil, err
	}
	tio.Reset()
	return tio, nil
}

//Reset starts a new measurement timeline
func (tio *TimedIO) Reset() {
	tio.origin, tio.excluded = tio.clock.Now(), 0
}

//SetFlushWrites makes every write include a device flush in its timing
func (tio *TimedIO) SetFlushWrites(flush bool) {
	tio.flushWrites = flush
}

//Exclude runs fn with its duration removed from the measurement timeline
func (tio *TimedIO) Exclude(fn func() error) error {
	start := tio.clock.Now()
	err := fn()
	tio.excluded += tio.clock.Now().Sub(start)
	return err
}

//CheckOp validates an operation against the device without performing it
func (tio *TimedIO) CheckOp(op Op) error {
	switch {
	case op.Size < 1:
		return fmt.Errorf("Could not perform I/O of %d bytes: size must be positive", op.Size)
	case op.Size > len(tio.buf):
		return fmt.Errorf("Could not perform I/O of %d bytes: exceeds the %d byte buffer", op.Size, len(tio.buf))
	case op.Offset < 0 || op.Offset+int64(op.Size) > tio.dev.Size():
		return fmt.Errorf("Could not perform I/O at offset %d: outside the %d byte device", op.Offset, tio.dev.Size())
	case tio.align > 0 && (op.Offset%tio.align != 0 || int64(op.Size)%tio.align != 0):
		return fmt.Errorf("Could not perform I/O of %d bytes at offset %d with %d byte blocks: %w", op.Size, op.Offset, tio.align, ErrAlignment)
	}
	return nil
}

//Read performs a timed read. A failed read returns a failed sample and an
// error wrapping ErrOperationFailed; other errors mean nothing was attempted.
func (tio *TimedIO) Read(op Op) (Sample, error) {
	if err := tio.CheckOp(op); err != nil {
		return Sample{}, err
	}

	buf := tio.buf[:op.Size]
	start := tio.clock.Now()
	n, err := tio.dev.ReadAt(buf, op.Offset)
	elapsed := tio.clock.Now().Sub(start)

	if n == op.Size && err == io.EOF {
		err = nil
	}
	return tio.sample(op, start, elapsed, n, err)
}

//Write performs a timed write of random data, see Read
func (tio *TimedIO) Write(op Op) (Sample, error) {
	if err := tio.CheckOp(op); err != nil {
		return Sample{}, err
	}

	buf := tio.buf[:op.Size]
	tio.restamp(buf)
	start := tio.clock.Now()
	n, err := tio.dev.WriteAt(buf, op.Offset)
	if err == nil && tio.flushWrites {
		err = tio.dev.Flush()
	}
	elapsed := tio.clock.Now().Sub(start)

	return tio.sample(op, start, elapsed, n, err)
}

func (tio *TimedIO) sample(op Op, start time.Time, elapsed time.Duration, n int, err error) (Sample, error) {
	smpl := Sample{
		Offset: op.Offset,
		Size:   op.Size,
		Start:  (start.Sub(tio.origin) - tio.excluded).Seconds(),
	}
	if err == nil && n != op.Size {
		err = fmt.Errorf("short transfer of %d bytes", n)
	}
	if err != nil {
		return smpl, fmt.Errorf("Could not transfer %d bytes at offset %d: %v: %w", op.Size, op.Offset, err, ErrOperationFailed)
	}
	smpl.Duration, smpl.Succeeded = max(elapsed, 0).Seconds(), true
	return smpl, nil
}

//restamp makes every 4KB of the write buffer unique so deduplicating or
// compressing controllers cannot shortcut repeated writes of the same block
func (tio *TimedIO) restamp(buf []byte) {
	for pos := 0; pos+8 <= len(buf); pos += util.DefaultAlignment {
		tio.stamp++
		binary.LittleEndian.PutUint64(buf[pos:], tio.stamp)
	}
}
