package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/tarndt/flashbench/pkg/blockdev"
	"github.com/tarndt/flashbench/pkg/util"
	"github.com/tarndt/flashbench/pkg/util/strms"
)

//DefaultEvictionBytes is how much unrelated traffic is pushed through the page
// cache when a device can neither bypass nor drop its cached pages
const DefaultEvictionBytes = 64 * mib

//CacheMitigator keeps OS caching out of measurements. Mitigation runs outside
// timed operations. Errors wrapping ErrCacheBypassUnavailable are warnings: the
// returned mode is still usable but results are best-effort.
type CacheMitigator interface {
	PrepareUncachedRead(ctx context.Context, dev blockdev.Device, region Region) (CacheMode, error)
	PrepareDurableWrite(ctx context.Context, dev blockdev.Device) (CacheMode, error)
}

//Mitigator is the default CacheMitigator. Reads prefer, in order: direct I/O,
// dropping the region from the page cache and finally evicting it by streaming
// EvictionBytes through a scratch file in EvictionDir.
type Mitigator struct {
	EvictionBytes int64
	EvictionDir   string
	Log           logrus.FieldLogger
}

var _ CacheMitigator = (*Mitigator)(nil)

//NewMitigator creates a mitigator, a zero evictionBytes disables eviction and
// an empty evictionDir uses the OS temporary directory
func NewMitigator(evictionBytes int64, evictionDir string, log logrus.FieldLogger) *Mitigator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Mitigator{EvictionBytes: evictionBytes, EvictionDir: evictionDir, Log: log}
}

//PrepareUncachedRead makes the next reads of region come from the device
func (mit *Mitigator) PrepareUncachedRead(ctx context.Context, dev blockdev.Device, region Region) (CacheMode, error) {
	if dio, ok := dev.(blockdev.DirectIO); ok && dio.DirectIO() {
		return CacheDirect, nil
	}

	if dropper, ok := dev.(blockdev.CacheDropper); ok {
		err := dropper.DropCache(region.Offset, region.Length)
		if err == nil {
			return CacheDropped, nil
		}
		mit.Log.WithError(err).Debug("Dropping cached pages failed, falling back to eviction")
	}

	if mit.EvictionBytes < 1 {
		return CacheUnmitigated, fmt.Errorf("Could not bypass cache: no direct I/O, no cache drop and eviction is disabled: %w", ErrCacheBypassUnavailable)
	}
	if err := mit.evict(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return CacheUnmitigated, ctxErr
		}
		return CacheUnmitigated, fmt.Errorf("Could not evict cache: %v: %w", err, ErrCacheBypassUnavailable)
	}
	return CacheEvicted, nil
}

//PrepareDurableWrite determines how writes are made durable before their
// timing ends. Devices that can't flush are reported, never silently buffered.
func (mit *Mitigator) PrepareDurableWrite(ctx context.Context, dev blockdev.Device) (CacheMode, error) {
	if sw, ok := dev.(blockdev.SyncWriter); ok && sw.SyncWrites() {
		return WriteDSync, nil
	}
	if err := dev.Flush(); err != nil {
		return WriteBuffered, fmt.Errorf("Could not flush device: %v: %w", err, ErrCacheBypassUnavailable)
	}
	return WriteFlushed, nil
}

func (mit *Mitigator) evict(ctx context.Context) (err error) {
	f, err := os.CreateTemp(mit.EvictionDir, "flashbench-evict-*")
	if err != nil {
		return fmt.Errorf("Could not create eviction file: %w", err)
	}
	defer func() {
		f.Close()
		if rmErr := os.Remove(f.Name()); rmErr != nil && err == nil {
			err = fmt.Errorf("Could not remove eviction file %q: %w", f.Name(), rmErr)
		}
	}()

	chunk := make([]byte, min(mit.EvictionBytes, mib))
	if err = util.RandomFill(chunk); err != nil {
		return err
	}

	wtr := strms.NewWriteAtWriter(f, 0)
	for wtr.Offset() < mit.EvictionBytes {
		if err = ctx.Err(); err != nil {
			return err
		}
		if _, err = wtr.Write(chunk[:min(int64(len(chunk)), mit.EvictionBytes-wtr.Offset())]); err != nil {
			return fmt.Errorf("Could not write eviction traffic: %w", err)
		}
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("Could not sync eviction traffic: %w", err)
	}

	var counter strms.Counter
	if _, err = io.Copy(&counter, strms.NewReadAtReader(f, 0)); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("Could not read back eviction traffic: %w", err)
	}
	if counter.Count() != mit.EvictionBytes {
		return fmt.Errorf("Could not read back eviction traffic: read %d of %d bytes", counter.Count(), mit.EvictionBytes)
	}

	mit.Log.WithField("bytes", humanize.IBytes(uint64(mit.EvictionBytes))).Debug("Evicted page cache")
	return nil
}
