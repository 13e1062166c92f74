package rawdisk

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tarndt/flashbench/pkg/blockdev"
	"github.com/tarndt/flashbench/pkg/util"
)

//Options control how a RawDisk is opened
type Options struct {
	//Direct requests the OS page cache be bypassed (O_DIRECT, F_NOCACHE); when the
	// platform or filesystem refuses, the disk silently falls back to cached I/O
	// and DirectIO() reports false
	Direct bool
	//SyncWrites requests writes only complete once durable (O_DSYNC)
	SyncWrites bool
	//ReadOnly opens the disk without write access
	ReadOnly bool

	removeOnClose bool
}

//RawDisk is a file or block-device backed device
type RawDisk struct {
	*os.File
	sizeBytes int64
	blockSize int64
	direct    bool
	dsync     bool
	remove    bool
}

var (
	_ blockdev.Device       = (*RawDisk)(nil)
	_ blockdev.DirectIO     = (*RawDisk)(nil)
	_ blockdev.SyncWriter   = (*RawDisk)(nil)
	_ blockdev.CacheDropper = (*RawDisk)(nil)
)

//Open opens an existing file or block device
func Open(filename string, opts Options) (*RawDisk, error) {
	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}
	if opts.SyncWrites && !opts.ReadOnly {
		flags |= syncFlag
	}

	f, direct, err := openFile(filename, flags, opts.Direct)
	if err != nil {
		return nil, fmt.Errorf("Could not open %q: %w", filename, err)
	}

	rdsk := &RawDisk{
		File:   f,
		direct: direct,
		dsync:  opts.SyncWrites && !opts.ReadOnly,
		remove: opts.removeOnClose,
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("Could not stat %q: %w", filename, err)
	}
	if info.Mode()&os.ModeDevice != 0 {
		if rdsk.sizeBytes, err = f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, fmt.Errorf("Could not determine size of block device %q: %w", filename, err)
		}
		rdsk.blockSize = sectorSize(f)
	} else {
		rdsk.sizeBytes = info.Size()
	}
	if rdsk.blockSize < 1 {
		rdsk.blockSize = util.DefaultAlignment
	}

	return rdsk, nil
}

//Size of this device in bytes
func (rdsk *RawDisk) Size() int64 {
	return rdsk.sizeBytes
}

//BlockSize is the logical sector size for block devices, otherwise 4KB
func (rdsk *RawDisk) BlockSize() int64 {
	return rdsk.blockSize
}

//DirectIO fufills blockdev.DirectIO
func (rdsk *RawDisk) DirectIO() bool {
	return rdsk.direct
}

//SyncWrites fufills blockdev.SyncWriter
func (rdsk *RawDisk) SyncWrites() bool {
	return rdsk.dsync
}

//Flush fufills part of blockdev.Device
func (rdsk *RawDisk) Flush() error {
	return datasync(rdsk.File)
}

//DropCache fufills blockdev.CacheDropper. Dirty pages are written back first
// since only clean pages can be dropped.
func (rdsk *RawDisk) DropCache(pos, count int64) error {
	if err := datasync(rdsk.File); err != nil {
		return fmt.Errorf("Could not write back dirty pages: %w", err)
	}
	return dropCache(rdsk.File, pos, count)
}

//Close fufills io.Closer, scratch files are removed
func (rdsk *RawDisk) Close() error {
	err := rdsk.File.Close()
	if rdsk.remove {
		if rmErr := os.Remove(rdsk.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = fmt.Errorf("Could not remove scratch file %q: %w", rdsk.Name(), rmErr)
		}
	}
	return err
}
