package rawdisk

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tarndt/flashbench/pkg/blockdev"
)

//TargetOptions control how a path is turned into a benchmark target
type TargetOptions struct {
	Options
	//ScratchBytes is the size of the scratch file created when the target path
	// is a directory (ex. the mount point of a flash drive)
	ScratchBytes int64
	//AllowRaw permits targeting block devices directly, write tests destroy
	// whatever data lives in the benchmarked region
	AllowRaw bool
}

//Target is a path based blockdev.Target: a directory (scratch file), a regular
// file or a block device
type Target struct {
	path  string
	opts  TargetOptions
	kind  targetKind
	ident blockdev.Identity
}

type targetKind uint8

const (
	kindDir targetKind = iota
	kindFile
	kindBlock
)

var _ blockdev.Target = (*Target)(nil)

//NewTarget inspects the provided path and describes it. Inspection failures
// wrap fs errors so callers can tell absent devices from permission problems.
func NewTarget(path string, opts TargetOptions) (*Target, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("Could not resolve target path %q: %w", path, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("Could not stat target %q: %w", absPath, err)
	}

	tgt := &Target{path: absPath, opts: opts}
	switch mode := info.Mode(); {
	case mode.IsDir():
		if opts.ScratchBytes < 1 {
			return nil, fmt.Errorf("Could not use directory %q as a target: a scratch size is required", absPath)
		}
		tgt.kind, tgt.ident.Capacity = kindDir, opts.ScratchBytes
		tgt.ident.Filesystem = filesystemType(absPath)
	case mode&os.ModeDevice != 0:
		tgt.kind, tgt.ident.Filesystem = kindBlock, "raw"
		if f, err := os.Open(absPath); err == nil { //size check only, may need privilege
			if size, err := f.Seek(0, io.SeekEnd); err == nil {
				tgt.ident.Capacity = size
			}
			f.Close()
		}
	case mode.IsRegular():
		tgt.kind, tgt.ident.Capacity = kindFile, info.Size()
		tgt.ident.Filesystem = filesystemType(filepath.Dir(absPath))
	default:
		return nil, fmt.Errorf("Could not use %q as a target: unsupported file mode %s", absPath, mode)
	}

	tgt.ident.Path = absPath
	tgt.ident.Label = filepath.Base(absPath)
	tgt.ident.ID = blockdev.Fingerprint(absPath, strconv.FormatInt(tgt.ident.Capacity, 10), tgt.ident.Filesystem)
	return tgt, nil
}

//Identity fufills blockdev.Target
func (tgt *Target) Identity() blockdev.Identity {
	return tgt.ident
}

//Open fufills blockdev.Target
func (tgt *Target) Open() (blockdev.Device, error) {
	switch tgt.kind {
	case kindDir:
		filename, err := CreateScratch(tgt.path, tgt.opts.ScratchBytes)
		if err != nil {
			return nil, err
		}
		opts := tgt.opts.Options
		opts.removeOnClose = true
		dev, err := Open(filename, opts)
		if err != nil {
			os.Remove(filename)
			return nil, err
		}
		return dev, nil

	case kindBlock:
		if !tgt.opts.AllowRaw {
			return nil, fmt.Errorf("Could not open block device %q, raw device access was not allowed: %w", tgt.path, fs.ErrPermission)
		}
	}

	dev, err := Open(tgt.path, tgt.opts.Options)
	if err != nil {
		return nil, err
	}
	return dev, nil
}
