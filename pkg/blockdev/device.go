package blockdev

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

//Device is a block addressable store that can be benchmarked. Implementations
// must support positional I/O so side-channel traffic never moves a shared cursor.
type Device interface {
	Size() int64
	BlockSize() int64
	ReadAt(buf []byte, pos int64) (count int, err error)
	WriteAt(buf []byte, pos int64) (count int, err error)
	Flush() error
	Close() error
}

//DirectIO is implemented by devices that may have been opened bypassing the OS
// page cache (O_DIRECT, F_NOCACHE). When DirectIO returns true all I/O offsets
// and sizes must be multiples of BlockSize().
type DirectIO interface {
	DirectIO() bool
}

//SyncWriter is implemented by devices whose writes only complete once they are
// durable on the device (O_DSYNC)
type SyncWriter interface {
	SyncWrites() bool
}

//CacheDropper is implemented by devices able to evict a byte range of
// themselves from the OS page cache
type CacheDropper interface {
	DropCache(pos, count int64) error
}

//DefaultBlockSize type meant to be embedded in implementations to easily provide
// the BlockSize() method
type DefaultBlockSize int64

//DefaultBlockSizeBytes is 4096 (4KB)
const DefaultBlockSizeBytes DefaultBlockSize = 4096

//BlockSize always returns DefaultBlockSizeBytes
func (DefaultBlockSize) BlockSize() int64 {
	return int64(DefaultBlockSizeBytes)
}

//Identity describes a benchmark target as supplied by device discovery
type Identity struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Path       string `json:"path,omitempty"`
	Capacity   int64  `json:"capacity_bytes"`
	Filesystem string `json:"filesystem"`
}

//Target is an opaque accessor for a device to be benchmarked. Open fails if the
// device is absent or cannot be accessed; callers own the returned Device.
type Target interface {
	Identity() Identity
	Open() (Device, error)
}

//Fingerprint derives a short stable identifier from identifying attributes
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

//TargetFunc adapts an identity and an open function into a Target
type TargetFunc struct {
	ID     Identity
	OpenFn func() (Device, error)
}

var _ Target = TargetFunc{}

//Identity fulfills Target
func (tf TargetFunc) Identity() Identity { return tf.ID }

//Open fulfills Target
func (tf TargetFunc) Open() (Device, error) { return tf.OpenFn() }
