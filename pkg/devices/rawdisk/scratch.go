package rawdisk

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"github.com/tarndt/flashbench/pkg/util"
)

const scratchPattern = "flashbench-*.bin"

//CreateScratch creates a file in dir of at least sizeBytes (rounded up to the
// default alignment) filled with random data. Random content defeats controller
// side compression and leaves no sparse holes to be read back for free.
func CreateScratch(dir string, sizeBytes int64) (filename string, err error) {
	if sizeBytes < 1 {
		return "", fmt.Errorf("Could not create scratch file: invalid size %d", sizeBytes)
	}
	if rem := sizeBytes % util.DefaultAlignment; rem != 0 {
		sizeBytes += util.DefaultAlignment - rem
	}

	f, err := os.CreateTemp(dir, scratchPattern)
	if err != nil {
		return "", fmt.Errorf("Could not create scratch file in %q: %w", dir, err)
	}
	filename = f.Name()
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("Could not close scratch file %q: %w", filename, closeErr)
		}
		if err != nil {
			os.Remove(filename)
		}
	}()

	const bufSize = 1024 * 1024
	strm := bufio.NewWriterSize(f, bufSize)
	if _, err = io.CopyN(strm, rand.Reader, sizeBytes); err != nil {
		return "", fmt.Errorf("Could not random fill scratch file %q, write failed: %w", filename, err)
	}
	if err = strm.Flush(); err != nil {
		return "", fmt.Errorf("Could not random fill scratch file %q, flush failed: %w", filename, err)
	}
	if err = f.Sync(); err != nil {
		return "", fmt.Errorf("Could not random fill scratch file %q, sync failed: %w", filename, err)
	}
	return filename, nil
}
