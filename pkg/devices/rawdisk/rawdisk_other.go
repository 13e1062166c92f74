//go:build !linux && !darwin

package rawdisk

import (
	"os"
)

const syncFlag = os.O_SYNC

func openFile(filename string, flags int, _ bool) (*os.File, bool, error) {
	f, err := os.OpenFile(filename, flags, 0)
	return f, false, err
}

func sectorSize(*os.File) int64 {
	return 0
}

func datasync(f *os.File) error {
	return f.Sync()
}

func dropCache(*os.File, int64, int64) error {
	return errDropUnsupported
}

func filesystemType(string) string {
	return "unknown"
}
