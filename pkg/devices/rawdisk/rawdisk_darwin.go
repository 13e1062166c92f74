package rawdisk

import (
	"os"

	"golang.org/x/sys/unix"
)

const syncFlag = unix.O_DSYNC

func openFile(filename string, flags int, direct bool) (*os.File, bool, error) {
	f, err := os.OpenFile(filename, flags, 0)
	if err != nil || !direct {
		return f, false, err
	}
	if _, err = unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1); err != nil {
		return f, false, nil
	}
	return f, true, nil
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

func filesystemType(path string) string {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "unknown"
	}
	return unix.ByteSliceToString(st.Fstypename[:])
}
