package rawdisk

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

const syncFlag = unix.O_DSYNC

func openFile(filename string, flags int, direct bool) (*os.File, bool, error) {
	if direct {
		f, err := os.OpenFile(filename, flags|unix.O_DIRECT, 0)
		if err == nil {
			return f, true, nil
		}
		if !errors.Is(err, unix.EINVAL) { //tmpfs and friends refuse O_DIRECT with EINVAL
			return nil, false, err
		}
	}
	f, err := os.OpenFile(filename, flags, 0)
	return f, false, err
}

func sectorSize(f *os.File) int64 {
	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err != nil || size < 1 {
		return 0
	}
	return int64(size)
}

func datasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}

func dropCache(f *os.File, pos, count int64) error {
	return unix.Fadvise(int(f.Fd()), pos, count, unix.FADV_DONTNEED)
}

var fsMagics = map[uint32]string{
	0x4d44:     "vfat",
	0x2011bab0: "exfat",
	0x5346544e: "ntfs",
	0x65735546: "fuseblk",
	0xef53:     "ext4",
	0x58465342: "xfs",
	0x9123683e: "btrfs",
	0xf2f52010: "f2fs",
	0x01021994: "tmpfs",
	0x794c7630: "overlayfs",
	0x6969:     "nfs",
	0x9660:     "iso9660",
	0x15013346: "udf",
	0x482b:     "hfsplus",
}

func filesystemType(path string) string {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "unknown"
	}
	if name, found := fsMagics[uint32(st.Type)]; found {
		return name
	}
	return "unknown"
}
