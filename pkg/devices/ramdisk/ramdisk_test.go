package ramdisk

import (
	"testing"

	"github.com/tarndt/flashbench/pkg/devices/testutil"
)

func TestRamdisk(t *testing.T) {
	const sizeBytes = 16 * 1024 * 1024 //16 MB

	testutil.TestDevice(t, NewRAMDisk(sizeBytes), sizeBytes)
}

func TestRamdiskTarget(t *testing.T) {
	const sizeBytes = 1024 * 1024

	tgt := NewTarget("scratch", sizeBytes)
	id := tgt.Identity()
	if id.Capacity != sizeBytes || id.Label != "scratch" || len(id.ID) != 16 {
		t.Fatalf("Unexpected identity: %+v", id)
	}

	first, err := tgt.Open()
	if err != nil {
		t.Fatalf("Could not open target: %s", err)
	}
	if _, err = first.WriteAt([]byte{1}, 0); err != nil {
		t.Fatalf("Could not write: %s", err)
	}
	first.Close()

	second, err := tgt.Open()
	if err != nil {
		t.Fatalf("Could not reopen target: %s", err)
	}
	defer second.Close()
	buf := []byte{0xff}
	if _, err = second.ReadAt(buf, 0); err != nil {
		t.Fatalf("Could not read: %s", err)
	}
	if buf[0] != 0 {
		t.Fatalf("Reopened target was not fresh, found %d", buf[0])
	}
}
