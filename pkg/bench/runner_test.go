package bench

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/tarndt/flashbench/pkg/blockdev"
	"github.com/tarndt/flashbench/pkg/devices/ramdisk"
	"github.com/tarndt/flashbench/pkg/devices/testutil"
)

//stubMitigator reports fixed modes, onRead runs on every read preparation
type stubMitigator struct {
	readMode  CacheMode
	readErr   error
	writeMode CacheMode
	writeErr  error
	onRead    func()
}

func (sm *stubMitigator) PrepareUncachedRead(context.Context, blockdev.Device, Region) (CacheMode, error) {
	if sm.onRead != nil {
		sm.onRead()
	}
	return sm.readMode, sm.readErr
}

func (sm *stubMitigator) PrepareDurableWrite(context.Context, blockdev.Device) (CacheMode, error) {
	return sm.writeMode, sm.writeErr
}

type runFixture struct {
	clock  *testutil.ManualClock
	dev    *testutil.FaultyDevice
	opened int
	target blockdev.Target
}

func newRunFixture(size int64) *runFixture {
	fix := &runFixture{clock: testutil.NewManualClock()}
	fix.dev = testutil.NewFaultyDevice(ramdisk.NewRAMDisk(size), fix.clock)
	fix.target = blockdev.TargetFunc{
		ID: blockdev.Identity{ID: blockdev.Fingerprint("fixture"), Label: "fixture", Capacity: size, Filesystem: "ram"},
		OpenFn: func() (blockdev.Device, error) {
			fix.opened++
			return fix.dev, nil
		},
	}
	return fix
}

func (fix *runFixture) runner(t *testing.T, cfg Config) *Runner {
	log, _ := test.NewNullLogger()
	cfg.Log, cfg.Clock = log, fix.clock
	if cfg.Mitigator == nil {
		cfg.Mitigator = &stubMitigator{readMode: CacheDropped, writeMode: WriteDSync}
	}
	rnr, err := NewRunner(cfg)
	require.NoError(t, err)
	return rnr
}

func mustProfile(t *testing.T, specs ...TestSpec) TestProfile {
	prof, err := NewProfile(ProfileCustom, specs...)
	require.NoError(t, err)
	return prof
}

func TestRunComplete(t *testing.T) {
	fix := newRunFixture(16 * mib)
	fix.dev.ReadLatency, fix.dev.WriteLatency = time.Millisecond, 2*time.Millisecond

	evictDir := t.TempDir()
	log, _ := test.NewNullLogger()
	rnr := fix.runner(t, Config{Mitigator: NewMitigator(256*1024, evictDir, log)})

	prof := mustProfile(t,
		TestSpec{Kind: KindSequentialWrite, BlockSize: mib, TotalBytes: 4 * mib, Iterations: 1},
		TestSpec{Kind: KindSequentialRead, BlockSize: mib, TotalBytes: 4 * mib, Iterations: 2},
		TestSpec{Kind: KindRandomReadLatency, BlockSize: 4096, OperationCount: 10},
		TestSpec{Kind: KindRandomWriteLatency, BlockSize: 4096, OperationCount: 10},
		TestSpec{Kind: KindRandomSeek, BlockSize: 4096, OperationCount: 10},
	)
	res, err := rnr.Run(testutil.CreateContext(t), fix.target, prof, 42)
	require.NoError(t, err)
	require.Equal(t, StateComplete, res.State)
	require.Empty(t, res.Failure)
	require.Equal(t, Region{Length: 16 * mib}, res.Region)
	require.EqualValues(t, 42, res.Seed)
	require.True(t, res.Finished.After(res.Started) || res.Finished.Equal(res.Started))

	require.Len(t, res.Tests, 5)
	for i, spec := range prof.Tests {
		require.Equal(t, spec.Kind, res.Tests[i].Kind, "results keep execution order")
		require.Zero(t, res.Tests[i].FailedCount)
		require.False(t, res.Tests[i].Inconclusive)
		require.False(t, res.Tests[i].BestEffort)
	}

	seqWrite, seqRead := res.Tests[0], res.Tests[1]
	require.Equal(t, WriteFlushed, seqWrite.CacheMode)
	require.InDelta(t, 500, float64(seqWrite.Throughput), 1e-6) //4MB in 8ms
	require.Equal(t, CacheEvicted, seqRead.CacheMode)
	require.Equal(t, 8, seqRead.SampleCount)
	require.InDelta(t, 1000, float64(seqRead.Throughput), 1e-6) //8MB in 8ms, eviction excluded
	require.InDelta(t, 0.001, float64(res.Tests[2].Mean), 1e-12)
	require.InDelta(t, 0.002, float64(res.Tests[3].Mean), 1e-12)

	require.Equal(t, 1, fix.opened)
	_, err = fix.dev.ReadAt(make([]byte, 1), 0)
	require.Error(t, err, "device must be closed after the run")

	entries, err := os.ReadDir(evictDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunDeterministic(t *testing.T) {
	prof := mustProfile(t,
		TestSpec{Kind: KindRandomReadLatency, BlockSize: 4096, OperationCount: 50},
		TestSpec{Kind: KindRandomSeek, BlockSize: 4096, OperationCount: 50},
	)

	offsets := func(seed uint64) []int64 {
		fix := newRunFixture(4 * mib)
		var (
			mu   sync.Mutex
			seen []int64
		)
		fix.dev.FailRead = func(_, pos int64) bool {
			mu.Lock()
			seen = append(seen, pos)
			mu.Unlock()
			return false
		}
		_, err := fix.runner(t, Config{}).Run(testutil.CreateContext(t), fix.target, prof, seed)
		require.NoError(t, err)
		return seen
	}

	first := offsets(42)
	require.Len(t, first, 100)
	require.Equal(t, first, offsets(42))
	require.NotEqual(t, first, offsets(43))
}

func TestRunAccessDenied(t *testing.T) {
	for name, tc := range map[string]struct {
		openErr error
		expect  error
	}{
		"permission": {fs.ErrPermission, ErrAccessDenied},
		"missing":    {fs.ErrNotExist, ErrDeviceUnavailable},
	} {
		t.Run(name, func(t *testing.T) {
			fix := newRunFixture(mib)
			target := blockdev.TargetFunc{
				ID: fix.target.Identity(),
				OpenFn: func() (blockdev.Device, error) {
					return nil, &fs.PathError{Op: "open", Path: "/dev/sdz", Err: tc.openErr}
				},
			}

			prof, err := BuiltinProfile(ProfileQuick)
			require.NoError(t, err)
			res, err := fix.runner(t, Config{}).Run(testutil.CreateContext(t), target, prof, 1)
			require.ErrorIs(t, err, tc.expect)

			var runErr *RunError
			require.True(t, errors.As(err, &runErr))
			require.Equal(t, StateOpening, runErr.State)
			require.Equal(t, -1, runErr.Test)

			require.NotNil(t, res)
			require.Equal(t, StateFailed, res.State)
			require.Empty(t, res.Tests)
			require.NotEmpty(t, res.Failure)
			require.Zero(t, fix.dev.Reads()+fix.dev.Writes()+fix.dev.Flushes(), "no I/O may be attempted")
		})
	}
}

func TestRunAbortThreshold(t *testing.T) {
	fix := newRunFixture(mib)
	fix.dev.FailRead = func(op, _ int64) bool { return op >= 10 && op < 16 } //6 of test 1's 10 reads
	rnr := fix.runner(t, Config{AbortThreshold: 0.5})

	prof := mustProfile(t,
		TestSpec{Kind: KindRandomReadLatency, BlockSize: 4096, OperationCount: 10},
		TestSpec{Kind: KindRandomSeek, BlockSize: 4096, OperationCount: 10},
		TestSpec{Kind: KindRandomReadLatency, BlockSize: 4096, OperationCount: 10},
	)
	res, err := rnr.Run(testutil.CreateContext(t), fix.target, prof, 42)
	require.ErrorIs(t, err, ErrAbortThresholdExceeded)

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	require.Equal(t, StateRunning, runErr.State)
	require.Equal(t, 1, runErr.Test)

	require.Equal(t, StateFailed, res.State)
	require.Len(t, res.Tests, 2, "the prior test and the aborting test are kept")
	require.Zero(t, res.Tests[0].FailedCount)
	require.Equal(t, 6, res.Tests[1].FailedCount)
	require.EqualValues(t, 20, fix.dev.Reads(), "the third test never ran")
}

func TestRunDefaultThreshold(t *testing.T) {
	prof := mustProfile(t,
		TestSpec{Kind: KindRandomWriteLatency, BlockSize: 4096, OperationCount: 10},
		TestSpec{Kind: KindRandomReadLatency, BlockSize: 4096, OperationCount: 10},
	)

	t.Run("some-failed", func(t *testing.T) {
		fix := newRunFixture(mib)
		fix.dev.FailWrite = testutil.FailEvery(10, 9)
		res, err := fix.runner(t, Config{}).Run(testutil.CreateContext(t), fix.target, prof, 5)
		require.NoError(t, err)
		require.Equal(t, StateComplete, res.State)
		require.Equal(t, 9, res.Tests[0].FailedCount)
		require.False(t, res.Tests[0].Inconclusive)
	})

	t.Run("all-failed", func(t *testing.T) {
		fix := newRunFixture(mib)
		fix.dev.FailWrite = testutil.FailAll
		res, err := fix.runner(t, Config{}).Run(testutil.CreateContext(t), fix.target, prof, 5)
		require.ErrorIs(t, err, ErrAbortThresholdExceeded)
		require.Len(t, res.Tests, 1)
		require.True(t, res.Tests[0].Inconclusive)
		require.True(t, res.Tests[0].Mean.IsNaN())
	})
}

func TestRunCancelled(t *testing.T) {
	fix := newRunFixture(mib)
	ctx, cancel := context.WithCancel(testutil.CreateContext(t))
	defer cancel()
	rnr := fix.runner(t, Config{Mitigator: &stubMitigator{readMode: CacheDirect, writeMode: WriteDSync, onRead: cancel}})

	prof := mustProfile(t,
		TestSpec{Kind: KindRandomReadLatency, BlockSize: 4096, OperationCount: 10},
		TestSpec{Kind: KindRandomSeek, BlockSize: 4096, OperationCount: 10},
	)
	res, err := rnr.Run(ctx, fix.target, prof, 1)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, StateFailed, res.State)
	require.Len(t, res.Tests, 1, "the test in flight when cancelled completes")
	require.EqualValues(t, 10, fix.dev.Reads())
}

func TestRunSetupErrors(t *testing.T) {
	t.Run("alignment", func(t *testing.T) {
		fix := newRunFixture(mib)
		target := blockdev.TargetFunc{ID: fix.target.Identity(), OpenFn: func() (blockdev.Device, error) {
			return directDevice{fix.dev}, nil
		}}
		prof := mustProfile(t, TestSpec{Kind: KindRandomReadLatency, BlockSize: 6144, OperationCount: 4})

		res, err := fix.runner(t, Config{}).Run(testutil.CreateContext(t), target, prof, 1)
		require.ErrorIs(t, err, ErrAlignment)
		require.Equal(t, StateFailed, res.State)
		require.Empty(t, res.Tests)
		require.Zero(t, fix.dev.Reads()+fix.dev.Writes())
	})

	t.Run("region-too-small", func(t *testing.T) {
		fix := newRunFixture(mib)
		prof := mustProfile(t, TestSpec{Kind: KindSequentialRead, BlockSize: mib, TotalBytes: 2 * mib})
		res, err := fix.runner(t, Config{}).Run(testutil.CreateContext(t), fix.target, prof, 1)
		require.ErrorIs(t, err, ErrInvalidProfile)
		require.Empty(t, res.Tests)
	})

	t.Run("region-outside-device", func(t *testing.T) {
		fix := newRunFixture(mib)
		prof := mustProfile(t, TestSpec{Kind: KindRandomSeek, BlockSize: 4096, OperationCount: 4})
		rnr := fix.runner(t, Config{Region: Region{Offset: mib / 2, Length: mib}})
		_, err := rnr.Run(testutil.CreateContext(t), fix.target, prof, 1)
		require.ErrorIs(t, err, ErrInvalidProfile)
	})
}

func TestRunBestEffort(t *testing.T) {
	fix := newRunFixture(mib)
	rnr := fix.runner(t, Config{Mitigator: &stubMitigator{
		readMode: CacheUnmitigated, readErr: ErrCacheBypassUnavailable,
		writeMode: WriteBuffered, writeErr: ErrCacheBypassUnavailable,
	}})
	prof := mustProfile(t,
		TestSpec{Kind: KindRandomWriteLatency, BlockSize: 4096, OperationCount: 5},
		TestSpec{Kind: KindSequentialRead, BlockSize: 64 * 1024, TotalBytes: 256 * 1024, Iterations: 3},
	)

	res, err := rnr.Run(testutil.CreateContext(t), fix.target, prof, 1)
	require.NoError(t, err)
	for _, tr := range res.Tests {
		require.True(t, tr.BestEffort)
		require.Len(t, tr.Warnings, 1, "a warning is recorded once per test")
	}
	require.Equal(t, WriteBuffered, res.Tests[0].CacheMode)
	require.Equal(t, CacheUnmitigated, res.Tests[1].CacheMode)
}

func TestRunRegionLanes(t *testing.T) {
	fix := newRunFixture(8 * mib)
	var (
		mu     sync.Mutex
		writes []int64
		reads  []int64
	)
	fix.dev.FailWrite = func(_, pos int64) bool { mu.Lock(); writes = append(writes, pos); mu.Unlock(); return false }
	fix.dev.FailRead = func(_, pos int64) bool { mu.Lock(); reads = append(reads, pos); mu.Unlock(); return false }

	rnr := fix.runner(t, Config{Region: Region{Offset: mib, Length: 6 * mib}})
	prof := mustProfile(t,
		TestSpec{Kind: KindSequentialWrite, BlockSize: mib, TotalBytes: 2 * mib},
		TestSpec{Kind: KindSequentialRead, BlockSize: mib, TotalBytes: 3 * mib},
	)
	_, err := rnr.Run(testutil.CreateContext(t), fix.target, prof, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{mib, 2 * mib}, writes)
	require.Equal(t, []int64{3 * mib, 4 * mib, 5 * mib}, reads, "sequential tests get disjoint lanes")
}
