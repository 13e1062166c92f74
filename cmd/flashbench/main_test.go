package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarndt/flashbench/pkg/bench"
	"github.com/tarndt/flashbench/pkg/blockdev"
	"github.com/tarndt/flashbench/pkg/devices/ramdisk"
	"github.com/tarndt/flashbench/pkg/report"
)

const smokeProfile = `name: smoke
tests:
  - kind: sequential_write
    block_size: 64KiB
    total_bytes: 1MiB
  - kind: random_read_latency
    block_size: 4KiB
    operation_count: 20
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--log-level", "error"))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeProfile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smokeProfile), 0600))
	return path
}

func TestRunAndCompare(t *testing.T) {
	jsonPath := filepath.Join(t.TempDir(), "report.json")
	out, err := execute(t, "run", "--seed", "7", "--parallel", "2", "--profile-file", writeProfile(t),
		"--evict-dir", t.TempDir(), "--json", jsonPath, "mem:8MiB", "mem:16MiB")
	require.NoError(t, err)
	require.Contains(t, out, `Device "mem:8MiB"`)
	require.Contains(t, out, `Device "mem:16MiB"`)
	require.Contains(t, out, "RANK")

	file, err := os.Open(jsonPath)
	require.NoError(t, err)
	defer file.Close()
	results, err := report.ReadResults(file)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		require.Equal(t, bench.StateComplete, res.State)
		require.EqualValues(t, 7, res.Seed)
		require.Len(t, res.Tests, 2)
	}

	out, err = execute(t, "compare", jsonPath)
	require.NoError(t, err)
	require.Contains(t, out, bench.KindSequentialWrite.String())
	require.Contains(t, out, bench.KindRandomReadLatency.String())

	//a lone result has nothing to be compared with
	lone := filepath.Join(t.TempDir(), "lone.json")
	loneFile, err := os.Create(lone)
	require.NoError(t, err)
	require.NoError(t, report.NewReport(results[0].Finished, results[0]).WriteJSON(loneFile))
	require.NoError(t, loneFile.Close())
	_, err = execute(t, "compare", lone)
	require.Error(t, err)
}

func TestRunReportsUnavailableTargets(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "unplugged")
	out, err := execute(t, "run", "--profile-file", writeProfile(t), "--json", "-", "mem:8MiB", missing)
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 of 2")
	require.Contains(t, out, "Failure:")

	jsonStart := strings.Index(out, "{\n")
	require.GreaterOrEqual(t, jsonStart, 0)
	results, err := report.ReadResults(strings.NewReader(out[jsonStart:]))
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, bench.StateComplete, results[0].State)
	require.Equal(t, bench.StateFailed, results[1].State)
	require.Empty(t, results[1].Tests)
}

func TestRunRejectsBadFlags(t *testing.T) {
	_, err := execute(t, "run", "--parallel", "0", "mem:8MiB")
	require.Error(t, err)
	_, err = execute(t, "run")
	require.Error(t, err)
	_, err = execute(t, "run", "--log-format", "xml", "mem:8MiB")
	require.Error(t, err)
}

func TestRunAllKeepsTargetOrder(t *testing.T) {
	rnr, err := bench.NewRunner(bench.Config{})
	require.NoError(t, err)
	prof, err := bench.NewProfile("tiny", bench.TestSpec{Kind: bench.KindRandomSeek, BlockSize: 4096, OperationCount: 8})
	require.NoError(t, err)

	labels := []string{"a", "b", "c", "d", "e"}
	targets := make([]blockdev.Target, len(labels))
	for i, label := range labels {
		targets[i] = ramdisk.NewTarget(label, 1<<20)
	}

	results := runAll(context.Background(), rnr, targets, prof, 99, 2)
	require.Len(t, results, len(labels))
	for i, res := range results {
		require.Equal(t, labels[i], res.Device.Label)
		require.Equal(t, bench.StateComplete, res.State)
	}
}

func TestProfiles(t *testing.T) {
	out, err := execute(t, "profiles")
	require.NoError(t, err)
	for _, name := range bench.ProfileNames() {
		require.Contains(t, out, name)
	}
	require.Contains(t, out, "60 MiB")
}
