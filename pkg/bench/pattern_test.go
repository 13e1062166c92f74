package bench

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatternRandomUniqueAligned(t *testing.T) {
	const region = 1024 * 1024

	spec := TestSpec{Kind: KindRandomReadLatency, BlockSize: 4096, OperationCount: 100, Iterations: 1}
	pat, err := NewPattern(spec, Region{Length: region}, 42)
	require.NoError(t, err)
	require.False(t, pat.WithReplacement())

	ops := pat.Offsets()
	require.Len(t, ops, 100)

	seen := make(map[int64]bool, len(ops))
	for _, op := range ops {
		require.Zero(t, op.Offset%4096, "offset %d is not block aligned", op.Offset)
		require.GreaterOrEqual(t, op.Offset, int64(0))
		require.LessOrEqual(t, op.Offset, int64(region-4096))
		require.Equal(t, 4096, op.Size)
		require.False(t, seen[op.Offset], "offset %d repeated", op.Offset)
		seen[op.Offset] = true
	}
}

func TestPatternDeterminism(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			spec := TestSpec{Kind: kind, BlockSize: 4096, OperationCount: 64, Iterations: 2}
			lane := Region{Offset: 8192, Length: 1024 * 1024}

			first, err := NewPattern(spec, lane, 7)
			require.NoError(t, err)
			second, err := NewPattern(spec, lane, 7)
			require.NoError(t, err)
			require.Equal(t, first.Offsets(), second.Offsets())

			//restartable: a second iterator over the same pattern agrees
			require.Equal(t, first.Offsets(), first.Offsets())

			if !kind.Sequential() {
				other, err := NewPattern(spec, lane, 8)
				require.NoError(t, err)
				require.NotEqual(t, first.Offsets(), other.Offsets())
			}
		})
	}
}

func TestPatternSequential(t *testing.T) {
	spec := TestSpec{Kind: KindSequentialWrite, BlockSize: 1024 * 1024, TotalBytes: 4 * 1024 * 1024, Iterations: 2}
	lane := Region{Offset: 3 * 1024 * 1024, Length: 4 * 1024 * 1024}
	pat, err := NewPattern(spec, lane, 1)
	require.NoError(t, err)
	require.Equal(t, 8, pat.Len())
	require.Equal(t, 4, pat.OpsPerIteration())

	ops := pat.Offsets()
	for i, op := range ops {
		require.Equal(t, lane.Offset+int64(i%4)*spec.BlockSize, op.Offset)
		require.Equal(t, int(spec.BlockSize), op.Size)
	}
}

func TestPatternWithReplacement(t *testing.T) {
	spec := TestSpec{Kind: KindRandomSeek, BlockSize: 4096, OperationCount: 8, Iterations: 3}
	pat, err := NewPattern(spec, Region{Length: 16 * 4096}, 3)
	require.NoError(t, err)
	require.True(t, pat.WithReplacement(), "24 operations over 16 blocks must degrade")

	ops := pat.Offsets()
	require.Len(t, ops, 24)
	for _, op := range ops {
		require.Less(t, op.Offset, int64(16*4096))
	}
}

func TestPatternExhaustsRegion(t *testing.T) {
	spec := TestSpec{Kind: KindRandomWriteLatency, BlockSize: 4096, OperationCount: 32, Iterations: 1}
	pat, err := NewPattern(spec, Region{Length: 32 * 4096}, 99)
	require.NoError(t, err)
	require.False(t, pat.WithReplacement())

	seen := make(map[int64]bool)
	for _, op := range pat.Offsets() {
		seen[op.Offset] = true
	}
	require.Len(t, seen, 32, "a full permutation visits every block once")
}

func TestPatternTooLarge(t *testing.T) {
	spec := TestSpec{Kind: KindRandomReadLatency, BlockSize: 4096, OperationCount: 300, Iterations: 1}
	_, err := NewPattern(spec, Region{Length: 1024 * 1024}, 42)
	require.ErrorIs(t, err, ErrInvalidProfile)
}
