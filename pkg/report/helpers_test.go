package report

import (
	"time"

	"github.com/tarndt/flashbench/pkg/bench"
	"github.com/tarndt/flashbench/pkg/blockdev"
)

var testEpoch = time.Date(2024, time.March, 9, 10, 30, 0, 0, time.UTC)

func sampleResult(label string, latency float64, failAll bool) *bench.DeviceResult {
	seqSpec := bench.TestSpec{Kind: bench.KindSequentialRead, BlockSize: 1 << 20, TotalBytes: 4 << 20, Iterations: 1}
	latSpec := bench.TestSpec{Kind: bench.KindRandomReadLatency, BlockSize: 4096, OperationCount: 3, Iterations: 1}

	var seq, lat []bench.Sample
	for i := 0; i < 4; i++ {
		seq = append(seq, bench.Sample{Offset: int64(i) << 20, Size: 1 << 20, Start: float64(i) * latency * 10, Duration: latency * 10, Succeeded: true})
	}
	for i := 0; i < 3; i++ {
		lat = append(lat, bench.Sample{Offset: int64(i) * 4096, Size: 4096, Start: float64(i) * latency, Duration: latency, Succeeded: !failAll})
	}

	prof, _ := bench.NewProfile(bench.ProfileCustom, seqSpec, latSpec)
	res := &bench.DeviceResult{
		Device:   blockdev.Identity{ID: blockdev.Fingerprint(label), Label: label, Capacity: 16 << 30, Filesystem: "vfat", Path: "/media/" + label},
		Profile:  prof,
		Seed:     42,
		Region:   bench.Region{Length: 64 << 20},
		State:    bench.StateComplete,
		Started:  testEpoch,
		Finished: testEpoch.Add(3 * time.Second),
		Tests:    []bench.TestResult{bench.Aggregate(seqSpec, seq), bench.Aggregate(latSpec, lat)},
	}
	res.Tests[0].CacheMode = bench.CacheDirect
	res.Tests[1].CacheMode = bench.CacheEvicted
	return res
}
