package bench

import (
	"math"
	"sort"
)

//bytesPerMB is the MB of reported MB/s: 1 MB = 2^20 bytes
const bytesPerMB = mib

//Aggregate reduces the samples of one test to its statistics. Failed samples
// only count towards FailedCount. The result does not depend on sample order.
func Aggregate(spec TestSpec, samples []Sample) TestResult {
	res := TestResult{
		Kind:        spec.Kind,
		Spec:        spec,
		SampleCount: len(samples),
		Mean:        NaN(),
		Median:      NaN(),
		Min:         NaN(),
		Max:         NaN(),
		P95:         NaN(),
		Throughput:  NaN(),
	}

	durations := make([]float64, 0, len(samples))
	firstStart, lastEnd := math.Inf(1), math.Inf(-1)
	for _, smpl := range samples {
		if !smpl.Succeeded {
			res.FailedCount++
			continue
		}
		durations = append(durations, smpl.Duration)
		res.Bytes += int64(smpl.Size)
		firstStart = math.Min(firstStart, smpl.Start)
		lastEnd = math.Max(lastEnd, smpl.End())
	}
	if len(durations) < 1 {
		res.Inconclusive = true
		return res
	}

	sort.Float64s(durations)
	var sum float64
	for _, d := range durations {
		sum += d
	}
	res.Mean = Stat(sum / float64(len(durations)))
	res.Median = Stat(Percentile(durations, 0.5))
	res.Min = Stat(durations[0])
	res.Max = Stat(durations[len(durations)-1])
	res.P95 = Stat(Percentile(durations, 0.95))

	if span := lastEnd - firstStart; span > 0 {
		res.Throughput = Stat(float64(res.Bytes) / bytesPerMB / span)
	}
	return res
}

//Percentile of sorted values using linear interpolation between the closest
// ranks, p is in [0, 1]
func Percentile(sorted []float64, p float64) float64 {
	switch n := len(sorted); {
	case n == 0:
		return math.NaN()
	case n == 1 || p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}

	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := min(lo+1, len(sorted)-1)
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

//exceedsAbortThreshold reports if failed of total operations is too many. A
// threshold outside (0, 1) means only a test where everything failed aborts.
func exceedsAbortThreshold(threshold float64, failed, total int) bool {
	if total < 1 {
		return false
	}
	if threshold <= 0 || threshold >= 1 {
		return failed == total
	}
	return float64(failed)/float64(total) > threshold
}
