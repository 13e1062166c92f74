package bench

import (
	"fmt"
	"sort"

	"github.com/tarndt/flashbench/pkg/blockdev"
)

//Metric names the statistic a comparison row ranks by
type Metric string

const (
	MetricThroughput  Metric = "throughput_mb_s"
	MetricMeanLatency Metric = "mean_latency_s"
)

//RankedEntry is one device's standing for a test kind. RelativeDiff is how far
// behind the best device it is as a fraction of the best value; zero for the
// best and NaN when the device's result was inconclusive or the best is zero.
type RankedEntry struct {
	Device       blockdev.Identity `json:"device"`
	Value        Stat              `json:"value"`
	Rank         int               `json:"rank"`
	RelativeDiff Stat              `json:"relative_diff"`
}

//ComparisonRow ranks every device for one test kind, best first
type ComparisonRow struct {
	Kind           TestKind      `json:"kind"`
	Metric         Metric        `json:"metric"`
	HigherIsBetter bool          `json:"higher_is_better"`
	Entries        []RankedEntry `json:"entries"`
}

//NotComparable lists a kind only some devices ran
type NotComparable struct {
	Kind    TestKind            `json:"kind"`
	Devices []blockdev.Identity `json:"devices"`
}

//ComparisonSet is a view derived from two or more DeviceResults, it holds
// copies of the figures it needs and is simply recomputed when inputs change
type ComparisonSet struct {
	Devices       []blockdev.Identity `json:"devices"`
	Rows          []ComparisonRow     `json:"rows"`
	NotComparable []NotComparable     `json:"not_comparable,omitempty"`
}

//Row returns the row for the provided kind
func (cs *ComparisonSet) Row(kind TestKind) (*ComparisonRow, bool) {
	for i := range cs.Rows {
		if cs.Rows[i].Kind == kind {
			return &cs.Rows[i], true
		}
	}
	return nil, false
}

//Compare ranks devices per test kind. Sequential kinds rank by throughput,
// descending; latency and seek kinds by mean latency, ascending. Ties share a
// rank (1, 1, 3). Only the first result of each kind per device is used.
func Compare(results ...*DeviceResult) (*ComparisonSet, error) {
	if len(results) < 2 {
		return nil, fmt.Errorf("Could not compare %d device results: at least two are required", len(results))
	}

	cs := &ComparisonSet{Devices: make([]blockdev.Identity, len(results))}
	for i, res := range results {
		if res == nil {
			return nil, fmt.Errorf("Could not compare device results: result %d is nil", i)
		}
		cs.Devices[i] = res.Device
	}

	for _, kind := range Kinds() {
		var (
			entries []RankedEntry
			have    []blockdev.Identity
		)
		for _, res := range results {
			if tr, found := res.Test(kind); found {
				have = append(have, res.Device)
				entries = append(entries, RankedEntry{Device: res.Device, Value: tr.Statistic()})
			}
		}

		switch len(have) {
		case 0:
			continue
		case len(results):
			cs.Rows = append(cs.Rows, rankRow(kind, entries))
		default:
			cs.NotComparable = append(cs.NotComparable, NotComparable{Kind: kind, Devices: have})
		}
	}
	return cs, nil
}

func rankRow(kind TestKind, entries []RankedEntry) ComparisonRow {
	row := ComparisonRow{Kind: kind, Metric: MetricMeanLatency, HigherIsBetter: kind.Sequential()}
	if row.HigherIsBetter {
		row.Metric = MetricThroughput
	}

	better := func(a, b Stat) bool {
		if row.HigherIsBetter {
			return a > b
		}
		return a < b
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Value, entries[j].Value
		if a.IsNaN() || b.IsNaN() {
			return !a.IsNaN() && b.IsNaN()
		}
		return better(a, b)
	})

	best := entries[0].Value
	for i := range entries {
		entry := &entries[i]
		switch {
		case entry.Value.IsNaN():
			entry.Rank, entry.RelativeDiff = len(entries), NaN()
			continue
		case i > 0 && entries[i-1].Value == entry.Value:
			entry.Rank = entries[i-1].Rank
		default:
			entry.Rank = i + 1
		}

		switch {
		case entry.Value == best:
			entry.RelativeDiff = 0
		case best == 0: //no relative distance from a zero best
			entry.RelativeDiff = NaN()
		case row.HigherIsBetter:
			entry.RelativeDiff = (best - entry.Value) / best
		default:
			entry.RelativeDiff = (entry.Value - best) / best
		}
	}
	row.Entries = entries
	return row
}
