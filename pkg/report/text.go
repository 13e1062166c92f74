package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tarndt/flashbench/pkg/bench"
)

const notAvailable = "-"

func newTable(wtr io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(wtr, 0, 4, 2, ' ', 0)
}

func millis(s bench.Stat) string {
	if s.IsNaN() {
		return notAvailable
	}
	return fmt.Sprintf("%.3f", float64(s)*1000)
}

func mbps(s bench.Stat) string {
	if s.IsNaN() {
		return notAvailable
	}
	return fmt.Sprintf("%.2f", float64(s))
}

func describeSpec(spec bench.TestSpec) string {
	bs := humanize.IBytes(uint64(spec.BlockSize))
	if spec.TotalBytes > 0 {
		return fmt.Sprintf("%s x %s blocks, %d iter", humanize.IBytes(uint64(spec.TotalBytes)), bs, spec.Iterations)
	}
	return fmt.Sprintf("%d x %s ops, %d iter", spec.OperationCount, bs, spec.Iterations)
}

//WriteSummary writes a human readable summary of one device's results,
// latencies in milliseconds and throughput in MB/s
func WriteSummary(wtr io.Writer, res *bench.DeviceResult) error {
	dev := res.Device
	fmt.Fprintf(wtr, "Device %q (%s, %s, id %s)\n", dev.Label, humanize.IBytes(uint64(max(dev.Capacity, 0))), dev.Filesystem, dev.ID)
	fmt.Fprintf(wtr, "Profile %q, seed %d, region %s at offset %d: %s",
		res.Profile.Name, res.Seed, humanize.IBytes(uint64(max(res.Region.Length, 0))), res.Region.Offset, res.State)
	if !res.Finished.IsZero() {
		fmt.Fprintf(wtr, " in %s", res.Finished.Sub(res.Started).Round(time.Millisecond))
	}
	fmt.Fprintln(wtr)
	if res.Failure != "" {
		fmt.Fprintf(wtr, "Failure: %s\n", res.Failure)
	}

	tbl := newTable(wtr)
	fmt.Fprintln(tbl, "TEST\tPARAMETERS\tMB/s\tMEAN ms\tMEDIAN ms\tMIN ms\tMAX ms\tP95 ms\tFAILED\tCACHE\t")
	for _, tr := range res.Tests {
		cache := string(tr.CacheMode)
		if tr.BestEffort {
			cache += " (best-effort)"
		}
		name := tr.Kind.String()
		if tr.Inconclusive {
			name += " (inconclusive)"
		}
		fmt.Fprintf(tbl, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\t\n",
			name, describeSpec(tr.Spec), mbps(tr.Throughput), millis(tr.Mean), millis(tr.Median),
			millis(tr.Min), millis(tr.Max), millis(tr.P95), tr.FailedCount, tr.SampleCount, cache)
	}
	if err := tbl.Flush(); err != nil {
		return fmt.Errorf("Could not write summary: %w", err)
	}

	for _, tr := range res.Tests {
		for _, warning := range tr.Warnings {
			fmt.Fprintf(wtr, "Warning (%s): %s\n", tr.Kind, warning)
		}
	}
	return nil
}

//WriteComparison writes a ranking table per test kind
func WriteComparison(wtr io.Writer, cs *bench.ComparisonSet) error {
	tbl := newTable(wtr)
	fmt.Fprintln(tbl, "TEST\tRANK\tDEVICE\tVALUE\tBEHIND BEST\t")
	for _, row := range cs.Rows {
		unit, format := "ms", millis
		if row.HigherIsBetter {
			unit, format = "MB/s", mbps
		}
		for _, entry := range row.Entries {
			behind := notAvailable
			if !entry.RelativeDiff.IsNaN() {
				behind = fmt.Sprintf("%.1f%%", float64(entry.RelativeDiff)*100)
			}
			fmt.Fprintf(tbl, "%s\t%d\t%s\t%s %s\t%s\t\n", row.Kind, entry.Rank, entry.Device.Label, format(entry.Value), unit, behind)
		}
	}
	if err := tbl.Flush(); err != nil {
		return fmt.Errorf("Could not write comparison: %w", err)
	}

	for _, nc := range cs.NotComparable {
		labels := make([]string, len(nc.Devices))
		for i, dev := range nc.Devices {
			labels[i] = dev.Label
		}
		fmt.Fprintf(wtr, "Not comparable: %s only ran on %s\n", nc.Kind, strings.Join(labels, ", "))
	}
	return nil
}
