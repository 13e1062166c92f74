package report

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tarndt/flashbench/pkg/bench"
)

//Influx measurement names
const (
	MeasurementTest = "flashbench_test"
	MeasurementRun  = "flashbench_run"
)

//InfluxSink writes one point per device run and one per test to InfluxDB so
// drives can be tracked over time in dashboards
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

var _ Sink = (*InfluxSink)(nil)

//NewInfluxSink creates a sink writing to bucket of org at url
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

//Publish fufills Sink
func (sink *InfluxSink) Publish(ctx context.Context, rep *Report) error {
	points := Points(rep)
	if len(points) < 1 {
		return nil
	}
	if err := sink.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("Could not write %d points to InfluxDB: %w", len(points), err)
	}
	return nil
}

//Close fufills Sink
func (sink *InfluxSink) Close() error {
	sink.client.Close()
	return nil
}

//Points converts a report to InfluxDB points, undefined statistics are left
// out since InfluxDB has no NaN
func Points(rep *Report) []*write.Point {
	var points []*write.Point
	for _, res := range rep.Results {
		ts := res.Finished
		if ts.IsZero() {
			ts = rep.Generated
		}
		tags := map[string]string{
			"device_id":  res.Device.ID,
			"device":     res.Device.Label,
			"filesystem": res.Device.Filesystem,
			"profile":    res.Profile.Name,
		}

		run := influxdb2.NewPointWithMeasurement(MeasurementRun).
			AddField("state", res.State.String()).
			AddField("tests", len(res.Tests)).
			AddField("capacity_bytes", res.Device.Capacity).
			AddField("seed", res.Seed).
			SetTime(ts)
		if !res.Finished.IsZero() {
			run.AddField("duration_s", res.Finished.Sub(res.Started).Seconds())
		}
		for key, val := range tags {
			run.AddTag(key, val)
		}
		points = append(points, run)

		for i := range res.Tests {
			tr := &res.Tests[i]
			fields := map[string]interface{}{
				"sample_count":     tr.SampleCount,
				"failed_count":     tr.FailedCount,
				"bytes":            tr.Bytes,
				"inconclusive":     tr.Inconclusive,
				"best_effort":      tr.BestEffort,
				"with_replacement": tr.WithReplacement,
				"block_size":       tr.Spec.BlockSize,
			}
			for name, stat := range map[string]bench.Stat{
				"mean_s":          tr.Mean,
				"median_s":        tr.Median,
				"min_s":           tr.Min,
				"max_s":           tr.Max,
				"p95_s":           tr.P95,
				"throughput_mb_s": tr.Throughput,
			} {
				if !stat.IsNaN() {
					fields[name] = float64(stat)
				}
			}

			testTags := make(map[string]string, len(tags)+3)
			for key, val := range tags {
				testTags[key] = val
			}
			testTags["kind"] = tr.Kind.String()
			testTags["cache_mode"] = string(tr.CacheMode)
			testTags["test"] = fmt.Sprint(i)

			points = append(points, influxdb2.NewPoint(MeasurementTest, testTags, fields, ts))
		}
	}
	return points
}
