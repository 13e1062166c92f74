package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tarndt/flashbench/pkg/bench"
)

//Report is everything one invocation produced: a result per benchmarked device
// and, with two or more complete results, their comparison
type Report struct {
	Generated  time.Time             `json:"generated"`
	Results    []*bench.DeviceResult `json:"results"`
	Comparison *bench.ComparisonSet  `json:"comparison,omitempty"`
}

//NewReport assembles a report, comparing results when at least two completed
func NewReport(generated time.Time, results ...*bench.DeviceResult) *Report {
	rep := &Report{Generated: generated, Results: results}

	var complete []*bench.DeviceResult
	for _, res := range results {
		if res != nil && res.State == bench.StateComplete {
			complete = append(complete, res)
		}
	}
	if len(complete) > 1 {
		rep.Comparison, _ = bench.Compare(complete...) //two or more inputs can't fail
	}
	return rep
}

//WriteJSON writes the report as indented JSON
func (rep *Report) WriteJSON(wtr io.Writer) error {
	enc := json.NewEncoder(wtr)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("Could not encode report: %w", err)
	}
	return nil
}

//ReadResults reads device results from JSON: a whole Report, an array of
// DeviceResults or a single DeviceResult
func ReadResults(rdr io.Reader) ([]*bench.DeviceResult, error) {
	data, err := io.ReadAll(rdr)
	if err != nil {
		return nil, fmt.Errorf("Could not read results: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) < 1 {
		return nil, fmt.Errorf("Could not read results: no data")
	}

	if data[0] == '[' {
		var results []*bench.DeviceResult
		if err = json.Unmarshal(data, &results); err != nil {
			return nil, fmt.Errorf("Could not decode result list: %w", err)
		}
		return results, nil
	}

	var peek struct {
		Results json.RawMessage `json:"results"`
	}
	if err = json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("Could not decode results: %w", err)
	}
	if peek.Results != nil {
		var rep Report
		if err = json.Unmarshal(data, &rep); err != nil {
			return nil, fmt.Errorf("Could not decode report: %w", err)
		}
		return rep.Results, nil
	}

	var res bench.DeviceResult
	if err = json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("Could not decode device result: %w", err)
	}
	return []*bench.DeviceResult{&res}, nil
}
