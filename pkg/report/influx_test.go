package report

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarndt/flashbench/pkg/devices/testutil"
)

func TestInfluxSink(t *testing.T) {
	var (
		mu    sync.Mutex
		query string
		lines []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		query = r.URL.RawQuery
		lines = append(lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "lab", "drives")
	defer sink.Close()

	rep := NewReport(testEpoch, sampleResult("fast", 0.001, false), sampleResult("slow", 0.003, true))
	require.NoError(t, sink.Publish(testutil.CreateContext(t), rep))

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, query, "org=lab")
	require.Contains(t, query, "bucket=drives")
	require.Len(t, lines, 6, "one run point plus one per test for each device")

	var runs, tests int
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, MeasurementRun+","):
			runs++
			require.Contains(t, line, `state="complete"`)
		case strings.HasPrefix(line, MeasurementTest+","):
			tests++
			require.Contains(t, line, "filesystem=vfat")
			if strings.Contains(line, "device=slow") && strings.Contains(line, "kind=random_read_latency") {
				require.NotContains(t, line, "mean_s=", "NaN statistics are omitted")
				require.Contains(t, line, "inconclusive=true")
			}
		default:
			t.Fatalf("Unexpected line protocol: %q", line)
		}
	}
	require.Equal(t, 2, runs)
	require.Equal(t, 4, tests)
}

func TestPoints(t *testing.T) {
	points := Points(NewReport(testEpoch, sampleResult("fast", 0.001, false)))
	require.Len(t, points, 3)
	require.Equal(t, MeasurementRun, points[0].Name())
	require.Equal(t, MeasurementTest, points[1].Name())
}
