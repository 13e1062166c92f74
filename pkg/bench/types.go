package bench

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/tarndt/flashbench/pkg/blockdev"
)

//TestKind identifies the I/O pattern a test exercises
type TestKind uint8

const (
	KindUnknown TestKind = iota
	KindSequentialRead
	KindSequentialWrite
	KindRandomReadLatency
	KindRandomWriteLatency
	KindRandomSeek
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindSequentialRead:     "sequential_read",
	KindSequentialWrite:    "sequential_write",
	KindRandomReadLatency:  "random_read_latency",
	KindRandomWriteLatency: "random_write_latency",
	KindRandomSeek:         "random_seek",
}

//Kinds lists every valid kind in presentation order
func Kinds() []TestKind {
	return []TestKind{KindSequentialRead, KindSequentialWrite, KindRandomReadLatency, KindRandomWriteLatency, KindRandomSeek}
}

//ParseKind parses the name of a kind
func ParseKind(name string) (TestKind, error) {
	for kind, kindName := range kindNames {
		if kind != int(KindUnknown) && kindName == name {
			return TestKind(kind), nil
		}
	}
	return KindUnknown, fmt.Errorf("Could not parse test kind %q: %w", name, ErrInvalidProfile)
}

func (tk TestKind) String() string {
	if int(tk) < len(kindNames) {
		return kindNames[tk]
	}
	return "kind(" + strconv.Itoa(int(tk)) + ")"
}

//Sequential kinds walk contiguous offsets and are judged by throughput
func (tk TestKind) Sequential() bool {
	return tk == KindSequentialRead || tk == KindSequentialWrite
}

//Write kinds modify the device
func (tk TestKind) Write() bool {
	return tk == KindSequentialWrite || tk == KindRandomWriteLatency
}

//MarshalText fufills encoding.TextMarshaler (JSON and YAML)
func (tk TestKind) MarshalText() ([]byte, error) {
	return []byte(tk.String()), nil
}

//UnmarshalText fufills encoding.TextUnmarshaler (JSON and YAML), accepting
// everything MarshalText produces for valid and zero kinds
func (tk *TestKind) UnmarshalText(text []byte) (err error) {
	if string(text) == kindNames[KindUnknown] {
		*tk = KindUnknown
		return nil
	}
	*tk, err = ParseKind(string(text))
	return err
}

//Stat is a statistic which may be NaN when undefined, NaN encodes as JSON null.
// Latencies are in seconds and throughput in MB/s.
type Stat float64

//NaN is the undefined statistic
func NaN() Stat { return Stat(math.NaN()) }

//IsNaN reports if the statistic is undefined
func (s Stat) IsNaN() bool { return math.IsNaN(float64(s)) }

//MarshalJSON fufills json.Marshaler
func (s Stat) MarshalJSON() ([]byte, error) {
	if s.IsNaN() || math.IsInf(float64(s), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(s))
}

//UnmarshalJSON fufills json.Unmarshaler
func (s *Stat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = NaN()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Stat(f)
	return nil
}

//Sample is the outcome of a single timed operation. Start is the position on
// the test's measurement timeline, which excludes time spent on cache
// mitigation. Failed samples have a zero duration.
type Sample struct {
	Offset    int64   `json:"offset"`
	Size      int     `json:"size"`
	Start     float64 `json:"start"`
	Duration  float64 `json:"duration"`
	Succeeded bool    `json:"succeeded"`
}

//End is the position on the measurement timeline the operation completed at
func (s Sample) End() float64 {
	return s.Start + s.Duration
}

//CacheMode records how OS caching was neutralized for a test
type CacheMode string

const (
	//CacheDirect the device was opened bypassing the page cache
	CacheDirect CacheMode = "direct"
	//CacheDropped the region was dropped from the page cache
	CacheDropped CacheMode = "dropped"
	//CacheEvicted unrelated traffic was pushed through the cache to evict the region
	CacheEvicted CacheMode = "evicted"
	//CacheUnmitigated nothing could be done, results may reflect cached I/O
	CacheUnmitigated CacheMode = "unmitigated"
	//WriteDSync every write completes once durable
	WriteDSync CacheMode = "dsync"
	//WriteFlushed every write is followed by a flush inside the timed operation
	WriteFlushed CacheMode = "flushed"
	//WriteBuffered writes may complete into the OS cache
	WriteBuffered CacheMode = "buffered"
)

//TestResult is the aggregate of one executed TestSpec. All latency statistics
// are in seconds and are NaN (null in JSON) when no sample succeeded.
type TestResult struct {
	Kind TestKind `json:"kind"`
	Spec TestSpec `json:"spec"`

	SampleCount int   `json:"sample_count"`
	FailedCount int   `json:"failed_count"`
	Mean        Stat  `json:"mean"`
	Median      Stat  `json:"median"`
	Min         Stat  `json:"min"`
	Max         Stat  `json:"max"`
	P95         Stat  `json:"p95"`
	Throughput  Stat  `json:"throughput_mb_s"`
	Bytes       int64 `json:"bytes_transferred"`

	Inconclusive bool `json:"inconclusive"`
	//CacheMode is how caching was handled, BestEffort is set when caching could
	// not be neutralized and the numbers may be optimistic
	CacheMode  CacheMode `json:"cache_mode"`
	BestEffort bool      `json:"best_effort"`
	//WithReplacement is set when a random test had more operations than distinct
	// block slots and offsets were sampled with replacement
	WithReplacement bool     `json:"with_replacement"`
	Warnings        []string `json:"warnings,omitempty"`
}

//Statistic is the figure used to compare this result: throughput for
// sequential kinds, mean latency otherwise
func (tr *TestResult) Statistic() Stat {
	if tr.Kind.Sequential() {
		return tr.Throughput
	}
	return tr.Mean
}

//RunState is the lifecycle state of a benchmark run
type RunState uint8

const (
	StateIdle RunState = iota
	StateOpening
	StateRunning
	StateFinalizing
	StateComplete
	StateFailed
)

var stateNames = [...]string{"idle", "opening", "running", "finalizing", "complete", "failed"}

func (rs RunState) String() string {
	if int(rs) < len(stateNames) {
		return stateNames[rs]
	}
	return "state(" + strconv.Itoa(int(rs)) + ")"
}

//Terminal states are never left
func (rs RunState) Terminal() bool {
	return rs == StateComplete || rs == StateFailed
}

//MarshalText fufills encoding.TextMarshaler
func (rs RunState) MarshalText() ([]byte, error) {
	return []byte(rs.String()), nil
}

//UnmarshalText fufills encoding.TextUnmarshaler
func (rs *RunState) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*rs = RunState(state)
			return nil
		}
	}
	return fmt.Errorf("Could not parse run state %q", text)
}

//DeviceResult is everything measured for one device during one run, it is
// not modified once returned by Runner.Run
type DeviceResult struct {
	Device   blockdev.Identity `json:"device"`
	Profile  TestProfile       `json:"profile"`
	Seed     uint64            `json:"seed"`
	Region   Region            `json:"region"`
	Tests    []TestResult      `json:"tests"`
	State    RunState          `json:"state"`
	Failure  string            `json:"failure,omitempty"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
}

//Test returns the first result of the provided kind
func (dr *DeviceResult) Test(kind TestKind) (*TestResult, bool) {
	for i := range dr.Tests {
		if dr.Tests[i].Kind == kind {
			return &dr.Tests[i], true
		}
	}
	return nil, false
}

//Region is a byte range of a device reserved for benchmark traffic
type Region struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
}

//End is the first byte after the region
func (r Region) End() int64 {
	return r.Offset + r.Length
}
