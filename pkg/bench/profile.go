package bench

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

//Built-in profile names
const (
	ProfileQuick    = "quick"
	ProfileStandard = "standard"
	ProfileThorough = "thorough"
	ProfileCustom   = "custom"
)

const (
	mib = 1024 * 1024

	sequentialBlockSize = 1 * mib
	latencyBlockSize    = 4096
)

//TestSpec describes one test: what to do, in what unit and how often. Exactly
// one of TotalBytes and OperationCount is set.
type TestSpec struct {
	Kind           TestKind `json:"kind"`
	BlockSize      int64    `json:"block_size"`
	TotalBytes     int64    `json:"total_bytes,omitempty"`
	OperationCount int      `json:"operation_count,omitempty"`
	Iterations     int      `json:"iterations"`
}

//Ops is the number of operations in one iteration
func (ts TestSpec) Ops() int {
	if ts.OperationCount > 0 {
		return ts.OperationCount
	}
	if ts.BlockSize < 1 {
		return 0
	}
	return int(ts.TotalBytes / ts.BlockSize)
}

//Footprint is the number of bytes one iteration touches
func (ts TestSpec) Footprint() int64 {
	return int64(ts.Ops()) * ts.BlockSize
}

//Validate checks the test is internally consistent
func (ts TestSpec) Validate() error {
	switch {
	case ts.Kind == KindUnknown || int(ts.Kind) >= len(kindNames):
		return fmt.Errorf("Could not validate test spec: unknown kind %d: %w", ts.Kind, ErrInvalidProfile)
	case ts.BlockSize < 1:
		return fmt.Errorf("Could not validate %s test: block size %d must be positive: %w", ts.Kind, ts.BlockSize, ErrInvalidProfile)
	case (ts.TotalBytes > 0) == (ts.OperationCount > 0):
		return fmt.Errorf("Could not validate %s test: exactly one of total bytes and operation count is required: %w", ts.Kind, ErrInvalidProfile)
	case ts.TotalBytes < 0 || ts.OperationCount < 0:
		return fmt.Errorf("Could not validate %s test: negative size: %w", ts.Kind, ErrInvalidProfile)
	case ts.TotalBytes%ts.BlockSize != 0:
		return fmt.Errorf("Could not validate %s test: total bytes %d is not a multiple of block size %d: %w", ts.Kind, ts.TotalBytes, ts.BlockSize, ErrInvalidProfile)
	case ts.Iterations < 1:
		return fmt.Errorf("Could not validate %s test: iterations %d must be positive: %w", ts.Kind, ts.Iterations, ErrInvalidProfile)
	}
	return nil
}

//TestProfile is a named, ordered set of tests. Profiles are values; Tests must
// not be modified after construction.
type TestProfile struct {
	Name  string     `json:"name"`
	Tests []TestSpec `json:"tests"`
}

//NewProfile constructs a validated profile from a copy of the provided specs,
// zero iterations default to one
func NewProfile(name string, specs ...TestSpec) (TestProfile, error) {
	if len(specs) < 1 {
		return TestProfile{}, fmt.Errorf("Could not create profile %q: no tests: %w", name, ErrInvalidProfile)
	}

	prof := TestProfile{Name: name, Tests: make([]TestSpec, len(specs))}
	for i, spec := range specs {
		if spec.Iterations == 0 {
			spec.Iterations = 1
		}
		if err := spec.Validate(); err != nil {
			return TestProfile{}, fmt.Errorf("Could not create profile %q, test %d is invalid: %w", name, i, err)
		}
		prof.Tests[i] = spec
	}
	return prof, nil
}

func builtin(name string, latencyOps, seekOps int, throughputBytes int64, throughputIters int) TestProfile {
	prof, err := NewProfile(name,
		TestSpec{Kind: KindSequentialWrite, BlockSize: sequentialBlockSize, TotalBytes: throughputBytes, Iterations: throughputIters},
		TestSpec{Kind: KindRandomWriteLatency, BlockSize: latencyBlockSize, OperationCount: latencyOps, Iterations: 1},
		TestSpec{Kind: KindSequentialRead, BlockSize: sequentialBlockSize, TotalBytes: 2 * throughputBytes, Iterations: throughputIters},
		TestSpec{Kind: KindRandomReadLatency, BlockSize: latencyBlockSize, OperationCount: latencyOps, Iterations: 1},
		TestSpec{Kind: KindRandomSeek, BlockSize: latencyBlockSize, OperationCount: seekOps, Iterations: 1},
	)
	if err != nil {
		panic(err)
	}
	return prof
}

var builtins = map[string]TestProfile{
	ProfileQuick:    builtin(ProfileQuick, 15, 20, 20*mib, 3),
	ProfileStandard: builtin(ProfileStandard, 25, 50, 25*mib, 3),
	ProfileThorough: builtin(ProfileThorough, 50, 100, 50*mib, 3),
}

//ProfileNames lists the built-in profiles
func ProfileNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

//BuiltinProfile returns a copy of the named built-in profile
func BuiltinProfile(name string) (TestProfile, error) {
	prof, found := builtins[name]
	if !found {
		return TestProfile{}, fmt.Errorf("Could not find profile %q, valid profiles are %v: %w", name, ProfileNames(), ErrInvalidProfile)
	}
	return NewProfile(prof.Name, prof.Tests...)
}

//RequiredBytes is the smallest region the profile can run in: sequential tests
// get disjoint lanes while random tests share the whole region
func (tp TestProfile) RequiredBytes() int64 {
	var lanes, widest int64
	for _, spec := range tp.Tests {
		if spec.Kind.Sequential() {
			lanes += spec.Footprint()
		} else if fp := spec.Footprint(); fp > widest {
			widest = fp
		}
	}
	if widest > lanes {
		return widest
	}
	return lanes
}

//Validate checks the profile can run within a region of the provided size
func (tp TestProfile) Validate(regionBytes int64) error {
	for i, spec := range tp.Tests {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("Could not validate profile %q, test %d is invalid: %w", tp.Name, i, err)
		}
	}
	if required := tp.RequiredBytes(); required > regionBytes {
		return fmt.Errorf("Could not fit profile %q (%s) in a %s region: %w",
			tp.Name, humanize.IBytes(uint64(required)), humanize.IBytes(uint64(max(regionBytes, 0))), ErrInvalidProfile)
	}
	return nil
}

type yamlSpec struct {
	Kind           TestKind `yaml:"kind"`
	BlockSize      string   `yaml:"block_size"`
	TotalBytes     string   `yaml:"total_bytes"`
	OperationCount int      `yaml:"operation_count"`
	Iterations     int      `yaml:"iterations"`
}

type yamlProfile struct {
	Name  string     `yaml:"name"`
	Tests []yamlSpec `yaml:"tests"`
}

//LoadProfile reads a custom profile from YAML, sizes accept human units:
//
//	name: usb2-smoke
//	tests:
//	  - kind: sequential_write
//	    block_size: 1MiB
//	    total_bytes: 16MiB
//	    iterations: 2
//	  - kind: random_read_latency
//	    block_size: 4KiB
//	    operation_count: 100
func LoadProfile(rdr io.Reader) (TestProfile, error) {
	var raw yamlProfile
	dec := yaml.NewDecoder(rdr)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return TestProfile{}, fmt.Errorf("Could not decode profile: %v: %w", err, ErrInvalidProfile)
	}
	if raw.Name == "" {
		raw.Name = ProfileCustom
	}

	specs := make([]TestSpec, len(raw.Tests))
	for i, rs := range raw.Tests {
		spec := TestSpec{Kind: rs.Kind, OperationCount: rs.OperationCount, Iterations: rs.Iterations}
		var err error
		if spec.BlockSize, err = parseSize(rs.BlockSize); err != nil {
			return TestProfile{}, fmt.Errorf("Could not parse block size of test %d: %w", i, err)
		}
		if rs.TotalBytes != "" {
			if spec.TotalBytes, err = parseSize(rs.TotalBytes); err != nil {
				return TestProfile{}, fmt.Errorf("Could not parse total bytes of test %d: %w", i, err)
			}
		}
		specs[i] = spec
	}
	return NewProfile(raw.Name, specs...)
}

func parseSize(str string) (int64, error) {
	size, err := humanize.ParseBytes(str)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", err, ErrInvalidProfile)
	}
	return int64(size), nil
}
