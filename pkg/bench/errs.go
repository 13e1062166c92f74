package bench

import (
	"fmt"

	"github.com/tarndt/flashbench/pkg/util/consterr"
)

const (
	//ErrDeviceUnavailable the target is absent or could not be opened
	ErrDeviceUnavailable = consterr.ConstErr("Device unavailable")
	//ErrAccessDenied the target exists but may not be opened for benchmarking
	ErrAccessDenied = consterr.ConstErr("Access denied")
	//ErrAlignment an offset or size violates the device's direct I/O alignment
	ErrAlignment = consterr.ConstErr("Misaligned I/O")
	//ErrCacheBypassUnavailable no mechanism to neutralize OS caching could be used,
	// results are tagged best-effort rather than failing the run
	ErrCacheBypassUnavailable = consterr.ConstErr("Cache bypass unavailable")
	//ErrInsufficientTimerResolution the monotonic clock is coarser than required
	ErrInsufficientTimerResolution = consterr.ConstErr("Insufficient timer resolution")
	//ErrOperationFailed a single I/O failed, recorded as a failed sample
	ErrOperationFailed = consterr.ConstErr("I/O operation failed")
	//ErrAbortThresholdExceeded too many operations of a test failed
	ErrAbortThresholdExceeded = consterr.ConstErr("Abort threshold exceeded")
	//ErrInvalidProfile a profile or test spec cannot run against the configured region
	ErrInvalidProfile = consterr.ConstErr("Invalid profile")
)

//RunError is returned by Runner.Run when a run ends in the Failed state
type RunError struct {
	//State is the state the run was in when it failed
	State RunState
	//Test is the index of the test running at the time, -1 if none was
	Test int
	Err  error
}

func (re *RunError) Error() string {
	if re.Test < 0 {
		return fmt.Sprintf("Benchmark failed while %s: %s", re.State, re.Err)
	}
	return fmt.Sprintf("Benchmark failed while %s test %d: %s", re.State, re.Test, re.Err)
}

func (re *RunError) Unwrap() error {
	return re.Err
}
