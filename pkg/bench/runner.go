package bench

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/tarndt/flashbench/pkg/blockdev"
)

//Config is everything a Runner needs; nothing is read from globals so
// separate runners may benchmark different devices concurrently
type Config struct {
	//Region of the device to confine benchmark traffic to, a zero Length means
	// through the end of the device
	Region Region
	//AbortThreshold is the fraction of failed operations in a single test that
	// fails the run; values outside (0, 1) abort only when every operation fails
	AbortThreshold float64
	//Mitigator neutralizes OS caching, defaults to a Mitigator evicting
	// DefaultEvictionBytes through the OS temporary directory
	Mitigator CacheMitigator
	//Clock times operations, defaults to SystemClock
	Clock Clock
	//TimerResolution is the coarsest acceptable Clock granularity, defaults to
	// DefaultTimerResolution
	TimerResolution time.Duration
	Log             logrus.FieldLogger
}

//Runner executes profiles against devices, one device per Run call
type Runner struct {
	cfg Config
}

//NewRunner validates the configuration and measures the clock
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Mitigator == nil {
		cfg.Mitigator = NewMitigator(DefaultEvictionBytes, "", cfg.Log)
	}
	if cfg.TimerResolution <= 0 {
		cfg.TimerResolution = DefaultTimerResolution
	}
	if cfg.Region.Offset < 0 || cfg.Region.Length < 0 {
		return nil, fmt.Errorf("Could not create runner: invalid region %+v: %w", cfg.Region, ErrInvalidProfile)
	}

	res, err := CheckTimerResolution(cfg.Clock, cfg.TimerResolution)
	if err != nil {
		return nil, err
	}
	cfg.Log.WithField("resolution", res).Debug("Timer resolution measured")
	return &Runner{cfg: cfg}, nil
}

type plannedTest struct {
	index int
	spec  TestSpec
	lane  Region
	seed  uint64
}

//planTests assigns sequential tests disjoint consecutive lanes and gives random
// tests the whole region, each test gets its own seed derived from the run's
func planTests(prof TestProfile, region Region, seed uint64) []plannedTest {
	plan := make([]plannedTest, len(prof.Tests))
	next := region.Offset
	for i, spec := range prof.Tests {
		plan[i] = plannedTest{index: i, spec: spec, lane: region, seed: seed + uint64(i)*seedStream}
		if spec.Kind.Sequential() {
			plan[i].lane = Region{Offset: next, Length: spec.Footprint()}
			next += spec.Footprint()
		}
	}
	return plan
}

//run is the mutable state of one Run call
type run struct {
	*Runner
	res *DeviceResult
	log logrus.FieldLogger
}

//Run benchmarks target with every test of the profile in order. The returned
// DeviceResult is never nil: on failure it is in the Failed state, holds every
// test completed so far and the error is a *RunError. Setup failures (opening
// the device, alignment, region) leave it without any TestResults.
func (rnr *Runner) Run(ctx context.Context, target blockdev.Target, prof TestProfile, seed uint64) (*DeviceResult, error) {
	ident := target.Identity()
	r := &run{
		Runner: rnr,
		res: &DeviceResult{
			Device:  ident,
			Profile: prof,
			Seed:    seed,
			State:   StateIdle,
			Tests:   []TestResult{},
			Started: rnr.cfg.Clock.Now(),
		},
		log: rnr.cfg.Log.WithFields(logrus.Fields{"device": ident.Label, "id": ident.ID}),
	}

	if err := ctx.Err(); err != nil {
		return r.fail(-1, err)
	}

	r.transition(StateOpening, -1)
	dev, err := target.Open()
	if err != nil {
		return r.fail(-1, classifyOpenErr(err))
	}
	defer func() {
		if err := dev.Close(); err != nil {
			r.log.WithError(err).Warn("Could not close device")
		}
	}()

	region, err := rnr.resolveRegion(dev, prof)
	if err != nil {
		return r.fail(-1, err)
	}
	r.res.Region = region

	tio, err := NewTimedIO(dev, rnr.cfg.Clock, maxBlockSize(prof))
	if err != nil {
		return r.fail(-1, fmt.Errorf("Could not prepare I/O buffers: %w", err))
	}

	for _, pt := range planTests(prof, region, seed) {
		if err := ctx.Err(); err != nil {
			return r.fail(pt.index, err)
		}
		r.transition(StateRunning, pt.index)

		tr, err := r.runTest(ctx, dev, tio, pt)
		if err != nil {
			return r.fail(pt.index, err)
		}
		r.res.Tests = append(r.res.Tests, tr)
		r.logResult(pt.index, &tr)

		if exceedsAbortThreshold(rnr.cfg.AbortThreshold, tr.FailedCount, tr.SampleCount) {
			return r.fail(pt.index, fmt.Errorf("Could not complete %s test, %d of %d operations failed: %w",
				tr.Kind, tr.FailedCount, tr.SampleCount, ErrAbortThresholdExceeded))
		}
	}

	r.transition(StateFinalizing, -1)
	r.res.Finished = rnr.cfg.Clock.Now()
	r.transition(StateComplete, -1)
	return r.res, nil
}

func (rnr *Runner) resolveRegion(dev blockdev.Device, prof TestProfile) (Region, error) {
	region := rnr.cfg.Region
	if region.Length == 0 {
		region.Length = dev.Size() - region.Offset
	}
	if region.Length < 1 || region.End() > dev.Size() {
		return region, fmt.Errorf("Could not fit region %+v in a %d byte device: %w", rnr.cfg.Region, dev.Size(), ErrInvalidProfile)
	}
	if err := prof.Validate(region.Length); err != nil {
		return region, err
	}

	if dio, ok := dev.(blockdev.DirectIO); ok && dio.DirectIO() {
		bs := dev.BlockSize()
		if region.Offset%bs != 0 {
			return region, fmt.Errorf("Could not use region offset %d with %d byte device blocks: %w", region.Offset, bs, ErrAlignment)
		}
		for i, spec := range prof.Tests {
			if spec.BlockSize%bs != 0 {
				return region, fmt.Errorf("Could not use %d byte blocks for test %d (%s) with %d byte device blocks: %w",
					spec.BlockSize, i, spec.Kind, bs, ErrAlignment)
			}
		}
	}
	return region, nil
}

func (r *run) runTest(ctx context.Context, dev blockdev.Device, tio *TimedIO, pt plannedTest) (TestResult, error) {
	log := r.log.WithFields(logrus.Fields{"test": pt.index, "kind": pt.spec.Kind})
	pattern, err := NewPattern(pt.spec, pt.lane, pt.seed)
	if err != nil {
		return TestResult{}, err
	}

	var (
		mode       CacheMode
		bestEffort bool
		warnings   []string
		write      = pt.spec.Kind.Write()
	)
	warn := func(err error) {
		if !bestEffort {
			log.WithError(err).Warn("Results are best-effort, OS caching could not be neutralized")
			warnings = append(warnings, err.Error())
		}
		bestEffort = true
	}

	if write {
		if mode, err = r.cfg.Mitigator.PrepareDurableWrite(ctx, dev); err != nil {
			if !errors.Is(err, ErrCacheBypassUnavailable) {
				return TestResult{}, err
			}
			warn(err)
		}
	}
	tio.SetFlushWrites(write && mode == WriteFlushed)
	tio.Reset()

	perIteration := pattern.OpsPerIteration()
	samples := make([]Sample, 0, pattern.Len())
	var failure error
	for itr, i := pattern.Iterator(), 0; ; i++ {
		op, ok := itr.Next()
		if !ok {
			break
		}

		if !write && i%perIteration == 0 {
			err = tio.Exclude(func() error {
				var prepErr error
				mode, prepErr = r.cfg.Mitigator.PrepareUncachedRead(ctx, dev, pt.lane)
				return prepErr
			})
			switch {
			case errors.Is(err, ErrCacheBypassUnavailable):
				warn(err)
			case err != nil:
				return TestResult{}, err
			}
		}

		var smpl Sample
		if write {
			smpl, err = tio.Write(op)
		} else {
			smpl, err = tio.Read(op)
		}
		if err != nil {
			if !errors.Is(err, ErrOperationFailed) {
				return TestResult{}, err
			}
			failure = err
		}
		samples = append(samples, smpl)
	}
	if failure != nil {
		log.WithError(failure).Debug("Operations failed, last failure attached")
	}

	res := Aggregate(pt.spec, samples)
	res.CacheMode, res.BestEffort = mode, bestEffort
	res.WithReplacement = pattern.WithReplacement()
	res.Warnings = warnings
	if res.WithReplacement {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d operations exceed the %d distinct blocks of the region, offsets were sampled with replacement",
			pattern.Len(), pt.lane.Length/pt.spec.BlockSize))
	}
	return res, nil
}

func (r *run) transition(to RunState, test int) {
	fields := logrus.Fields{"from": r.res.State, "to": to}
	if test >= 0 {
		fields["test"] = test
	}
	r.log.WithFields(fields).Debug("Benchmark state change")
	r.res.State = to
}

func (r *run) fail(test int, err error) (*DeviceResult, error) {
	runErr := &RunError{State: r.res.State, Test: test, Err: err}
	r.res.Failure = err.Error()
	r.res.Finished = r.cfg.Clock.Now()
	r.transition(StateFailed, test)
	r.log.WithError(err).WithField("completed", len(r.res.Tests)).Error("Benchmark failed")
	return r.res, runErr
}

func (r *run) logResult(test int, tr *TestResult) {
	fields := logrus.Fields{
		"test":      test,
		"kind":      tr.Kind,
		"samples":   tr.SampleCount,
		"failed":    tr.FailedCount,
		"cache":     tr.CacheMode,
		"transfer":  humanize.IBytes(uint64(tr.Bytes)),
		"trustable": !tr.BestEffort,
	}
	if tr.Inconclusive { //NaN statistics can't be JSON logged
		r.log.WithFields(fields).Warn("Test inconclusive, no operation succeeded")
		return
	}
	fields["mean_ms"] = float64(tr.Mean) * 1000
	if !tr.Throughput.IsNaN() {
		fields["mb_per_s"] = float64(tr.Throughput)
	}
	r.log.WithFields(fields).Info("Test complete")
}

//classifyOpenErr maps target open failures onto the run's error taxonomy
func classifyOpenErr(err error) error {
	switch {
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrDeviceUnavailable):
		return err
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("Could not open device: %v: %w", err, ErrAccessDenied)
	default:
		return fmt.Errorf("Could not open device: %v: %w", err, ErrDeviceUnavailable)
	}
}

func maxBlockSize(prof TestProfile) int {
	var largest int64
	for _, spec := range prof.Tests {
		largest = max(largest, spec.BlockSize)
	}
	return int(largest)
}
