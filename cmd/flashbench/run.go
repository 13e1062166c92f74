package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tarndt/sema"

	"github.com/tarndt/flashbench/cmd/flashbench/conf"
	"github.com/tarndt/flashbench/pkg/bench"
	"github.com/tarndt/flashbench/pkg/blockdev"
	"github.com/tarndt/flashbench/pkg/report"
)

func newRunCmd(log *logrus.Logger) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [flags] target...",
		Short: "Benchmark one or more targets: directories (scratch file), files, block devices or mem:<size>",
		Example: "  flashbench run /media/usb-stick\n" +
			"  flashbench run --profile quick --parallel 2 /media/stick-a /media/stick-b\n" +
			"  sudo flashbench run --allow-raw --region-offset 1GiB --json result.json /dev/sdb",
	}
	flags := conf.BindFlags(runCmd.Flags())

	runCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := flags.Config(args, log)
		if err != nil {
			return err
		}
		log.Infof("Using config: %s", cfg)
		return runBenchmarks(cmd.Context(), cfg, cmd.OutOrStdout(), log)
	}
	return runCmd
}

func runBenchmarks(ctx context.Context, cfg *conf.Config, out io.Writer, log logrus.FieldLogger) error {
	prof, err := cfg.TestProfile()
	if err != nil {
		return err
	}
	targets, err := cfg.BenchTargets(prof)
	if err != nil {
		return err
	}
	rnr, err := bench.NewRunner(cfg.RunnerConfig(log))
	if err != nil {
		return err
	}
	sinks, err := cfg.Sinks(log)
	if err != nil {
		return err
	}
	defer sinks.Close()

	results := runAll(ctx, rnr, targets, prof, cfg.Seed, cfg.Parallel)
	rep := report.NewReport(time.Now(), results...)

	failed := 0
	for _, res := range results {
		if res.State != bench.StateComplete {
			failed++
		}
		if err = report.WriteSummary(out, res); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	if rep.Comparison != nil {
		if err = report.WriteComparison(out, rep.Comparison); err != nil {
			return err
		}
	}

	if err = writeJSON(cfg.JSONPath, out, rep); err != nil {
		return err
	}
	if len(sinks) > 0 {
		//publish even when interrupted, partial results are still results
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		if err = sinks.Publish(pubCtx, rep); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d benchmark runs failed", failed, len(results))
	}
	return nil
}

//runAll benchmarks every target, at most parallel at once, returning results
// in target order
func runAll(ctx context.Context, rnr *bench.Runner, targets []blockdev.Target, prof bench.TestProfile, seed uint64, parallel uint) []*bench.DeviceResult {
	results := make([]*bench.DeviceResult, len(targets))
	runSema := sema.NewChanSemaCount(max(parallel, 1))
	var pending sync.WaitGroup

	for i, tgt := range targets {
		runSema.P()
		pending.Add(1)

		go func(i int, tgt blockdev.Target) {
			defer func() {
				runSema.V()
				pending.Done()
			}()
			//failures are recorded in the result and logged by the runner
			results[i], _ = rnr.Run(ctx, tgt, prof, seed)
		}(i, tgt)
	}
	pending.Wait()
	return results
}

func writeJSON(path string, stdout io.Writer, rep *report.Report) error {
	switch path {
	case "":
		return nil
	case "-":
		return rep.WriteJSON(stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("Could not create JSON report %q: %w", path, err)
	}
	if err = rep.WriteJSON(file); err != nil {
		file.Close()
		return err
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("Could not close JSON report %q: %w", path, err)
	}
	return nil
}
