package conf

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/tarndt/flashbench/pkg/bench"
	"github.com/tarndt/flashbench/pkg/blockdev"
	"github.com/tarndt/flashbench/pkg/devices/ramdisk"
	"github.com/tarndt/flashbench/pkg/devices/rawdisk"
	"github.com/tarndt/flashbench/pkg/report"
)

//MemTargetPrefix marks a target as an in-memory device of the following size
// (ex. mem:256MiB), useful for dry runs
const MemTargetPrefix = "mem:"

//TestProfile loads the custom profile file or else the named built-in profile
func (cfg *Config) TestProfile() (bench.TestProfile, error) {
	if cfg.ProfileFile == "" {
		return bench.BuiltinProfile(cfg.Profile)
	}

	file, err := os.Open(cfg.ProfileFile)
	if err != nil {
		return bench.TestProfile{}, fmt.Errorf("Could not open profile file %q: %w", cfg.ProfileFile, err)
	}
	defer file.Close()

	prof, err := bench.LoadProfile(file)
	if err != nil {
		return bench.TestProfile{}, fmt.Errorf("Could not load profile file %q: %w", cfg.ProfileFile, err)
	}
	return prof, nil
}

//ScratchBytes is the scratch file size for directory targets: enough to hold
// the region, which defaults to what prof requires
func (cfg *Config) ScratchBytes(prof bench.TestProfile) int64 {
	if cfg.RegionBytes > 0 {
		return int64(cfg.RegionOffset + cfg.RegionBytes)
	}
	return int64(cfg.RegionOffset) + prof.RequiredBytes()
}

//BenchTargets resolves every configured target. Targets that cannot be
// inspected are still returned so their run fails (and is reported) on open.
func (cfg *Config) BenchTargets(prof bench.TestProfile) ([]blockdev.Target, error) {
	opts := rawdisk.TargetOptions{
		Options:      rawdisk.Options{Direct: cfg.Direct, SyncWrites: cfg.SyncWrites},
		ScratchBytes: cfg.ScratchBytes(prof),
		AllowRaw:     cfg.AllowRaw,
	}

	targets := make([]blockdev.Target, 0, len(cfg.Targets))
	for _, spec := range cfg.Targets {
		if sizeStr, isMem := strings.CutPrefix(spec, MemTargetPrefix); isMem {
			size, err := humanize.ParseBytes(sizeStr)
			if err != nil {
				return nil, fmt.Errorf("Could not parse in-memory target size %q: %w", sizeStr, err)
			}
			targets = append(targets, ramdisk.NewTarget(spec, int64(size)))
			continue
		}

		tgt, err := rawdisk.NewTarget(spec, opts)
		if err != nil {
			targets = append(targets, unavailableTarget(spec, err))
			continue
		}
		targets = append(targets, tgt)
	}
	return targets, nil
}

func unavailableTarget(path string, err error) blockdev.Target {
	return blockdev.TargetFunc{
		ID: blockdev.Identity{
			ID:    blockdev.Fingerprint(path),
			Label: path,
			Path:  path,
		},
		OpenFn: func() (blockdev.Device, error) { return nil, err },
	}
}

//RunnerConfig is the engine configuration
func (cfg *Config) RunnerConfig(log logrus.FieldLogger) bench.Config {
	return bench.Config{
		Region:         bench.Region{Offset: int64(cfg.RegionOffset), Length: int64(cfg.RegionBytes)},
		AbortThreshold: cfg.AbortThreshold,
		Mitigator:      bench.NewMitigator(int64(cfg.EvictBytes), cfg.EvictDir, log),
		Log:            log,
	}
}

//Sinks connects every configured report sink, the result may be empty
func (cfg *Config) Sinks(log logrus.FieldLogger) (report.MultiSink, error) {
	var sinks report.MultiSink
	if cfg.Sink.Kind != "" {
		opts := report.ObjectSinkOptions{
			Compression: cfg.Sink.CompressMode,
			Encryption:  cfg.Sink.AESMode,
			Key:         cfg.Sink.AESKey,
		}
		sink, err := report.NewObjectSink(cfg.Sink.Kind, cfg.Sink.Config, cfg.Sink.Container, opts, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	if cfg.Influx.URL != "" {
		sinks = append(sinks, report.NewInfluxSink(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket))
	}
	return sinks, nil
}
