package conf

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/graymeta/stow"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/tarndt/flashbench/pkg/bench"
	"github.com/tarndt/flashbench/pkg/report"
	"github.com/tarndt/flashbench/pkg/report/compress"
	"github.com/tarndt/flashbench/pkg/report/encrypt"
)

//Environment variables consulted when the matching flag is absent
const (
	EnvSinkConfig  = "FLASHBENCH_SINK_CONFIG"
	EnvSinkKey     = "FLASHBENCH_SINK_KEY"
	EnvInfluxToken = "FLASHBENCH_INFLUX_TOKEN"
)

const (
	defKeyFile       = "flashbench-key.aes"
	defContainerName = "flashbench"
)

//LoadEnv loads environment files, by default ./.env. Missing files are
// ignored, malformed ones are not.
func LoadEnv(files ...string) error {
	if len(files) < 1 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("Could not load environment file %q: %w", file, err)
		}
	}
	return nil
}

//Flags binds benchmark run options to a flag set, Config turns what was
// parsed into a validated Config
type Flags struct {
	fs  *pflag.FlagSet
	cfg Config

	sinkConfigJSON, sinkCompress, sinkAESMode, sinkAESKey string
}

//BindFlags registers every run option on fs
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	cfg := &f.cfg

	//Benchmark
	fs.StringVarP(&cfg.Profile, "profile", "p", bench.ProfileStandard,
		fmt.Sprintf("Built-in test profile: %s", strings.Join(bench.ProfileNames(), ", ")))
	fs.StringVar(&cfg.ProfileFile, "profile-file", "", "YAML custom profile (overrides --profile)")
	fs.Uint64Var(&cfg.Seed, "seed", 0, "Seed for random offsets (default: random, recorded in results)")
	flagCapacityVar(fs, &cfg.RegionOffset, "region-offset", 0, "Start of the benchmarked region (ex. 1 GiB)")
	flagCapacityVar(fs, &cfg.RegionBytes, "region-size", 0, "Size of the benchmarked region, also the scratch file size for directory targets (0 implies what the profile requires)")
	fs.Float64Var(&cfg.AbortThreshold, "abort-threshold", 0, "Fraction of failed operations in one test that aborts the run (0 implies only when every operation fails)")
	fs.UintVar(&cfg.Parallel, "parallel", 1, "Number of targets to benchmark concurrently")

	//Caching
	fs.BoolVar(&cfg.Direct, "direct", true, "Bypass the OS page cache with direct I/O when the platform allows")
	fs.BoolVar(&cfg.SyncWrites, "dsync", false, "Open targets for synchronous (O_DSYNC) writes instead of flushing after each write")
	flagCapacityVar(fs, &cfg.EvictBytes, "evict-size", Capacity(bench.DefaultEvictionBytes), "Traffic streamed through a scratch file to evict cached reads when neither direct I/O nor dropping caches is possible (0 disables)")
	fs.StringVar(&cfg.EvictDir, "evict-dir", os.TempDir(), "Directory for the eviction scratch file, should not be on a benchmarked device")
	fs.BoolVar(&cfg.AllowRaw, "allow-raw", false, "Allow benchmarking block devices directly, DESTROYS data in the benchmarked region")

	//Output
	fs.StringVar(&cfg.JSONPath, "json", "", "Write the report as JSON to this file (- for stdout)")
	fs.StringVar(&cfg.Sink.Kind, "sink-kind", "", fmt.Sprintf("Object store to upload reports to: %s (empty disables)", strings.Join(report.StoreKinds(), ", ")))
	fs.StringVar(&f.sinkConfigJSON, "sink-config", "", "JSON object store configuration (default: $"+EnvSinkConfig+")")
	fs.StringVar(&cfg.Sink.Container, "sink-container", defContainerName, "Object store container reports are uploaded to")
	fs.StringVar(&f.sinkCompress, "sink-compress", compress.ModeIdentityName,
		fmt.Sprintf("Compression for uploaded reports: %q, %q or %q for none", compress.ModeS2Name, compress.ModeGzipName, compress.ModeIdentityName))
	fs.StringVar(&f.sinkAESMode, "sink-aesmode", encrypt.ModeIdentityName,
		fmt.Sprintf("AES encryption for uploaded reports: %q, %q or %q for none", encrypt.ModeAESCTRName, encrypt.ModeAESOFBName, encrypt.ModeIdentityName))
	fs.StringVar(&f.sinkAESKey, "sink-aeskey", "", "If AES is enabled; key:<hex>, file:<path> or env:<varname> (default: $"+EnvSinkKey+" or else a generated key saved to ./"+defKeyFile+")")
	fs.StringVar(&cfg.Influx.URL, "influx-url", "", "InfluxDB URL to export results to (empty disables)")
	fs.StringVar(&cfg.Influx.Org, "influx-org", "", "InfluxDB organization")
	fs.StringVar(&cfg.Influx.Bucket, "influx-bucket", "flashbench", "InfluxDB bucket")
	fs.StringVar(&cfg.Influx.Token, "influx-token", "", "InfluxDB API token (default: $"+EnvInfluxToken+")")
	return f
}

//Config validates the parsed flags for the provided targets
func (f *Flags) Config(targets []string, log logrus.FieldLogger) (*Config, error) {
	cfg := f.cfg
	cfg.Targets = targets

	if len(cfg.Targets) < 1 {
		return nil, fmt.Errorf("No targets were provided (pass directories, files, devices or mem:<size>)")
	}
	if cfg.ProfileFile == "" && !slices.Contains(bench.ProfileNames(), cfg.Profile) {
		return nil, fmt.Errorf("Unknown profile %q, expected one of: %s", cfg.Profile, strings.Join(bench.ProfileNames(), ", "))
	}
	if !f.fs.Changed("seed") {
		cfg.Seed = rand.Uint64()
	}
	if cfg.AbortThreshold < 0 || cfg.AbortThreshold > 1 {
		return nil, fmt.Errorf("Abort threshold %g is not a fraction between 0 and 1", cfg.AbortThreshold)
	}
	if cfg.Parallel < 1 {
		return nil, fmt.Errorf("Parallelism must be at least 1 (use --parallel=N)")
	}
	if cfg.EvictBytes > 0 {
		if err := checkDir(cfg.EvictDir); err != nil {
			return nil, fmt.Errorf("Provided eviction directory (--evict-dir=%q) %w", cfg.EvictDir, err)
		}
	}

	if cfg.Sink.Kind != "" {
		if err := f.sinkConfig(&cfg.Sink, log); err != nil {
			return nil, err
		}
	}

	if cfg.Influx.URL != "" {
		if cfg.Influx.Token == "" {
			cfg.Influx.Token = os.Getenv(EnvInfluxToken)
		}
		if cfg.Influx.Org == "" || cfg.Influx.Bucket == "" {
			return nil, fmt.Errorf("InfluxDB export requires an organization and bucket (use --influx-org=X --influx-bucket=Y)")
		}
	}
	return &cfg, nil
}

func checkDir(dir string) error {
	fstat, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("does not exist")
	case err != nil:
		return fmt.Errorf("could not be accessed: %w", err)
	case !fstat.IsDir():
		return fmt.Errorf("is not a directory")
	}
	return nil
}

func (f *Flags) sinkConfig(sink *SinkConfig, log logrus.FieldLogger) (err error) {
	if !slices.Contains(report.StoreKinds(), sink.Kind) {
		return fmt.Errorf("Unknown object store kind was provided: %q", sink.Kind)
	}
	if sink.Container == "" {
		return fmt.Errorf("An object store container must be provided (use --sink-container=X)")
	}

	configJSON := f.sinkConfigJSON
	if configJSON == "" {
		configJSON = os.Getenv(EnvSinkConfig)
	}
	if configJSON == "" {
		return fmt.Errorf("No JSON configuration was provided for the object store (use --sink-config=JSON or $%s)", EnvSinkConfig)
	}
	sink.Config = make(stow.ConfigMap)
	if err = json.Unmarshal([]byte(configJSON), &sink.Config); err != nil {
		return fmt.Errorf("Provided JSON configuration for the object store could not be parsed: %w", err)
	}
	if err = stow.Validate(sink.Kind, sink.Config); err != nil {
		return fmt.Errorf("Provided configuration for the object store was not valid: %w", err)
	}

	if sink.CompressMode, err = compress.ParseMode(f.sinkCompress); err != nil {
		return err
	}
	if sink.AESMode, err = encrypt.ParseMode(f.sinkAESMode); err != nil {
		return err
	}
	if sink.AESMode == encrypt.ModeIdentity {
		return nil
	}

	if sink.AESKey, err = loadKey(f.sinkAESKey, log); err != nil {
		return err
	}
	if err = encrypt.ValidAESKey(sink.AESKey); err != nil {
		return fmt.Errorf("Could not validate provided AES key: %w", err)
	}
	return nil
}

//loadKey resolves an AES key source: key:<hex>, file:<path>, env:<varname> or,
// when empty, $FLASHBENCH_SINK_KEY falling back to a generated key file
func loadKey(src string, log logrus.FieldLogger) (key []byte, err error) {
	switch {
	case strings.HasPrefix(src, "key:"):
		return encrypt.ParseKey(strings.TrimPrefix(src, "key:"))

	case strings.HasPrefix(src, "file:"):
		src = strings.TrimPrefix(src, "file:")
		if key, err = os.ReadFile(src); err != nil {
			return nil, fmt.Errorf("Could not read AES key file %q: %w", src, err)
		}
		return key, nil

	case strings.HasPrefix(src, "env:"):
		src = strings.TrimPrefix(src, "env:")
		envVal, exists := os.LookupEnv(src)
		if !exists {
			return nil, fmt.Errorf("Could not read AES key from non-existent environment variable %q", src)
		}
		return encrypt.ParseKey(envVal)

	case src != "":
		return nil, fmt.Errorf("AES key source %q is not valid", src)
	}

	if envVal, exists := os.LookupEnv(EnvSinkKey); exists {
		return encrypt.ParseKey(envVal)
	}

	keyFile, err := filepath.Abs(defKeyFile)
	if err != nil {
		return nil, fmt.Errorf("Could not resolve AES key file %q: %w", defKeyFile, err)
	}
	if key, err = os.ReadFile(keyFile); err == nil {
		return key, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Could not read AES key file %q: %w", keyFile, err)
	}

	if key, err = encrypt.MakeRandomAESKey(); err != nil {
		return nil, fmt.Errorf("Could not create AES key: %w", err)
	}
	if err = os.WriteFile(keyFile, key, 0600); err != nil {
		return nil, fmt.Errorf("Could not write AES key to file: %q: %w", keyFile, err)
	}
	log.WithField("file", keyFile).Warn("Generated AES-256 key for report uploads, keep it to decrypt them")
	return key, nil
}
