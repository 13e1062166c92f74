package conf

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/graymeta/stow"

	"github.com/tarndt/flashbench/pkg/report/compress"
	"github.com/tarndt/flashbench/pkg/report/encrypt"
)

//Config is a representation of command line config parameters for a benchmark run
type Config struct {
	Profile        string
	ProfileFile    string
	Seed           uint64
	RegionOffset   Capacity
	RegionBytes    Capacity
	EvictBytes     Capacity
	EvictDir       string
	AbortThreshold float64
	Direct         bool
	SyncWrites     bool
	AllowRaw       bool
	Parallel       uint
	JSONPath       string
	Targets        []string
	Sink           SinkConfig
	Influx         InfluxConfig
}

//String generates human-readable prose describing a configuration
func (cfg *Config) String() string {
	profile := fmt.Sprintf("the %s profile", cfg.Profile)
	if cfg.ProfileFile != "" {
		profile = fmt.Sprintf("the profile in %q", cfg.ProfileFile)
	}

	region := "the whole device"
	if cfg.RegionBytes > 0 {
		region = fmt.Sprintf("%s at offset %s", humanize.IBytes(uint64(cfg.RegionBytes)), humanize.IBytes(uint64(cfg.RegionOffset)))
	} else if cfg.RegionOffset > 0 {
		region = fmt.Sprintf("everything past offset %s", humanize.IBytes(uint64(cfg.RegionOffset)))
	}

	caching := "OS caching mitigated by dropping or evicting"
	if cfg.Direct {
		caching = "direct I/O"
	}

	var publish []string
	if cfg.JSONPath != "" {
		publish = append(publish, fmt.Sprintf("writing JSON to %q", cfg.JSONPath))
	}
	if cfg.Sink.Kind != "" {
		publish = append(publish, "uploading "+cfg.Sink.String())
	}
	if cfg.Influx.URL != "" {
		publish = append(publish, "exporting "+cfg.Influx.String())
	}
	publishDesc := ""
	if len(publish) > 0 {
		publishDesc = ", " + strings.Join(publish, " and ")
	}

	return fmt.Sprintf("Benchmarking %d target(s) %d at a time with %s (seed %d) over %s using %s, evicting %s through %q, aborting past %g failed%s.",
		len(cfg.Targets), cfg.Parallel, profile, cfg.Seed, region, caching,
		humanize.IBytes(uint64(cfg.EvictBytes)), cfg.EvictDir, cfg.AbortThreshold, publishDesc,
	)
}

//SinkConfig is the object store report upload configuration
type SinkConfig struct {
	Kind         string
	Config       stow.ConfigMap
	Container    string
	CompressMode compress.Mode
	AESMode      encrypt.Mode
	AESKey       []byte
}

//String generates human-readable prose describing a SinkConfig
func (c *SinkConfig) String() string {
	return fmt.Sprintf("to container %q of a %s object store (%s) with %s compression and %s encryption",
		c.Container, c.Kind, stowCfgStr(c.Config), c.CompressMode, c.AESMode,
	)
}

//InfluxConfig is the InfluxDB export configuration
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

//String generates human-readable prose describing an InfluxConfig
func (c *InfluxConfig) String() string {
	token := "without a token"
	if c.Token != "" {
		token = "with a <REDACTED> token"
	}
	return fmt.Sprintf("to InfluxDB at %q (org %q, bucket %q) %s", c.URL, c.Org, c.Bucket, token)
}

func stowCfgStr(cm stow.ConfigMap) string {
	keys := make([]string, 0, len(cm))
	for k := range cm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var str bytes.Buffer
	for _, k := range keys {
		str.WriteString(k)
		str.WriteByte('=')

		if mayBeSecret(k) {
			str.WriteString("<REDACTED>")
		} else {
			str.WriteByte('"')
			str.WriteString(cm[k])
			str.WriteByte('"')
		}
		str.WriteString(", ")
	}
	if str.Len() > 2 {
		str.Truncate(str.Len() - 2)
	}
	return str.String()
}

func mayBeSecret(s string) bool {
	s = strings.ToLower(s)
	for _, candidate := range []string{"secret", "cred", "pass", "token", "key"} {
		if strings.Contains(s, candidate) {
			return true
		}
	}
	return false
}
