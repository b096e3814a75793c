package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/R9295/thesis-public/internal/constants"
	"github.com/R9295/thesis-public/internal/helpers"
)

// Config is read from an optional TOML file and then overridden by the
// colon separated BENCHFUZZ_OPTIONS variable, e.g. "verify=1:stagingDir=/tmp".
type Config struct {
	Build BuildConfig `toml:"build"`
	Fuzz  FuzzConfig  `toml:"fuzz"`
}

type BuildConfig struct {
	// Script defaults to build.sh in the configured $SRC.
	Script      string   `toml:"script"`
	StagingDir  string   `toml:"staging_dir"`
	Verify      bool     `toml:"verify"`
	EnvFiles    []string `toml:"env_files"`
	ExtraStaged []string `toml:"extra_staged"`
	Quiet       bool     `toml:"quiet"`
}

type FuzzConfig struct {
	MaxTotalTime    duration `toml:"max_total_time"`
	StatsInterval   duration `toml:"stats_interval"`
	ArchiveInterval duration `toml:"archive_interval"`
	Storage         string   `toml:"storage"`
	StorageDir      string   `toml:"storage_dir"`
	Quiet           bool     `toml:"quiet"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func Default() *Config {
	return &Config{
		Fuzz: FuzzConfig{
			MaxTotalTime:    duration{24 * time.Hour},
			StatsInterval:   duration{time.Minute},
			ArchiveInterval: duration{15 * time.Minute},
			Storage:         "local",
		},
	}
}

// Load reads path if it exists; a missing file yields the defaults. Overrides
// from BENCHFUZZ_OPTIONS and MAX_TOTAL_TIME are applied afterwards.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	opts, err := helpers.ParseOptions(os.Getenv("BENCHFUZZ_OPTIONS"))
	if err != nil {
		return fmt.Errorf("BENCHFUZZ_OPTIONS: %w", err)
	}
	for k, v := range opts {
		switch k {
		case "stagingDir":
			c.Build.StagingDir = v
		case "buildScript":
			c.Build.Script = v
		case "verify":
			c.Build.Verify = v == "1"
		case "suppressFuzzerOutput":
			c.Fuzz.Quiet = v == "1"
		case "suppressBuildOutput":
			c.Build.Quiet = v == "1"
		case "storageSolution":
			c.Fuzz.Storage = v
		case "storageDir":
			c.Fuzz.StorageDir = v
		default:
			return fmt.Errorf("invalid option %s in BENCHFUZZ_OPTIONS", k)
		}
	}

	// The framework passes the trial length in seconds.
	if raw := os.Getenv(constants.MaxTimeEnv); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return fmt.Errorf("invalid %s %q", constants.MaxTimeEnv, raw)
		}
		c.Fuzz.MaxTotalTime = duration{time.Duration(secs) * time.Second}
	}
	return nil
}
