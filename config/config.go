// Package config loads column build and snapshot settings from YAML.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// Config controls how columns are built and encoded.
type Config struct {
	// Workers bounds the number of sections built at once. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// Sequential builds one section at a time.
	Sequential bool `yaml:"sequential"`
	// SnapshotLevel is a zstd level name: fastest, default, better or best.
	SnapshotLevel string `yaml:"snapshot_level"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{SnapshotLevel: zstd.SpeedDefault.String()}
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	c, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(raw []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// WorkerCount resolves Workers and Sequential into a concrete goroutine limit.
func (c Config) WorkerCount() int {
	if c.Sequential {
		return 1
	}
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Level resolves SnapshotLevel.
func (c Config) Level() (zstd.EncoderLevel, error) {
	if c.SnapshotLevel == "" {
		return zstd.SpeedDefault, nil
	}
	ok, l := zstd.EncoderLevelFromString(c.SnapshotLevel)
	if !ok {
		return 0, fmt.Errorf("unknown snapshot_level %q", c.SnapshotLevel)
	}
	return l, nil
}
