package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the maximum Hamming distance per perceptual layer
type Thresholds struct {
	Perceptual int `yaml:"perceptual"`
	Difference int `yaml:"difference"`
	Wavelet    int `yaml:"wavelet"`
	Average    int `yaml:"average"`
}

// Config carries all tunables for a deduplication session.
// It is always passed explicitly into the engine, never read from
// ambient state, so test runs stay deterministic.
type Config struct {
	// QuarantineDir is the subdirectory of the dataset directory that
	// receives demoted duplicates
	QuarantineDir string `yaml:"quarantine_dir"`

	// Workers bounds the hashing pool; 0 picks a CPU-based default
	Workers int `yaml:"workers"`

	// RescanKeepers re-admits keepers of already-applied groups into
	// later, looser layers. Off by default so every record belongs to
	// at most one group per session.
	RescanKeepers bool `yaml:"rescan_keepers"`

	Thresholds Thresholds `yaml:"thresholds"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		QuarantineDir: "duplicates",
		Workers:       0,
		RescanKeepers: false,
		Thresholds: Thresholds{
			Perceptual: 2,
			Difference: 6,
			Wavelet:    6,
			Average:    10,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config file %s: %v", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse config file %s: %v", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %v", path, err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	if c.QuarantineDir == "" {
		return fmt.Errorf("quarantine_dir must not be empty")
	}
	if strings.ContainsAny(c.QuarantineDir, "/\\") {
		return fmt.Errorf("quarantine_dir must be a plain directory name, got %q", c.QuarantineDir)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	for name, t := range map[string]int{
		"perceptual": c.Thresholds.Perceptual,
		"difference": c.Thresholds.Difference,
		"wavelet":    c.Thresholds.Wavelet,
		"average":    c.Thresholds.Average,
	} {
		if t < 0 || t > 64 {
			return fmt.Errorf("threshold %s must be between 0 and 64, got %d", name, t)
		}
	}
	return nil
}
