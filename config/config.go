// Package config carries the runtime settings shared by the CLI and the
// interactive debugger. Nothing here reads environment variables; callers
// load a YAML file or fill the struct directly.
package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is the full runtime configuration.
type Config struct {
	// MaxQubits caps accepted circuit widths; 0 means the engine default.
	MaxQubits int `yaml:"max_qubits"`

	// OptLevel is the optimization level 0..3.
	OptLevel int `yaml:"opt_level"`

	// Shots is the default shot count for measurement runs.
	Shots int `yaml:"shots"`

	// Seed seeds the engine PRNG; runs with equal seeds are identical.
	Seed int64 `yaml:"seed"`

	// CacheSize bounds the snapshot cache.
	CacheSize int `yaml:"cache_size"`

	// InlineDepth bounds user-gate inlining during lowering.
	InlineDepth int `yaml:"inline_depth"`

	// Noise selects a channel as "kind:param[,param...]"; empty disables
	// noise.
	Noise string `yaml:"noise"`

	// Verbose switches the CLI logger to development output.
	Verbose bool `yaml:"verbose"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		MaxQubits:   0,
		OptLevel:    0,
		Shots:       1024,
		Seed:        1,
		CacheSize:   16,
		InlineDepth: 16,
	}
}

// Load reads a YAML config file, applying defaults for absent fields.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "opening config %q", path)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes YAML config from a reader, applying defaults for absent
// fields.
func Read(r io.Reader) (Config, error) {
	cfg := Default()
	raw, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings outside their domains.
func (c Config) Validate() error {
	if c.OptLevel < 0 || c.OptLevel > 3 {
		return errors.Errorf("opt_level %d outside 0..3", c.OptLevel)
	}
	if c.Shots < 1 {
		return errors.Errorf("shots must be positive, got %d", c.Shots)
	}
	if c.MaxQubits < 0 {
		return errors.Errorf("max_qubits must be non-negative, got %d", c.MaxQubits)
	}
	if c.CacheSize < 1 {
		return errors.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	if c.InlineDepth < 1 {
		return errors.Errorf("inline_depth must be positive, got %d", c.InlineDepth)
	}
	return nil
}
