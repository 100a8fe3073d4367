// Package config provides the sweep configuration for tilebench runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/tilebench/timing/cache"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid sweep config")

// DefaultSizes is the size axis used when none is given.
var DefaultSizes = []uint64{4096}

// Sweep holds every axis and option of a run.
type Sweep struct {
	// Output is the CSV path.
	Output string `yaml:"output"`

	// Reps is the number of samples per sweep cell.
	Reps int `yaml:"reps"`

	// Iterations is the number of invocations inside one counter window.
	Iterations int `yaml:"iterations"`

	// Sizes is the primary buffer length axis.
	Sizes []uint64 `yaml:"sizes"`

	// Sizes2 is the second buffer length axis. Empty means Arg1s.
	Sizes2 []uint64 `yaml:"sizes2,omitempty"`

	// Sizes3 is the third buffer length axis. Empty means DefaultSizes.
	Sizes3 []uint64 `yaml:"sizes3,omitempty"`

	// TileSizes is the tile_size axis.
	TileSizes []int32 `yaml:"tile_sizes"`

	// MHz is the CPU frequency axis.
	MHz []int `yaml:"mhz"`

	// Arg1s is the arg1 axis.
	Arg1s []uint64 `yaml:"arg1s"`

	// Functions are the kernel names to run; "ALL" selects every one.
	Functions []string `yaml:"functions"`

	// Libs are kernel modules loaded before names are resolved.
	Libs []string `yaml:"libs,omitempty"`

	// Backend selects the counter backend: "perf" or "timer".
	Backend string `yaml:"backend"`

	// MetricsFile, when set, receives a Prometheus textfile of the run.
	MetricsFile string `yaml:"metrics_file,omitempty"`

	// CPU pins the measuring thread; -1 leaves affinity alone.
	CPU int `yaml:"cpu"`

	// StrictFrequency makes frequency-setting failures fatal.
	StrictFrequency bool `yaml:"strict_frequency"`

	// Cache is the L1 model used by predictions.
	Cache cache.Config `yaml:"cache"`
}

// DefaultSweep returns the stock configuration.
func DefaultSweep() *Sweep {
	return &Sweep{
		Output:     "stat.csv",
		Reps:       1,
		Iterations: 1,
		Sizes:      slices.Clone(DefaultSizes),
		TileSizes:  []int32{64},
		MHz:        []int{3700},
		Arg1s:      []uint64{1},
		Backend:    "perf",
		CPU:        -1,
		Cache:      cache.DefaultL1DConfig(),
	}
}

// LoadSweep reads a YAML file over the defaults.
func LoadSweep(path string) (*Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sweep config file: %w", err)
	}

	s := DefaultSweep()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse sweep config: %w", err)
	}

	return s, nil
}

// SaveSweep writes s as YAML.
func (s *Sweep) SaveSweep(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize sweep config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write sweep config file: %w", err)
	}

	return nil
}

// Validate checks that every axis is non-empty and every count positive.
func (s *Sweep) Validate() error {
	if s.Output == "" {
		return fmt.Errorf("%w: output must be set", ErrInvalidConfig)
	}
	if s.Reps <= 0 {
		return fmt.Errorf("%w: reps must be > 0", ErrInvalidConfig)
	}
	if s.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be > 0", ErrInvalidConfig)
	}
	if len(s.Sizes) == 0 {
		return fmt.Errorf("%w: sizes must not be empty", ErrInvalidConfig)
	}
	if len(s.TileSizes) == 0 {
		return fmt.Errorf("%w: tile_sizes must not be empty", ErrInvalidConfig)
	}
	if len(s.MHz) == 0 {
		return fmt.Errorf("%w: mhz must not be empty", ErrInvalidConfig)
	}
	if len(s.Arg1s) == 0 {
		return fmt.Errorf("%w: arg1s must not be empty", ErrInvalidConfig)
	}
	for _, t := range s.TileSizes {
		if t < 0 {
			return fmt.Errorf("%w: tile size %d is negative", ErrInvalidConfig, t)
		}
	}
	switch s.Backend {
	case "perf", "timer":
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, s.Backend)
	}
	if err := s.Cache.Validate(); err != nil {
		return fmt.Errorf("%w: cache: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ResolvedSizes2 returns Sizes2, or Arg1s when Sizes2 is empty.
func (s *Sweep) ResolvedSizes2() []uint64 {
	if len(s.Sizes2) > 0 {
		return s.Sizes2
	}
	return s.Arg1s
}

// ResolvedSizes3 returns Sizes3, or DefaultSizes when Sizes3 is empty.
func (s *Sweep) ResolvedSizes3() []uint64 {
	if len(s.Sizes3) > 0 {
		return s.Sizes3
	}
	return DefaultSizes
}

// MaxSize is the largest length any environment buffer has to hold.
func (s *Sweep) MaxSize() uint64 {
	var m uint64
	for _, axis := range [][]uint64{s.Sizes, s.ResolvedSizes2(), s.ResolvedSizes3()} {
		if len(axis) > 0 {
			m = max(m, slices.Max(axis))
		}
	}
	return m
}

// Clone creates a deep copy of s.
func (s *Sweep) Clone() *Sweep {
	c := *s
	c.Sizes = slices.Clone(s.Sizes)
	c.Sizes2 = slices.Clone(s.Sizes2)
	c.Sizes3 = slices.Clone(s.Sizes3)
	c.TileSizes = slices.Clone(s.TileSizes)
	c.MHz = slices.Clone(s.MHz)
	c.Arg1s = slices.Clone(s.Arg1s)
	c.Functions = slices.Clone(s.Functions)
	c.Libs = slices.Clone(s.Libs)
	return &c
}
