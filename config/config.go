// Package config provides configuration loading and access for a
// transport run.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all run configuration parameters.
type Config struct {
	Run    RunConfig     `yaml:"run"`
	Wind   WindConfig    `yaml:"wind"`
	Mover  MoverConfig   `yaml:"mover"`
	Map    MapConfig     `yaml:"map"`
	Spills []SpillConfig `yaml:"spills"`
	Output OutputConfig  `yaml:"output"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// RunConfig holds the run clock and reproducibility settings.
type RunConfig struct {
	Start     string `yaml:"start"`     // RFC3339 model start time
	TimeStep  string `yaml:"time_step"` // Go duration, e.g. "15m"
	Duration  string `yaml:"duration"`  // total run length, e.g. "48h"
	Uncertain bool   `yaml:"uncertain"` // run mirrored uncertainty sets
	Seed      int64  `yaml:"seed"`
}

// WindConfig selects and parameterizes the wind source.
type WindConfig struct {
	// Source is "constant" or "series".
	Source string `yaml:"source"`

	// Constant wind components in m/s, used when source is "constant".
	U float64 `yaml:"u"`
	V float64 `yaml:"v"`

	// SeriesFile is a CSV of timestamped wind records, used when source
	// is "series".
	SeriesFile string `yaml:"series_file"`
}

// MoverConfig holds the wind mover's uncertainty parameters. Zero
// values fall back to the mover's defaults.
type MoverConfig struct {
	SpeedScale         float64 `yaml:"speed_scale"`
	AngleScale         float64 `yaml:"angle_scale"`
	UncertainStartTime string  `yaml:"uncertain_start_time"` // Go duration
	RefreshInterval    string  `yaml:"refresh_interval"`     // Go duration
}

// MapConfig bounds the water area, in degrees. Elements leaving it are
// removed.
type MapConfig struct {
	MinLon float64 `yaml:"min_lon"`
	MinLat float64 `yaml:"min_lat"`
	MaxLon float64 `yaml:"max_lon"`
	MaxLat float64 `yaml:"max_lat"`
}

// SpillConfig describes one element release.
type SpillConfig struct {
	Name     string  `yaml:"name"`
	Lon      float64 `yaml:"lon"`
	Lat      float64 `yaml:"lat"`
	Elements int     `yaml:"elements"`

	Start    string `yaml:"start"`    // RFC3339; empty = run start
	Duration string `yaml:"duration"` // Go duration; empty = instantaneous

	WindageMin float64 `yaml:"windage_min"`
	WindageMax float64 `yaml:"windage_max"`
}

// OutputConfig holds output settings.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	DBFile      string `yaml:"db_file"`      // sqlite run store; empty = disabled
	ImagesEvery int    `yaml:"images_every"` // render a frame every N steps; 0 = disabled
}

// DerivedConfig holds values parsed from the loaded config.
type DerivedConfig struct {
	Start              time.Time
	TimeStep           time.Duration
	Duration           time.Duration
	UncertainStartTime time.Duration
	RefreshInterval    time.Duration

	SpillStarts    []time.Time
	SpillDurations []time.Duration
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded
// defaults if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// computeDerived parses the string-typed time fields and validates the
// clock settings.
func (c *Config) computeDerived() error {
	start, err := time.Parse(time.RFC3339, c.Run.Start)
	if err != nil {
		return fmt.Errorf("parsing run.start: %w", err)
	}
	c.Derived.Start = start

	if c.Derived.TimeStep, err = time.ParseDuration(c.Run.TimeStep); err != nil {
		return fmt.Errorf("parsing run.time_step: %w", err)
	}
	if c.Derived.TimeStep <= 0 {
		return fmt.Errorf("run.time_step must be positive, got %q", c.Run.TimeStep)
	}
	if c.Derived.Duration, err = time.ParseDuration(c.Run.Duration); err != nil {
		return fmt.Errorf("parsing run.duration: %w", err)
	}
	if c.Derived.Duration < c.Derived.TimeStep {
		return fmt.Errorf("run.duration %q shorter than one time step", c.Run.Duration)
	}

	c.Derived.UncertainStartTime = 0
	if c.Mover.UncertainStartTime != "" {
		if c.Derived.UncertainStartTime, err = time.ParseDuration(c.Mover.UncertainStartTime); err != nil {
			return fmt.Errorf("parsing mover.uncertain_start_time: %w", err)
		}
	}
	c.Derived.RefreshInterval = 0
	if c.Mover.RefreshInterval != "" {
		if c.Derived.RefreshInterval, err = time.ParseDuration(c.Mover.RefreshInterval); err != nil {
			return fmt.Errorf("parsing mover.refresh_interval: %w", err)
		}
	}

	c.Derived.SpillStarts = make([]time.Time, len(c.Spills))
	c.Derived.SpillDurations = make([]time.Duration, len(c.Spills))
	for i, sp := range c.Spills {
		c.Derived.SpillStarts[i] = start
		if sp.Start != "" {
			if c.Derived.SpillStarts[i], err = time.Parse(time.RFC3339, sp.Start); err != nil {
				return fmt.Errorf("parsing spills[%d].start: %w", i, err)
			}
		}
		if sp.Duration != "" {
			if c.Derived.SpillDurations[i], err = time.ParseDuration(sp.Duration); err != nil {
				return fmt.Errorf("parsing spills[%d].duration: %w", i, err)
			}
		}
		if sp.Elements <= 0 {
			return fmt.Errorf("spills[%d].elements must be positive, got %d", i, sp.Elements)
		}
		if sp.WindageMax < sp.WindageMin {
			return fmt.Errorf("spills[%d]: windage_max below windage_min", i)
		}
	}

	switch c.Wind.Source {
	case "constant":
	case "series":
		if c.Wind.SeriesFile == "" {
			return fmt.Errorf("wind.series_file required when wind.source is \"series\"")
		}
	default:
		return fmt.Errorf("unknown wind.source %q", c.Wind.Source)
	}

	return nil
}

// WriteYAML saves the configuration to a file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
