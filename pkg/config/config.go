// Package config loads the named options of spec.md §6 from YAML, with
// the same load-then-default-fill shape the teacher uses for its own
// settings.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for one controller run.
type Config struct {
	Deadline Deadline `yaml:"deadline"`
	Sample   Sample   `yaml:"sample"`
	Filter   Filter   `yaml:"filter"`
	Cluster  Cluster  `yaml:"cluster"`
	EvStats  EvStats  `yaml:"evstats"`
}

type Deadline struct {
	Seconds int `yaml:"seconds"`
}

// SamplePolicy selects the sampler strategy for rounds >= 2 (round 1 is
// always uniform-per-stratum regardless of policy).
type SamplePolicy int

const (
	PolicyMH SamplePolicy = iota
	PolicyProportional
	PolicyEqualPerFolder
)

type Sample struct {
	SizePerFolder    int          `yaml:"sizePerFolder"`
	SampleTimePctg   float64      `yaml:"sampleTimePctg"`
	Policy           SamplePolicy `yaml:"policy"`
	GroundTruth      bool         `yaml:"groundTruth"`
	PrintEmptyFolder bool         `yaml:"printEmptyFolder"`
}

type Filter struct {
	StartTimeOfDay int `yaml:"startTimeOfDay"`
	EndTimeOfDay   int `yaml:"endTimeOfDay"`
}

type Cluster struct {
	DataNodes      int `yaml:"datanodes"`
	MaxMapsPerNode int `yaml:"tasktrackerMapTasksMaximum"`
}

type EvStats struct {
	ServerPort int `yaml:"serverport"` // 0 means "pick randomly in [10593, 11593)"
}

// Load reads and unmarshals a YAML config file, then fills in the
// defaults from spec.md §6 for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a Config with every named option at its spec.md §6
// default, for callers that build one programmatically (tests, flags).
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Deadline.Seconds == 0 {
		cfg.Deadline.Seconds = 120
	}
	if cfg.Sample.SizePerFolder == 0 {
		cfg.Sample.SizePerFolder = 30
	}
	if cfg.Sample.SampleTimePctg == 0 {
		cfg.Sample.SampleTimePctg = 0.30
	}
	if cfg.Filter.StartTimeOfDay == 0 {
		cfg.Filter.StartTimeOfDay = 10
	}
	if cfg.Filter.EndTimeOfDay == 0 {
		cfg.Filter.EndTimeOfDay = 16
	}
	if cfg.Cluster.MaxMapsPerNode == 0 {
		cfg.Cluster.MaxMapsPerNode = 2
	}
}

// Save writes cfg back out as YAML, mirroring the teacher's
// Flags.MaybeWriteConfig round-trip.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Slots returns P = datanodes * maxMapsPerNode, the controller's model of
// parallel execution width (§4.5 INIT).
func (c *Config) Slots() int {
	return c.Cluster.DataNodes * c.Cluster.MaxMapsPerNode
}
