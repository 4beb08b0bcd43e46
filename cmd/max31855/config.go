package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mikesmitty/max31855"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Bus         string   `yaml:"bus"`
	CS          string   `yaml:"cs"`
	SpeedHz     int64    `yaml:"speed_hz"`
	FaultChecks []string `yaml:"fault_checks"`
	IntervalMs  int      `yaml:"interval_ms"`
	Count       int      `yaml:"count"`
	Fahrenheit  bool     `yaml:"fahrenheit"`
}

func DefaultConfig() *Config {
	return &Config{
		SpeedHz:     500000,
		FaultChecks: []string{"all"},
		IntervalMs:  1000,
	}
}

// LoadConfig reads a YAML file on top of the defaults. An empty path returns
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks configuration correctness.
// It does not mutate the configuration.
func (c *Config) Validate() error {
	if c.SpeedHz <= 0 {
		return fmt.Errorf("speed_hz must be positive, got %d", c.SpeedHz)
	}
	if c.IntervalMs <= 0 {
		return fmt.Errorf("interval_ms must be positive, got %d", c.IntervalMs)
	}
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.Count)
	}
	if _, err := ParseFaults(c.FaultChecks); err != nil {
		return err
	}
	return nil
}

// ParseFaults turns fault names into a fault mask. Names may be combined:
// "open", "short_gnd", "short_vcc", "all" and "none".
func ParseFaults(names []string) (max31855.Fault, error) {
	var mask max31855.Fault
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "none":
		case "all":
			mask |= max31855.FaultAll
		case "open":
			mask |= max31855.FaultOpen
		case "short_gnd", "gnd":
			mask |= max31855.FaultShortGND
		case "short_vcc", "vcc":
			mask |= max31855.FaultShortVCC
		default:
			return 0, fmt.Errorf("unknown fault check %q", n)
		}
	}
	return mask, nil
}
