package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is the optional run configuration file passed with --config.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type RunConfig struct {
	Seed         *int64          `yaml:"seed,omitempty"`
	Start        *float64        `yaml:"start,omitempty"`
	End          *float64        `yaml:"end,omitempty"`
	Policy       string          `yaml:"policy,omitempty"`
	Trace        string          `yaml:"trace,omitempty"`
	Debug        string          `yaml:"debug,omitempty"`
	Realtime     *bool           `yaml:"realtime,omitempty"`
	Acceleration *float64        `yaml:"acceleration,omitempty"`
	MetricsAddr  string          `yaml:"metrics_addr,omitempty"`
	Injections   []InjectionSpec `yaml:"injections,omitempty"`
}

// InjectionSpec schedules one external event at the root boundary.
type InjectionSpec struct {
	Time    float64 `yaml:"time"`
	Type    string  `yaml:"type"`
	Payload any     `yaml:"payload,omitempty"`
}

// loadRunConfig parses a run configuration file.
// Uses strict field checking: typos must cause errors.
func loadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	var cfg RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	for i, inj := range cfg.Injections {
		if inj.Type == "" {
			return nil, fmt.Errorf("injections[%d]: type is required", i)
		}
		if inj.Time < 0 {
			return nil, fmt.Errorf("injections[%d]: time must be non-negative, got %g", i, inj.Time)
		}
	}
	return &cfg, nil
}
