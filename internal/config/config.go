package config

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors firmware.yml. Every bound is fixed at boot.
type Config struct {
	ReadyQueue    int    `yaml:"ready_queue"`     // 4 (by default)
	Deadlines     int    `yaml:"deadlines"`       // 8
	HoldMS        uint32 `yaml:"hold_ms"`         // 1000
	DoubleClickMS uint32 `yaml:"double_click_ms"` // 250
	DebounceMS    uint32 `yaml:"debounce_ms"`     // 100, 0 for latch only
	EventQueue    int    `yaml:"event_queue"`     // 4
	FlashOnMS     uint32 `yaml:"flash_on_ms"`     // 500
	FlashOffMS    uint32 `yaml:"flash_off_ms"`    // 200
	SampleMS      uint32 `yaml:"sample_ms"`       // 500
	SensorRetries int    `yaml:"sensor_retries"`  // 3

	Trace    bool   `yaml:"trace"`
	TraceCSV string `yaml:"trace_csv"`

	// Script is replayed against the simulated button by the host binaries.
	Script []Step `yaml:"script"`
}

// Step is one scripted button edge.
type Step struct {
	AtMS uint64 `yaml:"at_ms"`
	Edge string `yaml:"edge"` // "press" or "release"
}

// Default returns the values the firmware is built with.
func Default() Config {
	return Config{
		ReadyQueue:    4,
		Deadlines:     8,
		HoldMS:        1000,
		DoubleClickMS: 250,
		DebounceMS:    100,
		EventQueue:    4,
		FlashOnMS:     500,
		FlashOffMS:    200,
		SampleMS:      500,
		SensorRetries: 3,
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only.
// An unreadable or malformed file also yields the defaults.
func Load(path string) Config {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg, err := Parse(data)
	if err != nil {
		return Default()
	}
	return cfg
}

// Parse decodes YAML on top of the defaults and applies the sanity clamps.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("config: %w", err)
	}
	for i, s := range cfg.Script {
		if s.Edge != "press" && s.Edge != "release" {
			return Default(), fmt.Errorf("config: script step %d: unknown edge %q", i, s.Edge)
		}
	}
	cfg.clamp()
	return cfg, nil
}

// sanity clamps
func (c *Config) clamp() {
	d := Default()
	if c.ReadyQueue <= 0 {
		c.ReadyQueue = d.ReadyQueue
	}
	if c.Deadlines <= 0 {
		c.Deadlines = d.Deadlines
	}
	if c.HoldMS == 0 {
		c.HoldMS = d.HoldMS
	}
	if c.DoubleClickMS == 0 {
		c.DoubleClickMS = d.DoubleClickMS
	}
	if c.DoubleClickMS >= c.HoldMS {
		c.DoubleClickMS = c.HoldMS - 1
	}
	if c.DebounceMS >= c.DoubleClickMS {
		c.DebounceMS = 0
	}
	if c.EventQueue <= 0 {
		c.EventQueue = d.EventQueue
	}
	if c.FlashOnMS == 0 {
		c.FlashOnMS = d.FlashOnMS
	}
	if c.SampleMS == 0 {
		c.SampleMS = d.SampleMS
	}
	if c.SensorRetries < 0 {
		c.SensorRetries = 0
	}
}
