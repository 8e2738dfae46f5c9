// Package engineconfig loads the engine's startup configuration: device
// sample rate, ring slot geometry, default fade presets and disk-I/O
// scheduler timing (§9 "Startup order is fixed: load config, build
// Runtime, open the audio device, then load a project").
package engineconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the engine's YAML startup file.
type Config struct {
	Device DeviceConfig `yaml:"device"`
	Ring   RingConfig   `yaml:"ring"`
	Fades  FadesConfig  `yaml:"fades"`
	DiskIO DiskIOConfig `yaml:"diskio"`
}

// DeviceConfig describes the audio device's fixed output format.
type DeviceConfig struct {
	SampleRate int `yaml:"samplerate"`
	Channels   int `yaml:"channels"`
	CycleSize  int `yaml:"cyclesize"` // frames per realtime callback
}

// RingConfig sizes each ReadSource/WriteSource's slot ring (§4.1, §4.4).
type RingConfig struct {
	SlotCount     int `yaml:"slotcount"`
	FramesPerSlot int `yaml:"framesperslot"`
}

// FadesConfig names the default fade shape new clips get until an
// explicit session descriptor overrides it.
type FadesConfig struct {
	DefaultShape string `yaml:"defaultshape"` // linear, fast, sshape, long
}

// DiskIOConfig tunes the background scheduler (§4.4).
type DiskIOConfig struct {
	TickBudgetMillis int `yaml:"tickbudgetmillis"`
	TickPeriodMillis int `yaml:"tickperiodmillis"`
}

// TickBudget returns the scheduler's per-tick time budget as a Duration.
func (d DiskIOConfig) TickBudget() time.Duration {
	return time.Duration(d.TickBudgetMillis) * time.Millisecond
}

// TickPeriod returns the scheduler's fallback tick interval as a Duration.
func (d DiskIOConfig) TickPeriod() time.Duration {
	return time.Duration(d.TickPeriodMillis) * time.Millisecond
}

// Default returns a config with reasonable defaults for every field,
// used when no config file is supplied.
func Default() Config {
	return Config{
		Device: DeviceConfig{SampleRate: 48000, Channels: 2, CycleSize: 512},
		Ring:   RingConfig{SlotCount: 8, FramesPerSlot: 8192},
		Fades:  FadesConfig{DefaultShape: "linear"},
		DiskIO: DiskIOConfig{TickBudgetMillis: 2, TickPeriodMillis: 10},
	}
}

// Load reads and parses a YAML engine config file, filling in any
// fields the file omits from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("engineconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("engineconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}
