// Package config handles the awvm.toml machine configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Pacing policy names.
const (
	PacingVariable = "variable"
	PacingSingle   = "single"
)

// Config is the machine configuration. Command-line flags override the
// values loaded from the file.
type Config struct {
	ROM     ROM         `toml:"rom"`
	Machine Machine     `toml:"machine"`
	Audio   AudioConfig `toml:"audio"`
	Window  Window      `toml:"window"`

	// Path is the file the configuration was loaded from (empty for defaults).
	Path string `toml:"-"`
}

// ROM locates the game data.
type ROM struct {
	Dir string `toml:"dir"`
}

// Machine configures the VM.
type Machine struct {
	Pacing         string `toml:"pacing"`
	CompatHacks    bool   `toml:"compat-hacks"`
	RandomSeed     int16  `toml:"random-seed"`
	CyclesPerFrame int    `toml:"cycles-per-frame"`
	SliceMillis    int    `toml:"slice-ms"`
	StartPart      int    `toml:"start-part"`
	Trace          bool   `toml:"trace"`
}

// AudioConfig configures sound output.
type AudioConfig struct {
	SampleRate int  `toml:"sample-rate"`
	Muted      bool `toml:"muted"`
}

// Window configures the ebiten window.
type Window struct {
	Scale int    `toml:"scale"`
	Title string `toml:"title"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ROM: ROM{Dir: "."},
		Machine: Machine{
			Pacing:         PacingVariable,
			CompatHacks:    true,
			RandomSeed:     0x1F2D,
			CyclesPerFrame: 50000,
			SliceMillis:    20,
			StartPart:      1,
		},
		Audio: AudioConfig{
			SampleRate: 44100,
		},
		Window: Window{
			Scale: 3,
			Title: "Another World",
		},
	}
}

// Load parses the TOML file at path on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes TOML data on top of Default. name is used in messages.
func Parse(name string, data []byte) (*Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), name)
	}
	c.Path = name
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Machine.Pacing {
	case PacingVariable, PacingSingle:
	default:
		return fmt.Errorf("invalid pacing %q (must be %s or %s)", c.Machine.Pacing, PacingVariable, PacingSingle)
	}
	if c.Machine.CyclesPerFrame <= 0 {
		return fmt.Errorf("cycles-per-frame must be positive, got %d", c.Machine.CyclesPerFrame)
	}
	if c.Machine.SliceMillis <= 0 {
		return fmt.Errorf("slice-ms must be positive, got %d", c.Machine.SliceMillis)
	}
	if c.Machine.StartPart < 0 || c.Machine.StartPart > 9 {
		return fmt.Errorf("start-part must be 0..9, got %d", c.Machine.StartPart)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("sample-rate must be 8000..192000, got %d", c.Audio.SampleRate)
	}
	if c.Window.Scale < 1 || c.Window.Scale > 8 {
		return fmt.Errorf("window scale must be 1..8, got %d", c.Window.Scale)
	}
	return nil
}

// Slice returns the duration of one pause slice.
func (c *Config) Slice() time.Duration {
	return time.Duration(c.Machine.SliceMillis) * time.Millisecond
}
