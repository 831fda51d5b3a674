package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if c.Machine.Pacing != PacingVariable {
		t.Errorf("expected variable pacing, got %q", c.Machine.Pacing)
	}
	if !c.Machine.CompatHacks {
		t.Error("compat hacks should default to on")
	}
	if c.Slice() != 20*time.Millisecond {
		t.Errorf("expected 20ms slices, got %v", c.Slice())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "awvm.toml")
	content := `
[rom]
dir = "/games/aw"

[machine]
pacing = "single"
compat-hacks = false
random-seed = 42

[audio]
sample-rate = 48000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.ROM.Dir != "/games/aw" {
		t.Errorf("expected rom dir /games/aw, got %q", c.ROM.Dir)
	}
	if c.Machine.Pacing != PacingSingle || c.Machine.CompatHacks || c.Machine.RandomSeed != 42 {
		t.Errorf("machine section not applied: %+v", c.Machine)
	}
	if c.Audio.SampleRate != 48000 {
		t.Errorf("expected 48000 Hz, got %d", c.Audio.SampleRate)
	}
	// keys absent from the file keep their defaults
	if c.Machine.CyclesPerFrame != Default().Machine.CyclesPerFrame {
		t.Errorf("cycles-per-frame default lost: %d", c.Machine.CyclesPerFrame)
	}
	if c.Path != path {
		t.Errorf("expected Path %q, got %q", path, c.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"syntax error", "[machine\n", "parse error"},
		{"unknown key", "[machine]\nturbo = true\n", "unknown key"},
		{"bad pacing", "[machine]\npacing = \"fast\"\n", "invalid pacing"},
		{"zero cycles", "[machine]\ncycles-per-frame = 0\n", "cycles-per-frame"},
		{"zero slice", "[machine]\nslice-ms = 0\n", "slice-ms"},
		{"part out of range", "[machine]\nstart-part = 10\n", "start-part"},
		{"low sample rate", "[audio]\nsample-rate = 100\n", "sample-rate"},
		{"bad scale", "[window]\nscale = 0\n", "scale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.toml", []byte(tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in error, got %v", tt.wantMsg, err)
			}
		})
	}
}
