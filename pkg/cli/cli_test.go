package cli

import (
	"reflect"
	"testing"
	"time"

	"github.com/zurustar/awvm/pkg/config"
)

// defaults は引数なしで得られる設定
func defaults() Config {
	return Config{LogLevel: "info", Part: -1}
}

func TestParseArgs_ValidArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected func(c *Config)
	}{
		{
			name:     "デフォルト設定",
			args:     []string{},
			expected: func(c *Config) {},
		},
		{
			name:     "ROMディレクトリ指定",
			args:     []string{"/path/to/roms"},
			expected: func(c *Config) { c.ROMDir = "/path/to/roms" },
		},
		{
			name:     "ROMディレクトリをフラグで指定",
			args:     []string{"--rom", "/roms"},
			expected: func(c *Config) { c.ROMDir = "/roms" },
		},
		{
			name:     "タイムアウト指定",
			args:     []string{"--timeout", "10"},
			expected: func(c *Config) { c.Timeout = 10 * time.Second },
		},
		{
			name:     "タイムアウト指定（短縮形）",
			args:     []string{"-t", "5"},
			expected: func(c *Config) { c.Timeout = 5 * time.Second },
		},
		{
			name:     "ログレベル指定（短縮形）",
			args:     []string{"-l", "error"},
			expected: func(c *Config) { c.LogLevel = "error" },
		},
		{
			name: "ヘッドレスとフレーム数",
			args: []string{"--headless", "/roms", "--frames", "600"},
			expected: func(c *Config) {
				c.Headless = true
				c.ROMDir = "/roms"
				c.Frames = 600
			},
		},
		{
			name: "VMオプション",
			args: []string{"--pacing", "single", "--no-compat", "--trace", "--part", "3", "roms"},
			expected: func(c *Config) {
				c.Pacing = "single"
				c.NoCompat = true
				c.Trace = true
				c.Part = 3
				c.ROMDir = "roms"
			},
		},
		{
			name: "出力ファイル",
			args: []string{"--dump-frame", "f.bmp", "--capture-wav=a.wav", "--save-state", "s.cbor", "--load-state", "l.cbor"},
			expected: func(c *Config) {
				c.DumpFrame = "f.bmp"
				c.CaptureWAV = "a.wav"
				c.SaveState = "s.cbor"
				c.LoadState = "l.cbor"
			},
		},
		{
			name: "逆アセンブル",
			args: []string{"--disasm", "roms", "--part", "0"},
			expected: func(c *Config) {
				c.Disasm = true
				c.ROMDir = "roms"
				c.Part = 0
			},
		},
		{
			name: "設定ファイルとミュート",
			args: []string{"-c", "awvm.toml", "--mute"},
			expected: func(c *Config) {
				c.ConfigPath = "awvm.toml"
				c.Mute = true
			},
		},
		{
			name:     "ヘルプ",
			args:     []string{"-h"},
			expected: func(c *Config) { c.ShowHelp = true },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AWVM_HEADLESS", "")
			t.Setenv("AWVM_TIMEOUT", "")
			t.Setenv("LOG_LEVEL", "")

			got, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := defaults()
			tt.expected(&want)
			if !reflect.DeepEqual(*got, want) {
				t.Errorf("ParseArgs(%v)\n got  %+v\n want %+v", tt.args, *got, want)
			}
		})
	}
}

func TestParseArgs_Environment(t *testing.T) {
	t.Setenv("AWVM_HEADLESS", "true")
	t.Setenv("AWVM_TIMEOUT", "30")
	t.Setenv("LOG_LEVEL", "DEBUG")

	got, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Headless {
		t.Error("AWVM_HEADLESS should enable headless mode")
	}
	if got.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", got.Timeout)
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", got.LogLevel)
	}

	// コマンドラインフラグが優先
	got, err = ParseArgs([]string{"-t", "5", "-l", "warn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Timeout != 5*time.Second || got.LogLevel != "warn" {
		t.Errorf("flags should override environment, got %v %q", got.Timeout, got.LogLevel)
	}
}

func TestParseArgs_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"負のタイムアウト", []string{"--timeout", "-10"}},
		{"負のフレーム数", []string{"--frames", "-1"}},
		{"無効なログレベル", []string{"--log-level", "invalid"}},
		{"無効なペーシング", []string{"--pacing", "fast"}},
		{"範囲外のパート", []string{"--part", "10"}},
		{"ROMディレクトリの二重指定", []string{"--rom", "a", "b"}},
		{"未知のフラグ", []string{"--turbo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", "")
			if _, err := ParseArgs(tt.args); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestApply(t *testing.T) {
	cfg := config.Default()
	c := &Config{ROMDir: "/roms", Pacing: "single", NoCompat: true, Trace: true, Mute: true, Part: 4}
	c.Apply(cfg)

	if cfg.ROM.Dir != "/roms" || cfg.Machine.Pacing != "single" || cfg.Machine.CompatHacks ||
		!cfg.Machine.Trace || !cfg.Audio.Muted || cfg.Machine.StartPart != 4 {
		t.Errorf("flags not applied: %+v", cfg)
	}

	// 未指定の値は設定ファイルのまま
	cfg = config.Default()
	(&Config{Part: -1}).Apply(cfg)
	if !reflect.DeepEqual(cfg, config.Default()) {
		t.Errorf("empty flags changed the config: %+v", cfg)
	}
}
