package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
	"golang.org/x/image/bmp"
)

// blitProgram は背景ページを塗りつぶして毎フレーム表示する
var blitProgram = []byte{
	0x00, 0xFF, 0x00, 0x03, // movConst [PAUSE_SLICES], 3
	0x0E, 0xFF, 0x04, // fillVideoPage back, 4
	0x10, 0xFF, // blitFramebuffer back
	0x06,             // pauseThread
	0x07, 0x00, 0x04, // jmp 4
}

// writeROM はテスト用のROMディレクトリを作成する
func writeROM(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"BYTECODE.ROM":  blitProgram,
		"palettes.rom":  make([]byte, 0x800),
		"Cinematic.rom": make([]byte, 16),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestRun_Headless(t *testing.T) {
	t.Setenv("AWVM_HEADLESS", "")
	t.Setenv("AWVM_TIMEOUT", "")
	t.Setenv("LOG_LEVEL", "error")

	rom := writeROM(t)
	out := t.TempDir()
	framePath := filepath.Join(out, "frame.bmp")
	statePath := filepath.Join(out, "state.cbor")
	wavPath := filepath.Join(out, "audio.wav")

	app := New()
	err := app.Run([]string{
		"--headless", "--frames", "3", "--part", "0",
		"--dump-frame", framePath,
		"--save-state", statePath,
		"--capture-wav", wavPath,
		rom,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	f, err := os.Open(framePath)
	if err != nil {
		t.Fatalf("frame not written: %v", err)
	}
	defer f.Close()
	img, err := bmp.Decode(f)
	if err != nil {
		t.Fatalf("frame is not a BMP: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 200 {
		t.Errorf("expected a 320x200 frame, got %v", b)
	}

	if st, err := os.Stat(statePath); err != nil || st.Size() == 0 {
		t.Errorf("state not written: %v", err)
	}

	wf, err := os.Open(wavPath)
	if err != nil {
		t.Fatalf("WAV not written: %v", err)
	}
	defer wf.Close()
	dec := wav.NewDecoder(wf)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("failed to decode WAV: %v", err)
	}
	// 3フレーム × 3スライス × 20ms @ 44100Hz
	if want := 44100 * 180 / 1000; len(buf.Data) != want {
		t.Errorf("expected %d samples, got %d", want, len(buf.Data))
	}

	// 保存したステートから再開できる
	app = New()
	if err := app.Run([]string{"--headless", "--frames", "1", "--part", "0", "--load-state", statePath, rom}); err != nil {
		t.Errorf("Run with --load-state failed: %v", err)
	}
}

func TestRun_Disasm(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	rom := writeROM(t)

	var out bytes.Buffer
	app := New()
	app.stdout = &out
	if err := app.Run([]string{"--disasm", "--part", "0", rom}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 instructions, got %d:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "0000: ") || !strings.HasPrefix(lines[4], "000A: ") {
		t.Errorf("unexpected listing:\n%s", out.String())
	}
}

func TestRun_Errors(t *testing.T) {
	t.Setenv("AWVM_HEADLESS", "")
	t.Setenv("AWVM_TIMEOUT", "")
	t.Setenv("LOG_LEVEL", "error")
	rom := writeROM(t)

	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"無効な引数", []string{"--pacing", "fast"}, "parse args"},
		{"ROMがない", []string{"--headless", "--frames", "1", t.TempDir()}, "load ROM"},
		{"設定ファイルがない", []string{"--config", filepath.Join(t.TempDir(), "none.toml"), rom}, "load config"},
		{"フレーム数なし", []string{"--headless", "--part", "0", rom}, "--frames"},
		{"パートがない", []string{"--headless", "--frames", "1", "--part", "5", rom}, "build machine"},
		{"ステートがない", []string{"--headless", "--frames", "1", "--part", "0", "--load-state", filepath.Join(t.TempDir(), "none"), rom}, "state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Run(tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in error, got %v", tt.wantMsg, err)
			}
		})
	}
}
