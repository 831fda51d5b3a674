package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zurustar/awvm/pkg/config"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	ConfigPath string        // 設定ファイル（awvm.toml）のパス
	ROMDir     string        // ROMディレクトリ（位置引数 または -rom）
	Timeout    time.Duration // タイムアウト時間（0は無制限）
	Frames     int           // 実行フレーム数（0は無制限）
	LogLevel   string        // ログレベル（debug, info, warn, error）
	Headless   bool          // ヘッドレスモード
	Pacing     string        // ブリットのペーシング（空は設定ファイルに従う）
	NoCompat   bool          // 互換ハックを無効化
	Trace      bool          // 命令トレース
	Mute       bool          // 音声出力をミュート
	Part       int           // 開始パート（-1は設定ファイルに従う）
	DumpFrame  string        // 終了時の画面をBMPで保存するパス
	CaptureWAV string        // ミキサー出力をWAVで保存するパス
	SaveState  string        // 終了時にステートを保存するパス
	LoadState  string        // 起動時にステートを読み込むパス
	Disasm     bool          // 開始パートのバイトコードを逆アセンブルして終了
	ShowHelp   bool          // ヘルプ表示フラグ
}

// boolFlags は値を取らないフラグ
var boolFlags = map[string]bool{
	"h":         true,
	"help":      true,
	"headless":  true,
	"no-compat": true,
	"trace":     true,
	"mute":      true,
	"disasm":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("awvm", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	fs.StringVar(&config.ConfigPath, "config", "", "設定ファイルのパス")
	fs.StringVar(&config.ConfigPath, "c", "", "設定ファイルのパス（短縮形）")
	fs.StringVar(&config.ROMDir, "rom", "", "ROMディレクトリ")
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.IntVar(&config.Frames, "frames", 0, "実行フレーム数")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.StringVar(&config.Pacing, "pacing", "", "ペーシング（variable, single）")
	fs.BoolVar(&config.NoCompat, "no-compat", false, "互換ハックを無効化")
	fs.BoolVar(&config.Trace, "trace", false, "命令トレース")
	fs.BoolVar(&config.Mute, "mute", false, "音声をミュート")
	fs.IntVar(&config.Part, "part", -1, "開始パート（0-9）")
	fs.StringVar(&config.DumpFrame, "dump-frame", "", "終了時の画面を保存するBMPファイル")
	fs.StringVar(&config.CaptureWAV, "capture-wav", "", "音声を保存するWAVファイル")
	fs.StringVar(&config.SaveState, "save-state", "", "終了時にステートを保存するファイル")
	fs.StringVar(&config.LoadState, "load-state", "", "起動時に読み込むステートファイル")
	fs.BoolVar(&config.Disasm, "disasm", false, "逆アセンブルして終了")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.Headless {
		if headlessEnv := os.Getenv("AWVM_HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	// 環境変数からタイムアウトを取得（コマンドラインフラグが優先）
	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("AWVM_TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	if config.Frames < 0 {
		return nil, fmt.Errorf("frames must be non-negative, got %d", config.Frames)
	}

	// ログレベルの検証
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	switch config.Pacing {
	case "", "variable", "single":
	default:
		return nil, fmt.Errorf("invalid pacing: %s (must be variable or single)", config.Pacing)
	}

	if config.Part < -1 || config.Part > 9 {
		return nil, fmt.Errorf("part must be 0..9, got %d", config.Part)
	}

	// 位置引数（ROMディレクトリ）
	if fs.NArg() > 0 {
		if config.ROMDir != "" && config.ROMDir != fs.Arg(0) {
			return nil, fmt.Errorf("ROM directory given twice: %s and %s", config.ROMDir, fs.Arg(0))
		}
		config.ROMDir = fs.Arg(0)
	}

	return config, nil
}

// Apply はコマンドラインで指定された値を設定ファイルの内容に上書きする
func (c *Config) Apply(cfg *config.Config) {
	if c.ROMDir != "" {
		cfg.ROM.Dir = c.ROMDir
	}
	if c.Pacing != "" {
		cfg.Machine.Pacing = c.Pacing
	}
	if c.NoCompat {
		cfg.Machine.CompatHacks = false
	}
	if c.Trace {
		cfg.Machine.Trace = true
	}
	if c.Mute {
		cfg.Audio.Muted = true
	}
	if c.Part >= 0 {
		cfg.Machine.StartPart = c.Part
	}
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			// -flag=value 形式、またはブール型フラグは次の引数を消費しない
			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") || boolFlags[name] {
				continue
			}

			// 次の引数が値である可能性をチェック（-t 5 や --timeout -10 のような場合）
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `awvm - Another World bytecode VM

Usage:
  awvm [options] [rom-dir]

Arguments:
  rom-dir       ROMファイル（bytecode.rom, palettes.rom, cinematic.rom など）を含むディレクトリ
                省略時は設定ファイルの [rom] dir、またはカレントディレクトリ

Options:
  -c, --config <file>         設定ファイル（TOML）
  --rom <dir>                 ROMディレクトリ
  -t, --timeout <seconds>     指定秒数後にプログラムを終了（デフォルト: 無制限）
  --frames <n>                指定フレーム数を実行して終了（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --headless                  ヘッドレスモード（GUIなし、音声はWAV保存のみ）
  --pacing <policy>           ブリットのペーシング: variable, single
  --no-compat                 互換ハック（起動時の変数初期化）を無効化
  --trace                     命令トレースをdebugログに出力
  --mute                      音声をミュート
  --part <n>                  開始パート（0-9）
  --dump-frame <file>         終了時の表示画面をBMPで保存
  --capture-wav <file>        ミキサー出力をWAVで保存
  --save-state <file>         終了時にステートを保存
  --load-state <file>         起動時にステートを読み込む
  --disasm                    開始パートのバイトコードを逆アセンブルして終了
  -h, --help                  このヘルプを表示

Environment Variables:
  AWVM_HEADLESS=1             ヘッドレスモードを有効化
  AWVM_TIMEOUT=<seconds>      タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル

Examples:
  awvm /path/to/roms                             ウィンドウで実行
  awvm --headless --frames 600 /path/to/roms     600フレーム実行して終了
  awvm --disasm --part 1 /path/to/roms           パート1のバイトコードを逆アセンブル
  AWVM_HEADLESS=1 awvm --capture-wav out.wav .   環境変数でヘッドレスモード
`)
}
