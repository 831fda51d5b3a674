package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/zurustar/awvm/pkg/audio"
	"github.com/zurustar/awvm/pkg/cli"
	"github.com/zurustar/awvm/pkg/config"
	"github.com/zurustar/awvm/pkg/logger"
	"github.com/zurustar/awvm/pkg/machine"
	"github.com/zurustar/awvm/pkg/opcode"
	"github.com/zurustar/awvm/pkg/resource"
	"github.com/zurustar/awvm/pkg/video"
	"github.com/zurustar/awvm/pkg/vm"
	"github.com/zurustar/awvm/pkg/window"
)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config   *cli.Config
	settings *config.Config
	log      *slog.Logger
	rom      *resource.Set
	stdout   io.Writer
	recorder *audio.Recorder
	wavFile  *os.File
}

// New Applicationを作成
func New() *Application {
	return &Application{stdout: os.Stdout}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Info("Application started")

	// 3. 設定ファイルの読み込み（コマンドラインフラグで上書き）
	if err := app.loadSettings(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 4. ROMの読み込み
	if err := app.loadROM(); err != nil {
		return fmt.Errorf("failed to load ROM: %w", err)
	}

	// 5. 逆アセンブルモード
	if app.config.Disasm {
		return app.disassemble()
	}

	// 6. マシンの構築と開始
	m, err := app.buildMachine()
	if err != nil {
		return fmt.Errorf("failed to build machine: %w", err)
	}
	defer m.Shutdown()

	// 7. 実行（ヘッドレス または ウィンドウ）
	var runErr error
	if app.config.Headless {
		runErr = app.runHeadless(m)
	} else {
		runErr = window.Run(m, m.Sound(), window.Options{
			Title:   app.settings.Window.Title,
			Scale:   app.settings.Window.Scale,
			Timeout: app.config.Timeout,
			Muted:   app.settings.Audio.Muted,
			Tap:     app.tap(),
		})
	}

	// 8. 終了処理（ステート保存、画面保存、WAV保存）
	if err := app.finish(m); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("failed to run machine: %w", runErr)
	}

	app.log.Info("Application terminated normally", "frames", m.Frames())
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	parsed, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = parsed
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLogger(app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.Component("app")
	return nil
}

// loadSettings 設定ファイルを読み込み、フラグを適用する
func (app *Application) loadSettings() error {
	settings := config.Default()
	if app.config.ConfigPath != "" {
		loaded, err := config.Load(app.config.ConfigPath)
		if err != nil {
			return err
		}
		settings = loaded
		app.log.Info("Config loaded", "path", settings.Path)
	}
	app.config.Apply(settings)
	if err := settings.Validate(); err != nil {
		return err
	}
	app.settings = settings
	return nil
}

// loadROM ROMディレクトリから全リージョンを読み込む
func (app *Application) loadROM() error {
	dir := app.settings.ROM.Dir
	rom, err := resource.Load(os.DirFS(dir), ".")
	if err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	if len(rom.Missing) > 0 {
		app.log.Warn("Optional ROM regions missing", "regions", rom.Missing)
	}
	app.rom = rom
	app.log.Info("ROM loaded", "dir", dir)
	return nil
}

// disassemble 開始パートのバイトコードを逆アセンブルして出力する
func (app *Application) disassemble() error {
	part := app.settings.Machine.StartPart
	code := app.rom.Bytecode(part)
	if len(code) == 0 {
		return fmt.Errorf("no bytecode for part %d", part)
	}

	texts := video.NewStringTable(app.rom.Strings())
	d := opcode.Disassembler{Strings: texts.Lookup}
	for _, ins := range d.Listing(code, 0) {
		if _, err := fmt.Fprintf(app.stdout, "%04X: %s\n", ins.PC, ins.Text); err != nil {
			return err
		}
	}
	return nil
}

// buildMachine 設定に従ってマシンを構築し、開始パートまたはステートから開始する
func (app *Application) buildMachine() (*machine.Machine, error) {
	s := app.settings

	pacing := vm.PacingVariable
	if s.Machine.Pacing == config.PacingSingle {
		pacing = vm.PacingSingle
	}

	if app.config.CaptureWAV != "" {
		f, err := os.Create(app.config.CaptureWAV)
		if err != nil {
			return nil, fmt.Errorf("failed to create WAV file: %w", err)
		}
		app.wavFile = f
		app.recorder = audio.NewRecorder(f, s.Audio.SampleRate)
	}

	opts := []machine.Option{
		machine.WithCyclesPerFrame(s.Machine.CyclesPerFrame),
		machine.WithSlice(s.Slice()),
		machine.WithVMOptions(
			vm.WithLogger(logger.Component("vm")),
			vm.WithPacing(pacing),
			vm.WithCompatHacks(s.Machine.CompatHacks),
			vm.WithRandomSeed(s.Machine.RandomSeed),
			vm.WithTrace(s.Machine.Trace),
		),
		machine.WithAudioOptions(
			audio.WithSampleRate(s.Audio.SampleRate),
		),
	}
	if app.config.Headless {
		opts = append(opts, machine.WithVirtualTime(app.tap()))
	}

	m := machine.New(app.rom, opts...)
	if err := app.startMachine(m); err != nil {
		m.Shutdown()
		if app.wavFile != nil {
			app.wavFile.Close()
			app.recorder = nil
		}
		return nil, err
	}
	return m, nil
}

// startMachine 開始パートを起動し、指定があればステートを読み込む
func (app *Application) startMachine(m *machine.Machine) error {
	if err := m.Start(app.settings.Machine.StartPart); err != nil {
		return err
	}
	if app.config.LoadState == "" {
		return nil
	}
	f, err := os.Open(app.config.LoadState)
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}
	defer f.Close()
	return m.LoadState(f)
}

// tap WAV保存が有効な場合はミキサー出力の受け口を返す
func (app *Application) tap() func([]int16) {
	if app.recorder == nil {
		return nil
	}
	return app.recorder.Tap
}

// runHeadless ウィンドウなしで指定フレーム数またはタイムアウトまで実行する
func (app *Application) runHeadless(m *machine.Machine) error {
	if app.config.Frames == 0 && app.config.Timeout == 0 {
		return fmt.Errorf("headless mode needs --frames or --timeout")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}

	err := m.Run(ctx, app.config.Frames, nil)
	if errors.Is(err, context.DeadlineExceeded) {
		app.log.Info("Timeout reached, terminating")
		return nil
	}
	return err
}

// finish 終了時の出力ファイルを書き出す
func (app *Application) finish(m *machine.Machine) error {
	if path := app.config.SaveState; path != "" {
		if err := writeFile(path, m.SaveState); err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}
		app.log.Info("State saved", "path", path)
	}

	if path := app.config.DumpFrame; path != "" {
		if err := writeFile(path, m.Video().WriteBMP); err != nil {
			return fmt.Errorf("failed to dump frame: %w", err)
		}
		app.log.Info("Frame dumped", "path", path)
	}

	if app.recorder != nil {
		m.Shutdown()
		err := app.recorder.Close()
		if cerr := app.wavFile.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to write WAV file: %w", err)
		}
		app.log.Info("Audio captured", "path", app.config.CaptureWAV, "samples", app.recorder.Frames())
	}
	return nil
}

// writeFile path を作成して write で内容を書き込む
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
