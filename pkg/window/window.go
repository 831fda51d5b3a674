package window

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	ebaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/zurustar/awvm/pkg/audio"
	"github.com/zurustar/awvm/pkg/logger"
	"github.com/zurustar/awvm/pkg/machine"
	"github.com/zurustar/awvm/pkg/video"
	"github.com/zurustar/awvm/pkg/vm"
	"golang.org/x/image/font/basicfont"
)

// pauseFace は一時停止表示のフォント
var pauseFace = text.NewGoXFace(basicfont.Face7x13)

// FrameRunner は1フレーム分VMを実行する
type FrameRunner interface {
	RunFrame(in vm.Input) machine.Frame
}

// Keyboard はキー状態を返す（テストで差し替え可能）
type Keyboard interface {
	Pressed(k ebiten.Key) bool
	JustPressed(k ebiten.Key) bool
}

// ebitenKeyboard はEbitengineのキー状態
type ebitenKeyboard struct{}

func (ebitenKeyboard) Pressed(k ebiten.Key) bool     { return ebiten.IsKeyPressed(k) }
func (ebitenKeyboard) JustPressed(k ebiten.Key) bool { return inpututil.IsKeyJustPressed(k) }

// letterKeys はA-Zキーと文字の対応
var letterKeys = func() []ebiten.Key {
	keys := make([]ebiten.Key, 26)
	for i := range keys {
		keys[i] = ebiten.KeyA + ebiten.Key(i)
	}
	return keys
}()

// Game はEbitengineのゲームインターフェースを実装する
type Game struct {
	runner   FrameRunner
	keyboard Keyboard
	now      func() time.Time

	timeout   time.Duration // タイムアウト時間
	startTime time.Time     // 開始時刻
	nextFrame time.Time     // 次のフレームを実行する時刻
	paused    bool

	// Present で受け取った最新フレーム（RGBA）
	pixels []byte
	dirty  bool
	screen *ebiten.Image

	mu sync.Mutex
}

// NewGame Gameを作成
func NewGame(runner FrameRunner, timeout time.Duration) *Game {
	g := &Game{
		runner:   runner,
		keyboard: ebitenKeyboard{},
		now:      time.Now,
		timeout:  timeout,
		pixels:   make([]byte, video.Width*video.Height*4),
	}
	g.startTime = g.now()
	return g
}

// SetKeyboard キー入力のソースを差し替える
func (g *Game) SetKeyboard(k Keyboard) { g.keyboard = k }

// SetClock 時刻のソースを差し替える
func (g *Game) SetClock(now func() time.Time) {
	g.now = now
	g.startTime = now()
	g.nextFrame = time.Time{}
}

// Present implements video.FrameSink. It converts the paletted frame to
// RGBA for the next Draw.
func (g *Game) Present(img *image.Paletted) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, idx := range img.Pix {
		r, gr, b, _ := img.Palette[idx].RGBA()
		p := g.pixels[i*4 : i*4+4]
		p[0], p[1], p[2], p[3] = uint8(r>>8), uint8(gr>>8), uint8(b>>8), 0xFF
	}
	g.dirty = true
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	now := g.now()

	// タイムアウトチェック
	if g.timeout > 0 && now.Sub(g.startTime) >= g.timeout {
		return ebiten.Termination
	}

	// Escキーで終了
	if g.keyboard.JustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	// Pキーで一時停止の切り替え
	if g.keyboard.JustPressed(ebiten.KeyP) {
		g.paused = !g.paused
		g.nextFrame = now
	}
	if g.paused {
		return nil
	}

	// 前のフレームのポーズ時間が経過するまで待つ
	if now.Before(g.nextFrame) {
		return nil
	}
	f := g.runner.RunFrame(g.readInput())
	g.nextFrame = now.Add(f.Pause)
	return nil
}

// readInput キー状態をVMの入力に変換する
func (g *Game) readInput() vm.Input {
	k := g.keyboard
	in := vm.Input{
		Left:   k.Pressed(ebiten.KeyArrowLeft),
		Right:  k.Pressed(ebiten.KeyArrowRight),
		Up:     k.Pressed(ebiten.KeyArrowUp),
		Down:   k.Pressed(ebiten.KeyArrowDown),
		Action: k.Pressed(ebiten.KeySpace) || k.Pressed(ebiten.KeyEnter),
	}
	if k.JustPressed(ebiten.KeyBackspace) {
		in.LastChar = 8
	}
	for i, key := range letterKeys {
		if k.JustPressed(key) {
			in.LastChar = byte('a' + i)
		}
	}
	return in
}

// Paused 一時停止中かどうか
func (g *Game) Paused() bool { return g.paused }

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (g *Game) Draw(screen *ebiten.Image) {
	if g.screen == nil {
		g.screen = ebiten.NewImage(video.Width, video.Height)
	}
	g.mu.Lock()
	if g.dirty {
		g.screen.WritePixels(g.pixels)
		g.dirty = false
	}
	g.mu.Unlock()
	screen.DrawImage(g.screen, nil)

	// 一時停止中は右上に表示
	if g.paused {
		op := &text.DrawOptions{}
		op.GeoM.Translate(video.Width-4, 4)
		op.PrimaryAlign = text.AlignEnd
		text.Draw(screen, "PAUSED", pauseFace, op)
	}
}

// Layout 画面サイズを返す（ゲーム画面の 320x200）
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return video.Width, video.Height
}

// Options はウィンドウの設定
type Options struct {
	Title   string
	Scale   int
	Timeout time.Duration
	Muted   bool
	// Tap はミキサー出力を受け取る（WAV保存用）
	Tap func([]int16)
}

// Run GUIモードでウィンドウを実行する。sys が nil の場合は音声を出力しない
func Run(m *machine.Machine, sys *audio.System, opts Options) error {
	log := logger.Component("window")
	game := NewGame(m, opts.Timeout)
	m.Video().SetSink(game)

	// 音声出力（ミキサーをストリームとして再生）
	if sys != nil {
		sys.SetMuted(opts.Muted)
		ctx := ebaudio.NewContext(sys.SampleRate())
		stream := audio.NewStream(sys)
		if opts.Tap != nil {
			stream.SetTap(opts.Tap)
		}
		player, err := ctx.NewPlayer(stream)
		if err != nil {
			return fmt.Errorf("failed to create audio player: %w", err)
		}
		defer player.Close()
		player.SetBufferSize(50 * time.Millisecond)
		player.Play()
		log.Info("Audio output started", "sampleRate", sys.SampleRate())
	}

	// ウィンドウ設定
	scale := max(opts.Scale, 1)
	ebiten.SetWindowSize(video.Width*scale, video.Height*scale)
	ebiten.SetWindowTitle(opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	// ゲームを実行
	if err := ebiten.RunGame(game); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return nil
}

var _ video.FrameSink = (*Game)(nil)
