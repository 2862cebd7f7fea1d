// Package ui presents a machine in an ebiten window and feeds the keyboard into it.
package ui

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"time"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/emu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/ppu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/image/font/basicfont"
)

const fastFrames = 5

// keyMap binds keyboard keys to joypad keys.
var keyMap = []struct {
	key ebiten.Key
	set func(*emu.Buttons)
}{
	{ebiten.KeyArrowRight, func(b *emu.Buttons) { b.Right = true }},
	{ebiten.KeyArrowLeft, func(b *emu.Buttons) { b.Left = true }},
	{ebiten.KeyArrowUp, func(b *emu.Buttons) { b.Up = true }},
	{ebiten.KeyArrowDown, func(b *emu.Buttons) { b.Down = true }},
	{ebiten.KeyZ, func(b *emu.Buttons) { b.A = true }},
	{ebiten.KeyX, func(b *emu.Buttons) { b.B = true }},
	{ebiten.KeyEnter, func(b *emu.Buttons) { b.Start = true }},
	{ebiten.KeyShiftRight, func(b *emu.Buttons) { b.Select = true }},
}

type App struct {
	cfg    Config
	m      *emu.Machine
	logger *log.Logger
	tex    *ebiten.Image
	shade  *ebiten.Image
	paused bool
	fast   bool
}

func NewApp(cfg Config, m *emu.Machine, logger *log.Logger) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(ppu.ScreenWidth*cfg.Scale, ppu.ScreenHeight*cfg.Scale)
	return &App{cfg: cfg, m: m, logger: logger}
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	var btn emu.Buttons
	for _, k := range keyMap {
		if ebiten.IsKeyPressed(k.key) {
			k.set(&btn)
		}
	}
	a.m.SetButtons(btn)

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	// Tab held runs several frames per update
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := a.m.Reset(); err != nil {
			return err
		}
		a.logger.Info("machine reset")
	}
	if a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		a.m.StepFrame()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if name, err := a.saveScreenshot(); err != nil {
			a.logger.Error("screenshot failed", log.Err(err))
		} else {
			a.logger.Info("screenshot saved", log.String("path", name))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	if a.paused {
		return nil
	}
	n := 1
	if a.fast {
		n = fastFrames
	}
	for range n {
		a.m.StepFrame()
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(ppu.ScreenWidth, ppu.ScreenHeight)
		a.shade = ebiten.NewImage(ppu.ScreenWidth, ppu.ScreenHeight)
		a.shade.Fill(color.RGBA{0, 0, 0, 128})
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)

	face := basicfont.Face7x13
	if a.paused {
		screen.DrawImage(a.shade, nil)
		text.Draw(screen, "PAUSED", face, 58, 70, color.White)
		text.Draw(screen, "N: step  P: resume", face, 17, 86, color.White)
	}
	if a.cfg.ShowFPS {
		text.Draw(screen, fmt.Sprintf("%.0f", ebiten.ActualFPS()), face, 2, 12, color.RGBA{0xFF, 0x40, 0x40, 0xFF})
	}
}

func (a *App) Layout(_, _ int) (int, int) { return ppu.ScreenWidth, ppu.ScreenHeight }

func (a *App) saveScreenshot() (string, error) {
	name := fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
	return name, SavePNG(a.m.Framebuffer(), name)
}

// SavePNG writes a 160x144 RGBA framebuffer to path.
func SavePNG(fb []byte, path string) error {
	img := &image.RGBA{
		Pix:    make([]byte, len(fb)),
		Stride: 4 * ppu.ScreenWidth,
		Rect:   image.Rect(0, 0, ppu.ScreenWidth, ppu.ScreenHeight),
	}
	copy(img.Pix, fb)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
