// Package ui is the windowed ebiten front end for cmd/gbemu: it drives a
// Machine each frame, blits its framebuffer into a window, and forwards
// keyboard input back as joypad state.
package ui

import (
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/mrolfs/gbcore/internal/emu"
)

const sampleRate = 44100

type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image

	paused bool
	fast   bool
	turbo  int

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioSrc    *apuStream
	audioMuted  bool

	currentSlot int
	toastMsg    string
	toastTicks  int
}

// NewApp builds a windowed front end for m, sized cfg.Scale times the
// 160x144 DMG screen.
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	a := &App{cfg: cfg, m: m, turbo: 1}
	a.audioCtx = audio.NewContext(sampleRate)
	return a
}

// Run blocks running the ebiten game loop until the window is closed.
func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	if a.audioPlayer == nil {
		a.audioMuted = true
		a.m.APUClearAudioLatency()
		a.audioSrc = &apuStream{m: a.m, mono: !a.cfg.AudioStereo, muted: &a.audioMuted}
		if p, err := a.audioCtx.NewPlayer(a.audioSrc); err == nil {
			a.audioPlayer = p
			a.audioPlayer.SetBufferSize(0)
			a.audioPlayer.Play()
		}
	}

	var btn emu.Buttons
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		btn.Right = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		btn.Left = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		btn.Up = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		btn.Down = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyZ) {
		btn.A = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyX) {
		btn.B = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyEnter) {
		btn.Start = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyShiftRight) || ebiten.IsKeyPressed(ebiten.KeyShiftLeft) {
		btn.Select = true
	}
	a.m.SetButtons(btn)

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	if inpututil.IsKeyJustPressed(ebiten.KeyF6) && a.turbo > 1 {
		a.turbo--
		a.toast(fmt.Sprintf("turbo x%d", a.turbo))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF7) && a.turbo < 8 {
		a.turbo++
		a.toast(fmt.Sprintf("turbo x%d", a.turbo))
	}
	for i, k := range []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4} {
		if inpututil.IsKeyJustPressed(k) {
			a.currentSlot = i
			a.toast(fmt.Sprintf("slot %d selected", i+1))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.saveSlot()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		a.loadSlot()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) && a.paused {
		a.m.StepFrame()
	}

	a.audioMuted = a.paused
	if !a.paused {
		steps := 1
		if a.fast {
			steps = a.turbo
		}
		for i := 0; i < steps; i++ {
			a.m.StepFrame()
		}
	}
	if a.toastTicks > 0 {
		a.toastTicks--
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)
	if a.toastTicks > 0 {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 4, 4)
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) { return 160, 144 }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastTicks = 90
}

func (a *App) statePath() string {
	return fmt.Sprintf("%s.slot%d.state", a.m.ROMPath(), a.currentSlot+1)
}

func (a *App) saveSlot() {
	data := a.m.SaveState()
	if data == nil {
		return
	}
	if err := os.WriteFile(a.statePath(), data, 0644); err != nil {
		a.toast("save failed: " + err.Error())
		return
	}
	a.toast(fmt.Sprintf("saved slot %d", a.currentSlot+1))
}

func (a *App) loadSlot() {
	data, err := os.ReadFile(a.statePath())
	if err != nil {
		a.toast("slot is empty")
		return
	}
	if err := a.m.LoadState(data); err != nil {
		a.toast("load failed: " + err.Error())
		return
	}
	a.toast(fmt.Sprintf("loaded slot %d", a.currentSlot+1))
}
