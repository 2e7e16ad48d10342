// Command gbterm is a terminal front end: it renders the DMG framebuffer
// as half-block characters over tcell and reads WASD/arrow keys as the
// joypad, for running a ROM over SSH or in a headless container with a
// TTY attached.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/mrolfs/gbcore/internal/config"
	"github.com/mrolfs/gbcore/internal/emu"
	"github.com/mrolfs/gbcore/internal/logging"
)

const (
	gbWidth  = 160
	gbHeight = 144
	frameDur = time.Second / 60
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootPath := flag.String("bootrom", "", "optional DMG boot ROM")
	logLevel := flag.String("log", "warn", "log level")
	flag.Parse()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gbterm -rom game.gb")
		os.Exit(1)
	}

	rom, err := os.ReadFile(*romPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var boot []byte
	if *bootPath != "" {
		if boot, err = os.ReadFile(*bootPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	log := logging.New(*logLevel, os.Stderr)
	m := emu.New(config.Config{LimitFPS: true})
	m.SetLogger(log)
	if err := m.LoadROM(rom, boot); err != nil {
		fmt.Fprintln(os.Stderr, "load rom:", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer screen.Fini()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	held := make(map[tcell.Key]bool)
	var heldRunes = make(map[rune]bool)
	running := true
	for running {
		frameStart := time.Now()

		for screen.HasPendingEvent() {
			switch ev := screen.PollEvent().(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					running = false
				}
				held[ev.Key()] = true
				if ev.Key() == tcell.KeyRune {
					heldRunes[ev.Rune()] = true
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		}

		m.SetKey("Up", held[tcell.KeyUp] || heldRunes['w'])
		m.SetKey("Down", held[tcell.KeyDown] || heldRunes['s'])
		m.SetKey("Left", held[tcell.KeyLeft] || heldRunes['a'])
		m.SetKey("Right", held[tcell.KeyRight] || heldRunes['d'])
		m.SetKey("A", heldRunes['z'])
		m.SetKey("B", heldRunes['x'])
		m.SetKey("Start", held[tcell.KeyEnter])
		m.SetKey("Select", heldRunes[' '])
		for k := range held {
			held[k] = false
		}
		for r := range heldRunes {
			heldRunes[r] = false
		}

		m.Frame()
		drawFrame(screen, m.Framebuffer(), m.BootROMActive())
		screen.Show()

		if wait := frameDur - time.Since(frameStart); wait > 0 {
			time.Sleep(wait)
		}
	}
}

func drawFrame(screen tcell.Screen, fb []byte, bootActive bool) {
	screen.Clear()
	termW, termH := screen.Size()
	if termW < gbWidth || termH < gbHeight/2 {
		msg := "terminal too small, need at least 160x72"
		for i, ch := range msg {
			if i < termW {
				screen.SetContent(i, termH/2, ch, nil, tcell.StyleDefault.Foreground(tcell.ColorRed))
			}
		}
		return
	}
	if bootActive {
		status := "[boot rom]"
		for i, ch := range status {
			screen.SetContent(i, gbHeight/2, ch, nil, tcell.StyleDefault.Foreground(tcell.ColorYellow))
		}
	}
	for y := 0; y < gbHeight; y += 2 {
		for x := 0; x < gbWidth; x++ {
			top := shadeAt(fb, x, y)
			bottom := byte(3)
			if y+1 < gbHeight {
				bottom = shadeAt(fb, x, y+1)
			}
			ch, fg, bg := halfBlock(top, bottom)
			screen.SetContent(x, y/2, ch, nil, tcell.StyleDefault.Foreground(fg).Background(bg))
		}
	}
}

// shadeAt maps an RGBA8888 DMG pixel (the PPU's four green-tinted shades,
// lightest to darkest) to a 0..3 shade index by nearest green-channel value.
func shadeAt(fb []byte, x, y int) byte {
	i := (y*gbWidth + x) * 4
	if i >= len(fb) {
		return 0
	}
	g := fb[i+1]
	switch {
	case g >= 0xDC:
		return 0
	case g >= 0x90:
		return 1
	case g >= 0x40:
		return 2
	default:
		return 3
	}
}

var shadeColors = [4]tcell.Color{tcell.ColorWhite, tcell.ColorSilver, tcell.ColorGray, tcell.ColorBlack}

func halfBlock(top, bottom byte) (rune, tcell.Color, tcell.Color) {
	if top == bottom {
		return '█', shadeColors[top], tcell.ColorDefault
	}
	return '▀', shadeColors[top], shadeColors[bottom]
}
