// Command gbemu is the windowed front end: it opens an ebiten window,
// loads a ROM (and optional boot ROM), and drives the emulation core at
// real-time speed with keyboard input and audio.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrolfs/gbcore/internal/cart"
	"github.com/mrolfs/gbcore/internal/config"
	"github.com/mrolfs/gbcore/internal/emu"
	"github.com/mrolfs/gbcore/internal/logging"
	"github.com/mrolfs/gbcore/internal/ui"
)

type cliFlags struct {
	romPath  string
	bootROM  string
	scale    int
	title    string
	trace    bool
	logLevel string
	saveRAM  bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.romPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.bootROM, "bootrom", "", "optional DMG boot ROM")
	flag.IntVar(&f.scale, "scale", 3, "window scale")
	flag.StringVar(&f.title, "title", "gbemu", "window title")
	flag.BoolVar(&f.trace, "trace", false, "CPU trace log")
	flag.StringVar(&f.logLevel, "log", "info", "log level: debug, info, warn, error")
	flag.BoolVar(&f.saveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")
	flag.Parse()
	return f
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func savPathFor(romPath string) string {
	return strings.TrimSuffix(romPath, filepath.Ext(romPath)) + ".sav"
}

func main() {
	f := parseFlags()
	log := logging.New(f.logLevel, os.Stderr)

	if f.romPath == "" {
		log.Fatal().Msg("missing -rom")
	}
	rom := mustRead(f.romPath)
	boot := mustRead(f.bootROM)

	if h, err := cart.ParseHeader(rom); err == nil {
		log.Info().Str("title", h.Title).Str("type", h.CartTypeStr).
			Int("rom_banks", h.ROMBanks).Int("ram_bytes", h.RAMSizeBytes).Msg("rom parsed")
	}

	m := emu.New(config.Config{Trace: f.trace, LimitFPS: true})
	m.SetLogger(log)
	if err := m.LoadROM(rom, boot); err != nil {
		log.Fatal().Err(err).Msg("load rom")
	}
	if abs, err := filepath.Abs(f.romPath); err == nil {
		m.LoadROMFromFile(abs)
	} else {
		m.LoadROMFromFile(f.romPath)
	}

	savPath := savPathFor(m.ROMPath())
	if f.saveRAM {
		if data, err := os.ReadFile(savPath); err == nil {
			if m.LoadBattery(data) {
				log.Info().Str("path", savPath).Int("bytes", len(data)).Msg("loaded battery save")
			}
		}
	}

	app := ui.NewApp(ui.Config{Title: f.title, Scale: f.scale}, m)
	runErr := app.Run()

	if f.saveRAM {
		if data, ok := m.SaveBattery(); ok {
			if err := os.WriteFile(savPath, data, 0644); err != nil {
				log.Warn().Err(err).Msg("write battery save")
			} else {
				log.Info().Str("path", savPath).Msg("wrote battery save")
			}
		}
	}

	if runErr != nil {
		log.Fatal().Err(runErr).Msg("run")
	}
}
