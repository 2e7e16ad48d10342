// Command gbheadless drives the emulation core for a fixed number of
// frames with no window attached, for CI and test-ROM harnesses: it can
// assert a final framebuffer checksum and dump the frame to a PNG.
package main

import (
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mrolfs/gbcore/internal/config"
	"github.com/mrolfs/gbcore/internal/emu"
	"github.com/mrolfs/gbcore/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "gbheadless",
		Usage: "run a Game Boy ROM for N frames with no display attached",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rom", Required: true, Usage: "path to ROM (.gb)"},
			&cli.StringFlag{Name: "bootrom", Usage: "optional DMG boot ROM"},
			&cli.IntFlag{Name: "frames", Value: 300, Usage: "frames to run"},
			&cli.StringFlag{Name: "outpng", Usage: "write final framebuffer to PNG at path"},
			&cli.StringFlag{Name: "expect", Usage: "assert framebuffer CRC32 (hex)"},
			&cli.StringFlag{Name: "serial-log", Usage: "write bytes written to the serial port here (test-ROM output)"},
			&cli.StringFlag{Name: "log", Value: "info", Usage: "log level"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logging.New(c.String("log"), os.Stderr)

	rom, err := os.ReadFile(c.String("rom"))
	if err != nil {
		return fmt.Errorf("read rom: %w", err)
	}
	var boot []byte
	if p := c.String("bootrom"); p != "" {
		if boot, err = os.ReadFile(p); err != nil {
			return fmt.Errorf("read bootrom: %w", err)
		}
	}

	m := emu.New(config.Config{LimitFPS: false})
	m.SetLogger(log)
	if err := m.LoadROM(rom, boot); err != nil {
		return fmt.Errorf("load rom: %w", err)
	}

	if p := c.String("serial-log"); p != "" {
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("create serial log: %w", err)
		}
		defer f.Close()
		m.AttachSerial(f)
	}

	frames := c.Int("frames")
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		m.Frame()
	}
	elapsed := time.Since(start)

	fb := m.Framebuffer()
	crc := crc32.ChecksumIEEE(fb)
	fps := float64(frames) / elapsed.Seconds()
	log.Info().Int("frames", frames).Dur("elapsed", elapsed).Float64("fps", fps).
		Bool("boot_rom_active", m.BootROMActive()).
		Str("fb_crc32", fmt.Sprintf("%08x", crc)).Msg("headless run complete")

	if out := c.String("outpng"); out != "" {
		if err := writeFramePNG(fb, 160, 144, out); err != nil {
			return fmt.Errorf("write png: %w", err)
		}
	}

	if want := c.String("expect"); want != "" {
		want = strings.TrimPrefix(strings.ToLower(want), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("framebuffer checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func writeFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{Pix: append([]byte(nil), pix...), Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
