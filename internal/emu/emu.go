package emu

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrolfs/gbcore/internal/bus"
	"github.com/mrolfs/gbcore/internal/cart"
	"github.com/mrolfs/gbcore/internal/config"
	"github.com/mrolfs/gbcore/internal/cpu"
	"github.com/mrolfs/gbcore/internal/logging"
	"github.com/mrolfs/gbcore/internal/savestate"
)

// Config is re-exported so existing callers that wrote emu.Config keep
// working; the canonical type now lives in internal/config.
type Config = config.Config

// Buttons is the host-facing input snapshot for one frame.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// cyclesPerFrame matches the DMG's ~59.7 Hz refresh: 70224 T-cycles/frame.
const cyclesPerFrame = 70224

// Machine orchestrates the CPU, Bus (which owns the PPU, timers, DMA,
// joypad, serial), and the loaded cartridge behind the Core API a front
// end drives: LoadROM, SetKey/SetButtons, Tick/Frame, Framebuffer,
// SaveState/LoadState, AttachSerial.
type Machine struct {
	cfg config.Config
	log zerolog.Logger

	bus *bus.Bus
	cpu *cpu.CPU

	romPath string
	buttons Buttons
}

// New constructs a Machine with no cartridge loaded; call LoadROM before
// Tick/Frame.
func New(cfg config.Config) *Machine {
	cfg.ApplyDefaults()
	return &Machine{cfg: cfg, log: logging.Nop()}
}

// SetLogger installs a structured logger for emulation diagnostics
// (trace lines, cartridge info, save/load events). Optional: the zero
// value uses a no-op logger.
func (m *Machine) SetLogger(l zerolog.Logger) { m.log = l }

// LoadROM parses rom, constructs the matching cartridge, and resets the
// CPU/Bus to run it. Returns cart.ErrInvalidROM or cart.ErrUnsupportedMBC
// on a bad or unrecognized cartridge.
func (m *Machine) LoadROM(rom []byte, bootROM []byte) error {
	c, err := cart.Load(rom)
	if err != nil {
		m.log.Warn().Err(err).Int("rom_bytes", len(rom)).Msg("rom rejected")
		if errors.Is(err, cart.ErrInvalidROM) || errors.Is(err, cart.ErrUnsupportedMBC) {
			return err
		}
		return fmt.Errorf("load rom: %w", err)
	}
	b := bus.NewWithCartridge(c)
	if len(bootROM) >= 0x100 {
		b.SetBootROM(bootROM)
	}
	m.bus = b
	m.cpu = cpu.New(b)
	b.SetCPU(m.cpu)
	if m.cfg.Trace {
		m.cpu.SetLogger(m.log)
	}
	b.APU().SetLogger(m.log)
	b.APU().SetMixGain(m.cfg.APUMixGain)
	if len(bootROM) < 0x100 {
		m.cpu.ResetNoBoot()
	}
	m.log.Info().
		Str("title", c.Header().Title).
		Str("type", c.Header().CartTypeStr).
		Int("rom_banks", c.Header().ROMBanks).
		Int("ram_bytes", c.Header().RAMSizeBytes).
		Msg("rom loaded")
	return nil
}

// LoadROMFromFile is a convenience used by front ends that want the
// Machine to remember a path for deriving a battery-save sidecar file.
func (m *Machine) LoadROMFromFile(path string) { m.romPath = path }

// ROMPath returns the path last recorded by LoadROMFromFile, or "".
func (m *Machine) ROMPath() string { return m.romPath }

// Cartridge exposes the loaded cartridge, e.g. for header inspection or
// RTC advancement; nil if no ROM is loaded.
func (m *Machine) Cartridge() cart.Cartridge {
	if m.bus == nil {
		return nil
	}
	return m.bus.Cart()
}

// AdvanceRTCSeconds fast-forwards an MBC3 cartridge's real-time clock by
// n seconds, for a host restoring a save made some wall-clock time ago.
// A no-op for cartridges without a clock.
func (m *Machine) AdvanceRTCSeconds(n int) {
	if rtc, ok := m.Cartridge().(interface{ AdvanceRTCSeconds(int) }); ok {
		rtc.AdvanceRTCSeconds(n)
	}
}

// SetButtons updates the pressed-button snapshot and, when a ROM is loaded,
// forwards it to the joypad immediately.
func (m *Machine) SetButtons(b Buttons) {
	m.buttons = b
	if m.bus != nil {
		m.bus.SetJoypadState(b.mask())
	}
}

// SetKey is a single-button convenience wrapper over SetButtons, named to
// match the one-key-at-a-time style some front ends (tcell key events)
// naturally produce.
func (m *Machine) SetKey(name string, pressed bool) {
	b := m.buttons
	switch name {
	case "A":
		b.A = pressed
	case "B":
		b.B = pressed
	case "Start":
		b.Start = pressed
	case "Select":
		b.Select = pressed
	case "Up":
		b.Up = pressed
	case "Down":
		b.Down = pressed
	case "Left":
		b.Left = pressed
	case "Right":
		b.Right = pressed
	}
	m.SetButtons(b)
}

// APUPullStereo returns up to max interleaved [L,R] int16 frames generated
// since the last pull, for a front end's audio player callback.
func (m *Machine) APUPullStereo(max int) []int16 {
	if m.bus == nil {
		return nil
	}
	return m.bus.APU().PullStereo(max)
}

// APUBufferedStereo reports how many stereo frames are currently queued.
func (m *Machine) APUBufferedStereo() int {
	if m.bus == nil {
		return 0
	}
	return m.bus.APU().StereoAvailable()
}

// APUClearAudioLatency drops any buffered audio, used when an audio player
// is (re)started to avoid playing a backlog as a burst.
func (m *Machine) APUClearAudioLatency() {
	if m.bus == nil {
		return
	}
	a := m.bus.APU()
	a.PullStereo(a.StereoAvailable())
}

// SetUseFetcherBG is kept for front-end compatibility; the PPU no longer
// has a separate legacy/fetcher switch, so this is a no-op.
func (m *Machine) SetUseFetcherBG(bool) {}

// ROMTitle returns the loaded cartridge's header title, or "" if none.
func (m *Machine) ROMTitle() string {
	if c := m.Cartridge(); c != nil {
		return c.Header().Title
	}
	return ""
}

// BootROMActive reports whether a boot ROM is currently overlaying the
// cartridge at 0x0000-0x00FF.
func (m *Machine) BootROMActive() bool {
	if m.bus == nil {
		return false
	}
	return m.bus.BootROMActive()
}

// AttachSerial routes the serial port's outgoing byte stream to w (e.g. a
// test-ROM harness capturing Blargg/Mooneye output).
func (m *Machine) AttachSerial(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// Tick runs the CPU/Bus for approximately cycles T-cycles, returning once
// at least that many cycles have elapsed (CPU instructions are atomic, so
// this may overshoot by up to one instruction's length).
func (m *Machine) Tick(cycles int) {
	if m.cpu == nil {
		return
	}
	spent := 0
	for spent < cycles {
		spent += m.cpu.Step()
	}
}

// Frame advances the machine to the start of the next VBlank (PPU mode 1),
// one video frame. A call landing inside the VBlank left by the previous
// call first steps out of it before looking for the next one. Twice
// cyclesPerFrame bounds the two searches together, as a safety net for an
// LCD that's off and so never changes mode on its own.
func (m *Machine) Frame() {
	if m.cpu == nil {
		return
	}
	spent := 0
	for spent < cyclesPerFrame*2 && m.bus.PPU().Mode() == 1 {
		spent += m.cpu.Step()
	}
	for spent < cyclesPerFrame*2 && m.bus.PPU().Mode() != 1 {
		spent += m.cpu.Step()
	}
}

// StepFrame is a legacy alias for Frame, kept for front ends ported
// directly from the teacher's Milestone-0 API.
func (m *Machine) StepFrame() { m.Frame() }

// Framebuffer returns the current RGBA8888 160x144 frame.
func (m *Machine) Framebuffer() []byte {
	if m.bus == nil {
		return make([]byte, 160*144*4)
	}
	return m.bus.PPU().Framebuffer()
}

// SaveState serializes the full machine (bus, ppu, cart, apu, and the CPU
// registers the bus holds a back-reference to via SetCPU) into a versioned,
// checksummed envelope.
func (m *Machine) SaveState() []byte {
	if m.bus == nil {
		return nil
	}
	payload := m.bus.SaveState()
	return savestate.Wrap(payload)
}

// LoadState restores a snapshot produced by SaveState. Returns
// savestate.ErrStateVersionMismatch or savestate.ErrStateCorrupt on a
// bad envelope; the machine is left unmodified in that case.
func (m *Machine) LoadState(data []byte) error {
	if m.bus == nil {
		return errors.New("emu: no rom loaded")
	}
	payload, err := savestate.Unwrap(data)
	if err != nil {
		m.log.Warn().Err(err).Int("state_bytes", len(data)).Msg("state rejected")
		return err
	}
	m.bus.LoadState(payload)
	return nil
}

// LoadBattery restores persisted external RAM (and, for MBC3+Timer
// cartridges, the RTC trailer) into the loaded cartridge. Reports false
// if no battery-backed cartridge is loaded.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.Cartridge().(cart.BatteryBacked)
	if !ok || !bb.HasBattery() {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns the loaded cartridge's external RAM (plus RTC
// trailer for timer cartridges) for the host to persist. Reports false
// if no battery-backed cartridge is loaded.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.Cartridge().(cart.BatteryBacked)
	if !ok || !bb.HasBattery() {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// CompatPaletteRGB returns a cosmetic 4-shade RGB replacement for the DMG
// grayscale palette, chosen by title/header heuristics (see
// compat_tables.go); it does not consult Config.CompatMode. Front ends may recolor the
// framebuffer with it at presentation time; the core PPU itself always
// renders plain DMG shades.
func (m *Machine) CompatPaletteRGB() ([4][3]byte, string) {
	var h *cart.Header
	if c := m.Cartridge(); c != nil {
		h = c.Header()
	}
	id, _ := autoCompatPaletteFromHeader(h)
	if id < 0 || id >= len(cgbCompatSets) {
		id = 0
	}
	return cgbCompatSets[id], cgbCompatSetNames[id]
}

// SaveFileName derives the conventional battery-save sidecar path for the
// currently loaded ROM (path-with-.gb-extension -> same path with .sav).
func SaveFileName(romPath string) string {
	ext := filepath.Ext(romPath)
	return romPath[:len(romPath)-len(ext)] + ".sav"
}
