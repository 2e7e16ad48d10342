// Package config holds the ambient settings shared by the emulation core
// and its front ends: emulation-loop knobs that used to live in
// internal/emu.Config, and windowed-presentation knobs that used to live
// in each cmd's own UI config struct.
package config

// Config contains settings that affect emulation behavior and how a front
// end presents the machine.
type Config struct {
	Trace        bool // log CPU instructions
	LimitFPS     bool // ~60 Hz throttle flag; no code in this module reads it
	UseFetcherBG bool // not read; the PPU always renders BG via its fetcher/FIFO path

	Scale      int    // window scale factor for windowed front ends
	Title      string // window title
	CompatMode bool   // CGB-style palette heuristic flag; no code in this module reads it
	LogLevel   string // zerolog level name: "debug", "info", "warn", "error"

	APUMixGain float64 // headroom applied when mixing APU channels; 0 keeps the APU's own default
}

// ApplyDefaults fills zero-valued fields with sensible defaults. Safe to
// call on a Config loaded from flags/env where most fields are unset.
func (c *Config) ApplyDefaults() {
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
