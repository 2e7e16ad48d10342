package ui

// Config contains window and audio settings for the windowed front end.
// Emulation-behavior knobs (trace, compat palette, etc.) live in
// internal/config.Config and are passed to emu.New separately.
type Config struct {
	Title       string // window title
	Scale       int    // integer upscaling factor
	AudioStereo bool   // true stereo output; false folds to mono
	AudioBufferMs int  // audio buffer size in ms; App does not read it (it calls SetBufferSize(0))
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.AudioBufferMs <= 0 {
		c.AudioBufferMs = 40
	}
}
