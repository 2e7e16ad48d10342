package ui

import (
	"encoding/binary"
	"time"

	"github.com/mrolfs/gbcore/internal/emu"
)

// apuStream implements io.Reader by pulling PCM frames from the emulator
// APU and converting them to 16-bit little-endian stereo, the shape
// ebiten's audio.Player expects.
type apuStream struct {
	m     *emu.Machine
	mono  bool
	muted *bool
}

func (s *apuStream) Read(p []byte) (int, error) {
	if len(p) < 4 || s.m == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	if s.muted != nil && *s.muted {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	want := len(p) / 4
	var frames []int16
	deadline := time.Now().Add(8 * time.Millisecond)
	for {
		frames = s.m.APUPullStereo(want)
		if len(frames) > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	i := 0
	for j := 0; j+1 < len(frames) && i+3 < len(p); j += 2 {
		l, r := frames[j], frames[j+1]
		if s.mono {
			mix := int16((int32(l) + int32(r)) / 2)
			l, r = mix, mix
		}
		binary.LittleEndian.PutUint16(p[i:], uint16(l))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(r))
		i += 4
	}
	for ; i+3 < len(p); i += 4 {
		binary.LittleEndian.PutUint16(p[i:], 0)
		binary.LittleEndian.PutUint16(p[i+2:], 0)
	}
	return len(p), nil
}
