package ppu

import "testing"

func newSpritePriorityPPU(attr byte) *PPU {
	p := New(nil)

	// BG: tile 0 (default map entry), row with one opaque column, tile data
	// at 0x8000 (unsigned addressing), so x=10 lands on an opaque BG pixel.
	p.CPUWrite(0x8000, 0xFF) // lo plane, all bits set -> ci=1 across the row
	p.CPUWrite(0x8001, 0x00)

	// Sprite covering screen x=10 (OAM X=18, row = OAM Y=16 -> ly=0), single
	// opaque leftmost pixel.
	p.CPUWrite(0xFE00, 16) // Y
	p.CPUWrite(0xFE01, 18) // X
	p.CPUWrite(0xFE02, 1)  // tile 1
	p.CPUWrite(0xFE03, attr)
	p.CPUWrite(0x8010, 0x80) // tile 1 row0 lo: leftmost pixel opaque
	p.CPUWrite(0x8011, 0x00)

	p.CPUWrite(0xFF47, 0xE4) // BGP identity
	p.CPUWrite(0xFF48, 0xFF) // OBP0: ci1 -> shade3

	p.CPUWrite(0xFF40, 0x93) // LCD on, BG+OBJ enabled, 0x8000 addressing
	p.Tick(456)
	return p
}

func TestRenderScanline_SpritePriorityBehindBG(t *testing.T) {
	behind := newSpritePriorityPPU(0x80) // priority bit set: sprite hides behind a nonzero BG pixel
	onTop := newSpritePriorityPPU(0x00)

	withPriority := pixelAt(behind, 10, 0)
	withoutPriority := pixelAt(onTop, 10, 0)

	bgOnly := applyPalette(0xE4, 1) // BG pixel's own color, ci=1
	if shade := shadeIndex(withPriority); shade != bgOnly {
		t.Fatalf("sprite behind BG should stay hidden, got shade %d want BG shade %d", shade, bgOnly)
	}
	if withPriority == withoutPriority {
		t.Fatalf("clearing the priority bit should change the composited pixel")
	}
}

func TestRenderScanline_SpriteTieBreakByX(t *testing.T) {
	p := New(nil)

	// Two sprites both covering screen x=20, full opaque row, different
	// palettes so the winner is identifiable. Lower X wins regardless of
	// OAM order.
	p.CPUWrite(0x8000, 0xFF) // shared opaque tile row
	p.CPUWrite(0x8001, 0x00)

	p.CPUWrite(0xFE00, 16) // sprite 0: Y, X=24 -> covers x 16..23
	p.CPUWrite(0xFE01, 24)
	p.CPUWrite(0xFE02, 0)
	p.CPUWrite(0xFE03, 0x00) // OBP0

	p.CPUWrite(0xFE04, 16) // sprite 1: Y, X=21 -> covers x 13..20
	p.CPUWrite(0xFE05, 21)
	p.CPUWrite(0xFE06, 0)
	p.CPUWrite(0xFE07, 0x10) // OBP1

	p.CPUWrite(0xFF47, 0xE4) // BGP, irrelevant here (BG disabled)
	p.CPUWrite(0xFF48, 0xE4) // OBP0: ci1 -> shade1
	p.CPUWrite(0xFF49, 0xFF) // OBP1: ci1 -> shade3

	p.CPUWrite(0xFF40, 0x82) // LCD on, OBJ enabled, BG disabled

	p.Tick(456)

	got := shadeIndex(pixelAt(p, 20, 0))
	want := applyPalette(0xFF, 1) // sprite 1 (X=21, lower X) should win
	if got != want {
		t.Fatalf("tie-break at x=20 got shade %d want %d (lower-X sprite)", got, want)
	}
}

func pixelAt(p *PPU, x, y int) [4]byte {
	i := (y*160 + x) * 4
	fb := p.Framebuffer()
	return [4]byte{fb[i], fb[i+1], fb[i+2], fb[i+3]}
}

func shadeIndex(px [4]byte) byte {
	for i, s := range dmgShades {
		if s == px {
			return byte(i)
		}
	}
	return 0xFF
}
