package ppu

// dmgShades maps a 2-bit palette-applied color index to an RGBA8888 gray.
var dmgShades = [4][4]byte{
	{0xE0, 0xF8, 0xD0, 0xFF}, // lightest
	{0x88, 0xC0, 0x70, 0xFF},
	{0x34, 0x68, 0x56, 0xFF},
	{0x08, 0x18, 0x20, 0xFF}, // darkest
}

func applyPalette(pal, colorIndex byte) byte {
	return (pal >> (colorIndex * 2)) & 0x03
}

type spriteEntry struct {
	y, x   byte
	tile   byte
	attr   byte
	oamIdx int
}

const (
	spriteAttrPriority = 1 << 7
	spriteAttrYFlip    = 1 << 6
	spriteAttrXFlip    = 1 << 5
	spriteAttrPalette  = 1 << 4
)

// scanSprites returns up to 10 OAM entries intersecting scanline ly,
// in OAM order; X-ties during compositing are broken by that order.
func (p *PPU) scanSprites(ly byte) []spriteEntry {
	tall := p.lcdc&0x04 != 0
	height := byte(8)
	if tall {
		height = 16
	}
	var out []spriteEntry
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		sy := p.oam[base]
		sx := p.oam[base+1]
		tile := p.oam[base+2]
		attr := p.oam[base+3]
		top := int(sy) - 16
		if int(ly) < top || int(ly) >= top+int(height) {
			continue
		}
		out = append(out, spriteEntry{y: sy, x: sx, tile: tile, attr: attr, oamIdx: i})
	}
	return out
}

func (p *PPU) spritePixelRow(e spriteEntry, ly byte) [8]byte {
	tall := p.lcdc&0x04 != 0
	height := byte(8)
	tile := e.tile
	if tall {
		height = 16
		tile &^= 0x01
	}
	top := int(e.y) - 16
	row := byte(int(ly) - top)
	if e.attr&spriteAttrYFlip != 0 {
		row = height - 1 - row
	}
	if tall && row >= 8 {
		tile |= 0x01
		row -= 8
	}
	base := 0x8000 + uint16(tile)*16 + uint16(row)*2
	lo := p.Read(base)
	hi := p.Read(base + 1)
	var out [8]byte
	for px := 0; px < 8; px++ {
		bit := 7 - byte(px)
		ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
		if e.attr&spriteAttrXFlip != 0 {
			out[7-px] = ci
		} else {
			out[px] = ci
		}
	}
	return out
}

func (p *PPU) setPixel(x, y int, shade byte) {
	i := (y*160 + x) * 4
	c := dmgShades[shade&0x03]
	p.fb[i+0] = c[0]
	p.fb[i+1] = c[1]
	p.fb[i+2] = c[2]
	p.fb[i+3] = c[3]
}

// Read lets the PPU itself satisfy VRAMReader for the fetcher: it always
// reads raw VRAM bytes, bypassing the CPU-facing mode-3 access gate in
// CPURead since the fetcher is what's running during mode 3.
func (p *PPU) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return p.vram[addr-0x8000]
	}
	return 0xFF
}

var _ VRAMReader = (*PPU)(nil)
