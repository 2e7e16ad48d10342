package ppu

import (
	"bytes"
	"encoding/gob"
	"sort"
)

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, and the pixel-transfer
// fetcher/FIFO pipeline that turns them into a framebuffer.
type PPU struct {
	// memory
	vram [0x2000]byte // 0x8000–0x9FFF
	oam  [0xA0]byte   // 0xFE00–0xFE9F

	// regs
	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]
	lx  int // pixel column currently being output during pixel transfer [0..160]

	fb [160 * 144 * 4]byte // RGBA output, filled pixel-by-pixel during mode 3

	winLine int // internal window line counter, advances only on lines the window draws

	// pixel-transfer pipeline state, live only during mode 3
	bgFIFO          fifo
	objFIFO         objFIFO
	fetcher         bgFetcher
	pendingDiscard  int  // SCX%8 pixels to drop from the first tile fetched
	windowActive    bool // fetcher is currently sourcing window tiles this line
	windowStarted   bool // window fetch already triggered once this line
	spriteQueue     []spriteEntry
	spriteQueueIdx  int
	spriteFetchDots int // >0 while a sprite's row is being fetched; pauses BG output

	lineRegs [154]LineRegsSnapshot // per-scanline register snapshot, for window-timing tests

	req InterruptRequester
}

func New(req InterruptRequester) *PPU {
	p := &PPU{req: req}
	p.fetcher = *newBGFetcher(p, &p.bgFIFO)
	for i := range p.fb {
		if i%4 == 3 {
			p.fb[i] = 0xFF
		}
	}
	return p
}

// Framebuffer returns the current RGBA8888 160x144 frame. The slice is
// owned by the PPU and is overwritten pixel-by-pixel during mode 3;
// callers that need a stable snapshot (e.g. a save-state or a PNG dump)
// should copy it.
func (p *PPU) Framebuffer() []byte { return p.fb[:] }

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		// VRAM is inaccessible to CPU during mode 3 (return 0xFF)
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		// OAM is inaccessible during modes 2 and 3
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		// On DMG, bit7 reads as 1; bit6..3 are enables; bit2 coincidence; bit1..0 mode
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			// Turning LCD off resets LY/mode/FIFOs
			p.ly = 0
			p.dot = 0
			p.lx = 0
			p.bgFIFO.Clear()
			p.objFIFO.Clear()
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			// Turning LCD on: start at LY=0, mode 2 (OAM)
			p.ly = 0
			p.dot = 0
			p.winLine = 0
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// Tick advances PPU state by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 { // LCD off
			continue
		}
		p.dot++

		if p.ly < 144 {
			switch p.Mode() {
			case 2: // OAM Scan: fixed 80 dots
				if p.dot >= 80 {
					p.beginPixelTransfer()
					p.setMode(3)
				}
			case 3: // Pixel Transfer: variable 172-289 dots, ends when LX==160
				p.stepPixelTransfer()
				if p.lx >= 160 {
					p.setMode(0)
				}
			}
		}

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0)
				} // VBlank IF
				if (p.stat & (1 << 4)) != 0 {
					if p.req != nil {
						p.req(1)
					}
				} // STAT VBlank
			} else if p.ly > 153 {
				p.ly = 0
				p.winLine = 0
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

// beginPixelTransfer resets the fetcher/FIFOs and builds this scanline's
// sprite list at the mode2->mode3 boundary, per spec.md's OAM-scan step.
func (p *PPU) beginPixelTransfer() {
	p.lx = 0
	p.bgFIFO.Clear()
	p.objFIFO.Clear()
	p.pendingDiscard = int(p.scx) % 8
	p.windowActive = false
	p.windowStarted = false
	p.spriteFetchDots = 0
	p.spriteQueueIdx = 0

	if p.lcdc&0x02 != 0 {
		p.spriteQueue = p.scanSprites(p.ly)
		sort.SliceStable(p.spriteQueue, func(i, j int) bool {
			return p.spriteQueue[i].x < p.spriteQueue[j].x
		})
	} else {
		p.spriteQueue = nil
	}

	if int(p.ly) < len(p.lineRegs) {
		p.lineRegs[p.ly] = LineRegsSnapshot{SCX: p.scx, SCY: p.scy, WY: p.wy, WX: p.wx, WinLine: p.winLine}
	}

	p.configureBGFetcher()
	// The line's first tile fetch takes 6 extra dots, which gives mode 3
	// its 172-dot length with SCX=0 and no sprites or window.
	p.fetcher.cycle = -6
}

func (p *PPU) configureBGFetcher() {
	mapBase := uint16(0x9800)
	if p.lcdc&0x08 != 0 {
		mapBase = 0x9C00
	}
	row := uint16((p.scy + p.ly) / 8)
	mapRow := mapBase + row*32
	tileCol := int(p.scx) / 8
	fineY := (p.scy + p.ly) % 8
	p.fetcher.Configure(p.lcdc&0x10 != 0, mapRow, tileCol, fineY)
}

func (p *PPU) configureWindowFetcher() {
	mapBase := uint16(0x9800)
	if p.lcdc&0x40 != 0 {
		mapBase = 0x9C00
	}
	row := uint16(p.winLine / 8)
	mapRow := mapBase + row*32
	fineY := byte(p.winLine % 8)
	p.fetcher.Configure(p.lcdc&0x10 != 0, mapRow, 0, fineY)
	p.bgFIFO.Clear()
	p.windowActive = true
	p.windowStarted = true
	p.winLine++
}

// stepPixelTransfer advances the fetcher/FIFO pipeline by one dot: sprite
// fetches pause everything else, the window fetch restarts the pipeline
// once per line when LX reaches WX-7, and otherwise one BG+OBJ pixel pair
// is composited and pushed to the framebuffer per dot.
func (p *PPU) stepPixelTransfer() {
	if p.spriteFetchDots > 0 {
		p.spriteFetchDots--
		if p.spriteFetchDots == 0 {
			p.mergeCurrentSprite()
		}
		return
	}

	if p.lcdc&0x02 != 0 && p.spriteQueueIdx < len(p.spriteQueue) {
		sx := int(p.spriteQueue[p.spriteQueueIdx].x) - 8
		if sx < 0 {
			sx = 0
		}
		if sx == p.lx {
			p.spriteFetchDots = 6
			return
		}
	}

	if !p.windowStarted && p.lcdc&0x20 != 0 && p.lcdc&0x01 != 0 &&
		p.ly >= p.wy && int(p.wx)-7 == p.lx {
		p.configureWindowFetcher()
		return
	}

	p.fetcher.Step()
	if p.bgFIFO.Len() == 0 {
		return
	}

	ci, _ := p.bgFIFO.Pop()
	obj := p.objFIFO.Shift()

	if p.pendingDiscard > 0 {
		p.pendingDiscard--
		return
	}

	p.setPixel(p.lx, int(p.ly), p.compositePixel(ci, obj))
	p.lx++
}

func (p *PPU) mergeCurrentSprite() {
	e := p.spriteQueue[p.spriteQueueIdx]
	row := p.spritePixelRow(e, p.ly)
	pal := byte(0)
	if e.attr&spriteAttrPalette != 0 {
		pal = 1
	}
	p.objFIFO.Merge(row, pal, e.attr&spriteAttrPriority != 0)
	p.spriteQueueIdx++
}

// compositePixel applies BG/window priority, LCDC bit0 (DMG BG/window
// blanking), and the OBJ-over-BG priority bit to pick the final 2-bit
// shade for one column.
func (p *PPU) compositePixel(ci byte, obj objSlot) byte {
	bgColorIndex := ci
	if p.lcdc&0x01 == 0 {
		bgColorIndex = 0
	}
	if obj.ci != 0 && p.lcdc&0x02 != 0 {
		if !(obj.bgPriority && bgColorIndex != 0) {
			pal := p.obp0
			if obj.palette == 1 {
				pal = p.obp1
			}
			return applyPalette(pal, obj.ci)
		}
	}
	return applyPalette(p.bgp, bgColorIndex)
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0: // HBlank
		if (p.stat & (1 << 3)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 2: // OAM
		if (p.stat & (1 << 5)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if (p.stat & (1 << 6)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// LineRegsSnapshot captures the registers a scanline's pixel transfer began
// with, for tests observing window-trigger timing (WinLine in particular:
// the internal window-line counter only advances on lines the window
// actually draws).
type LineRegsSnapshot struct {
	SCX, SCY, WY, WX byte
	WinLine          int
}

// LineRegs returns the register snapshot captured when scanline ly entered
// pixel transfer, or the zero value if that line hasn't run yet.
func (p *PPU) LineRegs(ly int) LineRegsSnapshot {
	if ly < 0 || ly >= len(p.lineRegs) {
		return LineRegsSnapshot{}
	}
	return p.lineRegs[ly]
}

type objSlotState struct {
	CI         byte
	Palette    byte
	BGPriority bool
}

type spriteEntryState struct {
	Y, X, Tile, Attr byte
	OAMIdx           int
}

type ppuState struct {
	VRAM                                                   [0x2000]byte
	OAM                                                     [0xA0]byte
	LCDC, STAT, SCY, SCX, LY, LYC, BGP, OBP0, OBP1, WY, WX byte
	Dot, LX, WinLine                                       int

	PendingDiscard  int
	WindowActive    bool
	WindowStarted   bool
	SpriteFetchDots int
	SpriteQueueIdx  int
	SpriteQueue     []spriteEntryState

	BGFIFO  []byte
	ObjFIFO [8]objSlotState

	FetchTileData8000 bool
	FetchMapRow       uint16
	FetchTileCol      int
	FetchFineY        byte
	FetchStage        int
	FetchCycle        int
	FetchTileNum      byte
	FetchLo, FetchHi  byte
}

func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	s := ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, LX: p.lx, WinLine: p.winLine,

		PendingDiscard:  p.pendingDiscard,
		WindowActive:    p.windowActive,
		WindowStarted:   p.windowStarted,
		SpriteFetchDots: p.spriteFetchDots,
		SpriteQueueIdx:  p.spriteQueueIdx,

		BGFIFO: p.bgFIFO.Snapshot(),

		FetchTileData8000: p.fetcher.tileData8000,
		FetchMapRow:       p.fetcher.mapRow,
		FetchTileCol:      p.fetcher.tileCol,
		FetchFineY:        p.fetcher.fineY,
		FetchStage:        int(p.fetcher.stage),
		FetchCycle:        p.fetcher.cycle,
		FetchTileNum:      p.fetcher.tileNum,
		FetchLo:           p.fetcher.lo,
		FetchHi:           p.fetcher.hi,
	}
	for i, sl := range p.objFIFO.slots {
		s.ObjFIFO[i] = objSlotState{CI: sl.ci, Palette: sl.palette, BGPriority: sl.bgPriority}
	}
	for _, e := range p.spriteQueue {
		s.SpriteQueue = append(s.SpriteQueue, spriteEntryState{Y: e.y, X: e.x, Tile: e.tile, Attr: e.attr, OAMIdx: e.oamIdx})
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) {
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx, p.dot = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX, s.Dot
	p.lx, p.winLine = s.LX, s.WinLine

	p.pendingDiscard = s.PendingDiscard
	p.windowActive = s.WindowActive
	p.windowStarted = s.WindowStarted
	p.spriteFetchDots = s.SpriteFetchDots
	p.spriteQueueIdx = s.SpriteQueueIdx

	p.bgFIFO.Restore(s.BGFIFO)

	p.fetcher.tileData8000 = s.FetchTileData8000
	p.fetcher.mapRow = s.FetchMapRow
	p.fetcher.tileCol = s.FetchTileCol
	p.fetcher.fineY = s.FetchFineY
	p.fetcher.stage = fetchStage(s.FetchStage)
	p.fetcher.cycle = s.FetchCycle
	p.fetcher.tileNum = s.FetchTileNum
	p.fetcher.lo = s.FetchLo
	p.fetcher.hi = s.FetchHi

	p.objFIFO.Clear()
	for i, sl := range s.ObjFIFO {
		p.objFIFO.slots[i] = objSlot{ci: sl.CI, palette: sl.Palette, bgPriority: sl.BGPriority}
	}
	p.spriteQueue = p.spriteQueue[:0]
	for _, e := range s.SpriteQueue {
		p.spriteQueue = append(p.spriteQueue, spriteEntry{y: e.Y, x: e.X, tile: e.Tile, attr: e.Attr, oamIdx: e.OAMIdx})
	}
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }

// Mode returns the current LCD mode (STAT bits 0-1): 0 HBlank, 1 VBlank,
// 2 OAM Scan, 3 Pixel Transfer.
func (p *PPU) Mode() byte { return p.stat & 0x03 }
