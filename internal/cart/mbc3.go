package cart

import (
	"bytes"
	"encoding/gob"
)

// cpuHz is the DMG master clock frequency, used to derive how many
// T-cycles correspond to one real-time second for the RTC.
const cpuHz = 4194304

// rtc models MBC3's real-time-clock registers: seconds, minutes, hours,
// day counter (9 bits, split across day-low and the day-high control
// byte which also carries the halt and day-counter-overflow flags).
type rtc struct {
	Seconds, Minutes, Hours byte
	DayLow                  byte
	DayHigh                 byte // bit0: day bit 8, bit6: halt, bit7: day counter carry

	// Latched snapshot, exposed to the CPU while a latch is active.
	LatchedSeconds, LatchedMinutes, LatchedHours byte
	LatchedDayLow, LatchedDayHigh                byte

	latchWroteOne bool
	cycleAccum    int64
}

const (
	rtcHaltBit    = 1 << 6
	rtcOverflowBit = 1 << 7
)

// tick advances the RTC by cycles T-cycles of wall-clock time, unless halted.
func (r *rtc) tick(cycles int) {
	if r.DayHigh&rtcHaltBit != 0 {
		return
	}
	r.cycleAccum += int64(cycles)
	for r.cycleAccum >= cpuHz {
		r.cycleAccum -= cpuHz
		r.advanceSecond()
	}
}

// advanceSeconds fast-forwards the clock by n real-time seconds, for a
// host that wants to catch up a save after time away (see
// Machine.AdvanceRTCSeconds in internal/emu).
func (r *rtc) advanceSeconds(n int) {
	if r.DayHigh&rtcHaltBit != 0 {
		return
	}
	for i := 0; i < n; i++ {
		r.advanceSecond()
	}
}

func (r *rtc) advanceSecond() {
	r.Seconds++
	if r.Seconds < 60 {
		return
	}
	r.Seconds = 0
	r.Minutes++
	if r.Minutes < 60 {
		return
	}
	r.Minutes = 0
	r.Hours++
	if r.Hours < 24 {
		return
	}
	r.Hours = 0
	day := uint16(r.DayLow) | uint16(r.DayHigh&0x01)<<8
	day++
	if day > 0x1FF {
		day = 0
		r.DayHigh |= rtcOverflowBit
	}
	r.DayLow = byte(day)
	r.DayHigh = (r.DayHigh &^ 0x01) | byte(day>>8)
}

// latch copies the live registers into the latched snapshot the CPU reads.
func (r *rtc) latch() {
	r.LatchedSeconds, r.LatchedMinutes, r.LatchedHours = r.Seconds, r.Minutes, r.Hours
	r.LatchedDayLow, r.LatchedDayHigh = r.DayLow, r.DayHigh
}

// read returns the latched register selected by a RAMB value of 0x08-0x0C.
func (r *rtc) read(sel byte) byte {
	switch sel {
	case 0x08:
		return r.LatchedSeconds
	case 0x09:
		return r.LatchedMinutes
	case 0x0A:
		return r.LatchedHours
	case 0x0B:
		return r.LatchedDayLow
	case 0x0C:
		return r.LatchedDayHigh
	}
	return 0xFF
}

// write updates the live (unlatched) register selected by sel.
func (r *rtc) write(sel, value byte) {
	switch sel {
	case 0x08:
		r.Seconds = value
	case 0x09:
		r.Minutes = value
	case 0x0A:
		r.Hours = value
	case 0x0B:
		r.DayLow = value
	case 0x0C:
		r.DayHigh = value
	}
}

// MBC3 implements ROM/RAM banking plus the RTC for MBC3-family cartridges.
// Banking behavior:
//   - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
//   - 2000-3FFF: ROM bank, 7 bits (0 maps to 1)
//   - 4000-5FFF: RAM bank 0-3, or RTC register select 0x08-0x0C
//   - 6000-7FFF: RTC latch: a write of 1 then 0 copies live registers into
//     the latched snapshot the CPU reads back
//   - A000-BFFF: external RAM, or the latched RTC register if 0x08-0x0C
//     is selected
type MBC3 struct {
	rom []byte
	ram []byte
	h   *Header
	rtc rtc

	ramEnabled  bool
	romBank     byte // 7 bits (1..127)
	ramOrRTCSel byte // 0..3 selects RAM bank; 0x08..0x0C selects an RTC register
	hasTimer    bool
}

func NewMBC3(rom []byte, h *Header) *MBC3 {
	m := &MBC3{rom: rom, h: h, hasTimer: hasRTC(h.CartType)}
	if h.RAMSizeBytes > 0 {
		m.ram = make([]byte, h.RAMSizeBytes)
	}
	m.romBank = 1
	return m
}

func (m *MBC3) Header() *Header { return m.h }

// Tick advances the RTC by cycles T-cycles; called from the bus's
// per-cycle tick alongside timers and the PPU.
func (m *MBC3) Tick(cycles int) {
	if m.hasTimer {
		m.rtc.tick(cycles)
	}
}

// AdvanceRTCSeconds fast-forwards the clock, for a host restoring a save
// made some real-time seconds ago.
func (m *MBC3) AdvanceRTCSeconds(n int) {
	if m.hasTimer {
		m.rtc.advanceSeconds(n)
	}
}

func (m *MBC3) selectsRTC() bool {
	return m.hasTimer && m.ramOrRTCSel >= 0x08 && m.ramOrRTCSel <= 0x0C
}

func (m *MBC3) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.selectsRTC() {
			return m.rtc.read(m.ramOrRTCSel)
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.ramOrRTCSel & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		m.ramOrRTCSel = value
	case addr < 0x8000:
		if !m.hasTimer {
			return
		}
		// Latch sequence: write 1 then write 0.
		if value == 0x01 {
			m.rtc.latchWroteOne = true
		} else if value == 0x00 && m.rtc.latchWroteOne {
			m.rtc.latch()
			m.rtc.latchWroteOne = false
		} else {
			m.rtc.latchWroteOne = false
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.selectsRTC() {
			m.rtc.write(m.ramOrRTCSel, value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		rb := int(m.ramOrRTCSel & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC3) HasBattery() bool { return hasBattery(m.h.CartType) }

// SaveRAM returns external RAM followed, for timer variants, by the
// 5 current RTC bytes, 5 latched RTC bytes, and an 8-byte last-timestamp
// field (spec.md §6's save-RAM trailer format).
func (m *MBC3) SaveRAM() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	if !m.hasTimer {
		return out
	}
	trailer := make([]byte, 18)
	trailer[0] = m.rtc.Seconds
	trailer[1] = m.rtc.Minutes
	trailer[2] = m.rtc.Hours
	trailer[3] = m.rtc.DayLow
	trailer[4] = m.rtc.DayHigh
	trailer[5] = m.rtc.LatchedSeconds
	trailer[6] = m.rtc.LatchedMinutes
	trailer[7] = m.rtc.LatchedHours
	trailer[8] = m.rtc.LatchedDayLow
	trailer[9] = m.rtc.LatchedDayHigh
	// bytes 10..17: last-timestamp, left to the host to fill in (the
	// core itself never reads the wall clock); zero here.
	return append(out, trailer...)
}

func (m *MBC3) LoadRAM(data []byte) {
	if !m.hasTimer {
		copy(m.ram, data)
		return
	}
	if len(data) < 18 {
		copy(m.ram, data)
		return
	}
	ramLen := len(data) - 18
	copy(m.ram, data[:ramLen])
	trailer := data[ramLen:]
	m.rtc.Seconds = trailer[0]
	m.rtc.Minutes = trailer[1]
	m.rtc.Hours = trailer[2]
	m.rtc.DayLow = trailer[3]
	m.rtc.DayHigh = trailer[4]
	m.rtc.LatchedSeconds = trailer[5]
	m.rtc.LatchedMinutes = trailer[6]
	m.rtc.LatchedHours = trailer[7]
	m.rtc.LatchedDayLow = trailer[8]
	m.rtc.LatchedDayHigh = trailer[9]
}

type mbc3State struct {
	RAM         []byte
	RTC         rtc
	RamEnabled  bool
	RomBank     byte
	RamOrRTCSel byte
}

func (m *MBC3) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3State{
		RAM: m.ram, RTC: m.rtc, RamEnabled: m.ramEnabled,
		RomBank: m.romBank, RamOrRTCSel: m.ramOrRTCSel,
	})
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	copy(m.ram, s.RAM)
	m.rtc = s.RTC
	m.ramEnabled = s.RamEnabled
	m.romBank = s.RomBank
	m.ramOrRTCSel = s.RamOrRTCSel
}
