package cart

import "testing"

func timerHeader() *Header {
	return &Header{CartType: 0x10, RAMSizeBytes: 0x2000} // MBC3+TIMER+RAM+BATTERY
}

func TestMBC3_RTC_LatchAndRead(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, timerHeader())

	m.Write(0x0000, 0x0A) // RAM/RTC enable
	m.rtc.Seconds, m.rtc.Minutes, m.rtc.Hours = 5, 6, 7
	m.rtc.DayLow, m.rtc.DayHigh = 0x01, 0x01

	// Latch sequence: write 1 then 0
	m.Write(0x6000, 0x01)
	m.Write(0x6000, 0x00)

	m.Write(0x4000, 0x08) // select RTC seconds
	if got := m.Read(0xA000); got != 5 {
		t.Fatalf("latched sec got %d want 5", got)
	}

	// Changing the live register must not affect the latched snapshot.
	m.rtc.Seconds = 30
	if got := m.Read(0xA000); got != 5 {
		t.Fatalf("latched sec changed unexpectedly: got %d", got)
	}

	m.Write(0x4000, 0x0B) // day low
	if got := m.Read(0xA000); got != 0x01 {
		t.Fatalf("latched day low got %02X want 01", got)
	}

	m.Write(0x4000, 0x0C) // day high
	got := m.Read(0xA000)
	if got&0x01 == 0 {
		t.Fatalf("latched day-high bit 8 not set")
	}
	if got&rtcHaltBit != 0 {
		t.Fatalf("halt bit set unexpectedly")
	}
}

func TestMBC3_RTC_NoLatchWithoutOneThenZero(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, timerHeader())
	m.Write(0x0000, 0x0A)
	m.rtc.Seconds = 42

	// Writing 0 directly (no preceding 1) must not latch.
	m.Write(0x6000, 0x00)
	m.Write(0x4000, 0x08)
	if got := m.Read(0xA000); got == 42 {
		t.Fatalf("latch fired without 1-then-0 sequence")
	}
}

func TestMBC3_RTC_TickRollover(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, timerHeader())
	m.rtc.Seconds, m.rtc.Minutes, m.rtc.Hours = 59, 59, 23
	m.rtc.DayLow, m.rtc.DayHigh = 0xFF, 0x01 // day 0x1FF, max

	m.Tick(cpuHz) // advance exactly one second

	if m.rtc.Seconds != 0 || m.rtc.Minutes != 0 || m.rtc.Hours != 0 {
		t.Fatalf("rollover got %02d:%02d:%02d", m.rtc.Hours, m.rtc.Minutes, m.rtc.Seconds)
	}
	if m.rtc.DayLow != 0 || m.rtc.DayHigh&0x01 != 0 {
		t.Fatalf("day did not wrap to 0: low=%d high=%02X", m.rtc.DayLow, m.rtc.DayHigh)
	}
	if m.rtc.DayHigh&rtcOverflowBit == 0 {
		t.Fatalf("day overflow bit not set after wraparound")
	}
}

func TestMBC3_RTC_HaltStopsTicking(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, timerHeader())
	m.rtc.DayHigh |= rtcHaltBit
	m.Tick(cpuHz * 5)
	if m.rtc.Seconds != 0 {
		t.Fatalf("halted RTC advanced: sec=%d", m.rtc.Seconds)
	}
}

func TestMBC3_RTC_AdvanceSecondsAndPersist(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, timerHeader())
	m.rtc.Seconds, m.rtc.Minutes, m.rtc.Hours = 30, 59, 23

	m.AdvanceRTCSeconds(90)
	if m.rtc.Hours != 0 || m.rtc.Minutes != 1 || m.rtc.Seconds != 0 {
		t.Fatalf("advance got %02d:%02d:%02d", m.rtc.Hours, m.rtc.Minutes, m.rtc.Seconds)
	}

	data := m.SaveRAM()
	n := NewMBC3(rom, timerHeader())
	n.LoadRAM(data)
	if n.rtc.Seconds != m.rtc.Seconds || n.rtc.Minutes != m.rtc.Minutes || n.rtc.Hours != m.rtc.Hours {
		t.Fatalf("rtc did not persist through SaveRAM/LoadRAM")
	}
}

func TestMBC3_RAMBanking(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, &Header{CartType: 0x12, RAMSizeBytes: 4 * 0x2000})
	m.Write(0x0000, 0x0A)
	m.Write(0x4000, 0x02) // RAM bank 2
	m.Write(0xA000, 0x55)
	if got := m.Read(0xA000); got != 0x55 {
		t.Fatalf("RAM bank2 RW failed: got %02X", got)
	}
	m.Write(0x4000, 0x00)
	if got := m.Read(0xA000); got == 0x55 {
		t.Fatalf("RAM bank0 unexpectedly aliases bank2")
	}
}
