// Package cart parses Game Boy cartridge headers and implements the
// memory-bank-controller families needed to run ROM-only, MBC1, MBC3,
// and MBC5 titles.
package cart

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Load; internal/emu wraps these into the
// Core API's LoadROM contract (see SPEC_FULL.md §7).
var (
	ErrInvalidROM     = errors.New("cart: invalid rom header")
	ErrUnsupportedMBC = errors.New("cart: unsupported cartridge type")
)

// Cartridge defines the minimal interface the Bus needs for ROM/RAM banking.
// Implementations can be ROM-only or MBC variants. Addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000-0x7FFF) and external RAM (0xA000-0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000-0x7FFF) and external RAM writes (0xA000-0xBFFF).
	Write(addr uint16, value byte)
	// SaveState/LoadState serialize internal banking registers and external RAM for save states.
	SaveState() []byte
	LoadState(data []byte)
	// Header returns the parsed cartridge header.
	Header() *Header
}

// BatteryBacked is an optional interface for cartridges with external RAM
// to be persisted. SaveRAM/LoadRAM operate in the save-RAM format from
// spec.md §6: raw external RAM bytes, with an RTC trailer appended for
// MBC3+Timer cartridges.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
	HasBattery() bool
}

// Load parses the ROM header and, if valid, constructs the matching
// cartridge implementation. It returns ErrInvalidROM when the header
// fails the logo/checksum check, and ErrUnsupportedMBC when the
// cartridge type byte names an MBC family this core does not implement.
func Load(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidROM, err)
	}
	if !h.Valid() {
		return nil, fmt.Errorf("%w: logo_valid=%v checksum_valid=%v", ErrInvalidROM, h.LogoValid, h.ChecksumValid)
	}

	switch h.CartType {
	case 0x00:
		return NewROMOnly(rom, h), nil
	case 0x01, 0x02, 0x03:
		return NewMBC1(rom, h), nil
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return NewMBC3(rom, h), nil
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return NewMBC5(rom, h), nil
	default:
		return nil, fmt.Errorf("%w: cart type %#02x (%s)", ErrUnsupportedMBC, h.CartType, h.CartTypeStr)
	}
}
