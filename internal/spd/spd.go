// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package spd reads and decodes DDR5 Serial Presence Detect contents.
// Decoders take a Transport so the flow can run against the i2c hub on
// hardware and against canned byte arrays in tests. Byte offsets follow
// JESD400-5.
package spd

import (
	"github.com/platinasystems/log"
)

// Transport reads SPD bytes starting at a linear offset. A failed read
// returns an error; decoders fall back to safe defaults and log.
type Transport interface {
	Read(offset int, buf []byte) error
}

type ModuleKind uint8

const (
	RDIMM      ModuleKind = 0b0001
	UDIMM      ModuleKind = 0b0010
	SODIMM     ModuleKind = 0b0011
	LRDIMM     ModuleKind = 0b0100
	DDIMM      ModuleKind = 0b1010
	SolderDown ModuleKind = 0b1011
)

func (k ModuleKind) String() string {
	switch k {
	case RDIMM:
		return "RDIMM"
	case UDIMM:
		return "UDIMM"
	case SODIMM:
		return "SODIMM"
	case LRDIMM:
		return "LRDIMM"
	case DDIMM:
		return "DDIMM"
	case SolderDown:
		return "solder-down"
	}
	return "unknown"
}

func readByte(t Transport, offset int, what string, def uint8) uint8 {
	var buf [1]byte
	if err := t.Read(offset, buf[:]); err != nil {
		log.Print("sdram", "notice", "spd: can't read ", what,
			": ", err)
		return def
	}
	return buf[0]
}

// Kind decodes the module type from the low nibble of byte 3,
// defaulting to UDIMM when the SPD can't be read.
func Kind(t Transport) ModuleKind {
	return ModuleKind(readByte(t, 3, "module type",
		uint8(UDIMM)) & 0x0f)
}

// Width decodes the primary SDRAM width from byte 6 bits [7:5]
// (000 x4, 001 x8, 010 x16, 011 x32).
func Width(t Transport, def int) int {
	var buf [1]byte
	if err := t.Read(6, buf[:]); err != nil {
		log.Print("sdram", "notice", "spd: can't read width: ", err)
		return def
	}
	return 4 << (buf[0] >> 5)
}

// Ranks decodes the package rank count from byte 234 bits [5:3].
func Ranks(t Transport) int {
	return int((readByte(t, 234, "ranks", 0)>>3)&7) + 1
}

// Channels decodes the subchannel count from byte 235 bits [6:5].
func Channels(t Transport) int {
	return int((readByte(t, 235, "channels", 0)>>5)&3) + 1
}

// RCDManufacturer returns the registering clock driver's JEDEC
// manufacturer ID from bytes 240-241, little endian.
func RCDManufacturer(t Transport) uint16 {
	var buf [2]byte
	if err := t.Read(240, buf[:]); err != nil {
		log.Print("sdram", "notice",
			"spd: can't read RCD manufacturer: ", err)
		return 0
	}
	return uint16(buf[0]) | uint16(buf[1])<<8
}

func RCDDeviceType(t Transport) uint8 {
	return readByte(t, 242, "RCD device type", 0)
}

func RCDDeviceRev(t Transport) uint8 {
	return readByte(t, 243, "RCD device revision", 0)
}

// EnabledClock returns byte 248's QCK output enables (QACK..QDCK, BCK).
func EnabledClock(t Transport) uint8 {
	return readByte(t, 248, "clock enables", 0) & 0x2f
}

// EnabledCA returns byte 249's CA/CS output enables.
func EnabledCA(t Transport) uint8 {
	return readByte(t, 249, "CA enables", 0) & 0x7f
}

// QCKSetup returns byte 250's per-output QCK drive strengths.
func QCKSetup(t Transport) uint8 {
	return readByte(t, 250, "QCK setup", 0)
}

// QCAQCSSetup returns byte 252's QCA and QCS drive strengths.
func QCAQCSSetup(t Transport) uint8 {
	return readByte(t, 252, "QCA/QCS setup", 0)
}

// SlewRates returns byte 254's QCK/QCA/QCS slew rate settings.
func SlewRates(t Transport) uint8 {
	return readByte(t, 254, "slew rates", 0)
}
