// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rcd

import (
	"errors"
	"testing"

	"github.com/platinasystems/i2c"
	"github.com/platinasystems/sdramctl/internal/phy"
)

type nopCS struct{ phy.CSChannel }
type nopCA struct{ phy.CAChannel }

// fakeBus answers the sideband block protocol from a register file.
type fakeBus struct {
	regs    map[[3]uint8]uint32
	pending [3]uint8
	nack    bool
}

func newFakeBus() *fakeBus { return &fakeBus{regs: make(map[[3]uint8]uint32)} }

func (f *fakeBus) Do(rw i2c.RW, reg uint8, size i2c.SMBusSize, data *i2c.SMBusData) error {
	if f.nack {
		return errors.New("no ack")
	}
	switch {
	case rw == i2c.Write && reg == sidebandWrite:
		f.regs[[3]uint8{data[1], data[2], data[3]}] =
			uint32(data[4]) | uint32(data[5])<<8 |
				uint32(data[6])<<16 | uint32(data[7])<<24
	case rw == i2c.Write:
		f.pending = [3]uint8{data[1], data[2], data[3]}
	default:
		v := f.regs[f.pending]
		data[0] = 6
		data[1] = statusOK
		data[2] = uint8(v)
		data[3] = uint8(v >> 8)
		data[4] = uint8(v >> 16)
		data[5] = uint8(v >> 24)
	}
	return nil
}

func TestDeviceDwordAccess(t *testing.T) {
	d := &Device{Bus: newFakeBus()}
	if err := d.WriteDword(1, 2, 0x40, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	got, err := d.ReadDword(1, 2, 0x40)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xdeadbeef {
		t.Errorf("wrong dword: %#x", got)
	}
}

func TestDeviceNack(t *testing.T) {
	bus := newFakeBus()
	bus.nack = true
	d := &Device{Bus: bus}
	if err := d.WriteDword(0, 0, 0, 0); !errors.Is(err, ErrNack) {
		t.Error("wrong error:", err)
	}
	if _, err := d.ReadDword(0, 0, 0); !errors.Is(err, ErrNack) {
		t.Error("wrong error:", err)
	}
}

func TestQuirkCS(t *testing.T) {
	cs := nopCS{}
	if _, ok := QuirkCS(cs, ManufacturerRambus).(phy.RambusCS); !ok {
		t.Error("wrong: Rambus RCD kept stock CS channel")
	}
	if _, ok := QuirkCS(cs, 0x1234).(phy.RambusCS); ok {
		t.Error("wrong: unknown RCD got Rambus CS variant")
	}
}

func TestQuirkCA(t *testing.T) {
	ca := nopCA{}
	if _, ok := QuirkCA(ca, ManufacturerMontage, DeviceTypeMontage,
		phy.DDR).(phy.MontageCA); !ok {
		t.Error("wrong: Montage RCD kept stock CA channel")
	}
	// Montage substitution wins even at SDR rate.
	if _, ok := QuirkCA(ca, ManufacturerMontage, DeviceTypeMontage,
		phy.SDR).(phy.MontageCA); !ok {
		t.Error("wrong: Montage at SDR lost vendor variant")
	}
	if _, ok := QuirkCA(ca, 0x1234, 0, phy.SDR).(phy.SDRCA); !ok {
		t.Error("wrong: SDR rate kept DDR CA check")
	}
	if got := QuirkCA(ca, 0x1234, 0, phy.DDR); got != phy.CAChannel(ca) {
		t.Error("wrong: stock channel was substituted")
	}
}

func TestSpeedBand(t *testing.T) {
	for _, x := range []struct {
		mts  int
		band uint8
	}{
		{2801, 0},
		{3200, 0},
		{3201, 1},
		{4800, 4},
		{6400, 8},
	} {
		if got := speedBand(x.mts); got != x.band {
			t.Error("wrong band for", x.mts, ":", got)
		}
	}
}

func TestSettingsFromSPD(t *testing.T) {
	f := make(fakeSPD, 512)
	f[248] = 0x03
	f[249] = 0x15
	f[250] = 0x55
	f[252] = 0x11
	f[254] = 0x24
	want := Settings{
		ClockEnables: 0x03,
		CAEnables:    0x15,
		QCKSetup:     0x55,
		QCAQCSSetup:  0x11,
		SlewRates:    0x24,
	}
	if got := SettingsFromSPD(f); got != want {
		t.Error("wrong settings:", got)
	}
}

type fakeSPD []byte

func (f fakeSPD) Read(offset int, buf []byte) error {
	copy(buf, f[offset:])
	return nil
}
