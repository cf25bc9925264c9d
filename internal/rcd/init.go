// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rcd

import (
	"time"

	"github.com/platinasystems/i2c"
	"github.com/platinasystems/sdramctl/internal/phy"
	"github.com/platinasystems/sdramctl/internal/spd"
)

// PMIC is the module's power management IC on the same sideband. A
// nil Bus opens the Linux i2c bus named by BusIndex/BusAddress.
type PMIC struct {
	BusIndex   int
	BusAddress int
	Bus        Transport
}

// PMIC command register and the VR_ENABLE payload.
const (
	pmicVREnableReg = 0x32
	pmicVREnableVal = 0xa0
)

// EnableVR turns the module voltage regulators on. Rails need tens of
// milliseconds to come up; the caller waits before touching the RCD.
func (p *PMIC) EnableVR() error {
	var data i2c.SMBusData
	data[0] = pmicVREnableVal
	if p.Bus != nil {
		return p.Bus.Do(i2c.Write, pmicVREnableReg, i2c.ByteData,
			&data)
	}

	var bus i2c.Bus

	err := bus.Open(p.BusIndex)
	if err != nil {
		return err
	}
	defer bus.Close()

	err = bus.ForceSlaveAddress(p.BusAddress)
	if err != nil {
		return err
	}

	return bus.Do(i2c.Write, pmicVREnableReg, i2c.ByteData, &data)
}

// Settings carries the RCD output configuration read from the module
// SPD. The zero value (all outputs enabled, default drive) is used
// before the SPD is trusted.
type Settings struct {
	ClockEnables uint8
	CAEnables    uint8
	QCKSetup     uint8
	QCAQCSSetup  uint8
	SlewRates    uint8
}

// SettingsFromSPD collects bytes 248-254 of the module SPD.
func SettingsFromSPD(t spd.Transport) Settings {
	return Settings{
		ClockEnables: spd.EnabledClock(t),
		CAEnables:    spd.EnabledCA(t),
		QCKSetup:     spd.QCKSetup(t),
		QCAQCSSetup:  spd.QCAQCSSetup(t),
		SlewRates:    spd.SlewRates(t),
	}
}

// SetEnablesAndSlewRates programs output enables, drive strengths and
// slew rates in one pass.
func (d *Device) SetEnablesAndSlewRates(s Settings) error {
	for _, cw := range []struct {
		reg uint8
		val uint8
	}{
		{cwClockEnables, s.ClockEnables},
		{cwCAEnables, s.CAEnables},
		{cwQCKDrive, s.QCKSetup},
		{cwQCAQCSDrive, s.QCAQCSSetup},
		{cwSlewRates, s.SlewRates},
	} {
		if err := d.WriteControlWord(cw.reg, cw.val); err != nil {
			return err
		}
	}
	return nil
}

// SetDCARate selects single or double data rate sampling on the DCA
// inputs.
func (d *Device) SetDCARate(rate phy.Rate) error {
	var val uint8
	if rate == phy.DDR {
		val = 1
	}
	return d.WriteControlWord(cwDCARate, val)
}

// speedBand maps a data rate in MT/s to the coarse operating speed
// band control word encoding.
func speedBand(mts int) uint8 {
	switch {
	case mts <= 3200:
		return 0
	case mts <= 3600:
		return 1
	case mts <= 4000:
		return 2
	case mts <= 4400:
		return 3
	case mts <= 4800:
		return 4
	case mts <= 5200:
		return 5
	case mts <= 5600:
		return 6
	case mts <= 6000:
		return 7
	}
	return 8
}

// SetOperatingSpeed programs the fine operating speed from a data rate
// in MT/s.
func (d *Device) SetOperatingSpeed(mts int) error {
	return d.WriteControlWord(cwFineSpeed, uint8(mts/20))
}

// SetOperatingSpeedBand programs the coarse operating speed band.
func (d *Device) SetOperatingSpeedBand(mts int) error {
	return d.WriteControlWord(cwOperatingSpeed, speedBand(mts))
}

// SetTerminationAndVref programs DCA/DCS termination and the input
// reference voltage to their training defaults.
func (d *Device) SetTerminationAndVref() error {
	if err := d.WriteControlWord(cwVrefCA, 0x4a); err != nil {
		return err
	}
	return d.WriteControlWord(cwTermination, 0x00)
}

// ForwardAllDRAMCommands opens or closes the RCD's command forwarding,
// so host commands reach the DRAM behind it.
func (d *Device) ForwardAllDRAMCommands(forward bool) error {
	features, err := d.ReadDword(0, 0, cwGlobalFeatures)
	if err != nil {
		return err
	}
	features &^= 1 << 4
	if forward {
		features |= 1 << 4
	}
	return d.WriteControlWord(cwGlobalFeatures, uint8(features))
}

// ReleaseOutputs runs the QRST/QCS release dance after successful
// host-to-RCD training: pulse QRST with settle waits, then release the
// output chip selects driven low.
func (d *Device) ReleaseOutputs() error {
	if err := d.ClearQRST(); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	if err := d.SetQRST(); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	if err := d.ClearQRST(); err != nil {
		return err
	}
	time.Sleep(6 * time.Millisecond)
	if err := d.ReleaseQCS(true); err != nil {
		return err
	}
	time.Sleep(2 * time.Millisecond)
	return nil
}
