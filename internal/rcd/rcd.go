// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package rcd drives a DDR5 Registering Clock Driver over its i2c
// sideband. It provides the control word access and the bring-up
// primitives the training flow sequences; register numbering follows
// JESD82-511.
package rcd

import (
	"errors"
	"fmt"

	"github.com/platinasystems/i2c"
)

// ErrNack marks a sideband transfer the RCD refused. There is no
// sensible retry for a missing device, so callers treat it as fatal.
var ErrNack = errors.New("rcd: sideband nack")

// Sideband command framing.
const (
	sidebandWrite = 0x80 // block payload: fn, page, reg, 4 data bytes
	sidebandRead  = 0x00 // block payload: fn, page, reg

	statusOK = 0x01
)

// Control words used during bring-up, all on function 0 page 0.
const (
	cwGlobalFeatures = 0x00
	cwClockEnables   = 0x01
	cwCAEnables      = 0x02
	cwCommand        = 0x04
	cwOperatingSpeed = 0x05
	cwFineSpeed      = 0x06
	cwQCKDrive       = 0x0c
	cwQCAQCSDrive    = 0x0d
	cwSlewRates      = 0x0e
	cwVrefCA         = 0x40
	cwTermination    = 0x41
	cwDCARate        = 0x42
)

// cwCommand opcodes.
const (
	opClearQRST = iota + 1
	opSetQRST
	opReleaseQCS
	opHoldQCS
)

// Transport carries one SMBus transfer to a sideband device. The
// training flow runs on the Linux i2c bus; tests substitute canned
// devices.
type Transport interface {
	Do(rw i2c.RW, reg uint8, size i2c.SMBusSize, data *i2c.SMBusData) error
}

// Device is one RCD on the i2c sideband. A nil Bus opens the Linux
// i2c bus named by BusIndex/BusAddress per transfer.
type Device struct {
	BusIndex   int
	BusAddress int
	Bus        Transport
}

func (d *Device) do(rw i2c.RW, reg uint8, size i2c.SMBusSize, data *i2c.SMBusData) (err error) {
	if d.Bus != nil {
		return d.Bus.Do(rw, reg, size, data)
	}

	var bus i2c.Bus

	err = bus.Open(d.BusIndex)
	if err != nil {
		return
	}
	defer bus.Close()

	err = bus.ForceSlaveAddress(d.BusAddress)
	if err != nil {
		return
	}

	err = bus.Do(rw, reg, size, data)
	return
}

// WriteDword writes 4 bytes of RCD register space at fn/page/reg.
func (d *Device) WriteDword(fn, page, reg uint8, val uint32) error {
	var data i2c.SMBusData
	data[0] = 7 // block length
	data[1] = fn
	data[2] = page
	data[3] = reg
	data[4] = uint8(val)
	data[5] = uint8(val >> 8)
	data[6] = uint8(val >> 16)
	data[7] = uint8(val >> 24)
	err := d.do(i2c.Write, sidebandWrite, i2c.I2CBlockData, &data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNack, err)
	}
	return nil
}

// ReadDword reads 4 bytes of RCD register space at fn/page/reg. The
// first returned byte is a status code; anything but statusOK is a nack.
func (d *Device) ReadDword(fn, page, reg uint8) (uint32, error) {
	var data i2c.SMBusData
	data[0] = 3
	data[1] = fn
	data[2] = page
	data[3] = reg
	err := d.do(i2c.Write, sidebandRead, i2c.I2CBlockData, &data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNack, err)
	}

	data = i2c.SMBusData{}
	err = d.do(i2c.Read, sidebandRead, i2c.I2CBlockData, &data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNack, err)
	}
	if data[0] < 5 || data[1] != statusOK {
		return 0, fmt.Errorf("%w: status %#x", ErrNack, data[1])
	}
	return uint32(data[2]) | uint32(data[3])<<8 |
		uint32(data[4])<<16 | uint32(data[5])<<24, nil
}

// WriteControlWord writes one byte-wide control word on function 0
// page 0.
func (d *Device) WriteControlWord(reg, val uint8) error {
	return d.WriteDword(0, 0, reg, uint32(val))
}

func (d *Device) command(op uint8, arg uint8) error {
	return d.WriteDword(0, 0, cwCommand, uint32(op)|uint32(arg)<<8)
}

func (d *Device) ClearQRST() error { return d.command(opClearQRST, 0) }
func (d *Device) SetQRST() error   { return d.command(opSetQRST, 0) }
func (d *Device) HoldQCS() error   { return d.command(opHoldQCS, 0) }

// ReleaseQCS releases the output chip selects; with forceLow the QCS
// outputs are driven low instead of following the host.
func (d *Device) ReleaseQCS(forceLow bool) error {
	var arg uint8
	if forceLow {
		arg = 1
	}
	return d.command(opReleaseQCS, arg)
}
