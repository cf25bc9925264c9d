// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package spd

import (
	"github.com/platinasystems/i2c"
)

// SPD5118 hub registers: the NVM is windowed in 128 byte pages selected
// through MR11; the page appears at i2c offsets 0x80..0xff.
const (
	pageSelectReg = 0x0b
	pageSize      = 128
	pageWindow    = 0x80
)

// Device reads SPD contents through a Linux i2c bus.
type Device struct {
	BusIndex   int
	BusAddress int
}

func (d *Device) do(rw i2c.RW, reg uint8, size i2c.SMBusSize, data *i2c.SMBusData) (err error) {
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

func (d *Device) Read(offset int, buf []byte) error {
	for i := range buf {
		var data i2c.SMBusData

		off := offset + i
		data[0] = uint8(off / pageSize)
		err := d.do(i2c.Write, pageSelectReg, i2c.ByteData, &data)
		if err != nil {
			return err
		}

		err = d.do(i2c.Read, uint8(pageWindow+off%pageSize),
			i2c.ByteData, &data)
		if err != nil {
			return err
		}
		buf[i] = byte(data[0])
	}
	return nil
}
