// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramrcdwrite

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/parms"
	"github.com/platinasystems/sdramctl/internal/rcd"
	"github.com/platinasystems/sdramctl/lang"
)

const rcdAddress = 0x58

type Command struct{}

func (Command) String() string { return "sdramrcdwrite" }

func (Command) Usage() string {
	return "sdramrcdwrite [-bus BUS] RCD PAGE REGISTER DATA [FUNCTION] [BYTE]"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "write registering clock driver register space",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Write RCD register space over the i2c sideband. Without BYTE the
	whole dword at PAGE/REGISTER is written; with BYTE the dword is
	read, the selected byte replaced and the dword written back.

EXAMPLES
	sdramrcdwrite 0 0 0x06 0x8c
	sdramrcdwrite 0 0 0x40 0x4a 0 0`,
	}
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-bus")
	if len(args) < 4 || len(args) > 6 {
		return fmt.Errorf("RCD PAGE REGISTER DATA: missing")
	}

	var bus int
	if s := parm.ByName["-bus"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("-bus %s: %v", s, err)
		}
		bus = int(v)
	}
	var v [6]uint64
	for i, arg := range args {
		size := 8
		if i == 3 {
			size = 32
		}
		u, err := strconv.ParseUint(arg, 0, size)
		if err != nil {
			return fmt.Errorf("%s: %v", arg, err)
		}
		v[i] = u
	}
	rcdIdx, page, reg, data, fn := v[0], uint8(v[1]), uint8(v[2]),
		uint32(v[3]), uint8(v[4])

	dev := &rcd.Device{BusIndex: bus, BusAddress: rcdAddress + int(rcdIdx)}
	if len(args) == 6 {
		if v[5] > 3 {
			return fmt.Errorf("%d: byte out of range", v[5])
		}
		dword, err := dev.ReadDword(fn, page, reg)
		if err != nil {
			return err
		}
		shift := 8 * v[5]
		dword = dword&^(0xff<<shift) | data&0xff<<shift
		return dev.WriteDword(fn, page, reg, dword)
	}
	return dev.WriteDword(fn, page, reg, data)
}
