// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramrcdread

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/parms"
	"github.com/platinasystems/sdramctl/internal/rcd"
	"github.com/platinasystems/sdramctl/lang"
)

// First RCD sideband address; RCD n answers at rcdAddress+n.
const rcdAddress = 0x58

type Command struct{}

func (Command) String() string { return "sdramrcdread" }

func (Command) Usage() string {
	return "sdramrcdread [-bus BUS] RCD PAGE REGISTER [FUNCTION] [BYTE]"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "read registering clock driver register space",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Read a dword of RCD register space over the i2c sideband and
	print it. With BYTE, print only that byte of the dword.

EXAMPLES
	sdramrcdread 0 0 0x05
	sdramrcdread 0 0 0x40 0 2`,
	}
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-bus")
	if len(args) < 3 || len(args) > 5 {
		return fmt.Errorf("RCD PAGE REGISTER: missing")
	}

	var bus int
	if s := parm.ByName["-bus"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("-bus %s: %v", s, err)
		}
		bus = int(v)
	}
	var v [5]uint64
	for i, arg := range args {
		u, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return fmt.Errorf("%s: %v", arg, err)
		}
		v[i] = u
	}

	dev := &rcd.Device{BusIndex: bus, BusAddress: rcdAddress + int(v[0])}
	dword, err := dev.ReadDword(uint8(v[3]), uint8(v[1]), uint8(v[2]))
	if err != nil {
		return err
	}
	if len(args) == 5 {
		if v[4] > 3 {
			return fmt.Errorf("%d: byte out of range", v[4])
		}
		fmt.Printf("%#02x\n", uint8(dword>>(8*v[4])))
	} else {
		fmt.Printf("%#08x\n", dword)
	}
	return nil
}
