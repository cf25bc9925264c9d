// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdrammrread

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/sdramctl/internal/phy"
	"github.com/platinasystems/sdramctl/lang"
)

type Command struct{}

func (Command) String() string { return "sdrammrread" }

func (Command) Usage() string {
	return "sdrammrread CHANNEL DEVICE REGISTER"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "read a DRAM mode register",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Issue a mode register read on the given subchannel and print the
	value recovered from DEVICE's data lines. Only meaningful after
	read training.

EXAMPLES
	sdrammrread 0 0 5
	sdrammrread 1 3 0x19`,
	}
}

func (Command) Main(args ...string) error {
	if len(args) != 3 {
		return fmt.Errorf("CHANNEL DEVICE REGISTER: missing")
	}
	var v [3]int
	for i, arg := range args {
		u, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return fmt.Errorf("%s: %v", arg, err)
		}
		v[i] = int(u)
	}
	channel, device, reg := v[0], v[1], v[2]

	ctl, csr, err := phy.Open()
	if err != nil {
		return err
	}
	defer csr.Close()

	ctl.Data.MRR(channel, 0, reg)
	got := ctl.Data.RecoverMRRValue(channel, device, phy.DQDQSRatio)
	fmt.Printf("MR%d: %#02x\n", reg, got)
	return nil
}
