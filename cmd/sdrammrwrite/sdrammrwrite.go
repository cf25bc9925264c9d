// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdrammrwrite

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/parms"
	"github.com/platinasystems/sdramctl/internal/phy"
	"github.com/platinasystems/sdramctl/lang"
)

type Command struct{}

func (Command) String() string { return "sdrammrwrite" }

func (Command) Usage() string {
	return "sdrammrwrite [-c CHANNEL] [-r RANK] REGISTER VALUE"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "write a DRAM mode register",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Broadcast a mode register write to every device of the rank.
	Without -c the write goes to both subchannels.

EXAMPLES
	sdrammrwrite 10 0x3c
	sdrammrwrite -c 1 -r 0 5 0x20`,
	}
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-c", "-r")
	if len(args) != 2 {
		return fmt.Errorf("REGISTER VALUE: missing")
	}

	reg, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("%s: %v", args[0], err)
	}
	value, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("%s: %v", args[1], err)
	}
	rank := 0
	if s := parm.ByName["-r"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return fmt.Errorf("-r %s: %v", s, err)
		}
		rank = int(v)
	}
	first, last := 0, 2
	if s := parm.ByName["-c"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return fmt.Errorf("-c %s: %v", s, err)
		}
		first, last = int(v), int(v)+1
	}

	ctl, csr, err := phy.Open()
	if err != nil {
		return err
	}
	defer csr.Close()

	for ch := first; ch < last; ch++ {
		ctl.Data.MRW(ch, rank, phy.Broadcast, int(reg), uint8(value))
	}
	return nil
}
