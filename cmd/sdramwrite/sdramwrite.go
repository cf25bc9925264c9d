// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramwrite

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/parms"
	"github.com/platinasystems/sdramctl/internal/phy"
	"github.com/platinasystems/sdramctl/lang"
)

type Command struct{}

func (Command) String() string { return "sdramwrite" }

func (Command) Usage() string {
	return "sdramwrite [-c CHANNEL] [-r RANK] BANK ROW COLUMN VALUE..."
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "write one burst directly to the SDRAM array",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Issue an addressed write through the controller's debug access.
	Up to 8 VALUE words fill the burst phases; missing phases repeat
	the last value given.`,
	}
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-c", "-r")
	if len(args) < 4 {
		return fmt.Errorf("BANK ROW COLUMN VALUE: missing")
	}
	if len(args) > 3+8 {
		return fmt.Errorf("%v: unexpected", args[11:])
	}

	var channel, rank int
	if s := parm.ByName["-c"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return fmt.Errorf("-c %s: %v", s, err)
		}
		channel = int(v)
	}
	if s := parm.ByName["-r"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return fmt.Errorf("-r %s: %v", s, err)
		}
		rank = int(v)
	}
	var addr [3]int
	for i, arg := range args[:3] {
		u, err := strconv.ParseUint(arg, 0, 32)
		if err != nil {
			return fmt.Errorf("%s: %v", arg, err)
		}
		addr[i] = int(u)
	}
	var data [8]uint16
	for i := range data {
		j := 3 + i
		if j >= len(args) {
			data[i] = data[i-1]
			continue
		}
		u, err := strconv.ParseUint(args[j], 0, 16)
		if err != nil {
			return fmt.Errorf("%s: %v", args[j], err)
		}
		data[i] = uint16(u)
	}

	_, csr, err := phy.Open()
	if err != nil {
		return err
	}
	defer csr.Close()

	csr.DebugWrite(channel, rank, addr[0], addr[1], addr[2], data)
	return nil
}
