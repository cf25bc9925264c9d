// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramread

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/parms"
	"github.com/platinasystems/sdramctl/internal/phy"
	"github.com/platinasystems/sdramctl/lang"
)

type Command struct{}

func (Command) String() string { return "sdramread" }

func (Command) Usage() string {
	return "sdramread [-c CHANNEL] [-r RANK] BANK ROW COLUMN"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "read one burst directly from the SDRAM array",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Issue an addressed read through the controller's debug access and
	print the captured burst, one word per phase. The data path must
	already be trained.`,
	}
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-c", "-r")
	if len(args) != 3 {
		return fmt.Errorf("BANK ROW COLUMN: missing")
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
	var v [3]int
	for i, arg := range args {
		u, err := strconv.ParseUint(arg, 0, 32)
		if err != nil {
			return fmt.Errorf("%s: %v", arg, err)
		}
		v[i] = int(u)
	}

	_, csr, err := phy.Open()
	if err != nil {
		return err
	}
	defer csr.Close()

	data := csr.DebugRead(channel, rank, v[0], v[1], v[2])
	for phase, word := range data {
		fmt.Printf("%d: %04x\n", phase, word)
	}
	return nil
}
