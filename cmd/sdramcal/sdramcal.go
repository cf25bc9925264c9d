// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramcal

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/sdramctl/internal/phy"
	"github.com/platinasystems/sdramctl/internal/spd"
	"github.com/platinasystems/sdramctl/internal/training"
	"github.com/platinasystems/sdramctl/lang"
)

const spdAddress = 0x50

type Command struct{}

func (Command) String() string { return "sdramcal" }

func (Command) Usage() string {
	return "sdramcal [-keep-going] [-v LEVEL] [-bus BUS]"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "recalibrate SDRAM delays on a running controller",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Retrain chip-select, command/address, clock and data path delays
	without resetting the devices or replaying initialization. The
	controller is held under software control for the duration.`,
	}
}

func (Command) Main(args ...string) error {
	flag, args := flags.New(args, "-keep-going")
	parm, args := parms.New(args, "-v", "-bus")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}

	var verbosity, bus int
	if s := parm.ByName["-v"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("-v %s: %v", s, err)
		}
		verbosity = int(v)
	}
	if s := parm.ByName["-bus"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("-bus %s: %v", s, err)
		}
		bus = int(v)
	}

	ctl, csr, err := phy.Open()
	if err != nil {
		return err
	}
	defer csr.Close()

	ctl.Seq.SoftwareControl(true)
	defer ctl.Seq.SoftwareControl(false)

	f := training.Flow{
		Ctl:  ctl,
		SPD:  &spd.Device{BusIndex: bus, BusAddress: spdAddress},
		Rate: phy.DDR,
		Config: training.Config{
			Verbosity: verbosity,
			KeepGoing: flag.ByName["-keep-going"],
		},
	}
	_, err = f.Calibrate()
	return err
}
