// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdraminit

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/sdramctl/internal/phy"
	"github.com/platinasystems/sdramctl/internal/rcd"
	"github.com/platinasystems/sdramctl/internal/spd"
	"github.com/platinasystems/sdramctl/internal/training"
	"github.com/platinasystems/sdramctl/lang"
)

// Default sideband addresses per JESD300-5 and JESD82-511.
const (
	spdAddress  = 0x50
	rcdAddress  = 0x58
	pmicAddress = 0x48
)

type Command struct{}

func (Command) String() string { return "sdraminit" }

func (Command) Usage() string {
	return "sdraminit [-keep-going] [-sdr] [-v LEVEL] [-bus BUS] [-rate MTS]"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "initialize and train the SDRAM controller",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Run the full DDR5 bring-up flow: SPD topology discovery, RCD
	initialization on registered modules, chip-select, command/address
	and clock training, module enumeration and read/write data path
	training.

	-keep-going
		continue past stage failures for diagnostic visibility;
		the command still exits nonzero

	-sdr	sample the command/address bus single data rate

	-v LEVEL
		verbosity: 1 adds scan maps, 2 per-probe detail

	-bus BUS
		i2c bus of the module sideband (default 0)

	-rate MTS
		data rate programmed into the RCD operating speed words`,
	}
}

func parseNum(s string, def int) (int, error) {
	if len(s) == 0 {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	return int(v), err
}

func (Command) Main(args ...string) error {
	flag, args := flags.New(args, "-keep-going", "-sdr")
	parm, args := parms.New(args, "-v", "-bus", "-rate")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}

	verbosity, err := parseNum(parm.ByName["-v"], 0)
	if err != nil {
		return fmt.Errorf("-v %s: %v", parm.ByName["-v"], err)
	}
	bus, err := parseNum(parm.ByName["-bus"], 0)
	if err != nil {
		return fmt.Errorf("-bus %s: %v", parm.ByName["-bus"], err)
	}
	mts, err := parseNum(parm.ByName["-rate"], 0)
	if err != nil {
		return fmt.Errorf("-rate %s: %v", parm.ByName["-rate"], err)
	}
	rate := phy.DDR
	if flag.ByName["-sdr"] {
		rate = phy.SDR
	}

	ctl, csr, err := phy.Open()
	if err != nil {
		return err
	}
	defer csr.Close()

	ctl.Seq.SoftwareControl(true)
	f := training.Flow{
		Ctl:      ctl,
		SPD:      &spd.Device{BusIndex: bus, BusAddress: spdAddress},
		RCD:      &rcd.Device{BusIndex: bus, BusAddress: rcdAddress},
		PMIC:     &rcd.PMIC{BusIndex: bus, BusAddress: pmicAddress},
		Rate:     rate,
		DataRate: mts,
		Config: training.Config{
			Verbosity: verbosity,
			KeepGoing: flag.ByName["-keep-going"],
		},
	}
	_, err = f.Run()
	if err != nil {
		return err
	}
	ctl.Seq.SoftwareControl(false)
	return nil
}
