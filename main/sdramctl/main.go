// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Sdramctl is the SDRAM bring-up and diagnostic machine.
package main

import (
	"fmt"
	"os"

	"github.com/platinasystems/sdramctl"
	"github.com/platinasystems/sdramctl/cmd/cli"
	"github.com/platinasystems/sdramctl/cmd/sdramcal"
	"github.com/platinasystems/sdramctl/cmd/sdramforcedelay"
	"github.com/platinasystems/sdramctl/cmd/sdraminit"
	"github.com/platinasystems/sdramctl/cmd/sdrammrread"
	"github.com/platinasystems/sdramctl/cmd/sdrammrwrite"
	"github.com/platinasystems/sdramctl/cmd/sdramrcdread"
	"github.com/platinasystems/sdramctl/cmd/sdramrcdwrite"
	"github.com/platinasystems/sdramctl/cmd/sdramread"
	"github.com/platinasystems/sdramctl/cmd/sdramspd"
	"github.com/platinasystems/sdramctl/cmd/sdramtest"
	"github.com/platinasystems/sdramctl/cmd/sdramwrite"
	"github.com/platinasystems/sdramctl/lang"
)

var machine = &sdramctl.Machine{
	Name:  "sdramctl",
	USAGE: "sdramctl COMMAND [ARGS]...",
	APROPOS: lang.Alt{
		lang.EnUS: "SDRAM bring-up and diagnostics",
	},
}

func main() {
	machine.Plot(
		&cli.Command{},
		sdramcal.Command{},
		sdramforcedelay.Command{},
		sdraminit.Command{},
		sdrammrread.Command{},
		sdrammrwrite.Command{},
		sdramrcdread.Command{},
		sdramrcdwrite.Command{},
		sdramread.Command{},
		sdramspd.Command{},
		sdramtest.Command{},
		sdramwrite.Command{},
	)
	if err := machine.Main(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
