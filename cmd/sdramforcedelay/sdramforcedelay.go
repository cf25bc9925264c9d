// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramforcedelay

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/sdramctl/internal/phy"
	"github.com/platinasystems/sdramctl/lang"
)

type Command struct{}

func (Command) String() string { return "sdramforcedelay" }

func (Command) Usage() string {
	return "sdramforcedelay CLASS CHANNEL SELECTOR TAPS"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "force one delay line to a fixed tap count",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Override one trained delay. CLASS selects the delay line;
	SELECTOR is the rank (cs), address line (ca) or module (data
	classes) and is ignored for ck.

	cs ca ck rdcyc rddq wrdqs wrdqso wrdq wrdqo wrdm

EXAMPLES
	sdramforcedelay cs 0 1 15
	sdramforcedelay rddq 0 2 9`,
	}
}

func (Command) Main(args ...string) error {
	if len(args) != 4 {
		return fmt.Errorf("CLASS CHANNEL SELECTOR TAPS: missing")
	}
	class := args[0]
	var v [3]int
	for i, arg := range args[1:] {
		u, err := strconv.ParseUint(arg, 0, 16)
		if err != nil {
			return fmt.Errorf("%s: %v", arg, err)
		}
		v[i] = int(u)
	}
	channel, sel, taps := v[0], v[1], v[2]

	ctl, csr, err := phy.Open()
	if err != nil {
		return err
	}
	defer csr.Close()

	lines := map[string]phy.DelayLine{
		"rdcyc":  ctl.ReadCycle,
		"rddq":   ctl.ReadDQ,
		"wrdqs":  ctl.WriteDQS,
		"wrdqso": ctl.WriteDQSOut,
		"wrdq":   ctl.WriteDQ,
		"wrdqo":  ctl.WriteDQOut,
		"wrdm":   ctl.WriteDM,
	}
	switch class {
	case "cs":
		ctl.CS.SetDelay(channel, sel, taps)
	case "ca":
		ctl.CA.SetDelay(channel, 0, sel, taps)
	case "ck":
		ctl.CK.SetDelay(channel, taps)
	default:
		line, found := lines[class]
		if !found {
			return fmt.Errorf("%s: unknown delay class", class)
		}
		line.Set(channel, sel, phy.DQDQSRatio, taps)
	}
	return nil
}
