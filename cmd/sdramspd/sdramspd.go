// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramspd

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/parms"
	"github.com/platinasystems/sdramctl/internal/spd"
	"github.com/platinasystems/sdramctl/lang"
)

type Command struct{}

func (Command) String() string { return "sdramspd" }

func (Command) Usage() string {
	return "sdramspd [-bus BUS] ADDRESS [COUNT]"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "dump module serial presence detect contents",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Read COUNT bytes (default 1024) of SPD content from the i2c
	device at ADDRESS and print them with a decoded topology summary.

EXAMPLES
	sdramspd 0x50
	sdramspd -bus 1 0x51 512`,
	}
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-bus")
	if len(args) == 0 {
		return fmt.Errorf("ADDRESS: missing")
	}

	var bus int
	if s := parm.ByName["-bus"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("-bus %s: %v", s, err)
		}
		bus = int(v)
	}
	address, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("%s: %v", args[0], err)
	}
	count := uint64(1024)
	if len(args) > 1 {
		count, err = strconv.ParseUint(args[1], 0, 16)
		if err != nil {
			return fmt.Errorf("%s: %v", args[1], err)
		}
	}
	if len(args) > 2 {
		return fmt.Errorf("%v: unexpected", args[2:])
	}

	dev := &spd.Device{BusIndex: bus, BusAddress: int(address)}
	buf := make([]byte, count)
	if err = dev.Read(0, buf); err != nil {
		return err
	}

	fmt.Printf("%v: x%d, %d ranks, %d subchannels\n",
		spd.Kind(dev), spd.Width(dev, 0), spd.Ranks(dev),
		spd.Channels(dev))
	for i := 0; i < len(buf); i += 16 {
		end := i + 16
		if end > len(buf) {
			end = len(buf)
		}
		fmt.Printf("%04x:", i)
		for _, b := range buf[i:end] {
			fmt.Printf(" %02x", b)
		}
		fmt.Println()
	}
	return nil
}
