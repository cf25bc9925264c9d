// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"fmt"
	"time"

	"github.com/platinasystems/sdramctl/internal/phy"
)

// checkEnumerate verifies module enumeration on one rank: with MR2
// training mode broadcast on, the baseline (broadcast) probe and every
// per-module probe must respond.
func (ctx *Context) checkEnumerate(channel, rank int) bool {
	data := ctx.Ctl.Data
	seq := ctx.Ctl.Seq

	data.MRW(channel, rank, phy.Broadcast, 2, ctx.mr2(1))
	good := seq.EnumerateCheck(channel, rank, phy.Broadcast, ctx.DieWidth)
	for module := 0; module < ctx.Modules && good; module++ {
		good = seq.EnumerateCheck(channel, rank, module, ctx.DieWidth)
	}
	data.MRW(channel, rank, phy.Broadcast, 2, ctx.mr2(0))
	time.Sleep(time.Microsecond)
	return good
}

// moduleEnumerate assigns each device on a rank its own select ID so
// later per-module mode register traffic can address one die at a
// time. A PHY lane mask wider than 16 modules can't be represented in
// the select encoding.
func (ctx *Context) moduleEnumerate(channel, rank int) error {
	if ctx.Modules > 15 {
		return fmt.Errorf("%w: %d modules on channel %c exceed the enumeration space",
			ErrTopology, ctx.Modules, 'A'+channel)
	}
	for module := 0; module < ctx.Modules; module++ {
		ctx.Ctl.Seq.EnumerateSetup(channel, rank, module,
			ctx.DieWidth)
	}
	if !ctx.checkEnumerate(channel, rank) {
		return fmt.Errorf("%w: enumeration check channel %c rank %d",
			ErrTopology, 'A'+channel, rank)
	}
	ctx.logf(0, "channel %c rank %d enumerated %d modules",
		'A'+channel, rank, ctx.Modules)
	return nil
}

// DRAMEnumerate enumerates every rank on every subchannel.
func (ctx *Context) DRAMEnumerate(rank int) error {
	for channel := 0; channel < ctx.Channels; channel++ {
		if err := ctx.stage(ctx.moduleEnumerate(channel, rank)); err != nil {
			return err
		}
	}
	ctx.Enumerated = true
	return nil
}
