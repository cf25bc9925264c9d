// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"fmt"
	"time"

	"github.com/platinasystems/log"
	"github.com/platinasystems/sdramctl/internal/phy"
	"github.com/platinasystems/sdramctl/internal/rcd"
	"github.com/platinasystems/sdramctl/internal/spd"
)

// MPC opcodes used by the flow. JESD79-5A Table 26.
const (
	mpcGroupARTT = 0x50
	mpcGroupBRTT = 0x58
)

// DefaultDataRate is the MT/s figure programmed into the RCD operating
// speed control words when the caller doesn't override it. One past the
// 2800 band edge, so the band decode picks the intended bin.
const DefaultDataRate = 2801

// Flow owns one full initialization and training run: topology
// discovery over SPD, optional RCD bring-up, CS/CA/CK training, module
// enumeration and the read/write data path scans.
type Flow struct {
	Ctl  *phy.Controller
	SPD  spd.Transport
	RCD  *rcd.Device
	PMIC *rcd.PMIC

	Rate     phy.Rate
	DataRate int // MT/s, DefaultDataRate when zero
	Config   Config
}

func (f *Flow) dataRate() int {
	if f.DataRate == 0 {
		return DefaultDataRate
	}
	return f.DataRate
}

// rcdInit brings the registering clock driver from powered-off to
// forwarding: rails up, control words programmed, the host-to-RCD bus
// trained and the Q outputs released. Sideband errors are fatal; a
// DIMM whose RCD won't answer can't be trained around.
func (f *Flow) rcdInit(ctx *Context) error {
	d := f.RCD
	seq := f.Ctl.Seq

	if f.PMIC != nil {
		if err := f.PMIC.EnableVR(); err != nil {
			return err
		}
		time.Sleep(50 * time.Millisecond)
	}

	// All outputs off and slowest drive while the input bus is still
	// untrained.
	if err := d.SetEnablesAndSlewRates(rcd.Settings{}); err != nil {
		return err
	}
	seq.ResetSequence(ctx.Ranks)

	if err := d.SetDCARate(ctx.Rate); err != nil {
		return err
	}
	ctx.CA = rcd.QuirkCA(ctx.CA, 0, 0, ctx.Rate)

	if err := d.SetOperatingSpeed(f.dataRate()); err != nil {
		return err
	}
	if err := d.SetTerminationAndVref(); err != nil {
		return err
	}
	seq.ResetSequence(ctx.Ranks)
	if err := d.SetOperatingSpeedBand(f.dataRate()); err != nil {
		return err
	}
	time.Sleep(50 * time.Microsecond)

	if err := d.ForwardAllDRAMCommands(false); err != nil {
		return err
	}

	ctx.Manufacturer = spd.RCDManufacturer(f.SPD)
	ctx.DeviceType = spd.RCDDeviceType(f.SPD)
	ctx.DeviceRev = spd.RCDDeviceRev(f.SPD)
	log.Print("sdram", "info", fmt.Sprintf(
		"RCD manufacturer %#04x device %#02x rev %#02x",
		ctx.Manufacturer, ctx.DeviceType, ctx.DeviceRev))
	ctx.CA = rcd.QuirkCA(ctx.CA, ctx.Manufacturer, ctx.DeviceType,
		ctx.Rate)

	if err := ctx.CSCATraining(); err != nil {
		return err
	}
	time.Sleep(6 * time.Millisecond)

	if err := d.SetEnablesAndSlewRates(rcd.SettingsFromSPD(f.SPD)); err != nil {
		return err
	}
	time.Sleep(6 * time.Millisecond)

	// A single NOP latches the new output enables.
	for ch := 0; ch < ctx.Channels; ch++ {
		seq.PrepNOP(ch, 0)
	}
	seq.ForceIssueSingle()
	time.Sleep(500 * time.Microsecond)

	return d.ReleaseOutputs()
}

// modeRegisterSetup issues the JEDEC mode register initialization on
// every rank, through the RCD's CA pass-through window when one is in
// the path.
func (f *Flow) modeRegisterSetup(ctx *Context, behindRCD bool) {
	seq := f.Ctl.Seq
	if behindRCD {
		for ch := 0; ch < ctx.Channels; ch++ {
			seq.EnterCAPass(ch)
		}
	}
	for rank := 0; rank < ctx.Ranks; rank++ {
		if behindRCD {
			seq.SelectCAPass(rank)
		}
		seq.ModeRegisterSequence(rank)
	}
	if behindRCD {
		for ch := 0; ch < ctx.Channels; ch++ {
			seq.ExitCAPass(ch)
		}
	}
}

// switchTo1N leaves 2N command mode after successful CS/CA training
// and reinitializes mode registers for the final gear. 2N stays in
// effect when training latched a failure or the bus runs SDR.
func (f *Flow) switchTo1N(ctx *Context, behindRCD bool) {
	seq := f.Ctl.Seq
	data := f.Ctl.Data

	var use1N uint8
	if ctx.Succeeded && ctx.Rate == phy.DDR {
		use1N = 1 << 2
		for ch := 0; ch < ctx.Channels; ch++ {
			if behindRCD {
				seq.EnterCAPass(ch)
			}
			for rank := 0; rank < ctx.Ranks; rank++ {
				if behindRCD {
					seq.SelectCAPass(rank)
				}
				seq.Disable2NMode(ch, rank)
			}
			if behindRCD {
				seq.ExitCAPass(ch)
			}
		}
	}

	// MPC timing isn't trusted yet; write MR2 as a direct command.
	ctx.SingleCycleMPC = 1 << 4
	for ch := 0; ch < ctx.Channels; ch++ {
		for rank := 0; rank < ctx.Ranks; rank++ {
			data.MRWNoMPC(ch, rank, 2, ctx.mr2(0)|use1N)
		}
	}

	if seq.In2NMode() {
		seq.InitSequence2N(ctx.Ranks)
	} else {
		seq.InitSequence1N(ctx.Ranks)
	}
}

// enumerateRanks turns rank terminations off, enumerates every rank's
// modules, then restores the non-target termination the multi-rank
// data bus needs.
func (f *Flow) enumerateRanks(ctx *Context) error {
	data := f.Ctl.Data

	for ch := 0; ch < ctx.Channels; ch++ {
		for rank := 0; rank < ctx.Ranks; rank++ {
			data.MPC(ch, rank, mpcGroupBRTT, 0)
		}
	}
	for rank := 0; rank < ctx.Ranks; rank++ {
		if err := ctx.DRAMEnumerate(rank); err != nil {
			return err
		}
		for ch := 0; ch < ctx.Channels; ch++ {
			if rank >= 1 {
				data.MPC(ch, rank, mpcGroupBRTT, 4)
			}
		}
	}
	if ctx.Ranks > 1 {
		for ch := 0; ch < ctx.Channels; ch++ {
			for rank := 1; rank < ctx.Ranks; rank++ {
				data.MPC(ch, rank, mpcGroupARTT, 0)
				data.MPC(ch, rank, mpcGroupBRTT, 0)
			}
		}
	}
	return nil
}

// Calibrate reruns the training stages against an already initialized
// controller: no resets, no mode register sequences, no RCD bring-up.
// Used to re-center delays on a running system.
func (f *Flow) Calibrate() (*Context, error) {
	dieWidth := spd.Width(f.SPD, phy.DQDQSRatio)
	channels := spd.Channels(f.SPD)
	ranks := spd.Ranks(f.SPD)
	modules := phy.ChannelDataBits / dieWidth

	ctx := New(f.Ctl, HostToDRAM, channels, ranks, modules, dieWidth,
		phy.MaxDelayTaps, f.Rate, f.Config)
	ctx.RDIMM = spd.Kind(f.SPD) == spd.RDIMM
	if err := ctx.stage(ctx.CSCATraining()); err != nil {
		return ctx, err
	}
	ctx.Ranks = 1
	if err := ctx.ReadTraining(); err != nil {
		return ctx, err
	}
	if err := ctx.WriteTraining(); err != nil {
		return ctx, err
	}
	if !ctx.Succeeded {
		return ctx, fmt.Errorf("%w: one or more stages failed",
			ErrVerification)
	}
	return ctx, nil
}

// Run executes the whole initialization and training flow. The
// returned Context holds the trained state for diagnostics; the error
// is the first fatal failure, or a verification error when keep-going
// masked stage failures along the way.
func (f *Flow) Run() (*Context, error) {
	seq := f.Ctl.Seq
	seq.EnablePHY()

	kind := spd.Kind(f.SPD)
	isRDIMM := kind == spd.RDIMM
	dieWidth := spd.Width(f.SPD, phy.DQDQSRatio)
	if isRDIMM {
		// behind an RCD the host-side lanes pair up
		dieWidth = 4
	}
	channels := spd.Channels(f.SPD)
	ranks := spd.Ranks(f.SPD)
	modules := phy.ChannelDataBits / dieWidth
	log.Print("sdram", "info", fmt.Sprintf(
		"%v module: %d subchannels, %d ranks, %d x%d devices",
		kind, channels, ranks, modules, dieWidth))

	seq.ResetAllDelays(channels, ranks, 14, modules, dieWidth)

	var ctx *Context
	if isRDIMM {
		seq.SetRDIMMMode(true)

		hostRCD := New(f.Ctl, HostToRCD, channels, ranks, 1, dieWidth,
			phy.MaxDelayTaps, f.Rate, f.Config)
		if err := f.rcdInit(hostRCD); err != nil {
			return hostRCD, err
		}

		ctx = New(f.Ctl, RCDToDRAM, channels, ranks, modules,
			dieWidth, phy.MaxDelayTaps, f.Rate, f.Config)
		ctx.Succeeded = hostRCD.Succeeded
		ctx.Manufacturer = hostRCD.Manufacturer
		ctx.DeviceType = hostRCD.DeviceType
		ctx.DeviceRev = hostRCD.DeviceRev
		ctx.CS = rcd.QuirkCS(ctx.CS, ctx.Manufacturer)
	} else {
		ctx = New(f.Ctl, HostToDRAM, channels, ranks, modules,
			dieWidth, phy.MaxDelayTaps, f.Rate, f.Config)
		seq.ResetSequence(ranks)
	}

	seq.StartSequence(ranks)

	if isRDIMM {
		if err := f.RCD.ForwardAllDRAMCommands(true); err != nil {
			return ctx, err
		}
		f.modeRegisterSetup(ctx, true)
		ctx.csCaPrep()
		for ch := 0; ch < ctx.Channels; ch++ {
			if err := ctx.csCaChannelTraining(ch); err != nil {
				ctx.Succeeded = false
				return ctx, err
			}
			if err := ctx.stage(ctx.ckFinalizeTimings(ch)); err != nil {
				return ctx, err
			}
		}
	} else {
		f.modeRegisterSetup(ctx, false)
		if err := ctx.stage(ctx.CSCATraining()); err != nil {
			return ctx, err
		}
	}

	f.switchTo1N(ctx, isRDIMM)

	if err := f.enumerateRanks(ctx); err != nil {
		return ctx, err
	}

	if isRDIMM {
		// Data path training runs host-to-DRAM through the now
		// transparent RCD.
		host := New(f.Ctl, HostToDRAM, ctx.Channels, ctx.Ranks,
			ctx.Modules, ctx.DieWidth, ctx.MaxDelayTaps, ctx.Rate,
			f.Config)
		host.RDIMM = true
		host.Succeeded = ctx.Succeeded
		host.Manufacturer = ctx.Manufacturer
		host.SingleCycleMPC = ctx.SingleCycleMPC
		host.UseInternalWriteTiming = ctx.UseInternalWriteTiming
		host.Enumerated = ctx.Enumerated
		ctx = host
	}

	// Data delays are shared across ranks; train them against rank 0.
	ctx.Ranks = 1

	if err := ctx.ReadTraining(); err != nil {
		return ctx, err
	}
	if err := ctx.WriteTraining(); err != nil {
		return ctx, err
	}

	if !ctx.Succeeded {
		return ctx, fmt.Errorf("%w: one or more stages failed",
			ErrVerification)
	}
	log.Print("sdram", "info", "training complete")
	return ctx, nil
}
