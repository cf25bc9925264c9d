// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"fmt"
	"time"

	"github.com/platinasystems/sdramctl/internal/phy"
)

// channelRange turns the channel argument convention (-1 means all)
// into loop bounds.
func (ctx *Context) channelRange(channel int) (int, int) {
	if channel == -1 {
		return 0, ctx.Channels
	}
	return channel, channel + 1
}

// csCaCalculateMidpoints fills the final delay arrays with each eye's
// midpoint and tracks the global extremes for the clock shift.
func (ctx *Context) csCaCalculateMidpoints(channel int, min, max *int) {
	first, last := ctx.channelRange(channel)
	for ch := first; ch < last; ch++ {
		for rank := 0; rank < ctx.Ranks; rank++ {
			d := ctx.CSDelays[ch][rank]
			mid := (d[0] + d[1]) / 2
			ctx.logf(0, "CS rank %d: %d:%d center %d", rank,
				d[0], d[1], mid)
			ctx.CSFinal[ch][rank] = mid
			if mid < *min {
				*min = mid
			}
			if mid > *max {
				*max = mid
			}
		}
		for line := 0; line < ctx.LineCount; line++ {
			d := ctx.CADelays[ch][line]
			mid := (d[0] + d[1]) / 2
			ctx.logf(0, "CA line %d: %d:%d center %d", line,
				d[0], d[1], mid)
			ctx.CAFinal[ch][line] = mid
			if mid < *min {
				*min = mid
			}
			if mid > *max {
				*max = mid
			}
		}
	}
}

// csCaSetAdjustedDelays applies the stored midpoints reduced by the
// clock offset.
func (ctx *Context) csCaSetAdjustedDelays(channel, ckOffset int) {
	first, last := ctx.channelRange(channel)
	for ch := first; ch < last; ch++ {
		for rank := 0; rank < ctx.Ranks; rank++ {
			ctx.CSFinal[ch][rank] -= ckOffset
			ctx.logf(0, "CS rank %d center delay %d", rank,
				ctx.CSFinal[ch][rank])
			ctx.CS.SetDelay(ch, rank, ctx.CSFinal[ch][rank])
		}
		for line := 0; line < ctx.LineCount; line++ {
			ctx.CAFinal[ch][line] -= ckOffset
			ctx.logf(0, "CA line %d center delay %d", line,
				ctx.CAFinal[ch][line])
			ctx.CA.SetDelay(ch, 0, line, ctx.CAFinal[ch][line])
		}
	}
}

// csCaRescan repeats the CS and CA sweeps at the finalized delays.
// Using the training scan routines keeps the output comparable with
// the training pass; every signal must reproduce a valid window or the
// finalized timings can't be trusted.
func (ctx *Context) csCaRescan(channel int) error {
	first, last := ctx.channelRange(channel)
	ctx.logf(0, "re-scan CS/CA")
	for ch := first; ch < last; ch++ {
		for rank := 0; rank < ctx.Ranks; rank++ {
			ctx.csScan(ch, rank)
			_, _, ok := ctx.scan.FindWindow(ctx.MaxDelayTaps)

			// restore the finalized delay the scan clobbered
			ctx.CS.SetDelay(ch, rank, ctx.CSFinal[ch][rank])
			if !ok {
				return fmt.Errorf("%w: CS channel %d rank %d",
					ErrVerification, ch, rank)
			}
		}
		for rank := 0; rank < ctx.Ranks; rank++ {
			if ctx.Type == HostToRCD && rank == 1 {
				continue
			}
			for line := 0; line < ctx.LineCount; line++ {
				ctx.caScan(ch, rank, line)
				_, _, ok := ctx.scan.FindWindow(ctx.MaxDelayTaps)

				ctx.CA.SetDelay(ch, rank, line,
					ctx.CAFinal[ch][line])
				if !ok {
					return fmt.Errorf(
						"%w: CA channel %d line %d",
						ErrVerification, ch, line)
				}
			}
		}
	}
	return nil
}

// ckFinalizeTimings computes all CS/CA eye midpoints, shifts the clock
// so the smallest midpoint lands at tap 0, re-applies every final
// delay reduced by that minimum and verifies the result with a full
// rescan.
func (ctx *Context) ckFinalizeTimings(channel int) error {
	min := ctx.MaxDelayTaps
	max := -ctx.MaxDelayTaps

	ctx.csCaCalculateMidpoints(channel, &min, &max)
	ctx.logf(0, "center delays min %d max %d spread %d", min, max,
		max-min)

	ckdly := (ctx.MaxDelayTaps - min) % ctx.MaxDelayTaps
	ctx.logf(0, "new clock delay %d", ckdly)

	first, last := ctx.channelRange(channel)
	for ch := first; ch < last; ch++ {
		ctx.CK.SetDelay(ch, ckdly)
	}
	time.Sleep(10 * time.Millisecond)

	ctx.csCaSetAdjustedDelays(channel, min)
	return ctx.csCaRescan(channel)
}

// csCaPrep leaves 2N command mode when signaling allows and resets the
// CA envelopes.
func (ctx *Context) csCaPrep() {
	if ctx.Rate == phy.DDR && ctx.Type != RCDToDRAM {
		ctx.Ctl.Seq.DisableDFI2NMode()
	}
	ctx.caSetupArray()
}

// csCaChannelTraining runs CS then CA training on one subchannel.
func (ctx *Context) csCaChannelTraining(channel int) error {
	ctx.CK.ResetDelay(channel)
	ctx.logf(0, "subchannel %c CS training", 'A'+channel)
	if err := ctx.stage(ctx.csTraining(channel)); err != nil {
		return err
	}
	ctx.logf(0, "CA training")
	ctx.caCheckLines(channel, 0)
	return ctx.stage(ctx.caTraining(channel))
}

// CSCATraining trains chip-select and command/address delays on all
// subchannels and finalizes the clock shift.
func (ctx *Context) CSCATraining() error {
	ctx.csCaPrep()
	for ch := 0; ch < ctx.Channels; ch++ {
		if err := ctx.csCaChannelTraining(ch); err != nil {
			ctx.Succeeded = false
			return err
		}
	}
	return ctx.ckFinalizeTimings(-1)
}

// stage applies the central error policy: under keep-going a stage
// failure is latched and reported but training proceeds on a
// best-effort basis for diagnostic visibility.
func (ctx *Context) stage(err error) error {
	if err == nil {
		return nil
	}
	if ctx.Config.KeepGoing {
		ctx.Succeeded = false
		ctx.logf(0, "continuing past error: %v", err)
		return nil
	}
	return err
}
