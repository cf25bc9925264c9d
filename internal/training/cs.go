// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"fmt"
)

// reduceCS collapses the per-module result bitmask to a single
// pass/fail: every module on the rank must have answered.
func reduceCS(cs uint32, modules int) bool {
	ok := uint32(1)
	for module := 0; module < modules; module++ {
		ok &= cs >> uint(module) & 1
	}
	return ok != 0
}

// csScanSingle sweeps one full delay-line period, recording one sample
// per tap. A tap passes only when (a) the modules answering under the
// primary shift are a subset of those that already answered without a
// shift and introduce no module seen in a conflicting state, and (b)
// no module answers under both shift polarities at once, which marks a
// false positive. The opposite-polarity probe is skipped against an
// RCD, whose DCS inputs have no pattern to invert.
func (ctx *Context) csScanSingle(channel, rank int, shift bool, m *scanmap) {
	for csdly := 0; csdly < ctx.MaxDelayTaps; csdly++ {
		works := ctx.CS.Check(channel, rank, shift, ctx.Modules,
			ctx.DieWidth)
		if !ctx.seenWorking {
			ctx.modulesWithoutShift = 0
			ctx.modulesSeen = 0
		}
		if works&ctx.modulesWithoutShift != ctx.modulesWithoutShift {
			works = 0
		}
		// new modules must not have been seen under a
		// conflicting state
		fresh := works &^ ctx.modulesWithoutShift
		if fresh&^ctx.modulesSeen != fresh {
			works = 0
		}
		ctx.modulesWithoutShift |= works
		ctx.modulesSeen |= works

		var opposite uint32
		if ctx.Type != HostToRCD {
			opposite = ctx.CS.Check(channel, rank, !shift,
				ctx.Modules, ctx.DieWidth)
			if opposite&^ctx.modulesWithoutShift != opposite {
				opposite = 0
			}
			ctx.modulesSeen |= opposite
		}
		if works&opposite != 0 {
			works = 0
		} else {
			works |= opposite
		}

		ok := reduceCS(works, ctx.Modules)
		m.mark(ok)
		ctx.scan.Record(ok)
		ctx.seenWorking = ctx.seenWorking || ok
		ctx.CS.IncDelay(channel, rank)
	}
	ctx.CS.ResetDelay(channel, rank)
}

func (ctx *Context) csResetFilters() {
	ctx.modulesWithoutShift = 0
	ctx.modulesSeen = 0
}

// csScan runs the initial period sweep and classifies it with the
// scanner's 3-way OneIn: -1 means the signal already passed at tap 0,
// so the eye may have wrapped from the previous period; +1 a clean
// mid-period eye; 0 no signal at all. The returned subtract flag tells
// the caller the window indices are one full period too high.
func (ctx *Context) csScan(channel, rank int) (subtract bool) {
	shift := ctx.CSInvert[channel]
	ctx.scan.Clear()
	ctx.csResetFilters()
	ctx.seenWorking = false
	ctx.CS.ResetDelay(channel, rank)

	m := ctx.newScanmap(1, fmt.Sprintf("CS rank %d scan |", rank))
	ctx.CS.EnterTrainingMode(channel, rank)
	ctx.csScanSingle(channel, rank, shift, m)

	// Against an RCD a wrapped eye with a short leading run means
	// the polarity is inverted, not that the eye wrapped. Flip it
	// once and restart.
	if ctx.Type == HostToRCD &&
		ctx.scan.OneIn(ctx.MaxDelayTaps) == -1 &&
		ctx.scan.LeadingRun(ctx.MaxDelayTaps) < ctx.MaxDelayTaps/8 {
		ctx.CSInvert[channel] = true
		shift = true
		ctx.scan.Clear()
		ctx.csResetFilters()
		m.flush()
		m = ctx.newScanmap(1, "CS polarity flip |")
		ctx.csScanSingle(channel, rank, shift, m)
	}

	switch ctx.scan.OneIn(ctx.MaxDelayTaps) {
	case -1:
		// Wrapped: rescan this period with the opposite shift
		// first, then pin the trailing edge; window indices
		// will need a full period subtracted.
		ctx.scan.Clear()
		m.WriteString("|wrap|")
		shift = !shift
		ctx.csScanSingle(channel, rank, shift, m)
		subtract = true
		fallthrough
	case 1:
		m.WriteByte('|')
		shift = !shift
		ctx.csScanSingle(channel, rank, shift, m)
	case 0:
		// Nothing answered; one bidirectional retry before the
		// caller declares failure. Matters only when training
		// an RCD whose polarity defaults wrong.
		ctx.scan.Clear()
		ctx.csResetFilters()
		m.WriteString("|retry|")
		ctx.csScanSingle(channel, rank, !shift, m)
		m.WriteByte('|')
		ctx.csScanSingle(channel, rank, shift, m)
	}
	m.flush()

	ctx.CS.ExitTrainingMode(channel, rank)
	return subtract
}

// csTraining calibrates chip-select delays for every rank of one
// subchannel. Results land in CSDelays/CSCoarse; midpoints are applied
// immediately so the CA cross-check below runs with CS already placed.
func (ctx *Context) csTraining(channel int) error {
	for rank := 0; rank < ctx.Ranks; rank++ {
		var right, left int

		// RDIMM CS pairs must be within 20ps of each other and
		// the RCD DCS paths are identical, so odd ranks reuse
		// the even rank's eye.
		if ctx.Type != HostToRCD || rank&1 == 0 {
			subtract := ctx.csScan(channel, rank)
			var ok bool
			right, left, ok = ctx.scan.FindWindow(ctx.MaxDelayTaps)
			if !ok {
				ctx.logf(0, "CS rank %d: eye width 0", rank)
				return fmt.Errorf("%w: CS channel %d rank %d",
					ErrNoWindow, channel, rank)
			}
			if subtract {
				right -= ctx.MaxDelayTaps
				left -= ctx.MaxDelayTaps
			}
		} else {
			right = ctx.CSDelays[channel][rank^1][0]
			left = ctx.CSDelays[channel][rank^1][1]
		}

		ctx.applyCoarseCS(channel, rank, right, left)

		// Cross-check CS by exercising CA line 0. If the
		// resulting window's left edge lands negative, the CS
		// eye captured the previous clock period; move CS one
		// period to the right. At most one such correction.
		ctx.caScan(channel, rank, 0)
		right, left, ok := ctx.scan.FindWindow(ctx.MaxDelayTaps)
		right -= ctx.MaxDelayTaps
		left -= ctx.MaxDelayTaps
		if ok && left < 0 {
			right = ctx.CSDelays[channel][rank][0] + ctx.MaxDelayTaps
			left = ctx.CSDelays[channel][rank][1] + ctx.MaxDelayTaps
			ctx.logf(0, "CS rank %d eye captures previous clock, moving right", rank)
			ctx.applyCoarseCS(channel, rank, right, left)
		}
	}
	return nil
}

func (ctx *Context) applyCoarseCS(channel, rank, right, left int) {
	coarse := (right + left) / 2
	if coarse < 0 {
		coarse = 0
	}
	ctx.logf(0, "CS rank %d delays %d:%d coarse %d", rank, right, left,
		coarse)
	ctx.CSCoarse[channel][rank] = coarse
	ctx.CS.SetDelay(channel, rank, coarse)
	ctx.CSDelays[channel][rank] = [2]int{right, left}
}
