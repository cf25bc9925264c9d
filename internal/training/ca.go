// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"fmt"
)

// caSetupArray widens every line's envelope to the impossible extremes
// so the first trained rank narrows it unconditionally.
func (ctx *Context) caSetupArray() {
	for ch := 0; ch < ctx.Channels; ch++ {
		for line := 0; line < 14; line++ {
			ctx.CADelays[ch][line][0] = -ctx.MaxDelayTaps
			ctx.CADelays[ch][line][1] = ctx.MaxDelayTaps
		}
	}
}

// caCheckLines probes whether CA13 is wired; depending on die density
// and stacking it may not be. Only meaningful when talking directly to
// the DRAM.
func (ctx *Context) caCheckLines(channel, rank int) {
	if ctx.Type == HostToDRAM {
		ctx.CA.EnterTrainingMode(channel, 0)
		if ctx.CA.HasLine13(channel, rank) {
			ctx.LineCount = 14
		} else {
			ctx.LineCount = 13
		}
		ctx.CA.ExitTrainingMode(channel, 0)
	}
	ctx.logf(0, "module has %d address lines", ctx.LineCount)
}

func (ctx *Context) caScanSingle(channel, rank, line int, shiftBack bool, m *scanmap) {
	ctx.CA.ResetDelay(channel, rank, line)
	for cadly := 0; cadly < ctx.MaxDelayTaps; cadly++ {
		works := ctx.CA.Check(channel, rank, line, shiftBack)
		m.mark(works)
		ctx.scan.Record(works)
		ctx.CA.IncDelay(channel, rank, line)
	}
	ctx.CA.ResetDelay(channel, rank, line)
}

// caScan sweeps one address line over two periods: the first against
// the previous command slot (shift back), the second against the
// current one. Windows therefore always land one period high and the
// caller always subtracts.
func (ctx *Context) caScan(channel, rank, line int) {
	ctx.scan.Clear()
	ctx.CA.ResetDelay(channel, rank, line)

	m := ctx.newScanmap(1, fmt.Sprintf("CA line %d |", line))
	ctx.CA.EnterTrainingMode(channel, rank)
	ctx.caScanSingle(channel, rank, line, true, m)
	m.WriteByte('|')
	ctx.caScanSingle(channel, rank, line, false, m)
	m.flush()
	ctx.CA.ExitTrainingMode(channel, rank)
}

// caTraining calibrates each address line, narrowing the per-line
// envelope across ranks to the intersection every rank can live with.
// RDIMM host-to-RCD training is limited to rank 0; the RCD's DCA
// inputs are shared.
func (ctx *Context) caTraining(channel int) error {
	maxRank := ctx.Ranks
	if ctx.Type == HostToRCD {
		maxRank = 1
	}

	for rank := 0; rank < maxRank; rank++ {
		ctx.logf(0, "CA training rank %d", rank)
		for line := 0; line < ctx.LineCount; line++ {
			ctx.caScan(channel, rank, line)
			right, left, ok := ctx.scan.FindWindow(ctx.MaxDelayTaps)
			if !ok {
				ctx.logf(0, "CA line %d: eye width 0", line)
				return fmt.Errorf("%w: CA channel %d line %d",
					ErrNoWindow, channel, line)
			}
			right -= ctx.MaxDelayTaps
			left -= ctx.MaxDelayTaps
			ctx.logf(0, "CA[%d] %d:%d", line, right, left)

			if right > ctx.CADelays[channel][line][0] {
				ctx.CADelays[channel][line][0] = right
			}
			if left < ctx.CADelays[channel][line][1] {
				ctx.CADelays[channel][line][1] = left
			}
		}
	}
	return nil
}
