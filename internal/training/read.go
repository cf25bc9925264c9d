// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"fmt"

	"github.com/platinasystems/sdramctl/internal/eye"
	"github.com/platinasystems/sdramctl/internal/phy"
)

// DRAM mode registers used during read training. JESD79-5A 3.5.
const (
	mrSerialMode  = 25 // 0 serial, 1 LFSR
	mrPatternLow  = 26
	mrPatternHigh = 27
	mrInvertDQL   = 28
	mrInvertDQU   = 29
	mrDataSource  = 30
	mrReadPattern = 31
	mrScratchPad  = 63
	mrSerialBase  = 65 // MR65..MR69 hold the 5 byte serial number
)

// enterRPTM puts a rank into Read Preamble Training Mode with the DQ
// inversion and data source selections the comparisons below expect.
// JESD79-5A 4.18.2.
func (ctx *Context) enterRPTM(channel, rank int) {
	data := ctx.Ctl.Data
	data.MRW(channel, rank, phy.Broadcast, mrInvertDQL, 0xA5)
	data.MRW(channel, rank, phy.Broadcast, mrInvertDQU, 0xA5)
	data.MRW(channel, rank, phy.Broadcast, mrDataSource, 0x33)
	data.MRW(channel, rank, phy.Broadcast, 2, ctx.mr2(1))
}

func (ctx *Context) exitRPTM(channel, rank int) {
	data := ctx.Ctl.Data
	data.MRW(channel, rank, phy.Broadcast, mrSerialMode, 0)
	data.MRW(channel, rank, phy.Broadcast, mrPatternLow, 0x5a)
	data.MRW(channel, rank, phy.Broadcast, mrPatternHigh, 0x3c)
	data.MRW(channel, rank, phy.Broadcast, mrInvertDQL, 0)
	data.MRW(channel, rank, phy.Broadcast, mrInvertDQU, 0)
	data.MRW(channel, rank, phy.Broadcast, 2, ctx.mr2(0))
}

// readCheckWorks probes the current read cycle/DQ delay pair: 16
// repeated readouts of every serial pattern, then of every LFSR seed
// pair. Repetition defends against metastable taps. Returns 0 when
// serial readout fails, 1 when only serial works, 3 when both do.
func (ctx *Context) readCheckWorks(channel, rank, module int) int {
	data := ctx.Ctl.Data
	works := true

	for seed := 0; seed < len(serial) && works; seed++ {
		data.MRW(channel, rank, module, mrSerialMode, 0)
		data.MRW(channel, rank, module, mrPatternLow,
			uint8(serial[seed]))
		data.MRW(channel, rank, module, mrPatternHigh,
			uint8(serial[seed]>>8))
		for i := 0; i < 16 && works; i++ {
			data.MRR(channel, rank, mrReadPattern)
			works = data.CompareSerial(channel, rank, module,
				ctx.DieWidth, serial[seed], 0xA5)
		}
	}
	if !works {
		return 0
	}

	for seed := 0; seed < len(seeds0) && works; seed++ {
		for i := 0; i < 16 && works; i++ {
			data.MRW(channel, rank, module, mrSerialMode, 1)
			data.MRW(channel, rank, module, mrPatternLow,
				seeds0[seed])
			data.MRW(channel, rank, module, mrPatternHigh,
				seeds1[seed])
			data.MRR(channel, rank, mrReadPattern)
			works = data.CompareLFSR(channel, rank, module,
				ctx.DieWidth, seeds0[seed], seeds1[seed],
				0xA5, 0x33)
		}
	}
	if !works {
		return 1
	}
	return 3
}

// findReadPreambleCycle sweeps read cycle delay (outer) against DQ
// delay (inner) until the fixed preamble pattern is observed. The
// preamble is 1 tCK 0b10, but the capture path samples two cycles and
// bit-reverses, so the match value is 0b0100. Returns the first cycle
// holding it, or eye.Unset.
func (ctx *Context) findReadPreambleCycle(channel, rank, module int) int {
	data := ctx.Ctl.Data
	e := eye.New()

	ctx.logf(1, "finding read preamble")
	ctx.Ctl.ReadCycle.Reset(channel, module, ctx.DieWidth)
	for cycle := 0; cycle < phy.MaxReadCycleDelay && e.State != eye.After; cycle++ {
		m := ctx.newScanmap(1, fmt.Sprintf("%2d|", cycle))
		ctx.Ctl.ReadDQ.Reset(channel, module, ctx.DieWidth)
		for idly := 0; idly < ctx.MaxDelayTaps; idly++ {
			data.MRR(channel, rank, mrReadPattern)
			preamble := data.CapturedPreamble(channel, module,
				ctx.DieWidth)
			m.mark(preamble == 4)
			e.Sample(preamble == 4, cycle)
			ctx.Ctl.ReadDQ.Inc(channel, module, ctx.DieWidth)
		}
		m.flush()
		ctx.Ctl.ReadCycle.Inc(channel, module, ctx.DieWidth)
	}
	return e.Start
}

// readDataScan searches the flattened cycle×tap space for the read
// data eye and sets the read delays to its center. The sweep starts
// one cycle before the preamble cycle, as DQ and DQS can be
// misaligned across the boundary.
func (ctx *Context) readDataScan(channel, rank, module, preambleCycle int) error {
	e := eye.New()
	preambleCycle--

	ctx.logf(0, "data scan")
	ctx.Ctl.ReadCycle.Set(channel, module, ctx.DieWidth, preambleCycle)

	for cycle := preambleCycle; cycle < phy.MaxReadCycleDelay && e.State != eye.After; cycle++ {
		m := ctx.newScanmap(1, fmt.Sprintf("%2d|", cycle))
		ctx.Ctl.ReadDQ.Reset(channel, module, ctx.DieWidth)
		for idly := 0; idly < ctx.MaxDelayTaps; idly++ {
			works := ctx.readCheckWorks(channel, rank, module)
			m.mark(works == 3)

			if works == 3 && e.State == eye.Before {
				e.Start = cycle*ctx.MaxDelayTaps + idly
				e.State = eye.Inside
			} else if works != 3 && e.State == eye.Inside {
				e.End = cycle*ctx.MaxDelayTaps + idly
				e.State = eye.After
			}
			ctx.Ctl.ReadDQ.Inc(channel, module, ctx.DieWidth)
		}
		m.flush()
		ctx.Ctl.ReadCycle.Inc(channel, module, ctx.DieWidth)
	}
	if e.State != eye.After {
		return fmt.Errorf("%w: read data channel %c rank %d module %d",
			ErrNoWindow, 'A'+channel, rank, module)
	}

	width := e.End - e.Start
	e.Center = e.Start + width/2
	centerCycle := e.Center / ctx.MaxDelayTaps
	centerDelay := e.Center % ctx.MaxDelayTaps
	ctx.logf(0, "eye width %d, center cycle %d delay %d", width,
		centerCycle, centerDelay)

	ctx.Ctl.ReadCycle.Set(channel, module, ctx.DieWidth, centerCycle)
	ctx.Ctl.ReadDQ.Set(channel, module, ctx.DieWidth, centerDelay)
	return nil
}

// serialNumber reads the device's 5 byte manufacturer serial number
// from MR65-MR69. JESD79-5A 3.5.66-70.
func (ctx *Context) serialNumber(channel, rank, module int) uint64 {
	data := ctx.Ctl.Data
	var sn uint64
	for i := 0; i < 5; i++ {
		data.MRR(channel, rank, mrSerialBase+i)
		sn = sn<<8 | uint64(data.RecoverMRRValue(channel, module,
			ctx.DieWidth))
	}
	return sn
}

// simpleReadCheck writes 0xDEADBEEF one byte at a time through the
// scratch pad register, reading each byte back.
func (ctx *Context) simpleReadCheck(channel, rank, module int) bool {
	data := ctx.Ctl.Data
	works := true
	for _, b := range []uint8{0xDE, 0xAD, 0xBE, 0xEF} {
		data.MRW(channel, rank, module, mrScratchPad, b)
		data.MRR(channel, rank, mrScratchPad)
		got := data.RecoverMRRValue(channel, module, ctx.DieWidth)
		works = works && got == b
	}
	return works
}

// rankReadTraining finds each module's preamble cycle and read data
// eye under Read Preamble Training Mode.
func (ctx *Context) rankReadTraining(channel, rank int) error {
	ctx.enterRPTM(channel, rank)
	defer ctx.exitRPTM(channel, rank)

	for module := 0; module < ctx.Modules; module++ {
		ctx.logf(0, "training module %d", module)
		preambleCycle := ctx.findReadPreambleCycle(channel, rank,
			module)
		if preambleCycle == eye.Unset {
			return fmt.Errorf(
				"%w: read preamble channel %c rank %d module %d",
				ErrNoWindow, 'A'+channel, rank, module)
		}
		ctx.logf(0, "read preamble starts in cycle %d", preambleCycle)

		err := ctx.readDataScan(channel, rank, module, preambleCycle)
		if err != nil {
			return err
		}
	}
	return nil
}

// rankReadCheck reports each module's serial number and, for
// direct-attach topologies, runs the scratch pad self-test. Serial
// number readout is diagnostic only.
func (ctx *Context) rankReadCheck(channel, rank int, readBack bool) bool {
	good := true
	for module := 0; module < ctx.Modules; module++ {
		ctx.logf(0, "channel %c rank %d module %d serial %010X",
			'A'+channel, rank, module,
			ctx.serialNumber(channel, rank, module))
	}
	if readBack {
		for module := 0; module < ctx.Modules; module++ {
			if !ctx.simpleReadCheck(channel, rank, module) {
				ctx.logf(0, "module %d read check failed",
					module)
				good = false
			}
		}
	}
	return good
}

// ReadTraining aligns the read capture path for every module: coarse
// preamble-cycle alignment, a fine data-eye scan, then a read-back
// verification.
func (ctx *Context) ReadTraining() error {
	for channel := 0; channel < ctx.Channels; channel++ {
		ctx.Ctl.Seq.DQRemapping(channel, ctx.Modules, ctx.DieWidth)
		ctx.logf(0, "subchannel %c read training", 'A'+channel)
		for rank := 0; rank < ctx.Ranks; rank++ {
			ctx.logf(0, "training rank %d", rank)
			err := ctx.stage(ctx.rankReadTraining(channel, rank))
			if err != nil {
				return err
			}
			// read checks must run after leaving RPTM
			readBack := ctx.Type == HostToDRAM && !ctx.RDIMM
			if !ctx.rankReadCheck(channel, rank, readBack) {
				err := ctx.stage(fmt.Errorf(
					"%w: read check channel %c rank %d",
					ErrNoWindow, 'A'+channel, rank))
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}
