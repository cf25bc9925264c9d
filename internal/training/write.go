// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"fmt"
	"time"

	"github.com/platinasystems/sdramctl/internal/eye"
	"github.com/platinasystems/sdramctl/internal/phy"
)

// Write path mode registers. JESD79-5A 3.5.
const (
	mrWICA   = 3 // OP[3:0] Write-leveling Internal Cycle Alignment
	mrDM     = 5 // OP[5] data mask enable
	mrVrefDQ = 10
)

// enterWLTM puts a rank into Write Leveling Training Mode.
// JESD79-5A 4.21.2.
func (ctx *Context) enterWLTM(channel, rank int) {
	ctx.Ctl.Data.EnterWriteLeveling(channel)
	ctx.Ctl.Data.MRW(channel, rank, phy.Broadcast, 2,
		2|ctx.SingleCycleMPC)
}

// exitWLTM leaves Write Leveling Training Mode, keeping MR2:OP[7] set
// so the internal leveling results stay in effect.
func (ctx *Context) exitWLTM(channel, rank int) {
	ctx.Ctl.Data.MRW(channel, rank, phy.Broadcast, 2, ctx.mr2(0))
	ctx.Ctl.Data.ExitWriteLeveling(channel)
	ctx.Ctl.Data.ClearFIFOs(channel)
}

// wlCheck16 repeats the leveling response check 16 times; a candidate
// on a metastable transition edge must not pass.
func (ctx *Context) wlCheck16(channel, rank, module int) bool {
	works := true
	for i := 0; i < 16; i++ {
		works = works && ctx.Ctl.Data.WriteLevelingCheck(channel,
			rank, module, ctx.DieWidth)
	}
	return works
}

// wlAlignExternalCycle finds the first write DQS cycle delay with a
// correct leveling response. Strobes arrive no earlier than CWL/2
// after the WR command, offset by the PHY's internal minimum write
// latency. JESD79-5A 4.21.3.
func (ctx *Context) wlAlignExternalCycle(channel, rank, module int) int {
	e := eye.New()
	minCycle := phy.CWL/2 - phy.MinWrLatency

	ctx.Ctl.WriteDQS.Set(channel, module, ctx.DieWidth, minCycle)
	for cycle := minCycle; cycle < phy.MaxWriteCycleDelay && e.State != eye.Inside; cycle++ {
		works := ctx.wlCheck16(channel, rank, module)
		ctx.logf(1, "cycle %2d leveling response %v", cycle, works)
		if works && e.State == eye.Before {
			e.Start = cycle
			e.State = eye.Inside
		}
		ctx.Ctl.WriteDQS.Inc(channel, module, ctx.DieWidth)
	}
	return e.Start
}

// wlevelingScan sweeps the DQS output delay over one period, feeding
// the eye with a single leveling response per tap.
func (ctx *Context) wlevelingScan(channel, rank, module int, e *eye.Eye) {
	ctx.Ctl.WriteDQSOut.Reset(channel, module, ctx.DieWidth)
	m := ctx.newScanmap(1, "DQS |")
	for delay := 0; delay < ctx.MaxDelayTaps; delay++ {
		works := ctx.Ctl.Data.WriteLevelingCheck(channel, rank,
			module, ctx.DieWidth)
		m.mark(works)
		e.Sample(works, delay)
		ctx.Ctl.WriteDQSOut.Inc(channel, module, ctx.DieWidth)
	}
	m.flush()
}

// wlAlignToEyeEdge pulls the transition cycle one back (it was found
// with output delay 0) and scans output delays cycle by cycle until
// the eye's leading edge appears. Shared by external and internal
// leveling.
func (ctx *Context) wlAlignToEyeEdge(channel, rank, module int, transitionCycle *int) int {
	e := eye.New()
	*transitionCycle--

	ctx.Ctl.WriteDQS.Set(channel, module, ctx.DieWidth, *transitionCycle)
	ctx.logf(0, "DQS edge scan")
	ctx.wlevelingScan(channel, rank, module, &e)
	for *transitionCycle < phy.MaxWriteCycleDelay && e.State != eye.Inside {
		ctx.Ctl.WriteDQS.Inc(channel, module, ctx.DieWidth)
		*transitionCycle++
		ctx.wlevelingScan(channel, rank, module, &e)
	}
	return e.Start
}

// wlAlignInternalCycle searches Write-leveling Internal Cycle
// Alignment values until one works. JEDEC defines operands [0,7);
// [7,15] are optional and excluded. Enables internal write timing in
// MR2:OP[7] first. JESD79-5A 4.21.4.
func (ctx *Context) wlAlignInternalCycle(channel, rank, module int) {
	e := eye.New()
	wica := 0

	ctx.logf(0, "DQS internal cycle alignment")
	ctx.UseInternalWriteTiming = 1 << 7
	ctx.Ctl.Data.MRW(channel, rank, module, 2, ctx.mr2(2))

	for {
		ctx.Ctl.Data.MRW(channel, rank, module, mrWICA, uint8(wica))
		works := ctx.wlCheck16(channel, rank, module)
		ctx.logf(1, "WICA %d works %v", wica, works)
		wica++
		if works && e.State == eye.Before {
			e.State = eye.Inside
		}
		if e.State == eye.Inside || wica >= 7 {
			break
		}
	}
}

// carryDelay folds a fractional-tCK adjustment expressed in taps into
// a (cycle, delay) pair.
func (ctx *Context) carryDelay(cycle, delay int) (int, int) {
	if delay >= ctx.MaxDelayTaps {
		cycle++
		delay -= ctx.MaxDelayTaps
	}
	return cycle, delay
}

// writeLeveling aligns one module's write DQS: external leveling for
// the cycle, internal leveling for the device's own alignment, with
// the JEDEC preamble-dependent ±0.75/+1.25 tCK adjustments between
// phases. Returns the final strobe cycle, or eye.Unset on failure.
// JESD79-5A 4.21.
func (ctx *Context) writeLeveling(channel, rank, module int) int {
	ctx.logf(0, "write leveling module %d", module)

	// The leveling pulse is 2 tCK wide, so finding the right cycle
	// with output delay 0 and refining with the edge scan is safe.
	ctx.Ctl.WriteDQSOut.Reset(channel, module, ctx.DieWidth)
	cycle := ctx.wlAlignExternalCycle(channel, rank, module)
	if cycle == eye.Unset {
		ctx.logf(0, "no leveling transition cycle for module %d",
			module)
		return eye.Unset
	}
	ctx.logf(0, "leveling response transition in cycle %d (adjusted %d)",
		cycle, cycle+phy.MinWrLatency)

	delay := ctx.wlAlignToEyeEdge(channel, rank, module, &cycle)
	ctx.logf(1, "external edge cycle %d delay %d", cycle, delay)

	// 2 tCK write preamble: adjust by -0.75 tCK before internal
	// leveling and +1.25 tCK after. JESD79-5A 4.21.4 Table 110.
	cycle--
	delay += ctx.MaxDelayTaps / 4
	cycle, delay = ctx.carryDelay(cycle, delay)
	ctx.logf(1, "after -0.75 tCK: cycle %d delay %d", cycle, delay)

	ctx.Ctl.WriteDQS.Set(channel, module, ctx.DieWidth, cycle)
	ctx.Ctl.WriteDQSOut.Set(channel, module, ctx.DieWidth, delay)

	ctx.wlAlignInternalCycle(channel, rank, module)

	delay = ctx.wlAlignToEyeEdge(channel, rank, module, &cycle)
	cycle++
	delay += ctx.MaxDelayTaps / 4
	cycle, delay = ctx.carryDelay(cycle, delay)
	ctx.logf(0, "final leveling: cycle %d (adjusted %d) delay %d",
		cycle, cycle+phy.MinWrLatency, delay)

	ctx.Ctl.WriteDQS.Set(channel, module, ctx.DieWidth, cycle)
	ctx.Ctl.WriteDQSOut.Set(channel, module, ctx.DieWidth, delay)
	return cycle
}

// setupSerialWriteData stages one serial pattern across all 8 write
// phases, replicated over both halves of the module's data lines.
func (ctx *Context) setupSerialWriteData(seed, channel, module int) {
	for phase := 0; phase < 8; phase++ {
		var wrdata uint16
		for bit := 0; bit < ctx.DieWidth; bit++ {
			wrdata |= serial[seed] >> uint(2*phase) & 1 << uint(bit)
			wrdata |= serial[seed] >> uint(2*phase+1) & 1 <<
				uint(bit+ctx.DieWidth)
		}
		ctx.Ctl.Data.SetDataPhase(channel, module, ctx.DieWidth,
			phase, wrdata)
	}
}

func (ctx *Context) compareSerialWriteData(seed, channel, module int) bool {
	for phase := 0; phase < 8; phase++ {
		rddata := ctx.Ctl.Data.DataPhase(channel, module,
			ctx.DieWidth, phase)
		for bit := 0; bit < ctx.DieWidth; bit++ {
			if rddata>>uint(bit)&1 !=
				serial[seed]>>uint(2*phase)&1 {
				return false
			}
			if rddata>>uint(bit+ctx.DieWidth)&1 !=
				serial[seed]>>uint(2*phase+1)&1 {
				return false
			}
		}
	}
	return true
}

func (ctx *Context) clearWriteData(channel, rank, module int) {
	for phase := 0; phase < 8; phase++ {
		ctx.Ctl.Data.SetDataPhase(channel, module, ctx.DieWidth,
			phase, 0)
	}
	ctx.Ctl.Data.Write(channel, rank)
}

// writeSerialCheck writes and reads back every serial pattern 8 times.
func (ctx *Context) writeSerialCheck(channel, rank, module int) bool {
	for seed := range serial {
		ctx.setupSerialWriteData(seed, channel, module)
		for i := 0; i < 8; i++ {
			ctx.Ctl.Data.Write(channel, rank)
			ctx.Ctl.Data.Read(channel, rank)
			if !ctx.compareSerialWriteData(seed, channel, module) {
				return false
			}
		}
		ctx.clearWriteData(channel, rank, module)
	}
	return true
}

// setupLFSRWriteData stages an LFSR sequence: one step per byte lane
// per phase, xored with 0x55 to keep transitions on every line.
func (ctx *Context) setupLFSRWriteData(seed uint8, channel, module int) {
	lfsr := seed
	for phase := 0; phase < 8; phase++ {
		wrdata := uint16(lfsr ^ 0x55)
		lfsr = lfsrNext(lfsr)
		if ctx.DieWidth > 4 {
			wrdata |= uint16(lfsr^0x55) << 8
			lfsr = lfsrNext(lfsr)
		}
		ctx.Ctl.Data.SetDataPhase(channel, module, ctx.DieWidth,
			phase, wrdata)
	}
}

func (ctx *Context) compareLFSRWriteData(seed uint8, channel, module int) bool {
	lfsr := seed
	for phase := 0; phase < 8; phase++ {
		rddata := ctx.Ctl.Data.DataPhase(channel, module,
			ctx.DieWidth, phase)
		if uint8(rddata) != lfsr^0x55 {
			return false
		}
		lfsr = lfsrNext(lfsr)
		if ctx.DieWidth > 4 {
			if uint8(rddata>>8) != lfsr^0x55 {
				return false
			}
			lfsr = lfsrNext(lfsr)
		}
	}
	return true
}

// writeLFSRCheck writes and reads back every LFSR seed 16 times.
func (ctx *Context) writeLFSRCheck(channel, rank, module int) bool {
	for i := 0; i < 2*len(seeds0); i++ {
		seed := seeds0[i%len(seeds0)]
		if i >= len(seeds0) {
			seed = seeds1[i-len(seeds0)]
		}
		for rep := 0; rep < 16; rep++ {
			ctx.setupLFSRWriteData(seed, channel, module)
			ctx.Ctl.Data.Write(channel, rank)
			ctx.Ctl.Data.Read(channel, rank)
			if !ctx.compareLFSRWriteData(seed, channel, module) {
				return false
			}
		}
		ctx.clearWriteData(channel, rank, module)
	}
	return true
}

// compareDMLFSRWriteData verifies a masked write: only the selected
// byte of the 16 UI burst may hold LFSR data, everything else must
// have stayed zero from the preceding clear.
func (ctx *Context) compareDMLFSRWriteData(seed uint8, channel, module, byteSel int) bool {
	lfsr := seed
	works := true
	for it := 0; it < 16; it++ {
		rddata := ctx.Ctl.Data.DataPhase(channel, module,
			ctx.DieWidth, it/2)
		if it&1 != 0 {
			rddata >>= 8
		}
		if byteSel == it {
			works = works && uint8(rddata) == lfsr
		}
		lfsr = lfsrNext(lfsr)
	}
	return works
}

// writeDMLFSRCheck exercises the data mask for one byte position:
// write zeros with DM disabled, then a single masked byte with DM
// enabled, and verify only that byte changed.
func (ctx *Context) writeDMLFSRCheck(channel, rank, module, byteSel int, mr5 uint8) bool {
	for i := 0; i < 2*len(seeds0); i++ {
		seed := seeds0[i%len(seeds0)]
		if i >= len(seeds0) {
			seed = seeds1[i-len(seeds0)]
		}

		ctx.Ctl.Data.MRW(channel, rank, module, mrDM, mr5&0xDF)
		ctx.clearWriteData(channel, rank, module)
		ctx.Ctl.Data.MRW(channel, rank, module, mrDM, mr5)

		ctx.setupLFSRWriteData(seed, channel, module)
		ctx.Ctl.Data.WriteByte(channel, rank, module, byteSel)
		ctx.Ctl.Data.Read(channel, rank)

		works := ctx.compareDMLFSRWriteData(seed, channel, module,
			byteSel)
		ctx.clearWriteData(channel, rank, module)
		if !works {
			return false
		}
	}
	return true
}

// writeDataScan sweeps write DQ cycle and output delay around the
// leveled strobe cycle, from one cycle before to five after,
// classifying each tap with the serial then LFSR families.
func (ctx *Context) writeDataScan(channel, rank, module, strobeCycle int, print bool) eye.Eye {
	e := eye.New()
	serialOnly := eye.New()

	ctx.Ctl.WriteDQ.Set(channel, module, ctx.DieWidth, strobeCycle-3)
	if print {
		ctx.logf(0, "data scan")
	}
	for cycle := strobeCycle - 3; e.State != eye.After &&
		serialOnly.State != eye.After &&
		cycle < phy.MaxWriteCycleDelay+1 &&
		cycle < strobeCycle+5; cycle++ {

		m := ctx.newScanmap(1, fmt.Sprintf("%2d|", cycle))
		ctx.Ctl.WriteDQOut.Reset(channel, module, ctx.DieWidth)
		for delay := 0; delay < ctx.MaxDelayTaps; delay++ {
			works := 0
			if ctx.writeSerialCheck(channel, rank, module) {
				works = 1
				if ctx.writeLFSRCheck(channel, rank, module) {
					works = 3
				}
			}
			m.mark(works == 3)

			at := cycle*ctx.MaxDelayTaps + delay
			if works == 3 && e.State == eye.Before {
				e.Start = at
				e.State = eye.Inside
			} else if works != 3 && e.State == eye.Inside {
				e.End = at
				e.State = eye.After
			}
			serialOnly.Sample(works&1 != 0, at)
			ctx.Ctl.WriteDQOut.Inc(channel, module, ctx.DieWidth)
		}
		if print {
			m.flush()
		}
		ctx.Ctl.WriteDQ.Inc(channel, module, ctx.DieWidth)
	}
	return e
}

// dqVrefScan sweeps the DQ reference voltage, rerunning the data scan
// at each step and choosing the Vref centered on the settings that
// produced the widest eyes.
func (ctx *Context) dqVrefScan(channel, rank, module, strobeCycle int) int {
	lo := make([]int, ctx.MaxDelayTaps)
	hi := make([]int, ctx.MaxDelayTaps)
	for i := range lo {
		lo[i] = -1
		hi[i] = -1
	}

	for vref := 0x32; vref < 0x46; vref++ {
		ctx.logf(1, "Vref %#x", vref)
		ctx.Ctl.Data.MRW(channel, rank, module, mrVrefDQ,
			uint8(vref))
		time.Sleep(time.Microsecond)

		e := ctx.writeDataScan(channel, rank, module, strobeCycle,
			ctx.Config.Verbosity > 0)
		width := e.End - e.Start
		ctx.logf(1, "Vref %#x eye width %d", vref, width)
		for w := 0; w < width && w < len(lo); w++ {
			if lo[w] == -1 {
				lo[w] = vref
			}
			hi[w] = vref + 1
		}
	}

	best := -1
	for w := range lo {
		if lo[w] != -1 {
			best = (lo[w] + hi[w]) / 2
		}
	}
	ctx.logf(0, "module %d best Vref %#x", module, best)
	if best > -1 {
		ctx.Ctl.Data.MRW(channel, rank, module, mrVrefDQ,
			uint8(best))
		time.Sleep(time.Microsecond)
	}
	return best
}

// dmScan finds the data mask line's own eye, disabling and re-enabling
// DM around each probe so a stuck mask can't fake a pass.
func (ctx *Context) dmScan(channel, rank, module int, mr5 uint8) error {
	ctx.logf(0, "DM scan module %d", module)
	ctx.Ctl.WriteDM.Reset(channel, module, ctx.DieWidth)
	e := eye.New()
	m := ctx.newScanmap(1, "DM |")
	for delay := 0; delay < ctx.MaxDelayTaps && e.State != eye.After; delay++ {
		works := true
		for byteSel := 0; byteSel < 16 && works; byteSel++ {
			works = ctx.writeDMLFSRCheck(channel, rank, module,
				byteSel, mr5)
		}
		m.mark(works)

		if works && e.State == eye.Before {
			e.Start = delay
			e.State = eye.Inside
		}
		if !works && e.State == eye.Inside {
			e.End = delay
			e.State = eye.After
		} else if delay == ctx.MaxDelayTaps-1 && e.State == eye.Inside {
			e.End = delay + 1
			e.State = eye.After
		}
		ctx.Ctl.WriteDM.Inc(channel, module, ctx.DieWidth)
	}
	m.flush()
	if e.State != eye.After {
		return fmt.Errorf("%w: DM channel %c module %d", ErrNoWindow,
			'A'+channel, module)
	}

	middle := (e.Start + e.End) / 2
	ctx.logf(0, "DM eye %d:%d center %d", e.Start, e.End, middle)
	ctx.Ctl.WriteDM.Set(channel, module, ctx.DieWidth, middle)
	return nil
}

// moduleWriteScan runs the full write data-eye procedure for one
// module: Vref sweep, final data scan at the chosen Vref, and a DM
// scan when the mode register says the mask is enabled and the die is
// wide enough to carry one.
func (ctx *Context) moduleWriteScan(channel, rank, module, strobeCycle int) error {
	data := ctx.Ctl.Data
	data.MRR(channel, rank, mrDM)
	mr5 := data.RecoverMRRValue(channel, module, ctx.DieWidth)
	ctx.logf(1, "module %d MR5 %#x", module, mr5)

	data.MRW(channel, rank, module, mrDM, mr5&0xDF) // mask off for DQ scan

	ctx.Ctl.WriteDQ.Reset(channel, module, ctx.DieWidth)
	ctx.Ctl.WriteDQOut.Reset(channel, module, ctx.DieWidth)
	best := ctx.dqVrefScan(channel, rank, module, strobeCycle)
	if best == -1 {
		return ctx.stage(fmt.Errorf("%w: write Vref channel %c module %d",
			ErrNoWindow, 'A'+channel, module))
	}

	ctx.Ctl.WriteDQ.Reset(channel, module, ctx.DieWidth)
	ctx.Ctl.WriteDQOut.Reset(channel, module, ctx.DieWidth)
	e := ctx.writeDataScan(channel, rank, module, strobeCycle, true)
	center := (e.Start + e.End) / 2
	centerCycle := center / ctx.MaxDelayTaps
	centerDelay := center % ctx.MaxDelayTaps
	ctx.logf(0, "module %d write eye width %d center cycle %d delay %d",
		module, e.End-e.Start, centerCycle, centerDelay)

	ctx.Ctl.WriteDQ.Reset(channel, module, ctx.DieWidth)
	ctx.Ctl.WriteDQOut.Reset(channel, module, ctx.DieWidth)
	if e.State == eye.After {
		ctx.Ctl.WriteDQ.Set(channel, module, ctx.DieWidth,
			centerCycle)
		ctx.Ctl.WriteDQOut.Set(channel, module, ctx.DieWidth,
			centerDelay)
	}

	if mr5&0x20 != 0 && ctx.DieWidth > 4 {
		return ctx.dmScan(channel, rank, module, mr5)
	}
	return nil
}

// WriteTraining levels each module's write strobe and then trains the
// write data eye with a Vref sweep.
func (ctx *Context) WriteTraining() error {
	strobeCycle := make([]int, ctx.Modules)

	for channel := 0; channel < ctx.Channels; channel++ {
		ctx.logf(0, "subchannel %c write leveling", 'A'+channel)
		for rank := 0; rank < ctx.Ranks; rank++ {
			ctx.enterWLTM(channel, rank)
			var levelErr error
			for module := 0; module < ctx.Modules; module++ {
				strobeCycle[module] = ctx.writeLeveling(
					channel, rank, module)
				if strobeCycle[module] == eye.Unset {
					levelErr = fmt.Errorf(
						"%w: leveling channel %c rank %d module %d",
						ErrNoWindow, 'A'+channel,
						rank, module)
					break
				}
			}
			ctx.exitWLTM(channel, rank)
			if err := ctx.stage(levelErr); err != nil {
				return err
			}

			ctx.logf(0, "DQ write training")
			for module := 0; module < ctx.Modules; module++ {
				err := ctx.moduleWriteScan(channel, rank,
					module, strobeCycle[module])
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}
