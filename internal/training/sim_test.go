// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"github.com/platinasystems/sdramctl/internal/phy"
)

// The sim* types below model a PHY with fixed, known-good delay
// windows so the search algorithms can be checked end to end: a tap
// probes as passing exactly when the relevant delay counters sit
// inside the configured window.

type simDelay struct {
	v map[[2]int]int
}

func newSimDelay() *simDelay { return &simDelay{v: make(map[[2]int]int)} }

func (d *simDelay) Reset(channel, module, width int) {
	d.v[[2]int{channel, module}] = 0
}

func (d *simDelay) Inc(channel, module, width int) {
	d.v[[2]int{channel, module}]++
}

func (d *simDelay) Set(channel, module, width, taps int) {
	d.v[[2]int{channel, module}] = taps
}

func (d *simDelay) at(channel, module int) int {
	return d.v[[2]int{channel, module}]
}

// simCS passes a module when the CS delay sits inside that module's
// window and the probe polarity matches the module's wiring: by
// default only the primary (unshifted) probe answers, modules in the
// inverted mask answer only the shifted probe, and modules in the both
// mask answer either probe, the way a floating input would.
type simCS struct {
	delay    map[[2]int]int
	windows  [][2]int
	inverted uint32
	both     uint32
	inTM     bool

	qcsEnters int
	qcsChecks int
}

func newSimCS(windows [][2]int) *simCS {
	return &simCS{delay: make(map[[2]int]int), windows: windows}
}

func (s *simCS) EnterTrainingMode(channel, rank int) { s.inTM = true }
func (s *simCS) ExitTrainingMode(channel, rank int)  { s.inTM = false }

func (s *simCS) Check(channel, rank int, shift bool, modules, width int) uint32 {
	dly := s.delay[[2]int{channel, rank}]
	var mask uint32
	for m := 0; m < modules && m < len(s.windows); m++ {
		if dly < s.windows[m][0] || dly >= s.windows[m][1] {
			continue
		}
		bit := uint32(1) << uint(m)
		if s.both&bit != 0 || shift == (s.inverted&bit != 0) {
			mask |= bit
		}
	}
	return mask
}

// The QCS variants record their use so tests can tell the Rambus
// substitution took effect; results match the stock probe.
func (s *simCS) EnterQCSTrainingMode(channel, rank int) {
	s.qcsEnters++
	s.EnterTrainingMode(channel, rank)
}

func (s *simCS) QCSCheck(channel, rank int, shift bool, modules, width int) uint32 {
	s.qcsChecks++
	return s.Check(channel, rank, shift, modules, width)
}

func (s *simCS) ResetDelay(channel, rank int) { s.delay[[2]int{channel, rank}] = 0 }
func (s *simCS) IncDelay(channel, rank int)   { s.delay[[2]int{channel, rank}]++ }

func (s *simCS) SetDelay(channel, rank, taps int) {
	s.delay[[2]int{channel, rank}] = taps
}

// simCA passes when probing the current command slot (shiftBack false)
// with the line delay inside the window; with shiftBackGood the eye
// sits in the previous command slot instead. lines13 reports whether
// CA13 is wired.
type simCA struct {
	delay         map[[3]int]int
	window        [2]int
	lines13       bool
	shiftBackGood bool
	checks        int
}

func newSimCA(window [2]int, lines13 bool) *simCA {
	return &simCA{delay: make(map[[3]int]int), window: window, lines13: lines13}
}

func (s *simCA) EnterTrainingMode(channel, rank int) {}
func (s *simCA) ExitTrainingMode(channel, rank int)  {}

func (s *simCA) Check(channel, rank, line int, shiftBack bool) bool {
	s.checks++
	if shiftBack != s.shiftBackGood {
		return false
	}
	dly := s.delay[[3]int{channel, rank, line}]
	return dly >= s.window[0] && dly < s.window[1]
}

func (s *simCA) HasLine13(channel, rank int) bool { return s.lines13 }

func (s *simCA) ResetDelay(channel, rank, line int) {
	s.delay[[3]int{channel, rank, line}] = 0
}

func (s *simCA) IncDelay(channel, rank, line int) {
	s.delay[[3]int{channel, rank, line}]++
}

func (s *simCA) SetDelay(channel, rank, line, taps int) {
	s.delay[[3]int{channel, rank, line}] = taps
}

type simCK struct {
	delay map[int]int
}

func newSimCK() *simCK { return &simCK{delay: make(map[int]int)} }

func (s *simCK) ResetDelay(channel int)     { s.delay[channel] = 0 }
func (s *simCK) IncDelay(channel int)       { s.delay[channel]++ }
func (s *simCK) SetDelay(channel, taps int) { s.delay[channel] = taps }

// simData models the data path: mode registers land in a per-module
// map, read comparisons pass inside a fixed cycle/delay window, the
// write leveling response models a strobe arrival threshold shifted by
// the internal cycle alignment, and staged write phases read back
// intact only when the write DQ delays sit in their window.
type simData struct {
	ctl *phy.Controller

	modules int
	mr      map[[2]int]uint8
	mr2     uint8
	lastMRR int
	phases  map[[2]int]uint16

	rdCycleGood int
	rdWindow    [2]int

	wlThreshold int // in dqsCycle*taps+dqsOut units
	wrCycleGood int
	wrWindow    [2]int
	taps        int
}

func newSimData(modules, taps int) *simData {
	return &simData{
		modules: modules,
		mr:      make(map[[2]int]uint8),
		phases:  make(map[[2]int]uint16),
		taps:    taps,
	}
}

func (s *simData) MRW(channel, rank, module, reg int, value uint8) {
	if reg == 2 {
		s.mr2 = value
	}
	if module == phy.Broadcast {
		for m := 0; m < s.modules; m++ {
			s.mr[[2]int{m, reg}] = value
		}
		return
	}
	s.mr[[2]int{module, reg}] = value
}

func (s *simData) MRWNoMPC(channel, rank, reg int, value uint8) {
	s.MRW(channel, rank, phy.Broadcast, reg, value)
}

func (s *simData) MRR(channel, rank, reg int) { s.lastMRR = reg }

func (s *simData) RecoverMRRValue(channel, module, width int) uint8 {
	return s.mr[[2]int{module, s.lastMRR}]
}

func (s *simData) MPC(channel, rank, op int, value uint8) {}

func (s *simData) readGood(channel, module int) bool {
	cycle := s.ctl.ReadCycle.(*simDelay).at(channel, module)
	idly := s.ctl.ReadDQ.(*simDelay).at(channel, module)
	return cycle == s.rdCycleGood &&
		idly >= s.rdWindow[0] && idly < s.rdWindow[1]
}

func (s *simData) CompareSerial(channel, rank, module, width int, pattern uint16, invert uint8) bool {
	return s.readGood(channel, module)
}

func (s *simData) CompareLFSR(channel, rank, module, width int, seed0, seed1, invertL, invertU uint8) bool {
	return s.readGood(channel, module)
}

func (s *simData) CapturedPreamble(channel, module, width int) int {
	if s.ctl.ReadCycle.(*simDelay).at(channel, module) == s.rdCycleGood {
		return 4
	}
	return 0
}

func (s *simData) writeGood(channel, module int) bool {
	cycle := s.ctl.WriteDQ.(*simDelay).at(channel, module)
	odly := s.ctl.WriteDQOut.(*simDelay).at(channel, module)
	return cycle == s.wrCycleGood &&
		odly >= s.wrWindow[0] && odly < s.wrWindow[1]
}

func (s *simData) SetDataPhase(channel, module, width, phase int, data uint16) {
	s.phases[[2]int{module, phase}] = data
}

func (s *simData) DataPhase(channel, module, width, phase int) uint16 {
	data := s.phases[[2]int{module, phase}]
	if !s.writeGood(channel, module) {
		data = ^data
	}
	return data
}

func (s *simData) Write(channel, rank int)                   {}
func (s *simData) Read(channel, rank int)                    {}
func (s *simData) WriteByte(channel, rank, module, byte int) {}

func (s *simData) WriteLevelingCheck(channel, rank, module, width int) bool {
	cycle := s.ctl.WriteDQS.(*simDelay).at(channel, module)
	odly := s.ctl.WriteDQSOut.(*simDelay).at(channel, module)
	arrival := cycle*s.taps + odly
	if s.mr2&(1<<7) != 0 {
		arrival += 8 * int(s.mr[[2]int{module, 3}])
	}
	return arrival >= s.wlThreshold
}

func (s *simData) EnterWriteLeveling(channel int) {}
func (s *simData) ExitWriteLeveling(channel int)  {}
func (s *simData) ClearFIFOs(channel int)         {}

// simSeq records sequencing calls; enumeration always answers.
type simSeq struct {
	enumSetups  int
	enumChecks  int
	initCalls   []string
	twoN        bool
	enumAnswers bool
}

func newSimSeq() *simSeq { return &simSeq{enumAnswers: true} }

func (s *simSeq) EnablePHY()           { s.initCalls = append(s.initCalls, "enable") }
func (s *simSeq) SetRDIMMMode(bool)    {}
func (s *simSeq) SoftwareControl(bool) {}

func (s *simSeq) ResetAllDelays(channels, ranks, caCount, modules, width int) {
	s.initCalls = append(s.initCalls, "reset-delays")
}

func (s *simSeq) ResetSequence(ranks int) { s.initCalls = append(s.initCalls, "reset") }
func (s *simSeq) StartSequence(ranks int) { s.initCalls = append(s.initCalls, "start") }

func (s *simSeq) ModeRegisterSequence(rank int) {
	s.initCalls = append(s.initCalls, "mrs")
}

func (s *simSeq) InitSequence1N(ranks int)        { s.initCalls = append(s.initCalls, "init-1n") }
func (s *simSeq) InitSequence2N(ranks int)        { s.initCalls = append(s.initCalls, "init-2n") }
func (s *simSeq) DisableDFI2NMode()               {}
func (s *simSeq) Disable2NMode(channel, rank int) {}
func (s *simSeq) In2NMode() bool                  { return s.twoN }
func (s *simSeq) PrepNOP(channel, rank int)       {}
func (s *simSeq) ForceIssueSingle()               {}
func (s *simSeq) EnterCAPass(channel int)         {}
func (s *simSeq) SelectCAPass(rank int)           {}
func (s *simSeq) ExitCAPass(channel int)          {}

func (s *simSeq) EnumerateSetup(channel, rank, module, width int) { s.enumSetups++ }

func (s *simSeq) EnumerateCheck(channel, rank, module, width int) bool {
	s.enumChecks++
	return s.enumAnswers
}

func (s *simSeq) DQRemapping(channel, modules, width int) {}

// simController wires a full simulated controller with the given
// pass/fail windows. The CS windows are per module; everything else is
// shared.
func simController(csWindows [][2]int, caWindow [2]int, lines13 bool, modules, taps int) (*phy.Controller, *simData, *simSeq) {
	data := newSimData(modules, taps)
	seq := newSimSeq()
	ctl := &phy.Controller{
		CS:          newSimCS(csWindows),
		CA:          newSimCA(caWindow, lines13),
		CK:          newSimCK(),
		ReadCycle:   newSimDelay(),
		ReadDQ:      newSimDelay(),
		WriteDQS:    newSimDelay(),
		WriteDQSOut: newSimDelay(),
		WriteDQ:     newSimDelay(),
		WriteDQOut:  newSimDelay(),
		WriteDM:     newSimDelay(),
		Data:        data,
		Seq:         seq,
	}
	data.ctl = ctl
	return ctl, data, seq
}
