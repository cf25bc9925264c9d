// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package phy abstracts the SDRAM controller's physical layer as capability
// interfaces. Training algorithms are written once against these interfaces;
// the CSR-mapped implementation in this package drives real hardware and the
// training package's tests substitute deterministic simulations.
package phy

// Broadcast selects all modules of a rank in mode register writes.
const Broadcast = -1

// Signaling rate of the command/address bus.
type Rate int

const (
	SDR Rate = iota
	DDR
)

// CSChannel calibrates chip-select lines. Check probes all modules at the
// current delay and returns a bitmask of modules that responded correctly
// under the given 0101/1010 shift pattern. Delay changes wrap at the delay
// line period; hardware has no decrement, so SetDelay is reset followed by
// taps increments.
type CSChannel interface {
	EnterTrainingMode(channel, rank int)
	ExitTrainingMode(channel, rank int)
	Check(channel, rank int, shift bool, modules, width int) uint32
	ResetDelay(channel, rank int)
	IncDelay(channel, rank int)
	SetDelay(channel, rank, taps int)
}

// CAChannel calibrates command/address lines one line at a time. The
// shiftBack flag selects which of the two scanned periods the probe pattern
// targets. HasLine13 probes whether the optional CA13 line is wired.
type CAChannel interface {
	EnterTrainingMode(channel, rank int)
	ExitTrainingMode(channel, rank int)
	Check(channel, rank, line int, shiftBack bool) bool
	HasLine13(channel, rank int) bool
	ResetDelay(channel, rank, line int)
	IncDelay(channel, rank, line int)
	SetDelay(channel, rank, line, taps int)
}

// CKChannel delays the command clock. There is no check; clock correctness
// is implied by the CS/CA/data eyes.
type CKChannel interface {
	ResetDelay(channel int)
	IncDelay(channel int)
	SetDelay(channel, taps int)
}

// DelayLine is a per-module delay without a check of its own: read cycle,
// read DQ, write DQS cycle, write DQS output, write DQ cycle, write DQ
// output and write DM delays. Probed indirectly through data comparisons.
type DelayLine interface {
	Reset(channel, module, width int)
	Inc(channel, module, width int)
	Set(channel, module, width, taps int)
}

// DataOps issues commands on a subchannel and moves data through the PHY
// read/write FIFOs during read and write training.
type DataOps interface {
	// Mode register access. MRW with module Broadcast addresses all
	// modules; MRWNoMPC issues the write as a direct command instead of
	// wrapping it in an MPC, needed while MPC timing is still untrained.
	MRW(channel, rank, module, reg int, value uint8)
	MRWNoMPC(channel, rank, reg int, value uint8)
	MRR(channel, rank, reg int)
	RecoverMRRValue(channel, module, width int) uint8
	MPC(channel, rank, op int, value uint8)

	// CompareSerial checks the captured MRR burst against a bit-serial
	// pattern; CompareLFSR against an LFSR sequence from the given seed
	// pair. invert masks mirror MR28/MR29/MR30 training settings.
	CompareSerial(channel, rank, module, width int, pattern uint16, invert uint8) bool
	CompareLFSR(channel, rank, module, width int, seed0, seed1, invertL, invertU uint8) bool

	// CapturedPreamble returns the read preamble bits sampled over two
	// cycles, bit-reversed by the PHY capture path.
	CapturedPreamble(channel, module, width int) int

	// Write path data movement. Phases address the PHY's per-burst
	// staging registers.
	SetDataPhase(channel, module, width, phase int, data uint16)
	DataPhase(channel, module, width, phase int) uint16
	Write(channel, rank int)
	Read(channel, rank int)
	WriteByte(channel, rank, module, byte int)

	// Write leveling support.
	WriteLevelingCheck(channel, rank, module, width int) bool
	EnterWriteLeveling(channel int)
	ExitWriteLeveling(channel int)
	ClearFIFOs(channel int)
}

// Sequencer covers whole-controller initialization and command sequencing
// outside any single signal class.
type Sequencer interface {
	EnablePHY()
	SetRDIMMMode(enable bool)
	SoftwareControl(enable bool)
	ResetAllDelays(channels, ranks, caCount, modules, width int)
	ResetSequence(ranks int)
	StartSequence(ranks int)
	ModeRegisterSequence(rank int)
	InitSequence1N(ranks int)
	InitSequence2N(ranks int)
	DisableDFI2NMode()
	Disable2NMode(channel, rank int)
	In2NMode() bool
	PrepNOP(channel, rank int)
	ForceIssueSingle()

	// CA pass-through window on the RCD, used to reach DRAM behind it.
	EnterCAPass(channel int)
	SelectCAPass(rank int)
	ExitCAPass(channel int)

	// Module enumeration: program a module's ID, then verify the module
	// answers on it. EnumerateCheck with module Broadcast checks the
	// pre-enumeration baseline.
	EnumerateSetup(channel, rank, module, width int)
	EnumerateCheck(channel, rank, module, width int) bool

	DQRemapping(channel, modules, width int)
}

// Controller aggregates one PHY's capabilities. The CS and CA fields are
// interface-typed so vendor quirk variants can be substituted once at RCD
// identification time and nowhere else.
type Controller struct {
	CS CSChannel
	CA CAChannel
	CK CKChannel

	ReadCycle   DelayLine
	ReadDQ      DelayLine
	WriteDQS    DelayLine
	WriteDQSOut DelayLine
	WriteDQ     DelayLine
	WriteDQOut  DelayLine
	WriteDM     DelayLine

	Data DataOps
	Seq  Sequencer
}
