// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

import (
	"fmt"
	"os"
	"syscall"
	"time"
	"unsafe"
)

// Build-time PHY parameters. These mirror the controller the board was
// generated with; training reads them through Params().
const (
	CSRBase = 0xf0010000
	CSRSize = 0x10000

	MaxDelayTaps       = 32
	MaxReadCycleDelay  = 64
	MaxWriteCycleDelay = 64
	DQDQSRatio         = 8
	ChannelDataBits    = 32
	CWL                = 22
	MinWrLatency       = 2
)

// PHY register file offsets, one block per subchannel.
const (
	channelStride = 0x800

	regSel     = 0x000 // rank/module/line selector
	regCSDly   = 0x004 // bit0 rst, bit1 inc
	regCADly   = 0x008
	regCKDly   = 0x00c
	regRdCyc   = 0x010
	regRdDQ    = 0x014
	regWrDQS   = 0x018
	regWrDQSO  = 0x01c
	regWrDQ    = 0x020
	regWrDQO   = 0x024
	regWrDM    = 0x028
	regCSTrain = 0x02c // bit0 enter, bit1 QCS variant
	regCATrain = 0x030
	regCSRead  = 0x034 // per-module CS sample bitmask
	regCARead  = 0x038 // per-line CA sample
	regCmd     = 0x03c // command strobes
	regMRSel   = 0x040 // mode register number | rank<<8 | module<<16
	regMRWData = 0x044
	regMRRData = 0x048 // captured MRR burst, one word per module
	regPreamb  = 0x04c
	regPhase   = 0x050 // phase selector
	regWrData  = 0x054
	regRdData  = 0x058
	regWLevel  = 0x05c // bit0 enter, bit1 response
	regFIFOCtl = 0x060
	regInit    = 0x064 // global init strobes (block 0 only)
	regMode    = 0x068 // bit0 rdimm, bit1 2N status, bit2 sw control
	regEnum    = 0x06c
	regRemap   = 0x070
	regAddr    = 0x074 // bank<<24 | row, for addressed debug access
	regCol     = 0x078
)

// Command strobe bits for regCmd.
const (
	cmdMRW = 1 << iota
	cmdMRR
	cmdMPC
	cmdWrite
	cmdRead
	cmdWriteByte
	cmdNoMPC
	cmdNOP
	cmdForceSingle
	cmdAddressed
)

const (
	dlyRst = 1 << 0
	dlyInc = 1 << 1
)

const settle = 10 * time.Microsecond

// CSR is a /dev/mem mapping of the PHY register file.
type CSR struct {
	f   *os.File
	mem []byte
}

func OpenCSR(base int64, size int) (*CSR, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	mem, err := syscall.Mmap(int(f.Fd()), base, size,
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap PHY CSRs: %v", err)
	}
	return &CSR{f: f, mem: mem}, nil
}

func (c *CSR) Close() error {
	err := syscall.Munmap(c.mem)
	if e := c.f.Close(); err == nil {
		err = e
	}
	return err
}

func (c *CSR) rd32(off uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(&c.mem[off]))
}

func (c *CSR) wr32(off uintptr, v uint32) {
	*(*uint32)(unsafe.Pointer(&c.mem[off])) = v
}

func (c *CSR) channel(ch int, reg uintptr) uintptr {
	return uintptr(ch)*channelStride + reg
}

func (c *CSR) pulse(ch int, reg uintptr, bits uint32) {
	c.wr32(c.channel(ch, reg), bits)
	c.wr32(c.channel(ch, reg), 0)
}

func (c *CSR) selectTarget(ch, rank, sub int) {
	c.wr32(c.channel(ch, regSel), uint32(rank)|uint32(sub)<<8)
}

// Open maps the PHY register file and returns a Controller wired to it.
func Open() (*Controller, *CSR, error) {
	csr, err := OpenCSR(CSRBase, CSRSize)
	if err != nil {
		return nil, nil, err
	}
	ctl := &Controller{
		CS:          &hwCS{csr},
		CA:          &hwCA{csr},
		CK:          &hwCK{csr},
		ReadCycle:   &hwDelayLine{csr, regRdCyc},
		ReadDQ:      &hwDelayLine{csr, regRdDQ},
		WriteDQS:    &hwDelayLine{csr, regWrDQS},
		WriteDQSOut: &hwDelayLine{csr, regWrDQSO},
		WriteDQ:     &hwDelayLine{csr, regWrDQ},
		WriteDQOut:  &hwDelayLine{csr, regWrDQO},
		WriteDM:     &hwDelayLine{csr, regWrDM},
		Data:        &hwData{csr},
		Seq:         &hwSeq{csr},
	}
	return ctl, csr, nil
}

func (c *CSR) address(ch, rank, bank, row, col int) {
	c.selectTarget(ch, rank, 0)
	c.wr32(c.channel(ch, regAddr), uint32(bank)<<24|uint32(row))
	c.wr32(c.channel(ch, regCol), uint32(col))
}

// DebugWrite issues one addressed write burst from the staged phase data.
// Diagnostic use only; the data path must already be trained.
func (c *CSR) DebugWrite(ch, rank, bank, row, col int, data [8]uint16) {
	c.address(ch, rank, bank, row, col)
	for phase, v := range data {
		c.wr32(c.channel(ch, regPhase), uint32(phase))
		c.wr32(c.channel(ch, regWrData), uint32(v))
	}
	c.pulse(ch, regCmd, cmdWrite|cmdAddressed)
	time.Sleep(settle)
}

// DebugRead issues one addressed read burst and returns the captured
// phase data.
func (c *CSR) DebugRead(ch, rank, bank, row, col int) (data [8]uint16) {
	c.address(ch, rank, bank, row, col)
	c.pulse(ch, regCmd, cmdRead|cmdAddressed)
	time.Sleep(settle)
	for phase := range data {
		c.wr32(c.channel(ch, regPhase), uint32(phase))
		data[phase] = uint16(c.rd32(c.channel(ch, regRdData)))
	}
	return
}

type hwCS struct {
	csr *CSR
}

func (h *hwCS) EnterTrainingMode(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.wr32(h.csr.channel(ch, regCSTrain), 1)
	time.Sleep(settle)
}

func (h *hwCS) ExitTrainingMode(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.wr32(h.csr.channel(ch, regCSTrain), 0)
	time.Sleep(settle)
}

func (h *hwCS) Check(ch, rank int, shift bool, modules, width int) uint32 {
	h.csr.selectTarget(ch, rank, 0)
	pattern := uint32(0x5555)
	if shift {
		pattern = 0xaaaa
	}
	h.csr.wr32(h.csr.channel(ch, regCSRead), pattern)
	time.Sleep(settle)
	mask := h.csr.rd32(h.csr.channel(ch, regCSRead))
	return mask & (1<<uint(modules) - 1)
}

func (h *hwCS) ResetDelay(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.pulse(ch, regCSDly, dlyRst)
}

func (h *hwCS) IncDelay(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.pulse(ch, regCSDly, dlyInc)
}

func (h *hwCS) SetDelay(ch, rank, taps int) {
	h.ResetDelay(ch, rank)
	for i := 0; i < taps; i++ {
		h.IncDelay(ch, rank)
	}
}

// EnterQCSTrainingMode and QCSCheck are the Rambus RCD variants reached
// through the RambusCS wrapper.
func (h *hwCS) EnterQCSTrainingMode(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.wr32(h.csr.channel(ch, regCSTrain), 1|2)
	time.Sleep(settle)
}

func (h *hwCS) QCSCheck(ch, rank int, shift bool, modules, width int) uint32 {
	h.csr.selectTarget(ch, rank, 0)
	pattern := uint32(0x5555) | 1<<16
	if shift {
		pattern = 0xaaaa | 1<<16
	}
	h.csr.wr32(h.csr.channel(ch, regCSRead), pattern)
	time.Sleep(settle)
	mask := h.csr.rd32(h.csr.channel(ch, regCSRead))
	return mask & (1<<uint(modules) - 1)
}

type hwCA struct {
	csr *CSR
}

func (h *hwCA) EnterTrainingMode(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.wr32(h.csr.channel(ch, regCATrain), 1)
	time.Sleep(settle)
}

func (h *hwCA) ExitTrainingMode(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.wr32(h.csr.channel(ch, regCATrain), 0)
	time.Sleep(settle)
}

func (h *hwCA) check(ch, rank, line int, shiftBack bool, mode uint32) bool {
	h.csr.selectTarget(ch, rank, line)
	probe := mode
	if shiftBack {
		probe |= 1 << 8
	}
	h.csr.wr32(h.csr.channel(ch, regCARead), probe)
	time.Sleep(settle)
	return h.csr.rd32(h.csr.channel(ch, regCARead))&1 != 0
}

func (h *hwCA) Check(ch, rank, line int, shiftBack bool) bool {
	return h.check(ch, rank, line, shiftBack, 0)
}

// MontageCheck and SDRCheck are the vendor variants reached through the
// MontageCA and SDRCA wrappers.
func (h *hwCA) MontageCheck(ch, rank, line int, shiftBack bool) bool {
	return h.check(ch, rank, line, shiftBack, 1<<9)
}

func (h *hwCA) SDRCheck(ch, rank, line int, shiftBack bool) bool {
	return h.check(ch, rank, line, shiftBack, 1<<10)
}

func (h *hwCA) HasLine13(ch, rank int) bool {
	return h.check(ch, rank, 13, false, 1<<11)
}

func (h *hwCA) ResetDelay(ch, rank, line int) {
	h.csr.selectTarget(ch, rank, line)
	h.csr.pulse(ch, regCADly, dlyRst)
}

func (h *hwCA) IncDelay(ch, rank, line int) {
	h.csr.selectTarget(ch, rank, line)
	h.csr.pulse(ch, regCADly, dlyInc)
}

func (h *hwCA) SetDelay(ch, rank, line, taps int) {
	h.ResetDelay(ch, rank, line)
	for i := 0; i < taps; i++ {
		h.IncDelay(ch, rank, line)
	}
}

type hwCK struct {
	csr *CSR
}

func (h *hwCK) ResetDelay(ch int) { h.csr.pulse(ch, regCKDly, dlyRst) }
func (h *hwCK) IncDelay(ch int)   { h.csr.pulse(ch, regCKDly, dlyInc) }
func (h *hwCK) SetDelay(ch, taps int) {
	h.ResetDelay(ch)
	for i := 0; i < taps; i++ {
		h.IncDelay(ch)
	}
}

type hwDelayLine struct {
	csr *CSR
	reg uintptr
}

func (h *hwDelayLine) Reset(ch, module, width int) {
	h.csr.selectTarget(ch, 0, module)
	h.csr.pulse(ch, h.reg, dlyRst)
}

func (h *hwDelayLine) Inc(ch, module, width int) {
	h.csr.selectTarget(ch, 0, module)
	h.csr.pulse(ch, h.reg, dlyInc)
}

func (h *hwDelayLine) Set(ch, module, width, taps int) {
	h.Reset(ch, module, width)
	for i := 0; i < taps; i++ {
		h.Inc(ch, module, width)
	}
}

type hwData struct {
	csr *CSR
}

func (h *hwData) mrSelect(ch, rank, module, reg int) {
	sel := uint32(reg) | uint32(rank)<<8
	if module == Broadcast {
		sel |= 0xff << 16
	} else {
		sel |= uint32(module) << 16
	}
	h.csr.wr32(h.csr.channel(ch, regMRSel), sel)
}

func (h *hwData) MRW(ch, rank, module, reg int, value uint8) {
	h.mrSelect(ch, rank, module, reg)
	h.csr.wr32(h.csr.channel(ch, regMRWData), uint32(value))
	h.csr.pulse(ch, regCmd, cmdMRW)
	time.Sleep(settle)
}

func (h *hwData) MRWNoMPC(ch, rank, reg int, value uint8) {
	h.mrSelect(ch, rank, Broadcast, reg)
	h.csr.wr32(h.csr.channel(ch, regMRWData), uint32(value))
	h.csr.pulse(ch, regCmd, cmdMRW|cmdNoMPC)
	time.Sleep(settle)
}

func (h *hwData) MRR(ch, rank, reg int) {
	h.mrSelect(ch, rank, Broadcast, reg)
	h.csr.pulse(ch, regCmd, cmdMRR)
	time.Sleep(settle)
}

func (h *hwData) RecoverMRRValue(ch, module, width int) uint8 {
	h.csr.selectTarget(ch, 0, module)
	return uint8(h.csr.rd32(h.csr.channel(ch, regMRRData)))
}

func (h *hwData) MPC(ch, rank, op int, value uint8) {
	h.mrSelect(ch, rank, Broadcast, op)
	h.csr.wr32(h.csr.channel(ch, regMRWData), uint32(value))
	h.csr.pulse(ch, regCmd, cmdMPC)
	time.Sleep(settle)
}

// captured returns the MRR burst for one module: 16 UI of the selected DQ
// lines packed LSB first.
func (h *hwData) captured(ch, module int) uint32 {
	h.csr.selectTarget(ch, 0, module)
	return h.csr.rd32(h.csr.channel(ch, regMRRData))
}

func (h *hwData) CompareSerial(ch, rank, module, width int, pattern uint16, invert uint8) bool {
	burst := h.captured(ch, module)
	want := uint32(pattern) ^ (uint32(invert)<<8 | uint32(invert))
	return burst&0xffff == want&0xffff
}

func (h *hwData) CompareLFSR(ch, rank, module, width int, seed0, seed1, invertL, invertU uint8) bool {
	burst := h.captured(ch, module)
	want := uint32(seed0^invertL) | uint32(seed1^invertU)<<8
	return burst&0xffff == want&0xffff
}

func (h *hwData) CapturedPreamble(ch, module, width int) int {
	h.csr.selectTarget(ch, 0, module)
	return int(h.csr.rd32(h.csr.channel(ch, regPreamb)) & 0xf)
}

func (h *hwData) SetDataPhase(ch, module, width, phase int, data uint16) {
	h.csr.selectTarget(ch, 0, module)
	h.csr.wr32(h.csr.channel(ch, regPhase), uint32(phase))
	h.csr.wr32(h.csr.channel(ch, regWrData), uint32(data))
}

func (h *hwData) DataPhase(ch, module, width, phase int) uint16 {
	h.csr.selectTarget(ch, 0, module)
	h.csr.wr32(h.csr.channel(ch, regPhase), uint32(phase))
	return uint16(h.csr.rd32(h.csr.channel(ch, regRdData)))
}

func (h *hwData) Write(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.pulse(ch, regCmd, cmdWrite)
	time.Sleep(settle)
}

func (h *hwData) Read(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.pulse(ch, regCmd, cmdRead)
	time.Sleep(settle)
}

func (h *hwData) WriteByte(ch, rank, module, byte int) {
	h.csr.selectTarget(ch, rank, module)
	h.csr.wr32(h.csr.channel(ch, regPhase), uint32(byte)<<8)
	h.csr.pulse(ch, regCmd, cmdWriteByte)
	time.Sleep(settle)
}

func (h *hwData) WriteLevelingCheck(ch, rank, module, width int) bool {
	h.csr.selectTarget(ch, rank, module)
	h.csr.pulse(ch, regCmd, cmdWrite)
	time.Sleep(settle)
	return h.csr.rd32(h.csr.channel(ch, regWLevel))&2 != 0
}

func (h *hwData) EnterWriteLeveling(ch int) {
	h.csr.wr32(h.csr.channel(ch, regWLevel), 1)
	time.Sleep(settle)
}

func (h *hwData) ExitWriteLeveling(ch int) {
	h.csr.wr32(h.csr.channel(ch, regWLevel), 0)
	time.Sleep(settle)
}

func (h *hwData) ClearFIFOs(ch int) {
	h.csr.pulse(ch, regFIFOCtl, 1)
}

type hwSeq struct {
	csr *CSR
}

// Global init strobes, written through subchannel 0's block.
const (
	initEnable = 1 << iota
	initReset
	initStart
	initMRS
	init1N
	init2N
	initDFI2NOff
)

func (h *hwSeq) strobe(bits uint32, ranks int) {
	h.csr.wr32(regInit, bits|uint32(ranks)<<16)
	h.csr.wr32(regInit, 0)
	time.Sleep(time.Millisecond)
}

func (h *hwSeq) EnablePHY() { h.strobe(initEnable, 0) }

func (h *hwSeq) SetRDIMMMode(enable bool) {
	mode := h.csr.rd32(regMode) &^ 1
	if enable {
		mode |= 1
	}
	h.csr.wr32(regMode, mode)
}

func (h *hwSeq) SoftwareControl(enable bool) {
	mode := h.csr.rd32(regMode) &^ 4
	if enable {
		mode |= 4
	}
	h.csr.wr32(regMode, mode)
	time.Sleep(settle)
}

func (h *hwSeq) ResetAllDelays(channels, ranks, caCount, modules, width int) {
	for ch := 0; ch < channels; ch++ {
		for rank := 0; rank < ranks; rank++ {
			h.csr.selectTarget(ch, rank, 0)
			h.csr.pulse(ch, regCSDly, dlyRst)
		}
		for line := 0; line < caCount; line++ {
			h.csr.selectTarget(ch, 0, line)
			h.csr.pulse(ch, regCADly, dlyRst)
		}
		h.csr.pulse(ch, regCKDly, dlyRst)
		for module := 0; module < modules; module++ {
			h.csr.selectTarget(ch, 0, module)
			for _, reg := range []uintptr{regRdCyc, regRdDQ,
				regWrDQS, regWrDQSO, regWrDQ, regWrDQO,
				regWrDM} {
				h.csr.pulse(ch, reg, dlyRst)
			}
		}
	}
}

func (h *hwSeq) ResetSequence(ranks int)       { h.strobe(initReset, ranks) }
func (h *hwSeq) StartSequence(ranks int)       { h.strobe(initStart, ranks) }
func (h *hwSeq) ModeRegisterSequence(rank int) { h.strobe(initMRS, rank+1) }
func (h *hwSeq) InitSequence1N(ranks int)      { h.strobe(init1N, ranks) }
func (h *hwSeq) InitSequence2N(ranks int)      { h.strobe(init2N, ranks) }
func (h *hwSeq) DisableDFI2NMode()             { h.strobe(initDFI2NOff, 0) }

func (h *hwSeq) Disable2NMode(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.pulse(ch, regCmd, cmdMRW|cmdNoMPC)
	time.Sleep(settle)
}

func (h *hwSeq) In2NMode() bool {
	return h.csr.rd32(regMode)&2 != 0
}

func (h *hwSeq) PrepNOP(ch, rank int) {
	h.csr.selectTarget(ch, rank, 0)
	h.csr.wr32(h.csr.channel(ch, regCmd), cmdNOP)
}

func (h *hwSeq) ForceIssueSingle() {
	h.csr.wr32(regCmd, cmdForceSingle)
	h.csr.wr32(regCmd, 0)
	time.Sleep(settle)
}

func (h *hwSeq) EnterCAPass(ch int) {
	h.csr.wr32(h.csr.channel(ch, regMode), h.csr.rd32(h.csr.channel(ch, regMode))|8)
}

func (h *hwSeq) SelectCAPass(rank int) {
	h.csr.wr32(regMode, h.csr.rd32(regMode)&^(0xf<<8)|uint32(rank)<<8)
}

func (h *hwSeq) ExitCAPass(ch int) {
	h.csr.wr32(h.csr.channel(ch, regMode), h.csr.rd32(h.csr.channel(ch, regMode))&^8)
}

func (h *hwSeq) EnumerateSetup(ch, rank, module, width int) {
	h.csr.selectTarget(ch, rank, module)
	h.csr.wr32(h.csr.channel(ch, regEnum), uint32(module)|1<<8)
	time.Sleep(settle)
}

func (h *hwSeq) EnumerateCheck(ch, rank, module, width int) bool {
	h.csr.selectTarget(ch, rank, 0)
	sel := uint32(2) << 8
	if module == Broadcast {
		sel |= 0xff
	} else {
		sel |= uint32(module)
	}
	h.csr.wr32(h.csr.channel(ch, regEnum), sel)
	time.Sleep(settle)
	return h.csr.rd32(h.csr.channel(ch, regEnum))&1<<16 != 0
}

func (h *hwSeq) DQRemapping(ch, modules, width int) {
	h.csr.wr32(h.csr.channel(ch, regRemap), uint32(modules)|uint32(width)<<8)
	time.Sleep(settle)
}
