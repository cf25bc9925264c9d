// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package training calibrates the delay relationship between the memory
// controller PHY and DDR5 devices: chip-select, command/address and
// clock delays first, then read and write data paths. Every stage is a
// closed-loop search over delay taps driven by live pass/fail probes
// through the phy capability interfaces.
package training

import (
	"fmt"
	"strings"

	"github.com/platinasystems/log"
	"github.com/platinasystems/sdramctl/internal/eye"
	"github.com/platinasystems/sdramctl/internal/phy"
)

// Type names the pair of agents being trained against each other.
type Type int

const (
	HostToDRAM Type = iota
	HostToRCD
	RCDToDRAM
)

// Config is resolved once at Context construction. KeepGoing selects
// the diagnostic continue-on-error policy; it must stay false on a
// production boot path. Verbosity 0 reports stage results only, 1 adds
// scan maps, 2 adds per-probe detail, 3 register-level dumps.
type Config struct {
	Verbosity int
	KeepGoing bool
}

// Context is the state of one training run. It is created per flow
// invocation, mutated throughout and discarded at flow end.
type Context struct {
	Channels     int
	Ranks        int
	Modules      int
	DieWidth     int
	MaxDelayTaps int
	Rate         phy.Rate
	Type         Type
	RDIMM        bool
	LineCount    int // CA lines: 7 on the RCD bus, 13 or 14 at DRAM

	Manufacturer uint16
	DeviceType   uint8
	DeviceRev    uint8

	// CS and CA are the only quirk-substitutable capabilities; they
	// start as the controller's stock channels and may be wrapped
	// once at RCD identification time.
	CS  phy.CSChannel
	CA  phy.CAChannel
	CK  phy.CKChannel
	Ctl *phy.Controller

	// Raw eye edges ([2]int right,left) and applied midpoints, per
	// subchannel and rank (CS) or address line (CA).
	CSDelays [][][2]int
	CSFinal  [][]int
	CSCoarse [][]int
	CSInvert []bool
	CADelays [][][2]int
	CAFinal  [][]int

	Succeeded bool

	// MR2 bits carried through every MR2 write once set.
	UseInternalWriteTiming uint8 // OP[7]
	SingleCycleMPC         uint8 // OP[4]
	Enumerated             bool

	Config Config

	scan *eye.Scanner

	// CS scan filter state, valid for one scan pass.
	modulesWithoutShift uint32
	modulesSeen         uint32
	seenWorking         bool
}

// New builds a Context over the controller for one training type. CA
// line count defaults to the RCD's 7-line DCA bus for host-to-RCD
// training and to the full 14 otherwise; DRAM training narrows it to
// 13 when line 13 probes absent.
func New(ctl *phy.Controller, typ Type, channels, ranks, modules, dieWidth, taps int, rate phy.Rate, cfg Config) *Context {
	lines := 14
	if typ == HostToRCD {
		lines = 7
	}
	ctx := &Context{
		Channels:     channels,
		Ranks:        ranks,
		Modules:      modules,
		DieWidth:     dieWidth,
		MaxDelayTaps: taps,
		Rate:         rate,
		Type:         typ,
		RDIMM:        typ != HostToDRAM,
		LineCount:    lines,
		CS:           ctl.CS,
		CA:           ctl.CA,
		CK:           ctl.CK,
		Ctl:          ctl,
		Succeeded:    true,
		Config:       cfg,
		scan:         eye.NewScanner(taps),
	}
	ctx.CSDelays = make([][][2]int, channels)
	ctx.CSFinal = make([][]int, channels)
	ctx.CSCoarse = make([][]int, channels)
	ctx.CSInvert = make([]bool, channels)
	ctx.CADelays = make([][][2]int, channels)
	ctx.CAFinal = make([][]int, channels)
	for ch := 0; ch < channels; ch++ {
		ctx.CSDelays[ch] = make([][2]int, ranks)
		ctx.CSFinal[ch] = make([]int, ranks)
		ctx.CSCoarse[ch] = make([]int, ranks)
		ctx.CADelays[ch] = make([][2]int, 14)
		ctx.CAFinal[ch] = make([]int, 14)
	}
	return ctx
}

// mr2 composes an MR2 value from the training bit and the carried
// OP[7]/OP[4] settings.
func (ctx *Context) mr2(train uint8) uint8 {
	return train | ctx.UseInternalWriteTiming | ctx.SingleCycleMPC
}

func (ctx *Context) logf(level int, format string, args ...interface{}) {
	if ctx.Config.Verbosity < level {
		return
	}
	priority := "info"
	if level > 1 {
		priority = "debug"
	}
	log.Print("sdram", priority, fmt.Sprintf(format, args...))
}

// scanmap buffers per-tap pass/fail digits so a whole sweep lands on
// one log line, mirroring the serial console maps the delays were
// historically debugged with.
type scanmap struct {
	strings.Builder
	ctx   *Context
	level int
}

func (ctx *Context) newScanmap(level int, prefix string) *scanmap {
	m := &scanmap{ctx: ctx, level: level}
	m.WriteString(prefix)
	return m
}

func (m *scanmap) mark(works bool) {
	if works {
		m.WriteByte('1')
	} else {
		m.WriteByte('0')
	}
}

func (m *scanmap) flush() {
	if m.ctx.Config.Verbosity >= m.level && m.Len() > 0 {
		log.Print("sdram", "info", m.String())
	}
	m.Reset()
}
