// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"errors"
	"testing"

	"github.com/platinasystems/sdramctl/internal/eye"
)

func TestWriteLeveling(t *testing.T) {
	ctx, data, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}}, [2]int{10, 20}, 1, 1, 1)
	// strobe arrives at cycle*taps+delay = 360, shifted 8 taps per
	// internal alignment step once MR2:OP[7] is set
	data.wlThreshold = 360

	ctx.enterWLTM(0, 0)
	cycle := ctx.writeLeveling(0, 0, 0)
	ctx.exitWLTM(0, 0)

	if cycle != 11 {
		t.Fatal("wrong strobe cycle:", cycle)
	}
	if got := ctx.Ctl.WriteDQS.(*simDelay).at(0, 0); got != 11 {
		t.Error("wrong DQS cycle delay:", got)
	}
	if got := ctx.Ctl.WriteDQSOut.(*simDelay).at(0, 0); got != 24 {
		t.Error("wrong DQS output delay:", got)
	}
	// internal alignment must settle on a JEDEC-valid operand
	wica := data.mr[[2]int{0, mrWICA}]
	if wica != 3 {
		t.Error("wrong internal cycle alignment:", wica)
	}
	if wica >= 7 {
		t.Error("wrong: optional WICA operand", wica)
	}
}

func TestWriteLevelingNoResponse(t *testing.T) {
	ctx, data, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}}, [2]int{10, 20}, 1, 1, 1)
	data.wlThreshold = 65 * ctx.MaxDelayTaps

	ctx.enterWLTM(0, 0)
	cycle := ctx.writeLeveling(0, 0, 0)
	ctx.exitWLTM(0, 0)

	if cycle != eye.Unset {
		t.Error("wrong:", cycle)
	}
}

func TestModuleWriteScan(t *testing.T) {
	ctx, data, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}}, [2]int{10, 20}, 1, 1, 1)
	data.wrCycleGood = 11
	data.wrWindow = [2]int{8, 24}

	if err := ctx.moduleWriteScan(0, 0, 0, 11); err != nil {
		t.Fatal(err)
	}
	// the eye is Vref-independent, so the sweep centers the range
	if got := data.mr[[2]int{0, mrVrefDQ}]; got != 0x3c {
		t.Errorf("wrong Vref: %#x", got)
	}
	if got := ctx.Ctl.WriteDQ.(*simDelay).at(0, 0); got != 11 {
		t.Error("wrong DQ cycle delay:", got)
	}
	if got := ctx.Ctl.WriteDQOut.(*simDelay).at(0, 0); got != 16 {
		t.Error("wrong DQ output delay:", got)
	}
}

func TestModuleWriteScanNoWindow(t *testing.T) {
	ctx, data, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}}, [2]int{10, 20}, 1, 1, 1)
	data.wrCycleGood = -1

	err := ctx.moduleWriteScan(0, 0, 0, 11)
	if !errors.Is(err, ErrNoWindow) {
		t.Error("wrong error:", err)
	}
}

func TestWriteTraining(t *testing.T) {
	ctx, data, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}, {8, 20}}, [2]int{10, 20}, 1, 1, 2)
	data.wlThreshold = 360
	data.wrCycleGood = 11
	data.wrWindow = [2]int{8, 24}

	if err := ctx.WriteTraining(); err != nil {
		t.Fatal(err)
	}
	for module := 0; module < ctx.Modules; module++ {
		if got := ctx.Ctl.WriteDQS.(*simDelay).at(0, module); got != 11 {
			t.Error("wrong DQS cycle delay:", module, got)
		}
		if got := ctx.Ctl.WriteDQ.(*simDelay).at(0, module); got != 11 {
			t.Error("wrong DQ cycle delay:", module, got)
		}
		if got := ctx.Ctl.WriteDQOut.(*simDelay).at(0, module); got != 16 {
			t.Error("wrong DQ output delay:", module, got)
		}
	}
}

func TestWriteChecksRejectCorruption(t *testing.T) {
	ctx, data, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}}, [2]int{10, 20}, 1, 1, 1)
	data.wrCycleGood = 5
	data.wrWindow = [2]int{0, ctx.MaxDelayTaps}

	ctx.Ctl.WriteDQ.Set(0, 0, ctx.DieWidth, 5)
	ctx.Ctl.WriteDQOut.Set(0, 0, ctx.DieWidth, 3)
	if !ctx.writeSerialCheck(0, 0, 0) {
		t.Error("wrong: serial check failed on a good tap")
	}
	if !ctx.writeLFSRCheck(0, 0, 0) {
		t.Error("wrong: LFSR check failed on a good tap")
	}

	ctx.Ctl.WriteDQ.Set(0, 0, ctx.DieWidth, 6)
	if ctx.writeSerialCheck(0, 0, 0) {
		t.Error("wrong: serial check passed on a bad tap")
	}
	if ctx.writeLFSRCheck(0, 0, 0) {
		t.Error("wrong: LFSR check passed on a bad tap")
	}
}
