// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"errors"
	"testing"

	"github.com/platinasystems/sdramctl/internal/phy"
)

func simContext(typ Type, csWindows [][2]int, caWindow [2]int, channels, ranks, modules int) (*Context, *simData, *simSeq) {
	ctl, data, seq := simController(csWindows, caWindow, false, modules,
		phy.MaxDelayTaps)
	ctx := New(ctl, typ, channels, ranks, modules, 8, phy.MaxDelayTaps,
		phy.DDR, Config{})
	return ctx, data, seq
}

func TestCSTraining(t *testing.T) {
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}, {8, 20}}, [2]int{10, 20}, 1, 1, 2)
	ctx.caSetupArray()

	if err := ctx.csTraining(0); err != nil {
		t.Fatal(err)
	}
	// the modules' windows intersect in [10,20)
	if ctx.CSDelays[0][0] != [2]int{10, 20} {
		t.Error("wrong eye:", ctx.CSDelays[0][0])
	}
	if ctx.CSCoarse[0][0] != 15 {
		t.Error("wrong coarse delay:", ctx.CSCoarse[0][0])
	}
}

func TestCSTrainingNoWindow(t *testing.T) {
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{0, 0}, {0, 0}}, [2]int{10, 20}, 1, 1, 2)
	ctx.caSetupArray()

	err := ctx.csTraining(0)
	if !errors.Is(err, ErrNoWindow) {
		t.Error("wrong error:", err)
	}
}

func TestCSConflictingModulesRejected(t *testing.T) {
	// disjoint windows never intersect, so no tap has all modules
	// answering and the rank has no eye
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{2, 8}, {20, 28}}, [2]int{10, 20}, 1, 1, 2)
	ctx.caSetupArray()

	err := ctx.csTraining(0)
	if !errors.Is(err, ErrNoWindow) {
		t.Error("wrong error:", err)
	}
}

func TestCSBothPolarityAnswerPoisonsTaps(t *testing.T) {
	// module 0 is wired inverted and answers only the opposite
	// probe; module 1 answers under both probe polarities at the
	// same taps, a false positive. The double answer must be
	// discarded, which leaves module 0 unaccounted for and fails
	// every tap of the scan.
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{10, 20}, {10, 20}}, [2]int{10, 20}, 1, 1, 2)
	cs := ctx.CS.(*simCS)
	cs.inverted = 1 << 0
	cs.both = 1 << 1

	scanOnce := func() {
		ctx.scan.Clear()
		ctx.csResetFilters()
		ctx.seenWorking = false
		ctx.CS.ResetDelay(0, 0)
		m := ctx.newScanmap(1, "")
		ctx.csScanSingle(0, 0, false, m)
	}

	scanOnce()
	if _, _, ok := ctx.scan.FindWindow(ctx.MaxDelayTaps); ok {
		t.Error("wrong: window found despite double-polarity answers")
	}

	// control: with module 1 answering one polarity only, module 0's
	// opposite answers merge in and the same taps pass
	cs.both = 0
	scanOnce()
	right, left, ok := ctx.scan.FindWindow(ctx.MaxDelayTaps)
	if !ok || right != 10 || left != 20 {
		t.Error("wrong window:", right, left, ok)
	}
}

func TestCSCrossCheckMovesEye(t *testing.T) {
	// a CA eye visible only against the previous command slot means
	// CS latched the previous clock period; training must move the
	// CS delay one full period right
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}, {8, 20}}, [2]int{10, 20}, 1, 1, 2)
	ctx.CA.(*simCA).shiftBackGood = true
	ctx.caSetupArray()

	if err := ctx.csTraining(0); err != nil {
		t.Fatal(err)
	}
	if ctx.CSDelays[0][0] != [2]int{10 + 32, 20 + 32} {
		t.Error("wrong eye:", ctx.CSDelays[0][0])
	}
	if ctx.CSCoarse[0][0] != 47 {
		t.Error("wrong coarse delay:", ctx.CSCoarse[0][0])
	}
}

func TestCSTrainingIdempotent(t *testing.T) {
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}, {8, 20}}, [2]int{10, 20}, 1, 1, 2)
	ctx.caSetupArray()

	if err := ctx.csTraining(0); err != nil {
		t.Fatal(err)
	}
	first := ctx.CSCoarse[0][0]
	if err := ctx.csTraining(0); err != nil {
		t.Fatal(err)
	}
	if ctx.CSCoarse[0][0] != first {
		t.Error("wrong:", ctx.CSCoarse[0][0], "!=", first)
	}
}
