// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"errors"
	"testing"
)

func TestCATrainingNoWindow(t *testing.T) {
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}, {8, 20}}, [2]int{0, 0}, 1, 1, 2)
	ctx.caSetupArray()
	ctx.LineCount = 13

	ca := ctx.CA.(*simCA)
	ca.checks = 0
	err := ctx.caTraining(0)
	if !errors.Is(err, ErrNoWindow) {
		t.Fatal("wrong error:", err)
	}
	// a closed line 0 aborts before the other 12 lines are swept
	if ca.checks != 2*ctx.MaxDelayTaps {
		t.Error("wrong check count:", ca.checks)
	}
}

func TestCSCATraining(t *testing.T) {
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}, {8, 20}}, [2]int{10, 20}, 1, 1, 2)

	if err := ctx.CSCATraining(); err != nil {
		t.Fatal(err)
	}
	if !ctx.Succeeded {
		t.Error("wrong: success not latched")
	}
	// CA13 probes absent in the sim
	if ctx.LineCount != 13 {
		t.Error("wrong line count:", ctx.LineCount)
	}

	// all midpoints are 15, so the clock moves by one period minus
	// the smallest midpoint and the finals land at zero
	if d := ctx.CK.(*simCK).delay[0]; d != 17 {
		t.Error("wrong clock delay:", d)
	}
	if ctx.CSFinal[0][0] != 0 {
		t.Error("wrong CS final:", ctx.CSFinal[0][0])
	}
	for line := 0; line < ctx.LineCount; line++ {
		if ctx.CAFinal[0][line] != 0 {
			t.Error("wrong CA final:", line, ctx.CAFinal[0][line])
		}
		if ctx.CAFinal[0][line] < 0 {
			t.Error("wrong: negative CA final on line", line)
		}
	}
}

func TestCKVerificationFailure(t *testing.T) {
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}, {8, 20}}, [2]int{10, 20}, 1, 1, 2)

	if err := ctx.CSCATraining(); err != nil {
		t.Fatal(err)
	}

	// close every window and demand the rescan reproduce the eyes
	ctx.CS.(*simCS).windows = [][2]int{{0, 0}, {0, 0}}
	err := ctx.csCaRescan(0)
	if !errors.Is(err, ErrVerification) {
		t.Error("wrong error:", err)
	}
}

func TestStagePolicy(t *testing.T) {
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}}, [2]int{10, 20}, 1, 1, 1)

	if err := ctx.stage(ErrNoWindow); !errors.Is(err, ErrNoWindow) {
		t.Error("wrong error:", err)
	}

	ctx.Config.KeepGoing = true
	if err := ctx.stage(ErrNoWindow); err != nil {
		t.Error("wrong: keep-going returned", err)
	}
	if ctx.Succeeded {
		t.Error("wrong: failure not latched")
	}
}
