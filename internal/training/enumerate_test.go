// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"errors"
	"testing"
)

func TestDRAMEnumerate(t *testing.T) {
	ctx, _, seq := simContext(HostToDRAM,
		[][2]int{{10, 22}, {8, 20}}, [2]int{10, 20}, 1, 1, 2)

	if err := ctx.DRAMEnumerate(0); err != nil {
		t.Fatal(err)
	}
	if !ctx.Enumerated {
		t.Error("wrong: not marked enumerated")
	}
	if seq.enumSetups != 2 {
		t.Error("wrong setup count:", seq.enumSetups)
	}
	// baseline probe plus one per module
	if seq.enumChecks != 3 {
		t.Error("wrong check count:", seq.enumChecks)
	}
}

func TestEnumerateTopology(t *testing.T) {
	ctx, _, _ := simContext(HostToDRAM,
		[][2]int{{10, 22}}, [2]int{10, 20}, 1, 1, 1)
	ctx.Modules = 16

	err := ctx.DRAMEnumerate(0)
	if !errors.Is(err, ErrTopology) {
		t.Error("wrong error:", err)
	}
	if ctx.Enumerated {
		t.Error("wrong: marked enumerated after failure")
	}
}

func TestEnumerateCheckFailure(t *testing.T) {
	ctx, _, seq := simContext(HostToDRAM,
		[][2]int{{10, 22}, {8, 20}}, [2]int{10, 20}, 1, 1, 2)
	seq.enumAnswers = false

	err := ctx.DRAMEnumerate(0)
	if !errors.Is(err, ErrTopology) {
		t.Error("wrong error:", err)
	}
}
