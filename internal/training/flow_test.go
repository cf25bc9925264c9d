// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"testing"

	"github.com/platinasystems/i2c"
	"github.com/platinasystems/sdramctl/internal/phy"
	"github.com/platinasystems/sdramctl/internal/rcd"
)

// flowSPD is canned SPD content; unset bytes read zero.
type flowSPD map[int]byte

func (f flowSPD) Read(offset int, buf []byte) error {
	for i := range buf {
		buf[i] = f[offset+i]
	}
	return nil
}

// udimmSPD describes a one-rank, one-subchannel x8 UDIMM.
var udimmSPD = flowSPD{
	3: 0x02, // UDIMM
	6: 0x20, // x8
}

func TestFlowDirectAttach(t *testing.T) {
	// 32 data bits over x8 devices: 4 modules per subchannel
	ctl, data, seq := simController(
		[][2]int{{10, 22}, {8, 20}, {10, 22}, {8, 20}},
		[2]int{10, 20}, false, 4, phy.MaxDelayTaps)
	data.rdCycleGood = 3
	data.rdWindow = [2]int{8, 24}
	data.wlThreshold = 360
	data.wrCycleGood = 11
	data.wrWindow = [2]int{8, 24}

	f := Flow{Ctl: ctl, SPD: udimmSPD, Rate: phy.DDR}
	ctx, err := f.Run()
	if err != nil {
		t.Fatal(err)
	}
	if !ctx.Succeeded {
		t.Error("wrong: success not latched")
	}
	if ctx.Type != HostToDRAM || ctx.RDIMM {
		t.Error("wrong topology:", ctx.Type, ctx.RDIMM)
	}
	if ctx.Modules != 4 || ctx.DieWidth != 8 {
		t.Error("wrong geometry:", ctx.Modules, ctx.DieWidth)
	}

	if ctx.CSCoarse[0][0] != 15 {
		t.Error("wrong CS coarse delay:", ctx.CSCoarse[0][0])
	}
	if d := ctl.CK.(*simCK).delay[0]; d != 17 {
		t.Error("wrong clock delay:", d)
	}
	if !ctx.Enumerated {
		t.Error("wrong: modules not enumerated")
	}

	for module := 0; module < ctx.Modules; module++ {
		if got := ctl.ReadCycle.(*simDelay).at(0, module); got != 3 {
			t.Error("wrong read cycle:", module, got)
		}
		if got := ctl.ReadDQ.(*simDelay).at(0, module); got != 16 {
			t.Error("wrong read delay:", module, got)
		}
		if got := ctl.WriteDQ.(*simDelay).at(0, module); got != 11 {
			t.Error("wrong write cycle:", module, got)
		}
	}

	// a successful DDR run leaves 2N command mode
	init1N := false
	for _, call := range seq.initCalls {
		if call == "init-1n" {
			init1N = true
		}
	}
	if !init1N {
		t.Error("wrong: 1N init sequence not issued:", seq.initCalls)
	}
	if ctx.SingleCycleMPC != 1<<4 {
		t.Error("wrong MPC mode:", ctx.SingleCycleMPC)
	}
}

// rdimmSPD describes a one-rank, one-subchannel RDIMM behind a Rambus
// RCD.
var rdimmSPD = flowSPD{
	3:   0x01, // RDIMM
	6:   0x20, // x8 devices
	240: 0x86, // RCD manufacturer, little endian
	241: 0x9d,
	242: 0x23,
}

// fakeSideband emulates the RCD sideband: dword writes land in a
// register file keyed by function/page/register, reads return them
// behind an OK status, and the PMIC's byte write sets a flag.
type fakeSideband struct {
	regs      map[[3]uint8]uint32
	pending   [3]uint8
	vrEnabled bool
}

func newFakeSideband() *fakeSideband {
	return &fakeSideband{regs: make(map[[3]uint8]uint32)}
}

func (f *fakeSideband) Do(rw i2c.RW, reg uint8, size i2c.SMBusSize, data *i2c.SMBusData) error {
	switch {
	case size == i2c.ByteData:
		f.vrEnabled = true
	case rw == i2c.Write && reg == 0x80:
		f.regs[[3]uint8{data[1], data[2], data[3]}] =
			uint32(data[4]) | uint32(data[5])<<8 |
				uint32(data[6])<<16 | uint32(data[7])<<24
	case rw == i2c.Write:
		f.pending = [3]uint8{data[1], data[2], data[3]}
	default:
		v := f.regs[f.pending]
		data[0] = 6
		data[1] = 0x01 // ok status
		data[2] = uint8(v)
		data[3] = uint8(v >> 8)
		data[4] = uint8(v >> 16)
		data[5] = uint8(v >> 24)
	}
	return nil
}

func TestFlowRDIMM(t *testing.T) {
	// behind the RCD the 32 data bits pair to x4 lanes: 8 modules
	windows := make([][2]int, 8)
	for i := range windows {
		if i%2 == 0 {
			windows[i] = [2]int{10, 22}
		} else {
			windows[i] = [2]int{8, 20}
		}
	}
	ctl, data, _ := simController(windows, [2]int{10, 20}, false, 8,
		phy.MaxDelayTaps)
	data.rdCycleGood = 3
	data.rdWindow = [2]int{8, 24}
	data.wlThreshold = 360
	data.wrCycleGood = 11
	data.wrWindow = [2]int{8, 24}

	sideband := newFakeSideband()
	f := Flow{
		Ctl:  ctl,
		SPD:  rdimmSPD,
		RCD:  &rcd.Device{Bus: sideband},
		PMIC: &rcd.PMIC{Bus: sideband},
		Rate: phy.DDR,
	}
	ctx, err := f.Run()
	if err != nil {
		t.Fatal(err)
	}
	if !ctx.Succeeded {
		t.Error("wrong: success not latched")
	}
	if ctx.Type != HostToDRAM || !ctx.RDIMM {
		t.Error("wrong topology:", ctx.Type, ctx.RDIMM)
	}
	if ctx.Modules != 8 || ctx.DieWidth != 4 {
		t.Error("wrong geometry:", ctx.Modules, ctx.DieWidth)
	}
	if ctx.Manufacturer != rcd.ManufacturerRambus {
		t.Errorf("wrong manufacturer: %#x", ctx.Manufacturer)
	}

	// the Rambus substitution must carry CS training behind the RCD
	cs := ctl.CS.(*simCS)
	if cs.qcsEnters == 0 || cs.qcsChecks == 0 {
		t.Error("wrong: QCS training mode never used:",
			cs.qcsEnters, cs.qcsChecks)
	}

	if !sideband.vrEnabled {
		t.Error("wrong: voltage regulators never enabled")
	}
	// forwarding left open for the trained data path
	if v := sideband.regs[[3]uint8{0, 0, 0x00}]; v != 1<<4 {
		t.Errorf("wrong global features: %#x", v)
	}
	if v := sideband.regs[[3]uint8{0, 0, 0x06}]; v != DefaultDataRate/20 {
		t.Error("wrong fine operating speed:", v)
	}

	if d := ctl.CK.(*simCK).delay[0]; d != 17 {
		t.Error("wrong clock delay:", d)
	}
	for module := 0; module < ctx.Modules; module++ {
		if got := ctl.ReadCycle.(*simDelay).at(0, module); got != 3 {
			t.Error("wrong read cycle:", module, got)
		}
		if got := ctl.WriteDQ.(*simDelay).at(0, module); got != 11 {
			t.Error("wrong write cycle:", module, got)
		}
	}
	if !ctx.Enumerated {
		t.Error("wrong: modules not enumerated")
	}
}

func TestFlowKeepGoing(t *testing.T) {
	// closed CS windows with keep-going: the flow runs to the end
	// and reports the latched failure
	ctl, data, _ := simController(
		[][2]int{{0, 0}, {0, 0}, {0, 0}, {0, 0}},
		[2]int{10, 20}, false, 4, phy.MaxDelayTaps)
	data.rdCycleGood = 3
	data.rdWindow = [2]int{8, 24}
	data.wlThreshold = 360
	data.wrCycleGood = 11
	data.wrWindow = [2]int{8, 24}

	f := Flow{Ctl: ctl, SPD: udimmSPD, Rate: phy.DDR,
		Config: Config{KeepGoing: true}}
	ctx, err := f.Run()
	if err == nil {
		t.Fatal("wrong: no error from failed training")
	}
	if ctx.Succeeded {
		t.Error("wrong: success latched despite closed windows")
	}
	// the data paths still trained for diagnostic value
	if got := ctl.ReadCycle.(*simDelay).at(0, 0); got != 3 {
		t.Error("wrong read cycle:", got)
	}
}

func TestFlowDefaultDataRate(t *testing.T) {
	f := Flow{}
	if f.dataRate() != DefaultDataRate {
		t.Error("wrong:", f.dataRate())
	}
	f.DataRate = 3200
	if f.dataRate() != 3200 {
		t.Error("wrong:", f.dataRate())
	}
}
