// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramtest

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
	"unsafe"

	"github.com/platinasystems/parms"
	"github.com/platinasystems/sdramctl/lang"
)

// Default test window in the trained region.
const (
	defaultBase = 0x40000000
	defaultSize = 1 << 20
)

type Command struct{}

func (Command) String() string { return "sdramtest" }

func (Command) Usage() string {
	return "sdramtest [-base ADDRESS] [-size BYTES]"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "pattern test trained SDRAM",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Map BYTES of physical memory at ADDRESS and run fixed-pattern and
	address-pattern passes over it. Destroys the window's contents.

	The defaults cover the first megabyte of the trained region.`,
	}
}

var patterns = []uint32{0x00000000, 0xffffffff, 0x55555555, 0xaaaaaaaa}

func words(mem []byte) []uint32 {
	return (*[1 << 28]uint32)(unsafe.Pointer(&mem[0]))[: len(mem)/4 : len(mem)/4]
}

func testPattern(w []uint32, pattern uint32) error {
	for i := range w {
		w[i] = pattern
	}
	for i := range w {
		if w[i] != pattern {
			return fmt.Errorf("%#x: got %#08x, want %#08x",
				4*i, w[i], pattern)
		}
	}
	return nil
}

// testAddress catches aliased address lines that constant patterns
// can't see.
func testAddress(w []uint32) error {
	for i := range w {
		w[i] = uint32(i) * 0x9e3779b9
	}
	for i := range w {
		if want := uint32(i) * 0x9e3779b9; w[i] != want {
			return fmt.Errorf("%#x: got %#08x, want %#08x",
				4*i, w[i], want)
		}
	}
	return nil
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-base", "-size")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}

	base := int64(defaultBase)
	size := defaultSize
	if s := parm.ByName["-base"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("-base %s: %v", s, err)
		}
		base = int64(v)
	}
	if s := parm.ByName["-size"]; len(s) > 0 {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("-size %s: %v", s, err)
		}
		size = int(v)
	}
	if size < 4 || size%4 != 0 {
		return fmt.Errorf("-size %d: not a multiple of 4", size)
	}

	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	mem, err := syscall.Mmap(int(f.Fd()), base, size,
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap %#x: %v", base, err)
	}
	defer syscall.Munmap(mem)

	w := words(mem)
	for _, pattern := range patterns {
		if err = testPattern(w, pattern); err != nil {
			return err
		}
	}
	if err = testAddress(w); err != nil {
		return err
	}
	fmt.Printf("%#x bytes at %#x: ok\n", size, base)
	return nil
}
