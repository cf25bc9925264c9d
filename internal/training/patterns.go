// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

// Data patterns for read and write eye scans. Serial patterns cover
// all-ones, all-zeros and both walking polarities over a 16 UI burst;
// the LFSR seed pairs drive the DRAM's MR26/MR27 pseudo-random
// generators. JESD79-5A 3.5.27-28.

var serial = [...]uint16{
	0x0000, 0xffff,
	0xfffe, 0xfffd, 0xfffb, 0xfff7, 0xffef, 0xffdf, 0xffbf, 0xff7f,
	0xfeff, 0xfdff, 0xfbff, 0xf7ff, 0xefff, 0xdfff, 0xbfff, 0x7fff,
	0x0001, 0x0002, 0x0004, 0x0008, 0x0010, 0x0020, 0x0040, 0x0080,
	0x0100, 0x0200, 0x0400, 0x0800, 0x1000, 0x2000, 0x4000, 0x8000,
}

var seeds0 = [...]uint8{0x1c, 0x5a, 0x24, 0x11, 0x36, 0xaa, 0xc1, 0xee}
var seeds1 = [...]uint8{0x72, 0x55, 0x95, 0x3e, 0x59, 0x3c, 0x48, 0xfd}

// lfsrNext steps the MR26 LFSR, polynomial x^8+x^6+x^5+x^4+1.
func lfsrNext(v uint8) uint8 {
	tap := (v>>7 ^ v>>5 ^ v>>4 ^ v>>3) & 1
	return v<<1 | tap
}
