// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import (
	"math/bits"
	"testing"
)

func TestSerialPatterns(t *testing.T) {
	if len(serial) != 34 {
		t.Fatal("wrong pattern count:", len(serial))
	}
	if serial[0] != 0x0000 || serial[1] != 0xffff {
		t.Error("wrong constant patterns:", serial[0], serial[1])
	}
	for i, p := range serial[2:18] {
		if bits.OnesCount16(^p) != 1 {
			t.Errorf("wrong walking zero %d: %#04x", i, p)
		}
	}
	for i, p := range serial[18:] {
		if bits.OnesCount16(p) != 1 {
			t.Errorf("wrong walking one %d: %#04x", i, p)
		}
	}
}

func TestLFSRPeriod(t *testing.T) {
	// the generator polynomial is primitive, so every nonzero seed
	// walks the full 255-state cycle
	for _, seed := range seeds0 {
		v := seed
		period := 0
		for {
			v = lfsrNext(v)
			period++
			if v == seed {
				break
			}
			if period > 255 {
				t.Fatalf("seed %#x does not cycle", seed)
			}
		}
		if period != 255 {
			t.Errorf("wrong period for seed %#x: %d", seed, period)
		}
	}
}

func TestLFSRSticksAtZero(t *testing.T) {
	if lfsrNext(0) != 0 {
		t.Error("wrong:", lfsrNext(0))
	}
}
