// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package eye records pass/fail sequences from delay-tap sweeps and extracts
// the valid sampling window, i.e. the "eye", from them.
//
// A training pass resets a delay line, then steps it one tap at a time while
// probing the signal, recording one sample per tap. A scan may cover two full
// delay-line periods, taps [0,N) under one polarity then [N,2N) under the
// alternate, to resolve wraparound; window indices found in the second period
// are normalized back by the caller.
package eye

// Window edges that were never found stay Unset.
const Unset = -1

type State int

const (
	Before State = iota
	Inside
	After
)

// Eye is a lazily discovered contiguous run of passing taps. The scan state
// machine moves Before -> Inside on the first passing tap and Inside -> After
// on the first failing tap thereafter.
type Eye struct {
	State State
	Start int
	Center int
	End   int
}

func New() Eye { return Eye{State: Before, Start: Unset, Center: Unset, End: Unset} }

// Sample advances the eye state machine with one pass/fail probe taken at
// the given position in the scanned domain.
func (e *Eye) Sample(works bool, at int) {
	if works && e.State == Before {
		e.Start = at
		e.State = Inside
	} else if !works && e.State == Inside {
		e.End = at
		e.State = After
	}
}

// Scanner is a scratch recorder for one scan pass. It is not reentrant;
// callers must not interleave scans and must Clear before every pass.
type Scanner struct {
	arr []bool
	it  int
}

// NewScanner sizes the buffer for two periods of the given delay line,
// with a floor of 64 taps per period.
func NewScanner(taps int) *Scanner {
	if taps < 64 {
		taps = 64
	}
	return &Scanner{arr: make([]bool, 2*taps)}
}

// Clear resets the recorded samples and the cursor.
func (s *Scanner) Clear() {
	s.it = 0
	for i := range s.arr {
		s.arr[i] = false
	}
}

// Record stores one sample and advances the cursor.
func (s *Scanner) Record(works bool) {
	s.arr[s.it] = works
	s.it++
}

// OneIn searches samples [0,max). It returns -1 if sample 0 passed, as the
// eye may have wrapped around from the previous period; 1 if any later
// sample passed; and 0 if none did. The 3-way result drives the chip-select
// retry logic and must not be collapsed to a boolean.
func (s *Scanner) OneIn(max int) int {
	if s.arr[0] {
		return -1
	}
	for it := 1; it < max; it++ {
		if s.arr[it] {
			return 1
		}
	}
	return 0
}

// LeadingRun returns the index of the first failing sample, or max if all
// samples in [0,max) passed. Used to decide whether an "always passing"
// region is too short to trust.
func (s *Scanner) LeadingRun(max int) int {
	for it := 0; it < max; it++ {
		if !s.arr[it] {
			return it
		}
	}
	return max
}

// FindWindow searches samples [0,2*max). right is the first passing sample
// and left the first failing sample strictly after right. If the passing run
// reaches the end of the scanned domain, left is reported as 2*max (open
// window). ok is false when no passing sample was seen.
func (s *Scanner) FindWindow(max int) (right, left int, ok bool) {
	right, left = Unset, Unset
	for it := 0; it < 2*max; it++ {
		if s.arr[it] && right == Unset {
			right = it
		}
		if !s.arr[it] && right != Unset {
			left = it
			return right, left, true
		}
	}
	if s.arr[2*max-1] {
		left = 2 * max
		return right, left, true
	}
	return right, left, false
}
