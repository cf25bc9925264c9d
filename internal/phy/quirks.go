// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

// Vendor quirk variants. Some RCDs deviate from the JEDEC training
// behavior; the flow wraps the stock channel with one of these after
// reading the RCD's manufacturer ID, and the wrapped channel is used for
// the rest of training. Each wrapper routes to a vendor capability when
// the underlying implementation provides it and falls back to the stock
// behavior otherwise, so simulations without the capability still work.

// RambusCS replaces chip-select training entry and the check with the QCS
// training mode variants Rambus RCDs require (manufacturer 0x9D86).
type RambusCS struct {
	CSChannel
}

type qcsTrainer interface {
	EnterQCSTrainingMode(channel, rank int)
	QCSCheck(channel, rank int, shift bool, modules, width int) uint32
}

func (q RambusCS) EnterTrainingMode(channel, rank int) {
	if v, ok := q.CSChannel.(qcsTrainer); ok {
		v.EnterQCSTrainingMode(channel, rank)
		return
	}
	q.CSChannel.EnterTrainingMode(channel, rank)
}

func (q RambusCS) Check(channel, rank int, shift bool, modules, width int) uint32 {
	if v, ok := q.CSChannel.(qcsTrainer); ok {
		return v.QCSCheck(channel, rank, shift, modules, width)
	}
	return q.CSChannel.Check(channel, rank, shift, modules, width)
}

// MontageCA replaces the CA check with the sampling variant Montage RCDs
// need (manufacturer 0x3286, device type 0x80).
type MontageCA struct {
	CAChannel
}

type montageChecker interface {
	MontageCheck(channel, rank, line int, shiftBack bool) bool
}

func (q MontageCA) Check(channel, rank, line int, shiftBack bool) bool {
	if v, ok := q.CAChannel.(montageChecker); ok {
		return v.MontageCheck(channel, rank, line, shiftBack)
	}
	return q.CAChannel.Check(channel, rank, line, shiftBack)
}

// SDRCA replaces the CA check with the single-data-rate sampling variant
// used when the RCD runs the CA bus in SDR mode.
type SDRCA struct {
	CAChannel
}

type sdrChecker interface {
	SDRCheck(channel, rank, line int, shiftBack bool) bool
}

func (q SDRCA) Check(channel, rank, line int, shiftBack bool) bool {
	if v, ok := q.CAChannel.(sdrChecker); ok {
		return v.SDRCheck(channel, rank, line, shiftBack)
	}
	return q.CAChannel.Check(channel, rank, line, shiftBack)
}
