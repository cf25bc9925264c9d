// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package training

import "errors"

var (
	// ErrNoWindow: a scan never observed a passing tap, or the
	// passing run stayed degenerate past the retry budget.
	ErrNoWindow = errors.New("no valid sampling window")

	// ErrVerification: the post-finalization rescan disagrees with
	// the window found during training.
	ErrVerification = errors.New("verification rescan mismatch")

	// ErrTopology: more modules on a rank than the enumeration
	// space can address.
	ErrTopology = errors.New("too many modules to enumerate")
)
