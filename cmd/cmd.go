// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmd

import "github.com/platinasystems/sdramctl/lang"

type Cmd interface {
	Apropos() lang.Alt
	Main(...string) error
	// String returns the command name.
	String() string
	Usage() string
	/* Optional
	Help(...string) string
	Kind() Kind
	Machine(*sdramctl.Machine)
	Man() lang.Alt
	*/
}
