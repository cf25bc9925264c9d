// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramctl

import (
	"fmt"

	"github.com/platinasystems/sdramctl/lang"
)

func (m *Machine) Apropos() lang.Alt {
	apropos := m.APROPOS
	if apropos == nil {
		apropos = lang.Alt{
			lang.EnUS: "SDRAM training and diagnostics",
		}
	}
	return apropos
}

func (m *Machine) apropos(args ...string) error {
	pad := func(n int) {
		if n < 0 {
			fmt.Print("\n\t\t")
		} else {
			fmt.Print("                "[:n])
		}
	}
	if len(args) == 0 {
		args = m.Names()
	}
	for _, name := range args {
		if len(name) == 0 {
			continue
		}
		if v, found := m.ByName[name]; found {
			fmt.Print(name)
			pad(16 - len(name))
			fmt.Println(v.Apropos())
		}
	}
	return nil
}
