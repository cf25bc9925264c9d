// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramctl

import (
	"fmt"
	"strings"

	"github.com/platinasystems/sdramctl/cmd"
	"github.com/platinasystems/sdramctl/lang"
)

type maner interface {
	Man() lang.Alt
}

var section = struct {
	name, synopsis lang.Alt
}{
	name: lang.Alt{
		lang.EnUS: "NAME",
	},
	synopsis: lang.Alt{
		lang.EnUS: "SYNOPSIS",
	},
}

func (m *Machine) Man() lang.Alt {
	man := m.MAN
	if man == nil {
		man = lang.Alt{
			lang.EnUS: `
SEE ALSO
	sdramctl apropos [COMMAND], sdramctl man COMMAND`,
		}
	}
	return man
}

func (m *Machine) man(args ...string) error {
	var cmds []cmd.Cmd
	for i, arg := range args {
		v := m.ByName[arg]
		if v == nil {
			if i == 0 {
				return fmt.Errorf("%s: not found", arg)
			}
			break
		}
		cmds = append(cmds, v)
	}
	if len(cmds) == 0 {
		cmds = []cmd.Cmd{m}
	}
	for i, v := range cmds {
		if i > 0 {
			fmt.Println()
		}
		fmt.Print(section.name, "\n\t", v, " - ",
			v.Apropos(), "\n\n", section.synopsis, "\n\t",
			strings.TrimSpace(v.Usage()), "\n")
		if method, found := v.(maner); found {
			man := method.Man().String()
			if !strings.HasPrefix(man, "\n") {
				fmt.Println()
			}
			fmt.Print(man)
			if !strings.HasSuffix(man, "\n") {
				fmt.Println()
			}
		}
	}
	return nil
}
