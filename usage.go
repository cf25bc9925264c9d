// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramctl

import "fmt"

func (m *Machine) Usage() string {
	usage := m.USAGE
	if len(usage) == 0 {
		usage = `
	sdramctl COMMAND [ ARGS ]...
	sdramctl COMMAND -[-]HELPER [ ARGS ]...
	sdramctl HELPER [ COMMAND ] [ ARGS ]...

	HELPER := { apropos | help | man | usage }`
	}
	return usage
}

func (m *Machine) usage(args ...string) error {
	var u Usager = m
	if len(args) > 0 {
		u = m.ByName[args[0]]
		if u == nil {
			return fmt.Errorf("%s: not found", args[0])
		}
	}
	fmt.Println(Usage(u))
	return nil
}
