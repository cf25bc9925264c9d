// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sdramctl

import "fmt"

type helper interface {
	Help(...string) string
}

func (m *Machine) Help(args ...string) string {
	if len(args) > 0 {
		if v, found := m.ByName[args[0]]; found {
			if method, found := v.(helper); found {
				return method.Help(args[1:]...)
			}
			return Usage(v)
		}
	}
	return Usage(m)
}

func (m *Machine) help(args ...string) error {
	h := m.Help(args...)
	if len(h) > 0 {
		fmt.Println(h)
	}
	return nil
}
