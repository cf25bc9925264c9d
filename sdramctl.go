// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sdramctl provides a monolithic SDRAM bring-up and diagnostic tool.
// Each `sdram*` operation is an independently invocable command plotted on a
// Machine; the cli command iterates command input interactively.
package sdramctl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/sdramctl/cmd"
	"github.com/platinasystems/sdramctl/lang"
)

type Machine struct {
	Name    string
	USAGE   string
	APROPOS lang.Alt
	MAN     lang.Alt

	ByName map[string]cmd.Cmd

	names []string
}

func (m *Machine) String() string { return m.Name }

// Plot commands on the Machine's name map.
func (m *Machine) Plot(cmds ...cmd.Cmd) {
	if m.ByName == nil {
		m.ByName = make(map[string]cmd.Cmd)
	}
	for _, v := range cmds {
		name := v.String()
		if _, found := m.ByName[name]; found {
			panic(fmt.Errorf("%s: duplicate", name))
		}
		m.ByName[name] = v
		if method, found := v.(machiner); found {
			method.Machine(m)
		}
		m.names = nil
	}
}

func (m *Machine) Names() []string {
	if m.names == nil {
		m.names = make([]string, 0, len(m.ByName))
		for name, v := range m.ByName {
			if cmd.WhatKind(v).IsInteractive() {
				m.names = append(m.names, name)
			}
		}
		sort.Strings(m.names)
	}
	return m.names
}

// Main runs the args[0] command in the current context. When run w/o args
// this uses os.Args. A command's -h, -help, -apropos, -man, and -usage flags
// are swapped with the like named helper, e.g.
//
//	sdraminit -usage
//
// becomes
//
//	usage sdraminit
func (m *Machine) Main(args ...string) error {
	if len(args) == 0 {
		args = os.Args
		if len(args) == 0 {
			return nil
		}
		if filepath.Base(args[0]) == m.Name {
			args = args[1:]
			if len(args) == 0 {
				args = []string{"cli"}
			}
		}
	}

	name := args[0]
	args = args[1:]
	flag, args := flags.New(args, "-h", "-help", "-apropos", "-man",
		"-usage")
	targs := []string{name}
	switch {
	case flag.ByName["-h"], flag.ByName["-help"]:
		name = "help"
		args = targs
	case flag.ByName["-apropos"]:
		name = "apropos"
		args = targs
	case flag.ByName["-man"]:
		name = "man"
		args = targs
	case flag.ByName["-usage"]:
		name = "usage"
		args = targs
	}

	switch name {
	case "help":
		return m.help(args...)
	case "usage":
		return m.usage(args...)
	case "apropos":
		return m.apropos(args...)
	case "man":
		return m.man(args...)
	}

	v, found := m.ByName[name]
	if !found {
		return fmt.Errorf("%s: command not found", name)
	}
	err := v.Main(args...)
	if err == io.EOF {
		err = nil
	}
	if err != nil {
		err = fmt.Errorf("%s: %v", name, err)
	}
	return err
}

func Usage(v Usager) string {
	return fmt.Sprint("usage:\t", strings.TrimSpace(v.Usage()))
}

type Usager interface {
	Usage() string
}

type machiner interface {
	Machine(*Machine)
}
