// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/liner"
	"github.com/platinasystems/sdramctl"
	"github.com/platinasystems/sdramctl/cmd"
	"github.com/platinasystems/sdramctl/internal/fields"
	"github.com/platinasystems/sdramctl/lang"
	"github.com/platinasystems/sdramctl/nocomment"
)

type Command struct {
	Prompt string
	m      *sdramctl.Machine
}

func (*Command) String() string { return "cli" }

func (*Command) Usage() string { return "cli [-p PROMPT]" }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "command line interpreter",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Iterate command input with this basic syntax:

		COMMAND [OPTIONS]... [ARGS]...

	Hash tag prefaced comments are ignored and "exit" or EOF ends the
	session. On a tty, input lines are editable with history and
	command name completion; otherwise lines are read verbatim, as
	from a script.`,
	}
}

func (*Command) Kind() cmd.Kind { return cmd.DontFork | cmd.CantPipe }

func (c *Command) Machine(m *sdramctl.Machine) { c.m = m }

func (c *Command) prompt() string {
	if len(c.Prompt) > 0 {
		return c.Prompt
	}
	if hn, err := os.Hostname(); err == nil && len(hn) > 0 {
		return hn + "> "
	}
	return fmt.Sprint(c.m, "> ")
}

func (c *Command) run(line string) (quit bool) {
	args := fields.New(nocomment.New(strings.TrimLeft(line, " \t")))
	if len(args) == 0 {
		return false
	}
	if args[0] == "exit" || args[0] == "quit" {
		return true
	}
	for _, arg := range args {
		switch arg {
		case "|", "<", ">", ">>":
			fmt.Fprintln(os.Stderr, arg, ": not supported")
			return false
		}
	}
	if err := c.m.Main(args...); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return false
}

func (c *Command) interact() error {
	s := liner.NewLiner()
	defer s.Close()
	s.SetCompleter(func(line string) (lines []string) {
		for _, name := range c.m.Names() {
			if strings.HasPrefix(name, line) {
				lines = append(lines, name)
			}
		}
		return
	})

	for {
		line, err := s.Prompt(c.prompt())
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) != "" {
			s.AppendHistory(line)
		}
		if c.run(line) {
			return nil
		}
	}
}

func (c *Command) script(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if c.run(scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

func (c *Command) Main(args ...string) error {
	if c.m == nil {
		panic("cli's machine is nil")
	}
	if len(args) > 0 {
		if args[0] == "-p" && len(args) > 1 {
			c.Prompt = args[1]
			args = args[2:]
		}
		if len(args) > 0 {
			return fmt.Errorf("%v: unexpected", args)
		}
	}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		return c.interact()
	}
	return c.script(os.Stdin)
}
