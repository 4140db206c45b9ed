// Subcommand dispatch on top of package flag.
package command

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Declares a command's flags on the set and returns what to run once they
// are parsed. The function gets the arguments left after the flags.
type Setup func(*flag.FlagSet) func(args []string) error

type command struct {
	name        string
	description string
	setup       Setup
}

type AppConfig struct {
	whoami   string
	global   func(*flag.FlagSet)
	commands []command
	Output   io.Writer
}

func App(whoami string) *AppConfig {
	return &AppConfig{whoami: whoami, Output: os.Stderr}
}

// Global declares flags accepted before the command name.
func (self *AppConfig) Global(f func(*flag.FlagSet)) {
	if self.global != nil {
		panic("Already set")
	}
	self.global = f
}

func (self *AppConfig) Command(name string, description string, setup Setup) {
	self.commands = append(self.commands, command{name, description, setup})
}

func (self *AppConfig) newFlagSet(name string) *flag.FlagSet {
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	set.SetOutput(io.Discard)
	return set
}

// Run parses args, without the program name, and returns an exit code.
func (self *AppConfig) Run(args []string) int {
	set := self.newFlagSet(self.whoami)
	if self.global != nil {
		self.global(set)
	}
	if err := set.Parse(args); err != nil {
		return self.usage(err)
	}
	if set.NArg() == 0 {
		return self.usage(nil)
	}

	name, rest := set.Arg(0), set.Args()[1:]
	for _, c := range self.commands {
		if c.name != name {
			continue
		}
		commandSet := self.newFlagSet(name)
		run := c.setup(commandSet)
		if err := commandSet.Parse(rest); err != nil {
			return self.usage(err)
		}
		return self.run(name, run, commandSet.Args())
	}
	return self.usage(fmt.Errorf("unknown command %q", name))
}

func (self *AppConfig) run(name string, run func([]string) error, args []string) int {
	err := run(args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return self.usage(nil)
	default:
		fmt.Fprintln(self.Output, name+":", err)
		return 1
	}
}

func (self *AppConfig) usage(err error) int {
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(self.Output, err)
	}
	fmt.Fprintln(self.Output, "Usage:", self.whoami, "[global flags]", "command", "[flags]", "[args]")
	if self.global != nil {
		fmt.Fprintln(self.Output, "Global:")
		set := self.newFlagSet(self.whoami)
		self.global(set)
		printFlags(self.Output, set, "\t")
	}
	fmt.Fprintln(self.Output, "Commands:")
	for _, c := range self.commands {
		fmt.Fprintf(self.Output, "\t%s: %s\n", c.name, c.description)
		set := self.newFlagSet(c.name)
		c.setup(set)
		printFlags(self.Output, set, "\t\t")
	}
	return 2
}

func printFlags(w io.Writer, set *flag.FlagSet, indent string) {
	set.VisitAll(func(f *flag.Flag) {
		fmt.Fprintf(w, "%s-%s=%s: %s\n", indent, f.Name, f.DefValue, f.Usage)
	})
}
