// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// SuperCommandParams holds the parameters of NewSuperCommand.
type SuperCommandParams struct {
	Name     string
	Purpose  string
	Doc      string
	Examples string

	// Version, when set, adds a "version" subcommand and a --version
	// flag.
	Version string

	// Log configures logging before the subcommand runs. No logging
	// flags are added when it is nil.
	Log *Log

	// NotifyRun, if not nil, is called with the name of the subcommand
	// about to run.
	NotifyRun func(name string)
}

// entry is a registered subcommand, possibly under an alias.
type entry struct {
	command Command

	// target is the canonical name when the entry is an alias.
	target string
}

// SuperCommand is a Command that dispatches to one of its registered
// subcommands, chosen by the first positional argument. Flags given
// before the subcommand name apply to the SuperCommand itself; the
// logging and help flags are also accepted after it.
type SuperCommand struct {
	CommandBase
	Name     string
	Purpose  string
	Doc      string
	Examples string
	Log      *Log

	version   string
	notifyRun func(string)
	entries   map[string]entry

	// common holds the flags shared with every subcommand.
	common      *gnuflag.FlagSet
	selected    string
	showHelp    bool
	showVersion bool
}

// NewSuperCommand returns a SuperCommand with the help subcommand, and
// the version subcommand when a version is given.
func NewSuperCommand(params SuperCommandParams) *SuperCommand {
	c := &SuperCommand{
		Name:      params.Name,
		Purpose:   params.Purpose,
		Doc:       params.Doc,
		Examples:  params.Examples,
		Log:       params.Log,
		version:   params.Version,
		notifyRun: params.NotifyRun,
		entries:   make(map[string]entry),
	}
	c.add("help", entry{command: &helpCommand{super: c}})
	if c.version != "" {
		c.add("version", entry{command: &versionCommand{version: c.version}})
	}
	return c
}

// IsSuperCommand implements Command.IsSuperCommand.
func (c *SuperCommand) IsSuperCommand() bool {
	return true
}

// Register adds subcmd under its name and every alias in its Info.
// Registering a name twice panics.
func (c *SuperCommand) Register(subcmd Command) {
	info := subcmd.Info()
	c.add(info.Name, entry{command: subcmd})
	for _, alias := range info.Aliases {
		c.add(alias, entry{command: subcmd, target: info.Name})
	}
}

func (c *SuperCommand) add(name string, e entry) {
	if _, ok := c.entries[name]; ok {
		panic(fmt.Sprintf("command already registered: %q", name))
	}
	c.entries[name] = e
}

// Info returns the Info of the selected subcommand, prefixed with the
// SuperCommand's name, or the SuperCommand's own Info before selection.
func (c *SuperCommand) Info() *Info {
	if e, ok := c.entries[c.selected]; ok {
		info := *e.command.Info()
		info.Name = c.Name + " " + info.Name
		return &info
	}
	return c.ownInfo()
}

func (c *SuperCommand) ownInfo() *Info {
	return &Info{
		Name:        c.Name,
		Args:        "<command> ...",
		Purpose:     c.Purpose,
		Doc:         strings.TrimSpace(c.Doc),
		Examples:    c.Examples,
		Subcommands: c.summaries(),
	}
}

// summaries maps each registered name to the first line of its purpose.
func (c *SuperCommand) summaries() map[string]string {
	out := make(map[string]string, len(c.entries))
	for name, e := range c.entries {
		if e.target != "" {
			out[name] = fmt.Sprintf("Alias for '%s'.", e.target)
			continue
		}
		out[name] = e.command.Info().Purpose
	}
	return out
}

// describeCommands renders summaries as an aligned, sorted list.
func describeCommands(summaries map[string]string) string {
	names := make([]string, 0, len(summaries))
	width := 0
	for name := range summaries {
		names = append(names, name)
		width = max(width, len(name))
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		purpose := strings.TrimSpace(summaries[name])
		purpose, _, _ = strings.Cut(purpose, "\n")
		fmt.Fprintf(&b, "    %-*s - %s\n", width, name, purpose)
	}
	return b.String()
}

// SetFlags adds the logging, help and version flags.
func (c *SuperCommand) SetFlags(f *gnuflag.FlagSet) {
	if c.Log != nil {
		c.Log.AddFlags(f)
	}
	f.BoolVar(&c.showHelp, "h", false, "Show help on a command.")
	f.BoolVar(&c.showHelp, "help", false, "")

	// Copy the flags so far into the set handed to the subcommand.
	c.common = gnuflag.NewFlagSet(c.Name, gnuflag.ContinueOnError)
	c.common.SetOutput(io.Discard)
	f.VisitAll(func(flag *gnuflag.Flag) {
		c.common.Var(flag.Value, flag.Name, flag.Usage)
	})

	if c.version != "" {
		f.BoolVar(&c.showVersion, "version", false, "Show the version and exit.")
	}
}

// AllowInterspersedFlags returns false so that the first positional
// argument always names the subcommand.
func (c *SuperCommand) AllowInterspersedFlags() bool {
	return false
}

// Init selects the subcommand named by args[0] and initialises it with
// the remaining arguments. No arguments selects help.
func (c *SuperCommand) Init(args []string) error {
	switch {
	case c.showVersion:
		return c.selectCommand("version", args)
	case len(args) == 0:
		return c.selectCommand("help", nil)
	}
	name, rest := args[0], args[1:]
	e, ok := c.entries[name]
	if !ok {
		return errors.Errorf("unrecognized command: %s %s", c.Name, name)
	}
	e.command.SetFlags(c.common)
	if err := c.common.Parse(e.command.AllowInterspersedFlags(), rest); err != nil {
		return err
	}
	if c.showHelp {
		return c.selectCommand("help", []string{name})
	}
	c.selected = name
	return e.command.Init(c.common.Args())
}

func (c *SuperCommand) selectCommand(name string, args []string) error {
	c.selected = name
	return c.entries[name].command.Init(args)
}

// Run starts logging and runs the selected subcommand. An error is
// written here and returned as ErrSilent so Main does not repeat it.
func (c *SuperCommand) Run(ctx *Context) error {
	e, ok := c.entries[c.selected]
	if !ok {
		panic("Run called before a successful Init")
	}
	if c.Log != nil {
		if err := c.Log.Start(ctx); err != nil {
			return err
		}
	}
	if c.notifyRun != nil {
		c.notifyRun(c.selected)
	}
	err := e.command.Run(ctx)
	switch {
	case err == nil:
		logger.Debugf("%s finished", c.selected)
		return nil
	case IsErrSilent(err):
		return err
	}
	WriteError(ctx.Stderr, err)
	logger.Debugf("error stack:\n%v", errors.ErrorStack(err))
	return ErrSilent
}

// helpCommand shows the SuperCommand's help, or a subcommand's.
type helpCommand struct {
	CommandBase
	super *SuperCommand
	topic string
}

func (c *helpCommand) Info() *Info {
	return &Info{
		Name:    "help",
		Args:    "[command]",
		Purpose: "Show help on a command.",
	}
}

func (c *helpCommand) Init(args []string) error {
	topic, err := ZeroOrOneArgs(args)
	if err != nil {
		return err
	}
	if _, ok := c.super.entries[topic]; topic != "" && !ok {
		return errors.Errorf("unknown command or topic for %s", topic)
	}
	c.topic = topic
	return nil
}

func (c *helpCommand) Run(ctx *Context) error {
	info := c.super.ownInfo()
	setFlags := c.super.SetFlags
	if c.topic != "" {
		command := c.super.entries[c.topic].command
		info = command.Info()
		info.Name = c.super.Name + " " + info.Name
		setFlags = command.SetFlags
	}
	f := gnuflag.NewFlagSet(info.Name, gnuflag.ContinueOnError)
	setFlags(f)
	_, err := ctx.Stdout.Write(info.Help(f))
	return err
}

type versionCommand struct {
	CommandBase
	version string
}

func (c *versionCommand) Info() *Info {
	return &Info{
		Name:    "version",
		Purpose: "Print the current version.",
	}
}

func (c *versionCommand) Run(ctx *Context) error {
	_, err := fmt.Fprintln(ctx.Stdout, c.version)
	return err
}
