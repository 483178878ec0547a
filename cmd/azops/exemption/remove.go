// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package exemption

import (
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/azops/internal/cmd"
	coreexemption "github.com/juju/azops/internal/exemption"
)

// NewRemoveCommand returns a command that removes a single exemption.
func NewRemoveCommand() cmd.Command {
	return &removeCommand{}
}

type removeCommand struct {
	exemptionCommandBase

	ref coreexemption.Ref
}

// Info implements Command.Info.
func (c *removeCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "remove-exemption",
		Args:     "<name>",
		Purpose:  "Remove a policy exemption.",
		Examples: "azops remove-exemption legacy-app-waiver --scope /subscriptions/<sub>/resourceGroups/rg-legacy",
		SeeAlso:  []string{"create-exemption", "remove-exemptions"},
	}
}

// SetFlags implements Command.SetFlags.
func (c *removeCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.ref.Scope, "scope", "", "Scope the exemption was created at")
}

// Init implements Command.Init.
func (c *removeCommand) Init(args []string) error {
	name, err := cmd.ZeroOrOneArgs(args)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.New("no exemption name specified")
	}
	c.ref.Name = name
	return errors.Trace(c.ref.Validate())
}

// Run implements Command.Run.
func (c *removeCommand) Run(ctx *cmd.Context) error {
	m, err := c.manager(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if err := m.Remove(ctx, c.ref); err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("Removed exemption %q", c.ref.Name)
	return nil
}
