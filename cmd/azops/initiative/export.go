// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package initiative

import (
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/azops/cmd/azops/azopscmd"
	"github.com/juju/azops/internal/cmd"
	coreinitiative "github.com/juju/azops/internal/initiative"
)

const exportDoc = `
Export a built-in policy initiative as a policy set document that
deploy-initiative accepts. Built-in initiatives are named by their GUID,
for example 89c6cddc-1c73-4ac1-b19c-54d1a15a42f2 for ISO 27001:2013.

The file is replaced atomically if it exists.
`

// NewExportCommand returns a command that writes a built-in initiative
// to a file.
func NewExportCommand() cmd.Command {
	return &exportCommand{}
}

type exportCommand struct {
	azopscmd.CommandBase

	newAPIFunc func(ctx *cmd.Context) (coreinitiative.SetDefinitionsAPI, error)

	name string
	path string
}

// Info implements Command.Info.
func (c *exportCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "export-initiative",
		Args:     "<built-in-name> <document.json>",
		Purpose:  "Write a built-in policy initiative to a policy set document.",
		Doc:      exportDoc,
		Examples: "azops export-initiative 89c6cddc-1c73-4ac1-b19c-54d1a15a42f2 iso27001.json",
		SeeAlso:  []string{"deploy-initiative"},
	}
}

// SetFlags implements Command.SetFlags.
func (c *exportCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
}

// Init implements Command.Init.
func (c *exportCommand) Init(args []string) error {
	switch len(args) {
	case 0:
		return errors.New("no built-in initiative name specified")
	case 1:
		return errors.New("no output file specified")
	}
	c.name, c.path = args[0], args[1]
	return cmd.CheckEmpty(args[2:])
}

// Run implements Command.Run.
func (c *exportCommand) Run(ctx *cmd.Context) error {
	newAPI := c.newAPIFunc
	if newAPI == nil {
		newAPI = c.setDefinitionsAPI
	}
	api, err := newAPI(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	doc, err := coreinitiative.NewDeployer(api).Export(ctx, c.name, ctx.AbsPath(c.path))
	if err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("Exported %q (%d policy definitions) to %s", doc.Properties.DisplayName, len(doc.Properties.PolicyDefinitions), c.path)
	return nil
}

func (c *exportCommand) setDefinitionsAPI(ctx *cmd.Context) (coreinitiative.SetDefinitionsAPI, error) {
	factory, err := c.ClientFactory(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return factory.SetDefinitions()
}
