// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package exemption

import (
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/azops/internal/cmd"
	coreexemption "github.com/juju/azops/internal/exemption"
)

const importDoc = `
Create exemptions from a CSV file. The first row names the columns, in any
order and case:

    name,scope,assignmentId,category,expiresOn,displayName,description,referenceIds

scope, assignmentId and category are required. A row without a name gets a
generated one. expiresOn is a date (YYYY-MM-DD) or an RFC 3339 timestamp
and referenceIds are separated by ";". Lines starting with "#" are ignored.

Every row is attempted: a row that fails is reported and the import
continues. The command fails if any row failed.
`

const removeAllDoc = `
Remove the exemptions listed in a CSV file with the columns name and
scope. Every row is attempted: a row that fails is reported and removal
continues. The command fails if any row failed.
`

// NewImportCommand returns a command that creates exemptions from a
// CSV file.
func NewImportCommand() cmd.Command {
	return &importCommand{}
}

type importCommand struct {
	exemptionCommandBase

	file cmd.FileVar
}

// Info implements Command.Info.
func (c *importCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "import-exemptions",
		Args:     "<exemptions.csv>",
		Purpose:  "Create policy exemptions from a CSV file.",
		Doc:      importDoc,
		Examples: "azops import-exemptions exemptions.csv",
		SeeAlso:  []string{"create-exemption", "remove-exemptions"},
	}
}

// SetFlags implements Command.SetFlags.
func (c *importCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
}

// Init implements Command.Init.
func (c *importCommand) Init(args []string) error {
	return initFile(&c.file, args)
}

// Run implements Command.Run.
func (c *importCommand) Run(ctx *cmd.Context) error {
	f, err := c.file.Open(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	rows, err := coreexemption.ReadRecordsCSV(f)
	if err != nil {
		return errors.Annotatef(err, "reading %s", c.file.Path)
	}
	m, err := c.manager(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	result := m.Import(ctx, rows, bulkNotify(ctx, "Created"))
	return bulkSummary(ctx, "created", result)
}

// NewRemoveAllCommand returns a command that removes the exemptions
// listed in a CSV file.
func NewRemoveAllCommand() cmd.Command {
	return &removeAllCommand{}
}

type removeAllCommand struct {
	exemptionCommandBase

	file cmd.FileVar
}

// Info implements Command.Info.
func (c *removeAllCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "remove-exemptions",
		Args:     "<exemptions.csv>",
		Purpose:  "Remove the policy exemptions listed in a CSV file.",
		Doc:      removeAllDoc,
		Examples: "azops remove-exemptions expired.csv",
		SeeAlso:  []string{"remove-exemption", "exemptions"},
	}
}

// SetFlags implements Command.SetFlags.
func (c *removeAllCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
}

// Init implements Command.Init.
func (c *removeAllCommand) Init(args []string) error {
	return initFile(&c.file, args)
}

// Run implements Command.Run.
func (c *removeAllCommand) Run(ctx *cmd.Context) error {
	f, err := c.file.Open(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	refs, err := coreexemption.ReadRefsCSV(f)
	if err != nil {
		return errors.Annotatef(err, "reading %s", c.file.Path)
	}
	m, err := c.manager(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	result := m.RemoveAll(ctx, refs, bulkNotify(ctx, "Removed"))
	return bulkSummary(ctx, "removed", result)
}

func initFile(file *cmd.FileVar, args []string) error {
	path, err := cmd.ZeroOrOneArgs(args)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("no CSV file specified")
	}
	return file.Set(path)
}
