// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package exemption

import (
	"time"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/azops/cmd/azops/azopscmd"
	"github.com/juju/azops/internal/cmd"
	coreexemption "github.com/juju/azops/internal/exemption"
)

const createDoc = `
Create or update a policy exemption. The exemption applies to the policy
assignment given by --assignment at the scope given by --scope, which may
be a subscription, a resource group or a single resource. Use
--reference-ids to exempt only some policies of an initiative assignment.

The category is Waiver (the scope is knowingly non-compliant) or
Mitigated (the policy intent is met by other means). Exemptions should
expire; use --expires with a date or --days for a number of days from now.

When the scope is a resource group, the group must exist.
`

const createExamples = `
    azops create-exemption legacy-app-waiver \
        --scope /subscriptions/<sub>/resourceGroups/rg-legacy \
        --assignment /subscriptions/<sub>/providers/Microsoft.Authorization/policyAssignments/iso27001 \
        --days 90 --description "Migration planned for Q3" --meta ticket=CHG-1234
`

// NewCreateCommand returns a command that creates a single exemption.
func NewCreateCommand() cmd.Command {
	return &createCommand{}
}

type createCommand struct {
	exemptionCommandBase

	name         string
	scope        string
	assignmentID string
	category     string
	expires      string
	days         int
	displayName  string
	description  string
	referenceIDs azopscmd.Strings
	metadata     azopscmd.KeyValues

	record coreexemption.Record
}

// Info implements Command.Info.
func (c *createCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "create-exemption",
		Args:     "<name>",
		Purpose:  "Create or update a policy exemption.",
		Doc:      createDoc,
		Examples: createExamples,
		SeeAlso:  []string{"remove-exemption", "import-exemptions", "exemptions"},
	}
}

// SetFlags implements Command.SetFlags.
func (c *createCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.scope, "scope", "", "Scope of the exemption (subscription, resource group or resource id)")
	f.StringVar(&c.assignmentID, "assignment", "", "Resource id of the policy assignment to exempt from")
	f.StringVar(&c.category, "category", string(coreexemption.CategoryWaiver), "Exemption category (Waiver or Mitigated)")
	f.StringVar(&c.expires, "expires", "", "Expiry as a date (YYYY-MM-DD) or RFC 3339 timestamp")
	f.IntVar(&c.days, "days", 0, "Expire the exemption this many days from now")
	f.StringVar(&c.displayName, "display-name", "", "Display name of the exemption")
	f.StringVar(&c.description, "description", "", "Justification for the exemption")
	f.Var(&c.referenceIDs, "reference-ids", "Comma separated policy definition reference ids to exempt (default: all)")
	f.Var(&c.metadata, "meta", "Metadata key=value pair (may be repeated)")
}

// Init implements Command.Init.
func (c *createCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no exemption name specified")
	}
	c.name = args[0]
	if err := cmd.CheckEmpty(args[1:]); err != nil {
		return err
	}
	if c.scope == "" {
		return errors.New("--scope is required")
	}
	if c.assignmentID == "" {
		return errors.New("--assignment is required")
	}
	category, err := coreexemption.ParseCategory(c.category)
	if err != nil {
		return errors.Trace(err)
	}
	if c.expires != "" && c.days != 0 {
		return errors.New("--expires and --days cannot be used together")
	}
	if c.days < 0 {
		return errors.NotValidf("--days %d", c.days)
	}
	metadata, err := c.metadata.Map()
	if err != nil {
		return errors.Annotate(err, "--meta")
	}
	c.record = coreexemption.Record{
		Name:         c.name,
		Scope:        c.scope,
		AssignmentID: c.assignmentID,
		Category:     category,
		DisplayName:  c.displayName,
		Description:  c.description,
		ReferenceIDs: c.referenceIDs,
		Metadata:     metadata,
	}
	if c.expires != "" {
		expiry, err := coreexemption.ParseExpiry(c.expires)
		if err != nil {
			return errors.Annotate(err, "--expires")
		}
		c.record.ExpiresOn = &expiry
	}
	return errors.Trace(c.record.Validate())
}

// Run implements Command.Run.
func (c *createCommand) Run(ctx *cmd.Context) error {
	m, err := c.manager(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	r := c.record
	if c.days > 0 {
		expiry := m.ExpiresIn(c.days)
		r.ExpiresOn = &expiry
	}
	if r.ExpiresOn == nil {
		ctx.Warningf("exemption %q has no expiry", r.Name)
	}
	created, err := m.Create(ctx, r)
	if err != nil {
		return errors.Trace(err)
	}
	expires := "never"
	if created.ExpiresOn != nil {
		expires = created.ExpiresOn.UTC().Format(time.RFC3339)
	}
	ctx.Infof("Created exemption %q (%s) at %s, expires %s", created.Name, created.Category, created.Scope, expires)
	return nil
}
