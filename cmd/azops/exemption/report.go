// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package exemption

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/ansiterm"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/azops/internal/cmd"
	"github.com/juju/azops/internal/cmd/output"
	coreexemption "github.com/juju/azops/internal/exemption"
)

const reportDoc = `
List the policy exemptions of the subscription, or of one resource group,
ordered by expiry. Each exemption is classified as EXPIRED, EXPIRING SOON
(within the expiry window, 30 days unless configured), ACTIVE or
NO EXPIRY. Use --expiring to list only the expired and soon expiring
exemptions.

The csv format writes the same columns read by remove-exemptions, so a
report of expired exemptions can be fed back to remove them.
`

const reportExamples = `
    azops exemptions
    azops exemptions --resource-group rg-legacy --expiring
    azops exemptions --expiring --format csv -o expired.csv
`

// NewReportCommand returns a command that reports exemptions and their
// expiry status.
func NewReportCommand() cmd.Command {
	return &reportCommand{}
}

type reportCommand struct {
	exemptionCommandBase
	out cmd.Output

	params coreexemption.ReportParams
}

// Info implements Command.Info.
func (c *reportCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "exemptions",
		Purpose:  "Report policy exemptions and their expiry status.",
		Doc:      reportDoc,
		Examples: reportExamples,
		Aliases:  []string{"list-exemptions"},
		SeeAlso:  []string{"create-exemption", "remove-exemptions"},
	}
}

// SetFlags implements Command.SetFlags.
func (c *reportCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.params.ResourceGroup, "resource-group", "", "Only report exemptions of this resource group")
	f.BoolVar(&c.params.ExpiringOnly, "expiring", false, "Only report expired and expiring-soon exemptions")
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"tabular": c.formatTabular,
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"csv":     formatCSV,
	})
}

// Init implements Command.Init.
func (c *reportCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements Command.Run.
func (c *reportCommand) Run(ctx *cmd.Context) error {
	m, err := c.manager(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	entries, err := m.Report(ctx, c.params)
	if err != nil {
		return errors.Trace(err)
	}
	if len(entries) == 0 && c.out.Name() == "tabular" {
		ctx.Infof("No exemptions to report.")
		return nil
	}
	return errors.Trace(c.out.Write(ctx, entries))
}

func formatCSV(writer io.Writer, value interface{}) error {
	entries, ok := value.([]coreexemption.ReportEntry)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", entries, value)
	}
	return coreexemption.WriteReportCSV(writer, entries)
}

func (c *reportCommand) formatTabular(writer io.Writer, value interface{}) error {
	entries, ok := value.([]coreexemption.ReportEntry)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", entries, value)
	}
	now := c.now().Now()
	w := output.Wrapper{TabWriter: output.TabWriter(writer)}
	w.Println("Name", "Category", "Status", "Expires", "Scope")
	for _, e := range entries {
		w.Print(e.Name, e.Category)
		w.PrintColor(statusColor(e.Status), e.Status)
		w.Println(expiry(e.ExpiresOn, now), e.Scope)
	}
	return errors.Trace(w.Flush())
}

func statusColor(status coreexemption.Status) *ansiterm.Context {
	switch status {
	case coreexemption.StatusExpired:
		return output.ErrorHighlight
	case coreexemption.StatusExpiringSoon:
		return output.WarningHighlight
	case coreexemption.StatusActive:
		return output.GoodHighlight
	}
	return nil
}

func expiry(expiresOn *time.Time, now time.Time) string {
	if expiresOn == nil {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", expiresOn.UTC().Format(time.DateOnly), humanize.RelTime(*expiresOn, now, "ago", "from now"))
}
