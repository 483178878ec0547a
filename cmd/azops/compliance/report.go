// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package compliance

import (
	"fmt"
	"io"

	"github.com/juju/ansiterm"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/azops/cmd/azops/azopscmd"
	"github.com/juju/azops/internal/cmd"
	"github.com/juju/azops/internal/cmd/output"
	corecompliance "github.com/juju/azops/internal/compliance"
)

const reportDoc = `
Report the latest compliance of the resources evaluated against a policy
assignment, such as one of a deployed initiative. The assignment is given
by resource id, or by name for an assignment made at the subscription.

The tabular format prints a summary, the policies with non-compliant
resources and a line per resource and policy, non-compliant first. The
yaml and json formats carry the same report. The csv format writes one
row per state.
`

const reportExamples = `
    azops compliance iso27001
    azops compliance iso27001 --resource-group rg-app --non-compliant
    azops compliance /subscriptions/<id>/providers/Microsoft.Authorization/policyAssignments/iso27001 --format csv -o iso.csv
`

// APIFunc returns the policy states API used by the compliance command.
type APIFunc func(ctx *cmd.Context) (corecompliance.StatesAPI, error)

// NewReportCommand returns a command that reports the compliance of a
// policy assignment.
func NewReportCommand() cmd.Command {
	return &reportCommand{}
}

type reportCommand struct {
	azopscmd.CommandBase
	out cmd.Output

	newAPIFunc APIFunc
	clock      clock.Clock

	assignment string
	query      corecompliance.Query
}

// Info implements Command.Info.
func (c *reportCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "compliance",
		Args:     "<assignment>",
		Purpose:  "Report the compliance of a policy assignment.",
		Doc:      reportDoc,
		Examples: reportExamples,
		Aliases:  []string{"policy-compliance"},
		SeeAlso:  []string{"deploy-initiative", "exemptions"},
	}
}

// SetFlags implements Command.SetFlags.
func (c *reportCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.query.ResourceGroup, "resource-group", "", "Only report resources of this resource group")
	f.BoolVar(&c.query.NonCompliantOnly, "non-compliant", false, "Only report non-compliant states")
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"tabular": formatTabular,
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"csv":     formatCSV,
	})
}

// Init implements Command.Init.
func (c *reportCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no policy assignment specified")
	}
	c.assignment, args = args[0], args[1:]
	return cmd.CheckEmpty(args)
}

// Run implements Command.Run.
func (c *reportCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.Config(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if c.query.AssignmentID, err = corecompliance.AssignmentID(cfg.SubscriptionID, c.assignment); err != nil {
		return errors.Trace(err)
	}
	newAPI := c.newAPIFunc
	if newAPI == nil {
		newAPI = c.azureAPI
	}
	api, err := newAPI(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	report, err := corecompliance.NewReporter(api, c.now()).Report(ctx, c.query)
	if err != nil {
		return errors.Trace(err)
	}
	if len(report.States) == 0 && c.out.Name() == "tabular" {
		ctx.Infof("No policy states to report.")
		return nil
	}
	return errors.Trace(c.out.Write(ctx, report))
}

func (c *reportCommand) now() clock.Clock {
	if c.clock == nil {
		return clock.WallClock
	}
	return c.clock
}

func (c *reportCommand) azureAPI(ctx *cmd.Context) (corecompliance.StatesAPI, error) {
	factory, err := c.ClientFactory(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	api, err := factory.PolicyStates()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return api, nil
}

func formatCSV(writer io.Writer, value interface{}) error {
	report, ok := value.(*corecompliance.Report)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", report, value)
	}
	return corecompliance.WriteStatesCSV(writer, report.States)
}

func formatTabular(writer io.Writer, value interface{}) error {
	report, ok := value.(*corecompliance.Report)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", report, value)
	}
	sum := report.Summary
	w := output.Wrapper{TabWriter: output.TabWriter(writer)}
	w.Println("Assignment:", report.AssignmentID)
	if report.ResourceGroup != "" {
		w.Println("Resource group:", report.ResourceGroup)
	}
	w.Print("Resources:")
	w.PrintColor(percentColor(sum), fmt.Sprintf("%.1f%% compliant", sum.CompliantPercent))
	w.Println(fmt.Sprintf("(%d of %d non-compliant)", sum.NonCompliantResources, sum.Resources))
	w.Println("States:", fmt.Sprintf("%d compliant, %d non-compliant, %d exempt, %d other",
		sum.Compliant, sum.NonCompliant, sum.Exempt, sum.Other))
	w.Println()

	if sum.NonCompliant > 0 {
		w.Println("Policy", "Non-compliant", "Evaluated")
		for _, p := range sum.Policies {
			if p.NonCompliant == 0 {
				continue
			}
			w.Println(p.Policy, p.NonCompliant, p.Total)
		}
		w.Println()
	}

	w.Println("Resource", "Group", "Policy", "State")
	for _, s := range report.States {
		w.Print(s.ResourceName(), s.ResourceGroup, s.Policy())
		w.PrintColor(stateColor(s.Compliance), s.Compliance)
		w.Println()
	}
	return errors.Trace(w.Flush())
}

func stateColor(state string) *ansiterm.Context {
	switch state {
	case corecompliance.StateNonCompliant:
		return output.ErrorHighlight
	case corecompliance.StateConflict, corecompliance.StateUnknown:
		return output.WarningHighlight
	case corecompliance.StateCompliant:
		return output.GoodHighlight
	}
	return nil
}

func percentColor(sum corecompliance.Summary) *ansiterm.Context {
	if sum.NonCompliantResources == 0 {
		return output.GoodHighlight
	}
	return output.ErrorHighlight
}
