// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package initiative

import (
	"fmt"
	"io"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/azops/cmd/azops/azopscmd"
	"github.com/juju/azops/internal/cmd"
	coreinitiative "github.com/juju/azops/internal/initiative"
)

const deployDoc = `
Deploy a custom policy initiative (policy set definition) at subscription
scope from a policy set document. The document is usually a built-in
regulatory compliance initiative written by export-initiative, trimmed or
adjusted as needed.

The document must hold a non-empty properties.policyDefinitions list and
every entry needs a policyDefinitionId. Parameters, groups and per-policy
parameter values are submitted unchanged.

Deploying again with the same name updates the initiative. The initiative
is not assigned; the command prints the steps to do so.
`

const deployExamples = `
    azops deploy-initiative iso27001.json iso27001-custom
    azops deploy-initiative --display-name "ISO 27001 (Contoso)" --version 1.1.0 iso27001.json iso27001-contoso
`

// NewDeployCommand returns a command that deploys a custom initiative.
func NewDeployCommand() cmd.Command {
	return &deployCommand{}
}

type deployCommand struct {
	azopscmd.CommandBase
	out cmd.Output

	newAPIFunc func(ctx *cmd.Context) (coreinitiative.SetDefinitionsAPI, error)

	documentPath string
	name         string
	displayName  string
	description  string
	category     string
	version      string

	subscriptionID string
}

// Info implements Command.Info.
func (c *deployCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "deploy-initiative",
		Args:     "<document.json> <name>",
		Purpose:  "Deploy a custom policy initiative from a policy set document.",
		Doc:      deployDoc,
		Examples: deployExamples,
		SeeAlso:  []string{"export-initiative", "create-exemption"},
	}
}

// SetFlags implements Command.SetFlags.
func (c *deployCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.displayName, "display-name", "", "Display name of the initiative (default: from the document)")
	f.StringVar(&c.description, "description", "", "Description of the initiative (default: from the document)")
	f.StringVar(&c.category, "category", coreinitiative.DefaultCategory, "Category recorded in the initiative metadata")
	f.StringVar(&c.version, "version", "", "Version of the initiative (default: from the document)")
	c.out.AddFlags(f, "summary", map[string]cmd.Formatter{
		"summary": c.formatSummary,
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
	})
}

// Init implements Command.Init.
func (c *deployCommand) Init(args []string) error {
	switch len(args) {
	case 0:
		return errors.New("no policy set document specified")
	case 1:
		return errors.New("no initiative name specified")
	}
	c.documentPath, c.name = args[0], args[1]
	if err := coreinitiative.ValidateName(c.name); err != nil {
		return errors.Trace(err)
	}
	return cmd.CheckEmpty(args[2:])
}

// Run implements Command.Run.
func (c *deployCommand) Run(ctx *cmd.Context) error {
	doc, err := coreinitiative.ReadDocument(ctx.AbsPath(c.documentPath))
	if err != nil {
		return errors.Trace(err)
	}
	ctx.Verbosef("Read %d policy definitions from %s", len(doc.Properties.PolicyDefinitions), c.documentPath)

	newAPI := c.newAPIFunc
	if newAPI == nil {
		newAPI = c.setDefinitionsAPI
	}
	api, err := newAPI(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("Deploying initiative %q...", c.name)
	result, err := coreinitiative.NewDeployer(api).Deploy(ctx, coreinitiative.DeployParams{
		Document:    doc,
		Name:        c.name,
		DisplayName: c.displayName,
		Description: c.description,
		Category:    c.category,
		Version:     c.version,
	})
	if err != nil {
		return errors.Trace(err)
	}
	return c.out.Write(ctx, result)
}

func (c *deployCommand) setDefinitionsAPI(ctx *cmd.Context) (coreinitiative.SetDefinitionsAPI, error) {
	factory, err := c.ClientFactory(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	c.subscriptionID = factory.SubscriptionID()
	return factory.SetDefinitions()
}

func (c *deployCommand) formatSummary(w io.Writer, value interface{}) error {
	result, ok := value.(*coreinitiative.Result)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", result, value)
	}
	fmt.Fprintf(w, "Initiative %q deployed with %d policy definitions.\n", result.DisplayName, result.Policies)
	fmt.Fprintf(w, "ID: %s\n", result.ID)
	if result.Version != "" {
		fmt.Fprintf(w, "Version: %s\n", result.Version)
	}
	fmt.Fprintln(w)
	_, err := io.WriteString(w, coreinitiative.NextSteps(result, c.subscriptionID))
	return err
}
