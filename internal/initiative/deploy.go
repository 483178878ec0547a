// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package initiative deploys custom policy initiatives cloned from an
// existing (usually built-in) policy set definition.
package initiative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"
)

var logger = loggo.GetLogger("azops.initiative")

//go:generate go run go.uber.org/mock/mockgen -package initiative -destination api_mock_test.go github.com/juju/azops/internal/initiative SetDefinitionsAPI

// SetDefinitionsAPI is the subset of the policy set definitions API used
// to deploy and export initiatives.
type SetDefinitionsAPI interface {
	// CreateOrUpdate creates or replaces the subscription level set
	// definition with the given name.
	CreateOrUpdate(ctx context.Context, name string, doc *Document) (*Document, error)

	// GetBuiltIn returns the built-in set definition with the given name.
	GetBuiltIn(ctx context.Context, name string) (*Document, error)
}

const (
	// PolicyTypeCustom marks a user defined policy set.
	PolicyTypeCustom = "Custom"

	// DefaultCategory is recorded in the metadata of a deployed
	// initiative when no category is given.
	DefaultCategory = "Regulatory Compliance"

	maxNameLength = 64
	invalidChars  = `<>*%&:\?.+/`
)

// DeployParams holds the parameters for Deploy.
type DeployParams struct {
	// Document is the validated source document.
	Document *Document

	// Name is the name of the custom set definition to create.
	Name string

	// DisplayName and Description replace the source values when set.
	DisplayName string
	Description string

	// Category is written to the definition metadata.
	Category string

	// Version overrides the version carried from the source document.
	Version string
}

// Result describes a deployed initiative.
type Result struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"display-name" yaml:"display-name"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Policies    int    `json:"policies" yaml:"policies"`
}

// ValidateName checks name against the rules for set definition names.
func ValidateName(name string) error {
	if name == "" {
		return errors.NotValidf("empty initiative name")
	}
	if len(name) > maxNameLength {
		return errors.NotValidf("initiative name %q longer than %d characters", name, maxNameLength)
	}
	if i := strings.IndexAny(name, invalidChars); i >= 0 {
		return errors.NotValidf("initiative name %q containing %q", name, name[i])
	}
	return nil
}

// Deployer deploys and exports policy initiatives.
type Deployer struct {
	api SetDefinitionsAPI
}

// NewDeployer returns a Deployer using the given API.
func NewDeployer(api SetDefinitionsAPI) *Deployer {
	return &Deployer{api: api}
}

// Deploy registers a custom set definition built from the source
// document. Running it again with the same name updates the definition.
func (d *Deployer) Deploy(ctx context.Context, p DeployParams) (*Result, error) {
	if p.Document == nil {
		return nil, errors.NotValidf("nil document")
	}
	if err := p.Document.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := ValidateName(p.Name); err != nil {
		return nil, errors.Trace(err)
	}
	doc := customDocument(p)
	logger.Infof("deploying initiative %q with %d policy definitions", p.Name, len(doc.Properties.PolicyDefinitions))

	deployed, err := d.api.CreateOrUpdate(ctx, p.Name, doc)
	if err != nil {
		return nil, errors.Annotatef(err, "deploying initiative %q", p.Name)
	}
	result := &Result{
		ID:          deployed.ID,
		Name:        deployed.Name,
		DisplayName: deployed.Properties.DisplayName,
		Version:     doc.Properties.Version,
		Policies:    len(deployed.Properties.PolicyDefinitions),
	}
	if result.Name == "" {
		result.Name = p.Name
	}
	if result.DisplayName == "" {
		result.DisplayName = doc.Properties.DisplayName
	}
	if result.Policies == 0 {
		result.Policies = len(doc.Properties.PolicyDefinitions)
	}
	return result, nil
}

func customDocument(p DeployParams) *Document {
	src := p.Document
	props := src.Properties
	props.PolicyType = PolicyTypeCustom
	if p.DisplayName != "" {
		props.DisplayName = p.DisplayName
	}
	if props.DisplayName == "" {
		props.DisplayName = p.Name
	}
	if p.Description != "" {
		props.Description = p.Description
	}
	if p.Version != "" {
		props.Version = p.Version
	}

	category := p.Category
	if category == "" {
		category = DefaultCategory
	}
	metadata := make(map[string]interface{}, len(props.Metadata)+3)
	for k, v := range props.Metadata {
		metadata[k] = v
	}
	metadata["category"] = category
	if source := src.Source(); source != "" {
		metadata["source"] = source
	}
	if props.Version != "" {
		metadata["version"] = props.Version
	}
	props.Metadata = metadata

	refs := make([]Reference, len(props.PolicyDefinitions))
	copy(refs, props.PolicyDefinitions)
	props.PolicyDefinitions = refs

	return &Document{Properties: props}
}

// Export fetches the built-in initiative with the given name and writes
// it as a document to path.
func (d *Deployer) Export(ctx context.Context, name, path string) (*Document, error) {
	doc, err := d.api.GetBuiltIn(ctx, name)
	if err != nil {
		return nil, errors.Annotatef(err, "fetching built-in initiative %q", name)
	}
	if err := doc.Validate(); err != nil {
		return nil, errors.Annotatef(err, "built-in initiative %q", name)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Trace(err)
	}
	data = append(data, '\n')
	if err := utils.AtomicWriteFile(path, data, 0644); err != nil {
		return nil, errors.Annotatef(err, "writing %q", path)
	}
	logger.Debugf("exported %q to %q", name, path)
	return doc, nil
}

// NextSteps returns the manual instructions that follow a deployment.
// Assigning the initiative and monitoring compliance are left to the
// operator.
func NextSteps(r *Result, subscriptionID string) string {
	var buf bytes.Buffer
	scope := "/subscriptions/<subscription-id>"
	if subscriptionID != "" {
		scope = "/subscriptions/" + subscriptionID
	}
	fmt.Fprintf(&buf, "Next steps:\n")
	fmt.Fprintf(&buf, "  1. Assign the initiative to a scope:\n")
	fmt.Fprintf(&buf, "       az policy assignment create --name %s-assignment \\\n", r.Name)
	fmt.Fprintf(&buf, "         --policy-set-definition %s --scope %s\n", r.Name, scope)
	fmt.Fprintf(&buf, "  2. Trigger a compliance scan:\n")
	fmt.Fprintf(&buf, "       az policy state trigger-scan\n")
	fmt.Fprintf(&buf, "  3. Review compliance in the portal or with:\n")
	fmt.Fprintf(&buf, "       az policy state summarize --policy-set-definition %s\n", r.Name)
	fmt.Fprintf(&buf, "  4. Record exemptions for accepted deviations with \"azops create-exemption\".\n")
	return buf.String()
}
