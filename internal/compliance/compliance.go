// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package compliance reports how the resources evaluated against a
// policy assignment comply with it.
package compliance

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("azops.compliance")

//go:generate go run go.uber.org/mock/mockgen -package compliance -destination api_mock_test.go github.com/juju/azops/internal/compliance StatesAPI

// Compliance states reported by Azure Policy.
const (
	StateCompliant    = "Compliant"
	StateNonCompliant = "NonCompliant"
	StateExempt       = "Exempt"
	StateConflict     = "Conflict"
	StateUnknown      = "Unknown"
)

const assignmentsProvider = "/providers/microsoft.authorization/policyassignments/"

// AssignmentID returns the resource id of a policy assignment given
// either its id or, for an assignment made at the subscription, its
// name.
func AssignmentID(subscriptionID, nameOrID string) (string, error) {
	nameOrID = strings.TrimSpace(nameOrID)
	switch {
	case nameOrID == "":
		return "", errors.NotValidf("empty policy assignment")
	case strings.HasPrefix(nameOrID, "/"):
		if !strings.Contains(strings.ToLower(nameOrID), assignmentsProvider) {
			return "", errors.NotValidf("policy assignment id %q", nameOrID)
		}
		return strings.TrimSuffix(nameOrID, "/"), nil
	case strings.Contains(nameOrID, "/"):
		return "", errors.NotValidf("policy assignment name %q", nameOrID)
	case subscriptionID == "":
		return "", errors.NotValidf("policy assignment name %q without a subscription", nameOrID)
	}
	return "/subscriptions/" + subscriptionID + "/providers/Microsoft.Authorization/policyAssignments/" + nameOrID, nil
}

// State is the latest evaluation of one resource against one policy
// definition of an assignment.
type State struct {
	ResourceID    string    `json:"resource-id" yaml:"resource-id"`
	ResourceType  string    `json:"resource-type" yaml:"resource-type"`
	ResourceGroup string    `json:"resource-group,omitempty" yaml:"resource-group,omitempty"`
	ReferenceID   string    `json:"reference-id,omitempty" yaml:"reference-id,omitempty"`
	DefinitionID  string    `json:"definition-id" yaml:"definition-id"`
	Compliance    string    `json:"compliance" yaml:"compliance"`
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
}

// ResourceName returns the last segment of the resource id.
func (s State) ResourceName() string {
	return s.ResourceID[strings.LastIndex(s.ResourceID, "/")+1:]
}

// Policy names the policy definition within the assignment: its
// reference id when there is one, else the definition's name.
func (s State) Policy() string {
	if s.ReferenceID != "" {
		return s.ReferenceID
	}
	return s.DefinitionID[strings.LastIndex(s.DefinitionID, "/")+1:]
}

// Query selects the states of one assignment.
type Query struct {
	AssignmentID string

	// ResourceGroup restricts the query to resources of one group.
	ResourceGroup string

	// NonCompliantOnly restricts the query to non-compliant states.
	NonCompliantOnly bool
}

// Validate checks the query.
func (q Query) Validate() error {
	if q.AssignmentID == "" {
		return errors.NotValidf("empty assignment id")
	}
	if strings.ContainsAny(q.ResourceGroup, "/'") {
		return errors.NotValidf("resource group %q", q.ResourceGroup)
	}
	return nil
}

// StatesAPI reads the latest policy compliance states.
type StatesAPI interface {
	LatestStates(ctx context.Context, q Query) ([]State, error)
}

// PolicySummary counts the states of one policy definition.
type PolicySummary struct {
	Policy       string `json:"policy" yaml:"policy"`
	DefinitionID string `json:"definition-id" yaml:"definition-id"`
	NonCompliant int    `json:"non-compliant" yaml:"non-compliant"`
	Total        int    `json:"total" yaml:"total"`
}

// Summary counts the states of a report.
type Summary struct {
	Resources             int `json:"resources" yaml:"resources"`
	NonCompliantResources int `json:"non-compliant-resources" yaml:"non-compliant-resources"`

	// CompliantPercent is the share of resources with no non-compliant
	// state, as Azure Policy computes it, to one decimal place.
	CompliantPercent float64 `json:"compliant-percent" yaml:"compliant-percent"`

	Compliant    int `json:"compliant" yaml:"compliant"`
	NonCompliant int `json:"non-compliant" yaml:"non-compliant"`
	Exempt       int `json:"exempt" yaml:"exempt"`
	Other        int `json:"other" yaml:"other"`

	// Policies are ordered by non-compliant count, highest first.
	Policies []PolicySummary `json:"policies" yaml:"policies"`
}

// Summarize counts states by compliance, by resource and by policy.
func Summarize(states []State) Summary {
	var sum Summary
	resources := set.NewStrings()
	nonCompliant := set.NewStrings()
	policies := make(map[string]*PolicySummary)
	for _, s := range states {
		id := strings.ToLower(s.ResourceID)
		resources.Add(id)

		p, ok := policies[s.Policy()]
		if !ok {
			p = &PolicySummary{Policy: s.Policy(), DefinitionID: s.DefinitionID}
			policies[s.Policy()] = p
		}
		p.Total++

		switch s.Compliance {
		case StateCompliant:
			sum.Compliant++
		case StateNonCompliant:
			sum.NonCompliant++
			nonCompliant.Add(id)
			p.NonCompliant++
		case StateExempt:
			sum.Exempt++
		default:
			sum.Other++
		}
	}
	sum.Resources = resources.Size()
	sum.NonCompliantResources = nonCompliant.Size()
	if sum.Resources > 0 {
		pct := 100 * float64(sum.Resources-sum.NonCompliantResources) / float64(sum.Resources)
		sum.CompliantPercent = math.Round(pct*10) / 10
	}
	sum.Policies = make([]PolicySummary, 0, len(policies))
	for _, p := range policies {
		sum.Policies = append(sum.Policies, *p)
	}
	sort.Slice(sum.Policies, func(i, j int) bool {
		a, b := sum.Policies[i], sum.Policies[j]
		if a.NonCompliant != b.NonCompliant {
			return a.NonCompliant > b.NonCompliant
		}
		return a.Policy < b.Policy
	})
	return sum
}

// Report is the compliance of one assignment.
type Report struct {
	AssignmentID  string    `json:"assignment-id" yaml:"assignment-id"`
	ResourceGroup string    `json:"resource-group,omitempty" yaml:"resource-group,omitempty"`
	GeneratedAt   time.Time `json:"generated-at" yaml:"generated-at"`
	Summary       Summary   `json:"summary" yaml:"summary"`
	States        []State   `json:"states" yaml:"states"`
}

// Reporter builds compliance reports.
type Reporter struct {
	api   StatesAPI
	clock clock.Clock
}

// NewReporter returns a Reporter reading states from api.
func NewReporter(api StatesAPI, clock clock.Clock) *Reporter {
	return &Reporter{api: api, clock: clock}
}

// Report reads the latest states selected by q and summarizes them.
// Non-compliant states are listed first, then by resource.
func (r *Reporter) Report(ctx context.Context, q Query) (*Report, error) {
	if err := q.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	states, err := r.api.LatestStates(ctx, q)
	if err != nil {
		return nil, errors.Annotatef(err, "reading compliance of %q", q.AssignmentID)
	}
	sortStates(states)
	logger.Debugf("%d policy states for %q", len(states), q.AssignmentID)
	if states == nil {
		states = []State{}
	}
	return &Report{
		AssignmentID:  q.AssignmentID,
		ResourceGroup: q.ResourceGroup,
		GeneratedAt:   r.clock.Now().UTC(),
		Summary:       Summarize(states),
		States:        states,
	}, nil
}

func sortStates(states []State) {
	sort.SliceStable(states, func(i, j int) bool {
		a, b := states[i], states[j]
		an, bn := a.Compliance == StateNonCompliant, b.Compliance == StateNonCompliant
		if an != bn {
			return an
		}
		if a.ResourceID != b.ResourceID {
			return strings.ToLower(a.ResourceID) < strings.ToLower(b.ResourceID)
		}
		return a.Policy() < b.Policy()
	})
}
