// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/juju/errors"

	"github.com/juju/azops/internal/compliance"
)

const policyStatesAPIVersion = "2019-10-01"

var _ compliance.StatesAPI = (*PolicyStates)(nil)

// PolicyStates implements compliance.StatesAPI with the Policy Insights
// latest policy states query for one subscription.
type PolicyStates struct {
	subscriptionID string
	client         *rawClient
}

func newPolicyStates(subscriptionID string, credential azcore.TokenCredential, options *arm.ClientOptions) (*PolicyStates, error) {
	client, err := newRawClient(policyStatesAPIVersion, credential, options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &PolicyStates{subscriptionID: subscriptionID, client: client}, nil
}

type policyState struct {
	Timestamp                   *time.Time `json:"timestamp"`
	ResourceID                  string     `json:"resourceId"`
	ResourceType                string     `json:"resourceType"`
	ResourceGroup               string     `json:"resourceGroup"`
	PolicyAssignmentID          string     `json:"policyAssignmentId"`
	PolicyDefinitionID          string     `json:"policyDefinitionId"`
	PolicyDefinitionReferenceID string     `json:"policyDefinitionReferenceId"`
	ComplianceState             string     `json:"complianceState"`
}

type policyStatesPage struct {
	NextLink *string       `json:"@odata.nextLink"`
	Value    []policyState `json:"value"`
}

// statesFilter returns the OData filter selecting the states of q.
func statesFilter(q compliance.Query) string {
	filter := "PolicyAssignmentId eq '" + strings.ReplaceAll(q.AssignmentID, "'", "''") + "'"
	if q.NonCompliantOnly {
		filter += " and ComplianceState eq '" + compliance.StateNonCompliant + "'"
	}
	return filter
}

func (p *PolicyStates) queryURL(q compliance.Query) string {
	path := "/subscriptions/" + url.PathEscape(p.subscriptionID)
	if q.ResourceGroup != "" {
		path += "/resourceGroups/" + url.PathEscape(q.ResourceGroup)
	}
	path += "/providers/Microsoft.PolicyInsights/policyStates/latest/queryResults"
	return p.client.resourceURL(path, url.Values{"$filter": {statesFilter(q)}})
}

// LatestStates is part of compliance.StatesAPI. Every page of the
// query is read.
func (p *PolicyStates) LatestStates(ctx context.Context, q compliance.Query) ([]compliance.State, error) {
	if err := q.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	first := p.queryURL(q)
	pager := runtime.NewPager(runtime.PagingHandler[policyStatesPage]{
		More: func(page policyStatesPage) bool {
			return page.NextLink != nil && *page.NextLink != ""
		},
		Fetcher: func(ctx context.Context, current *policyStatesPage) (policyStatesPage, error) {
			endpoint := first
			if current != nil {
				endpoint = *current.NextLink
			}
			var page policyStatesPage
			err := p.client.send(ctx, http.MethodPost, endpoint, nil, &page)
			return page, err
		},
		Tracer: p.client.client.Tracer(),
	})

	var states []compliance.State
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, apiError(err, "policy states of %q", q.AssignmentID)
		}
		for _, s := range page.Value {
			states = append(states, toState(s))
		}
	}
	logger.Tracef("read %d policy states of %q", len(states), q.AssignmentID)
	return states, nil
}

func toState(s policyState) compliance.State {
	return compliance.State{
		ResourceID:    s.ResourceID,
		ResourceType:  s.ResourceType,
		ResourceGroup: s.ResourceGroup,
		ReferenceID:   s.PolicyDefinitionReferenceID,
		DefinitionID:  s.PolicyDefinitionID,
		Compliance:    s.ComplianceState,
		Timestamp:     deref(s.Timestamp),
	}
}
