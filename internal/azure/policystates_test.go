// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/azops/internal/azure/azuretesting"
	"github.com/juju/azops/internal/compliance"
)

type policyStatesSuite struct {
	baseSuite

	api *PolicyStates
}

var _ = gc.Suite(&policyStatesSuite{})

const (
	isoAssignment   = "/subscriptions/sub-id/providers/Microsoft.Authorization/policyAssignments/iso27001"
	statesQueryPath = "/subscriptions/sub-id/providers/Microsoft.PolicyInsights/policyStates/latest/queryResults"
)

const firstStatesPage = `{
  "@odata.context": "https://management.azure.com/subscriptions/sub-id/providers/Microsoft.PolicyInsights/policyStates/$metadata#latest",
  "@odata.count": 1,
  "@odata.nextLink": "https://management.azure.com/subscriptions/sub-id/providers/Microsoft.PolicyInsights/policyStates/latest/queryResults?api-version=2019-10-01&$skiptoken=page2",
  "value": [
    {
      "timestamp": "2026-01-01T10:30:00Z",
      "resourceId": "/subscriptions/sub-id/resourceGroups/rg-app/providers/Microsoft.Compute/virtualMachines/vm1",
      "resourceType": "Microsoft.Compute/virtualMachines",
      "resourceGroup": "rg-app",
      "policyAssignmentId": "/subscriptions/sub-id/providers/Microsoft.Authorization/policyAssignments/iso27001",
      "policyDefinitionId": "/providers/Microsoft.Authorization/policyDefinitions/0961003e-5a0a-4549-abde-af6a37f2724d",
      "policyDefinitionReferenceId": "diskEncryption",
      "complianceState": "NonCompliant",
      "isCompliant": false
    }
  ]
}`

const lastStatesPage = `{
  "value": [
    {
      "timestamp": "2026-01-01T10:31:00Z",
      "resourceId": "/subscriptions/sub-id/resourceGroups/rg-web/providers/Microsoft.Web/sites/web1",
      "resourceType": "Microsoft.Web/sites",
      "resourceGroup": "rg-web",
      "policyAssignmentId": "/subscriptions/sub-id/providers/Microsoft.Authorization/policyAssignments/iso27001",
      "policyDefinitionId": "/providers/Microsoft.Authorization/policyDefinitions/22730e10-96f6-4aac-ad84-9383d35b5917",
      "complianceState": "Compliant"
    }
  ]
}`

func (s *policyStatesSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	var err error
	s.api, err = s.factory.PolicyStates()
	c.Assert(err, jc.ErrorIsNil)
}

func (s *policyStatesSuite) query(c *gc.C, i int) url.Values {
	q, err := url.ParseQuery(s.request(c, i).Query)
	c.Assert(err, jc.ErrorIsNil)
	return q
}

func (s *policyStatesSuite) TestLatestStatesAllPages(c *gc.C) {
	s.sender.AppendResponse(azuretesting.NewResponseWithContent(firstStatesPage))
	s.sender.AppendResponse(azuretesting.NewResponseWithContent(lastStatesPage))

	states, err := s.api.LatestStates(context.Background(), compliance.Query{AssignmentID: isoAssignment})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(states, jc.DeepEquals, []compliance.State{{
		ResourceID:    "/subscriptions/sub-id/resourceGroups/rg-app/providers/Microsoft.Compute/virtualMachines/vm1",
		ResourceType:  "Microsoft.Compute/virtualMachines",
		ResourceGroup: "rg-app",
		ReferenceID:   "diskEncryption",
		DefinitionID:  "/providers/Microsoft.Authorization/policyDefinitions/0961003e-5a0a-4549-abde-af6a37f2724d",
		Compliance:    compliance.StateNonCompliant,
		Timestamp:     time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC),
	}, {
		ResourceID:    "/subscriptions/sub-id/resourceGroups/rg-web/providers/Microsoft.Web/sites/web1",
		ResourceType:  "Microsoft.Web/sites",
		ResourceGroup: "rg-web",
		DefinitionID:  "/providers/Microsoft.Authorization/policyDefinitions/22730e10-96f6-4aac-ad84-9383d35b5917",
		Compliance:    compliance.StateCompliant,
		Timestamp:     time.Date(2026, 1, 1, 10, 31, 0, 0, time.UTC),
	}})

	c.Assert(s.sender.Requests(), gc.HasLen, 2)
	req := s.request(c, 0)
	c.Check(req.Method, gc.Equals, http.MethodPost)
	c.Check(req.Path, gc.Equals, statesQueryPath)
	q := s.query(c, 0)
	c.Check(q.Get("api-version"), gc.Equals, "2019-10-01")
	c.Check(q.Get("$filter"), gc.Equals, "PolicyAssignmentId eq '"+isoAssignment+"'")

	next := s.request(c, 1)
	c.Check(next.Method, gc.Equals, http.MethodPost)
	c.Check(next.Path, gc.Equals, statesQueryPath)
	c.Check(s.query(c, 1).Get("$skiptoken"), gc.Equals, "page2")
}

func (s *policyStatesSuite) TestLatestStatesResourceGroupNonCompliant(c *gc.C) {
	s.sender.AppendResponse(azuretesting.NewResponseWithContent(`{"value": []}`))

	states, err := s.api.LatestStates(context.Background(), compliance.Query{
		AssignmentID:     isoAssignment,
		ResourceGroup:    "rg-app",
		NonCompliantOnly: true,
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(states, gc.HasLen, 0)

	req := s.request(c, 0)
	c.Check(req.Path, gc.Equals, "/subscriptions/sub-id/resourceGroups/rg-app/providers/Microsoft.PolicyInsights/policyStates/latest/queryResults")
	c.Check(s.query(c, 0).Get("$filter"), gc.Equals,
		"PolicyAssignmentId eq '"+isoAssignment+"' and ComplianceState eq 'NonCompliant'")
}

func (s *policyStatesSuite) TestStatesFilterQuotes(c *gc.C) {
	c.Check(statesFilter(compliance.Query{AssignmentID: "/a/it's"}), gc.Equals, "PolicyAssignmentId eq '/a/it''s'")
}

func (s *policyStatesSuite) TestLatestStatesUnauthorized(c *gc.C) {
	s.sender.AppendResponse(azuretesting.NewErrorResponse(http.StatusForbidden, "AuthorizationFailed", "denied"))

	_, err := s.api.LatestStates(context.Background(), compliance.Query{AssignmentID: isoAssignment})
	c.Check(err, gc.ErrorMatches, `policy states of ".*/iso27001": AuthorizationFailed \(HTTP 403\)`)
	c.Check(errors.Is(err, errors.Unauthorized), jc.IsTrue)
}

func (s *policyStatesSuite) TestLatestStatesInvalidQuery(c *gc.C) {
	_, err := s.api.LatestStates(context.Background(), compliance.Query{})
	c.Check(err, gc.ErrorMatches, "empty assignment id not valid")
	c.Check(s.sender.Requests(), gc.HasLen, 0)
}
