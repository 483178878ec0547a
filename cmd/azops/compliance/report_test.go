// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package compliance_test

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/azops/cmd/azops/compliance"
	"github.com/juju/azops/internal/cmd/cmdtesting"
	corecompliance "github.com/juju/azops/internal/compliance"
)

type reportSuite struct {
	baseSuite
}

var _ = gc.Suite(&reportSuite{})

const (
	assignmentID = "/subscriptions/sub-id/providers/Microsoft.Authorization/policyAssignments/iso27001"
	diskPolicy   = "/providers/Microsoft.Authorization/policyDefinitions/0961003e-5a0a-4549-abde-af6a37f2724d"
	vm1          = "/subscriptions/sub-id/resourceGroups/rg-app/providers/Microsoft.Compute/virtualMachines/vm1"
	vm2          = "/subscriptions/sub-id/resourceGroups/rg-app/providers/Microsoft.Compute/virtualMachines/vm2"
)

func (s *reportSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	evaluated := time.Date(2025, 12, 31, 22, 0, 0, 0, time.UTC)
	s.api.states = []corecompliance.State{{
		ResourceID:    vm1,
		ResourceType:  "Microsoft.Compute/virtualMachines",
		ResourceGroup: "rg-app",
		ReferenceID:   "diskEncryption",
		DefinitionID:  diskPolicy,
		Compliance:    corecompliance.StateCompliant,
		Timestamp:     evaluated,
	}, {
		ResourceID:    vm2,
		ResourceType:  "Microsoft.Compute/virtualMachines",
		ResourceGroup: "rg-app",
		ReferenceID:   "diskEncryption",
		DefinitionID:  diskPolicy,
		Compliance:    corecompliance.StateNonCompliant,
		Timestamp:     evaluated,
	}}
}

func (s *reportSuite) run(c *gc.C, args ...string) (string, error) {
	ctx, err := cmdtesting.RunCommand(c, compliance.NewReportCommandForTest(s.api, s.clock), args...)
	if err != nil {
		return "", err
	}
	return cmdtesting.Stdout(ctx), nil
}

func (s *reportSuite) TestTabular(c *gc.C) {
	out, err := s.run(c, "iso27001", "--subscription", "sub-id")
	c.Assert(err, jc.ErrorIsNil)
	s.api.CheckCall(c, 0, "LatestStates", corecompliance.Query{AssignmentID: assignmentID})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	c.Assert(lines, gc.HasLen, 10)
	c.Check(lines[0], gc.Matches, `Assignment: +`+assignmentID)
	c.Check(lines[1], gc.Matches, `Resources: +50\.0% compliant +\(1 of 2 non-compliant\)`)
	c.Check(lines[2], gc.Matches, `States: +1 compliant, 1 non-compliant, 0 exempt, 0 other`)
	c.Check(lines[4], gc.Matches, `Policy +Non-compliant +Evaluated`)
	c.Check(lines[5], gc.Matches, `diskEncryption +1 +2`)
	c.Check(lines[7], gc.Matches, `Resource +Group +Policy +State`)
	c.Check(lines[8], gc.Matches, `vm2 +rg-app +diskEncryption +NonCompliant\s*`)
	c.Check(lines[9], gc.Matches, `vm1 +rg-app +diskEncryption +Compliant\s*`)
}

func (s *reportSuite) TestResourceGroupNonCompliantJSON(c *gc.C) {
	s.api.states = s.api.states[1:]
	out, err := s.run(c, assignmentID, "--resource-group", "rg-app", "--non-compliant", "--format", "json")
	c.Assert(err, jc.ErrorIsNil)
	s.api.CheckCall(c, 0, "LatestStates", corecompliance.Query{
		AssignmentID:     assignmentID,
		ResourceGroup:    "rg-app",
		NonCompliantOnly: true,
	})

	var report struct {
		AssignmentID  string `json:"assignment-id"`
		ResourceGroup string `json:"resource-group"`
		GeneratedAt   string `json:"generated-at"`
		Summary       struct {
			NonCompliant     int     `json:"non-compliant"`
			CompliantPercent float64 `json:"compliant-percent"`
		} `json:"summary"`
		States []map[string]interface{} `json:"states"`
	}
	c.Assert(json.Unmarshal([]byte(out), &report), jc.ErrorIsNil)
	c.Check(report.AssignmentID, gc.Equals, assignmentID)
	c.Check(report.ResourceGroup, gc.Equals, "rg-app")
	c.Check(report.GeneratedAt, gc.Equals, "2026-01-01T00:00:00Z")
	c.Check(report.Summary.NonCompliant, gc.Equals, 1)
	c.Check(report.Summary.CompliantPercent, gc.Equals, 0.0)
	c.Assert(report.States, gc.HasLen, 1)
	c.Check(report.States[0]["resource-id"], gc.Equals, vm2)
	c.Check(report.States[0]["compliance"], gc.Equals, "NonCompliant")
}

func (s *reportSuite) TestCSV(c *gc.C) {
	out, err := s.run(c, assignmentID, "--format", "csv")
	c.Assert(err, jc.ErrorIsNil)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	c.Assert(lines, gc.HasLen, 3)
	c.Check(lines[0], gc.Equals, strings.Join(corecompliance.StatesHeader, ","))
	c.Check(lines[1], gc.Equals, vm2+",Microsoft.Compute/virtualMachines,rg-app,diskEncryption,"+diskPolicy+",NonCompliant,2025-12-31T22:00:00Z")
	c.Check(lines[2], gc.Matches, vm1+",.*,Compliant,2025-12-31T22:00:00Z")
}

func (s *reportSuite) TestEmpty(c *gc.C) {
	s.api.states = nil
	ctx, err := cmdtesting.RunCommand(c, compliance.NewReportCommandForTest(s.api, s.clock), assignmentID)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cmdtesting.Stdout(ctx), gc.Equals, "")
	c.Check(cmdtesting.Stderr(ctx), gc.Equals, "No policy states to report.\n")
}

func (s *reportSuite) TestNameWithoutSubscription(c *gc.C) {
	_, err := s.run(c, "iso27001")
	c.Check(err, gc.ErrorMatches, `policy assignment name "iso27001" without a subscription not valid`)
	s.api.CheckNoCalls(c)
}

func (s *reportSuite) TestAPIError(c *gc.C) {
	s.api.SetErrors(errors.Unauthorizedf("policy states"))
	_, err := s.run(c, assignmentID)
	c.Check(err, gc.ErrorMatches, `reading compliance of ".*/iso27001": policy states`)
	c.Check(err, jc.ErrorIs, errors.Unauthorized)
}

func (s *reportSuite) TestInit(c *gc.C) {
	command := compliance.NewReportCommandForTest(s.api, s.clock)
	err := cmdtesting.InitCommand(command, nil)
	c.Check(err, gc.ErrorMatches, "no policy assignment specified")
	err = cmdtesting.InitCommand(compliance.NewReportCommandForTest(s.api, s.clock), []string{"a", "b"})
	c.Check(err, gc.ErrorMatches, `unrecognized args: \["b"\]`)
	err = cmdtesting.InitCommand(compliance.NewReportCommandForTest(s.api, s.clock), []string{"a", "--format", "xml"})
	c.Check(err, gc.ErrorMatches, `invalid value "xml" for .*: unknown format "xml"`)
}
