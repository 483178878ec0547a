// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package initiative_test

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/azops/cmd/azops/initiative"
	"github.com/juju/azops/internal/cmd/cmdtesting"
	coreinitiative "github.com/juju/azops/internal/initiative"
)

const document = `{
  "id": "/providers/Microsoft.Authorization/policySetDefinitions/89c6cddc-1c73-4ac1-b19c-54d1a15a42f2",
  "name": "89c6cddc-1c73-4ac1-b19c-54d1a15a42f2",
  "properties": {
    "displayName": "ISO 27001:2013",
    "version": "4.0.0",
    "policyDefinitions": [
      {"policyDefinitionId": "/providers/Microsoft.Authorization/policyDefinitions/a"},
      {"policyDefinitionId": "/providers/Microsoft.Authorization/policyDefinitions/b"}
    ]
  }
}`

type deploySuite struct {
	testing.IsolationSuite

	api *fakeSetDefinitionsAPI
	dir string
}

var _ = gc.Suite(&deploySuite{})

func (s *deploySuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.api = newFakeSetDefinitionsAPI()
	s.dir = c.MkDir()
}

func (s *deploySuite) writeDocument(c *gc.C, content string) string {
	path := filepath.Join(s.dir, "iso27001.json")
	c.Assert(os.WriteFile(path, []byte(content), 0600), jc.ErrorIsNil)
	return path
}

func (s *deploySuite) TestInit(c *gc.C) {
	for i, test := range []struct {
		args []string
		err  string
	}{
		{args: nil, err: "no policy set document specified"},
		{args: []string{"doc.json"}, err: "no initiative name specified"},
		{args: []string{"doc.json", "bad/name"}, err: `initiative name "bad/name" containing '/' not valid`},
		{args: []string{"doc.json", "ok", "extra"}, err: `unrecognized args: \["extra"\]`},
	} {
		c.Logf("test %d: %v", i, test.args)
		err := cmdtesting.InitCommand(initiative.NewDeployCommandForTest(s.api, ""), test.args)
		c.Check(err, gc.ErrorMatches, test.err)
	}
}

func (s *deploySuite) TestDeploy(c *gc.C) {
	path := s.writeDocument(c, document)

	ctx, err := cmdtesting.RunCommand(c, initiative.NewDeployCommandForTest(s.api, "sub-id"),
		"--display-name", "ISO 27001 (Contoso)", "--version", "4.1.0", path, "iso27001-contoso")
	c.Assert(err, jc.ErrorIsNil)

	s.api.CheckCallNames(c, "CreateOrUpdate")
	call := s.api.Calls()[0]
	c.Check(call.Args[0], gc.Equals, "iso27001-contoso")
	doc := call.Args[1].(*coreinitiative.Document)
	c.Check(doc.Properties.PolicyType, gc.Equals, coreinitiative.PolicyTypeCustom)
	c.Check(doc.Properties.DisplayName, gc.Equals, "ISO 27001 (Contoso)")
	c.Check(doc.Properties.Version, gc.Equals, "4.1.0")
	c.Check(doc.Properties.Metadata["source"], gc.Equals, "/providers/Microsoft.Authorization/policySetDefinitions/89c6cddc-1c73-4ac1-b19c-54d1a15a42f2")

	stdout := cmdtesting.Stdout(ctx)
	c.Check(stdout, jc.HasPrefix, `Initiative "ISO 27001 (Contoso)" deployed with 2 policy definitions.`+"\n")
	c.Check(stdout, jc.Contains, "--scope /subscriptions/sub-id\n")
	c.Check(cmdtesting.Stderr(ctx), jc.Contains, `Deploying initiative "iso27001-contoso"...`)
}

func (s *deploySuite) TestDeployJSON(c *gc.C) {
	path := s.writeDocument(c, document)

	ctx, err := cmdtesting.RunCommand(c, initiative.NewDeployCommandForTest(s.api, "sub-id"),
		"--format", "json", path, "iso27001-contoso")
	c.Assert(err, jc.ErrorIsNil)

	var result coreinitiative.Result
	c.Assert(json.Unmarshal([]byte(cmdtesting.Stdout(ctx)), &result), jc.ErrorIsNil)
	c.Check(result, jc.DeepEquals, coreinitiative.Result{
		ID:          "/subscriptions/sub-id/providers/Microsoft.Authorization/policySetDefinitions/iso27001-contoso",
		Name:        "iso27001-contoso",
		DisplayName: "ISO 27001:2013",
		Version:     "4.0.0",
		Policies:    2,
	})
}

func (s *deploySuite) TestDeployInvalidDocument(c *gc.C) {
	path := s.writeDocument(c, `{"properties": {"displayName": "empty"}}`)

	_, err := cmdtesting.RunCommand(c, initiative.NewDeployCommandForTest(s.api, ""), path, "empty")
	c.Assert(err, gc.ErrorMatches, `policy set document ".*": document without properties.policyDefinitions not valid`)
	c.Check(errors.Is(err, errors.NotValid), jc.IsTrue)
	s.api.CheckNoCalls(c)
}

func (s *deploySuite) TestDeployMissingDocument(c *gc.C) {
	_, err := cmdtesting.RunCommand(c, initiative.NewDeployCommandForTest(s.api, ""), "missing.json", "x")
	c.Assert(err, gc.ErrorMatches, `policy set document ".*missing.json" not found`)
	s.api.CheckNoCalls(c)
}

func (s *deploySuite) TestDeployAPIError(c *gc.C) {
	path := s.writeDocument(c, document)
	s.api.SetErrors(errors.Unauthorizedf("AuthorizationFailed (HTTP 403)"))

	_, err := cmdtesting.RunCommand(c, initiative.NewDeployCommandForTest(s.api, ""), path, "iso27001-contoso")
	c.Assert(err, gc.ErrorMatches, `deploying initiative "iso27001-contoso": AuthorizationFailed \(HTTP 403\)`)
}

type exportSuite struct {
	testing.IsolationSuite

	api *fakeSetDefinitionsAPI
}

var _ = gc.Suite(&exportSuite{})

func (s *exportSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.api = newFakeSetDefinitionsAPI()
	doc, err := coreinitiative.ParseDocument([]byte(document))
	c.Assert(err, jc.ErrorIsNil)
	s.api.builtIn = doc
}

func (s *exportSuite) TestExport(c *gc.C) {
	ctx := cmdtesting.Context(c)
	err := cmdtesting.RunCommandWithContext(ctx, initiative.NewExportCommandForTest(s.api),
		"89c6cddc-1c73-4ac1-b19c-54d1a15a42f2", "iso27001.json")
	c.Assert(err, jc.ErrorIsNil)
	s.api.CheckCall(c, 0, "GetBuiltIn", "89c6cddc-1c73-4ac1-b19c-54d1a15a42f2")

	data, err := os.ReadFile(filepath.Join(ctx.Dir, "iso27001.json"))
	c.Assert(err, jc.ErrorIsNil)
	doc, err := coreinitiative.ParseDocument(data)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(doc.Properties.PolicyDefinitions, gc.HasLen, 2)
	c.Check(cmdtesting.Stderr(ctx), gc.Equals, `Exported "ISO 27001:2013" (2 policy definitions) to iso27001.json`+"\n")
}

func (s *exportSuite) TestExportNotFound(c *gc.C) {
	s.api.SetErrors(errors.NotFoundf("built-in policy set definition %q", "nope"))

	_, err := cmdtesting.RunCommand(c, initiative.NewExportCommandForTest(s.api), "nope", "out.json")
	c.Assert(err, gc.ErrorMatches, `fetching built-in initiative "nope": built-in policy set definition "nope" not found`)
}

func (s *exportSuite) TestInit(c *gc.C) {
	err := cmdtesting.InitCommand(initiative.NewExportCommandForTest(s.api), []string{"name"})
	c.Check(err, gc.ErrorMatches, "no output file specified")
}
