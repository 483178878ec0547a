// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package exemption_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/azops/cmd/azops/exemption"
	"github.com/juju/azops/internal/cmd/cmdtesting"
	coreexemption "github.com/juju/azops/internal/exemption"
)

const importCSV = `Name,Scope,AssignmentId,Category,ExpiresOn,ReferenceIds
waiver-1,/subscriptions/sub-id,` + assignmentID + `,Waiver,2026-06-30,ref-a;ref-b
waiver-2,/subscriptions/sub-id,` + assignmentID + `,Ignore,2026-06-30,
waiver-3,/subscriptions/sub-id,` + assignmentID + `,Mitigated,,
`

type bulkSuite struct {
	baseSuite
}

var _ = gc.Suite(&bulkSuite{})

func (s *bulkSuite) writeCSV(c *gc.C, content string) string {
	path := filepath.Join(c.MkDir(), "exemptions.csv")
	c.Assert(os.WriteFile(path, []byte(content), 0600), jc.ErrorIsNil)
	return path
}

func (s *bulkSuite) TestInit(c *gc.C) {
	for _, newCommand := range []func() error{
		func() error {
			return cmdtesting.InitCommand(exemption.NewImportCommandForTest(s.api, s.api, s.clock), nil)
		},
		func() error {
			return cmdtesting.InitCommand(exemption.NewRemoveAllCommandForTest(s.api, s.api, s.clock), nil)
		},
	} {
		c.Check(newCommand(), gc.ErrorMatches, "no CSV file specified")
	}
	err := cmdtesting.InitCommand(exemption.NewImportCommandForTest(s.api, s.api, s.clock), []string{"a.csv", "b.csv"})
	c.Check(err, gc.ErrorMatches, `unrecognized args: \["b.csv"\]`)
}

func (s *bulkSuite) TestImportContinuesPastFailures(c *gc.C) {
	path := s.writeCSV(c, importCSV)
	s.api.SetErrors(nil, errors.New("boom"))

	ctx, err := cmdtesting.RunCommand(c, exemption.NewImportCommandForTest(s.api, s.api, s.clock), path)
	c.Assert(err, gc.ErrorMatches, "2 of 3 exemptions failed")

	s.api.CheckCallNames(c, "CreateOrUpdate", "CreateOrUpdate")
	first := s.api.Calls()[0].Args[0].(coreexemption.Record)
	c.Check(first.Name, gc.Equals, "waiver-1")
	c.Check(first.ReferenceIDs, jc.DeepEquals, []string{"ref-a", "ref-b"})
	third := s.api.Calls()[1].Args[0].(coreexemption.Record)
	c.Check(third.Name, gc.Equals, "waiver-3")
	c.Check(third.ExpiresOn, gc.IsNil)

	stderr := cmdtesting.Stderr(ctx)
	c.Check(stderr, jc.Contains, "Created line 2: waiver-1\n")
	c.Check(stderr, jc.Contains, `WARNING line 3: waiver-2: exemption category "Ignore"`)
	c.Check(stderr, jc.Contains, "WARNING line 4: waiver-3: creating exemption \"waiver-3\": boom\n")
	c.Check(stderr, jc.Contains, "1 of 3 exemptions created.\n")
}

func (s *bulkSuite) TestImportAllSucceed(c *gc.C) {
	path := s.writeCSV(c, `scope,assignmentId,category
/subscriptions/sub-id,`+assignmentID+`,Waiver
`)
	ctx, err := cmdtesting.RunCommand(c, exemption.NewImportCommandForTest(s.api, s.api, s.clock), path)
	c.Assert(err, jc.ErrorIsNil)

	s.api.CheckCallNames(c, "CreateOrUpdate")
	r := s.api.Calls()[0].Args[0].(coreexemption.Record)
	c.Check(r.Name, gc.Matches, "exemption-[0-9a-f]{8}")
	c.Check(cmdtesting.Stderr(ctx), jc.Contains, "1 of 1 exemptions created.\n")
}

func (s *bulkSuite) TestImportMissingColumn(c *gc.C) {
	path := s.writeCSV(c, "name,scope\nwaiver,/subscriptions/sub-id\n")
	_, err := cmdtesting.RunCommand(c, exemption.NewImportCommandForTest(s.api, s.api, s.clock), path)
	c.Assert(err, gc.ErrorMatches, "reading .*exemptions.csv: .*assignmentid.*")
	s.api.CheckNoCalls(c)
}

func (s *bulkSuite) TestImportMissingFile(c *gc.C) {
	_, err := cmdtesting.RunCommand(c, exemption.NewImportCommandForTest(s.api, s.api, s.clock), "missing.csv")
	c.Assert(err, gc.ErrorMatches, ".*missing.csv: no such file or directory")
	s.api.CheckNoCalls(c)
}

func (s *bulkSuite) TestRemoveAll(c *gc.C) {
	path := s.writeCSV(c, `name,scope
waiver-1,/subscriptions/sub-id
waiver-2,rg-legacy
waiver-3,/subscriptions/sub-id/resourceGroups/rg-legacy
`)
	ctx, err := cmdtesting.RunCommand(c, exemption.NewRemoveAllCommandForTest(s.api, s.api, s.clock), path)
	c.Assert(err, gc.ErrorMatches, "1 of 3 exemptions failed")

	s.api.CheckCallNames(c, "Delete", "Delete")
	s.api.CheckCall(c, 0, "Delete", "/subscriptions/sub-id", "waiver-1")
	s.api.CheckCall(c, 1, "Delete", "/subscriptions/sub-id/resourceGroups/rg-legacy", "waiver-3")

	stderr := cmdtesting.Stderr(ctx)
	c.Check(stderr, jc.Contains, "Removed line 2: waiver-1\n")
	c.Check(stderr, jc.Contains, `WARNING line 3: waiver-2: exemption "waiver-2" scope "rg-legacy" not valid`)
	c.Check(stderr, jc.Contains, "2 of 3 exemptions removed.\n")
}
