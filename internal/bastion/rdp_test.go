// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bastion

import (
	"context"
	"os"
	"os/exec"
	"runtime"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"
)

type rdpSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&rdpSuite{})

func (s *rdpSuite) TestRDPContent(c *gc.C) {
	c.Check(string(RDPContent(RDPParams{Port: 55000, Username: "azureuser"})), gc.Equals, ""+
		"full address:s:127.0.0.1:55000\r\n"+
		"username:s:azureuser\r\n"+
		"prompt for credentials:i:1\r\n"+
		"authentication level:i:2\r\n"+
		"screen mode id:i:2\r\n"+
		"redirectclipboard:i:1\r\n")

	c.Check(string(RDPContent(RDPParams{Port: 1})), gc.Not(jc.Contains), "username")
}

func (s *rdpSuite) TestWriteRDPFile(c *gc.C) {
	dir := c.MkDir()
	path, err := WriteRDPFile(dir, RDPParams{Port: 55000})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(path, jc.HasPrefix, dir)
	c.Check(path, jc.HasSuffix, ".rdp")

	data, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), jc.HasPrefix, "full address:s:127.0.0.1:55000\r\n")
}

func (s *rdpSuite) TestClientCommand(c *gc.C) {
	found := map[string]string{}
	lookPath := func(name string) (string, error) {
		if path, ok := found[name]; ok {
			return path, nil
		}
		return "", errors.NotFoundf("%s", name)
	}

	argv, err := ClientCommand("windows", "", `C:\tmp\a.rdp`, lookPath)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(argv, jc.DeepEquals, []string{"mstsc", `C:\tmp\a.rdp`})

	argv, err = ClientCommand("darwin", "", "/tmp/a.rdp", lookPath)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(argv, jc.DeepEquals, []string{"open", "/tmp/a.rdp"})

	found["remmina"] = "/usr/bin/remmina"
	argv, err = ClientCommand("linux", "", "/tmp/a.rdp", lookPath)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(argv, jc.DeepEquals, []string{"/usr/bin/remmina", "-c", "/tmp/a.rdp"})

	found["xfreerdp"] = "/usr/bin/xfreerdp"
	argv, err = ClientCommand("linux", "", "/tmp/a.rdp", lookPath)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(argv, jc.DeepEquals, []string{"/usr/bin/xfreerdp", "/tmp/a.rdp"})

	argv, err = ClientCommand("linux", "remmina", "/tmp/a.rdp", lookPath)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(argv, jc.DeepEquals, []string{"remmina", "-c", "/tmp/a.rdp"})
}

func (s *rdpSuite) TestClientCommandOverride(c *gc.C) {
	lookPath := func(name string) (string, error) {
		if name == "xfreerdp" {
			return "/usr/bin/xfreerdp", nil
		}
		return "", errors.NotFoundf("%s", name)
	}

	argv, err := ClientCommand("windows", `xfreerdp /cert:ignore "/title:Jump host"`, "/tmp/a.rdp", lookPath)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(argv, jc.DeepEquals, []string{"xfreerdp", "/cert:ignore", "/title:Jump host", "/tmp/a.rdp"})

	_, err = ClientCommand("linux", "rdesktop -f", "/tmp/a.rdp", lookPath)
	c.Check(err, gc.ErrorMatches, `remote desktop client "rdesktop": rdesktop not found`)
	c.Check(err, jc.ErrorIs, errors.NotFound)

	_, err = ClientCommand("linux", `xfreerdp "/title:unterminated`, "/tmp/a.rdp", lookPath)
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

type resolveSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&resolveSuite{})

func (s *resolveSuite) TestResolveStoppedVM(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	resolver := NewMockResourceResolver(ctrl)
	resolver.EXPECT().VirtualMachine(gomock.Any(), "rg", "vm").Return(&VirtualMachine{ID: "vm-id", PowerState: "deallocated"}, nil)
	resolver.EXPECT().BastionHost(gomock.Any(), "rg-hub", "bas").Return(&BastionHost{ID: "bas-id", TunnelingEnabled: true}, nil)

	resolved, err := Resolve(context.Background(), resolver, Target{
		VMName: "vm", VMResourceGroup: "rg", BastionName: "bas", BastionResourceGroup: "rg-hub",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(resolved, jc.DeepEquals, &Resolved{VMID: "vm-id", BastionID: "bas-id", VMRunning: false})
}

func (s *resolveSuite) TestResolveVMNotFound(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	resolver := NewMockResourceResolver(ctrl)
	resolver.EXPECT().VirtualMachine(gomock.Any(), "rg", "vm").Return(nil, errors.NotFoundf("virtual machine %q", "vm"))

	_, err := Resolve(context.Background(), resolver, Target{VMName: "vm", VMResourceGroup: "rg"})
	c.Assert(err, gc.ErrorMatches, `resolving virtual machine "vm": virtual machine "vm" not found`)
	c.Check(errors.Is(err, errors.NotFound), jc.IsTrue)
}

type processSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&processSuite{})

func (s *processSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	if runtime.GOOS == "windows" {
		c.Skip("uses a POSIX shell")
	}
}

func (s *processSuite) TestProcessExit(c *gc.C) {
	proc, err := startProcess(exec.Command("/bin/sh", "-c", "exit 3"))
	c.Assert(err, jc.ErrorIsNil)
	<-proc.Done()
	c.Assert(proc.Err(), gc.ErrorMatches, "exit status 3")
	c.Assert(proc.Kill(), jc.ErrorIsNil)
}

func (s *processSuite) TestProcessKill(c *gc.C) {
	proc, err := startProcess(exec.Command("/bin/sh", "-c", "sleep 60"))
	c.Assert(err, jc.ErrorIsNil)
	select {
	case <-proc.Done():
		c.Fatalf("process exited early")
	default:
	}
	c.Assert(proc.Kill(), jc.ErrorIsNil)
	<-proc.Done()
	c.Assert(proc.Err(), gc.NotNil)
}

func (s *processSuite) TestStartMissingExecutable(c *gc.C) {
	_, err := StartTunnel(context.Background(), TunnelParams{AzPath: "/nonexistent/az"})
	c.Assert(err, gc.ErrorMatches, `starting /nonexistent/az: .*`)
}

func (s *rdpSuite) TestLaunchClientEmpty(c *gc.C) {
	err := LaunchClient(nil)
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}
