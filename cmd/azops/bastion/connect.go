// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package bastion

import (
	"context"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"

	"github.com/juju/azops/cmd/azops/azopscmd"
	corebastion "github.com/juju/azops/internal/bastion"
	"github.com/juju/azops/internal/cmd"
	"github.com/juju/azops/internal/config"
)

var logger = loggo.GetLogger("azops.cmd.azops.bastion")

const connectDoc = `
Open a remote desktop session to a virtual machine through an Azure
Bastion host, without exposing the machine to the internet.

The command checks that the Azure CLI and a native remote desktop client
are installed and that the local port is free, resolves the virtual
machine and Bastion host, then runs "az network bastion tunnel" and waits
for the tunnel to listen. A temporary .rdp file pointing at the tunnel is
handed to the native client (mstsc on Windows, Microsoft Remote Desktop on
macOS, xfreerdp or remmina elsewhere).

The tunnel stays open until Enter is pressed or the command is
interrupted. The tunnel process and the .rdp file are always cleaned up.

The Bastion host must be the Standard SKU with native client support
enabled. The Bastion name, resource group and local port default to the
bastion-name, bastion-resource-group and bastion-local-port config values.
When no Bastion resource group is known, the virtual machine's resource
group is used.
`

const connectExamples = `
    azops connect-vm app-vm-01 --resource-group rg-app
    azops connect-vm app-vm-01 -g rg-app --bastion bas-hub --bastion-resource-group rg-hub --port 55001
`

// Connector opens a remote desktop session to a target.
type Connector interface {
	Connect(ctx context.Context, t corebastion.Target, streams corebastion.Streams) error
}

// NewConnectorFunc returns the Connector used by connect-vm.
type NewConnectorFunc func(ctx *cmd.Context, cfg *config.Config) (Connector, error)

// NewConnectCommand returns a command that opens a remote desktop
// session to a virtual machine through Azure Bastion.
func NewConnectCommand() cmd.Command {
	return &connectCommand{}
}

type connectCommand struct {
	azopscmd.CommandBase

	newConnectorFunc NewConnectorFunc

	vmName               string
	resourceGroup        string
	bastionName          string
	bastionResourceGroup string
	port                 int
	username             string
	rdpClient            string
	tunnelOutput         bool
}

// Info implements Command.Info.
func (c *connectCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "connect-vm",
		Args:     "<vm-name>",
		Purpose:  "Open a remote desktop session to a virtual machine through Azure Bastion.",
		Doc:      connectDoc,
		Examples: connectExamples,
		Aliases:  []string{"rdp"},
	}
}

// SetFlags implements Command.SetFlags.
func (c *connectCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.resourceGroup, "g", "", "Resource group of the virtual machine")
	f.StringVar(&c.resourceGroup, "resource-group", "", "")
	f.StringVar(&c.bastionName, "bastion", "", "Name of the Bastion host")
	f.StringVar(&c.bastionResourceGroup, "bastion-resource-group", "", "Resource group of the Bastion host")
	f.IntVar(&c.port, "port", 0, "Local port for the tunnel")
	f.StringVar(&c.username, "username", "", "User name written to the RDP file")
	f.StringVar(&c.rdpClient, "rdp-client", "", "Remote desktop client to launch instead of the platform default")
	f.BoolVar(&c.tunnelOutput, "tunnel-output", false, "Show the output of the az tunnel process")
}

// Init implements Command.Init.
func (c *connectCommand) Init(args []string) error {
	name, err := cmd.ZeroOrOneArgs(args)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.New("no virtual machine name specified")
	}
	c.vmName = name
	if c.resourceGroup == "" {
		return errors.New("--resource-group is required")
	}
	if c.port < 0 || c.port > 65535 {
		return errors.NotValidf("--port %d", c.port)
	}
	return nil
}

// Run implements Command.Run.
func (c *connectCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.Config(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	target := c.target(cfg)
	if target.BastionName == "" {
		return errors.Errorf("no Bastion host specified (use --bastion or set %s in the config)", config.BastionNameKey)
	}
	if c.rdpClient != "" {
		cfg.RDPClient = c.rdpClient
	}

	newConnector := c.newConnectorFunc
	if newConnector == nil {
		newConnector = c.newConnector
	}
	connector, err := newConnector(ctx, cfg)
	if err != nil {
		return errors.Trace(err)
	}
	streams := corebastion.Streams{
		Stdin:  ctx.Stdin,
		Status: ctx.Stderr,
	}
	if c.tunnelOutput {
		streams.TunnelOutput = ctx.Stderr
	}
	logger.Debugf("connecting to %+v", target)
	return errors.Trace(connector.Connect(ctx, target, streams))
}

func (c *connectCommand) target(cfg *config.Config) corebastion.Target {
	t := corebastion.Target{
		VMName:               c.vmName,
		VMResourceGroup:      c.resourceGroup,
		BastionName:          c.bastionName,
		BastionResourceGroup: c.bastionResourceGroup,
		LocalPort:            c.port,
		Username:             c.username,
	}
	if t.BastionName == "" {
		t.BastionName = cfg.BastionName
	}
	if t.BastionResourceGroup == "" {
		t.BastionResourceGroup = cfg.BastionResourceGroup
	}
	if t.BastionResourceGroup == "" {
		t.BastionResourceGroup = t.VMResourceGroup
	}
	if t.LocalPort == 0 {
		t.LocalPort = cfg.BastionLocalPort
	}
	return t
}

func (c *connectCommand) newConnector(ctx *cmd.Context, cfg *config.Config) (Connector, error) {
	factory, err := c.ClientFactory(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resolver, err := factory.Resolver()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return corebastion.NewConnector(corebastion.ConnectorConfig{
		Resolver:  resolver,
		Clock:     clock.WallClock,
		RDPClient: cfg.RDPClient,
		Attempts:  cfg.BastionWaitAttempts,
	})
}
