// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/azops/cmd/azops/bastion"
	"github.com/juju/azops/cmd/azops/compliance"
	"github.com/juju/azops/cmd/azops/exemption"
	"github.com/juju/azops/cmd/azops/initiative"
	"github.com/juju/azops/internal/cmd"
	"github.com/juju/azops/internal/config"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "0.1.0"

var azopsDoc = `
azops automates Azure governance chores:

  - deploying policy initiatives from JSON policy set documents and
    exporting built-in initiatives to start from,
  - reporting the compliance of policy assignments,
  - creating, bulk importing, reporting and removing policy exemptions,
  - opening remote desktop sessions to virtual machines through Azure
    Bastion.

Credentials come from the Azure CLI ("az login") unless the config file
selects the default Azure credential chain. The config file lives in
$AZOPS_HOME/config.yaml, or azops/config.yaml in the user config directory.
`

func main() {
	os.Exit(Main(os.Args))
}

// Main runs the azops command with the given arguments, which include
// the program name, and returns the exit code.
func Main(args []string) int {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, err := cmd.DefaultContext(sigCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return cmd.Main(NewAzopsCommand(), ctx, args[1:])
}

// NewAzopsCommand returns the azops super command with every command
// registered.
func NewAzopsCommand() cmd.Command {
	azops := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "azops",
		Purpose: "Azure policy, exemption and Bastion automation.",
		Doc:     azopsDoc,
		Version: Version,
		Log: &cmd.Log{
			Root:          "azops",
			DefaultConfig: os.Getenv(config.LoggingConfigEnvKey),
		},
	})
	registerCommands(azops)
	return azops
}

type commandRegistry interface {
	Register(cmd.Command)
}

func registerCommands(r commandRegistry) {
	// Policy initiatives.
	r.Register(initiative.NewDeployCommand())
	r.Register(initiative.NewExportCommand())
	r.Register(compliance.NewReportCommand())

	// Policy exemptions.
	r.Register(exemption.NewCreateCommand())
	r.Register(exemption.NewRemoveCommand())
	r.Register(exemption.NewImportCommand())
	r.Register(exemption.NewRemoveAllCommand())
	r.Register(exemption.NewReportCommand())

	// Bastion.
	r.Register(bastion.NewConnectCommand())
}
