// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package bastion connects a native remote desktop client to a virtual
// machine through an Azure Bastion tunnel.
package bastion

import (
	"context"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("azops.bastion")

//go:generate go run go.uber.org/mock/mockgen -package bastion -destination resolver_mock_test.go github.com/juju/azops/internal/bastion ResourceResolver

// ResourceResolver looks up the resources a tunnel connects.
type ResourceResolver interface {
	VirtualMachine(ctx context.Context, resourceGroup, name string) (*VirtualMachine, error)
	BastionHost(ctx context.Context, resourceGroup, name string) (*BastionHost, error)
}

// VirtualMachine is the tunnel target.
type VirtualMachine struct {
	ID string

	// PowerState is the power state code without its prefix, for
	// example "running" or "deallocated". It is empty when unknown.
	PowerState string
}

// BastionHost is the gateway carrying the tunnel.
type BastionHost struct {
	ID  string
	SKU string

	// TunnelingEnabled reports whether native client support is
	// enabled, which "az network bastion tunnel" requires.
	TunnelingEnabled bool
}

// Target names the virtual machine and Bastion host to connect.
type Target struct {
	VMName               string
	VMResourceGroup      string
	BastionName          string
	BastionResourceGroup string

	// LocalPort is the port the tunnel listens on.
	LocalPort int

	// Username is written to the RDP file when set.
	Username string
}

// Validate checks that every resource is named.
func (t Target) Validate() error {
	switch {
	case t.VMName == "":
		return errors.NotValidf("missing virtual machine name")
	case t.VMResourceGroup == "":
		return errors.NotValidf("missing virtual machine resource group")
	case t.BastionName == "":
		return errors.NotValidf("missing Bastion name")
	case t.BastionResourceGroup == "":
		return errors.NotValidf("missing Bastion resource group")
	case t.LocalPort < 1 || t.LocalPort > 65535:
		return errors.NotValidf("local port %d", t.LocalPort)
	}
	return nil
}

// Resolved holds the resource ids of a target.
type Resolved struct {
	VMID      string
	BastionID string

	// VMRunning is false when the virtual machine reported a power
	// state other than running.
	VMRunning bool
}

// Resolve looks up the resource ids of the target's virtual machine and
// Bastion host. The Bastion host must have tunnelling enabled.
func Resolve(ctx context.Context, api ResourceResolver, t Target) (*Resolved, error) {
	vm, err := api.VirtualMachine(ctx, t.VMResourceGroup, t.VMName)
	if err != nil {
		return nil, errors.Annotatef(err, "resolving virtual machine %q", t.VMName)
	}
	host, err := api.BastionHost(ctx, t.BastionResourceGroup, t.BastionName)
	if err != nil {
		return nil, errors.Annotatef(err, "resolving Bastion %q", t.BastionName)
	}
	if !host.TunnelingEnabled {
		return nil, errors.NotSupportedf("Bastion %q (%s SKU) without native client tunnelling", t.BastionName, host.SKU)
	}
	running := vm.PowerState == "" || strings.EqualFold(vm.PowerState, "running")
	if !running {
		logger.Warningf("virtual machine %q is %s", t.VMName, vm.PowerState)
	}
	return &Resolved{
		VMID:      vm.ID,
		BastionID: host.ID,
		VMRunning: running,
	}, nil
}
