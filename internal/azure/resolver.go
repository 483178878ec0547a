// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"context"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/juju/errors"

	"github.com/juju/azops/internal/bastion"
)

const powerStatePrefix = "PowerState/"

var _ bastion.ResourceResolver = (*Resolver)(nil)

// Resolver implements bastion.ResourceResolver with the compute and
// network clients of one subscription.
type Resolver struct {
	vms   *armcompute.VirtualMachinesClient
	hosts *armnetwork.BastionHostsClient
}

func newResolver(subscriptionID string, credential azcore.TokenCredential, options *arm.ClientOptions) (*Resolver, error) {
	vms, err := armcompute.NewVirtualMachinesClient(subscriptionID, credential, options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	hosts, err := armnetwork.NewBastionHostsClient(subscriptionID, credential, options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Resolver{vms: vms, hosts: hosts}, nil
}

// VirtualMachine is part of bastion.ResourceResolver. The instance view
// is expanded to report the power state.
func (r *Resolver) VirtualMachine(ctx context.Context, resourceGroup, name string) (*bastion.VirtualMachine, error) {
	resp, err := r.vms.Get(ctx, resourceGroup, name, &armcompute.VirtualMachinesClientGetOptions{
		Expand: to.Ptr(armcompute.InstanceViewTypesInstanceView),
	})
	if err != nil {
		return nil, apiError(err, "virtual machine %q in resource group %q", name, resourceGroup)
	}
	vm := &bastion.VirtualMachine{
		ID: deref(resp.ID),
	}
	if resp.Properties != nil && resp.Properties.InstanceView != nil {
		for _, status := range resp.Properties.InstanceView.Statuses {
			if status == nil || status.Code == nil {
				continue
			}
			if state, ok := strings.CutPrefix(*status.Code, powerStatePrefix); ok {
				vm.PowerState = state
			}
		}
	}
	return vm, nil
}

// BastionHost is part of bastion.ResourceResolver.
func (r *Resolver) BastionHost(ctx context.Context, resourceGroup, name string) (*bastion.BastionHost, error) {
	resp, err := r.hosts.Get(ctx, resourceGroup, name, nil)
	if err != nil {
		return nil, apiError(err, "Bastion host %q in resource group %q", name, resourceGroup)
	}
	host := &bastion.BastionHost{
		ID: deref(resp.ID),
	}
	if resp.SKU != nil && resp.SKU.Name != nil {
		host.SKU = string(*resp.SKU.Name)
	}
	if resp.Properties != nil {
		host.TunnelingEnabled = deref(resp.Properties.EnableTunneling)
	}
	return host, nil
}
