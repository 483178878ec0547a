// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/juju/errors"

	"github.com/juju/azops/internal/exemption"
)

var _ exemption.ResourceGroupChecker = (*ResourceGroups)(nil)

// ResourceGroups implements exemption.ResourceGroupChecker. Exemption
// scopes may name another subscription, so a client is built for the
// subscription of each check.
type ResourceGroups struct {
	subscriptionID string
	credential     azcore.TokenCredential
	options        *arm.ClientOptions
}

// ResourceGroupExists is part of exemption.ResourceGroupChecker. The
// factory's subscription is used when subscriptionID is empty.
func (r *ResourceGroups) ResourceGroupExists(ctx context.Context, subscriptionID, name string) (bool, error) {
	if subscriptionID == "" {
		subscriptionID = r.subscriptionID
	}
	client, err := armresources.NewResourceGroupsClient(subscriptionID, r.credential, r.options)
	if err != nil {
		return false, errors.Trace(err)
	}
	resp, err := client.CheckExistence(ctx, name, nil)
	if err != nil {
		return false, apiError(err, "checking resource group %q", name)
	}
	return resp.Success, nil
}
