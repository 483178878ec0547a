// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package azure connects the azops domain packages to the Azure
// Resource Manager SDK.
package azure

import (
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/azops/internal/config"
)

var logger = loggo.GetLogger("azops.azure")

// NewCredential returns the token credential of the given kind. The
// Azure CLI credential reuses the session of "az login"; the default
// credential walks the azidentity chain (environment, workload and
// managed identity, CLI).
func NewCredential(kind, tenantID string) (azcore.TokenCredential, error) {
	switch kind {
	case config.CredentialCLI, "":
		logger.Debugf("using Azure CLI credential (tenant %q)", tenantID)
		cred, err := azidentity.NewAzureCLICredential(&azidentity.AzureCLICredentialOptions{
			TenantID: tenantID,
		})
		if err != nil {
			return nil, errors.Annotate(err, "creating Azure CLI credential")
		}
		return cred, nil
	case config.CredentialDefault:
		logger.Debugf("using default Azure credential chain (tenant %q)", tenantID)
		cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
			TenantID: tenantID,
		})
		if err != nil {
			return nil, errors.Annotate(err, "creating default Azure credential")
		}
		return cred, nil
	}
	return nil, errors.NotValidf("credential kind %q", kind)
}
