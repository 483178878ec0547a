// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	armpolicy "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armpolicy"
	"github.com/juju/errors"

	"github.com/juju/azops/internal/exemption"
)

const exemptionsProvider = "/providers/microsoft.authorization/policyexemptions/"

var _ exemption.ExemptionsAPI = (*Exemptions)(nil)

// Exemptions implements exemption.ExemptionsAPI on the policy exemptions
// client of one subscription.
type Exemptions struct {
	client *armpolicy.ExemptionsClient
}

func newExemptions(subscriptionID string, credential azcore.TokenCredential, options *arm.ClientOptions) (*Exemptions, error) {
	client, err := armpolicy.NewExemptionsClient(subscriptionID, credential, options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Exemptions{client: client}, nil
}

// CreateOrUpdate is part of exemption.ExemptionsAPI.
func (e *Exemptions) CreateOrUpdate(ctx context.Context, r exemption.Record) (*exemption.Record, error) {
	resp, err := e.client.CreateOrUpdate(ctx, r.Scope, r.Name, toExemption(r), nil)
	if err != nil {
		return nil, apiError(err, "policy exemption %q", r.Name)
	}
	created := fromExemption(&resp.Exemption)
	if created.Scope == "" {
		created.Scope = r.Scope
	}
	return &created, nil
}

// Delete is part of exemption.ExemptionsAPI. Deleting an exemption that
// does not exist succeeds.
func (e *Exemptions) Delete(ctx context.Context, scope, name string) error {
	if _, err := e.client.Delete(ctx, scope, name, nil); err != nil {
		return apiError(err, "policy exemption %q", name)
	}
	return nil
}

// List is part of exemption.ExemptionsAPI.
func (e *Exemptions) List(ctx context.Context, resourceGroup string) ([]exemption.Record, error) {
	if resourceGroup == "" {
		pager := e.client.NewListPager(nil)
		records, err := collectExemptions(ctx, pager, func(page armpolicy.ExemptionsClientListResponse) []*armpolicy.Exemption {
			return page.Value
		})
		return records, apiError(err, "listing policy exemptions")
	}
	pager := e.client.NewListForResourceGroupPager(resourceGroup, nil)
	records, err := collectExemptions(ctx, pager, func(page armpolicy.ExemptionsClientListForResourceGroupResponse) []*armpolicy.Exemption {
		return page.Value
	})
	return records, apiError(err, "listing policy exemptions of resource group %q", resourceGroup)
}

func collectExemptions[T any](ctx context.Context, pager *runtime.Pager[T], values func(T) []*armpolicy.Exemption) ([]exemption.Record, error) {
	var records []exemption.Record
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, v := range values(page) {
			if v != nil {
				records = append(records, fromExemption(v))
			}
		}
	}
	return records, nil
}

func toExemption(r exemption.Record) armpolicy.Exemption {
	props := &armpolicy.ExemptionProperties{
		ExemptionCategory:  to.Ptr(armpolicy.ExemptionCategory(r.Category)),
		PolicyAssignmentID: to.Ptr(r.AssignmentID),
		ExpiresOn:          r.ExpiresOn,
	}
	if r.DisplayName != "" {
		props.DisplayName = to.Ptr(r.DisplayName)
	}
	if r.Description != "" {
		props.Description = to.Ptr(r.Description)
	}
	if len(r.ReferenceIDs) > 0 {
		props.PolicyDefinitionReferenceIDs = to.SliceOfPtrs(r.ReferenceIDs...)
	}
	if len(r.Metadata) > 0 {
		metadata := make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		props.Metadata = metadata
	}
	return armpolicy.Exemption{Properties: props}
}

func fromExemption(e *armpolicy.Exemption) exemption.Record {
	r := exemption.Record{
		Name:  deref(e.Name),
		Scope: scopeFromID(deref(e.ID)),
	}
	props := e.Properties
	if props == nil {
		return r
	}
	if props.ExemptionCategory != nil {
		r.Category = exemption.Category(*props.ExemptionCategory)
	}
	r.AssignmentID = deref(props.PolicyAssignmentID)
	r.DisplayName = deref(props.DisplayName)
	r.Description = deref(props.Description)
	if props.ExpiresOn != nil {
		t := props.ExpiresOn.UTC()
		r.ExpiresOn = &t
	}
	for _, id := range props.PolicyDefinitionReferenceIDs {
		if id != nil {
			r.ReferenceIDs = append(r.ReferenceIDs, *id)
		}
	}
	if metadata, ok := props.Metadata.(map[string]interface{}); ok && len(metadata) > 0 {
		r.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			r.Metadata[k] = fmt.Sprint(v)
		}
	}
	return r
}

// scopeFromID returns the scope an exemption resource id is rooted at.
func scopeFromID(id string) string {
	i := strings.LastIndex(strings.ToLower(id), exemptionsProvider)
	if i < 0 {
		return ""
	}
	return id[:i]
}
