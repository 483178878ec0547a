// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/juju/errors"

	"github.com/juju/azops/internal/initiative"
)

// setDefinitionsAPIVersion is the first policy API version carrying
// initiative and definition versions.
const setDefinitionsAPIVersion = "2023-04-01"

var _ initiative.SetDefinitionsAPI = (*SetDefinitions)(nil)

// SetDefinitions implements initiative.SetDefinitionsAPI for one
// subscription. Documents are sent and received as they are, so
// members the tool does not interpret reach ARM unchanged.
type SetDefinitions struct {
	subscriptionID string
	client         *rawClient
}

func newSetDefinitions(subscriptionID string, credential azcore.TokenCredential, options *arm.ClientOptions) (*SetDefinitions, error) {
	client, err := newRawClient(setDefinitionsAPIVersion, credential, options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &SetDefinitions{subscriptionID: subscriptionID, client: client}, nil
}

// CreateOrUpdate is part of initiative.SetDefinitionsAPI.
func (s *SetDefinitions) CreateOrUpdate(ctx context.Context, name string, doc *initiative.Document) (*initiative.Document, error) {
	if name == "" {
		return nil, errors.NotValidf("empty policy set definition name")
	}
	path := "/subscriptions/" + url.PathEscape(s.subscriptionID) +
		"/providers/Microsoft.Authorization/policySetDefinitions/" + url.PathEscape(name)
	var out initiative.Document
	err := s.client.send(ctx, http.MethodPut, s.client.resourceURL(path, nil), doc, &out, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, apiError(err, "policy set definition %q", name)
	}
	return &out, nil
}

// GetBuiltIn is part of initiative.SetDefinitionsAPI.
func (s *SetDefinitions) GetBuiltIn(ctx context.Context, name string) (*initiative.Document, error) {
	if name == "" {
		return nil, errors.NotValidf("empty policy set definition name")
	}
	path := "/providers/Microsoft.Authorization/policySetDefinitions/" + url.PathEscape(name)
	var out initiative.Document
	if err := s.client.send(ctx, http.MethodGet, s.client.resourceURL(path, nil), nil, &out); err != nil {
		return nil, apiError(err, "built-in policy set definition %q", name)
	}
	return &out, nil
}
