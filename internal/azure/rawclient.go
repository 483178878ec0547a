// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/juju/errors"
)

const (
	moduleName    = "github.com/juju/azops"
	moduleVersion = "v0.1.0"
)

// rawClient exchanges ARM resource bodies as JSON through the standard
// ARM pipeline. It serves API versions whose models the generated
// clients in use do not carry.
type rawClient struct {
	client     *arm.Client
	apiVersion string
}

func newRawClient(apiVersion string, credential azcore.TokenCredential, options *arm.ClientOptions) (*rawClient, error) {
	client, err := arm.NewClient(moduleName, moduleVersion, credential, options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &rawClient{client: client, apiVersion: apiVersion}, nil
}

// resourceURL returns the absolute URL of the resource path, which
// must already be escaped, with the client's api-version and query.
func (c *rawClient) resourceURL(path string, query url.Values) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("api-version", c.apiVersion)
	return runtime.JoinPaths(c.client.Endpoint(), path) + "?" + q.Encode()
}

// send makes the request, encoding body as JSON when it is not nil and
// decoding the response into out when out is not nil. A status other
// than okCodes is returned as an *azcore.ResponseError.
func (c *rawClient) send(ctx context.Context, method, endpoint string, body, out interface{}, okCodes ...int) error {
	req, err := runtime.NewRequest(ctx, method, endpoint)
	if err != nil {
		return errors.Trace(err)
	}
	req.Raw().Header.Set("Accept", "application/json")
	if body != nil {
		if err := runtime.MarshalAsJSON(req, body); err != nil {
			return errors.Trace(err)
		}
	}
	resp, err := c.client.Pipeline().Do(req)
	if err != nil {
		return err
	}
	if len(okCodes) == 0 {
		okCodes = []int{http.StatusOK}
	}
	if !runtime.HasStatusCode(resp, okCodes...) {
		return runtime.NewResponseError(resp)
	}
	if out == nil {
		runtime.Drain(resp)
		return nil
	}
	if err := runtime.UnmarshalAsJSON(resp, out); err != nil {
		return errors.Annotate(err, "decoding response")
	}
	return nil
}
