// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/juju/errors"
)

// ApplicationID is sent in the User-Agent of every ARM request.
const ApplicationID = "azops"

// DefaultClientOptions returns the options shared by every ARM client.
func DefaultClientOptions() *arm.ClientOptions {
	return &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Telemetry: policy.TelemetryOptions{
				ApplicationID: ApplicationID,
			},
		},
	}
}

// ClientFactory builds ARM clients for one subscription.
type ClientFactory struct {
	subscriptionID string
	credential     azcore.TokenCredential
	options        *arm.ClientOptions
}

// NewClientFactory returns a ClientFactory. DefaultClientOptions are
// used when options is nil.
func NewClientFactory(subscriptionID string, credential azcore.TokenCredential, options *arm.ClientOptions) (*ClientFactory, error) {
	if subscriptionID == "" {
		return nil, errors.NotValidf("empty subscription ID")
	}
	if credential == nil {
		return nil, errors.NotValidf("nil credential")
	}
	if options == nil {
		options = DefaultClientOptions()
	}
	return &ClientFactory{
		subscriptionID: subscriptionID,
		credential:     credential,
		options:        options,
	}, nil
}

// SubscriptionID returns the subscription the factory's clients use.
func (f *ClientFactory) SubscriptionID() string {
	return f.subscriptionID
}

// Subscription describes the subscription being operated on.
type Subscription struct {
	ID          string
	DisplayName string
	State       string
}

// VerifySubscription makes an authenticated read of the subscription.
// It fails early when the credential cannot authenticate or the
// subscription is not visible to it.
func (f *ClientFactory) VerifySubscription(ctx context.Context) (*Subscription, error) {
	client, err := armsubscriptions.NewClient(f.credential, f.options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resp, err := client.Get(ctx, f.subscriptionID, nil)
	if err != nil {
		if IsAuthorizationError(err) {
			return nil, errors.NewUnauthorized(apiError(err, "subscription %q", f.subscriptionID),
				`Azure authentication failed (run "az login")`)
		}
		return nil, apiError(err, "subscription %q", f.subscriptionID)
	}
	sub := &Subscription{
		ID:          deref(resp.SubscriptionID),
		DisplayName: deref(resp.DisplayName),
	}
	if resp.State != nil {
		sub.State = string(*resp.State)
	}
	if sub.State != "" && sub.State != string(armsubscriptions.SubscriptionStateEnabled) {
		logger.Warningf("subscription %q is %s", sub.ID, sub.State)
	}
	logger.Debugf("using subscription %q (%s)", sub.ID, sub.DisplayName)
	return sub, nil
}

// SetDefinitions returns the policy set definitions adapter.
func (f *ClientFactory) SetDefinitions() (*SetDefinitions, error) {
	return newSetDefinitions(f.subscriptionID, f.credential, f.options)
}

// Exemptions returns the policy exemptions adapter.
func (f *ClientFactory) Exemptions() (*Exemptions, error) {
	return newExemptions(f.subscriptionID, f.credential, f.options)
}

// PolicyStates returns the policy compliance states adapter.
func (f *ClientFactory) PolicyStates() (*PolicyStates, error) {
	return newPolicyStates(f.subscriptionID, f.credential, f.options)
}

// ResourceGroups returns the resource group adapter.
func (f *ClientFactory) ResourceGroups() *ResourceGroups {
	return &ResourceGroups{
		subscriptionID: f.subscriptionID,
		credential:     f.credential,
		options:        f.options,
	}
}

// Resolver returns the virtual machine and Bastion host adapter.
func (f *ClientFactory) Resolver() (*Resolver, error) {
	return newResolver(f.subscriptionID, f.credential, f.options)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
