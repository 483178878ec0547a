// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package azopscmd holds the command base shared by azops commands that
// talk to Azure.
package azopscmd

import (
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4/keyvalues"

	"github.com/juju/azops/internal/azure"
	"github.com/juju/azops/internal/cmd"
	"github.com/juju/azops/internal/config"
)

var logger = loggo.GetLogger("azops.cmd.azopscmd")

// ErrNoSubscription is returned when no subscription has been chosen.
var ErrNoSubscription = errors.New(`no Azure subscription selected
(use --subscription, set AZURE_SUBSCRIPTION_ID or "subscription-id" in the config file)`)

// CommandBase is embedded by commands that read the azops config and
// call the Azure Resource Manager API. The config and the client
// factory are created on first use and reused by the command.
type CommandBase struct {
	cmd.CommandBase

	configPath     string
	subscriptionID string

	config  *config.Config
	factory *azure.ClientFactory
}

// SetFlags implements cmd.Command.SetFlags.
func (c *CommandBase) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to the azops config file")
	f.StringVar(&c.subscriptionID, "subscription", "", "Azure subscription ID, overriding $AZURE_SUBSCRIPTION_ID and the config file")
}

// Config returns the azops config. Values come from the config file,
// then the environment, then the command line.
func (c *CommandBase) Config(ctx *cmd.Context) (*config.Config, error) {
	if c.config != nil {
		return c.config, nil
	}
	path := c.configPath
	if path == "" {
		var err error
		if path, err = config.Path(ctx.Getenv); err != nil {
			return nil, errors.Trace(err)
		}
	} else {
		path = ctx.AbsPath(path)
	}
	logger.Debugf("reading config from %q", path)
	cfg, err := config.Read(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	cfg.ApplyEnv(ctx.Getenv)
	if c.subscriptionID != "" {
		cfg.SubscriptionID = c.subscriptionID
	}
	c.config = cfg
	return cfg, nil
}

// ClientFactory returns an ARM client factory for the selected
// subscription, after verifying that the credential can read it.
func (c *CommandBase) ClientFactory(ctx *cmd.Context) (*azure.ClientFactory, error) {
	if c.factory != nil {
		return c.factory, nil
	}
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.SubscriptionID == "" {
		return nil, ErrNoSubscription
	}
	cred, err := azure.NewCredential(cfg.Credential, cfg.TenantID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	factory, err := azure.NewClientFactory(cfg.SubscriptionID, cred, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	sub, err := factory.VerifySubscription(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ctx.Verbosef("Using subscription %s (%s)", sub.ID, sub.DisplayName)
	c.factory = factory
	return factory, nil
}

// KeyValues is a repeatable flag collecting key=value pairs.
type KeyValues []string

// Set implements gnuflag.Value.
func (kv *KeyValues) Set(value string) error {
	if _, err := keyvalues.Parse([]string{value}, false); err != nil {
		return errors.Trace(err)
	}
	*kv = append(*kv, value)
	return nil
}

// String implements gnuflag.Value.
func (kv *KeyValues) String() string {
	return strings.Join(*kv, " ")
}

// Map returns the collected pairs. A key given twice is an error.
func (kv KeyValues) Map() (map[string]string, error) {
	if len(kv) == 0 {
		return nil, nil
	}
	m, err := keyvalues.Parse(kv, false)
	return m, errors.Trace(err)
}

// Strings is a flag holding a comma separated list.
type Strings []string

// Set implements gnuflag.Value.
func (s *Strings) Set(value string) error {
	*s = nil
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// String implements gnuflag.Value.
func (s *Strings) String() string {
	return strings.Join(*s, ",")
}
