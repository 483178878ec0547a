// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config holds the azops configuration: a small YAML file of
// defaults that command flags and environment variables override.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/schema"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"
)

var logger = loggo.GetLogger("azops.config")

const (
	// SubscriptionIDKey is the Azure subscription to operate on.
	SubscriptionIDKey = "subscription-id"

	// TenantIDKey optionally pins the Entra ID tenant used to
	// acquire tokens.
	TenantIDKey = "tenant-id"

	// CredentialKey selects how credentials are obtained, see
	// CredentialCLI and CredentialDefault.
	CredentialKey = "credential"

	// ExpiryWindowDaysKey is the number of days before expiry at
	// which an exemption is reported as expiring soon.
	ExpiryWindowDaysKey = "expiry-window-days"

	BastionResourceGroupKey = "bastion-resource-group"
	BastionNameKey          = "bastion-name"
	BastionLocalPortKey     = "bastion-local-port"
	BastionWaitAttemptsKey  = "bastion-wait-attempts"

	// RDPClientKey overrides the native remote desktop client.
	RDPClientKey = "rdp-client"
)

const (
	// HomeEnvKey overrides the directory holding config.yaml.
	HomeEnvKey = "AZOPS_HOME"

	// SubscriptionEnvKey is the conventional Azure environment variable
	// naming the subscription. It overrides the config file.
	SubscriptionEnvKey = "AZURE_SUBSCRIPTION_ID"

	// TenantEnvKey is the conventional Azure environment variable
	// naming the tenant. It overrides the config file.
	TenantEnvKey = "AZURE_TENANT_ID"

	// LoggingConfigEnvKey holds the default logging configuration.
	LoggingConfigEnvKey = "AZOPS_LOGGING_CONFIG"
)

const (
	// CredentialCLI uses the token cached by "az login".
	CredentialCLI = "cli"

	// CredentialDefault uses the default Azure credential chain
	// (environment, workload identity, managed identity, CLI, ...).
	CredentialDefault = "default"
)

const (
	DefaultExpiryWindowDays    = 30
	DefaultBastionLocalPort    = 55000
	DefaultBastionWaitAttempts = 30
)

var configFields = schema.Fields{
	SubscriptionIDKey:       schema.String(),
	TenantIDKey:             schema.String(),
	CredentialKey:           schema.OneOf(schema.Const(CredentialCLI), schema.Const(CredentialDefault)),
	ExpiryWindowDaysKey:     schema.ForceInt(),
	BastionResourceGroupKey: schema.String(),
	BastionNameKey:          schema.String(),
	BastionLocalPortKey:     schema.ForceInt(),
	BastionWaitAttemptsKey:  schema.ForceInt(),
	RDPClientKey:            schema.String(),
}

var configDefaults = schema.Defaults{
	SubscriptionIDKey:       "",
	TenantIDKey:             "",
	CredentialKey:           CredentialCLI,
	ExpiryWindowDaysKey:     DefaultExpiryWindowDays,
	BastionResourceGroupKey: "",
	BastionNameKey:          "",
	BastionLocalPortKey:     DefaultBastionLocalPort,
	BastionWaitAttemptsKey:  DefaultBastionWaitAttempts,
	RDPClientKey:            "",
}

var configChecker = schema.StrictFieldMap(configFields, configDefaults)

// Config holds the validated azops configuration.
type Config struct {
	SubscriptionID string
	TenantID       string
	Credential     string

	// ExpiryWindow is how far ahead of expiry an exemption is
	// flagged as expiring soon.
	ExpiryWindow time.Duration

	BastionResourceGroup string
	BastionName          string
	BastionLocalPort     int
	BastionWaitAttempts  int

	RDPClient string
}

// New returns a Config from the given attributes, applying defaults for
// missing ones. Unknown attributes are rejected.
func New(attrs map[string]interface{}) (*Config, error) {
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	coerced, err := configChecker.Coerce(attrs, nil)
	if err != nil {
		return nil, errors.NewNotValid(err, "invalid config")
	}
	v := coerced.(map[string]interface{})
	cfg := &Config{
		SubscriptionID:       v[SubscriptionIDKey].(string),
		TenantID:             v[TenantIDKey].(string),
		Credential:           v[CredentialKey].(string),
		ExpiryWindow:         time.Duration(v[ExpiryWindowDaysKey].(int)) * 24 * time.Hour,
		BastionResourceGroup: v[BastionResourceGroupKey].(string),
		BastionName:          v[BastionNameKey].(string),
		BastionLocalPort:     v[BastionLocalPortKey].(int),
		BastionWaitAttempts:  v[BastionWaitAttemptsKey].(int),
		RDPClient:            v[RDPClientKey].(string),
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := New(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Parse parses YAML config data.
func Parse(data []byte) (*Config, error) {
	var attrs map[string]interface{}
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return nil, errors.Annotate(err, "cannot unmarshal config")
	}
	return New(attrs)
}

// Read reads the config file at path. A missing file yields the default
// configuration.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debugf("no config file at %q, using defaults", path)
		return Default(), nil
	} else if err != nil {
		return nil, errors.Annotatef(err, "reading config file %q", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing config file %q", path)
	}
	return cfg, nil
}

// Validate checks that the config holds sensible values.
func (c *Config) Validate() error {
	if c.ExpiryWindow < 0 {
		return errors.NotValidf("negative %s", ExpiryWindowDaysKey)
	}
	if c.BastionLocalPort < 1 || c.BastionLocalPort > 65535 {
		return errors.NotValidf("%s %d", BastionLocalPortKey, c.BastionLocalPort)
	}
	if c.BastionWaitAttempts < 1 {
		return errors.NotValidf("%s %d", BastionWaitAttemptsKey, c.BastionWaitAttempts)
	}
	return nil
}

// ApplyEnv overrides values from well known environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if sub := getenv(SubscriptionEnvKey); sub != "" {
		c.SubscriptionID = sub
	}
	if tenant := getenv(TenantEnvKey); tenant != "" {
		c.TenantID = tenant
	}
}

// Path returns the location of the config file, honouring AZOPS_HOME.
func Path(getenv func(string) string) (string, error) {
	dir := getenv(HomeEnvKey)
	if dir == "" {
		home, err := os.UserConfigDir()
		if err != nil {
			return "", errors.Annotate(err, "cannot determine config directory")
		}
		dir = filepath.Join(home, "azops")
	}
	dir, err := utils.NormalizePath(dir)
	if err != nil {
		return "", errors.Trace(err)
	}
	return filepath.Join(dir, "config.yaml"), nil
}
