// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package exemption

import (
	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/juju/azops/cmd/azops/azopscmd"
	"github.com/juju/azops/internal/cmd"
	coreexemption "github.com/juju/azops/internal/exemption"
)

// APIFunc returns the Azure APIs used by the exemption commands.
type APIFunc func(ctx *cmd.Context) (coreexemption.ExemptionsAPI, coreexemption.ResourceGroupChecker, error)

// exemptionCommandBase builds an exemption.Manager from the azops config.
type exemptionCommandBase struct {
	azopscmd.CommandBase

	newAPIFunc APIFunc
	clock      clock.Clock
}

func (c *exemptionCommandBase) manager(ctx *cmd.Context) (*coreexemption.Manager, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	newAPI := c.newAPIFunc
	if newAPI == nil {
		newAPI = c.azureAPI
	}
	api, resourceGroups, err := newAPI(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return coreexemption.NewManager(coreexemption.ManagerConfig{
		API:            api,
		ResourceGroups: resourceGroups,
		Clock:          c.now(),
		Window:         cfg.ExpiryWindow,
	})
}

func (c *exemptionCommandBase) now() clock.Clock {
	if c.clock == nil {
		return clock.WallClock
	}
	return c.clock
}

func (c *exemptionCommandBase) azureAPI(ctx *cmd.Context) (coreexemption.ExemptionsAPI, coreexemption.ResourceGroupChecker, error) {
	factory, err := c.ClientFactory(ctx)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	api, err := factory.Exemptions()
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return api, factory.ResourceGroups(), nil
}

// bulkNotify reports the outcome of each bulk item as it completes.
func bulkNotify(ctx *cmd.Context, verb string) func(coreexemption.BulkItem) {
	return func(item coreexemption.BulkItem) {
		if item.Err != nil {
			ctx.Warningf("%s", item)
			return
		}
		ctx.Infof("%s %s", verb, item)
	}
}

// bulkSummary prints the totals of a bulk operation and returns its
// error, if any item failed.
func bulkSummary(ctx *cmd.Context, verb string, result coreexemption.BulkResult) error {
	ctx.Infof("%d of %d exemptions %s.", result.Succeeded(), len(result.Items), verb)
	if err := result.Err(); err != nil {
		for _, item := range result.Failed() {
			ctx.Infof("  %s", item)
		}
		return errors.Trace(err)
	}
	return nil
}
