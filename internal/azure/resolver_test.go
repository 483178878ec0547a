// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package azure

import (
	"context"
	"net/http"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/azops/internal/azure/azuretesting"
	"github.com/juju/azops/internal/bastion"
)

type resolverSuite struct {
	baseSuite

	resolver *Resolver
}

var _ = gc.Suite(&resolverSuite{})

func (s *resolverSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	var err error
	s.resolver, err = s.factory.Resolver()
	c.Assert(err, jc.ErrorIsNil)
}

func (s *resolverSuite) TestVirtualMachine(c *gc.C) {
	s.sender.AppendResponse(azuretesting.NewResponseWithContent(`{
  "id": "/subscriptions/sub-id/resourceGroups/rg-vms/providers/Microsoft.Compute/virtualMachines/vm-jump",
  "name": "vm-jump",
  "location": "westeurope",
  "properties": {
    "instanceView": {
      "statuses": [
        {"code": "ProvisioningState/succeeded"},
        {"code": "PowerState/deallocated"}
      ]
    }
  }
}`))

	vm, err := s.resolver.VirtualMachine(context.Background(), "rg-vms", "vm-jump")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(vm, jc.DeepEquals, &bastion.VirtualMachine{
		ID:         "/subscriptions/sub-id/resourceGroups/rg-vms/providers/Microsoft.Compute/virtualMachines/vm-jump",
		PowerState: "deallocated",
	})

	req := s.request(c, 0)
	c.Check(req.Path, gc.Equals, "/subscriptions/sub-id/resourceGroups/rg-vms/providers/Microsoft.Compute/virtualMachines/vm-jump")
	c.Check(req.Query, jc.Contains, "%24expand=instanceView")
}

func (s *resolverSuite) TestVirtualMachineWithoutInstanceView(c *gc.C) {
	s.sender.AppendResponse(azuretesting.NewResponseWithContent(`{"id": "vm-id", "location": "westeurope"}`))

	vm, err := s.resolver.VirtualMachine(context.Background(), "rg-vms", "vm-jump")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(vm.PowerState, gc.Equals, "")
}

func (s *resolverSuite) TestVirtualMachineNotFound(c *gc.C) {
	s.sender.AppendResponse(azuretesting.NewErrorResponse(http.StatusNotFound, "ResourceNotFound", "missing"))

	_, err := s.resolver.VirtualMachine(context.Background(), "rg-vms", "vm-jump")
	c.Check(err, gc.ErrorMatches, `virtual machine "vm-jump" in resource group "rg-vms": ResourceNotFound \(HTTP 404\)`)
	c.Check(errors.Is(err, errors.NotFound), jc.IsTrue)
}

func (s *resolverSuite) TestBastionHost(c *gc.C) {
	s.sender.AppendResponse(azuretesting.NewResponseWithContent(`{
  "id": "/subscriptions/sub-id/resourceGroups/rg-hub/providers/Microsoft.Network/bastionHosts/bas-hub",
  "name": "bas-hub",
  "sku": {"name": "Standard"},
  "properties": {"enableTunneling": true}
}`))

	host, err := s.resolver.BastionHost(context.Background(), "rg-hub", "bas-hub")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(host, jc.DeepEquals, &bastion.BastionHost{
		ID:               "/subscriptions/sub-id/resourceGroups/rg-hub/providers/Microsoft.Network/bastionHosts/bas-hub",
		SKU:              "Standard",
		TunnelingEnabled: true,
	})
	c.Check(s.request(c, 0).Path, gc.Equals, "/subscriptions/sub-id/resourceGroups/rg-hub/providers/Microsoft.Network/bastionHosts/bas-hub")
}

func (s *resolverSuite) TestBastionHostBasic(c *gc.C) {
	s.sender.AppendResponse(azuretesting.NewResponseWithContent(`{"id": "bas-id", "sku": {"name": "Basic"}, "properties": {}}`))

	host, err := s.resolver.BastionHost(context.Background(), "rg-hub", "bas-hub")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(host.TunnelingEnabled, jc.IsFalse)
	c.Check(host.SKU, gc.Equals, "Basic")
}

type resourceGroupsSuite struct {
	baseSuite
}

var _ = gc.Suite(&resourceGroupsSuite{})

func (s *resourceGroupsSuite) TestExists(c *gc.C) {
	s.sender.AppendResponse(azuretesting.NewResponseWithStatus(http.StatusNoContent))
	s.sender.AppendResponse(azuretesting.NewResponseWithStatus(http.StatusNotFound))

	rgs := s.factory.ResourceGroups()
	exists, err := rgs.ResourceGroupExists(context.Background(), "", "rg-legacy")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(exists, jc.IsTrue)

	exists, err = rgs.ResourceGroupExists(context.Background(), "other-sub", "rg-gone")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(exists, jc.IsFalse)

	c.Check(s.request(c, 0).Method, gc.Equals, http.MethodHead)
	c.Check(s.request(c, 0).Path, gc.Equals, "/subscriptions/sub-id/resourcegroups/rg-legacy")
	c.Check(s.request(c, 1).Path, gc.Equals, "/subscriptions/other-sub/resourcegroups/rg-gone")
}
