// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package strategy_test

import (
	"testing"
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/cou/analyzer"
	"github.com/canonical/cou/catalog"
	"github.com/canonical/cou/controller"
	"github.com/canonical/cou/strategy"
	"github.com/canonical/cou/topology"
)

func Test(t *testing.T) { gc.TestingT(t) }

type StrategySuite struct{}

var _ = gc.Suite(&StrategySuite{})

func testContext(facade controller.Facade) strategy.Context {
	return strategy.Context{
		Catalog:             catalog.Default(),
		Facade:              facade,
		StandardIdleTimeout: 300 * time.Second,
		LongIdleTimeout:     2400 * time.Second,
		ModelIdleTimeout:    3600 * time.Second,
	}
}

func keystoneStatus() *analyzer.ApplicationStatus {
	return &analyzer.ApplicationStatus{
		Application: &topology.Application{
			Name:   "keystone",
			Charm:  "keystone",
			Series: "focal",
			Config: map[string]interface{}{"action-managed-upgrade": true},
			Units: map[string]*topology.Unit{
				"keystone/0": {Name: "keystone/0", Application: "keystone", WorkloadVersion: "17.0.1"},
			},
		},
		Class: catalog.ClassControlPlanePrincipal,
	}
}

func (s *StrategySuite) TestBuildPrincipalStepOrder(c *gc.C) {
	fake := controller.NewFake()
	tree, err := strategy.BuildPrincipal(keystoneStatus(), "victoria", testContext(fake), nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(tree.Parallel, jc.IsFalse)

	var descriptions []string
	for _, child := range tree.Children {
		descriptions = append(descriptions, child.Description)
	}
	c.Assert(descriptions, gc.HasLen, 9)
	c.Assert(descriptions[0], gc.Matches, "disable action-managed-upgrade.*")
	c.Assert(descriptions[len(descriptions)-1], gc.Matches, "verify keystone workload upgraded.*")
}

func (s *StrategySuite) TestBuildSubordinateOmitsSteps(c *gc.C) {
	fake := controller.NewFake()
	app := &analyzer.ApplicationStatus{
		Application: &topology.Application{
			Name:          "keystone-ldap",
			Charm:         "keystone-ldap",
			Series:        "focal",
			SubordinateTo: []string{"keystone"},
		},
		Class: catalog.ClassControlPlaneSubordinate,
	}
	tree, err := strategy.BuildSubordinate(app, "victoria", testContext(fake))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(tree.Children, gc.HasLen, 2)
	c.Assert(tree.Children[0].Description, gc.Matches, "refresh charm.*")
	c.Assert(tree.Children[1].Description, gc.Matches, "switch.*channel.*")
}

func (s *StrategySuite) TestHypervisorUnitSubtreeIncludesVMCheckUnlessForced(c *gc.C) {
	fake := controller.NewFake()
	tree := strategy.BuildHypervisorUnitSubtree("nova-compute", "nova-compute/0", testContext(fake), false)
	var hasCheck bool
	for _, child := range tree.Children {
		if child.Description == "verify no VMs hosted on nova-compute/0" {
			hasCheck = true
		}
	}
	c.Assert(hasCheck, jc.IsTrue)

	forced := strategy.BuildHypervisorUnitSubtree("nova-compute", "nova-compute/0", testContext(fake), true)
	for _, child := range forced.Children {
		c.Assert(child.Description, gc.Not(gc.Equals), "verify no VMs hosted on nova-compute/0")
	}
}

func (s *StrategySuite) TestBuildSkippedIsEmpty(c *gc.C) {
	tree := strategy.BuildSkipped("vault")
	c.Assert(tree.Children, gc.HasLen, 0)
	c.Assert(tree.Description, gc.Matches, "skip vault.*")
}

func (s *StrategySuite) TestBuildCephOSDNoChannelSwitchWhenCephUnchanged(c *gc.C) {
	fake := controller.NewFake()
	app := &analyzer.ApplicationStatus{
		Application: &topology.Application{
			Name:   "ceph-osd",
			Charm:  "ceph-osd",
			Series: "focal",
			Units: map[string]*topology.Unit{
				"ceph-osd/0": {Name: "ceph-osd/0", Application: "ceph-osd", WorkloadVersion: "octopus"},
			},
		},
		Class: catalog.ClassDataPlanePrincipal,
	}
	tree, err := strategy.BuildCephOSD(app, "victoria", false, "", testContext(fake))
	c.Assert(err, jc.ErrorIsNil)
	for _, child := range tree.Children {
		c.Assert(child.Description, gc.Not(gc.Matches), "switch.*channel.*")
	}
}
