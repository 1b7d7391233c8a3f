// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topology_test

import (
	"testing"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/cou/topology"
)

func Test(t *testing.T) { gc.TestingT(t) }

type BuilderSuite struct{}

var _ = gc.Suite(&BuilderSuite{})

func (s *BuilderSuite) TestBuildRejectsMissingSeries(c *gc.C) {
	_, err := topology.Build(topology.RawStatus{})
	c.Assert(err, gc.ErrorMatches, ".*missing series.*")
}

func (s *BuilderSuite) TestBuildRejectsMissingCharm(c *gc.C) {
	_, err := topology.Build(topology.RawStatus{
		Series: "focal",
		Applications: map[string]topology.RawApplication{
			"keystone": {ChannelTrack: "ussuri"},
		},
	})
	c.Assert(err, gc.ErrorMatches, ".*keystone.*missing charm name.*")
}

func (s *BuilderSuite) TestBuildRejectsEmptyWorkloadVersion(c *gc.C) {
	_, err := topology.Build(topology.RawStatus{
		Series: "focal",
		Applications: map[string]topology.RawApplication{
			"keystone": {
				Charm:        "keystone",
				ChannelTrack: "ussuri",
				Units: map[string]topology.RawUnit{
					"keystone/0": {MachineID: "0"},
				},
			},
		},
	})
	c.Assert(err, gc.ErrorMatches, ".*keystone/0.*empty workload-version.*")
}

func (s *BuilderSuite) TestBuildSubordinateInheritsMachines(c *gc.C) {
	topo, err := topology.Build(topology.RawStatus{
		Series: "focal",
		Machines: map[string]topology.RawMachine{
			"0": {AvailabilityZone: "az-0"},
		},
		Applications: map[string]topology.RawApplication{
			"keystone": {
				Charm:        "keystone",
				ChannelTrack: "ussuri",
				Units: map[string]topology.RawUnit{
					"keystone/0": {MachineID: "0", WorkloadVersion: "17.0.1"},
				},
			},
			"keystone-ldap": {
				Charm:         "keystone-ldap",
				ChannelTrack:  "ussuri",
				SubordinateTo: []string{"keystone"},
			},
		},
	})
	c.Assert(err, jc.ErrorIsNil)
	ldap := topo.Applications["keystone-ldap"]
	c.Assert(ldap.IsSubordinate(), jc.IsTrue)
	c.Assert(ldap.Machines, gc.HasLen, 1)
	c.Assert(ldap.Machines["0"].AvailabilityZone, gc.Equals, "az-0")
}

func (s *BuilderSuite) TestSortedApplicationNames(c *gc.C) {
	topo, err := topology.Build(topology.RawStatus{
		Series: "focal",
		Applications: map[string]topology.RawApplication{
			"zebra":  {Charm: "zebra", ChannelTrack: "ussuri"},
			"alpha":  {Charm: "alpha", ChannelTrack: "ussuri"},
		},
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(topo.SortedApplicationNames(), gc.DeepEquals, []string{"alpha", "zebra"})
}
