// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package analyzer_test

import (
	"testing"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/cou/analyzer"
	"github.com/canonical/cou/catalog"
	"github.com/canonical/cou/topology"
)

func Test(t *testing.T) { gc.TestingT(t) }

type AnalyzerSuite struct{}

var _ = gc.Suite(&AnalyzerSuite{})

func testCatalog() *catalog.Catalog {
	seed := catalog.SeedCharms()
	for name, ranges := range map[string][]catalog.WorkloadVersionRange{
		"keystone": {
			{Lower: "17.0.0", Upper: "18.0.0", Release: "ussuri"},
			{Lower: "18.0.0", Upper: "19.0.0", Release: "victoria"},
		},
		"nova-compute": {
			{Lower: "21.0.0", Upper: "22.0.0", Release: "ussuri"},
			{Lower: "22.0.0", Upper: "23.0.0", Release: "victoria"},
		},
		"keystone-ldap": {},
		"ovn-chassis":   {},
		"vault":         {},
	} {
		d := seed[name]
		d.Ranges = ranges
		seed[name] = d
	}
	return catalog.New(seed, catalog.CephToOpenStackSeed())
}

func minimalStatus() topology.RawStatus {
	return topology.RawStatus{
		Series: "focal",
		Machines: map[string]topology.RawMachine{
			"0": {AvailabilityZone: "az-0"},
			"1": {AvailabilityZone: "az-0"},
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
			"nova-compute": {
				Charm:        "nova-compute",
				ChannelTrack: "ussuri",
				Units: map[string]topology.RawUnit{
					"nova-compute/0": {MachineID: "1", WorkloadVersion: "21.0.0"},
				},
			},
			"ceph-osd": {
				Charm:        "ceph-osd",
				ChannelTrack: "octopus",
				Units: map[string]topology.RawUnit{
					"ceph-osd/0": {MachineID: "1", WorkloadVersion: "octopus"},
				},
			},
		},
	}
}

func (s *AnalyzerSuite) TestAnalyzeMinimalCloud(c *gc.C) {
	topo, err := topology.Build(minimalStatus())
	c.Assert(err, jc.ErrorIsNil)

	cloud, err := analyzer.Analyze(topo, testCatalog(), analyzer.Options{})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(cloud.Current, gc.Equals, catalog.Release("ussuri"))
	c.Assert(cloud.Target, gc.Equals, catalog.Release("victoria"))
	c.Assert(cloud.Applications["keystone-ldap"].DerivedRelease, gc.Equals, catalog.Release("ussuri"))
	c.Assert(cloud.Applications["ceph-osd"].DerivedRelease, gc.Equals, catalog.Release("ussuri"))
}

func (s *AnalyzerSuite) TestAnalyzeMixedReleasesFails(c *gc.C) {
	status := minimalStatus()
	nova := status.Applications["nova-compute"]
	nova.Units["nova-compute/1"] = topology.RawUnit{MachineID: "1", WorkloadVersion: "22.0.0"}
	status.Applications["nova-compute"] = nova

	topo, err := topology.Build(status)
	c.Assert(err, jc.ErrorIsNil)

	_, err = analyzer.Analyze(topo, testCatalog(), analyzer.Options{})
	c.Assert(err, gc.ErrorMatches, ".*mixed releases.*")
}

func (s *AnalyzerSuite) TestAnalyzeSkipsUnknownSkipListedCharm(c *gc.C) {
	status := minimalStatus()
	status.Applications["vault"] = topology.RawApplication{
		Charm:        "totally-unrecognised-vault-fork",
		ChannelTrack: "1.7/stable",
	}

	topo, err := topology.Build(status)
	c.Assert(err, jc.ErrorIsNil)

	cloud, err := analyzer.Analyze(topo, testCatalog(), analyzer.Options{SkipApps: []string{"vault"}})
	c.Assert(err, jc.ErrorIsNil)
	_, present := cloud.Applications["vault"]
	c.Assert(present, jc.IsFalse)
}

func (s *AnalyzerSuite) TestAnalyzeUnknownCharmNotSkippedFails(c *gc.C) {
	status := minimalStatus()
	status.Applications["mystery"] = topology.RawApplication{
		Charm:        "mystery-charm",
		ChannelTrack: "stable",
	}

	topo, err := topology.Build(status)
	c.Assert(err, jc.ErrorIsNil)

	_, err = analyzer.Analyze(topo, testCatalog(), analyzer.Options{})
	c.Assert(err, gc.ErrorMatches, ".*unknown charm.*")
}

func (s *AnalyzerSuite) TestAnalyzeIsDeterministic(c *gc.C) {
	topo, err := topology.Build(minimalStatus())
	c.Assert(err, jc.ErrorIsNil)
	cat := testCatalog()

	cloud1, err := analyzer.Analyze(topo, cat, analyzer.Options{})
	c.Assert(err, jc.ErrorIsNil)

	topo2, err := topology.Build(minimalStatus())
	c.Assert(err, jc.ErrorIsNil)
	cloud2, err := analyzer.Analyze(topo2, cat, analyzer.Options{})
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(cloud1.Current, gc.Equals, cloud2.Current)
	c.Assert(cloud1.Target, gc.Equals, cloud2.Target)
	for name, status1 := range cloud1.Applications {
		status2, ok := cloud2.Applications[name]
		c.Assert(ok, jc.IsTrue)
		c.Assert(status1.DerivedRelease, gc.Equals, status2.DerivedRelease)
	}
}
