// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catalog_test

import (
	"strings"
	"testing"

	"github.com/frankban/quicktest"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/cou/catalog"
)

func Test(t *testing.T) { gc.TestingT(t) }

type CatalogSuite struct{}

var _ = gc.Suite(&CatalogSuite{})

func keystoneCatalog() *catalog.Catalog {
	seed := catalog.SeedCharms()
	keystone := seed["keystone"]
	keystone.Ranges = []catalog.WorkloadVersionRange{
		{Lower: "17.0.0", Upper: "18.0.0", Release: "ussuri"},
		{Lower: "18.0.0", Upper: "19.0.0", Release: "victoria"},
		{Lower: "19.0.0", Upper: "20.0.0", Release: "wallaby"},
	}
	seed["keystone"] = keystone
	return catalog.New(seed, catalog.CephToOpenStackSeed())
}

func (s *CatalogSuite) TestReleaseOfMatchesInterval(c *gc.C) {
	cat := keystoneCatalog()
	rel, ok, err := cat.ReleaseOf("keystone", "17.0.1")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ok, jc.IsTrue)
	c.Assert(rel, gc.Equals, catalog.Release("ussuri"))
}

func (s *CatalogSuite) TestReleaseOfUpperExclusive(c *gc.C) {
	cat := keystoneCatalog()
	rel, ok, err := cat.ReleaseOf("keystone", "18.0.0")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ok, jc.IsTrue)
	c.Assert(rel, gc.Equals, catalog.Release("victoria"))
}

func (s *CatalogSuite) TestReleaseOfUnknownVersionIsNotAnError(c *gc.C) {
	cat := keystoneCatalog()
	_, ok, err := cat.ReleaseOf("keystone", "99.0.0")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ok, jc.IsFalse)
}

func (s *CatalogSuite) TestReleaseOfUnknownCharmIsAnError(c *gc.C) {
	cat := keystoneCatalog()
	_, _, err := cat.ReleaseOf("not-a-charm", "1.0.0")
	c.Assert(err, jc.Satisfies, func(err error) bool {
		return strings.Contains(err.Error(), "unknown charm")
	})
}

func (s *CatalogSuite) TestTargetChannelOpenStackTracksRelease(c *gc.C) {
	cat := keystoneCatalog()
	ch, err := cat.TargetChannel("keystone", "focal", "victoria")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ch, gc.Equals, catalog.Channel{Track: "victoria", Risk: "stable"})
}

func (s *CatalogSuite) TestClassifyHypervisorOverride(c *gc.C) {
	cat := keystoneCatalog()
	class, err := cat.Classify("nova-compute")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(class, gc.Equals, catalog.ClassDataPlaneHypervisor)
}

func (s *CatalogSuite) TestCephReleaseMapping(c *gc.C) {
	cat := keystoneCatalog()
	rel, ok := cat.CephRelease("octopus")
	c.Assert(ok, jc.IsTrue)
	c.Assert(rel, gc.Equals, catalog.Release("ussuri"))
}

func (s *CatalogSuite) TestSupportedUpgradeAdjacentAndSharedSeries(c *gc.C) {
	c.Assert(catalog.SupportedUpgrade("ussuri", "victoria"), jc.IsTrue)
	c.Assert(catalog.SupportedUpgrade("ussuri", "wallaby"), jc.IsFalse)
	c.Assert(catalog.SupportedUpgrade("yoga", "zed"), jc.IsTrue)
}

func TestReleaseOfMonotone(t *testing.T) {
	qt := quicktest.New(t)
	cat := keystoneCatalog()
	pairs := [][2]string{
		{"17.0.0", "17.5.0"},
		{"17.9.9", "18.0.0"},
		{"18.5.0", "19.0.0"},
	}
	for _, p := range pairs {
		r1, ok1, err1 := cat.ReleaseOf("keystone", p[0])
		qt.Assert(err1, quicktest.IsNil)
		r2, ok2, err2 := cat.ReleaseOf("keystone", p[1])
		qt.Assert(err2, quicktest.IsNil)
		if ok1 && ok2 {
			qt.Assert(r1.Compare(r2) <= 0, quicktest.IsTrue)
		}
	}
}

func TestLoadLookupParsesRanges(t *testing.T) {
	qt := quicktest.New(t)
	input := "charm,lower-version,upper-version,release\n" +
		"keystone,17.0.0,18.0.0,ussuri\n" +
		"keystone,18.0.0,19.0.0,victoria\n"
	ranges, err := catalog.LoadLookup(strings.NewReader(input))
	qt.Assert(err, quicktest.IsNil)
	qt.Assert(ranges["keystone"], quicktest.HasLen, 2)
	qt.Assert(ranges["keystone"][0].Release, quicktest.Equals, catalog.Release("ussuri"))
}

func TestLoadTrackMappingParsesTracks(t *testing.T) {
	qt := quicktest.New(t)
	input := "charm,series,release,track\n" +
		"vault,focal,ussuri,1.7/stable\n"
	tracks, err := catalog.LoadTrackMapping(strings.NewReader(input))
	qt.Assert(err, quicktest.IsNil)
	qt.Assert(tracks["vault"][catalog.TrackKey{Series: "focal", Release: "ussuri"}], quicktest.Equals, "1.7/stable")
}
