// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catalog

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("cou.catalog")

// ErrUnknownCharm is returned by ReleaseOf and Classify when the charm
// name is not present in the catalog. It is the caller's job to decide
// whether that is fatal (the default) or tolerable (the charm is on
// the operator's explicit skip-apps list).
var ErrUnknownCharm = errors.New("unknown charm")

// Catalog is the frozen release catalog (C1). It is built once, from
// the two shipped CSVs (see the csv.go loaders) plus a small built-in
// seed of well-known charm categories, and never mutated afterwards.
type Catalog struct {
	charms          map[string]CharmDescriptor
	cephToOpenStack map[string]Release
	openStackToCeph map[Release]string
	defaultRisk     string
}

// New builds a Catalog from charm descriptors and the ceph-release to
// OpenStack-release mapping (e.g. "octopus" -> "ussuri"). Both maps are
// copied defensively; the returned Catalog is immutable.
func New(charms map[string]CharmDescriptor, cephToOpenStack map[string]Release) *Catalog {
	c := &Catalog{
		charms:          make(map[string]CharmDescriptor, len(charms)),
		cephToOpenStack: make(map[string]Release, len(cephToOpenStack)),
		openStackToCeph: make(map[Release]string, len(cephToOpenStack)),
		defaultRisk:     "stable",
	}
	for name, d := range charms {
		c.charms[name] = d
	}
	for rel, os := range cephToOpenStack {
		c.cephToOpenStack[rel] = os
		c.openStackToCeph[os] = rel
	}
	return c
}

// CephReleaseForOpenStack is the inverse of CephRelease: it returns the
// ceph-release name that ships alongside osRelease (e.g. "ussuri" ->
// "octopus"), for the plan builder's post-upgrade require-osd-release
// reconciliation check (§4.5 step 7).
func (c *Catalog) CephReleaseForOpenStack(osRelease Release) (string, bool) {
	name, ok := c.openStackToCeph[osRelease]
	return name, ok
}

// Charm returns the descriptor for name, or ErrUnknownCharm.
func (c *Catalog) Charm(name string) (CharmDescriptor, error) {
	d, ok := c.charms[name]
	if !ok {
		return CharmDescriptor{}, errors.Annotatef(ErrUnknownCharm, "charm %q", name)
	}
	return d, nil
}

// ReleaseOf locates the workload-version range of charm that contains
// workloadVersion and returns its release. An empty range match is
// reported as (_, false, nil): unknown, not an error. An unknown charm
// name is always an error regardless of the version.
func (c *Catalog) ReleaseOf(charmName, workloadVersion string) (Release, bool, error) {
	d, err := c.Charm(charmName)
	if err != nil {
		return "", false, errors.Trace(err)
	}
	for _, rng := range d.Ranges {
		if compareWorkloadVersions(workloadVersion, rng.Lower) < 0 {
			continue
		}
		if rng.Upper != "" && compareWorkloadVersions(workloadVersion, rng.Upper) >= 0 {
			continue
		}
		return rng.Release, true, nil
	}
	logger.Debugf("no workload-version range matched %s for charm %s", workloadVersion, charmName)
	return "", false, nil
}

// CephRelease maps a ceph-release name (as reported by ceph-mon/ceph-osd
// workload versions) through to the OpenStack release it corresponds
// to, e.g. "octopus" -> "ussuri".
func (c *Catalog) CephRelease(cephRelease string) (Release, bool) {
	r, ok := c.cephToOpenStack[cephRelease]
	return r, ok
}

// TargetChannel computes the (track, risk) channel an application
// should switch to in order to run release on series. OpenStack charms
// track the release codename directly; auxiliary charms look up their
// track in the charm's track-map.
func (c *Catalog) TargetChannel(charmName, series string, release Release) (Channel, error) {
	d, err := c.Charm(charmName)
	if err != nil {
		return Channel{}, errors.Trace(err)
	}
	switch d.Category {
	case CategoryOpenStackPrincipal, CategoryOpenStackSubordinate, CategoryCeph:
		return Channel{Track: string(release), Risk: c.defaultRisk}, nil
	default:
		track, ok := d.Tracks[TrackKey{Series: series, Release: release}]
		if !ok {
			return Channel{}, errors.NotFoundf("track for charm %q series %q release %q", charmName, series, release)
		}
		return Channel{Track: track, Risk: c.defaultRisk}, nil
	}
}

// Classify returns the coarse Class (control-plane/data-plane/auxiliary
// grouping) for charmName, used by the plan builder to place the
// application's steps in the right top-level phase.
func (c *Catalog) Classify(charmName string) (Class, error) {
	d, err := c.Charm(charmName)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if hv, ok := hypervisorHostingCharms[charmName]; ok && hv {
		return ClassDataPlaneHypervisor, nil
	}
	switch d.Category {
	case CategoryOpenStackPrincipal:
		return ClassControlPlanePrincipal, nil
	case CategoryOpenStackSubordinate:
		return ClassControlPlaneSubordinate, nil
	case CategoryCeph:
		return ClassDataPlanePrincipal, nil
	case CategoryAuxiliarySubordinate:
		return ClassDataPlaneSubordinate, nil
	case CategoryAuxiliaryPrincipal:
		return ClassAuxiliary, nil
	case CategorySpecial:
		return ClassAuxiliary, nil
	default:
		return ClassAuxiliary, nil
	}
}

// hypervisorHostingCharms lists charms that (when deployed as a
// principal) host nova-compute or are routinely colocated with it, and
// therefore belong to the paused-single-unit hypervisor strategy and
// plan group rather than the generic data-plane-principal group.
var hypervisorHostingCharms = map[string]bool{
	"nova-compute": true,
	"cinder":       true,
}
