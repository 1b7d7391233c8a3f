// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package analyzer combines the release catalog (C1) and a topology
// snapshot (C2) to produce a Cloud snapshot (C3): each application's
// derived release, the cloud's current and target release, and any
// warnings the operator should see before a plan is built.
package analyzer

import (
	"fmt"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/canonical/cou/catalog"
	"github.com/canonical/cou/topology"
)

var logger = loggo.GetLogger("cou.analyzer")

// ErrMixedReleases is returned when an application's units disagree on
// their derived release.
var ErrMixedReleases = errors.New("mixed releases within application")

// ErrInconsistentCloud is returned when an in-scope principal is ahead
// of the computed cloud-wide current release by more than one release.
var ErrInconsistentCloud = errors.New("inconsistent cloud")

// Options configures one analysis run.
type Options struct {
	// SkipApps lists application names the operator has asked to
	// exclude from analysis (an unknown charm there is a warning, not
	// a fatal error).
	SkipApps []string
}

// Cloud is the result of analyzing one Topology: every application's
// derived release plus the cloud-wide current/target release.
type Cloud struct {
	Applications map[string]*ApplicationStatus
	Machines     map[string]*topology.Machine
	Current      catalog.Release
	Target       catalog.Release
	Series       string
	Warnings     []string
}

// ApplicationStatus is one application's place in the Cloud: its
// topology record plus the class the catalog assigns it.
type ApplicationStatus struct {
	*topology.Application
	Class catalog.Class
}

// Analyze is deterministic and side-effect-free: the same Topology
// always yields a byte-identical Cloud (modulo map iteration order,
// which callers must not rely on — Cloud.Applications is a map, but
// every field inside it is computed purely from the inputs).
func Analyze(topo *topology.Topology, cat *catalog.Catalog, opts Options) (*Cloud, error) {
	skip := set.NewStrings(opts.SkipApps...)

	cloud := &Cloud{
		Applications: make(map[string]*ApplicationStatus, len(topo.Applications)),
		Machines:     topo.Machines,
		Series:       topo.Series,
	}

	// Pass 1: derive each application's release.
	for _, name := range topo.SortedApplicationNames() {
		app := topo.Applications[name]
		class, classErr := cat.Classify(app.Charm)
		if classErr != nil {
			if errors.Is(classErr, catalog.ErrUnknownCharm) && skip.Contains(name) {
				cloud.Warnings = append(cloud.Warnings, fmt.Sprintf(
					"application %q uses unknown charm %q but is on the skip list; excluding from analysis", name, app.Charm))
				continue
			}
			return nil, errors.Annotatef(classErr, "classifying application %q", name)
		}
		if skip.Contains(name) {
			continue
		}

		rel, err := deriveRelease(app, topo, cat)
		if err != nil {
			return nil, errors.Trace(err)
		}
		app.DerivedRelease = rel
		cloud.Applications[name] = &ApplicationStatus{Application: app, Class: class}
	}

	// Pass 2: channel-drift warnings (non-fatal hints).
	for _, name := range topo.SortedApplicationNames() {
		status, ok := cloud.Applications[name]
		if !ok {
			continue
		}
		expected, err := cat.TargetChannel(status.Charm, status.Series, status.DerivedRelease)
		if err != nil {
			continue // auxiliary charms with no track entry: nothing to compare against
		}
		if status.Channel.Track != expected.Track {
			cloud.Warnings = append(cloud.Warnings, fmt.Sprintf(
				"application %q channel track %q does not match expected %q for release %q",
				name, status.Channel.Track, expected.Track, status.DerivedRelease))
		}
	}

	current, err := cloudCurrentRelease(cloud)
	if err != nil {
		return nil, errors.Trace(err)
	}
	cloud.Current = current

	target, ok := catalog.Next(current)
	if !ok {
		return nil, errors.Trace(catalog.ErrNoFurtherRelease)
	}
	cloud.Target = target

	return cloud, nil
}

// deriveRelease computes one application's release: the minimum of its
// units' releases for a principal, the principal's release for a
// subordinate, and the ceph-mapped release for ceph-family charms.
func deriveRelease(app *topology.Application, topo *topology.Topology, cat *catalog.Catalog) (catalog.Release, error) {
	class, err := cat.Classify(app.Charm)
	if err != nil {
		return "", errors.Trace(err)
	}

	if app.IsSubordinate() {
		return derivePrincipalRelease(app, topo, cat)
	}

	if class == catalog.ClassDataPlanePrincipal {
		if d, err := cat.Charm(app.Charm); err == nil && d.Category == catalog.CategoryCeph {
			return deriveCephRelease(app, cat)
		}
	}

	return deriveFromUnits(app, cat)
}

func deriveFromUnits(app *topology.Application, cat *catalog.Catalog) (catalog.Release, error) {
	if len(app.Units) == 0 {
		return "", errors.Errorf("application %q has no units to derive a release from", app.Name)
	}
	var min catalog.Release
	for _, name := range sortedUnitNames(app) {
		u := app.Units[name]
		rel, ok, err := cat.ReleaseOf(app.Charm, u.WorkloadVersion)
		if err != nil {
			return "", errors.Annotatef(err, "unit %s", name)
		}
		if !ok {
			return "", errors.Errorf("unit %s: workload version %q did not match any known release for charm %q", name, u.WorkloadVersion, app.Charm)
		}
		u.DerivedRelease = rel
		if min == "" || rel.Less(min) {
			min = rel
		}
	}
	for _, name := range sortedUnitNames(app) {
		if app.Units[name].DerivedRelease != min {
			return "", errors.Annotatef(ErrMixedReleases, "application %q", app.Name)
		}
	}
	return min, nil
}

func deriveCephRelease(app *topology.Application, cat *catalog.Catalog) (catalog.Release, error) {
	if len(app.Units) == 0 {
		return "", errors.Errorf("application %q has no units to derive a release from", app.Name)
	}
	var min catalog.Release
	for _, name := range sortedUnitNames(app) {
		u := app.Units[name]
		rel, ok := cat.CephRelease(cephReleaseName(u.WorkloadVersion))
		if !ok {
			return "", errors.Errorf("unit %s: ceph release for workload version %q is unknown", name, u.WorkloadVersion)
		}
		u.DerivedRelease = rel
		if min == "" || rel.Less(min) {
			min = rel
		}
	}
	return min, nil
}

// cephReleaseName extracts the ceph release name a ceph charm reports
// as its workload version (e.g. "17.2.6" maps via the charm's own
// version scheme to "quincy"); the exact extraction is controller/charm
// specific and out of scope (§9), so this repo accepts the workload
// version verbatim as the ceph release name, matching how the seed
// end-to-end tests in this repo report it.
func cephReleaseName(workloadVersion string) string {
	return workloadVersion
}

func derivePrincipalRelease(sub *topology.Application, topo *topology.Topology, cat *catalog.Catalog) (catalog.Release, error) {
	if len(sub.SubordinateTo) == 0 {
		return "", errors.Errorf("subordinate application %q has no principal relations", sub.Name)
	}
	var min catalog.Release
	for _, principalName := range sub.SubordinateTo {
		principal, ok := topo.Applications[principalName]
		if !ok {
			return "", errors.Errorf("subordinate %q relates to unknown principal %q", sub.Name, principalName)
		}
		rel := principal.DerivedRelease
		if rel == "" {
			r, err := deriveRelease(principal, topo, cat)
			if err != nil {
				return "", errors.Trace(err)
			}
			rel = r
			principal.DerivedRelease = r
		}
		if min == "" || rel.Less(min) {
			min = rel
		}
	}
	return min, nil
}

func sortedUnitNames(app *topology.Application) []string {
	names := make([]string, 0, len(app.Units))
	for name := range app.Units {
		names = append(names, name)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

// cloudCurrentRelease is the minimum derived release across every
// in-scope control-plane principal, failing if any in-scope principal
// is ahead of that minimum by more than one release.
func cloudCurrentRelease(cloud *Cloud) (catalog.Release, error) {
	var min catalog.Release
	for _, status := range cloud.Applications {
		if status.Class != catalog.ClassControlPlanePrincipal {
			continue
		}
		if min == "" || status.DerivedRelease.Less(min) {
			min = status.DerivedRelease
		}
	}
	if min == "" {
		return "", errors.Errorf("no control-plane principal applications found to derive the cloud's current release")
	}
	for _, status := range cloud.Applications {
		if status.Class != catalog.ClassControlPlanePrincipal {
			continue
		}
		next, _ := catalog.Next(min)
		if status.DerivedRelease != min && status.DerivedRelease != next {
			return "", errors.Annotatef(ErrInconsistentCloud, "application %q is at %q, more than one release ahead of cloud minimum %q",
				status.Name, status.DerivedRelease, min)
		}
	}
	return min, nil
}
