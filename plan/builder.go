// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/canonical/cou/analyzer"
	"github.com/canonical/cou/catalog"
	"github.com/canonical/cou/controller"
	"github.com/canonical/cou/step"
	"github.com/canonical/cou/strategy"
	"github.com/canonical/cou/topology"
)

var logger = loggo.GetLogger("cou.plan")

// controlPlanePriority is the fixed application order §4.5 step 2
// names: rabbitmq-server and ceph-mon first (other services depend on
// them), keystone next (everything authenticates against it), then the
// services that depend on keystone, ending with the charms the spec
// explicitly calls out as last (openstack-dashboard, octavia,
// mysql-innodb-cluster, vault). Unknown-but-supported charms not in
// this list sort lexicographically after it.
var controlPlanePriority = []string{
	"rabbitmq-server",
	"ceph-mon",
	"keystone",
	"glance",
	"cinder",
	"neutron-api",
	"nova-cloud-controller",
	"placement",
	"ovn-central",
	"openstack-dashboard",
	"octavia",
	"mysql-innodb-cluster",
	"vault",
}

// Build assembles the root plan Step for cloud, per opts (§4.5).
func Build(cloud *analyzer.Cloud, ctx strategy.Context, opts Options) (*step.Step, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := opts.ValidateSkipApps(); err != nil {
		return nil, errors.Trace(err)
	}

	skip := set.NewStrings(opts.SkipApps...)

	var top []*step.Step
	var warnings []string

	top = append(top, buildCloudPreUpgrade(ctx, opts))

	if opts.UpgradeGroup == GroupWhole || opts.UpgradeGroup == GroupControlPlane {
		cp, err := buildControlPlanePrincipals(cloud, ctx, skip)
		if err != nil {
			return nil, errors.Trace(err)
		}
		top = append(top, cp)
		top = append(top, buildSubordinates(cloud, ctx, skip, catalog.ClassControlPlaneSubordinate, "control-plane subordinates"))
	}

	if opts.UpgradeGroup == GroupWhole || opts.UpgradeGroup == GroupHypervisors {
		hv, hvWarnings, err := buildHypervisorGroup(cloud, ctx, opts, skip)
		if err != nil {
			return nil, errors.Trace(err)
		}
		top = append(top, hv)
		warnings = append(warnings, hvWarnings...)
	}

	if opts.UpgradeGroup == GroupWhole || opts.UpgradeGroup == GroupDataPlane {
		dp, err := buildRemainingDataPlanePrincipals(cloud, ctx, skip)
		if err != nil {
			return nil, errors.Trace(err)
		}
		top = append(top, dp)
		top = append(top, buildSubordinates(cloud, ctx, skip, catalog.ClassDataPlaneSubordinate, "data-plane subordinates"))
		if post := buildCloudPostUpgrade(cloud, ctx); post != nil {
			top = append(top, post)
		}
	}

	root := step.NewGroup(fmt.Sprintf("upgrade plan for group %s", opts.UpgradeGroup), top...)
	for _, w := range warnings {
		logger.Warningf("%s", w)
	}
	return root, nil
}

// buildCloudPreUpgrade builds §4.5 step 1: verify idle, then the
// optional backup/archive/purge maintenance leaves.
func buildCloudPreUpgrade(ctx strategy.Context, opts Options) *step.Step {
	children := []*step.Step{
		step.NewLeaf("verify all applications idle", func(c context.Context) error {
			return errors.Trace(ctx.Facade.WaitForIdle(c, controller.ScopeModel, "", ctx.ModelIdleTimeout))
		}),
	}

	if opts.Backup {
		children = append(children, step.NewLeaf("backup databases", func(c context.Context) error {
			_, err := ctx.Facade.RunAction(c, "mysql-innodb-cluster/leader", "backup", nil)
			return errors.Trace(err)
		}).WithRetry())
	}

	if opts.Archive {
		children = append(children, step.NewLeaf("archive deleted rows", func(c context.Context) error {
			_, err := ctx.Facade.RunAction(c, "keystone/leader", "archive-data", map[string]interface{}{
				"batch-size": opts.ArchiveBatchSize,
			})
			return errors.Trace(err)
		}).WithRetry())
	}

	if opts.Purge {
		params := map[string]interface{}{}
		if opts.PurgeBeforeDate != nil {
			params["before"] = opts.PurgeBeforeDate.Format("2006-01-02")
		}
		children = append(children, step.NewLeaf("purge shadow tables", func(c context.Context) error {
			_, err := ctx.Facade.RunAction(c, "keystone/leader", "purge-data", params)
			return errors.Trace(err)
		}).WithRetry())
	}

	return step.NewGroup("cloud pre-upgrade checks", children...)
}

// buildCloudPostUpgrade builds §4.5 step 7: the ceph require-osd-release
// reconciliation, when a ceph-mon application is present in the cloud.
// Returns nil if ceph is not deployed.
func buildCloudPostUpgrade(cloud *analyzer.Cloud, ctx strategy.Context) *step.Step {
	var cephMon string
	for _, name := range sortedAppNames(cloud) {
		if app := cloud.Applications[name]; app != nil && app.Charm == "ceph-mon" {
			cephMon = name
			break
		}
	}
	if cephMon == "" {
		return nil
	}
	targetCeph, ok := ctx.Catalog.CephReleaseForOpenStack(cloud.Target)
	if !ok {
		logger.Warningf("no ceph release mapped for openstack release %q; skipping post-upgrade ceph check", cloud.Target)
		return nil
	}
	return step.NewGroup("cloud post-upgrade checks", strategy.BuildCephRequireOSDReleaseCheck(cephMon, targetCeph, ctx))
}

// buildControlPlanePrincipals builds §4.5 step 2: a sequential group
// over control-plane principals in priority order.
func buildControlPlanePrincipals(cloud *analyzer.Cloud, ctx strategy.Context, skip set.Strings) (*step.Step, error) {
	names := applicationsInClass(cloud, catalog.ClassControlPlanePrincipal, skip)
	sortByPriority(cloud, names, controlPlanePriority)

	var children []*step.Step
	for _, name := range names {
		app := cloud.Applications[name]
		subtree, err := strategy.Build(app, cloud.Target, ctx)
		if err != nil {
			return nil, errors.Annotatef(err, "building strategy for %q", name)
		}
		children = append(children, subtree.WithInteractiveGate())
	}
	return step.NewGroup("control-plane principals", children...), nil
}

// buildSubordinates builds a sequential group over every application in
// class (a subordinate class), in sorted order.
func buildSubordinates(cloud *analyzer.Cloud, ctx strategy.Context, skip set.Strings, class catalog.Class, description string) *step.Step {
	names := applicationsInClass(cloud, class, skip)
	sort.Strings(names)

	var children []*step.Step
	for _, name := range names {
		app := cloud.Applications[name]
		subtree, err := strategy.BuildSubordinate(app, cloud.Target, ctx)
		if err != nil {
			children = append(children, step.NewLeaf(fmt.Sprintf("skip %s: %v", name, err), func(context.Context) error {
				return nil
			}))
			continue
		}
		children = append(children, subtree)
	}
	return step.NewGroup(description, children...)
}

// buildRemainingDataPlanePrincipals builds §4.5 step 5: ceph-osd and any
// non-hypervisor data-plane principal, sequential, each preceded by a
// nova-compute-at-target pre-check.
func buildRemainingDataPlanePrincipals(cloud *analyzer.Cloud, ctx strategy.Context, skip set.Strings) (*step.Step, error) {
	names := applicationsInClass(cloud, catalog.ClassDataPlanePrincipal, skip)
	sort.Strings(names)

	novaComputeUnits := unitsOfCharm(cloud, "nova-compute")

	var children []*step.Step
	for _, name := range names {
		app := cloud.Applications[name]

		if len(novaComputeUnits) > 0 {
			children = append(children, leafVerifyNovaComputeAtTarget(novaComputeUnits, cloud.Target, ctx))
		}

		var subtree *step.Step
		var err error
		if app.Charm == "ceph-osd" {
			cephMoved, targetCephRelease := cephMovement(cloud, ctx)
			subtree, err = strategy.BuildCephOSD(app, cloud.Target, cephMoved, targetCephRelease, ctx)
		} else {
			subtree, err = strategy.Build(app, cloud.Target, ctx)
		}
		if err != nil {
			return nil, errors.Annotatef(err, "building strategy for %q", name)
		}
		children = append(children, subtree.WithInteractiveGate())
	}
	return step.NewGroup("remaining data-plane principals", children...), nil
}

// cephMovement reports whether ceph-osd's strategy should switch
// channel: true iff the catalog maps a different ceph release to the
// cloud's target OpenStack release than is already in use.
func cephMovement(cloud *analyzer.Cloud, ctx strategy.Context) (bool, string) {
	targetCeph, ok := ctx.Catalog.CephReleaseForOpenStack(cloud.Target)
	if !ok {
		return false, ""
	}
	currentCeph, ok := ctx.Catalog.CephReleaseForOpenStack(cloud.Current)
	if !ok || currentCeph != targetCeph {
		return true, targetCeph
	}
	return false, targetCeph
}

// buildHypervisorGroup builds §4.5 step 4: one subtree per
// hypervisor-hosting application, each with its per-unit work grouped
// by availability zone (parallel across machines within a zone,
// sequential across zones) and spliced into the canonical principal
// sequence via strategy.BuildHypervisorApplication.
func buildHypervisorGroup(cloud *analyzer.Cloud, ctx strategy.Context, opts Options, skip set.Strings) (*step.Step, []string, error) {
	names := applicationsInClass(cloud, catalog.ClassDataPlaneHypervisor, skip)
	sort.Strings(names)

	machineFilter := set.NewStrings(opts.MachineFilter...)
	azFilter := set.NewStrings(opts.AZFilter...)

	var warnings []string
	var children []*step.Step

	for _, name := range names {
		app := cloud.Applications[name]
		perUnit, appWarnings := buildHypervisorPerUnitTree(cloud, app, machineFilter, azFilter, opts.Force, ctx)
		warnings = append(warnings, appWarnings...)

		subtree, err := strategy.BuildHypervisorApplication(app, cloud.Target, ctx, perUnit)
		if err != nil {
			return nil, warnings, errors.Annotatef(err, "building hypervisor strategy for %q", name)
		}
		children = append(children, subtree.WithInteractiveGate())
	}

	return step.NewGroup("hypervisor group", children...), warnings, nil
}

// buildHypervisorPerUnitTree groups app's units by availability zone
// (outer sequential, sorted by zone name) and, within a zone, by
// machine (parallel); a machine with running VMs is omitted unless
// force is set.
func buildHypervisorPerUnitTree(cloud *analyzer.Cloud, app *analyzer.ApplicationStatus, machineFilter, azFilter set.Strings, force bool, ctx strategy.Context) (*step.Step, []string) {
	type machineUnits struct {
		machineID string
		az        string
		units     []string
	}

	byMachine := map[string]*machineUnits{}
	var warnings []string

	for _, unitName := range sortedKeys(app.Units) {
		unit := app.Units[unitName]
		machine := cloud.Machines[unit.MachineID]
		if machine == nil {
			continue
		}
		if !machineFilter.IsEmpty() && !machineFilter.Contains(machine.ID) {
			continue
		}
		if !azFilter.IsEmpty() && !azFilter.Contains(machine.AvailabilityZone) {
			continue
		}
		if machine.RunningVMs > 0 && !force {
			warnings = append(warnings, fmt.Sprintf(
				"machine %q (az %q) hosts %d running instance(s); omitted from the hypervisor group, use --force to include it",
				machine.ID, machine.AvailabilityZone, machine.RunningVMs))
			continue
		}
		mu, ok := byMachine[machine.ID]
		if !ok {
			mu = &machineUnits{machineID: machine.ID, az: machine.AvailabilityZone}
			byMachine[machine.ID] = mu
		}
		mu.units = append(mu.units, unitName)
	}

	byZone := map[string][]*machineUnits{}
	for _, mu := range byMachine {
		byZone[mu.az] = append(byZone[mu.az], mu)
	}

	var zones []string
	for az := range byZone {
		zones = append(zones, az)
	}
	sort.Strings(zones)

	var zoneGroups []*step.Step
	for _, az := range zones {
		machines := byZone[az]
		sort.Slice(machines, func(i, j int) bool { return machines[i].machineID < machines[j].machineID })

		var machineGroups []*step.Step
		for _, mu := range machines {
			var unitSteps []*step.Step
			for _, unitName := range mu.units {
				unitSteps = append(unitSteps, strategy.BuildHypervisorUnitSubtree(app.Name, unitName, ctx, force))
			}
			machineGroups = append(machineGroups, step.NewGroup(fmt.Sprintf("machine %s", mu.machineID), unitSteps...))
		}
		zoneGroups = append(zoneGroups, step.NewParallelGroup(fmt.Sprintf("availability zone %s", az), machineGroups...))
	}

	return step.NewGroup(fmt.Sprintf("%s hypervisor units by availability zone", app.Name), zoneGroups...), warnings
}

func leafVerifyNovaComputeAtTarget(units []string, target catalog.Release, ctx strategy.Context) *step.Step {
	return step.NewLeaf("verify nova-compute units are at target release "+string(target), func(c context.Context) error {
		for _, unitName := range units {
			wv, err := ctx.Facade.UnitWorkloadVersion(c, unitName)
			if err != nil {
				return errors.Annotatef(err, "checking nova-compute unit %s", unitName)
			}
			rel, ok, err := ctx.Catalog.ReleaseOf("nova-compute", wv)
			if err != nil {
				return errors.Trace(err)
			}
			if !ok || rel.Less(target) {
				return errors.Errorf("nova-compute unit %s has not reached target release %q", unitName, target)
			}
		}
		return nil
	})
}

func applicationsInClass(cloud *analyzer.Cloud, class catalog.Class, skip set.Strings) []string {
	var names []string
	for name, app := range cloud.Applications {
		if skip.Contains(name) {
			continue
		}
		if app.Class == class {
			names = append(names, name)
		}
	}
	return names
}

func unitsOfCharm(cloud *analyzer.Cloud, charm string) []string {
	var names []string
	for _, appName := range sortedAppNames(cloud) {
		app := cloud.Applications[appName]
		if app.Charm != charm {
			continue
		}
		for _, unitName := range sortedKeys(app.Units) {
			names = append(names, unitName)
		}
	}
	return names
}

func sortedAppNames(cloud *analyzer.Cloud) []string {
	names := make([]string, 0, len(cloud.Applications))
	for name := range cloud.Applications {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(units map[string]*topology.Unit) []string {
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sortByPriority orders application names in place by the charm each
// one runs: entries whose charm appears in priority sort by its
// position there; everything else follows, sorted lexicographically by
// application name, per §4.5 step 2.
func sortByPriority(cloud *analyzer.Cloud, names []string, priority []string) {
	index := make(map[string]int, len(priority))
	for i, charm := range priority {
		index[charm] = i
	}
	sort.Slice(names, func(i, j int) bool {
		pi, iok := index[cloud.Applications[names[i]].Charm]
		pj, jok := index[cloud.Applications[names[j]].Charm]
		if iok && jok {
			if pi != pj {
				return pi < pj
			}
			return names[i] < names[j]
		}
		if iok != jok {
			return iok
		}
		return names[i] < names[j]
	})
}
