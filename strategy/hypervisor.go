// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package strategy

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"github.com/canonical/cou/analyzer"
	"github.com/canonical/cou/catalog"
	"github.com/canonical/cou/step"
)

// BuildHypervisorUnitSubtree builds the per-unit subtree the
// paused-single-unit strategy runs for one hypervisor-hosting unit
// (§4.4): disable scheduler, verify no VMs hosted (unless force),
// pause, run the openstack-upgrade action, resume, enable scheduler.
func BuildHypervisorUnitSubtree(appName, unitName string, ctx Context, force bool) *step.Step {
	var children []*step.Step

	children = append(children, step.NewLeaf(
		"disable nova scheduler on "+unitName,
		leafRunAction(unitName, "disable", nil, ctx),
	).WithApplication(appName, unitName))

	if !force {
		children = append(children, step.NewLeaf(
			"verify no VMs hosted on "+unitName,
			func(c context.Context) error {
				res, err := ctx.Facade.RunAction(c, unitName, "instance-count", nil)
				if err != nil {
					return errors.Trace(err)
				}
				count, _ := res.Output["instance-count"].(int)
				if count > 0 {
					return errors.Errorf("unit %s still hosts %d running instance(s)", unitName, count)
				}
				return nil
			},
		).WithApplication(appName, unitName))
	}

	children = append(children,
		step.NewLeaf("pause "+unitName, leafRunAction(unitName, "pause", nil, ctx)).WithApplication(appName, unitName),
		step.NewLeaf("run openstack-upgrade on "+unitName, leafRunAction(unitName, "openstack-upgrade", nil, ctx)).WithRetry().WithApplication(appName, unitName),
		step.NewLeaf("resume "+unitName, leafRunAction(unitName, "resume", nil, ctx)).WithApplication(appName, unitName),
		step.NewLeaf("enable nova scheduler on "+unitName, leafRunAction(unitName, "enable", nil, ctx)).WithApplication(appName, unitName),
	)

	return step.NewGroup(fmt.Sprintf("upgrade unit %s", unitName), children...)
}

// BuildHypervisorApplication wraps BuildPrincipal, splicing
// perUnitSubtree (normally an availability-zone-grouped tree the plan
// builder assembled from repeated calls to BuildHypervisorUnitSubtree)
// in after the channel switch, per §4.4.
func BuildHypervisorApplication(app *analyzer.ApplicationStatus, target catalog.Release, ctx Context, perUnitSubtree *step.Step) (*step.Step, error) {
	return BuildPrincipal(app, target, ctx, perUnitSubtree)
}
