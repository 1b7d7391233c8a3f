// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package strategy

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/canonical/cou/analyzer"
	"github.com/canonical/cou/catalog"
	"github.com/canonical/cou/step"
)

// BuildPrincipal builds the canonical OpenStack principal strategy
// (§4.4 steps 1-9): pre-upgrade config, parallel package upgrade,
// charm refresh, wait-idle, channel switch, wait-idle, origin change,
// model-wide wait-idle, workload verification.
//
// extra, when non-nil, is spliced in immediately after the channel
// switch + wait-idle pair (steps 5/6) and before the origin change
// (step 7) — this is how the hypervisor paused-single-unit variant
// reuses this exact sequence while inserting its per-unit subtree in
// the one place §4.4 calls out.
func BuildPrincipal(app *analyzer.ApplicationStatus, target catalog.Release, ctx Context, extra *step.Step) (*step.Step, error) {
	channel, err := ctx.Catalog.TargetChannel(app.Charm, app.Series, target)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var children []*step.Step

	if _, ok := app.Config["action-managed-upgrade"]; ok {
		children = append(children, step.NewLeaf(
			fmt.Sprintf("disable action-managed-upgrade on %s", app.Name),
			leafSetConfig(ctx, app.Name, "action-managed-upgrade", false),
		).WithRetry().WithApplication(app.Name, ""))
	}

	children = append(children, buildPackageUpgradeStep(app, ctx))
	children = append(children, leafRefreshCharm(app.Name, ctx).WithApplication(app.Name, ""))
	children = append(children, leafWaitIdle(app.Name, ctx.idleTimeout(app.Charm), ctx).WithApplication(app.Name, ""))
	children = append(children, leafSwitchChannel(app.Name, channel.Track, channel.Risk, ctx).WithApplication(app.Name, ""))
	children = append(children, leafWaitIdle(app.Name, ctx.idleTimeout(app.Charm), ctx).WithApplication(app.Name, ""))

	if extra != nil {
		children = append(children, extra)
	}

	children = append(children,
		leafChangeOrigin(app.Name, originKey(app.Charm), string(target), app.Series, ctx).WithApplication(app.Name, ""),
		leafWaitModelIdle(ctx),
		leafVerifyWorkloadUpgraded(app, target, ctx).WithApplication(app.Name, ""),
	)

	return step.NewGroup(fmt.Sprintf("upgrade %s to %s", app.Name, target), children...), nil
}

func buildPackageUpgradeStep(app *analyzer.ApplicationStatus, ctx Context) *step.Step {
	var perUnit []*step.Step
	for _, name := range sortedUnitNames(app) {
		unitName := name
		perUnit = append(perUnit, step.NewLeaf(
			fmt.Sprintf("upgrade packages on %s", unitName),
			leafRunOnUnit(unitName, "apt-get update && apt-get dist-upgrade -y", ctx),
		).WithRetry().WithApplication(app.Name, unitName))
	}
	return step.NewParallelGroup(fmt.Sprintf("upgrade packages on %s units", app.Name), perUnit...)
}
