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

// BuildCephOSD builds the ceph-osd strategy (§4.4): all-at-once package
// upgrade and origin switch, but no channel switch unless the ceph
// release actually moves. The group does not include the ceph-mon
// require-osd-release check; the plan builder adds that once, in the
// cloud post-upgrade group, via BuildCephRequireOSDReleaseCheck.
func BuildCephOSD(app *analyzer.ApplicationStatus, targetOpenStack catalog.Release, cephMoved bool, targetCephRelease string, ctx Context) (*step.Step, error) {
	var children []*step.Step

	children = append(children, buildPackageUpgradeStep(app, ctx))

	if cephMoved {
		children = append(children, leafSwitchChannel(app.Name, targetCephRelease, "stable", ctx).WithApplication(app.Name, ""))
	}

	children = append(children,
		leafChangeOrigin(app.Name, originKey(app.Charm), string(targetOpenStack), app.Series, ctx).WithApplication(app.Name, ""),
		leafWaitIdle(app.Name, ctx.idleTimeout(app.Charm), ctx).WithApplication(app.Name, ""),
	)

	return step.NewGroup(fmt.Sprintf("upgrade %s to %s", app.Name, targetOpenStack), children...), nil
}

// BuildCephRequireOSDReleaseCheck builds the cloud post-upgrade step
// (§4.5 step 7) asserting that ceph-mon's require-osd-release option
// matches the new ceph release. The exact reconciliation command is
// delegated to the controller action (§9 Open Question); this step
// only verifies the post-condition.
func BuildCephRequireOSDReleaseCheck(cephMonApp, targetCephRelease string, ctx Context) *step.Step {
	return step.NewLeaf("ensure require-osd-release matches "+targetCephRelease, func(c context.Context) error {
		cfg, err := ctx.Facade.GetConfig(c, cephMonApp)
		if err != nil {
			return errors.Annotatef(err, "fetching %s config", cephMonApp)
		}
		current, _ := cfg["require-osd-release"].(string)
		if current != targetCephRelease {
			return errors.Errorf("ceph-mon require-osd-release is %q, expected %q", current, targetCephRelease)
		}
		return nil
	}).WithApplication(cephMonApp, "")
}
