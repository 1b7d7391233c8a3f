// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package strategy

import (
	"github.com/canonical/cou/analyzer"
	"github.com/canonical/cou/catalog"
	"github.com/canonical/cou/step"
)

// Build dispatches to the right strategy variant for the common case:
// principal vs subordinate. Hypervisor-hosting principals and
// ceph-family charms need cross-application data (availability-zone
// membership, ceph-release movement) the plan builder has and this
// package doesn't, so the plan builder calls BuildHypervisorApplication
// and BuildCephOSD directly instead of going through Build for those.
func Build(app *analyzer.ApplicationStatus, target catalog.Release, ctx Context) (*step.Step, error) {
	if app.IsSubordinate() {
		return BuildSubordinate(app, target, ctx)
	}
	return BuildPrincipal(app, target, ctx, nil)
}
