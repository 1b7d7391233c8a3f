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

// BuildSubordinate builds the subordinate strategy (§4.4 variant):
// steps 2, 4, 7, 8, 9 of the canonical sequence are omitted. A
// subordinate is upgraded solely via charm refresh and channel switch.
func BuildSubordinate(app *analyzer.ApplicationStatus, target catalog.Release, ctx Context) (*step.Step, error) {
	channel, err := ctx.Catalog.TargetChannel(app.Charm, app.Series, target)
	if err != nil {
		return nil, errors.Trace(err)
	}
	children := []*step.Step{
		leafRefreshCharm(app.Name, ctx).WithApplication(app.Name, ""),
		leafSwitchChannel(app.Name, channel.Track, channel.Risk, ctx).WithApplication(app.Name, ""),
	}
	return step.NewGroup(fmt.Sprintf("upgrade %s to %s", app.Name, target), children...), nil
}
