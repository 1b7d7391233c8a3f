// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package strategy

import (
	"fmt"

	"github.com/canonical/cou/step"
)

// BuildSkipped builds the empty, explanatory group for an application
// the operator asked to skip via --skip-apps (§4.4). --skip-apps is
// restricted to an allow-list, currently {vault}; enforcing that
// restriction is the plan builder's job (it is a configuration
// concern, not a strategy one). plan.Build does not call this builder:
// it leaves skip-listed applications out of the plan entirely.
func BuildSkipped(appName string) *step.Step {
	return step.NewGroup(fmt.Sprintf("skip %s (excluded via --skip-apps)", appName))
}
