// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package strategy

import (
	"context"
	"sort"
	"time"

	"github.com/juju/errors"

	"github.com/canonical/cou/analyzer"
	"github.com/canonical/cou/catalog"
	"github.com/canonical/cou/controller"
	"github.com/canonical/cou/step"
)

func sortedUnitNames(app *analyzer.ApplicationStatus) []string {
	names := make([]string, 0, len(app.Units))
	for name := range app.Units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func leafSetConfig(ctx Context, app, key string, value interface{}) step.Action {
	return func(c context.Context) error {
		return errors.Trace(ctx.Facade.SetConfig(c, app, key, value))
	}
}

func leafRefreshCharm(app string, ctx Context) *step.Step {
	return step.NewLeaf("refresh charm for "+app, func(c context.Context) error {
		return errors.Trace(ctx.Facade.RefreshCharm(c, app))
	}).WithRetry()
}

func leafSwitchChannel(app, track, risk string, ctx Context) *step.Step {
	return step.NewLeaf("switch "+app+" to channel "+track+"/"+risk, func(c context.Context) error {
		return errors.Trace(ctx.Facade.SetChannel(c, app, track, risk))
	}).WithRetry()
}

func leafWaitIdle(app string, timeout time.Duration, ctx Context) *step.Step {
	return step.NewLeaf("wait for "+app+" to reach idle", func(c context.Context) error {
		return errors.Trace(ctx.Facade.WaitForIdle(c, controller.ScopeApplication, app, timeout))
	})
}

func leafChangeOrigin(app, key, target, series string, ctx Context) *step.Step {
	origin := "cloud:" + series + "-" + target
	return step.NewLeaf("set "+key+" on "+app+" to "+origin, func(c context.Context) error {
		return errors.Trace(ctx.Facade.SetConfig(c, app, key, origin))
	}).WithRetry()
}

func leafWaitModelIdle(ctx Context) *step.Step {
	return step.NewLeaf("wait for model to reach idle", func(c context.Context) error {
		return errors.Trace(ctx.Facade.WaitForIdle(c, controller.ScopeModel, "", ctx.ModelIdleTimeout))
	})
}

func leafVerifyWorkloadUpgraded(app *analyzer.ApplicationStatus, target catalog.Release, ctx Context) *step.Step {
	appName := app.Name
	charmName := app.Charm
	units := sortedUnitNames(app)
	return step.NewLeaf("verify "+appName+" workload upgraded to "+string(target), func(c context.Context) error {
		for _, unitName := range units {
			wv, err := ctx.Facade.UnitWorkloadVersion(c, unitName)
			if err != nil {
				return errors.Annotatef(err, "re-fetching workload version for %s", unitName)
			}
			rel, ok, err := ctx.Catalog.ReleaseOf(charmName, wv)
			if err != nil {
				return errors.Annotatef(err, "re-checking release for %s", unitName)
			}
			if !ok || rel.Less(target) {
				return errors.Errorf("unit %s did not reach release %q after upgrade", unitName, target)
			}
		}
		return nil
	})
}

func leafRunOnUnit(unit, command string, ctx Context) step.Action {
	return func(c context.Context) error {
		res, err := ctx.Facade.RunOnUnit(c, unit, command)
		if err != nil {
			return errors.Trace(err)
		}
		if res.ExitCode != 0 {
			return errors.Errorf("command on %s exited %d", unit, res.ExitCode)
		}
		return nil
	}
}

func leafRunAction(unit, action string, params map[string]interface{}, ctx Context) step.Action {
	return func(c context.Context) error {
		res, err := ctx.Facade.RunAction(c, unit, action, params)
		if err != nil {
			return errors.Trace(err)
		}
		if res.Status != "" && res.Status != "completed" {
			return errors.Errorf("action %s on %s finished with status %q: %s", action, unit, res.Status, res.Message)
		}
		return nil
	}
}
