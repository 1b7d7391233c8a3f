// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package strategy builds the ordered sub-steps that move one
// application to the cloud's target release (C4, §4.4). Strategies are
// selected by charm category plus name overrides; behavior lives in
// these functions, not in a type hierarchy (§9).
package strategy

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo/v2"

	"github.com/canonical/cou/catalog"
	"github.com/canonical/cou/controller"
)

var logger = loggo.GetLogger("cou.strategy")

// Context threads the façade, clock, and timeout/retry configuration
// through every strategy builder (§9's "context object" replacement
// for global mutable state).
type Context struct {
	Catalog *catalog.Catalog
	Facade  controller.Facade
	Clock   clock.Clock

	StandardIdleTimeout time.Duration
	LongIdleTimeout     time.Duration
	ModelIdleTimeout    time.Duration

	Force bool
}

// idleTimeout returns the long or standard idle timeout for charmName,
// per the long-idle charm set (§4.4 step 4).
func (c Context) idleTimeout(charmName string) time.Duration {
	if catalog.LongIdle(charmName) {
		return c.LongIdleTimeout
	}
	return c.StandardIdleTimeout
}

// originKey returns the configuration key ("openstack-origin" or
// "source") a charm expects its cloud-archive origin to be set through.
// This dispatches on charm name because the exact key is a property of
// each charm's own config schema (§9 Open Question: left for the
// strategy to maintain as new charms are added).
func originKey(charmName string) string {
	switch charmName {
	case "ceph-osd", "ceph-mon":
		return "source"
	default:
		return "openstack-origin"
	}
}
