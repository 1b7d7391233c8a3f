// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package plan assembles per-application strategy subtrees (C4) into
// the hierarchical cloud-wide plan (C5, §4.5): cloud pre/post-upgrade
// hooks, the control-plane/hypervisor/data-plane group ordering, and
// partial-group pruning.
package plan

import (
	"time"

	"github.com/juju/errors"
)

// UpgradeGroup selects which slice of the cloud-wide plan to build.
type UpgradeGroup int

const (
	GroupWhole UpgradeGroup = iota
	GroupControlPlane
	GroupDataPlane
	GroupHypervisors
)

func (g UpgradeGroup) String() string {
	switch g {
	case GroupControlPlane:
		return "control-plane"
	case GroupDataPlane:
		return "data-plane"
	case GroupHypervisors:
		return "hypervisors"
	default:
		return "whole"
	}
}

// ErrMutuallyExclusiveFilters is a configuration error: machine-filter
// and az-filter cannot both be set (§4.5).
var ErrMutuallyExclusiveFilters = errors.New("machine-filter and az-filter are mutually exclusive")

// Options configures one plan build, mirroring the CLI's common and
// group-specific flags (§6.2).
type Options struct {
	UpgradeGroup UpgradeGroup

	Backup           bool
	Archive          bool
	ArchiveBatchSize int
	Purge            bool
	PurgeBeforeDate  *time.Time

	Force bool

	// MachineFilter and AZFilter restrict the hypervisor group (§4.5
	// step 4); mutually exclusive.
	MachineFilter []string
	AZFilter      []string

	SkipApps []string
}

// Validate reports configuration errors that must surface before any
// controller call is made (§7 "Configuration" error class).
func (o Options) Validate() error {
	if len(o.MachineFilter) > 0 && len(o.AZFilter) > 0 {
		return errors.Trace(ErrMutuallyExclusiveFilters)
	}
	return nil
}

// skipAllowList is the only set of applications --skip-apps may name
// (§4.4's "restricted to an allow-list, currently {vault}").
var skipAllowList = map[string]bool{
	"vault": true,
}

// ErrSkipAppNotAllowed is a configuration error for an unsupported
// --skip-apps entry.
var ErrSkipAppNotAllowed = errors.New("application is not on the skip-apps allow-list")

// ValidateSkipApps checks every name in o.SkipApps against the
// allow-list.
func (o Options) ValidateSkipApps() error {
	for _, name := range o.SkipApps {
		if !skipAllowList[name] {
			return errors.Annotatef(ErrSkipAppNotAllowed, "application %q", name)
		}
	}
	return nil
}
