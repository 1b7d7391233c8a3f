// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catalog

// Category classifies a charm for the purposes of strategy selection
// and plan-group membership. It is the Go-native stand-in for what the
// original tool expressed as a deep subtype hierarchy: one flat
// enumeration plus name overrides (see DESIGN.md).
type Category int

const (
	CategoryUnknown Category = iota
	CategoryOpenStackPrincipal
	CategoryOpenStackSubordinate
	CategoryAuxiliaryPrincipal
	CategoryAuxiliarySubordinate
	CategoryCeph
	CategorySpecial
)

func (c Category) String() string {
	switch c {
	case CategoryOpenStackPrincipal:
		return "openstack-principal"
	case CategoryOpenStackSubordinate:
		return "openstack-subordinate"
	case CategoryAuxiliaryPrincipal:
		return "auxiliary-principal"
	case CategoryAuxiliarySubordinate:
		return "auxiliary-subordinate"
	case CategoryCeph:
		return "ceph"
	case CategorySpecial:
		return "special"
	default:
		return "unknown"
	}
}

// Class is the coarser control-plane/data-plane/auxiliary grouping
// Classify() derives from a Category, used by the plan builder (C5) to
// place an application's steps in the right top-level phase.
type Class int

const (
	ClassAuxiliary Class = iota
	ClassControlPlanePrincipal
	ClassControlPlaneSubordinate
	ClassDataPlaneHypervisor
	ClassDataPlanePrincipal
	ClassDataPlaneSubordinate
)

// WorkloadVersionRange is one [Lower, Upper) interval of a charm's
// reported workload-version strings that corresponds to one release.
// The upper bound is exclusive; an empty Upper means "no known upper
// bound yet".
type WorkloadVersionRange struct {
	Lower   string
	Upper   string
	Release Release
}

// Channel is a (track, risk) pair identifying a charm revision stream.
type Channel struct {
	Track string
	Risk  string
}

// TrackKey indexes the auxiliary charm track-map by the series/release
// pair it was published for.
type TrackKey struct {
	Series  string
	Release Release
}

// CharmDescriptor is everything the catalog knows about one charm.
type CharmDescriptor struct {
	Name     string
	Category Category
	Ranges   []WorkloadVersionRange
	Tracks   map[TrackKey]string
}
