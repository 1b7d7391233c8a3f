// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package catalog holds the frozen, static knowledge the Upgrader needs
// to turn charm metadata into release identifiers: the ordered release
// sequence, the series each release belongs to, and the charm-specific
// workload-version and track lookup tables.
package catalog

import "github.com/juju/errors"

// Release is one OpenStack release codename. Releases are totally
// ordered by their position in orderedReleases.
type Release string

// orderedReleases is the one true release sequence the whole package is
// built around. It never changes at runtime.
var orderedReleases = []Release{
	"ussuri",
	"victoria",
	"wallaby",
	"xena",
	"yoga",
	"zed",
	"antelope",
	"bobcat",
	"caracal",
}

// AllReleases returns the canonical release sequence, oldest first.
func AllReleases() []Release {
	out := make([]Release, len(orderedReleases))
	copy(out, orderedReleases)
	return out
}

func indexOf(r Release) int {
	for i, candidate := range orderedReleases {
		if candidate == r {
			return i
		}
	}
	return -1
}

// Valid reports whether r is a known release codename.
func (r Release) Valid() bool {
	return indexOf(r) >= 0
}

// Less reports whether r sorts strictly before other in the release
// sequence. Both releases must be valid.
func (r Release) Less(other Release) bool {
	return indexOf(r) < indexOf(other)
}

// Compare returns -1, 0 or 1 as r is less than, equal to, or greater
// than other.
func (r Release) Compare(other Release) int {
	ir, iother := indexOf(r), indexOf(other)
	switch {
	case ir < iother:
		return -1
	case ir > iother:
		return 1
	default:
		return 0
	}
}

// Next returns the release immediately after r, or false if r is the
// final release in the sequence or is not itself a known release.
func Next(r Release) (Release, bool) {
	i := indexOf(r)
	if i < 0 || i+1 >= len(orderedReleases) {
		return "", false
	}
	return orderedReleases[i+1], true
}

// Previous returns the release immediately before r, or false if r is
// the first release in the sequence or is not itself a known release.
func Previous(r Release) (Release, bool) {
	i := indexOf(r)
	if i <= 0 {
		return "", false
	}
	return orderedReleases[i-1], true
}

// seriesReleases maps a supported base series to the inclusive range of
// releases it covers. yoga intentionally appears in both focal and
// jammy: that overlap is expected, not a bug.
var seriesReleases = map[string][2]Release{
	"focal":  {"ussuri", "yoga"},
	"jammy":  {"yoga", "caracal"},
	"noble":  {"caracal", "caracal"},
}

// SeriesSupports reports whether series supports release.
func SeriesSupports(series string, release Release) bool {
	bounds, ok := seriesReleases[series]
	if !ok {
		return false
	}
	lo, hi := indexOf(bounds[0]), indexOf(bounds[1])
	i := indexOf(release)
	return i >= 0 && i >= lo && i <= hi
}

// SupportedUpgrade reports whether target is the release immediately
// after current and the two releases share at least one supported
// series. The analyzer does not call it: it derives the cloud's target
// release with Next alone.
func SupportedUpgrade(current, target Release) bool {
	next, ok := Next(current)
	if !ok || next != target {
		return false
	}
	for series := range seriesReleases {
		if SeriesSupports(series, current) && SeriesSupports(series, target) {
			return true
		}
	}
	return false
}

// ErrNoFurtherRelease is returned by Next-based callers when the cloud
// is already running the final known release.
var ErrNoFurtherRelease = errors.New("already at final release")
