// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catalog

import (
	"strconv"
	"strings"
)

// compareWorkloadVersions orders two workload-version strings by their
// numeric MAJOR.MINOR.PATCH components, ignoring any trailing
// pre-release/build tag (everything from the first '-' or '+'
// onwards). It is adapted from the comparison juju/version/v2 performs
// on juju's own agent-version strings, narrowed to the three-component
// form workload versions actually use.
//
// Returns -1, 0 or 1 the way sort.Interface comparisons do. Missing
// trailing components compare as zero, so "21" sorts equal to "21.0.0".
func compareWorkloadVersions(a, b string) int {
	pa, pb := versionParts(a), versionParts(b)
	for i := 0; i < 3; i++ {
		va, vb := component(pa, i), component(pb, i)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
	}
	return 0
}

func versionParts(v string) []string {
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	return strings.Split(v, ".")
}

func component(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
