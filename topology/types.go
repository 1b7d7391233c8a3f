// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package topology holds the in-memory snapshot of a cloud as reported
// by one controller status fetch (C2): machines, applications, units,
// subordinate relations.
package topology

import (
	"sort"

	"github.com/canonical/cou/catalog"
)

// Machine is one controller-managed machine hosting some number of
// application units.
type Machine struct {
	ID               string
	AvailabilityZone string
	HostedApps       map[string]bool
	RunningVMs       int
}

// Unit is one unit of an application, deployed to a machine.
type Unit struct {
	Name            string
	Application     string
	MachineID       string
	WorkloadVersion string
	DerivedRelease  catalog.Release
}

// Application is one deployed application: a charm plus its units (for
// principals) or its subordinate-to relations (for subordinates).
type Application struct {
	Name           string
	Charm          string
	Channel        catalog.Channel
	Config         map[string]interface{}
	Origin         string
	Series         string
	SubordinateTo  []string
	Units          map[string]*Unit
	Machines       map[string]*Machine
	WorkloadVer    string
	DerivedRelease catalog.Release
}

// IsSubordinate reports whether this application is deployed as a
// subordinate (it has no units of its own, only relations to
// principals).
func (a *Application) IsSubordinate() bool {
	return len(a.SubordinateTo) > 0
}

// Topology is the full parsed status: every application and machine the
// controller reported.
type Topology struct {
	Applications map[string]*Application
	Machines     map[string]*Machine
	Series       string
}

// SortedApplicationNames returns application names in a stable,
// sorted order, for deterministic iteration in the analyzer and plan
// builder.
func (t *Topology) SortedApplicationNames() []string {
	names := make([]string, 0, len(t.Applications))
	for name := range t.Applications {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
