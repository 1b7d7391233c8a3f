// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topology

// RawStatus is the shape of one controller status() response (§4.7),
// deliberately close to the JSON the real controller façade would
// decode into before Build converts it into the typed Topology this
// package exports.
type RawStatus struct {
	Series       string
	Machines     map[string]RawMachine
	Applications map[string]RawApplication
}

// RawMachine is one machine entry in a RawStatus.
type RawMachine struct {
	AvailabilityZone string
	RunningVMs       int
}

// RawApplication is one application entry in a RawStatus.
type RawApplication struct {
	Charm         string
	ChannelTrack  string
	ChannelRisk   string
	Config        map[string]interface{}
	Origin        string
	Series        string
	SubordinateTo []string
	Units         map[string]RawUnit
}

// RawUnit is one unit entry in a RawStatus.Applications[...].Units map.
type RawUnit struct {
	MachineID       string
	WorkloadVersion string
}
