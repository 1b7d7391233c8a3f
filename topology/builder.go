// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topology

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/names/v5"

	"github.com/canonical/cou/catalog"
)

var logger = loggo.GetLogger("cou.topology")

// StatusError identifies a structural problem with a raw status
// payload: a required field missing, or a unit with no workload
// version. It names the application and, where relevant, the unit, so
// the caller can report precisely what's wrong (§4.2).
type StatusError struct {
	Application string
	Unit        string
	Reason      string
}

func (e *StatusError) Error() string {
	if e.Unit != "" {
		return "application " + e.Application + " unit " + e.Unit + ": " + e.Reason
	}
	return "application " + e.Application + ": " + e.Reason
}

// Build validates a RawStatus and converts it into a Topology. It
// rejects a status that lacks required fields (charm name, channel,
// series) or that contains a unit whose workload-version is empty.
func Build(raw RawStatus) (*Topology, error) {
	if raw.Series == "" {
		return nil, errors.Trace(&StatusError{Reason: "missing series"})
	}

	machines := make(map[string]*Machine, len(raw.Machines))
	for id, rm := range raw.Machines {
		machines[id] = &Machine{
			ID:               id,
			AvailabilityZone: rm.AvailabilityZone,
			HostedApps:       make(map[string]bool),
			RunningVMs:       rm.RunningVMs,
		}
	}

	apps := make(map[string]*Application, len(raw.Applications))
	for name, ra := range raw.Applications {
		if !names.IsValidApplication(name) {
			return nil, errors.Trace(&StatusError{Application: name, Reason: "not a valid application name"})
		}
		if ra.Charm == "" {
			return nil, errors.Trace(&StatusError{Application: name, Reason: "missing charm name"})
		}
		if ra.ChannelTrack == "" {
			return nil, errors.Trace(&StatusError{Application: name, Reason: "missing channel"})
		}
		series := ra.Series
		if series == "" {
			series = raw.Series
		}

		app := &Application{
			Name:          name,
			Charm:         ra.Charm,
			Channel:       catalog.Channel{Track: ra.ChannelTrack, Risk: ra.ChannelRisk},
			Config:        ra.Config,
			Origin:        ra.Origin,
			Series:        series,
			SubordinateTo: append([]string(nil), ra.SubordinateTo...),
			Units:         make(map[string]*Unit, len(ra.Units)),
			Machines:      make(map[string]*Machine),
		}

		for unitName, ru := range ra.Units {
			if !names.IsValidUnit(unitName) {
				return nil, errors.Trace(&StatusError{Application: name, Unit: unitName, Reason: "not a valid unit name"})
			}
			if ru.WorkloadVersion == "" {
				return nil, errors.Trace(&StatusError{Application: name, Unit: unitName, Reason: "empty workload-version"})
			}
			app.Units[unitName] = &Unit{
				Name:            unitName,
				Application:     name,
				MachineID:       ru.MachineID,
				WorkloadVersion: ru.WorkloadVersion,
			}
			if m, ok := machines[ru.MachineID]; ok {
				app.Machines[m.ID] = m
				m.HostedApps[name] = true
			} else {
				logger.Warningf("unit %s references unknown machine %s", unitName, ru.MachineID)
			}
		}

		apps[name] = app
	}

	// Subordinates inherit machines from every principal they relate to.
	for _, app := range apps {
		if !app.IsSubordinate() {
			continue
		}
		for _, principalName := range app.SubordinateTo {
			principal, ok := apps[principalName]
			if !ok {
				continue
			}
			for id, m := range principal.Machines {
				app.Machines[id] = m
			}
		}
	}

	return &Topology{Applications: apps, Machines: machines, Series: raw.Series}, nil
}
