// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catalog

import (
	"encoding/csv"
	"io"

	"github.com/juju/errors"
)

// LoadLookup parses openstack_lookup.csv (charm, lower-version,
// upper-version, release) into a per-charm set of workload-version
// ranges, ready to be merged into CharmDescriptor.Ranges. An empty
// upper-version field means "no known upper bound".
//
// Using the standard library's encoding/csv here is deliberate: no
// library in the retrieval pack parses CSV, and the shipped format has
// no quoting or dialect complexity that would justify pulling one in.
func LoadLookup(r io.Reader) (map[string][]WorkloadVersionRange, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	out := make(map[string][]WorkloadVersionRange)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotate(err, "reading openstack lookup csv")
		}
		charm, lower, upper, release := record[0], record[1], record[2], record[3]
		if charm == "charm" && lower == "lower-version" {
			continue // header row
		}
		out[charm] = append(out[charm], WorkloadVersionRange{
			Lower:   lower,
			Upper:   upper,
			Release: Release(release),
		})
	}
	return out, nil
}

// LoadTrackMapping parses openstack_to_track_mapping.csv (charm,
// series, release, track) into a per-charm track-map keyed by (series,
// release). The charm column mirrors the lookup CSV's charm column so
// the two files can be merged by charm name; a row without it (three
// columns) is rejected as a CSV error.
func LoadTrackMapping(r io.Reader) (map[string]map[TrackKey]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	out := make(map[string]map[TrackKey]string)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotate(err, "reading track mapping csv")
		}
		charm, series, release, track := record[0], record[1], record[2], record[3]
		if charm == "charm" && series == "series" {
			continue // header row
		}
		if out[charm] == nil {
			out[charm] = make(map[TrackKey]string)
		}
		out[charm][TrackKey{Series: series, Release: Release(release)}] = track
	}
	return out, nil
}

// Merge combines per-charm workload-version ranges and track-maps,
// taking charm categories from seed (the built-in classification
// table), into a single set of CharmDescriptors ready for New.
func Merge(seed map[string]CharmDescriptor, ranges map[string][]WorkloadVersionRange, tracks map[string]map[TrackKey]string) map[string]CharmDescriptor {
	out := make(map[string]CharmDescriptor, len(seed))
	for name, d := range seed {
		d.Ranges = append([]WorkloadVersionRange(nil), ranges[name]...)
		if t := tracks[name]; t != nil {
			d.Tracks = t
		}
		out[name] = d
	}
	return out
}
