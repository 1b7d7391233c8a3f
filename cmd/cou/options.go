// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package main is the `cou` command-line front end: `cou plan` and
// `cou upgrade`, wiring the catalog, topology, analyzer, strategy,
// plan and engine packages together over a controller façade (§6.2).
package main

import (
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/canonical/cou/plan"
)

// commonOptions holds every flag shared by `cou plan` and `cou upgrade`
// (§6.2's "common-options").
type commonOptions struct {
	model string

	backup           bool
	archive          bool
	archiveBatchSize int
	purge            bool
	purgeBeforeDate  string
	force            bool
	skipApps         string

	machines        string
	availabilityZones string

	autoApprove bool
	tailLog     bool

	verbosity int
	quiet     bool
}

func (o *commonOptions) registerFlags(fs *gnuflag.FlagSet) {
	fs.StringVar(&o.model, "model", "", "controller model to operate on")
	fs.BoolVar(&o.backup, "backup", true, "back up databases before upgrading (--no-backup to disable)")
	fs.BoolVar(&o.archive, "archive", true, "archive deleted rows before upgrading (--no-archive to disable)")
	fs.IntVar(&o.archiveBatchSize, "archive-batch-size", 1000, "row batch size for the archive step")
	fs.BoolVar(&o.purge, "purge", false, "purge shadow tables after archiving")
	fs.StringVar(&o.purgeBeforeDate, "purge-before-date", "", "only purge rows older than this date (YYYY-MM-DD[HH:mm[:ss]])")
	fs.BoolVar(&o.force, "force", false, "proceed past non-fatal safety checks (VM-hosting machines, VM checks)")
	fs.StringVar(&o.skipApps, "skip-apps", "", "comma-separated applications to exclude (allow-list only)")
	fs.StringVar(&o.machines, "machine", "", "comma-separated machine ids to restrict the hypervisor group to")
	fs.StringVar(&o.availabilityZones, "availability-zone", "", "comma-separated availability zones to restrict the hypervisor group to")
	fs.IntVar(&o.verbosity, "v", 0, "logging verbosity level: 1 for debug, 2 or more for trace (a number, not a repeated flag)")
	fs.BoolVar(&o.quiet, "q", false, "suppress all but error-level logging")
	fs.BoolVar(&o.tailLog, "tail-log", false, "also stream the log file to stdout as it is written")
}

// splitCSV splits a comma-separated flag value into a trimmed,
// non-empty slice.
func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// toPlanOptions converts the parsed common options plus a resolved
// group into a plan.Options, applying the purge-before-date layouts
// §6.2 allows.
func (o *commonOptions) toPlanOptions(group plan.UpgradeGroup) (plan.Options, error) {
	opts := plan.Options{
		UpgradeGroup:      group,
		Backup:            o.backup,
		Archive:           o.archive,
		ArchiveBatchSize:  o.archiveBatchSize,
		Purge:             o.purge,
		Force:             o.force,
		SkipApps:          splitCSV(o.skipApps),
		MachineFilter:     splitCSV(o.machines),
		AZFilter:          splitCSV(o.availabilityZones),
	}

	if o.purgeBeforeDate != "" {
		t, err := parsePurgeBeforeDate(o.purgeBeforeDate)
		if err != nil {
			return plan.Options{}, errors.Annotate(err, "parsing --purge-before-date")
		}
		opts.PurgeBeforeDate = &t
	}

	return opts, nil
}

var purgeBeforeDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parsePurgeBeforeDate(raw string) (time.Time, error) {
	for _, layout := range purgeBeforeDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised date/time format %q", raw)
}

// parseGroup resolves the positional group argument, if any, into an
// UpgradeGroup.
func parseGroup(args []string) (plan.UpgradeGroup, []string, error) {
	if len(args) == 0 {
		return plan.GroupWhole, args, nil
	}
	switch args[0] {
	case "control-plane":
		return plan.GroupControlPlane, args[1:], nil
	case "data-plane":
		return plan.GroupDataPlane, args[1:], nil
	case "hypervisors":
		return plan.GroupHypervisors, args[1:], nil
	default:
		if strings.HasPrefix(args[0], "-") {
			return plan.GroupWhole, args, nil
		}
		return 0, nil, errors.Errorf("unknown group %q: want control-plane, data-plane or hypervisors", args[0])
	}
}

func (o *commonOptions) logConfig() string {
	switch {
	case o.quiet:
		return "<root>=ERROR"
	case o.verbosity <= 0:
		return "<root>=WARNING;cou=INFO"
	case o.verbosity == 1:
		return "<root>=WARNING;cou=DEBUG"
	default:
		return "<root>=INFO;cou=TRACE"
	}
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errCancelledSafely):
		return 130
	case errors.Is(err, errCancelledAbruptly):
		return 137
	case isUpgradeFailure(err):
		return 2
	default:
		return 1
	}
}

var (
	errCancelledSafely   = errors.New("cancelled safely")
	errCancelledAbruptly = errors.New("cancelled abruptly")
)

func isUpgradeFailure(err error) bool {
	_, ok := errors.Cause(err).(upgradeFailure)
	return ok
}

type upgradeFailure struct{ error }

func wrapUpgradeFailure(err error) error {
	if err == nil {
		return nil
	}
	return upgradeFailure{err}
}
