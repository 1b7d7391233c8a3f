// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/juju/ansiterm"

	"github.com/canonical/cou/engine"
	"github.com/canonical/cou/step"
)

// renderPlan prints a Step tree as an indented, coloured outline —
// plain description text for groups, and a one-line summary for every
// leaf, matching the "table of truth" uitable gives the rest of the
// ecosystem's CLIs for tabular output.
func renderPlan(w io.Writer, root *step.Step) {
	ctx := ansiterm.NewContext(w, nil)
	var walk func(s *step.Step, depth int)
	walk = func(s *step.Step, depth int) {
		prefix := indent(depth)
		if s.IsLeaf() {
			tag := "leaf"
			if s.Retryable {
				tag = "leaf retryable"
			}
			fmt.Fprintf(ctx, "%s- %s [%s]\n", prefix, s.Description, tag)
			return
		}
		kind := "sequential"
		if s.Parallel {
			kind = "parallel"
		}
		fmt.Fprintf(ctx, "%s%s [%s]\n", prefix, s.Description, kind)
		for _, child := range s.Children {
			walk(child, depth+1)
		}
	}
	walk(root, 0)
}

func indent(depth int) string {
	out := make([]byte, depth*2)
	for i := range out {
		out[i] = ' '
	}
	return string(out)
}

// renderResult prints an execution Result as a uitable summary table:
// one row per leaf with its final state and any failure detail,
// followed by one line saying how long ago the run started. Per-leaf
// durations are not recorded or shown.
func renderResult(w io.Writer, result *engine.Result, started time.Time) {
	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("STEP", "STATE", "DETAIL")

	var walk func(r *engine.Result)
	walk = func(r *engine.Result) {
		if r.Step.IsLeaf() {
			detail := ""
			if r.Failure != nil {
				detail = fmt.Sprintf("%s: %s (retries=%d)", r.Failure.ErrorKind, r.Failure.Message, r.Failure.RetryCount)
			}
			table.AddRow(r.Step.Description, r.State.String(), detail)
		}
		for _, child := range r.Children {
			walk(child)
		}
	}
	walk(result)

	fmt.Fprintln(w, table)
	fmt.Fprintf(w, "finished %s\n", humanize.Time(started))
}
