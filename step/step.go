// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package step defines the Step tree (§3 "Step", §9 design note): pure
// data describing either a leaf action or a group of child steps,
// planned once by the strategy/plan packages and executed once by the
// engine package. A Step carries no execution state of its own; the
// engine tracks that separately (see engine.Result) so that the same
// plan could in principle be inspected, printed, or re-planned without
// ever running it.
package step

import (
	"context"

	"github.com/google/uuid"
)

// OnFail governs what a Step's parent does when this Step (a leaf, or
// the aggregate of a group) terminates in a non-done state.
type OnFail int

const (
	// OnFailAbort is the default: a non-done sibling stops the
	// remaining sequence and the parent reports the same state.
	OnFailAbort OnFail = iota
	// OnFailSkipChildren lets the remaining siblings proceed after a
	// failure. The engine treats it exactly like
	// OnFailRecordAndContinue; it does not mark any child as skipped.
	OnFailSkipChildren
	// OnFailRecordAndContinue records the failure but lets siblings
	// proceed; the parent group still reports the failed state.
	OnFailRecordAndContinue
)

// Action is the parameterless effectful procedure a leaf Step runs. It
// receives the run's context so it can observe cancellation; all
// controller-façade plumbing is closed over by the caller that builds
// the Action (see strategy.Build* and controller.Facade).
type Action func(ctx context.Context) error

// Step is one node of the plan tree: either a leaf (Action != nil,
// Children == nil) or a group (Action == nil, Children holds the
// ordered/parallel child steps).
type Step struct {
	ID          string
	Description string
	Parallel    bool
	Children    []*Step
	Action      Action
	Retryable   bool
	OnFail      OnFail
	// Interactive marks a step as a confirmation gate: the engine
	// prompts before entering it in interactive mode (§4.6).
	Interactive bool
	// Application and Unit, when set, let a failed leaf's structured
	// error report (§4.6) name exactly what it was operating on.
	Application string
	Unit        string
}

// IsLeaf reports whether s is a leaf step.
func (s *Step) IsLeaf() bool {
	return s.Action != nil
}

// NewLeaf builds a leaf Step.
func NewLeaf(description string, action Action) *Step {
	return &Step{ID: uuid.NewString(), Description: description, Action: action}
}

// NewGroup builds a group Step over the given children, run
// sequentially.
func NewGroup(description string, children ...*Step) *Step {
	return &Step{ID: uuid.NewString(), Description: description, Children: children}
}

// NewParallelGroup builds a group Step whose direct children run
// concurrently (§3, §5).
func NewParallelGroup(description string, children ...*Step) *Step {
	g := NewGroup(description, children...)
	g.Parallel = true
	return g
}

// WithRetry marks a leaf Step as retryable (§4.6).
func (s *Step) WithRetry() *Step {
	s.Retryable = true
	return s
}

// WithOnFail sets a Step's failure policy.
func (s *Step) WithOnFail(p OnFail) *Step {
	s.OnFail = p
	return s
}

// WithInteractiveGate marks a Step as a top-level confirmation gate.
func (s *Step) WithInteractiveGate() *Step {
	s.Interactive = true
	return s
}

// WithApplication stamps the application (and optionally unit) a leaf
// Step operates on, for structured error reporting.
func (s *Step) WithApplication(app, unit string) *Step {
	s.Application = app
	s.Unit = unit
	return s
}

// Walk visits every step in the tree in left-to-right depth-first
// order, root first, calling visit on each.
func (s *Step) Walk(visit func(*Step)) {
	if s == nil {
		return
	}
	visit(s)
	for _, child := range s.Children {
		child.Walk(visit)
	}
}

// Leaves returns every leaf descendant of s, in left-to-right
// depth-first order.
func (s *Step) Leaves() []*Step {
	var out []*Step
	s.Walk(func(n *Step) {
		if n.IsLeaf() {
			out = append(out, n)
		}
	})
	return out
}
