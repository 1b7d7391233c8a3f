// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package engine executes a Step tree (C6, §4.6): sequential/parallel
// composition, interactive confirmation gates, retries, two-level
// cancellation, and structured failure reporting.
package engine

import "github.com/canonical/cou/step"

// State is one node's terminal (or in-flight) execution state, per the
// state machine in §4.5.
type State int

const (
	StatePending State = iota
	StateRunning
	StateDone
	StateFailed
	StateCancelled
	StateAborted
)

func (st State) String() string {
	switch st {
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StateAborted:
		return "aborted"
	default:
		return "pending"
	}
}

// Terminal reports whether st is one of the four terminal states.
func (st State) Terminal() bool {
	switch st {
	case StateDone, StateFailed, StateCancelled, StateAborted:
		return true
	default:
		return false
	}
}

// FailureReport is the structured record §4.6 requires for a failed
// leaf: what it was operating on, how it was classified, and how many
// times it was retried before giving up.
type FailureReport struct {
	Application string
	Unit        string
	ErrorKind   string
	Message     string
	RetryCount  int
}

// Result is the execution outcome of one Step, mirroring its shape in
// the tree: a Result for a group carries one child Result per Step
// child, in the same order.
type Result struct {
	Step     *step.Step
	State    State
	Failure  *FailureReport
	Children []*Result
}

// FirstFailure returns the first (left-to-right, depth-first) leaf
// Result in a failed state, or nil if none failed.
func (r *Result) FirstFailure() *Result {
	if r == nil {
		return nil
	}
	if r.Step.IsLeaf() && r.State == StateFailed {
		return r
	}
	for _, child := range r.Children {
		if f := child.FirstFailure(); f != nil {
			return f
		}
	}
	return nil
}

// deriveGroupState computes a group's own state from its children's
// terminal states, per §4.5's parent-state derivation rule.
func deriveGroupState(children []*Result) State {
	if len(children) == 0 {
		return StateDone
	}
	sawAborted, sawCancelled, sawFailed := false, false, false
	for _, c := range children {
		switch c.State {
		case StateAborted:
			sawAborted = true
		case StateCancelled:
			sawCancelled = true
		case StateFailed:
			sawFailed = true
		}
	}
	switch {
	case sawAborted:
		return StateAborted
	case sawFailed:
		return StateFailed
	case sawCancelled:
		return StateCancelled
	default:
		return StateDone
	}
}
