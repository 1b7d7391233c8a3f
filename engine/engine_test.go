// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	jujuerrors "github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/cou/controller"
	"github.com/canonical/cou/engine"
	"github.com/canonical/cou/step"
)

func Test(t *testing.T) { gc.TestingT(t) }

type EngineSuite struct{}

var _ = gc.Suite(&EngineSuite{})

func leaf(desc string, action step.Action) *step.Step {
	return step.NewLeaf(desc, action)
}

func (s *EngineSuite) TestSequentialStopsOnFirstFailure(c *gc.C) {
	var ran []string
	record := func(name string, err error) step.Action {
		return func(context.Context) error {
			ran = append(ran, name)
			return err
		}
	}
	tree := step.NewGroup("root",
		leaf("a", record("a", nil)),
		leaf("b", record("b", errors.New("boom"))),
		leaf("c", record("c", nil)),
	)

	e := engine.New(engine.Options{})
	result, err := e.Run(context.Background(), tree)
	c.Assert(err, gc.ErrorMatches, ".*boom.*")
	c.Assert(ran, jc.DeepEquals, []string{"a", "b"})
	c.Assert(result.State, gc.Equals, engine.StateFailed)
	c.Assert(result.Children[2].State, gc.Equals, engine.StateFailed)
	c.Assert(result.FirstFailure().Step.Description, gc.Equals, "b")
}

func (s *EngineSuite) TestParallelRunsAllChildrenToCompletion(c *gc.C) {
	done := make(chan struct{})
	started := make(chan string, 2)
	tree := step.NewParallelGroup("root",
		leaf("slow", func(ctx context.Context) error {
			started <- "slow"
			<-done
			return nil
		}),
		leaf("fast", func(ctx context.Context) error {
			started <- "fast"
			return nil
		}),
	)

	e := engine.New(engine.Options{})
	resultCh := make(chan *engine.Result, 1)
	go func() {
		r, _ := e.Run(context.Background(), tree)
		resultCh <- r
	}()

	<-started
	<-started
	close(done)

	select {
	case r := <-resultCh:
		c.Assert(r.State, gc.Equals, engine.StateDone)
		c.Assert(r.Children, gc.HasLen, 2)
	case <-time.After(5 * time.Second):
		c.Fatal("parallel group did not complete")
	}
}

func (s *EngineSuite) TestSoftCancelStopsNewLeavesNotInFlight(c *gc.C) {
	var secondStarted bool
	e := engine.New(engine.Options{})

	tree := step.NewGroup("root",
		leaf("first", func(ctx context.Context) error {
			e.Interrupt() // simulate a signal arriving mid-step
			return nil
		}),
		leaf("second", func(ctx context.Context) error {
			secondStarted = true
			return nil
		}),
	)

	result, err := e.Run(context.Background(), tree)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(secondStarted, jc.IsFalse)
	c.Assert(result.Children[0].State, gc.Equals, engine.StateDone)
	c.Assert(result.Children[1].State, gc.Equals, engine.StateCancelled)
	c.Assert(result.State, gc.Equals, engine.StateCancelled)
}

func (s *EngineSuite) TestHardCancelAbandonsInFlightCall(c *gc.C) {
	e := engine.New(engine.Options{})
	blocked := make(chan struct{})

	tree := leaf("wait", func(ctx context.Context) error {
		close(blocked)
		<-ctx.Done()
		return ctx.Err()
	})

	resultCh := make(chan *engine.Result, 1)
	go func() {
		r, _ := e.Run(context.Background(), tree)
		resultCh <- r
	}()

	<-blocked
	e.Interrupt() // soft
	e.Interrupt() // hard: cancels the in-flight call's context

	select {
	case r := <-resultCh:
		c.Assert(r.State, gc.Equals, engine.StateAborted)
	case <-time.After(5 * time.Second):
		c.Fatal("hard cancel did not unblock the in-flight leaf")
	}
}

func (s *EngineSuite) TestRetryableLeafRetriesTransientFailureThenSucceeds(c *gc.C) {
	attempts := 0
	tree := leaf("flaky", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return controller.NewError(controller.KindTransientConnection, errors.New("connection reset"))
		}
		return nil
	}).WithRetry()

	e := engine.New(engine.Options{ModelRetries: 5, RetryBackoff: time.Millisecond})
	result, err := e.Run(context.Background(), tree)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(attempts, gc.Equals, 3)
	c.Assert(result.State, gc.Equals, engine.StateDone)
}

func (s *EngineSuite) TestRetryableLeafDoesNotRetryNonTransientFailure(c *gc.C) {
	attempts := 0
	tree := leaf("perm", func(ctx context.Context) error {
		attempts++
		return controller.NewError(controller.KindPermission, errors.New("forbidden"))
	}).WithRetry()

	e := engine.New(engine.Options{ModelRetries: 5, RetryBackoff: time.Millisecond})
	_, err := e.Run(context.Background(), tree)
	c.Assert(err, gc.ErrorMatches, ".*forbidden.*")
	c.Assert(attempts, gc.Equals, 1)
}

func (s *EngineSuite) TestInteractiveGateDeclinedCancelsGatedSubtree(c *gc.C) {
	var ran bool
	gate := leaf("inner", func(context.Context) error { ran = true; return nil })
	gate.Interactive = true
	tree := step.NewGroup("root", gate)

	e := engine.New(engine.Options{Prompter: declineAll{}})
	result, err := e.Run(context.Background(), tree)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ran, jc.IsFalse)
	c.Assert(result.Children[0].State, gc.Equals, engine.StateCancelled)
}

// TestInteractiveGateFiresWhenNestedBelowRoot exercises a tree shaped
// the way plan.Build actually nests things: the gate sits on an
// application's own subtree, which is itself a child of an ungated
// group below the root, not the root itself. A prior bug only checked
// s.Interactive when recursing from the literal tree root, which made
// every real confirmation gate in plan.Build's output dead code.
func (s *EngineSuite) TestInteractiveGateFiresWhenNestedBelowRoot(c *gc.C) {
	var ran bool
	gated := step.NewGroup("keystone",
		leaf("keystone/0", func(context.Context) error { ran = true; return nil }),
	).WithInteractiveGate()

	root := step.NewGroup("root",
		step.NewGroup("control-plane principals", gated),
	)

	prompts := &countingPrompter{approve: true}
	e := engine.New(engine.Options{Prompter: prompts})
	result, err := e.Run(context.Background(), root)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(prompts.calls, gc.Equals, 1)
	c.Assert(ran, jc.IsTrue)
	c.Assert(result.State, gc.Equals, engine.StateDone)
}

// TestInteractiveGateDeclineNestedBelowRootCancelsRemainingSteps
// confirms a decline at a gate nested below the root still reaches the
// engine's single soft-cancel switch, so a later sibling subtree under
// the same ungated parent is cancelled rather than silently skipped.
func (s *EngineSuite) TestInteractiveGateDeclineNestedBelowRootCancelsRemainingSteps(c *gc.C) {
	var keystoneRan, novaRan bool
	keystone := step.NewGroup("keystone",
		leaf("keystone/0", func(context.Context) error { keystoneRan = true; return nil }),
	).WithInteractiveGate()
	nova := step.NewGroup("nova",
		leaf("nova/0", func(context.Context) error { novaRan = true; return nil }),
	).WithInteractiveGate()

	root := step.NewGroup("root",
		step.NewGroup("control-plane principals", keystone, nova),
	)

	prompts := &countingPrompter{approve: false}
	e := engine.New(engine.Options{Prompter: prompts})
	result, err := e.Run(context.Background(), root)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(keystoneRan, jc.IsFalse)
	c.Assert(novaRan, jc.IsFalse)
	c.Assert(prompts.calls, gc.Equals, 1)
	c.Assert(result.State, gc.Equals, engine.StateCancelled)
}

type countingPrompter struct {
	approve bool
	calls   int
}

func (p *countingPrompter) Confirm(description string) (bool, error) {
	p.calls++
	return p.approve, nil
}

func (s *EngineSuite) TestTerminatedBeforeStart(c *gc.C) {
	e := engine.New(engine.Options{})
	e.Interrupt()
	e.Interrupt()
	_, err := e.Run(context.Background(), leaf("x", func(context.Context) error { return nil }))
	c.Assert(jujuerrors.Cause(err), gc.Equals, engine.ErrTerminatedBeforeStart)
}

type declineAll struct{}

func (declineAll) Confirm(string) (bool, error) { return false, nil }
