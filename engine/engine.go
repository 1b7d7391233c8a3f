// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
	"golang.org/x/sync/errgroup"

	"github.com/canonical/cou/controller"
	"github.com/canonical/cou/step"
)

var logger = loggo.GetLogger("cou.engine")

// ErrTerminatedBeforeStart is returned by Run if an interrupt signal
// arrived before any step started running (§4.6: "a signal received
// before execution starts causes immediate exit").
var ErrTerminatedBeforeStart = errors.New("terminated before execution started")

// Prompter asks the operator to confirm entering one top-level plan
// subtree (§4.6). Confirm returns false for "no" or an error if the
// prompt itself failed (e.g. stdin closed); both are treated as a soft
// cancel of the subtree.
type Prompter interface {
	Confirm(description string) (bool, error)
}

// AutoApprove is the non-interactive Prompter: every confirmation
// passes without asking, as `--auto-approve` requires.
type AutoApprove struct{}

func (AutoApprove) Confirm(string) (bool, error) { return true, nil }

// Options configures one Engine.
type Options struct {
	Prompter     Prompter
	ModelRetries int
	RetryBackoff time.Duration
	Clock        clock.Clock
}

// Engine runs a Step tree to completion, honoring the two-level
// interrupt protocol of §4.6. Interrupt is safe to call concurrently
// with Run, from a signal handler goroutine.
type Engine struct {
	opts Options

	level      int32 // 0 = none, 1 = soft, 2 = hard
	hardCancel context.CancelFunc
	started    int32
}

// New builds an Engine. opts.Prompter defaults to AutoApprove if nil;
// opts.Clock defaults to clock.WallClock if nil.
func New(opts Options) *Engine {
	if opts.Prompter == nil {
		opts.Prompter = AutoApprove{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	return &Engine{opts: opts}
}

// Interrupt registers one interrupt/terminate signal. The first call
// triggers a soft cancel (running leaves finish, no new leaf starts);
// the second triggers a hard cancel (in-flight façade calls are
// abandoned via context cancellation). Calls beyond the second are
// no-ops.
func (e *Engine) Interrupt() {
	lvl := atomic.AddInt32(&e.level, 1)
	if lvl == 2 && e.hardCancel != nil {
		e.hardCancel()
	}
}

func (e *Engine) interruptLevel() int32 {
	return atomic.LoadInt32(&e.level)
}

// Run executes root to completion and returns its Result tree. The
// returned error is non-nil only for the first failure encountered
// (per §4.6, "the engine surfaces the first failure verbatim while
// still reporting the parent's aggregate" — callers that need the
// aggregate should inspect the returned Result directly).
func (e *Engine) Run(ctx context.Context, root *step.Step) (*Result, error) {
	if e.interruptLevel() > 0 {
		return nil, errors.Trace(ErrTerminatedBeforeStart)
	}

	hardCtx, cancel := context.WithCancel(ctx)
	e.hardCancel = cancel
	defer cancel()

	atomic.StoreInt32(&e.started, 1)
	result := e.runStep(hardCtx, root)

	if failure := result.FirstFailure(); failure != nil {
		return result, errors.Errorf("%s", failure.Failure.Message)
	}
	return result, nil
}

// runStep dispatches s to the right executor. Every step is checked
// for an interactive gate, not just the tree root: plan.Build marks
// the gate on each application's own subtree (one or more levels below
// the root group), so confirmation has to fire wherever that marker
// appears, not only at the literal top of the tree (§4.6).
func (e *Engine) runStep(ctx context.Context, s *step.Step) *Result {
	if s.Interactive {
		if ok, cancelled := e.gate(s); cancelled {
			return notStarted(s, e.cancelState())
		} else if !ok {
			return notStarted(s, StateCancelled)
		}
	}

	if lvl := e.interruptLevel(); lvl >= 1 {
		return notStarted(s, e.cancelState())
	}

	if s.IsLeaf() {
		return e.runLeaf(ctx, s)
	}
	if s.Parallel {
		return e.runParallel(ctx, s)
	}
	return e.runSequential(ctx, s)
}

// gate prompts for confirmation before entering a top-level subtree.
// It returns (approved, terminatedByPromptError).
func (e *Engine) gate(s *step.Step) (bool, bool) {
	ok, err := e.opts.Prompter.Confirm(s.Description)
	if err != nil {
		logger.Warningf("confirmation prompt failed for %q: %v", s.Description, err)
		e.Interrupt()
		return false, true
	}
	if !ok {
		e.Interrupt()
	}
	return ok, false
}

func (e *Engine) cancelState() State {
	if e.interruptLevel() >= 2 {
		return StateAborted
	}
	return StateCancelled
}

func notStarted(s *step.Step, st State) *Result {
	r := &Result{Step: s, State: st}
	for _, child := range s.Children {
		r.Children = append(r.Children, notStarted(child, st))
	}
	return r
}

func (e *Engine) runSequential(ctx context.Context, s *step.Step) *Result {
	result := &Result{Step: s, State: StateRunning}
	for _, child := range s.Children {
		if e.interruptLevel() >= 1 {
			result.Children = append(result.Children, notStarted(child, e.cancelState()))
			continue
		}
		childResult := e.runStep(ctx, child)
		result.Children = append(result.Children, childResult)
		if !childResult.State.Terminal() || childResult.State == StateDone {
			continue
		}
		if child.OnFail == step.OnFailAbort && childResult.State == StateFailed {
			// remaining siblings are skipped; abort policy is default.
			for _, remaining := range s.Children[len(result.Children):] {
				result.Children = append(result.Children, notStarted(remaining, StateFailed))
			}
			break
		}
	}
	result.State = deriveGroupState(result.Children)
	return result
}

func (e *Engine) runParallel(ctx context.Context, s *step.Step) *Result {
	result := &Result{Step: s, State: StateRunning, Children: make([]*Result, len(s.Children))}

	if e.interruptLevel() >= 1 {
		for i, child := range s.Children {
			result.Children[i] = notStarted(child, e.cancelState())
		}
		result.State = deriveGroupState(result.Children)
		return result
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, child := range s.Children {
		i, child := i, child
		g.Go(func() error {
			result.Children[i] = e.runStep(gctx, child)
			return nil
		})
	}
	_ = g.Wait() // per-child errors are carried in Result, not propagated here

	result.State = deriveGroupState(result.Children)
	return result
}

func (e *Engine) runLeaf(ctx context.Context, s *step.Step) *Result {
	if e.interruptLevel() >= 1 {
		return notStarted(s, e.cancelState())
	}

	result := &Result{Step: s, State: StateRunning}
	attempt := 0
	err := e.call(ctx, s, &attempt)
	if err == nil {
		result.State = StateDone
		return result
	}

	if ctx.Err() != nil && e.interruptLevel() >= 2 {
		result.State = StateAborted
		return result
	}

	retries := attempt - 1
	if retries < 0 {
		retries = 0
	}

	result.State = StateFailed
	result.Failure = &FailureReport{
		Application: s.Application,
		Unit:        s.Unit,
		ErrorKind:   errorKind(err),
		Message:     err.Error(),
		RetryCount:  retries,
	}
	return result
}

func (e *Engine) call(ctx context.Context, s *step.Step, attempt *int) error {
	if !s.Retryable || e.opts.ModelRetries <= 0 {
		*attempt = 0
		return errors.Trace(s.Action(ctx))
	}

	backoff := e.opts.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	return retry.Call(retry.CallArgs{
		Func: func() error {
			*attempt++
			return s.Action(ctx)
		},
		IsFatalError: func(err error) bool {
			fe, ok := err.(*controller.FacadeError)
			if !ok {
				return true
			}
			return !fe.Retryable()
		},
		Attempts: e.opts.ModelRetries,
		Delay:    backoff,
		BackoffFunc: func(delay time.Duration, attempt int) time.Duration {
			return backoff * time.Duration(attempt)
		},
		Clock: e.opts.Clock,
		Stop:  ctx.Done(),
	})
}

func errorKind(err error) string {
	var fe *controller.FacadeError
	if errors.As(err, &fe) {
		return fe.Kind.String()
	}
	return "other"
}
