// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package controller defines the narrow capability surface the engine
// depends on (C7, §4.7): a façade over whatever orchestration
// controller actually manages the cloud. The real implementation is
// out of scope for this specification (§1); this package is the
// contract plus, for tests, a small in-memory fake.
package controller

import (
	"context"
	"time"

	"github.com/juju/errors"
)

// ErrorKind classifies a façade failure the way §4.7 requires, so the
// engine can decide whether a leaf is worth retrying.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindTransientConnection
	KindUnitError
	KindTimeout
	KindPermission
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransientConnection:
		return "transient-connection"
	case KindUnitError:
		return "unit-error"
	case KindTimeout:
		return "timeout"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not-found"
	default:
		return "other"
	}
}

// FacadeError wraps a façade failure with its classification.
type FacadeError struct {
	Kind ErrorKind
	Err  error
}

func (e *FacadeError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *FacadeError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the engine's retry policy (§4.6) should
// apply to this error: only transient connection failures are
// retryable; timeouts and everything else are not.
func (e *FacadeError) Retryable() bool {
	return e.Kind == KindTransientConnection
}

// NewError builds a classified FacadeError, annotating err with Trace
// so its origin survives across the façade boundary.
func NewError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &FacadeError{Kind: kind, Err: errors.Trace(err)}
}

// Scope selects what wait_for_idle waits on.
type Scope int

const (
	ScopeApplication Scope = iota
	ScopeModel
)

// ActionResult is the outcome of an action invocation.
type ActionResult struct {
	Status  string
	Output  map[string]interface{}
	Message string
}

// CommandResult is the outcome of a unit command.
type CommandResult struct {
	Stdout   string
	ExitCode int
}

// Facade is the capability surface §4.7 names. All calls are
// cancellable via ctx; a call that doesn't return before ctx is done
// must return a KindTimeout or similar classified error promptly
// rather than blocking forever (§5's "every controller call is a
// suspension point").
type Facade interface {
	Status(ctx context.Context) (StatusPayload, error)
	GetConfig(ctx context.Context, app string) (map[string]interface{}, error)
	SetConfig(ctx context.Context, app, key string, value interface{}) error
	RefreshCharm(ctx context.Context, app string) error
	SetChannel(ctx context.Context, app, track, risk string) error
	RunAction(ctx context.Context, unit, action string, params map[string]interface{}) (ActionResult, error)
	RunOnUnit(ctx context.Context, unit, command string) (CommandResult, error)
	WaitForIdle(ctx context.Context, scope Scope, name string, timeout time.Duration) error
	// UnitWorkloadVersion re-fetches the workload-version a unit
	// currently reports, for the post-upgrade verification step (§4.4
	// step 9). It is a narrowed, named slice of what a full Status()
	// call would return, so callers don't need to know the status
	// payload's concrete shape just to check one unit.
	UnitWorkloadVersion(ctx context.Context, unit string) (string, error)
}

// StatusPayload is the raw shape Status returns; it is intentionally
// unopinionated here (the real controller's status schema is out of
// scope, §1) and is converted into a topology.RawStatus by the caller
// that owns that mapping (cmd/cou).
type StatusPayload struct {
	Raw interface{}
}
