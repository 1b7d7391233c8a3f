// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package controller

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
)

// Fake is an in-memory Facade for tests, in the spirit of the
// teacher's api/base/testing.APICallerFunc stubs: every call is
// recorded and its outcome is driven by whatever the test installed
// beforehand, rather than talking to a real controller.
type Fake struct {
	mu sync.Mutex

	Clock clock.Clock

	Calls []Call

	ConfigGets      map[string]map[string]interface{}
	SetConfigErr    error
	RefreshErr      error
	SetChannelErr   error
	ActionResults   map[string]ActionResult
	ActionErr       error
	RunOnUnitErr    error
	WaitForIdleErr  error
	WaitForIdleWait time.Duration

	StatusPayload StatusPayload
	StatusErr     error

	UnitWorkloadVersions map[string]string
}

// Call records one façade invocation for test assertions.
type Call struct {
	Method string
	Args   []interface{}
}

// NewFake returns a Fake ready to use, with a wall clock.
func NewFake() *Fake {
	return &Fake{Clock: clock.WallClock, ConfigGets: map[string]map[string]interface{}{}, ActionResults: map[string]ActionResult{}}
}

func (f *Fake) record(method string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Method: method, Args: args})
}

func (f *Fake) Status(ctx context.Context) (StatusPayload, error) {
	f.record("Status")
	return f.StatusPayload, f.StatusErr
}

func (f *Fake) GetConfig(ctx context.Context, app string) (map[string]interface{}, error) {
	f.record("GetConfig", app)
	return f.ConfigGets[app], nil
}

func (f *Fake) SetConfig(ctx context.Context, app, key string, value interface{}) error {
	f.record("SetConfig", app, key, value)
	if f.SetConfigErr != nil {
		return f.SetConfigErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigGets[app] == nil {
		f.ConfigGets[app] = map[string]interface{}{}
	}
	f.ConfigGets[app][key] = value
	return nil
}

func (f *Fake) RefreshCharm(ctx context.Context, app string) error {
	f.record("RefreshCharm", app)
	return f.RefreshErr
}

func (f *Fake) SetChannel(ctx context.Context, app, track, risk string) error {
	f.record("SetChannel", app, track, risk)
	return f.SetChannelErr
}

func (f *Fake) RunAction(ctx context.Context, unit, action string, params map[string]interface{}) (ActionResult, error) {
	f.record("RunAction", unit, action, params)
	if f.ActionErr != nil {
		return ActionResult{}, f.ActionErr
	}
	return f.ActionResults[unit+"/"+action], nil
}

func (f *Fake) RunOnUnit(ctx context.Context, unit, command string) (CommandResult, error) {
	f.record("RunOnUnit", unit, command)
	return CommandResult{}, f.RunOnUnitErr
}

func (f *Fake) UnitWorkloadVersion(ctx context.Context, unit string) (string, error) {
	f.record("UnitWorkloadVersion", unit)
	return f.UnitWorkloadVersions[unit], nil
}

func (f *Fake) WaitForIdle(ctx context.Context, scope Scope, name string, timeout time.Duration) error {
	f.record("WaitForIdle", scope, name, timeout)
	if f.WaitForIdleWait > 0 {
		select {
		case <-f.Clock.After(f.WaitForIdleWait):
		case <-ctx.Done():
			return NewError(KindTimeout, ctx.Err())
		}
	}
	return f.WaitForIdleErr
}
