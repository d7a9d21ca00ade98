// Package runnertest provides test helpers for the runner package.
package runnertest

import (
	"context"
	"sync"

	"github.com/engramd/engram/internal/runner"
)

// MockRunner is a configurable test double for runner.Runner. Set
// RunFunc to control behavior; an unset RunFunc returns a canned
// success. Safe for concurrent use.
type MockRunner struct {
	RunFunc func(ctx context.Context, req runner.Request) runner.Result

	mu       sync.Mutex
	RunCalls int
	Requests []runner.Request
}

var _ runner.Runner = (*MockRunner)(nil)

// Run delegates to RunFunc and records the request.
func (m *MockRunner) Run(ctx context.Context, req runner.Request) runner.Result {
	m.mu.Lock()
	m.RunCalls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.RunFunc == nil {
		return runner.Result{Success: true, Output: "ok"}
	}
	return m.RunFunc(ctx, req)
}

// Calls returns the recorded call count.
func (m *MockRunner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RunCalls
}

// LastRequest returns the most recent recorded request, or a zero value
// if none were made.
func (m *MockRunner) LastRequest() runner.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return runner.Request{}
	}
	return m.Requests[len(m.Requests)-1]
}
