// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"time"

	"github.com/engramd/engram/internal/cron"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

// Compile-time interface check.
var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockRequeuer is a test double for cron.StaleRequeuer.
type MockRequeuer struct {
	RecoverFunc func(ctx context.Context) int

	mu    sync.Mutex
	calls int
}

var _ cron.StaleRequeuer = (*MockRequeuer)(nil)

// RecoverStale implements cron.StaleRequeuer.
func (m *MockRequeuer) RecoverStale(ctx context.Context) int {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RecoverFunc != nil {
		return m.RecoverFunc(ctx)
	}
	return 0
}

// CallCount returns the number of times RecoverStale was called.
func (m *MockRequeuer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
