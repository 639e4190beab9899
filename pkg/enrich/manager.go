// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package enrich

import (
	"log/slog"
	"sync"
)

// ExecutionManager admits one Run at a time. Runs submitted while another
// is active wait in FIFO order. It is created once by the application and
// shared by every RunController.
//
// All methods are safe for concurrent use and never fail: operations on
// runs the manager does not track are no-ops.
type ExecutionManager struct {
	mu      sync.Mutex
	active  *Run
	waiting []*Run

	logger  *slog.Logger
	metrics MetricsCollector
}

// ManagerOption configures an ExecutionManager.
type ManagerOption func(*ExecutionManager)

// WithManagerLogger sets the logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *ExecutionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerMetrics reports queue depth to the collector.
func WithManagerMetrics(metrics MetricsCollector) ManagerOption {
	return func(m *ExecutionManager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// NewExecutionManager creates an idle manager.
func NewExecutionManager(opts ...ManagerOption) *ExecutionManager {
	m := &ExecutionManager{
		logger:  slog.Default(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue appends run to the wait queue and promotes it if nothing is
// active. A run that is already active, waiting, or finished is left
// alone.
func (m *ExecutionManager) Enqueue(run *Run) {
	if run == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A finished run has no worker left to release the slot.
	if m.active == run || m.indexLocked(run) >= 0 || run.Status().IsTerminal() {
		return
	}

	run.setStatus(RunStatusQueued)
	m.waiting = append(m.waiting, run)
	m.renumberLocked()
	m.logger.Debug("run enqueued", "run_id", run.ID, "position", len(m.waiting))
	m.promoteLocked()
}

// Yield releases the active slot held by run and promotes the next
// waiting run. A run that yields while still waiting is removed from the
// queue. Yield never re-enqueues run; call Enqueue to resume it.
func (m *ExecutionManager) Yield(run *Run) {
	if run == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.active == run:
		m.active = nil
		run.setStatus(RunStatusPaused)
		m.logger.Debug("run yielded", "run_id", run.ID)
	case m.removeLocked(run):
		run.setStatus(RunStatusPaused)
		run.setPosition(0)
		m.logger.Debug("run left queue", "run_id", run.ID)
	}

	m.renumberLocked()
	m.promoteLocked()
}

// NotifyFinished releases everything held by run, whether it was active
// or still waiting, and promotes the next waiting run.
func (m *ExecutionManager) NotifyFinished(run *Run) {
	if run == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == run {
		m.active = nil
	}
	if m.removeLocked(run) {
		run.setPosition(0)
	}

	m.renumberLocked()
	m.promoteLocked()
}

// Active returns the active run, or nil.
func (m *ExecutionManager) Active() *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Waiting returns the waiting runs in queue order.
func (m *ExecutionManager) Waiting() []*Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Run, len(m.waiting))
	copy(out, m.waiting)
	return out
}

// promoteLocked activates the head of the queue if the slot is free. The
// activation callback runs under the lock so a concurrent Yield cannot
// interleave between taking the slot and granting permission; callbacks
// must not call back into the manager.
func (m *ExecutionManager) promoteLocked() {
	if m.active == nil && len(m.waiting) > 0 {
		next := m.waiting[0]
		m.waiting[0] = nil
		m.waiting = m.waiting[1:]

		m.active = next
		next.setStatus(RunStatusActive)
		next.setPosition(0)
		m.logger.Debug("run promoted", "run_id", next.ID, "waiting", len(m.waiting))

		if activate := next.activation(); activate != nil {
			activate()
		}
		m.renumberLocked()
	}
	m.metrics.QueueDepth(len(m.waiting))
}

// renumberLocked assigns positions 1..len(waiting) in queue order.
func (m *ExecutionManager) renumberLocked() {
	for i, r := range m.waiting {
		r.setPosition(i + 1)
	}
}

func (m *ExecutionManager) indexLocked(run *Run) int {
	for i, r := range m.waiting {
		if r == run {
			return i
		}
	}
	return -1
}

func (m *ExecutionManager) removeLocked(run *Run) bool {
	i := m.indexLocked(run)
	if i < 0 {
		return false
	}
	m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
	return true
}
