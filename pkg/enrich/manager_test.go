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
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRun(name string) *Run {
	return NewRun(name, nil, Pipeline{textStep("Back")})
}

func assertPositions(t *testing.T, m *ExecutionManager) {
	t.Helper()
	waiting := m.Waiting()
	for i, r := range waiting {
		assert.Equal(t, i+1, r.Position(), "run %s", r.Name)
		assert.NotSame(t, m.Active(), r, "active run must not be waiting")
	}
}

func TestExecutionManager_EnqueuePromotesWhenIdle(t *testing.T) {
	m := NewExecutionManager()
	a := newTestRun("a")
	activated := 0
	a.setActivation(func() { activated++ })

	m.Enqueue(a)

	assert.Same(t, a, m.Active())
	assert.Empty(t, m.Waiting())
	assert.Equal(t, RunStatusActive, a.Status())
	assert.Equal(t, 0, a.Position())
	assert.Equal(t, 1, activated)
}

func TestExecutionManager_FIFOOrder(t *testing.T) {
	m := NewExecutionManager()
	a, b, c := newTestRun("a"), newTestRun("b"), newTestRun("c")

	m.Enqueue(a)
	m.Enqueue(b)
	m.Enqueue(c)

	require.Same(t, a, m.Active())
	assert.Equal(t, []*Run{b, c}, m.Waiting())
	assert.Equal(t, 1, b.Position())
	assert.Equal(t, 2, c.Position())
	assert.Equal(t, RunStatusQueued, b.Status())

	m.NotifyFinished(a)
	assert.Same(t, b, m.Active())
	assert.Equal(t, 1, c.Position())

	m.NotifyFinished(b)
	assert.Same(t, c, m.Active())
	assert.Empty(t, m.Waiting())
}

func TestExecutionManager_EnqueueIsIdempotent(t *testing.T) {
	m := NewExecutionManager()
	a, b := newTestRun("a"), newTestRun("b")

	m.Enqueue(a)
	m.Enqueue(b)
	m.Enqueue(a)
	m.Enqueue(b)

	assert.Same(t, a, m.Active())
	assert.Equal(t, []*Run{b}, m.Waiting())
}

func TestExecutionManager_EnqueueIgnoresFinishedRun(t *testing.T) {
	m := NewExecutionManager()
	a := newTestRun("a")
	a.setStatus(RunStatusCompleted)

	m.Enqueue(a)

	assert.Nil(t, m.Active())
	assert.Equal(t, RunStatusCompleted, a.Status())
}

func TestExecutionManager_YieldDoesNotResume(t *testing.T) {
	m := NewExecutionManager()
	a, b := newTestRun("a"), newTestRun("b")
	m.Enqueue(a)
	m.Enqueue(b)

	m.Yield(a)

	assert.Same(t, b, m.Active())
	assert.Empty(t, m.Waiting())
	assert.Equal(t, RunStatusPaused, a.Status())

	// Finishing b must not bring a back.
	m.NotifyFinished(b)
	assert.Nil(t, m.Active())
	assert.Empty(t, m.Waiting())

	m.Enqueue(a)
	assert.Same(t, a, m.Active())
}

func TestExecutionManager_YieldWhileWaiting(t *testing.T) {
	m := NewExecutionManager()
	a, b, c := newTestRun("a"), newTestRun("b"), newTestRun("c")
	m.Enqueue(a)
	m.Enqueue(b)
	m.Enqueue(c)

	m.Yield(b)

	assert.Same(t, a, m.Active())
	assert.Equal(t, []*Run{c}, m.Waiting())
	assert.Equal(t, 1, c.Position())
	assert.Equal(t, 0, b.Position())
	assert.Equal(t, RunStatusPaused, b.Status())
}

func TestExecutionManager_NotifyFinishedRemovesWaiting(t *testing.T) {
	m := NewExecutionManager()
	a, b, c := newTestRun("a"), newTestRun("b"), newTestRun("c")
	m.Enqueue(a)
	m.Enqueue(b)
	m.Enqueue(c)

	m.NotifyFinished(b)

	assert.Same(t, a, m.Active())
	assert.Equal(t, []*Run{c}, m.Waiting())
	assert.Equal(t, 1, c.Position())
}

func TestExecutionManager_UntrackedRunsAreNoOps(t *testing.T) {
	m := NewExecutionManager()
	a, stray := newTestRun("a"), newTestRun("stray")
	m.Enqueue(a)

	assert.NotPanics(t, func() {
		m.Yield(stray)
		m.NotifyFinished(stray)
		m.Yield(nil)
		m.NotifyFinished(nil)
		m.Enqueue(nil)
	})
	assert.Same(t, a, m.Active())
}

func TestExecutionManager_RandomInterleavingKeepsInvariants(t *testing.T) {
	m := NewExecutionManager()
	runs := make([]*Run, 6)
	for i := range runs {
		runs[i] = newTestRun(string(rune('a' + i)))
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for step := 0; step < 2000; step++ {
		r := runs[rng.IntN(len(runs))]
		switch rng.IntN(3) {
		case 0:
			m.Enqueue(r)
		case 1:
			m.Yield(r)
		case 2:
			m.NotifyFinished(r)
		}

		active := m.Active()
		if active != nil {
			assert.Equal(t, RunStatusActive, active.Status())
		}
		assertPositions(t, m)
		if len(m.Waiting()) > 0 {
			require.NotNil(t, active, "queued runs with an idle slot")
		}
	}
}

func TestExecutionManager_ConcurrentAccess(t *testing.T) {
	m := NewExecutionManager()
	runs := make([]*Run, 8)
	for i := range runs {
		runs[i] = newTestRun(string(rune('a' + i)))
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed))
			for i := 0; i < 500; i++ {
				r := runs[rng.IntN(len(runs))]
				switch rng.IntN(3) {
				case 0:
					m.Enqueue(r)
				case 1:
					m.Yield(r)
				default:
					m.NotifyFinished(r)
				}
			}
		}(uint64(g))
	}
	wg.Wait()

	assertPositions(t, m)
}
