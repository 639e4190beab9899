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
	"context"
	"sync"
)

// RunController owns a Worker and connects it to the ExecutionManager.
// It is the caller-facing handle for pausing, resuming and cancelling a
// run.
type RunController struct {
	manager *ExecutionManager
	worker  *Worker
	run     *Run

	once   sync.Once
	done   chan struct{}
	result RunStatus
}

// NewRunController creates a controller for worker.
func NewRunController(manager *ExecutionManager, worker *Worker) *RunController {
	return &RunController{
		manager: manager,
		worker:  worker,
		run:     worker.run,
		done:    make(chan struct{}),
	}
}

// Submit starts the worker goroutine and enqueues the run. The worker
// waits at its permission gate until the manager promotes the run.
// Cancelling ctx cancels the run. Calls after the first are no-ops.
func (c *RunController) Submit(ctx context.Context) {
	c.once.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		c.worker.flags.bind(cancel)
		c.run.setActivation(c.worker.flags.grant)

		go func() {
			defer close(c.done)
			defer cancel()
			c.result = c.worker.Run(runCtx)
		}()

		c.manager.Enqueue(c.run)
	})
}

// Pause withdraws permission and releases the active slot. The run
// stays paused until Resume is called.
func (c *RunController) Pause() {
	if c.run.Status().IsTerminal() {
		return
	}
	c.worker.flags.pause()
	c.manager.Yield(c.run)
}

// Resume puts a paused run back at the end of the queue.
func (c *RunController) Resume() {
	if !c.worker.flags.UserPaused() {
		return
	}
	c.worker.flags.resume()
	c.manager.Enqueue(c.run)
}

// Cancel requests cancellation. The worker stops at its next
// suspension point and releases its slot or queue position.
func (c *RunController) Cancel() {
	c.worker.flags.requestCancel()
}

// Done is closed when the worker goroutine has exited.
func (c *RunController) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the worker exits or ctx is done and returns the
// terminal status.
func (c *RunController) Wait(ctx context.Context) (RunStatus, error) {
	select {
	case <-c.done:
		return c.result, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Run returns the controlled run.
func (c *RunController) Run() *Run {
	return c.run
}

// Paused reports whether the user has paused the run.
func (c *RunController) Paused() bool {
	return c.worker.flags.UserPaused()
}

// Worker returns the controlled worker.
func (c *RunController) Worker() *Worker {
	return c.worker
}
