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
	"sync/atomic"
)

// WorkerFlags is the state shared between a RunController and its
// Worker goroutine.
type WorkerFlags struct {
	permission      atomic.Bool
	userPaused      atomic.Bool
	cancelRequested atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Permission reports whether the run may execute right now.
func (f *WorkerFlags) Permission() bool { return f.permission.Load() }

// UserPaused reports whether a pause was requested and not yet resumed.
func (f *WorkerFlags) UserPaused() bool { return f.userPaused.Load() }

// CancelRequested reports whether cancellation was requested. Once true
// it stays true.
func (f *WorkerFlags) CancelRequested() bool { return f.cancelRequested.Load() }

// grant is the activation callback invoked by the ExecutionManager. A
// promotion racing with a pause does not grant permission; the pause's
// Yield releases the slot right after.
func (f *WorkerFlags) grant() {
	if !f.userPaused.Load() {
		f.permission.Store(true)
	}
}

func (f *WorkerFlags) pause() {
	f.userPaused.Store(true)
	f.permission.Store(false)
}

func (f *WorkerFlags) resume() {
	f.userPaused.Store(false)
}

// requestCancel sets the cancellation flag and cancels the bound
// context, if any.
func (f *WorkerFlags) requestCancel() {
	f.cancelRequested.Store(true)
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// bind attaches the cancel function of the worker's context. A
// cancellation requested before binding takes effect immediately.
func (f *WorkerFlags) bind(cancel context.CancelFunc) {
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()
	if f.cancelRequested.Load() {
		cancel()
	}
}
