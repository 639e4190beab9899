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

package run

import (
	"context"
	"sync"
	"time"

	"github.com/tombee/fieldfill/pkg/enrich"
)

// tracker records the timing and first failure of one run.
type tracker struct {
	enrich.NopObserver

	now func() time.Time

	mu       sync.Mutex
	started  time.Time
	finished time.Time
	notice   error
}

func (t *tracker) markStarted() {
	t.mu.Lock()
	if t.started.IsZero() {
		t.started = t.now()
	}
	t.mu.Unlock()
}

func (t *tracker) OnStatus(text string) {
	if text == enrich.StatusProcessing {
		t.markStarted()
	}
}

func (t *tracker) OnProgress(int, int) {
	t.markStarted()
}

func (t *tracker) OnNotice(err error) {
	t.mu.Lock()
	t.notice = err
	t.mu.Unlock()
}

func (t *tracker) OnFinished(enrich.RunStatus) {
	t.mu.Lock()
	t.finished = t.now()
	t.mu.Unlock()
}

func (t *tracker) times() (started, finished time.Time, notice error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started, t.finished, t.notice
}

type sessionRun struct {
	ctrl    *enrich.RunController
	tracker *tracker
}

// Session holds the runs submitted by one invocation and maps user
// commands onto their controllers.
type Session struct {
	manager   *enrich.ExecutionManager
	cancelAll context.CancelFunc

	mu     sync.Mutex
	runs   []sessionRun
	byID   map[string]*enrich.RunController
	paused []*enrich.RunController // most recent last
}

func newSession(manager *enrich.ExecutionManager, cancelAll context.CancelFunc) *Session {
	return &Session{
		manager:   manager,
		cancelAll: cancelAll,
		byID:      make(map[string]*enrich.RunController),
	}
}

func (s *Session) add(ctrl *enrich.RunController, t *tracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, sessionRun{ctrl: ctrl, tracker: t})
	s.byID[ctrl.Run().ID] = ctrl
}

func (s *Session) active() *enrich.RunController {
	run := s.manager.Active()
	if run == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[run.ID]
}

// PauseActive pauses the active run. It returns the paused run, or nil
// when no run of this session is active.
func (s *Session) PauseActive() *enrich.Run {
	ctrl := s.active()
	if ctrl == nil {
		return nil
	}
	ctrl.Pause()

	s.mu.Lock()
	s.paused = append(s.paused, ctrl)
	s.mu.Unlock()
	return ctrl.Run()
}

// ResumeLast resumes the most recently paused run that is still
// paused. It returns that run, or nil.
func (s *Session) ResumeLast() *enrich.Run {
	s.mu.Lock()
	var ctrl *enrich.RunController
	for len(s.paused) > 0 {
		last := s.paused[len(s.paused)-1]
		s.paused = s.paused[:len(s.paused)-1]
		if last.Paused() && !last.Run().Status().IsTerminal() {
			ctrl = last
			break
		}
	}
	s.mu.Unlock()

	if ctrl == nil {
		return nil
	}
	ctrl.Resume()
	return ctrl.Run()
}

// CancelActive cancels the active run. It returns that run, or nil.
func (s *Session) CancelActive() *enrich.Run {
	ctrl := s.active()
	if ctrl == nil {
		return nil
	}
	ctrl.Cancel()
	return ctrl.Run()
}

// CancelAll cancels every run of the session, waiting or active.
func (s *Session) CancelAll() {
	s.mu.Lock()
	runs := append([]sessionRun(nil), s.runs...)
	s.mu.Unlock()

	for _, r := range runs {
		r.ctrl.Cancel()
	}
	s.cancelAll()
}

// Key bindings understood by HandleKey.
const (
	keyPause     = 'p'
	keyResume    = 'r'
	keyCancel    = 'c'
	keyInterrupt = 0x03 // Ctrl-C in raw mode
)

// HandleKey applies a key press and returns the affected run, if any.
func (s *Session) HandleKey(b byte) *enrich.Run {
	switch b {
	case keyPause, 'P':
		return s.PauseActive()
	case keyResume, 'R':
		return s.ResumeLast()
	case keyCancel, 'C':
		return s.CancelActive()
	case keyInterrupt:
		s.CancelAll()
	}
	return nil
}

// Wait blocks until every run has finished and returns their results
// in submission order.
func (s *Session) Wait() []Result {
	s.mu.Lock()
	runs := append([]sessionRun(nil), s.runs...)
	s.mu.Unlock()

	results := make([]Result, 0, len(runs))
	for _, r := range runs {
		<-r.ctrl.Done()
		started, finished, notice := r.tracker.times()
		res := Result{RunSnapshot: r.ctrl.Run().Snapshot(), StartedAt: started, FinishedAt: finished}
		if notice != nil {
			res.Notice = notice.Error()
		}
		results = append(results, res)
	}
	return results
}
