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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/fieldfill/internal/library"
	"github.com/tombee/fieldfill/internal/log"
	"github.com/tombee/fieldfill/internal/store"
	"github.com/tombee/fieldfill/internal/tracing"
	"github.com/tombee/fieldfill/pkg/enrich"
)

// runStore is the persistence a run invocation needs.
type runStore interface {
	enrich.RecordStore
	library.HistoryStore
	SaveRun(ctx context.Context, e store.RunEntry) error
}

// executor submits plans to one ExecutionManager so they run
// single-flight in submission order.
type executor struct {
	store   runStore
	gateway enrich.Gateway
	config  enrich.RunConfig
	manager *enrich.ExecutionManager
	logger  *slog.Logger
	metrics enrich.MetricsCollector
	tracer  trace.Tracer

	// observe returns the display observer for a run; may be nil.
	observe func(run *enrich.Run) enrich.Observer

	// worker overrides, zero in production
	pollInterval time.Duration
	retryBackoff time.Duration

	now func() time.Time
}

func (e *executor) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

// Start submits one run per plan over ids. Cancelling ctx cancels
// every run.
func (e *executor) Start(ctx context.Context, plans []Plan, ids []string) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := newSession(e.manager, cancel)

	for _, p := range plans {
		run := enrich.NewRun(p.Name, enrich.RefsFromIDs(ids), p.Pipeline)
		runCtx := tracing.ToContext(ctx, tracing.ForRun(run.ID))

		t := &tracker{now: e.clock}
		observers := enrich.MultiObserver{t}
		if e.observe != nil {
			observers = append(observers, e.observe(run))
		}

		worker := enrich.NewWorker(run, e.manager, enrich.WorkerOptions{
			Store:        e.store,
			Gateway:      e.gateway,
			Config:       e.config,
			Observer:     observers,
			Logger:       e.logger.With(log.PipelineKey, p.Name),
			Metrics:      e.metrics,
			Tracer:       e.tracer,
			PollInterval: e.pollInterval,
			RetryBackoff: e.retryBackoff,
		})
		ctrl := enrich.NewRunController(e.manager, worker)
		s.add(ctrl, t)
		ctrl.Submit(runCtx)

		if err := e.store.TouchPrompt(ctx, p.Name, library.HistoryLimit); err != nil {
			e.logger.Warn("failed to record prompt use", "name", p.Name, "error", err)
		}
	}
	return s
}

// Finish waits for every run of s and persists its history row.
func (e *executor) Finish(ctx context.Context, s *Session) []Result {
	results := s.Wait()

	// History is written even when the runs were cancelled.
	saveCtx := context.WithoutCancel(ctx)
	for _, r := range results {
		entry := store.RunEntryFromSnapshot(r.RunSnapshot, r.StartedAt, r.FinishedAt)
		if err := e.store.SaveRun(saveCtx, entry); err != nil {
			e.logger.Warn("failed to save run history", log.RunIDKey, r.ID, "error", err)
		}
	}
	return results
}
