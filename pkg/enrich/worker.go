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
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	fferrors "github.com/tombee/fieldfill/pkg/errors"
)

const tracerName = "github.com/tombee/fieldfill/pkg/enrich"

// Default suspension intervals.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultThrottleTick = time.Second
	DefaultRetryBackoff = 3 * time.Second
)

// Status lines published while the worker is suspended.
const (
	StatusWaiting    = "Waiting in queue"
	StatusPaused     = "Paused by user"
	StatusProcessing = "Processing"
	StatusRetrying   = "Network error, retrying"
	StatusDone       = "Done"
	StatusCancelled  = "Cancelled"
)

// WorkerState is the position of a Worker in its state machine.
type WorkerState string

const (
	StateWaitingForPermission WorkerState = "waiting_for_permission"
	StateProcessing           WorkerState = "processing"
	StateBatchPaused          WorkerState = "batch_paused"
	StateRetrying             WorkerState = "retrying"
	StateDone                 WorkerState = "done"
	StateCancelled            WorkerState = "cancelled"
)

// WorkerOptions holds the collaborators and settings of a Worker.
type WorkerOptions struct {
	// Store resolves RecordRefs that carry only an ID. Required unless
	// every ref carries a Handle.
	Store RecordStore

	// Gateway sends prompts to the provider. Required.
	Gateway Gateway

	// Config is copied when the worker is created.
	Config RunConfig

	Observer Observer
	Logger   *slog.Logger
	Metrics  MetricsCollector
	Tracer   trace.Tracer
	Applier  *Applier

	// PollInterval is the permission gate granularity. Default: 100ms.
	PollInterval time.Duration

	// ThrottleTick is the batch pause countdown granularity. Default: 1s.
	ThrottleTick time.Duration

	// RetryBackoff is the wait before retrying a transient failure.
	// Default: 3s.
	RetryBackoff time.Duration

	// RandInt returns a uniform integer in [lo, hi] for batch jitter.
	RandInt func(lo, hi int) int
}

// Worker processes the records of one Run in order on its own
// goroutine. It is created once per Run and used through a
// RunController.
type Worker struct {
	run     *Run
	manager *ExecutionManager
	flags   *WorkerFlags

	store    RecordStore
	gateway  Gateway
	cfg      RunConfig
	observer Observer
	logger   *slog.Logger
	metrics  MetricsCollector
	tracer   trace.Tracer
	applier  *Applier

	pollInterval time.Duration
	throttleTick time.Duration
	retryBackoff time.Duration
	randInt      func(lo, hi int) int

	// conditions holds the compiled When expression of each step; nil
	// when the step has none.
	conditions []*vm.Program
	condErrs   []error

	mu    sync.RWMutex
	state WorkerState

	// Owned by the worker goroutine.
	lastStatus string
	noticed    bool
}

// NewWorker creates a worker for run. The worker does nothing until Run
// is called and the manager grants it permission.
func NewWorker(run *Run, manager *ExecutionManager, opts WorkerOptions) *Worker {
	w := &Worker{
		run:          run,
		manager:      manager,
		flags:        &WorkerFlags{},
		store:        opts.Store,
		gateway:      opts.Gateway,
		cfg:          opts.Config,
		observer:     opts.Observer,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		applier:      opts.Applier,
		pollInterval: opts.PollInterval,
		throttleTick: opts.ThrottleTick,
		retryBackoff: opts.RetryBackoff,
		randInt:      opts.RandInt,
		state:        StateWaitingForPermission,
	}

	if w.observer == nil {
		w.observer = NopObserver{}
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("run_id", run.ID)
	if w.metrics == nil {
		w.metrics = nopMetrics{}
	}
	if w.tracer == nil {
		w.tracer = otel.Tracer(tracerName)
	}
	if w.applier == nil {
		w.applier = NewApplier()
	}
	if w.pollInterval <= 0 {
		w.pollInterval = DefaultPollInterval
	}
	if w.throttleTick <= 0 {
		w.throttleTick = DefaultThrottleTick
	}
	if w.retryBackoff <= 0 {
		w.retryBackoff = DefaultRetryBackoff
	}
	if w.randInt == nil {
		w.randInt = uniformInt
	}

	w.conditions = make([]*vm.Program, len(run.Pipeline))
	w.condErrs = make([]error, len(run.Pipeline))
	for i, step := range run.Pipeline {
		if step.When == "" {
			continue
		}
		program, err := expr.Compile(step.When, expr.AsBool(), expr.AllowUndefinedVariables())
		if err != nil {
			w.condErrs[i] = &fferrors.ValidationError{Field: "when", Message: err.Error()}
			continue
		}
		w.conditions[i] = program
	}

	return w
}

func uniformInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rand.IntN(hi-lo+1)
}

// Flags returns the flags shared with the controller.
func (w *Worker) Flags() *WorkerFlags {
	return w.flags
}

// State returns the current state.
func (w *Worker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s WorkerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Run processes every record and returns the terminal status. ctx is
// the run's cancellation token: it is checked at the permission gate,
// during batch pauses and during retry backoff. A provider call already
// in flight is allowed to finish.
func (w *Worker) Run(ctx context.Context) RunStatus {
	total := w.run.Total()
	w.logger.Info("run started", "records", total, "steps", len(w.run.Pipeline))

	status := w.process(ctx, total)
	w.finish(status)
	return status
}

func (w *Worker) process(ctx context.Context, total int) RunStatus {
	for i, ref := range w.run.Records {
		if !w.awaitPermission(ctx) {
			return RunStatusCancelled
		}

		if w.cfg.ThrottleBefore(i) {
			if !w.throttle(ctx) {
				return RunStatusCancelled
			}
			// The run may have been paused during the batch pause.
			if !w.awaitPermission(ctx) {
				return RunStatusCancelled
			}
		}

		w.setState(StateProcessing)
		w.status(StatusProcessing)
		if !w.processRecord(ctx, i, total, ref) {
			return RunStatusCancelled
		}

		w.run.setCompleted(i + 1)
		w.observer.OnProgress(i+1, total)
	}
	return RunStatusCompleted
}

func (w *Worker) finish(status RunStatus) {
	if status == RunStatusCompleted {
		w.setState(StateDone)
		w.status(StatusDone)
	} else {
		w.setState(StateCancelled)
		w.status(StatusCancelled)
	}

	w.run.setStatus(status)
	if w.manager != nil {
		w.manager.NotifyFinished(w.run)
	}
	w.metrics.RunFinished(status)

	w.logger.Info("run finished", "status", status, "completed", w.run.Completed(), "total", w.run.Total())
	w.observer.OnRefreshRequested()
	w.observer.OnFinished(status)
}

// awaitPermission blocks until the run holds permission. It returns
// false when ctx is cancelled first.
func (w *Worker) awaitPermission(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		if w.flags.Permission() {
			return true
		}

		w.setState(StateWaitingForPermission)
		if w.flags.UserPaused() {
			w.status(StatusPaused)
		} else {
			w.status(StatusWaiting)
		}

		if !sleep(ctx, w.pollInterval) {
			return false
		}
	}
}

// throttle waits out one batch delay, counting down one tick at a time.
// It returns false when ctx is cancelled first.
func (w *Worker) throttle(ctx context.Context) bool {
	w.observer.OnRefreshRequested()

	delay := w.cfg.Delay(w.randInt)
	w.metrics.RecordThrottle(delay)
	w.setState(StateBatchPaused)
	w.logger.Debug("batch pause", "delay", delay)

	for remaining := int(delay / time.Second); remaining > 0; remaining-- {
		w.status(fmt.Sprintf("Batch pause: %ds remaining", remaining))
		if !sleep(ctx, w.throttleTick) {
			return false
		}
	}
	return ctx.Err() == nil
}

// processRecord runs every step against one record, retrying transient
// failures from the first step. Writes are staged and only reach the
// record once every step has succeeded. It returns false when ctx is
// cancelled during a retry backoff.
func (w *Worker) processRecord(ctx context.Context, index, total int, ref RecordRef) bool {
	rec, err := w.resolve(ctx, ref)
	if err != nil {
		if Classify(err) == RecordAccess {
			w.metrics.RecordProcessed(OutcomeSkipped)
		} else {
			w.reportFailure(ref.Key(), err)
			w.metrics.RecordProcessed(OutcomeFailed)
		}
		return true
	}

	for attempt := 1; ; attempt++ {
		// The attempt runs to completion even if the run is cancelled
		// meanwhile.
		err := w.attempt(context.WithoutCancel(ctx), index, total, rec, attempt)
		if err == nil {
			return true
		}

		switch Classify(err) {
		case RecordAccess:
			w.metrics.RecordProcessed(OutcomeSkipped)
			return true
		case Permanent:
			w.reportFailure(rec.ID(), err)
			w.metrics.RecordProcessed(OutcomeFailed)
			return true
		}

		w.metrics.RecordRetry()
		w.setState(StateRetrying)
		w.status(StatusRetrying)
		w.logger.WarnContext(ctx, "transient failure, retrying record",
			"record_id", rec.ID(),
			"attempt", attempt,
			"backoff", w.retryBackoff,
			"error", err,
		)
		if !sleep(ctx, w.retryBackoff) {
			return false
		}
		w.setState(StateProcessing)
		w.status(StatusProcessing)
	}
}

func (w *Worker) resolve(ctx context.Context, ref RecordRef) (Record, error) {
	if ref.Handle != nil {
		return ref.Handle, nil
	}
	if w.store == nil {
		return nil, &fferrors.NotFoundError{Resource: "record", ID: ref.ID}
	}
	return w.store.Resolve(ctx, ref.ID)
}

// attempt runs the pipeline once against a fresh staging overlay and
// flushes it on success.
func (w *Worker) attempt(ctx context.Context, index, total int, rec Record, attempt int) (err error) {
	ctx, span := w.tracer.Start(ctx, "enrich.record", trace.WithAttributes(
		attribute.String("run.id", w.run.ID),
		attribute.String("record.id", rec.ID()),
		attribute.Int("record.index", index),
		attribute.Int("attempt", attempt),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	staged := newStagedRecord(rec)
	for s, step := range w.run.Pipeline {
		w.observer.OnContextLabel(w.contextLabel(index, total, s, step))
		if err := w.runStep(ctx, s, step, staged); err != nil {
			return err
		}
	}

	if !staged.dirty() {
		w.metrics.RecordProcessed(OutcomeSkipped)
		return nil
	}
	if err := staged.flush(ctx); err != nil {
		return err
	}
	w.metrics.RecordProcessed(OutcomeEnriched)
	return nil
}

func (w *Worker) runStep(ctx context.Context, index int, step StepSpec, rec *stagedRecord) (err error) {
	ctx, span := w.tracer.Start(ctx, "enrich.step", trace.WithAttributes(
		attribute.String("step.name", step.Name),
		attribute.Int("step.index", index),
		attribute.String("step.mode", string(step.EffectiveMode())),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	run, err := w.stepApplies(index, rec)
	if err != nil {
		return err
	}
	if !run {
		span.SetAttributes(attribute.Bool("step.skipped", true))
		return nil
	}

	prompt, err := BuildPrompt(step.Prompt, rec)
	if err != nil {
		return err
	}

	response, err := w.gateway.Send(ctx, prompt)
	if err != nil {
		return err
	}

	return w.applier.Apply(ctx, rec, step, response)
}

// stepApplies evaluates the step's When condition against the record as
// staged so far.
func (w *Worker) stepApplies(index int, rec Record) (bool, error) {
	if w.condErrs[index] != nil {
		return false, w.condErrs[index]
	}
	program := w.conditions[index]
	if program == nil {
		return true, nil
	}

	out, err := expr.Run(program, fieldEnv(rec))
	if err != nil {
		return false, &fferrors.ValidationError{Field: "when", Message: err.Error()}
	}
	ok, _ := out.(bool)
	return ok, nil
}

func (w *Worker) contextLabel(index, total, step int, spec StepSpec) string {
	label := fmt.Sprintf("Record %d of %d", index+1, total)
	if len(w.run.Pipeline) > 1 {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("step %d", step+1)
		}
		label += fmt.Sprintf(" (%s, %d/%d)", name, step+1, len(w.run.Pipeline))
	}
	return label
}

// reportFailure surfaces the first permanent failure of the run. Later
// failures are only logged at debug level.
func (w *Worker) reportFailure(recordID string, err error) {
	if w.noticed {
		w.logger.Debug("record failed", "record_id", recordID, "error", err)
		return
	}
	w.noticed = true
	w.logger.Error("record failed",
		"record_id", recordID,
		"error_type", fferrors.Type(err),
		"error", err,
	)
	w.observer.OnNotice(err)
}

// status publishes text when it differs from the last published line.
func (w *Worker) status(text string) {
	if text == w.lastStatus {
		return
	}
	w.lastStatus = text
	w.observer.OnStatus(text)
}

// sleep waits for d or until ctx is done. It returns false on
// cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
