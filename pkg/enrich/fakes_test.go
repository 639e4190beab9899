package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	fferrors "github.com/tombee/fieldfill/pkg/errors"
)

// memRecord is an in-memory Record that counts mutations.
type memRecord struct {
	mu      sync.Mutex
	id      string
	order   []string
	fields  map[string]string
	sets    int
	commits int
}

func newMemRecord(id string, kv ...string) *memRecord {
	r := &memRecord{id: id, fields: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		r.order = append(r.order, kv[i])
		r.fields[kv[i]] = kv[i+1]
	}
	return r
}

func (r *memRecord) ID() string { return r.id }

func (r *memRecord) Fields() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *memRecord) Get(field string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.fields[field]
	return v, ok
}

func (r *memRecord) Set(field, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fields[field]; !ok {
		return fmt.Errorf("no field %q", field)
	}
	r.fields[field] = value
	r.sets++
	return nil
}

func (r *memRecord) Commit(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits++
	return nil
}

func (r *memRecord) Commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

// brokenCommitRecord is a memRecord whose Commit always fails with err.
type brokenCommitRecord struct {
	*memRecord
	err error
}

func (r *brokenCommitRecord) Commit(ctx context.Context) error {
	_ = r.memRecord.Commit(ctx)
	return r.err
}

// memStore resolves records by ID.
type memStore struct {
	records map[string]*memRecord
}

func newMemStore(records ...*memRecord) *memStore {
	s := &memStore{records: make(map[string]*memRecord)}
	for _, r := range records {
		s.records[r.id] = r
	}
	return s
}

func (s *memStore) Resolve(_ context.Context, id string) (Record, error) {
	r, ok := s.records[id]
	if !ok {
		return nil, &fferrors.NotFoundError{Resource: "record", ID: id}
	}
	return r, nil
}

// scriptedGateway returns queued results in order, then falls back to
// the default response.
type scriptedGateway struct {
	mu       sync.Mutex
	script   []gatewayResult
	fallback string
	prompts  []string
	log      *eventLog
	delay    time.Duration
}

type gatewayResult struct {
	response string
	err      error
}

func (g *scriptedGateway) Send(_ context.Context, prompt string) (string, error) {
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.log != nil {
		g.log.add("send:" + prompt)
	}
	if len(g.script) > 0 {
		next := g.script[0]
		g.script = g.script[1:]
		return next.response, next.err
	}
	return g.fallback, nil
}

func (g *scriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// eventLog is an ordered, concurrency-safe list of labels.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// countingMetrics records metric calls into an eventLog.
type countingMetrics struct {
	mu        sync.Mutex
	log       *eventLog
	throttles []time.Duration
	retries   int
	outcomes  map[Outcome]int
	finished  []RunStatus
}

func newCountingMetrics(log *eventLog) *countingMetrics {
	return &countingMetrics{log: log, outcomes: make(map[Outcome]int)}
}

func (m *countingMetrics) RecordProcessed(o Outcome) {
	m.mu.Lock()
	m.outcomes[o]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordRetry() {
	m.mu.Lock()
	m.retries++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordThrottle(d time.Duration) {
	m.mu.Lock()
	m.throttles = append(m.throttles, d)
	m.mu.Unlock()
	if m.log != nil {
		m.log.add("throttle")
	}
}

func (m *countingMetrics) RunFinished(s RunStatus) {
	m.mu.Lock()
	m.finished = append(m.finished, s)
	m.mu.Unlock()
}

func (m *countingMetrics) QueueDepth(int) {}

func (m *countingMetrics) Retries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

func (m *countingMetrics) Outcome(o Outcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[o]
}

// recordingObserver captures every notification.
type recordingObserver struct {
	mu       sync.Mutex
	progress [][2]int
	statuses []string
	labels   []string
	refresh  int
	notices  []error
	finished []RunStatus
	log      *eventLog
}

func (o *recordingObserver) OnProgress(completed, total int) {
	o.mu.Lock()
	o.progress = append(o.progress, [2]int{completed, total})
	o.mu.Unlock()
	if o.log != nil {
		o.log.add(fmt.Sprintf("progress:%d", completed))
	}
}

func (o *recordingObserver) OnStatus(text string) {
	o.mu.Lock()
	o.statuses = append(o.statuses, text)
	o.mu.Unlock()
}

func (o *recordingObserver) OnContextLabel(text string) {
	o.mu.Lock()
	o.labels = append(o.labels, text)
	o.mu.Unlock()
}

func (o *recordingObserver) OnRefreshRequested() {
	o.mu.Lock()
	o.refresh++
	o.mu.Unlock()
}

func (o *recordingObserver) OnNotice(err error) {
	o.mu.Lock()
	o.notices = append(o.notices, err)
	o.mu.Unlock()
}

func (o *recordingObserver) OnFinished(status RunStatus) {
	o.mu.Lock()
	o.finished = append(o.finished, status)
	o.mu.Unlock()
}

func (o *recordingObserver) Statuses() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.statuses...)
}

func (o *recordingObserver) Notices() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.notices...)
}

func (o *recordingObserver) Progress() [][2]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][2]int(nil), o.progress...)
}

func (o *recordingObserver) hasStatus(text string) bool {
	for _, s := range o.Statuses() {
		if s == text {
			return true
		}
	}
	return false
}

// fastOptions returns worker options with millisecond suspension
// intervals.
func fastOptions(store RecordStore, gw Gateway) WorkerOptions {
	return WorkerOptions{
		Store:        store,
		Gateway:      gw,
		Config:       RunConfig{BatchSize: 20},
		PollInterval: time.Millisecond,
		ThrottleTick: time.Millisecond,
		RetryBackoff: time.Millisecond,
	}
}

func textStep(field string) StepSpec {
	return StepSpec{Name: "fill", Prompt: "Describe {{{Front}}}", TargetField: field}
}
