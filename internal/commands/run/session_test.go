package run

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/fieldfill/internal/log"
	"github.com/tombee/fieldfill/internal/store"
	"github.com/tombee/fieldfill/pkg/enrich"
)

// gate blocks the first gateway call until released.
type gate struct {
	mu      sync.Mutex
	calls   []string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) Send(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, prompt)
	first := len(g.calls) == 1
	g.mu.Unlock()

	if first {
		close(g.entered)
		<-g.release
	}
	return strings.ToUpper(prompt), nil
}

func (g *gate) open() { g.once.Do(func() { close(g.release) }) }

func (g *gate) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func seed(t *testing.T) *store.Store {
	t.Helper()
	st := openStore(t)
	_, err := st.Import(context.Background(), []store.RecordInput{
		{ID: "1", Fields: []store.Field{{Name: "Front", Value: "one"}, {Name: "Back", Value: ""}, {Name: "Notes", Value: ""}}},
		{ID: "2", Fields: []store.Field{{Name: "Front", Value: "two"}, {Name: "Back", Value: ""}, {Name: "Notes", Value: ""}}},
	})
	require.NoError(t, err)
	return st
}

func newTestExecutor(st *store.Store, gw enrich.Gateway) *executor {
	return &executor{
		store:        st,
		gateway:      gw,
		config:       enrich.DefaultRunConfig(),
		manager:      enrich.NewExecutionManager(),
		logger:       log.Discard(),
		pollInterval: time.Millisecond,
		retryBackoff: time.Millisecond,
	}
}

func plan(name, prompt, target string) Plan {
	return Plan{Name: name, Kind: kindPrompt, Pipeline: enrich.Pipeline{{Name: name, Prompt: prompt, TargetField: target}}}
}

func fieldValue(t *testing.T, st *store.Store, id, field string) string {
	t.Helper()
	rec, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	v, _ := rec.Get(field)
	return v
}

func TestExecutor_RunsPlansInOrderAndRecordsHistory(t *testing.T) {
	st := seed(t)
	gw := enrich.GatewayFunc(func(_ context.Context, prompt string) (string, error) {
		return strings.ToUpper(prompt), nil
	})
	exec := newTestExecutor(st, gw)
	ctx := context.Background()

	s := exec.Start(ctx, []Plan{
		plan("back", "b {{{Front}}}", "Back"),
		plan("notes", "n {{{Front}}}", "Notes"),
	}, []string{"1", "2"})
	results := exec.Finish(ctx, s)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, enrich.RunStatusCompleted, r.Status)
		assert.Equal(t, 2, r.Completed)
		assert.False(t, r.StartedAt.IsZero())
		assert.False(t, r.FinishedAt.Before(r.StartedAt))
	}
	assert.False(t, results[1].StartedAt.Before(results[0].FinishedAt), "second run starts after the first finishes")

	assert.Equal(t, "B ONE", fieldValue(t, st, "1", "Back"))
	assert.Equal(t, "N TWO", fieldValue(t, st, "2", "Notes"))

	recent, err := st.RecentPrompts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes", "back"}, recent)

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{results[0].ID, results[1].ID}, ids)
}

func TestSession_PauseLetsNextRunProceed(t *testing.T) {
	st := seed(t)
	gw := newGate()
	t.Cleanup(gw.open)
	exec := newTestExecutor(st, gw)
	ctx := context.Background()

	s := exec.Start(ctx, []Plan{
		plan("first", "a {{{Front}}}", "Back"),
		plan("second", "b {{{Front}}}", "Notes"),
	}, []string{"1", "2"})

	<-gw.entered
	paused := s.PauseActive()
	require.NotNil(t, paused)
	assert.Equal(t, "first", paused.Name)

	// The second run takes the slot while the first call is still in flight.
	require.Eventually(t, func() bool {
		return s.runs[1].ctrl.Run().Status() == enrich.RunStatusCompleted
	}, 2*time.Second, time.Millisecond)

	gw.open()
	require.Eventually(t, func() bool {
		return s.runs[0].ctrl.Run().Status() == enrich.RunStatusPaused
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, s.runs[0].ctrl.Run().Completed())

	resumed := s.ResumeLast()
	require.NotNil(t, resumed)
	assert.Equal(t, "first", resumed.Name)
	assert.Nil(t, s.ResumeLast(), "nothing else is paused")

	results := exec.Finish(ctx, s)
	assert.Equal(t, enrich.RunStatusCompleted, results[0].Status)
	assert.Equal(t, enrich.RunStatusCompleted, results[1].Status)
	assert.Equal(t, "A ONE", fieldValue(t, st, "1", "Back"))
	assert.Equal(t, "A TWO", fieldValue(t, st, "2", "Back"))
	assert.Equal(t, []string{"a one", "b one", "b two", "a two"}, gw.Calls())
}

func TestSession_CancelAll(t *testing.T) {
	st := seed(t)
	gw := newGate()
	t.Cleanup(gw.open)
	exec := newTestExecutor(st, gw)
	ctx := context.Background()

	s := exec.Start(ctx, []Plan{
		plan("first", "a {{{Front}}}", "Back"),
		plan("second", "b {{{Front}}}", "Notes"),
	}, []string{"1", "2"})

	<-gw.entered
	assert.Nil(t, s.HandleKey(keyInterrupt))
	gw.open()

	results := exec.Finish(ctx, s)
	assert.Equal(t, enrich.RunStatusCancelled, results[0].Status)
	assert.Equal(t, enrich.RunStatusCancelled, results[1].Status)
	// The in-flight record finishes; nothing after it runs.
	assert.Equal(t, 1, results[0].Completed)
	assert.Equal(t, 0, results[1].Completed)
	assert.Equal(t, []string{"a one"}, gw.Calls())

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSession_CancelActiveKey(t *testing.T) {
	st := seed(t)
	gw := newGate()
	t.Cleanup(gw.open)
	exec := newTestExecutor(st, gw)
	ctx := context.Background()

	s := exec.Start(ctx, []Plan{
		plan("first", "a {{{Front}}}", "Back"),
		plan("second", "b {{{Front}}}", "Notes"),
	}, []string{"1"})

	<-gw.entered
	cancelled := s.HandleKey(keyCancel)
	require.NotNil(t, cancelled)
	assert.Equal(t, "first", cancelled.Name)
	gw.open()

	results := exec.Finish(ctx, s)
	// The single record was in flight, so the first run still completes it.
	assert.Equal(t, 1, results[0].Completed)
	assert.Equal(t, enrich.RunStatusCompleted, results[1].Status)
}

func TestSession_KeysWithoutActiveRun(t *testing.T) {
	s := newSession(enrich.NewExecutionManager(), func() {})
	assert.Nil(t, s.HandleKey(keyPause))
	assert.Nil(t, s.HandleKey(keyResume))
	assert.Nil(t, s.HandleKey(keyCancel))
	assert.Nil(t, s.HandleKey('x'))
	assert.Empty(t, s.Wait())
}

func TestTracker(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := &tracker{now: func() time.Time { return now }}

	tr.OnStatus(enrich.StatusWaiting)
	started, _, _ := tr.times()
	assert.True(t, started.IsZero())

	tr.OnStatus(enrich.StatusProcessing)
	now = now.Add(time.Minute)
	tr.OnProgress(1, 2)
	tr.OnNotice(assert.AnError)
	tr.OnFinished(enrich.RunStatusCompleted)

	started, finished, notice := tr.times()
	assert.Equal(t, time.Minute, finished.Sub(started))
	assert.Equal(t, assert.AnError, notice)
}
