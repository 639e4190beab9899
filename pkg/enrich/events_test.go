package enrich

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelObserver_PublishesEvents(t *testing.T) {
	obs := NewChannelObserver("run-1", 8)

	obs.OnProgress(1, 4)
	obs.OnStatus("Processing")
	obs.OnNotice(errors.New("boom"))
	obs.OnFinished(RunStatusCompleted)

	var got []Event
	for i := 0; i < 4; i++ {
		got = append(got, <-obs.Events())
	}

	require.Len(t, got, 4)
	assert.Equal(t, EventProgress, got[0].Type)
	assert.Equal(t, 1, got[0].Completed)
	assert.Equal(t, 4, got[0].Total)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, "Processing", got[1].Text)
	assert.Equal(t, "boom", got[2].Text)
	assert.Equal(t, RunStatusCompleted, got[3].Status)
}

func TestChannelObserver_DropsWhenFull(t *testing.T) {
	obs := NewChannelObserver("run-1", 1)

	obs.OnStatus("a")
	obs.OnStatus("b")
	obs.OnRefreshRequested()

	assert.Equal(t, int64(2), obs.Dropped())
	assert.Equal(t, "a", (<-obs.Events()).Text)
}

func TestMultiObserver_FansOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	var labels []string
	m := MultiObserver{a, b, ObserverFuncs{ContextLabel: func(s string) { labels = append(labels, s) }}, NopObserver{}}

	m.OnStatus("x")
	m.OnContextLabel("Record 1 of 2")
	m.OnProgress(1, 2)
	m.OnFinished(RunStatusCancelled)

	assert.Equal(t, []string{"x"}, a.Statuses())
	assert.Equal(t, []string{"x"}, b.Statuses())
	assert.Equal(t, []string{"Record 1 of 2"}, labels)
	assert.Equal(t, []RunStatus{RunStatusCancelled}, b.finished)
}
