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
	"sync/atomic"
	"time"
)

// Observer receives one-way notifications from a Worker. Implementations
// must return promptly; the worker never waits on a reply.
type Observer interface {
	// OnProgress reports that completed of total records have been handled.
	OnProgress(completed, total int)

	// OnStatus reports a human-readable status line.
	OnStatus(text string)

	// OnContextLabel reports what is being processed right now.
	OnContextLabel(text string)

	// OnRefreshRequested asks views of the records to reload.
	OnRefreshRequested()

	// OnNotice reports the first permanent failure of the run.
	OnNotice(err error)

	// OnFinished reports the terminal status.
	OnFinished(status RunStatus)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) OnProgress(int, int)   {}
func (NopObserver) OnStatus(string)       {}
func (NopObserver) OnContextLabel(string) {}
func (NopObserver) OnRefreshRequested()   {}
func (NopObserver) OnNotice(error)        {}
func (NopObserver) OnFinished(RunStatus)  {}

// ObserverFuncs adapts optional callbacks to the Observer interface.
type ObserverFuncs struct {
	Progress         func(completed, total int)
	Status           func(text string)
	ContextLabel     func(text string)
	RefreshRequested func()
	Notice           func(err error)
	Finished         func(status RunStatus)
}

func (o ObserverFuncs) OnProgress(completed, total int) {
	if o.Progress != nil {
		o.Progress(completed, total)
	}
}

func (o ObserverFuncs) OnStatus(text string) {
	if o.Status != nil {
		o.Status(text)
	}
}

func (o ObserverFuncs) OnContextLabel(text string) {
	if o.ContextLabel != nil {
		o.ContextLabel(text)
	}
}

func (o ObserverFuncs) OnRefreshRequested() {
	if o.RefreshRequested != nil {
		o.RefreshRequested()
	}
}

func (o ObserverFuncs) OnNotice(err error) {
	if o.Notice != nil {
		o.Notice(err)
	}
}

func (o ObserverFuncs) OnFinished(status RunStatus) {
	if o.Finished != nil {
		o.Finished(status)
	}
}

// EventType identifies a worker notification.
type EventType string

const (
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"
	EventContext  EventType = "context"
	EventRefresh  EventType = "refresh"
	EventNotice   EventType = "notice"
	EventFinished EventType = "finished"
)

// Event is a worker notification delivered through a ChannelObserver.
type Event struct {
	Type      EventType
	RunID     string
	Completed int
	Total     int
	Text      string
	Err       error
	Status    RunStatus
	Timestamp time.Time
}

// ChannelObserver publishes notifications as Events on a buffered
// channel. Sends never block: when the buffer is full the event is
// dropped and counted.
type ChannelObserver struct {
	runID   string
	events  chan Event
	dropped atomic.Int64
}

// NewChannelObserver creates an observer with the given buffer size.
func NewChannelObserver(runID string, buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelObserver{runID: runID, events: make(chan Event, buffer)}
}

// Events returns the receive side of the channel. It is never closed;
// use RunController.Done to detect the end of a run.
func (c *ChannelObserver) Events() <-chan Event {
	return c.events
}

func (c *ChannelObserver) publish(e Event) {
	e.RunID = c.runID
	e.Timestamp = time.Now()
	select {
	case c.events <- e:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (c *ChannelObserver) Dropped() int64 {
	return c.dropped.Load()
}

func (c *ChannelObserver) OnProgress(completed, total int) {
	c.publish(Event{Type: EventProgress, Completed: completed, Total: total})
}

func (c *ChannelObserver) OnStatus(text string) {
	c.publish(Event{Type: EventStatus, Text: text})
}

func (c *ChannelObserver) OnContextLabel(text string) {
	c.publish(Event{Type: EventContext, Text: text})
}

func (c *ChannelObserver) OnRefreshRequested() {
	c.publish(Event{Type: EventRefresh})
}

func (c *ChannelObserver) OnNotice(err error) {
	c.publish(Event{Type: EventNotice, Err: err, Text: err.Error()})
}

func (c *ChannelObserver) OnFinished(status RunStatus) {
	c.publish(Event{Type: EventFinished, Status: status})
}

// MultiObserver fans notifications out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnProgress(completed, total int) {
	for _, o := range m {
		o.OnProgress(completed, total)
	}
}

func (m MultiObserver) OnStatus(text string) {
	for _, o := range m {
		o.OnStatus(text)
	}
}

func (m MultiObserver) OnContextLabel(text string) {
	for _, o := range m {
		o.OnContextLabel(text)
	}
}

func (m MultiObserver) OnRefreshRequested() {
	for _, o := range m {
		o.OnRefreshRequested()
	}
}

func (m MultiObserver) OnNotice(err error) {
	for _, o := range m {
		o.OnNotice(err)
	}
}

func (m MultiObserver) OnFinished(status RunStatus) {
	for _, o := range m {
		o.OnFinished(status)
	}
}

// Compile-time interface assertions.
var (
	_ Observer = NopObserver{}
	_ Observer = ObserverFuncs{}
	_ Observer = (*ChannelObserver)(nil)
	_ Observer = MultiObserver(nil)
)
