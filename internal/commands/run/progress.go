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
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/pkg/enrich"
)

const barWidth = 20

// displayMode selects how run events reach the terminal.
type displayMode int

const (
	// modeSilent writes nothing; used for --json.
	modeSilent displayMode = iota
	// modeQuiet writes failure notices only.
	modeQuiet
	// modeLines writes one line per status change.
	modeLines
	// modeLive redraws a single progress line in place.
	modeLive
)

// display renders run events. Only one run is active at a time, so
// live mode keeps a single line for whichever run reported last.
type display struct {
	out     io.Writer
	mode    displayMode
	verbose bool

	mu       sync.Mutex
	raw      bool // terminal in raw mode: lines end in \r\n
	width    int  // live line width limit, 0 for none
	lineOpen bool
}

func newDisplay(out io.Writer, mode displayMode, verbose bool) *display {
	return &display{out: out, mode: mode, verbose: verbose}
}

// setRaw switches line endings for a terminal in raw mode.
func (d *display) setRaw(raw bool) {
	d.mu.Lock()
	d.raw = raw
	d.mu.Unlock()
}

func (d *display) setWidth(width int) {
	d.mu.Lock()
	d.width = width
	d.mu.Unlock()
}

// runView is the display state of one run. Fields are guarded by the
// display mutex.
type runView struct {
	name      string
	completed int
	total     int
	status    string
	label     string
}

// observer returns the Observer that renders run.
func (d *display) observer(run *enrich.Run) enrich.Observer {
	v := &runView{name: run.Name, total: run.Total()}

	return enrich.ObserverFuncs{
		Progress: func(completed, total int) {
			d.mu.Lock()
			defer d.mu.Unlock()
			v.completed, v.total = completed, total
			if d.mode == modeLive {
				d.redraw(v)
			} else if d.mode == modeLines && d.verbose {
				d.println(fmt.Sprintf("%s %s %d/%d", shared.Muted.Render(shared.SymbolInfo), v.name, completed, total))
			}
		},
		Status: func(text string) {
			d.mu.Lock()
			defer d.mu.Unlock()
			v.status = text
			d.onStatus(v, text)
		},
		ContextLabel: func(text string) {
			d.mu.Lock()
			defer d.mu.Unlock()
			v.label = text
			if d.mode == modeLive {
				d.redraw(v)
			}
		},
		Notice: func(err error) {
			d.mu.Lock()
			defer d.mu.Unlock()
			if d.mode == modeSilent {
				return
			}
			d.println(shared.RenderError(fmt.Sprintf("%s: %v", v.name, err)))
		},
		Finished: func(status enrich.RunStatus) {
			d.mu.Lock()
			defer d.mu.Unlock()
			if d.mode < modeLines {
				return
			}
			d.println(fmt.Sprintf("%s %s %d/%d", shared.RenderRunStatus(status), shared.Bold.Render(v.name), v.completed, v.total))
		},
	}
}

func (d *display) onStatus(v *runView, text string) {
	switch d.mode {
	case modeLines:
		if text == enrich.StatusDone || text == enrich.StatusCancelled {
			return // reported by Finished
		}
		d.println(fmt.Sprintf("%s %s", shared.Bold.Render(v.name+":"), text))
	case modeLive:
		switch text {
		case enrich.StatusWaiting, enrich.StatusDone, enrich.StatusCancelled:
			// Waiting runs must not take over the active run's line.
		case enrich.StatusPaused:
			d.println(fmt.Sprintf("%s %s", shared.RenderRunStatus(enrich.RunStatusPaused), shared.Bold.Render(v.name)))
		default:
			d.redraw(v)
		}
	}
}

// Message writes a standalone line, e.g. key binding feedback.
func (d *display) Message(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode >= modeLines {
		d.println(text)
	}
}

func (d *display) newline() string {
	if d.raw {
		return "\r\n"
	}
	return "\n"
}

// println ends any open live line and writes text on its own line.
func (d *display) println(text string) {
	if d.lineOpen {
		fmt.Fprint(d.out, "\r\033[K")
		d.lineOpen = false
	}
	fmt.Fprint(d.out, text+d.newline())
}

func (d *display) redraw(v *runView) {
	line := renderLine(v)
	if d.width > 0 {
		line = lipgloss.NewStyle().MaxWidth(d.width).Render(line)
	}
	fmt.Fprint(d.out, "\r\033[K"+line)
	d.lineOpen = true
}

// Close ends an open live line.
func (d *display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lineOpen {
		fmt.Fprint(d.out, d.newline())
		d.lineOpen = false
	}
}

func renderLine(v *runView) string {
	detail := v.status
	if v.status == enrich.StatusProcessing && v.label != "" {
		detail = v.label
	}
	return fmt.Sprintf("%s %s %d/%d %s",
		shared.Bold.Render(v.name),
		shared.RenderProgressBar(v.completed, v.total, barWidth),
		v.completed, v.total,
		shared.Muted.Render(detail))
}
