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
	"os"

	"golang.org/x/term"

	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/pkg/enrich"
)

const keyHelp = "Keys: p pause · r resume · c cancel · Ctrl-C cancel all"

// listenKeys puts f in raw mode and feeds key presses to s. The returned
// function restores the terminal; it must be called before exiting.
func listenKeys(f *os.File, s *Session, d *display) (func(), error) {
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to enable raw mode: %w", err)
	}
	d.setRaw(true)

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := f.Read(buf)
			if err != nil {
				return
			}
			if n == 1 {
				reportKey(d, buf[0], s.HandleKey(buf[0]))
			}
		}
	}()

	return func() {
		_ = term.Restore(fd, state)
		d.setRaw(false)
	}, nil
}

// reportKey confirms a key press that affected a run.
func reportKey(d *display, key byte, run *enrich.Run) {
	switch {
	case key == keyInterrupt:
		d.Message(shared.RenderWarn("Cancelling all runs"))
	case run == nil:
	case key == keyPause || key == 'P':
		d.Message(shared.RenderLabel("Pausing " + run.Name))
	case key == keyResume || key == 'R':
		d.Message(shared.RenderLabel("Resuming " + run.Name + " (queued)"))
	case key == keyCancel || key == 'C':
		d.Message(shared.RenderWarn("Cancelling " + run.Name))
	}
}
