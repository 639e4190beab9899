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

package prompt

import (
	"context"
	"fmt"
	"slices"
)

// MockPrompter implements Prompter with scripted responses for testing.
// Responses are consumed in order; when they run out the default is
// returned.
type MockPrompter struct {
	responses    []any
	currentIndex int
	interactive  bool
	callLog      []string
}

// NewMockPrompter creates a new mock prompter with pre-scripted responses.
func NewMockPrompter(interactive bool, responses ...any) *MockPrompter {
	return &MockPrompter{
		responses:   responses,
		interactive: interactive,
	}
}

func (mp *MockPrompter) next() (any, bool) {
	if mp.currentIndex >= len(mp.responses) {
		return nil, false
	}
	resp := mp.responses[mp.currentIndex]
	mp.currentIndex++
	return resp, true
}

// Confirm returns the next boolean response.
func (mp *MockPrompter) Confirm(_ context.Context, message string, def bool) (bool, error) {
	mp.callLog = append(mp.callLog, fmt.Sprintf("Confirm(%s)", message))
	if !mp.interactive {
		return false, ErrNonInteractive
	}

	resp, ok := mp.next()
	if !ok {
		return def, nil
	}
	switch v := resp.(type) {
	case bool:
		return v, nil
	case error:
		return false, v
	}
	return false, fmt.Errorf("mock response is not a boolean")
}

// Select returns the next string response, which must be one of options.
func (mp *MockPrompter) Select(_ context.Context, message string, options []string, def string) (string, error) {
	mp.callLog = append(mp.callLog, fmt.Sprintf("Select(%s)", message))
	if !mp.interactive {
		return "", ErrNonInteractive
	}

	resp, ok := mp.next()
	if !ok {
		return def, nil
	}
	switch v := resp.(type) {
	case string:
		if !slices.Contains(options, v) {
			return "", fmt.Errorf("mock response %q is not an option", v)
		}
		return v, nil
	case error:
		return "", v
	}
	return "", fmt.Errorf("mock response is not a string")
}

// IsInteractive returns the configured interactive mode.
func (mp *MockPrompter) IsInteractive() bool {
	return mp.interactive
}

// CallLog returns the prompts asked so far.
func (mp *MockPrompter) CallLog() []string {
	return mp.callLog
}
