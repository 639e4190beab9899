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
	"errors"
	"testing"
)

func TestSurveyPrompter_IsInteractive(t *testing.T) {
	tests := []struct {
		name        string
		interactive bool
	}{
		{name: "interactive mode", interactive: true},
		{name: "non-interactive mode", interactive: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := NewSurveyPrompter(tt.interactive)
			if got := sp.IsInteractive(); got != tt.interactive {
				t.Errorf("IsInteractive() = %v, want %v", got, tt.interactive)
			}
		})
	}
}

func TestSurveyPrompter_NonInteractiveErrors(t *testing.T) {
	sp := NewSurveyPrompter(false)
	ctx := context.Background()

	if _, err := sp.Confirm(ctx, "delete?", false); !errors.Is(err, ErrNonInteractive) {
		t.Errorf("Confirm() error = %v, want ErrNonInteractive", err)
	}
	if _, err := sp.Select(ctx, "prompt", []string{"a"}, ""); !errors.Is(err, ErrNonInteractive) {
		t.Errorf("Select() error = %v, want ErrNonInteractive", err)
	}
}

func TestSurveyPrompter_SelectNoOptions(t *testing.T) {
	sp := NewSurveyPrompter(true)
	if _, err := sp.Select(context.Background(), "prompt", nil, ""); err == nil {
		t.Error("expected error for empty options")
	}
}

func TestMockPrompter(t *testing.T) {
	ctx := context.Background()
	mp := NewMockPrompter(true, true, "b")

	ok, err := mp.Confirm(ctx, "sure?", false)
	if err != nil || !ok {
		t.Fatalf("Confirm() = %v, %v", ok, err)
	}
	got, err := mp.Select(ctx, "pick", []string{"a", "b"}, "a")
	if err != nil || got != "b" {
		t.Fatalf("Select() = %q, %v", got, err)
	}

	// Exhausted responses fall back to defaults.
	ok, err = mp.Confirm(ctx, "again?", true)
	if err != nil || !ok {
		t.Errorf("Confirm() default = %v, %v", ok, err)
	}

	if n := len(mp.CallLog()); n != 3 {
		t.Errorf("CallLog() has %d entries, want 3", n)
	}
}

func TestMockPrompter_RejectsUnknownOption(t *testing.T) {
	mp := NewMockPrompter(true, "z")
	if _, err := mp.Select(context.Background(), "pick", []string{"a"}, "a"); err == nil {
		t.Error("expected error for response outside options")
	}
}

func TestSelectOption(t *testing.T) {
	mp := NewMockPrompter(true, "Define (pinned)")
	got, err := SelectOption(context.Background(), mp, "Prompt", []Option{
		{Value: "translate", Label: "Translate"},
		{Value: "define", Label: "Define (pinned)"},
		{Value: "plain"},
	})
	if err != nil {
		t.Fatalf("SelectOption() error = %v", err)
	}
	if got != "define" {
		t.Errorf("SelectOption() = %q, want %q", got, "define")
	}

	if _, err := SelectOption(context.Background(), mp, "Prompt", nil); err == nil {
		t.Error("expected error for no options")
	}
}
