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

// Package prompt asks the user questions on the terminal. It backs the
// confirmation and selection steps of commands that would otherwise need
// a flag, and refuses to prompt when no terminal is attached.
package prompt

import (
	"context"
	"errors"
)

// ErrNonInteractive is returned when a prompt is needed but no terminal
// is attached.
var ErrNonInteractive = errors.New("cannot prompt in non-interactive mode")

// Prompter collects answers from the user.
// Implementations include SurveyPrompter (production) and MockPrompter (testing).
type Prompter interface {
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, message string, def bool) (bool, error)

	// Select presents options and returns the chosen one.
	Select(ctx context.Context, message string, options []string, def string) (string, error)

	// IsInteractive returns true if prompts can be displayed
	IsInteractive() bool
}

// Option is one entry of a selection list: the value returned and the
// text shown.
type Option struct {
	Value string
	Label string
}

// SelectOption presents labelled options and returns the chosen value.
func SelectOption(ctx context.Context, p Prompter, message string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", errors.New("no options to choose from")
	}
	labels := make([]string, len(options))
	for i, o := range options {
		labels[i] = o.Label
		if labels[i] == "" {
			labels[i] = o.Value
		}
	}
	choice, err := p.Select(ctx, message, labels, labels[0])
	if err != nil {
		return "", err
	}
	for i, l := range labels {
		if l == choice {
			return options[i].Value, nil
		}
	}
	return "", errors.New("selection is not one of the options")
}
