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
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// SurveyPrompter implements Prompter using the survey library.
type SurveyPrompter struct {
	interactive bool
}

// NewSurveyPrompter creates a new survey-based prompter.
func NewSurveyPrompter(interactive bool) *SurveyPrompter {
	return &SurveyPrompter{
		interactive: interactive,
	}
}

// Confirm asks a yes/no question using survey.Confirm.
func (sp *SurveyPrompter) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	if !sp.interactive {
		return false, ErrNonInteractive
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var result bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &result)
	return result, translate(err)
}

// Select presents options using survey.Select.
func (sp *SurveyPrompter) Select(ctx context.Context, message string, options []string, def string) (string, error) {
	if !sp.interactive {
		return "", ErrNonInteractive
	}
	if len(options) == 0 {
		return "", fmt.Errorf("no options provided for %q", message)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q := &survey.Select{Message: message, Options: options}
	if def != "" {
		q.Default = def
	}

	var result string
	err := survey.AskOne(q, &result)
	return result, translate(err)
}

// IsInteractive returns whether the prompter is in interactive mode.
func (sp *SurveyPrompter) IsInteractive() bool {
	return sp.interactive
}

// translate maps Ctrl-C during a prompt to context.Canceled.
func translate(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return context.Canceled
	}
	return err
}
