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
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/google/uuid"
	"github.com/itchyny/gojq"

	fferrors "github.com/tombee/fieldfill/pkg/errors"
)

// RunStatus represents the lifecycle status of a Run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusActive    RunStatus = "active"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusCompleted RunStatus = "completed"
)

// IsTerminal reports whether no further transitions can occur.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCancelled || s == RunStatusCompleted
}

// ResponseMode selects how a provider response is written back.
type ResponseMode string

const (
	// ResponseModeText writes the whole response into TargetField.
	ResponseModeText ResponseMode = "text"

	// ResponseModeJSON parses the response as a JSON object and writes
	// the keys named in FieldMapping into their target fields.
	ResponseModeJSON ResponseMode = "json"
)

// StepSpec is one prompt applied to a record.
type StepSpec struct {
	// Name identifies the step in logs and status labels.
	Name string `yaml:"name" json:"name"`

	// Prompt is the template; {{{Field}}} placeholders are replaced with
	// record field values.
	Prompt string `yaml:"prompt" json:"prompt"`

	// Mode defaults to text.
	Mode ResponseMode `yaml:"response_format,omitempty" json:"response_format,omitempty"`

	// TargetField receives the response in text mode.
	TargetField string `yaml:"target_field,omitempty" json:"target_field,omitempty"`

	// FieldMapping maps response keys to record fields in JSON mode.
	FieldMapping map[string]string `yaml:"field_mapping,omitempty" json:"field_mapping,omitempty"`

	// Overwrite replaces existing field content instead of appending.
	Overwrite bool `yaml:"overwrite,omitempty" json:"overwrite,omitempty"`

	// ResponsePath is an optional jq expression selecting the object the
	// field mapping reads from (JSON mode only), e.g. ".result".
	ResponsePath string `yaml:"response_path,omitempty" json:"response_path,omitempty"`

	// When is an optional boolean expression over record fields. The step
	// is skipped for records where it evaluates to false.
	When string `yaml:"when,omitempty" json:"when,omitempty"`
}

// EffectiveMode returns Mode, defaulting to text.
func (s StepSpec) EffectiveMode() ResponseMode {
	if s.Mode == "" {
		return ResponseModeText
	}
	return s.Mode
}

// TargetFields returns every field this step may write.
func (s StepSpec) TargetFields() []string {
	if s.EffectiveMode() == ResponseModeText {
		return []string{s.TargetField}
	}
	fields := make([]string, 0, len(s.FieldMapping))
	for _, f := range s.FieldMapping {
		fields = append(fields, f)
	}
	return fields
}

// Validate checks the step for structural problems that would make every
// record fail.
func (s StepSpec) Validate() error {
	if s.Prompt == "" {
		return &fferrors.ValidationError{Field: "prompt", Message: fmt.Sprintf("step %q has an empty prompt", s.Name)}
	}

	switch s.EffectiveMode() {
	case ResponseModeText:
		if s.TargetField == "" {
			return &fferrors.ValidationError{
				Field:      "target_field",
				Message:    fmt.Sprintf("step %q needs a target field in text mode", s.Name),
				Suggestion: "set target_field or switch response_format to json",
			}
		}
	case ResponseModeJSON:
		if len(s.FieldMapping) == 0 {
			return &fferrors.ValidationError{
				Field:   "field_mapping",
				Message: fmt.Sprintf("step %q needs a field mapping in json mode", s.Name),
			}
		}
		if s.ResponsePath != "" {
			if _, err := gojq.Parse(s.ResponsePath); err != nil {
				return &fferrors.ValidationError{Field: "response_path", Message: err.Error()}
			}
		}
	default:
		return &fferrors.ValidationError{
			Field:   "response_format",
			Message: fmt.Sprintf("unknown response format %q", s.Mode),
		}
	}

	if s.When != "" {
		if _, err := expr.Compile(s.When, expr.AsBool(), expr.AllowUndefinedVariables()); err != nil {
			return &fferrors.ValidationError{Field: "when", Message: err.Error()}
		}
	}

	return nil
}

// Pipeline is an ordered list of steps applied to the same record.
type Pipeline []StepSpec

// Validate validates every step.
func (p Pipeline) Validate() error {
	if len(p) == 0 {
		return &fferrors.ValidationError{Message: "pipeline has no steps"}
	}
	for i, step := range p {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// WithOverwrite returns a copy of the pipeline with Overwrite set on
// every step.
func (p Pipeline) WithOverwrite(overwrite bool) Pipeline {
	out := make(Pipeline, len(p))
	for i, step := range p {
		step.Overwrite = overwrite
		out[i] = step
	}
	return out
}

// RecordRef identifies a record to enrich. Either ID is resolved through
// the RecordStore when the record is reached, or Handle is used directly
// when the caller already holds an open record.
type RecordRef struct {
	ID     string
	Handle Record
}

// RefsFromIDs builds lazily resolved references.
func RefsFromIDs(ids []string) []RecordRef {
	refs := make([]RecordRef, len(ids))
	for i, id := range ids {
		refs[i] = RecordRef{ID: id}
	}
	return refs
}

// Key returns the identifier used in logs.
func (r RecordRef) Key() string {
	if r.Handle != nil {
		return r.Handle.ID()
	}
	return r.ID
}

// Run is one enrichment request spanning one or more records and steps.
//
// Status and queue position are maintained by the ExecutionManager,
// progress by the Worker.
type Run struct {
	ID        string
	Name      string
	Records   []RecordRef
	Pipeline  Pipeline
	CreatedAt time.Time

	mu        sync.RWMutex
	status    RunStatus
	position  int
	completed int
	activate  func()
}

// NewRun creates a queued run with a fresh ID.
func NewRun(name string, records []RecordRef, pipeline Pipeline) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Name:      name,
		Records:   records,
		Pipeline:  pipeline,
		CreatedAt: time.Now(),
		status:    RunStatusQueued,
	}
}

// Status returns the current lifecycle status.
func (r *Run) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Position returns the 1-based position in the wait queue, or 0 when
// the run is not waiting.
func (r *Run) Position() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.position
}

// Completed returns the number of records handled so far.
func (r *Run) Completed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completed
}

// Total returns the number of records in the run.
func (r *Run) Total() int {
	return len(r.Records)
}

func (r *Run) setStatus(s RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Terminal states are sticky.
	if r.status.IsTerminal() {
		return
	}
	r.status = s
}

func (r *Run) setPosition(p int) {
	r.mu.Lock()
	r.position = p
	r.mu.Unlock()
}

func (r *Run) setCompleted(n int) {
	r.mu.Lock()
	r.completed = n
	r.mu.Unlock()
}

func (r *Run) setActivation(fn func()) {
	r.mu.Lock()
	r.activate = fn
	r.mu.Unlock()
}

func (r *Run) activation() func() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activate
}

// RunSnapshot is an immutable copy of a run's observable state.
type RunSnapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    RunStatus `json:"status"`
	Position  int       `json:"position,omitempty"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot returns a copy of the run's observable state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RunSnapshot{
		ID:        r.ID,
		Name:      r.Name,
		Status:    r.status,
		Position:  r.position,
		Completed: r.completed,
		Total:     len(r.Records),
		CreatedAt: r.CreatedAt,
	}
}
