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
	"context"
	"fmt"
)

// Record is a mutable item being enriched.
type Record interface {
	// ID returns the record identifier.
	ID() string

	// Fields returns the field names in the record's own order.
	Fields() []string

	// Get returns a field's content and whether the field exists.
	Get(field string) (string, bool)

	// Set replaces a field's content. Setting an unknown field is an error.
	Set(field, value string) error

	// Commit persists pending changes.
	Commit(ctx context.Context) error
}

// RecordStore resolves record identifiers to records. Resolve returns a
// *errors.NotFoundError when the record no longer exists.
type RecordStore interface {
	Resolve(ctx context.Context, id string) (Record, error)
}

// Gateway sends a prompt to a text-generation provider and returns the
// raw response. Request timeouts are the gateway's responsibility.
type Gateway interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, prompt string) (string, error)

// Send calls f.
func (f GatewayFunc) Send(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// stagedRecord buffers writes over a base record. Reads see staged
// values first so later pipeline steps observe earlier writes.
type stagedRecord struct {
	base   Record
	writes map[string]string
	order  []string
}

func newStagedRecord(base Record) *stagedRecord {
	return &stagedRecord{base: base, writes: make(map[string]string)}
}

func (s *stagedRecord) ID() string       { return s.base.ID() }
func (s *stagedRecord) Fields() []string { return s.base.Fields() }

func (s *stagedRecord) Get(field string) (string, bool) {
	if v, ok := s.writes[field]; ok {
		return v, true
	}
	return s.base.Get(field)
}

func (s *stagedRecord) Set(field, value string) error {
	if _, ok := s.base.Get(field); !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	if _, seen := s.writes[field]; !seen {
		s.order = append(s.order, field)
	}
	s.writes[field] = value
	return nil
}

// Commit is a no-op; flush moves staged writes to the base record.
func (s *stagedRecord) Commit(context.Context) error { return nil }

// dirty reports whether any field was written.
func (s *stagedRecord) dirty() bool {
	return len(s.order) > 0
}

// CommitError reports a failure moving staged writes into a record.
type CommitError struct {
	RecordID string
	Cause    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit record %s: %v", e.RecordID, e.Cause)
}

func (e *CommitError) Unwrap() error { return e.Cause }

// flush copies staged writes into the base record and commits it. On
// failure the base record's fields are put back to their values from
// before the flush.
func (s *stagedRecord) flush(ctx context.Context) error {
	if !s.dirty() {
		return nil
	}

	prior := make(map[string]string, len(s.order))
	written := make([]string, 0, len(s.order))
	fail := func(err error) error {
		for _, field := range written {
			_ = s.base.Set(field, prior[field])
		}
		return &CommitError{RecordID: s.base.ID(), Cause: err}
	}

	for _, field := range s.order {
		prior[field], _ = s.base.Get(field)
		if err := s.base.Set(field, s.writes[field]); err != nil {
			return fail(fmt.Errorf("write field %q: %w", field, err))
		}
		written = append(written, field)
	}
	if err := s.base.Commit(ctx); err != nil {
		return fail(err)
	}
	return nil
}

// fieldEnv returns the record's fields as an expression environment.
func fieldEnv(r Record) map[string]any {
	fields := r.Fields()
	env := make(map[string]any, len(fields))
	for _, f := range fields {
		v, _ := r.Get(f)
		env[f] = v
	}
	return env
}
