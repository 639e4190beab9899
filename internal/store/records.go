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

package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tombee/fieldfill/pkg/enrich"
	"github.com/tombee/fieldfill/pkg/errors"
)

// Field is one named value of a record.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RecordInput is a record to import. An empty ID gets a generated one.
type RecordInput struct {
	ID     string
	Fields []Field
}

// RecordSummary describes a stored record for listings.
type RecordSummary struct {
	ID     string   `json:"id"`
	Fields []string `json:"fields"`
}

// Record is a stored record loaded into memory. Writes are buffered
// until Commit. It is safe for concurrent use.
type Record struct {
	store *Store
	id    string

	mu     sync.RWMutex
	names  []string
	values map[string]string
	dirty  map[string]bool
}

// ID returns the record identifier.
func (r *Record) ID() string { return r.id }

// Fields returns the field names in import order.
func (r *Record) Fields() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

// Get returns a field's content.
func (r *Record) Get(field string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[field]
	return v, ok
}

// Set buffers a write to an existing field.
func (r *Record) Set(field, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.values[field]; !ok {
		return &errors.MappingError{Field: field}
	}
	r.values[field] = value
	r.dirty[field] = true
	return nil
}

// Commit writes buffered fields in one transaction. A record deleted
// since it was loaded yields a NotFoundError.
func (r *Record) Commit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.dirty) == 0 {
		return nil
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE records SET updated_at = ? WHERE id = ?`, formatTime(r.store.now()), r.id)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.NotFoundError{Resource: "record", ID: r.id}
	}

	for field := range r.dirty {
		if _, err := tx.ExecContext(ctx,
			`UPDATE record_fields SET value = ? WHERE record_id = ? AND name = ?`,
			r.values[field], r.id, field,
		); err != nil {
			return fmt.Errorf("failed to update field %s: %w", field, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record %s: %w", r.id, err)
	}

	r.dirty = make(map[string]bool)
	r.store.logger.Debug("record committed", "record_id", r.id)
	return nil
}

// Resolve loads a record. It returns a NotFoundError if the record does
// not exist.
func (s *Store) Resolve(ctx context.Context, id string) (enrich.Record, error) {
	return s.Get(ctx, id)
}

// Get loads a record as its concrete type.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.name, f.value
		FROM records r JOIN record_fields f ON f.record_id = r.id
		WHERE r.id = ?
		ORDER BY f.position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	defer rows.Close()

	rec := &Record{store: s, id: id, values: make(map[string]string), dirty: make(map[string]bool)}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		rec.names = append(rec.names, name)
		rec.values[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	if len(rec.names) == 0 {
		// A record row without fields still exists.
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM records WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, &errors.NotFoundError{Resource: "record", ID: id}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query record: %w", err)
		}
	}
	return rec, nil
}

// Import inserts or replaces records and returns their IDs in input
// order.
func (s *Store) Import(ctx context.Context, inputs []RecordInput) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(s.now())
	ids := make([]string, 0, len(inputs))
	for i, in := range inputs {
		id := strings.TrimSpace(in.ID)
		if id == "" {
			id = uuid.NewString()
		}
		if err := validateFields(in.Fields); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i+1, id, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("failed to replace record %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (id, created_at, updated_at) VALUES (?, ?, ?)`, id, now, now,
		); err != nil {
			return nil, fmt.Errorf("failed to insert record %s: %w", id, err)
		}
		for pos, f := range in.Fields {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO record_fields (record_id, position, name, value) VALUES (?, ?, ?, ?)`,
				id, pos, f.Name, f.Value,
			); err != nil {
				return nil, fmt.Errorf("failed to insert field %s of %s: %w", f.Name, id, err)
			}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	s.logger.Debug("records imported", "count", len(ids))
	return ids, nil
}

func validateFields(fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return &errors.ValidationError{Field: "fields", Message: "field name must not be empty"}
		}
		if seen[f.Name] {
			return &errors.ValidationError{Field: f.Name, Message: "duplicate field name"}
		}
		seen[f.Name] = true
	}
	return nil
}

// List returns every record ID with its field names, ordered by ID.
func (s *Store) List(ctx context.Context) ([]RecordSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, COALESCE(f.name, '')
		FROM records r LEFT JOIN record_fields f ON f.record_id = r.id
		ORDER BY r.id, f.position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []RecordSummary
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, RecordSummary{ID: id, Fields: []string{}})
		}
		if name != "" {
			last := &out[len(out)-1]
			last.Fields = append(last.Fields, name)
		}
	}
	return out, rows.Err()
}

// IDs returns every record ID, ordered.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	summaries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(summaries))
	for i, r := range summaries {
		ids[i] = r.ID
	}
	return ids, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.NotFoundError{Resource: "record", ID: id}
	}
	return nil
}

// CommonFields returns the field names present on every listed record,
// in the first record's order. Missing records yield a NotFoundError.
func (s *Store) CommonFields(ctx context.Context, ids []string) ([]string, error) {
	var common []string
	for i, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		fields := rec.Fields()
		if i == 0 {
			common = fields
			continue
		}
		common = slices.DeleteFunc(common, func(f string) bool { return !slices.Contains(fields, f) })
	}
	return common, nil
}
