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
	"time"

	"github.com/tombee/fieldfill/pkg/enrich"
)

// RunEntry is one row of run history.
type RunEntry struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Status     enrich.RunStatus `json:"status"`
	Completed  int              `json:"completed"`
	Total      int              `json:"total"`
	StartedAt  time.Time        `json:"started_at,omitzero"`
	FinishedAt time.Time        `json:"finished_at,omitzero"`
}

// RunEntryFromSnapshot converts a run snapshot to a history row.
func RunEntryFromSnapshot(snap enrich.RunSnapshot, started, finished time.Time) RunEntry {
	return RunEntry{
		ID:         snap.ID,
		Name:       snap.Name,
		Status:     snap.Status,
		Completed:  snap.Completed,
		Total:      snap.Total,
		StartedAt:  started,
		FinishedAt: finished,
	}
}

// SaveRun inserts or updates a run history row.
func (s *Store) SaveRun(ctx context.Context, e RunEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, status, completed, total, started_at, finished_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			completed = excluded.completed,
			total = excluded.total,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		e.ID, e.Name, string(e.Status), e.Completed, e.Total,
		nullTime(e.StartedAt), nullTime(e.FinishedAt), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", e.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, completed, total, started_at, finished_at
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		var e RunEntry
		var status string
		var started, finished sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &status, &e.Completed, &e.Total, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		e.Status = enrich.RunStatus(status)
		e.StartedAt = parseTime(started)
		e.FinishedAt = parseTime(finished)
		out = append(out, e)
	}
	return out, rows.Err()
}
