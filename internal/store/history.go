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
	"fmt"
)

// TouchPrompt moves name to the front of the prompt history and drops
// entries beyond limit.
func (s *Store) TouchPrompt(ctx context.Context, name string, limit int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO prompt_history (name, seq, used_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM prompt_history), ?)
		ON CONFLICT(name) DO UPDATE SET seq = excluded.seq, used_at = excluded.used_at`,
		name, formatTime(s.now()),
	); err != nil {
		return fmt.Errorf("failed to record prompt use: %w", err)
	}

	if limit > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM prompt_history
			WHERE name NOT IN (SELECT name FROM prompt_history ORDER BY seq DESC LIMIT ?)`,
			limit,
		); err != nil {
			return fmt.Errorf("failed to trim prompt history: %w", err)
		}
	}
	return tx.Commit()
}

// RecentPrompts returns prompt names most recent first.
func (s *Store) RecentPrompts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM prompt_history ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt history: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan prompt history: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
