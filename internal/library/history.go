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

package library

import (
	"context"
	"slices"
	"sync"
)

// HistoryLimit caps the recent-use list.
const HistoryLimit = 20

// HistoryStore persists recently used prompt and pipeline names.
type HistoryStore interface {
	TouchPrompt(ctx context.Context, name string, limit int) error
	RecentPrompts(ctx context.Context) ([]string, error)
}

// PushRecent moves name to the front of recent, dropping duplicates and
// entries beyond limit. recent is not modified.
func PushRecent(recent []string, name string, limit int) []string {
	out := make([]string, 0, len(recent)+1)
	out = append(out, name)
	for _, n := range recent {
		if n != name {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MemoryHistory is an in-process HistoryStore.
type MemoryHistory struct {
	mu     sync.Mutex
	recent []string
}

// TouchPrompt records a use of name.
func (m *MemoryHistory) TouchPrompt(_ context.Context, name string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = PushRecent(m.recent, name, limit)
	return nil
}

// RecentPrompts returns names most recent first.
func (m *MemoryHistory) RecentPrompts(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.recent), nil
}

// Entry is one line of a prompt listing.
type Entry struct {
	Prompt Prompt `json:"prompt"`
	Recent bool   `json:"recent,omitempty"`
}

// Listing orders prompts pinned first, then recently used, then the
// rest by name. Recent names no longer in the library are ignored.
func (l *Library) Listing(recent []string) []Entry {
	var pinned, used, rest []Entry
	seen := make(map[string]bool)

	for _, p := range l.Prompts() {
		if p.Pinned {
			pinned = append(pinned, Entry{Prompt: p})
			seen[p.Name] = true
		}
	}
	for _, name := range recent {
		p, ok := l.prompts[name]
		if !ok || seen[name] {
			continue
		}
		used = append(used, Entry{Prompt: p, Recent: true})
		seen[name] = true
	}
	for _, p := range l.Prompts() {
		if !seen[p.Name] {
			rest = append(rest, Entry{Prompt: p})
		}
	}
	return slices.Concat(pinned, used, rest)
}
