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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// jsonRecord is one element of an import file:
//
//	{"id": "42", "fields": {"Front": "bonjour", "Back": ""}}
//
// Field order in the object is preserved. Numeric IDs are accepted.
type jsonRecord struct {
	ID     json.RawMessage `json:"id"`
	Fields orderedPairs    `json:"fields"`
}

type orderedPairs []Field

// UnmarshalJSON decodes an object while keeping key order.
func (p *orderedPairs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields must be an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		value, err := fieldValue(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		*p = append(*p, Field{Name: key, Value: value})
	}
	_, err = dec.Token()
	return err
}

// fieldValue accepts strings, numbers, booleans and null. Non-string
// scalars are stored as their JSON text.
func fieldValue(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch v.(type) {
	case nil:
		return "", nil
	case map[string]any, []any:
		return "", fmt.Errorf("nested values are not supported")
	default:
		return string(raw), nil
	}
}

// ParseRecords reads an import file holding a JSON array of records.
func ParseRecords(r io.Reader) ([]RecordInput, error) {
	var items []jsonRecord
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	out := make([]RecordInput, len(items))
	for i, it := range items {
		var id string
		if len(it.ID) > 0 {
			v, err := fieldValue(it.ID)
			if err != nil {
				return nil, fmt.Errorf("record %d: id: %w", i+1, err)
			}
			id = v
		}
		out[i] = RecordInput{ID: id, Fields: []Field(it.Fields)}
	}
	return out, nil
}
