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
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/itchyny/gojq"

	fferrors "github.com/tombee/fieldfill/pkg/errors"
)

const (
	// DefaultLineBreak is the record's line-break representation.
	DefaultLineBreak = "<br>"

	// DefaultSeparator is placed between existing content and appended content.
	DefaultSeparator = "<hr>"
)

var fencePattern = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*\\n?(.*?)\\n?\\s*```\\s*$")

// Applier turns provider responses into field writes.
type Applier struct {
	LineBreak string
	Separator string
}

// NewApplier returns an applier using <br> line breaks and an <hr>
// separator.
func NewApplier() *Applier {
	return &Applier{LineBreak: DefaultLineBreak, Separator: DefaultSeparator}
}

// Apply writes response into rec according to step.
func (a *Applier) Apply(ctx context.Context, rec Record, step StepSpec, response string) error {
	switch step.EffectiveMode() {
	case ResponseModeJSON:
		return a.ApplyJSON(ctx, rec, step, response)
	default:
		return a.ApplyText(rec, step.TargetField, response, step.Overwrite)
	}
}

// ApplyText writes content into field. Existing non-blank content is kept
// and the new content appended after the separator unless overwrite is
// set.
func (a *Applier) ApplyText(rec Record, field, content string, overwrite bool) error {
	existing, ok := rec.Get(field)
	if !ok {
		return &fferrors.MappingError{Field: field}
	}

	formatted := a.formatLineBreaks(content)
	if strings.TrimSpace(existing) != "" && !overwrite {
		formatted = existing + a.Separator + formatted
	}
	return rec.Set(field, formatted)
}

// ApplyJSON parses response as a JSON object and writes each mapped key
// that is present. Keys missing from the response, or mapped to JSON
// null, are skipped and leave the field as it was. Parse
// failures leave the record untouched. Writes for different keys are
// independent: a failure on one key does not undo earlier keys.
func (a *Applier) ApplyJSON(ctx context.Context, rec Record, step StepSpec, response string) error {
	obj, err := ParseJSONResponse(response)
	if err != nil {
		return err
	}

	if step.ResponsePath != "" {
		obj, err = selectPath(ctx, step.ResponsePath, obj, response)
		if err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(step.FieldMapping))
	for k := range step.FieldMapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		target := step.FieldMapping[key]
		value, ok := obj[key]
		if !ok || value == nil {
			continue
		}
		content, err := stringify(value)
		if err != nil {
			return fmt.Errorf("response key %q: %w", key, err)
		}
		if err := a.ApplyText(rec, target, content, step.Overwrite); err != nil {
			var mappingErr *fferrors.MappingError
			if errors.As(err, &mappingErr) {
				mappingErr.ResponseKey = key
			}
			return err
		}
	}
	return nil
}

func (a *Applier) formatLineBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if a.LineBreak == "" {
		return s
	}
	return strings.ReplaceAll(s, "\n", a.LineBreak)
}

// ParseJSONResponse extracts a JSON object from a provider response. A
// surrounding markdown code fence is removed first. When the remainder
// does not parse, the substring between the first '{' and the last '}'
// is tried before giving up with a ResponseFormatError.
func ParseJSONResponse(response string) (map[string]any, error) {
	text := strings.TrimSpace(response)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	obj, err := decodeObject(text)
	if err == nil {
		return obj, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		obj, sliceErr := decodeObject(text[start : end+1])
		if sliceErr == nil {
			return obj, nil
		}
		err = sliceErr
	}

	return nil, &fferrors.ResponseFormatError{Response: response, Cause: err}
}

func decodeObject(text string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return obj, nil
}

// selectPath runs a jq expression against the parsed response and
// returns the first result, which must be an object.
func selectPath(ctx context.Context, path string, obj map[string]any, raw string) (map[string]any, error) {
	query, err := gojq.Parse(path)
	if err != nil {
		return nil, &fferrors.ValidationError{Field: "response_path", Message: err.Error()}
	}

	iter := query.RunWithContext(ctx, obj)
	v, ok := iter.Next()
	if !ok {
		return nil, &fferrors.ResponseFormatError{Response: raw, Cause: fmt.Errorf("response_path %q produced no result", path)}
	}
	if err, isErr := v.(error); isErr {
		return nil, &fferrors.ResponseFormatError{Response: raw, Cause: err}
	}

	selected, ok := v.(map[string]any)
	if !ok {
		return nil, &fferrors.ResponseFormatError{Response: raw, Cause: fmt.Errorf("response_path %q selected %T, not an object", path, v)}
	}
	return selected, nil
}

// stringify renders a JSON value for a text field. Objects and arrays are
// JSON-encoded; strings are used as-is.
func stringify(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
