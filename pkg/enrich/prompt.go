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
	"html"
	"regexp"
	"sort"

	fferrors "github.com/tombee/fieldfill/pkg/errors"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\{(.+?)\}\}\}`)
	tagPattern         = regexp.MustCompile(`<.*?>`)
)

// FieldReader is the read side of a Record.
type FieldReader interface {
	Get(field string) (string, bool)
}

// Placeholders returns the distinct field names referenced by a prompt
// template, in order of first appearance.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// InvalidPlaceholders returns the placeholders in template that are not
// in fields, sorted.
func InvalidPlaceholders(template string, fields []string) []string {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}
	var invalid []string
	for _, name := range Placeholders(template) {
		if !known[name] {
			invalid = append(invalid, name)
		}
	}
	sort.Strings(invalid)
	return invalid
}

// BuildPrompt substitutes {{{Field}}} placeholders with record content,
// then unescapes HTML entities and strips markup so the provider sees
// plain text. A placeholder naming a missing field is a TemplateError.
func BuildPrompt(template string, rec FieldReader) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		v, ok := rec.Get(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", &fferrors.TemplateError{Fields: dedupe(missing)}
	}

	out = html.UnescapeString(out)
	out = tagPattern.ReplaceAllString(out, "")
	return out, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
