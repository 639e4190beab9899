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

// Package library loads named prompts and pipelines from a directory of
// YAML or JSON files.
package library

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/tombee/fieldfill/pkg/enrich"
	"github.com/tombee/fieldfill/pkg/errors"
)

// filePattern selects library files under the library directory.
const filePattern = "**/*.{yaml,yml,json}"

// Prompt is a named, reusable step.
type Prompt struct {
	enrich.StepSpec `yaml:",inline"`

	// Description is shown in listings.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Pinned prompts are listed first.
	Pinned bool `yaml:"pinned,omitempty" json:"pinned,omitempty"`

	// Source is the file the prompt was loaded from.
	Source string `yaml:"-" json:"source,omitempty"`
}

// PipelineDef is a named sequence of prompt names.
type PipelineDef struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []string `yaml:"steps" json:"steps"`
	Source      string   `yaml:"-" json:"source,omitempty"`
}

// document is the file layout holding several prompts and pipelines.
type document struct {
	Prompts   []Prompt      `yaml:"prompts"`
	Pipelines []PipelineDef `yaml:"pipelines"`
}

// Library is an immutable set of prompts and pipelines.
type Library struct {
	prompts   map[string]Prompt
	pipelines map[string]PipelineDef
	logger    *slog.Logger
}

// New builds a library from in-memory definitions.
func New(logger *slog.Logger, prompts []Prompt, pipelines []PipelineDef) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lib := &Library{
		prompts:   make(map[string]Prompt),
		pipelines: make(map[string]PipelineDef),
		logger:    logger,
	}
	for _, p := range prompts {
		if err := lib.addPrompt(p); err != nil {
			return nil, err
		}
	}
	for _, p := range pipelines {
		if err := lib.addPipeline(p); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// Load reads every library file under dir. A missing directory yields
// an empty library.
func Load(dir string, logger *slog.Logger) (*Library, error) {
	lib, _ := New(logger, nil, nil)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		lib.logger.Debug("prompt library directory missing", "dir", dir)
		return lib, nil
	}
	if err := lib.loadFS(os.DirFS(dir)); err != nil {
		return nil, fmt.Errorf("load prompt library %s: %w", dir, err)
	}
	return lib, nil
}

func (l *Library) loadFS(fsys fs.FS) error {
	files, err := doublestar.Glob(fsys, filePattern, doublestar.WithFilesOnly())
	if err != nil {
		return err
	}
	slices.Sort(files)

	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if err := l.loadFile(name, data); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	l.logger.Debug("prompt library loaded", "files", len(files), "prompts", len(l.prompts), "pipelines", len(l.pipelines))
	return nil
}

// loadFile accepts a single prompt, a list of prompts, or a document
// with prompts and pipelines sections. JSON files parse as YAML.
func (l *Library) loadFile(name string, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	if len(node.Content) == 0 {
		return nil
	}
	root := node.Content[0]

	var doc document
	switch {
	case root.Kind == yaml.SequenceNode:
		if err := root.Decode(&doc.Prompts); err != nil {
			return err
		}
	case root.Kind == yaml.MappingNode && hasKey(root, "prompt"):
		var p Prompt
		if err := root.Decode(&p); err != nil {
			return err
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(path.Base(name), path.Ext(name))
		}
		doc.Prompts = []Prompt{p}
	case root.Kind == yaml.MappingNode:
		if err := root.Decode(&doc); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected top-level YAML value")
	}

	for _, p := range doc.Prompts {
		p.Source = name
		if err := l.addPrompt(p); err != nil {
			return err
		}
	}
	for _, p := range doc.Pipelines {
		p.Source = name
		if err := l.addPipeline(p); err != nil {
			return err
		}
	}
	return nil
}

func hasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}

func (l *Library) addPrompt(p Prompt) error {
	if p.Name == "" {
		return &errors.ValidationError{Field: "name", Message: "prompt name is required"}
	}
	if prev, dup := l.prompts[p.Name]; dup {
		return &errors.ValidationError{Field: "name", Message: fmt.Sprintf("prompt %q already defined in %s", p.Name, prev.Source)}
	}
	if err := p.StepSpec.Validate(); err != nil {
		return fmt.Errorf("prompt %q: %w", p.Name, err)
	}
	l.prompts[p.Name] = p
	return nil
}

func (l *Library) addPipeline(p PipelineDef) error {
	if p.Name == "" {
		return &errors.ValidationError{Field: "name", Message: "pipeline name is required"}
	}
	if _, dup := l.pipelines[p.Name]; dup {
		return &errors.ValidationError{Field: "name", Message: fmt.Sprintf("pipeline %q already defined", p.Name)}
	}
	l.pipelines[p.Name] = p
	return nil
}

// Prompt returns the named prompt.
func (l *Library) Prompt(name string) (Prompt, error) {
	p, ok := l.prompts[name]
	if !ok {
		return Prompt{}, &errors.NotFoundError{Resource: "prompt", ID: name}
	}
	return p, nil
}

// PromptPipeline returns a one-step pipeline for the named prompt.
func (l *Library) PromptPipeline(name string) (enrich.Pipeline, error) {
	p, err := l.Prompt(name)
	if err != nil {
		return nil, err
	}
	return enrich.Pipeline{p.step()}, nil
}

// Pipeline resolves the named pipeline to steps. Unknown prompt names
// are skipped; a pipeline with no resolvable prompts is an error.
func (l *Library) Pipeline(name string) (enrich.Pipeline, error) {
	def, ok := l.pipelines[name]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "pipeline", ID: name}
	}

	var steps enrich.Pipeline
	for _, promptName := range def.Steps {
		p, ok := l.prompts[promptName]
		if !ok {
			l.logger.Warn("pipeline references unknown prompt", "pipeline", name, "prompt", promptName)
			continue
		}
		steps = append(steps, p.step())
	}
	if len(steps) == 0 {
		return nil, &errors.ValidationError{
			Field:   "steps",
			Message: fmt.Sprintf("pipeline %q has no valid prompts", name),
		}
	}
	return steps, nil
}

func (p Prompt) step() enrich.StepSpec {
	return p.StepSpec
}

// Prompts returns all prompts sorted by name.
func (l *Library) Prompts() []Prompt {
	out := make([]Prompt, 0, len(l.prompts))
	for _, p := range l.prompts {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Prompt) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Pipelines returns all pipelines sorted by name.
func (l *Library) Pipelines() []PipelineDef {
	out := make([]PipelineDef, 0, len(l.pipelines))
	for _, p := range l.pipelines {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b PipelineDef) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Match returns the prompts whose names match a doublestar pattern
// such as "fr-*" or "{translate,define}*".
func (l *Library) Match(pattern string) ([]Prompt, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, &errors.ValidationError{Field: "pattern", Message: fmt.Sprintf("invalid pattern %q", pattern)}
	}
	var out []Prompt
	for _, p := range l.Prompts() {
		if ok, _ := doublestar.Match(pattern, p.Name); ok {
			out = append(out, p)
		}
	}
	return out, nil
}
