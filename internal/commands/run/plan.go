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

package run

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/tombee/fieldfill/internal/cli/prompt"
	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/internal/library"
	"github.com/tombee/fieldfill/internal/store"
	"github.com/tombee/fieldfill/pkg/enrich"
	"github.com/tombee/fieldfill/pkg/errors"
)

var _ pflag.Value = (*selectionFlag)(nil)

// selectionFlag appends to a list shared by --prompt and --pipeline so
// their relative order on the command line is kept.
type selectionFlag struct {
	kind selectionKind
	into *[]selection
}

func (f *selectionFlag) String() string {
	if f.into == nil {
		return "[]"
	}
	var names []string
	for _, s := range *f.into {
		if s.Kind == f.kind {
			names = append(names, s.Name)
		}
	}
	return "[" + strings.Join(names, ",") + "]"
}

func (f *selectionFlag) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return fmt.Errorf("%s name must not be empty", f.kind)
	}
	*f.into = append(*f.into, selection{Kind: f.kind, Name: v})
	return nil
}

func (f *selectionFlag) Type() string {
	return "name"
}

// buildPlans resolves selections against the library. overwrite forces
// every step to replace existing field content.
func buildPlans(lib *library.Library, sels []selection, overwrite bool) ([]Plan, error) {
	if len(sels) == 0 {
		return nil, shared.NewInvalidInputError("specify at least one --prompt or --pipeline", nil)
	}

	plans := make([]Plan, 0, len(sels))
	for _, s := range sels {
		var (
			pipeline enrich.Pipeline
			err      error
		)
		if s.Kind == kindPipeline {
			pipeline, err = lib.Pipeline(s.Name)
		} else {
			pipeline, err = lib.PromptPipeline(s.Name)
		}
		if err != nil {
			return nil, shared.NewInvalidInputError(fmt.Sprintf("cannot use %s %q", s.Kind, s.Name), err)
		}
		if overwrite {
			pipeline = pipeline.WithOverwrite(true)
		}
		plans = append(plans, Plan{Name: s.Name, Kind: s.Kind, Pipeline: pipeline})
	}
	return plans, nil
}

// chooseSelection asks the user for a prompt or pipeline when none was
// given on the command line. Pinned and recently used prompts come first,
// pipelines last.
func chooseSelection(ctx context.Context, p prompt.Prompter, lib *library.Library, recent []string) ([]selection, error) {
	if !p.IsInteractive() {
		return nil, shared.NewInvalidInputError("specify at least one --prompt or --pipeline", nil)
	}

	var options []prompt.Option
	for _, e := range lib.Listing(recent) {
		label := e.Prompt.Name
		switch {
		case e.Prompt.Pinned:
			label += " (pinned)"
		case e.Recent:
			label += " (recent)"
		}
		options = append(options, prompt.Option{Value: string(kindPrompt) + ":" + e.Prompt.Name, Label: label})
	}
	for _, def := range lib.Pipelines() {
		options = append(options, prompt.Option{
			Value: string(kindPipeline) + ":" + def.Name,
			Label: fmt.Sprintf("%s (pipeline, %d steps)", def.Name, len(def.Steps)),
		})
	}
	if len(options) == 0 {
		return nil, shared.NewInvalidInputError("the prompt library is empty", nil)
	}

	choice, err := prompt.SelectOption(ctx, p, "Prompt to run", options)
	if err != nil {
		return nil, err
	}
	kind, name, _ := strings.Cut(choice, ":")
	return []selection{{Kind: selectionKind(kind), Name: name}}, nil
}

// resolveIDs returns the record IDs to process, in order and without
// duplicates.
func resolveIDs(ctx context.Context, st *store.Store, ids []string, all bool) ([]string, error) {
	switch {
	case all && len(ids) > 0:
		return nil, shared.NewInvalidInputError("use either --ids or --all, not both", nil)
	case all:
		out, err := st.IDs(ctx)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, shared.NewInvalidInputError("the record store is empty; import records first", nil)
		}
		return out, nil
	case len(ids) == 0:
		return nil, shared.NewInvalidInputError("select records with --ids or --all", nil)
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, shared.NewInvalidInputError("--ids names no records", nil)
	}
	return out, nil
}

// validatePlaceholders refuses plans whose prompts name fields missing
// from any selected record.
func validatePlaceholders(plans []Plan, fields []string) error {
	var bad []string
	for _, p := range plans {
		for _, step := range p.Pipeline {
			for _, name := range enrich.InvalidPlaceholders(step.Prompt, fields) {
				if !slices.Contains(bad, name) {
					bad = append(bad, name)
				}
			}
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return shared.NewInvalidInputError(
		"prompts use fields the selected records do not all have",
		&errors.TemplateError{Fields: bad},
	)
}

func writePlan(out io.Writer, plans []Plan, ids []string) error {
	if shared.GetJSON() {
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Runs    []Plan   `json:"runs"`
			Records []string `json:"records"`
		}{shared.NewJSONResponse("run"), plans, ids})
	}

	fmt.Fprintln(out, shared.Header.Render("Execution Plan"))
	for i, p := range plans {
		fmt.Fprintf(out, "  %d. %s (%s) on %d records\n", i+1, shared.Bold.Render(p.Name), p.Kind, len(ids))
		for _, step := range p.Pipeline {
			target := strings.Join(step.TargetFields(), ", ")
			fmt.Fprintf(out, "     %s %s -> %s (%s)\n",
				shared.Muted.Render(shared.SymbolInfo), step.Name, target, step.EffectiveMode())
		}
	}
	fmt.Fprintln(out, shared.RenderLabel("Dry run complete. No records were changed."))
	return nil
}
