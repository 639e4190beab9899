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

// Package prompts implements the prompts command group.
package prompts

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/internal/library"
	"github.com/tombee/fieldfill/pkg/errors"
)

// NewCommand creates the prompts command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect the prompt library",
		Long: `Inspect the prompts and pipelines loaded from the library directory
(library.dir in the config file, or FIELDFILL_PROMPTS_DIR).

Every *.yaml, *.yml and *.json file below the directory is loaded. A file
holds one prompt, a list of prompts, or a document with "prompts" and
"pipelines" keys.`,
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())

	return cmd
}

type listing struct {
	Prompts   []library.Entry       `json:"prompts"`
	Pipelines []library.PipelineDef `json:"pipelines"`
}

func newListCommand() *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prompts and pipelines",
		Long: `List prompts with pinned prompts first, then recently used ones, then
the rest by name. Pipelines follow.`,
		Example: `  fieldfill prompts list
  fieldfill prompts list --match 'translate-*'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := shared.LoadEnv()
			if err != nil {
				return err
			}
			lib, err := env.LoadLibrary()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			recent := recentPrompts(ctx, env)

			l, err := buildListing(lib, recent, match)
			if err != nil {
				return shared.NewInvalidInputError("invalid --match pattern", err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), struct {
					shared.JSONResponse
					listing
				}{shared.NewJSONResponse("prompts list"), l})
			}
			return writeListing(cmd.OutOrStdout(), l)
		},
	}

	cmd.Flags().StringVar(&match, "match", "", "Only list names matching a glob pattern")

	return cmd
}

// recentPrompts reads the use history. A store that cannot be opened
// only loses the recent ordering.
func recentPrompts(ctx context.Context, env *shared.Env) []string {
	st, err := env.OpenStore(ctx)
	if err != nil {
		env.Logger.Debug("prompt history unavailable", "error", err)
		return nil
	}
	defer st.Close()

	recent, err := st.RecentPrompts(ctx)
	if err != nil {
		env.Logger.Debug("prompt history unavailable", "error", err)
		return nil
	}
	return recent
}

func buildListing(lib *library.Library, recent []string, match string) (listing, error) {
	l := listing{
		Prompts:   lib.Listing(recent),
		Pipelines: lib.Pipelines(),
	}
	if match == "" {
		return l, nil
	}

	matched, err := lib.Match(match)
	if err != nil {
		return listing{}, err
	}
	keep := make(map[string]bool, len(matched))
	for _, p := range matched {
		keep[p.Name] = true
	}

	var prompts []library.Entry
	for _, e := range l.Prompts {
		if keep[e.Prompt.Name] {
			prompts = append(prompts, e)
		}
	}
	var pipelines []library.PipelineDef
	for _, p := range l.Pipelines {
		// Match already validated the pattern.
		if ok, _ := doublestar.Match(match, p.Name); ok {
			pipelines = append(pipelines, p)
		}
	}
	l.Prompts, l.Pipelines = prompts, pipelines
	return l, nil
}

func writeListing(out io.Writer, l listing) error {
	if len(l.Prompts) == 0 && len(l.Pipelines) == 0 {
		fmt.Fprintln(out, "No prompts found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if len(l.Prompts) > 0 {
		fmt.Fprintln(w, "\tPROMPT\tMODE\tTARGET\tDESCRIPTION")
		for _, e := range l.Prompts {
			marker := ""
			switch {
			case e.Prompt.Pinned:
				marker = "*"
			case e.Recent:
				marker = "~"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				marker, e.Prompt.Name, e.Prompt.EffectiveMode(),
				strings.Join(e.Prompt.TargetFields(), ", "), e.Prompt.Description)
		}
	}
	if len(l.Pipelines) > 0 {
		if len(l.Prompts) > 0 {
			fmt.Fprintln(w, "\t\t\t\t")
		}
		fmt.Fprintln(w, "\tPIPELINE\tSTEPS\t\tDESCRIPTION")
		for _, p := range l.Pipelines {
			fmt.Fprintf(w, "\t%s\t%s\t\t%s\n", p.Name, strings.Join(p.Steps, " > "), p.Description)
		}
	}
	return w.Flush()
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a prompt or pipeline definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := shared.LoadEnv()
			if err != nil {
				return err
			}
			lib, err := env.LoadLibrary()
			if err != nil {
				return err
			}
			return show(cmd.OutOrStdout(), lib, args[0])
		},
	}
}

func show(out io.Writer, lib *library.Library, name string) error {
	var def any
	if p, err := lib.Prompt(name); err == nil {
		def = p
	} else {
		var nf *errors.NotFoundError
		if !stderrors.As(err, &nf) {
			return err
		}
		for _, pl := range lib.Pipelines() {
			if pl.Name == name {
				def = pl
				break
			}
		}
		if def == nil {
			return shared.NewInvalidInputError("cannot show prompt",
				&errors.NotFoundError{Resource: "prompt or pipeline", ID: name})
		}
	}

	if shared.GetJSON() {
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Definition any `json:"definition"`
		}{shared.NewJSONResponse("prompts show"), def})
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("failed to render definition: %w", err)
	}
	return enc.Close()
}
