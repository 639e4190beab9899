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

// Package records implements the records command group.
package records

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/fieldfill/internal/cli/prompt"
	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/internal/store"
)

// newPrompter is replaced in tests.
var newPrompter = func() prompt.Prompter {
	return prompt.NewSurveyPrompter(!shared.IsNonInteractive())
}

// NewCommand creates the records command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage the record store",
		Long: `Import, list, show and delete the records that runs enrich.

Records are flat sets of named text fields stored in a local SQLite
database (see store.path in the config file).`,
	}

	cmd.AddCommand(newImportCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newDeleteCommand())

	return cmd
}

// withStore loads the environment, opens the store and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := env.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import records from a JSON file",
		Long: `Import records from a JSON array of objects with an "id" and a
"fields" object. Field order is preserved. Records whose id already exists
are replaced; records without an id get a generated one.

Use - to read from standard input.`,
		Example: `  fieldfill records import cards.json
  cat cards.json | fieldfill records import -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeFn, err := openInput(cmd, args[0])
			if err != nil {
				return shared.NewInvalidInputError("failed to open import file", err)
			}
			defer closeFn()

			inputs, err := store.ParseRecords(in)
			if err != nil {
				return shared.NewInvalidInputError("invalid import file", err)
			}

			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				ids, err := st.Import(ctx, inputs)
				if err != nil {
					return shared.NewInvalidInputError("import failed", err)
				}
				return writeImported(cmd.OutOrStdout(), ids)
			})
		},
	}
}

func openInput(cmd *cobra.Command, name string) (io.Reader, func(), error) {
	if name == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func writeImported(w io.Writer, ids []string) error {
	if shared.GetJSON() {
		return shared.EmitJSON(w, struct {
			shared.JSONResponse
			IDs []string `json:"ids"`
		}{shared.NewJSONResponse("records import"), ids})
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(w, shared.RenderOK(fmt.Sprintf("Imported %d records", len(ids))))
	}
	return nil
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List records and their field names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				records, err := st.List(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if shared.GetJSON() {
					return shared.EmitJSON(out, struct {
						shared.JSONResponse
						Records []store.RecordSummary `json:"records"`
					}{shared.NewJSONResponse("records list"), records})
				}

				if len(records) == 0 {
					fmt.Fprintln(out, "No records found")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tFIELDS")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\n", r.ID, strings.Join(r.Fields, ", "))
				}
				return w.Flush()
			})
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a record's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				rec, err := st.Get(ctx, args[0])
				if err != nil {
					return shared.NewInvalidInputError("cannot show record", err)
				}

				fields := make([]store.Field, 0, len(rec.Fields()))
				for _, name := range rec.Fields() {
					v, _ := rec.Get(name)
					fields = append(fields, store.Field{Name: name, Value: v})
				}

				out := cmd.OutOrStdout()
				if shared.GetJSON() {
					return shared.EmitJSON(out, struct {
						shared.JSONResponse
						ID     string        `json:"id"`
						Fields []store.Field `json:"fields"`
					}{shared.NewJSONResponse("records show"), rec.ID(), fields})
				}

				fmt.Fprintln(out, shared.Header.Render(rec.ID()))
				for _, f := range fields {
					fmt.Fprintf(out, "%s %s\n", shared.Bold.Render(f.Name+":"), f.Value)
				}
				return nil
			})
		},
	}
}

func newDeleteCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirmDelete(cmd, args)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				for _, id := range args {
					if err := st.Delete(ctx, id); err != nil {
						return shared.NewInvalidInputError("delete failed", err)
					}
				}
				if !shared.GetQuiet() && !shared.GetJSON() {
					fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("Deleted %d records", len(args))))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func confirmDelete(cmd *cobra.Command, ids []string) (bool, error) {
	p := newPrompter()
	if !p.IsInteractive() {
		return false, shared.NewInvalidInputError("refusing to delete records without --yes in non-interactive mode", nil)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	msg := fmt.Sprintf("Delete record %s?", ids[0])
	if len(ids) > 1 {
		msg = fmt.Sprintf("Delete %d records?", len(ids))
	}
	return p.Confirm(ctx, msg, false)
}
