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

// Package management implements commands that inspect past runs.
package management

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/internal/store"
	"github.com/tombee/fieldfill/pkg/enrich"
)

const defaultHistoryLimit = 20

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Long: `List finished runs, newest first, with their final status and how
many records they handled.

See also: fieldfill run`,
		Example: `  fieldfill history
  fieldfill history --status cancelled
  fieldfill history --json | jq '.runs[] | select(.completed < .total)'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" && !validStatus(enrich.RunStatus(status)) {
				return shared.NewInvalidInputError(fmt.Sprintf("unknown status %q (use completed or cancelled)", status), nil)
			}

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

			runs, err := st.ListRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			runs = filterStatus(runs, enrich.RunStatus(status))

			if shared.GetJSON() {
				if runs == nil {
					runs = []store.RunEntry{}
				}
				return shared.EmitJSON(cmd.OutOrStdout(), struct {
					shared.JSONResponse
					Runs []store.RunEntry `json:"runs"`
				}{shared.NewJSONResponse("history"), runs})
			}
			return writeHistory(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Maximum number of runs to show")
	cmd.Flags().StringVar(&status, "status", "", "Filter by final status (completed, cancelled)")

	return cmd
}

func validStatus(s enrich.RunStatus) bool {
	return s == enrich.RunStatusCompleted || s == enrich.RunStatusCancelled
}

func filterStatus(runs []store.RunEntry, status enrich.RunStatus) []store.RunEntry {
	if status == "" {
		return runs
	}
	var out []store.RunEntry
	for _, r := range runs {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

func writeHistory(out io.Writer, runs []store.RunEntry) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tNAME\tRECORDS\tSTARTED\tDURATION")
	for _, r := range runs {
		started, duration := "-", "-"
		if !r.StartedAt.IsZero() {
			started = r.StartedAt.Local().Format("2006-01-02 15:04:05")
			if !r.FinishedAt.IsZero() {
				duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			truncate(r.ID, 8), r.Status, truncate(r.Name, 30), r.Completed, r.Total, started, duration)
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
