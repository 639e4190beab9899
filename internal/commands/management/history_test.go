package management

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/internal/store"
	"github.com/tombee/fieldfill/pkg/enrich"
)

func setup(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ff.db")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("FIELDFILL_STORE", path)
	t.Setenv("FIELDFILL_PROVIDER", "")
	t.Setenv("FIELDFILL_EMULATE", "")
	t.Cleanup(shared.ResetFlagsForTest)

	st, err := store.Open(context.Background(), store.Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "fieldfill", SilenceUsage: true, SilenceErrors: true}
	verbose, quiet, jsonOut, config := shared.RegisterFlagPointers()
	root.PersistentFlags().BoolVar(verbose, "verbose", false, "")
	root.PersistentFlags().BoolVar(quiet, "quiet", false, "")
	root.PersistentFlags().BoolVar(jsonOut, "json", false, "")
	root.PersistentFlags().StringVar(config, "config", "", "")
	root.AddCommand(NewHistoryCommand())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHistory(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, st.SaveRun(ctx, store.RunEntry{
		ID: "run-one-0000", Name: "translate-fr", Status: enrich.RunStatusCompleted,
		Completed: 3, Total: 3, StartedAt: start, FinishedAt: start.Add(90 * time.Second),
	}))
	require.NoError(t, st.SaveRun(ctx, store.RunEntry{
		ID: "run-two-0000", Name: "define", Status: enrich.RunStatusCancelled,
		Completed: 1, Total: 4, StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour + time.Second),
	}))

	out, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "translate-fr")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "1m30s")

	out, err = execute(t, "history", "--status", "cancelled", "--json")
	require.NoError(t, err)
	var resp struct {
		Runs []store.RunEntry `json:"runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "define", resp.Runs[0].Name)
}

func TestHistory_Empty(t *testing.T) {
	setup(t)

	out, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found")

	out, err = execute(t, "history", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"runs": []`)
}

func TestHistory_InvalidStatus(t *testing.T) {
	setup(t)

	_, err := execute(t, "history", "--status", "running")
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 8))
	assert.Equal(t, "abcdefg…", truncate("abcdefghij", 8))
}
