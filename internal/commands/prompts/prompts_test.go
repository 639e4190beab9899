package prompts

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/internal/library"
	"github.com/tombee/fieldfill/internal/store"
)

const libraryDoc = `prompts:
  - name: translate-fr
    description: French translation
    prompt: "Translate {{{Front}}} to French"
    target_field: Back
  - name: define
    prompt: "Define {{{Front}}}"
    target_field: Notes
    pinned: true
  - name: translate-de
    prompt: "Translate {{{Front}}} to German"
    target_field: Back
pipelines:
  - name: translate-all
    steps: [translate-fr, translate-de]
`

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("FIELDFILL_STORE", filepath.Join(dir, "ff.db"))
	t.Setenv("FIELDFILL_PROVIDER", "")
	t.Setenv("FIELDFILL_EMULATE", "")

	libDir := filepath.Join(dir, "prompts")
	require.NoError(t, os.MkdirAll(libDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "library.yaml"), []byte(libraryDoc), 0o600))
	t.Setenv("FIELDFILL_PROMPTS_DIR", libDir)
	t.Cleanup(shared.ResetFlagsForTest)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "fieldfill", SilenceUsage: true, SilenceErrors: true}
	verbose, quiet, jsonOut, config := shared.RegisterFlagPointers()
	root.PersistentFlags().BoolVar(verbose, "verbose", false, "")
	root.PersistentFlags().BoolVar(quiet, "quiet", false, "")
	root.PersistentFlags().BoolVar(jsonOut, "json", false, "")
	root.PersistentFlags().StringVar(config, "config", "", "")
	root.AddCommand(NewCommand())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPromptsList_OrdersPinnedThenRecent(t *testing.T) {
	dir := setup(t)

	st, err := store.Open(context.Background(), store.Config{Path: filepath.Join(dir, "ff.db")})
	require.NoError(t, err)
	require.NoError(t, st.TouchPrompt(context.Background(), "translate-de", library.HistoryLimit))
	require.NoError(t, st.Close())

	out, err := execute(t, "prompts", "list", "--json")
	require.NoError(t, err)

	var resp struct {
		Prompts []struct {
			Prompt struct {
				Name   string `json:"name"`
				Pinned bool   `json:"pinned"`
			} `json:"prompt"`
			Recent bool `json:"recent"`
		} `json:"prompts"`
		Pipelines []library.PipelineDef `json:"pipelines"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	var names []string
	for _, p := range resp.Prompts {
		names = append(names, p.Prompt.Name)
	}
	assert.Equal(t, []string{"define", "translate-de", "translate-fr"}, names)
	assert.True(t, resp.Prompts[0].Prompt.Pinned)
	assert.True(t, resp.Prompts[1].Recent)
	require.Len(t, resp.Pipelines, 1)
	assert.Equal(t, []string{"translate-fr", "translate-de"}, resp.Pipelines[0].Steps)
}

func TestPromptsList_Table(t *testing.T) {
	setup(t)

	out, err := execute(t, "prompts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "PROMPT")
	assert.Contains(t, out, "French translation")
	assert.Contains(t, out, "translate-fr > translate-de")
}

func TestPromptsList_Match(t *testing.T) {
	setup(t)

	out, err := execute(t, "prompts", "list", "--match", "translate-*")
	require.NoError(t, err)
	assert.Contains(t, out, "translate-fr")
	assert.Contains(t, out, "translate-all")
	assert.NotContains(t, out, "define")

	_, err = execute(t, "prompts", "list", "--match", "[")
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}

func TestPromptsShow(t *testing.T) {
	setup(t)

	out, err := execute(t, "prompts", "show", "translate-fr")
	require.NoError(t, err)
	assert.Contains(t, out, "name: translate-fr")
	assert.Contains(t, out, "target_field: Back")

	out, err = execute(t, "prompts", "show", "translate-all")
	require.NoError(t, err)
	assert.Contains(t, out, "- translate-de")

	_, err = execute(t, "prompts", "show", "missing")
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}
