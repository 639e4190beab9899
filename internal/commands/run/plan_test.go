package run

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/internal/library"
	"github.com/tombee/fieldfill/internal/cli/prompt"
	"github.com/tombee/fieldfill/internal/store"
	"github.com/tombee/fieldfill/pkg/enrich"
	"github.com/tombee/fieldfill/pkg/errors"
)

func testLibrary(t *testing.T) *library.Library {
	t.Helper()
	lib, err := library.New(nil,
		[]library.Prompt{
			{StepSpec: enrich.StepSpec{Name: "translate", Prompt: "Translate {{{Front}}}", TargetField: "Back"}},
			{StepSpec: enrich.StepSpec{Name: "define", Prompt: "Define {{{Front}}} ({{{Tag}}})", TargetField: "Notes"}},
		},
		[]library.PipelineDef{{Name: "both", Steps: []string{"translate", "define"}}},
	)
	require.NoError(t, err)
	return lib
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{Path: filepath.Join(t.TempDir(), "ff.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSelectionFlag_KeepsCommandLineOrder(t *testing.T) {
	var sels []selection
	cmd := &cobra.Command{Use: "run", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().Var(&selectionFlag{kind: kindPrompt, into: &sels}, "prompt", "")
	cmd.Flags().Var(&selectionFlag{kind: kindPipeline, into: &sels}, "pipeline", "")
	cmd.SetArgs([]string{"--prompt", "a", "--pipeline", "p", "--prompt", "b"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, []selection{
		{Kind: kindPrompt, Name: "a"},
		{Kind: kindPipeline, Name: "p"},
		{Kind: kindPrompt, Name: "b"},
	}, sels)
	assert.Equal(t, "[a,b]", cmd.Flags().Lookup("prompt").Value.String())

	f := &selectionFlag{kind: kindPrompt, into: &sels}
	assert.Error(t, f.Set("  "))
}

func TestBuildPlans(t *testing.T) {
	lib := testLibrary(t)

	plans, err := buildPlans(lib, []selection{
		{Kind: kindPrompt, Name: "translate"},
		{Kind: kindPipeline, Name: "both"},
	}, true)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "translate", plans[0].Name)
	require.Len(t, plans[0].Pipeline, 1)
	require.Len(t, plans[1].Pipeline, 2)
	for _, p := range plans {
		for _, step := range p.Pipeline {
			assert.True(t, step.Overwrite)
		}
	}

	_, err = buildPlans(lib, nil, false)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))

	_, err = buildPlans(lib, []selection{{Kind: kindPipeline, Name: "translate"}}, false)
	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "pipeline", nf.Resource)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}

func TestResolveIDs(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	_, err := resolveIDs(ctx, st, nil, true)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err), "empty store")

	_, err = st.Import(ctx, []store.RecordInput{
		{ID: "b", Fields: []store.Field{{Name: "Front", Value: "x"}}},
		{ID: "a", Fields: []store.Field{{Name: "Front", Value: "y"}}},
	})
	require.NoError(t, err)

	ids, err := resolveIDs(ctx, st, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	ids, err = resolveIDs(ctx, st, []string{"b", " a", "b", ""}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	_, err = resolveIDs(ctx, st, nil, false)
	assert.Error(t, err)
	_, err = resolveIDs(ctx, st, []string{"a"}, true)
	assert.Error(t, err)
	_, err = resolveIDs(ctx, st, []string{" "}, false)
	assert.Error(t, err)
}

func TestValidatePlaceholders(t *testing.T) {
	plans, err := buildPlans(testLibrary(t), []selection{{Kind: kindPipeline, Name: "both"}}, false)
	require.NoError(t, err)

	assert.NoError(t, validatePlaceholders(plans, []string{"Front", "Back", "Notes", "Tag"}))

	err = validatePlaceholders(plans, []string{"Front", "Back"})
	var tmpl *errors.TemplateError
	require.ErrorAs(t, err, &tmpl)
	assert.Equal(t, []string{"Tag"}, tmpl.Fields)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}

func TestChooseSelection(t *testing.T) {
	lib := testLibrary(t)
	ctx := context.Background()

	mp := prompt.NewMockPrompter(true, "define (recent)")
	sels, err := chooseSelection(ctx, mp, lib, []string{"define"})
	require.NoError(t, err)
	assert.Equal(t, []selection{{Kind: kindPrompt, Name: "define"}}, sels)

	mp = prompt.NewMockPrompter(true, "both (pipeline, 2 steps)")
	sels, err = chooseSelection(ctx, mp, lib, nil)
	require.NoError(t, err)
	assert.Equal(t, []selection{{Kind: kindPipeline, Name: "both"}}, sels)

	_, err = chooseSelection(ctx, prompt.NewMockPrompter(false), lib, nil)
	assert.Error(t, err)
}
