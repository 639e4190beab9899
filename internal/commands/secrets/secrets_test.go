package secrets

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/internal/secrets"
)

func setup(t *testing.T) {
	t.Helper()
	keyring.MockInit()
	for _, p := range []string{"openai", "anthropic", "gemini", "openrouter", "custom"} {
		for _, name := range secrets.EnvNames(p) {
			t.Setenv(name, "")
		}
	}
	t.Cleanup(shared.ResetFlagsForTest)
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
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
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKeys_SetStatusDelete(t *testing.T) {
	setup(t)

	out, err := execute(t, "sk-test-1234567890\n", "keys", "set", "OpenAI")
	require.NoError(t, err)
	assert.Contains(t, out, "stored in keychain")
	assert.Contains(t, out, "sk-t**********7890")
	assert.NotContains(t, out, "sk-test-1234567890")

	v, err := keyring.Get("fieldfill", "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-1234567890", v)

	out, err = execute(t, "", "keys", "status", "--json")
	require.NoError(t, err)
	var resp struct {
		Keys []KeyStatus `json:"keys"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Keys)
	assert.Equal(t, KeyStatus{Provider: "openai", Backend: "keychain", Key: "sk-t**********7890", Found: true}, resp.Keys[0])
	assert.False(t, resp.Keys[1].Found)

	_, err = execute(t, "", "keys", "delete", "openai")
	require.NoError(t, err)
	_, err = keyring.Get("fieldfill", "openai")
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestKeys_EnvironmentTakesPrecedence(t *testing.T) {
	setup(t)
	t.Setenv("ANTHROPIC_API_KEY", "env-key-abcdefgh")

	out, err := execute(t, "", "keys", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "anthropic")
	assert.Contains(t, out, "env")
	assert.Contains(t, out, "missing")
}

func TestKeys_Errors(t *testing.T) {
	setup(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"unknown provider", "k", []string{"keys", "set", "nope"}},
		{"keyless provider", "k", []string{"keys", "set", "emulate"}},
		{"empty key", "  \n", []string{"keys", "set", "gemini"}},
		{"delete missing", "", []string{"keys", "delete", "gemini"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
		})
	}
}

func TestKeys_KeychainUnavailable(t *testing.T) {
	setup(t)
	keyring.MockInitWithError(keyring.ErrUnsupportedPlatform)
	t.Cleanup(keyring.MockInit)

	_, err := execute(t, "sk-abc", "keys", "set", "openai")
	require.Error(t, err)
	assert.Equal(t, shared.ExitConfigError, shared.ExitCode(err))
	assert.Contains(t, err.Error(), "FIELDFILL_OPENAI_API_KEY")
}
