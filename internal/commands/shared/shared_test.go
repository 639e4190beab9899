package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/fieldfill/internal/secrets"
	"github.com/tombee/fieldfill/pkg/enrich"
	"github.com/tombee/fieldfill/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"exit error", NewInvalidInputError("bad", nil), ExitInvalidInput},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewCancelledError("stopped")), ExitCancelled},
		{"config error", &errors.ConfigError{Key: "provider.name", Reason: "unknown"}, ExitConfigError},
		{"missing key", fmt.Errorf("%w: openai", secrets.ErrSecretNotFound), ExitConfigError},
		{"validation", &errors.ValidationError{Message: "empty"}, ExitInvalidInput},
		{"not found", &errors.NotFoundError{Resource: "prompt", ID: "x"}, ExitInvalidInput},
		{"provider", &errors.ProviderError{Provider: "openai", StatusCode: 401}, ExitProviderError},
		{"plain", fmt.Errorf("boom"), ExitRunFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCodeInvalidPlaceholder, ErrorCode(NewInvalidInputError("x", &errors.TemplateError{Fields: []string{"A"}})))
	assert.Equal(t, ErrorCodeNotFound, ErrorCode(&errors.NotFoundError{Resource: "record", ID: "1"}))
	assert.Equal(t, ErrorCodeInvalidConfig, ErrorCode(&errors.ConfigError{Key: "k"}))
	assert.Equal(t, ErrorCodeMissingAPIKey, ErrorCode(fmt.Errorf("%w", secrets.ErrSecretNotFound)))
	assert.Equal(t, ErrorCodeCancelled, ErrorCode(NewCancelledError("x")))
	assert.Equal(t, ErrorCodeRunFailed, ErrorCode(NewRunFailedError("x", nil)))
	assert.Equal(t, ErrorCodeInternal, ErrorCode(fmt.Errorf("x")))
	assert.Empty(t, ErrorCode(nil))
}

func TestWriteExitError(t *testing.T) {
	t.Cleanup(ResetFlagsForTest)

	var buf bytes.Buffer
	code := writeExitError(&buf, NewInvalidInputError("unknown fields", nil))
	assert.Equal(t, ExitInvalidInput, code)
	assert.Equal(t, "Error: unknown fields\n", buf.String())

	SetJSONForTest(true)
	buf.Reset()
	code = writeExitError(&buf, NewConfigError("failed to load configuration", nil))
	assert.Equal(t, ExitConfigError, code)

	var resp struct {
		Success bool        `json:"success"`
		Errors  []JSONError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "failed to load configuration", resp.Errors[0].Message)
}

func TestEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EmitJSON(&buf, struct {
		JSONResponse
		Count int `json:"count"`
	}{NewJSONResponse("records list"), 2}))

	assert.JSONEq(t, `{"@version":"1.0","command":"records list","success":true,"count":2}`, buf.String())
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestRenderProgressBar(t *testing.T) {
	assert.Empty(t, RenderProgressBar(1, 2, 0))
	bar := RenderProgressBar(1, 2, 10)
	assert.Equal(t, 5, strings.Count(bar, "█"))
	assert.Equal(t, 5, strings.Count(bar, "░"))
	assert.Equal(t, 10, strings.Count(RenderProgressBar(9, 3, 10), "█"))
	assert.Equal(t, 10, strings.Count(RenderProgressBar(0, 0, 10), "░"))
}

func TestRenderRunStatus(t *testing.T) {
	for _, s := range []enrich.RunStatus{
		enrich.RunStatusQueued, enrich.RunStatusActive, enrich.RunStatusPaused,
		enrich.RunStatusCancelled, enrich.RunStatusCompleted,
	} {
		assert.Contains(t, RenderRunStatus(s), string(s))
	}
}

func TestIsNonInteractive(t *testing.T) {
	for _, key := range []string{"FIELDFILL_NON_INTERACTIVE", "CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "JENKINS_HOME"} {
		t.Setenv(key, "")
	}

	t.Setenv("FIELDFILL_NON_INTERACTIVE", "true")
	assert.True(t, IsNonInteractive())
	t.Setenv("FIELDFILL_NON_INTERACTIVE", "")

	t.Setenv("CI", "1")
	assert.True(t, IsNonInteractive())
	t.Setenv("CI", "")

	t.Setenv("JENKINS_HOME", "/var/jenkins")
	assert.True(t, IsNonInteractive())
}

func TestLoadEnv(t *testing.T) {
	t.Cleanup(ResetFlagsForTest)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("FIELDFILL_STORE", "")
	t.Setenv("FIELDFILL_PROVIDER", "")

	cfgPath := filepath.Join(dir, "fieldfill.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("provider:\n  name: emulate\nstore:\n  path: "+filepath.Join(dir, "nested", "ff.db")+"\n"), 0o600))
	SetConfigPathForTest(cfgPath)

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "emulate", env.Config.ActiveProvider())

	st, err := env.OpenStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	assert.FileExists(t, filepath.Join(dir, "nested", "ff.db"))

	lib, err := env.LoadLibrary()
	require.NoError(t, err)
	assert.Empty(t, lib.Prompts())
}

func TestLoadEnv_MissingExplicitConfig(t *testing.T) {
	t.Cleanup(ResetFlagsForTest)
	SetConfigPathForTest(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadEnv()
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestWriteExitError_Reported(t *testing.T) {
	var buf bytes.Buffer
	err := &ExitError{Code: ExitCancelled, Message: "1 run cancelled", Reported: true}
	assert.Equal(t, ExitCancelled, writeExitError(&buf, err))
	assert.Empty(t, buf.String())
}
