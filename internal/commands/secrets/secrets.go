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

// Package secrets implements the keys command for provider API keys.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/internal/config"
	"github.com/tombee/fieldfill/internal/secrets"
	"github.com/tombee/fieldfill/pkg/llm"
)

// NewCommand creates the keys command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys",
		Long: `Manage provider API keys.

Keys are resolved in order from:
  1. Environment variables (FIELDFILL_<PROVIDER>_API_KEY, or the provider's
     usual variable such as OPENAI_API_KEY), read-only
  2. System keychain (macOS Keychain, Linux Secret Service, Windows
     Credential Manager)
  3. An encrypted file in the config directory, used when
     FIELDFILL_MASTER_KEY is set (for machines without a keychain)`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newDeleteCommand())
	cmd.AddCommand(newStatusCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider>",
		Short: "Store a provider API key in the keychain",
		Long: `Store a provider API key in the system keychain.

The key is read with hidden input from the terminal, or from standard
input when it is a pipe.`,
		Example: `  fieldfill keys set openai
  echo "sk-..." | fieldfill keys set anthropic`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := validateProvider(args[0])
			if err != nil {
				return err
			}

			value, err := readSecretValue(cmd)
			if err != nil {
				return shared.NewInvalidInputError("failed to read API key", err)
			}
			if value == "" {
				return shared.NewInvalidInputError("API key cannot be empty", nil)
			}

			backend, err := newResolver().Store(cmdContext(cmd), provider, value)
			if err != nil {
				if errors.Is(err, secrets.ErrBackendUnavailable) {
					return shared.NewConfigError(fmt.Sprintf(
						"keychain unavailable; export %s or set %s", secrets.EnvNames(provider)[0], secrets.MasterKeyEnv), err)
				}
				return fmt.Errorf("failed to store API key: %w", err)
			}

			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(
					fmt.Sprintf("API key for %s stored in %s (%s)", provider, backend, llm.MaskSecret(value))))
			}
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a provider API key from the keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := validateProvider(args[0])
			if err != nil {
				return err
			}
			if err := newResolver().Delete(cmdContext(cmd), provider); err != nil {
				if errors.Is(err, secrets.ErrSecretNotFound) {
					return shared.NewInvalidInputError(fmt.Sprintf("no stored API key for %s", provider), nil)
				}
				return fmt.Errorf("failed to delete API key: %w", err)
			}
			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("API key for %s deleted", provider)))
			}
			return nil
		},
	}
}

// KeyStatus reports where a provider's key resolves from.
type KeyStatus struct {
	Provider string `json:"provider"`
	Backend  string `json:"backend,omitempty"`
	Key      string `json:"key,omitempty"`
	Found    bool   `json:"found"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which providers have an API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver := newResolver()
			ctx := cmdContext(cmd)

			var statuses []KeyStatus
			for _, p := range config.Providers {
				if p == "emulate" {
					continue
				}
				key, backend, err := resolver.APIKey(ctx, p)
				s := KeyStatus{Provider: p}
				if err == nil {
					s.Found, s.Backend, s.Key = true, backend, llm.MaskSecret(key)
				}
				statuses = append(statuses, s)
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				return shared.EmitJSON(out, struct {
					shared.JSONResponse
					Keys []KeyStatus `json:"keys"`
				}{shared.NewJSONResponse("keys status"), statuses})
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tSOURCE\tKEY")
			for _, s := range statuses {
				if !s.Found {
					fmt.Fprintf(w, "%s\t%s\t\n", s.Provider, shared.StatusError.Render("missing"))
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Provider, shared.StatusOK.Render(s.Backend), s.Key)
			}
			return w.Flush()
		},
	}
}

func newResolver() *secrets.Resolver {
	return secrets.Default(nil)
}

func validateProvider(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !slices.Contains(config.Providers, name) {
		return "", shared.NewInvalidInputError(
			fmt.Sprintf("unknown provider %q (known: %s)", name, strings.Join(config.Providers, ", ")), nil)
	}
	if name == "emulate" {
		return "", shared.NewInvalidInputError("the emulate provider needs no API key", nil)
	}
	return name, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// readSecretValue reads hidden input from a terminal, or everything from
// a piped stdin.
func readSecretValue(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Enter API key (hidden): ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
