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

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvBackend reads API keys from environment variables. For provider
// "openai" it checks FIELDFILL_OPENAI_API_KEY, then the provider's own
// variable (OPENAI_API_KEY).
type EnvBackend struct {
	lookup func(string) string
}

// NewEnvBackend creates a backend over the process environment.
func NewEnvBackend() *EnvBackend {
	return &EnvBackend{lookup: os.Getenv}
}

// Name returns the backend identifier.
func (e *EnvBackend) Name() string {
	return "env"
}

// Get returns the first non-empty variable for key.
func (e *EnvBackend) Get(_ context.Context, key string) (string, error) {
	for _, name := range EnvNames(key) {
		if v := strings.TrimSpace(e.lookup(name)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

// Set is not supported.
func (e *EnvBackend) Set(context.Context, string, string) error {
	return ErrReadOnlyBackend
}

// Delete is not supported.
func (e *EnvBackend) Delete(context.Context, string) error {
	return ErrReadOnlyBackend
}

// Available always returns true.
func (e *EnvBackend) Available() bool {
	return true
}

// providerAliases maps provider names to their conventional variables.
var providerAliases = map[string][]string{
	"openai":     {"OPENAI_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"gemini":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
}

// EnvNames lists the variables checked for provider, in order.
func EnvNames(provider string) []string {
	normalized := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(provider))
	return append([]string{"FIELDFILL_" + normalized + "_API_KEY"}, providerAliases[provider]...)
}
