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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tombee/fieldfill/internal/config"
)

// keyless providers need no API key.
var keyless = map[string]bool{"emulate": true}

// Resolver looks up provider API keys across backends in order.
type Resolver struct {
	backends []Backend
	logger   *slog.Logger
}

// NewResolver creates a resolver. Backends are consulted in the order
// given; the first writable one receives Store calls.
func NewResolver(logger *slog.Logger, backends ...Backend) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{backends: backends, logger: logger}
}

// Default checks the environment first, then the OS keychain, then the
// encrypted secrets file when a master key is set.
func Default(logger *slog.Logger) *Resolver {
	backends := []Backend{NewEnvBackend(), NewKeychainBackend()}
	if dir, err := config.ConfigDir(); err == nil {
		backends = append(backends, NewFileBackend(filepath.Join(dir, "secrets.enc"), ""))
	}
	return NewResolver(logger, backends...)
}

// APIKey returns the key for provider and the backend that supplied it.
// Providers that need no key resolve to an empty key.
func (r *Resolver) APIKey(ctx context.Context, provider string) (string, string, error) {
	if keyless[provider] {
		return "", "", nil
	}
	for _, b := range r.backends {
		if !b.Available() {
			continue
		}
		v, err := b.Get(ctx, provider)
		switch {
		case err == nil:
			r.logger.Debug("resolved API key", "provider", provider, "backend", b.Name())
			return v, b.Name(), nil
		case errors.Is(err, ErrSecretNotFound):
			continue
		default:
			r.logger.Warn("secret backend failed", "backend", b.Name(), "error", err)
		}
	}
	return "", "", fmt.Errorf("%w: no API key for %s (set %s or run 'fieldfill keys set %s')",
		ErrSecretNotFound, provider, strings.Join(EnvNames(provider), " or "), provider)
}

// Store saves key for provider in the first writable backend and
// returns that backend's name.
func (r *Resolver) Store(ctx context.Context, provider, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("API key for %s must not be empty", provider)
	}
	for _, b := range r.backends {
		if !b.Available() {
			continue
		}
		err := b.Set(ctx, provider, key)
		if errors.Is(err, ErrReadOnlyBackend) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("store key in %s: %w", b.Name(), err)
		}
		return b.Name(), nil
	}
	return "", fmt.Errorf("%w: no writable secret backend", ErrBackendUnavailable)
}

// Delete removes provider's key from every writable backend that has it.
func (r *Resolver) Delete(ctx context.Context, provider string) error {
	var found bool
	for _, b := range r.backends {
		if !b.Available() {
			continue
		}
		err := b.Delete(ctx, provider)
		switch {
		case err == nil:
			found = true
		case errors.Is(err, ErrReadOnlyBackend), errors.Is(err, ErrSecretNotFound):
		default:
			return fmt.Errorf("delete key from %s: %w", b.Name(), err)
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, provider)
	}
	return nil
}
