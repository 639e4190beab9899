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

package llm

import (
	"fmt"
	"sort"
	"sync"

	pkgerrors "github.com/tombee/fieldfill/pkg/errors"
)

// ProviderFactory creates a Provider from credentials.
type ProviderFactory func(creds Credentials) (Provider, error)

// Registry maps provider names to factories. Factories are registered
// at import time and instantiated on demand from configuration.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// RegisterFactory registers a provider factory. Registering the same
// name twice overwrites the previous factory.
func (r *Registry) RegisterFactory(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// HasFactory reports whether a factory is registered for name.
func (r *Registry) HasFactory(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// ListFactories returns the registered names, sorted alphabetically.
func (r *Registry) ListFactories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New instantiates the named provider. It returns a NotFoundError when
// no factory is registered under name.
func (r *Registry) New(name string, creds Credentials) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &pkgerrors.NotFoundError{Resource: "provider", ID: name}
	}

	p, err := factory(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", name, err)
	}
	return p, nil
}

var defaultRegistry = NewRegistry()

// RegisterFactory registers a factory in the default registry.
func RegisterFactory(name string, factory ProviderFactory) {
	defaultRegistry.RegisterFactory(name, factory)
}

// HasFactory reports whether the default registry knows name.
func HasFactory(name string) bool {
	return defaultRegistry.HasFactory(name)
}

// ListFactories lists the default registry's provider names.
func ListFactories() []string {
	return defaultRegistry.ListFactories()
}

// New instantiates a provider from the default registry.
func New(name string, creds Credentials) (Provider, error) {
	return defaultRegistry.New(name, creds)
}
