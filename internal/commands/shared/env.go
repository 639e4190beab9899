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

package shared

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/tombee/fieldfill/internal/config"
	"github.com/tombee/fieldfill/internal/library"
	"github.com/tombee/fieldfill/internal/log"
	"github.com/tombee/fieldfill/internal/store"
)

// Env bundles the configuration and logger a command runs with.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
}

// LoadEnv loads configuration from --config (or the default path) and
// builds the process logger. --verbose lowers the level to debug.
func LoadEnv() (*Env, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	if GetVerbose() {
		cfg.Log.Level = "debug"
	}

	logger := log.New(&cfg.Log)
	slog.SetDefault(logger)
	return &Env{Config: cfg, Logger: logger}, nil
}

// OpenStore opens the record database, creating its directory.
func (e *Env) OpenStore(ctx context.Context) (*store.Store, error) {
	if err := config.EnsureDir(filepath.Dir(e.Config.Store.Path)); err != nil {
		return nil, NewConfigError("failed to create data directory", err)
	}
	st, err := store.Open(ctx, store.Config{
		Path:   e.Config.Store.Path,
		WAL:    true,
		Logger: e.Logger,
	})
	if err != nil {
		return nil, NewRunFailedError("failed to open record store", err)
	}
	return st, nil
}

// LoadLibrary loads the prompt library directory.
func (e *Env) LoadLibrary() (*library.Library, error) {
	lib, err := library.Load(e.Config.Library.Dir, e.Logger)
	if err != nil {
		return nil, NewInvalidInputError("failed to load prompt library", err)
	}
	return lib, nil
}
