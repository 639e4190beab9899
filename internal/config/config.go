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

// Package config loads fieldfill settings from a YAML file and the
// environment.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tombee/fieldfill/internal/log"
	"github.com/tombee/fieldfill/internal/tracing"
	"github.com/tombee/fieldfill/pkg/enrich"
	"github.com/tombee/fieldfill/pkg/errors"
	"github.com/tombee/fieldfill/pkg/llm"
)

// Providers lists the provider names fieldfill ships with.
var Providers = []string{"openai", "anthropic", "gemini", "openrouter", "custom", "emulate"}

// Config is the complete fieldfill configuration.
type Config struct {
	// Provider selects and configures the LLM backend.
	Provider ProviderConfig `yaml:"provider"`

	// Run holds batch throttling settings copied into every worker.
	Run enrich.RunConfig `yaml:"run"`

	// Overwrite is injected into every step, replacing existing field
	// content instead of appending to it.
	Overwrite bool `yaml:"overwrite"`

	// Log configures the process logger.
	Log log.Config `yaml:"log"`

	// Store configures the record database.
	Store StoreConfig `yaml:"store"`

	// Library configures prompt and pipeline discovery.
	Library LibraryConfig `yaml:"library"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures span export.
	Tracing tracing.Config `yaml:"tracing"`
}

// ProviderConfig selects the active provider.
type ProviderConfig struct {
	// Name is one of Providers.
	Name string `yaml:"name"`

	// Emulate forces the offline emulate provider regardless of Name.
	Emulate bool `yaml:"emulate"`

	// MaxTokens caps response length. Zero uses each provider's default.
	MaxTokens int `yaml:"max_tokens"`

	// RequestsPerMinute caps provider calls across all runs. Zero
	// disables the limit; batch throttling still applies.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Settings holds per-provider overrides keyed by provider name.
	Settings map[string]ProviderSettings `yaml:"settings"`
}

// ProviderSettings overrides a provider's defaults.
type ProviderSettings struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LibraryConfig locates the prompt library.
type LibraryConfig struct {
	Dir string `yaml:"dir"`
}

// MetricsConfig controls the /metrics listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Provider: ProviderConfig{Name: "openai"},
		Run:      enrich.DefaultRunConfig(),
		Log:      *log.DefaultConfig(),
		Tracing:  tracing.DefaultConfig(),
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration. An empty configPath loads the default file
// when it exists. Environment variables take precedence over the file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	path, explicit := configPath, configPath != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return nil, &errors.ConfigError{Key: "config_file", Reason: "cannot locate config directory", Cause: err}
		}
		path = p
	}

	if err := cfg.loadFromFile(path); err != nil {
		if explicit || !stderrors.Is(err, fs.ErrNotExist) {
			return nil, &errors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	// Apply defaults to any zero values (handles minimal configs)
	cfg.applyDefaults()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	path, err := expandHome(path)
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	if c.Provider.Name == "" {
		c.Provider.Name = "openai"
	}
	if c.Run.BatchSize == 0 {
		c.Run.BatchSize = enrich.DefaultRunConfig().BatchSize
	}
	if c.Log.Level == "" {
		c.Log.Level = log.DefaultConfig().Level
	}
	if c.Log.Format == "" {
		c.Log.Format = log.DefaultConfig().Format
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = tracing.DefaultConfig().ServiceName
	}
	if c.Store.Path == "" {
		if dir, err := DataDir(); err == nil {
			c.Store.Path = filepath.Join(dir, "fieldfill.db")
		}
	}
	if c.Library.Dir == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Library.Dir = filepath.Join(dir, "prompts")
		}
	}
}

// loadFromEnv applies environment overrides.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("FIELDFILL_PROVIDER"); v != "" {
		c.Provider.Name = strings.ToLower(v)
	}
	if v := os.Getenv("FIELDFILL_STORE"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("FIELDFILL_PROMPTS_DIR"); v != "" {
		c.Library.Dir = v
	}
	if v := os.Getenv("FIELDFILL_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("FIELDFILL_EMULATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &errors.ConfigError{Key: "FIELDFILL_EMULATE", Reason: fmt.Sprintf("not a boolean: %q", v)}
		}
		c.Provider.Emulate = b
	}
	log.ApplyEnv(&c.Log)

	var err error
	if c.Store.Path, err = expandHome(c.Store.Path); err != nil {
		return &errors.ConfigError{Key: "store.path", Reason: "cannot expand home directory", Cause: err}
	}
	if c.Library.Dir, err = expandHome(c.Library.Dir); err != nil {
		return &errors.ConfigError{Key: "library.dir", Reason: "cannot expand home directory", Cause: err}
	}
	return nil
}

// Validate reports the first invalid setting as a ConfigError.
func (c *Config) Validate() error {
	if !slices.Contains(Providers, c.Provider.Name) {
		return &errors.ConfigError{
			Key:    "provider.name",
			Reason: fmt.Sprintf("unknown provider %q, expected one of %v", c.Provider.Name, Providers),
		}
	}
	if c.Provider.MaxTokens < 0 {
		return &errors.ConfigError{Key: "provider.max_tokens", Reason: "must not be negative"}
	}
	if c.Provider.RequestsPerMinute < 0 {
		return &errors.ConfigError{Key: "provider.requests_per_minute", Reason: "must not be negative"}
	}
	for name := range c.Provider.Settings {
		if !slices.Contains(Providers, name) {
			return &errors.ConfigError{Key: "provider.settings." + name, Reason: "unknown provider"}
		}
	}
	if c.ActiveProvider() == "custom" && c.Provider.Settings["custom"].BaseURL == "" {
		return &errors.ConfigError{Key: "provider.settings.custom.base_url", Reason: "required for the custom provider"}
	}

	if err := c.Run.Validate(); err != nil {
		return &errors.ConfigError{Key: "run", Reason: "invalid run settings", Cause: err}
	}

	validLevels := []string{"trace", "debug", "info", "warn", "warning", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		return &errors.ConfigError{
			Key:    "log.level",
			Reason: fmt.Sprintf("must be one of %v, got %q", validLevels, c.Log.Level),
		}
	}
	if c.Log.Format != log.FormatJSON && c.Log.Format != log.FormatText {
		return &errors.ConfigError{
			Key:    "log.format",
			Reason: fmt.Sprintf("must be one of [json, text], got %q", c.Log.Format),
		}
	}

	if c.Store.Path == "" {
		return &errors.ConfigError{Key: "store.path", Reason: "must not be empty"}
	}
	if err := c.Tracing.Validate(); err != nil {
		return &errors.ConfigError{Key: "tracing", Reason: "invalid tracing settings", Cause: err}
	}
	return nil
}

// ActiveProvider returns the provider that runs will use.
func (c *Config) ActiveProvider() string {
	if c.Provider.Emulate {
		return "emulate"
	}
	return c.Provider.Name
}

// Credentials builds provider credentials from the settings for name
// and the resolved API key.
func (c *Config) Credentials(name, apiKey string) llm.Credentials {
	s := c.Provider.Settings[name]
	return llm.Credentials{APIKey: apiKey, BaseURL: s.BaseURL, Model: s.Model}
}
