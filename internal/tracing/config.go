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

package tracing

import (
	"fmt"
	"io"
	"os"
)

// Config holds tracing configuration.
type Config struct {
	// Enabled controls whether spans are exported. Disabled tracing
	// installs a no-op provider.
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this process in exported spans.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"-"`

	// SampleRate is the fraction of root spans to record (0.0 - 1.0).
	SampleRate float64 `yaml:"sample_rate"`

	// Exporter is stdout (default), otlp (gRPC) or otlp-http.
	Exporter string `yaml:"exporter"`

	// Output is where the stdout exporter writes spans. Empty means
	// stderr.
	Output string `yaml:"output"`

	// Endpoint is the collector address for the OTLP exporters, e.g.
	// "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector (for development only).
	Insecure bool `yaml:"insecure"`

	// Headers are sent with every OTLP export request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// PrettyPrint indents exported span JSON.
	PrettyPrint bool `yaml:"pretty_print"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false, // Opt-in
		ServiceName:    "fieldfill",
		ServiceVersion: "unknown",
		SampleRate:     1.0,
	}
}

// Validate checks the sample rate range and exporter settings.
func (c Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be between 0 and 1, got %v", c.SampleRate)
	}
	switch c.Exporter {
	case "", ExporterStdout:
	case ExporterOTLP, ExporterOTLPHTTP:
		if c.Endpoint == "" {
			return fmt.Errorf("exporter %s requires an endpoint", c.Exporter)
		}
	default:
		return fmt.Errorf("unknown exporter %q", c.Exporter)
	}
	return nil
}

// openOutput returns the span writer and a closer for it.
func (c Config) openOutput() (io.Writer, func() error, error) {
	switch c.Output {
	case "", "stderr":
		return os.Stderr, func() error { return nil }, nil
	case "stdout":
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, f.Close, nil
}
