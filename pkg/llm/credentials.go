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
	"strings"
)

// Credentials holds what a provider factory needs to build a provider.
type Credentials struct {
	// APIKey is the authentication token for the provider's API.
	APIKey string

	// BaseURL is an optional override for the API endpoint.
	// If empty, the provider's default endpoint is used.
	BaseURL string

	// Model is an optional override for the provider's default model.
	Model string
}

// Validate checks that the API key is present.
// Length and format validation is left to individual providers since key formats vary.
func (c Credentials) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}

// Redacted returns a safe-to-log version with the API key masked.
func (c Credentials) Redacted() string {
	var parts []string
	parts = append(parts, "APIKey: "+MaskSecret(c.APIKey))
	if c.BaseURL != "" {
		parts = append(parts, "BaseURL: "+c.BaseURL)
	}
	if c.Model != "" {
		parts = append(parts, "Model: "+c.Model)
	}
	return strings.Join(parts, ", ")
}

// MaskSecret returns a masked version of a secret string.
// Shows first 4 and last 4 characters with asterisks in between.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
