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

package errors

import (
	"fmt"
	"strings"
)

// ValidationError represents user input validation failures.
// Use this for invalid prompts, run requests, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ErrorType implements ErrorClassifier.
func (e *ValidationError) ErrorType() string { return "validation" }

// IsRetryable implements ErrorClassifier.
func (e *ValidationError) IsRetryable() bool { return false }

// NotFoundError represents a resource not found error.
// The record store returns it when a record was deleted between
// selection and processing.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "record", "prompt", "pipeline")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrorType implements ErrorClassifier.
func (e *NotFoundError) ErrorType() string { return "not_found" }

// IsRetryable implements ErrorClassifier.
func (e *NotFoundError) IsRetryable() bool { return false }

// ProviderError represents LLM provider failures.
// Use this for errors originating from external LLM providers,
// including transport failures reaching them.
type ProviderError struct {
	// Provider is the name of the LLM provider (e.g., "anthropic", "openai")
	Provider string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Message is the human-readable error message
	Message string

	// RequestID correlates this error with provider logs
	RequestID string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s error", e.Provider)

	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}

	msg = fmt.Sprintf("%s: %s", msg, e.Message)

	if e.RequestID != "" {
		msg = fmt.Sprintf("%s (request-id: %s)", msg, e.RequestID)
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ProviderError) ErrorType() string { return "provider" }

// IsRetryable reports whether the status code indicates a transient
// condition. Transport errors without a status are considered retryable.
func (e *ProviderError) IsRetryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ConfigError represents configuration problems.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "provider.name", "run.batch_size")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Key != "" {
		msg = fmt.Sprintf("config error at %s", e.Key)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string { return "config" }

// IsRetryable implements ErrorClassifier.
func (e *ConfigError) IsRetryable() bool { return false }

// ResponseFormatError is returned when a JSON-mode response cannot be
// parsed, neither directly nor after slicing to the outermost braces.
type ResponseFormatError struct {
	// Response is the raw provider response, truncated for display
	Response string

	// Cause is the JSON decoder error from the last attempt
	Cause error
}

// Error implements the error interface.
func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("response is not valid JSON: %v (response: %q)", e.Cause, truncate(e.Response, 120))
}

// Unwrap returns the underlying cause.
func (e *ResponseFormatError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ResponseFormatError) ErrorType() string { return "response_format" }

// IsRetryable implements ErrorClassifier.
func (e *ResponseFormatError) IsRetryable() bool { return false }

// MappingError is returned when a response would be written to a field
// the record does not have.
type MappingError struct {
	// Field is the missing target field
	Field string

	// ResponseKey is the JSON key mapped to Field, empty in text mode
	ResponseKey string
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	if e.ResponseKey != "" {
		return fmt.Sprintf("target field %q for response key %q not found in record", e.Field, e.ResponseKey)
	}
	return fmt.Sprintf("target field %q not found in record", e.Field)
}

// ErrorType implements ErrorClassifier.
func (e *MappingError) ErrorType() string { return "mapping" }

// IsRetryable implements ErrorClassifier.
func (e *MappingError) IsRetryable() bool { return false }

// TemplateError is returned when a prompt placeholder names a field the
// record does not have.
type TemplateError struct {
	// Fields lists the placeholders that could not be resolved
	Fields []string
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("field %q not found in record", e.Fields[0])
	}
	return fmt.Sprintf("fields not found in record: %s", strings.Join(e.Fields, ", "))
}

// ErrorType implements ErrorClassifier.
func (e *TemplateError) ErrorType() string { return "template" }

// IsRetryable implements ErrorClassifier.
func (e *TemplateError) IsRetryable() bool { return false }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
