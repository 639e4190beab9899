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

// ErrorClassifier defines methods for programmatic error handling.
// Errors that implement this interface can be classified by type
// for reporting or specific handling paths.
//
// The enrichment worker does not consult IsRetryable when deciding
// whether to retry a record; it classifies by message. IsRetryable is
// used by the CLI when summarizing a failed run.
type ErrorClassifier interface {
	error

	// ErrorType returns a string identifying the error category.
	// Examples: "validation", "not_found", "provider", "response_format"
	ErrorType() string

	// IsRetryable returns true if the operation could succeed on retry.
	IsRetryable() bool
}

// Compile-time interface assertions.
var (
	_ ErrorClassifier = (*ValidationError)(nil)
	_ ErrorClassifier = (*NotFoundError)(nil)
	_ ErrorClassifier = (*ProviderError)(nil)
	_ ErrorClassifier = (*ConfigError)(nil)
	_ ErrorClassifier = (*ResponseFormatError)(nil)
	_ ErrorClassifier = (*MappingError)(nil)
	_ ErrorClassifier = (*TemplateError)(nil)
)
