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
	stderrors "errors"

	"github.com/tombee/fieldfill/pkg/errors"
)

// Error codes for structured JSON output
const (
	// Validation errors (E001-E099)
	ErrorCodeValidation         = "E001" // Invalid argument or record data
	ErrorCodeInvalidPlaceholder = "E002" // Prompt names a field the records lack
	ErrorCodeInvalidPrompt      = "E003" // Prompt or pipeline definition is invalid

	// Execution errors (E100-E199)
	ErrorCodeProvider  = "E101" // Provider call or construction failed
	ErrorCodeRunFailed = "E103" // Run did not complete
	ErrorCodeCancelled = "E104" // Run cancelled by the user

	// Configuration errors (E200-E299)
	ErrorCodeInvalidConfig = "E202" // Invalid configuration
	ErrorCodeMissingAPIKey = "E203" // Missing API key

	// Resource errors (E400-E499)
	ErrorCodeNotFound = "E401" // Record, prompt or pipeline not found
	ErrorCodeInternal = "E402" // Internal error
)

// ErrorCode maps err to a JSON error code.
func ErrorCode(err error) string {
	var (
		exitErr     *ExitError
		cfgErr      *errors.ConfigError
		validErr    *errors.ValidationError
		notFoundErr *errors.NotFoundError
		provErr     *errors.ProviderError
		tmplErr     *errors.TemplateError
	)
	switch {
	case err == nil:
		return ""
	case stderrors.As(err, &tmplErr):
		return ErrorCodeInvalidPlaceholder
	case stderrors.As(err, &notFoundErr):
		return ErrorCodeNotFound
	case stderrors.As(err, &validErr):
		return ErrorCodeValidation
	case stderrors.As(err, &cfgErr):
		return ErrorCodeInvalidConfig
	case stderrors.As(err, &provErr):
		return ErrorCodeProvider
	}

	switch ExitCode(err) {
	case ExitConfigError:
		return ErrorCodeMissingAPIKey
	case ExitInvalidInput:
		return ErrorCodeValidation
	case ExitProviderError:
		return ErrorCodeProvider
	case ExitCancelled:
		return ErrorCodeCancelled
	}
	if stderrors.As(err, &exitErr) {
		return ErrorCodeRunFailed
	}
	return ErrorCodeInternal
}
