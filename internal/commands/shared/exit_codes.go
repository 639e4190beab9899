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
	"fmt"
	"io"
	"os"

	"github.com/tombee/fieldfill/internal/secrets"
	"github.com/tombee/fieldfill/pkg/errors"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitRunFailed     = 1
	ExitInvalidInput  = 2
	ExitConfigError   = 3
	ExitProviderError = 4
	ExitCancelled     = 130 // 128 + SIGINT
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Cause   error

	// Reported errors were already written to the output; only the
	// exit code is applied.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewRunFailedError reports a run that could not finish.
func NewRunFailedError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitRunFailed, Message: msg, Cause: cause}
}

// NewInvalidInputError reports bad arguments, records or prompts.
func NewInvalidInputError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidInput, Message: msg, Cause: cause}
}

// NewConfigError reports unusable configuration or credentials.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfigError, Message: msg, Cause: cause}
}

// NewProviderError reports a provider that could not be constructed.
func NewProviderError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitProviderError, Message: msg, Cause: cause}
}

// NewCancelledError reports runs cancelled by the user.
func NewCancelledError(msg string) *ExitError {
	return &ExitError{Code: ExitCancelled, Message: msg}
}

// ExitCode maps err to a process exit code. Typed errors without an
// ExitError wrapper are classified by kind.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}

	var (
		cfgErr      *errors.ConfigError
		validErr    *errors.ValidationError
		notFoundErr *errors.NotFoundError
		provErr     *errors.ProviderError
	)
	switch {
	case stderrors.As(err, &cfgErr), stderrors.Is(err, secrets.ErrSecretNotFound):
		return ExitConfigError
	case stderrors.As(err, &validErr), stderrors.As(err, &notFoundErr):
		return ExitInvalidInput
	case stderrors.As(err, &provErr):
		return ExitProviderError
	default:
		return ExitRunFailed
	}
}

// HandleExitError prints err and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(writeExitError(os.Stderr, err))
}

func writeExitError(w io.Writer, err error) int {
	code := ExitCode(err)
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) && exitErr.Reported {
		return code
	}
	if GetJSON() {
		_ = EmitJSONError(w, "", []JSONError{{Code: ErrorCode(err), Message: err.Error()}})
		return code
	}
	if code == ExitCancelled {
		fmt.Fprintln(w, RenderWarn(err.Error()))
		return code
	}
	fmt.Fprintln(w, "Error:", err.Error())
	return code
}
