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

package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	fferrors "github.com/tombee/fieldfill/pkg/errors"
)

func TestProviderError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *fferrors.ProviderError
		wantMsg string
	}{
		{
			name: "with status and request id",
			err: &fferrors.ProviderError{
				Provider:   "anthropic",
				StatusCode: 503,
				Message:    "service unavailable",
				RequestID:  "req_1",
			},
			wantMsg: "provider anthropic error [HTTP 503]: service unavailable (request-id: req_1)",
		},
		{
			name: "transport failure",
			err: &fferrors.ProviderError{
				Provider: "openai",
				Message:  "dial tcp: connection refused",
			},
			wantMsg: "provider openai error: dial tcp: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ProviderError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestProviderError_IsRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
	}

	for _, tt := range tests {
		err := &fferrors.ProviderError{Provider: "p", StatusCode: tt.status}
		if got := err.IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable() for status %d = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := fmt.Errorf("step 1: %w", &fferrors.ProviderError{Provider: "gemini", Message: "x", Cause: cause})

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through ProviderError")
	}
	if got := fferrors.Type(err); got != "provider" {
		t.Errorf("Type() = %q, want provider", got)
	}
}

func TestResponseFormatError_TruncatesResponse(t *testing.T) {
	err := &fferrors.ResponseFormatError{
		Response: strings.Repeat("x", 500),
		Cause:    errors.New("invalid character"),
	}

	msg := err.Error()
	if len(msg) > 250 {
		t.Errorf("expected truncated message, got %d bytes", len(msg))
	}
	if !strings.Contains(msg, "invalid character") {
		t.Errorf("expected cause in message, got %q", msg)
	}
}

func TestMappingError_Error(t *testing.T) {
	err := &fferrors.MappingError{Field: "Back", ResponseKey: "definition"}
	want := `target field "Back" for response key "definition" not found in record`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err = &fferrors.MappingError{Field: "Back"}
	want = `target field "Back" not found in record`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTemplateError_Error(t *testing.T) {
	single := &fferrors.TemplateError{Fields: []string{"Front"}}
	if got := single.Error(); got != `field "Front" not found in record` {
		t.Errorf("unexpected message %q", got)
	}

	multi := &fferrors.TemplateError{Fields: []string{"Front", "Extra"}}
	if got := multi.Error(); got != "fields not found in record: Front, Extra" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestIsNotFound(t *testing.T) {
	err := fmt.Errorf("resolve: %w", &fferrors.NotFoundError{Resource: "record", ID: "42"})
	if !fferrors.IsNotFound(err) {
		t.Error("expected IsNotFound to be true")
	}
	if fferrors.IsNotFound(errors.New("record not found")) {
		t.Error("plain errors must not be classified as NotFoundError")
	}
	if got := fferrors.Type(errors.New("plain")); got != "unknown" {
		t.Errorf("Type() = %q, want unknown", got)
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &fferrors.ConfigError{Key: "run.batch_size", Reason: "must be >= 1"}
	if got := err.Error(); got != "config error at run.batch_size: must be >= 1" {
		t.Errorf("unexpected message %q", got)
	}

	cause := errors.New("yaml: line 3")
	wrapped := &fferrors.ConfigError{Reason: "failed to parse", Cause: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("expected Unwrap to expose cause")
	}
}
