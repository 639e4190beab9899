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

package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tombee/fieldfill/pkg/errors"
	"github.com/tombee/fieldfill/pkg/llm"
)

// EmulateProvider answers every prompt locally without network access.
// It is used for dry runs and demos.
type EmulateProvider struct{}

// NewEmulate creates the emulate provider. Credentials are ignored.
func NewEmulate(llm.Credentials) (llm.Provider, error) {
	return EmulateProvider{}, nil
}

// Name returns the provider identifier.
func (EmulateProvider) Name() string {
	return "emulate"
}

// Complete echoes the user prompt inside a fixed response.
func (EmulateProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var prompt []string
	for _, m := range req.Messages {
		if m.Role == llm.MessageRoleUser {
			prompt = append(prompt, m.Content)
		}
	}
	if len(prompt) == 0 {
		return nil, &errors.ValidationError{Field: "messages", Message: "completion request must have at least one user message"}
	}
	return &llm.CompletionResponse{
		Content:      fmt.Sprintf("This is a fake response for emulation mode for the prompt %s.", strings.Join(prompt, "\n")),
		FinishReason: llm.FinishReasonStop,
		Model:        "emulate",
	}, nil
}
