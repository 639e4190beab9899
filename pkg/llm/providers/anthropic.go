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
	"net/http"
	"strings"
	"time"

	"github.com/tombee/fieldfill/pkg/errors"
	"github.com/tombee/fieldfill/pkg/llm"
)

const (
	// anthropicAPIBaseURL is the base URL for the Anthropic API
	anthropicAPIBaseURL = "https://api.anthropic.com/v1"

	// anthropicAPIVersion is the API version to use
	anthropicAPIVersion = "2023-06-01"

	defaultAnthropicModel     = "claude-haiku-4-5"
	defaultAnthropicMaxTokens = 2000
)

// AnthropicProvider implements the Provider interface for Anthropic's Claude models.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewAnthropic creates the anthropic provider.
func NewAnthropic(creds llm.Credentials) (llm.Provider, error) {
	if creds.APIKey == "" {
		return nil, &errors.ConfigError{
			Key:    "anthropic.api_key",
			Reason: "API key is required for Anthropic provider",
		}
	}
	client, err := newHTTPClient("anthropic", 60*time.Second)
	if err != nil {
		return nil, err
	}
	baseURL := anthropicAPIBaseURL
	if creds.BaseURL != "" {
		baseURL = strings.TrimRight(creds.BaseURL, "/")
	}
	return &AnthropicProvider{
		apiKey:     creds.APIKey,
		baseURL:    baseURL,
		model:      modelOr("", creds.Model, defaultAnthropicModel),
		httpClient: client,
	}, nil
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends a messages request. System messages are lifted into
// the top-level system field.
func (p *AnthropicProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, &errors.ValidationError{Field: "messages", Message: "completion request must have at least one message"}
	}

	apiReq := anthropicRequest{
		Model:     modelOr(req.Model, p.model, ""),
		MaxTokens: defaultAnthropicMaxTokens,
	}
	if req.MaxTokens != nil {
		apiReq.MaxTokens = *req.MaxTokens
	}
	var system []string
	for _, m := range req.Messages {
		if m.Role == llm.MessageRoleSystem {
			system = append(system, m.Content)
			continue
		}
		apiReq.Messages = append(apiReq.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	apiReq.System = strings.Join(system, "\n\n")

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}

	var apiResp anthropicResponse
	requestID, err := postJSON(ctx, p.httpClient, p.Name(), p.baseURL+"/messages", headers, apiReq, &apiResp)
	if err != nil {
		return nil, err
	}
	if len(apiResp.Content) == 0 {
		return nil, &errors.ProviderError{Provider: p.Name(), Message: "response contained no content", RequestID: requestID}
	}
	if requestID == "" {
		requestID = apiResp.ID
	}

	return &llm.CompletionResponse{
		Content:      apiResp.Content[0].Text,
		FinishReason: mapAnthropicStopReason(apiResp.StopReason),
		Model:        apiResp.Model,
		RequestID:    requestID,
		Usage: llm.TokenUsage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
			TotalTokens:  apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
	}, nil
}

func mapAnthropicStopReason(reason string) llm.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return llm.FinishReasonStop
	case "max_tokens":
		return llm.FinishReasonLength
	default:
		return llm.FinishReasonOther
	}
}
