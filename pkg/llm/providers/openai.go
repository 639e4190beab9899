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
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"

	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenRouterModel = "google/gemini-2.0-flash-lite-001"
	defaultCustomModel     = "my-model"
)

// ChatProvider talks to any API implementing the OpenAI chat
// completions endpoint. It backs the openai, openrouter and custom
// providers.
type ChatProvider struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	headers    map[string]string
	httpClient *http.Client
}

func newChatProvider(name string, creds llm.Credentials, baseURL, model string, headers map[string]string) (*ChatProvider, error) {
	if creds.APIKey == "" {
		return nil, &errors.ConfigError{
			Key:    name + ".api_key",
			Reason: "API key is required for " + name + " provider",
		}
	}
	client, err := newHTTPClient(name, 60*time.Second)
	if err != nil {
		return nil, err
	}
	if creds.BaseURL != "" {
		baseURL = creds.BaseURL
	}
	return &ChatProvider{
		name:       name,
		apiKey:     creds.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      modelOr("", creds.Model, model),
		headers:    headers,
		httpClient: client,
	}, nil
}

// NewOpenAI creates the openai provider.
func NewOpenAI(creds llm.Credentials) (llm.Provider, error) {
	return newChatProvider("openai", creds, openAIBaseURL, defaultOpenAIModel, nil)
}

// NewOpenRouter creates the openrouter provider.
func NewOpenRouter(creds llm.Credentials) (llm.Provider, error) {
	return newChatProvider("openrouter", creds, openRouterBaseURL, defaultOpenRouterModel, map[string]string{
		"HTTP-Referer": "https://github.com/tombee/fieldfill",
		"X-Title":      "fieldfill",
	})
}

// NewCustom creates a provider for a self-hosted or third-party
// OpenAI-compatible endpoint. BaseURL is required.
func NewCustom(creds llm.Credentials) (llm.Provider, error) {
	if creds.BaseURL == "" {
		return nil, &errors.ConfigError{
			Key:    "custom.base_url",
			Reason: "base URL is required for custom provider",
		}
	}
	return newChatProvider("custom", creds, creds.BaseURL, defaultCustomModel, nil)
}

// Name returns the provider identifier.
func (p *ChatProvider) Name() string {
	return p.name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends a chat completion request.
func (p *ChatProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, &errors.ValidationError{Field: "messages", Message: "completion request must have at least one message"}
	}

	apiReq := chatRequest{
		Model:     modelOr(req.Model, p.model, ""),
		MaxTokens: req.MaxTokens,
	}
	for _, m := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	for k, v := range p.headers {
		headers[k] = v
	}

	var apiResp chatResponse
	requestID, err := postJSON(ctx, p.httpClient, p.name, p.baseURL+"/chat/completions", headers, apiReq, &apiResp)
	if err != nil {
		return nil, err
	}
	if len(apiResp.Choices) == 0 {
		return nil, &errors.ProviderError{Provider: p.name, Message: "response contained no choices", RequestID: requestID}
	}
	if requestID == "" {
		requestID = apiResp.ID
	}

	choice := apiResp.Choices[0]
	return &llm.CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: mapChatFinishReason(choice.FinishReason),
		Model:        apiResp.Model,
		RequestID:    requestID,
		Usage: llm.TokenUsage{
			InputTokens:  apiResp.Usage.PromptTokens,
			OutputTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:  apiResp.Usage.TotalTokens,
		},
	}, nil
}

func mapChatFinishReason(reason string) llm.FinishReason {
	switch reason {
	case "stop":
		return llm.FinishReasonStop
	case "length":
		return llm.FinishReasonLength
	case "content_filter":
		return llm.FinishReasonContentFilter
	default:
		return llm.FinishReasonOther
	}
}
