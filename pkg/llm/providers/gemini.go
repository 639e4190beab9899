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
	"net/url"
	"strings"
	"time"

	"github.com/tombee/fieldfill/pkg/errors"
	"github.com/tombee/fieldfill/pkg/llm"
)

const (
	geminiAPIBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel = "gemini-2.0-flash-lite-001"
)

// GeminiProvider calls the Gemini generateContent endpoint.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGemini creates the gemini provider.
func NewGemini(creds llm.Credentials) (llm.Provider, error) {
	if creds.APIKey == "" {
		return nil, &errors.ConfigError{
			Key:    "gemini.api_key",
			Reason: "API key is required for Gemini provider",
		}
	}
	client, err := newHTTPClient("gemini", 30*time.Second)
	if err != nil {
		return nil, err
	}
	baseURL := geminiAPIBaseURL
	if creds.BaseURL != "" {
		baseURL = strings.TrimRight(creds.BaseURL, "/")
	}
	return &GeminiProvider{
		apiKey:     creds.APIKey,
		baseURL:    baseURL,
		model:      modelOr("", creds.Model, defaultGeminiModel),
		httpClient: client,
	}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// Complete sends a generateContent request. The API key travels as
// the key query parameter.
func (p *GeminiProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, &errors.ValidationError{Field: "messages", Message: "completion request must have at least one message"}
	}

	var apiReq geminiRequest
	for _, m := range req.Messages {
		switch m.Role {
		case llm.MessageRoleSystem:
			if apiReq.SystemInstruction == nil {
				apiReq.SystemInstruction = &geminiContent{}
			}
			apiReq.SystemInstruction.Parts = append(apiReq.SystemInstruction.Parts, geminiPart{Text: m.Content})
		case llm.MessageRoleAssistant:
			apiReq.Contents = append(apiReq.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			apiReq.Contents = append(apiReq.Contents, geminiContent{Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if req.MaxTokens != nil {
		apiReq.GenerationConfig = &geminiGenerationConfig{MaxOutputTokens: *req.MaxTokens}
	}

	model := modelOr(req.Model, p.model, "")
	endpoint := p.baseURL + "/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(p.apiKey)

	var apiResp geminiResponse
	requestID, err := postJSON(ctx, p.httpClient, p.Name(), endpoint, nil, apiReq, &apiResp)
	if err != nil {
		return nil, err
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return nil, &errors.ProviderError{Provider: p.Name(), Message: "response contained no candidates", RequestID: requestID}
	}

	candidate := apiResp.Candidates[0]
	if apiResp.ModelVersion != "" {
		model = apiResp.ModelVersion
	}
	return &llm.CompletionResponse{
		Content:      candidate.Content.Parts[0].Text,
		FinishReason: mapGeminiFinishReason(candidate.FinishReason),
		Model:        model,
		RequestID:    requestID,
		Usage: llm.TokenUsage{
			InputTokens:  apiResp.UsageMetadata.PromptTokenCount,
			OutputTokens: apiResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  apiResp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func mapGeminiFinishReason(reason string) llm.FinishReason {
	switch reason {
	case "STOP":
		return llm.FinishReasonStop
	case "MAX_TOKENS":
		return llm.FinishReasonLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return llm.FinishReasonContentFilter
	default:
		return llm.FinishReasonOther
	}
}
