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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tombee/fieldfill/pkg/errors"
	"github.com/tombee/fieldfill/pkg/httpclient"
)

// maxErrorBody bounds how much of an error response is kept in messages.
const maxErrorBody = 512

func newHTTPClient(provider string, timeout time.Duration) (*http.Client, error) {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout
	cfg.UserAgent = "fieldfill-" + provider + "/1.0"
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, nil
}

// apiError is the error envelope shared by the OpenAI, Anthropic and
// Gemini APIs.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Status  string `json:"status"`
	} `json:"error"`
}

// postJSON sends body as JSON to url and decodes a 200 response into
// out. Every failure is returned as a ProviderError. It returns the
// provider's request ID when the response carries one.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &errors.ProviderError{Provider: provider, Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &errors.ProviderError{Provider: provider, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &errors.ProviderError{Provider: provider, Message: fmt.Sprintf("request failed: %v", err), Cause: err}
	}
	defer resp.Body.Close()

	requestID := resp.Header.Get("x-request-id")
	if requestID == "" {
		requestID = resp.Header.Get("request-id")
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return requestID, &errors.ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read response: %v", err),
			RequestID:  requestID,
			Cause:      err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return requestID, &errors.ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, respBody),
			RequestID:  requestID,
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return requestID, &errors.ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to parse response: %v", err),
			RequestID:  requestID,
		}
	}
	return requestID, nil
}

func errorMessage(status int, body []byte) string {
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Sprintf("API request failed with status %d: %s", status, text)
}

func modelOr(requested, configured, fallback string) string {
	switch {
	case requested != "":
		return requested
	case configured != "":
		return configured
	default:
		return fallback
	}
}
