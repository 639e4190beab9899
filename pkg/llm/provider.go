// Package llm provides a provider-agnostic interface to text-generation
// services and the gateway that the enrichment engine sends prompts
// through.
package llm

import (
	"context"
)

// Provider defines the interface that all LLM providers must implement.
type Provider interface {
	// Name returns the unique identifier for this provider (e.g., "anthropic", "openai").
	Name() string

	// Complete sends a completion request and returns the full response.
	// It blocks until the provider has answered or ctx is done.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest contains the parameters of a completion request.
type CompletionRequest struct {
	// Messages is the conversation, normally a single user prompt.
	Messages []Message

	// Model overrides the provider's configured model when set.
	Model string

	// MaxTokens limits the response length. If nil, uses provider default.
	MaxTokens *int

	// Metadata contains request tracking information (run ID, record ID).
	Metadata map[string]string
}

// Message represents a single message in a conversation.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	// MessageRoleSystem indicates a system message (context, instructions).
	MessageRoleSystem MessageRole = "system"

	// MessageRoleUser indicates a message from the user.
	MessageRoleUser MessageRole = "user"

	// MessageRoleAssistant indicates a message from the LLM.
	MessageRoleAssistant MessageRole = "assistant"
)

// UserPrompt builds a request holding one user message.
func UserPrompt(prompt string) CompletionRequest {
	return CompletionRequest{
		Messages: []Message{{Role: MessageRoleUser, Content: prompt}},
	}
}

// CompletionResponse contains the response of a completion.
type CompletionResponse struct {
	// Content is the generated text response.
	Content string

	// FinishReason explains why generation stopped.
	FinishReason FinishReason

	// Usage contains token consumption information.
	Usage TokenUsage

	// Model is the actual model ID that handled this request.
	Model string

	// RequestID is the provider's identifier for this request, if any.
	RequestID string
}

// FinishReason indicates why completion generation stopped.
type FinishReason string

const (
	// FinishReasonStop indicates natural completion.
	FinishReasonStop FinishReason = "stop"

	// FinishReasonLength indicates max_tokens limit reached.
	FinishReasonLength FinishReason = "length"

	// FinishReasonContentFilter indicates content policy violation.
	FinishReasonContentFilter FinishReason = "content_filter"

	// FinishReasonOther covers provider-specific reasons.
	FinishReasonOther FinishReason = "other"
)

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
