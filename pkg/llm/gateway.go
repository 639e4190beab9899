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

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// RequestRecorder receives one observation per provider call.
type RequestRecorder interface {
	ObserveRequest(provider, outcome string, latency time.Duration, usage TokenUsage)
}

// Gateway sends single prompts through a Provider and returns the
// trimmed response text. Each call is traced and logged.
type Gateway struct {
	provider  Provider
	logger    *slog.Logger
	tracer    trace.Tracer
	recorder  RequestRecorder
	maxTokens *int
	limiter   *rate.Limiter
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTracer sets the tracer used for llm.complete spans.
func WithTracer(tracer trace.Tracer) GatewayOption {
	return func(g *Gateway) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// WithRecorder reports each request to r.
func WithRecorder(r RequestRecorder) GatewayOption {
	return func(g *Gateway) { g.recorder = r }
}

// WithMaxTokens caps response length for providers that accept a limit.
func WithMaxTokens(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxTokens = &n
		}
	}
}

// WithRateLimit spaces calls so at most perMinute requests start in any
// minute. Values <= 0 disable the limit.
func WithRateLimit(perMinute int) GatewayOption {
	return func(g *Gateway) {
		if perMinute > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1)
		}
	}
}

// NewGateway wraps p.
func NewGateway(p Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider: p,
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/tombee/fieldfill/pkg/llm"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Provider returns the wrapped provider.
func (g *Gateway) Provider() Provider {
	return g.provider
}

// Send sends prompt as a single user message.
func (g *Gateway) Send(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	name := g.provider.Name()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	ctx, span := g.tracer.Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", name),
			attribute.Int("llm.prompt_length", len(prompt)),
		),
	)
	defer span.End()

	req := UserPrompt(prompt)
	req.MaxTokens = g.maxTokens

	resp, err := g.provider.Complete(ctx, req)
	latency := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.observe(name, "error", latency, TokenUsage{})
		g.logger.DebugContext(ctx, "provider call failed", "provider", name, "duration_ms", latency.Milliseconds(), "error", err)
		return "", err
	}

	span.SetAttributes(
		attribute.String("llm.response.model", resp.Model),
		attribute.String("llm.response.finish_reason", string(resp.FinishReason)),
		attribute.String("llm.response.request_id", resp.RequestID),
		attribute.Int("llm.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("llm.usage.output_tokens", resp.Usage.OutputTokens),
		attribute.Int("llm.response.content_length", len(resp.Content)),
	)
	span.SetStatus(codes.Ok, "")
	g.observe(name, "success", latency, resp.Usage)
	g.logger.DebugContext(ctx, "provider call",
		"provider", name,
		"model", resp.Model,
		"duration_ms", latency.Milliseconds(),
		"output_tokens", resp.Usage.OutputTokens,
	)

	return strings.TrimSpace(resp.Content), nil
}

func (g *Gateway) observe(provider, outcome string, latency time.Duration, usage TokenUsage) {
	if g.recorder != nil {
		g.recorder.ObserveRequest(provider, outcome, latency, usage)
	}
}
