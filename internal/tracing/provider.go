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

package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider owns the process tracer provider.
type Provider struct {
	tp          trace.TracerProvider
	sdk         *sdktrace.TracerProvider
	closeOutput func() error
}

// Setup builds a tracer provider from cfg and installs it as the
// global provider. Callers must Shutdown it to flush pending spans.
func Setup(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return &Provider{tp: tp, closeOutput: func() error { return nil }}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exporter, closeOutput, err := newExporter(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	p, err := newSDKProvider(cfg, exporter)
	if err != nil {
		_ = closeOutput()
		return nil, err
	}
	p.closeOutput = closeOutput
	otel.SetTracerProvider(p.tp)
	return p, nil
}

// newExporter builds the exporter named by cfg.Exporter and a closer
// for any output it opened.
func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.Exporter {
	case ExporterOTLP:
		exp, err := newOTLPExporter(ctx, cfg)
		return exp, noClose, err
	case ExporterOTLPHTTP:
		exp, err := newOTLPHTTPExporter(ctx, cfg)
		return exp, noClose, err
	}

	w, closeOutput, err := cfg.openOutput()
	if err != nil {
		return nil, nil, err
	}
	exp, err := newStdoutExporter(cfg, w)
	if err != nil {
		_ = closeOutput()
		return nil, nil, err
	}
	return exp, closeOutput, nil
}

func newSDKProvider(cfg Config, exporter sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	// Empty schema URL avoids conflicts when merging with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	allOpts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(NewSampler(cfg.SampleRate)),
		sdktrace.WithBatcher(exporter),
	}, opts...)
	sdk := sdktrace.NewTracerProvider(allOpts...)
	return &Provider{tp: sdk, sdk: sdk, closeOutput: func() error { return nil }}, nil
}

// NewSampler samples root spans at rate and follows the parent's
// decision for child spans, so a record's step spans are kept or
// dropped together with it.
func NewSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns a tracer for the given instrumentation scope.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// TracerProvider exposes the underlying provider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Shutdown flushes pending spans and releases the output.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.sdk != nil {
		if err := p.sdk.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if err := p.closeOutput(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
