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

// Package metrics exposes enrichment and provider metrics in
// Prometheus format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tombee/fieldfill/pkg/enrich"
	"github.com/tombee/fieldfill/pkg/llm"
)

// Compile-time interface assertions.
var (
	_ enrich.MetricsCollector = (*Collector)(nil)
	_ llm.RequestRecorder     = (*Collector)(nil)
)

// Collector records engine and provider metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	recordsProcessed *prometheus.CounterVec
	retries          prometheus.Counter
	throttleSeconds  prometheus.Histogram
	runsFinished     *prometheus.CounterVec
	queueDepth       prometheus.Gauge

	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	providerTokens   *prometheus.CounterVec
}

// New creates a collector with a private registry that also carries the
// Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		// recordsProcessed counts records by outcome
		recordsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldfill_records_processed_total",
				Help: "Records handled by outcome (enriched, skipped, failed)",
			},
			[]string{"outcome"},
		),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldfill_record_retries_total",
			Help: "Record attempts retried after a transient network error",
		}),
		throttleSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldfill_batch_pause_seconds",
			Help:    "Planned batch pause durations",
			Buckets: []float64{1, 2, 5, 8, 10, 15, 30, 60},
		}),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldfill_runs_finished_total",
				Help: "Runs reaching a terminal status",
			},
			[]string{"status"},
		),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fieldfill_queue_waiting_runs",
			Help: "Runs waiting for the active run to finish",
		}),

		providerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldfill_provider_requests_total",
				Help: "Provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fieldfill_provider_request_duration_seconds",
				Help:    "Provider call latency",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"provider"},
		),
		providerTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldfill_provider_tokens_total",
				Help: "Tokens reported by providers, by direction",
			},
			[]string{"provider", "direction"},
		),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordProcessed implements enrich.MetricsCollector.
func (c *Collector) RecordProcessed(outcome enrich.Outcome) {
	c.recordsProcessed.WithLabelValues(string(outcome)).Inc()
}

// RecordRetry implements enrich.MetricsCollector.
func (c *Collector) RecordRetry() {
	c.retries.Inc()
}

// RecordThrottle implements enrich.MetricsCollector.
func (c *Collector) RecordThrottle(delay time.Duration) {
	c.throttleSeconds.Observe(delay.Seconds())
}

// RunFinished implements enrich.MetricsCollector.
func (c *Collector) RunFinished(status enrich.RunStatus) {
	c.runsFinished.WithLabelValues(string(status)).Inc()
}

// QueueDepth implements enrich.MetricsCollector.
func (c *Collector) QueueDepth(waiting int) {
	c.queueDepth.Set(float64(waiting))
}

// ObserveRequest implements llm.RequestRecorder.
func (c *Collector) ObserveRequest(provider, outcome string, latency time.Duration, usage llm.TokenUsage) {
	c.providerRequests.WithLabelValues(provider, outcome).Inc()
	c.providerLatency.WithLabelValues(provider).Observe(latency.Seconds())
	if usage.InputTokens > 0 {
		c.providerTokens.WithLabelValues(provider, "input").Add(float64(usage.InputTokens))
	}
	if usage.OutputTokens > 0 {
		c.providerTokens.WithLabelValues(provider, "output").Add(float64(usage.OutputTokens))
	}
}
