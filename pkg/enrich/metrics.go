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

package enrich

import "time"

// Outcome is the result of handling one record.
type Outcome string

const (
	OutcomeEnriched Outcome = "enriched"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// MetricsCollector defines the interface for recording enrichment metrics.
type MetricsCollector interface {
	RecordProcessed(outcome Outcome)
	RecordRetry()
	RecordThrottle(delay time.Duration)
	RunFinished(status RunStatus)
	QueueDepth(waiting int)
}

type nopMetrics struct{}

func (nopMetrics) RecordProcessed(Outcome)      {}
func (nopMetrics) RecordRetry()                 {}
func (nopMetrics) RecordThrottle(time.Duration) {}
func (nopMetrics) RunFinished(RunStatus)        {}
func (nopMetrics) QueueDepth(int)               {}
