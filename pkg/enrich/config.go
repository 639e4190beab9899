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

import (
	"time"

	fferrors "github.com/tombee/fieldfill/pkg/errors"
)

// RunConfig controls batch throttling. It is read once when a Worker is
// created and never reloaded while the run executes.
type RunConfig struct {
	// BatchingEnabled inserts a delay after every BatchSize records.
	BatchingEnabled bool `yaml:"batching_enabled" json:"batching_enabled"`

	// BatchSize is the number of records between delays. Default: 20.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// BatchDelaySeconds is the fixed part of the delay. Default: 8.
	BatchDelaySeconds int `yaml:"batch_delay_seconds" json:"batch_delay_seconds"`

	// RandomDelayEnabled adds a uniformly random number of seconds in
	// [RandomDelayMinSeconds, RandomDelayMaxSeconds] to each delay.
	RandomDelayEnabled    bool `yaml:"random_delay_enabled" json:"random_delay_enabled"`
	RandomDelayMinSeconds int  `yaml:"random_delay_min_seconds" json:"random_delay_min_seconds"`
	RandomDelayMaxSeconds int  `yaml:"random_delay_max_seconds" json:"random_delay_max_seconds"`
}

// DefaultRunConfig returns the default throttling settings.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		BatchingEnabled:       true,
		BatchSize:             20,
		BatchDelaySeconds:     8,
		RandomDelayEnabled:    false,
		RandomDelayMinSeconds: 0,
		RandomDelayMaxSeconds: 5,
	}
}

// Validate checks value ranges.
func (c RunConfig) Validate() error {
	if c.BatchSize < 1 {
		return &fferrors.ValidationError{Field: "batch_size", Message: "must be >= 1"}
	}
	if c.BatchDelaySeconds < 0 {
		return &fferrors.ValidationError{Field: "batch_delay_seconds", Message: "must be >= 0"}
	}
	if c.RandomDelayMinSeconds < 0 || c.RandomDelayMaxSeconds < 0 {
		return &fferrors.ValidationError{Field: "random_delay", Message: "bounds must be >= 0"}
	}
	if c.RandomDelayMinSeconds > c.RandomDelayMaxSeconds {
		return &fferrors.ValidationError{
			Field:   "random_delay",
			Message: "random_delay_min_seconds must not exceed random_delay_max_seconds",
		}
	}
	return nil
}

// ThrottleBefore reports whether a batch delay precedes record index i.
func (c RunConfig) ThrottleBefore(i int) bool {
	return c.BatchingEnabled && c.BatchSize > 0 && i > 0 && i%c.BatchSize == 0
}

// Delay returns the batch delay. randInt must return a uniform integer
// in [lo, hi].
func (c RunConfig) Delay(randInt func(lo, hi int) int) time.Duration {
	seconds := c.BatchDelaySeconds
	if c.RandomDelayEnabled && randInt != nil {
		seconds += randInt(c.RandomDelayMinSeconds, c.RandomDelayMaxSeconds)
	}
	return time.Duration(seconds) * time.Second
}
