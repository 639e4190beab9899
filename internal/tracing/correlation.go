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

// Package tracing provides span export setup and correlation IDs that
// tie a run's log lines, spans and outbound provider requests together.
package tracing

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// CorrelationID represents a unique identifier for tracing requests across systems.
// It uses RFC 4122 UUID format (36 characters).
type CorrelationID string

// correlationKey is the context key for storing correlation IDs.
type correlationKeyType struct{}

var correlationKey = correlationKeyType{}

// HeaderCorrelationID carries the correlation ID on outbound provider requests.
const HeaderCorrelationID = "X-Correlation-ID"

// uuidRegex validates RFC 4122 UUID format.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// NewCorrelationID generates a new unique correlation ID.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.New().String())
}

// String returns the string representation of the correlation ID.
func (c CorrelationID) String() string {
	return string(c)
}

// IsValid checks if the correlation ID is a valid UUID format.
func (c CorrelationID) IsValid() bool {
	return uuidRegex.MatchString(string(c))
}

// ForRun derives the correlation ID for an enrichment run. Run IDs are
// UUIDs already; anything else gets a fresh ID.
func ForRun(runID string) CorrelationID {
	if id := CorrelationID(runID); id.IsValid() {
		return id
	}
	return NewCorrelationID()
}

// ToContext adds the correlation ID to the context.
func ToContext(ctx context.Context, id CorrelationID) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// FromContext retrieves the correlation ID from the context.
// If no correlation ID is found, it generates a new one.
func FromContext(ctx context.Context) CorrelationID {
	if id, ok := ctx.Value(correlationKey).(CorrelationID); ok {
		return id
	}
	return NewCorrelationID()
}

// FromContextOrEmpty retrieves the correlation ID from the context.
// Returns empty string if no correlation ID is found.
func FromContextOrEmpty(ctx context.Context) CorrelationID {
	if id, ok := ctx.Value(correlationKey).(CorrelationID); ok {
		return id
	}
	return ""
}

// InjectIntoRequest adds the correlation ID to HTTP request headers.
func InjectIntoRequest(ctx context.Context, req *http.Request) {
	id := FromContextOrEmpty(ctx)
	if id != "" {
		req.Header.Set(HeaderCorrelationID, id.String())
	}
}
