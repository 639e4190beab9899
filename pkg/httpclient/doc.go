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

// Package httpclient builds the HTTP clients used by provider adapters.
//
// Clients come with:
//   - A total request timeout
//   - Request logging with sanitized URLs (sensitive parameters redacted)
//   - User-Agent header injection
//   - Correlation ID propagation from the request context
//   - TLS 1.2 minimum and connection pooling
//
// # Usage
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Timeout = 60 * time.Second
//	client, err := httpclient.New(cfg)
//
// # Retries
//
// Clients never retry. A failed provider call surfaces to the enrichment
// worker, which classifies it and retries the whole record after its own
// backoff. Retrying here as well would multiply provider calls for a
// single record.
//
// # Observability
//
// Requests are logged via log/slog at debug level, or warn level for
// 4xx/5xx responses and transport errors. Authorization headers and
// request bodies are never logged.
package httpclient
