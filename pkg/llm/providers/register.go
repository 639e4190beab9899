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

// Package providers contains the built-in LLM providers and registers
// their factories with the default llm registry.
//
// Import this package for its side effects:
//
//	import _ "github.com/tombee/fieldfill/pkg/llm/providers"
package providers

import (
	"github.com/tombee/fieldfill/pkg/llm"
)

func init() {
	llm.RegisterFactory("openai", NewOpenAI)
	llm.RegisterFactory("anthropic", NewAnthropic)
	llm.RegisterFactory("gemini", NewGemini)
	llm.RegisterFactory("openrouter", NewOpenRouter)
	llm.RegisterFactory("custom", NewCustom)
	llm.RegisterFactory("emulate", NewEmulate)
}
