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

package run

import (
	"time"

	"github.com/tombee/fieldfill/pkg/enrich"
)

// selectionKind distinguishes --prompt from --pipeline.
type selectionKind string

const (
	kindPrompt   selectionKind = "prompt"
	kindPipeline selectionKind = "pipeline"
)

// selection is one --prompt or --pipeline occurrence.
type selection struct {
	Kind selectionKind
	Name string
}

// Plan is one run to submit: a named pipeline resolved from the library.
type Plan struct {
	Name     string          `json:"name"`
	Kind     selectionKind   `json:"kind"`
	Pipeline enrich.Pipeline `json:"steps"`
}

// Result summarises a finished run.
type Result struct {
	enrich.RunSnapshot
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Notice is the first permanent record failure, if any.
	Notice string `json:"notice,omitempty"`
}
