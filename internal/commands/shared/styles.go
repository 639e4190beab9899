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

package shared

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tombee/fieldfill/pkg/enrich"
)

var (
	// StatusOK styles success indicators
	StatusOK = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // green

	// StatusWarn styles warning indicators
	StatusWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange

	// StatusError styles error indicators
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red

	// StatusInfo styles informational text
	StatusInfo = lipgloss.NewStyle().Foreground(lipgloss.Color("39")) // blue

	// Muted styles secondary/less important text
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray

	// Bold styles emphasized text
	Bold = lipgloss.NewStyle().Bold(true)

	// Header styles section headers
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")) // blue bold

	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

const (
	SymbolOK     = "✓"
	SymbolWarn   = "⚠"
	SymbolError  = "✗"
	SymbolInfo   = "•"
	SymbolPaused = "‖"
	SymbolQueued = "…"
)

// RenderOK prefixes msg with a green check.
func RenderOK(msg string) string {
	return StatusOK.Render(SymbolOK) + " " + msg
}

// RenderWarn prefixes msg with an orange warning sign.
func RenderWarn(msg string) string {
	return StatusWarn.Render(SymbolWarn) + " " + msg
}

// RenderError prefixes msg with a red cross.
func RenderError(msg string) string {
	return StatusError.Render(SymbolError) + " " + msg
}

// RenderLabel renders secondary text.
func RenderLabel(label string) string {
	return Muted.Render(label)
}

// RenderRunStatus renders a run status with its symbol and colour.
func RenderRunStatus(status enrich.RunStatus) string {
	switch status {
	case enrich.RunStatusCompleted:
		return StatusOK.Render(SymbolOK + " " + string(status))
	case enrich.RunStatusCancelled:
		return StatusWarn.Render(SymbolWarn + " " + string(status))
	case enrich.RunStatusPaused:
		return StatusWarn.Render(SymbolPaused + " " + string(status))
	case enrich.RunStatusActive:
		return StatusInfo.Render(SymbolInfo + " " + string(status))
	default:
		return Muted.Render(SymbolQueued + " " + string(status))
	}
}

// RenderProgressBar draws a bar width cells wide for completed of total.
func RenderProgressBar(completed, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = min(width, completed*width/total)
	}
	return barFilled.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", width-filled))
}
