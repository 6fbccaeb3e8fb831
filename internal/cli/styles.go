// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for crcafe commands.
//
// Styles are bound to a lipgloss renderer for the command's own output
// stream, so piped output and --no-color get plain text without touching
// global state.

package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles is the palette used by every command.
type styles struct {
	Title     lipgloss.Style
	Section   lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Dim       lipgloss.Style
	Separator lipgloss.Style
	Highlight lipgloss.Style
	Header    lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(colorProfile(w, color))

	return styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")), // Cyan
		Section: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")),
		Label: r.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(18),
		Value: r.NewStyle().
			Foreground(lipgloss.Color("252")),
		Success: r.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true),
		Error: r.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		Warning: r.NewStyle().
			Foreground(lipgloss.Color("214")),
		Dim: r.NewStyle().
			Foreground(lipgloss.Color("242")),
		Separator: r.NewStyle().
			Foreground(lipgloss.Color("240")),
		Highlight: r.NewStyle().
			Foreground(lipgloss.Color("82")),
		Header: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75")),
	}
}

// separator renders a horizontal rule.
func (s styles) separator(width int) string {
	if width <= 0 || width > 70 {
		width = 70
	}
	return s.Separator.Render(strings.Repeat("=", width))
}

// status renders a bracketed status tag.
func (s styles) status(status string) string {
	switch strings.ToLower(status) {
	case "ok", "yes", "available":
		return s.Success.Render("[OK]")
	case "error", "fail", "no", "sold out":
		return s.Error.Render("[" + strings.ToUpper(status) + "]")
	case "warn", "warning":
		return s.Warning.Render("[WARN]")
	default:
		return s.Dim.Render("[" + strings.ToUpper(status) + "]")
	}
}

// field renders a label/value row.
func (s styles) field(label, value string) string {
	return s.Label.Render(label) + s.Value.Render(value)
}
