package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorPlaying = lipgloss.Color("#10B981")
	colorPaused  = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorBorder  = lipgloss.Color("#4B5563")
	colorText    = lipgloss.Color("#F9FAFB")
	colorMuted   = lipgloss.Color("#9CA3AF")
	colorDim     = lipgloss.Color("#6B7280")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	highlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	cursorStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(lipgloss.Color("#374151"))

	playingStyle = lipgloss.NewStyle().
			Foreground(colorPlaying)

	pausedStyle = lipgloss.NewStyle().
			Foreground(colorPaused)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	toastStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPaused)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	focusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Padding(0, 1)
)

func panelTitle(title string, focused bool) string {
	style := labelStyle
	if focused {
		style = highlightStyle
	}
	return style.Render(" " + title + " ")
}

// progressBar renders fraction (0..1) of width cells. While scrubbing the
// filled part switches to the paused colour.
func progressBar(fraction float64, width int, scrubbing bool) string {
	if width < 1 {
		width = 1
	}
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	fill := lipgloss.NewStyle().Foreground(colorPrimary)
	if scrubbing {
		fill = fill.Foreground(colorPaused)
	}
	empty := lipgloss.NewStyle().Foreground(colorBorder)

	return fill.Render(strings.Repeat("━", filled)) + empty.Render(strings.Repeat("─", width-filled))
}

func statusIcon(playing bool) string {
	if playing {
		return playingStyle.Render("▶")
	}
	return pausedStyle.Render("⏸")
}
