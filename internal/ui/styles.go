// Package ui provides terminal styling for spy CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorGood = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorBad = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

var (
	GoodStyle   = lipgloss.NewStyle().Foreground(ColorGood)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	BadStyle    = lipgloss.NewStyle().Foreground(ColorBad)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	AliasStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorMuted)
)

// levelStyles maps issue severity levels to their display style.
var levelStyles = map[string]lipgloss.Style{
	"fatal":   BadStyle,
	"error":   BadStyle,
	"warning": WarnStyle,
	"info":    AccentStyle,
	"debug":   MutedStyle,
}

func init() {
	// Respect NO_COLOR and non-TTY output.
	if os.Getenv("NO_COLOR") != "" || termenv.EnvColorProfile() == termenv.Ascii {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// RenderLevel styles a severity level for display.
func RenderLevel(level string) string {
	if s, ok := levelStyles[level]; ok {
		return s.Render(level)
	}
	return MutedStyle.Render(level)
}

// RenderMuted renders text in the muted gray.
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderAccent renders text in the accent blue.
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderGood renders text in the success green.
func RenderGood(s string) string {
	return GoodStyle.Render(s)
}

// RenderWarn renders text in the warning yellow.
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderBad renders text in the failure red.
func RenderBad(s string) string {
	return BadStyle.Render(s)
}

// RenderHeader renders a bold section heading.
func RenderHeader(s string) string {
	return HeaderStyle.Render(s)
}
