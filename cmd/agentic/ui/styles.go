// Package ui provides the visual styling for the agentic CLI and shell.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Palette, taken from the theme variables generated apps are asked to use.
var (
	BgPrimary     = lipgloss.Color("#1a1a1a")
	BgSecondary   = lipgloss.Color("#2d2d2d")
	TextPrimary   = lipgloss.Color("#ffffff")
	TextSecondary = lipgloss.Color("#b0b0b0")
	AccentBlue    = lipgloss.Color("#007acc")
	AccentGreen   = lipgloss.Color("#4caf50")
	BorderColor   = lipgloss.Color("#404040")

	LightForeground = lipgloss.Color("#1a1a1a")
	LightMuted      = lipgloss.Color("#6a6a6a")

	Destructive = lipgloss.Color("#e53935")
	Warning     = lipgloss.Color("#FFC107")
)

// Theme holds the current color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Accent     lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// DarkTheme returns the dark theme.
func DarkTheme() Theme {
	return Theme{Foreground: TextPrimary, Muted: TextSecondary, Accent: AccentBlue, Border: BorderColor, IsDark: true}
}

// LightTheme returns the light theme.
func LightTheme() Theme {
	return Theme{Foreground: LightForeground, Muted: LightMuted, Accent: AccentBlue, Border: BorderColor}
}

// DetectTheme picks a theme from COLORFGBG or AGENTIC_THEME, defaulting to dark.
func DetectTheme() Theme {
	switch strings.ToLower(os.Getenv("AGENTIC_THEME")) {
	case "light":
		return LightTheme()
	case "dark":
		return DarkTheme()
	}
	// Format is "foreground;background"; 7 and 15 are light backgrounds.
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && (bg == 7 || bg == 15) {
			return LightTheme()
		}
	}
	return DarkTheme()
}

// Styles holds all the styled components.
type Styles struct {
	Theme Theme

	Header   lipgloss.Style
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	Prompt   lipgloss.Style
	Response lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Spinner  lipgloss.Style
	Badge    lipgloss.Style
	Footer   lipgloss.Style
}

// NewStyles creates the styles for theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(TextPrimary).
			Padding(0, 2).
			Bold(true),

		Title: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Prompt: lipgloss.NewStyle().
			Foreground(AccentGreen).
			Bold(true),

		Response: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(theme.Accent),

		Success: lipgloss.NewStyle().
			Foreground(AccentGreen).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Badge: lipgloss.NewStyle().
			Foreground(TextPrimary).
			Background(BgSecondary).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// RenderMarkdown renders md for the terminal, returning md unchanged when the
// renderer cannot be built.
func RenderMarkdown(md string, width int, theme Theme) string {
	style := "dark"
	if !theme.IsDark {
		style = "light"
	}
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
