package ui

import "github.com/charmbracelet/lipgloss"

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

type palette struct {
	Border, Text, TextDim, Accent, Green, Yellow, Red lipgloss.Color
}

// Tokyo Night
var darkPalette = palette{
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Red:     lipgloss.Color("#f7768e"),
}

// Tokyo Night Light
var lightPalette = palette{
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Red:     lipgloss.Color("#8c4351"),
}

// Styles holds the lipgloss styles for one theme.
type Styles struct {
	Theme  Theme
	Title  lipgloss.Style
	Box    lipgloss.Style
	Status lipgloss.Style
	Fresh  lipgloss.Style
	Error  lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles builds the styles for theme; anything but light is dark.
func NewStyles(theme Theme) Styles {
	p := darkPalette
	if theme == ThemeLight {
		p = lightPalette
	} else {
		theme = ThemeDark
	}
	return Styles{
		Theme:  theme,
		Title:  lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Box:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Border).Padding(0, 1),
		Status: lipgloss.NewStyle().Foreground(p.TextDim),
		Fresh:  lipgloss.NewStyle().Foreground(p.Green),
		Error:  lipgloss.NewStyle().Foreground(p.Red),
		Help:   lipgloss.NewStyle().Foreground(p.TextDim).Italic(true),
	}
}
