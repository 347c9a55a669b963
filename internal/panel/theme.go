package panel

import "github.com/charmbracelet/lipgloss"

// Theme defines all colors used by the panel.
// Use DarkTheme() or LightTheme() to get a pre-built theme,
// or construct a custom Theme.
type Theme struct {
	Primary        lipgloss.Color // title, cursor
	Secondary      lipgloss.Color // active tab, selected row
	Error          lipgloss.Color // error status
	Warning        lipgloss.Color // busy status
	Success        lipgloss.Color // done status
	Fact           lipgloss.Color // FACT badge
	Claim          lipgloss.Color // CLAIM badge
	Opinion        lipgloss.Color // OPINION badge
	Text           lipgloss.Color // primary text
	TextMuted      lipgloss.Color // subtitles, hints
	BackgroundElem lipgloss.Color // highlighted row background
	Border         lipgloss.Color // separators
}

// DarkTheme returns the default dark theme.
func DarkTheme() Theme {
	return Theme{
		Primary:        lipgloss.Color("#fab283"),
		Secondary:      lipgloss.Color("#5c9cf5"),
		Error:          lipgloss.Color("#e06c75"),
		Warning:        lipgloss.Color("#f5a742"),
		Success:        lipgloss.Color("#7fd88f"),
		Fact:           lipgloss.Color("#7fd88f"),
		Claim:          lipgloss.Color("#f5a742"),
		Opinion:        lipgloss.Color("#9d7cd8"),
		Text:           lipgloss.Color("#eeeeee"),
		TextMuted:      lipgloss.Color("#808080"),
		BackgroundElem: lipgloss.Color("#1e1e1e"),
		Border:         lipgloss.Color("#484848"),
	}
}

// LightTheme returns a light theme for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:        lipgloss.Color("#b35c00"),
		Secondary:      lipgloss.Color("#0550ae"),
		Error:          lipgloss.Color("#cf222e"),
		Warning:        lipgloss.Color("#bf8700"),
		Success:        lipgloss.Color("#116329"),
		Fact:           lipgloss.Color("#116329"),
		Claim:          lipgloss.Color("#bf8700"),
		Opinion:        lipgloss.Color("#6639ba"),
		Text:           lipgloss.Color("#1f2328"),
		TextMuted:      lipgloss.Color("#656d76"),
		BackgroundElem: lipgloss.Color("#f6f8fa"),
		Border:         lipgloss.Color("#d0d7de"),
	}
}

// ThemeByName returns a theme by name. Defaults to dark.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	default:
		return DarkTheme()
	}
}

// styles holds all lipgloss styles derived from a Theme.
type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	selected  lipgloss.Style
	tab       lipgloss.Style
	tabActive lipgloss.Style
	busy      lipgloss.Style
	done      lipgloss.Style
	err       lipgloss.Style
	dim       lipgloss.Style
	text      lipgloss.Style

	fact    lipgloss.Style
	claim   lipgloss.Style
	opinion lipgloss.Style
}

func newStyles(t Theme) styles {
	badge := lipgloss.NewStyle().Bold(true)
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		header:    lipgloss.NewStyle().Foreground(t.Border),
		selected:  lipgloss.NewStyle().Bold(true).Foreground(t.Secondary).Background(t.BackgroundElem),
		tab:       lipgloss.NewStyle().Foreground(t.TextMuted).Padding(0, 1),
		tabActive: lipgloss.NewStyle().Bold(true).Foreground(t.Secondary).Background(t.BackgroundElem).Padding(0, 1),
		busy:      lipgloss.NewStyle().Foreground(t.Warning),
		done:      lipgloss.NewStyle().Foreground(t.Success),
		err:       lipgloss.NewStyle().Foreground(t.Error),
		dim:       lipgloss.NewStyle().Foreground(t.TextMuted),
		text:      lipgloss.NewStyle().Foreground(t.Text),

		fact:    badge.Foreground(t.Fact),
		claim:   badge.Foreground(t.Claim),
		opinion: badge.Foreground(t.Opinion),
	}
}
