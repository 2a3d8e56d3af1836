package viz

import "github.com/charmbracelet/lipgloss"

// Theme is the colour scheme of the live view.
type Theme struct {
	Name      string
	Particles lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Good      lipgloss.Color
	Warn      lipgloss.Color
	Bad       lipgloss.Color
}

var (
	ThemeCyan = Theme{
		Name:      "cyan",
		Particles: lipgloss.Color("#00ccff"),
		Accent:    lipgloss.Color("#00ffff"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#666688"),
		Good:      lipgloss.Color("#00ff88"),
		Warn:      lipgloss.Color("#ffaa00"),
		Bad:       lipgloss.Color("#ff4444"),
	}

	ThemeRetro = Theme{
		Name:      "retro",
		Particles: lipgloss.Color("#00ff00"),
		Accent:    lipgloss.Color("#88ff88"),
		Text:      lipgloss.Color("#00ff00"),
		Muted:     lipgloss.Color("#005500"),
		Good:      lipgloss.Color("#88ff88"),
		Warn:      lipgloss.Color("#ffff00"),
		Bad:       lipgloss.Color("#ff0000"),
	}

	ThemeSunset = Theme{
		Name:      "sunset",
		Particles: lipgloss.Color("#ff6b6b"),
		Accent:    lipgloss.Color("#feca57"),
		Text:      lipgloss.Color("#fff5f5"),
		Muted:     lipgloss.Color("#8b6b8c"),
		Good:      lipgloss.Color("#5fd068"),
		Warn:      lipgloss.Color("#ffc048"),
		Bad:       lipgloss.Color("#ff4757"),
	}

	Themes = []Theme{ThemeCyan, ThemeRetro, ThemeSunset}
)

// GetTheme returns a theme by name, falling back to the first one.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return Themes[0]
}

// NextTheme returns the theme after t in Themes, wrapping around.
func NextTheme(t Theme) Theme {
	for i, th := range Themes {
		if th.Name == t.Name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
