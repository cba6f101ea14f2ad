package theme

import "github.com/charmbracelet/lipgloss"

// Theme defines all colors for the TUI
type Theme struct {
	// Primary colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	// Text colors
	Text        lipgloss.Color
	TextMuted   lipgloss.Color
	TextInverse lipgloss.Color

	// Background colors
	Background          lipgloss.Color
	BackgroundSecondary lipgloss.Color

	// Status colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// Border colors
	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	BorderMuted lipgloss.Color
}

// Current is the active theme
var Current = DefaultTheme()

// DefaultTheme returns the default mango theme (ripe orange on dark)
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#FFA62B"), // Mango flesh
		Secondary: lipgloss.Color("#6A994E"), // Leaf green
		Accent:    lipgloss.Color("#FFD166"), // Pale yellow

		Text:        lipgloss.Color("#F0F0F0"),
		TextMuted:   lipgloss.Color("#888888"),
		TextInverse: lipgloss.Color("#1a1a1a"),

		Background:          lipgloss.Color("#1a1a1a"),
		BackgroundSecondary: lipgloss.Color("#2d2d2d"),

		Success: lipgloss.Color("#10B981"),
		Warning: lipgloss.Color("#F59E0B"),
		Error:   lipgloss.Color("#EF4444"),
		Info:    lipgloss.Color("#6A994E"),

		Border:      lipgloss.Color("#3d3d3d"),
		BorderFocus: lipgloss.Color("#FFA62B"),
		BorderMuted: lipgloss.Color("#2d2d2d"),
	}
}

// TokyoNight returns a Tokyo Night inspired theme
func TokyoNight() Theme {
	return Theme{
		Primary:             lipgloss.Color("#7AA2F7"),
		Secondary:           lipgloss.Color("#9ECE6A"),
		Accent:              lipgloss.Color("#FF9E64"),
		Text:                lipgloss.Color("#C0CAF5"),
		TextMuted:           lipgloss.Color("#565F89"),
		TextInverse:         lipgloss.Color("#1A1B26"),
		Background:          lipgloss.Color("#1A1B26"),
		BackgroundSecondary: lipgloss.Color("#24283B"),
		Success:             lipgloss.Color("#9ECE6A"),
		Warning:             lipgloss.Color("#E0AF68"),
		Error:               lipgloss.Color("#F7768E"),
		Info:                lipgloss.Color("#7AA2F7"),
		Border:              lipgloss.Color("#3B4261"),
		BorderFocus:         lipgloss.Color("#7AA2F7"),
		BorderMuted:         lipgloss.Color("#24283B"),
	}
}

// ByName returns the named theme. Unknown names get the default.
func ByName(name string) Theme {
	switch name {
	case "tokyonight", "tokyo-night":
		return TokyoNight()
	default:
		return DefaultTheme()
	}
}
