package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/mango/internal/tui/theme"
)

// HelpDialog shows available keyboard shortcuts
type HelpDialog struct {
	Width  int
	Height int
}

// NewHelpDialog creates a help dialog
func NewHelpDialog() *HelpDialog {
	return &HelpDialog{
		Width:  60,
		Height: 24,
	}
}

// View renders the help dialog
func (h *HelpDialog) View() string {
	t := theme.Current

	title := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"enter", "Send message"},
		{"ctrl+c", "Quit"},
		{"ctrl+l", "Clear chat"},
		{"ctrl+p/ctrl+n", "Recall sent messages"},
		{"esc", "Cancel/Close"},
		{"page up/down", "Scroll messages"},
		{"", ""},
	}
	for _, c := range BuiltinCommands {
		shortcuts = append(shortcuts, struct {
			key  string
			desc string
		}{c.Name, c.Description})
	}

	var content string
	for _, s := range shortcuts {
		if s.key == "" {
			content += "\n"
			continue
		}

		key := lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true).
			Width(15).
			Render(s.key)

		desc := lipgloss.NewStyle().
			Foreground(t.Text).
			Render(s.desc)

		content += key + desc + "\n"
	}

	footer := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Render("\nPress any key to close")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(h.Width)

	return box.Render(title + "\n\n" + content + footer)
}

// PlaceOverlay places the dialog centered on the screen
func PlaceOverlay(overlay string, bgWidth, bgHeight int) string {
	return lipgloss.Place(
		bgWidth,
		bgHeight,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(theme.Current.Background),
	)
}
