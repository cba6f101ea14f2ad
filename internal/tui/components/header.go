package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/simonyos/mango/internal/tui/theme"
)

const minLabel = 8

// Header renders the application header
type Header struct {
	Width   int
	Version string
	Link    string // where turns run: "local" or the broker URL
	Prompt  string // active prompt template title
}

// NewHeader creates a new header component
func NewHeader(width int, version, link string) *Header {
	return &Header{
		Width:   width,
		Version: version,
		Link:    link,
	}
}

// SetWidth updates the header width
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// SetPrompt shows the active prompt template
func (h *Header) SetPrompt(title string) {
	h.Prompt = title
}

// View renders the header
func (h *Header) View() string {
	t := theme.Current

	logo := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Render("🥭 Mango")

	versionStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.BackgroundSecondary).
		Padding(0, 1).
		Render(fmt.Sprintf("v%s", h.Version))

	leftPart := lipgloss.JoinHorizontal(lipgloss.Center, logo, "  ", versionStyle)

	// prompt and link share what the logo leaves, each at least minLabel cells
	room := max((h.Width-lipgloss.Width(leftPart)-8)/2, minLabel)
	prompt := runewidth.Truncate(h.Prompt, room, "…")
	link := runewidth.Truncate(h.Link, room, "…")

	var right []string
	if prompt != "" {
		right = append(right, lipgloss.NewStyle().Foreground(t.Accent).Render(prompt), "  ")
	}
	linkColor := t.Success
	if h.Link != "local" {
		linkColor = t.Info
	}
	right = append(right,
		lipgloss.NewStyle().Foreground(linkColor).Render("●"),
		" ",
		lipgloss.NewStyle().Foreground(t.TextMuted).Render(link),
	)
	rightPart := lipgloss.JoinHorizontal(lipgloss.Center, right...)

	spacing := h.Width - lipgloss.Width(leftPart) - lipgloss.Width(rightPart) - 2
	if spacing < 1 {
		spacing = 1
	}

	header := lipgloss.JoinHorizontal(
		lipgloss.Center,
		leftPart,
		lipgloss.NewStyle().Width(spacing).Render(""),
		rightPart,
	)

	separator := lipgloss.NewStyle().
		Foreground(t.Border).
		Width(h.Width).
		Render(strings.Repeat("─", h.Width))

	return header + "\n" + separator
}
