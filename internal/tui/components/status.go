package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/mango/internal/tui/theme"
)

// Status renders the status bar at the bottom
type Status struct {
	Width     int
	Model     string
	Streaming bool
	Message   string
}

// NewStatus creates a new status bar
func NewStatus(width int) *Status {
	return &Status{
		Width: width,
		Model: "no model",
	}
}

// SetWidth updates the status bar width
func (s *Status) SetWidth(width int) {
	s.Width = width
}

// SetStreaming sets the streaming state
func (s *Status) SetStreaming(streaming bool) {
	s.Streaming = streaming
}

// SetMessage sets the status message
func (s *Status) SetMessage(msg string) {
	s.Message = msg
}

// SetModel sets the model name
func (s *Status) SetModel(model string) {
	if model == "" {
		model = "no model"
	}
	s.Model = model
}

// View renders the status bar
func (s *Status) View() string {
	t := theme.Current

	hintText := "Enter to send · /help for commands · Ctrl+C to quit"
	if s.Message != "" {
		hintText = s.Message
	}
	hint := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Render(hintText)

	var rightContent string
	if s.Streaming {
		rightContent = lipgloss.NewStyle().
			Foreground(t.Primary).
			Render("● streaming...")
	} else {
		rightContent = lipgloss.NewStyle().
			Foreground(t.TextMuted).
			Background(t.BackgroundSecondary).
			Padding(0, 1).
			Render(s.Model)
	}

	spacing := s.Width - lipgloss.Width(hint) - lipgloss.Width(rightContent) - 2
	if spacing < 0 {
		spacing = 0
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		hint,
		lipgloss.NewStyle().Width(spacing).Render(""),
		rightContent,
	)
}
