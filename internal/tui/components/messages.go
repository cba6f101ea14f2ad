package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/mango/internal/chat"
	"github.com/simonyos/mango/internal/tui/theme"
)

// Notice roles
const (
	NoticeSystem = "system"
	NoticeError  = "error"
)

// Notice is a panel message that is not part of the conversation.
type Notice struct {
	Role    string
	Content string
	after   int // number of turns shown before it
}

// Messages is the scrollable conversation view
type Messages struct {
	viewport viewport.Model
	turns    []chat.Turn
	notices  []Notice
	renderer *glamour.TermRenderer
	width    int
	height   int
	welcome  string
}

func newRenderer(width int) *glamour.TermRenderer {
	// Use dark style explicitly to avoid terminal color queries
	r, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width-10),
	)
	return r
}

// NewMessages creates a new messages component
func NewMessages(width, height int) *Messages {
	return &Messages{
		viewport: viewport.New(width, height),
		renderer: newRenderer(width),
		width:    width,
		height:   height,
	}
}

// SetSize updates the component dimensions
func (m *Messages) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.renderer = newRenderer(width)
	m.updateContent()
}

// SetTurns replaces the conversation snapshot
func (m *Messages) SetTurns(turns []chat.Turn) {
	m.turns = turns
	m.updateContent()
}

// AddNotice shows a notice after the current turns
func (m *Messages) AddNotice(role, content string) {
	m.notices = append(m.notices, Notice{Role: role, Content: content, after: len(m.turns)})
	m.updateContent()
}

// Notices returns the notices shown so far
func (m *Messages) Notices() []Notice {
	return m.notices
}

// Clear removes all turns and notices
func (m *Messages) Clear() {
	m.turns = nil
	m.notices = nil
	m.updateContent()
}

// GetViewport returns the viewport for handling scroll input
func (m *Messages) GetViewport() *viewport.Model {
	return &m.viewport
}

// SetWelcome sets the welcome message to show when empty
func (m *Messages) SetWelcome(welcome string) {
	m.welcome = welcome
	m.updateContent()
}

func (m *Messages) markdown(s string) string {
	if m.renderer == nil {
		return s
	}
	if r, err := m.renderer.Render(s); err == nil {
		return strings.TrimSpace(r)
	}
	return s
}

// updateContent rebuilds the viewport content
func (m *Messages) updateContent() {
	var sb strings.Builder

	if len(m.turns) == 0 && len(m.notices) == 0 {
		m.viewport.SetContent(m.welcome)
		return
	}

	next := 0
	flush := func(upTo int) {
		for next < len(m.notices) && m.notices[next].after <= upTo {
			m.writeNotice(&sb, m.notices[next])
			next++
		}
	}
	for i, t := range m.turns {
		flush(i)
		m.writeTurn(&sb, t)
	}
	flush(len(m.turns))

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m *Messages) writeTurn(sb *strings.Builder, turn chat.Turn) {
	t := theme.Current
	contentWidth := m.width - 4

	bodyStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		PaddingLeft(2).
		Width(contentWidth)

	userIcon := lipgloss.NewStyle().Foreground(t.Info).Bold(true)
	userHeader := lipgloss.NewStyle().Foreground(t.Text).Bold(true)
	if turn.Kind == chat.TurnSummary {
		title := turn.Title
		if title == "" {
			title = "page"
		}
		sb.WriteString(userIcon.Render("◉") + " " + userHeader.Render("Summarize") + "\n")
		sb.WriteString(bodyStyle.Render(title) + "\n\n")
	} else {
		sb.WriteString(userIcon.Render("◉") + " " + userHeader.Render("You") + "\n")
		sb.WriteString(bodyStyle.Render(turn.UserText) + "\n\n")
	}

	if turn.Status == chat.StatusPending {
		return
	}

	brand := lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	sb.WriteString(brand.Render("🥭 Mango") + "\n")

	var body string
	if turn.AssistantText != "" {
		body = bodyStyle.Render(m.markdown(turn.AssistantText))
	}
	if turn.Status == chat.StatusStreaming {
		body += lipgloss.NewStyle().Foreground(t.Primary).Bold(true).Render("▌")
	}
	if body != "" {
		sb.WriteString(body + "\n")
	}

	if turn.Status == chat.StatusError && turn.Error != nil {
		msg := turn.Error.Message
		if turn.Error.Kind == chat.ErrorConfiguration {
			msg += " Try /models."
		} else {
			msg += " Use /retry to ask again."
		}
		errStyle := lipgloss.NewStyle().Foreground(t.Error)
		sb.WriteString("  " + errStyle.Bold(true).Render("✗") + " " + errStyle.Render(msg) + "\n")
	}
	sb.WriteString("\n")
}

func (m *Messages) writeNotice(sb *strings.Builder, n Notice) {
	t := theme.Current
	switch n.Role {
	case NoticeError:
		iconStyle := lipgloss.NewStyle().Foreground(t.Error).Bold(true)
		errStyle := lipgloss.NewStyle().Foreground(t.Error)
		sb.WriteString(iconStyle.Render("✗") + " " + errStyle.Render(n.Content) + "\n\n")
	default:
		iconStyle := lipgloss.NewStyle().Foreground(t.Info)
		sysStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Italic(true)
		sb.WriteString(iconStyle.Render("ℹ") + " " + sysStyle.Render(n.Content) + "\n\n")
	}
}

// View renders the messages
func (m *Messages) View() string {
	return m.viewport.View()
}
