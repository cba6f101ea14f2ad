// Package tui is the terminal chat panel. It owns the conversation, starts
// turns through the coordinator and renders their streamed replies.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/mango/internal/bridge"
	"github.com/simonyos/mango/internal/chat"
	"github.com/simonyos/mango/internal/logging"
	"github.com/simonyos/mango/internal/page"
	"github.com/simonyos/mango/internal/settings"
	"github.com/simonyos/mango/internal/tui/components"
	"github.com/simonyos/mango/internal/tui/theme"
)

// Version is shown in the header.
var Version = "0.1.0"

const eventBuffer = 256

// Message types for Bubble Tea
type streamEventMsg struct {
	event chat.StreamEvent
}

type turnStartedMsg struct {
	err error
}

type pageMsg struct {
	url     string
	content *page.Content
	err     error
}

// Options wires the panel to the rest of the app.
type Options struct {
	Coordinator *chat.Coordinator
	Store       *settings.Store
	Messenger   bridge.Messenger // answers page requests; nil disables /summarize
	Link        string           // shown in the header
	Logger      *slog.Logger

	// Clipboard receives /copy output; nil uses the system clipboard.
	Clipboard func(text string) error
}

// Model is the main TUI model
type Model struct {
	ctx       context.Context
	coord     *chat.Coordinator
	store     *settings.Store
	messenger bridge.Messenger
	conv      *chat.Conversation
	events    chan chat.StreamEvent
	log       *slog.Logger
	copyText  func(string) error

	// Components
	header      *components.Header
	messages    *components.Messages
	editor      *components.Editor
	status      *components.Status
	help        *components.HelpDialog
	suggestions *components.Suggestions
	spinner     spinner.Model

	// State
	width    int
	height   int
	ready    bool
	showHelp bool
	fetching bool
}

// New creates the panel. Turns started from it live as long as ctx.
func New(ctx context.Context, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	link := opts.Link
	if link == "" {
		link = "local"
	}

	copyText := opts.Clipboard
	if copyText == nil {
		copyText = clipboard.WriteAll
	}

	m := Model{
		ctx:         ctx,
		coord:       opts.Coordinator,
		store:       opts.Store,
		messenger:   opts.Messenger,
		conv:        chat.NewConversation(),
		events:      make(chan chat.StreamEvent, eventBuffer),
		log:         logging.OrDiscard(opts.Logger),
		copyText:    copyText,
		header:      components.NewHeader(80, Version, link),
		status:      components.NewStatus(80),
		help:        components.NewHelpDialog(),
		suggestions: components.NewSuggestions(),
		spinner:     sp,
	}
	m.refreshSelections()
	return m
}

// welcomeMessage returns the initial welcome content
func welcomeMessage() string {
	t := theme.Current
	var sb strings.Builder

	logo := lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	sb.WriteString("\n" + logo.Render("   🥭 Mango") + "\n\n")

	tagline := lipgloss.NewStyle().Foreground(t.Text).Bold(true)
	sb.WriteString(tagline.Render("   Chat with your favourite models, hosted or local") + "\n\n")

	sep := lipgloss.NewStyle().Foreground(t.Border)
	sb.WriteString(sep.Render("   "+strings.Repeat("─", 40)) + "\n\n")

	tipStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	iconStyle := lipgloss.NewStyle().Foreground(t.Accent)
	tips := []struct {
		icon string
		text string
	}{
		{"💬", "Type a question and press Enter"},
		{"📄", "/summarize <url> to digest a page"},
		{"🔀", "/models and /model <id> to switch models"},
		{"📝", "/prompts and /prompt <id> to change the assistant's voice"},
	}
	for _, tip := range tips {
		sb.WriteString("   " + iconStyle.Render(tip.icon) + " " + tipStyle.Render(tip.text) + "\n")
	}

	hint := lipgloss.NewStyle().Foreground(t.TextMuted).Italic(true)
	sb.WriteString("\n" + hint.Render("   Type /help for commands • Enter to send") + "\n")
	return sb.String()
}

// Conversation exposes the panel's conversation.
func (m Model) Conversation() *chat.Conversation {
	return m.conv
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.waitForEvent())
}

// sink is handed to the coordinator. Events are applied on the UI goroutine.
func (m Model) sink(ev chat.StreamEvent) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return streamEventMsg{event: ev}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) startTurn() tea.Cmd {
	return func() tea.Msg {
		return turnStartedMsg{err: m.coord.StartTurn(m.ctx, m.conv, m.sink)}
	}
}

func (m Model) fetchPage(url string) tea.Cmd {
	return func() tea.Msg {
		c, err := bridge.FetchPage(m.ctx, m.messenger, url)
		return pageMsg{url: url, content: c, err: err}
	}
}

func (m Model) streaming() bool {
	return m.conv.InFlight() || m.fetching
}

func (m *Model) refreshTurns() {
	if m.messages != nil {
		m.messages.SetTurns(m.conv.Turns())
	}
	m.status.SetStreaming(m.streaming())
	if m.editor != nil {
		m.editor.SetStreaming(m.streaming())
	}
}

func (m *Model) notice(role, content string) {
	if m.messages != nil {
		m.messages.AddNotice(role, content)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "ctrl+?", "ctrl+h":
			m.showHelp = !m.showHelp
			return m, nil

		case "ctrl+l":
			return m.clear()

		case "ctrl+p", "ctrl+n":
			if m.editor != nil {
				if msg.String() == "ctrl+p" {
					m.editor.Previous()
				} else {
					m.editor.Next()
				}
				m.suggestions.Hide()
			}
			return m, nil

		case "esc":
			if m.suggestions.IsVisible() {
				m.suggestions.Hide()
			}
			return m, nil

		case "tab":
			if m.suggestions.IsVisible() {
				if selected := m.suggestions.GetSelected(); selected != "" {
					m.editor.SetValue(selected + " ")
					m.suggestions.Hide()
				}
				return m, nil
			}

		case "up":
			if m.suggestions.IsVisible() {
				m.suggestions.MoveUp()
				return m, nil
			}

		case "down":
			if m.suggestions.IsVisible() {
				m.suggestions.MoveDown()
				return m, nil
			}

		case "enter":
			if m.editor == nil {
				return m, nil
			}
			input := strings.TrimSpace(m.editor.Value())
			if m.suggestions.IsVisible() && !strings.Contains(input, " ") {
				if selected := m.suggestions.GetSelected(); selected != "" {
					input = selected
				}
			}
			if input == "" {
				return m, nil
			}
			m.editor.Remember(input)
			m.editor.Reset()
			m.suggestions.Hide()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m.submit(input)

		case "pgup", "pgdown":
			if m.messages != nil {
				vp := m.messages.GetViewport()
				var cmd tea.Cmd
				*vp, cmd = vp.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		statusHeight := 2
		editorHeight := 5
		messagesHeight := msg.Height - headerHeight - statusHeight - editorHeight

		if !m.ready {
			m.messages = components.NewMessages(msg.Width, messagesHeight)
			m.messages.SetWelcome(welcomeMessage())
			m.messages.SetTurns(m.conv.Turns())
			m.editor = components.NewEditor(msg.Width, editorHeight)
			// Clear any garbage that may have accumulated before init
			m.editor.Reset()
			m.editor.SetStreaming(m.streaming())
			m.ready = true
		} else {
			m.messages.SetSize(msg.Width, messagesHeight)
			m.editor.SetSize(msg.Width, editorHeight)
		}

		m.header.SetWidth(msg.Width)
		m.status.SetWidth(msg.Width)

	case spinner.TickMsg:
		if m.streaming() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case streamEventMsg:
		if !m.conv.Apply(msg.event) {
			m.log.Debug("dropping event for finished turn", "turn_id", msg.event.TurnID)
		}
		m.refreshTurns()
		cmds = append(cmds, m.waitForEvent())

	case turnStartedMsg:
		if errors.Is(msg.err, chat.ErrNoActiveModel) {
			m.log.Info("no active model")
		} else if msg.err != nil {
			m.log.Warn("turn dispatch failed", "error", msg.err)
		}
		m.refreshTurns()

	case pageMsg:
		m.fetching = false
		if msg.err != nil {
			m.log.Warn("page fetch failed", "url", msg.url, "error", msg.err)
			m.notice(components.NoticeError, "Could not read "+msg.url+": "+msg.err.Error())
			m.refreshTurns()
			return m, nil
		}
		title := msg.content.Title
		if title == "" {
			title = msg.url
		}
		m.conv.AddSummary(title, msg.content.Prompt())
		m.refreshTurns()
		cmds = append(cmds, m.spinner.Tick, m.startTurn())
	}

	if m.editor != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			cmds = append(cmds, cmd)
			m.suggestions.Filter(m.editor.Value())
		}
	}

	if m.messages != nil {
		vp := m.messages.GetViewport()
		var cmd tea.Cmd
		*vp, cmd = vp.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit appends a chat turn and starts it. A new turn waits while another
// one is still streaming.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	if m.conv.InFlight() {
		m.notice(components.NoticeSystem, "Still answering the previous message.")
		return m, nil
	}
	m.conv.Add(chat.TurnChat, text)
	m.refreshTurns()
	return m, tea.Batch(m.spinner.Tick, m.startTurn())
}

func (m Model) clear() (tea.Model, tea.Cmd) {
	m.conv.Clear()
	if m.messages != nil {
		m.messages.Clear()
	}
	m.refreshTurns()
	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	t := theme.Current

	headerHeight := 2
	statusHeight := 2
	editorHeight := 5
	messagesHeight := m.height - headerHeight - statusHeight - editorHeight

	messagesView := m.messages.View()
	if m.fetching {
		indicator := lipgloss.NewStyle().Foreground(t.Primary).Render(m.spinner.View() + " Reading page...")
		messagesView += "\n" + indicator
	}
	messagesView = lipgloss.NewStyle().Height(messagesHeight).Render(messagesView)

	sections := []string{m.header.View(), messagesView}
	if m.suggestions.IsVisible() {
		m.suggestions.SetWidth(m.width)
		sections = append(sections, m.suggestions.View())
	}
	sections = append(sections, m.editor.View(), m.status.View())
	view := lipgloss.JoinVertical(lipgloss.Left, sections...)

	if m.showHelp {
		view = components.PlaceOverlay(m.help.View(), m.width, m.height)
	}

	return lipgloss.NewStyle().
		Background(t.Background).
		Width(m.width).
		Height(m.height).
		Render(view)
}
