package tui

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/simonyos/mango/internal/chat"
	"github.com/simonyos/mango/internal/tui/components"
)

// handleCommand processes slash commands
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	cmd := strings.ToLower(parts[0])
	arg := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))

	switch cmd {
	case "/help":
		m.showHelp = true
		return m, nil

	case "/clear":
		return m.clear()

	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/summarize":
		return m.summarize(arg)

	case "/retry":
		return m.retry()

	case "/copy":
		m.copyLastReply()
		return m, nil

	case "/models":
		m.listModels()
		return m, nil

	case "/model":
		m.useModel(arg)
		return m, nil

	case "/prompts":
		m.listPrompts()
		return m, nil

	case "/prompt":
		m.usePrompt(arg)
		return m, nil

	default:
		m.notice(components.NoticeError, "Unknown command: "+cmd+"\nType /help for available commands.")
		return m, nil
	}
}

func (m Model) summarize(raw string) (tea.Model, tea.Cmd) {
	if raw == "" {
		m.notice(components.NoticeError, "Usage: /summarize <url>")
		return m, nil
	}
	if m.messenger == nil {
		m.notice(components.NoticeError, "Page reading is not available in this session.")
		return m, nil
	}
	if m.streaming() {
		m.notice(components.NoticeSystem, "Still answering the previous message.")
		return m, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if u, err := url.Parse(raw); err != nil || u.Host == "" {
		m.notice(components.NoticeError, "Not a valid URL: "+raw)
		return m, nil
	}

	m.fetching = true
	m.status.SetStreaming(true)
	return m, tea.Batch(m.spinner.Tick, m.fetchPage(raw))
}

// retry restarts the most recent turn if it failed.
func (m Model) retry() (tea.Model, tea.Cmd) {
	turns := m.conv.Turns()
	if len(turns) == 0 || turns[len(turns)-1].Status != chat.StatusError {
		m.notice(components.NoticeSystem, "Nothing to retry.")
		return m, nil
	}
	if !m.conv.Restart(turns[len(turns)-1].ID) {
		return m, nil
	}
	m.refreshTurns()
	return m, tea.Batch(m.spinner.Tick, m.startTurn())
}

// copyLastReply puts the newest finished reply on the clipboard.
func (m *Model) copyLastReply() {
	turns := m.conv.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Status != chat.StatusComplete || t.AssistantText == "" {
			continue
		}
		if err := m.copyText(t.AssistantText); err != nil {
			m.log.Warn("clipboard write failed", "error", err)
			m.notice(components.NoticeError, "Could not copy the reply: "+err.Error())
			return
		}
		n := utf8.RuneCountInString(t.AssistantText)
		m.notice(components.NoticeSystem, fmt.Sprintf("Copied the last reply (%s characters).", humanize.Comma(int64(n))))
		return
	}
	m.notice(components.NoticeSystem, "No reply to copy yet.")
}

// matches reports whether query names an item by id, id prefix or title.
func matches(query, id, title string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	return q == strings.ToLower(id) || strings.HasPrefix(strings.ToLower(id), q) || q == strings.ToLower(title)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (m *Model) listModels() {
	if m.store == nil {
		return
	}
	models, err := m.store.Models(m.ctx)
	if err != nil {
		m.notice(components.NoticeError, "Failed to read models: "+err.Error())
		return
	}
	if len(models) == 0 {
		m.notice(components.NoticeSystem, "No models configured. Add one with `mango models add`.")
		return
	}

	active, _ := m.store.ActiveModel(m.ctx)
	var sb strings.Builder
	sb.WriteString("Models:\n")
	for _, p := range models {
		marker := " "
		if active != nil && active.ID == p.ID {
			marker = "*"
		}
		fmt.Fprintf(&sb, "  %s %s  %s (%s)\n", marker, shortID(p.ID), p.DisplayTitle(), p.Kind)
	}
	sb.WriteString("\nSwitch with /model <id|title>")
	m.notice(components.NoticeSystem, sb.String())
}

func (m *Model) useModel(query string) {
	if m.store == nil {
		return
	}
	if query == "" {
		m.notice(components.NoticeError, "Usage: /model <id|title>")
		return
	}
	models, err := m.store.Models(m.ctx)
	if err != nil {
		m.notice(components.NoticeError, "Failed to read models: "+err.Error())
		return
	}
	for _, p := range models {
		if !matches(query, p.ID, p.Title) {
			continue
		}
		if _, err := m.store.UseModel(m.ctx, p.ID); err != nil {
			m.notice(components.NoticeError, "Failed to switch model: "+err.Error())
			return
		}
		m.refreshSelections()
		m.notice(components.NoticeSystem, "Now using "+p.DisplayTitle()+".")
		return
	}
	m.notice(components.NoticeError, "No model matches "+query+".")
}

func (m *Model) listPrompts() {
	if m.store == nil {
		return
	}
	prompts, err := m.store.Prompts(m.ctx)
	if err != nil {
		m.notice(components.NoticeError, "Failed to read prompts: "+err.Error())
		return
	}
	if len(prompts) == 0 {
		m.notice(components.NoticeSystem, "No prompt templates. Add one with `mango prompts add`.")
		return
	}

	active, _ := m.store.ActivePrompt(m.ctx)
	var sb strings.Builder
	sb.WriteString("Prompts:\n")
	for _, p := range prompts {
		marker := " "
		if active != nil && active.ID == p.ID {
			marker = "*"
		}
		fmt.Fprintf(&sb, "  %s %s  %s\n", marker, shortID(p.ID), p.Title)
	}
	sb.WriteString("\nSwitch with /prompt <id|title>")
	m.notice(components.NoticeSystem, sb.String())
}

func (m *Model) usePrompt(query string) {
	if m.store == nil {
		return
	}
	if query == "" {
		m.notice(components.NoticeError, "Usage: /prompt <id|title>")
		return
	}
	prompts, err := m.store.Prompts(m.ctx)
	if err != nil {
		m.notice(components.NoticeError, "Failed to read prompts: "+err.Error())
		return
	}
	for _, p := range prompts {
		if !matches(query, p.ID, p.Title) {
			continue
		}
		if _, err := m.store.UsePrompt(m.ctx, p.ID); err != nil {
			m.notice(components.NoticeError, "Failed to switch prompt: "+err.Error())
			return
		}
		m.refreshSelections()
		m.notice(components.NoticeSystem, "Using prompt "+p.Title+".")
		return
	}
	m.notice(components.NoticeError, "No prompt matches "+query+".")
}

// refreshSelections shows the active model and prompt in the chrome.
func (m *Model) refreshSelections() {
	if m.store == nil {
		return
	}
	if active, err := m.store.ActiveModel(m.ctx); err == nil && active != nil {
		m.status.SetModel(active.DisplayTitle())
	} else {
		m.status.SetModel("")
	}
	if active, err := m.store.ActivePrompt(m.ctx); err == nil && active != nil {
		m.header.SetPrompt(active.Title)
	} else {
		m.header.SetPrompt("")
	}
}
