package components

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/mango/internal/tui/theme"
)

const (
	idlePlaceholder      = "Ask anything, or /summarize <url>..."
	streamingPlaceholder = "Answering... type your next message, Enter sends it once the reply is done"
	maxRecall            = 50
)

// terminalReply matches OSC answers that some terminals type into the input
// before startup finishes: color replies such as "]11;rgb:1a1a/1a1a/1a1a",
// whose control bytes may already be gone, or any BEL/ST terminated reply.
var terminalReply = regexp.MustCompile(
	`\x1b?\]\d+;rgb:[0-9a-fA-F]{1,4}/[0-9a-fA-F]{1,4}/[0-9a-fA-F]{1,4}(\x07|\x1b\\)?` +
		`|\x1b?\]\d+;[^\x07\x1b]*(\x07|\x1b\\)`)

// Editor is the prompt input. While a reply streams it stays editable, so
// the next message can be drafted, but shows that Enter will wait.
type Editor struct {
	input     textarea.Model
	width     int
	height    int
	focused   bool
	streaming bool

	// sent inputs, oldest first; recallAt == len(sent) means "not recalling"
	sent     []string
	recallAt int
	draft    string
}

// NewEditor creates an editor sized for a width x height box.
func NewEditor(width, height int) *Editor {
	ta := textarea.New()
	ta.Placeholder = idlePlaceholder
	ta.Prompt = "┃ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(theme.Current.TextMuted)
	ta.Focus()

	e := &Editor{input: ta, focused: true}
	e.SetSize(width, height)
	return e
}

// SetSize fits the textarea inside the bordered box.
func (e *Editor) SetSize(width, height int) {
	e.width = width
	e.height = height
	e.input.SetWidth(max(width-6, 1))
	e.input.SetHeight(max(height-2, 1))
}

func (e *Editor) Focus() {
	e.focused = true
	e.input.Focus()
}

func (e *Editor) Blur() {
	e.focused = false
	e.input.Blur()
}

// SetStreaming switches the placeholder and border between idle and
// answering.
func (e *Editor) SetStreaming(streaming bool) {
	e.streaming = streaming
	if streaming {
		e.input.Placeholder = streamingPlaceholder
	} else {
		e.input.Placeholder = idlePlaceholder
	}
}

// Streaming reports whether the editor shows the answering state.
func (e *Editor) Streaming() bool {
	return e.streaming
}

// Placeholder returns the hint shown in an empty editor.
func (e *Editor) Placeholder() string {
	return e.input.Placeholder
}

// Value returns the trimmed input with leaked terminal replies removed.
func (e *Editor) Value() string {
	return strings.TrimSpace(stripTerminalReplies(e.input.Value()))
}

func stripTerminalReplies(s string) string {
	if !strings.Contains(s, "]") {
		return s
	}
	return strings.ReplaceAll(terminalReply.ReplaceAllString(s, ""), "\x1b", "")
}

// Reset clears the input and leaves recall mode.
func (e *Editor) Reset() {
	e.input.Reset()
	e.recallAt = len(e.sent)
	e.draft = ""
}

func (e *Editor) SetValue(value string) {
	e.input.SetValue(value)
	e.input.CursorEnd()
}

// Remember records a sent input for Previous and Next. Repeats of the last
// entry are kept once.
func (e *Editor) Remember(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if n := len(e.sent); n == 0 || e.sent[n-1] != text {
		e.sent = append(e.sent, text)
		if len(e.sent) > maxRecall {
			e.sent = e.sent[len(e.sent)-maxRecall:]
		}
	}
	e.recallAt = len(e.sent)
	e.draft = ""
}

// Previous replaces the input with the previous sent entry. The unsent draft
// is kept and comes back when Next walks past the newest entry.
func (e *Editor) Previous() bool {
	if e.recallAt == 0 {
		return false
	}
	if e.recallAt == len(e.sent) {
		e.draft = e.input.Value()
	}
	e.recallAt--
	e.SetValue(e.sent[e.recallAt])
	return true
}

// Next moves recall forward, ending at the saved draft.
func (e *Editor) Next() bool {
	if e.recallAt >= len(e.sent) {
		return false
	}
	e.recallAt++
	if e.recallAt == len(e.sent) {
		e.SetValue(e.draft)
	} else {
		e.SetValue(e.sent[e.recallAt])
	}
	return true
}

func (e *Editor) Update(msg tea.Msg) (*Editor, tea.Cmd) {
	var cmd tea.Cmd
	e.input, cmd = e.input.Update(msg)
	return e, cmd
}

func (e *Editor) View() string {
	t := theme.Current

	border := t.Border
	switch {
	case e.streaming:
		border = t.Accent
	case e.focused:
		border = t.BorderFocus
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(e.width - 2).
		Padding(0, 1).
		Render(e.input.View())
}
