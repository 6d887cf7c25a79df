package chatcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/relay/relay"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle    = lipgloss.NewStyle().Faint(true)
)

// converseFunc runs one exchange for key.
type converseFunc func(ctx context.Context, key, text string) relay.Outcome

// replyMsg carries the result of one exchange back to the UI.
type replyMsg struct {
	outcome relay.Outcome
	reply   string
}

type model struct {
	key      string
	converse converseFunc
	outbox   *consoleDispatcher

	input    textinput.Model
	viewport viewport.Model
	lines    []string
	waiting  bool
	ready    bool
}

func newModel(key string, converse converseFunc, outbox *consoleDispatcher) model {
	input := textinput.New()
	input.Placeholder = "Type a message and press enter"
	input.CharLimit = 4096
	input.Focus()

	return model{
		key:      key,
		converse: converse,
		outbox:   outbox,
		input:    input,
		viewport: viewport.New(80, 20),
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-3, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			m.lines = append(m.lines, userStyle.Render("you")+"  "+text)
			m.refresh()
			return m, m.send(text)
		}

	case replyMsg:
		m.waiting = false
		if msg.outcome.Status != relay.StatusSuccess {
			m.lines = append(m.lines, errorStyle.Render(fmt.Sprintf("%s: %v", msg.outcome.Status, msg.outcome.Err)))
		} else {
			m.lines = append(m.lines, assistantStyle.Render("relay")+"  "+msg.reply)
		}
		m.refresh()
		return m, nil
	}

	var inputCmd, viewportCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewportCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewportCmd)
}

func (m *model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n\n"))
	m.viewport.GotoBottom()
}

func (m model) send(text string) tea.Cmd {
	key := m.key
	return func() tea.Msg {
		outcome := m.converse(context.Background(), key, text)
		reply, _ := m.outbox.Take(key)
		return replyMsg{outcome: outcome, reply: reply}
	}
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	status := statusStyle.Render("chatting as " + m.key + "  (esc to quit)")
	if m.waiting {
		status = statusStyle.Render("thinking...")
	}

	return m.viewport.View() + "\n" + m.input.View() + "\n" + status
}
