package repl

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const headerText = "funcs REPL\nType 'help' for available commands.\nType 'exit' or press Ctrl+D to quit.\n"

type tickMsg time.Time

type evalResultMsg struct {
	result EvalResult
}

type commandOutputMsg struct {
	output string
	isErr  bool
}

type displayEntryType int

const (
	displayEntryCommand displayEntryType = iota
	displayEntryContinuation
	displayEntryOutput
	displayEntryValue
)

type displayEntry struct {
	entryType displayEntryType
	content   string
	isErr     bool
}

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

type Model struct {
	session    *Session
	buffer     string
	cursor     int
	quitting   bool
	cursorOn   bool
	busy       bool
	continuing bool
	cancel     context.CancelFunc

	viewport       viewport.Model
	displayHistory []displayEntry

	ctx context.Context
}

func New(ctx context.Context, config SessionConfig) Model {
	vp := viewport.New(80, 20)
	return Model{
		session:  NewSession(config),
		ctx:      ctx,
		cursorOn: true,
		viewport: vp,
	}
}

func (m Model) Session() *Session {
	return m.session
}

func tick() tea.Cmd {
	return tea.Tick(time.Millisecond*500, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-lipgloss.Height(headerText)-2, 1)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		m.cursorOn = !m.cursorOn
		return m, tick()
	case evalResultMsg:
		m.busy = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.continuing = msg.result.Incomplete
		m.appendResult(msg.result)
		return m, nil
	case commandOutputMsg:
		m.append(displayEntry{entryType: displayEntryOutput, content: msg.output, isErr: msg.isErr})
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.busy {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		if m.buffer != "" || m.continuing {
			m.append(displayEntry{entryType: displayEntryCommand, content: m.buffer + "^C"})
		}
		m.session.Reset()
		m.continuing = false
		m.buffer = ""
		m.cursor = 0
		return m, nil
	case tea.KeyCtrlD:
		if m.cancel != nil {
			m.cancel()
		}
		m.quitting = true
		return m, tea.Quit
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.busy {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyBackspace:
		if m.cursor > 0 {
			m.buffer = m.buffer[:m.cursor-1] + m.buffer[m.cursor:]
			m.cursor--
		}
	case tea.KeyLeft:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyRight:
		if m.cursor < len(m.buffer) {
			m.cursor++
		}
	case tea.KeyUp:
		m.session.StartHistoryNavigation(m.buffer)
		if historyCmd := m.session.NavigateHistory(true); historyCmd != "" || m.session.IsInHistoryMode() {
			m.buffer = historyCmd
			m.cursor = len(m.buffer)
		}
	case tea.KeyDown:
		if m.session.IsInHistoryMode() {
			m.buffer = m.session.NavigateHistory(false)
			m.cursor = len(m.buffer)
		}
	case tea.KeySpace:
		m.insert(" ")
	case tea.KeyRunes:
		text := string(msg.Runes)
		text = strings.ReplaceAll(text, "\r", "")
		text = strings.ReplaceAll(text, "\n", " ")
		text = strings.ReplaceAll(text, "\t", " ")
		m.insert(text)
	}
	return m, nil
}

func (m *Model) insert(text string) {
	m.buffer = m.buffer[:m.cursor] + text + m.buffer[m.cursor:]
	m.cursor += len(text)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := m.buffer
	m.buffer = ""
	m.cursor = 0

	entryType := displayEntryCommand
	if m.continuing {
		entryType = displayEntryContinuation
	}
	m.append(displayEntry{entryType: entryType, content: line})

	command := strings.TrimSpace(line)
	if command == "" && !m.continuing {
		return m, nil
	}
	m.session.AddToHistory(command)

	if !m.continuing {
		switch command {
		case "exit", "quit":
			m.quitting = true
			return m, tea.Quit
		case "help":
			return m, output(m.session.BuildHelpText(), false)
		case "vars":
			return m, output(m.session.BuildVariablesText(), false)
		case "funcs":
			return m, output(m.session.BuildFunctionsText(), false)
		}
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.busy = true
	session := m.session
	return m, func() tea.Msg {
		return evalResultMsg{result: session.Eval(ctx, line)}
	}
}

func output(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return commandOutputMsg{output: text, isErr: isErr}
	}
}

func (m *Model) appendResult(result EvalResult) {
	if result.Output != "" {
		m.displayHistory = append(m.displayHistory, displayEntry{entryType: displayEntryOutput, content: result.Output})
	}
	if result.Value != "" {
		m.displayHistory = append(m.displayHistory, displayEntry{entryType: displayEntryValue, content: result.Value})
	}
	if result.Err != nil {
		m.displayHistory = append(m.displayHistory, displayEntry{entryType: displayEntryOutput, content: "error: " + result.Err.Error(), isErr: true})
	}
	m.refresh()
}

func (m *Model) append(entry displayEntry) {
	m.displayHistory = append(m.displayHistory, entry)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	var b strings.Builder
	for _, entry := range m.displayHistory {
		switch entry.entryType {
		case displayEntryCommand:
			b.WriteString(promptStyle.Render(m.session.GetPrompt()))
			b.WriteString(entry.content)
		case displayEntryContinuation:
			b.WriteString(promptStyle.Render(m.session.GetContinuationPrompt()))
			b.WriteString(entry.content)
		case displayEntryValue:
			b.WriteString(valueStyle.Render("= " + entry.content))
		case displayEntryOutput:
			content := strings.TrimSuffix(entry.content, "\n")
			if entry.isErr {
				content = errorStyle.Render(content)
			}
			b.WriteString(content)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render(headerText))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.busy {
		b.WriteString("running... (Ctrl+C to stop)\n")
		return b.String()
	}

	prompt := m.session.GetPrompt()
	if m.continuing {
		prompt = m.session.GetContinuationPrompt()
	}
	b.WriteString(promptStyle.Render(prompt))
	b.WriteString(m.buffer[:m.cursor])
	if m.cursorOn {
		b.WriteString(m.session.GetActiveCursorSymbol())
	} else {
		b.WriteString(m.session.GetInactiveCursorSymbol())
	}
	b.WriteString(m.buffer[m.cursor:])
	b.WriteString("\n")

	return b.String()
}
