package repl

import (
	"context"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	return New(context.Background(), SessionConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		UserID: "tester",
	})
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func press(t *testing.T, m Model, key tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: key})
	return next.(Model), cmd
}

// submit presses enter and feeds the evaluation result back into the model.
func submit(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := press(t, m, tea.KeyEnter)
	if cmd == nil {
		return m
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestModelEvaluatesLine(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "println(+(40, 2))")
	assert.Equal(t, "println(+(40, 2))", m.buffer)

	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Contains(t, m.View(), "running...")

	msg := cmd()
	result, ok := msg.(evalResultMsg)
	require.True(t, ok)
	assert.Equal(t, "42\n", result.result.Output)

	next, _ := m.Update(msg)
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Empty(t, m.buffer)
	assert.Contains(t, m.renderHistory(), "42")
	assert.Equal(t, []string{"println(+(40, 2))"}, m.session.GetHistory())
}

func TestModelShowsErrors(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "nope(1)")
	m = submit(t, m)
	history := m.renderHistory()
	assert.Contains(t, history, "error: ")
	assert.Contains(t, history, "function not found: nope(number)")
}

func TestModelContinuation(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "println(")
	m = submit(t, m)
	assert.True(t, m.continuing)
	assert.Contains(t, m.View(), "......")

	m = typeText(t, m, "\"done\")")
	m = submit(t, m)
	assert.False(t, m.continuing)
	assert.Contains(t, m.renderHistory(), "done")
}

func TestModelCtrlCClearsInput(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "println(")
	m = submit(t, m)
	require.True(t, m.continuing)

	m = typeText(t, m, "1")
	m, cmd := press(t, m, tea.KeyCtrlC)
	assert.Nil(t, cmd)
	assert.False(t, m.continuing)
	assert.Empty(t, m.buffer)

	m = typeText(t, m, "println(2)")
	m = submit(t, m)
	assert.Contains(t, m.renderHistory(), "2")
}

func TestModelCtrlCCancelsRunningEvaluation(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "while(true)")
	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	require.True(t, m.busy)

	m, _ = press(t, m, tea.KeyCtrlC)
	next, _ := m.Update(cmd())
	m = next.(Model)

	assert.False(t, m.busy)
	assert.Contains(t, m.renderHistory(), "error:")
}

func TestModelEditing(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "ac")
	m, _ = press(t, m, tea.KeyLeft)
	m = typeText(t, m, "b")
	assert.Equal(t, "abc", m.buffer)

	m, _ = press(t, m, tea.KeyRight)
	m, _ = press(t, m, tea.KeyBackspace)
	assert.Equal(t, "ab", m.buffer)

	m, _ = press(t, m, tea.KeySpace)
	assert.Equal(t, "ab ", m.buffer)
	assert.Equal(t, 3, m.cursor)
}

func TestModelHistoryNavigation(t *testing.T) {
	m := newTestModel(t)
	for _, line := range []string{"println(1)", "println(2)"} {
		m = typeText(t, m, line)
		m = submit(t, m)
	}

	m = typeText(t, m, "draft")
	m, _ = press(t, m, tea.KeyUp)
	assert.Equal(t, "println(2)", m.buffer)
	m, _ = press(t, m, tea.KeyUp)
	assert.Equal(t, "println(1)", m.buffer)
	m, _ = press(t, m, tea.KeyDown)
	assert.Equal(t, "println(2)", m.buffer)
	m, _ = press(t, m, tea.KeyDown)
	assert.Equal(t, "draft", m.buffer)
}

func TestModelBuiltinCommands(t *testing.T) {
	testCases := []struct {
		command  string
		expected string
	}{
		{command: "help", expected: "Available Commands"},
		{command: "funcs", expected: "No functions defined."},
		{command: "vars", expected: "true = true"},
	}

	for _, tc := range testCases {
		t.Run(tc.command, func(t *testing.T) {
			m := newTestModel(t)
			m = typeText(t, m, tc.command)
			m = submit(t, m)
			assert.Contains(t, m.renderHistory(), tc.expected)
		})
	}
}

func TestModelQuit(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "exit")
	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Equal(t, "Goodbye!\n", m.View())

	m = newTestModel(t)
	m, cmd = press(t, m, tea.KeyCtrlD)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModelResizesViewport(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	assert.Equal(t, 120, m.viewport.Width)
	assert.Greater(t, m.viewport.Height, 0)
}
