package repl

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/InsulaLabs/funcs/pkg/interpreter"
	"github.com/InsulaLabs/funcs/pkg/parser"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Session is one user's interpreter plus line history. Eval must not be
// called concurrently.
type Session struct {
	sessionID string
	userID    string

	history       []string
	historyIndex  int
	currentBuffer string
	inHistoryMode bool

	pending string

	config         SessionConfig
	startTimestamp time.Time

	interp *interpreter.Interpreter
	output *bytes.Buffer
	logger *slog.Logger
}

type SessionConfig struct {
	Logger               *slog.Logger
	UserID               string
	ActiveCursorSymbol   string
	InactiveCursorSymbol string
	Prompt               string
	ContinuationPrompt   string
	HistorySize          int
	MaxDepth             int
	Trace                bool
}

// EvalResult is what one submitted line produced. Incomplete means the
// line was buffered and more input is needed.
type EvalResult struct {
	Output     string
	Value      string
	Err        error
	Incomplete bool
}

func NewSession(config SessionConfig) *Session {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Prompt == "" {
		config.Prompt = "funcs> "
	}
	if config.ContinuationPrompt == "" {
		config.ContinuationPrompt = strings.Repeat(".", len(strings.TrimRight(config.Prompt, " "))) + " "
	}
	if config.ActiveCursorSymbol == "" {
		config.ActiveCursorSymbol = "█"
	}
	if config.InactiveCursorSymbol == "" {
		config.InactiveCursorSymbol = " "
	}

	sessionID := uuid.New().String()
	logger := config.Logger.WithGroup("repl").With("session", sessionID, "user", config.UserID)

	output := &bytes.Buffer{}
	interp := interpreter.New(interpreter.Config{
		Logger:   logger,
		Stdin:    strings.NewReader(""),
		Stdout:   output,
		MaxDepth: config.MaxDepth,
		Trace:    config.Trace,
	})

	return &Session{
		sessionID:      sessionID,
		userID:         config.UserID,
		history:        []string{},
		historyIndex:   -1,
		config:         config,
		startTimestamp: time.Now(),
		interp:         interp,
		output:         output,
		logger:         logger,
	}
}

// Eval parses line, joined to any buffered incomplete input, and runs it.
func (s *Session) Eval(ctx context.Context, line string) EvalResult {
	src := s.pending + line

	if name := strings.TrimSpace(src); isIdentifier(name) {
		s.pending = ""
		cell, err := s.interp.Variable(name)
		if err != nil {
			return EvalResult{Err: err}
		}
		return EvalResult{Value: cell.String()}
	}

	program, err := parser.Parse(src)
	if errors.Is(err, parser.ErrIncomplete) {
		s.pending = src + "\n"
		return EvalResult{Incomplete: true}
	}
	s.pending = ""
	if err != nil {
		return EvalResult{Err: err}
	}

	s.output.Reset()
	var last *interpreter.Cell
	for _, inv := range program {
		cell, err := s.interp.Evaluate(ctx, inv)
		if err != nil {
			s.logger.Debug("evaluation failed", "error", err)
			return EvalResult{Output: s.output.String(), Err: err}
		}
		last = cell
	}

	result := EvalResult{Output: s.output.String()}
	if last != nil && last.Type() != interpreter.DataTypeUnit && last.Type() != interpreter.DataTypeControlFlow {
		result.Value = last.String()
	}
	return result
}

// Reset drops any buffered incomplete input.
func (s *Session) Reset() {
	s.pending = ""
}

func (s *Session) AddToHistory(cmd string) {
	if cmd == "" {
		return
	}
	s.history = append(s.history, cmd)
	if limit := s.config.HistorySize; limit > 0 && len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
	s.historyIndex = len(s.history)
	s.inHistoryMode = false
}

func (s *Session) StartHistoryNavigation(currentBuffer string) {
	if !s.inHistoryMode {
		s.currentBuffer = currentBuffer
		s.inHistoryMode = true
		s.historyIndex = len(s.history)
	}
}

func (s *Session) IsInHistoryMode() bool {
	return s.inHistoryMode
}

func (s *Session) NavigateHistory(up bool) string {
	if len(s.history) == 0 {
		return ""
	}

	if up {
		if s.historyIndex > 0 {
			s.historyIndex--
		}
		return s.history[s.historyIndex]
	}

	if s.historyIndex < len(s.history)-1 {
		s.historyIndex++
		return s.history[s.historyIndex]
	}
	s.historyIndex = len(s.history)
	s.inHistoryMode = false
	return s.currentBuffer
}

func (s *Session) GetHistory() []string {
	return s.history
}

func (s *Session) GetSessionID() string {
	return s.sessionID
}

func (s *Session) GetUserID() string {
	return s.userID
}

func (s *Session) GetPrompt() string {
	return s.config.Prompt
}

func (s *Session) GetContinuationPrompt() string {
	return s.config.ContinuationPrompt
}

func (s *Session) GetActiveCursorSymbol() string {
	return s.config.ActiveCursorSymbol
}

func (s *Session) GetInactiveCursorSymbol() string {
	return s.config.InactiveCursorSymbol
}

func (s *Session) UserUptime() time.Duration {
	return time.Since(s.startTimestamp)
}

func (s *Session) BuildHelpText() string {
	var b strings.Builder

	b.WriteString("Available Commands:\n\n")
	b.WriteString("  exit  - Exit the session\n")
	b.WriteString("  help  - Display this help message\n")
	b.WriteString("  vars  - List variables in the root scope\n")
	b.WriteString("  funcs - List functions defined with fn\n\n")
	b.WriteString("Anything else is evaluated, e.g. println(+(1, 2)).\n")
	b.WriteString("Unfinished invocations continue on the next line.\n")
	b.WriteString("Ctrl+C stops a running evaluation.\n")

	return b.String()
}

func (s *Session) BuildVariablesText() string {
	var b strings.Builder
	for _, name := range s.interp.Variables() {
		cell, _ := s.interp.Lookup(name)
		fmt.Fprintf(&b, "%s = %s\n", name, cell.String())
	}
	return b.String()
}

func (s *Session) BuildFunctionsText() string {
	signatures := s.interp.Functions()
	if len(signatures) == 0 {
		return "No functions defined.\n"
	}
	var b strings.Builder
	for _, sig := range signatures {
		b.WriteString(sig.String())
		b.WriteString("\n")
	}
	return b.String()
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
