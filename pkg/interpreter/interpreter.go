package interpreter

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultMaxDepth bounds nested invocations when Config.MaxDepth is zero.
const DefaultMaxDepth = 10000

type Config struct {
	Logger *slog.Logger
	Stdin  io.Reader
	Stdout io.Writer

	// MaxDepth limits invocation nesting. Zero selects DefaultMaxDepth and
	// a negative value disables the limit.
	MaxDepth int

	// Trace logs every resolved invocation at debug level.
	Trace bool
}

// Interpreter owns one function registry and one root scope. State carries
// over between calls to Execute and Evaluate.
type Interpreter struct {
	sessionID string
	logger    *slog.Logger
	functions *FunctionScope
	global    *VariableScope
	eval      *evaluator
}

func New(cfg Config) *Interpreter {
	sessionID := uuid.New().String()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.WithGroup("interpreter").With("session", sessionID)

	stdin := cfg.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	maxDepth := cfg.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}

	functions := NewFunctionScope()
	global := NewRootScope()

	return &Interpreter{
		sessionID: sessionID,
		logger:    logger,
		functions: functions,
		global:    global,
		eval: &evaluator{
			functions: functions,
			global:    global,
			stdin:     bufio.NewReader(stdin),
			stdout:    stdout,
			logger:    logger,
			trace:     cfg.Trace,
			maxDepth:  maxDepth,
		},
	}
}

func (i *Interpreter) SessionID() string {
	return i.sessionID
}

// Execute runs each top level invocation in order and stops at the first
// failure. Control-flow results of top level statements are discarded.
func (i *Interpreter) Execute(ctx context.Context, program []Invocation) error {
	i.eval.ctx = ctx
	defer func() { i.eval.ctx = nil }()

	i.logger.Debug("executing program", "statements", len(program))
	for n := range program {
		if err := i.eval.checkCancelled(); err != nil {
			return err
		}
		if _, err := i.eval.evaluate(&program[n], i.global); err != nil {
			i.logger.Debug("program failed", "statement", n+1, "error", err)
			return errors.WithMessagef(err, "statement %d", n+1)
		}
	}
	return nil
}

// Evaluate runs a single invocation against the root scope and returns its
// result cell.
func (i *Interpreter) Evaluate(ctx context.Context, inv Invocation) (*Cell, error) {
	i.eval.ctx = ctx
	defer func() { i.eval.ctx = nil }()

	if err := i.eval.checkCancelled(); err != nil {
		return nil, err
	}
	return i.eval.evaluate(&inv, i.global)
}

// Lookup returns the cell bound to name in the root scope.
func (i *Interpreter) Lookup(name string) (*Cell, bool) {
	return i.global.Get(name)
}

// Variable is Lookup reporting a missing name as a lookup error.
func (i *Interpreter) Variable(name string) (*Cell, error) {
	return i.global.Lookup(name)
}

// Variables lists the names bound in the root scope.
func (i *Interpreter) Variables() []string {
	return i.global.Names()
}

// Functions returns the signatures of every function created with fn.
func (i *Interpreter) Functions() []FunctionSignature {
	defined := i.functions.Defined()
	signatures := make([]FunctionSignature, len(defined))
	for n, fn := range defined {
		signatures[n] = fn.Signature()
	}
	return signatures
}

// Execute runs program against a fresh interpreter wired to the process
// standard streams.
func Execute(program []Invocation) error {
	return New(Config{}).Execute(context.Background(), program)
}
