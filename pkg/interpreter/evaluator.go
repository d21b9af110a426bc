package interpreter

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"
)

// evaluator walks invocations against the registry it was built with. It
// is not safe for concurrent use.
type evaluator struct {
	ctx       context.Context
	functions *FunctionScope
	global    *VariableScope

	stdin  *bufio.Reader
	stdout io.Writer

	logger   *slog.Logger
	trace    bool
	maxDepth int
	depth    int
}

func (e *evaluator) evaluate(inv *Invocation, scope *VariableScope) (*Cell, error) {
	if e.maxDepth > 0 && e.depth >= e.maxDepth {
		return nil, annotate(newRuntimeError(ErrorKindResource, "maximum call depth of %d exceeded", e.maxDepth), inv)
	}
	e.depth++
	defer func() { e.depth-- }()

	cache := make([]*Cell, len(inv.Args))
	src, err := e.resolve(inv, scope, cache)
	if err != nil {
		return nil, annotate(err, inv)
	}
	if e.trace {
		e.logger.Debug("invoke", "call", inv.Name, "source", src.sourceKind(), "depth", e.depth)
	}

	result, err := e.dispatch(src, inv, scope, cache)
	if err != nil {
		return nil, annotate(err, inv)
	}
	return result, nil
}

func (e *evaluator) dispatch(src FunctionSource, inv *Invocation, scope *VariableScope, cache []*Cell) (*Cell, error) {
	switch fn := src.(type) {
	case *SystemFunction:
		args, err := e.evaluateAll(inv.Args, scope, cache)
		if err != nil {
			return nil, err
		}
		return fn.call(e, args)
	case *ContextFunction:
		args, err := e.contextArguments(fn.signature, inv.Args, scope, cache)
		if err != nil {
			return nil, err
		}
		return fn.call(e, scope, args)
	case *DefinedFunction:
		args, err := e.evaluateAll(inv.Args, scope, cache)
		if err != nil {
			return nil, err
		}
		return e.callDefined(fn, args)
	}
	return nil, newRuntimeError(ErrorKindUnknown, "unsupported function source %T", src)
}

// evaluateArgument turns one argument into a cell. Literals get a new
// cell, identifiers share the bound one.
func (e *evaluator) evaluateArgument(arg Argument, scope *VariableScope) (*Cell, error) {
	switch arg.Type {
	case ArgumentTypeData:
		return NewCell(arg.Data.Copy()), nil
	case ArgumentTypeIdent:
		return scope.Lookup(arg.Ident)
	case ArgumentTypeFunction:
		return e.evaluate(arg.Invocation, scope)
	}
	return nil, malformedError("unknown argument type %d", arg.Type)
}

func (e *evaluator) evaluateAll(args []Argument, scope *VariableScope, cache []*Cell) ([]*Cell, error) {
	cells := make([]*Cell, len(args))
	for i, arg := range args {
		if cache[i] != nil {
			cells[i] = cache[i]
			continue
		}
		cell, err := e.evaluateArgument(arg, scope)
		if err != nil {
			return nil, err
		}
		cells[i] = cell
	}
	return cells, nil
}

func (e *evaluator) contextArguments(sig FunctionSignature, args []Argument, scope *VariableScope, cache []*Cell) ([]ContextArgument, error) {
	out := make([]ContextArgument, len(args))
	for i, arg := range args {
		out[i].Raw = arg
		if sig.slot(i).Kind == SignatureRaw {
			continue
		}
		if cache[i] != nil {
			out[i].Cell = cache[i]
			continue
		}
		cell, err := e.evaluateArgument(arg, scope)
		if err != nil {
			return nil, err
		}
		out[i].Cell = cell
	}
	return out, nil
}

func (e *evaluator) callDefined(fn *DefinedFunction, args []*Cell) (*Cell, error) {
	if err := e.checkCancelled(); err != nil {
		return nil, err
	}
	scope := fn.closure.Copy()
	for i, name := range fn.params {
		scope.Bind(name, args[i])
	}
	for i := range fn.body {
		result, err := e.evaluate(&fn.body[i], scope)
		if err != nil {
			return nil, err
		}
		if flow, ok := result.Get().Flow(); ok && flow.Kind == FlowReturn {
			if flow.Value == nil {
				return NewCell(Unit()), nil
			}
			return flow.Value, nil
		}
	}
	return NewCell(Unit()), nil
}

// runBlock evaluates body in order and returns the first control-flow
// cell produced, or nil when the body ran to completion.
func (e *evaluator) runBlock(body []ContextArgument, scope *VariableScope) (*Cell, error) {
	for _, stmt := range body {
		result, err := e.evaluateArgument(stmt.Raw, scope)
		if err != nil {
			return nil, err
		}
		if _, ok := result.Get().Flow(); ok {
			return result, nil
		}
	}
	return nil, nil
}

func (e *evaluator) checkCancelled() error {
	if e.ctx == nil {
		return nil
	}
	if err := e.ctx.Err(); err != nil {
		return wrapRuntimeError(ErrorKindCancelled, err, "execution stopped")
	}
	return nil
}

// maxTraceFrames bounds how many enclosing invocation names prefix an
// error message.
const maxTraceFrames = 32

// annotate records inv on the innermost RuntimeError and prefixes the
// message with inv's name, so the message reads "in fib: in +: ...".
func annotate(err error, inv *Invocation) error {
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		return errors.WithMessagef(err, "in %s", inv.Name)
	}
	if rerr.Invocation == "" {
		rerr.Invocation = inv.String()
	}
	if rerr.frames >= maxTraceFrames {
		return err
	}
	rerr.frames++
	return errors.WithMessagef(err, "in %s", inv.Name)
}
