package interpreter

import (
	"strings"
)

// resolve returns the first registered function that accepts inv's
// arguments. Arguments that had to be evaluated to decide are stored in
// cache, indexed by position, and must be reused by the caller.
func (e *evaluator) resolve(inv *Invocation, scope *VariableScope, cache []*Cell) (FunctionSource, error) {
	memo := predictions{}
	for _, candidate := range e.functions.Candidates(inv.Name) {
		ok, err := e.accepts(candidate.Signature(), inv.Args, scope, cache, memo)
		if err != nil {
			return nil, err
		}
		if ok {
			return candidate, nil
		}
	}
	return nil, e.notFound(inv, scope, cache, memo)
}

type prediction struct {
	ret ReturnType
	ok  bool
}

// predictions memoizes predict for nested invocations while one call is
// being resolved. It is cleared whenever an argument is forced, since
// evaluation can rebind variables.
type predictions map[*Invocation]prediction

func (e *evaluator) accepts(sig FunctionSignature, args []Argument, scope *VariableScope, cache []*Cell, memo predictions) (bool, error) {
	if !sig.acceptsArity(len(args)) {
		return false, nil
	}
	for i, arg := range args {
		slot := sig.slot(i)
		if slot.Kind != SignatureShape {
			continue
		}
		shape, known := e.shapeOf(arg, scope, cache[i], memo)
		if !known {
			if err := e.force(sig, args, scope, cache, i); err != nil {
				return false, err
			}
			clear(memo)
			shape = cache[i].Type()
		}
		if shape != slot.Shape {
			return false, nil
		}
	}
	return true, nil
}

// force evaluates position upto into cache, first evaluating every earlier
// position sig would evaluate so that side effects keep source order.
func (e *evaluator) force(sig FunctionSignature, args []Argument, scope *VariableScope, cache []*Cell, upto int) error {
	for i := 0; i <= upto; i++ {
		if cache[i] != nil || sig.slot(i).Kind == SignatureRaw {
			continue
		}
		cell, err := e.evaluateArgument(args[i], scope)
		if err != nil {
			return err
		}
		cache[i] = cell
	}
	return nil
}

// shapeOf determines an argument's shape without evaluating it. known is
// false when only evaluation can tell.
func (e *evaluator) shapeOf(arg Argument, scope *VariableScope, cached *Cell, memo predictions) (shape DataType, known bool) {
	if cached != nil {
		return cached.Type(), true
	}
	switch arg.Type {
	case ArgumentTypeData:
		return arg.Data.Type, true
	case ArgumentTypeIdent:
		cell, ok := scope.Get(arg.Ident)
		if !ok {
			return "", false
		}
		return cell.Type(), true
	case ArgumentTypeFunction:
		ret, ok := e.predict(arg.Invocation, scope, memo)
		if !ok || ret.Any {
			return "", false
		}
		return ret.Shape, true
	}
	return "", false
}

// predict resolves inv using declared return types only. ok is false when
// the winning candidate cannot be decided without evaluating something.
func (e *evaluator) predict(inv *Invocation, scope *VariableScope, memo predictions) (ReturnType, bool) {
	if p, ok := memo[inv]; ok {
		return p.ret, p.ok
	}
	ret, ok := e.predictUncached(inv, scope, memo)
	memo[inv] = prediction{ret: ret, ok: ok}
	return ret, ok
}

func (e *evaluator) predictUncached(inv *Invocation, scope *VariableScope, memo predictions) (ReturnType, bool) {
	for _, candidate := range e.functions.Candidates(inv.Name) {
		sig := candidate.Signature()
		if !sig.acceptsArity(len(inv.Args)) {
			continue
		}
		matched := true
		for i, arg := range inv.Args {
			slot := sig.slot(i)
			if slot.Kind != SignatureShape {
				continue
			}
			shape, known := e.shapeOf(arg, scope, nil, memo)
			if !known {
				return ReturnType{}, false
			}
			if shape != slot.Shape {
				matched = false
				break
			}
		}
		if matched {
			return sig.ReturnType, true
		}
	}
	return ReturnType{}, false
}

func (e *evaluator) notFound(inv *Invocation, scope *VariableScope, cache []*Cell, memo predictions) error {
	shapes := make([]string, len(inv.Args))
	for i, arg := range inv.Args {
		if shape, ok := e.shapeOf(arg, scope, cache[i], memo); ok {
			shapes[i] = string(shape)
		} else {
			shapes[i] = "?"
		}
	}
	return newRuntimeError(ErrorKindResolution, "function not found: %s(%s)", inv.Name, strings.Join(shapes, ", "))
}
