package interpreter

// ContextArgument is what a context built-in receives for one position:
// the raw argument always, and its evaluated cell unless the slot is Raw.
type ContextArgument struct {
	Raw  Argument
	Cell *Cell
}

func (a ContextArgument) Evaluated() bool {
	return a.Cell != nil
}

type contextCall func(e *evaluator, scope *VariableScope, args []ContextArgument) (*Cell, error)

// ContextFunction is a built-in that controls when, and in which scope,
// its arguments are evaluated.
type ContextFunction struct {
	signature FunctionSignature
	call      contextCall
}

func (f *ContextFunction) Signature() FunctionSignature {
	return f.signature
}

func (f *ContextFunction) sourceKind() string {
	return "context"
}

func contextual(name string, args []SignatureArgument, repeating bool, ret ReturnType, call contextCall) *ContextFunction {
	return &ContextFunction{
		signature: FunctionSignature{
			Name:       name,
			Args:       args,
			Repeating:  repeating,
			ReturnType: ret,
		},
		call: call,
	}
}

var contextFunctions = []*ContextFunction{
	contextual("let", []SignatureArgument{Raw, AnyArg}, false, Returns(DataTypeUnit), let),
	contextual("=", []SignatureArgument{Raw, AnyArg}, false, Returns(DataTypeUnit), assign),
	contextual("if", []SignatureArgument{Shape(DataTypeBoolean), Raw}, true, ReturnsAny, ifBlock),
	contextual("while", []SignatureArgument{Raw, Raw}, true, ReturnsAny, whileLoop),
	contextual("fn", []SignatureArgument{Raw}, true, Returns(DataTypeUnit), defineFunction),
}

func rawIdent(arg Argument) (string, bool) {
	if arg.Type != ArgumentTypeIdent {
		return "", false
	}
	return arg.Ident, true
}

func let(_ *evaluator, scope *VariableScope, args []ContextArgument) (*Cell, error) {
	name, ok := rawIdent(args[0].Raw)
	if !ok {
		return nil, malformedError("let: cannot bind to %s", args[0].Raw.String())
	}
	scope.Bind(name, args[1].Cell)
	return unit()
}

// assign overwrites the bound cell in place, so every alias observes the
// new value. Lists are copied to keep a list from containing itself.
func assign(_ *evaluator, scope *VariableScope, args []ContextArgument) (*Cell, error) {
	name, ok := rawIdent(args[0].Raw)
	if !ok {
		return nil, malformedError("=: cannot assign to %s", args[0].Raw.String())
	}
	if err := scope.Assign(name, args[1].Cell.Get().Copy()); err != nil {
		return nil, err
	}
	return unit()
}

func ifBlock(e *evaluator, scope *VariableScope, args []ContextArgument) (*Cell, error) {
	if len(args) == 0 {
		return nil, argumentCountError("if", "expected a predicate")
	}
	cond, err := args[0].Cell.Get().AsBoolean()
	if err != nil {
		return nil, err
	}
	if !cond {
		return unit()
	}
	flow, err := e.runBlock(args[1:], scope.Copy())
	if err != nil {
		return nil, err
	}
	if flow != nil {
		return flow, nil
	}
	return unit()
}

// whileLoop evaluates the predicate in scope and every iteration of the
// body in a fresh copy of it.
func whileLoop(e *evaluator, scope *VariableScope, args []ContextArgument) (*Cell, error) {
	if len(args) == 0 {
		return nil, argumentCountError("while", "expected a predicate")
	}
	for {
		if err := e.checkCancelled(); err != nil {
			return nil, err
		}
		pred, err := e.evaluateArgument(args[0].Raw, scope)
		if err != nil {
			return nil, err
		}
		cond, err := pred.Get().AsBoolean()
		if err != nil {
			return nil, err
		}
		if !cond {
			return unit()
		}
		flow, err := e.runBlock(args[1:], scope.Copy())
		if err != nil {
			return nil, err
		}
		if flow == nil {
			continue
		}
		cf, _ := flow.Get().Flow()
		switch cf.Kind {
		case FlowBreak:
			return unit()
		case FlowContinue:
			continue
		default:
			return flow, nil
		}
	}
}
