package interpreter

// DefinedFunction is a function created by fn. Its closure is a snapshot of
// the defining scope and never observes later changes to it.
type DefinedFunction struct {
	signature FunctionSignature
	params    []string
	body      []Invocation
	closure   *VariableScope
}

func (f *DefinedFunction) Signature() FunctionSignature {
	return f.signature
}

func (f *DefinedFunction) sourceKind() string {
	return "defined"
}

func (f *DefinedFunction) Params() []string {
	return f.params
}

// parseType maps a type name written in a definition to a parameter slot
// and a return type.
func parseType(name string) (SignatureArgument, ReturnType, bool) {
	var shape DataType
	switch name {
	case "str", "string":
		shape = DataTypeString
	case "num", "number":
		shape = DataTypeNumber
	case "bool", "boolean":
		shape = DataTypeBoolean
	case "void", "unit":
		shape = DataTypeUnit
	case "list":
		shape = DataTypeList
	case "any":
		return AnyArg, ReturnsAny, true
	default:
		return SignatureArgument{}, ReturnType{}, false
	}
	return Shape(shape), Returns(shape), true
}

// buildFunction reads fn(name, returnType, (param, type)*, body+).
// Parameters are taken pairwise while both members are identifiers.
func buildFunction(args []ContextArgument, scope *VariableScope) (*DefinedFunction, error) {
	if len(args) < 2 {
		return nil, malformedError("fn: expected a name and a return type")
	}
	name, ok := rawIdent(args[0].Raw)
	if !ok {
		return nil, malformedError("fn: name must be an identifier, got %s", args[0].Raw.String())
	}
	retName, ok := rawIdent(args[1].Raw)
	if !ok {
		return nil, malformedError("fn %s: return type must be an identifier, got %s", name, args[1].Raw.String())
	}
	_, ret, ok := parseType(retName)
	if !ok {
		return nil, malformedError("fn %s: unknown type %q", name, retName)
	}

	var (
		params []string
		slots  []SignatureArgument
	)
	rest := args[2:]
	for len(rest) >= 2 {
		param, ok := rawIdent(rest[0].Raw)
		if !ok {
			break
		}
		typeName, ok := rawIdent(rest[1].Raw)
		if !ok {
			break
		}
		slot, _, ok := parseType(typeName)
		if !ok {
			return nil, malformedError("fn %s: unknown type %q for parameter %s", name, typeName, param)
		}
		params = append(params, param)
		slots = append(slots, slot)
		rest = rest[2:]
	}

	if len(rest) == 0 {
		return nil, malformedError("fn %s: missing body", name)
	}
	body := make([]Invocation, 0, len(rest))
	for _, arg := range rest {
		if arg.Raw.Type != ArgumentTypeFunction {
			return nil, malformedError("fn %s: body statement %s is not an invocation", name, arg.Raw.String())
		}
		body = append(body, *arg.Raw.Invocation)
	}

	return &DefinedFunction{
		signature: FunctionSignature{
			Name:       name,
			Args:       slots,
			ReturnType: ret,
		},
		params:  params,
		body:    body,
		closure: scope.Snapshot(),
	}, nil
}

func defineFunction(e *evaluator, scope *VariableScope, args []ContextArgument) (*Cell, error) {
	fn, err := buildFunction(args, scope)
	if err != nil {
		return nil, err
	}
	e.functions.add(fn)
	e.logger.Debug("function defined", "signature", fn.signature.String())
	return unit()
}
