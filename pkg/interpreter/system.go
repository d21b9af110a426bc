package interpreter

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type systemCall func(e *evaluator, args []*Cell) (*Cell, error)

// SystemFunction is a built-in that only ever sees evaluated arguments.
type SystemFunction struct {
	signature FunctionSignature
	call      systemCall
}

func (f *SystemFunction) Signature() FunctionSignature {
	return f.signature
}

func (f *SystemFunction) sourceKind() string {
	return "system"
}

func system(name string, args []SignatureArgument, repeating bool, ret ReturnType, call systemCall) *SystemFunction {
	return &SystemFunction{
		signature: FunctionSignature{
			Name:       name,
			Args:       args,
			Repeating:  repeating,
			ReturnType: ret,
		},
		call: call,
	}
}

var (
	slotString  = []SignatureArgument{Shape(DataTypeString)}
	slotNumber  = []SignatureArgument{Shape(DataTypeNumber)}
	slotBoolean = []SignatureArgument{Shape(DataTypeBoolean)}
	slotList    = []SignatureArgument{Shape(DataTypeList)}
	slotAny     = []SignatureArgument{AnyArg}
	slotNumbers = []SignatureArgument{Shape(DataTypeNumber), Shape(DataTypeNumber)}
)

var systemFunctions = []*SystemFunction{
	system("stdin", nil, false, Returns(DataTypeString), readLine),
	system("number", slotString, false, Returns(DataTypeNumber), parseNumber),
	system("trim", slotString, false, Returns(DataTypeString), trim),

	system("!", slotBoolean, false, Returns(DataTypeBoolean), not),
	system("&&", slotBoolean, true, Returns(DataTypeBoolean), logical(func(trues, total int) bool { return trues == total })),
	system("||", slotBoolean, true, Returns(DataTypeBoolean), logical(func(trues, _ int) bool { return trues > 0 })),
	system("^", slotBoolean, true, Returns(DataTypeBoolean), logical(func(trues, _ int) bool { return trues == 1 })),

	system("+", slotNumber, true, Returns(DataTypeNumber), arithmetic("+", func(a, b float64) float64 { return a + b })),
	system("-", slotNumber, true, Returns(DataTypeNumber), arithmetic("-", func(a, b float64) float64 { return a - b })),
	system("*", slotNumber, true, Returns(DataTypeNumber), arithmetic("*", func(a, b float64) float64 { return a * b })),
	system("/", slotNumber, true, Returns(DataTypeNumber), arithmetic("/", func(a, b float64) float64 { return a / b })),
	system("%", slotNumber, true, Returns(DataTypeNumber), arithmetic("%", math.Mod)),

	system("println", slotAny, true, Returns(DataTypeUnit), printer("\n")),
	system("print", slotAny, true, Returns(DataTypeUnit), printer("")),

	system("break", nil, false, Returns(DataTypeControlFlow), sentinel(FlowBreak)),
	system("continue", nil, false, Returns(DataTypeControlFlow), sentinel(FlowContinue)),
	system("return", slotAny, false, Returns(DataTypeControlFlow), func(_ *evaluator, args []*Cell) (*Cell, error) {
		return NewCell(NewControlFlow(FlowReturn, args[0])), nil
	}),

	system("==", []SignatureArgument{AnyArg, AnyArg}, false, Returns(DataTypeBoolean), func(_ *evaluator, args []*Cell) (*Cell, error) {
		return NewCell(NewBoolean(args[0].Get().Equal(args[1].Get()))), nil
	}),
	system(">", slotNumbers, false, Returns(DataTypeBoolean), compare(func(a, b float64) bool { return a > b })),
	system(">=", slotNumbers, false, Returns(DataTypeBoolean), compare(func(a, b float64) bool { return a >= b })),
	system("<", slotNumbers, false, Returns(DataTypeBoolean), compare(func(a, b float64) bool { return a < b })),
	system("<=", slotNumbers, false, Returns(DataTypeBoolean), compare(func(a, b float64) bool { return a <= b })),

	system("list", slotAny, true, Returns(DataTypeList), makeList),
	system("push", []SignatureArgument{Shape(DataTypeList), AnyArg}, true, Returns(DataTypeUnit), push),
	system("pop", slotList, false, ReturnsAny, pop),
	system("index", []SignatureArgument{Shape(DataTypeList), Shape(DataTypeNumber)}, false, ReturnsAny, index),
	system("length", slotList, false, Returns(DataTypeNumber), length),
}

func unit() (*Cell, error) {
	return NewCell(Unit()), nil
}

func readLine(e *evaluator, _ []*Cell) (*Cell, error) {
	line, err := e.stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, wrapRuntimeError(ErrorKindIO, err, "reading stdin")
	}
	return NewCell(NewString(line)), nil
}

func parseNumber(_ *evaluator, args []*Cell) (*Cell, error) {
	s, err := args[0].Get().AsString()
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, newRuntimeError(ErrorKindShape, "cannot parse %q as a number", s)
	}
	return NewCell(NewNumber(n)), nil
}

func trim(_ *evaluator, args []*Cell) (*Cell, error) {
	s, err := args[0].Get().AsString()
	if err != nil {
		return nil, err
	}
	return NewCell(NewString(strings.TrimSpace(s))), nil
}

func not(_ *evaluator, args []*Cell) (*Cell, error) {
	b, err := args[0].Get().AsBoolean()
	if err != nil {
		return nil, err
	}
	return NewCell(NewBoolean(!b)), nil
}

func logical(decide func(trues, total int) bool) systemCall {
	return func(_ *evaluator, args []*Cell) (*Cell, error) {
		trues := 0
		for _, arg := range args {
			b, err := arg.Get().AsBoolean()
			if err != nil {
				return nil, err
			}
			if b {
				trues++
			}
		}
		return NewCell(NewBoolean(decide(trues, len(args)))), nil
	}
}

// arithmetic folds op over the arguments from the left, starting with the
// first one.
func arithmetic(name string, op func(a, b float64) float64) systemCall {
	return func(_ *evaluator, args []*Cell) (*Cell, error) {
		if len(args) == 0 {
			return nil, argumentCountError(name, "expected at least one argument")
		}
		acc, err := args[0].Get().AsNumber()
		if err != nil {
			return nil, err
		}
		for _, arg := range args[1:] {
			n, err := arg.Get().AsNumber()
			if err != nil {
				return nil, err
			}
			acc = op(acc, n)
		}
		return NewCell(NewNumber(acc)), nil
	}
}

func compare(op func(a, b float64) bool) systemCall {
	return func(_ *evaluator, args []*Cell) (*Cell, error) {
		a, err := args[0].Get().AsNumber()
		if err != nil {
			return nil, err
		}
		b, err := args[1].Get().AsNumber()
		if err != nil {
			return nil, err
		}
		return NewCell(NewBoolean(op(a, b))), nil
	}
}

func printer(end string) systemCall {
	return func(e *evaluator, args []*Cell) (*Cell, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = arg.String()
		}
		if _, err := fmt.Fprint(e.stdout, strings.Join(parts, " ")+end); err != nil {
			return nil, wrapRuntimeError(ErrorKindIO, err, "writing stdout")
		}
		return unit()
	}
}

func sentinel(kind FlowKind) systemCall {
	return func(_ *evaluator, _ []*Cell) (*Cell, error) {
		return NewCell(NewControlFlow(kind, nil)), nil
	}
}

// makeList stores the argument cells themselves, so a variable passed in
// stays aliased with its element.
func makeList(_ *evaluator, args []*Cell) (*Cell, error) {
	elements := make([]*Cell, len(args))
	copy(elements, args)
	return NewCell(NewList(elements)), nil
}

// push appends the trailing argument cells to the list held by the first.
// An argument that would make the list contain itself is appended as a
// copy. The list cell receives a new slice so no other list shares it.
func push(_ *evaluator, args []*Cell) (*Cell, error) {
	if len(args) == 0 {
		return nil, argumentCountError("push", "expected a list")
	}
	elements, err := args[0].Get().AsList()
	if err != nil {
		return nil, err
	}
	grown := make([]*Cell, len(elements), len(elements)+len(args)-1)
	copy(grown, elements)
	for _, arg := range args[1:] {
		if arg.reaches(args[0]) {
			arg = NewCell(arg.Get().Copy())
		}
		grown = append(grown, arg)
	}
	args[0].Set(NewList(grown))
	return unit()
}

func pop(_ *evaluator, args []*Cell) (*Cell, error) {
	elements, err := args[0].Get().AsList()
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, boundsError("pop from an empty list")
	}
	last := elements[len(elements)-1]
	shrunk := make([]*Cell, len(elements)-1)
	copy(shrunk, elements)
	args[0].Set(NewList(shrunk))
	return last, nil
}

func index(_ *evaluator, args []*Cell) (*Cell, error) {
	elements, err := args[0].Get().AsList()
	if err != nil {
		return nil, err
	}
	n, err := args[1].Get().AsNumber()
	if err != nil {
		return nil, err
	}
	if math.IsNaN(n) || n < 0 || n >= float64(len(elements)) {
		return nil, boundsError("index %s out of range for list of length %d", formatNumber(n), len(elements))
	}
	return elements[int(n)], nil
}

func length(_ *evaluator, args []*Cell) (*Cell, error) {
	elements, err := args[0].Get().AsList()
	if err != nil {
		return nil, err
	}
	return NewCell(NewNumber(float64(len(elements)))), nil
}
