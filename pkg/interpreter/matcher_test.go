package interpreter

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(functions *FunctionScope, input string) (*evaluator, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &evaluator{
		functions: functions,
		global:    NewRootScope(),
		stdin:     bufio.NewReader(strings.NewReader(input)),
		stdout:    out,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth:  DefaultMaxDepth,
	}, out
}

func resolveCall(t *testing.T, e *evaluator, scope *VariableScope, arg Argument) (FunctionSource, error) {
	t.Helper()
	require.Equal(t, ArgumentTypeFunction, arg.Type)
	cache := make([]*Cell, len(arg.Invocation.Args))
	return e.resolve(arg.Invocation, scope, cache)
}

func TestResolveBuiltins(t *testing.T) {
	testCases := []struct {
		call Argument
		kind string
	}{
		{call: Call("stdin"), kind: "system"},
		{call: Call("number", Str("1")), kind: "system"},
		{call: Call("trim", Str(" a ")), kind: "system"},
		{call: Call("!", Ident("true")), kind: "system"},
		{call: Call("&&", Ident("true"), Ident("false")), kind: "system"},
		{call: Call("||", Ident("true")), kind: "system"},
		{call: Call("^", Ident("true"), Ident("true"), Ident("false")), kind: "system"},
		{call: Call("+", Num(1), Num(2)), kind: "system"},
		{call: Call("-", Num(1)), kind: "system"},
		{call: Call("*", Num(1), Num(2), Num(3)), kind: "system"},
		{call: Call("/", Num(1), Num(2)), kind: "system"},
		{call: Call("%", Num(1), Num(2)), kind: "system"},
		{call: Call("println", Str("a"), Num(1)), kind: "system"},
		{call: Call("print"), kind: "system"},
		{call: Call("break"), kind: "system"},
		{call: Call("continue"), kind: "system"},
		{call: Call("return", Num(1)), kind: "system"},
		{call: Call("==", Num(1), Str("1")), kind: "system"},
		{call: Call(">", Num(1), Num(2)), kind: "system"},
		{call: Call(">=", Num(1), Num(2)), kind: "system"},
		{call: Call("<", Num(1), Num(2)), kind: "system"},
		{call: Call("<=", Num(1), Num(2)), kind: "system"},
		{call: Call("list", Num(1), Str("a")), kind: "system"},
		{call: Call("push", Call("list"), Num(1), Num(2)), kind: "system"},
		{call: Call("pop", Call("list")), kind: "system"},
		{call: Call("index", Call("list"), Num(0)), kind: "system"},
		{call: Call("length", Call("list")), kind: "system"},
		{call: Call("let", Ident("x"), Num(1)), kind: "context"},
		{call: Call("=", Ident("x"), Num(1)), kind: "context"},
		{call: Call("if", Call("<", Num(1), Num(2)), Call("println")), kind: "context"},
		{call: Call("while", Ident("false"), Call("println")), kind: "context"},
		{call: Call("fn", Ident("f"), Ident("void"), Call("println")), kind: "context"},
	}

	e, _ := newTestEvaluator(NewFunctionScope(), "")
	for _, tc := range testCases {
		t.Run(tc.call.String(), func(t *testing.T) {
			src, err := resolveCall(t, e, e.global, tc.call)
			require.NoError(t, err)
			assert.Equal(t, tc.call.Invocation.Name, src.Signature().Name)
			assert.Equal(t, tc.kind, src.sourceKind())
		})
	}
}

func TestResolveRejectsMismatches(t *testing.T) {
	testCases := []Argument{
		Call("!", Num(1)),
		Call("!", Ident("true"), Ident("true")),
		Call("trim", Num(1)),
		Call("number"),
		Call("stdin", Num(1)),
		Call(">", Num(1)),
		Call("<", Num(1), Str("2")),
		Call("+", Num(1), Str("2")),
		Call("pop", Num(1)),
		Call("index", Call("list"), Str("0")),
		Call("length", Call("list"), Call("list")),
		Call("return"),
		Call("if", Num(1), Call("println")),
		Call("nothing"),
	}

	e, _ := newTestEvaluator(NewFunctionScope(), "")
	for _, call := range testCases {
		t.Run(call.String(), func(t *testing.T) {
			_, err := resolveCall(t, e, e.global, call)
			require.Error(t, err)
			assert.Equal(t, ErrorKindResolution, KindOf(err))
		})
	}
}

func TestRepeatingSignatureReusesLastSlot(t *testing.T) {
	functions := &FunctionScope{byName: make(map[string][]int)}
	functions.add(system("sum", slotNumber, true, Returns(DataTypeNumber), arithmetic("sum", func(a, b float64) float64 { return a + b })))
	e, _ := newTestEvaluator(functions, "")

	for n := 0; n <= 4; n++ {
		args := make([]Argument, n)
		for i := range args {
			args[i] = Num(float64(i))
		}
		_, err := resolveCall(t, e, e.global, Call("sum", args...))
		assert.NoError(t, err, "arity %d", n)
	}

	_, err := resolveCall(t, e, e.global, Call("sum", Num(1), Num(2), Str("3")))
	assert.Equal(t, ErrorKindResolution, KindOf(err))
}

func TestResolveFirstMatchWins(t *testing.T) {
	functions := NewFunctionScope()
	first := &DefinedFunction{signature: FunctionSignature{Name: "f", Args: slotNumber, ReturnType: Returns(DataTypeNumber)}}
	second := &DefinedFunction{signature: FunctionSignature{Name: "f", Args: slotNumber, ReturnType: Returns(DataTypeString)}}
	functions.add(first)
	functions.add(second)
	e, _ := newTestEvaluator(functions, "")

	src, err := resolveCall(t, e, e.global, Call("f", Num(1)))
	require.NoError(t, err)
	assert.Same(t, first, src)
}

func TestResolveUsesDeclaredReturnTypes(t *testing.T) {
	e, out := newTestEvaluator(NewFunctionScope(), "")

	// println returns unit, so matching ! against it must fail without
	// printing anything.
	_, err := resolveCall(t, e, e.global, Call("!", Call("println", Str("side effect"))))
	require.Error(t, err)
	assert.Empty(t, out.String())

	cache := make([]*Cell, 1)
	call := Call("!", Call("<", Num(1), Num(2)))
	_, err = e.resolve(call.Invocation, e.global, cache)
	require.NoError(t, err)
	assert.Nil(t, cache[0])
}

func TestResolveForcesUnknownShapesOnce(t *testing.T) {
	e, _ := newTestEvaluator(NewFunctionScope(), "")
	e.global.Bind("items", NewCell(NewList([]*Cell{NewCell(NewString("x"))})))

	call := Call("trim", Call("index", Ident("items"), Num(0)))
	cache := make([]*Cell, 1)
	src, err := e.resolve(call.Invocation, e.global, cache)
	require.NoError(t, err)
	assert.Equal(t, "trim", src.Signature().Name)
	require.NotNil(t, cache[0])
	assert.Equal(t, "x", cache[0].String())
}

func TestResolveForcesInSourceOrder(t *testing.T) {
	functions := NewFunctionScope()
	functions.add(&DefinedFunction{signature: FunctionSignature{Name: "pair", Args: []SignatureArgument{AnyArg, Shape(DataTypeString)}, ReturnType: Returns(DataTypeUnit)}})
	e, _ := newTestEvaluator(functions, "one\ntwo\n")
	e.global.Bind("items", NewCell(NewList([]*Cell{NewCell(NewString("x"))})))

	call := Call("pair", Call("stdin"), Call("index", Ident("items"), Num(0)))
	cache := make([]*Cell, 2)
	_, err := e.resolve(call.Invocation, e.global, cache)
	require.NoError(t, err)
	require.NotNil(t, cache[0])
	assert.Equal(t, "one\n", cache[0].String())
}

func TestResolveMissingIdentifier(t *testing.T) {
	e, _ := newTestEvaluator(NewFunctionScope(), "")

	_, err := resolveCall(t, e, e.global, Call("+", Ident("missing"), Num(1)))
	require.Error(t, err)
	assert.Equal(t, ErrorKindLookup, KindOf(err))
}

func TestResolutionFailureMessage(t *testing.T) {
	e, _ := newTestEvaluator(NewFunctionScope(), "")

	_, err := resolveCall(t, e, e.global, Call("+", Str("a"), Num(1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function not found: +(string, number)")
}

func TestResolveDeeplyNestedOverloads(t *testing.T) {
	nested := Num(1)
	for i := 0; i < 60; i++ {
		nested = Call("f", nested)
	}

	done := make(chan struct{})
	var (
		out string
		err error
	)
	go func() {
		defer close(done)
		out, _, err = run(t, "",
			Invoke("fn", Ident("f"), Ident("num"), Ident("a"), Ident("str"), Call("return", Num(1))),
			Invoke("fn", Ident("f"), Ident("num"), Ident("a"), Ident("num"), Call("return", Ident("a"))),
			Invoke("println", nested),
		)
	}()

	select {
	case <-done:
		require.NoError(t, err)
		assert.Equal(t, "1\n", out)
	case <-time.After(5 * time.Second):
		t.Fatal("resolving nested overloads did not finish")
	}
}
