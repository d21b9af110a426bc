package interpreter

import (
	"strings"
)

type SignatureArgumentKind int

const (
	SignatureRaw SignatureArgumentKind = iota
	SignatureAny
	SignatureShape
)

// SignatureArgument is the acceptance rule for one declared parameter slot.
type SignatureArgument struct {
	Kind  SignatureArgumentKind
	Shape DataType
}

var (
	Raw    = SignatureArgument{Kind: SignatureRaw}
	AnyArg = SignatureArgument{Kind: SignatureAny}
)

func Shape(t DataType) SignatureArgument {
	return SignatureArgument{Kind: SignatureShape, Shape: t}
}

func (s SignatureArgument) String() string {
	switch s.Kind {
	case SignatureRaw:
		return "raw"
	case SignatureAny:
		return "any"
	}
	return string(s.Shape)
}

// ReturnType is the declared result shape of a function. Any means the
// shape is only known after the call runs.
type ReturnType struct {
	Any   bool
	Shape DataType
}

var ReturnsAny = ReturnType{Any: true}

func Returns(t DataType) ReturnType {
	return ReturnType{Shape: t}
}

func (r ReturnType) String() string {
	if r.Any {
		return "any"
	}
	return string(r.Shape)
}

type FunctionSignature struct {
	Name       string
	Args       []SignatureArgument
	Repeating  bool
	ReturnType ReturnType
}

// acceptsArity reports whether a call with n arguments can match.
// Repeating signatures accept any count, including zero.
func (s FunctionSignature) acceptsArity(n int) bool {
	if s.Repeating {
		return len(s.Args) > 0
	}
	return n == len(s.Args)
}

// slot returns the rule for call position i. Repeating signatures reuse
// their last declared slot for every overflow position.
func (s FunctionSignature) slot(i int) SignatureArgument {
	if i >= len(s.Args) {
		return s.Args[len(s.Args)-1]
	}
	return s.Args[i]
}

func (s FunctionSignature) String() string {
	parts := make([]string, len(s.Args))
	for i, arg := range s.Args {
		parts[i] = arg.String()
	}
	sb := strings.Builder{}
	sb.WriteString(s.Name)
	sb.WriteString("(")
	sb.WriteString(strings.Join(parts, ", "))
	if s.Repeating {
		sb.WriteString("...")
	}
	sb.WriteString(") -> ")
	sb.WriteString(s.ReturnType.String())
	return sb.String()
}
