package interpreter

import (
	"strconv"
	"strings"
)

type ArgumentType int

const (
	ArgumentTypeFunction ArgumentType = iota
	ArgumentTypeData
	ArgumentTypeIdent
)

// Argument is one positional argument of an Invocation: a nested call, a
// literal or an identifier.
type Argument struct {
	Type       ArgumentType
	Invocation *Invocation
	Data       Data
	Ident      string
}

// Invocation is a parsed call. The engine never modifies it.
type Invocation struct {
	Name string
	Args []Argument
}

// Invoke builds a top level statement.
func Invoke(name string, args ...Argument) Invocation {
	return Invocation{Name: name, Args: args}
}

// Call builds a nested call argument.
func Call(name string, args ...Argument) Argument {
	inv := Invoke(name, args...)
	return Argument{Type: ArgumentTypeFunction, Invocation: &inv}
}

func Literal(d Data) Argument {
	return Argument{Type: ArgumentTypeData, Data: d}
}

func Str(s string) Argument {
	return Literal(NewString(s))
}

func Num(n float64) Argument {
	return Literal(NewNumber(n))
}

func Ident(name string) Argument {
	return Argument{Type: ArgumentTypeIdent, Ident: name}
}

func (a Argument) String() string {
	switch a.Type {
	case ArgumentTypeFunction:
		return a.Invocation.String()
	case ArgumentTypeIdent:
		return a.Ident
	case ArgumentTypeData:
		if a.Data.Type == DataTypeString {
			return strconv.Quote(a.Data.String())
		}
		return a.Data.String()
	}
	return "?"
}

func (i *Invocation) String() string {
	sb := strings.Builder{}
	sb.WriteString(i.Name)
	sb.WriteString("(")
	for n, arg := range i.Args {
		if n > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteString(")")
	return sb.String()
}
