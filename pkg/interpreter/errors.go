package interpreter

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota

	ErrorKindResolution    // No registered function accepts the call
	ErrorKindLookup        // Identifier is not bound in the active scope
	ErrorKindShape         // Value does not have the shape an operation requires
	ErrorKindBounds        // List access outside of the list
	ErrorKindArgumentCount // Too few (or too many) arguments for a built-in
	ErrorKindMalformed     // fn, let or = given arguments of the wrong form

	ErrorKindIO        // Reading stdin or writing stdout failed
	ErrorKindResource  // Call depth exceeded
	ErrorKindCancelled // Host cancelled execution
)

func errorKindToString(kind ErrorKind) string {
	switch kind {
	case ErrorKindUnknown:
		return "Unknown"
	case ErrorKindResolution:
		return "Function Not Found"
	case ErrorKindLookup:
		return "Variable Not Found"
	case ErrorKindShape:
		return "Unexpected Shape"
	case ErrorKindBounds:
		return "Out Of Bounds"
	case ErrorKindArgumentCount:
		return "Argument Count"
	case ErrorKindMalformed:
		return "Malformed Arguments"
	case ErrorKindIO:
		return "IO"
	case ErrorKindResource:
		return "Resource Exhausted"
	case ErrorKindCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown ErrorKind (%d)", kind)
	}
}

func (k ErrorKind) String() string {
	return errorKindToString(k)
}

// RuntimeError is the only failure the engine produces. Every RuntimeError
// halts the program that raised it.
type RuntimeError struct {
	Kind    ErrorKind
	Message string

	// Invocation is the innermost call that failed, rendered as source.
	Invocation string

	cause  error
	frames int
}

func (e *RuntimeError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%s: %s", errorKindToString(e.Kind), e.Message))
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	if e.Invocation != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Invocation)
	}
	return sb.String()
}

func (e *RuntimeError) Unwrap() error {
	return e.cause
}

func (e *RuntimeError) Cause() error {
	return e.cause
}

func newRuntimeError(kind ErrorKind, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func wrapRuntimeError(kind ErrorKind, cause error, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.WithStack(cause),
	}
}

func lookupError(name string) *RuntimeError {
	return newRuntimeError(ErrorKindLookup, "variable %q not found", name)
}

func shapeError(want DataType, got Data) *RuntimeError {
	return newRuntimeError(ErrorKindShape, "expected %s, got %s", want, got.Type)
}

func boundsError(format string, args ...any) *RuntimeError {
	return newRuntimeError(ErrorKindBounds, format, args...)
}

func argumentCountError(name string, format string, args ...any) *RuntimeError {
	return newRuntimeError(ErrorKindArgumentCount, "%s: %s", name, fmt.Sprintf(format, args...))
}

func malformedError(format string, args ...any) *RuntimeError {
	return newRuntimeError(ErrorKindMalformed, format, args...)
}

// KindOf reports the ErrorKind carried by err, or ErrorKindUnknown when err
// was not produced by the engine.
func KindOf(err error) ErrorKind {
	var rerr *RuntimeError
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return ErrorKindUnknown
}
