package parser

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/InsulaLabs/funcs/pkg/interpreter"
	"github.com/pkg/errors"
)

// ErrIncomplete matches parse errors caused by input that ended inside an
// invocation or a string. More input may complete it.
var ErrIncomplete = errors.New("incomplete input")

type ParseError struct {
	Position int
	Line     int
	Column   int
	Message  string

	incomplete bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrIncomplete && e.incomplete
}

// Parser reads a sequence of top level invocations from Target.
type Parser struct {
	Target   string
	Position int
}

func Parse(src string) ([]interpreter.Invocation, error) {
	p := &Parser{Target: src}
	return p.Program()
}

func ParseFile(path string) ([]interpreter.Invocation, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	program, err := Parse(string(src))
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return program, nil
}

func (p *Parser) Program() ([]interpreter.Invocation, error) {
	var program []interpreter.Invocation
	for {
		p.skipSpace()
		if p.eof() {
			return program, nil
		}
		inv, err := p.invocation()
		if err != nil {
			return nil, err
		}
		program = append(program, inv)
	}
}

func (p *Parser) invocation() (interpreter.Invocation, error) {
	start := p.Position
	name := p.name()
	if name == "" {
		return interpreter.Invocation{}, p.errorf(start, false, "expected a function name, found %q", p.peek())
	}
	if p.eof() {
		return interpreter.Invocation{}, p.errorf(start, true, "expected ( after %s", name)
	}
	if p.peek() != '(' {
		return interpreter.Invocation{}, p.errorf(p.Position, false, "expected ( after %s", name)
	}
	p.Position++ // skip '('

	var args []interpreter.Argument
	sawComma := false
	for {
		p.skipSpace()
		if p.eof() {
			return interpreter.Invocation{}, p.errorf(start, true, "unclosed invocation of %s", name)
		}
		switch p.peek() {
		case ')':
			p.Position++
			return interpreter.Invocation{Name: name, Args: args}, nil
		case ',':
			if len(args) == 0 || sawComma {
				return interpreter.Invocation{}, p.errorf(p.Position, false, "unexpected ,")
			}
			sawComma = true
			p.Position++
			continue
		}
		arg, err := p.argument()
		if err != nil {
			return interpreter.Invocation{}, err
		}
		args = append(args, arg)
		sawComma = false
	}
}

func (p *Parser) argument() (interpreter.Argument, error) {
	c := p.peek()
	switch {
	case c == '"':
		s, err := p.quotedString()
		if err != nil {
			return interpreter.Argument{}, err
		}
		return interpreter.Str(s), nil
	case isDigit(c) || (c == '-' && isDigit(p.peekAt(1))):
		n, err := p.number()
		if err != nil {
			return interpreter.Argument{}, err
		}
		return interpreter.Num(n), nil
	}

	start := p.Position
	name := p.name()
	if name == "" {
		return interpreter.Argument{}, p.errorf(start, false, "unexpected %q", c)
	}
	if !p.eof() && p.peek() == '(' {
		p.Position = start
		inv, err := p.invocation()
		if err != nil {
			return interpreter.Argument{}, err
		}
		return interpreter.Argument{Type: interpreter.ArgumentTypeFunction, Invocation: &inv}, nil
	}
	return interpreter.Ident(name), nil
}

// name consumes a word or a run of operator characters.
func (p *Parser) name() string {
	start := p.Position
	if p.eof() {
		return ""
	}
	c := p.peek()
	switch {
	case isWordStart(c):
		for !p.eof() && isWordPart(p.peek()) {
			p.Position++
		}
	case isOperator(c):
		for !p.eof() && isOperator(p.peek()) && !p.atComment() {
			p.Position++
		}
	}
	return p.Target[start:p.Position]
}

func (p *Parser) number() (float64, error) {
	start := p.Position
	if p.peek() == '-' {
		p.Position++
	}
	for !p.eof() && isDigit(p.peek()) {
		p.Position++
	}
	if !p.eof() && p.peek() == '.' && isDigit(p.peekAt(1)) {
		p.Position++
		for !p.eof() && isDigit(p.peek()) {
			p.Position++
		}
	}
	if !p.eof() && (isWordPart(p.peek()) || p.peek() == '.') {
		return 0, p.errorf(start, false, "invalid number %q", p.Target[start:p.Position+1])
	}
	n, err := strconv.ParseFloat(p.Target[start:p.Position], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, p.errorf(start, false, "invalid number %q", p.Target[start:p.Position])
	}
	return n, nil
}

func (p *Parser) quotedString() (string, error) {
	start := p.Position
	p.Position++ // skip opening quote

	sb := strings.Builder{}
	for !p.eof() {
		c := p.peek()
		switch c {
		case '"':
			p.Position++
			return sb.String(), nil
		case '\\':
			if p.Position+1 >= len(p.Target) {
				return "", p.errorf(start, true, "unclosed quoted string")
			}
			sb.WriteByte(unescape(p.Target[p.Position+1]))
			p.Position += 2
		default:
			sb.WriteByte(c)
			p.Position++
		}
	}
	return "", p.errorf(start, true, "unclosed quoted string")
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func (p *Parser) skipSpace() {
	for !p.eof() {
		switch {
		case p.atComment():
			for !p.eof() && p.peek() != '\n' {
				p.Position++
			}
		case isSpace(p.peek()):
			p.Position++
		default:
			return
		}
	}
}

func (p *Parser) atComment() bool {
	return strings.HasPrefix(p.Target[p.Position:], "//")
}

func (p *Parser) eof() bool {
	return p.Position >= len(p.Target)
}

func (p *Parser) peek() byte {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) byte {
	if p.Position+offset >= len(p.Target) {
		return 0
	}
	return p.Target[p.Position+offset]
}

func (p *Parser) errorf(pos int, incomplete bool, format string, args ...any) error {
	line, column := 1, 1
	for i := 0; i < pos && i < len(p.Target); i++ {
		if p.Target[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return &ParseError{
		Position:   pos,
		Line:       line,
		Column:     column,
		Message:    fmt.Sprintf(format, args...),
		incomplete: incomplete,
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || isDigit(c)
}

func isOperator(c byte) bool {
	return strings.IndexByte("+-*/%!&|^=<>", c) >= 0
}
