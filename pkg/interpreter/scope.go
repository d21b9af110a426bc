package interpreter

import (
	"sort"
)

// VariableScope maps identifiers to cells. Block bodies run in a Copy of
// their parent: the map is new, the cells are shared.
type VariableScope struct {
	vars map[string]*Cell
}

func NewVariableScope() *VariableScope {
	return &VariableScope{vars: make(map[string]*Cell)}
}

// NewRootScope returns a scope seeded with the built-in constants.
func NewRootScope() *VariableScope {
	s := NewVariableScope()
	s.Bind("true", NewCell(NewBoolean(true)))
	s.Bind("false", NewCell(NewBoolean(false)))
	s.Bind("break", NewCell(NewControlFlow(FlowBreak, nil)))
	s.Bind("continue", NewCell(NewControlFlow(FlowContinue, nil)))
	return s
}

func (s *VariableScope) Get(name string) (*Cell, bool) {
	c, ok := s.vars[name]
	return c, ok
}

func (s *VariableScope) Lookup(name string) (*Cell, error) {
	c, ok := s.vars[name]
	if !ok {
		return nil, lookupError(name)
	}
	return c, nil
}

// Bind points name at cell in this scope only.
func (s *VariableScope) Bind(name string, cell *Cell) {
	s.vars[name] = cell
}

// Assign replaces the contents of the cell already bound to name.
func (s *VariableScope) Assign(name string, d Data) error {
	c, ok := s.vars[name]
	if !ok {
		return lookupError(name)
	}
	c.Set(d)
	return nil
}

func (s *VariableScope) Copy() *VariableScope {
	vars := make(map[string]*Cell, len(s.vars))
	for name, cell := range s.vars {
		vars[name] = cell
	}
	return &VariableScope{vars: vars}
}

// Snapshot deep copies every binding. Names that aliased one cell still
// alias one cell in the snapshot, but nothing is shared with s.
func (s *VariableScope) Snapshot() *VariableScope {
	seen := make(map[*Cell]*Cell, len(s.vars))
	vars := make(map[string]*Cell, len(s.vars))
	for name, cell := range s.vars {
		vars[name] = cell.copyWith(seen)
	}
	return &VariableScope{vars: vars}
}

func (s *VariableScope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *VariableScope) Len() int {
	return len(s.vars)
}
