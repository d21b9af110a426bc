package interpreter

import (
	"math"
	"strconv"
	"strings"
)

type DataType string

const (
	DataTypeString      DataType = "string"
	DataTypeNumber      DataType = "number"
	DataTypeBoolean     DataType = "boolean"
	DataTypeControlFlow DataType = "control-flow"
	DataTypeList        DataType = "list"
	DataTypeUnit        DataType = "unit"
)

type FlowKind int

const (
	FlowBreak FlowKind = iota
	FlowContinue
	FlowReturn
)

func (k FlowKind) String() string {
	switch k {
	case FlowBreak:
		return "break"
	case FlowContinue:
		return "continue"
	case FlowReturn:
		return "return"
	}
	return "unknown"
}

// ControlFlow is a non-local exit travelling outward through statement
// sequences. Only FlowReturn carries a Value.
type ControlFlow struct {
	Kind  FlowKind
	Value *Cell
}

// Data is a runtime value. Value holds a string, float64, bool, ControlFlow,
// []*Cell or nil depending on Type.
type Data struct {
	Type  DataType
	Value any
}

func NewString(s string) Data {
	return Data{Type: DataTypeString, Value: s}
}

func NewNumber(n float64) Data {
	return Data{Type: DataTypeNumber, Value: n}
}

func NewBoolean(b bool) Data {
	return Data{Type: DataTypeBoolean, Value: b}
}

func NewList(elements []*Cell) Data {
	return Data{Type: DataTypeList, Value: elements}
}

func NewControlFlow(kind FlowKind, value *Cell) Data {
	return Data{Type: DataTypeControlFlow, Value: ControlFlow{Kind: kind, Value: value}}
}

func Unit() Data {
	return Data{Type: DataTypeUnit}
}

func (d Data) AsString() (string, error) {
	s, ok := d.Value.(string)
	if d.Type != DataTypeString || !ok {
		return "", shapeError(DataTypeString, d)
	}
	return s, nil
}

func (d Data) AsNumber() (float64, error) {
	n, ok := d.Value.(float64)
	if d.Type != DataTypeNumber || !ok {
		return 0, shapeError(DataTypeNumber, d)
	}
	return n, nil
}

func (d Data) AsBoolean() (bool, error) {
	b, ok := d.Value.(bool)
	if d.Type != DataTypeBoolean || !ok {
		return false, shapeError(DataTypeBoolean, d)
	}
	return b, nil
}

func (d Data) AsList() ([]*Cell, error) {
	if d.Type != DataTypeList {
		return nil, shapeError(DataTypeList, d)
	}
	if d.Value == nil {
		return nil, nil
	}
	l, ok := d.Value.([]*Cell)
	if !ok {
		return nil, shapeError(DataTypeList, d)
	}
	return l, nil
}

func (d Data) AsControlFlow() (ControlFlow, error) {
	cf, ok := d.Value.(ControlFlow)
	if d.Type != DataTypeControlFlow || !ok {
		return ControlFlow{}, shapeError(DataTypeControlFlow, d)
	}
	return cf, nil
}

// Flow reports whether d is a control-flow value.
func (d Data) Flow() (ControlFlow, bool) {
	if d.Type != DataTypeControlFlow {
		return ControlFlow{}, false
	}
	cf, ok := d.Value.(ControlFlow)
	return cf, ok
}

// Equal compares structurally. Return values are equal only when they
// carry the same cell.
func (d Data) Equal(other Data) bool {
	if d.Type != other.Type {
		return false
	}
	switch d.Type {
	case DataTypeUnit:
		return true
	case DataTypeList:
		a, _ := d.AsList()
		b, _ := other.AsList()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Get().Equal(b[i].Get()) {
				return false
			}
		}
		return true
	case DataTypeControlFlow:
		a, _ := d.AsControlFlow()
		b, _ := other.AsControlFlow()
		if a.Kind != b.Kind {
			return false
		}
		return a.Kind != FlowReturn || a.Value == b.Value
	default:
		return d.Value == other.Value
	}
}

// Copy returns d with list contents duplicated into fresh cells, so the
// result shares no cell with d.
func (d Data) Copy() Data {
	return d.copyWith(nil)
}

func (d Data) copyWith(seen map[*Cell]*Cell) Data {
	if d.Type != DataTypeList {
		return d
	}
	elements, _ := d.AsList()
	copied := make([]*Cell, len(elements))
	for i, element := range elements {
		copied[i] = element.copyWith(seen)
	}
	return NewList(copied)
}

func (d Data) String() string {
	switch d.Type {
	case DataTypeString:
		s, _ := d.AsString()
		return s
	case DataTypeNumber:
		n, _ := d.AsNumber()
		return formatNumber(n)
	case DataTypeBoolean:
		b, _ := d.AsBoolean()
		return strconv.FormatBool(b)
	case DataTypeControlFlow:
		cf, _ := d.AsControlFlow()
		return cf.Kind.String()
	case DataTypeList:
		elements, _ := d.AsList()
		parts := make([]string, len(elements))
		for i, element := range elements {
			parts[i] = element.Get().String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case DataTypeUnit:
		return "()"
	}
	return ""
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Cell is the unit of sharing. Every binding and list slot refers to a
// cell, and Set is visible through all of them.
type Cell struct {
	data Data
}

func NewCell(d Data) *Cell {
	return &Cell{data: d}
}

func (c *Cell) Get() Data {
	return c.data
}

func (c *Cell) Set(d Data) {
	c.data = d
}

func (c *Cell) Type() DataType {
	return c.data.Type
}

func (c *Cell) String() string {
	return c.data.String()
}

// copyWith duplicates c. Cells already duplicated through seen are reused
// so aliasing inside the copied graph is kept.
func (c *Cell) copyWith(seen map[*Cell]*Cell) *Cell {
	if seen != nil {
		if dup, ok := seen[c]; ok {
			return dup
		}
	}
	dup := &Cell{}
	if seen != nil {
		seen[c] = dup
	}
	dup.data = c.data.copyWith(seen)
	return dup
}

// reaches reports whether target is c or is held, at any depth, by the
// list in c.
func (c *Cell) reaches(target *Cell) bool {
	return c.reachesWith(target, map[*Cell]bool{})
}

func (c *Cell) reachesWith(target *Cell, seen map[*Cell]bool) bool {
	if c == target {
		return true
	}
	if seen[c] {
		return false
	}
	seen[c] = true
	elements, err := c.Get().AsList()
	if err != nil {
		return false
	}
	for _, element := range elements {
		if element.reachesWith(target, seen) {
			return true
		}
	}
	return false
}
