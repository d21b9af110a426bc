package interpreter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataString(t *testing.T) {
	testCases := []struct {
		name     string
		data     Data
		expected string
	}{
		{name: "string", data: NewString("hello"), expected: "hello"},
		{name: "integral number", data: NewNumber(1), expected: "1"},
		{name: "fraction", data: NewNumber(0.5), expected: "0.5"},
		{name: "negative", data: NewNumber(-3), expected: "-3"},
		{name: "large", data: NewNumber(1e21), expected: "1000000000000000000000"},
		{name: "positive infinity", data: NewNumber(math.Inf(1)), expected: "inf"},
		{name: "negative infinity", data: NewNumber(math.Inf(-1)), expected: "-inf"},
		{name: "nan", data: NewNumber(math.NaN()), expected: "NaN"},
		{name: "true", data: NewBoolean(true), expected: "true"},
		{name: "unit", data: Unit(), expected: "()"},
		{name: "break", data: NewControlFlow(FlowBreak, nil), expected: "break"},
		{name: "empty list", data: NewList(nil), expected: "[]"},
		{
			name:     "nested list",
			data:     NewList([]*Cell{NewCell(NewNumber(1)), NewCell(NewList([]*Cell{NewCell(NewString("a"))}))}),
			expected: "[1, [a]]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.data.String())
		})
	}
}

func TestDataEqual(t *testing.T) {
	shared := NewCell(NewNumber(1))

	testCases := []struct {
		name     string
		a        Data
		b        Data
		expected bool
	}{
		{name: "same numbers", a: NewNumber(2), b: NewNumber(2), expected: true},
		{name: "different shapes", a: NewNumber(1), b: NewString("1"), expected: false},
		{name: "nan", a: NewNumber(math.NaN()), b: NewNumber(math.NaN()), expected: false},
		{name: "units", a: Unit(), b: Unit(), expected: true},
		{
			name:     "lists by content",
			a:        NewList([]*Cell{NewCell(NewNumber(1)), NewCell(NewString("x"))}),
			b:        NewList([]*Cell{NewCell(NewNumber(1)), NewCell(NewString("x"))}),
			expected: true,
		},
		{
			name:     "lists of different length",
			a:        NewList([]*Cell{NewCell(NewNumber(1))}),
			b:        NewList(nil),
			expected: false,
		},
		{name: "breaks", a: NewControlFlow(FlowBreak, nil), b: NewControlFlow(FlowBreak, nil), expected: true},
		{name: "break and continue", a: NewControlFlow(FlowBreak, nil), b: NewControlFlow(FlowContinue, nil), expected: false},
		{name: "returns of one cell", a: NewControlFlow(FlowReturn, shared), b: NewControlFlow(FlowReturn, shared), expected: true},
		{
			name:     "returns of equal content",
			a:        NewControlFlow(FlowReturn, NewCell(NewNumber(1))),
			b:        NewControlFlow(FlowReturn, NewCell(NewNumber(1))),
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.a.Equal(tc.b))
		})
	}
}

func TestDataAccessorsRejectOtherShapes(t *testing.T) {
	d := NewString("nope")

	_, err := d.AsNumber()
	require.Error(t, err)
	assert.Equal(t, ErrorKindShape, KindOf(err))

	_, err = d.AsBoolean()
	assert.Equal(t, ErrorKindShape, KindOf(err))

	_, err = d.AsList()
	assert.Equal(t, ErrorKindShape, KindOf(err))

	_, err = NewNumber(1).AsString()
	assert.Equal(t, ErrorKindShape, KindOf(err))

	_, err = Unit().AsControlFlow()
	assert.Equal(t, ErrorKindShape, KindOf(err))
}

func TestDataCopyDetachesLists(t *testing.T) {
	inner := NewCell(NewNumber(1))
	original := NewList([]*Cell{inner})

	copied := original.Copy()
	elements, err := copied.AsList()
	require.NoError(t, err)
	require.Len(t, elements, 1)

	assert.NotSame(t, inner, elements[0])
	inner.Set(NewNumber(9))
	assert.Equal(t, "[1]", copied.String())
}

func TestCellSharing(t *testing.T) {
	c := NewCell(NewNumber(1))
	alias := c

	alias.Set(NewString("changed"))
	assert.Equal(t, DataTypeString, c.Type())
	assert.Equal(t, "changed", c.String())
}
