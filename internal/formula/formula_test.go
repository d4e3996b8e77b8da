package formula

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-go/internal/errors"
)

// testSchema lays out fields back to back in registration order.
type testSchema struct {
	fields []testField
}

type testField struct {
	name   string
	length int
}

func (s *testSchema) LookupField(name string) (offset, length int, ok bool) {
	off := 0
	for _, f := range s.fields {
		if f.name == name {
			return off, f.length, true
		}
		off += f.length
	}
	return 0, 0, false
}

// Schema: x (scalar), y (scalar), arr (len 4), qdc (len 4)
// Row layout: [x, y, arr0..arr3, qdc0..qdc3]
func newTestSchema() *testSchema {
	return &testSchema{fields: []testField{
		{"x", 1},
		{"y", 1},
		{"arr", 4},
		{"qdc", 4},
	}}
}

func testRow() []float64 {
	return []float64{3, -2, 10, 20, 30, 40, 1, 0, 1, 0}
}

func TestCompileEmptyGateIsAlwaysTrue(t *testing.T) {
	t.Parallel()

	for _, src := range []string{"", "   ", "\t\n"} {
		f, err := Compile(src, newTestSchema())
		require.NoError(t, err)
		assert.Equal(t, 1, f.Ndata())
		assert.True(t, f.EvalBool(testRow()))
	}
}

func TestScalarExpressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want float64
	}{
		{"1", 1},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"x", 3},
		{"-x", -3},
		{"x - y", 5},
		{"x * y", -6},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"x == 3", 1},
		{"x != 3", 0},
		{"x < y", 0},
		{"x >= 3", 1},
		{"x > 0 && y > 0", 0},
		{"x > 0 || y > 0", 1},
		{"!(x > 0)", 0},
		{"abs(y)", 2},
		{"sqrt(x * x)", 3},
		{"min(x, y)", -2},
		{"max(x, y)", 3},
		{"pow(2, 10)", 1024},
		{"floor(10 / 4)", 2},
		{"1.5e2", 150},
		{"arr[2]", 30},
		{"arr[0] + qdc[0]", 11},
	}

	schema := newTestSchema()
	row := testRow()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			f, err := Compile(tt.src, schema)
			require.NoError(t, err)
			require.Equal(t, 1, f.Ndata())
			assert.InDelta(t, tt.want, f.EvalInstance(row, 0), 1e-12)
		})
	}
}

func TestArrayExpressions(t *testing.T) {
	t.Parallel()

	schema := newTestSchema()
	row := testRow()

	f, err := Compile("arr", schema)
	require.NoError(t, err)
	require.Equal(t, 4, f.Ndata())
	for i, want := range []float64{10, 20, 30, 40} {
		assert.InDelta(t, want, f.EvalInstance(row, i), 1e-12)
	}

	// Scalar broadcasts across array instances
	f, err = Compile("arr / 10 + x", schema)
	require.NoError(t, err)
	require.Equal(t, 4, f.Ndata())
	for i, want := range []float64{4, 5, 6, 7} {
		assert.InDelta(t, want, f.EvalInstance(row, i), 1e-12)
	}

	// Two same-length arrays combine element-wise
	f, err = Compile("arr * qdc", schema)
	require.NoError(t, err)
	require.Equal(t, 4, f.Ndata())
	for i, want := range []float64{10, 0, 30, 0} {
		assert.InDelta(t, want, f.EvalInstance(row, i), 1e-12)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", "nosuch"},
		{"unknown function", "frobnicate(x)"},
		{"wrong arity", "min(x)"},
		{"index on scalar", "x[0]"},
		{"index out of range", "arr[4]"},
		{"negative exponent tail", "1e"},
		{"single equals", "x = 3"},
		{"single ampersand", "x & 1"},
		{"unbalanced paren", "(x + 1"},
		{"trailing input", "x + 1)"},
		{"empty parens", "()"},
		{"bad character", "x @ 2"},
	}

	schema := newTestSchema()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Compile(tt.src, schema)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryFormula),
				"expected formula category, got %v", err)
		})
	}
}

func TestArrayLengthMismatch(t *testing.T) {
	t.Parallel()

	schema := &testSchema{fields: []testField{
		{"a", 4},
		{"b", 3},
	}}
	_, err := Compile("a + b", schema)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFormula))
}

func TestDivisionByZeroFollowsIEEE(t *testing.T) {
	t.Parallel()

	f, err := Compile("x / (x - x)", newTestSchema())
	require.NoError(t, err)
	assert.True(t, math.IsInf(f.EvalInstance(testRow(), 0), 1))
}

func TestEvalBoolGateSemantics(t *testing.T) {
	t.Parallel()

	schema := newTestSchema()
	row := testRow()

	gate, err := Compile("x > 2 && qdc[0] == 1", schema)
	require.NoError(t, err)
	assert.True(t, gate.EvalBool(row))

	gate, err = Compile("y > 0", schema)
	require.NoError(t, err)
	assert.False(t, gate.EvalBool(row))

	// Any nonzero value passes, not just 1
	gate, err = Compile("y", schema)
	require.NoError(t, err)
	assert.True(t, gate.EvalBool(row))
}
