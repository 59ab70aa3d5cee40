package types

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
)

func TestBinaryOp_Literals(t *testing.T) {
	d := newFakeDb(t)
	intT := d.instance(KnownInt)

	tests := []struct {
		name        string
		left, right Type
		op          ast.Operator
		want        Type
	}{
		{"add", IntLiteral(1), IntLiteral(2), ast.Add, IntLiteral(3)},
		{"add overflow widens", IntLiteral(math.MaxInt64), IntLiteral(1), ast.Add, intT},
		{"sub overflow widens", IntLiteral(math.MinInt64), IntLiteral(1), ast.Sub, intT},
		{"mul overflow widens", IntLiteral(math.MinInt64), IntLiteral(-1), ast.Mult, intT},
		{"mul negative", IntLiteral(-3), IntLiteral(4), ast.Mult, IntLiteral(-12)},
		{"floor division rounds down", IntLiteral(7), IntLiteral(-2), ast.FloorDiv, IntLiteral(-4)},
		{"modulo takes divisor sign", IntLiteral(-7), IntLiteral(3), ast.Mod, IntLiteral(2)},
		{"division by zero", IntLiteral(1), IntLiteral(0), ast.FloorDiv, intT},
		{"true division", IntLiteral(1), IntLiteral(2), ast.Div, d.instance(KnownFloat)},
		{"power", IntLiteral(2), IntLiteral(10), ast.Pow, IntLiteral(1024)},
		{"negative power", IntLiteral(2), IntLiteral(-1), ast.Pow, d.instance(KnownFloat)},
		{"power overflow", IntLiteral(2), IntLiteral(64), ast.Pow, intT},
		{"shift", IntLiteral(1), IntLiteral(4), ast.LShift, IntLiteral(16)},
		{"bool or", BoolLiteral(true), BoolLiteral(false), ast.BitOr, BoolLiteral(true)},
		{"bool add is int", BoolLiteral(true), BoolLiteral(true), ast.Add, IntLiteral(2)},
		{"string concat", StringLiteral("ab"), StringLiteral("c"), ast.Add, StringLiteral("abc")},
		{"string repeat", StringLiteral("ab"), IntLiteral(2), ast.Mult, StringLiteral("abab")},
		{"string repeat negative", IntLiteral(-1), StringLiteral("ab"), ast.Mult, StringLiteral("")},
		{"bytes concat", BytesLiteral("a"), BytesLiteral("b"), ast.Add, BytesLiteral("ab")},
		{"tuple concat", Tuple(d, IntLiteral(1)), Tuple(d, None), ast.Add, Tuple(d, IntLiteral(1), None)},
		{"dynamic absorbs", Unknown, IntLiteral(1), ast.Add, Unknown},
		{"any wins over unknown", Unknown, Any, ast.Add, Any},
		{"never short-circuits", Never, Unknown, ast.Add, Never},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BinaryOp(d, tt.left, tt.op, tt.right)
			require.True(t, ok)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestBinaryOp_LiteralLengthBoundary(t *testing.T) {
	d := newFakeDb(t)
	half := StringLiteral(strings.Repeat("a", MaxLiteralLength/2))

	got, ok := BinaryOp(d, half, ast.Add, half)
	require.True(t, ok)
	assert.Equal(t, KindStringLiteral, got.Kind())

	got, ok = BinaryOp(d, got, ast.Add, StringLiteral("a"))
	require.True(t, ok)
	assert.Equal(t, LiteralString, got)

	got, ok = BinaryOp(d, BytesLiteral("ab"), ast.Mult, IntLiteral(MaxLiteralLength))
	require.True(t, ok)
	assert.Equal(t, d.instance(KnownBytes), got)
}

func TestBinaryOp_Dunders(t *testing.T) {
	d := newFakeDb(t)
	intT, strT := d.instance(KnownInt), d.instance(KnownStr)

	got, ok := BinaryOp(d, intT, ast.Add, IntLiteral(1))
	require.True(t, ok)
	assert.Equal(t, intT, got)

	_, ok = BinaryOp(d, intT, ast.Add, strT)
	assert.False(t, ok)

	got, ok = BinaryOp(d, Union(d, IntLiteral(1), IntLiteral(2)), ast.Add, IntLiteral(1))
	require.True(t, ok)
	assert.Equal(t, "Literal[2, 3]", got.String())

	_, ok = BinaryOp(d, Union(d, intT, None), ast.Add, IntLiteral(1))
	assert.False(t, ok, "every union element must support the operator")
}

func TestBinaryOp_ReflectedSubclassFirst(t *testing.T) {
	d := newFakeDb(t)
	base := d.class("Base", ClassLiteral(d.known[KnownObject]))
	sub := d.class("Sub", ClassLiteral(base))
	d.method(base, "__add__", StringLiteral("base"), param("other", Instance(base)))
	d.method(sub, "__radd__", StringLiteral("sub"), param("other", Instance(base)))

	got, ok := BinaryOp(d, Instance(base), ast.Add, Instance(sub))
	require.True(t, ok)
	assert.Equal(t, StringLiteral("sub"), got)
}

func TestCompare(t *testing.T) {
	d := newFakeDb(t)
	boolT := d.instance(KnownBool)

	tests := []struct {
		name        string
		left, right Type
		op          ast.CmpOp
		want        Type
	}{
		{"int less", IntLiteral(1), IntLiteral(2), ast.Lt, BoolLiteral(true)},
		{"int equal", IntLiteral(1), BoolLiteral(true), ast.Eq, BoolLiteral(true)},
		{"equal ints may not be identical", IntLiteral(1), IntLiteral(1), ast.Is, boolT},
		{"different ints are not identical", IntLiteral(1), IntLiteral(2), ast.Is, BoolLiteral(false)},
		{"substring", StringLiteral("b"), StringLiteral("abc"), ast.In, BoolLiteral(true)},
		{"string order", StringLiteral("a"), StringLiteral("b"), ast.GtE, BoolLiteral(false)},
		{"none is none", None, None, ast.Is, BoolLiteral(true)},
		{"none is not int", None, d.instance(KnownInt), ast.IsNot, BoolLiteral(true)},
		{"dynamic identity is bool", Unknown, None, ast.Is, boolT},
		{"dynamic absorbs", Any, IntLiteral(1), ast.Lt, Any},
		{"tuples lexicographic", Tuple(d, IntLiteral(1), IntLiteral(2)), Tuple(d, IntLiteral(1), IntLiteral(3)), ast.Lt, BoolLiteral(true)},
		{"tuples equal", Tuple(d, IntLiteral(1), IntLiteral(2)), Tuple(d, IntLiteral(1), IntLiteral(2)), ast.Eq, BoolLiteral(true)},
		{"shorter tuple first", Tuple(d, IntLiteral(1)), Tuple(d, IntLiteral(1), IntLiteral(2)), ast.Lt, BoolLiteral(true)},
		{"tuple membership", IntLiteral(2), Tuple(d, IntLiteral(1), IntLiteral(2)), ast.In, boolT},
		{"tuple in tuple", Tuple(d, IntLiteral(1)), Tuple(d, Tuple(d, IntLiteral(2)), Tuple(d, IntLiteral(1))), ast.In, BoolLiteral(true)},
		{"instance equality falls back", d.instance(KnownInt), d.instance(KnownStr), ast.Eq, boolT},
		{"contains dunder", d.instance(KnownStr), d.instance(KnownStr), ast.In, boolT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(d, tt.left, tt.op, tt.right)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestCompare_Unsupported(t *testing.T) {
	d := newFakeDb(t)
	_, err := Compare(d, d.instance(KnownInt), ast.Lt, d.instance(KnownStr))
	require.Error(t, err)
	assert.Equal(t, "Operator `<` is not supported for types `int` and `str`", err.Error())

	_, err = Compare(d, IntLiteral(1), ast.In, IntLiteral(2))
	assert.Error(t, err)
}

func TestSubscript(t *testing.T) {
	d := newFakeDb(t)
	one, three, minusOne, zero := int64(1), int64(3), int64(-1), int64(0)
	two, huge, hugeNeg := int64(2), int64(math.MaxInt64), int64(math.MinInt64)
	bigStep := int64(math.MaxInt64 - 1)
	tup := Tuple(d, IntLiteral(1), StringLiteral("a"))

	tests := []struct {
		name         string
		value, index Type
		want         Type
	}{
		{"tuple index", tup, IntLiteral(0), IntLiteral(1)},
		{"tuple negative index", tup, IntLiteral(-1), StringLiteral("a")},
		{"tuple bool index", tup, BoolLiteral(true), StringLiteral("a")},
		{"tuple slice", tup, SliceLiteral(d, &one, nil, nil), Tuple(d, StringLiteral("a"))},
		{"string index", StringLiteral("hello"), IntLiteral(1), StringLiteral("e")},
		{"string slice", StringLiteral("hello"), SliceLiteral(d, &one, &three, nil), StringLiteral("el")},
		{"string reversed", StringLiteral("hello"), SliceLiteral(d, nil, nil, &minusOne), StringLiteral("olleh")},
		{"empty slice", StringLiteral("hello"), SliceLiteral(d, &three, &one, nil), StringLiteral("")},
		{"bytes index", BytesLiteral("ab"), IntLiteral(0), IntLiteral(97)},
		{"tuple huge step", Tuple(d, IntLiteral(1), IntLiteral(2), IntLiteral(3)), SliceLiteral(d, &one, nil, &huge), Tuple(d, IntLiteral(2))},
		{"string huge step", StringLiteral("abc"), SliceLiteral(d, &one, nil, &huge), StringLiteral("b")},
		{"bytes huge step", BytesLiteral("abc"), SliceLiteral(d, &two, nil, &bigStep), BytesLiteral("c")},
		{"string huge negative step", StringLiteral("abc"), SliceLiteral(d, nil, nil, &hugeNeg), StringLiteral("c")},
		{"getitem dunder", d.instance(KnownStr), IntLiteral(0), d.instance(KnownStr)},
		{"dynamic", Unknown, IntLiteral(0), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, issues := Subscript(d, tt.value, tt.index)
			assert.Empty(t, issues)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}

	t.Run("out of bounds", func(t *testing.T) {
		got, issues := Subscript(d, tup, IntLiteral(2))
		assert.Equal(t, Unknown, got)
		require.Len(t, issues, 1)
		assert.Equal(t, diag.IndexOutOfBounds, issues[0].Lint)
		assert.Equal(t, "Index 2 is out of bounds for tuple `tuple[Literal[1], Literal[\"a\"]]` with length 2", issues[0].Message)
	})
	t.Run("zero step", func(t *testing.T) {
		_, issues := Subscript(d, StringLiteral("ab"), SliceLiteral(d, nil, nil, &zero))
		require.Len(t, issues, 1)
		assert.Equal(t, diag.ZeroStepsizeInSlice, issues[0].Lint)
	})
	t.Run("not subscriptable", func(t *testing.T) {
		_, issues := Subscript(d, d.instance(KnownInt), IntLiteral(0))
		require.Len(t, issues, 1)
		assert.Equal(t, diag.NonSubscriptable, issues[0].Lint)
		assert.Equal(t, "Cannot subscript object of type `int` with no `__getitem__` method", issues[0].Message)
	})
}

func TestUnaryOp(t *testing.T) {
	d := newFakeDb(t)
	intT := d.instance(KnownInt)

	tests := []struct {
		name    string
		op      ast.UnaryOperator
		operand Type
		want    Type
	}{
		{"negate", ast.USub, IntLiteral(1), IntLiteral(-1)},
		{"negate min widens", ast.USub, IntLiteral(math.MinInt64), intT},
		{"invert", ast.Invert, IntLiteral(0), IntLiteral(-1)},
		{"plus bool", ast.UAdd, BoolLiteral(true), IntLiteral(1)},
		{"not zero", ast.Not, IntLiteral(0), BoolLiteral(true)},
		{"not instance", ast.Not, intT, d.instance(KnownBool)},
		{"dunder", ast.USub, intT, intT},
		{"dynamic", ast.USub, Todo, Todo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := UnaryOp(d, tt.op, tt.operand)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := UnaryOp(d, ast.Invert, d.instance(KnownStr))
	assert.False(t, ok)
}

func TestBoolChain(t *testing.T) {
	d := newFakeDb(t)
	boolT := d.instance(KnownBool)

	assert.Equal(t, IntLiteral(0), BoolChain(d, true, []Type{IntLiteral(1), IntLiteral(0)}))
	assert.Equal(t, None, BoolChain(d, true, []Type{None, d.instance(KnownInt)}))
	assert.Equal(t, `Literal[True, "x"]`, BoolChain(d, false, []Type{boolT, StringLiteral("x")}).String())
	assert.Equal(t, IntLiteral(1), BoolChain(d, false, []Type{IntLiteral(1), None}))
}

func TestIterate(t *testing.T) {
	d := newFakeDb(t)

	got, err := Iterate(d, Tuple(d, IntLiteral(1), None))
	require.NoError(t, err)
	assert.Equal(t, "Literal[1] | None", got.String())

	got, err = Iterate(d, d.instance(KnownStr))
	require.NoError(t, err, "old-style iteration through __getitem__")
	assert.Equal(t, d.instance(KnownStr), got)

	_, err = Iterate(d, d.instance(KnownInt))
	require.Error(t, err)
	assert.Equal(t, "Object of type `int` is not iterable", err.Error())
}

func TestEnterContext(t *testing.T) {
	d := newFakeDb(t)
	cm := d.class("CM", ClassLiteral(d.known[KnownObject]))
	d.method(cm, "__enter__", d.instance(KnownInt))
	d.method(cm, "__exit__", None,
		param("typ", Any), param("exc", Any), param("tb", Any))

	got, err := EnterContext(d, Instance(cm))
	require.NoError(t, err)
	assert.Equal(t, d.instance(KnownInt), got)

	_, err = EnterContext(d, d.instance(KnownInt))
	require.Error(t, err)
	assert.Equal(t, "Object of type `int` cannot be used with `with` because it doesn't implement `__enter__` and `__exit__`", err.Error())
}
