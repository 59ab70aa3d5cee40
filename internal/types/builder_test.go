package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnion_Normalizes(t *testing.T) {
	d := newFakeDb(t)
	intT := d.instance(KnownInt)

	tests := []struct {
		name  string
		elems []Type
		want  string
	}{
		{"empty is never", nil, "Never"},
		{"single element", []Type{intT}, "int"},
		{"duplicates removed", []Type{IntLiteral(1), IntLiteral(2), IntLiteral(1)}, "Literal[1, 2]"},
		{"literal absorbed by its class", []Type{IntLiteral(1), intT}, "int"},
		{"class absorbs later literal", []Type{intT, IntLiteral(1)}, "int"},
		{"both bools make bool", []Type{BoolLiteral(true), BoolLiteral(false)}, "bool"},
		{"never dropped", []Type{None, Never}, "None"},
		{"nested unions flatten", []Type{Union(d, IntLiteral(1), None), IntLiteral(2)}, "Literal[1, 2] | None"},
		{"dynamic kept beside static", []Type{intT, Unknown, intT}, "int | Unknown"},
		{"literals condensed in display", []Type{IntLiteral(1), None, StringLiteral("a")}, `Literal[1, "a"] | None`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Union(d, tt.elems...).String())
		})
	}
}

func TestUnion_Interned(t *testing.T) {
	d := newFakeDb(t)
	a := Union(d, IntLiteral(1), None)
	b := Union(d, IntLiteral(1), None)
	assert.Equal(t, a, b)
	assert.True(t, a == b)
}

func TestIntersection_Simplifies(t *testing.T) {
	d := newFakeDb(t)
	intT := d.instance(KnownInt)

	assert.Equal(t, "int & ~Literal[1]", Intersection(d, []Type{intT}, []Type{IntLiteral(1)}).String())
	assert.Equal(t, Never, Intersection(d, []Type{IntLiteral(1)}, []Type{intT}))
	assert.Equal(t, intT, Intersection(d, []Type{intT}, []Type{None}), "disjoint negative is dropped")
	assert.Equal(t, d.instance(KnownObject), Intersection(d, nil, nil))
	assert.Equal(t, BoolLiteral(false), Intersection(d, []Type{d.instance(KnownBool)}, []Type{BoolLiteral(true)}))
}

func TestStringLiteral_LengthBoundary(t *testing.T) {
	at := strings.Repeat("a", MaxLiteralLength)
	assert.Equal(t, KindStringLiteral, StringLiteral(at).Kind())
	assert.Equal(t, LiteralString, StringLiteral(at+"a"))
}

func TestDisplay(t *testing.T) {
	d := newFakeDb(t)
	c := d.class("C", ClassLiteral(d.known[KnownObject]))
	f := d.function("f", None)
	one := int64(1)

	tests := []struct {
		ty   Type
		want string
	}{
		{Never, "Never"},
		{Todo, "@Todo"},
		{BoolLiteral(true), "Literal[True]"},
		{StringLiteral("it's \"q\"\n"), `Literal["it's \"q\"\n"]`},
		{BytesLiteral("a\x00"), `Literal[b"a\x00"]`},
		{Tuple(d), "tuple[()]"},
		{Tuple(d, IntLiteral(1), None), "tuple[Literal[1], None]"},
		{ClassLiteral(c), "Literal[C]"},
		{SubclassOf(c), "type[C]"},
		{SubclassOfDynamic(Any), "type[Any]"},
		{Instance(c), "C"},
		{FunctionLiteral(f), "Literal[f]"},
		{BoundMethod(d, f, Instance(c)), "<bound method `f` of `C`>"},
		{SliceLiteral(d, &one, nil, nil), "slice[Literal[1], None, None]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ty.String())
	}
}

func TestRelations(t *testing.T) {
	d := newFakeDb(t)
	intT, boolT, floatT, objT := d.instance(KnownInt), d.instance(KnownBool), d.instance(KnownFloat), d.instance(KnownObject)

	assert.True(t, IsSubtypeOf(d, BoolLiteral(true), intT))
	assert.True(t, IsSubtypeOf(d, boolT, objT))
	assert.True(t, IsSubtypeOf(d, Never, IntLiteral(3)))
	assert.False(t, IsSubtypeOf(d, Unknown, intT))
	assert.False(t, IsSubtypeOf(d, intT, floatT))
	assert.True(t, IsAssignableTo(d, intT, floatT), "int promotes to float")
	assert.True(t, IsAssignableTo(d, Unknown, intT))
	assert.True(t, IsAssignableTo(d, Union(d, IntLiteral(1), BoolLiteral(true)), intT))
	assert.False(t, IsAssignableTo(d, StringLiteral("s"), intT))
	assert.True(t, IsAssignableTo(d, StringLiteral("s"), LiteralString))
	assert.True(t, IsSubtypeOf(d, Tuple(d, IntLiteral(1)), Tuple(d, intT)))

	assert.True(t, IsDisjointFrom(d, IntLiteral(1), IntLiteral(2)))
	assert.True(t, IsDisjointFrom(d, None, intT))
	assert.False(t, IsDisjointFrom(d, IntLiteral(1), intT))
	assert.True(t, IsGraduallyEquivalentTo(d, Any, Unknown))
}
