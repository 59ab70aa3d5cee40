package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
)

func mroNames(mro MRO) []string {
	out := make([]string, len(mro))
	for i, t := range mro {
		out[i] = t.String()
	}
	return out
}

func TestComputeMRO_Diamond(t *testing.T) {
	d := newFakeDb(t)
	a := d.class("A")
	b := d.class("B", ClassLiteral(a))
	c := d.class("C", ClassLiteral(a))
	dd := d.class("D", ClassLiteral(b), ClassLiteral(c))

	mro, err := ComputeMRO(d, dd)
	require.Nil(t, err)
	assert.Equal(t, []string{"Literal[D]", "Literal[B]", "Literal[C]", "Literal[A]", "Literal[object]"}, mroNames(mro))
}

func TestComputeMRO_Errors(t *testing.T) {
	d := newFakeDb(t)
	a := d.class("A")
	b := d.class("B", ClassLiteral(a))

	t.Run("duplicate bases", func(t *testing.T) {
		e := d.class("E", ClassLiteral(a), ClassLiteral(a))
		_, err := ComputeMRO(d, e)
		require.NotNil(t, err)
		assert.Equal(t, MRODuplicateBases, err.Kind)
		assert.Equal(t, []DuplicateBase{{Index: 1, Class: a}}, err.Duplicates)
		assert.Equal(t, []string{"Literal[E]", "Unknown", "Literal[object]"}, mroNames(err.Fallback))

		spread := d.class("E2", ClassLiteral(a), ClassLiteral(b), ClassLiteral(a), ClassLiteral(a))
		_, err = ComputeMRO(d, spread)
		require.NotNil(t, err)
		assert.Equal(t, MRODuplicateBases, err.Kind)
		assert.Equal(t, []DuplicateBase{{Index: 2, Class: a}, {Index: 3, Class: a}}, err.Duplicates)
	})
	t.Run("unresolvable", func(t *testing.T) {
		x := d.class("X", ClassLiteral(a), ClassLiteral(b))
		_, err := ComputeMRO(d, x)
		require.NotNil(t, err)
		assert.Equal(t, MROUnresolvable, err.Kind)
	})
	t.Run("invalid base", func(t *testing.T) {
		f := d.class("F", ClassLiteral(a), IntLiteral(1))
		_, err := ComputeMRO(d, f)
		require.NotNil(t, err)
		assert.Equal(t, MROInvalidBases, err.Kind)
		assert.Equal(t, []InvalidBase{{Index: 1, Type: IntLiteral(1)}}, err.InvalidBases)
	})
	t.Run("dynamic base", func(t *testing.T) {
		g := d.class("G", Unknown)
		mro, err := ComputeMRO(d, g)
		require.Nil(t, err)
		assert.Equal(t, []string{"Literal[G]", "Unknown", "Literal[object]"}, mroNames(mro))
	})
}

func TestInheritanceCycle(t *testing.T) {
	d := newFakeDb(t)
	p := d.class("P")
	q := d.class("Q", ClassLiteral(p))
	d.bases[p] = []Type{ClassLiteral(q)}
	r := d.class("R", ClassLiteral(p))

	assert.Equal(t, CycleParticipant, InheritanceCycleOf(d, p))
	assert.Equal(t, CycleParticipant, InheritanceCycleOf(d, q))
	assert.Equal(t, CycleInherited, InheritanceCycleOf(d, r))
	assert.Equal(t, NoCycle, InheritanceCycleOf(d, d.known[KnownInt]))

	mro, err := ComputeMRO(d, p)
	require.Nil(t, err)
	assert.Equal(t, []string{"Literal[P]", "Unknown", "Literal[object]"}, mroNames(mro))

	// Lookups through a cyclic class terminate.
	assert.Equal(t, Unknown, ClassMember(d, r, "anything").Type())
	assert.Equal(t, SubclassOfDynamic(Unknown), Metaclass(d, p))
}

func TestMetaclass(t *testing.T) {
	d := newFakeDb(t)
	typ := ClassLiteral(d.known[KnownType])
	m1 := d.class("M1", typ)
	m2 := d.class("M2", typ)
	m3 := d.class("M3", ClassLiteral(m1))
	a := d.class("A")
	d.metas[a] = ClassLiteral(m1)
	b := d.class("B")
	d.metas[b] = ClassLiteral(m2)

	meta, err := ComputeMetaclass(d, a)
	require.Nil(t, err)
	assert.Equal(t, ClassLiteral(m1), meta)

	plain := d.class("Plain")
	meta, err = ComputeMetaclass(d, plain)
	require.Nil(t, err)
	assert.Equal(t, typ, meta)

	t.Run("derived metaclass wins", func(t *testing.T) {
		c := d.class("C", ClassLiteral(a))
		d.metas[c] = ClassLiteral(m3)
		meta, err := ComputeMetaclass(d, c)
		require.Nil(t, err)
		assert.Equal(t, ClassLiteral(m3), meta)
	})
	t.Run("conflict between bases", func(t *testing.T) {
		c := d.class("C", ClassLiteral(a), ClassLiteral(b))
		_, err := ComputeMetaclass(d, c)
		require.NotNil(t, err)
		assert.Equal(t, MetaclassConflict, err.Kind)
		assert.Equal(t, MetaclassCandidate{Metaclass: m1, From: a}, err.Candidate1)
		assert.Equal(t, MetaclassCandidate{Metaclass: m2, From: b}, err.Candidate2)
		assert.True(t, err.Candidate1IsBase)
		assert.Equal(t, SubclassOfDynamic(Unknown), Metaclass(d, c), "the class stays usable")
	})
	t.Run("conflict with explicit metaclass", func(t *testing.T) {
		c := d.class("C", ClassLiteral(b))
		d.metas[c] = ClassLiteral(m1)
		_, err := ComputeMetaclass(d, c)
		require.NotNil(t, err)
		assert.False(t, err.Candidate1IsBase)
		assert.Equal(t, c, err.Candidate1.From)
	})
	t.Run("not callable", func(t *testing.T) {
		c := d.class("C")
		d.metas[c] = IntLiteral(1)
		_, err := ComputeMetaclass(d, c)
		require.NotNil(t, err)
		assert.Equal(t, MetaclassNotCallable, err.Kind)
	})
}

func TestMember(t *testing.T) {
	d := newFakeDb(t)
	base := d.class("Base")
	sub := d.class("Sub", ClassLiteral(base))
	f := d.method(base, "f", d.instance(KnownInt))
	d.define(base, "x", IntLiteral(1))
	d.attrs[sub] = map[string]Symbol{"y": BoundSymbol(d.instance(KnownStr))}

	assert.Equal(t, BoundMethod(d, f, Instance(sub)), Member(d, Instance(sub), "f").Type())
	assert.Equal(t, FunctionLiteral(f), Member(d, ClassLiteral(sub), "f").Type())
	assert.Equal(t, IntLiteral(1), Member(d, Instance(sub), "x").Type())
	assert.Equal(t, d.instance(KnownStr), Member(d, Instance(sub), "y").Type())
	assert.True(t, Member(d, Instance(sub), "missing").IsUnbound())
	assert.Equal(t, SubclassOf(sub), Member(d, Instance(sub), "__class__").Type())

	u := Member(d, Union(d, Instance(sub), None), "x")
	assert.True(t, u.IsPossiblyUnbound())
	assert.Equal(t, IntLiteral(1), u.Type())
}

func TestCall_Binding(t *testing.T) {
	d := newFakeDb(t)
	intT, strT := d.instance(KnownInt), d.instance(KnownStr)
	f := d.function("f", None,
		param("a", intT),
		Parameter{Name: "b", Kind: ast.PositionalOrKeyword, Annotated: true, Type: strT, HasDefault: true, Default: StringLiteral("")})
	callee := FunctionLiteral(f)

	tests := []struct {
		name    string
		args    []Argument
		lint    string
		message string
	}{
		{"ok", Positional(IntLiteral(1)), "", ""},
		{"keyword", []Argument{{Kind: ArgKeyword, Name: "a", Type: IntLiteral(1)}}, "", ""},
		{"missing", nil, diag.MissingArgument, "No argument provided for required parameter `a` of function `f`"},
		{"wrong type", Positional(strT), diag.InvalidArgumentType,
			"Object of type `str` cannot be assigned to parameter 1 (`a`) of function `f`; expected type `int`"},
		{"too many", Positional(IntLiteral(1), StringLiteral("x"), IntLiteral(3)), diag.TooManyPositional,
			"Too many positional arguments to function `f`: expected 2, got 3"},
		{"unknown keyword", []Argument{{Type: IntLiteral(1)}, {Kind: ArgKeyword, Name: "c", Type: None}}, diag.UnknownArgument,
			"Argument `c` does not match any known parameter of function `f`"},
		{"assigned twice", []Argument{{Type: IntLiteral(1)}, {Kind: ArgKeyword, Name: "a", Type: IntLiteral(2)}}, diag.ParameterAlreadyAssigned,
			"Multiple values provided for parameter `a` of function `f`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Call(d, callee, tt.args)
			assert.Equal(t, CallOK, out.Status)
			assert.Equal(t, None, out.Return)
			if tt.lint == "" {
				assert.Empty(t, out.Issues)
				return
			}
			require.Len(t, out.Issues, 1)
			assert.Equal(t, tt.lint, out.Issues[0].Lint)
			assert.Equal(t, tt.message, out.Issues[0].Message)
		})
	}
}

func TestCall_Callees(t *testing.T) {
	d := newFakeDb(t)
	c := d.class("C")
	f := d.function("f", d.instance(KnownInt))

	out := Call(d, ClassLiteral(c), nil)
	assert.Equal(t, Instance(c), out.Return)

	out = Call(d, IntLiteral(1), nil)
	assert.Equal(t, CallNotCallable, out.Status)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, "Object of type `Literal[1]` is not callable", out.Issues[0].Message)

	out = Call(d, Union(d, FunctionLiteral(f), None), nil)
	assert.Equal(t, CallPartlyNotCallable, out.Status)
	assert.Equal(t, "int | Unknown", out.Return.String())
	require.Len(t, out.Issues, 1)
	assert.Equal(t, "Object of type `Literal[f] | None` is not callable (due to union element `None`)", out.Issues[0].Message)

	out = Call(d, ClassLiteral(d.known[KnownBool]), Positional(IntLiteral(0)))
	assert.Equal(t, BoolLiteral(false), out.Return)

	out = Call(d, ClassLiteral(d.known[KnownType]), Positional(IntLiteral(0)))
	assert.Equal(t, ClassLiteral(d.known[KnownInt]), out.Return)

	out = Call(d, Unknown, Positional(IntLiteral(0)))
	assert.Equal(t, Unknown, out.Return)
}

func TestCall_MetaclassCall(t *testing.T) {
	d := newFakeDb(t)
	meta := d.class("Meta", ClassLiteral(d.known[KnownType]))
	d.method(meta, "__call__", d.instance(KnownStr))
	c := d.class("C")
	d.metas[c] = ClassLiteral(meta)

	out := Call(d, ClassLiteral(c), nil)
	assert.Equal(t, d.instance(KnownStr), out.Return)
}
