package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/pyparse"
)

func build(t *testing.T, src string) *Index {
	t.Helper()
	return buildWith(t, src, Options{})
}

func buildWith(t *testing.T, src string, opts Options) *Index {
	t.Helper()
	res, err := pyparse.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	return Build(res.Module, opts)
}

// loads returns the load and delete occurrences of ident in source order.
func loads(ix *Index, ident string) []*ast.Name {
	var out []*ast.Name
	ast.Inspect(ix.Module(), func(n ast.Node) bool {
		if name, ok := n.(*ast.Name); ok && name.Ident == ident && name.Ctx != ast.Store {
			out = append(out, name)
		}
		return true
	})
	return out
}

func useAt(t *testing.T, ix *Index, ident string, nth int) Bindings {
	t.Helper()
	names := loads(ix, ident)
	require.Greater(t, len(names), nth, "no load %d of %s", nth, ident)
	scope := ix.ExpressionScope(names[nth].ID())
	b, ok := ix.UseDef(scope).BindingsAtUse(names[nth].ID())
	require.True(t, ok)
	return b
}

// values returns the integer literal assigned by each live binding.
func values(t *testing.T, b Bindings) []int64 {
	t.Helper()
	var out []int64
	for _, lb := range b.Live {
		lit, ok := lb.Def.Value.(*ast.IntLiteral)
		require.True(t, ok, "binding %s has no int value", lb.Def)
		out = append(out, lit.Value)
	}
	return out
}

func scopeNamed(t *testing.T, ix *Index, name string, kind ScopeKind) *Scope {
	t.Helper()
	for _, s := range ix.Scopes() {
		if s.Name == name && s.Kind == kind {
			return s
		}
	}
	t.Fatalf("no %s scope %q", kind, name)
	return nil
}

func TestBuild_ScopeTree(t *testing.T) {
	ix := build(t, `
class C[T](Base):
    def m(self, x: T) -> T:
        return [y for y in x]
f = lambda a: a
type Alias[U] = list[U]
`)
	cls := scopeNamed(t, ix, "C", ClassScope)
	ann := ix.Scope(cls.Parent)
	assert.Equal(t, AnnotationScope, ann.Kind)
	assert.Equal(t, ModuleScopeID, ann.Parent)

	m := scopeNamed(t, ix, "m", FunctionScope)
	assert.Equal(t, cls.ID, m.Parent)
	require.Len(t, m.Children, 1)
	assert.Equal(t, ComprehensionScope, ix.Scope(m.Children[0]).Kind)
	assert.True(t, ix.Scope(m.Children[0]).IsEager())
	assert.True(t, m.IsFunctionLike())

	scopeNamed(t, ix, "<lambda>", LambdaScope)
	alias := scopeNamed(t, ix, "Alias", AnnotationScope)
	assert.Equal(t, ModuleScopeID, alias.Parent)

	tSym, ok := ix.Symbols(ann.ID).ByName("T")
	require.True(t, ok)
	assert.True(t, tSym.IsBound())

	// Base is loaded in the type-parameter scope.
	base := loads(ix, "Base")
	require.Len(t, base, 1)
	assert.Equal(t, ann.ID, ix.ExpressionScope(base[0].ID()))
}

func TestBuild_DefinitionCategories(t *testing.T) {
	ix := build(t, `
import os.path
from m import a as b
x = 1
y: int
z: int = 2
def f(p, q: int, *args, **kw): pass
class K: pass
`)
	tests := []struct {
		name string
		kind DefinitionKind
		cat  DefinitionCategory
	}{
		{"os", ImportDefinition, DeclarationAndBinding},
		{"b", ImportFromDefinition, DeclarationAndBinding},
		{"x", AssignmentDefinition, Binding},
		{"y", AnnotatedAssignmentDefinition, Declaration},
		{"z", AnnotatedAssignmentDefinition, DeclarationAndBinding},
		{"f", FunctionDefinition, DeclarationAndBinding},
		{"K", ClassDefinition, DeclarationAndBinding},
		{"p", ParameterDefinition, Binding},
		{"q", ParameterDefinition, DeclarationAndBinding},
		{"args", VariadicPositionalDefinition, Binding},
		{"kw", VariadicKeywordDefinition, Binding},
	}
	byName := map[string]*Definition{}
	for _, d := range ix.AllDefinitions() {
		byName[d.Name] = d
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := byName[tt.name]
			require.True(t, ok)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.cat, d.Category())
			assert.Same(t, d, ix.Definition(d.Node))
		})
	}
	assert.Equal(t, "os.path", byName["os"].Module)
}

func TestUseDef_IfElse(t *testing.T) {
	ix := build(t, `
if c:
    x = 1
else:
    x = 2
use(x)
if c:
    y = 3
use(y)
`)
	bx := useAt(t, ix, "x", 0)
	assert.ElementsMatch(t, []int64{1, 2}, values(t, bx))
	assert.False(t, bx.MayBeUnbound)

	by := useAt(t, ix, "y", 0)
	assert.Equal(t, []int64{3}, values(t, by))
	assert.True(t, by.MayBeUnbound)
}

func TestUseDef_ElifChain(t *testing.T) {
	ix := build(t, `
if a:
    x = 1
elif b:
    x = 2
else:
    x = 3
use(x)
`)
	b := useAt(t, ix, "x", 0)
	assert.ElementsMatch(t, []int64{1, 2, 3}, values(t, b))
	assert.False(t, b.MayBeUnbound)
}

func TestUseDef_ReturnMakesUnreachable(t *testing.T) {
	ix := build(t, `
def f(c):
    x = 1
    if c:
        x = 2
        return
        use(x)
    use(x)
    x = 3
`)
	dead := useAt(t, ix, "x", 0)
	assert.True(t, dead.IsUnreachable())

	after := useAt(t, ix, "x", 1)
	assert.Equal(t, []int64{1}, values(t, after))

	fn := scopeNamed(t, ix, "f", FunctionScope)
	sym, _ := ix.Symbols(fn.ID).Lookup("x")
	public := ix.UseDef(fn.ID).PublicBindings(sym)
	assert.ElementsMatch(t, []int64{2, 3}, values(t, public), "early exits reach the end of the scope")
}

func TestUseDef_ForBreakElse(t *testing.T) {
	ix := build(t, `
for i in r:
    x = 1
    break
else:
    x = 2
use(x)
`)
	b := useAt(t, ix, "x", 0)
	assert.ElementsMatch(t, []int64{2, 1}, values(t, b))
	assert.False(t, b.MayBeUnbound)
}

func TestUseDef_WhileContinue(t *testing.T) {
	ix := build(t, `
while c:
    if d:
        x = 1
        continue
    x = 2
use(x)
`)
	b := useAt(t, ix, "x", 0)
	assert.ElementsMatch(t, []int64{1, 2}, values(t, b))
	assert.True(t, b.MayBeUnbound, "the loop may not run")
}

func TestUseDef_Try(t *testing.T) {
	ix := build(t, `
try:
    x = 1
    x = 2
except E as e:
    use(x)
    x = 3
finally:
    use(x)
`)
	handler := useAt(t, ix, "x", 0)
	assert.ElementsMatch(t, []int64{1, 2}, values(t, handler))
	assert.True(t, handler.MayBeUnbound)

	final := useAt(t, ix, "x", 1)
	assert.ElementsMatch(t, []int64{2, 3}, values(t, final))

	e := ix.AllDefinitions()[2]
	assert.Equal(t, ExceptHandlerDefinition, e.Kind)
	assert.Equal(t, "e", e.Name)
}

func TestUseDef_Match(t *testing.T) {
	ix := build(t, `
match v:
    case 1:
        x = 1
    case _:
        x = 2
use(x)
match v:
    case [a, *rest]:
        y = 3
use(y)
`)
	x := useAt(t, ix, "x", 0)
	assert.ElementsMatch(t, []int64{1, 2}, values(t, x))
	assert.False(t, x.MayBeUnbound, "wildcard case is exhaustive")

	y := useAt(t, ix, "y", 0)
	assert.True(t, y.MayBeUnbound)

	var captures []string
	for _, d := range ix.AllDefinitions() {
		if d.Kind == MatchPatternDefinition {
			captures = append(captures, d.Name)
		}
	}
	assert.Equal(t, []string{"a", "rest"}, captures)
}

func TestUseDef_Delete(t *testing.T) {
	ix := build(t, "x = 1\ndel x\nuse(x)\n")
	b := useAt(t, ix, "x", 1)
	assert.Empty(t, b.Live)
	assert.True(t, b.MayBeUnbound)

	atDel := useAt(t, ix, "x", 0)
	assert.Equal(t, []int64{1}, values(t, atDel))
}

func TestUseDef_Declarations(t *testing.T) {
	ix := build(t, "x: int\nx = 1\ny = 2\ny: str\n")
	defs := ix.AllDefinitions()
	require.Len(t, defs, 4)
	ud := ix.UseDef(ModuleScopeID)

	decls := ud.DeclarationsAtBinding(defs[1])
	require.Len(t, decls.Live, 1)
	assert.Same(t, defs[0], decls.Live[0])
	assert.False(t, decls.MayBeUndeclared)

	bindings := ud.BindingsAtDeclaration(defs[3])
	require.Len(t, bindings.Live, 1)
	assert.Same(t, defs[2], bindings.Live[0].Def)
}

func TestConstraints(t *testing.T) {
	ix := build(t, `
x = f()
if x is None:
    use(x)
else:
    use(x)
use(x)
`)
	pos := useAt(t, ix, "x", 1)
	require.Len(t, pos.Live, 1)
	require.Len(t, pos.Live[0].Constraints, 1)
	assert.True(t, pos.Live[0].Constraints[0].Positive)

	neg := useAt(t, ix, "x", 2)
	require.Len(t, neg.Live[0].Constraints, 1)
	assert.False(t, neg.Live[0].Constraints[0].Positive)

	after := useAt(t, ix, "x", 3)
	assert.Empty(t, after.Live[0].Constraints, "guards do not survive the merge")

	test := ix.Module().Body[1].(*ast.If).Test
	require.NotNil(t, ix.Expression(test))
}

func TestConstraints_BoolOp(t *testing.T) {
	ix := build(t, "x = f()\nx is not None and use(x)\n")
	inside := useAt(t, ix, "x", 1)
	require.Len(t, inside.Live[0].Constraints, 1)
	assert.True(t, inside.Live[0].Constraints[0].Positive)
}

func TestEagerSnapshots(t *testing.T) {
	ix := build(t, `
x = 1
class C:
    y = x
    z = [x for _ in y]
x = 2
def f():
    return [x for _ in r]
`)
	cls := scopeNamed(t, ix, "C", ClassScope)
	b, res := ix.EagerBindings(ModuleScopeID, "x", cls.ID)
	require.Equal(t, EagerFound, res)
	assert.Equal(t, []int64{1}, values(t, b))

	comp := ix.Scope(cls.Children[0])
	b, res = ix.EagerBindings(ModuleScopeID, "x", comp.ID)
	require.Equal(t, EagerFound, res, "snapshots pass through eager ancestors")
	assert.Equal(t, []int64{1}, values(t, b))

	fn := scopeNamed(t, ix, "f", FunctionScope)
	inner := ix.Scope(fn.Children[0])
	_, res = ix.EagerBindings(ModuleScopeID, "x", inner.ID)
	assert.Equal(t, EagerLazy, res)

	_, res = ix.EagerBindings(ModuleScopeID, "missing", cls.ID)
	assert.Equal(t, EagerNotFound, res)
}

func TestComprehension_Scopes(t *testing.T) {
	ix := build(t, "r = [v for a in xs for v in a if (w := v)]\n")
	outer := loads(ix, "xs")
	require.Len(t, outer, 1)
	assert.Equal(t, ModuleScopeID, ix.ExpressionScope(outer[0].ID()), "first iterable runs outside")

	inner := loads(ix, "a")
	require.Len(t, inner, 1)
	assert.NotEqual(t, ModuleScopeID, ix.ExpressionScope(inner[0].ID()))
	assert.NotNil(t, ix.Expression(inner[0]))

	sym, ok := ix.Symbols(ModuleScopeID).ByName("w")
	require.True(t, ok, "walrus binds in the enclosing scope")
	assert.True(t, sym.IsBound())
}

func TestInstanceAttributes(t *testing.T) {
	ix := build(t, `
class C:
    def __init__(self, v):
        self.a = v
        self.b: int = 1
        self.a += 1
        other.c = 2
        def helper():
            self.d = 3
    @staticmethod
    def s(x):
        x.e = 4
`)
	cls := scopeNamed(t, ix, "C", ClassScope)
	assert.Equal(t, []string{"a", "b", "e"}, ix.InstanceAttributeNames(cls.ID))

	a := ix.InstanceAttributes(cls.ID, "a")
	require.Len(t, a, 2)
	assert.NotNil(t, a[0].Value)
	assert.Nil(t, a[1].Value)

	b := ix.InstanceAttributes(cls.ID, "b")
	require.Len(t, b, 1)
	assert.NotNil(t, b[0].Annotation)
}

func TestStarImportAndFuture(t *testing.T) {
	var gotModule string
	ix := buildWith(t, "from __future__ import annotations\nfrom pkg import *\n", Options{
		StarImport: func(module string, level int) []string {
			gotModule = module
			return []string{"a", "b"}
		},
	})
	assert.True(t, ix.HasFutureAnnotations())
	assert.Equal(t, "pkg", gotModule)

	star := ix.Module().Body[1]
	defs := ix.Definitions(star)
	require.Len(t, defs, 2)
	assert.Equal(t, StarImportDefinition, defs[0].Kind)
	assert.Equal(t, "b", defs[1].Name)
}

func TestLocalCapture(t *testing.T) {
	ix := build(t, "x = 1\ndef f():\n    y = x\n    x = 2\n")
	b := useAt(t, ix, "x", 0)
	assert.Empty(t, b.Live)
	assert.True(t, b.MayBeUnbound)

	fn := scopeNamed(t, ix, "f", FunctionScope)
	sym, ok := ix.Symbols(fn.ID).ByName("x")
	require.True(t, ok)
	assert.True(t, sym.IsBound())
}
