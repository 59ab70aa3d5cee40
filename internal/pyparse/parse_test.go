package pyparse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/knot/internal/ast"
)

func parse(t *testing.T, src string) *ast.Module {
	t.Helper()
	res, err := Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	require.Empty(t, res.Errors, "unexpected syntax errors")
	return res.Module
}

func onlyExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	mod := parse(t, src)
	require.Len(t, mod.Body, 1)
	es, ok := mod.Body[0].(*ast.ExprStmt)
	require.True(t, ok, "expected expression statement, got %T", mod.Body[0])
	return es.Value
}

func TestParse_Assignments(t *testing.T) {
	mod := parse(t, "x = y = 1\na, *b = t\nz: int = 3\nw: str\nn += 2\n")
	require.Len(t, mod.Body, 5)

	assign := mod.Body[0].(*ast.Assign)
	require.Len(t, assign.Targets, 2)
	assert.Equal(t, "x", assign.Targets[0].(*ast.Name).Ident)
	assert.Equal(t, "y", assign.Targets[1].(*ast.Name).Ident)
	assert.Equal(t, ast.Store, assign.Targets[0].(*ast.Name).Ctx)
	assert.Equal(t, int64(1), assign.Value.(*ast.IntLiteral).Value)

	unpack := mod.Body[1].(*ast.Assign)
	tup := unpack.Targets[0].(*ast.Tuple)
	require.Len(t, tup.Elts, 2)
	star := tup.Elts[1].(*ast.Starred)
	assert.Equal(t, ast.Store, star.Value.(*ast.Name).Ctx)

	ann := mod.Body[2].(*ast.AnnAssign)
	assert.Equal(t, "int", ann.Annotation.(*ast.Name).Ident)
	assert.NotNil(t, ann.Value)

	bare := mod.Body[3].(*ast.AnnAssign)
	assert.Nil(t, bare.Value)

	aug := mod.Body[4].(*ast.AugAssign)
	assert.Equal(t, ast.Add, aug.Op)
}

func TestParse_Literals(t *testing.T) {
	tests := []struct {
		src   string
		check func(t *testing.T, e ast.Expr)
	}{
		{"1_000", func(t *testing.T, e ast.Expr) { assert.Equal(t, int64(1000), e.(*ast.IntLiteral).Value) }},
		{"0x1f", func(t *testing.T, e ast.Expr) { assert.Equal(t, int64(31), e.(*ast.IntLiteral).Value) }},
		{"0o17", func(t *testing.T, e ast.Expr) { assert.Equal(t, int64(15), e.(*ast.IntLiteral).Value) }},
		{"99999999999999999999999", func(t *testing.T, e ast.Expr) { assert.True(t, e.(*ast.IntLiteral).Big) }},
		{"1.5", func(t *testing.T, e ast.Expr) { assert.Equal(t, 1.5, e.(*ast.FloatLiteral).Value) }},
		{"2j", func(t *testing.T, e ast.Expr) { assert.IsType(t, &ast.ComplexLiteral{}, e) }},
		{`"a\tb"`, func(t *testing.T, e ast.Expr) { assert.Equal(t, "a\tb", e.(*ast.StringLiteral).Value) }},
		{`r"a\tb"`, func(t *testing.T, e ast.Expr) { assert.Equal(t, `a\tb`, e.(*ast.StringLiteral).Value) }},
		{`"ab" "cd"`, func(t *testing.T, e ast.Expr) { assert.Equal(t, "abcd", e.(*ast.StringLiteral).Value) }},
		{`b"\x41b"`, func(t *testing.T, e ast.Expr) { assert.Equal(t, "Ab", e.(*ast.BytesLiteral).Value) }},
		{`f"{x} y"`, func(t *testing.T, e ast.Expr) {
			s := e.(*ast.StringLiteral)
			assert.True(t, s.FString)
			require.Len(t, s.Parts, 1)
			assert.Equal(t, "x", s.Parts[0].(*ast.Name).Ident)
		}},
		{"True", func(t *testing.T, e ast.Expr) { assert.True(t, e.(*ast.BoolLiteral).Value) }},
		{"None", func(t *testing.T, e ast.Expr) { assert.IsType(t, &ast.NoneLiteral{}, e) }},
		{"...", func(t *testing.T, e ast.Expr) { assert.True(t, ast.IsEllipsis(e)) }},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tt.check(t, onlyExpr(t, tt.src))
		})
	}
}

func TestParse_Operators(t *testing.T) {
	bin := onlyExpr(t, "a + b * c").(*ast.BinOp)
	assert.Equal(t, ast.Add, bin.Op)
	assert.Equal(t, ast.Mult, bin.Right.(*ast.BinOp).Op)

	cmp := onlyExpr(t, "a < b is not c not in d").(*ast.Compare)
	assert.Equal(t, []ast.CmpOp{ast.Lt, ast.IsNot, ast.NotIn}, cmp.Ops)
	assert.Len(t, cmp.Comparators, 3)

	boolop := onlyExpr(t, "a and b and c").(*ast.BoolOp)
	assert.Equal(t, ast.And, boolop.Op)
	assert.Len(t, boolop.Values, 3)

	mixed := onlyExpr(t, "a or b and c").(*ast.BoolOp)
	assert.Equal(t, ast.Or, mixed.Op)
	assert.Len(t, mixed.Values, 2)

	neg := onlyExpr(t, "not -x").(*ast.UnaryOp)
	assert.Equal(t, ast.Not, neg.Op)
	assert.Equal(t, ast.USub, neg.Operand.(*ast.UnaryOp).Op)

	cond := onlyExpr(t, "a if t else b").(*ast.IfExp)
	assert.Equal(t, "t", cond.Test.(*ast.Name).Ident)
	assert.Equal(t, "a", cond.Body.(*ast.Name).Ident)
}

func TestParse_Subscripts(t *testing.T) {
	sub := onlyExpr(t, "x[1]").(*ast.Subscript)
	assert.IsType(t, &ast.IntLiteral{}, sub.Index)

	multi := onlyExpr(t, "x[1, 2]").(*ast.Subscript)
	assert.Len(t, multi.Index.(*ast.Tuple).Elts, 2)

	sl := onlyExpr(t, "x[1:2:3]").(*ast.Subscript).Index.(*ast.Slice)
	assert.NotNil(t, sl.Lower)
	assert.NotNil(t, sl.Upper)
	assert.NotNil(t, sl.Step)

	upper := onlyExpr(t, "x[:2]").(*ast.Subscript).Index.(*ast.Slice)
	assert.Nil(t, upper.Lower)
	assert.NotNil(t, upper.Upper)
	assert.Nil(t, upper.Step)
}

func TestParse_Calls(t *testing.T) {
	call := onlyExpr(t, "f(1, *a, k=2, **kw)").(*ast.Call)
	assert.Len(t, call.Args, 2)
	require.Len(t, call.Keywords, 2)
	assert.Equal(t, "k", call.Keywords[0].Arg.Name)
	assert.Nil(t, call.Keywords[1].Arg)

	gen := onlyExpr(t, "sum(x for x in y if x)").(*ast.Call)
	require.Len(t, gen.Args, 1)
	g := gen.Args[0].(*ast.GeneratorExp)
	require.Len(t, g.Generators, 1)
	assert.Len(t, g.Generators[0].Ifs, 1)
}

func TestParse_Definitions(t *testing.T) {
	src := `@final
class C(B, metaclass=M):
    x: int = 1
    def f(self, a: int = 0, /, b=1, *args, c, **kw) -> str:
        return "s"

async def g[T](x: T) -> T: ...
`
	mod := parse(t, src)
	require.Len(t, mod.Body, 2)

	cls := mod.Body[0].(*ast.ClassDef)
	assert.Equal(t, "C", cls.Name.Name)
	assert.Len(t, cls.Decorators, 1)
	assert.Len(t, cls.Bases, 1)
	require.Len(t, cls.Keywords, 1)
	assert.Equal(t, "metaclass", cls.Keywords[0].Arg.Name)
	require.Len(t, cls.Body, 2)

	fn := cls.Body[1].(*ast.FunctionDef)
	kinds := make([]ast.ParamKind, 0, len(fn.Params.List))
	for _, p := range fn.Params.List {
		kinds = append(kinds, p.Kind)
	}
	assert.Equal(t, []ast.ParamKind{
		ast.PositionalOnly, ast.PositionalOnly, ast.PositionalOrKeyword,
		ast.VarPositional, ast.KeywordOnly, ast.VarKeyword,
	}, kinds)
	assert.NotNil(t, fn.Params.List[1].Annotation)
	assert.NotNil(t, fn.Params.List[1].Default)
	assert.Equal(t, "str", fn.Returns.(*ast.Name).Ident)

	g := mod.Body[1].(*ast.FunctionDef)
	assert.True(t, g.IsAsync)
	require.Len(t, g.TypeParams, 1)
	assert.Equal(t, "T", g.TypeParams[0].Name.Name)
}

func TestParse_Imports(t *testing.T) {
	mod := parse(t, "import a.b as c, d\nfrom ..pkg import x as y, z\nfrom m import *\n")
	require.Len(t, mod.Body, 3)

	imp := mod.Body[0].(*ast.Import)
	require.Len(t, imp.Names, 2)
	assert.Equal(t, "a.b", imp.Names[0].Name)
	assert.Equal(t, "c", imp.Names[0].AsName.Name)

	from := mod.Body[1].(*ast.ImportFrom)
	assert.Equal(t, 2, from.Level)
	assert.Equal(t, "pkg", from.Module)
	require.Len(t, from.Names, 2)
	assert.Equal(t, "y", from.Names[0].AsName.Name)

	star := mod.Body[2].(*ast.ImportFrom)
	assert.True(t, star.IsStarImport())
}

func TestParse_ControlFlow(t *testing.T) {
	src := `if a:
    pass
elif b:
    pass
else:
    pass
for i in xs:
    break
else:
    pass
while c:
    continue
try:
    pass
except (E, F) as e:
    pass
finally:
    pass
with open(p) as f, g:
    pass
`
	mod := parse(t, src)
	require.Len(t, mod.Body, 5)

	ifs := mod.Body[0].(*ast.If)
	require.Len(t, ifs.Orelse, 1)
	elif := ifs.Orelse[0].(*ast.If)
	assert.Len(t, elif.Orelse, 1)

	loop := mod.Body[1].(*ast.For)
	assert.Len(t, loop.Orelse, 1)
	assert.Equal(t, ast.Store, loop.Target.(*ast.Name).Ctx)

	tr := mod.Body[3].(*ast.Try)
	require.Len(t, tr.Handlers, 1)
	assert.Equal(t, "e", tr.Handlers[0].Name.Name)
	assert.IsType(t, &ast.Tuple{}, tr.Handlers[0].Type)
	assert.Len(t, tr.Finalbody, 1)

	with := mod.Body[4].(*ast.With)
	require.Len(t, with.Items, 2)
	assert.Equal(t, "f", with.Items[0].OptionalVars.(*ast.Name).Ident)
	assert.Nil(t, with.Items[1].OptionalVars)
}

func TestParse_Match(t *testing.T) {
	src := `match p:
    case 1 | -2:
        pass
    case [x, *rest]:
        pass
    case Point(x=0, y=py) as pt:
        pass
    case {"k": v, **others}:
        pass
    case _:
        pass
`
	mod := parse(t, src)
	m := mod.Body[0].(*ast.Match)
	require.Len(t, m.Cases, 5)

	or := m.Cases[0].Pattern.(*ast.MatchOr)
	require.Len(t, or.Patterns, 2)
	neg := or.Patterns[1].(*ast.MatchValue).Value.(*ast.UnaryOp)
	assert.Equal(t, ast.USub, neg.Op)

	seq := m.Cases[1].Pattern.(*ast.MatchSequence)
	require.Len(t, seq.Patterns, 2)
	assert.Equal(t, "x", seq.Patterns[0].(*ast.MatchAs).Name.Name)
	assert.Equal(t, "rest", seq.Patterns[1].(*ast.MatchStar).Name.Name)

	as := m.Cases[2].Pattern.(*ast.MatchAs)
	assert.Equal(t, "pt", as.Name.Name)
	cls := as.Pattern.(*ast.MatchClass)
	require.Len(t, cls.KwdAttrs, 2)
	assert.Equal(t, "y", cls.KwdAttrs[1].Name)

	mapping := m.Cases[3].Pattern.(*ast.MatchMapping)
	assert.Len(t, mapping.Keys, 1)
	assert.Equal(t, "others", mapping.Rest.Name)

	wild := m.Cases[4].Pattern.(*ast.MatchAs)
	assert.Nil(t, wild.Pattern)
	assert.Nil(t, wild.Name)
}

func TestParse_SyntaxErrorsAreRecoverable(t *testing.T) {
	res, err := Parse(context.Background(), []byte("x = (1,\ny = 2\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Errors)
	assert.NotNil(t, res.Module)
}

func TestParse_UniqueNodeIDs(t *testing.T) {
	mod := parse(t, "def f(a, b=1):\n    return [x * a for x in range(b)]\n")
	seen := map[ast.NodeID]bool{}
	ast.Inspect(mod, func(n ast.Node) bool {
		if n.ID() == 0 {
			return true
		}
		assert.False(t, seen[n.ID()], "duplicate id %d", n.ID())
		seen[n.ID()] = true
		return true
	})
	assert.Greater(t, len(seen), 10)
}

func TestParseExpression(t *testing.T) {
	span := ast.Range{Start: ast.Position{Line: 3, Column: 5}, End: ast.Position{Line: 3, Column: 15}}
	e, err := ParseExpression(context.Background(), "list[int] | None", 1<<20, span)
	require.NoError(t, err)
	bin := e.(*ast.BinOp)
	assert.Equal(t, ast.BitOr, bin.Op)
	assert.Equal(t, span, bin.Span())
	assert.Greater(t, uint32(bin.ID()), uint32(1<<20))

	_, err = ParseExpression(context.Background(), "x = 1", 0, span)
	assert.Error(t, err)

	_, err = ParseExpression(context.Background(), "(", 0, span)
	assert.Error(t, err)
}
