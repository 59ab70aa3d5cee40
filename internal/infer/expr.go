package infer

import (
	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/types"
)

// inferExpr infers e and records its type. A standalone expression other
// than the region's root is inferred in its own region and merged.
func (b *builder) inferExpr(e ast.Expr) types.Type {
	if e == nil {
		return types.Unknown
	}
	if !b.parsed {
		if se := b.ix.Expression(e); se != nil {
			if ast.Node(e) != b.root {
				r := b.s.InferExpression(se)
				b.merge(r)
				return r.ExpressionType(e)
			}
			debugAssert(b.standalone, "standalone expression at %s inferred outside its own region", e.Span())
		}
	}
	t := b.inferExprKind(e)
	b.store(e, t)
	return t
}

func (b *builder) inferExprKind(e ast.Expr) types.Type {
	db := b.db()
	switch e := e.(type) {
	case *ast.Name:
		if e.Ctx == ast.Store {
			return types.Unknown
		}
		return b.lookupName(e)
	case *ast.IntLiteral:
		if e.Big {
			return types.KnownInt.Instance(db)
		}
		return types.IntLiteral(e.Value)
	case *ast.FloatLiteral:
		return types.KnownFloat.Instance(db)
	case *ast.ComplexLiteral:
		return types.KnownComplex.Instance(db)
	case *ast.StringLiteral:
		if e.FString {
			for _, p := range e.Parts {
				b.inferExpr(p)
			}
			return types.KnownStr.Instance(db)
		}
		return types.StringLiteral(e.Value)
	case *ast.BytesLiteral:
		if len(e.Value) > types.MaxLiteralLength {
			return types.KnownBytes.Instance(db)
		}
		return types.BytesLiteral(e.Value)
	case *ast.BoolLiteral:
		return types.BoolLiteral(e.Value)
	case *ast.NoneLiteral:
		return types.None
	case *ast.EllipsisLiteral:
		return types.KnownEllipsisType.Instance(db)
	case *ast.Tuple:
		return b.tuple(e)
	case *ast.List:
		for _, el := range e.Elts {
			b.inferExpr(el)
		}
		return types.KnownList.Instance(db)
	case *ast.Set:
		for _, el := range e.Elts {
			b.inferExpr(el)
		}
		return types.KnownSet.Instance(db)
	case *ast.Dict:
		for i, v := range e.Values {
			if e.Keys[i] != nil {
				b.inferExpr(e.Keys[i])
			}
			b.inferExpr(v)
		}
		return types.KnownDict.Instance(db)
	case *ast.Starred:
		b.inferExpr(e.Value)
		return types.Todo
	case *ast.Attribute:
		return b.attribute(e)
	case *ast.Subscript:
		value := b.inferExpr(e.Value)
		index := b.inferExpr(e.Index)
		t, issues := types.Subscript(db, value, index)
		b.reportIssues(e.Value, issues)
		return t
	case *ast.Slice:
		return b.slice(e)
	case *ast.Call:
		return b.call(e)
	case *ast.BinOp:
		return b.binOp(e)
	case *ast.UnaryOp:
		operand := b.inferExpr(e.Operand)
		t, ok := types.UnaryOp(db, e.Op, operand)
		if !ok {
			b.report(e, diag.UnsupportedOperator, "Unary operator `%s` is unsupported for type `%s`", e.Op, operand)
			return types.Unknown
		}
		return t
	case *ast.BoolOp:
		operands := make([]types.Type, len(e.Values))
		for i, v := range e.Values {
			operands[i] = b.inferExpr(v)
		}
		return types.BoolChain(db, e.Op == ast.And, operands)
	case *ast.Compare:
		return b.compare(e)
	case *ast.IfExp:
		test := b.inferExpr(e.Test)
		body := b.inferExpr(e.Body)
		orelse := b.inferExpr(e.Orelse)
		switch types.Bool(db, test) {
		case types.AlwaysTrue:
			return body
		case types.AlwaysFalse:
			return orelse
		}
		return types.Union(db, body, orelse)
	case *ast.Lambda:
		if e.Params != nil {
			for _, p := range e.Params.List {
				if p.Default != nil {
					b.inferExpr(p.Default)
				}
			}
		}
		return types.Todo
	case *ast.NamedExpr:
		def := b.ix.Definition(e)
		if def == nil {
			b.inferExpr(e.Value)
			return types.Unknown
		}
		return b.definition(def).BindingType(def)
	case *ast.ListComp:
		b.firstIterable(e.Generators)
		return types.KnownList.Instance(db)
	case *ast.SetComp:
		b.firstIterable(e.Generators)
		return types.KnownSet.Instance(db)
	case *ast.DictComp:
		b.firstIterable(e.Generators)
		return types.KnownDict.Instance(db)
	case *ast.GeneratorExp:
		b.firstIterable(e.Generators)
		return types.Todo
	case *ast.Await:
		b.inferExpr(e.Value)
		return types.Todo
	case *ast.Yield:
		if e.Value != nil {
			b.inferExpr(e.Value)
		}
		return types.Todo
	case *ast.YieldFrom:
		b.inferExpr(e.Value)
		return types.Todo
	case *ast.BadExpr:
		return types.Unknown
	}
	debugAssert(false, "unhandled expression %T at %s", e, e.Span())
	return types.Unknown
}

func (b *builder) tuple(e *ast.Tuple) types.Type {
	elems := make([]types.Type, len(e.Elts))
	starred := false
	for i, el := range e.Elts {
		elems[i] = b.inferExpr(el)
		if _, ok := el.(*ast.Starred); ok {
			starred = true
		}
	}
	if starred {
		return types.KnownTuple.Instance(b.db())
	}
	return types.Tuple(b.db(), elems...)
}

// firstIterable infers the outermost iterable of a comprehension, which
// belongs to the enclosing scope.
func (b *builder) firstIterable(gens []*ast.Comprehension) {
	if len(gens) == 0 {
		return
	}
	b.iterate(gens[0].Iter, b.inferExpr(gens[0].Iter), gens[0].IsAsync)
}

func (b *builder) attribute(e *ast.Attribute) types.Type {
	value := b.inferExpr(e.Value)
	sym := types.Member(b.db(), value, e.Attr.Name)
	switch {
	case sym.IsUnbound():
		b.report(e.Attr, diag.UnresolvedAttribute, "Type `%s` has no attribute `%s`", value, e.Attr.Name)
		return types.Unknown
	case sym.IsPossiblyUnbound():
		b.report(e.Attr, diag.PossiblyUnboundAttribute, "Attribute `%s` on type `%s` is possibly unbound", e.Attr.Name, value)
	}
	return sym.Type()
}

func (b *builder) slice(e *ast.Slice) types.Type {
	literal := true
	bound := func(x ast.Expr) *int64 {
		if x == nil {
			return nil
		}
		t := b.inferExpr(x)
		if t.IsNone() {
			return nil
		}
		n, ok := t.IntValue()
		if !ok {
			literal = false
			return nil
		}
		return &n
	}
	lower, upper, step := bound(e.Lower), bound(e.Upper), bound(e.Step)
	if !literal {
		return types.KnownSlice.Instance(b.db())
	}
	return types.SliceLiteral(b.db(), lower, upper, step)
}

func (b *builder) call(e *ast.Call) types.Type {
	callee := b.inferExpr(e.Func)
	var args []types.Argument
	var nodes []ast.Node
	for _, a := range e.Args {
		if st, ok := a.(*ast.Starred); ok {
			t := b.inferExpr(st.Value)
			b.store(st, t)
			args = append(args, types.Argument{Kind: types.ArgVariadic, Type: t})
		} else {
			args = append(args, types.Argument{Kind: types.ArgPositional, Type: b.inferExpr(a)})
		}
		nodes = append(nodes, a)
	}
	for _, kw := range e.Keywords {
		t := b.inferExpr(kw.Value)
		if kw.Arg == nil {
			args = append(args, types.Argument{Kind: types.ArgKeywordVariadic, Type: t})
		} else {
			args = append(args, types.Argument{Kind: types.ArgKeyword, Name: kw.Arg.Name, Type: t})
		}
		nodes = append(nodes, kw)
	}

	out := types.Call(b.db(), callee, args)
	for _, is := range out.Issues {
		var at ast.Node = e
		if is.Arg >= 0 && is.Arg < len(nodes) {
			at = nodes[is.Arg]
		}
		b.report(at, is.Lint, "%s", is.Message)
	}
	if out.Revealed != nil {
		b.report(e, diag.RevealedType, "Revealed type is `%s`", *out.Revealed)
	}
	return out.Return
}

var zeroDivision = map[ast.Operator]string{
	ast.Div:      "Cannot divide object of type `%s` by zero",
	ast.FloorDiv: "Cannot floor divide object of type `%s` by zero",
	ast.Mod:      "Cannot reduce object of type `%s` modulo zero",
}

func (b *builder) binOp(e *ast.BinOp) types.Type {
	left := b.inferExpr(e.Left)
	right := b.inferExpr(e.Right)
	if msg, ok := zeroDivision[e.Op]; ok && b.dividesByZero(left, right) {
		b.report(e, diag.DivisionByZero, msg, left)
	}
	t, ok := types.BinaryOp(b.db(), left, e.Op, right)
	if !ok {
		b.report(e, diag.UnsupportedOperator, "Operator `%s` is unsupported between objects of type `%s` and `%s`", e.Op, left, right)
		return types.Unknown
	}
	return t
}

// dividesByZero reports a literal zero divisor of an int, bool or float
// dividend.
func (b *builder) dividesByZero(left, right types.Type) bool {
	n, ok := right.IntValue()
	if !ok || n != 0 {
		return false
	}
	switch left.Kind() {
	case types.KindIntLiteral, types.KindBoolLiteral:
		return true
	}
	return left.IsInstanceOf(types.KnownInt) || left.IsInstanceOf(types.KnownBool) || left.IsInstanceOf(types.KnownFloat)
}

func (b *builder) compare(e *ast.Compare) types.Type {
	db := b.db()
	left := b.inferExpr(e.Left)
	results := make([]types.Type, 0, len(e.Ops))
	for i, op := range e.Ops {
		right := b.inferExpr(e.Comparators[i])
		t, err := types.Compare(db, left, op, right)
		if err != nil {
			b.report(e, diag.UnsupportedOperator, "%s", err.Error())
			t = types.Unknown
		}
		results = append(results, t)
		left = right
	}
	if len(results) == 1 {
		return results[0]
	}
	return types.BoolChain(db, true, results)
}
