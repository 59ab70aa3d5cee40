package ast

// Inspect traverses the tree rooted at n in depth-first source order,
// calling f for each node. If f returns false the children of that node are
// skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	walkChildren(n, func(c Node) { Inspect(c, f) })
}

func walkChildren(n Node, visit func(Node)) {
	expr := func(e Expr) {
		if e != nil {
			visit(e)
		}
	}
	exprs := func(es []Expr) {
		for _, e := range es {
			expr(e)
		}
	}
	stmts := func(ss []Stmt) {
		for _, s := range ss {
			visit(s)
		}
	}
	ident := func(id *Identifier) {
		if id != nil {
			visit(id)
		}
	}
	params := func(p *Parameters) {
		if p != nil {
			visit(p)
		}
	}
	typeParams := func(tps []*TypeParam) {
		for _, tp := range tps {
			visit(tp)
		}
	}
	patterns := func(ps []Pattern) {
		for _, p := range ps {
			if p != nil {
				visit(p)
			}
		}
	}
	comprehensions := func(gs []*Comprehension) {
		for _, g := range gs {
			visit(g)
		}
	}

	switch n := n.(type) {
	case *Module:
		stmts(n.Body)
	case *Identifier, *Name, *IntLiteral, *FloatLiteral, *ComplexLiteral,
		*BytesLiteral, *BoolLiteral, *NoneLiteral, *EllipsisLiteral, *Pass,
		*Break, *Continue, *Alias, *BadExpr:
	case *StringLiteral:
		exprs(n.Parts)
	case *Tuple:
		exprs(n.Elts)
	case *List:
		exprs(n.Elts)
	case *Set:
		exprs(n.Elts)
	case *Dict:
		for i := range n.Values {
			expr(n.Keys[i])
			expr(n.Values[i])
		}
	case *Starred:
		expr(n.Value)
	case *Attribute:
		expr(n.Value)
		ident(n.Attr)
	case *Subscript:
		expr(n.Value)
		expr(n.Index)
	case *Slice:
		expr(n.Lower)
		expr(n.Upper)
		expr(n.Step)
	case *Keyword:
		ident(n.Arg)
		expr(n.Value)
	case *Call:
		expr(n.Func)
		exprs(n.Args)
		for _, kw := range n.Keywords {
			visit(kw)
		}
	case *BinOp:
		expr(n.Left)
		expr(n.Right)
	case *UnaryOp:
		expr(n.Operand)
	case *BoolOp:
		exprs(n.Values)
	case *Compare:
		expr(n.Left)
		exprs(n.Comparators)
	case *IfExp:
		expr(n.Body)
		expr(n.Test)
		expr(n.Orelse)
	case *Lambda:
		params(n.Params)
		expr(n.Body)
	case *NamedExpr:
		visit(n.Target)
		expr(n.Value)
	case *Comprehension:
		expr(n.Target)
		expr(n.Iter)
		exprs(n.Ifs)
	case *ListComp:
		expr(n.Elt)
		comprehensions(n.Generators)
	case *SetComp:
		expr(n.Elt)
		comprehensions(n.Generators)
	case *GeneratorExp:
		expr(n.Elt)
		comprehensions(n.Generators)
	case *DictComp:
		expr(n.Key)
		expr(n.Value)
		comprehensions(n.Generators)
	case *Await:
		expr(n.Value)
	case *Yield:
		expr(n.Value)
	case *YieldFrom:
		expr(n.Value)
	case *Parameters:
		for _, p := range n.List {
			visit(p)
		}
	case *Parameter:
		ident(n.Name)
		expr(n.Annotation)
		expr(n.Default)
	case *TypeParam:
		ident(n.Name)
		expr(n.Bound)
	case *ExceptHandler:
		expr(n.Type)
		ident(n.Name)
		stmts(n.Body)
	case *WithItem:
		expr(n.ContextExpr)
		expr(n.OptionalVars)
	case *MatchCase:
		if n.Pattern != nil {
			visit(n.Pattern)
		}
		expr(n.Guard)
		stmts(n.Body)
	case *FunctionDef:
		exprs(n.Decorators)
		ident(n.Name)
		typeParams(n.TypeParams)
		params(n.Params)
		expr(n.Returns)
		stmts(n.Body)
	case *ClassDef:
		exprs(n.Decorators)
		ident(n.Name)
		typeParams(n.TypeParams)
		exprs(n.Bases)
		for _, kw := range n.Keywords {
			visit(kw)
		}
		stmts(n.Body)
	case *Return:
		expr(n.Value)
	case *Delete:
		exprs(n.Targets)
	case *Assign:
		exprs(n.Targets)
		expr(n.Value)
	case *AugAssign:
		expr(n.Target)
		expr(n.Value)
	case *AnnAssign:
		expr(n.Target)
		expr(n.Annotation)
		expr(n.Value)
	case *TypeAlias:
		visit(n.Name)
		typeParams(n.TypeParams)
		expr(n.Value)
	case *For:
		expr(n.Target)
		expr(n.Iter)
		stmts(n.Body)
		stmts(n.Orelse)
	case *While:
		expr(n.Test)
		stmts(n.Body)
		stmts(n.Orelse)
	case *If:
		expr(n.Test)
		stmts(n.Body)
		stmts(n.Orelse)
	case *With:
		for _, item := range n.Items {
			visit(item)
		}
		stmts(n.Body)
	case *Match:
		expr(n.Subject)
		for _, c := range n.Cases {
			visit(c)
		}
	case *Raise:
		expr(n.Exc)
		expr(n.Cause)
	case *Try:
		stmts(n.Body)
		for _, h := range n.Handlers {
			visit(h)
		}
		stmts(n.Orelse)
		stmts(n.Finalbody)
	case *Assert:
		expr(n.Test)
		expr(n.Msg)
	case *Import:
		for _, a := range n.Names {
			visit(a)
		}
	case *ImportFrom:
		for _, a := range n.Names {
			visit(a)
		}
	case *Global:
		for _, id := range n.Names {
			visit(id)
		}
	case *Nonlocal:
		for _, id := range n.Names {
			visit(id)
		}
	case *ExprStmt:
		expr(n.Value)
	case *MatchValue:
		expr(n.Value)
	case *MatchSingleton:
		expr(n.Value)
	case *MatchSequence:
		patterns(n.Patterns)
	case *MatchMapping:
		for i := range n.Patterns {
			expr(n.Keys[i])
			visit(n.Patterns[i])
		}
		ident(n.Rest)
	case *MatchClass:
		expr(n.Cls)
		patterns(n.Patterns)
		for i := range n.KwdPatterns {
			ident(n.KwdAttrs[i])
			visit(n.KwdPatterns[i])
		}
	case *MatchStar:
		ident(n.Name)
	case *MatchAs:
		if n.Pattern != nil {
			visit(n.Pattern)
		}
		ident(n.Name)
	case *MatchOr:
		patterns(n.Patterns)
	}
}

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var out []Node
	walkChildren(n, func(c Node) { out = append(out, c) })
	return out
}
