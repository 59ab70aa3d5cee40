package pyparse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/knot/internal/ast"
)

func (l *lowerer) block(n *sitter.Node) []ast.Stmt {
	var out []ast.Stmt
	for _, c := range namedChildren(n) {
		if s := l.stmt(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (l *lowerer) stmt(n *sitter.Node) ast.Stmt {
	switch n.Type() {
	case "expression_statement":
		return l.expressionStatement(n)
	case "return_statement":
		s := &ast.Return{Base: l.base(n)}
		if kids := namedChildren(n); len(kids) > 0 {
			s.Value = l.exprOrTuple(kids[0])
		}
		return s
	case "pass_statement":
		return &ast.Pass{Base: l.base(n)}
	case "break_statement":
		return &ast.Break{Base: l.base(n)}
	case "continue_statement":
		return &ast.Continue{Base: l.base(n)}
	case "delete_statement":
		s := &ast.Delete{Base: l.base(n)}
		for _, c := range namedChildren(n) {
			if c.Type() == "expression_list" {
				for _, e := range namedChildren(c) {
					s.Targets = append(s.Targets, l.target(e, ast.Del))
				}
				continue
			}
			s.Targets = append(s.Targets, l.target(c, ast.Del))
		}
		return s
	case "raise_statement":
		s := &ast.Raise{Base: l.base(n)}
		cause := n.ChildByFieldName("cause")
		for _, c := range namedChildren(n) {
			if sameNode(c, cause) {
				s.Cause = l.expr(c)
				continue
			}
			if s.Exc == nil {
				s.Exc = l.exprOrTuple(c)
			}
		}
		return s
	case "global_statement":
		s := &ast.Global{Base: l.base(n)}
		for _, c := range namedChildren(n) {
			s.Names = append(s.Names, l.identifier(c))
		}
		return s
	case "nonlocal_statement":
		s := &ast.Nonlocal{Base: l.base(n)}
		for _, c := range namedChildren(n) {
			s.Names = append(s.Names, l.identifier(c))
		}
		return s
	case "assert_statement":
		s := &ast.Assert{Base: l.base(n)}
		kids := namedChildren(n)
		if len(kids) > 0 {
			s.Test = l.expr(kids[0])
		}
		if len(kids) > 1 {
			s.Msg = l.expr(kids[1])
		}
		return s
	case "import_statement":
		s := &ast.Import{Base: l.base(n)}
		for _, c := range namedChildren(n) {
			s.Names = append(s.Names, l.alias(c))
		}
		return s
	case "import_from_statement":
		return l.importFrom(n)
	case "future_import_statement":
		s := &ast.ImportFrom{Base: l.base(n), Module: "__future__"}
		for _, c := range namedChildren(n) {
			s.Names = append(s.Names, l.alias(c))
		}
		return s
	case "if_statement":
		return l.ifStatement(n)
	case "for_statement":
		s := &ast.For{Base: l.base(n), IsAsync: hasToken(n, "async")}
		s.Target = l.target(n.ChildByFieldName("left"), ast.Store)
		s.Iter = l.exprOrTuple(n.ChildByFieldName("right"))
		s.Body = l.block(n.ChildByFieldName("body"))
		s.Orelse = l.elseBody(n.ChildByFieldName("alternative"))
		return s
	case "while_statement":
		s := &ast.While{Base: l.base(n)}
		s.Test = l.expr(n.ChildByFieldName("condition"))
		s.Body = l.block(n.ChildByFieldName("body"))
		s.Orelse = l.elseBody(n.ChildByFieldName("alternative"))
		return s
	case "try_statement":
		return l.tryStatement(n)
	case "with_statement":
		return l.withStatement(n)
	case "match_statement":
		return l.matchStatement(n)
	case "function_definition":
		return l.functionDef(n, nil)
	case "class_definition":
		return l.classDef(n, nil)
	case "decorated_definition":
		return l.decorated(n)
	case "type_alias_statement":
		return l.typeAlias(n)
	case "comment", "ERROR":
		return nil
	}
	return nil
}

func (l *lowerer) expressionStatement(n *sitter.Node) ast.Stmt {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return nil
	}
	switch kids[0].Type() {
	case "assignment":
		return l.assignment(n, kids[0])
	case "augmented_assignment":
		return l.augAssignment(n, kids[0])
	}
	s := &ast.ExprStmt{Base: l.base(n)}
	if len(kids) == 1 {
		s.Value = l.expr(kids[0])
		return s
	}
	t := &ast.Tuple{Base: l.base(n)}
	for _, k := range kids {
		t.Elts = append(t.Elts, l.expr(k))
	}
	s.Value = t
	return s
}

func (l *lowerer) assignment(stmt, n *sitter.Node) ast.Stmt {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if typ := n.ChildByFieldName("type"); typ != nil {
		s := &ast.AnnAssign{Base: l.base(stmt)}
		s.Target = l.target(left, ast.Store)
		s.Annotation = l.typeNode(typ)
		if right != nil {
			s.Value = l.exprOrTuple(right)
		}
		return s
	}
	if right == nil {
		return nil
	}
	s := &ast.Assign{Base: l.base(stmt)}
	s.Targets = append(s.Targets, l.target(left, ast.Store))
	for right != nil && right.Type() == "assignment" && right.ChildByFieldName("type") == nil {
		s.Targets = append(s.Targets, l.target(right.ChildByFieldName("left"), ast.Store))
		right = right.ChildByFieldName("right")
	}
	if right == nil {
		s.Value = &ast.BadExpr{Base: l.base(n)}
		return s
	}
	s.Value = l.exprOrTuple(right)
	return s
}

var augOperators = map[string]ast.Operator{
	"+=": ast.Add, "-=": ast.Sub, "*=": ast.Mult, "@=": ast.MatMult, "/=": ast.Div,
	"%=": ast.Mod, "**=": ast.Pow, "<<=": ast.LShift, ">>=": ast.RShift,
	"|=": ast.BitOr, "^=": ast.BitXor, "&=": ast.BitAnd, "//=": ast.FloorDiv,
}

func (l *lowerer) augAssignment(stmt, n *sitter.Node) ast.Stmt {
	s := &ast.AugAssign{Base: l.base(stmt)}
	s.Target = l.target(n.ChildByFieldName("left"), ast.Store)
	if op := n.ChildByFieldName("operator"); op != nil {
		s.Op = augOperators[op.Type()]
	}
	if right := n.ChildByFieldName("right"); right != nil {
		s.Value = l.exprOrTuple(right)
	} else {
		s.Value = &ast.BadExpr{Base: l.base(n)}
	}
	return s
}

func (l *lowerer) elseBody(n *sitter.Node) []ast.Stmt {
	if n == nil {
		return nil
	}
	return l.block(n.ChildByFieldName("body"))
}

func (l *lowerer) ifStatement(n *sitter.Node) ast.Stmt {
	root := &ast.If{Base: l.base(n)}
	root.Test = l.expr(n.ChildByFieldName("condition"))
	root.Body = l.block(n.ChildByFieldName("consequence"))
	cur := root
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "elif_clause":
			elif := &ast.If{Base: l.base(c)}
			elif.Test = l.expr(c.ChildByFieldName("condition"))
			elif.Body = l.block(c.ChildByFieldName("consequence"))
			cur.Orelse = []ast.Stmt{elif}
			cur = elif
		case "else_clause":
			cur.Orelse = l.block(c.ChildByFieldName("body"))
		}
	}
	return root
}

func (l *lowerer) tryStatement(n *sitter.Node) ast.Stmt {
	s := &ast.Try{Base: l.base(n)}
	s.Body = l.block(n.ChildByFieldName("body"))
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "except_clause", "except_group_clause":
			if c.Type() == "except_group_clause" {
				s.IsStar = true
			}
			s.Handlers = append(s.Handlers, l.exceptHandler(c))
		case "else_clause":
			s.Orelse = l.block(c.ChildByFieldName("body"))
		case "finally_clause":
			for _, b := range namedChildren(c) {
				if b.Type() == "block" {
					s.Finalbody = l.block(b)
				}
			}
		}
	}
	return s
}

func (l *lowerer) exceptHandler(n *sitter.Node) *ast.ExceptHandler {
	h := &ast.ExceptHandler{Base: l.base(n)}
	var exprs []*sitter.Node
	var body *sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == "block" {
			body = c
			continue
		}
		exprs = append(exprs, c)
	}
	if len(exprs) > 0 {
		first := exprs[0]
		if first.Type() == "as_pattern" {
			kids := namedChildren(first)
			if len(kids) > 0 {
				h.Type = l.expr(kids[0])
			}
			if alias := asPatternTarget(first); alias != nil {
				h.Name = l.identifier(alias)
			}
		} else {
			h.Type = l.expr(first)
			if len(exprs) > 1 && exprs[1].Type() == "identifier" {
				h.Name = l.identifier(exprs[1])
			}
		}
	}
	h.Body = l.block(body)
	return h
}

// asPatternTarget returns the identifier bound by an `expr as name` node.
func asPatternTarget(n *sitter.Node) *sitter.Node {
	alias := n.ChildByFieldName("alias")
	if alias == nil {
		kids := namedChildren(n)
		if len(kids) < 2 {
			return nil
		}
		alias = kids[len(kids)-1]
	}
	if alias.Type() == "as_pattern_target" {
		kids := namedChildren(alias)
		if len(kids) == 0 {
			return nil
		}
		alias = kids[0]
	}
	return alias
}

func (l *lowerer) withStatement(n *sitter.Node) ast.Stmt {
	s := &ast.With{Base: l.base(n), IsAsync: hasToken(n, "async")}
	for _, c := range namedChildren(n) {
		if c.Type() != "with_clause" {
			continue
		}
		for _, item := range namedChildren(c) {
			if item.Type() != "with_item" {
				continue
			}
			s.Items = append(s.Items, l.withItem(item))
		}
	}
	s.Body = l.block(n.ChildByFieldName("body"))
	return s
}

func (l *lowerer) withItem(n *sitter.Node) *ast.WithItem {
	item := &ast.WithItem{Base: l.base(n)}
	value := n.ChildByFieldName("value")
	if value == nil {
		if kids := namedChildren(n); len(kids) > 0 {
			value = kids[0]
		}
	}
	if value == nil {
		item.ContextExpr = &ast.BadExpr{Base: l.base(n)}
		return item
	}
	if value.Type() == "as_pattern" {
		kids := namedChildren(value)
		item.ContextExpr = l.expr(kids[0])
		if target := asPatternTarget(value); target != nil {
			item.OptionalVars = l.target(target, ast.Store)
		}
		return item
	}
	item.ContextExpr = l.expr(value)
	if alias := n.ChildByFieldName("alias"); alias != nil {
		item.OptionalVars = l.target(alias, ast.Store)
	}
	return item
}

func (l *lowerer) functionDef(n *sitter.Node, decorators []ast.Expr) ast.Stmt {
	s := &ast.FunctionDef{Base: l.base(n), Decorators: decorators, IsAsync: hasToken(n, "async")}
	s.Name = l.identifier(n.ChildByFieldName("name"))
	s.TypeParams = l.typeParams(n.ChildByFieldName("type_parameters"))
	s.Params = l.parameters(n.ChildByFieldName("parameters"))
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		s.Returns = l.typeNode(rt)
	}
	s.Body = l.block(n.ChildByFieldName("body"))
	return s
}

func (l *lowerer) classDef(n *sitter.Node, decorators []ast.Expr) ast.Stmt {
	s := &ast.ClassDef{Base: l.base(n), Decorators: decorators}
	s.Name = l.identifier(n.ChildByFieldName("name"))
	s.TypeParams = l.typeParams(n.ChildByFieldName("type_parameters"))
	if args := n.ChildByFieldName("superclasses"); args != nil {
		s.Bases, s.Keywords = l.arguments(args)
	}
	s.Body = l.block(n.ChildByFieldName("body"))
	return s
}

func (l *lowerer) decorated(n *sitter.Node) ast.Stmt {
	var decorators []ast.Expr
	for _, c := range namedChildren(n) {
		if c.Type() != "decorator" {
			continue
		}
		if kids := namedChildren(c); len(kids) > 0 {
			decorators = append(decorators, l.expr(kids[0]))
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		return nil
	}
	switch def.Type() {
	case "function_definition":
		return l.functionDef(def, decorators)
	case "class_definition":
		return l.classDef(def, decorators)
	}
	return nil
}

func (l *lowerer) typeAlias(n *sitter.Node) ast.Stmt {
	s := &ast.TypeAlias{Base: l.base(n)}
	left := n.ChildByFieldName("left")
	for left != nil && left.Type() == "type" {
		kids := namedChildren(left)
		if len(kids) == 0 {
			break
		}
		left = kids[0]
	}
	if left == nil {
		return nil
	}
	switch left.Type() {
	case "identifier":
		s.Name = &ast.Name{Base: l.base(left), Ident: l.text(left), Ctx: ast.Store}
	case "generic_type":
		kids := namedChildren(left)
		s.Name = &ast.Name{Base: l.base(kids[0]), Ident: l.text(kids[0]), Ctx: ast.Store}
		if len(kids) > 1 {
			s.TypeParams = l.typeParams(kids[1])
		}
	default:
		return nil
	}
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		s.TypeParams = l.typeParams(tp)
	}
	if right := n.ChildByFieldName("right"); right != nil {
		s.Value = l.typeNode(right)
	} else {
		s.Value = &ast.BadExpr{Base: l.base(n)}
	}
	return s
}

func (l *lowerer) typeParams(n *sitter.Node) []*ast.TypeParam {
	if n == nil {
		return nil
	}
	var out []*ast.TypeParam
	for _, c := range namedChildren(n) {
		inner := c
		if inner.Type() == "type" {
			kids := namedChildren(inner)
			if len(kids) == 0 {
				continue
			}
			inner = kids[0]
		}
		tp := &ast.TypeParam{Base: l.base(c)}
		switch inner.Type() {
		case "identifier":
			tp.Name = l.identifier(inner)
		case "splat_type", "list_splat_pattern", "dictionary_splat_pattern":
			tp.Kind = ast.TypeVarTupleParam
			if strings.HasPrefix(l.text(inner), "**") {
				tp.Kind = ast.ParamSpecParam
			}
			kids := namedChildren(inner)
			if len(kids) == 0 {
				continue
			}
			tp.Name = l.identifier(kids[0])
		case "constrained_type":
			kids := namedChildren(inner)
			if len(kids) == 0 {
				continue
			}
			name := kids[0]
			if name.Type() == "type" {
				if nk := namedChildren(name); len(nk) > 0 {
					name = nk[0]
				}
			}
			tp.Name = l.identifier(name)
			if len(kids) > 1 {
				tp.Bound = l.typeNode(kids[1])
			}
		default:
			continue
		}
		out = append(out, tp)
	}
	return out
}

func (l *lowerer) parameters(n *sitter.Node) *ast.Parameters {
	if n == nil {
		return &ast.Parameters{}
	}
	ps := &ast.Parameters{Base: l.base(n)}
	kwOnly := false
	for _, c := range namedChildren(n) {
		p := &ast.Parameter{Base: l.base(c), Kind: ast.PositionalOrKeyword}
		if kwOnly {
			p.Kind = ast.KeywordOnly
		}
		switch c.Type() {
		case "identifier":
			p.Name = l.identifier(c)
		case "default_parameter":
			p.Name = l.identifier(c.ChildByFieldName("name"))
			p.Default = l.expr(c.ChildByFieldName("value"))
		case "typed_default_parameter":
			p.Name = l.identifier(c.ChildByFieldName("name"))
			p.Annotation = l.typeNode(c.ChildByFieldName("type"))
			p.Default = l.expr(c.ChildByFieldName("value"))
		case "typed_parameter":
			kids := namedChildren(c)
			if len(kids) == 0 {
				continue
			}
			inner := kids[0]
			switch inner.Type() {
			case "list_splat_pattern":
				p.Kind = ast.VarPositional
				kwOnly = true
				p.Name = l.splatName(inner)
			case "dictionary_splat_pattern":
				p.Kind = ast.VarKeyword
				p.Name = l.splatName(inner)
			default:
				p.Name = l.identifier(inner)
			}
			p.Annotation = l.typeNode(c.ChildByFieldName("type"))
		case "list_splat_pattern":
			p.Kind = ast.VarPositional
			kwOnly = true
			p.Name = l.splatName(c)
		case "dictionary_splat_pattern":
			p.Kind = ast.VarKeyword
			p.Name = l.splatName(c)
		case "keyword_separator":
			kwOnly = true
			continue
		case "positional_separator":
			for _, prev := range ps.List {
				if prev.Kind == ast.PositionalOrKeyword {
					prev.Kind = ast.PositionalOnly
				}
			}
			continue
		default:
			continue
		}
		if p.Name == nil {
			continue
		}
		ps.List = append(ps.List, p)
	}
	return ps
}

func (l *lowerer) splatName(n *sitter.Node) *ast.Identifier {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return nil
	}
	return l.identifier(kids[0])
}

func (l *lowerer) identifier(n *sitter.Node) *ast.Identifier {
	if n == nil {
		return &ast.Identifier{Base: ast.Base{}}
	}
	return &ast.Identifier{Base: l.base(n), Name: l.text(n)}
}

func (l *lowerer) alias(n *sitter.Node) *ast.Alias {
	a := &ast.Alias{Base: l.base(n)}
	switch n.Type() {
	case "aliased_import":
		a.Name = dotted(l.text(n.ChildByFieldName("name")))
		if alias := n.ChildByFieldName("alias"); alias != nil {
			a.AsName = l.identifier(alias)
		}
	case "wildcard_import":
		a.Name = "*"
	default:
		a.Name = dotted(l.text(n))
	}
	return a
}

// dotted strips whitespace that may appear inside a dotted_name.
func dotted(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func (l *lowerer) importFrom(n *sitter.Node) ast.Stmt {
	s := &ast.ImportFrom{Base: l.base(n)}
	module := n.ChildByFieldName("module_name")
	if module != nil {
		if module.Type() == "relative_import" {
			for _, c := range namedChildren(module) {
				switch c.Type() {
				case "import_prefix":
					s.Level = strings.Count(l.text(c), ".")
				case "dotted_name":
					s.Module = dotted(l.text(c))
				}
			}
		} else {
			s.Module = dotted(l.text(module))
		}
	}
	for _, c := range namedChildren(n) {
		if sameNode(c, module) {
			continue
		}
		switch c.Type() {
		case "dotted_name", "aliased_import", "wildcard_import":
			s.Names = append(s.Names, l.alias(c))
		}
	}
	if len(s.Names) == 0 && hasToken(n, "*") {
		s.Names = append(s.Names, &ast.Alias{Base: l.base(n), Name: "*"})
	}
	return s
}

func (l *lowerer) matchStatement(n *sitter.Node) ast.Stmt {
	s := &ast.Match{Base: l.base(n)}
	var subjects []*sitter.Node
	var body *sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == "block" {
			body = c
			continue
		}
		subjects = append(subjects, c)
	}
	switch len(subjects) {
	case 0:
		s.Subject = &ast.BadExpr{Base: l.base(n)}
	case 1:
		s.Subject = l.exprOrTuple(subjects[0])
	default:
		t := &ast.Tuple{Base: l.base(n)}
		for _, sub := range subjects {
			t.Elts = append(t.Elts, l.expr(sub))
		}
		s.Subject = t
	}
	for _, c := range namedChildren(body) {
		if c.Type() == "case_clause" {
			s.Cases = append(s.Cases, l.caseClause(c))
		}
	}
	return s
}

func (l *lowerer) caseClause(n *sitter.Node) *ast.MatchCase {
	mc := &ast.MatchCase{Base: l.base(n)}
	var patterns []*sitter.Node
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "case_pattern":
			patterns = append(patterns, c)
		case "if_clause":
			if kids := namedChildren(c); len(kids) > 0 {
				mc.Guard = l.expr(kids[0])
			}
		case "block":
			mc.Body = l.block(c)
		}
	}
	switch len(patterns) {
	case 0:
		mc.Pattern = &ast.MatchAs{Base: l.base(n)}
	case 1:
		mc.Pattern = l.pattern(patterns[0])
	default:
		seq := &ast.MatchSequence{Base: l.base(n)}
		for _, p := range patterns {
			seq.Patterns = append(seq.Patterns, l.pattern(p))
		}
		mc.Pattern = seq
	}
	if g := n.ChildByFieldName("guard"); g != nil && mc.Guard == nil {
		if kids := namedChildren(g); len(kids) > 0 {
			mc.Guard = l.expr(kids[0])
		}
	}
	return mc
}
