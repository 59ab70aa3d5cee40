package pyparse

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/knot/internal/ast"
)

func (l *lowerer) pattern(n *sitter.Node) ast.Pattern {
	if n.Type() != "case_pattern" {
		return l.patternNode(n, false)
	}
	items := l.patternItems(n, 0)
	if len(items) == 0 {
		return &ast.MatchAs{Base: l.base(n)}
	}
	return items[0]
}

// patternItems lowers the pattern children of n starting at child index
// start. A leading `-` token negates the number that follows it and a bare
// `_` token is the wildcard.
func (l *lowerer) patternItems(n *sitter.Node, start int) []ast.Pattern {
	var out []ast.Pattern
	neg := false
	for i := start; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			switch c.Type() {
			case "-":
				neg = true
			case "_":
				out = append(out, &ast.MatchAs{Base: l.base(c)})
			}
			continue
		}
		if c.Type() == "comment" {
			continue
		}
		out = append(out, l.patternNode(c, neg))
		neg = false
	}
	return out
}

func (l *lowerer) patternNode(n *sitter.Node, neg bool) ast.Pattern {
	switch n.Type() {
	case "case_pattern":
		return l.pattern(n)
	case "as_pattern":
		p := &ast.MatchAs{Base: l.base(n)}
		kids := namedChildren(n)
		if len(kids) == 0 {
			return p
		}
		p.Pattern = l.pattern(kids[0])
		if len(kids) > 1 {
			name := kids[len(kids)-1]
			if name.Type() == "as_pattern_target" {
				if inner := namedChildren(name); len(inner) > 0 {
					name = inner[0]
				}
			}
			p.Name = l.identifier(name)
		}
		return p
	case "class_pattern":
		return l.classPattern(n)
	case "splat_pattern":
		s := &ast.MatchStar{Base: l.base(n)}
		if kids := namedChildren(n); len(kids) > 0 && l.text(kids[0]) != "_" {
			s.Name = l.identifier(kids[0])
		}
		return s
	case "union_pattern":
		return &ast.MatchOr{Base: l.base(n), Patterns: l.patternItems(n, 0)}
	case "list_pattern", "tuple_pattern":
		return &ast.MatchSequence{Base: l.base(n), Patterns: l.patternItems(n, 0)}
	case "dict_pattern":
		return l.dictPattern(n)
	case "true", "false", "none":
		return &ast.MatchSingleton{Base: l.base(n), Value: l.expr(n)}
	case "dotted_name":
		ids := namedChildren(n)
		if len(ids) == 1 {
			if l.text(ids[0]) == "_" {
				return &ast.MatchAs{Base: l.base(n)}
			}
			return &ast.MatchAs{Base: l.base(n), Name: l.identifier(ids[0])}
		}
		return &ast.MatchValue{Base: l.base(n), Value: l.dottedExpr(n)}
	case "identifier":
		if l.text(n) == "_" {
			return &ast.MatchAs{Base: l.base(n)}
		}
		return &ast.MatchAs{Base: l.base(n), Name: l.identifier(n)}
	case "complex_pattern":
		return &ast.MatchValue{Base: l.base(n), Value: &ast.ComplexLiteral{Base: l.base(n)}}
	}
	return &ast.MatchValue{Base: l.base(n), Value: l.patternValue(n, neg)}
}

// patternValue lowers a literal used as a value pattern or mapping key.
func (l *lowerer) patternValue(n *sitter.Node, neg bool) ast.Expr {
	if n.Type() == "dotted_name" {
		return l.dottedExpr(n)
	}
	if !neg {
		return l.expr(n)
	}
	u := &ast.UnaryOp{Base: l.base(n), Op: ast.USub}
	u.Operand = l.expr(n)
	return u
}

func (l *lowerer) dottedExpr(n *sitter.Node) ast.Expr {
	ids := namedChildren(n)
	if len(ids) == 0 {
		return &ast.BadExpr{Base: l.base(n)}
	}
	var e ast.Expr = &ast.Name{Base: l.base(ids[0]), Ident: l.text(ids[0])}
	for _, id := range ids[1:] {
		e = &ast.Attribute{Base: l.base(n), Value: e, Attr: l.identifier(id)}
	}
	return e
}

func (l *lowerer) classPattern(n *sitter.Node) ast.Pattern {
	p := &ast.MatchClass{Base: l.base(n)}
	kids := namedChildren(n)
	if len(kids) == 0 {
		p.Cls = &ast.BadExpr{Base: p.Base}
		return p
	}
	p.Cls = l.dottedExpr(kids[0])
	for _, c := range kids[1:] {
		arg := c
		if c.Type() == "case_pattern" {
			if inner := namedChildren(c); len(inner) == 1 && inner[0].Type() == "keyword_pattern" {
				arg = inner[0]
			}
		}
		if arg.Type() != "keyword_pattern" {
			p.Patterns = append(p.Patterns, l.pattern(arg))
			continue
		}
		name := namedChildren(arg)
		if len(name) == 0 {
			continue
		}
		eq := 0
		for i := 0; i < int(arg.ChildCount()); i++ {
			if arg.Child(i).Type() == "=" {
				eq = i + 1
				break
			}
		}
		values := l.patternItems(arg, eq)
		p.KwdAttrs = append(p.KwdAttrs, l.identifier(name[0]))
		if len(values) == 0 {
			p.KwdPatterns = append(p.KwdPatterns, &ast.MatchAs{Base: l.base(arg)})
		} else {
			p.KwdPatterns = append(p.KwdPatterns, values[0])
		}
	}
	return p
}

func (l *lowerer) dictPattern(n *sitter.Node) ast.Pattern {
	p := &ast.MatchMapping{Base: l.base(n)}
	neg := false
	var key ast.Expr
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			if c.Type() == "-" {
				neg = true
			}
			continue
		}
		switch c.Type() {
		case "comment":
		case "splat_pattern":
			if kids := namedChildren(c); len(kids) > 0 && l.text(kids[0]) != "_" {
				p.Rest = l.identifier(kids[0])
			}
		case "case_pattern":
			if key == nil {
				continue
			}
			p.Keys = append(p.Keys, key)
			p.Patterns = append(p.Patterns, l.pattern(c))
			key = nil
		default:
			key = l.patternValue(c, neg)
			neg = false
		}
	}
	return p
}
