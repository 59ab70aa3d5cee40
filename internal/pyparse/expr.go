package pyparse

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/knot/internal/ast"
)

var binaryOperators = map[string]ast.Operator{
	"+": ast.Add, "-": ast.Sub, "*": ast.Mult, "@": ast.MatMult, "/": ast.Div,
	"%": ast.Mod, "**": ast.Pow, "<<": ast.LShift, ">>": ast.RShift,
	"|": ast.BitOr, "^": ast.BitXor, "&": ast.BitAnd, "//": ast.FloorDiv,
}

var compareOperators = map[string]ast.CmpOp{
	"==": ast.Eq, "!=": ast.NotEq, "<>": ast.NotEq, "<": ast.Lt, "<=": ast.LtE,
	">": ast.Gt, ">=": ast.GtE, "is": ast.Is, "is not": ast.IsNot,
	"in": ast.In, "not in": ast.NotIn,
}

// exprOrTuple lowers n, treating bare comma lists as tuples.
func (l *lowerer) exprOrTuple(n *sitter.Node) ast.Expr {
	if n == nil {
		return &ast.BadExpr{}
	}
	return l.expr(n)
}

func (l *lowerer) typeNode(n *sitter.Node) ast.Expr {
	if n == nil {
		return &ast.BadExpr{Base: ast.Base{}}
	}
	if n.Type() == "type" {
		kids := namedChildren(n)
		if len(kids) == 0 {
			return &ast.BadExpr{Base: l.base(n)}
		}
		return l.typeNode(kids[0])
	}
	return l.expr(n)
}

func (l *lowerer) expr(n *sitter.Node) ast.Expr {
	if n == nil {
		return &ast.BadExpr{}
	}
	switch n.Type() {
	case "identifier", "keyword_identifier":
		return &ast.Name{Base: l.base(n), Ident: l.text(n)}
	case "integer":
		return l.integer(n)
	case "float":
		return l.float(n)
	case "string":
		return l.strings(n, []*sitter.Node{n})
	case "concatenated_string":
		return l.strings(n, namedChildren(n))
	case "true":
		return &ast.BoolLiteral{Base: l.base(n), Value: true}
	case "false":
		return &ast.BoolLiteral{Base: l.base(n), Value: false}
	case "none":
		return &ast.NoneLiteral{Base: l.base(n)}
	case "ellipsis":
		return &ast.EllipsisLiteral{Base: l.base(n)}
	case "parenthesized_expression":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return &ast.BadExpr{Base: l.base(n)}
		}
		e := l.expr(kids[0])
		if t, ok := e.(*ast.Tuple); ok {
			t.Parenthesized = true
		}
		return e
	case "tuple", "tuple_pattern":
		t := &ast.Tuple{Base: l.base(n), Parenthesized: true}
		for _, c := range namedChildren(n) {
			t.Elts = append(t.Elts, l.expr(c))
		}
		return t
	case "expression_list", "pattern_list":
		t := &ast.Tuple{Base: l.base(n)}
		for _, c := range namedChildren(n) {
			t.Elts = append(t.Elts, l.expr(c))
		}
		return t
	case "list", "list_pattern":
		e := &ast.List{Base: l.base(n)}
		for _, c := range namedChildren(n) {
			e.Elts = append(e.Elts, l.expr(c))
		}
		return e
	case "set":
		e := &ast.Set{Base: l.base(n)}
		for _, c := range namedChildren(n) {
			e.Elts = append(e.Elts, l.expr(c))
		}
		return e
	case "dictionary":
		d := &ast.Dict{Base: l.base(n)}
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "pair":
				d.Keys = append(d.Keys, l.expr(c.ChildByFieldName("key")))
				d.Values = append(d.Values, l.expr(c.ChildByFieldName("value")))
			case "dictionary_splat":
				kids := namedChildren(c)
				if len(kids) == 0 {
					continue
				}
				d.Keys = append(d.Keys, nil)
				d.Values = append(d.Values, l.expr(kids[0]))
			}
		}
		return d
	case "list_splat", "list_splat_pattern", "parenthesized_list_splat", "splat_type":
		s := &ast.Starred{Base: l.base(n)}
		kids := namedChildren(n)
		if len(kids) == 0 {
			s.Value = &ast.BadExpr{Base: l.base(n)}
		} else {
			s.Value = l.expr(kids[0])
		}
		return s
	case "attribute", "member_type":
		a := &ast.Attribute{Base: l.base(n)}
		obj := n.ChildByFieldName("object")
		attr := n.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			kids := namedChildren(n)
			if len(kids) < 2 {
				return &ast.BadExpr{Base: a.Base}
			}
			obj, attr = kids[0], kids[len(kids)-1]
		}
		a.Value = l.typeNode(obj)
		a.Attr = l.identifier(attr)
		return a
	case "subscript":
		return l.subscript(n)
	case "generic_type":
		s := &ast.Subscript{Base: l.base(n)}
		kids := namedChildren(n)
		if len(kids) < 2 {
			return &ast.BadExpr{Base: s.Base}
		}
		s.Value = l.expr(kids[0])
		args := namedChildren(kids[1])
		if len(args) == 1 {
			s.Index = l.typeNode(args[0])
		} else {
			t := &ast.Tuple{Base: l.base(kids[1])}
			for _, a := range args {
				t.Elts = append(t.Elts, l.typeNode(a))
			}
			s.Index = t
		}
		return s
	case "union_type":
		b := &ast.BinOp{Base: l.base(n), Op: ast.BitOr}
		kids := namedChildren(n)
		if len(kids) < 2 {
			return &ast.BadExpr{Base: b.Base}
		}
		b.Left = l.typeNode(kids[0])
		b.Right = l.typeNode(kids[1])
		return b
	case "constrained_type":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return &ast.BadExpr{Base: l.base(n)}
		}
		return l.typeNode(kids[0])
	case "type":
		return l.typeNode(n)
	case "slice":
		return l.slice(n)
	case "call":
		c := &ast.Call{Base: l.base(n)}
		c.Func = l.expr(n.ChildByFieldName("function"))
		args := n.ChildByFieldName("arguments")
		if args != nil && args.Type() == "generator_expression" {
			c.Args = []ast.Expr{l.expr(args)}
		} else if args != nil {
			c.Args, c.Keywords = l.arguments(args)
		}
		return c
	case "binary_operator":
		b := &ast.BinOp{Base: l.base(n)}
		b.Left = l.expr(n.ChildByFieldName("left"))
		if op := n.ChildByFieldName("operator"); op != nil {
			b.Op = binaryOperators[op.Type()]
		}
		b.Right = l.expr(n.ChildByFieldName("right"))
		return b
	case "unary_operator":
		u := &ast.UnaryOp{Base: l.base(n)}
		switch op := n.ChildByFieldName("operator"); {
		case op == nil:
			u.Op = ast.USub
		case op.Type() == "+":
			u.Op = ast.UAdd
		case op.Type() == "~":
			u.Op = ast.Invert
		default:
			u.Op = ast.USub
		}
		u.Operand = l.expr(n.ChildByFieldName("argument"))
		return u
	case "not_operator":
		u := &ast.UnaryOp{Base: l.base(n), Op: ast.Not}
		u.Operand = l.expr(n.ChildByFieldName("argument"))
		return u
	case "boolean_operator":
		return l.booleanOperator(n)
	case "comparison_operator":
		return l.comparison(n)
	case "conditional_expression":
		e := &ast.IfExp{Base: l.base(n)}
		kids := namedChildren(n)
		if len(kids) != 3 {
			return &ast.BadExpr{Base: e.Base}
		}
		e.Body = l.expr(kids[0])
		e.Test = l.expr(kids[1])
		e.Orelse = l.expr(kids[2])
		return e
	case "lambda":
		e := &ast.Lambda{Base: l.base(n)}
		if params := n.ChildByFieldName("parameters"); params != nil {
			e.Params = l.parameters(params)
		} else {
			e.Params = &ast.Parameters{}
		}
		e.Body = l.expr(n.ChildByFieldName("body"))
		return e
	case "named_expression":
		e := &ast.NamedExpr{Base: l.base(n)}
		name := n.ChildByFieldName("name")
		e.Target = &ast.Name{Base: l.base(name), Ident: l.text(name), Ctx: ast.Store}
		e.Value = l.expr(n.ChildByFieldName("value"))
		return e
	case "list_comprehension":
		e := &ast.ListComp{Base: l.base(n)}
		e.Elt = l.expr(n.ChildByFieldName("body"))
		e.Generators = l.comprehensions(n)
		return e
	case "set_comprehension":
		e := &ast.SetComp{Base: l.base(n)}
		e.Elt = l.expr(n.ChildByFieldName("body"))
		e.Generators = l.comprehensions(n)
		return e
	case "generator_expression":
		e := &ast.GeneratorExp{Base: l.base(n)}
		e.Elt = l.expr(n.ChildByFieldName("body"))
		e.Generators = l.comprehensions(n)
		return e
	case "dictionary_comprehension":
		e := &ast.DictComp{Base: l.base(n)}
		pair := n.ChildByFieldName("body")
		if pair == nil {
			return &ast.BadExpr{Base: e.Base}
		}
		e.Key = l.expr(pair.ChildByFieldName("key"))
		e.Value = l.expr(pair.ChildByFieldName("value"))
		e.Generators = l.comprehensions(n)
		return e
	case "await":
		e := &ast.Await{Base: l.base(n)}
		kids := namedChildren(n)
		if len(kids) == 0 {
			e.Value = &ast.BadExpr{Base: e.Base}
		} else {
			e.Value = l.expr(kids[0])
		}
		return e
	case "yield":
		kids := namedChildren(n)
		if hasToken(n, "from") {
			e := &ast.YieldFrom{Base: l.base(n)}
			if len(kids) > 0 {
				e.Value = l.expr(kids[0])
			} else {
				e.Value = &ast.BadExpr{Base: e.Base}
			}
			return e
		}
		e := &ast.Yield{Base: l.base(n)}
		if len(kids) > 0 {
			e.Value = l.expr(kids[0])
		}
		return e
	case "as_pattern":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return &ast.BadExpr{Base: l.base(n)}
		}
		return l.expr(kids[0])
	}
	return &ast.BadExpr{Base: l.base(n)}
}

// target lowers an assignment, deletion or loop target and marks every
// name, attribute, subscript, tuple and list in it with ctx.
func (l *lowerer) target(n *sitter.Node, ctx ast.ExprContext) ast.Expr {
	e := l.expr(n)
	setContext(e, ctx)
	return e
}

func setContext(e ast.Expr, ctx ast.ExprContext) {
	switch e := e.(type) {
	case *ast.Name:
		e.Ctx = ctx
	case *ast.Attribute:
		e.Ctx = ctx
	case *ast.Subscript:
		e.Ctx = ctx
	case *ast.Starred:
		e.Ctx = ctx
		setContext(e.Value, ctx)
	case *ast.Tuple:
		e.Ctx = ctx
		for _, elt := range e.Elts {
			setContext(elt, ctx)
		}
	case *ast.List:
		e.Ctx = ctx
		for _, elt := range e.Elts {
			setContext(elt, ctx)
		}
	}
}

func (l *lowerer) integer(n *sitter.Node) ast.Expr {
	text := strings.ReplaceAll(l.text(n), "_", "")
	if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
		return &ast.ComplexLiteral{Base: l.base(n)}
	}
	text = strings.TrimRight(text, "lL")
	lit := &ast.IntLiteral{Base: l.base(n)}
	if isDecimalWithLeadingZeros(text) {
		text = strings.TrimLeft(text, "0")
		if text == "" {
			text = "0"
		}
	}
	v, err := strconv.ParseInt(strings.ToLower(text), 0, 64)
	if err != nil {
		lit.Big = true
		return lit
	}
	lit.Value = v
	return lit
}

// isDecimalWithLeadingZeros reports Python's `000` form, which Go's base
// detection would otherwise read as octal.
func isDecimalWithLeadingZeros(s string) bool {
	if len(s) < 2 || s[0] != '0' {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (l *lowerer) float(n *sitter.Node) ast.Expr {
	text := strings.ReplaceAll(l.text(n), "_", "")
	if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
		return &ast.ComplexLiteral{Base: l.base(n)}
	}
	v, _ := strconv.ParseFloat(text, 64)
	return &ast.FloatLiteral{Base: l.base(n), Value: v}
}

// strings lowers one or more adjacent string nodes into a single literal.
func (l *lowerer) strings(n *sitter.Node, parts []*sitter.Node) ast.Expr {
	b := l.base(n)
	var (
		sb      strings.Builder
		isBytes bool
		fstring bool
		interps []ast.Expr
	)
	for i, part := range parts {
		if part.Type() != "string" {
			continue
		}
		prefix, body := splitStringLiteral(l.text(part))
		lower := strings.ToLower(prefix)
		if i == 0 {
			isBytes = strings.Contains(lower, "b")
		}
		if strings.Contains(lower, "f") {
			fstring = true
			for _, c := range namedChildren(part) {
				if c.Type() != "interpolation" {
					continue
				}
				inner := c.ChildByFieldName("expression")
				if inner == nil {
					kids := namedChildren(c)
					if len(kids) == 0 {
						continue
					}
					inner = kids[0]
				}
				interps = append(interps, l.exprOrTuple(inner))
			}
			continue
		}
		if strings.Contains(lower, "r") {
			sb.WriteString(body)
		} else {
			sb.WriteString(unescape(body, isBytes))
		}
	}
	if isBytes {
		return &ast.BytesLiteral{Base: b, Value: sb.String()}
	}
	if fstring {
		return &ast.StringLiteral{Base: b, FString: true, Parts: interps}
	}
	return &ast.StringLiteral{Base: b, Value: sb.String()}
}

// splitStringLiteral separates the prefix letters from the unquoted body.
func splitStringLiteral(s string) (prefix, body string) {
	i := 0
	for i < len(s) && s[i] != '\'' && s[i] != '"' {
		i++
	}
	prefix, s = s[:i], s[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && len(s) >= 2*len(q) && strings.HasSuffix(s, q) {
			return prefix, s[len(q) : len(s)-len(q)]
		}
	}
	return prefix, s
}

// unescape decodes Python backslash escapes. Unknown escapes are kept
// verbatim, as Python does.
func unescape(s string, isBytes bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			sb.WriteByte(e)
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 32)
			writeCode(&sb, rune(v), isBytes)
			i = j - 1
		case 'x':
			if v, ok := hexDigits(s, i+1, 2); ok {
				writeCode(&sb, rune(v), isBytes)
				i += 2
			} else {
				sb.WriteString(`\x`)
			}
		case 'u', 'U':
			width := 4
			if e == 'U' {
				width = 8
			}
			if v, ok := hexDigits(s, i+1, width); ok && !isBytes {
				sb.WriteRune(rune(v))
				i += width
			} else {
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte('\\')
			sb.WriteByte(e)
		}
	}
	return sb.String()
}

func writeCode(sb *strings.Builder, r rune, isBytes bool) {
	if isBytes {
		sb.WriteByte(byte(r))
		return
	}
	sb.WriteRune(r)
}

func hexDigits(s string, start, width int) (uint64, bool) {
	if start+width > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[start:start+width], 16, 32)
	return v, err == nil
}

func (l *lowerer) subscript(n *sitter.Node) ast.Expr {
	s := &ast.Subscript{Base: l.base(n)}
	value := n.ChildByFieldName("value")
	s.Value = l.expr(value)
	var indices []*sitter.Node
	for _, c := range namedChildren(n) {
		if sameNode(c, value) {
			continue
		}
		indices = append(indices, c)
	}
	switch {
	case len(indices) == 0:
		s.Index = &ast.BadExpr{Base: l.base(n)}
	case len(indices) == 1 && !hasToken(n, ","):
		s.Index = l.expr(indices[0])
	default:
		t := &ast.Tuple{Base: l.base(indices[0])}
		for _, c := range indices {
			t.Elts = append(t.Elts, l.expr(c))
		}
		s.Index = t
	}
	return s
}

func (l *lowerer) slice(n *sitter.Node) ast.Expr {
	s := &ast.Slice{Base: l.base(n)}
	part := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			if c.Type() == ":" {
				part++
			}
			continue
		}
		if c.Type() == "comment" {
			continue
		}
		e := l.expr(c)
		switch part {
		case 0:
			s.Lower = e
		case 1:
			s.Upper = e
		default:
			s.Step = e
		}
	}
	return s
}

func (l *lowerer) arguments(n *sitter.Node) ([]ast.Expr, []*ast.Keyword) {
	var args []ast.Expr
	var kws []*ast.Keyword
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "keyword_argument":
			kw := &ast.Keyword{Base: l.base(c)}
			kw.Arg = l.identifier(c.ChildByFieldName("name"))
			kw.Value = l.expr(c.ChildByFieldName("value"))
			kws = append(kws, kw)
		case "dictionary_splat":
			kw := &ast.Keyword{Base: l.base(c)}
			kids := namedChildren(c)
			if len(kids) == 0 {
				continue
			}
			kw.Value = l.expr(kids[0])
			kws = append(kws, kw)
		default:
			args = append(args, l.expr(c))
		}
	}
	return args, kws
}

func (l *lowerer) booleanOperator(n *sitter.Node) ast.Expr {
	op := ast.And
	if o := n.ChildByFieldName("operator"); o != nil && o.Type() == "or" {
		op = ast.Or
	}
	e := &ast.BoolOp{Base: l.base(n), Op: op}
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	// `a and b and c` is left-nested in the CST; flatten it like Python's
	// own AST so the operands share one node.
	var lefts []*sitter.Node
	for left != nil && left.Type() == "boolean_operator" {
		o := left.ChildByFieldName("operator")
		if o == nil || (o.Type() == "or") != (op == ast.Or) {
			break
		}
		lefts = append(lefts, left.ChildByFieldName("right"))
		left = left.ChildByFieldName("left")
	}
	e.Values = append(e.Values, l.expr(left))
	for i := len(lefts) - 1; i >= 0; i-- {
		e.Values = append(e.Values, l.expr(lefts[i]))
	}
	e.Values = append(e.Values, l.expr(right))
	return e
}

func (l *lowerer) comparison(n *sitter.Node) ast.Expr {
	e := &ast.Compare{Base: l.base(n)}
	var pending []string
	first := true
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "comment" {
			continue
		}
		if !c.IsNamed() || c.Type() == "not in" || c.Type() == "is not" {
			pending = append(pending, c.Type())
			continue
		}
		operand := l.expr(c)
		if first {
			e.Left = operand
			first = false
			continue
		}
		op, ok := compareOperators[strings.Join(pending, " ")]
		if !ok {
			op = ast.Eq
		}
		pending = pending[:0]
		e.Ops = append(e.Ops, op)
		e.Comparators = append(e.Comparators, operand)
	}
	if e.Left == nil {
		e.Left = &ast.BadExpr{Base: e.Base}
	}
	return e
}

func (l *lowerer) comprehensions(n *sitter.Node) []*ast.Comprehension {
	var out []*ast.Comprehension
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "for_in_clause":
			g := &ast.Comprehension{Base: l.base(c), IsAsync: hasToken(c, "async")}
			g.Target = l.target(c.ChildByFieldName("left"), ast.Store)
			g.Iter = l.exprOrTuple(c.ChildByFieldName("right"))
			out = append(out, g)
		case "if_clause":
			if len(out) == 0 {
				continue
			}
			if kids := namedChildren(c); len(kids) > 0 {
				last := out[len(out)-1]
				last.Ifs = append(last.Ifs, l.expr(kids[0]))
			}
		}
	}
	return out
}
