package infer

import (
	"context"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/pyparse"
	"github.com/jward/knot/internal/types"
)

// inferAnnotation infers an annotation expression: a type expression
// optionally wrapped in the ClassVar or Final qualifiers. bare reports a
// qualifier used without a type, whose type comes from the assigned value.
func (b *builder) inferAnnotation(e ast.Expr) (types.TypeAndQualifiers, bool) {
	switch n := e.(type) {
	case *ast.StringLiteral:
		var out types.TypeAndQualifiers
		var bare bool
		if !b.withParsedAnnotation(n, func(parsed ast.Expr) {
			out, bare = b.inferAnnotation(parsed)
		}) {
			out = types.TypeAndQualifiers{Type: types.Unknown}
		}
		b.store(n, out.Type)
		return out, bare
	case *ast.Name, *ast.Attribute:
		v := b.typeNameValue(n)
		if q, ok := qualifierOf(v); ok {
			b.store(n, types.Unknown)
			return types.TypeAndQualifiers{Type: types.Unknown, Qualifiers: q}, true
		}
		t := b.valueAsType(n, v)
		b.store(n, t)
		return types.TypeAndQualifiers{Type: t}, false
	case *ast.Subscript:
		v := b.inferExpr(n.Value)
		if q, ok := qualifierOf(v); ok {
			t := b.typeExpr(n.Index)
			b.store(n, t)
			return types.TypeAndQualifiers{Type: t, Qualifiers: q}, false
		}
		t := b.typeSubscript(n, v)
		b.store(n, t)
		return types.TypeAndQualifiers{Type: t}, false
	}
	return types.TypeAndQualifiers{Type: b.typeExpr(e)}, false
}

func qualifierOf(v types.Type) (types.Qualifiers, bool) {
	ki := v.KnownInstance()
	if ki == nil {
		return 0, false
	}
	switch ki.Kind {
	case types.SpecialFormClassVar:
		return types.QualifierClassVar, true
	case types.SpecialFormFinal:
		return types.QualifierFinal, true
	}
	return 0, false
}

// typeExpr infers e as a type expression and records the type it denotes.
func (b *builder) typeExpr(e ast.Expr) types.Type {
	t := b.typeExprKind(e)
	b.store(e, t)
	return t
}

func (b *builder) typeExprKind(e ast.Expr) types.Type {
	db := b.db()
	switch e := e.(type) {
	case *ast.Name:
		return b.valueAsType(e, b.typeNameValue(e))
	case *ast.Attribute:
		return b.valueAsType(e, b.typeNameValue(e))
	case *ast.NoneLiteral:
		return types.None
	case *ast.StringLiteral:
		t := types.Unknown
		b.withParsedAnnotation(e, func(parsed ast.Expr) { t = b.typeExpr(parsed) })
		return t
	case *ast.BinOp:
		if e.Op != ast.BitOr {
			return b.invalidTypeForm(e, "Invalid binary operator `%s` in type expression", e.Op)
		}
		return types.Union(db, b.typeExpr(e.Left), b.typeExpr(e.Right))
	case *ast.Subscript:
		return b.typeSubscript(e, b.inferExpr(e.Value))
	case *ast.Call:
		return b.invalidTypeForm(e, "Function calls are not allowed in type expressions")
	case *ast.IntLiteral:
		return b.invalidTypeForm(e, "Int literals are not allowed in this context in a type expression")
	case *ast.BoolLiteral:
		return b.invalidTypeForm(e, "Boolean literals are not allowed in this context in a type expression")
	case *ast.BytesLiteral:
		return b.invalidTypeForm(e, "Bytes literals are not allowed in this context in a type expression")
	case *ast.List:
		return b.invalidTypeForm(e, "List literals are not allowed in this context in a type expression")
	case *ast.Tuple:
		return b.invalidTypeForm(e, "Tuple literals are not allowed in this context in a type expression")
	case *ast.NamedExpr:
		b.report(e, diag.InvalidTypeForm, "Invalid expression in type expression")
		return b.inferExprKind(e)
	}
	return b.invalidTypeForm(e, "Invalid expression in type expression")
}

// invalidTypeForm reports e and infers its operands as values so every
// expression still receives a type.
func (b *builder) invalidTypeForm(e ast.Expr, format string, args ...any) types.Type {
	b.report(e, diag.InvalidTypeForm, format, args...)
	switch e.(type) {
	case *ast.Lambda, *ast.ListComp, *ast.SetComp, *ast.DictComp, *ast.GeneratorExp:
		b.inferExprKind(e)
	default:
		for _, c := range ast.Children(e) {
			switch c := c.(type) {
			case ast.Expr:
				b.inferExpr(c)
			case *ast.Keyword:
				b.inferExpr(c.Value)
			}
		}
	}
	return types.Unknown
}

// typeNameValue is the value a name or attribute in a type expression
// refers to.
func (b *builder) typeNameValue(e ast.Expr) types.Type {
	switch e := e.(type) {
	case *ast.Name:
		return b.lookupName(e)
	case *ast.Attribute:
		return b.attribute(e)
	}
	return types.Unknown
}

// valueAsType converts the value of a name to the type it denotes: a class
// to its instances, a special form to its meaning.
func (b *builder) valueAsType(node ast.Expr, v types.Type) types.Type {
	t, ok := b.valueAsTypeOK(v)
	if !ok {
		if ki := v.KnownInstance(); ki != nil {
			if q, isQualifier := qualifierOf(v); isQualifier {
				name := "typing.ClassVar"
				if q == types.QualifierFinal {
					name = "typing.Final"
				}
				b.report(node, diag.InvalidTypeForm, "Type qualifier `%s` is not allowed in type expressions (only in annotation expressions)", name)
				return types.Unknown
			}
		}
		b.report(node, diag.InvalidTypeForm, "Variable of type `%s` is not allowed in a type expression", v)
		return types.Unknown
	}
	return t
}

func (b *builder) valueAsTypeOK(v types.Type) (types.Type, bool) {
	db := b.db()
	switch v.Kind() {
	case types.KindClassLiteral:
		return types.Instance(v.Class()), true
	case types.KindAny, types.KindUnknown, types.KindTodo, types.KindNever:
		return v, true
	case types.KindNone:
		return types.None, true
	case types.KindUnion:
		u := types.NewUnionBuilder(db)
		for _, e := range v.Elements() {
			t, ok := b.valueAsTypeOK(e)
			if !ok {
				return types.Unknown, false
			}
			u.Add(t)
		}
		return u.Build(), true
	case types.KindKnownInstance:
		kind := v.KnownInstance().Kind
		switch kind {
		case types.SpecialFormAny:
			return types.Any, true
		case types.SpecialFormLiteralString:
			return types.LiteralString, true
		case types.SpecialFormNoReturn, types.SpecialFormNever:
			return types.Never, true
		case types.SpecialFormClassVar, types.SpecialFormFinal:
			return types.Unknown, false
		}
		if cls, ok := kind.AliasClass(); ok {
			return cls.Instance(db), true
		}
		return types.Todo, true
	}
	return types.Unknown, false
}

// typeArgs returns the arguments of a subscript in a type expression.
func typeArgs(index ast.Expr) []ast.Expr {
	if t, ok := index.(*ast.Tuple); ok {
		return t.Elts
	}
	return []ast.Expr{index}
}

// argList records the tuple holding several type arguments.
func (b *builder) argList(index ast.Expr) {
	if t, ok := index.(*ast.Tuple); ok {
		b.store(t, types.Todo)
	}
}

// lenientTypeArgs infers the arguments of a generic whose parameters are
// not checked, accepting the list and ellipsis forms of Callable.
func (b *builder) lenientTypeArgs(index ast.Expr) {
	for _, arg := range typeArgs(index) {
		b.lenientTypeArg(arg)
	}
	b.argList(index)
}

func (b *builder) lenientTypeArg(e ast.Expr) {
	switch e := e.(type) {
	case *ast.List:
		for _, el := range e.Elts {
			b.lenientTypeArg(el)
		}
		b.store(e, types.Todo)
	case *ast.EllipsisLiteral, *ast.IntLiteral, *ast.BoolLiteral, *ast.BytesLiteral:
		b.inferExpr(e)
	default:
		b.typeExpr(e)
	}
}

func (b *builder) typeSubscript(e *ast.Subscript, v types.Type) types.Type {
	switch v.Kind() {
	case types.KindKnownInstance:
		ki := v.KnownInstance()
		if !ki.Kind.IsSpecialForm() {
			b.lenientTypeArgs(e.Index)
			return types.Todo
		}
		return b.specialFormSubscript(e, ki.Kind)
	case types.KindClassLiteral:
		c := v.Class()
		switch c.Known {
		case types.KnownTuple:
			return b.tupleForm(e.Index)
		case types.KnownType:
			return b.typeForm(e.Index)
		}
		b.lenientTypeArgs(e.Index)
		return types.Instance(c)
	case types.KindAny, types.KindUnknown, types.KindTodo:
		b.lenientTypeArgs(e.Index)
		return v
	}
	b.lenientTypeArgs(e.Index)
	b.report(e.Value, diag.InvalidTypeForm, "Variable of type `%s` is not allowed in a type expression", v)
	return types.Unknown
}

func (b *builder) specialFormSubscript(e *ast.Subscript, kind types.KnownInstanceKind) types.Type {
	db := b.db()
	switch kind {
	case types.SpecialFormLiteral:
		return b.literalForm(e.Index)
	case types.SpecialFormOptional:
		return types.Union(db, b.typeExpr(e.Index), types.None)
	case types.SpecialFormUnion:
		u := types.NewUnionBuilder(db)
		for _, arg := range typeArgs(e.Index) {
			u.Add(b.typeExpr(arg))
		}
		b.argList(e.Index)
		return u.Build()
	case types.SpecialFormTuple:
		return b.tupleForm(e.Index)
	case types.SpecialFormType:
		return b.typeForm(e.Index)
	case types.SpecialFormClassVar, types.SpecialFormFinal:
		name := "typing.ClassVar"
		if kind == types.SpecialFormFinal {
			name = "typing.Final"
		}
		b.report(e, diag.InvalidTypeForm, "Type qualifier `%s` is not allowed in type expressions (only in annotation expressions)", name)
		b.lenientTypeArgs(e.Index)
		return types.Unknown
	case types.SpecialFormAnnotated:
		args := typeArgs(e.Index)
		if len(args) < 2 {
			b.report(e, diag.InvalidTypeForm, "Special form `typing.Annotated` expected at least 2 arguments (one type and at least one metadata element)")
			b.lenientTypeArgs(e.Index)
			return types.Unknown
		}
		t := b.typeExpr(args[0])
		for _, meta := range args[1:] {
			b.inferExpr(meta)
		}
		b.argList(e.Index)
		return t
	}
	if cls, ok := kind.AliasClass(); ok {
		b.lenientTypeArgs(e.Index)
		return cls.Instance(db)
	}
	b.lenientTypeArgs(e.Index)
	return types.Todo
}

func (b *builder) literalForm(index ast.Expr) types.Type {
	u := types.NewUnionBuilder(b.db())
	for _, arg := range typeArgs(index) {
		u.Add(b.literalArg(arg))
	}
	b.argList(index)
	return u.Build()
}

func (b *builder) literalArg(e ast.Expr) types.Type {
	switch e := e.(type) {
	case *ast.IntLiteral, *ast.BytesLiteral, *ast.BoolLiteral, *ast.NoneLiteral:
		return b.inferExpr(e)
	case *ast.StringLiteral:
		if !e.FString {
			return b.inferExpr(e)
		}
	case *ast.UnaryOp:
		if _, ok := e.Operand.(*ast.IntLiteral); ok && e.Op == ast.USub {
			return b.inferExpr(e)
		}
	case *ast.Attribute:
		b.inferExpr(e)
		return types.Todo
	case *ast.Subscript:
		v := b.inferExpr(e.Value)
		if ki := v.KnownInstance(); ki != nil && ki.Kind == types.SpecialFormLiteral {
			t := b.literalForm(e.Index)
			b.store(e, t)
			return t
		}
		b.lenientTypeArgs(e.Index)
		b.report(e, diag.InvalidTypeForm,
			"Type arguments for `Literal` must be `None`, a literal value (int, bool, str, or bytes), or an enum value")
		b.store(e, types.Unknown)
		return types.Unknown
	}
	b.report(e, diag.InvalidTypeForm,
		"Type arguments for `Literal` must be `None`, a literal value (int, bool, str, or bytes), or an enum value")
	b.inferExpr(e)
	return types.Unknown
}

// tupleForm handles tuple[X, Y], tuple[X, ...] and tuple[()].
func (b *builder) tupleForm(index ast.Expr) types.Type {
	db := b.db()
	t, ok := index.(*ast.Tuple)
	if !ok {
		return types.Tuple(db, b.typeExpr(index))
	}
	if len(t.Elts) == 2 && ast.IsEllipsis(t.Elts[1]) {
		b.typeExpr(t.Elts[0])
		b.inferExpr(t.Elts[1])
		b.store(t, types.Todo)
		return types.KnownTuple.Instance(db)
	}
	elems := make([]types.Type, len(t.Elts))
	for i, el := range t.Elts {
		elems[i] = b.typeExpr(el)
	}
	b.store(t, types.Todo)
	return types.Tuple(db, elems...)
}

// typeForm handles type[C].
func (b *builder) typeForm(index ast.Expr) types.Type {
	return b.subclassOf(b.typeExpr(index))
}

func (b *builder) subclassOf(t types.Type) types.Type {
	switch {
	case t.Kind() == types.KindInstance:
		return types.SubclassOf(t.Class())
	case t.IsDynamic():
		return types.SubclassOfDynamic(t)
	case t.IsUnion():
		u := types.NewUnionBuilder(b.db())
		for _, e := range t.Elements() {
			u.Add(b.subclassOf(e))
		}
		return u.Build()
	}
	return types.Todo
}

// withParsedAnnotation parses a string annotation and runs f over the
// parsed expression with recording suspended. It reports false when the
// string could not be used.
func (b *builder) withParsedAnnotation(s *ast.StringLiteral, f func(ast.Expr)) bool {
	if s.FString {
		b.report(s, diag.InvalidTypeForm, "Type expressions cannot use f-strings")
		for _, p := range s.Parts {
			b.inferExpr(p)
		}
		return false
	}
	parsed, err := b.s.program.Parse(b.file)
	if err != nil {
		return false
	}
	expr, err := pyparse.ParseExpression(context.Background(), s.Value, parsed.MaxID+1, s.Span())
	if err != nil {
		b.report(s, diag.InvalidTypeForm, "Syntax error in forward annotation: `%s`", s.Value)
		return false
	}
	prevParsed, prevScope, prevDeferred := b.parsed, b.parsedScope, b.deferred
	if !b.parsed {
		b.parsedScope = b.ix.ExpressionScope(s.ID())
	}
	b.parsed, b.deferred = true, true
	f(expr)
	b.parsed, b.parsedScope, b.deferred = prevParsed, prevScope, prevDeferred
	return true
}
