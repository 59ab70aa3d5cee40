package infer

import (
	"strings"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/program"
	"github.com/jward/knot/internal/semantic"
	"github.com/jward/knot/internal/types"
)

func (s *Session) inferExpression(e *semantic.Expression) *TypeInference {
	b := s.newBuilder(e.Index(), e.Scope, e.Node)
	b.standalone = true
	b.inferExpr(e.Node)
	return b.finish()
}

// inferDefinition infers the binding and declaration of one definition
// together with the expressions it owns.
func (s *Session) inferDefinition(def *semantic.Definition) *TypeInference {
	b := s.newBuilder(def.Index(), def.Scope, def.Node)
	switch def.Kind {
	case semantic.FunctionDefinition:
		b.functionDefinition(def)
	case semantic.ClassDefinition:
		b.classDefinition(def)
	case semantic.ImportDefinition:
		b.importDefinition(def)
	case semantic.ImportFromDefinition, semantic.StarImportDefinition:
		b.importFromDefinition(def)
	case semantic.AssignmentDefinition:
		b.assignmentDefinition(def)
	case semantic.AnnotatedAssignmentDefinition:
		b.annotatedAssignmentDefinition(def)
	case semantic.AugmentedAssignmentDefinition:
		b.augmentedAssignmentDefinition(def)
	case semantic.ForTargetDefinition, semantic.ComprehensionDefinition:
		elem := types.Todo
		if !def.IsAsync {
			elem, _ = types.Iterate(b.db(), b.valueType(def))
		}
		b.targetDefinition(def, elem)
	case semantic.WithItemDefinition:
		entered := types.Todo
		if !def.IsAsync {
			entered, _ = types.EnterContext(b.db(), b.valueType(def))
		}
		b.targetDefinition(def, entered)
	case semantic.NamedExprDefinition:
		ne := def.Node.(*ast.NamedExpr)
		value := b.inferExpr(ne.Value)
		b.store(ne.Target, b.addBinding(ne.Target, def, value))
	case semantic.ParameterDefinition, semantic.VariadicPositionalDefinition, semantic.VariadicKeywordDefinition:
		b.parameterDefinition(def)
	case semantic.MatchPatternDefinition:
		b.matchDefinition(def)
	case semantic.ExceptHandlerDefinition:
		h := def.Node.(*ast.ExceptHandler)
		b.addBinding(h, def, b.exceptionCaught(h))
	case semantic.TypeVarDefinition, semantic.ParamSpecDefinition, semantic.TypeVarTupleDefinition:
		b.typeParamDefinition(def)
	case semantic.TypeAliasDefinition:
		ta := def.Node.(*ast.TypeAlias)
		t := types.KnownInstanceOf(s.knownInstanceFor(def, types.KnownTypeAliasInstance))
		b.store(ta.Name, t)
		b.declareAndBind(def, t)
	}
	return b.finish()
}

// inferDeferred infers the type expressions a definition postponed:
// annotations of functions in stubs or under `from __future__ import
// annotations`, and class bases in stubs.
func (s *Session) inferDeferred(def *semantic.Definition) *TypeInference {
	b := s.newBuilder(def.Index(), def.Scope, def.Node)
	b.deferred = true
	switch n := def.Node.(type) {
	case *ast.FunctionDef:
		b.functionAnnotations(n)
	case *ast.ClassDef:
		for _, base := range n.Bases {
			b.inferExpr(base)
		}
	}
	return b.finish()
}

// valueType is the type of the expression a definition takes its value
// from. The outermost iterable of a comprehension belongs to the enclosing
// scope and is read without merging its region.
func (b *builder) valueType(def *semantic.Definition) types.Type {
	if def.Value == nil {
		return types.Unknown
	}
	if se := b.ix.Expression(def.Value); se != nil && se.Scope != def.Scope {
		return b.s.ExpressionType(se)
	}
	return b.inferExpr(def.Value)
}

func (b *builder) functionDefinition(def *semantic.Definition) {
	fn := def.Node.(*ast.FunctionDef)
	decorators := make([]types.Type, len(fn.Decorators))
	var flags types.FunctionFlags
	for i, d := range fn.Decorators {
		decorators[i] = b.inferExpr(d)
		flags |= decoratorFlag(decorators[i])
	}
	for _, p := range fn.Params.List {
		if p.Default != nil {
			b.inferExpr(p.Default)
		}
	}
	if deferAnnotations(b.ix) {
		b.result.deferred.Insert(def)
	} else {
		b.functionAnnotations(fn)
	}

	t := types.FunctionLiteral(b.s.functionFor(def, flags))
	for i := len(decorators) - 1; i >= 0; i-- {
		d := decorators[i]
		if decoratorFlag(d) != 0 || isIdentityDecorator(d) {
			continue
		}
		t = types.Call(b.db(), d, types.Positional(t)).Return
	}
	b.declareAndBind(def, t)
}

func decoratorFlag(t types.Type) types.FunctionFlags {
	switch {
	case t.IsClassLiteralOf(types.KnownStaticMethod):
		return types.FunctionStaticMethod
	case t.IsClassLiteralOf(types.KnownClassMethod):
		return types.FunctionClassMethod
	case t.IsClassLiteralOf(types.KnownProperty):
		return types.FunctionProperty
	case isFinalDecorator(t):
		return types.FunctionFinal
	}
	if fn := t.Function(); t.Kind() == types.KindFunction && fn.Name == "overload" &&
		(fn.Module == "typing" || fn.Module == "typing_extensions") {
		return types.FunctionOverload
	}
	return 0
}

func isIdentityDecorator(t types.Type) bool {
	fn := t.Function()
	return t.Kind() == types.KindFunction && fn.Known == types.KnownTypeCheckOnly
}

func (b *builder) functionAnnotations(fn *ast.FunctionDef) {
	for _, p := range fn.Params.List {
		if p.Annotation != nil {
			b.inferAnnotation(p.Annotation)
		}
	}
	if fn.Returns != nil {
		b.inferAnnotation(fn.Returns)
	}
}

func (b *builder) classDefinition(def *semantic.Definition) {
	cd := def.Node.(*ast.ClassDef)
	for _, d := range cd.Decorators {
		b.inferExpr(d)
	}
	if b.ix.IsStub() {
		b.result.deferred.Insert(def)
	} else {
		for _, base := range cd.Bases {
			b.inferExpr(base)
		}
	}
	for _, kw := range cd.Keywords {
		b.inferExpr(kw.Value)
	}
	b.declareAndBind(def, types.ClassLiteral(b.s.classFor(def)))
}

func importDisplay(module string, level int) string {
	return strings.Repeat(".", level) + module
}

func (b *builder) resolveImport(module string, level int) (types.Type, bool) {
	name, err := program.RelativeModule(b.file, module, level)
	if err != nil {
		return types.Unknown, false
	}
	return b.s.resolveModule(name)
}

// importDefinition binds `import a.b.c` to the top-level package a, and
// `import a.b.c as d` to the submodule itself.
func (b *builder) importDefinition(def *semantic.Definition) {
	alias := def.Node.(*ast.Alias)
	if _, ok := b.s.resolveModule(alias.Name); !ok {
		b.report(alias, diag.UnresolvedImport, "Cannot resolve import `%s`", alias.Name)
		b.declareAndBind(def, types.Unknown)
		return
	}
	name := alias.Name
	if alias.AsName == nil {
		name, _, _ = strings.Cut(name, ".")
	}
	t, ok := b.s.resolveModule(name)
	if !ok {
		t = types.Unknown
	}
	b.declareAndBind(def, t)
}

func (b *builder) importFromDefinition(def *semantic.Definition) {
	display := importDisplay(def.Module, def.Level)
	module, ok := b.resolveImport(def.Module, def.Level)
	if !ok {
		b.report(def.Stmt, diag.UnresolvedImport, "Cannot resolve import `%s`", display)
		b.declareAndBind(def, types.Unknown)
		return
	}
	member := def.Name
	var at ast.Node = def.Node
	if alias, ok := def.Node.(*ast.Alias); ok {
		member = alias.Name
	}
	sym := b.s.ModuleMember(module.Module(), member)
	switch {
	case sym.IsUnbound():
		b.report(at, diag.UnresolvedImport, "Module `%s` has no member `%s`", display, member)
		b.declareAndBind(def, types.Unknown)
		return
	case sym.IsPossiblyUnbound() && def.Kind == semantic.ImportFromDefinition:
		b.report(at, diag.PossiblyUnboundImport, "Member `%s` of module `%s` is possibly unbound", member, display)
	}
	b.declareAndBind(def, sym.Type())
}

func (b *builder) assignmentDefinition(def *semantic.Definition) {
	name := def.Node.(*ast.Name)
	value := b.valueType(def)
	if call, ok := def.Value.(*ast.Call); ok && def.Target == ast.Expr(name) {
		if tv, ok := b.legacyTypeVar(def, call); ok {
			value = tv
		}
	}
	t := value
	if def.Target != ast.Expr(name) {
		t, _ = unpackTo(b.db(), def.Target, value, name)
	}
	b.store(name, b.addBinding(name, def, t))
}

// legacyTypeVar recognizes `T = TypeVar("T", ...)` and its ParamSpec and
// TypeVarTuple counterparts.
func (b *builder) legacyTypeVar(def *semantic.Definition, call *ast.Call) (types.Type, bool) {
	callee := b.result.ExpressionType(call.Func)
	var kind types.KnownInstanceKind
	switch {
	case callee.IsClassLiteralOf(types.KnownTypeVar):
		kind = types.KnownTypeVarInstance
	case callee.IsClassLiteralOf(types.KnownParamSpec):
		kind = types.KnownParamSpecInstance
	case callee.IsClassLiteralOf(types.KnownTypeVarTuple):
		kind = types.KnownTypeVarTupleInstance
	default:
		return types.Type{}, false
	}
	if len(call.Args) == 0 {
		return types.Type{}, false
	}
	if lit, ok := call.Args[0].(*ast.StringLiteral); !ok || lit.FString {
		return types.Type{}, false
	}
	var bound *types.Type
	var constraints []types.Type
	for _, a := range call.Args[1:] {
		constraints = append(constraints, types.ToInstance(b.db(), b.result.ExpressionType(a)))
	}
	for _, kw := range call.Keywords {
		if kw.Arg != nil && kw.Arg.Name == "bound" {
			t := types.ToInstance(b.db(), b.result.ExpressionType(kw.Value))
			bound = &t
		}
	}
	return types.KnownInstanceOf(b.s.in.InternKnownInstance(kind, def.Name, def, bound, constraints)), true
}

// knownInstanceFor is the instance a type alias statement binds.
func (s *Session) knownInstanceFor(def *semantic.Definition, kind types.KnownInstanceKind) *types.KnownInstance {
	return s.in.InternKnownInstance(kind, def.Name, def, nil, nil)
}

func (b *builder) annotatedAssignmentDefinition(def *semantic.Definition) {
	ann := def.Stmt.(*ast.AnnAssign)
	name := def.Node.(*ast.Name)

	var declared types.TypeAndQualifiers
	var bare bool
	b.withDeferred(deferAnnotations(b.ix), func() {
		declared, bare = b.inferAnnotation(ann.Annotation)
	})
	if kind, ok := types.LookupSpecialForm(b.file.Module, def.Name); ok && def.Scope == semantic.ModuleScopeID {
		declared = types.TypeAndQualifiers{Type: b.s.specialForm(kind)}
		bare = false
	}

	if ann.Value == nil {
		declared = b.addDeclaration(name, def, declared)
		b.store(name, declared.Type)
		return
	}
	value := b.inferExpr(ann.Value)
	if bare {
		declared.Type = value
	}
	if b.ix.IsStub() && ast.IsEllipsis(ann.Value) {
		value = declared.Type
	}
	if declared.Type.Kind() == types.KindKnownInstance && declared.Type.KnownInstance().Kind.IsSpecialForm() {
		value = declared.Type
	}
	b.store(name, b.addDeclarationWithBinding(name, def, declared, value))
}

func (b *builder) augmentedAssignmentDefinition(def *semantic.Definition) {
	aug := def.Stmt.(*ast.AugAssign)
	name := def.Node.(*ast.Name)
	target := b.lookupName(name)
	value := b.inferExpr(aug.Value)
	t, ok := types.AugmentedOp(b.db(), target, aug.Op, value)
	if !ok {
		b.report(aug, diag.UnsupportedOperator, "Operator `%s=` is unsupported between objects of type `%s` and `%s`", aug.Op, target, value)
		t = types.Unknown
	}
	b.store(name, b.addBinding(name, def, t))
}

// targetDefinition binds one name of a for, with or comprehension target
// given the value assigned to the whole target.
func (b *builder) targetDefinition(def *semantic.Definition, value types.Type) {
	name := def.Node.(*ast.Name)
	t := value
	if def.Target != nil && def.Target != ast.Expr(name) {
		t, _ = unpackTo(b.db(), def.Target, value, name)
	}
	b.store(name, b.addBinding(name, def, t))
}

func (b *builder) parameterDefinition(def *semantic.Definition) {
	p := def.Node.(*ast.Parameter)
	db := b.db()

	var defaultType *types.Type
	if p.Default != nil {
		var t types.Type
		switch owner := def.Stmt.(type) {
		case *ast.FunctionDef:
			t = b.s.InferDefinition(b.ix.Definition(owner)).ExpressionType(p.Default)
		default:
			t = b.s.InferScope(b.ix, b.ix.ExpressionScope(p.Default.ID())).ExpressionType(p.Default)
		}
		defaultType = &t
	}

	switch def.Kind {
	case semantic.VariadicPositionalDefinition:
		t := types.KnownTuple.Instance(db)
		if p.Annotation != nil {
			b.storeDeclaration(def, types.TypeAndQualifiers{Type: t})
		}
		b.storeBinding(def, t)
		return
	case semantic.VariadicKeywordDefinition:
		t := types.KnownDict.Instance(db)
		if p.Annotation != nil {
			b.storeDeclaration(def, types.TypeAndQualifiers{Type: t})
		}
		b.storeBinding(def, t)
		return
	}

	if p.Annotation == nil {
		bound := types.Unknown
		if defaultType != nil {
			bound = types.Union(db, types.Unknown, *defaultType)
		}
		b.storeBinding(def, bound)
		return
	}

	declared := types.Unknown
	if fn, ok := def.Stmt.(*ast.FunctionDef); ok {
		declared = b.s.annotationRegion(b.ix.Definition(fn)).ExpressionType(p.Annotation)
	}
	bound := declared
	if defaultType != nil {
		switch {
		case b.ix.IsStub() && ast.IsEllipsis(p.Default):
		case types.IsAssignableTo(db, *defaultType, declared):
			bound = types.Union(db, declared, *defaultType)
		default:
			b.report(p.Default, diag.InvalidParameterDefault,
				"Default value of type `%s` is not assignable to annotated parameter type `%s`", *defaultType, declared)
		}
	}
	b.storeDeclaration(def, types.TypeAndQualifiers{Type: declared})
	b.storeBinding(def, bound)
}

func (b *builder) matchDefinition(def *semantic.Definition) {
	subject := b.valueType(def)
	c := def.Stmt.(*ast.MatchCase)
	t := types.Todo
	switch p := def.Node.(type) {
	case *ast.MatchAs:
		if ast.Pattern(p) == c.Pattern && p.Pattern == nil {
			t = subject
		}
	case *ast.MatchStar:
		t = types.KnownList.Instance(b.db())
	case *ast.MatchMapping:
		t = types.KnownDict.Instance(b.db())
	}
	b.addBinding(def.Node, def, t)
}

// typeParamDefinition binds a PEP 695 type parameter. A tuple bound
// lists the constraints of the type variable.
func (b *builder) typeParamDefinition(def *semantic.Definition) {
	tp := def.Node.(*ast.TypeParam)
	kind := types.KnownTypeVarInstance
	switch def.Kind {
	case semantic.ParamSpecDefinition:
		kind = types.KnownParamSpecInstance
	case semantic.TypeVarTupleDefinition:
		kind = types.KnownTypeVarTupleInstance
	}
	var bound *types.Type
	var constraints []types.Type
	if tp.Bound != nil {
		b.withDeferred(true, func() {
			if tuple, ok := tp.Bound.(*ast.Tuple); ok {
				for _, el := range tuple.Elts {
					constraints = append(constraints, b.typeExpr(el))
				}
				b.store(tuple, types.Tuple(b.db(), constraints...))
				return
			}
			t := b.typeExpr(tp.Bound)
			bound = &t
		})
	}
	ki := b.s.in.InternKnownInstance(kind, def.Name, def, bound, constraints)
	b.declareAndBind(def, types.KnownInstanceOf(ki))
}
