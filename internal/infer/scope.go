package infer

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/semantic"
	"github.com/jward/knot/internal/types"
)

// inferScope walks every statement of one scope. Definitions and
// standalone expressions are inferred in their own regions and merged.
func (s *Session) inferScope(k scopeKey) *TypeInference {
	sc := k.ix.Scope(k.scope)
	b := s.newBuilder(k.ix, k.scope, sc.Node)
	s.logger.Debug("infer scope", "file", b.file.Path, "scope", sc.Name, "kind", sc.Kind)

	switch sc.Kind {
	case semantic.ModuleScope:
		b.body(k.ix.Module().Body)
	case semantic.ClassScope:
		b.body(sc.Node.(*ast.ClassDef).Body)
	case semantic.FunctionScope:
		b.functionBody(sc.Node.(*ast.FunctionDef))
	case semantic.LambdaScope:
		lam := sc.Node.(*ast.Lambda)
		b.parameters(lam.Params)
		b.inferExpr(lam.Body)
	case semantic.ComprehensionScope:
		b.comprehensionScope(sc.Node)
	case semantic.AnnotationScope:
		b.annotationScope(sc.Node)
	}

	b.drainDeferred(s.InferDeferred)

	for _, def := range k.ix.ScopeDefinitions(k.scope) {
		if def.Kind == semantic.ClassDefinition {
			b.validateClass(def)
		}
	}
	return b.finish()
}

// drainDeferred merges the deferred regions of every definition the scope
// postponed. A deferred region never postpones anything itself.
func (b *builder) drainDeferred(infer func(*semantic.Definition) *TypeInference) {
	for _, def := range b.result.Deferred() {
		r := infer(def)
		debugAssert(r.deferred.Empty(), "deferred region of `%s` postponed %d more definitions", def.Name, r.deferred.Size())
		b.merge(r)
	}
	b.result.deferred = set.New[*semantic.Definition](0)
}

func (b *builder) functionBody(fn *ast.FunctionDef) {
	b.parameters(fn.Params)
	if fn.Returns != nil {
		if def := b.ix.Definition(fn); def != nil {
			t := b.s.annotationRegion(def).ExpressionType(fn.Returns)
			b.returns = &t
		}
	}
	b.isGenerator = containsYield(fn.Body)
	b.body(fn.Body)
}

func (b *builder) parameters(params *ast.Parameters) {
	if params == nil {
		return
	}
	for _, p := range params.List {
		b.definitionsOf(p)
	}
}

// containsYield reports a yield in body outside nested scopes.
func containsYield(body []ast.Stmt) bool {
	found := false
	for _, st := range body {
		ast.Inspect(st, func(n ast.Node) bool {
			if found {
				return false
			}
			switch n.(type) {
			case *ast.Yield, *ast.YieldFrom:
				found = true
				return false
			case *ast.FunctionDef, *ast.ClassDef, *ast.Lambda,
				*ast.ListComp, *ast.SetComp, *ast.DictComp, *ast.GeneratorExp:
				return false
			}
			return true
		})
	}
	return found
}

func comprehensionParts(node ast.Node) ([]*ast.Comprehension, []ast.Expr) {
	switch n := node.(type) {
	case *ast.ListComp:
		return n.Generators, []ast.Expr{n.Elt}
	case *ast.SetComp:
		return n.Generators, []ast.Expr{n.Elt}
	case *ast.GeneratorExp:
		return n.Generators, []ast.Expr{n.Elt}
	case *ast.DictComp:
		return n.Generators, []ast.Expr{n.Key, n.Value}
	}
	return nil, nil
}

// comprehensionScope infers everything but the first iterable, which is
// evaluated in the enclosing scope.
func (b *builder) comprehensionScope(node ast.Node) {
	gens, elts := comprehensionParts(node)
	for i, gen := range gens {
		var elem types.Type
		if i == 0 {
			iter := types.Unknown
			if se := b.ix.Expression(gen.Iter); se != nil {
				iter = b.s.ExpressionType(se)
			}
			elem, _ = types.Iterate(b.db(), iter)
			if gen.IsAsync {
				elem = types.Todo
			}
		} else {
			elem = b.iterate(gen.Iter, b.inferExpr(gen.Iter), gen.IsAsync)
		}
		b.inferTarget(gen.Target, elem)
		for _, cond := range gen.Ifs {
			b.inferExpr(cond)
		}
	}
	for _, e := range elts {
		b.inferExpr(e)
	}
}

func (b *builder) annotationScope(node ast.Node) {
	var params []*ast.TypeParam
	switch n := node.(type) {
	case *ast.FunctionDef:
		params = n.TypeParams
	case *ast.ClassDef:
		params = n.TypeParams
	case *ast.TypeAlias:
		params = n.TypeParams
	}
	for _, tp := range params {
		b.definitionsOf(tp)
	}
	if ta, ok := node.(*ast.TypeAlias); ok {
		b.withDeferred(true, func() { b.typeExpr(ta.Value) })
	}
}

func (b *builder) body(stmts []ast.Stmt) {
	for _, st := range stmts {
		b.stmt(st)
	}
}

func (b *builder) stmt(st ast.Stmt) {
	switch s := st.(type) {
	case *ast.FunctionDef, *ast.ClassDef, *ast.TypeAlias:
		b.definitionsOf(s)
	case *ast.Return:
		b.returnStmt(s)
	case *ast.Delete:
		for _, t := range s.Targets {
			b.inferExpr(t)
		}
	case *ast.Assign:
		value := b.inferExpr(s.Value)
		for _, t := range s.Targets {
			b.inferTarget(t, value)
		}
	case *ast.AugAssign:
		b.augAssign(s)
	case *ast.AnnAssign:
		b.annAssign(s)
	case *ast.For:
		elem := b.iterate(s.Iter, b.inferExpr(s.Iter), s.IsAsync)
		b.inferTarget(s.Target, elem)
		b.body(s.Body)
		b.body(s.Orelse)
	case *ast.While:
		b.inferExpr(s.Test)
		b.body(s.Body)
		b.body(s.Orelse)
	case *ast.If:
		b.inferExpr(s.Test)
		b.body(s.Body)
		b.body(s.Orelse)
	case *ast.With:
		for _, item := range s.Items {
			entered := b.enter(item.ContextExpr, b.inferExpr(item.ContextExpr), s.IsAsync)
			if item.OptionalVars != nil {
				b.inferTarget(item.OptionalVars, entered)
			}
		}
		b.body(s.Body)
	case *ast.Match:
		b.inferExpr(s.Subject)
		for _, c := range s.Cases {
			b.pattern(c.Pattern)
			if c.Guard != nil {
				b.inferExpr(c.Guard)
			}
			b.body(c.Body)
		}
	case *ast.Raise:
		b.raise(s)
	case *ast.Try:
		b.body(s.Body)
		for _, h := range s.Handlers {
			if h.Name != nil {
				b.definitionsOf(h)
			} else {
				b.exceptionCaught(h)
			}
			b.body(h.Body)
		}
		b.body(s.Orelse)
		b.body(s.Finalbody)
	case *ast.Assert:
		b.inferExpr(s.Test)
		if s.Msg != nil {
			b.inferExpr(s.Msg)
		}
	case *ast.Import:
		for _, alias := range s.Names {
			b.definitionsOf(alias)
		}
	case *ast.ImportFrom:
		b.importFrom(s)
	case *ast.ExprStmt:
		b.inferExpr(s.Value)
	case *ast.Global, *ast.Nonlocal, *ast.Pass, *ast.Break, *ast.Continue:
	}
}

func (b *builder) returnStmt(s *ast.Return) {
	t := types.None
	var at ast.Node = s
	if s.Value != nil {
		t = b.inferExpr(s.Value)
		at = s.Value
	}
	if b.returns == nil || b.isGenerator || b.ix.IsStub() {
		return
	}
	if !types.IsAssignableTo(b.db(), t, *b.returns) {
		b.report(at, diag.InvalidReturnType, "Object of type `%s` is not assignable to return type `%s`", t, *b.returns)
	}
}

func (b *builder) augAssign(s *ast.AugAssign) {
	if _, ok := s.Target.(*ast.Name); ok {
		b.definitionsOf(s.Target)
		return
	}
	target := b.inferExpr(s.Target)
	value := b.inferExpr(s.Value)
	if _, ok := types.AugmentedOp(b.db(), target, s.Op, value); !ok {
		b.report(s, diag.UnsupportedOperator, "Operator `%s=` is unsupported between objects of type `%s` and `%s`", s.Op, target, value)
	}
}

func (b *builder) annAssign(s *ast.AnnAssign) {
	if _, ok := s.Target.(*ast.Name); ok {
		b.definitionsOf(s.Target)
		return
	}
	declared, _ := b.inferAnnotation(s.Annotation)
	if s.Value != nil {
		value := b.inferExpr(s.Value)
		if !types.IsAssignableTo(b.db(), value, declared.Type) {
			b.report(s.Value, diag.InvalidAssignment, "Object of type `%s` is not assignable to `%s`", value, declared.Type)
		}
	}
	b.inferTarget(s.Target, declared.Type)
}

func (b *builder) importFrom(s *ast.ImportFrom) {
	if !s.IsStarImport() {
		for _, alias := range s.Names {
			b.definitionsOf(alias)
		}
		return
	}
	if defs := b.ix.Definitions(s); len(defs) > 0 {
		b.definitionsOf(s)
		return
	}
	if _, ok := b.resolveImport(s.Module, s.Level); !ok {
		b.report(s, diag.UnresolvedImport, "Cannot resolve import `%s`", importDisplay(s.Module, s.Level))
	}
}

func (b *builder) pattern(p ast.Pattern) {
	switch p := p.(type) {
	case *ast.MatchValue:
		b.inferExpr(p.Value)
	case *ast.MatchSingleton:
		b.inferExpr(p.Value)
	case *ast.MatchSequence:
		for _, sub := range p.Patterns {
			b.pattern(sub)
		}
	case *ast.MatchMapping:
		for i, sub := range p.Patterns {
			b.inferExpr(p.Keys[i])
			b.pattern(sub)
		}
		if p.Rest != nil {
			b.definitionsOf(p)
		}
	case *ast.MatchClass:
		b.inferExpr(p.Cls)
		for _, sub := range p.Patterns {
			b.pattern(sub)
		}
		for _, sub := range p.KwdPatterns {
			b.pattern(sub)
		}
	case *ast.MatchStar:
		if p.Name != nil {
			b.definitionsOf(p)
		}
	case *ast.MatchAs:
		if p.Pattern != nil {
			b.pattern(p.Pattern)
		}
		if p.Name != nil {
			b.definitionsOf(p)
		}
	case *ast.MatchOr:
		for _, alt := range p.Patterns {
			b.pattern(alt)
		}
	}
}

// iterate returns the element type of iterating t, reporting values that
// are not iterable.
func (b *builder) iterate(node ast.Expr, t types.Type, async bool) types.Type {
	if async {
		return types.Todo
	}
	elem, err := types.Iterate(b.db(), t)
	if err != nil {
		b.report(node, diag.NotIterable, "%s", err.Error())
	}
	return elem
}

// enter returns the type bound by `with ... as`, reporting objects that
// are not context managers.
func (b *builder) enter(node ast.Expr, t types.Type, async bool) types.Type {
	if async {
		return types.Todo
	}
	entered, err := types.EnterContext(b.db(), t)
	if err != nil {
		b.report(node, diag.InvalidContextManager, "%s", err.Error())
	}
	return entered
}

func (b *builder) raise(s *ast.Raise) {
	if s.Exc != nil {
		t := b.inferExpr(s.Exc)
		if !b.isRaisable(t, false) {
			b.report(s.Exc, diag.InvalidRaise, "Cannot raise object of type `%s` (must be a `BaseException` subclass or instance)", t)
		}
	}
	if s.Cause != nil {
		t := b.inferExpr(s.Cause)
		if !b.isRaisable(t, true) {
			b.report(s.Cause, diag.InvalidRaise,
				"Cannot use object of type `%s` as exception cause (must be a `BaseException` subclass or instance or `None`)", t)
		}
	}
}

func (b *builder) isRaisable(t types.Type, allowNone bool) bool {
	c := b.db().KnownClass(types.KnownBaseException)
	if c == nil {
		return true
	}
	want := []types.Type{types.Instance(c), types.SubclassOf(c)}
	if allowNone {
		want = append(want, types.None)
	}
	return types.IsAssignableTo(b.db(), t, types.Union(b.db(), want...))
}

// exceptionCaught infers an except clause's type and returns the type of
// the exception bound by `as`.
func (b *builder) exceptionCaught(h *ast.ExceptHandler) types.Type {
	if h.Type == nil {
		return types.KnownBaseException.Instance(b.db())
	}
	t := b.inferExpr(h.Type)
	caught, ok := b.caughtInstance(t)
	if !ok {
		b.report(h.Type, diag.InvalidExceptionCaught,
			"Cannot catch object of type `%s` in an exception handler (must be a `BaseException` subclass or a tuple of `BaseException` subclasses)", t)
	}
	if b.s.isStarHandler(b.ix, h) {
		return types.KnownBaseExceptionGroup.Instance(b.db())
	}
	return caught
}

func (b *builder) caughtInstance(t types.Type) (types.Type, bool) {
	db := b.db()
	if t.Kind() == types.KindTuple {
		u := types.NewUnionBuilder(db)
		valid := true
		for _, e := range t.Elements() {
			inst, ok := b.caughtInstance(e)
			valid = valid && ok
			u.Add(inst)
		}
		return u.Build(), valid
	}
	if t.IsDynamic() {
		return t, true
	}
	c := db.KnownClass(types.KnownBaseException)
	if c == nil {
		return types.ToInstance(db, t), true
	}
	if !types.IsAssignableTo(db, t, types.SubclassOf(c)) {
		return types.Unknown, false
	}
	return types.ToInstance(db, t), true
}

// inferTarget infers the sub-expressions of an assignment target. Names
// are delegated to their definitions; containers record the value they
// receive and distribute it to their elements.
func (b *builder) inferTarget(target ast.Expr, assigned types.Type) {
	switch t := target.(type) {
	case *ast.Name:
		b.definitionsOf(t)
	case *ast.Tuple:
		b.store(t, assigned)
		b.unpackTargets(t, t.Elts, assigned)
	case *ast.List:
		b.store(t, assigned)
		b.unpackTargets(t, t.Elts, assigned)
	case *ast.Starred:
		b.store(t, assigned)
		b.inferTarget(t.Value, assigned)
	case *ast.Attribute:
		b.inferExpr(t.Value)
		b.store(t, assigned)
	case *ast.Subscript:
		b.inferExpr(t.Value)
		b.inferExpr(t.Index)
		b.store(t, assigned)
	default:
		b.inferExpr(t)
	}
}

func (b *builder) unpackTargets(node ast.Expr, elts []ast.Expr, assigned types.Type) {
	parts, msg := unpack(b.db(), elts, assigned)
	if msg != "" {
		b.report(node, diag.InvalidAssignment, "%s", msg)
	}
	for i, e := range elts {
		b.inferTarget(e, parts[i])
	}
}
