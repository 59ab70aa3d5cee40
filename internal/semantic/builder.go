package semantic

import (
	"strings"

	"github.com/jward/knot/internal/ast"
)

// Options configures Build.
type Options struct {
	IsStub bool
	// StarImport returns the names exported by the target of
	// `from <module> import *`. A nil func imports nothing.
	StarImport func(module string, level int) []string
}

type loopFrame struct {
	breaks    []flowState
	continues []flowState
}

type tryFrame struct {
	snapshots []flowState
}

type scopeFrame struct {
	id    ScopeID
	flow  flowState
	exits []flowState
	loops []*loopFrame
	tries []*tryFrame

	// receiver is the first parameter of a method; classScope is the
	// class it belongs to.
	receiver   string
	classScope ScopeID
}

type builder struct {
	ix    *Index
	opts  Options
	stack []*scopeFrame
}

// Build constructs the semantic index of mod.
func Build(mod *ast.Module, opts Options) *Index {
	b := &builder{
		ix: &Index{
			module:           mod,
			isStub:           opts.IsStub,
			scopeByNode:      make(map[ast.NodeID]ScopeID),
			annotationScopes: make(map[ast.NodeID]ScopeID),
			exprScopes:       make(map[ast.NodeID]ScopeID),
			definitions:      make(map[ast.NodeID][]*Definition),
			expressions:      make(map[ast.NodeID]*Expression),
			eager:            make(map[eagerKey]Bindings),
			instanceAttrs:    make(map[ScopeID]map[string][]*InstanceAttribute),
		},
		opts: opts,
	}
	b.pushScope(ModuleScope, mod, "")
	b.visitBody(mod.Body)
	b.popScope()
	return b.ix
}

func (b *builder) frame() *scopeFrame { return b.stack[len(b.stack)-1] }

func (b *builder) current() ScopeID { return b.frame().id }

func (b *builder) pushScope(kind ScopeKind, node ast.Node, name string) ScopeID {
	parent := NoScope
	if len(b.stack) > 0 {
		parent = b.current()
	}
	id := ScopeID(len(b.ix.scopes))
	b.ix.scopes = append(b.ix.scopes, &Scope{ID: id, Kind: kind, Parent: parent, Node: node, Name: name})
	b.ix.tables = append(b.ix.tables, newSymbolTable())
	b.ix.useDefs = append(b.ix.useDefs, newUseDefMap())
	b.ix.scopeDefinitions = append(b.ix.scopeDefinitions, nil)
	if parent != NoScope {
		p := b.ix.scopes[parent]
		p.Children = append(p.Children, id)
	}
	if kind == AnnotationScope {
		b.ix.annotationScopes[node.ID()] = id
	} else {
		b.ix.scopeByNode[node.ID()] = id
	}
	b.stack = append(b.stack, &scopeFrame{id: id, flow: newFlowState(), classScope: NoScope})
	return id
}

func (b *builder) popScope() {
	f := b.frame()
	public := f.flow.clone()
	for _, exit := range f.exits {
		public.merge(exit)
	}
	table := b.ix.tables[f.id]
	states := make([]SymbolState, table.Len())
	for i := range states {
		states[i] = public.get(SymbolID(i))
	}
	b.ix.useDefs[f.id].public = states

	b.stack = b.stack[:len(b.stack)-1]
	if b.ix.scopes[f.id].IsEager() {
		b.recordEagerSnapshots(f.id)
	}
}

// recordEagerSnapshots captures, for every name the eager scope mentions,
// the bindings of each enclosing scope at the point the scope ran. The walk
// stops after the first lazy ancestor.
func (b *builder) recordEagerSnapshots(nested ScopeID) {
	names := b.ix.tables[nested].Symbols()
	for i := len(b.stack) - 1; i >= 0; i-- {
		enclosing := b.stack[i]
		table := b.ix.tables[enclosing.id]
		for _, sym := range names {
			id, ok := table.Lookup(sym.Name)
			if !ok || !table.Symbol(id).IsBound() {
				continue
			}
			b.ix.eager[eagerKey{enclosing.id, sym.Name, nested}] = enclosing.flow.get(id).Bindings
		}
		if !b.ix.scopes[enclosing.id].IsEager() {
			break
		}
	}
}

func (b *builder) addSymbol(scope ScopeID, name string) SymbolID {
	return b.ix.tables[scope].add(name)
}

// define registers def in scope and updates that scope's flow state.
func (b *builder) define(scope ScopeID, def *Definition, cat DefinitionCategory) *Definition {
	f := b.frameFor(scope)
	table := b.ix.tables[scope]
	sym := table.add(def.Name)
	var flags SymbolFlags
	if cat.IsBinding() {
		flags |= SymbolBound
	}
	if cat.IsDeclaration() {
		flags |= SymbolDeclared
	}
	table.mark(sym, flags)

	def.Scope = scope
	def.Symbol = sym
	def.category = cat
	def.index = b.ix
	def.ordinal = len(b.ix.all)
	b.ix.all = append(b.ix.all, def)
	b.ix.definitions[def.Node.ID()] = append(b.ix.definitions[def.Node.ID()], def)
	b.ix.scopeDefinitions[scope] = append(b.ix.scopeDefinitions[scope], def)

	useDef := b.ix.useDefs[scope]
	switch cat {
	case Binding:
		useDef.declarationsAtBinding[def] = f.flow.get(sym).Declarations
		f.flow.bind(sym, def)
	case Declaration:
		useDef.bindingsAtDeclaration[def] = f.flow.get(sym).Bindings
		f.flow.declare(sym, def)
	default:
		f.flow.declare(sym, def)
		f.flow.bind(sym, def)
	}
	if cat.IsBinding() {
		for _, t := range f.tries {
			t.snapshots = append(t.snapshots, f.flow.clone())
		}
	}
	return def
}

func (b *builder) frameFor(scope ScopeID) *scopeFrame {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].id == scope {
			return b.stack[i]
		}
	}
	panic("semantic: scope is not on the stack")
}

func (b *builder) standalone(e ast.Expr) {
	if e == nil {
		return
	}
	b.ix.expressions[e.ID()] = &Expression{Node: e, Scope: b.current(), index: b.ix}
}

// constrain records a narrowing guard on every live binding.
func (b *builder) constrain(test ast.Expr, positive bool) {
	f := b.frame()
	f.flow.constrain(&Constraint{Test: test, Positive: positive, Scope: f.id})
}

func (b *builder) recordUse(name *ast.Name) {
	f := b.frame()
	sym := b.addSymbol(f.id, name.Ident)
	b.ix.tables[f.id].mark(sym, SymbolUsed)
	b.ix.useDefs[f.id].bindingsAtUse[name.ID()] = f.flow.get(sym).Bindings
}

func (b *builder) exit() {
	f := b.frame()
	if f.flow.reachable {
		f.exits = append(f.exits, f.flow.clone())
	}
	f.flow.markUnreachable()
}

func (b *builder) visitBody(body []ast.Stmt) {
	for _, s := range body {
		b.visitStmt(s)
	}
}

func (b *builder) visitStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.FunctionDef:
		b.visitFunctionDef(s)
	case *ast.ClassDef:
		b.visitClassDef(s)
	case *ast.Return:
		b.visitExpr(s.Value)
		b.exit()
	case *ast.Delete:
		for _, t := range s.Targets {
			b.visitDelete(t)
		}
	case *ast.Assign:
		b.standalone(s.Value)
		b.visitExpr(s.Value)
		for _, t := range s.Targets {
			b.recordInstanceAttribute(t, s, s.Value, nil)
			b.bindTarget(t, func(n *ast.Name) *Definition {
				return &Definition{Kind: AssignmentDefinition, Name: n.Ident, Node: n, Stmt: s, Value: s.Value, Target: t}
			}, Binding)
		}
	case *ast.AugAssign:
		b.visitExpr(s.Value)
		if n, ok := s.Target.(*ast.Name); ok {
			b.ix.exprScopes[n.ID()] = b.current()
			b.recordUse(n)
			b.define(b.current(), &Definition{Kind: AugmentedAssignmentDefinition, Name: n.Ident, Node: n, Stmt: s, Value: s.Value, Target: n}, Binding)
			return
		}
		b.recordInstanceAttribute(s.Target, s, nil, nil)
		b.visitExpr(s.Target)
	case *ast.AnnAssign:
		b.visitExpr(s.Annotation)
		b.visitExpr(s.Value)
		if n, ok := s.Target.(*ast.Name); ok {
			b.ix.exprScopes[n.ID()] = b.current()
			cat := Declaration
			if s.Value != nil {
				cat = DeclarationAndBinding
			}
			b.define(b.current(), &Definition{Kind: AnnotatedAssignmentDefinition, Name: n.Ident, Node: n, Stmt: s, Value: s.Value, Target: n}, cat)
			return
		}
		b.recordInstanceAttribute(s.Target, s, s.Value, s.Annotation)
		b.visitExpr(s.Target)
	case *ast.TypeAlias:
		b.pushScope(AnnotationScope, s, s.Name.Ident)
		b.visitTypeParams(s.TypeParams)
		b.visitExpr(s.Value)
		b.popScope()
		b.ix.exprScopes[s.Name.ID()] = b.current()
		b.define(b.current(), &Definition{Kind: TypeAliasDefinition, Name: s.Name.Ident, Node: s, Stmt: s, Value: s.Value}, DeclarationAndBinding)
	case *ast.For:
		b.visitFor(s)
	case *ast.While:
		b.visitWhile(s)
	case *ast.If:
		b.visitIf(s)
	case *ast.With:
		for _, item := range s.Items {
			b.standalone(item.ContextExpr)
			b.visitExpr(item.ContextExpr)
			if item.OptionalVars != nil {
				vars := item.OptionalVars
				b.bindTarget(vars, func(n *ast.Name) *Definition {
					return &Definition{Kind: WithItemDefinition, Name: n.Ident, Node: n, Stmt: item, Value: item.ContextExpr, Target: vars, IsAsync: s.IsAsync}
				}, Binding)
			}
		}
		b.visitBody(s.Body)
	case *ast.Match:
		b.visitMatch(s)
	case *ast.Raise:
		b.visitExpr(s.Exc)
		b.visitExpr(s.Cause)
		b.exit()
	case *ast.Try:
		b.visitTry(s)
	case *ast.Assert:
		b.standalone(s.Test)
		b.visitExpr(s.Test)
		if s.Msg != nil {
			f := b.frame()
			post := f.flow.clone()
			b.constrain(s.Test, false)
			b.visitExpr(s.Msg)
			f.flow = post
		}
		b.constrain(s.Test, true)
	case *ast.Import:
		for _, alias := range s.Names {
			name := alias.Name
			if alias.AsName != nil {
				name = alias.AsName.Name
			} else if i := strings.IndexByte(name, '.'); i >= 0 {
				name = name[:i]
			}
			b.define(b.current(), &Definition{Kind: ImportDefinition, Name: name, Node: alias, Stmt: s, Module: alias.Name}, DeclarationAndBinding)
		}
	case *ast.ImportFrom:
		b.visitImportFrom(s)
	case *ast.Global:
		for _, id := range s.Names {
			b.ix.tables[b.current()].mark(b.addSymbol(b.current(), id.Name), SymbolGlobal)
		}
	case *ast.Nonlocal:
		for _, id := range s.Names {
			b.ix.tables[b.current()].mark(b.addSymbol(b.current(), id.Name), SymbolNonlocal)
		}
	case *ast.ExprStmt:
		b.visitExpr(s.Value)
	case *ast.Break:
		f := b.frame()
		if n := len(f.loops); n > 0 && f.flow.reachable {
			f.loops[n-1].breaks = append(f.loops[n-1].breaks, f.flow.clone())
		}
		f.flow.markUnreachable()
	case *ast.Continue:
		f := b.frame()
		if n := len(f.loops); n > 0 && f.flow.reachable {
			f.loops[n-1].continues = append(f.loops[n-1].continues, f.flow.clone())
		}
		f.flow.markUnreachable()
	case *ast.Pass:
	}
}

func (b *builder) visitFunctionDef(s *ast.FunctionDef) {
	for _, d := range s.Decorators {
		b.visitExpr(d)
	}
	for _, p := range s.Params.List {
		b.visitExpr(p.Default)
	}
	if len(s.TypeParams) > 0 {
		b.pushScope(AnnotationScope, s, s.Name.Name)
		b.visitTypeParams(s.TypeParams)
	}
	for _, p := range s.Params.List {
		b.visitExpr(p.Annotation)
	}
	b.visitExpr(s.Returns)

	classScope := b.enclosingClass()
	b.pushScope(FunctionScope, s, s.Name.Name)
	if classScope != NoScope && len(s.Params.List) > 0 {
		f := b.frame()
		f.classScope = classScope
		f.receiver = s.Params.List[0].Name.Name
	}
	b.defineParameters(s, s.Params)
	b.visitBody(s.Body)
	b.popScope()

	if len(s.TypeParams) > 0 {
		b.popScope()
	}
	b.define(b.current(), &Definition{Kind: FunctionDefinition, Name: s.Name.Name, Node: s, Stmt: s, IsAsync: s.IsAsync}, DeclarationAndBinding)
}

// enclosingClass returns the class scope a def at the current point is a
// method of, looking through a type-parameter scope.
func (b *builder) enclosingClass() ScopeID {
	id := b.current()
	if b.ix.scopes[id].Kind == AnnotationScope {
		id = b.ix.scopes[id].Parent
	}
	if b.ix.scopes[id].Kind == ClassScope {
		return id
	}
	return NoScope
}

func (b *builder) defineParameters(owner ast.Node, params *ast.Parameters) {
	if params == nil {
		return
	}
	for _, p := range params.List {
		kind := ParameterDefinition
		switch p.Kind {
		case ast.VarPositional:
			kind = VariadicPositionalDefinition
		case ast.VarKeyword:
			kind = VariadicKeywordDefinition
		}
		cat := Binding
		if p.Annotation != nil {
			cat = DeclarationAndBinding
		}
		b.define(b.current(), &Definition{Kind: kind, Name: p.Name.Name, Node: p, Stmt: owner, Value: p.Default}, cat)
	}
}

func (b *builder) visitClassDef(s *ast.ClassDef) {
	for _, d := range s.Decorators {
		b.visitExpr(d)
	}
	if len(s.TypeParams) > 0 {
		b.pushScope(AnnotationScope, s, s.Name.Name)
		b.visitTypeParams(s.TypeParams)
	}
	for _, base := range s.Bases {
		b.visitExpr(base)
	}
	for _, kw := range s.Keywords {
		b.visitExpr(kw.Value)
	}
	b.pushScope(ClassScope, s, s.Name.Name)
	b.visitBody(s.Body)
	b.popScope()
	if len(s.TypeParams) > 0 {
		b.popScope()
	}
	b.define(b.current(), &Definition{Kind: ClassDefinition, Name: s.Name.Name, Node: s, Stmt: s}, DeclarationAndBinding)
}

func (b *builder) visitTypeParams(params []*ast.TypeParam) {
	for _, tp := range params {
		b.visitExpr(tp.Bound)
		kind := TypeVarDefinition
		switch tp.Kind {
		case ast.ParamSpecParam:
			kind = ParamSpecDefinition
		case ast.TypeVarTupleParam:
			kind = TypeVarTupleDefinition
		}
		b.define(b.current(), &Definition{Kind: kind, Name: tp.Name.Name, Node: tp, Stmt: tp}, DeclarationAndBinding)
	}
}

func (b *builder) visitImportFrom(s *ast.ImportFrom) {
	if s.Level == 0 && s.Module == "__future__" {
		for _, alias := range s.Names {
			if alias.Name == "annotations" {
				b.ix.futureAnnotations = true
			}
		}
	}
	if s.IsStarImport() {
		if b.opts.StarImport == nil {
			return
		}
		for _, name := range b.opts.StarImport(s.Module, s.Level) {
			b.define(b.current(), &Definition{Kind: StarImportDefinition, Name: name, Node: s, Stmt: s, Module: s.Module, Level: s.Level}, DeclarationAndBinding)
		}
		return
	}
	for _, alias := range s.Names {
		name := alias.Name
		if alias.AsName != nil {
			name = alias.AsName.Name
		}
		b.define(b.current(), &Definition{Kind: ImportFromDefinition, Name: name, Node: alias, Stmt: s, Module: s.Module, Level: s.Level}, DeclarationAndBinding)
	}
}

func (b *builder) visitIf(s *ast.If) {
	b.standalone(s.Test)
	b.visitExpr(s.Test)
	f := b.frame()
	pre := f.flow.clone()
	b.constrain(s.Test, true)
	b.visitBody(s.Body)
	post := f.flow
	f.flow = pre
	b.constrain(s.Test, false)
	b.visitBody(s.Orelse)
	f.flow.merge(post)
}

func (b *builder) visitWhile(s *ast.While) {
	b.standalone(s.Test)
	b.visitExpr(s.Test)
	f := b.frame()
	pre := f.flow.clone()
	loop := &loopFrame{}
	f.loops = append(f.loops, loop)
	b.constrain(s.Test, true)
	b.visitBody(s.Body)
	for _, c := range loop.continues {
		f.flow.merge(c)
	}
	f.loops = f.loops[:len(f.loops)-1]

	f.flow.merge(pre)
	b.constrain(s.Test, false)
	b.visitBody(s.Orelse)
	for _, br := range loop.breaks {
		f.flow.merge(br)
	}
}

func (b *builder) visitFor(s *ast.For) {
	b.standalone(s.Iter)
	b.visitExpr(s.Iter)
	f := b.frame()
	pre := f.flow.clone()
	loop := &loopFrame{}
	f.loops = append(f.loops, loop)
	b.bindTarget(s.Target, func(n *ast.Name) *Definition {
		return &Definition{Kind: ForTargetDefinition, Name: n.Ident, Node: n, Stmt: s, Value: s.Iter, Target: s.Target, IsAsync: s.IsAsync}
	}, Binding)
	b.visitBody(s.Body)
	for _, c := range loop.continues {
		f.flow.merge(c)
	}
	f.loops = f.loops[:len(f.loops)-1]

	f.flow.merge(pre)
	b.visitBody(s.Orelse)
	for _, br := range loop.breaks {
		f.flow.merge(br)
	}
}

func (b *builder) visitTry(s *ast.Try) {
	f := b.frame()
	pre := f.flow.clone()
	try := &tryFrame{}
	f.tries = append(f.tries, try)
	b.visitBody(s.Body)
	f.tries = f.tries[:len(f.tries)-1]

	b.visitBody(s.Orelse)
	post := []flowState{f.flow}

	for _, h := range s.Handlers {
		f.flow = pre.clone()
		for _, snap := range try.snapshots {
			f.flow.merge(snap)
		}
		b.visitExpr(h.Type)
		if h.Name != nil {
			b.define(b.current(), &Definition{Kind: ExceptHandlerDefinition, Name: h.Name.Name, Node: h, Stmt: h, Value: h.Type}, Binding)
		}
		b.visitBody(h.Body)
		post = append(post, f.flow)
	}

	f.flow = post[0]
	for _, p := range post[1:] {
		f.flow.merge(p)
	}
	b.visitBody(s.Finalbody)
}

func (b *builder) visitMatch(s *ast.Match) {
	b.standalone(s.Subject)
	b.visitExpr(s.Subject)
	f := b.frame()
	pre := f.flow.clone()
	var post []flowState
	exhaustive := false
	for i, c := range s.Cases {
		f.flow = pre.clone()
		b.visitPattern(c.Pattern, c, s.Subject)
		b.visitExpr(c.Guard)
		b.visitBody(c.Body)
		post = append(post, f.flow)
		if i == len(s.Cases)-1 && c.Guard == nil && isIrrefutable(c.Pattern) {
			exhaustive = true
		}
	}
	if len(post) == 0 {
		f.flow = pre
		return
	}
	f.flow = post[0]
	for _, p := range post[1:] {
		f.flow.merge(p)
	}
	if !exhaustive {
		f.flow.merge(pre)
	}
}

func isIrrefutable(p ast.Pattern) bool {
	switch p := p.(type) {
	case *ast.MatchAs:
		return p.Pattern == nil || isIrrefutable(p.Pattern)
	case *ast.MatchOr:
		for _, alt := range p.Patterns {
			if isIrrefutable(alt) {
				return true
			}
		}
	}
	return false
}

func (b *builder) visitPattern(p ast.Pattern, c *ast.MatchCase, subject ast.Expr) {
	capture := func(node ast.Node, name string) {
		b.define(b.current(), &Definition{Kind: MatchPatternDefinition, Name: name, Node: node, Stmt: c, Value: subject}, Binding)
	}
	switch p := p.(type) {
	case *ast.MatchValue:
		b.visitExpr(p.Value)
	case *ast.MatchSingleton:
		b.visitExpr(p.Value)
	case *ast.MatchSequence:
		for _, sub := range p.Patterns {
			b.visitPattern(sub, c, subject)
		}
	case *ast.MatchMapping:
		for i, sub := range p.Patterns {
			b.visitExpr(p.Keys[i])
			b.visitPattern(sub, c, subject)
		}
		if p.Rest != nil {
			capture(p, p.Rest.Name)
		}
	case *ast.MatchClass:
		b.visitExpr(p.Cls)
		for _, sub := range p.Patterns {
			b.visitPattern(sub, c, subject)
		}
		for _, sub := range p.KwdPatterns {
			b.visitPattern(sub, c, subject)
		}
	case *ast.MatchStar:
		if p.Name != nil {
			capture(p, p.Name.Name)
		}
	case *ast.MatchAs:
		if p.Pattern != nil {
			b.visitPattern(p.Pattern, c, subject)
		}
		if p.Name != nil {
			capture(p, p.Name.Name)
		}
	case *ast.MatchOr:
		for _, alt := range p.Patterns {
			b.visitPattern(alt, c, subject)
		}
	}
}

// bindTarget defines every name in an assignment target. Attribute and
// subscript targets are walked as loads of their object and index.
func (b *builder) bindTarget(t ast.Expr, mk func(*ast.Name) *Definition, cat DefinitionCategory) {
	switch t := t.(type) {
	case *ast.Name:
		b.ix.exprScopes[t.ID()] = b.current()
		b.define(b.current(), mk(t), cat)
	case *ast.Tuple:
		b.ix.exprScopes[t.ID()] = b.current()
		for _, e := range t.Elts {
			b.bindTarget(e, mk, cat)
		}
	case *ast.List:
		b.ix.exprScopes[t.ID()] = b.current()
		for _, e := range t.Elts {
			b.bindTarget(e, mk, cat)
		}
	case *ast.Starred:
		b.ix.exprScopes[t.ID()] = b.current()
		b.bindTarget(t.Value, mk, cat)
	default:
		b.visitExpr(t)
	}
}

func (b *builder) visitDelete(t ast.Expr) {
	switch t := t.(type) {
	case *ast.Name:
		b.ix.exprScopes[t.ID()] = b.current()
		b.recordUse(t)
		f := b.frame()
		sym, _ := b.ix.tables[f.id].Lookup(t.Ident)
		f.flow.delete(sym)
	case *ast.Tuple:
		for _, e := range t.Elts {
			b.visitDelete(e)
		}
	case *ast.List:
		for _, e := range t.Elts {
			b.visitDelete(e)
		}
	default:
		b.visitExpr(t)
	}
}

// recordInstanceAttribute notes `self.x = ...` in a method body.
func (b *builder) recordInstanceAttribute(target ast.Expr, stmt ast.Stmt, value, annotation ast.Expr) {
	f := b.frame()
	if f.receiver == "" {
		return
	}
	var collect func(t ast.Expr, direct bool)
	collect = func(t ast.Expr, direct bool) {
		switch t := t.(type) {
		case *ast.Attribute:
			recv, ok := t.Value.(*ast.Name)
			if !ok || recv.Ident != f.receiver {
				return
			}
			attr := &InstanceAttribute{Name: t.Attr.Name, Method: f.id, Stmt: stmt, Annotation: annotation}
			if direct {
				attr.Value = value
			}
			byName := b.ix.instanceAttrs[f.classScope]
			if byName == nil {
				byName = make(map[string][]*InstanceAttribute)
				b.ix.instanceAttrs[f.classScope] = byName
			}
			byName[attr.Name] = append(byName[attr.Name], attr)
		case *ast.Tuple:
			for _, e := range t.Elts {
				collect(e, false)
			}
		case *ast.List:
			for _, e := range t.Elts {
				collect(e, false)
			}
		case *ast.Starred:
			collect(t.Value, false)
		}
	}
	collect(target, true)
}

func (b *builder) visitExpr(e ast.Expr) {
	if e == nil {
		return
	}
	b.ix.exprScopes[e.ID()] = b.current()
	switch e := e.(type) {
	case *ast.Name:
		if e.Ctx == ast.Load {
			b.recordUse(e)
		}
	case *ast.NamedExpr:
		b.visitExpr(e.Value)
		scope := b.current()
		for b.ix.scopes[scope].Kind == ComprehensionScope {
			scope = b.ix.scopes[scope].Parent
		}
		b.ix.exprScopes[e.Target.ID()] = scope
		b.define(scope, &Definition{Kind: NamedExprDefinition, Name: e.Target.Ident, Node: e, Stmt: e, Value: e.Value, Target: e.Target}, Binding)
	case *ast.Lambda:
		if e.Params != nil {
			for _, p := range e.Params.List {
				b.visitExpr(p.Default)
			}
		}
		b.pushScope(LambdaScope, e, "<lambda>")
		b.defineParameters(e, e.Params)
		b.visitExpr(e.Body)
		b.popScope()
	case *ast.ListComp:
		b.visitComprehension(e, e.Generators, e.Elt)
	case *ast.SetComp:
		b.visitComprehension(e, e.Generators, e.Elt)
	case *ast.GeneratorExp:
		b.visitComprehension(e, e.Generators, e.Elt)
	case *ast.DictComp:
		b.visitComprehension(e, e.Generators, e.Key, e.Value)
	case *ast.IfExp:
		b.standalone(e.Test)
		b.visitExpr(e.Test)
		f := b.frame()
		pre := f.flow.clone()
		b.constrain(e.Test, true)
		b.visitExpr(e.Body)
		post := f.flow
		f.flow = pre
		b.constrain(e.Test, false)
		b.visitExpr(e.Orelse)
		f.flow.merge(post)
	case *ast.BoolOp:
		f := b.frame()
		var shortCircuit []flowState
		for i, v := range e.Values {
			if i == len(e.Values)-1 {
				b.visitExpr(v)
				break
			}
			b.standalone(v)
			b.visitExpr(v)
			shortCircuit = append(shortCircuit, f.flow.clone())
			b.constrain(v, e.Op == ast.And)
		}
		for _, s := range shortCircuit {
			f.flow.merge(s)
		}
	default:
		for _, c := range ast.Children(e) {
			switch c := c.(type) {
			case ast.Expr:
				b.visitExpr(c)
			case *ast.Keyword:
				b.visitExpr(c.Value)
			}
		}
	}
}

// visitComprehension evaluates the first iterable in the enclosing scope and
// everything else inside the comprehension's own scope.
func (b *builder) visitComprehension(node ast.Expr, gens []*ast.Comprehension, elts ...ast.Expr) {
	if len(gens) == 0 {
		return
	}
	b.standalone(gens[0].Iter)
	b.visitExpr(gens[0].Iter)
	b.pushScope(ComprehensionScope, node, "")
	for i, gen := range gens {
		if i > 0 {
			b.standalone(gen.Iter)
			b.visitExpr(gen.Iter)
		}
		b.bindTarget(gen.Target, func(n *ast.Name) *Definition {
			return &Definition{Kind: ComprehensionDefinition, Name: n.Ident, Node: n, Stmt: gen, Value: gen.Iter, Target: gen.Target, IsAsync: gen.IsAsync}
		}, Binding)
		for _, cond := range gen.Ifs {
			b.visitExpr(cond)
		}
	}
	for _, elt := range elts {
		b.visitExpr(elt)
	}
	b.popScope()
}
