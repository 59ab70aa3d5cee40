// Package infer is the region inference driver. A Session infers types at
// four granularities (whole scopes, single definitions, the deferred type
// expressions of a definition, and standalone expressions), memoizing each
// region in its own query so that recomputation stays local. It resolves
// names through the semantic index, reconciles declarations with bindings,
// applies the type algebra of internal/types, and validates class
// hierarchies once a scope is fully inferred.
package infer

import (
	"log/slog"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/memo"
	"github.com/jward/knot/internal/program"
	"github.com/jward/knot/internal/semantic"
	"github.com/jward/knot/internal/types"
)

// Option configures a Session.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	maxIterations int
}

// WithLogger sets the logger for debug output. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxIterations overrides the fixed-point iteration ceiling.
func WithMaxIterations(n int) Option {
	return func(c *config) { c.maxIterations = n }
}

type scopeKey struct {
	ix    *semantic.Index
	scope semantic.ScopeID
}

type symbolKey struct {
	ix    *semantic.Index
	scope semantic.ScopeID
	name  string
}

type constraintKey struct {
	ix         *semantic.Index
	constraint *semantic.Constraint
}

type mroResult struct {
	mro types.MRO
	err *types.MROError
}

type metaclassResult struct {
	meta types.Type
	err  *types.MetaclassError
}

// narrowing maps symbol names to the type a guard constrains them to.
type narrowing map[string]types.Type

// Session is one analysis session over a Program. It owns the type
// interner, the well-known class registry and every memoized query.
// A Session is not safe for concurrent use; parallel checkers each use
// their own Session over a shared Program.
type Session struct {
	program *program.Program
	logger  *slog.Logger
	in      *types.Interner
	rt      *memo.Runtime

	scopes      *memo.Query[scopeKey, *TypeInference]
	definitions *memo.Query[*semantic.Definition, *TypeInference]
	deferred    *memo.Query[*semantic.Definition, *TypeInference]
	expressions *memo.Query[*semantic.Expression, *TypeInference]
	exprTypes   *memo.Query[*semantic.Expression, types.Type]
	symbols     *memo.Query[symbolKey, types.Symbol]
	narrowings  *memo.Query[constraintKey, narrowing]
	mros        *memo.Query[*types.Class, mroResult]
	metaclasses *memo.Query[*types.Class, metaclassResult]
	signatures  *memo.Query[*types.Function, *types.Signature]

	classes      map[*semantic.Definition]*types.Class
	functions    map[*semantic.Definition]*types.Function
	modules      map[*program.File]*types.Module
	specialForms map[types.KnownInstanceKind]*types.KnownInstance
	known        map[types.KnownClass]*types.Class
	starHandlers map[*semantic.Index]map[*ast.ExceptHandler]bool
}

// NewSession creates a session over prog.
func NewSession(prog *program.Program, opts ...Option) *Session {
	cfg := config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Session{
		program:      prog,
		logger:       cfg.logger,
		in:           types.NewInterner(),
		rt:           memo.NewRuntime(memo.WithMaxIterations(cfg.maxIterations)),
		classes:      make(map[*semantic.Definition]*types.Class),
		functions:    make(map[*semantic.Definition]*types.Function),
		modules:      make(map[*program.File]*types.Module),
		specialForms: make(map[types.KnownInstanceKind]*types.KnownInstance),
		known:        make(map[types.KnownClass]*types.Class),
		starHandlers: make(map[*semantic.Index]map[*ast.ExceptHandler]bool),
	}

	s.scopes = memo.NewQuery(s.rt, "infer_scope", s.inferScope,
		func(k scopeKey) *TypeInference { return cycleInitial(k.scope) }, (*TypeInference).equal)
	s.definitions = memo.NewQuery(s.rt, "infer_definition", s.inferDefinition,
		func(d *semantic.Definition) *TypeInference { return cycleInitial(d.Scope) }, (*TypeInference).equal)
	s.deferred = memo.NewQuery(s.rt, "infer_deferred", s.inferDeferred,
		func(d *semantic.Definition) *TypeInference { return cycleInitial(d.Scope) }, (*TypeInference).equal)
	s.expressions = memo.NewQuery(s.rt, "infer_expression", s.inferExpression,
		func(e *semantic.Expression) *TypeInference { return cycleInitial(e.Scope) }, (*TypeInference).equal)
	s.exprTypes = memo.NewQuery(s.rt, "expression_type",
		func(e *semantic.Expression) types.Type { return s.InferExpression(e).ExpressionType(e.Node) },
		func(*semantic.Expression) types.Type { return types.Never },
		func(a, b types.Type) bool { return a == b })
	s.symbols = memo.NewQuery(s.rt, "public_symbol", s.publicSymbol,
		func(symbolKey) types.Symbol { return types.BoundSymbol(types.Never) },
		func(a, b types.Symbol) bool { return a == b })
	s.narrowings = memo.NewQuery(s.rt, "narrowing", s.computeNarrowing,
		func(constraintKey) narrowing { return nil },
		func(a, b narrowing) bool { return mapsEqual(a, b) })
	s.mros = memo.NewQuery(s.rt, "class_mro",
		func(c *types.Class) mroResult {
			mro, err := types.ComputeMRO(s, c)
			return mroResult{mro, err}
		},
		func(c *types.Class) mroResult {
			return mroResult{mro: types.MRO{types.ClassLiteral(c), types.Unknown, types.KnownObject.ClassLiteral(s)}}
		},
		mroEqual)
	s.metaclasses = memo.NewQuery(s.rt, "class_metaclass",
		func(c *types.Class) metaclassResult {
			meta, err := types.ComputeMetaclass(s, c)
			return metaclassResult{meta, err}
		},
		func(*types.Class) metaclassResult { return metaclassResult{meta: types.SubclassOfDynamic(types.Unknown)} },
		metaclassEqual)
	s.signatures = memo.NewQuery(s.rt, "function_signature", s.computeSignature,
		func(*types.Function) *types.Signature { return &types.Signature{Return: types.Never} },
		signatureEqual)
	return s
}

func mapsEqual(a, b narrowing) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func mroEqual(a, b mroResult) bool {
	if (a.err == nil) != (b.err == nil) {
		return false
	}
	if a.err != nil {
		return a.err.Kind == b.err.Kind && typesEqual(a.err.Fallback, b.err.Fallback)
	}
	return typesEqual(a.mro, b.mro)
}

func metaclassEqual(a, b metaclassResult) bool {
	if (a.err == nil) != (b.err == nil) {
		return false
	}
	if a.err != nil && a.err.Kind != b.err.Kind {
		return false
	}
	return a.meta == b.meta
}

func signatureEqual(a, b *types.Signature) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Return != b.Return || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}

func typesEqual[S ~[]types.Type](a, b S) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Program returns the program the session reads files from.
func (s *Session) Program() *program.Program { return s.program }

// Stats reports memoization counters.
func (s *Session) Stats() memo.Stats { return s.rt.Stats() }

// Index returns the semantic index of f.
func (s *Session) Index(f *program.File) *semantic.Index {
	return s.program.Index(f)
}

func (s *Session) fileOf(ix *semantic.Index) *program.File {
	f := s.program.FileOf(ix)
	if f == nil {
		panic("infer: semantic index was not built by this session's program")
	}
	return f
}

// InferScope infers every expression, binding and declaration of one
// scope, including nested definitions, then validates its classes.
func (s *Session) InferScope(ix *semantic.Index, scope semantic.ScopeID) *TypeInference {
	return s.scopes.Get(scopeKey{ix, scope})
}

// InferDefinition infers the binding and declaration of one definition.
func (s *Session) InferDefinition(def *semantic.Definition) *TypeInference {
	return s.definitions.Get(def)
}

// InferDeferred infers the postponed type expressions of a definition.
func (s *Session) InferDeferred(def *semantic.Definition) *TypeInference {
	return s.deferred.Get(def)
}

// InferExpression infers a standalone expression exactly once.
func (s *Session) InferExpression(e *semantic.Expression) *TypeInference {
	return s.expressions.Get(e)
}

// ExpressionType is the type of a standalone expression, memoized apart
// from the rest of its region so that consumers needing only the type do
// not depend on the region's diagnostics.
func (s *Session) ExpressionType(e *semantic.Expression) types.Type {
	return s.exprTypes.Get(e)
}

// BindingType is the type def binds.
func (s *Session) BindingType(def *semantic.Definition) types.Type {
	return s.InferDefinition(def).BindingType(def)
}

// DeclarationType is the type def declares.
func (s *Session) DeclarationType(def *semantic.Definition) types.TypeAndQualifiers {
	return s.InferDefinition(def).DeclarationType(def)
}

// PublicSymbol returns the end-of-scope symbol name in scope.
func (s *Session) PublicSymbol(ix *semantic.Index, scope semantic.ScopeID, name string) types.Symbol {
	return s.symbols.Get(symbolKey{ix, scope, name})
}

// ModuleType returns the module literal of f.
func (s *Session) ModuleType(f *program.File) types.Type {
	return types.ModuleLiteral(s.moduleFor(f))
}

func (s *Session) moduleFor(f *program.File) *types.Module {
	m, ok := s.modules[f]
	if !ok {
		m = s.in.NewModule(f.Module, f.IsPackage, f)
		s.modules[f] = m
	}
	return m
}

func (s *Session) classFor(def *semantic.Definition) *types.Class {
	c, ok := s.classes[def]
	if !ok {
		f := s.fileOf(def.Index())
		known := types.NotKnown
		if def.Scope == semantic.ModuleScopeID {
			known = types.LookupKnownClass(f.Module, def.Name)
		}
		c = s.in.NewClass(def.Name, f.Module, known, def)
		s.classes[def] = c
	}
	return c
}

func (s *Session) functionFor(def *semantic.Definition, flags types.FunctionFlags) *types.Function {
	fn, ok := s.functions[def]
	if !ok {
		f := s.fileOf(def.Index())
		known := types.NotKnownFunction
		if def.Scope == semantic.ModuleScopeID {
			known = types.LookupKnownFunction(f.Module, def.Name)
		}
		fn = s.in.NewFunction(def.Name, f.Module, known, flags, def)
		fn.IsAsync = def.IsAsync
		s.functions[def] = fn
	}
	return fn
}

func (s *Session) specialForm(kind types.KnownInstanceKind) types.Type {
	k, ok := s.specialForms[kind]
	if !ok {
		k = s.in.NewKnownInstance(kind, kind.SpecialFormName(), nil)
		s.specialForms[kind] = k
	}
	return types.KnownInstanceOf(k)
}

// isStarHandler reports whether h belongs to a `try ... except*` block.
func (s *Session) isStarHandler(ix *semantic.Index, h *ast.ExceptHandler) bool {
	handlers, ok := s.starHandlers[ix]
	if !ok {
		handlers = make(map[*ast.ExceptHandler]bool)
		ast.Inspect(ix.Module(), func(n ast.Node) bool {
			if t, ok := n.(*ast.Try); ok && t.IsStar {
				for _, h := range t.Handlers {
					handlers[h] = true
				}
			}
			return true
		})
		s.starHandlers[ix] = handlers
	}
	return handlers[h]
}

// resolveModule maps a dotted name to its module literal.
func (s *Session) resolveModule(name string) (types.Type, bool) {
	f, err := s.program.Resolve(name)
	if err != nil {
		return types.Unknown, false
	}
	return s.ModuleType(f), true
}

// Interner implements types.Db.
func (s *Session) Interner() *types.Interner { return s.in }

// KnownClass implements types.Db by finding the class statement in the
// defining stub without inferring anything.
func (s *Session) KnownClass(k types.KnownClass) *types.Class {
	if c, ok := s.known[k]; ok {
		return c
	}
	c := s.lookupKnownClass(k)
	if c == nil {
		s.logger.Debug("known class unavailable", "module", k.Module(), "class", k.Name())
	}
	s.known[k] = c
	return c
}

func (s *Session) lookupKnownClass(k types.KnownClass) *types.Class {
	f, err := s.program.Resolve(k.Module())
	if err != nil {
		return nil
	}
	ix := s.Index(f)
	sym, ok := ix.Symbols(semantic.ModuleScopeID).Lookup(k.Name())
	if !ok {
		return nil
	}
	for _, live := range ix.UseDef(semantic.ModuleScopeID).PublicBindings(sym).Live {
		if live.Def.Kind == semantic.ClassDefinition {
			return s.classFor(live.Def)
		}
	}
	return nil
}

func classDefinition(c *types.Class) (*semantic.Definition, *ast.ClassDef, bool) {
	def, ok := c.Origin.(*semantic.Definition)
	if !ok {
		return nil, nil, false
	}
	node, ok := def.Node.(*ast.ClassDef)
	return def, node, ok
}

// classBaseRegion is the region holding the inferred base list of a class:
// its deferred region in stubs, its definition region elsewhere.
func (s *Session) classBaseRegion(def *semantic.Definition) *TypeInference {
	if def.Index().IsStub() {
		return s.InferDeferred(def)
	}
	return s.InferDefinition(def)
}

// ClassBases implements types.Db.
func (s *Session) ClassBases(c *types.Class) []types.Type {
	def, node, ok := classDefinition(c)
	if !ok {
		return nil
	}
	region := s.classBaseRegion(def)
	out := make([]types.Type, len(node.Bases))
	for i, base := range node.Bases {
		out[i] = region.ExpressionType(base)
	}
	return out
}

// ClassExplicitMetaclass implements types.Db.
func (s *Session) ClassExplicitMetaclass(c *types.Class) (types.Type, bool) {
	def, node, ok := classDefinition(c)
	if !ok {
		return types.Type{}, false
	}
	for _, kw := range node.Keywords {
		if kw.Arg != nil && kw.Arg.Name == "metaclass" {
			return s.InferDefinition(def).ExpressionType(kw.Value), true
		}
	}
	return types.Type{}, false
}

// ClassIsFinal implements types.Db: the class is decorated with
// typing.final.
func (s *Session) ClassIsFinal(c *types.Class) bool {
	def, node, ok := classDefinition(c)
	if !ok {
		return false
	}
	region := s.InferDefinition(def)
	for _, d := range node.Decorators {
		if isFinalDecorator(region.ExpressionType(d)) {
			return true
		}
	}
	return false
}

func isFinalDecorator(t types.Type) bool {
	fn := t.Function()
	return t.Kind() == types.KindFunction && fn != nil && fn.Known == types.KnownFinal
}

// ClassOwnMember implements types.Db.
func (s *Session) ClassOwnMember(c *types.Class, name string) types.Symbol {
	def, node, ok := classDefinition(c)
	if !ok {
		return types.Unbound
	}
	scope, ok := def.Index().ScopeFor(node)
	if !ok {
		return types.Unbound
	}
	return s.PublicSymbol(def.Index(), scope, name)
}

// ClassMRO implements types.Db.
func (s *Session) ClassMRO(c *types.Class) (types.MRO, *types.MROError) {
	r := s.mros.Get(c)
	return r.mro, r.err
}

// ClassMetaclass implements types.Db.
func (s *Session) ClassMetaclass(c *types.Class) (types.Type, *types.MetaclassError) {
	r := s.metaclasses.Get(c)
	return r.meta, r.err
}

// InstanceAttribute implements types.Db: the union of everything assigned
// to self.name in the methods of c, or the declared type when annotated.
func (s *Session) InstanceAttribute(c *types.Class, name string) types.Symbol {
	def, node, ok := classDefinition(c)
	if !ok {
		return types.Unbound
	}
	ix := def.Index()
	scope, ok := ix.ScopeFor(node)
	if !ok {
		return types.Unbound
	}
	attrs := ix.InstanceAttributes(scope, name)
	if len(attrs) == 0 {
		return types.Unbound
	}
	u := types.NewUnionBuilder(s)
	for _, attr := range attrs {
		region := s.InferScope(ix, attr.Method)
		switch {
		case attr.Annotation != nil:
			u.Add(region.ExpressionType(attr.Annotation))
		case attr.Value != nil:
			u.Add(region.ExpressionType(attr.Value))
		default:
			u.Add(types.Unknown)
		}
	}
	return types.BoundSymbol(u.Build())
}

// ModuleMember implements types.Db: a public symbol of the module, else a
// submodule of a package.
func (s *Session) ModuleMember(m *types.Module, name string) types.Symbol {
	f, ok := m.Origin.(*program.File)
	if !ok {
		return types.Unbound
	}
	ix := s.Index(f)
	sym := types.Unbound
	if _, ok := ix.Symbols(semantic.ModuleScopeID).Lookup(name); ok {
		sym = s.PublicSymbol(ix, semantic.ModuleScopeID, name)
	}
	if !sym.IsUnbound() && !sym.IsPossiblyUnbound() {
		return sym
	}
	if m.IsPackage {
		return sym.OrFallBackTo(s, func() types.Symbol {
			if sub, ok := s.resolveModule(m.Name + "." + name); ok {
				return types.BoundSymbol(sub)
			}
			return types.Unbound
		})
	}
	return sym
}

// FunctionSignature implements types.Db.
func (s *Session) FunctionSignature(f *types.Function) *types.Signature {
	return s.signatures.Get(f)
}

// annotationRegion is the region holding a function's parameter and
// return annotations.
func (s *Session) annotationRegion(def *semantic.Definition) *TypeInference {
	if deferAnnotations(def.Index()) {
		return s.InferDeferred(def)
	}
	return s.InferDefinition(def)
}

// deferAnnotations reports files whose annotations are evaluated lazily.
func deferAnnotations(ix *semantic.Index) bool {
	return ix.IsStub() || ix.HasFutureAnnotations()
}

func (s *Session) computeSignature(f *types.Function) *types.Signature {
	def, ok := f.Origin.(*semantic.Definition)
	if !ok {
		return nil
	}
	node, ok := def.Node.(*ast.FunctionDef)
	if !ok {
		return nil
	}
	annotations := s.annotationRegion(def)
	defaults := s.InferDefinition(def)

	sig := &types.Signature{Return: types.Unknown}
	for _, p := range node.Params.List {
		param := types.Parameter{Name: p.Name.Name, Kind: p.Kind, Type: types.Unknown}
		if p.Annotation != nil {
			param.Annotated = true
			param.Type = annotations.ExpressionType(p.Annotation)
		}
		if p.Default != nil {
			param.HasDefault = true
			param.Default = defaults.ExpressionType(p.Default)
		}
		sig.Params = append(sig.Params, param)
	}
	if node.Returns != nil {
		sig.Return = annotations.ExpressionType(node.Returns)
	}
	if node.IsAsync {
		sig.Return = types.Todo
	}
	return sig
}
