package infer

import (
	"strings"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/semantic"
	"github.com/jward/knot/internal/types"
)

// nameScope is the scope a name load is evaluated in.
func (b *builder) nameScope(n *ast.Name) semantic.ScopeID {
	if b.parsed {
		return b.parsedScope
	}
	return b.ix.ExpressionScope(n.ID())
}

// lookupName resolves a name load, reporting unresolved and possibly
// unresolved references.
func (b *builder) lookupName(n *ast.Name) types.Type {
	sym := b.resolveName(n)
	if sym.IsUnbound() && n.Ident == "reveal_type" {
		if reveal := b.revealTypeFallback(); !reveal.IsUnbound() {
			b.report(n, diag.UndefinedReveal,
				"`reveal_type` used without importing it; this is allowed for debugging convenience but will fail at runtime")
			return reveal.Type()
		}
	}
	switch {
	case sym.IsUnbound():
		b.report(n, diag.UnresolvedReference, "Name `%s` used when not defined", n.Ident)
		return types.Unknown
	case sym.IsPossiblyUnbound():
		b.report(n, diag.PossiblyUnresolvedReference, "Name `%s` used when possibly not defined", n.Ident)
	}
	return sym.Type()
}

func (b *builder) resolveName(n *ast.Name) types.Symbol {
	name := n.Ident
	scope := b.nameScope(n)
	table := b.ix.Symbols(scope)

	local := types.Unbound
	id, found := table.Lookup(name)
	if found && table.Symbol(id).IsGlobal() {
		return b.resolveGlobal(name, scope)
	}
	if found {
		local = b.localSymbol(n, scope)
		if !local.IsUnbound() && !local.IsPossiblyUnbound() {
			return local
		}
		if b.ix.Scope(scope).IsFunctionLike() && table.Symbol(id).IsBound() {
			return local
		}
	}
	if scope == semantic.ModuleScopeID {
		return local.OrFallBackTo(b.db(), func() types.Symbol { return b.resolveImplicit(name) })
	}
	return local.OrFallBackTo(b.db(), func() types.Symbol { return b.resolveEnclosing(name, scope) })
}

// localSymbol reads the bindings of name that reach the load, or the
// end-of-scope symbol in deferred mode.
func (b *builder) localSymbol(n *ast.Name, scope semantic.ScopeID) types.Symbol {
	if b.deferred || b.parsed {
		return b.s.PublicSymbol(b.ix, scope, n.Ident)
	}
	bindings, ok := b.ix.UseDef(scope).BindingsAtUse(n.ID())
	if !ok {
		return b.s.PublicSymbol(b.ix, scope, n.Ident)
	}
	return b.s.bindingsSymbol(b.ix, scope, bindings, n.Ident)
}

// resolveEnclosing walks the enclosing scopes of scope, skipping classes.
func (b *builder) resolveEnclosing(name string, scope semantic.ScopeID) types.Symbol {
	for _, anc := range b.ix.Ancestors(scope)[1:] {
		if anc == semantic.ModuleScopeID {
			break
		}
		s := b.ix.Scope(anc)
		if s.Kind == semantic.ClassScope {
			continue
		}
		table := b.ix.Symbols(anc)
		id, ok := table.Lookup(name)
		if !ok || !table.Symbol(id).IsBoundOrDeclared() {
			continue
		}
		sym := b.enclosingSymbol(anc, name, scope)
		if s.IsFunctionLike() {
			return sym
		}
		if !sym.IsUnbound() && !sym.IsPossiblyUnbound() {
			return sym
		}
		if !sym.IsUnbound() {
			return sym.OrFallBackTo(b.db(), func() types.Symbol { return b.resolveGlobal(name, scope) })
		}
	}
	return b.resolveGlobal(name, scope)
}

// enclosingSymbol honours the eager snapshot taken when nested ran.
func (b *builder) enclosingSymbol(enclosing semantic.ScopeID, name string, nested semantic.ScopeID) types.Symbol {
	if b.deferred || b.parsed {
		return b.s.PublicSymbol(b.ix, enclosing, name)
	}
	bindings, lookup := b.ix.EagerBindings(enclosing, name, nested)
	switch lookup {
	case semantic.EagerFound:
		return b.s.bindingsSymbol(b.ix, enclosing, bindings, name)
	case semantic.EagerNotFound:
		return types.Unbound
	}
	return b.s.PublicSymbol(b.ix, enclosing, name)
}

// resolveGlobal looks name up at module level, then falls back to the
// implicit module attributes and builtins.
func (b *builder) resolveGlobal(name string, from semantic.ScopeID) types.Symbol {
	sym := types.Unbound
	table := b.ix.Symbols(semantic.ModuleScopeID)
	if id, ok := table.Lookup(name); ok && table.Symbol(id).IsBoundOrDeclared() {
		sym = b.enclosingSymbol(semantic.ModuleScopeID, name, from)
	}
	return sym.OrFallBackTo(b.db(), func() types.Symbol { return b.resolveImplicit(name) })
}

// resolveImplicit covers module metadata attributes and builtins.
func (b *builder) resolveImplicit(name string) types.Symbol {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		sym := types.Member(b.db(), types.KnownModuleType.Instance(b.db()), name)
		if !sym.IsUnbound() {
			return sym
		}
	}
	return b.resolveBuiltin(name)
}

func (b *builder) resolveBuiltin(name string) types.Symbol {
	if b.file.Module == "builtins" {
		return types.Unbound
	}
	builtins, ok := b.s.resolveModule("builtins")
	if !ok {
		return types.Unbound
	}
	return b.s.ModuleMember(builtins.Module(), name)
}

// revealTypeFallback is typing.reveal_type, available without an import
// for debugging.
func (b *builder) revealTypeFallback() types.Symbol {
	typing, ok := b.s.resolveModule("typing")
	if !ok {
		return types.Unbound
	}
	return b.s.ModuleMember(typing.Module(), "reveal_type")
}

// bindingsSymbol unions the types of the live bindings, each narrowed by
// the guards recorded since it was bound.
func (s *Session) bindingsSymbol(ix *semantic.Index, scope semantic.ScopeID, bindings semantic.Bindings, name string) types.Symbol {
	if bindings.IsUnreachable() {
		return types.BoundSymbol(types.Never)
	}
	if len(bindings.Live) == 0 {
		return types.Unbound
	}
	u := types.NewUnionBuilder(s)
	for _, live := range bindings.Live {
		t := s.BindingType(live.Def)
		for _, c := range live.Constraints {
			if narrowed, ok := s.narrowing(ix, c)[name]; ok {
				t = types.Intersection(s, []types.Type{t, narrowed}, nil)
			}
		}
		u.Add(t)
	}
	if bindings.MayBeUnbound {
		return types.PossiblyUnboundSymbol(u.Build())
	}
	return types.BoundSymbol(u.Build())
}

// publicSymbol is the end-of-scope symbol: the declared type when the
// name has declarations, widened by the inferred bindings where it may be
// undeclared.
func (s *Session) publicSymbol(k symbolKey) types.Symbol {
	table := k.ix.Symbols(k.scope)
	id, ok := table.Lookup(k.name)
	if !ok {
		return types.Unbound
	}
	useDef := k.ix.UseDef(k.scope)
	bindings := useDef.PublicBindings(id)
	decls := useDef.PublicDeclarations(id)
	if len(decls.Live) == 0 {
		return s.bindingsSymbol(k.ix, k.scope, bindings, k.name)
	}
	u := types.NewUnionBuilder(s)
	for _, def := range decls.Live {
		u.Add(s.DeclarationType(def).Type)
	}
	if decls.MayBeUndeclared {
		inferred := s.bindingsSymbol(k.ix, k.scope, bindings, k.name)
		if !inferred.IsUnbound() {
			u.Add(inferred.Type())
		}
	}
	return types.BoundSymbol(u.Build())
}

// PublicTypes lists the end-of-scope symbol of every name bound or
// declared at module level, in first-seen order.
func (s *Session) PublicTypes(ix *semantic.Index) []NamedType {
	var out []NamedType
	for _, sym := range ix.Symbols(semantic.ModuleScopeID).Symbols() {
		if !sym.IsBoundOrDeclared() {
			continue
		}
		pub := s.PublicSymbol(ix, semantic.ModuleScopeID, sym.Name)
		if pub.IsUnbound() {
			continue
		}
		out = append(out, NamedType{Name: sym.Name, Type: pub.Type(), PossiblyUnbound: pub.IsPossiblyUnbound()})
	}
	return out
}

// NamedType is a public module symbol and its type.
type NamedType struct {
	Name            string
	Type            types.Type
	PossiblyUnbound bool
}
