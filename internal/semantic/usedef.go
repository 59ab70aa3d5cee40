package semantic

import "github.com/jward/knot/internal/ast"

// LiveBinding is a definition that may be the current value of a name,
// together with the narrowing guards recorded since it was bound.
type LiveBinding struct {
	Def         *Definition
	Constraints []*Constraint
}

// Bindings is the set of definitions that may reach a point. With no live
// bindings and MayBeUnbound false the point is unreachable.
type Bindings struct {
	Live         []LiveBinding
	MayBeUnbound bool
}

// IsUnreachable reports the empty state produced by dead code.
func (b Bindings) IsUnreachable() bool {
	return len(b.Live) == 0 && !b.MayBeUnbound
}

// Declarations is the set of declarations that may reach a point.
type Declarations struct {
	Live            []*Definition
	MayBeUndeclared bool
}

// SymbolState is the flow state of one symbol.
type SymbolState struct {
	Bindings     Bindings
	Declarations Declarations
}

var unboundState = SymbolState{
	Bindings:     Bindings{MayBeUnbound: true},
	Declarations: Declarations{MayBeUndeclared: true},
}

// UseDefMap answers which definitions reach each use, declaration and
// binding in one scope, and which reach the end of the scope.
type UseDefMap struct {
	bindingsAtUse         map[ast.NodeID]Bindings
	bindingsAtDeclaration map[*Definition]Bindings
	declarationsAtBinding map[*Definition]Declarations
	public                []SymbolState
}

func newUseDefMap() *UseDefMap {
	return &UseDefMap{
		bindingsAtUse:         make(map[ast.NodeID]Bindings),
		bindingsAtDeclaration: make(map[*Definition]Bindings),
		declarationsAtBinding: make(map[*Definition]Declarations),
	}
}

// BindingsAtUse returns the bindings reaching a name load.
func (m *UseDefMap) BindingsAtUse(use ast.NodeID) (Bindings, bool) {
	b, ok := m.bindingsAtUse[use]
	return b, ok
}

// BindingsAtDeclaration returns the bindings reaching a declaration that
// has no binding of its own.
func (m *UseDefMap) BindingsAtDeclaration(def *Definition) Bindings {
	return m.bindingsAtDeclaration[def]
}

// DeclarationsAtBinding returns the declarations visible at a binding.
func (m *UseDefMap) DeclarationsAtBinding(def *Definition) Declarations {
	d, ok := m.declarationsAtBinding[def]
	if !ok {
		return Declarations{MayBeUndeclared: true}
	}
	return d
}

// PublicBindings returns the bindings reaching the end of the scope.
func (m *UseDefMap) PublicBindings(sym SymbolID) Bindings {
	if int(sym) >= len(m.public) {
		return Bindings{MayBeUnbound: true}
	}
	return m.public[sym].Bindings
}

// PublicDeclarations returns the declarations reaching the end of the scope.
func (m *UseDefMap) PublicDeclarations(sym SymbolID) Declarations {
	if int(sym) >= len(m.public) {
		return Declarations{MayBeUndeclared: true}
	}
	return m.public[sym].Declarations
}

// flowState is the state of every symbol of one scope at one point.
// Slices inside a state are never mutated in place, so snapshots share them.
type flowState struct {
	reachable bool
	symbols   []SymbolState
}

func newFlowState() flowState {
	return flowState{reachable: true}
}

func (f flowState) clone() flowState {
	out := flowState{reachable: f.reachable, symbols: make([]SymbolState, len(f.symbols))}
	copy(out.symbols, f.symbols)
	return out
}

func (f *flowState) get(sym SymbolID) SymbolState {
	if int(sym) < len(f.symbols) {
		return f.symbols[sym]
	}
	if f.reachable {
		return unboundState
	}
	return SymbolState{}
}

func (f *flowState) set(sym SymbolID, st SymbolState) {
	for int(sym) >= len(f.symbols) {
		if f.reachable {
			f.symbols = append(f.symbols, unboundState)
		} else {
			f.symbols = append(f.symbols, SymbolState{})
		}
	}
	f.symbols[sym] = st
}

func (f *flowState) markUnreachable() {
	f.reachable = false
	f.symbols = nil
}

func (f *flowState) bind(sym SymbolID, def *Definition) {
	st := f.get(sym)
	st.Bindings = Bindings{Live: []LiveBinding{{Def: def}}}
	f.set(sym, st)
}

func (f *flowState) declare(sym SymbolID, def *Definition) {
	st := f.get(sym)
	st.Declarations = Declarations{Live: []*Definition{def}}
	f.set(sym, st)
}

func (f *flowState) delete(sym SymbolID) {
	st := f.get(sym)
	st.Bindings = Bindings{MayBeUnbound: true}
	f.set(sym, st)
}

// constrain attaches c to every live binding of every symbol.
func (f *flowState) constrain(c *Constraint) {
	for i, st := range f.symbols {
		if len(st.Bindings.Live) == 0 {
			continue
		}
		live := make([]LiveBinding, len(st.Bindings.Live))
		for j, lb := range st.Bindings.Live {
			cs := make([]*Constraint, len(lb.Constraints), len(lb.Constraints)+1)
			copy(cs, lb.Constraints)
			live[j] = LiveBinding{Def: lb.Def, Constraints: append(cs, c)}
		}
		f.symbols[i].Bindings.Live = live
	}
}

// merge joins another path into f.
func (f *flowState) merge(other flowState) {
	if !other.reachable {
		return
	}
	if !f.reachable {
		*f = other.clone()
		return
	}
	n := len(f.symbols)
	if len(other.symbols) > n {
		n = len(other.symbols)
	}
	merged := make([]SymbolState, n)
	for i := 0; i < n; i++ {
		a, b := f.get(SymbolID(i)), other.get(SymbolID(i))
		merged[i] = SymbolState{
			Bindings:     mergeBindings(a.Bindings, b.Bindings),
			Declarations: mergeDeclarations(a.Declarations, b.Declarations),
		}
	}
	f.symbols = merged
}

func mergeBindings(a, b Bindings) Bindings {
	out := Bindings{MayBeUnbound: a.MayBeUnbound || b.MayBeUnbound}
	out.Live = make([]LiveBinding, 0, len(a.Live)+len(b.Live))
	for _, lb := range a.Live {
		if other, ok := findLive(b.Live, lb.Def); ok {
			out.Live = append(out.Live, LiveBinding{Def: lb.Def, Constraints: commonConstraints(lb.Constraints, other.Constraints)})
			continue
		}
		out.Live = append(out.Live, lb)
	}
	for _, lb := range b.Live {
		if _, ok := findLive(a.Live, lb.Def); !ok {
			out.Live = append(out.Live, lb)
		}
	}
	return out
}

func findLive(live []LiveBinding, def *Definition) (LiveBinding, bool) {
	for _, lb := range live {
		if lb.Def == def {
			return lb, true
		}
	}
	return LiveBinding{}, false
}

// commonConstraints keeps the guards that hold on both paths.
func commonConstraints(a, b []*Constraint) []*Constraint {
	var out []*Constraint
	for _, c := range a {
		for _, d := range b {
			if c == d {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func mergeDeclarations(a, b Declarations) Declarations {
	out := Declarations{MayBeUndeclared: a.MayBeUndeclared || b.MayBeUndeclared}
	out.Live = make([]*Definition, 0, len(a.Live)+len(b.Live))
	out.Live = append(out.Live, a.Live...)
	for _, d := range b.Live {
		found := false
		for _, e := range a.Live {
			if d == e {
				found = true
				break
			}
		}
		if !found {
			out.Live = append(out.Live, d)
		}
	}
	return out
}
