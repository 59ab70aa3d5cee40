// Package semantic builds the per-file semantic index: the scope tree, the
// symbol tables, every Definition, and the flow-sensitive use-def maps that
// tell inference which definitions can reach each name.
package semantic

import (
	"sort"

	"github.com/jward/knot/internal/ast"
)

// Index is the immutable semantic model of one file. It is safe for
// concurrent readers once Build returns.
type Index struct {
	module            *ast.Module
	isStub            bool
	futureAnnotations bool

	scopes           []*Scope
	tables           []*SymbolTable
	useDefs          []*UseDefMap
	scopeByNode      map[ast.NodeID]ScopeID
	annotationScopes map[ast.NodeID]ScopeID
	exprScopes       map[ast.NodeID]ScopeID

	definitions      map[ast.NodeID][]*Definition
	scopeDefinitions [][]*Definition
	all              []*Definition
	expressions      map[ast.NodeID]*Expression

	eager         map[eagerKey]Bindings
	instanceAttrs map[ScopeID]map[string][]*InstanceAttribute
}

type eagerKey struct {
	enclosing ScopeID
	name      string
	nested    ScopeID
}

// EagerLookup is the outcome of an eager snapshot lookup.
type EagerLookup uint8

const (
	// EagerFound means a snapshot was recorded and must be used.
	EagerFound EagerLookup = iota
	// EagerNotFound means every scope between nested and enclosing runs
	// eagerly, but the enclosing scope had no binding at that point.
	EagerNotFound
	// EagerLazy means a lazy scope intervenes and end-of-scope state
	// applies.
	EagerLazy
)

func (ix *Index) Module() *ast.Module { return ix.module }

func (ix *Index) IsStub() bool { return ix.isStub }

// HasFutureAnnotations reports `from __future__ import annotations`.
func (ix *Index) HasFutureAnnotations() bool { return ix.futureAnnotations }

func (ix *Index) Scope(id ScopeID) *Scope { return ix.scopes[id] }

func (ix *Index) Scopes() []*Scope { return ix.scopes }

// Ancestors returns id followed by its enclosing scopes up to the module.
func (ix *Index) Ancestors(id ScopeID) []ScopeID {
	var out []ScopeID
	for id != NoScope {
		out = append(out, id)
		id = ix.scopes[id].Parent
	}
	return out
}

// ScopeFor returns the scope opened by a class, function, lambda or
// comprehension node.
func (ix *Index) ScopeFor(node ast.Node) (ScopeID, bool) {
	id, ok := ix.scopeByNode[node.ID()]
	return id, ok
}

// AnnotationScopeFor returns the type-parameter scope of a generic class,
// function or type alias.
func (ix *Index) AnnotationScopeFor(node ast.Node) (ScopeID, bool) {
	id, ok := ix.annotationScopes[node.ID()]
	return id, ok
}

// ExpressionScope returns the scope an expression is evaluated in.
func (ix *Index) ExpressionScope(id ast.NodeID) ScopeID {
	if s, ok := ix.exprScopes[id]; ok {
		return s
	}
	return ModuleScopeID
}

func (ix *Index) Symbols(scope ScopeID) *SymbolTable { return ix.tables[scope] }

func (ix *Index) UseDef(scope ScopeID) *UseDefMap { return ix.useDefs[scope] }

// Definitions returns the definitions introduced by node. A star import
// yields one definition per imported name.
func (ix *Index) Definitions(node ast.Node) []*Definition {
	return ix.definitions[node.ID()]
}

// Definition returns the single definition of node, or nil.
func (ix *Index) Definition(node ast.Node) *Definition {
	defs := ix.definitions[node.ID()]
	if len(defs) == 0 {
		return nil
	}
	return defs[0]
}

// ScopeDefinitions returns the definitions of one scope in source order.
func (ix *Index) ScopeDefinitions(scope ScopeID) []*Definition {
	return ix.scopeDefinitions[scope]
}

// AllDefinitions returns every definition in creation order.
func (ix *Index) AllDefinitions() []*Definition { return ix.all }

// Expression returns the standalone expression rooted at node, if any.
func (ix *Index) Expression(node ast.Node) *Expression {
	if node == nil {
		return nil
	}
	return ix.expressions[node.ID()]
}

// EagerBindings returns the bindings of name in enclosing that were visible
// when the eager scope nested was executed.
func (ix *Index) EagerBindings(enclosing ScopeID, name string, nested ScopeID) (Bindings, EagerLookup) {
	if b, ok := ix.eager[eagerKey{enclosing, name, nested}]; ok {
		return b, EagerFound
	}
	for id := nested; id != enclosing && id != NoScope; id = ix.scopes[id].Parent {
		if !ix.scopes[id].IsEager() {
			return Bindings{}, EagerLazy
		}
	}
	return Bindings{}, EagerNotFound
}

// InstanceAttributes returns the `self.<name>` assignments recorded in the
// methods of a class scope.
func (ix *Index) InstanceAttributes(classScope ScopeID, name string) []*InstanceAttribute {
	return ix.instanceAttrs[classScope][name]
}

// InstanceAttributeNames lists the implicit attribute names of a class.
func (ix *Index) InstanceAttributeNames(classScope ScopeID) []string {
	attrs := ix.instanceAttrs[classScope]
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
