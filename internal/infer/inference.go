package infer

import (
	"cmp"
	"maps"
	"slices"

	"github.com/hashicorp/go-set/v3"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/semantic"
	"github.com/jward/knot/internal/types"
)

// TypeInference is the result of inferring one region: a scope, a
// definition, the deferred half of a definition, or a standalone
// expression. It is immutable once returned by a Session.
type TypeInference struct {
	scope        semantic.ScopeID
	expressions  map[ast.NodeID]types.Type
	bindings     map[*semantic.Definition]types.Type
	declarations map[*semantic.Definition]types.TypeAndQualifiers
	deferred     *set.Set[*semantic.Definition]
	diagnostics  diag.Collection

	// fallback answers every lookup while the region is the provisional
	// value of a cycle.
	fallback *types.Type
}

func newTypeInference(scope semantic.ScopeID) *TypeInference {
	return &TypeInference{
		scope:        scope,
		expressions:  make(map[ast.NodeID]types.Type),
		bindings:     make(map[*semantic.Definition]types.Type),
		declarations: make(map[*semantic.Definition]types.TypeAndQualifiers),
		deferred:     set.New[*semantic.Definition](0),
	}
}

// cycleInitial seeds a region query that is re-entered before it
// finishes: every lookup yields Never.
func cycleInitial(scope semantic.ScopeID) *TypeInference {
	ti := newTypeInference(scope)
	never := types.Never
	ti.fallback = &never
	return ti
}

func (ti *TypeInference) Scope() semantic.ScopeID { return ti.scope }

// ExpressionType returns the type of an expression inferred in this
// region, or Unknown.
func (ti *TypeInference) ExpressionType(e ast.Expr) types.Type {
	if t, ok := ti.expressions[e.ID()]; ok {
		return t
	}
	if ti.fallback != nil {
		return *ti.fallback
	}
	return types.Unknown
}

// TryExpressionType reports whether the region recorded a type for id.
func (ti *TypeInference) TryExpressionType(id ast.NodeID) (types.Type, bool) {
	t, ok := ti.expressions[id]
	return t, ok
}

// BindingType returns the type bound by def.
func (ti *TypeInference) BindingType(def *semantic.Definition) types.Type {
	if t, ok := ti.bindings[def]; ok {
		return t
	}
	if ti.fallback != nil {
		return *ti.fallback
	}
	return types.Unknown
}

// DeclarationType returns the type declared by def.
func (ti *TypeInference) DeclarationType(def *semantic.Definition) types.TypeAndQualifiers {
	if t, ok := ti.declarations[def]; ok {
		return t
	}
	if ti.fallback != nil {
		return types.TypeAndQualifiers{Type: *ti.fallback}
	}
	return types.TypeAndQualifiers{Type: types.Unknown}
}

func (ti *TypeInference) Diagnostics() []diag.Diagnostic { return ti.diagnostics.Items() }

// Deferred returns the definitions whose type expressions were postponed,
// in source order.
func (ti *TypeInference) Deferred() []*semantic.Definition {
	defs := ti.deferred.Slice()
	slices.SortFunc(defs, func(a, b *semantic.Definition) int { return cmp.Compare(a.Ordinal(), b.Ordinal()) })
	return defs
}

// NumExpressions is the number of expression types recorded.
func (ti *TypeInference) NumExpressions() int { return len(ti.expressions) }

// extend merges another region's result into ti.
func (ti *TypeInference) extend(other *TypeInference) {
	maps.Copy(ti.expressions, other.expressions)
	maps.Copy(ti.bindings, other.bindings)
	maps.Copy(ti.declarations, other.declarations)
	ti.deferred.InsertSet(other.deferred)
	ti.diagnostics.Extend(other.diagnostics.Items())
}

// equal is the convergence test for cycle iteration.
func (ti *TypeInference) equal(other *TypeInference) bool {
	if (ti.fallback == nil) != (other.fallback == nil) {
		return false
	}
	return maps.Equal(ti.expressions, other.expressions) &&
		maps.Equal(ti.bindings, other.bindings) &&
		maps.Equal(ti.declarations, other.declarations) &&
		ti.deferred.Equal(other.deferred) &&
		slices.Equal(ti.diagnostics.Items(), other.diagnostics.Items())
}
