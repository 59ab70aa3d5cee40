package infer

import (
	"strings"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/semantic"
	"github.com/jward/knot/internal/types"
)

// declaredAt is the declared type visible at a binding. ok is false when
// no declaration reaches it.
func (b *builder) declaredAt(node ast.Node, def *semantic.Definition) (types.Type, bool) {
	decls := b.ix.UseDef(def.Scope).DeclarationsAtBinding(def)
	if len(decls.Live) == 0 {
		return types.Type{}, false
	}
	var distinct []types.Type
	for _, d := range decls.Live {
		t := b.s.DeclarationType(d).Type
		seen := false
		for _, prev := range distinct {
			if types.IsEquivalentTo(b.db(), prev, t) {
				seen = true
				break
			}
		}
		if !seen {
			distinct = append(distinct, t)
		}
	}
	if len(distinct) > 1 {
		names := make([]string, len(distinct))
		for i, t := range distinct {
			names[i] = t.String()
		}
		b.report(node, diag.ConflictingDeclarations, "Conflicting declared types for `%s`: %s", def.Name, strings.Join(names, ", "))
		return types.Type{}, false
	}
	declared := distinct[0]
	if decls.MayBeUndeclared {
		declared = types.Union(b.db(), declared, types.Unknown)
	}
	return declared, true
}

// addBinding stores the binding of a definition that declares nothing.
// An inferred type that is not assignable to the declared type is
// reported and replaced by the declared type.
func (b *builder) addBinding(node ast.Node, def *semantic.Definition, inferred types.Type) types.Type {
	debugAssert(def.Category() == semantic.Binding, "addBinding on %s", def)
	bound := inferred
	if declared, ok := b.declaredAt(node, def); ok {
		if !types.IsAssignableTo(b.db(), inferred, declared) {
			b.report(node, diag.InvalidAssignment, "Object of type `%s` is not assignable to `%s`", inferred, declared)
			bound = declared
		}
	}
	b.storeBinding(def, bound)
	return bound
}

// addDeclaration stores a declaration without a binding, checking it
// against the bindings that reach it.
func (b *builder) addDeclaration(node ast.Node, def *semantic.Definition, declared types.TypeAndQualifiers) types.TypeAndQualifiers {
	debugAssert(def.Category() == semantic.Declaration, "addDeclaration on %s", def)
	reaching := b.s.bindingsSymbol(b.ix, def.Scope, b.ix.UseDef(def.Scope).BindingsAtDeclaration(def), def.Name)
	if !reaching.IsUnbound() && !types.IsAssignableTo(b.db(), reaching.Type(), declared.Type) {
		b.report(node, diag.InvalidDeclaration, "Cannot declare type `%s` for inferred type `%s`", declared.Type, reaching.Type())
		declared = types.TypeAndQualifiers{Type: types.Unknown}
	}
	b.storeDeclaration(def, declared)
	return declared
}

// declareAndBind stores a definition whose declared type is its binding,
// such as a function or class statement.
func (b *builder) declareAndBind(def *semantic.Definition, t types.Type) types.Type {
	b.storeDeclaration(def, types.TypeAndQualifiers{Type: t})
	b.storeBinding(def, t)
	return t
}

// addDeclarationWithBinding stores a definition that both declares and
// binds and whose inferred type may differ from the declared one.
func (b *builder) addDeclarationWithBinding(node ast.Node, def *semantic.Definition, declared types.TypeAndQualifiers, inferred types.Type) types.Type {
	debugAssert(def.Category() == semantic.DeclarationAndBinding, "addDeclarationWithBinding on %s", def)
	bound := inferred
	if !types.IsAssignableTo(b.db(), inferred, declared.Type) {
		b.report(node, diag.InvalidAssignment, "Object of type `%s` is not assignable to `%s`", inferred, declared.Type)
		bound = declared.Type
	}
	b.storeDeclaration(def, declared)
	b.storeBinding(def, bound)
	return bound
}
