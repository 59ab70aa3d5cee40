package infer

import (
	"strings"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/semantic"
	"github.com/jward/knot/internal/types"
)

// validateClass checks the hierarchy of a class once its scope has been
// inferred: cyclic and final bases, the MRO and the metaclass.
func (b *builder) validateClass(def *semantic.Definition) {
	cd, ok := def.Node.(*ast.ClassDef)
	if !ok {
		return
	}
	db := b.db()
	cls := b.s.classFor(def)

	switch types.InheritanceCycleOf(db, cls) {
	case types.CycleParticipant:
		b.report(cd.Name, diag.CyclicClassDefinition, "Cyclic definition of `%s` (class cannot inherit from itself)", cls.Name)
		return
	case types.CycleInherited:
		return
	}

	for i, base := range db.ClassBases(cls) {
		c := base.Class()
		if base.Kind() != types.KindClassLiteral || c == nil || !db.ClassIsFinal(c) {
			continue
		}
		b.report(baseNode(cd, i), diag.SubclassOfFinalClass, "Class `%s` cannot inherit from final class `%s`", cls.Name, c.Name)
	}

	if _, err := db.ClassMRO(cls); err != nil {
		b.reportMRO(cd, cls, err)
	}
	if _, err := db.ClassMetaclass(cls); err != nil {
		b.reportMetaclass(cd, cls, err)
	}
}

func baseNode(cd *ast.ClassDef, i int) ast.Node {
	if i >= 0 && i < len(cd.Bases) {
		return cd.Bases[i]
	}
	return cd.Name
}

// basesRange spans the base list of a class.
func basesRange(cd *ast.ClassDef) ast.Range {
	if len(cd.Bases) == 0 {
		return cd.Name.Span()
	}
	return ast.Range{Start: cd.Bases[0].Span().Start, End: cd.Bases[len(cd.Bases)-1].Span().End}
}

func (b *builder) reportMRO(cd *ast.ClassDef, cls *types.Class, err *types.MROError) {
	switch err.Kind {
	case types.MROInvalidBases:
		for _, ib := range err.InvalidBases {
			b.report(baseNode(cd, ib.Index), diag.InvalidBase,
				"Invalid class base with type `%s` (all bases must be a class, `Any`, `Unknown` or `Todo`)", ib.Type)
		}
	case types.MRODuplicateBases:
		for _, dup := range err.Duplicates {
			b.report(baseNode(cd, dup.Index), diag.DuplicateBase, "Duplicate base class `%s`", dup.Class.Name)
		}
	case types.MROUnresolvable:
		names := make([]string, len(err.Bases))
		for i, base := range err.Bases {
			names[i] = base.String()
		}
		b.reportAt(basesRange(cd), diag.InconsistentMro,
			"Cannot create a consistent method resolution order (MRO) for class `%s` with bases list `[%s]`",
			cls.Name, strings.Join(names, ", "))
	}
}

func (b *builder) reportMetaclass(cd *ast.ClassDef, cls *types.Class, err *types.MetaclassError) {
	switch err.Kind {
	case types.MetaclassNotCallable:
		b.report(cd.Name, diag.InvalidMetaclass, "Metaclass type `%s` is not callable", err.Type)
	case types.MetaclassPartlyNotCallable:
		b.report(cd.Name, diag.InvalidMetaclass, "Metaclass type `%s` is partly not callable", err.Type)
	case types.MetaclassConflict:
		first := "metaclass of `" + cls.Name + "`"
		if err.Candidate1IsBase {
			first = "metaclass of base class `" + err.Candidate1.From.Name + "`"
		}
		b.report(cd.Name, diag.ConflictingMetaclass,
			"The metaclass of a derived class (`%s`) must be a subclass of the metaclasses of all its bases, but `%s` (%s) and `%s` (metaclass of base class `%s`) have no subclass relationship",
			cls.Name, err.Candidate1.Metaclass.Name, first, err.Candidate2.Metaclass.Name, err.Candidate2.From.Name)
	}
}
