package types

import (
	"github.com/hashicorp/go-set/v3"
)

// InheritanceCycle classifies a class's involvement in cyclic inheritance.
type InheritanceCycle uint8

const (
	NoCycle InheritanceCycle = iota
	// CycleParticipant: the class is itself part of the cycle.
	CycleParticipant
	// CycleInherited: the class inherits from a class in a cycle.
	CycleInherited
)

// ExplicitClassBases returns the class-literal entries of the bases of c.
func ExplicitClassBases(db Db, c *Class) []*Class {
	var out []*Class
	for _, b := range db.ClassBases(c) {
		if b.kind == KindClassLiteral {
			out = append(out, b.Class())
		}
	}
	return out
}

// InheritanceCycleOf walks explicit class bases depth first, tracking the
// classes on the current path.
func InheritanceCycleOf(db Db, c *Class) InheritanceCycle {
	visited := set.New[*Class](4)
	if !isCyclicallyDefined(db, c, nil, visited) {
		return NoCycle
	}
	if visited.Contains(c) {
		return CycleParticipant
	}
	return CycleInherited
}

func isCyclicallyDefined(db Db, c *Class, stack []*Class, visited *set.Set[*Class]) bool {
	result := false
	for _, base := range ExplicitClassBases(db, c) {
		for _, s := range stack {
			if s == base {
				return true
			}
		}
		stack = append(stack, base)
		if visited.Insert(base) {
			if isCyclicallyDefined(db, base, stack, visited) {
				result = true
			}
		}
		stack = stack[:len(stack)-1]
	}
	return result
}

// MetaclassCandidate is a metaclass together with the class whose
// `metaclass=` keyword, or inheritance, supplied it.
type MetaclassCandidate struct {
	Metaclass *Class
	From      *Class
}

// MetaclassErrorKind classifies why a metaclass could not be determined.
type MetaclassErrorKind uint8

const (
	MetaclassNotCallable MetaclassErrorKind = iota
	MetaclassPartlyNotCallable
	MetaclassConflict
)

// MetaclassError reports an invalid or conflicting metaclass. Candidate1 is
// the metaclass selected so far and Candidate2 the base metaclass that is
// not related to it; Candidate1IsBase is set when the class has no
// explicit metaclass.
type MetaclassError struct {
	Kind             MetaclassErrorKind
	Type             Type
	Candidate1       MetaclassCandidate
	Candidate2       MetaclassCandidate
	Candidate1IsBase bool
}

// Metaclass returns the metaclass of c, or type[Unknown] when it cannot be
// determined.
func Metaclass(db Db, c *Class) Type {
	meta, err := db.ClassMetaclass(c)
	if err != nil {
		return SubclassOfDynamic(Unknown)
	}
	return meta
}

// ComputeMetaclass determines the metaclass of c from its explicit
// `metaclass=` keyword and the metaclasses of its bases.
func ComputeMetaclass(db Db, c *Class) (Type, *MetaclassError) {
	bases := ExplicitClassBases(db, c)
	if len(bases) > 0 && InheritanceCycleOf(db, c) != NoCycle {
		return SubclassOfDynamic(Unknown), nil
	}

	explicit, hasExplicit := db.ClassExplicitMetaclass(c)
	var meta Type
	from := c
	switch {
	case hasExplicit:
		meta = explicit
	case len(bases) > 0:
		meta = Metaclass(db, bases[0])
		from = bases[0]
		bases = bases[1:]
	default:
		meta = KnownType.ClassLiteral(db)
	}

	if meta.kind != KindClassLiteral {
		args := []Argument{
			{Type: StringLiteral(c.Name)},
			{Type: Tuple(db, db.ClassBases(c)...)},
			{Type: KnownDict.Instance(db)},
		}
		outcome := Call(db, meta, args)
		switch outcome.Status {
		case CallNotCallable:
			return unknownMetaclass(), &MetaclassError{Kind: MetaclassNotCallable, Type: meta}
		case CallPartlyNotCallable, CallPossiblyUnboundDunder:
			return unknownMetaclass(), &MetaclassError{Kind: MetaclassPartlyNotCallable, Type: meta}
		}
		return ToMetaType(db, outcome.Return), nil
	}

	candidate := MetaclassCandidate{Metaclass: meta.Class(), From: from}
	for _, base := range bases {
		bm := Metaclass(db, base)
		if bm.kind != KindClassLiteral {
			continue
		}
		if IsSubclassOf(db, bm.Class(), candidate.Metaclass) {
			candidate = MetaclassCandidate{Metaclass: bm.Class(), From: base}
			continue
		}
		if IsSubclassOf(db, candidate.Metaclass, bm.Class()) {
			continue
		}
		return unknownMetaclass(), &MetaclassError{
			Kind:             MetaclassConflict,
			Candidate1:       candidate,
			Candidate2:       MetaclassCandidate{Metaclass: bm.Class(), From: base},
			Candidate1IsBase: !hasExplicit,
		}
	}
	return ClassLiteral(candidate.Metaclass), nil
}

// unknownMetaclass is the metaclass reported alongside an error.
func unknownMetaclass() Type { return SubclassOfDynamic(Unknown) }
