package types

import (
	"github.com/hashicorp/go-set/v3"
)

// MRO is a method resolution order. Each entry is a class literal or a
// dynamic type standing in for an unknown base.
type MRO []Type

// MROErrorKind classifies why the C3 linearization of a class failed.
type MROErrorKind uint8

const (
	// MROInvalidBases: some bases cannot be subclassed.
	MROInvalidBases MROErrorKind = iota
	// MRODuplicateBases: a class appears more than once in the bases list.
	MRODuplicateBases
	// MROUnresolvable: the bases admit no consistent linearization.
	MROUnresolvable
)

// InvalidBase is a base list entry that is not a class.
type InvalidBase struct {
	Index int
	Type  Type
}

// DuplicateBase is a base list entry repeating a class listed before it.
type DuplicateBase struct {
	Index int
	Class *Class
}

// MROError reports a failed linearization. Fallback is the MRO used for the
// class regardless.
type MROError struct {
	Kind         MROErrorKind
	InvalidBases []InvalidBase
	Duplicates   []DuplicateBase
	Bases        []Type
	Fallback     MRO
}

// ClassBaseFromType converts a base-list entry into an MRO entry. The
// second result is false when t cannot be subclassed.
func ClassBaseFromType(db Db, t Type) (Type, bool) {
	switch t.kind {
	case KindAny, KindUnknown, KindTodo:
		return t, true
	case KindClassLiteral:
		return t, true
	case KindSubclassOf:
		if dyn, ok := t.SubclassOfDynamicBase(); ok {
			return dyn, true
		}
		return Type{}, false
	case KindKnownInstance:
		kind := t.KnownInstance().Kind
		switch kind {
		case SpecialFormAny:
			return Any, true
		case SpecialFormProtocol, SpecialFormGeneric, SpecialFormTypedDict,
			SpecialFormDefaultDict, SpecialFormDeque, SpecialFormOrderedDict,
			SpecialFormCounter, SpecialFormChainMap:
			return Todo, true
		}
		if k, ok := kind.AliasClass(); ok {
			if c := db.KnownClass(k); c != nil {
				return ClassLiteral(c), true
			}
			return Unknown, true
		}
	}
	return Type{}, false
}

// fallbackMRO is [c, Unknown, object], used when linearization fails.
func fallbackMRO(db Db, c *Class) MRO {
	mro := MRO{ClassLiteral(c), Unknown}
	if obj := db.KnownClass(KnownObject); obj != nil && obj != c {
		mro = append(mro, ClassLiteral(obj))
	}
	return mro
}

// mroOf returns the MRO contributed by one class base.
func mroOf(db Db, base Type) MRO {
	if base.kind == KindClassLiteral {
		mro, err := db.ClassMRO(base.Class())
		if err != nil {
			return err.Fallback
		}
		return mro
	}
	mro := MRO{base}
	if obj := db.KnownClass(KnownObject); obj != nil {
		mro = append(mro, ClassLiteral(obj))
	}
	return mro
}

// ComputeMRO linearizes the bases of c with C3.
func ComputeMRO(db Db, c *Class) (MRO, *MROError) {
	self := ClassLiteral(c)
	bases := db.ClassBases(c)

	if len(bases) > 0 && InheritanceCycleOf(db, c) != NoCycle {
		return fallbackMRO(db, c), nil
	}

	switch len(bases) {
	case 0:
		if c.Known == KnownObject {
			return MRO{self}, nil
		}
		mro := MRO{self}
		if obj := db.KnownClass(KnownObject); obj != nil {
			mro = append(mro, ClassLiteral(obj))
		}
		return mro, nil
	case 1:
		base, ok := ClassBaseFromType(db, bases[0])
		if !ok {
			return nil, &MROError{
				Kind:         MROInvalidBases,
				InvalidBases: []InvalidBase{{Index: 0, Type: bases[0]}},
				Bases:        bases,
				Fallback:     fallbackMRO(db, c),
			}
		}
		return append(MRO{self}, mroOf(db, base)...), nil
	}

	var valid []Type
	var invalid []InvalidBase
	for i, b := range bases {
		base, ok := ClassBaseFromType(db, b)
		if !ok {
			invalid = append(invalid, InvalidBase{Index: i, Type: b})
			continue
		}
		valid = append(valid, base)
	}
	if len(invalid) > 0 {
		return nil, &MROError{Kind: MROInvalidBases, InvalidBases: invalid, Bases: bases, Fallback: fallbackMRO(db, c)}
	}

	seqs := []MRO{{self}}
	for _, b := range valid {
		seqs = append(seqs, mroOf(db, b))
	}
	seqs = append(seqs, MRO(valid))
	if mro, ok := c3Merge(seqs); ok {
		return mro, nil
	}

	// Every base converted, so indices into valid are base list indices.
	seen := set.New[Type](len(valid))
	var dups []DuplicateBase
	for i, b := range valid {
		if b.kind != KindClassLiteral {
			continue
		}
		if !seen.Insert(b) {
			dups = append(dups, DuplicateBase{Index: i, Class: b.Class()})
		}
	}
	if len(dups) > 0 {
		return nil, &MROError{Kind: MRODuplicateBases, Duplicates: dups, Bases: bases, Fallback: fallbackMRO(db, c)}
	}
	return nil, &MROError{Kind: MROUnresolvable, Bases: bases, Fallback: fallbackMRO(db, c)}
}

// c3Merge merges sequences per the C3 linearization algorithm.
func c3Merge(seqs []MRO) (MRO, bool) {
	var out MRO
	for {
		live := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				live = append(live, s)
			}
		}
		seqs = live
		if len(seqs) == 0 {
			return out, true
		}

		var candidate Type
		found := false
	candidates:
		for _, s := range seqs {
			head := s[0]
			for _, other := range seqs {
				for _, t := range other[1:] {
					if t == head {
						continue candidates
					}
				}
			}
			candidate, found = head, true
			break
		}
		if !found {
			return nil, false
		}
		out = append(out, candidate)
		for i, s := range seqs {
			if s[0] == candidate {
				seqs[i] = s[1:]
			}
		}
	}
}
