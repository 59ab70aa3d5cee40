package types

// Truthiness is the statically known result of bool(x).
type Truthiness uint8

const (
	Ambiguous Truthiness = iota
	AlwaysTrue
	AlwaysFalse
)

func TruthinessOf(b bool) Truthiness {
	if b {
		return AlwaysTrue
	}
	return AlwaysFalse
}

func (t Truthiness) Negate() Truthiness {
	switch t {
	case AlwaysTrue:
		return AlwaysFalse
	case AlwaysFalse:
		return AlwaysTrue
	}
	return Ambiguous
}

func (t Truthiness) IsAmbiguous() bool { return t == Ambiguous }

// Type returns Literal[True], Literal[False] or bool.
func (t Truthiness) Type(db Db) Type {
	switch t {
	case AlwaysTrue:
		return BoolLiteral(true)
	case AlwaysFalse:
		return BoolLiteral(false)
	}
	return KnownBool.Instance(db)
}

// Bool returns the truthiness of values of type t.
func Bool(db Db, t Type) Truthiness {
	switch t.kind {
	case KindNone:
		return AlwaysFalse
	case KindBoolLiteral:
		return TruthinessOf(t.num != 0)
	case KindIntLiteral:
		return TruthinessOf(t.num != 0)
	case KindStringLiteral, KindBytesLiteral:
		return TruthinessOf(t.str != "")
	case KindTuple:
		return TruthinessOf(len(t.Elements()) > 0)
	case KindFunction, KindBoundMethod, KindModule, KindClassLiteral, KindSubclassOf,
		KindKnownInstance, KindSliceLiteral:
		return AlwaysTrue
	case KindUnion:
		elems := t.Elements()
		first := Bool(db, elems[0])
		if first == Ambiguous {
			return Ambiguous
		}
		for _, e := range elems[1:] {
			if Bool(db, e) != first {
				return Ambiguous
			}
		}
		return first
	case KindIntersection:
		for _, p := range t.Positive() {
			if b := Bool(db, p); b != Ambiguous {
				return b
			}
		}
		return Ambiguous
	case KindInstance:
		c := t.Class()
		if c.Known == KnownBool || c.Known == KnownObject {
			return Ambiguous
		}
		dunder := ClassMember(db, c, "__bool__")
		if dunder.IsUnbound() || dunder.IsPossiblyUnbound() {
			return Ambiguous
		}
		if f := dunder.Type().Function(); f != nil && dunder.Type().kind == KindFunction {
			if sig := db.FunctionSignature(f); sig != nil {
				if v, ok := sig.Return.BoolValue(); ok {
					return TruthinessOf(v)
				}
			}
		}
	}
	return Ambiguous
}
