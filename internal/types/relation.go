package types

type relation uint8

const (
	subtyping relation = iota
	assignability
)

// IsFullyStatic reports types that contain no dynamic component.
func (t Type) IsFullyStatic() bool {
	switch t.kind {
	case KindAny, KindUnknown, KindTodo:
		return false
	case KindSubclassOf:
		return t.ref != nil
	case KindTuple, KindUnion:
		for _, e := range t.Elements() {
			if !e.IsFullyStatic() {
				return false
			}
		}
	case KindIntersection:
		for _, e := range t.Positive() {
			if !e.IsFullyStatic() {
				return false
			}
		}
		for _, e := range t.Negative() {
			if !e.IsFullyStatic() {
				return false
			}
		}
	}
	return true
}

// IsSubtypeOf reports whether every value of a is a value of b. Types with
// dynamic components are never subtypes.
func IsSubtypeOf(db Db, a, b Type) bool {
	if !a.IsFullyStatic() || !b.IsFullyStatic() {
		return false
	}
	return relate(db, subtyping, a, b)
}

// IsAssignableTo reports whether a value of type a may be used where b is
// expected.
func IsAssignableTo(db Db, a, b Type) bool {
	return relate(db, assignability, a, b)
}

// IsEquivalentTo reports mutual subtyping of fully static types.
func IsEquivalentTo(db Db, a, b Type) bool {
	if a == b {
		return a.IsFullyStatic()
	}
	return IsSubtypeOf(db, a, b) && IsSubtypeOf(db, b, a)
}

// IsGraduallyEquivalentTo reports whether a and b materialize to the same
// set of types, e.g. Any and Unknown.
func IsGraduallyEquivalentTo(db Db, a, b Type) bool {
	if a == b {
		return true
	}
	switch {
	case a.IsDynamic() && b.IsDynamic():
		return true
	case a.kind == KindSubclassOf && b.kind == KindSubclassOf && a.ref == nil && b.ref == nil:
		return true
	case a.kind == KindTuple && b.kind == KindTuple:
		ae, be := a.Elements(), b.Elements()
		if len(ae) != len(be) {
			return false
		}
		for i := range ae {
			if !IsGraduallyEquivalentTo(db, ae[i], be[i]) {
				return false
			}
		}
		return true
	case a.kind == KindUnion && b.kind == KindUnion:
		ae, be := a.Elements(), b.Elements()
		if len(ae) != len(be) {
			return false
		}
		for _, x := range ae {
			found := false
			for _, y := range be {
				if IsGraduallyEquivalentTo(db, x, y) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	return false
}

func relate(db Db, rel relation, a, b Type) bool {
	if a == b {
		return true
	}
	if rel == assignability && (a.IsDynamic() || b.IsDynamic()) {
		return true
	}
	switch {
	case a.kind == KindNever:
		return true
	case a.kind == KindUnion:
		for _, e := range a.Elements() {
			if !relate(db, rel, e, b) {
				return false
			}
		}
		return true
	case b.kind == KindUnion:
		for _, e := range b.Elements() {
			if relate(db, rel, a, e) {
				return true
			}
		}
		return false
	case b.kind == KindIntersection:
		for _, p := range b.Positive() {
			if !relate(db, rel, a, p) {
				return false
			}
		}
		for _, n := range b.Negative() {
			if !IsDisjointFrom(db, a, n) {
				return false
			}
		}
		return true
	case a.kind == KindIntersection:
		for _, p := range a.Positive() {
			if relate(db, rel, p, b) {
				return true
			}
		}
		return false
	case b.kind == KindNever:
		return false
	case b.IsInstanceOf(KnownObject):
		return true
	}

	switch a.kind {
	case KindStringLiteral:
		if b.kind == KindLiteralString {
			return true
		}
	case KindTuple:
		if b.kind == KindTuple {
			ae, be := a.Elements(), b.Elements()
			if len(ae) != len(be) {
				return false
			}
			for i := range ae {
				if !relate(db, rel, ae[i], be[i]) {
					return false
				}
			}
			return true
		}
	case KindClassLiteral:
		if b.kind == KindSubclassOf {
			if b.ref == nil {
				return rel == assignability
			}
			return IsSubclassOf(db, a.Class(), b.Class())
		}
	case KindSubclassOf:
		if b.kind == KindSubclassOf {
			if a.ref == nil || b.ref == nil {
				return rel == assignability
			}
			return IsSubclassOf(db, a.Class(), b.Class())
		}
		if a.ref == nil {
			if rel == assignability {
				return relate(db, rel, KnownType.Instance(db), b)
			}
			return false
		}
	case KindInstance:
		if b.kind == KindInstance {
			ac, bc := a.Class(), b.Class()
			if IsSubclassOf(db, ac, bc) {
				return true
			}
			return rel == assignability && isPromotable(db, ac, bc)
		}
		return false
	}

	fallback, ok := fallbackInstance(db, a)
	if !ok || fallback == a {
		return false
	}
	return relate(db, rel, fallback, b)
}

// isPromotable implements the int to float to complex numeric tower.
func isPromotable(db Db, from, to *Class) bool {
	switch to.Known {
	case KnownFloat:
		return IsSubclassOf(db, from, db.KnownClass(KnownInt))
	case KnownComplex:
		return IsSubclassOf(db, from, db.KnownClass(KnownInt)) ||
			IsSubclassOf(db, from, db.KnownClass(KnownFloat))
	}
	return false
}

// fallbackInstance returns the nominal instance type that contains a
// structural or literal type.
func fallbackInstance(db Db, t Type) (Type, bool) {
	switch t.kind {
	case KindNone:
		return KnownNoneType.Instance(db), true
	case KindBoolLiteral:
		return KnownBool.Instance(db), true
	case KindIntLiteral:
		return KnownInt.Instance(db), true
	case KindStringLiteral:
		return LiteralString, true
	case KindLiteralString:
		return KnownStr.Instance(db), true
	case KindBytesLiteral:
		return KnownBytes.Instance(db), true
	case KindSliceLiteral:
		return KnownSlice.Instance(db), true
	case KindTuple:
		return KnownTuple.Instance(db), true
	case KindFunction:
		return KnownFunctionType.Instance(db), true
	case KindBoundMethod:
		return KnownMethodType.Instance(db), true
	case KindModule:
		return KnownModuleType.Instance(db), true
	case KindKnownInstance:
		return t.KnownInstance().Kind.Class().Instance(db), true
	case KindClassLiteral, KindSubclassOf:
		if t.ref == nil {
			return KnownType.Instance(db), true
		}
		return MetaclassInstance(db, t.Class()), true
	case KindInstance:
		return t, true
	}
	return Type{}, false
}

// MetaclassInstance returns the type of the class object of c viewed as an
// instance of its metaclass.
func MetaclassInstance(db Db, c *Class) Type {
	meta, err := db.ClassMetaclass(c)
	if err != nil {
		return Unknown
	}
	return ToInstance(db, meta)
}

// ToInstance maps a type of class objects to the type of their instances.
func ToInstance(db Db, t Type) Type {
	switch t.kind {
	case KindClassLiteral:
		return Instance(t.Class())
	case KindSubclassOf:
		if t.ref == nil {
			return Type{kind: Kind(t.num)}
		}
		return Instance(t.Class())
	case KindUnion:
		u := NewUnionBuilder(db)
		for _, e := range t.Elements() {
			u.Add(ToInstance(db, e))
		}
		return u.Build()
	case KindAny, KindUnknown, KindTodo, KindNever:
		return t
	}
	return Unknown
}

// ToMetaType returns the type of type(x) for x: t.
func ToMetaType(db Db, t Type) Type {
	switch t.kind {
	case KindNever:
		return Never
	case KindAny, KindUnknown, KindTodo:
		return SubclassOfDynamic(t)
	case KindInstance:
		return SubclassOf(t.Class())
	case KindClassLiteral, KindSubclassOf:
		if t.ref == nil {
			return KnownType.ClassLiteral(db)
		}
		meta, err := db.ClassMetaclass(t.Class())
		if err != nil {
			return SubclassOfDynamic(Unknown)
		}
		if meta.kind == KindClassLiteral && t.kind == KindSubclassOf {
			return SubclassOf(meta.Class())
		}
		return meta
	case KindUnion:
		u := NewUnionBuilder(db)
		for _, e := range t.Elements() {
			u.Add(ToMetaType(db, e))
		}
		return u.Build()
	case KindIntersection:
		return Todo
	}
	fallback, ok := fallbackInstance(db, t)
	if !ok || fallback.kind != KindInstance {
		if fallback.kind == KindLiteralString {
			return KnownStr.ClassLiteral(db)
		}
		return Unknown
	}
	return ClassLiteral(fallback.Class())
}

// IsSubclassOf reports whether d appears in the MRO of c.
func IsSubclassOf(db Db, c, d *Class) bool {
	if c == nil || d == nil {
		return false
	}
	if c == d {
		return true
	}
	mro, _ := db.ClassMRO(c)
	target := ClassLiteral(d)
	for _, base := range mro {
		if base == target {
			return true
		}
	}
	return false
}

// IsSingleton reports types with exactly one inhabitant whose identity is
// fixed, so `is` comparisons are decidable.
func IsSingleton(t Type) bool {
	switch t.kind {
	case KindNone, KindBoolLiteral, KindFunction, KindClassLiteral, KindModule:
		return true
	case KindKnownInstance:
		return t.KnownInstance().Kind.IsSpecialForm()
	}
	return false
}

// IsSingleValued reports types with exactly one inhabitant up to equality.
func IsSingleValued(t Type) bool {
	switch t.kind {
	case KindIntLiteral, KindStringLiteral, KindBytesLiteral, KindSliceLiteral, KindBoundMethod:
		return true
	case KindTuple:
		for _, e := range t.Elements() {
			if !IsSingleValued(e) {
				return false
			}
		}
		return true
	}
	return IsSingleton(t)
}

func isAtomicValue(t Type) bool {
	switch t.kind {
	case KindNone, KindBoolLiteral, KindIntLiteral, KindStringLiteral, KindBytesLiteral,
		KindSliceLiteral, KindFunction, KindBoundMethod, KindModule, KindClassLiteral, KindKnownInstance:
		return true
	}
	return false
}

// IsDisjointFrom reports whether no value inhabits both a and b.
func IsDisjointFrom(db Db, a, b Type) bool {
	if a.kind == KindNever || b.kind == KindNever {
		return true
	}
	if a.IsDynamic() || b.IsDynamic() {
		return false
	}
	if a == b {
		return false
	}

	switch {
	case a.kind == KindUnion:
		for _, e := range a.Elements() {
			if !IsDisjointFrom(db, e, b) {
				return false
			}
		}
		return true
	case b.kind == KindUnion:
		return IsDisjointFrom(db, b, a)
	case a.kind == KindIntersection:
		for _, p := range a.Positive() {
			if IsDisjointFrom(db, p, b) {
				return true
			}
		}
		for _, n := range a.Negative() {
			if IsSubtypeOf(db, b, n) {
				return true
			}
		}
		return false
	case b.kind == KindIntersection:
		return IsDisjointFrom(db, b, a)
	}

	if isAtomicValue(a) && isAtomicValue(b) {
		return true
	}
	if isAtomicValue(b) {
		a, b = b, a
	}
	if isAtomicValue(a) {
		switch b.kind {
		case KindInstance:
			return !IsSubtypeOf(db, a, b)
		case KindLiteralString:
			return a.kind != KindStringLiteral
		case KindSubclassOf:
			if a.kind != KindClassLiteral || b.ref == nil {
				return a.kind != KindClassLiteral
			}
			return !IsSubclassOf(db, a.Class(), b.Class())
		}
		return true
	}

	switch {
	case a.kind == KindLiteralString && b.kind == KindLiteralString:
		return false
	case a.kind == KindLiteralString || b.kind == KindLiteralString:
		if b.kind == KindLiteralString {
			a, b = b, a
		}
		if b.kind == KindInstance {
			return !IsSubtypeOf(db, KnownStr.Instance(db), b)
		}
		return true
	case a.kind == KindTuple && b.kind == KindTuple:
		ae, be := a.Elements(), b.Elements()
		if len(ae) != len(be) {
			return true
		}
		for i := range ae {
			if IsDisjointFrom(db, ae[i], be[i]) {
				return true
			}
		}
		return false
	case a.kind == KindSubclassOf && b.kind == KindSubclassOf:
		return false
	}

	fa, aok := fallbackInstance(db, a)
	fb, bok := fallbackInstance(db, b)
	if !aok || !bok || fa.kind != KindInstance || fb.kind != KindInstance {
		return false
	}
	if a.kind == KindTuple && b.kind == KindSubclassOf || a.kind == KindSubclassOf && b.kind == KindTuple {
		return true
	}
	ac, bc := fa.Class(), fb.Class()
	if IsSubclassOf(db, ac, bc) || IsSubclassOf(db, bc, ac) {
		return false
	}
	return db.ClassIsFinal(ac) || db.ClassIsFinal(bc)
}
