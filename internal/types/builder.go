package types

import (
	"slices"

	"github.com/hashicorp/go-set/v3"
)

// Union builds the normalized union of elems.
func Union(db Db, elems ...Type) Type {
	b := NewUnionBuilder(db)
	for _, e := range elems {
		b.Add(e)
	}
	return b.Build()
}

// UnionBuilder accumulates union elements, keeping them flat, free of
// duplicates and free of elements subsumed by another element. Element
// order follows first insertion.
type UnionBuilder struct {
	db       Db
	elems    []Type
	seen     *set.Set[Type]
	isObject bool
}

func NewUnionBuilder(db Db) *UnionBuilder {
	return &UnionBuilder{db: db, seen: set.New[Type](4)}
}

func (b *UnionBuilder) Add(t Type) *UnionBuilder {
	if b.isObject {
		return b
	}
	switch t.kind {
	case KindNever:
		return b
	case KindUnion:
		for _, e := range t.Elements() {
			b.Add(e)
		}
		return b
	}
	if b.seen.Contains(t) {
		return b
	}

	if t.kind == KindBoolLiteral {
		other := BoolLiteral(t.num == 0)
		if b.seen.Contains(other) {
			b.remove(other)
			b.Add(KnownBool.Instance(b.db))
			return b
		}
	}

	insertAt := -1
	kept := b.elems[:0:0]
	for _, e := range b.elems {
		if isSubsumedBy(b.db, t, e) {
			return b
		}
		if isComplement(b.db, t, e) {
			b.isObject = true
			return b
		}
		if t.IsFullyStatic() && IsSubtypeOf(b.db, e, t) {
			if insertAt < 0 {
				insertAt = len(kept)
			}
			b.seen.Remove(e)
			continue
		}
		kept = append(kept, e)
	}
	if insertAt < 0 {
		kept = append(kept, t)
	} else {
		kept = slices.Insert(kept, insertAt, t)
	}
	b.elems = kept
	b.seen.Insert(t)
	return b
}

func (b *UnionBuilder) remove(t Type) {
	b.elems = slices.DeleteFunc(b.elems, func(e Type) bool { return e == t })
	b.seen.Remove(t)
}

func (b *UnionBuilder) Build() Type {
	if b.isObject {
		return KnownObject.Instance(b.db)
	}
	switch len(b.elems) {
	case 0:
		return Never
	case 1:
		return b.elems[0]
	}
	return b.db.Interner().union(b.elems)
}

// isSubsumedBy reports whether adding t to a union already holding e adds
// nothing.
func isSubsumedBy(db Db, t, e Type) bool {
	if t == e {
		return true
	}
	if t.IsFullyStatic() && e.IsFullyStatic() {
		return IsSubtypeOf(db, t, e)
	}
	return IsGraduallyEquivalentTo(db, t, e)
}

// isComplement reports whether t and e are ~X and X.
func isComplement(db Db, t, e Type) bool {
	neg := func(x Type) (Type, bool) {
		if x.kind == KindIntersection && len(x.Positive()) == 0 && len(x.Negative()) == 1 {
			return x.Negative()[0], true
		}
		return Type{}, false
	}
	if n, ok := neg(t); ok && n == e {
		return true
	}
	if n, ok := neg(e); ok && n == t {
		return true
	}
	return false
}

// Intersection builds the normalized intersection of pos and the negations
// of neg.
func Intersection(db Db, pos []Type, neg []Type) Type {
	b := NewIntersectionBuilder(db)
	for _, p := range pos {
		b.AddPositive(p)
	}
	for _, n := range neg {
		b.AddNegative(n)
	}
	return b.Build()
}

// Negate returns ~t.
func Negate(db Db, t Type) Type {
	return Intersection(db, nil, []Type{t})
}

// IntersectionBuilder accumulates an intersection in disjunctive normal
// form: adding a union distributes over it.
type IntersectionBuilder struct {
	db    Db
	inner []*innerIntersection
}

func NewIntersectionBuilder(db Db) *IntersectionBuilder {
	return &IntersectionBuilder{db: db, inner: []*innerIntersection{{}}}
}

func (b *IntersectionBuilder) AddPositive(t Type) *IntersectionBuilder {
	switch t.kind {
	case KindUnion:
		var next []*innerIntersection
		for _, e := range t.Elements() {
			for _, in := range b.inner {
				c := in.clone()
				c.addPositive(b.db, e)
				next = append(next, c)
			}
		}
		b.inner = next
		return b
	case KindIntersection:
		for _, p := range t.Positive() {
			b.AddPositive(p)
		}
		for _, n := range t.Negative() {
			b.AddNegative(n)
		}
		return b
	}
	for _, in := range b.inner {
		in.addPositive(b.db, t)
	}
	return b
}

func (b *IntersectionBuilder) AddNegative(t Type) *IntersectionBuilder {
	switch t.kind {
	case KindUnion:
		for _, e := range t.Elements() {
			b.AddNegative(e)
		}
		return b
	case KindIntersection:
		// ~(P & ~N) is ~P | N.
		u := NewUnionBuilder(b.db)
		for _, p := range t.Positive() {
			u.Add(Negate(b.db, p))
		}
		for _, n := range t.Negative() {
			u.Add(n)
		}
		return b.AddPositive(u.Build())
	}
	for _, in := range b.inner {
		in.addNegative(b.db, t)
	}
	return b
}

func (b *IntersectionBuilder) Build() Type {
	u := NewUnionBuilder(b.db)
	for _, in := range b.inner {
		u.Add(in.build(b.db))
	}
	return u.Build()
}

type innerIntersection struct {
	pos   []Type
	neg   []Type
	never bool
}

func (in *innerIntersection) clone() *innerIntersection {
	return &innerIntersection{
		pos:   slices.Clone(in.pos),
		neg:   slices.Clone(in.neg),
		never: in.never,
	}
}

func (in *innerIntersection) addPositive(db Db, t Type) {
	if in.never {
		return
	}
	if t.kind == KindNever {
		in.never = true
		return
	}
	if t.IsInstanceOf(KnownObject) || slices.Contains(in.pos, t) {
		return
	}

	if t.IsInstanceOf(KnownBool) {
		for _, n := range in.neg {
			if v, ok := n.BoolValue(); ok {
				in.neg = slices.DeleteFunc(in.neg, func(x Type) bool { return x == n })
				in.addPositive(db, BoolLiteral(!v))
				return
			}
		}
	}

	if t.IsFullyStatic() {
		var kept []Type
		for _, p := range in.pos {
			if !p.IsFullyStatic() {
				kept = append(kept, p)
				continue
			}
			if IsSubtypeOf(db, p, t) {
				return
			}
			if IsDisjointFrom(db, p, t) {
				in.never = true
				return
			}
			if IsSubtypeOf(db, t, p) {
				continue
			}
			kept = append(kept, p)
		}
		in.pos = kept

		var neg []Type
		for _, n := range in.neg {
			if IsSubtypeOf(db, t, n) {
				in.never = true
				return
			}
			if IsDisjointFrom(db, t, n) {
				continue
			}
			neg = append(neg, n)
		}
		in.neg = neg
	}
	in.pos = append(in.pos, t)
}

func (in *innerIntersection) addNegative(db Db, t Type) {
	if in.never {
		return
	}
	switch {
	case t.kind == KindNever:
		return
	case t.IsInstanceOf(KnownObject):
		in.never = true
		return
	case t.IsDynamic():
		in.addPositive(db, t)
		return
	case slices.Contains(in.neg, t):
		return
	}

	if v, ok := t.BoolValue(); ok {
		for i, p := range in.pos {
			if p.IsInstanceOf(KnownBool) {
				in.pos = slices.Delete(in.pos, i, i+1)
				in.addPositive(db, BoolLiteral(!v))
				return
			}
		}
	}

	if !t.IsFullyStatic() {
		in.neg = append(in.neg, t)
		return
	}
	for _, p := range in.pos {
		if !p.IsFullyStatic() {
			continue
		}
		if IsSubtypeOf(db, p, t) {
			in.never = true
			return
		}
		if IsDisjointFrom(db, p, t) {
			return
		}
	}
	var kept []Type
	for _, n := range in.neg {
		if IsSubtypeOf(db, t, n) {
			return
		}
		if IsSubtypeOf(db, n, t) {
			continue
		}
		kept = append(kept, n)
	}
	in.neg = append(kept, t)
}

func (in *innerIntersection) build(db Db) Type {
	switch {
	case in.never:
		return Never
	case len(in.pos) == 0 && len(in.neg) == 0:
		return KnownObject.Instance(db)
	case len(in.pos) == 1 && len(in.neg) == 0:
		return in.pos[0]
	}
	return db.Interner().intersection(in.pos, in.neg)
}
