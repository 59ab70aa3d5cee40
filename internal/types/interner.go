package types

import (
	"strconv"
	"strings"
)

type tupleData struct {
	id    int
	elems []Type
}

type unionData struct {
	id    int
	elems []Type
}

type intersectionData struct {
	id  int
	pos []Type
	neg []Type
}

type boundMethod struct {
	id   int
	fn   *Function
	self Type
}

type knownInstanceKey struct {
	origin any
	kind   KnownInstanceKind
	key    string
}

type sliceData struct {
	id                int
	start, stop, step *int64
}

// Interner hands out object identities and deduplicates composite types
// for one session.
type Interner struct {
	nextID        int
	tuples        map[string]*tupleData
	unions        map[string]*unionData
	intersections map[string]*intersectionData
	methods       map[string]*boundMethod
	slices        map[string]*sliceData
	instances     map[knownInstanceKey]*KnownInstance
}

func NewInterner() *Interner {
	return &Interner{
		tuples:        make(map[string]*tupleData),
		unions:        make(map[string]*unionData),
		intersections: make(map[string]*intersectionData),
		methods:       make(map[string]*boundMethod),
		slices:        make(map[string]*sliceData),
		instances:     make(map[knownInstanceKey]*KnownInstance),
	}
}

func (in *Interner) id() int {
	in.nextID++
	return in.nextID
}

func (in *Interner) NewClass(name, module string, known KnownClass, origin any) *Class {
	return &Class{id: in.id(), Name: name, Module: module, Known: known, Origin: origin}
}

func (in *Interner) NewFunction(name, module string, known KnownFunction, flags FunctionFlags, origin any) *Function {
	return &Function{id: in.id(), Name: name, Module: module, Known: known, Flags: flags, Origin: origin}
}

func (in *Interner) NewModule(name string, isPackage bool, origin any) *Module {
	return &Module{id: in.id(), Name: name, IsPackage: isPackage, Origin: origin}
}

func (in *Interner) NewKnownInstance(kind KnownInstanceKind, name string, origin any) *KnownInstance {
	return &KnownInstance{id: in.id(), Kind: kind, Name: name, Origin: origin}
}

// InternKnownInstance returns the instance of kind declared at origin with
// the given bound and constraints. Instances are never mutated: a
// different bound or constraint list yields a different instance.
func (in *Interner) InternKnownInstance(kind KnownInstanceKind, name string, origin any, bound *Type, constraints []Type) *KnownInstance {
	var b strings.Builder
	if bound != nil {
		b.WriteByte('<')
		writeKey(&b, *bound)
	}
	b.WriteByte('|')
	for _, c := range constraints {
		writeKey(&b, c)
	}
	k := knownInstanceKey{origin: origin, kind: kind, key: b.String()}
	ki, ok := in.instances[k]
	if !ok {
		ki = &KnownInstance{id: in.id(), Kind: kind, Name: name, Origin: origin, Constraints: append([]Type(nil), constraints...)}
		if bound != nil {
			t := *bound
			ki.Bound = &t
		}
		in.instances[k] = ki
	}
	return ki
}

// writeKey appends a representation of t that is unique within the
// session.
func writeKey(b *strings.Builder, t Type) {
	b.WriteByte(byte(t.kind) + 'A')
	switch t.kind {
	case KindBoolLiteral, KindIntLiteral, KindSubclassOf:
		b.WriteString(strconv.FormatInt(t.num, 10))
	case KindStringLiteral, KindBytesLiteral:
		b.WriteString(strconv.Quote(t.str))
	}
	if id := refID(t.ref); id != 0 {
		b.WriteByte('#')
		b.WriteString(strconv.Itoa(id))
	}
	b.WriteByte(';')
}

func refID(ref any) int {
	switch r := ref.(type) {
	case *Class:
		return r.id
	case *Function:
		return r.id
	case *Module:
		return r.id
	case *KnownInstance:
		return r.id
	case *tupleData:
		return r.id
	case *unionData:
		return r.id
	case *intersectionData:
		return r.id
	case *boundMethod:
		return r.id
	case *sliceData:
		return r.id
	}
	return 0
}

func keyOf(parts ...[]Type) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		for _, t := range p {
			writeKey(&b, t)
		}
	}
	return b.String()
}

func (in *Interner) tuple(elems []Type) Type {
	k := keyOf(elems)
	d, ok := in.tuples[k]
	if !ok {
		d = &tupleData{id: in.id(), elems: append([]Type(nil), elems...)}
		in.tuples[k] = d
	}
	return Type{kind: KindTuple, ref: d}
}

func (in *Interner) union(elems []Type) Type {
	k := keyOf(elems)
	d, ok := in.unions[k]
	if !ok {
		d = &unionData{id: in.id(), elems: append([]Type(nil), elems...)}
		in.unions[k] = d
	}
	return Type{kind: KindUnion, ref: d}
}

func (in *Interner) intersection(pos, neg []Type) Type {
	k := keyOf(pos, neg)
	d, ok := in.intersections[k]
	if !ok {
		d = &intersectionData{id: in.id(), pos: append([]Type(nil), pos...), neg: append([]Type(nil), neg...)}
		in.intersections[k] = d
	}
	return Type{kind: KindIntersection, ref: d}
}

// Tuple builds tuple[elems...]. A tuple with a Never element is Never.
func Tuple(db Db, elems ...Type) Type {
	for _, e := range elems {
		if e.IsNever() {
			return Never
		}
	}
	return db.Interner().tuple(elems)
}

// BoundMethod binds fn to a receiver.
func BoundMethod(db Db, fn *Function, self Type) Type {
	in := db.Interner()
	var b strings.Builder
	b.WriteString(strconv.Itoa(fn.id))
	b.WriteByte(':')
	writeKey(&b, self)
	k := b.String()
	d, ok := in.methods[k]
	if !ok {
		d = &boundMethod{id: in.id(), fn: fn, self: self}
		in.methods[k] = d
	}
	return Type{kind: KindBoundMethod, ref: d}
}

// SliceLiteral builds the type of a slice expression whose bounds are all
// int literals or None.
func SliceLiteral(db Db, start, stop, step *int64) Type {
	in := db.Interner()
	var b strings.Builder
	for _, p := range []*int64{start, stop, step} {
		if p == nil {
			b.WriteString("_;")
			continue
		}
		b.WriteString(strconv.FormatInt(*p, 10))
		b.WriteByte(';')
	}
	k := b.String()
	d, ok := in.slices[k]
	if !ok {
		d = &sliceData{id: in.id(), start: start, stop: stop, step: step}
		in.slices[k] = d
	}
	return Type{kind: KindSliceLiteral, ref: d}
}
