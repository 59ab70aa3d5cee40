// Package types is the type algebra of the checker: the Type sum type,
// normalizing union and intersection construction, subtyping and
// assignability, display, and the operator, comparison, subscription,
// member and call semantics.
//
// Composite types are interned by an Interner owned by one analysis
// session, so two Type values are structurally equal exactly when they are
// == equal. Types from different sessions must never be mixed.
package types

// Kind tags the variant of a Type.
type Kind uint8

const (
	KindNever Kind = iota
	KindAny
	KindUnknown
	KindTodo
	KindNone
	KindBoolLiteral
	KindIntLiteral
	KindStringLiteral
	KindLiteralString
	KindBytesLiteral
	KindSliceLiteral
	KindTuple
	KindUnion
	KindIntersection
	KindFunction
	KindBoundMethod
	KindClassLiteral
	KindSubclassOf
	KindInstance
	KindModule
	KindKnownInstance
)

// MaxLiteralLength bounds the length of inferred string and bytes
// literals; longer results widen to LiteralString or bytes.
const MaxLiteralLength = 4096

// Type is an immutable, comparable type value. The zero Type is Never.
type Type struct {
	kind Kind
	num  int64
	str  string
	ref  any
}

var (
	Never         = Type{kind: KindNever}
	Any           = Type{kind: KindAny}
	Unknown       = Type{kind: KindUnknown}
	Todo          = Type{kind: KindTodo}
	None          = Type{kind: KindNone}
	LiteralString = Type{kind: KindLiteralString}
)

func (t Type) Kind() Kind { return t.kind }

func BoolLiteral(b bool) Type {
	if b {
		return Type{kind: KindBoolLiteral, num: 1}
	}
	return Type{kind: KindBoolLiteral}
}

func IntLiteral(n int64) Type { return Type{kind: KindIntLiteral, num: n} }

// StringLiteral returns Literal[s], or LiteralString when s is longer than
// MaxLiteralLength.
func StringLiteral(s string) Type {
	if len(s) > MaxLiteralLength {
		return LiteralString
	}
	return Type{kind: KindStringLiteral, str: s}
}

// BytesLiteral returns Literal[b"..."]; callers widen long values.
func BytesLiteral(s string) Type { return Type{kind: KindBytesLiteral, str: s} }

func ClassLiteral(c *Class) Type { return Type{kind: KindClassLiteral, ref: c} }

// Instance returns an instance of c; instances of NoneType are None.
func Instance(c *Class) Type {
	if c.Known == KnownNoneType {
		return None
	}
	return Type{kind: KindInstance, ref: c}
}

// SubclassOf returns type[C].
func SubclassOf(c *Class) Type { return Type{kind: KindSubclassOf, ref: c} }

// SubclassOfDynamic returns type[Any], type[Unknown] or type[@Todo].
func SubclassOfDynamic(dynamic Type) Type {
	return Type{kind: KindSubclassOf, num: int64(dynamic.kind)}
}

func FunctionLiteral(f *Function) Type { return Type{kind: KindFunction, ref: f} }

func ModuleLiteral(m *Module) Type { return Type{kind: KindModule, ref: m} }

func KnownInstanceOf(k *KnownInstance) Type { return Type{kind: KindKnownInstance, ref: k} }

func (t Type) IsNever() bool   { return t.kind == KindNever }
func (t Type) IsNone() bool    { return t.kind == KindNone }
func (t Type) IsUnknown() bool { return t.kind == KindUnknown }
func (t Type) IsTodo() bool    { return t.kind == KindTodo }

// IsDynamic reports Any, Unknown and Todo.
func (t Type) IsDynamic() bool {
	return t.kind == KindAny || t.kind == KindUnknown || t.kind == KindTodo
}

func (t Type) IsUnion() bool        { return t.kind == KindUnion }
func (t Type) IsIntersection() bool { return t.kind == KindIntersection }

// IsLiteral reports single-valued bool, int, string and bytes literals.
func (t Type) IsLiteral() bool {
	switch t.kind {
	case KindBoolLiteral, KindIntLiteral, KindStringLiteral, KindBytesLiteral:
		return true
	}
	return false
}

// BoolValue returns the value of a bool literal.
func (t Type) BoolValue() (bool, bool) {
	return t.num != 0, t.kind == KindBoolLiteral
}

// IntValue returns the value of an int literal; bool literals count as
// 0 and 1.
func (t Type) IntValue() (int64, bool) {
	return t.num, t.kind == KindIntLiteral || t.kind == KindBoolLiteral
}

// StringValue returns the value of a string literal.
func (t Type) StringValue() (string, bool) {
	return t.str, t.kind == KindStringLiteral
}

// BytesValue returns the value of a bytes literal.
func (t Type) BytesValue() (string, bool) {
	return t.str, t.kind == KindBytesLiteral
}

// Class returns the class of a class literal, instance or type[C].
func (t Type) Class() *Class {
	switch t.kind {
	case KindClassLiteral, KindInstance, KindSubclassOf:
		c, _ := t.ref.(*Class)
		return c
	}
	return nil
}

// SubclassOfDynamicBase returns the dynamic type of type[Any] and friends.
func (t Type) SubclassOfDynamicBase() (Type, bool) {
	if t.kind != KindSubclassOf || t.ref != nil {
		return Type{}, false
	}
	return Type{kind: Kind(t.num)}, true
}

func (t Type) Function() *Function {
	switch t.kind {
	case KindFunction:
		return t.ref.(*Function)
	case KindBoundMethod:
		return t.ref.(*boundMethod).fn
	}
	return nil
}

// BoundSelf returns the receiver of a bound method.
func (t Type) BoundSelf() (Type, bool) {
	if t.kind != KindBoundMethod {
		return Type{}, false
	}
	return t.ref.(*boundMethod).self, true
}

func (t Type) Module() *Module {
	if t.kind != KindModule {
		return nil
	}
	return t.ref.(*Module)
}

func (t Type) KnownInstance() *KnownInstance {
	if t.kind != KindKnownInstance {
		return nil
	}
	return t.ref.(*KnownInstance)
}

// Elements returns the elements of a tuple or union.
func (t Type) Elements() []Type {
	switch t.kind {
	case KindTuple:
		return t.ref.(*tupleData).elems
	case KindUnion:
		return t.ref.(*unionData).elems
	}
	return nil
}

// Positive and Negative return the parts of an intersection.
func (t Type) Positive() []Type {
	if t.kind != KindIntersection {
		return nil
	}
	return t.ref.(*intersectionData).pos
}

func (t Type) Negative() []Type {
	if t.kind != KindIntersection {
		return nil
	}
	return t.ref.(*intersectionData).neg
}

// SliceBounds returns the start, stop and step of a slice literal; a nil
// pointer is an omitted or None bound.
func (t Type) SliceBounds() (start, stop, step *int64, ok bool) {
	if t.kind != KindSliceLiteral {
		return nil, nil, nil, false
	}
	s := t.ref.(*sliceData)
	return s.start, s.stop, s.step, true
}

// IsInstanceOf reports an instance of exactly the known class k.
func (t Type) IsInstanceOf(k KnownClass) bool {
	c := t.Class()
	return t.kind == KindInstance && c != nil && c.Known == k
}

// IsClassLiteralOf reports the class object of the known class k.
func (t Type) IsClassLiteralOf(k KnownClass) bool {
	c := t.Class()
	return t.kind == KindClassLiteral && c != nil && c.Known == k
}

// Class is a class object created once per class definition per session.
type Class struct {
	id     int
	Name   string
	Module string
	Known  KnownClass
	// Origin is the definition that created the class.
	Origin any
}

func (c *Class) ID() int { return c.id }

func (c *Class) String() string { return c.Name }

// FunctionFlags records decorators recognized syntactically.
type FunctionFlags uint8

const (
	FunctionStaticMethod FunctionFlags = 1 << iota
	FunctionClassMethod
	FunctionProperty
	FunctionOverload
	FunctionFinal
)

// Function is a function object created once per def per session.
type Function struct {
	id      int
	Name    string
	Module  string
	Known   KnownFunction
	Flags   FunctionFlags
	IsAsync bool
	Origin  any
}

func (f *Function) ID() int { return f.id }

func (f *Function) Has(flag FunctionFlags) bool { return f.Flags&flag != 0 }

// Module is a module object created once per resolved module per session.
type Module struct {
	id        int
	Name      string
	IsPackage bool
	Origin    any
}

func (m *Module) ID() int { return m.id }

// KnownInstance is a value with special meaning to the type system: a
// typing special form, a type variable or a type alias.
type KnownInstance struct {
	id   int
	Kind KnownInstanceKind
	// Name is the type variable or alias name.
	Name string
	// Bound and Constraints describe a type variable. Bound is nil for an
	// unbounded one.
	Bound       *Type
	Constraints []Type
	Origin      any
}

func (k *KnownInstance) ID() int { return k.id }

// Qualifiers are the type qualifiers allowed on declarations.
type Qualifiers uint8

const (
	QualifierClassVar Qualifiers = 1 << iota
	QualifierFinal
)

// TypeAndQualifiers is a declared type.
type TypeAndQualifiers struct {
	Type       Type
	Qualifiers Qualifiers
}

func (t TypeAndQualifiers) Has(q Qualifiers) bool { return t.Qualifiers&q != 0 }

// Boundness distinguishes definitely bound symbols from possibly unbound
// ones.
type Boundness uint8

const (
	Bound Boundness = iota
	PossiblyUnbound
)

// Symbol is the result of looking up a name: Unbound, or a type with a
// boundness.
type Symbol struct {
	ty        Type
	boundness Boundness
	defined   bool
}

var Unbound = Symbol{}

func BoundSymbol(t Type) Symbol { return Symbol{ty: t, boundness: Bound, defined: true} }

func PossiblyUnboundSymbol(t Type) Symbol {
	return Symbol{ty: t, boundness: PossiblyUnbound, defined: true}
}

func SymbolOf(t Type, b Boundness) Symbol { return Symbol{ty: t, boundness: b, defined: true} }

func (s Symbol) IsUnbound() bool         { return !s.defined }
func (s Symbol) IsPossiblyUnbound() bool { return s.defined && s.boundness == PossiblyUnbound }
func (s Symbol) Boundness() Boundness    { return s.boundness }

// Type returns the symbol's type; Unbound symbols have type Never.
func (s Symbol) Type() Type { return s.ty }

// TypeOr returns the type, or fallback for Unbound symbols.
func (s Symbol) TypeOr(fallback Type) Type {
	if !s.defined {
		return fallback
	}
	return s.ty
}

// OrFallBackTo consults next only when s is not definitely bound. A
// possibly unbound s is unioned with next's type.
func (s Symbol) OrFallBackTo(db Db, next func() Symbol) Symbol {
	if s.defined && s.boundness == Bound {
		return s
	}
	n := next()
	if !s.defined {
		return n
	}
	if !n.defined {
		return s
	}
	return SymbolOf(Union(db, s.ty, n.ty), n.boundness)
}

// MapType transforms the type of a defined symbol.
func (s Symbol) MapType(f func(Type) Type) Symbol {
	if !s.defined {
		return s
	}
	s.ty = f(s.ty)
	return s
}
