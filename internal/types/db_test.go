package types

import (
	"testing"

	"github.com/jward/knot/internal/ast"
)

// fakeDb is a hand-built class hierarchy standing in for a session.
type fakeDb struct {
	in      *Interner
	known   map[KnownClass]*Class
	bases   map[*Class][]Type
	metas   map[*Class]Type
	final   map[*Class]bool
	members map[*Class]map[string]Symbol
	attrs   map[*Class]map[string]Symbol
	sigs    map[*Function]*Signature
}

func newFakeDb(t *testing.T) *fakeDb {
	t.Helper()
	d := &fakeDb{
		in:      NewInterner(),
		known:   make(map[KnownClass]*Class),
		bases:   make(map[*Class][]Type),
		metas:   make(map[*Class]Type),
		final:   make(map[*Class]bool),
		members: make(map[*Class]map[string]Symbol),
		attrs:   make(map[*Class]map[string]Symbol),
		sigs:    make(map[*Function]*Signature),
	}
	object := d.knownClass(KnownObject)
	typ := d.knownClass(KnownType, ClassLiteral(object))
	integer := d.knownClass(KnownInt, ClassLiteral(object))
	d.knownClass(KnownBool, ClassLiteral(integer))
	d.knownClass(KnownFloat, ClassLiteral(object))
	d.knownClass(KnownComplex, ClassLiteral(object))
	str := d.knownClass(KnownStr, ClassLiteral(object))
	d.knownClass(KnownBytes, ClassLiteral(object))
	d.knownClass(KnownTuple, ClassLiteral(object))
	d.knownClass(KnownDict, ClassLiteral(object))
	d.knownClass(KnownList, ClassLiteral(object))
	none := d.knownClass(KnownNoneType, ClassLiteral(object))
	d.final[none] = true
	d.knownClass(KnownFunctionType, ClassLiteral(object))
	d.knownClass(KnownMethodType, ClassLiteral(object))
	d.knownClass(KnownModuleType, ClassLiteral(object))
	d.knownClass(KnownProperty, ClassLiteral(object))

	intT := Instance(integer)
	boolT := KnownBool.Instance(d)
	objT := Instance(object)
	d.method(object, "__eq__", boolT, param("other", objT))
	d.method(object, "__ne__", boolT, param("other", objT))
	d.method(integer, "__add__", intT, param("other", intT))
	d.method(integer, "__sub__", intT, param("other", intT))
	d.method(integer, "__lt__", boolT, param("other", intT))
	d.method(integer, "__neg__", intT)
	d.method(str, "__add__", Instance(str), param("other", Instance(str)))
	d.method(str, "__contains__", boolT, param("key", Instance(str)))
	d.method(str, "__getitem__", Instance(str), param("key", intT))
	d.method(typ, "__call__", Any,
		Parameter{Name: "args", Kind: ast.VarPositional, Type: Any},
		Parameter{Name: "kwds", Kind: ast.VarKeyword, Type: Any})
	return d
}

func param(name string, t Type) Parameter {
	return Parameter{Name: name, Kind: ast.PositionalOrKeyword, Annotated: true, Type: t}
}

func (d *fakeDb) knownClass(k KnownClass, bases ...Type) *Class {
	c := d.class(k.Name(), bases...)
	c.Known = k
	d.known[k] = c
	return c
}

func (d *fakeDb) class(name string, bases ...Type) *Class {
	c := d.in.NewClass(name, "test", NotKnown, nil)
	d.bases[c] = bases
	return c
}

// method defines an instance method on c; self is prepended.
func (d *fakeDb) method(c *Class, name string, ret Type, params ...Parameter) *Function {
	f := d.function(name, ret, append([]Parameter{{Name: "self", Kind: ast.PositionalOrKeyword, Type: Unknown}}, params...)...)
	d.define(c, name, FunctionLiteral(f))
	return f
}

func (d *fakeDb) function(name string, ret Type, params ...Parameter) *Function {
	f := d.in.NewFunction(name, "test", NotKnownFunction, 0, nil)
	d.sigs[f] = &Signature{Params: params, Return: ret}
	return f
}

func (d *fakeDb) define(c *Class, name string, t Type) {
	if d.members[c] == nil {
		d.members[c] = make(map[string]Symbol)
	}
	d.members[c][name] = BoundSymbol(t)
}

func (d *fakeDb) Interner() *Interner { return d.in }
func (d *fakeDb) KnownClass(k KnownClass) *Class { return d.known[k] }
func (d *fakeDb) ClassBases(c *Class) []Type { return d.bases[c] }
func (d *fakeDb) ClassIsFinal(c *Class) bool { return d.final[c] }
func (d *fakeDb) ClassMRO(c *Class) (MRO, *MROError) { return ComputeMRO(d, c) }
func (d *fakeDb) FunctionSignature(f *Function) *Signature { return d.sigs[f] }
func (d *fakeDb) ModuleMember(*Module, string) Symbol { return Unbound }

func (d *fakeDb) ClassExplicitMetaclass(c *Class) (Type, bool) {
	t, ok := d.metas[c]
	return t, ok
}

func (d *fakeDb) ClassOwnMember(c *Class, name string) Symbol {
	if s, ok := d.members[c][name]; ok {
		return s
	}
	return Unbound
}

func (d *fakeDb) ClassMetaclass(c *Class) (Type, *MetaclassError) { return ComputeMetaclass(d, c) }

func (d *fakeDb) InstanceAttribute(c *Class, name string) Symbol {
	if s, ok := d.attrs[c][name]; ok {
		return s
	}
	return Unbound
}

func (d *fakeDb) instance(k KnownClass) Type { return k.Instance(d) }
