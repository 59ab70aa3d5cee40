package types

// Db is the view of an analysis session the type algebra needs. Every
// method is memoized by the session, so repeated calls are cheap.
type Db interface {
	Interner() *Interner

	// KnownClass returns the class object of k, or nil when its stub is
	// unavailable.
	KnownClass(k KnownClass) *Class

	// ClassBases returns the inferred explicit bases of c.
	ClassBases(c *Class) []Type
	// ClassExplicitMetaclass returns the `metaclass=` keyword of c.
	ClassExplicitMetaclass(c *Class) (Type, bool)
	ClassIsFinal(c *Class) bool
	// ClassOwnMember looks name up in the body of c only.
	ClassOwnMember(c *Class, name string) Symbol
	// ClassMRO is the memoized result of ComputeMRO.
	ClassMRO(c *Class) (MRO, *MROError)
	// ClassMetaclass is the memoized result of ComputeMetaclass.
	ClassMetaclass(c *Class) (Type, *MetaclassError)
	// InstanceAttribute returns the implicit instance attribute name
	// assigned through `self` in the methods of c.
	InstanceAttribute(c *Class, name string) Symbol

	// ModuleMember returns a public symbol or submodule of m.
	ModuleMember(m *Module, name string) Symbol

	FunctionSignature(f *Function) *Signature
}
