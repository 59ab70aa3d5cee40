package types

// ClassMember looks name up along the MRO of c. A dynamic MRO entry
// answers every lookup with itself.
func ClassMember(db Db, c *Class, name string) Symbol {
	mro, err := db.ClassMRO(c)
	if err != nil {
		mro = err.Fallback
	}
	result := Unbound
	for _, base := range mro {
		var sym Symbol
		if base.IsDynamic() {
			sym = BoundSymbol(base)
		} else {
			sym = db.ClassOwnMember(base.Class(), name)
		}
		result = result.OrFallBackTo(db, func() Symbol { return sym })
		if !result.IsUnbound() && !result.IsPossiblyUnbound() {
			return result
		}
	}
	return result
}

// Member returns the type of the attribute name on a value of type t.
func Member(db Db, t Type, name string) Symbol {
	switch t.kind {
	case KindAny, KindUnknown, KindTodo:
		return BoundSymbol(t)
	case KindNever:
		return BoundSymbol(Never)
	case KindUnion:
		return distributeMember(db, t, func(e Type) Symbol { return Member(db, e, name) })
	case KindIntersection:
		return intersectMember(db, t, func(e Type) Symbol { return Member(db, e, name) })
	case KindInstance:
		return instanceMember(db, t.Class(), t, name)
	case KindClassLiteral:
		return classObjectMember(db, t.Class(), t, name)
	case KindSubclassOf:
		if dyn, ok := t.SubclassOfDynamicBase(); ok {
			return BoundSymbol(dyn)
		}
		return classObjectMember(db, t.Class(), t, name)
	case KindModule:
		m := t.Module()
		sym := db.ModuleMember(m, name)
		if !sym.IsUnbound() {
			return sym
		}
		if c := db.KnownClass(KnownModuleType); c != nil {
			return instanceMember(db, c, t, name)
		}
		return Unbound
	case KindBoundMethod:
		self, _ := t.BoundSelf()
		switch name {
		case "__self__":
			return BoundSymbol(self)
		case "__func__":
			return BoundSymbol(FunctionLiteral(t.Function()))
		}
	}
	if name == "__class__" {
		return BoundSymbol(ToMetaType(db, t))
	}
	c, dyn := nominalClass(db, t)
	if c == nil {
		return BoundSymbol(dyn)
	}
	return instanceMember(db, c, t, name)
}

// nominalClass returns the class whose members a value of type t sees,
// or the dynamic type standing in for it.
func nominalClass(db Db, t Type) (*Class, Type) {
	for {
		switch {
		case t.kind == KindInstance:
			return t.Class(), Type{}
		case t.kind == KindNone:
			if c := db.KnownClass(KnownNoneType); c != nil {
				return c, Type{}
			}
			return nil, Unknown
		case t.IsDynamic():
			return nil, t
		}
		next, ok := fallbackInstance(db, t)
		if !ok || next == t {
			return nil, Unknown
		}
		t = next
	}
}

func instanceMember(db Db, c *Class, self Type, name string) Symbol {
	if name == "__class__" {
		return BoundSymbol(ToMetaType(db, self))
	}
	sym := ClassMember(db, c, name).MapType(func(x Type) Type {
		return bindToInstance(db, x, self)
	})
	if !sym.IsUnbound() && !sym.IsPossiblyUnbound() {
		return sym
	}
	return sym.OrFallBackTo(db, func() Symbol { return db.InstanceAttribute(c, name) })
}

func classObjectMember(db Db, c *Class, self Type, name string) Symbol {
	if name == "__class__" {
		return BoundSymbol(ToMetaType(db, self))
	}
	sym := ClassMember(db, c, name).MapType(func(x Type) Type {
		return bindToClass(db, x, self)
	})
	if !sym.IsUnbound() && !sym.IsPossiblyUnbound() {
		return sym
	}
	return sym.OrFallBackTo(db, func() Symbol {
		meta := ToInstance(db, Metaclass(db, c))
		if meta.IsDynamic() {
			return BoundSymbol(meta)
		}
		if meta.kind != KindInstance {
			return Unbound
		}
		return ClassMember(db, meta.Class(), name).MapType(func(x Type) Type {
			return bindToInstance(db, x, self)
		})
	})
}

// bindToInstance applies the descriptor protocol for attribute access on
// an instance.
func bindToInstance(db Db, x Type, self Type) Type {
	switch x.kind {
	case KindUnion:
		u := NewUnionBuilder(db)
		for _, e := range x.Elements() {
			u.Add(bindToInstance(db, e, self))
		}
		return u.Build()
	case KindFunction:
		f := x.Function()
		switch {
		case f.Has(FunctionStaticMethod):
			return x
		case f.Has(FunctionClassMethod):
			return BoundMethod(db, f, ToMetaType(db, self))
		case f.Has(FunctionProperty):
			if sig := db.FunctionSignature(f); sig != nil {
				return sig.Return
			}
			return Unknown
		}
		return BoundMethod(db, f, self)
	}
	return x
}

// bindToClass applies the descriptor protocol for attribute access on a
// class object.
func bindToClass(db Db, x Type, owner Type) Type {
	switch x.kind {
	case KindUnion:
		u := NewUnionBuilder(db)
		for _, e := range x.Elements() {
			u.Add(bindToClass(db, e, owner))
		}
		return u.Build()
	case KindFunction:
		f := x.Function()
		switch {
		case f.Has(FunctionClassMethod):
			return BoundMethod(db, f, owner)
		case f.Has(FunctionProperty):
			return KnownProperty.Instance(db)
		}
	}
	return x
}

// distributeMember looks a member up on every union element. Elements
// lacking it make the result possibly unbound.
func distributeMember(db Db, t Type, lookup func(Type) Symbol) Symbol {
	u := NewUnionBuilder(db)
	anyDefined, allBound := false, true
	for _, e := range t.Elements() {
		sym := lookup(e)
		if sym.IsUnbound() {
			allBound = false
			continue
		}
		anyDefined = true
		if sym.IsPossiblyUnbound() {
			allBound = false
		}
		u.Add(sym.Type())
	}
	if !anyDefined {
		return Unbound
	}
	if allBound {
		return BoundSymbol(u.Build())
	}
	return PossiblyUnboundSymbol(u.Build())
}

func intersectMember(db Db, t Type, lookup func(Type) Symbol) Symbol {
	b := NewIntersectionBuilder(db)
	found := false
	bound := false
	for _, p := range t.Positive() {
		sym := lookup(p)
		if sym.IsUnbound() {
			continue
		}
		found = true
		if !sym.IsPossiblyUnbound() {
			bound = true
		}
		b.AddPositive(sym.Type())
	}
	if !found {
		return Unbound
	}
	if bound {
		return BoundSymbol(b.Build())
	}
	return PossiblyUnboundSymbol(b.Build())
}

// lookupDunder looks name up on the type of t, skipping instance
// attributes, and binds it to t. Dunder calls go through here.
func lookupDunder(db Db, t Type, name string) Symbol {
	switch t.kind {
	case KindAny, KindUnknown, KindTodo:
		return BoundSymbol(t)
	case KindNever:
		return BoundSymbol(Never)
	case KindUnion:
		return distributeMember(db, t, func(e Type) Symbol { return lookupDunder(db, e, name) })
	case KindIntersection:
		return intersectMember(db, t, func(e Type) Symbol { return lookupDunder(db, e, name) })
	case KindClassLiteral, KindSubclassOf:
		if t.ref == nil {
			return BoundSymbol(Type{kind: Kind(t.num)})
		}
		meta := ToInstance(db, Metaclass(db, t.Class()))
		if meta.IsDynamic() {
			return BoundSymbol(meta)
		}
		if meta.kind != KindInstance {
			return Unbound
		}
		return ClassMember(db, meta.Class(), name).MapType(func(x Type) Type {
			return bindToInstance(db, x, t)
		})
	}
	c, dyn := nominalClass(db, t)
	if c == nil {
		return BoundSymbol(dyn)
	}
	return ClassMember(db, c, name).MapType(func(x Type) Type {
		return bindToInstance(db, x, t)
	})
}
