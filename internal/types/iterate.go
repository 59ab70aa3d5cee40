package types

import (
	"fmt"
)

// IterateError explains why a type is not iterable.
type IterateError struct {
	Type   Type
	Reason string
}

func (e *IterateError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("Object of type `%s` is not iterable", e.Type)
	}
	return fmt.Sprintf("Object of type `%s` is not iterable because %s", e.Type, e.Reason)
}

// Iterate returns the element type produced by iterating values of type t.
// The returned type is usable even when err is non-nil.
func Iterate(db Db, t Type) (Type, error) {
	switch t.kind {
	case KindAny, KindUnknown, KindTodo, KindNever:
		return t, nil
	case KindTuple:
		return Union(db, t.Elements()...), nil
	case KindStringLiteral, KindLiteralString:
		return KnownStr.Instance(db), nil
	case KindUnion:
		u := NewUnionBuilder(db)
		var first error
		for _, e := range t.Elements() {
			el, err := Iterate(db, e)
			if err != nil && first == nil {
				first = &IterateError{Type: t}
			}
			u.Add(el)
		}
		return u.Build(), first
	}

	iter := lookupDunder(db, t, "__iter__")
	if !iter.IsUnbound() {
		out := Call(db, iter.Type(), nil)
		if out.Status == CallNotCallable {
			return Unknown, &IterateError{Type: t, Reason: "its `__iter__` attribute is not callable"}
		}
		if iter.IsPossiblyUnbound() {
			return Unknown, &IterateError{Type: t, Reason: "its `__iter__` method is possibly unbound"}
		}
		if out.HasBindingErrors() {
			return Unknown, &IterateError{Type: t, Reason: "its `__iter__` method has an invalid signature"}
		}
		next, found := CallDunder(db, out.Return, "__next__", nil)
		switch {
		case !found:
			return Unknown, &IterateError{Type: t, Reason: fmt.Sprintf(
				"its `__iter__` method returns an object of type `%s`, which has no `__next__` method", out.Return)}
		case next.Status == CallPossiblyUnboundDunder:
			return next.Return, &IterateError{Type: t, Reason: fmt.Sprintf(
				"its `__iter__` method returns an object of type `%s`, which may not have a `__next__` method", out.Return)}
		case next.Status != CallOK:
			return Unknown, &IterateError{Type: t, Reason: fmt.Sprintf(
				"its `__iter__` method returns an object of type `%s`, whose `__next__` method is not callable", out.Return)}
		}
		return next.Return, nil
	}

	// The old sequence protocol: __getitem__ with int indexes.
	get, found := CallDunder(db, t, "__getitem__", Positional(KnownInt.Instance(db)))
	if found && get.Status == CallOK && !get.HasBindingErrors() {
		return get.Return, nil
	}
	if found {
		return Unknown, &IterateError{Type: t, Reason: "it has no `__iter__` method and its `__getitem__` method has an incorrect signature for the old-style iteration protocol"}
	}
	return Unknown, &IterateError{Type: t}
}

// ContextManagerError explains why a type cannot be used in a with
// statement.
type ContextManagerError struct {
	Type   Type
	Reason string
}

func (e *ContextManagerError) Error() string {
	return fmt.Sprintf("Object of type `%s` cannot be used with `with` because %s", e.Type, e.Reason)
}

// EnterContext returns the type bound by `with x as y`: the return type of
// `__enter__`. It also checks that `__exit__` exists.
func EnterContext(db Db, t Type) (Type, error) {
	if t.IsDynamic() || t.kind == KindNever {
		return t, nil
	}
	enter := lookupDunder(db, t, "__enter__")
	exit := lookupDunder(db, t, "__exit__")
	switch {
	case enter.IsUnbound() && exit.IsUnbound():
		return Unknown, &ContextManagerError{Type: t, Reason: "it doesn't implement `__enter__` and `__exit__`"}
	case enter.IsUnbound():
		return Unknown, &ContextManagerError{Type: t, Reason: "it doesn't implement `__enter__`"}
	case exit.IsUnbound():
		return Unknown, &ContextManagerError{Type: t, Reason: "it doesn't implement `__exit__`"}
	}

	out := Call(db, enter.Type(), nil)
	switch {
	case enter.IsPossiblyUnbound():
		return out.Return, &ContextManagerError{Type: t, Reason: "the method `__enter__` is possibly unbound"}
	case out.Status == CallNotCallable:
		return Unknown, &ContextManagerError{Type: t, Reason: "it does not correctly implement `__enter__`"}
	case exit.IsPossiblyUnbound():
		return out.Return, &ContextManagerError{Type: t, Reason: "the method `__exit__` is possibly unbound"}
	}
	ex := Call(db, exit.Type(), Positional(None, None, None))
	if ex.Status == CallNotCallable {
		return out.Return, &ContextManagerError{Type: t, Reason: "it does not correctly implement `__exit__`"}
	}
	return out.Return, nil
}

// BoolChain folds the operand types of an `and` or `or` chain. Operands
// whose truthiness settles the chain end it; the result is the union of
// the values the chain can produce. Callers still infer every operand.
func BoolChain(db Db, isAnd bool, operands []Type) Type {
	u := NewUnionBuilder(db)
	for i, t := range operands {
		last := i == len(operands)-1
		truth := Bool(db, t)
		if last {
			u.Add(t)
			break
		}
		// The chain stops at a falsy operand for `and`, a truthy one for `or`.
		stops := AlwaysFalse
		if !isAnd {
			stops = AlwaysTrue
		}
		switch truth {
		case stops:
			u.Add(t)
			return u.Build()
		case Ambiguous:
			u.Add(narrowTruth(db, t, stops))
		}
	}
	return u.Build()
}

// narrowTruth keeps the part of t with the given truthiness. Only bool
// is narrowed exactly; other types are returned unchanged.
func narrowTruth(db Db, t Type, want Truthiness) Type {
	if t.IsInstanceOf(KnownBool) {
		return BoolLiteral(want == AlwaysTrue)
	}
	if t.kind == KindUnion {
		u := NewUnionBuilder(db)
		for _, e := range t.Elements() {
			if b := Bool(db, e); b == Ambiguous || b == want {
				u.Add(narrowTruth(db, e, want))
			}
		}
		return u.Build()
	}
	return t
}
