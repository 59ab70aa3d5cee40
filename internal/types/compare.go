package types

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jward/knot/internal/ast"
)

// CompareError reports a comparison that is not supported between two
// (possibly nested) operand types.
type CompareError struct {
	Op          ast.CmpOp
	Left, Right Type
}

func (e *CompareError) Error() string {
	return fmt.Sprintf("Operator `%s` is not supported for types `%s` and `%s`", e.Op, e.Left, e.Right)
}

var richDunders = map[ast.CmpOp]string{
	ast.Eq:    "__eq__",
	ast.NotEq: "__ne__",
	ast.Lt:    "__lt__",
	ast.LtE:   "__le__",
	ast.Gt:    "__gt__",
	ast.GtE:   "__ge__",
}

// reflectCmp returns the operator the right operand's dunder implements.
func reflectCmp(op ast.CmpOp) ast.CmpOp {
	switch op {
	case ast.Lt:
		return ast.Gt
	case ast.LtE:
		return ast.GtE
	case ast.Gt:
		return ast.Lt
	case ast.GtE:
		return ast.LtE
	}
	return op
}

// Compare infers `left op right` for one link of a comparison chain.
func Compare(db Db, left Type, op ast.CmpOp, right Type) (Type, error) {
	if left.kind == KindNever || right.kind == KindNever {
		return Never, nil
	}
	if dyn, ok := dynamicJoin(left, right); ok {
		if op == ast.Is || op == ast.IsNot {
			return KnownBool.Instance(db), nil
		}
		return dyn, nil
	}

	switch {
	case left.kind == KindUnion:
		return distributeCompare(db, left.Elements(), func(e Type) (Type, error) { return Compare(db, e, op, right) })
	case right.kind == KindUnion:
		return distributeCompare(db, right.Elements(), func(e Type) (Type, error) { return Compare(db, left, op, e) })
	case left.kind == KindIntersection:
		return compareIntersection(db, left, op, right, true)
	case right.kind == KindIntersection:
		return compareIntersection(db, right, op, left, false)
	}

	if isIntLike(left) && isIntLike(right) {
		return compareOrdered(db, op, cmpInt(left.num, right.num), left.num == right.num, left, right)
	}
	switch {
	case left.kind == KindIntLiteral && right.kind == KindInstance:
		return Compare(db, KnownInt.Instance(db), op, right)
	case left.kind == KindInstance && right.kind == KindIntLiteral:
		return Compare(db, left, op, KnownInt.Instance(db))
	case left.kind == KindStringLiteral && right.kind == KindStringLiteral:
		if op == ast.In || op == ast.NotIn {
			return BoolLiteral(strings.Contains(right.str, left.str) == (op == ast.In)), nil
		}
		return compareOrdered(db, op, strings.Compare(left.str, right.str), left.str == right.str, left, right)
	case left.kind == KindStringLiteral || left.kind == KindLiteralString:
		return Compare(db, KnownStr.Instance(db), op, right)
	case right.kind == KindStringLiteral || right.kind == KindLiteralString:
		return Compare(db, left, op, KnownStr.Instance(db))
	case left.kind == KindBytesLiteral && right.kind == KindBytesLiteral:
		if op == ast.In || op == ast.NotIn {
			return BoolLiteral(bytes.Contains([]byte(right.str), []byte(left.str)) == (op == ast.In)), nil
		}
		return compareOrdered(db, op, strings.Compare(left.str, right.str), left.str == right.str, left, right)
	case left.kind == KindBytesLiteral:
		return Compare(db, KnownBytes.Instance(db), op, right)
	case right.kind == KindBytesLiteral:
		return Compare(db, left, op, KnownBytes.Instance(db))
	case left.kind == KindTuple && right.kind == KindTuple:
		return compareTuples(db, left, op, right)
	}

	switch op {
	case ast.Is, ast.IsNot:
		return identity(db, left, op, right), nil
	case ast.In, ast.NotIn:
		return membership(db, left, op, right)
	}
	return richCompare(db, left, op, right)
}

func distributeCompare(db Db, elems []Type, f func(Type) (Type, error)) (Type, error) {
	u := NewUnionBuilder(db)
	for _, e := range elems {
		t, err := f(e)
		if err != nil {
			return Unknown, err
		}
		u.Add(t)
	}
	return u.Build(), nil
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareOrdered answers comparisons between two literals. Identity of
// equal literals is not guaranteed, so `is` between equal values is bool.
func compareOrdered(db Db, op ast.CmpOp, c int, equal bool, left, right Type) (Type, error) {
	switch op {
	case ast.Eq:
		return BoolLiteral(c == 0), nil
	case ast.NotEq:
		return BoolLiteral(c != 0), nil
	case ast.Lt:
		return BoolLiteral(c < 0), nil
	case ast.LtE:
		return BoolLiteral(c <= 0), nil
	case ast.Gt:
		return BoolLiteral(c > 0), nil
	case ast.GtE:
		return BoolLiteral(c >= 0), nil
	case ast.Is:
		if equal {
			return KnownBool.Instance(db), nil
		}
		return BoolLiteral(false), nil
	case ast.IsNot:
		if equal {
			return KnownBool.Instance(db), nil
		}
		return BoolLiteral(true), nil
	}
	return Unknown, &CompareError{Op: op, Left: left, Right: right}
}

func identity(db Db, left Type, op ast.CmpOp, right Type) Type {
	is := op == ast.Is
	if IsDisjointFrom(db, left, right) {
		return BoolLiteral(!is)
	}
	if IsSingleton(left) && IsEquivalentTo(db, left, right) {
		return BoolLiteral(is)
	}
	return KnownBool.Instance(db)
}

// richCompare dispatches to the comparison dunders. `==` and `!=` fall
// back to identity and always succeed.
func richCompare(db Db, left Type, op ast.CmpOp, right Type) (Type, error) {
	call := func(op ast.CmpOp, l, r Type) (Type, bool) {
		sym := lookupDunder(db, l, richDunders[op])
		if sym.IsUnbound() || sym.IsPossiblyUnbound() {
			return Type{}, false
		}
		out := Call(db, sym.Type(), Positional(r))
		if out.Status != CallOK || out.HasBindingErrors() {
			return Type{}, false
		}
		return out.Return, true
	}
	first, second := func() (Type, bool) { return call(op, left, right) },
		func() (Type, bool) { return call(reflectCmp(op), right, left) }
	if left != right && IsSubtypeOf(db, right, left) {
		first, second = second, first
	}
	if t, ok := first(); ok {
		return t, nil
	}
	if t, ok := second(); ok {
		return t, nil
	}
	if op == ast.Eq || op == ast.NotEq {
		return KnownBool.Instance(db), nil
	}
	return Unknown, &CompareError{Op: op, Left: left, Right: right}
}

// membership infers `left in right` via __contains__, else iteration.
func membership(db Db, left Type, op ast.CmpOp, right Type) (Type, error) {
	var result Type
	sym := lookupDunder(db, right, "__contains__")
	if !sym.IsUnbound() && !sym.IsPossiblyUnbound() {
		out := Call(db, sym.Type(), Positional(left))
		if out.Status != CallOK {
			return Unknown, &CompareError{Op: op, Left: left, Right: right}
		}
		result = out.Return
	} else if _, err := Iterate(db, right); err == nil {
		result = KnownBool.Instance(db)
	} else {
		return Unknown, &CompareError{Op: op, Left: left, Right: right}
	}
	if result.kind == KindTodo {
		return result, nil
	}
	truth := Bool(db, result)
	if op == ast.NotIn {
		truth = truth.Negate()
	}
	return truth.Type(db), nil
}

func compareTuples(db Db, left Type, op ast.CmpOp, right Type) (Type, error) {
	le, re := left.Elements(), right.Elements()
	switch op {
	case ast.In, ast.NotIn:
		eq, notEq := 0, 0
		for _, e := range re {
			r, _ := Compare(db, left, ast.Eq, e)
			if r.kind == KindTodo {
				return r, nil
			}
			switch Bool(db, r) {
			case AlwaysTrue:
				eq++
			case AlwaysFalse:
				notEq++
			}
		}
		switch {
		case eq > 0:
			return BoolLiteral(op == ast.In), nil
		case notEq == len(re):
			return BoolLiteral(op == ast.NotIn), nil
		}
		return KnownBool.Instance(db), nil
	case ast.Is, ast.IsNot:
		r, err := tupleRichCompare(db, le, ast.Eq, re)
		if err != nil {
			return Unknown, err
		}
		if r.kind == KindTodo {
			return r, nil
		}
		if Bool(db, r) == AlwaysFalse {
			return BoolLiteral(op == ast.IsNot), nil
		}
		return KnownBool.Instance(db), nil
	}
	return tupleRichCompare(db, le, op, re)
}

// tupleRichCompare compares tuples lexicographically. Pairs whose equality
// is ambiguous contribute their own comparison result and continue.
func tupleRichCompare(db Db, left []Type, op ast.CmpOp, right []Type) (Type, error) {
	u := NewUnionBuilder(db)
	for i := 0; i < len(left) && i < len(right); i++ {
		l, r := left[i], right[i]
		eq, _ := Compare(db, l, ast.Eq, r)
		if eq.kind == KindTodo {
			return eq, nil
		}
		truth := Bool(db, eq)
		if truth == AlwaysTrue {
			continue
		}
		var pairwise Type
		switch op {
		case ast.Eq:
			pairwise = BoolLiteral(false)
		case ast.NotEq:
			pairwise = BoolLiteral(true)
		default:
			t, err := Compare(db, l, op, r)
			if err != nil {
				return Unknown, err
			}
			pairwise = t
		}
		u.Add(pairwise)
		if truth == AlwaysFalse {
			return u.Build(), nil
		}
	}
	t, _ := compareOrdered(db, op, cmpInt(int64(len(left)), int64(len(right))), false, Never, Never)
	u.Add(t)
	return u.Build(), nil
}

// compareIntersection compares an intersection with other. onLeft says
// which side of the operator the intersection is on.
func compareIntersection(db Db, inter Type, op ast.CmpOp, other Type, onLeft bool) (Type, error) {
	cmp := func(t Type) (Type, error) {
		if onLeft {
			return Compare(db, t, op, other)
		}
		return Compare(db, other, op, t)
	}
	for _, p := range inter.Positive() {
		r, err := cmp(p)
		if err != nil {
			return Unknown, err
		}
		if r.kind == KindBoolLiteral {
			return r, nil
		}
	}
	for _, n := range inter.Negative() {
		r, err := cmp(n)
		if err != nil {
			continue
		}
		if v, ok := r.BoolValue(); ok {
			if op == ast.Is && v {
				return BoolLiteral(false), nil
			}
			if op == ast.IsNot && !v {
				return BoolLiteral(true), nil
			}
		}
	}
	b := NewIntersectionBuilder(db)
	for _, p := range inter.Positive() {
		r, err := cmp(p)
		if err != nil {
			return Unknown, err
		}
		b.AddPositive(r)
	}
	return b.Build(), nil
}
