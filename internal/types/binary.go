package types

import (
	"math"
	"math/bits"
	"strings"

	"github.com/jward/knot/internal/ast"
)

var binaryDunders = [...]string{
	ast.Add:      "add",
	ast.Sub:      "sub",
	ast.Mult:     "mul",
	ast.MatMult:  "matmul",
	ast.Div:      "truediv",
	ast.Mod:      "mod",
	ast.Pow:      "pow",
	ast.LShift:   "lshift",
	ast.RShift:   "rshift",
	ast.BitOr:    "or",
	ast.BitXor:   "xor",
	ast.BitAnd:   "and",
	ast.FloorDiv: "floordiv",
}

// Dunder returns the forward dunder of op, e.g. __add__.
func Dunder(op ast.Operator) string { return "__" + binaryDunders[op] + "__" }

// ReflectedDunder returns e.g. __radd__.
func ReflectedDunder(op ast.Operator) string { return "__r" + binaryDunders[op] + "__" }

// InPlaceDunder returns e.g. __iadd__.
func InPlaceDunder(op ast.Operator) string { return "__i" + binaryDunders[op] + "__" }

// dynamicJoin returns the dynamic type that absorbs a binary operation:
// Any wins over Unknown, which wins over Todo.
func dynamicJoin(a, b Type) (Type, bool) {
	switch {
	case a.kind == KindAny || b.kind == KindAny:
		return Any, true
	case a.kind == KindUnknown || b.kind == KindUnknown:
		return Unknown, true
	case a.kind == KindTodo || b.kind == KindTodo:
		return Todo, true
	}
	return Type{}, false
}

// BinaryOp infers left <op> right. ok is false when the operation is not
// supported for the operand types.
func BinaryOp(db Db, left Type, op ast.Operator, right Type) (Type, bool) {
	if left.kind == KindNever || right.kind == KindNever {
		return Never, true
	}
	if dyn, ok := dynamicJoin(left, right); ok {
		return dyn, true
	}
	if left.kind == KindUnion {
		return distributeBinary(db, left.Elements(), func(e Type) (Type, bool) { return BinaryOp(db, e, op, right) })
	}
	if right.kind == KindUnion {
		return distributeBinary(db, right.Elements(), func(e Type) (Type, bool) { return BinaryOp(db, left, op, e) })
	}
	if t, ok := literalBinary(db, left, op, right); ok {
		return t, true
	}
	return dunderBinary(db, left, op, right)
}

func distributeBinary(db Db, elems []Type, f func(Type) (Type, bool)) (Type, bool) {
	u := NewUnionBuilder(db)
	for _, e := range elems {
		t, ok := f(e)
		if !ok {
			return Unknown, false
		}
		u.Add(t)
	}
	return u.Build(), true
}

// literalBinary evaluates operations whose result is exactly known.
func literalBinary(db Db, left Type, op ast.Operator, right Type) (Type, bool) {
	if left.kind == KindBoolLiteral && right.kind == KindBoolLiteral {
		l, r := left.num != 0, right.num != 0
		switch op {
		case ast.BitOr:
			return BoolLiteral(l || r), true
		case ast.BitAnd:
			return BoolLiteral(l && r), true
		case ast.BitXor:
			return BoolLiteral(l != r), true
		}
	}
	if isIntLike(left) && isIntLike(right) {
		return intBinary(db, left.num, op, right.num)
	}

	switch {
	case isStringLike(left) && isStringLike(right) && op == ast.Add:
		if left.kind == KindStringLiteral && right.kind == KindStringLiteral {
			return StringLiteral(left.str + right.str), true
		}
		return LiteralString, true
	case op == ast.Mult && isStringLike(left) && isIntLike(right):
		return repeatString(left, right.num), true
	case op == ast.Mult && isIntLike(left) && isStringLike(right):
		return repeatString(right, left.num), true
	case left.kind == KindBytesLiteral && right.kind == KindBytesLiteral && op == ast.Add:
		return bytesLiteral(db, left.str+right.str), true
	case op == ast.Mult && left.kind == KindBytesLiteral && isIntLike(right):
		return repeatBytes(db, left.str, right.num), true
	case op == ast.Mult && isIntLike(left) && right.kind == KindBytesLiteral:
		return repeatBytes(db, right.str, left.num), true
	case left.kind == KindTuple && right.kind == KindTuple && op == ast.Add:
		elems := append(append([]Type(nil), left.Elements()...), right.Elements()...)
		return Tuple(db, elems...), true
	}
	return Type{}, false
}

func isIntLike(t Type) bool { return t.kind == KindIntLiteral || t.kind == KindBoolLiteral }

func isStringLike(t Type) bool { return t.kind == KindStringLiteral || t.kind == KindLiteralString }

func repeatString(s Type, n int64) Type {
	if n < 1 {
		return StringLiteral("")
	}
	if s.kind == KindLiteralString {
		return LiteralString
	}
	if len(s.str) == 0 {
		return s
	}
	if n > MaxLiteralLength || int64(len(s.str))*n > MaxLiteralLength {
		return LiteralString
	}
	return StringLiteral(strings.Repeat(s.str, int(n)))
}

// bytesLiteral widens long results to bytes.
func bytesLiteral(db Db, s string) Type {
	if len(s) > MaxLiteralLength {
		return KnownBytes.Instance(db)
	}
	return BytesLiteral(s)
}

func repeatBytes(db Db, s string, n int64) Type {
	if n < 1 {
		return BytesLiteral("")
	}
	if len(s) == 0 {
		return BytesLiteral("")
	}
	if n > MaxLiteralLength || int64(len(s))*n > MaxLiteralLength {
		return KnownBytes.Instance(db)
	}
	return BytesLiteral(strings.Repeat(s, int(n)))
}

// intBinary folds integer arithmetic with Python semantics. Overflow of
// int64 widens to int.
func intBinary(db Db, n int64, op ast.Operator, m int64) (Type, bool) {
	intType := KnownInt.Instance(db)
	widen := func(v int64, ok bool) (Type, bool) {
		if !ok {
			return intType, true
		}
		return IntLiteral(v), true
	}
	switch op {
	case ast.Add:
		return widen(addInt64(n, m))
	case ast.Sub:
		return widen(subInt64(n, m))
	case ast.Mult:
		return widen(mulInt64(n, m))
	case ast.Div:
		return KnownFloat.Instance(db), true
	case ast.FloorDiv:
		if m == 0 || (n == math.MinInt64 && m == -1) {
			return intType, true
		}
		q, r := n/m, n%m
		if r != 0 && (n < 0) != (m < 0) {
			q--
		}
		return IntLiteral(q), true
	case ast.Mod:
		if m == 0 {
			return intType, true
		}
		if m == -1 {
			return IntLiteral(0), true
		}
		r := n % m
		if r != 0 && (r < 0) != (m < 0) {
			r += m
		}
		return IntLiteral(r), true
	case ast.Pow:
		if m < 0 {
			return KnownFloat.Instance(db), true
		}
		return widen(powInt64(n, m))
	case ast.BitAnd:
		return IntLiteral(n & m), true
	case ast.BitOr:
		return IntLiteral(n | m), true
	case ast.BitXor:
		return IntLiteral(n ^ m), true
	case ast.LShift:
		if m < 0 {
			return intType, true
		}
		if n == 0 {
			return IntLiteral(0), true
		}
		if m >= 63 {
			return intType, true
		}
		v := n << uint(m)
		if v>>uint(m) != n {
			return intType, true
		}
		return IntLiteral(v), true
	case ast.RShift:
		if m < 0 {
			return intType, true
		}
		if m >= 63 {
			if n < 0 {
				return IntLiteral(-1), true
			}
			return IntLiteral(0), true
		}
		return IntLiteral(n >> uint(m)), true
	}
	return Type{}, false
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	return c, (c > a) == (b > 0)
}

func subInt64(a, b int64) (int64, bool) {
	c := a - b
	return c, (c < a) == (b > 0)
}

func mulInt64(a, b int64) (int64, bool) {
	hi, lo := bits.Mul64(absUint64(a), absUint64(b))
	if hi != 0 {
		return 0, false
	}
	if (a < 0) != (b < 0) {
		if lo > 1<<63 {
			return 0, false
		}
		return -int64(lo), true
	}
	if lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

// absUint64 is |a|; it is exact for math.MinInt64.
func absUint64(a int64) uint64 {
	if a < 0 {
		return uint64(-a)
	}
	return uint64(a)
}

func powInt64(base, exp int64) (int64, bool) {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			var ok bool
			if result, ok = mulInt64(result, base); !ok {
				return 0, false
			}
		}
		exp >>= 1
		if exp > 0 {
			var ok bool
			if base, ok = mulInt64(base, base); !ok {
				return 0, false
			}
		}
	}
	return result, true
}

// dunderBinary dispatches to __op__ on the left operand, or __rop__ on the
// right. A right operand whose type is a proper subtype of the left and
// overrides the reflected dunder is asked first.
func dunderBinary(db Db, left Type, op ast.Operator, right Type) (Type, bool) {
	forward, reflected := Dunder(op), ReflectedDunder(op)

	if left != right && IsSubtypeOf(db, right, left) && overridesReflected(db, left, right, reflected) {
		if out, found := CallDunder(db, right, reflected, Positional(left)); dunderSucceeds(out, found) {
			return out.Return, true
		}
	}
	if out, found := CallDunder(db, left, forward, Positional(right)); dunderSucceeds(out, found) {
		return out.Return, true
	}
	if out, found := CallDunder(db, right, reflected, Positional(left)); dunderSucceeds(out, found) {
		return out.Return, true
	}
	return Unknown, false
}

func overridesReflected(db Db, left, right Type, name string) bool {
	lc, _ := nominalClass(db, left)
	rc, _ := nominalClass(db, right)
	if lc == nil || rc == nil || lc == rc {
		return false
	}
	return ClassMember(db, rc, name).Type() != ClassMember(db, lc, name).Type()
}

// AugmentedOp infers `left op= right`: the in-place dunder when present,
// else the plain binary operator. A possibly unbound in-place dunder
// unions both outcomes.
func AugmentedOp(db Db, left Type, op ast.Operator, right Type) (Type, bool) {
	if left.kind == KindInstance {
		sym := lookupDunder(db, left, InPlaceDunder(op))
		if !sym.IsUnbound() {
			out := Call(db, sym.Type(), Positional(right))
			if out.Status == CallOK && !out.HasBindingErrors() {
				if !sym.IsPossiblyUnbound() {
					return out.Return, true
				}
				if t, ok := BinaryOp(db, left, op, right); ok {
					return Union(db, out.Return, t), true
				}
				return out.Return, true
			}
		}
	}
	return BinaryOp(db, left, op, right)
}
