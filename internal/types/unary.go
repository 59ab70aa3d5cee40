package types

import (
	"math"

	"github.com/jward/knot/internal/ast"
)

var unaryDunders = map[ast.UnaryOperator]string{
	ast.Invert: "__invert__",
	ast.UAdd:   "__pos__",
	ast.USub:   "__neg__",
}

// UnaryOp infers `op operand`. ok is false when the operand does not
// support the operator.
func UnaryOp(db Db, op ast.UnaryOperator, operand Type) (Type, bool) {
	if op == ast.Not {
		return Bool(db, operand).Negate().Type(db), true
	}
	switch operand.kind {
	case KindAny, KindUnknown, KindTodo, KindNever:
		return operand, true
	case KindUnion:
		u := NewUnionBuilder(db)
		for _, e := range operand.Elements() {
			t, ok := UnaryOp(db, op, e)
			if !ok {
				return Unknown, false
			}
			u.Add(t)
		}
		return u.Build(), true
	case KindBoolLiteral:
		return UnaryOp(db, op, IntLiteral(operand.num))
	case KindIntLiteral:
		n := operand.num
		switch op {
		case ast.UAdd:
			return operand, true
		case ast.USub:
			if n == math.MinInt64 {
				return KnownInt.Instance(db), true
			}
			return IntLiteral(-n), true
		case ast.Invert:
			return IntLiteral(^n), true
		}
	}

	out, found := CallDunder(db, operand, unaryDunders[op], nil)
	if !dunderSucceeds(out, found) {
		return Unknown, false
	}
	return out.Return, true
}
