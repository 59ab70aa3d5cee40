package infer

import (
	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/semantic"
	"github.com/jward/knot/internal/types"
)

func (s *Session) narrowing(ix *semantic.Index, c *semantic.Constraint) narrowing {
	return s.narrowings.Get(constraintKey{ix, c})
}

// computeNarrowing derives, from one guard, the type each guarded name is
// known to have on the guarded path.
func (s *Session) computeNarrowing(k constraintKey) narrowing {
	se := k.ix.Expression(k.constraint.Test)
	if se == nil {
		return nil
	}
	n := &narrower{s: s, region: s.InferExpression(se)}
	return n.narrow(k.constraint.Test, k.constraint.Positive)
}

type narrower struct {
	s      *Session
	region *TypeInference
}

func (n *narrower) typeOf(e ast.Expr) types.Type {
	return n.region.ExpressionType(e)
}

func (n *narrower) narrow(test ast.Expr, positive bool) narrowing {
	switch e := test.(type) {
	case *ast.Compare:
		return n.compare(e, positive)
	case *ast.Call:
		return n.isinstance(e, positive)
	case *ast.UnaryOp:
		if e.Op == ast.Not {
			return n.narrow(e.Operand, !positive)
		}
	case *ast.BoolOp:
		return n.boolOp(e, positive)
	case *ast.NamedExpr:
		return n.narrow(e.Value, positive)
	}
	return nil
}

// compare narrows `x is <singleton>` and `x is not <singleton>`.
func (n *narrower) compare(e *ast.Compare, positive bool) narrowing {
	if len(e.Ops) != 1 {
		return nil
	}
	name, ok := e.Left.(*ast.Name)
	if !ok {
		return nil
	}
	op := e.Ops[0]
	if !positive {
		op = op.Negate()
	}
	rhs := n.typeOf(e.Comparators[0])
	switch op {
	case ast.Is:
		if types.IsSingleton(rhs) {
			return narrowing{name.Ident: rhs}
		}
	case ast.IsNot:
		if types.IsSingleton(rhs) {
			return narrowing{name.Ident: types.Negate(n.s, rhs)}
		}
	case ast.NotEq:
		if rhs.IsNone() {
			return narrowing{name.Ident: types.Negate(n.s, rhs)}
		}
	}
	return nil
}

// isinstance narrows `isinstance(x, C)` and `isinstance(x, (C, D))`.
func (n *narrower) isinstance(e *ast.Call, positive bool) narrowing {
	if len(e.Args) != 2 || len(e.Keywords) != 0 {
		return nil
	}
	fn := n.typeOf(e.Func).Function()
	if n.typeOf(e.Func).Kind() != types.KindFunction || fn == nil || fn.Known != types.KnownIsInstance {
		return nil
	}
	name, ok := e.Args[0].(*ast.Name)
	if !ok {
		return nil
	}
	target, ok := n.classInfo(n.typeOf(e.Args[1]))
	if !ok {
		return nil
	}
	if !positive {
		target = types.Negate(n.s, target)
	}
	return narrowing{name.Ident: target}
}

// classInfo converts the second argument of isinstance to the instance
// type it tests for.
func (n *narrower) classInfo(t types.Type) (types.Type, bool) {
	switch t.Kind() {
	case types.KindClassLiteral:
		return types.Instance(t.Class()), true
	case types.KindTuple:
		u := types.NewUnionBuilder(n.s)
		for _, e := range t.Elements() {
			inst, ok := n.classInfo(e)
			if !ok {
				return types.Type{}, false
			}
			u.Add(inst)
		}
		return u.Build(), true
	}
	return types.Type{}, false
}

// boolOp combines operand narrowings: all of them hold when an `and`
// succeeds or an `or` fails, one of them when an `and` fails or an `or`
// succeeds.
func (n *narrower) boolOp(e *ast.BoolOp, positive bool) narrowing {
	all := (e.Op == ast.And) == positive
	var out narrowing
	for i, v := range e.Values {
		sub := n.narrow(v, positive)
		if i == 0 {
			out = sub
			continue
		}
		if all {
			out = n.intersect(out, sub)
		} else {
			out = n.union(out, sub)
		}
	}
	return out
}

func (n *narrower) intersect(a, b narrowing) narrowing {
	if len(a) == 0 {
		return b
	}
	out := make(narrowing, len(a)+len(b))
	for name, t := range a {
		out[name] = t
	}
	for name, t := range b {
		if prev, ok := out[name]; ok {
			out[name] = types.Intersection(n.s, []types.Type{prev, t}, nil)
			continue
		}
		out[name] = t
	}
	return out
}

// union keeps only names constrained on every path.
func (n *narrower) union(a, b narrowing) narrowing {
	out := make(narrowing)
	for name, t := range a {
		if u, ok := b[name]; ok {
			out[name] = types.Union(n.s, t, u)
		}
	}
	return out
}
