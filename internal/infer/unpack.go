package infer

import (
	"fmt"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/types"
)

func starredIndex(elts []ast.Expr) int {
	for i, e := range elts {
		if _, ok := e.(*ast.Starred); ok {
			return i
		}
	}
	return -1
}

// unpack distributes value over the target elements elts. The returned
// message is non-empty when the value has the wrong number of elements.
func unpack(db types.Db, elts []ast.Expr, value types.Type) ([]types.Type, string) {
	n := len(elts)
	star := starredIndex(elts)
	parts := make([]types.Type, n)
	fill := func(t types.Type) {
		for i := range parts {
			parts[i] = t
		}
		if star >= 0 {
			parts[star] = types.KnownList.Instance(db)
		}
	}

	var exact []types.Type
	switch value.Kind() {
	case types.KindTuple:
		exact = value.Elements()
	case types.KindStringLiteral:
		s, _ := value.StringValue()
		for _, r := range s {
			exact = append(exact, types.StringLiteral(string(r)))
		}
	case types.KindUnion:
		return unpackUnion(db, elts, value)
	default:
		elem, _ := types.Iterate(db, value)
		fill(elem)
		return parts, ""
	}

	m := len(exact)
	if star < 0 {
		if m != n {
			fill(types.Unknown)
			if m > n {
				return parts, fmt.Sprintf("Too many values to unpack (expected %d, got %d)", n, m)
			}
			return parts, fmt.Sprintf("Not enough values to unpack (expected %d, got %d)", n, m)
		}
		copy(parts, exact)
		return parts, ""
	}
	if m < n-1 {
		fill(types.Unknown)
		return parts, fmt.Sprintf("Not enough values to unpack (expected %d or more, got %d)", n-1, m)
	}
	suffix := n - 1 - star
	copy(parts[:star], exact[:star])
	copy(parts[star+1:], exact[m-suffix:])
	parts[star] = types.KnownList.Instance(db)
	return parts, ""
}

func unpackUnion(db types.Db, elts []ast.Expr, value types.Type) ([]types.Type, string) {
	builders := make([]*types.UnionBuilder, len(elts))
	for i := range builders {
		builders[i] = types.NewUnionBuilder(db)
	}
	var msg string
	for _, e := range value.Elements() {
		parts, m := unpack(db, elts, e)
		if msg == "" {
			msg = m
		}
		for i, p := range parts {
			builders[i].Add(p)
		}
	}
	out := make([]types.Type, len(elts))
	for i, u := range builders {
		out[i] = u.Build()
	}
	return out, msg
}

// unpackTo returns the type assigned to the name want somewhere inside
// target when value is assigned to the whole target.
func unpackTo(db types.Db, target ast.Expr, value types.Type, want ast.Node) (types.Type, bool) {
	switch t := target.(type) {
	case *ast.Name:
		if ast.Node(t) == want {
			return value, true
		}
	case *ast.Starred:
		return unpackTo(db, t.Value, value, want)
	case *ast.Tuple:
		return unpackElements(db, t.Elts, value, want)
	case *ast.List:
		return unpackElements(db, t.Elts, value, want)
	}
	return types.Type{}, false
}

func unpackElements(db types.Db, elts []ast.Expr, value types.Type, want ast.Node) (types.Type, bool) {
	parts, _ := unpack(db, elts, value)
	for i, e := range elts {
		if t, ok := unpackTo(db, e, parts[i], want); ok {
			return t, true
		}
	}
	return types.Type{}, false
}
