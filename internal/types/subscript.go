package types

import (
	"errors"
	"fmt"

	"github.com/jward/knot/internal/diag"
)

var errZeroStep = errors.New("slice step size can not be zero")

// Subscript infers value[index]. Issues are reported against the
// subscripted value.
func Subscript(db Db, value, index Type) (Type, []Issue) {
	switch value.kind {
	case KindAny, KindUnknown, KindTodo:
		return value, nil
	case KindNever:
		return Never, nil
	case KindUnion:
		u := NewUnionBuilder(db)
		var issues []Issue
		for _, e := range value.Elements() {
			t, is := Subscript(db, e, index)
			u.Add(t)
			issues = append(issues, is...)
		}
		return u.Build(), issues
	case KindKnownInstance:
		if value.KnownInstance().Kind.IsSpecialForm() {
			return Todo, nil
		}
	}
	if index.kind == KindBoolLiteral {
		switch value.kind {
		case KindTuple, KindStringLiteral, KindBytesLiteral:
			return Subscript(db, value, IntLiteral(index.num))
		}
	}

	switch {
	case value.kind == KindTuple && index.kind == KindIntLiteral:
		elems := value.Elements()
		if i, ok := pyIndex(len(elems), index.num); ok {
			return elems[i], nil
		}
		return Unknown, []Issue{outOfBounds("tuple", value, len(elems), index.num)}
	case value.kind == KindTuple && index.kind == KindSliceLiteral:
		elems := value.Elements()
		idx, err := pySlice(len(elems), index)
		if err != nil {
			return Unknown, []Issue{zeroStep()}
		}
		out := make([]Type, len(idx))
		for i, j := range idx {
			out[i] = elems[j]
		}
		return Tuple(db, out...), nil
	case value.kind == KindStringLiteral && index.kind == KindIntLiteral:
		chars := []rune(value.str)
		if i, ok := pyIndex(len(chars), index.num); ok {
			return StringLiteral(string(chars[i])), nil
		}
		return Unknown, []Issue{outOfBounds("string", value, len(chars), index.num)}
	case value.kind == KindStringLiteral && index.kind == KindSliceLiteral:
		chars := []rune(value.str)
		idx, err := pySlice(len(chars), index)
		if err != nil {
			return Unknown, []Issue{zeroStep()}
		}
		out := make([]rune, len(idx))
		for i, j := range idx {
			out[i] = chars[j]
		}
		return StringLiteral(string(out)), nil
	case value.kind == KindBytesLiteral && index.kind == KindIntLiteral:
		if i, ok := pyIndex(len(value.str), index.num); ok {
			return IntLiteral(int64(value.str[i])), nil
		}
		return Unknown, []Issue{outOfBounds("bytes literal", value, len(value.str), index.num)}
	case value.kind == KindBytesLiteral && index.kind == KindSliceLiteral:
		idx, err := pySlice(len(value.str), index)
		if err != nil {
			return Unknown, []Issue{zeroStep()}
		}
		out := make([]byte, len(idx))
		for i, j := range idx {
			out[i] = value.str[j]
		}
		return BytesLiteral(string(out)), nil
	}

	sym := lookupDunder(db, value, "__getitem__")
	if !sym.IsUnbound() {
		var issues []Issue
		if sym.IsPossiblyUnbound() {
			issues = append(issues, Issue{
				Lint:    diag.CallPossiblyUnboundMethod,
				Message: fmt.Sprintf("Method `__getitem__` of type `%s` is possibly unbound", value),
				Arg:     -1,
			})
		}
		out := Call(db, sym.Type(), Positional(index))
		if out.Status == CallNotCallable {
			issues = append(issues, Issue{
				Lint:    diag.CallNonCallable,
				Message: fmt.Sprintf("Method `__getitem__` of type `%s` is not callable on object of type `%s`", sym.Type(), value),
				Arg:     -1,
			})
			return Unknown, issues
		}
		issues = append(issues, out.Issues...)
		return out.Return, issues
	}

	if IsSubtypeOf(db, value, KnownType.Instance(db)) || value.kind == KindClassLiteral || value.kind == KindSubclassOf {
		cg := Member(db, value, "__class_getitem__")
		if !cg.IsUnbound() {
			return Todo, nil
		}
		if value.IsClassLiteralOf(KnownType) {
			return Todo, nil
		}
		if value.kind == KindClassLiteral && isGenericBuiltin(value.Class().Known) {
			return Todo, nil
		}
		return Unknown, []Issue{nonSubscriptable(value, "__class_getitem__")}
	}
	return Unknown, []Issue{nonSubscriptable(value, "__getitem__")}
}

// isGenericBuiltin reports builtin classes that accept type arguments.
func isGenericBuiltin(k KnownClass) bool {
	switch k {
	case KnownTuple, KnownList, KnownDict, KnownSet, KnownFrozenSet, KnownType:
		return true
	}
	return false
}

func outOfBounds(kind string, value Type, length int, index int64) Issue {
	return Issue{
		Lint:    diag.IndexOutOfBounds,
		Message: fmt.Sprintf("Index %d is out of bounds for %s `%s` with length %d", index, kind, value, length),
		Arg:     -1,
	}
}

func zeroStep() Issue {
	return Issue{Lint: diag.ZeroStepsizeInSlice, Message: "Slice step size can not be zero", Arg: -1}
}

func nonSubscriptable(value Type, method string) Issue {
	return Issue{
		Lint:    diag.NonSubscriptable,
		Message: fmt.Sprintf("Cannot subscript object of type `%s` with no `%s` method", value, method),
		Arg:     -1,
	}
}

// pyIndex normalizes a Python index into a sequence of length n.
func pyIndex(n int, i int64) (int, bool) {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, false
	}
	return int(i), true
}

// pySlice returns the indices selected by a slice literal applied to a
// sequence of length n.
func pySlice(n int, s Type) ([]int, error) {
	start, stop, step, _ := s.SliceBounds()
	st := int64(1)
	if step != nil {
		st = *step
	}
	if st == 0 {
		return nil, errZeroStep
	}
	length := int64(n)
	clamp := func(p *int64, def, lo, hi int64) int64 {
		if p == nil {
			return def
		}
		v := *p
		if v < 0 {
			v += length
		}
		return max(lo, min(v, hi))
	}

	var out []int
	if st > 0 {
		from := clamp(start, 0, 0, length)
		to := clamp(stop, length, 0, length)
		for i := from; i < to; i += st {
			out = append(out, int(i))
			if st >= to-i {
				break
			}
		}
		return out, nil
	}
	from := clamp(start, length-1, -1, length-1)
	to := clamp(stop, -1, -1, length-1)
	for i := from; i > to; i += st {
		out = append(out, int(i))
		if st <= to-i {
			break
		}
	}
	return out, nil
}
