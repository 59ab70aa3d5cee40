package types

import (
	"strconv"
	"strings"
)

// String renders t the way diagnostics show it.
func (t Type) String() string {
	var b strings.Builder
	writeType(&b, t)
	return b.String()
}

func writeType(b *strings.Builder, t Type) {
	switch t.kind {
	case KindNever:
		b.WriteString("Never")
	case KindAny:
		b.WriteString("Any")
	case KindUnknown:
		b.WriteString("Unknown")
	case KindTodo:
		b.WriteString("@Todo")
	case KindNone:
		b.WriteString("None")
	case KindBoolLiteral, KindIntLiteral, KindStringLiteral, KindBytesLiteral:
		b.WriteString("Literal[")
		writeLiteralValue(b, t)
		b.WriteByte(']')
	case KindLiteralString:
		b.WriteString("LiteralString")
	case KindSliceLiteral:
		start, stop, step, _ := t.SliceBounds()
		b.WriteString("slice[")
		for i, p := range []*int64{start, stop, step} {
			if i > 0 {
				b.WriteString(", ")
			}
			if p == nil {
				b.WriteString("None")
			} else {
				writeType(b, IntLiteral(*p))
			}
		}
		b.WriteByte(']')
	case KindTuple:
		elems := t.Elements()
		b.WriteString("tuple[")
		if len(elems) == 0 {
			b.WriteString("()")
		}
		for i, e := range elems {
			if i > 0 {
				b.WriteString(", ")
			}
			writeType(b, e)
		}
		b.WriteByte(']')
	case KindUnion:
		writeUnion(b, t.Elements())
	case KindIntersection:
		writeIntersection(b, t)
	case KindFunction:
		b.WriteString("Literal[")
		b.WriteString(t.Function().Name)
		b.WriteByte(']')
	case KindBoundMethod:
		self, _ := t.BoundSelf()
		b.WriteString("<bound method `")
		b.WriteString(t.Function().Name)
		b.WriteString("` of `")
		writeType(b, self)
		b.WriteString("`>")
	case KindClassLiteral:
		b.WriteString("Literal[")
		b.WriteString(t.Class().Name)
		b.WriteByte(']')
	case KindSubclassOf:
		b.WriteString("type[")
		if dyn, ok := t.SubclassOfDynamicBase(); ok {
			writeType(b, dyn)
		} else {
			b.WriteString(t.Class().Name)
		}
		b.WriteByte(']')
	case KindInstance:
		b.WriteString(t.Class().Name)
	case KindModule:
		b.WriteString("<module '")
		b.WriteString(t.Module().Name)
		b.WriteString("'>")
	case KindKnownInstance:
		k := t.KnownInstance()
		switch k.Kind {
		case KnownTypeVarInstance:
			b.WriteString("typing.TypeVar")
		case KnownParamSpecInstance:
			b.WriteString("typing.ParamSpec")
		case KnownTypeVarTupleInstance:
			b.WriteString("typing.TypeVarTuple")
		case KnownTypeAliasInstance:
			b.WriteString("typing.TypeAliasType")
		default:
			b.WriteString("typing.")
			b.WriteString(k.Kind.SpecialFormName())
		}
	}
}

func isCondensable(t Type) bool {
	switch t.kind {
	case KindBoolLiteral, KindIntLiteral, KindStringLiteral, KindBytesLiteral:
		return true
	}
	return false
}

// writeUnion condenses all literal elements into one Literal[...] placed
// where the first literal appears.
func writeUnion(b *strings.Builder, elems []Type) {
	var literals []Type
	for _, e := range elems {
		if isCondensable(e) {
			literals = append(literals, e)
		}
	}
	first := true
	wroteLiterals := false
	for _, e := range elems {
		if isCondensable(e) {
			if wroteLiterals {
				continue
			}
			wroteLiterals = true
			if !first {
				b.WriteString(" | ")
			}
			first = false
			b.WriteString("Literal[")
			for i, l := range literals {
				if i > 0 {
					b.WriteString(", ")
				}
				writeLiteralValue(b, l)
			}
			b.WriteByte(']')
			continue
		}
		if !first {
			b.WriteString(" | ")
		}
		first = false
		writeType(b, e)
	}
}

func writeIntersection(b *strings.Builder, t Type) {
	first := true
	sep := func() {
		if !first {
			b.WriteString(" & ")
		}
		first = false
	}
	for _, p := range t.Positive() {
		sep()
		writeType(b, p)
	}
	for _, n := range t.Negative() {
		sep()
		b.WriteByte('~')
		writeType(b, n)
	}
}

func writeLiteralValue(b *strings.Builder, t Type) {
	switch t.kind {
	case KindBoolLiteral:
		if t.num != 0 {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case KindIntLiteral:
		b.WriteString(strconv.FormatInt(t.num, 10))
	case KindStringLiteral:
		writeQuoted(b, t.str, false)
	case KindBytesLiteral:
		b.WriteByte('b')
		writeQuoted(b, t.str, true)
	}
}

// writeQuoted writes a double-quoted Python literal.
func writeQuoted(b *strings.Builder, s string, bytes bool) {
	b.WriteByte('"')
	if bytes {
		for i := 0; i < len(s); i++ {
			c := s[i]
			switch {
			case c == '"' || c == '\\':
				b.WriteByte('\\')
				b.WriteByte(c)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			case c < 0x20 || c >= 0x7f:
				b.WriteString(`\x`)
				b.WriteString(strconv.FormatUint(uint64(c)|0x100, 16)[1:])
			default:
				b.WriteByte(c)
			}
		}
	} else {
		for _, r := range s {
			switch {
			case r == '"' || r == '\\':
				b.WriteByte('\\')
				b.WriteRune(r)
			case r == '\n':
				b.WriteString(`\n`)
			case r == '\r':
				b.WriteString(`\r`)
			case r == '\t':
				b.WriteString(`\t`)
			case r < 0x20:
				b.WriteString(`\x`)
				b.WriteString(strconv.FormatUint(uint64(r)|0x100, 16)[1:])
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
