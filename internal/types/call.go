package types

import (
	"fmt"
	"strings"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
)

// Parameter is one parameter of a signature. Unannotated parameters have
// type Unknown.
type Parameter struct {
	Name       string
	Kind       ast.ParamKind
	Annotated  bool
	Type       Type
	HasDefault bool
	Default    Type
}

func (p Parameter) acceptsPositional() bool {
	return p.Kind == ast.PositionalOnly || p.Kind == ast.PositionalOrKeyword
}

func (p Parameter) acceptsKeyword() bool {
	return p.Kind == ast.PositionalOrKeyword || p.Kind == ast.KeywordOnly
}

// Signature is the callable shape of a function.
type Signature struct {
	Params []Parameter
	Return Type
}

// ArgumentKind distinguishes the syntactic forms of call arguments.
type ArgumentKind uint8

const (
	ArgPositional ArgumentKind = iota
	ArgKeyword
	// ArgVariadic is `*args`.
	ArgVariadic
	// ArgKeywordVariadic is `**kwargs`.
	ArgKeywordVariadic
)

// Argument is one inferred call argument.
type Argument struct {
	Kind ArgumentKind
	Name string
	Type Type
}

// Positional builds positional arguments.
func Positional(ts ...Type) []Argument {
	args := make([]Argument, len(ts))
	for i, t := range ts {
		args[i] = Argument{Type: t}
	}
	return args
}

// Issue is a problem found while checking a call or an operator. Arg is
// the index of the offending argument, or -1 for the call as a whole.
type Issue struct {
	Lint    string
	Message string
	Arg     int
}

// CallStatus summarizes whether the callee could be called at all.
type CallStatus uint8

const (
	CallOK CallStatus = iota
	// CallNotCallable: no part of the callee is callable.
	CallNotCallable
	// CallPartlyNotCallable: some union element is not callable.
	CallPartlyNotCallable
	// CallPossiblyUnboundDunder: `__call__` may be missing.
	CallPossiblyUnboundDunder
)

// CallOutcome is the result of a call. Return is always usable, falling
// back to Unknown.
type CallOutcome struct {
	Status CallStatus
	Return Type
	Issues []Issue
	// Revealed is set by reveal_type.
	Revealed *Type
}

// HasBindingErrors reports argument binding problems.
func (o CallOutcome) HasBindingErrors() bool { return len(o.Issues) > 0 }

// Call infers calling callee with args.
func Call(db Db, callee Type, args []Argument) CallOutcome {
	switch callee.kind {
	case KindAny, KindUnknown, KindTodo:
		return CallOutcome{Return: callee}
	case KindNever:
		return CallOutcome{Return: Never}
	case KindFunction:
		return callFunction(db, callee.Function(), nil, args)
	case KindBoundMethod:
		self, _ := callee.BoundSelf()
		return callFunction(db, callee.Function(), &self, args)
	case KindClassLiteral:
		return callClass(db, callee, args)
	case KindSubclassOf:
		if dyn, ok := callee.SubclassOfDynamicBase(); ok {
			return CallOutcome{Return: dyn}
		}
		return CallOutcome{Return: Instance(callee.Class())}
	case KindUnion:
		return callUnion(db, callee, args)
	case KindIntersection:
		return CallOutcome{Return: Todo}
	case KindKnownInstance:
		k := callee.KnownInstance()
		if !k.Kind.IsSpecialForm() {
			return CallOutcome{Return: Unknown}
		}
	}

	dunder := lookupDunder(db, callee, "__call__")
	if dunder.IsUnbound() {
		return CallOutcome{
			Status: CallNotCallable,
			Return: Unknown,
			Issues: []Issue{{Lint: diag.CallNonCallable, Message: fmt.Sprintf("Object of type `%s` is not callable", callee), Arg: -1}},
		}
	}
	out := Call(db, dunder.Type(), args)
	if dunder.IsPossiblyUnbound() {
		out.Status = CallPossiblyUnboundDunder
		out.Issues = append(out.Issues, Issue{
			Lint:    diag.CallPossiblyUnboundMethod,
			Message: fmt.Sprintf("Method `__call__` of type `%s` is possibly unbound", callee),
			Arg:     -1,
		})
	}
	return out
}

func callUnion(db Db, callee Type, args []Argument) CallOutcome {
	var out CallOutcome
	u := NewUnionBuilder(db)
	notCallable := 0
	elems := callee.Elements()
	for _, e := range elems {
		o := Call(db, e, args)
		if o.Status == CallNotCallable {
			notCallable++
			if notCallable == 1 {
				out.Issues = append(out.Issues, Issue{
					Lint: diag.CallNonCallable,
					Message: fmt.Sprintf("Object of type `%s` is not callable (due to union element `%s`)",
						callee, e),
					Arg: -1,
				})
			}
			u.Add(Unknown)
			continue
		}
		if o.Status == CallPossiblyUnboundDunder && out.Status == CallOK {
			out.Status = CallPossiblyUnboundDunder
		}
		out.Issues = append(out.Issues, o.Issues...)
		u.Add(o.Return)
	}
	switch {
	case notCallable == len(elems):
		out.Status = CallNotCallable
		out.Issues = []Issue{{Lint: diag.CallNonCallable, Message: fmt.Sprintf("Object of type `%s` is not callable", callee), Arg: -1}}
	case notCallable > 0:
		out.Status = CallPartlyNotCallable
	}
	out.Return = u.Build()
	return out
}

// callClass calls a class object: instances for ordinary classes, with
// special cases for type() and bool().
func callClass(db Db, callee Type, args []Argument) CallOutcome {
	c := callee.Class()
	switch c.Known {
	case KnownType:
		if len(args) == 1 && args[0].Kind == ArgPositional {
			return CallOutcome{Return: ToMetaType(db, args[0].Type)}
		}
	case KnownBool:
		if len(args) == 1 && args[0].Kind == ArgPositional {
			return CallOutcome{Return: Bool(db, args[0].Type).Type(db)}
		}
		if len(args) == 0 {
			return CallOutcome{Return: BoolLiteral(false)}
		}
	case KnownStr:
		if len(args) == 0 {
			return CallOutcome{Return: StringLiteral("")}
		}
	case KnownInt:
		if len(args) == 0 {
			return CallOutcome{Return: IntLiteral(0)}
		}
	case KnownTuple:
		if len(args) == 0 {
			return CallOutcome{Return: Tuple(db)}
		}
	case KnownNoneType:
		return CallOutcome{Return: None}
	}

	// A metaclass __call__ other than type.__call__ decides the result.
	meta := Metaclass(db, c)
	if meta.kind == KindClassLiteral && meta.Class().Known != KnownType {
		sym := ClassMember(db, meta.Class(), "__call__")
		inherited := Unbound
		if tc := db.KnownClass(KnownType); tc != nil {
			inherited = db.ClassOwnMember(tc, "__call__")
		}
		if !sym.IsUnbound() && sym.Type() != inherited.Type() {
			return Call(db, bindToInstance(db, sym.Type(), callee), args)
		}
	}
	return CallOutcome{Return: Instance(c)}
}

// callFunction binds args to the signature of f. self is the receiver of
// a bound method.
func callFunction(db Db, f *Function, self *Type, args []Argument) CallOutcome {
	if self != nil {
		args = append([]Argument{{Type: *self}}, args...)
	}
	sig := db.FunctionSignature(f)
	if sig == nil {
		return CallOutcome{Return: Unknown}
	}
	issues := bindArguments(db, f, sig, args, self != nil)
	out := CallOutcome{Return: sig.Return, Issues: issues}

	switch f.Known {
	case KnownRevealType:
		if t, ok := firstPositional(args); ok {
			out.Revealed = &t
			out.Return = t
		}
	case KnownLen:
		if t, ok := firstPositional(args); ok {
			if n, ok := literalLength(t); ok {
				out.Return = IntLiteral(n)
			}
		}
	case KnownCast:
		if len(args) >= 1 && args[0].Kind == ArgPositional {
			out.Return = ToInstance(db, args[0].Type)
			if k := args[0].Type.KnownInstance(); k != nil {
				out.Return = Todo
			}
			out.Issues = nil
		}
	case KnownFinal:
		if t, ok := firstPositional(args); ok {
			out.Return = t
		}
	case KnownIsInstance, KnownIsSubclass:
		if len(args) == 2 {
			out.Return = staticIsInstance(db, f.Known, args[0].Type, args[1].Type).Type(db)
		}
	}
	return out
}

func firstPositional(args []Argument) (Type, bool) {
	if len(args) == 0 || args[0].Kind != ArgPositional {
		return Type{}, false
	}
	return args[0].Type, true
}

// literalLength is len() of a value whose length is statically known.
func literalLength(t Type) (int64, bool) {
	switch t.kind {
	case KindTuple:
		return int64(len(t.Elements())), true
	case KindStringLiteral:
		return int64(len([]rune(t.str))), true
	case KindBytesLiteral:
		return int64(len(t.str)), true
	}
	return 0, false
}

// staticIsInstance decides isinstance(obj, cls) when cls is a class
// literal and obj's type is disjoint from or a subtype of its instances.
func staticIsInstance(db Db, known KnownFunction, obj, cls Type) Truthiness {
	if cls.kind != KindClassLiteral {
		return Ambiguous
	}
	target := Instance(cls.Class())
	if known == KnownIsSubclass {
		target = SubclassOf(cls.Class())
	}
	if obj.IsDynamic() {
		return Ambiguous
	}
	if IsSubtypeOf(db, obj, target) {
		return AlwaysTrue
	}
	if IsDisjointFrom(db, obj, target) {
		return AlwaysFalse
	}
	return Ambiguous
}

// bindArguments matches args to sig and checks each argument's type.
func bindArguments(db Db, f *Function, sig *Signature, args []Argument, boundSelf bool) []Issue {
	var issues []Issue
	assigned := make([]bool, len(sig.Params))
	argFor := make([]int, len(sig.Params))
	hasVariadic, hasKeywordVariadic := false, false
	var extraPositional []int

	check := func(argIndex, paramIndex int) {
		p := sig.Params[paramIndex]
		a := args[argIndex]
		if assigned[paramIndex] && p.Kind != ast.VarPositional && p.Kind != ast.VarKeyword {
			issues = append(issues, Issue{
				Lint:    diag.ParameterAlreadyAssigned,
				Message: fmt.Sprintf("Multiple values provided for parameter `%s` of function `%s`", p.Name, f.Name),
				Arg:     userArg(argIndex, boundSelf),
			})
			return
		}
		assigned[paramIndex] = true
		argFor[paramIndex] = argIndex
		if !IsAssignableTo(db, a.Type, p.Type) {
			issues = append(issues, Issue{
				Lint: diag.InvalidArgumentType,
				Message: fmt.Sprintf("Object of type `%s` cannot be assigned to parameter %s of function `%s`; expected type `%s`",
					a.Type, parameterLabel(paramIndex, p), f.Name, p.Type),
				Arg: userArg(argIndex, boundSelf),
			})
		}
	}

	next := 0
	for i, a := range args {
		switch a.Kind {
		case ArgVariadic:
			hasVariadic = true
			continue
		case ArgKeywordVariadic:
			hasKeywordVariadic = true
			continue
		case ArgKeyword:
			idx := -1
			for j, p := range sig.Params {
				if p.Name == a.Name && p.acceptsKeyword() {
					idx = j
					break
				}
			}
			if idx < 0 {
				for j, p := range sig.Params {
					if p.Kind == ast.VarKeyword {
						idx = j
						break
					}
				}
			}
			if idx < 0 {
				issues = append(issues, Issue{
					Lint:    diag.UnknownArgument,
					Message: fmt.Sprintf("Argument `%s` does not match any known parameter of function `%s`", a.Name, f.Name),
					Arg:     userArg(i, boundSelf),
				})
				continue
			}
			check(i, idx)
			continue
		}

		for next < len(sig.Params) && !sig.Params[next].acceptsPositional() && sig.Params[next].Kind != ast.VarPositional {
			next++
		}
		if next >= len(sig.Params) {
			extraPositional = append(extraPositional, i)
			continue
		}
		check(i, next)
		if sig.Params[next].Kind != ast.VarPositional {
			next++
		}
	}

	if len(extraPositional) > 0 && !hasVariadic {
		expected := 0
		for _, p := range sig.Params {
			if p.acceptsPositional() {
				expected++
			}
		}
		got := 0
		for _, a := range args {
			if a.Kind == ArgPositional {
				got++
			}
		}
		if boundSelf {
			expected--
			got--
		}
		issues = append(issues, Issue{
			Lint:    diag.TooManyPositional,
			Message: fmt.Sprintf("Too many positional arguments to function `%s`: expected %d, got %d", f.Name, expected, got),
			Arg:     userArg(extraPositional[0], boundSelf),
		})
	}

	if !hasVariadic && !hasKeywordVariadic {
		var missing []string
		for j, p := range sig.Params {
			if assigned[j] || p.HasDefault || p.Kind == ast.VarPositional || p.Kind == ast.VarKeyword {
				continue
			}
			missing = append(missing, "`"+p.Name+"`")
		}
		switch len(missing) {
		case 0:
		case 1:
			issues = append(issues, Issue{
				Lint:    diag.MissingArgument,
				Message: fmt.Sprintf("No argument provided for required parameter %s of function `%s`", missing[0], f.Name),
				Arg:     -1,
			})
		default:
			issues = append(issues, Issue{
				Lint: diag.MissingArgument,
				Message: fmt.Sprintf("No arguments provided for required parameters %s of function `%s`",
					strings.Join(missing, ", "), f.Name),
				Arg: -1,
			})
		}
	}
	return issues
}

// userArg maps an index into the bound argument list back to the
// argument as written.
func userArg(i int, boundSelf bool) int {
	if boundSelf {
		if i == 0 {
			return -1
		}
		return i - 1
	}
	return i
}

func parameterLabel(index int, p Parameter) string {
	if p.Name == "" {
		return fmt.Sprintf("%d", index+1)
	}
	return fmt.Sprintf("%d (`%s`)", index+1, p.Name)
}

// CallDunder calls the dunder name on the type of receiver. found is false
// when the dunder does not exist.
func CallDunder(db Db, receiver Type, name string, args []Argument) (out CallOutcome, found bool) {
	sym := lookupDunder(db, receiver, name)
	if sym.IsUnbound() {
		return CallOutcome{Status: CallNotCallable, Return: Unknown}, false
	}
	out = Call(db, sym.Type(), args)
	if sym.IsPossiblyUnbound() && out.Status == CallOK {
		out.Status = CallPossiblyUnboundDunder
	}
	return out, true
}

// dunderSucceeds reports a dunder call that found a callable method and
// bound its arguments cleanly.
func dunderSucceeds(out CallOutcome, found bool) bool {
	return found && out.Status == CallOK && !out.HasBindingErrors()
}
