package diag

import (
	"fmt"
	"sort"
)

// Lint describes one diagnostic rule.
type Lint struct {
	Name    string
	Summary string
	Default Severity
}

var registry = map[string]Lint{}

func register(name, summary string, level Severity) string {
	registry[name] = Lint{Name: name, Summary: summary, Default: level}
	return name
}

var (
	InvalidSyntax               = register("invalid-syntax", "source could not be parsed", Error)
	InternalError               = register("internal-error", "the checker failed on this file", Error)
	UnresolvedReference         = register("unresolved-reference", "name is not defined", Error)
	PossiblyUnresolvedReference = register("possibly-unresolved-reference", "name may be unbound", Warning)
	UndefinedReveal             = register("undefined-reveal", "reveal_type used without importing it", Warning)
	RevealedType                = register("revealed-type", "type revealed by reveal_type", Info)
	UnresolvedImport            = register("unresolved-import", "import cannot be resolved", Error)
	PossiblyUnboundImport       = register("possibly-unbound-import", "imported name may be unbound", Warning)
	UnresolvedAttribute         = register("unresolved-attribute", "attribute does not exist", Error)
	PossiblyUnboundAttribute    = register("possibly-unbound-attribute", "attribute may be unbound", Warning)
	InvalidAssignment           = register("invalid-assignment", "assigned type is not assignable to the declared type", Error)
	InvalidDeclaration          = register("invalid-declaration", "declared type conflicts with earlier bindings", Error)
	ConflictingDeclarations     = register("conflicting-declarations", "name has conflicting declared types", Error)
	InvalidParameterDefault     = register("invalid-parameter-default", "default is not assignable to the parameter type", Error)
	InvalidReturnType           = register("invalid-return-type", "returned type is not assignable to the return annotation", Error)
	InvalidArgumentType         = register("invalid-argument-type", "argument is not assignable to the parameter", Error)
	MissingArgument             = register("missing-argument", "required parameter has no argument", Error)
	TooManyPositional           = register("too-many-positional-arguments", "call passes too many positional arguments", Error)
	UnknownArgument             = register("unknown-argument", "keyword argument matches no parameter", Error)
	ParameterAlreadyAssigned    = register("parameter-already-assigned", "parameter receives more than one argument", Error)
	CallNonCallable             = register("call-non-callable", "object is not callable", Error)
	CallPossiblyUnboundMethod   = register("call-possibly-unbound-method", "called method may be unbound", Warning)
	UnsupportedOperator         = register("unsupported-operator", "operator is not supported for the operand types", Error)
	DivisionByZero              = register("division-by-zero", "division by a literal zero", Error)
	IndexOutOfBounds            = register("index-out-of-bounds", "literal index is out of bounds", Error)
	ZeroStepsizeInSlice         = register("zero-stepsize-in-slice", "slice step is zero", Error)
	NonSubscriptable            = register("non-subscriptable", "object cannot be subscripted", Error)
	NotIterable                 = register("not-iterable", "object is not iterable", Error)
	InvalidContextManager       = register("invalid-context-manager", "object is not a context manager", Error)
	InvalidRaise                = register("invalid-raise", "raised object is not an exception", Error)
	InvalidExceptionCaught      = register("invalid-exception-caught", "caught object is not an exception class", Error)
	InvalidTypeForm             = register("invalid-type-form", "expression is not valid in a type expression", Error)
	InvalidBase                 = register("invalid-base", "class base is not a class", Error)
	DuplicateBase               = register("duplicate-base", "class lists a base more than once", Error)
	InconsistentMro             = register("inconsistent-mro", "no consistent method resolution order", Error)
	CyclicClassDefinition       = register("cyclic-class-definition", "class inherits from itself", Error)
	SubclassOfFinalClass        = register("subclass-of-final-class", "class inherits from a final class", Error)
	InvalidMetaclass            = register("invalid-metaclass", "metaclass is not callable", Error)
	ConflictingMetaclass        = register("conflicting-metaclass", "bases have unrelated metaclasses", Error)
)

// Lookup returns the lint registered under name.
func Lookup(name string) (Lint, bool) {
	l, ok := registry[name]
	return l, ok
}

// All returns every registered lint sorted by name.
func All() []Lint {
	out := make([]Lint, 0, len(registry))
	for _, l := range registry {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Rules maps lint names to configured severities, overriding defaults.
type Rules map[string]Severity

// ParseRules builds Rules from configuration strings, rejecting unknown
// lint names and levels.
func ParseRules(raw map[string]string) (Rules, error) {
	rules := make(Rules, len(raw))
	for name, level := range raw {
		if _, ok := registry[name]; !ok {
			return nil, fmt.Errorf("unknown rule %q", name)
		}
		sev, err := ParseSeverity(level)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}
		rules[name] = sev
	}
	return rules, nil
}

// Severity returns the level a lint is reported at under these rules.
func (r Rules) Severity(lint string) Severity {
	if sev, ok := r[lint]; ok {
		return sev
	}
	if l, ok := registry[lint]; ok {
		return l.Default
	}
	return Error
}

// Apply rewrites severities and drops ignored diagnostics.
func (r Rules) Apply(ds []Diagnostic) []Diagnostic {
	out := ds[:0:0]
	for _, d := range ds {
		d.Severity = r.Severity(d.Lint)
		if d.Severity == Ignore {
			continue
		}
		out = append(out, d)
	}
	return out
}
