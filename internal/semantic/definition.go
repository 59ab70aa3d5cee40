package semantic

import "github.com/jward/knot/internal/ast"

type DefinitionKind uint8

const (
	FunctionDefinition DefinitionKind = iota
	ClassDefinition
	ImportDefinition
	ImportFromDefinition
	StarImportDefinition
	AssignmentDefinition
	AnnotatedAssignmentDefinition
	AugmentedAssignmentDefinition
	ForTargetDefinition
	NamedExprDefinition
	ComprehensionDefinition
	ParameterDefinition
	VariadicPositionalDefinition
	VariadicKeywordDefinition
	WithItemDefinition
	MatchPatternDefinition
	ExceptHandlerDefinition
	TypeVarDefinition
	ParamSpecDefinition
	TypeVarTupleDefinition
	TypeAliasDefinition
)

var definitionKindNames = [...]string{
	FunctionDefinition:            "function",
	ClassDefinition:               "class",
	ImportDefinition:              "import",
	ImportFromDefinition:          "import-from",
	StarImportDefinition:          "star-import",
	AssignmentDefinition:          "assignment",
	AnnotatedAssignmentDefinition: "annotated-assignment",
	AugmentedAssignmentDefinition: "augmented-assignment",
	ForTargetDefinition:           "for-target",
	NamedExprDefinition:           "named-expression",
	ComprehensionDefinition:       "comprehension",
	ParameterDefinition:           "parameter",
	VariadicPositionalDefinition:  "variadic-positional",
	VariadicKeywordDefinition:     "variadic-keyword",
	WithItemDefinition:            "with-item",
	MatchPatternDefinition:        "match-pattern",
	ExceptHandlerDefinition:       "except-handler",
	TypeVarDefinition:             "type-var",
	ParamSpecDefinition:           "param-spec",
	TypeVarTupleDefinition:        "type-var-tuple",
	TypeAliasDefinition:           "type-alias",
}

func (k DefinitionKind) String() string {
	if int(k) < len(definitionKindNames) {
		return definitionKindNames[k]
	}
	return "unknown"
}

type DefinitionCategory uint8

const (
	// Binding assigns a value without constraining the name's type.
	Binding DefinitionCategory = iota
	// Declaration constrains the name's type without assigning it.
	Declaration
	// DeclarationAndBinding does both.
	DeclarationAndBinding
)

func (c DefinitionCategory) IsBinding() bool     { return c != Declaration }
func (c DefinitionCategory) IsDeclaration() bool { return c != Binding }

// Definition is one construct introducing a binding and/or declaration of
// one name. Definitions are created by Build and never afterwards.
type Definition struct {
	Kind   DefinitionKind
	Scope  ScopeID
	Symbol SymbolID
	Name   string
	// Node identifies the definition: the *ast.FunctionDef, *ast.ClassDef,
	// *ast.Alias, target *ast.Name, *ast.Parameter, *ast.ExceptHandler,
	// *ast.TypeParam, *ast.TypeAlias, *ast.NamedExpr, or the match pattern
	// that captures. Star imports use the *ast.ImportFrom.
	Node ast.Node
	// Stmt is the enclosing construct: the statement, *ast.Comprehension,
	// *ast.WithItem, *ast.MatchCase, or the function or lambda owning a
	// parameter.
	Stmt ast.Node
	// Value is the assigned, iterated, entered or matched expression.
	Value ast.Expr
	// Target is the full target tree the name appears in, for unpacking.
	Target ast.Expr
	// Module and Level describe the import source of import definitions.
	Module string
	Level  int
	// IsAsync marks async for, with and comprehension targets.
	IsAsync bool

	category DefinitionCategory
	index    *Index
	ordinal  int
}

func (d *Definition) Category() DefinitionCategory { return d.category }

// Index returns the index that owns the definition.
func (d *Definition) Index() *Index { return d.index }

// Ordinal is the definition's creation order within its file.
func (d *Definition) Ordinal() int { return d.ordinal }

func (d *Definition) String() string {
	return d.Kind.String() + " " + d.Name + " at " + d.Node.Span().String()
}

// Expression marks a sub-tree that is inferred once as a unit: assignment
// values, iterables, context managers, match subjects and narrowing tests.
type Expression struct {
	Node  ast.Expr
	Scope ScopeID
	index *Index
}

func (e *Expression) Index() *Index { return e.index }

// Constraint is a narrowing guard on the bindings live when it was
// recorded. Positive is false on the path where the test failed.
type Constraint struct {
	Test     ast.Expr
	Positive bool
	Scope    ScopeID
}

// InstanceAttribute is an assignment to `self.<name>` inside a method.
type InstanceAttribute struct {
	Name   string
	Method ScopeID
	Stmt   ast.Stmt
	// Value is the assigned standalone expression, nil for declarations
	// and augmented or unpacking assignments.
	Value ast.Expr
	// Annotation is set for `self.x: T = ...`.
	Annotation ast.Expr
}
