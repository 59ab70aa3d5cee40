package ast

// ParamKind classifies a parameter by how arguments bind to it.
type ParamKind uint8

const (
	PositionalOnly ParamKind = iota
	PositionalOrKeyword
	VarPositional
	KeywordOnly
	VarKeyword
)

// Parameter is one function or lambda parameter.
type Parameter struct {
	Base
	Name       *Identifier
	Kind       ParamKind
	Annotation Expr
	Default    Expr
}

// Parameters is a full parameter list in declaration order.
type Parameters struct {
	Base
	List []*Parameter
}

// Alias is one `name` or `name as asname` entry of an import.
type Alias struct {
	Base
	Name   string
	AsName *Identifier
}

// TypeParamKind distinguishes PEP 695 type parameter forms.
type TypeParamKind uint8

const (
	TypeVarParam TypeParamKind = iota
	ParamSpecParam
	TypeVarTupleParam
)

type TypeParam struct {
	Base
	Kind  TypeParamKind
	Name  *Identifier
	Bound Expr
}

type ExceptHandler struct {
	Base
	Type Expr
	Name *Identifier
	Body []Stmt
}

type WithItem struct {
	Base
	ContextExpr  Expr
	OptionalVars Expr
}

type MatchCase struct {
	Base
	Pattern Pattern
	Guard   Expr
	Body    []Stmt
}

type (
	FunctionDef struct {
		Base
		Name       *Identifier
		TypeParams []*TypeParam
		Params     *Parameters
		Returns    Expr
		Body       []Stmt
		Decorators []Expr
		IsAsync    bool
	}

	ClassDef struct {
		Base
		Name       *Identifier
		TypeParams []*TypeParam
		Bases      []Expr
		Keywords   []*Keyword
		Body       []Stmt
		Decorators []Expr
	}

	Return struct {
		Base
		Value Expr
	}

	Delete struct {
		Base
		Targets []Expr
	}

	// Assign is `t1 = t2 = value`; Targets are in source order.
	Assign struct {
		Base
		Targets []Expr
		Value   Expr
	}

	AugAssign struct {
		Base
		Target Expr
		Op     Operator
		Value  Expr
	}

	AnnAssign struct {
		Base
		Target     Expr
		Annotation Expr
		Value      Expr
	}

	TypeAlias struct {
		Base
		Name       *Name
		TypeParams []*TypeParam
		Value      Expr
	}

	For struct {
		Base
		Target  Expr
		Iter    Expr
		Body    []Stmt
		Orelse  []Stmt
		IsAsync bool
	}

	While struct {
		Base
		Test   Expr
		Body   []Stmt
		Orelse []Stmt
	}

	// If holds one `if` or `elif` arm; an `elif` chain nests in Orelse.
	If struct {
		Base
		Test   Expr
		Body   []Stmt
		Orelse []Stmt
	}

	With struct {
		Base
		Items   []*WithItem
		Body    []Stmt
		IsAsync bool
	}

	Match struct {
		Base
		Subject Expr
		Cases   []*MatchCase
	}

	Raise struct {
		Base
		Exc   Expr
		Cause Expr
	}

	Try struct {
		Base
		Body      []Stmt
		Handlers  []*ExceptHandler
		Orelse    []Stmt
		Finalbody []Stmt
		IsStar    bool
	}

	Assert struct {
		Base
		Test Expr
		Msg  Expr
	}

	Import struct {
		Base
		Names []*Alias
	}

	// ImportFrom is `from <Level dots><Module> import ...`. A single alias
	// named "*" is a star import.
	ImportFrom struct {
		Base
		Module string
		Names  []*Alias
		Level  int
	}

	Global struct {
		Base
		Names []*Identifier
	}

	Nonlocal struct {
		Base
		Names []*Identifier
	}

	ExprStmt struct {
		Base
		Value Expr
	}

	Pass struct {
		Base
	}

	Break struct {
		Base
	}

	Continue struct {
		Base
	}
)

func (*FunctionDef) stmtNode() {}
func (*ClassDef) stmtNode()    {}
func (*Return) stmtNode()      {}
func (*Delete) stmtNode()      {}
func (*Assign) stmtNode()      {}
func (*AugAssign) stmtNode()   {}
func (*AnnAssign) stmtNode()   {}
func (*TypeAlias) stmtNode()   {}
func (*For) stmtNode()         {}
func (*While) stmtNode()       {}
func (*If) stmtNode()          {}
func (*With) stmtNode()        {}
func (*Match) stmtNode()       {}
func (*Raise) stmtNode()       {}
func (*Try) stmtNode()         {}
func (*Assert) stmtNode()      {}
func (*Import) stmtNode()      {}
func (*ImportFrom) stmtNode()  {}
func (*Global) stmtNode()      {}
func (*Nonlocal) stmtNode()    {}
func (*ExprStmt) stmtNode()    {}
func (*Pass) stmtNode()        {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}

// IsStarImport reports whether the statement is `from m import *`.
func (s *ImportFrom) IsStarImport() bool {
	return len(s.Names) == 1 && s.Names[0].Name == "*"
}
