package ast

// Operator is a binary arithmetic or bitwise operator.
type Operator uint8

const (
	Add Operator = iota
	Sub
	Mult
	MatMult
	Div
	Mod
	Pow
	LShift
	RShift
	BitOr
	BitXor
	BitAnd
	FloorDiv
)

var operatorText = [...]string{
	Add: "+", Sub: "-", Mult: "*", MatMult: "@", Div: "/", Mod: "%", Pow: "**",
	LShift: "<<", RShift: ">>", BitOr: "|", BitXor: "^", BitAnd: "&", FloorDiv: "//",
}

func (o Operator) String() string { return operatorText[o] }

// UnaryOperator is a prefix operator.
type UnaryOperator uint8

const (
	Invert UnaryOperator = iota
	Not
	UAdd
	USub
)

func (o UnaryOperator) String() string {
	switch o {
	case Invert:
		return "~"
	case Not:
		return "not"
	case UAdd:
		return "+"
	default:
		return "-"
	}
}

// BoolOperator is `and` or `or`.
type BoolOperator uint8

const (
	And BoolOperator = iota
	Or
)

// CmpOp is a comparison operator.
type CmpOp uint8

const (
	Eq CmpOp = iota
	NotEq
	Lt
	LtE
	Gt
	GtE
	Is
	IsNot
	In
	NotIn
)

var cmpText = [...]string{
	Eq: "==", NotEq: "!=", Lt: "<", LtE: "<=", Gt: ">", GtE: ">=",
	Is: "is", IsNot: "is not", In: "in", NotIn: "not in",
}

func (o CmpOp) String() string { return cmpText[o] }

// Negate returns the operator whose result is the logical negation.
func (o CmpOp) Negate() CmpOp {
	switch o {
	case Eq:
		return NotEq
	case NotEq:
		return Eq
	case Lt:
		return GtE
	case LtE:
		return Gt
	case Gt:
		return LtE
	case GtE:
		return Lt
	case Is:
		return IsNot
	case IsNot:
		return Is
	case In:
		return NotIn
	default:
		return In
	}
}

type (
	Name struct {
		Base
		Ident string
		Ctx   ExprContext
	}

	// IntLiteral holds an integer that fits in int64; Big is set when the
	// source value does not, in which case Value is meaningless.
	IntLiteral struct {
		Base
		Value int64
		Big   bool
	}

	FloatLiteral struct {
		Base
		Value float64
	}

	ComplexLiteral struct {
		Base
	}

	// StringLiteral is a (possibly implicitly concatenated) string. FString
	// is set when any part contained interpolations; Value is then empty.
	StringLiteral struct {
		Base
		Value   string
		FString bool
		// Parts holds the interpolated expressions of an f-string.
		Parts []Expr
	}

	BytesLiteral struct {
		Base
		Value string
	}

	BoolLiteral struct {
		Base
		Value bool
	}

	NoneLiteral struct {
		Base
	}

	EllipsisLiteral struct {
		Base
	}

	Tuple struct {
		Base
		Elts          []Expr
		Ctx           ExprContext
		Parenthesized bool
	}

	List struct {
		Base
		Elts []Expr
		Ctx  ExprContext
	}

	Set struct {
		Base
		Elts []Expr
	}

	// Dict holds parallel key/value slices; a nil key marks a `**mapping`
	// entry.
	Dict struct {
		Base
		Keys   []Expr
		Values []Expr
	}

	Starred struct {
		Base
		Value Expr
		Ctx   ExprContext
	}

	Attribute struct {
		Base
		Value Expr
		Attr  *Identifier
		Ctx   ExprContext
	}

	Subscript struct {
		Base
		Value Expr
		Index Expr
		Ctx   ExprContext
	}

	Slice struct {
		Base
		Lower Expr
		Upper Expr
		Step  Expr
	}

	Keyword struct {
		Base
		// Arg is nil for `**kwargs`.
		Arg   *Identifier
		Value Expr
	}

	Call struct {
		Base
		Func     Expr
		Args     []Expr
		Keywords []*Keyword
	}

	BinOp struct {
		Base
		Left  Expr
		Op    Operator
		Right Expr
	}

	UnaryOp struct {
		Base
		Op      UnaryOperator
		Operand Expr
	}

	BoolOp struct {
		Base
		Op     BoolOperator
		Values []Expr
	}

	Compare struct {
		Base
		Left        Expr
		Ops         []CmpOp
		Comparators []Expr
	}

	IfExp struct {
		Base
		Test   Expr
		Body   Expr
		Orelse Expr
	}

	Lambda struct {
		Base
		Params *Parameters
		Body   Expr
	}

	NamedExpr struct {
		Base
		Target *Name
		Value  Expr
	}

	Comprehension struct {
		Base
		Target  Expr
		Iter    Expr
		Ifs     []Expr
		IsAsync bool
	}

	ListComp struct {
		Base
		Elt        Expr
		Generators []*Comprehension
	}

	SetComp struct {
		Base
		Elt        Expr
		Generators []*Comprehension
	}

	GeneratorExp struct {
		Base
		Elt        Expr
		Generators []*Comprehension
	}

	DictComp struct {
		Base
		Key        Expr
		Value      Expr
		Generators []*Comprehension
	}

	Await struct {
		Base
		Value Expr
	}

	Yield struct {
		Base
		Value Expr
	}

	YieldFrom struct {
		Base
		Value Expr
	}

	// BadExpr stands in for source that failed to parse.
	BadExpr struct {
		Base
	}
)

func (*Name) exprNode()            {}
func (*IntLiteral) exprNode()      {}
func (*FloatLiteral) exprNode()    {}
func (*ComplexLiteral) exprNode()  {}
func (*StringLiteral) exprNode()   {}
func (*BytesLiteral) exprNode()    {}
func (*BoolLiteral) exprNode()     {}
func (*NoneLiteral) exprNode()     {}
func (*EllipsisLiteral) exprNode() {}
func (*Tuple) exprNode()           {}
func (*List) exprNode()            {}
func (*Set) exprNode()             {}
func (*Dict) exprNode()            {}
func (*Starred) exprNode()         {}
func (*Attribute) exprNode()       {}
func (*Subscript) exprNode()       {}
func (*Slice) exprNode()           {}
func (*Call) exprNode()            {}
func (*BinOp) exprNode()           {}
func (*UnaryOp) exprNode()         {}
func (*BoolOp) exprNode()          {}
func (*Compare) exprNode()         {}
func (*IfExp) exprNode()           {}
func (*Lambda) exprNode()          {}
func (*NamedExpr) exprNode()       {}
func (*ListComp) exprNode()        {}
func (*SetComp) exprNode()         {}
func (*GeneratorExp) exprNode()    {}
func (*DictComp) exprNode()        {}
func (*Await) exprNode()           {}
func (*Yield) exprNode()           {}
func (*YieldFrom) exprNode()       {}
func (*BadExpr) exprNode()         {}

// IsEllipsis reports whether e is the `...` literal.
func IsEllipsis(e Expr) bool {
	_, ok := e.(*EllipsisLiteral)
	return ok
}
