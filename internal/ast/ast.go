// Package ast defines the Python syntax tree consumed by the semantic index
// and the inference engine. Nodes are produced by internal/pyparse and are
// immutable once a Module has been returned.
package ast

import "fmt"

// NodeID identifies a node within one parsed file. IDs are assigned in
// source order starting at 1; zero means "no node".
type NodeID uint32

// Position is a 1-based line/column pair plus a 0-based byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Range is the half-open source range of a node.
type Range struct {
	Start Position
	End   Position
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d", r.Start.Line, r.Start.Column)
}

// Node is implemented by every syntax node.
type Node interface {
	ID() NodeID
	Span() Range
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Pattern is a match-statement pattern node.
type Pattern interface {
	Node
	patternNode()
}

// Base carries the identity and range shared by all nodes.
type Base struct {
	NodeID NodeID
	Range  Range
}

func (b *Base) ID() NodeID  { return b.NodeID }
func (b *Base) Span() Range { return b.Range }

// ExprContext distinguishes loads from stores and deletions of names,
// attributes and subscripts.
type ExprContext uint8

const (
	Load ExprContext = iota
	Store
	Del
)

// Module is the root of a parsed file.
type Module struct {
	Base
	Body []Stmt
}

// Identifier is a bare name that is not itself an expression, e.g. the name
// of a function or the alias in an import.
type Identifier struct {
	Base
	Name string
}
