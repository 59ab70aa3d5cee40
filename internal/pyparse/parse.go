// Package pyparse lowers tree-sitter's Python concrete syntax tree into the
// internal/ast representation.
package pyparse

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/jward/knot/internal/ast"
)

var (
	grammarOnce sync.Once
	grammar     *sitter.Language
)

func language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = python.GetLanguage()
	})
	return grammar
}

// SyntaxError is a recoverable parse problem. Lowering continues past it.
type SyntaxError struct {
	Range   ast.Range
	Message string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Range, e.Message)
}

// Result is a lowered module plus any syntax errors found in it.
type Result struct {
	Module *ast.Module
	Errors []SyntaxError
	// MaxID is the largest NodeID assigned in Module.
	MaxID ast.NodeID
}

// Parse parses Python source. The returned error is non-nil only if
// tree-sitter itself fails; syntax errors are reported in Result.Errors.
func Parse(ctx context.Context, src []byte) (*Result, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	l := &lowerer{src: src}
	root := tree.RootNode()
	l.collectErrors(root)
	mod := &ast.Module{Base: l.base(root)}
	mod.Body = l.block(root)
	return &Result{Module: mod, Errors: l.errors, MaxID: l.next}, nil
}

// ParseExpression parses the text of a string annotation. Node IDs start
// after firstID and every node takes span as its range, so diagnostics
// point at the enclosing string literal.
func ParseExpression(ctx context.Context, text string, firstID ast.NodeID, span ast.Range) (ast.Expr, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(language())

	src := []byte("(" + text + "\n)")
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse annotation: %w", err)
	}
	defer tree.Close()

	l := &lowerer{src: src, next: firstID, fixed: &span}
	root := tree.RootNode()
	l.collectErrors(root)
	if len(l.errors) > 0 {
		return nil, fmt.Errorf("invalid annotation %q: %s", text, l.errors[0].Message)
	}
	stmts := l.block(root)
	if len(stmts) != 1 {
		return nil, fmt.Errorf("invalid annotation %q", text)
	}
	es, ok := stmts[0].(*ast.ExprStmt)
	if !ok {
		return nil, fmt.Errorf("invalid annotation %q", text)
	}
	return es.Value, nil
}

type lowerer struct {
	src    []byte
	next   ast.NodeID
	errors []SyntaxError
	// fixed overrides every node range when set.
	fixed *ast.Range
}

func (l *lowerer) rangeOf(n *sitter.Node) ast.Range {
	if l.fixed != nil {
		return *l.fixed
	}
	start, end := n.StartPoint(), n.EndPoint()
	return ast.Range{
		Start: ast.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1, Offset: int(n.StartByte())},
		End:   ast.Position{Line: int(end.Row) + 1, Column: int(end.Column) + 1, Offset: int(n.EndByte())},
	}
}

func (l *lowerer) base(n *sitter.Node) ast.Base {
	l.next++
	return ast.Base{NodeID: l.next, Range: l.rangeOf(n)}
}

func (l *lowerer) text(n *sitter.Node) string {
	return n.Content(l.src)
}

func (l *lowerer) errorf(n *sitter.Node, format string, args ...any) {
	l.errors = append(l.errors, SyntaxError{Range: l.rangeOf(n), Message: fmt.Sprintf(format, args...)})
}

func (l *lowerer) collectErrors(n *sitter.Node) {
	if n == nil {
		return
	}
	switch {
	case n.IsMissing():
		l.errorf(n, "Expected %s", n.Type())
		return
	case n.Type() == "ERROR":
		l.errorf(n, "Unexpected token %q", firstLine(l.text(n)))
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		l.collectErrors(n.Child(i))
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// hasToken reports whether n has an anonymous child with the given text.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
