package infer

import (
	"fmt"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/program"
	"github.com/jward/knot/internal/semantic"
	"github.com/jward/knot/internal/types"
)

// builder accumulates the result of one inference region.
type builder struct {
	s    *Session
	file *program.File
	ix   *semantic.Index
	// scope is the scope the region belongs to. Names are resolved in the
	// scope that evaluates each expression, which differs for annotations
	// and defaults of generic functions.
	scope semantic.ScopeID
	// root is the node the region was created for. A standalone root is
	// inferred in place instead of delegated.
	root ast.Node
	// standalone is set for the region of a standalone expression, the
	// only region allowed to infer that expression itself.
	standalone bool

	// deferred resolves names against end-of-scope bindings, as for
	// postponed annotations.
	deferred bool
	// parsed is set while inferring a string annotation: its nodes have
	// synthetic ids, so nothing is recorded and names resolve in
	// parsedScope.
	parsed      bool
	parsedScope semantic.ScopeID

	// returns is the declared return type while walking a function body.
	returns     *types.Type
	isGenerator bool

	result *TypeInference
}

func (s *Session) newBuilder(ix *semantic.Index, scope semantic.ScopeID, root ast.Node) *builder {
	return &builder{
		s:      s,
		file:   s.fileOf(ix),
		ix:     ix,
		scope:  scope,
		root:   root,
		result: newTypeInference(scope),
	}
}

// assertionFailed receives the message of a violated invariant. It
// panics in builds tagged knotdebug and does nothing otherwise.
var assertionFailed = func(msg string) {
	if debug {
		panic(msg)
	}
}

func debugAssert(cond bool, format string, args ...any) {
	if !cond {
		assertionFailed(fmt.Sprintf("infer: "+format, args...))
	}
}

func (b *builder) store(e ast.Expr, t types.Type) {
	if b.parsed || e == nil {
		return
	}
	prev, ok := b.result.expressions[e.ID()]
	debugAssert(!ok, "expression %d at %s inferred twice (%s, then %s)", e.ID(), e.Span(), prev, t)
	b.result.expressions[e.ID()] = t
}

func (b *builder) storeBinding(def *semantic.Definition, t types.Type) {
	b.result.bindings[def] = t
}

func (b *builder) storeDeclaration(def *semantic.Definition, t types.TypeAndQualifiers) {
	b.result.declarations[def] = t
}

func (b *builder) report(node ast.Node, lint string, format string, args ...any) {
	b.reportAt(node.Span(), lint, format, args...)
}

func (b *builder) reportAt(rng ast.Range, lint string, format string, args ...any) {
	b.result.diagnostics.Add(diag.Diagnostic{
		File:     b.file.Path,
		Range:    rng,
		Lint:     lint,
		Severity: diag.Rules(nil).Severity(lint),
		Message:  fmt.Sprintf(format, args...),
	})
}

func (b *builder) reportIssues(node ast.Node, issues []types.Issue) {
	for _, is := range issues {
		b.report(node, is.Lint, "%s", is.Message)
	}
}

func (b *builder) merge(other *TypeInference) {
	b.result.extend(other)
}

// definition infers def in its own region and merges the result.
func (b *builder) definition(def *semantic.Definition) *TypeInference {
	r := b.s.InferDefinition(def)
	b.merge(r)
	return r
}

func (b *builder) definitionsOf(node ast.Node) {
	for _, def := range b.ix.Definitions(node) {
		b.definition(def)
	}
}

// withDeferred runs f resolving names against end-of-scope bindings when
// on is set.
func (b *builder) withDeferred(on bool, f func()) {
	prev := b.deferred
	b.deferred = prev || on
	f()
	b.deferred = prev
}

func (b *builder) finish() *TypeInference {
	return b.result
}

func (b *builder) db() types.Db { return b.s }
