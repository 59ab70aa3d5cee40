package infer

import (
	"slices"

	"github.com/hashicorp/go-set/v3"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/program"
)

// CheckFile infers every scope of f and returns the sorted, de-duplicated
// diagnostics, syntax errors first at their positions.
func (s *Session) CheckFile(f *program.File) ([]diag.Diagnostic, error) {
	parsed, err := s.program.Parse(f)
	if err != nil {
		return nil, err
	}
	var all diag.Collection
	for _, se := range parsed.Errors {
		all.Add(diag.Diagnostic{
			File:     f.Path,
			Range:    se.Range,
			Lint:     diag.InvalidSyntax,
			Severity: diag.Rules(nil).Severity(diag.InvalidSyntax),
			Message:  se.Message,
		})
	}

	ix := s.Index(f)
	for _, scope := range ix.Scopes() {
		all.Extend(s.InferScope(ix, scope.ID).Diagnostics())
	}

	out := slices.Clone(all.Items())
	diag.Sort(out)
	s.logger.Debug("checked file", "file", f.Path, "diagnostics", len(out))
	return diag.Dedupe(out), nil
}

// Import is one module a file imports. File is nil when the module does
// not resolve.
type Import struct {
	Module string
	File   *program.File
}

// Imports returns the modules f imports, in first-import order. `from pkg
// import sub` also yields pkg.sub when it is a module; a missing pkg.sub
// is not an import failure since sub may be an attribute of pkg.
func (s *Session) Imports(f *program.File) []Import {
	parsed, err := s.program.Parse(f)
	if err != nil {
		return nil
	}
	seen := set.New[string](0)
	var out []Import
	add := func(name string, optional bool) {
		if seen.Contains(name) {
			return
		}
		target, err := s.program.Resolve(name)
		if err != nil && optional {
			return
		}
		seen.Insert(name)
		if err != nil {
			out = append(out, Import{Module: name})
			return
		}
		if target != f {
			out = append(out, Import{Module: name, File: target})
		}
	}

	ast.Inspect(parsed.Module, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Import:
			for _, a := range n.Names {
				add(a.Name, false)
			}
		case *ast.ImportFrom:
			name, err := program.RelativeModule(f, n.Module, n.Level)
			if err != nil {
				return true
			}
			add(name, false)
			if n.IsStarImport() {
				return true
			}
			for _, a := range n.Names {
				add(name+"."+a.Name, true)
			}
		}
		return true
	})
	return out
}
