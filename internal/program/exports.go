package program

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"

	"github.com/jward/knot/internal/ast"
)

// ExportedNames returns the names a `from f import *` binds: the literal
// `__all__` when the module defines one, otherwise every module-level name
// without a leading underscore. Star imports inside f are followed.
func (p *Program) ExportedNames(f *File) []string {
	names := set.New[string](16)
	p.exportedNames(f, set.New[*File](4), names)
	out := names.Slice()
	sort.Strings(out)
	return out
}

func (p *Program) exportedNames(f *File, visited *set.Set[*File], names *set.Set[string]) {
	if !visited.Insert(f) {
		return
	}
	parsed, err := p.Parse(f)
	if err != nil {
		return
	}
	if all, ok := dunderAll(parsed.Module.Body); ok {
		names.InsertSlice(all)
		return
	}
	add := func(name string) {
		if name != "" && !strings.HasPrefix(name, "_") {
			names.Insert(name)
		}
	}
	var visit func(body []ast.Stmt)
	visit = func(body []ast.Stmt) {
		for _, s := range body {
			switch s := s.(type) {
			case *ast.FunctionDef:
				add(s.Name.Name)
			case *ast.ClassDef:
				add(s.Name.Name)
			case *ast.Assign:
				for _, t := range s.Targets {
					targetNames(t, add)
				}
			case *ast.AnnAssign:
				if s.Value != nil || f.IsStub {
					targetNames(s.Target, add)
				}
			case *ast.AugAssign:
				targetNames(s.Target, add)
			case *ast.TypeAlias:
				add(s.Name.Ident)
			case *ast.Import:
				for _, a := range s.Names {
					if a.AsName != nil {
						add(a.AsName.Name)
					} else if !f.IsStub {
						add(strings.SplitN(a.Name, ".", 2)[0])
					}
				}
			case *ast.ImportFrom:
				if s.IsStarImport() {
					name, err := RelativeModule(f, s.Module, s.Level)
					if err != nil {
						continue
					}
					if target, err := p.Resolve(name); err == nil {
						p.exportedNames(target, visited, names)
					}
					continue
				}
				for _, a := range s.Names {
					switch {
					case a.AsName != nil:
						// Stubs re-export only `import x as x`.
						if !f.IsStub || a.AsName.Name == a.Name {
							add(a.AsName.Name)
						}
					case !f.IsStub:
						add(a.Name)
					}
				}
			case *ast.If:
				visit(s.Body)
				visit(s.Orelse)
			case *ast.Try:
				visit(s.Body)
				for _, h := range s.Handlers {
					visit(h.Body)
				}
				visit(s.Orelse)
				visit(s.Finalbody)
			case *ast.With:
				visit(s.Body)
			case *ast.For:
				targetNames(s.Target, add)
				visit(s.Body)
				visit(s.Orelse)
			case *ast.While:
				visit(s.Body)
				visit(s.Orelse)
			}
		}
	}
	visit(parsed.Module.Body)
}

func targetNames(e ast.Expr, add func(string)) {
	switch e := e.(type) {
	case *ast.Name:
		add(e.Ident)
	case *ast.Tuple:
		for _, elt := range e.Elts {
			targetNames(elt, add)
		}
	case *ast.List:
		for _, elt := range e.Elts {
			targetNames(elt, add)
		}
	case *ast.Starred:
		targetNames(e.Value, add)
	}
}

// dunderAll returns the string elements of a module-level
// `__all__ = [...]` or `__all__ = (...)`.
func dunderAll(body []ast.Stmt) ([]string, bool) {
	var out []string
	found := false
	for _, s := range body {
		a, ok := s.(*ast.Assign)
		if !ok || len(a.Targets) != 1 {
			continue
		}
		n, ok := a.Targets[0].(*ast.Name)
		if !ok || n.Ident != "__all__" {
			continue
		}
		var elts []ast.Expr
		switch v := a.Value.(type) {
		case *ast.List:
			elts = v.Elts
		case *ast.Tuple:
			elts = v.Elts
		default:
			continue
		}
		found = true
		out = out[:0]
		for _, e := range elts {
			if lit, ok := e.(*ast.StringLiteral); ok && !lit.FString {
				out = append(out, lit.Value)
			}
		}
	}
	return out, found
}
