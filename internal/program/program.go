// Package program owns the set of files an analysis can see: search paths,
// module resolution, and the per-file parse and semantic-index caches shared
// by every inference session.
package program

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/pyparse"
	"github.com/jward/knot/internal/semantic"
)

// ErrNotFound is returned when a module or file cannot be resolved.
var ErrNotFound = errors.New("not found")

// SearchPathKind orders search paths by provenance.
type SearchPathKind uint8

const (
	Extra SearchPathKind = iota
	FirstParty
	Vendored
)

func (k SearchPathKind) String() string {
	switch k {
	case Extra:
		return "extra"
	case FirstParty:
		return "first-party"
	default:
		return "vendored"
	}
}

// SearchPath is a root that modules are resolved against.
type SearchPath struct {
	Kind SearchPathKind
	// Root is the display prefix for files found here. For on-disk roots
	// it is the absolute directory.
	Root string
	FS   fs.FS
}

// DirSearchPath returns a search path over an on-disk directory.
func DirSearchPath(kind SearchPathKind, dir string) (SearchPath, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return SearchPath{}, fmt.Errorf("search path %s: %w", dir, err)
	}
	return SearchPath{Kind: kind, Root: abs, FS: os.DirFS(abs)}, nil
}

func (sp *SearchPath) display(rel string) string {
	if sp.Kind == Vendored {
		return "<vendored>/" + rel
	}
	return filepath.Join(sp.Root, filepath.FromSlash(rel))
}

// Parsed is a lowered module plus its syntax errors.
type Parsed struct {
	Module *ast.Module
	Errors []pyparse.SyntaxError
	MaxID  ast.NodeID
}

type entry struct {
	parseOnce sync.Once
	parsed    *Parsed
	parseErr  error

	indexOnce sync.Once
	index     *semantic.Index
}

type resolution struct {
	file *File
	err  error
}

// Program is safe for concurrent use. Files, parsed trees and semantic
// indexes are produced once and then shared read-only.
type Program struct {
	paths []*SearchPath

	mu      sync.Mutex
	files   map[string]*File
	modules map[string]resolution
	entries map[*File]*entry
	owners  map[*semantic.Index]*File
}

// New creates a Program over the given search paths, in priority order.
// The vendored stubs are always searched last.
func New(paths ...SearchPath) *Program {
	p := &Program{
		files:   make(map[string]*File),
		modules: make(map[string]resolution),
		entries: make(map[*File]*entry),
		owners:  make(map[*semantic.Index]*File),
	}
	for i := range paths {
		sp := paths[i]
		p.paths = append(p.paths, &sp)
	}
	p.paths = append(p.paths, &SearchPath{Kind: Vendored, Root: "<vendored>", FS: Typeshed()})
	return p
}

// SearchPaths returns the search paths in resolution order.
func (p *Program) SearchPaths() []SearchPath {
	out := make([]SearchPath, len(p.paths))
	for i, sp := range p.paths {
		out[i] = *sp
	}
	return out
}

// Resolve maps a dotted module name to its file. Within each search path a
// stub wins over a source file, and a module file wins over a package.
func (p *Program) Resolve(module string) (*File, error) {
	if module == "" {
		return nil, fmt.Errorf("resolve %q: %w", module, ErrNotFound)
	}
	p.mu.Lock()
	if r, ok := p.modules[module]; ok {
		p.mu.Unlock()
		return r.file, r.err
	}
	p.mu.Unlock()

	f, err := p.resolve(module)
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.modules[module]; ok {
		return r.file, r.err
	}
	p.modules[module] = resolution{file: f, err: err}
	return f, err
}

func (p *Program) resolve(module string) (*File, error) {
	for _, part := range strings.Split(module, ".") {
		if !isIdentifier(part) {
			return nil, fmt.Errorf("resolve %q: %w", module, ErrNotFound)
		}
	}
	base := strings.ReplaceAll(module, ".", "/")
	candidates := []string{base + ".pyi", base + ".py", base + "/__init__.pyi", base + "/__init__.py"}
	for _, sp := range p.paths {
		for _, rel := range candidates {
			info, err := fs.Stat(sp.FS, rel)
			if err != nil || info.IsDir() {
				continue
			}
			return p.load(sp, rel)
		}
	}
	return nil, fmt.Errorf("resolve %q: %w", module, ErrNotFound)
}

// load returns the File for rel under sp, reading it at most once.
func (p *Program) load(sp *SearchPath, rel string) (*File, error) {
	display := sp.display(rel)
	p.mu.Lock()
	if f, ok := p.files[display]; ok {
		p.mu.Unlock()
		return f, nil
	}
	p.mu.Unlock()

	name, isStub, isPackage, ok := moduleName(rel)
	if !ok {
		return nil, fmt.Errorf("load %s: not a python file", display)
	}
	src, err := fs.ReadFile(sp.FS, rel)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", display, err)
	}
	f := &File{
		Path:      display,
		Module:    name,
		IsStub:    isStub,
		IsPackage: isPackage,
		Source:    src,
		Hash:      HashSource(src),
		Kind:      sp.Kind,
		rel:       rel,
		sp:        sp,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.files[display]; ok {
		return existing, nil
	}
	p.files[display] = f
	return f, nil
}

// FileForPath returns the File for an on-disk path. A path under a search
// root takes its module name from that root; any other path becomes a
// top-level module named after its stem.
func (p *Program) FileForPath(filePath string) (*File, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", filePath, err)
	}
	for _, sp := range p.paths {
		if sp.Kind == Vendored {
			continue
		}
		rel, err := filepath.Rel(sp.Root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		f, err := p.load(sp, filepath.ToSlash(rel))
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	dir := filepath.Dir(abs)
	sp := &SearchPath{Kind: FirstParty, Root: dir, FS: os.DirFS(dir)}
	return p.load(sp, filepath.Base(abs))
}

// AddSource registers an in-memory file under a first-party display path.
// Module resolution does not find it unless a search path also contains it.
func (p *Program) AddSource(displayPath, module string, src []byte) *File {
	f := &File{
		Path:   displayPath,
		Module: module,
		IsStub: strings.HasSuffix(displayPath, ".pyi"),
		Source: src,
		Hash:   HashSource(src),
		Kind:   FirstParty,
	}
	f.IsPackage = path.Base(filepath.ToSlash(displayPath)) == "__init__.py" ||
		path.Base(filepath.ToSlash(displayPath)) == "__init__.pyi"
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[displayPath] = f
	return f
}

// RelativeModule computes the absolute module named by a relative import of
// module at level from importer.
func RelativeModule(importer *File, module string, level int) (string, error) {
	if level == 0 {
		return module, nil
	}
	pkg := importer.Package()
	parts := []string{}
	if pkg != "" {
		parts = strings.Split(pkg, ".")
	}
	if level-1 > len(parts) {
		return "", fmt.Errorf("relative import beyond top-level package: %w", ErrNotFound)
	}
	parts = parts[:len(parts)-(level-1)]
	if module != "" {
		parts = append(parts, module)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("relative import of nothing: %w", ErrNotFound)
	}
	return strings.Join(parts, "."), nil
}

func (p *Program) entry(f *File) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[f]
	if !ok {
		e = &entry{}
		p.entries[f] = e
	}
	return e
}

// Parse returns the lowered tree of f, parsing it once.
func (p *Program) Parse(f *File) (*Parsed, error) {
	e := p.entry(f)
	e.parseOnce.Do(func() {
		res, err := pyparse.Parse(context.Background(), f.Source)
		if err != nil {
			e.parseErr = fmt.Errorf("parse %s: %w", f.Path, err)
			return
		}
		e.parsed = &Parsed{Module: res.Module, Errors: res.Errors, MaxID: res.MaxID}
	})
	return e.parsed, e.parseErr
}

// Index returns the semantic index of f, building it once. A file that
// cannot be parsed yields an index over an empty module.
func (p *Program) Index(f *File) *semantic.Index {
	e := p.entry(f)
	e.indexOnce.Do(func() {
		mod := &ast.Module{}
		if parsed, err := p.Parse(f); err == nil {
			mod = parsed.Module
		}
		e.index = semantic.Build(mod, semantic.Options{
			IsStub: f.IsStub,
			StarImport: func(module string, level int) []string {
				return p.starImportNames(f, module, level)
			},
		})
		p.mu.Lock()
		p.owners[e.index] = f
		p.mu.Unlock()
	})
	return e.index
}

// FileOf returns the file an index was built from, or nil for an index
// this program did not build.
func (p *Program) FileOf(ix *semantic.Index) *File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.owners[ix]
}

func (p *Program) starImportNames(importer *File, module string, level int) []string {
	name, err := RelativeModule(importer, module, level)
	if err != nil {
		return nil
	}
	target, err := p.Resolve(name)
	if err != nil {
		return nil
	}
	return p.ExportedNames(target)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r > 0x7f:
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
