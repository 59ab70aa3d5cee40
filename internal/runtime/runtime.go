// Package runtime embeds a Risor VM so report scripts can drive the checker
// and read stored results.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/store"
)

// SymbolType is the public type of one module-level name.
type SymbolType struct {
	Name            string `json:"name" yaml:"name"`
	Type            string `json:"type" yaml:"type"`
	PossiblyUnbound bool   `json:"possibly_unbound,omitempty" yaml:"possibly_unbound,omitempty"`
}

// Host is the checker as scripts see it.
type Host interface {
	Check(ctx context.Context, path string) ([]diag.Diagnostic, error)
	Types(ctx context.Context, path string) ([]SymbolType, error)
}

// Runtime embeds a Risor VM and exposes the checker and the Store to report
// scripts.
type Runtime struct {
	store      *store.Store
	host       Host
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the log global.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime wired to the given Store, checker and scripts
// directory. s and host may be nil; the globals they back are then absent.
func NewRuntime(s *store.Store, host Host, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		host:       host,
		scriptsDir: scriptsDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script. extraGlobals are added to,
// and override, the standard globals.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source directly, without loading a file.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]risor.Option, 0, len(names)+1)
	for _, name := range names {
		opts = append(opts, risor.WithGlobal(name, globals[name]))
	}
	if imp := r.source().importer(names); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	start := time.Now()
	_, err := risor.Eval(ctx, source, opts...)
	r.logger.Debug("script finished", "script", label, "duration", time.Since(start), "err", err)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// LoadScript reads a .risor file from the configured fs.FS, or from disk
// relative to the scripts directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	data, err := r.source().read(path)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", path, err)
	}
	return string(data), nil
}

// scriptSource is where scripts and the modules they import come from.
type scriptSource interface {
	read(path string) ([]byte, error)
	// importer resolves import statements. nil disables imports.
	importer(globalNames []string) importer.Importer
}

func (r *Runtime) source() scriptSource {
	if r.fsys != nil {
		return fsSource{fsys: r.fsys}
	}
	return dirSource{dir: r.scriptsDir}
}

var scriptExtensions = []string{".risor"}

type fsSource struct {
	fsys fs.FS
}

func (s fsSource) read(path string) ([]byte, error) {
	// fs.FS paths are slash separated and never rooted:
	// "/reports/summary.risor" reads "reports/summary.risor".
	return fs.ReadFile(s.fsys, strings.TrimPrefix(filepath.ToSlash(path), "/"))
}

func (s fsSource) importer(globalNames []string) importer.Importer {
	return importer.NewFSImporter(importer.FSImporterOptions{
		GlobalNames: globalNames,
		SourceFS:    s.fsys,
		Extensions:  scriptExtensions,
	})
}

type dirSource struct {
	dir string
}

func (s dirSource) read(path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	return os.ReadFile(path)
}

func (s dirSource) importer(globalNames []string) importer.Importer {
	if s.dir == "" {
		return nil
	}
	return importer.NewLocalImporter(importer.LocalImporterOptions{
		GlobalNames: globalNames,
		SourceDir:   s.dir,
		Extensions:  scriptExtensions,
	})
}

// buildGlobals constructs the globals exposed to scripts. Host and store
// globals are present only when the Runtime has them.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": mustProxy(&logObject{logger: r.logger}),
	}
	if r.host != nil {
		globals["check"] = makeCheckFn(r.host)
		globals["types"] = makeTypesFn(r.host)
	}
	if r.store != nil {
		globals["summary"] = makeSummaryFn(r.store)
		globals["diagnostics"] = makeDiagnosticsFn(r.store)
		globals["runs"] = makeRunsFn(r.store)
		globals["files"] = makeFilesFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
