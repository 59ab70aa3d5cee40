package knot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/infer"
	"github.com/jward/knot/internal/program"
	"github.com/jward/knot/internal/runtime"
	"github.com/jward/knot/internal/store"
)

// ErrFileNotFound is returned when a path given to the engine does not exist.
var ErrFileNotFound = errors.New("file not found")

// Engine checks the files of one project and keeps the results in a SQLite
// store so unchanged files are not checked again.
type Engine struct {
	store         *store.Store
	project       *Project
	logger        *slog.Logger
	scriptsDir    string
	scriptsFS     fs.FS
	maxIterations int

	// fingerprint identifies the settings cached diagnostics were produced
	// under. It is mixed into every stored file hash.
	fingerprint string

	// useParallel enables the worker pool in CheckFiles.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel controls parallel checking. When true (default), CheckFiles
// uses a worker pool with one inference session per worker and a single
// writer committing results to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithLogger sets the logger for the engine and its sessions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithProject uses p instead of discovering a project from the root.
func WithProject(p *Project) Option {
	return func(e *Engine) {
		e.project = p
	}
}

// WithScriptsFS configures the Engine to load Risor scripts from the given
// filesystem instead of from disk. This enables embedding scripts via
// go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithScriptsDir sets the directory relative script paths resolve against.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithMaxIterations bounds fixpoint iteration for cyclic queries.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// New creates an Engine backed by a SQLite database at dbPath, checking the
// project that encloses root.
func New(dbPath string, root string, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:      slog.Default(),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.project == nil {
		p, err := DiscoverProject(root)
		if err != nil {
			return nil, fmt.Errorf("knot: %w", err)
		}
		e.project = p
	}
	e.fingerprint = settingsFingerprint(e.project)

	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("knot: open store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("knot: migrate: %w", err)
	}
	e.store = s
	e.logger.Debug("engine ready", "project", e.project.Name, "root", e.project.Root, "db", dbPath)
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Project returns the project the engine checks.
func (e *Engine) Project() *Project {
	return e.project
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

func settingsFingerprint(p *Project) string {
	var b strings.Builder
	for _, dir := range p.ExtraPaths {
		b.WriteString("extra=" + dir + "\n")
	}
	for _, dir := range p.Src {
		b.WriteString("src=" + dir + "\n")
	}
	names := make([]string, 0, len(p.Rules))
	for name := range p.Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString("rule=" + name + ":" + p.Rules[name].String() + "\n")
	}
	return program.HashSource([]byte(b.String()))
}

// cacheKey is the stored hash of f: its content under the current settings.
func (e *Engine) cacheKey(f *program.File) string {
	return program.HashSource([]byte(f.Hash + "\x00" + e.fingerprint))
}

func (e *Engine) newProgram() (*program.Program, error) {
	paths, err := e.project.SearchPaths()
	if err != nil {
		return nil, err
	}
	return program.New(paths...), nil
}

func (e *Engine) newSession(prog *program.Program) *infer.Session {
	opts := []infer.Option{infer.WithLogger(e.logger)}
	if e.maxIterations > 0 {
		opts = append(opts, infer.WithMaxIterations(e.maxIterations))
	}
	return infer.NewSession(prog, opts...)
}

// FileReport is the outcome of checking one file.
type FileReport struct {
	Path        string
	Module      string
	Cached      bool
	Diagnostics []Diagnostic
}

// Report is the outcome of one CheckFiles call.
type Report struct {
	RunID string
	Files []FileReport
}

// Diagnostics returns every diagnostic in the report in file order.
func (r *Report) Diagnostics() []Diagnostic {
	var out []Diagnostic
	for _, f := range r.Files {
		out = append(out, f.Diagnostics...)
	}
	return out
}

// HasErrors reports whether any diagnostic is at error level.
func (r *Report) HasErrors() bool {
	for _, f := range r.Files {
		for _, d := range f.Diagnostics {
			if d.Severity == diag.Error {
				return true
			}
		}
	}
	return false
}

// Counts returns the number of checked and cached files.
func (r *Report) Counts() (checked, cached int) {
	for _, f := range r.Files {
		if f.Cached {
			cached++
		} else {
			checked++
		}
	}
	return checked, cached
}

// CheckFiles checks the given Python files. A file whose content and import
// closure are unchanged since it was last stored reuses its stored
// diagnostics. Files that fail to load are reported in the returned error;
// the report still covers every file that could be checked.
func (e *Engine) CheckFiles(ctx context.Context, paths []string) (*Report, error) {
	run, err := e.store.BeginRun(uuid.NewString(), e.project.Root, time.Now())
	if err != nil {
		return nil, fmt.Errorf("knot: %w", err)
	}
	prog, err := e.newProgram()
	if err != nil {
		return nil, e.failRun(run, fmt.Errorf("knot: %w", err))
	}

	report := &Report{RunID: run.ID}
	var errs []error
	if e.useParallel {
		errs = e.checkFilesParallel(ctx, prog, paths, report)
	} else {
		errs = e.checkFilesSerial(ctx, prog, paths, report)
	}

	sort.Slice(report.Files, func(i, j int) bool { return report.Files[i].Path < report.Files[j].Path })

	run.FilesChecked, run.FilesCached = report.Counts()
	for _, d := range report.Diagnostics() {
		run.Diagnostics++
		if d.Severity == diag.Error {
			run.Errors++
		}
	}
	run.Status = store.RunComplete
	if len(errs) > 0 {
		run.Status = store.RunFailed
	}
	finished := time.Now()
	run.FinishedAt = &finished
	if err := e.store.FinishRun(run); err != nil {
		errs = append(errs, err)
	}
	e.logger.Debug("run finished", "run", run.ID, "checked", run.FilesChecked,
		"cached", run.FilesCached, "diagnostics", run.Diagnostics, "took", finished.Sub(run.StartedAt))

	if len(errs) > 0 {
		return report, fmt.Errorf("checking had %d error(s): %w", len(errs), errs[0])
	}
	return report, nil
}

func (e *Engine) failRun(run *store.Run, cause error) error {
	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = store.RunFailed
	if err := e.store.FinishRun(run); err != nil {
		e.logger.Warn("could not record failed run", "run", run.ID, "err", err)
	}
	return cause
}

func (e *Engine) checkFilesSerial(ctx context.Context, prog *program.Program, paths []string, report *Report) []error {
	sess := e.newSession(prog)
	var errs []error
	for _, path := range dedupePaths(paths) {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		item, cached, err := e.prepareFile(prog, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("check %s: %w", path, err))
			continue
		}
		if cached != nil {
			report.Files = append(report.Files, *cached)
			continue
		}
		res := e.checkFile(sess, item, report.RunID)
		if res.panicked {
			sess = e.newSession(prog)
		}
		if err := e.store.CommitBatch(res.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", path, err))
			continue
		}
		report.Files = append(report.Files, res.report)
	}
	return errs
}

// prepareFile loads path and returns either a work item to check or the
// cached report when the stored results are still valid.
func (e *Engine) prepareFile(prog *program.Program, path string) (*program.File, *FileReport, error) {
	f, err := prog.FileForPath(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, program.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return nil, nil, err
	}
	existing, err := e.store.FileByPath(f.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup file: %w", err)
	}
	if existing == nil || existing.Hash != e.cacheKey(f) {
		return f, nil, nil
	}
	fresh, err := e.closureFresh(prog, existing.ID)
	if err != nil {
		return nil, nil, err
	}
	if !fresh {
		return f, nil, nil
	}
	stored, err := e.store.DiagnosticsByFile(existing.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load diagnostics: %w", err)
	}
	e.logger.Debug("cache hit", "file", f.Path)
	return nil, &FileReport{
		Path:        f.Path,
		Module:      f.Module,
		Cached:      true,
		Diagnostics: fromStored(f.Path, stored),
	}, nil
}

// closureFresh reports whether every module recorded in a file's import
// closure still resolves to the same file with the same content, and every
// module that did not resolve still does not.
func (e *Engine) closureFresh(prog *program.Program, fileID int64) (bool, error) {
	imports, err := e.store.ImportsByFile(fileID)
	if err != nil {
		return false, fmt.Errorf("load imports: %w", err)
	}
	for _, imp := range imports {
		target, err := prog.Resolve(imp.Module)
		if imp.Path == nil {
			if err == nil {
				return false, nil
			}
			continue
		}
		if err != nil || target.Path != *imp.Path || imp.Hash == nil || target.Hash != *imp.Hash {
			return false, nil
		}
	}
	return true, nil
}

type checkResult struct {
	report   FileReport
	batch    *store.BatchedStore
	panicked bool
}

// checkFile runs inference over f and buffers its results. A panic inside
// the checker becomes an internal-error diagnostic for f alone.
func (e *Engine) checkFile(sess *infer.Session, f *program.File, runID string) (res checkResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("checker panic", "file", f.Path, "panic", r)
			ds := []diag.Diagnostic{{
				File:     f.Path,
				Lint:     diag.InternalError,
				Severity: diag.Error,
				Message:  fmt.Sprintf("Internal error while checking `%s`: %v", f.Path, r),
			}}
			res = e.buffer(f, runID, ds, nil)
			res.panicked = true
		}
	}()

	ds, err := sess.CheckFile(f)
	if err != nil {
		ds = []diag.Diagnostic{{
			File:     f.Path,
			Lint:     diag.InternalError,
			Severity: diag.Error,
			Message:  err.Error(),
		}}
	}
	ds = e.project.Rules.Apply(ds)
	res = e.buffer(f, runID, ds, importClosure(sess, f))
	e.logger.Debug("checked", "file", f.Path, "diagnostics", len(ds), "took", time.Since(start))
	return res
}

func (e *Engine) buffer(f *program.File, runID string, ds []diag.Diagnostic, closure []store.Import) checkResult {
	batch := store.NewBatchedStore()
	fileID := batch.AddFile(&store.File{
		Path:        f.Path,
		Module:      f.Module,
		Hash:        e.cacheKey(f),
		LastChecked: time.Now(),
		RunID:       runID,
	})
	for _, d := range ds {
		sd := toStored(d)
		sd.FileID = fileID
		_, _ = batch.InsertDiagnostic(&sd)
	}
	for _, imp := range closure {
		imp.FileID = fileID
		_, _ = batch.InsertImport(&imp)
	}
	return checkResult{
		report: FileReport{Path: f.Path, Module: f.Module, Diagnostics: ds},
		batch:  batch,
	}
}

// importClosure follows f's imports transitively. Direct marks the modules
// f imports itself.
func importClosure(sess *infer.Session, f *program.File) []store.Import {
	var out []store.Import
	seen := map[string]bool{}
	visited := map[*program.File]bool{f: true}
	queue := []*program.File{f}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, imp := range sess.Imports(cur) {
			if seen[imp.Module] {
				continue
			}
			seen[imp.Module] = true
			rec := store.Import{Module: imp.Module, Direct: cur == f}
			if imp.File != nil {
				path, hash := imp.File.Path, imp.File.Hash
				rec.Path, rec.Hash = &path, &hash
				if !visited[imp.File] {
					visited[imp.File] = true
					queue = append(queue, imp.File)
				}
			}
			out = append(out, rec)
		}
	}
	return out
}

func toStored(d diag.Diagnostic) store.Diagnostic {
	return store.Diagnostic{
		Lint:        d.Lint,
		Severity:    d.Severity.String(),
		Message:     d.Message,
		StartLine:   d.Range.Start.Line,
		StartCol:    d.Range.Start.Column,
		EndLine:     d.Range.End.Line,
		EndCol:      d.Range.End.Column,
		StartOffset: d.Range.Start.Offset,
		EndOffset:   d.Range.End.Offset,
	}
}

func fromStored(path string, stored []*store.Diagnostic) []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0, len(stored))
	for _, sd := range stored {
		sev, err := diag.ParseSeverity(sd.Severity)
		if err != nil {
			sev = diag.Error
		}
		out = append(out, diag.Diagnostic{
			File: path,
			Range: ast.Range{
				Start: ast.Position{Line: sd.StartLine, Column: sd.StartCol, Offset: sd.StartOffset},
				End:   ast.Position{Line: sd.EndLine, Column: sd.EndCol, Offset: sd.EndOffset},
			},
			Lint:     sd.Lint,
			Severity: sev,
			Message:  sd.Message,
		})
	}
	return out
}

func dedupePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

// Check checks a single file and returns its diagnostics.
func (e *Engine) Check(ctx context.Context, path string) ([]Diagnostic, error) {
	report, err := e.CheckFiles(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	return report.Diagnostics(), nil
}

// Types returns the public type of every module-level name in the file at
// path, in definition order.
func (e *Engine) Types(ctx context.Context, path string) ([]SymbolType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prog, err := e.newProgram()
	if err != nil {
		return nil, fmt.Errorf("knot: %w", err)
	}
	f, err := prog.FileForPath(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, program.ErrNotFound) {
			return nil, fmt.Errorf("knot: types %s: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("knot: types %s: %w", path, err)
	}
	sess := e.newSession(prog)
	var out []SymbolType
	for _, nt := range sess.PublicTypes(sess.Index(f)) {
		out = append(out, SymbolType{
			Name:            nt.Name,
			Type:            nt.Type.String(),
			PossiblyUnbound: nt.PossiblyUnbound,
		})
	}
	return out, nil
}

// CheckDirectory checks every Python file under dir. Inside a git work tree
// the files come from the index plus untracked files that are not ignored;
// otherwise the directory is walked. Stored results for files under dir
// that no longer exist are removed.
func (e *Engine) CheckDirectory(ctx context.Context, dir string) (*Report, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("knot: %w", err)
	}
	paths, err := gitListFiles(abs)
	if err != nil {
		e.logger.Debug("git discovery unavailable, walking", "dir", abs, "err", err)
		paths, err = walkListFiles(abs)
		if err != nil {
			return nil, fmt.Errorf("knot: %w", err)
		}
	}
	if err := e.pruneMissing(abs, paths); err != nil {
		return nil, fmt.Errorf("knot: %w", err)
	}
	return e.CheckFiles(ctx, paths)
}

func (e *Engine) pruneMissing(dir string, present []string) error {
	stored, err := e.store.FilesUnder(dir + string(filepath.Separator))
	if err != nil {
		return err
	}
	var stale []int64
	for _, f := range stored {
		if slices.Contains(present, f.Path) {
			continue
		}
		if _, err := os.Stat(f.Path); errors.Is(err, fs.ErrNotExist) {
			stale = append(stale, f.ID)
		}
	}
	if len(stale) > 0 {
		e.logger.Debug("removing stale files", "count", len(stale))
	}
	return e.store.DeleteFiles(stale)
}

// RunScript executes a Risor script with the checker exposed as globals.
func (e *Engine) RunScript(ctx context.Context, path string) error {
	var opts []runtime.RuntimeOption
	if e.scriptsFS != nil {
		opts = append(opts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	opts = append(opts, runtime.WithLogger(e.logger))
	rt := runtime.NewRuntime(e.store, e, e.scriptsDir, opts...)
	return rt.RunScript(ctx, path, nil)
}
