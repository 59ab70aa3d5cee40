package knot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/store"
)

// writeFiles writes name → source pairs under dir, creating parents.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
}

// newTestEngine creates a project directory holding files and an Engine
// over it backed by a temp DB.
func newTestEngine(t *testing.T, files map[string]string, opts ...Option) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)
	e := openEngine(t, filepath.Join(t.TempDir(), "test.db"), root, opts...)
	return e, root
}

func openEngine(t *testing.T, dbPath, root string, opts ...Option) *Engine {
	t.Helper()
	e, err := New(dbPath, root, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func lintsOf(ds []Diagnostic) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.Lint)
	}
	return out
}

func fileReport(t *testing.T, r *Report, path string) FileReport {
	t.Helper()
	for _, f := range r.Files {
		if f.Path == path {
			return f
		}
	}
	t.Fatalf("no report for %s", path)
	return FileReport{}
}

// bothModes runs fn once with the worker pool and once serially.
func bothModes(t *testing.T, fn func(t *testing.T, opt Option)) {
	t.Helper()
	t.Run("parallel", func(t *testing.T) { fn(t, WithParallel(true)) })
	t.Run("serial", func(t *testing.T) { fn(t, WithParallel(false)) })
}

func TestNew_CreatesStoreAndProject(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{"main.py": "x = 1\n"})

	require.NotNil(t, e.Store())
	require.NotNil(t, e.Project())
	assert.Equal(t, root, e.Project().Root)
	assert.Equal(t, filepath.Base(root), e.Project().Name)

	files, err := e.Query().Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/dir/db.sqlite", t.TempDir())
	require.Error(t, err)
}

func TestNew_InvalidProjectConfig(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"pyproject.toml": "[tool.knot\n"})
	_, err := New(filepath.Join(t.TempDir(), "test.db"), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pyproject.toml")
}

func TestCheckFiles_ReportsDiagnostics(t *testing.T) {
	bothModes(t, func(t *testing.T, opt Option) {
		e, root := newTestEngine(t, map[string]string{
			"main.py":  "x = nope\n",
			"clean.py": "y = 1\n",
		}, opt)
		main := filepath.Join(root, "main.py")
		clean := filepath.Join(root, "clean.py")

		report, err := e.CheckFiles(context.Background(), []string{main, clean})
		require.NoError(t, err)
		require.Len(t, report.Files, 2)
		assert.NotEmpty(t, report.RunID)
		assert.True(t, report.HasErrors())

		mr := fileReport(t, report, main)
		assert.Equal(t, "main", mr.Module)
		assert.False(t, mr.Cached)
		require.Len(t, mr.Diagnostics, 1)
		d := mr.Diagnostics[0]
		assert.Equal(t, diag.UnresolvedReference, d.Lint)
		assert.Equal(t, diag.Error, d.Severity)
		assert.Equal(t, "Name `nope` used when not defined", d.Message)
		assert.Equal(t, main, d.File)

		assert.Empty(t, fileReport(t, report, clean).Diagnostics)

		stored, err := e.Query().Diagnostics(DiagnosticFilter{Path: main})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, d.Message, stored[0].Message)
		assert.Equal(t, d.Range.Start.Line, stored[0].StartLine)
	})
}

func TestCheckFiles_ReusesUnchangedResults(t *testing.T) {
	bothModes(t, func(t *testing.T, opt Option) {
		e, root := newTestEngine(t, map[string]string{
			"main.py": "import util\nx = nope\n",
			"util.py": "y = 1\n",
		}, opt)
		main := filepath.Join(root, "main.py")
		ctx := context.Background()

		first, err := e.CheckFiles(ctx, []string{main})
		require.NoError(t, err)
		second, err := e.CheckFiles(ctx, []string{main})
		require.NoError(t, err)

		mr := fileReport(t, second, main)
		assert.True(t, mr.Cached)
		assert.Equal(t, fileReport(t, first, main).Diagnostics, mr.Diagnostics)

		run, err := e.Query().Run(second.RunID)
		require.NoError(t, err)
		assert.Equal(t, store.RunComplete, run.Status)
		assert.Equal(t, 0, run.FilesChecked)
		assert.Equal(t, 1, run.FilesCached)
		assert.Equal(t, 1, run.Errors)
	})
}

func TestCheckFiles_RechecksWhenContentChanges(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{"main.py": "x = nope\n"})
	main := filepath.Join(root, "main.py")
	ctx := context.Background()

	_, err := e.CheckFiles(ctx, []string{main})
	require.NoError(t, err)

	writeFiles(t, root, map[string]string{"main.py": "x = 1\n"})
	report, err := e.CheckFiles(ctx, []string{main})
	require.NoError(t, err)
	mr := fileReport(t, report, main)
	assert.False(t, mr.Cached)
	assert.Empty(t, mr.Diagnostics)

	stored, err := e.Query().Diagnostics(DiagnosticFilter{Path: main})
	require.NoError(t, err)
	assert.Empty(t, stored, "stale diagnostics replaced")
}

func TestCheckFiles_RechecksWhenImportChanges(t *testing.T) {
	bothModes(t, func(t *testing.T, opt Option) {
		e, root := newTestEngine(t, map[string]string{
			"main.py":         "from pkg.util import helper\n",
			"pkg/__init__.py": "",
			"pkg/util.py":     "other = 1\n",
		}, opt)
		main := filepath.Join(root, "main.py")
		ctx := context.Background()

		report, err := e.CheckFiles(ctx, []string{main})
		require.NoError(t, err)
		assert.Equal(t, []string{diag.UnresolvedImport}, lintsOf(report.Diagnostics()))

		deps, err := e.Query().Dependencies(main)
		require.NoError(t, err)
		var modules []string
		for _, d := range deps {
			modules = append(modules, d.Module)
		}
		assert.Contains(t, modules, "pkg.util")

		dependents, err := e.Query().Dependents(filepath.Join(root, "pkg", "util.py"))
		require.NoError(t, err)
		require.Len(t, dependents, 1)
		assert.Equal(t, main, dependents[0].Path)

		writeFiles(t, root, map[string]string{"pkg/util.py": "helper = 1\n"})
		report, err = e.CheckFiles(ctx, []string{main})
		require.NoError(t, err)
		mr := fileReport(t, report, main)
		assert.False(t, mr.Cached, "a changed import invalidates the cached result")
		assert.Empty(t, mr.Diagnostics)
	})
}

func TestCheckFiles_RechecksWhenMissingModuleAppears(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{"main.py": "import later\n"})
	main := filepath.Join(root, "main.py")
	ctx := context.Background()

	report, err := e.CheckFiles(ctx, []string{main})
	require.NoError(t, err)
	assert.Equal(t, []string{diag.UnresolvedImport}, lintsOf(report.Diagnostics()))

	report, err = e.CheckFiles(ctx, []string{main})
	require.NoError(t, err)
	assert.True(t, fileReport(t, report, main).Cached)

	writeFiles(t, root, map[string]string{"later.py": ""})
	report, err = e.CheckFiles(ctx, []string{main})
	require.NoError(t, err)
	mr := fileReport(t, report, main)
	assert.False(t, mr.Cached)
	assert.Empty(t, mr.Diagnostics)
}

func TestCheckFiles_TransitiveImportChange(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{
		"main.py": "from a import value\n",
		"a.py":    "from b import value\n",
		"b.py":    "value = 1\n",
	})
	main := filepath.Join(root, "main.py")
	ctx := context.Background()

	_, err := e.CheckFiles(ctx, []string{main})
	require.NoError(t, err)

	writeFiles(t, root, map[string]string{"b.py": "other = 1\n"})
	report, err := e.CheckFiles(ctx, []string{main})
	require.NoError(t, err)
	assert.False(t, fileReport(t, report, main).Cached)
}

func TestCheckFiles_MissingFile(t *testing.T) {
	bothModes(t, func(t *testing.T, opt Option) {
		e, root := newTestEngine(t, map[string]string{"main.py": "x = 1\n"}, opt)
		main := filepath.Join(root, "main.py")

		report, err := e.CheckFiles(context.Background(), []string{main, filepath.Join(root, "gone.py")})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFileNotFound)
		assert.Contains(t, err.Error(), "checking had 1 error(s)")
		require.NotNil(t, report)
		require.Len(t, report.Files, 1)

		run, err := e.Query().Run(report.RunID)
		require.NoError(t, err)
		assert.Equal(t, store.RunFailed, run.Status)
		assert.Equal(t, 1, run.FilesChecked)
	})
}

func TestCheckFiles_DeduplicatesPaths(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{"main.py": "x = 1\n"})
	main := filepath.Join(root, "main.py")

	report, err := e.CheckFiles(context.Background(), []string{main, main})
	require.NoError(t, err)
	assert.Len(t, report.Files, 1)
}

func TestCheckFiles_CanceledContext(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{"main.py": "x = 1\n"}, WithParallel(false))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.CheckFiles(ctx, []string{filepath.Join(root, "main.py")})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckFiles_ProjectRules(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	writeFiles(t, root, map[string]string{"main.py": "import missing\nx = nope\n"})
	main := filepath.Join(root, "main.py")
	ctx := context.Background()

	e := openEngine(t, dbPath, root)
	report, err := e.CheckFiles(ctx, []string{main})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{diag.UnresolvedImport, diag.UnresolvedReference}, lintsOf(report.Diagnostics()))
	require.NoError(t, e.Close())

	writeFiles(t, root, map[string]string{"pyproject.toml": `
[project]
name = "demo"

[tool.knot.rules]
unresolved-import = "ignore"
unresolved-reference = "warn"
`})
	e = openEngine(t, dbPath, root)
	assert.Equal(t, "demo", e.Project().Name)

	report, err = e.CheckFiles(ctx, []string{main})
	require.NoError(t, err)
	mr := fileReport(t, report, main)
	assert.False(t, mr.Cached, "changed rules invalidate cached results")
	require.Len(t, mr.Diagnostics, 1)
	assert.Equal(t, diag.UnresolvedReference, mr.Diagnostics[0].Lint)
	assert.Equal(t, diag.Warning, mr.Diagnostics[0].Severity)
	assert.False(t, report.HasErrors())
}

func TestCheckFiles_WithProject(t *testing.T) {
	root := t.TempDir()
	lib := t.TempDir()
	writeFiles(t, root, map[string]string{"main.py": "from shared import value\n"})
	writeFiles(t, lib, map[string]string{"shared.py": "value = 1\n"})

	p, err := DiscoverProject(root)
	require.NoError(t, err)
	p.ExtraPaths = []string{lib}

	e := openEngine(t, filepath.Join(t.TempDir(), "test.db"), root, WithProject(p))
	report, err := e.CheckFiles(context.Background(), []string{filepath.Join(root, "main.py")})
	require.NoError(t, err)
	assert.Empty(t, report.Diagnostics())
}

func TestCheck_SingleFile(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{"main.py": "x = nope\n"})
	ds, err := e.Check(context.Background(), filepath.Join(root, "main.py"))
	require.NoError(t, err)
	assert.Equal(t, []string{diag.UnresolvedReference}, lintsOf(ds))
}

func TestTypes(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{
		"main.py": "x = 1\ny = 'a'\nif flag:\n    z = 1\n",
	})

	got, err := e.Types(context.Background(), filepath.Join(root, "main.py"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, SymbolType{Name: "x", Type: "Literal[1]"}, got[0])
	assert.Equal(t, SymbolType{Name: "y", Type: `Literal["a"]`}, got[1])
	assert.Equal(t, "z", got[2].Name)
	assert.True(t, got[2].PossiblyUnbound)

	_, err = e.Types(context.Background(), filepath.Join(root, "gone.py"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestCheckDirectory_Walk(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{
		"main.py":                  "x = 1\n",
		"pkg/__init__.py":          "",
		"pkg/mod.pyi":              "y: int\n",
		".hidden/skip.py":          "x = nope\n",
		"__pycache__/skip.py":      "x = nope\n",
		"node_modules/dep/skip.py": "x = nope\n",
		"README.md":                "# not python\n",
	})

	report, err := e.CheckDirectory(context.Background(), root)
	require.NoError(t, err)
	var paths []string
	for _, f := range report.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{
		filepath.Join(root, "main.py"),
		filepath.Join(root, "pkg", "__init__.py"),
		filepath.Join(root, "pkg", "mod.pyi"),
	}, paths)
	assert.False(t, report.HasErrors())
}

func TestCheckDirectory_PrunesDeletedFiles(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{
		"main.py": "x = 1\n",
		"old.py":  "x = nope\n",
	})
	ctx := context.Background()

	_, err := e.CheckDirectory(ctx, root)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "old.py")))

	_, err = e.CheckDirectory(ctx, root)
	require.NoError(t, err)

	files, err := e.Query().Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "main.py"), files[0].Path)

	sum, err := e.Query().Summary()
	require.NoError(t, err)
	assert.Zero(t, sum.BySeverity["error"])
}

func TestCheckDirectory_Git(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{
		".gitignore": "ignored.py\n",
		"tracked.py": "x = 1\n",
		"fresh.py":   "y = 2\n",
		"ignored.py": "x = nope\n",
	})
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("tracked.py")
	require.NoError(t, err)

	report, err := e.CheckDirectory(context.Background(), root)
	require.NoError(t, err)
	var paths []string
	for _, f := range report.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{
		filepath.Join(root, "fresh.py"),
		filepath.Join(root, "tracked.py"),
	}, paths)
}

func TestQuery_Runs(t *testing.T) {
	e, root := newTestEngine(t, map[string]string{"main.py": "x = 1\n"})
	ctx := context.Background()

	first, err := e.CheckDirectory(ctx, root)
	require.NoError(t, err)
	second, err := e.CheckDirectory(ctx, root)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	runs, err := e.Query().Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, root, r.Root)
		assert.Equal(t, store.RunComplete, r.Status)
		assert.NotNil(t, r.FinishedAt)
	}

	_, err = e.Query().Run("no-such-run")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunScript(t *testing.T) {
	scripts := t.TempDir()
	e, root := newTestEngine(t, map[string]string{"main.py": "x = nope\n"}, WithScriptsDir(scripts))
	target := filepath.ToSlash(filepath.Join(root, "main.py"))
	writeFiles(t, scripts, map[string]string{"report.risor": `
target := "` + target + `"
ds := check(target)
assert(len(ds) == 1, 'expected 1 diagnostic, got {len(ds)}')
assert(ds[0]["lint"] == "unresolved-reference")
s := summary()
assert(s["files"] == 1)
ts := types(target)
assert(ts[0]["name"] == "x")
`})

	require.NoError(t, e.RunScript(context.Background(), "report.risor"))
}
