package runtime

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/knot/internal/ast"
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/store"
)

type fakeHost struct {
	diagnostics map[string][]diag.Diagnostic
	types       map[string][]SymbolType
	checked     []string
}

func (h *fakeHost) Check(_ context.Context, path string) ([]diag.Diagnostic, error) {
	h.checked = append(h.checked, path)
	ds, ok := h.diagnostics[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return ds, nil
}

func (h *fakeHost) Types(_ context.Context, path string) ([]SymbolType, error) {
	ts, ok := h.types[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return ts, nil
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		diagnostics: map[string][]diag.Diagnostic{
			"/src/main.py": {
				{
					File:     "/src/main.py",
					Range:    ast.Range{Start: ast.Position{Line: 3, Column: 4}, End: ast.Position{Line: 3, Column: 9}},
					Lint:     diag.UnresolvedReference,
					Severity: diag.Error,
					Message:  "Name `nope` used when not defined",
				},
				{
					File:     "/src/main.py",
					Lint:     diag.RevealedType,
					Severity: diag.Info,
					Message:  "Revealed type is `int`",
				},
			},
			"/src/clean.py": {},
		},
		types: map[string][]SymbolType{
			"/src/main.py": {
				{Name: "x", Type: "Literal[1]"},
				{Name: "y", Type: "int", PossiblyUnbound: true},
			},
		},
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func seedStore(t *testing.T, s *store.Store) {
	t.Helper()
	fileID, err := s.InsertFile(&store.File{Path: "/src/main.py", Module: "main", Hash: "h", LastChecked: time.Now()})
	require.NoError(t, err)
	_, err = s.InsertFile(&store.File{Path: "/src/clean.py", Module: "clean", Hash: "h2", LastChecked: time.Now()})
	require.NoError(t, err)
	for i, d := range []struct{ lint, severity string }{
		{"unresolved-reference", "error"},
		{"revealed-type", "info"},
		{"unresolved-import", "error"},
	} {
		_, err := s.InsertDiagnostic(&store.Diagnostic{
			FileID: fileID, Lint: d.lint, Severity: d.severity, Message: d.lint,
			StartLine: i + 1, EndLine: i + 1, StartOffset: i * 10, EndOffset: i*10 + 1,
		})
		require.NoError(t, err)
	}
}

// =============================================================================
// Checker globals
// =============================================================================

func TestCheck_ReturnsDiagnosticMaps(t *testing.T) {
	host := newFakeHost()
	rt := NewRuntime(nil, host, "")

	script := `
ds := check("/src/main.py")
assert(len(ds) == 2, 'expected 2 diagnostics, got {len(ds)}')
assert(ds[0]["lint"] == "unresolved-reference", 'unexpected lint ' + ds[0]["lint"])
assert(ds[0]["severity"] == "error")
assert(ds[0]["start_line"] == 3)
assert(ds[0]["start_col"] == 4)
assert(ds[1]["severity"] == "info")
assert(len(check("/src/clean.py")) == 0)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
	assert.Equal(t, []string{"/src/main.py", "/src/clean.py"}, host.checked)
}

func TestCheck_HostErrorFailsScript(t *testing.T) {
	rt := NewRuntime(nil, newFakeHost(), "")
	err := rt.RunSource(context.Background(), `check("/missing.py")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestCheck_WrongArgs(t *testing.T) {
	rt := NewRuntime(nil, newFakeHost(), "")
	require.Error(t, rt.RunSource(context.Background(), `check()`, nil))
	require.Error(t, rt.RunSource(context.Background(), `check(1)`, nil))
}

func TestTypes_ReturnsNameTypeMaps(t *testing.T) {
	rt := NewRuntime(nil, newFakeHost(), "")

	script := `
ts := types("/src/main.py")
assert(len(ts) == 2)
assert(ts[0]["name"] == "x")
assert(ts[0]["type"] == "Literal[1]")
assert(ts[0]["possibly_unbound"] == false)
assert(ts[1]["possibly_unbound"] == true)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestCheckerGlobals_AbsentWithoutHost(t *testing.T) {
	rt := NewRuntime(nil, nil, "")
	require.Error(t, rt.RunSource(context.Background(), `check("/src/main.py")`, nil))
}

// =============================================================================
// Store globals
// =============================================================================

func TestSummary(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	rt := NewRuntime(s, nil, "")

	script := `
s := summary()
assert(s["files"] == 2, 'files: {s["files"]}')
assert(s["clean"] == 1, 'clean: {s["clean"]}')
assert(s["by_severity"]["error"] == 2)
assert(s["by_severity"]["info"] == 1)
assert(s["by_lint"]["unresolved-import"] == 1)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestDiagnostics_Filter(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	rt := NewRuntime(s, nil, "")

	script := `
every := diagnostics()
assert(len(every) == 3)
assert(every[0]["file"] == "/src/main.py")

errs := diagnostics({"severity": "error"})
assert(len(errs) == 2)

one := diagnostics({"lint": "revealed-type"})
assert(len(one) == 1)
assert(one[0]["message"] == "revealed-type")

limited := diagnostics({"limit": 1})
assert(len(limited) == 1)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunsAndFiles(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	run, err := s.BeginRun("run-1", "/src", time.Now())
	require.NoError(t, err)
	run.Status = store.RunComplete
	run.FilesChecked = 2
	require.NoError(t, s.FinishRun(run))
	rt := NewRuntime(s, nil, "")

	script := `
rs := runs()
assert(len(rs) == 1)
assert(rs[0]["id"] == "run-1")
assert(rs[0]["status"] == "complete")
assert(rs[0]["files_checked"] == 2)

stored := files()
assert(len(stored) == 2)
assert(stored[0]["path"] == "/src/clean.py")
assert(stored[1]["module"] == "main")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestDBQuery(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	rt := NewRuntime(s, nil, "")

	script := `
rows := db_query("SELECT lint FROM diagnostics WHERE severity = ? ORDER BY lint", "error")
assert(len(rows) == 2)
assert(rows[0]["lint"] == "unresolved-import")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))

	err := rt.RunSource(context.Background(), `db_query("DELETE FROM files")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only SELECT")
}

func TestLog_WritesToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rt := NewRuntime(nil, nil, "", WithLogger(logger))

	require.NoError(t, rt.RunSource(context.Background(), `log.Warn("two files failed")`, nil))
	assert.Contains(t, buf.String(), "two files failed")
	assert.Contains(t, buf.String(), "level=WARN")
}

// =============================================================================
// Script loading
// =============================================================================

func TestRunScript_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`result := 1 + 1`), 0644))

	rt := NewRuntime(nil, nil, dir)
	require.NoError(t, rt.RunScript(context.Background(), "test.risor", nil))
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(nil, nil, t.TempDir())
	require.Error(t, rt.RunScript(context.Background(), "nonexistent.risor", nil))
}

func TestRunScript_ExtraGlobals(t *testing.T) {
	rt := NewRuntime(nil, nil, "")
	err := rt.RunSource(context.Background(), `assert(target == "main.py")`, map[string]any{"target": "main.py"})
	require.NoError(t, err)
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	content := `x := 42`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rt := NewRuntime(nil, nil, dir)
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"reports/errors.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime(nil, nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("reports/errors.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute-style path should be resolved within the FS.
	got, err = rt.LoadScript("/reports/errors.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFS_NotFound(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, nil, "", WithRuntimeFS(fstest.MapFS{}))
	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "nonexistent.risor")
}

func TestLoadScript_FallsBackToDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `z := 7`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(content), 0644))

	rt := NewRuntime(nil, nil, dir)
	got, err := rt.LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

// =============================================================================
// Imports
// =============================================================================

func TestImport_FSImporter(t *testing.T) {
	// Risor's FSImporter resolves "lib_helpers" by trying name + ".risor",
	// so the file must be at the flat path "lib_helpers.risor" in the FS.
	mapFS := fstest.MapFS{
		"lib_helpers.risor": &fstest.MapFile{Data: []byte(`
func greet(name) {
	return "hello " + name
}
`)},
	}
	rt := NewRuntime(nil, nil, "", WithRuntimeFS(mapFS))

	script := `
import lib_helpers

msg := lib_helpers.greet("world")
assert(msg == "hello world", 'expected "hello world", got ' + msg)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_LocalImporter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "errors_only.risor"), []byte(`
func errors_only(ds) {
	out := []
	for _, d := range ds {
		if d["severity"] == "error" {
			out.append(d)
		}
	}
	return out
}
`), 0644))

	rt := NewRuntime(nil, newFakeHost(), dir)

	script := `
import errors_only

errs := errors_only.errors_only(check("/src/main.py"))
assert(len(errs) == 1, 'expected 1 error, got {len(errs)}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	// Imported modules can reference host-provided globals.
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func count_errors(path) {
	n := 0
	for _, d := range check(path) {
		if d["severity"] == "error" {
			n += 1
		}
	}
	log.Info('{path}: {n} error(s)')
	return n
}
`)},
	}
	rt := NewRuntime(nil, newFakeHost(), "", WithRuntimeFS(mapFS))

	script := `
import helper
assert(helper.count_errors("/src/main.py") == 1)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestNewRuntime_Defaults(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, nil, "/some/dir")
	require.NotNil(t, rt)
	assert.Nil(t, rt.fsys)
	assert.Equal(t, "/some/dir", rt.scriptsDir)
	assert.NotNil(t, rt.logger)
}
