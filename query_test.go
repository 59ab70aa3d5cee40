package knot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/knot/internal/store"
)

func newTestQueryBuilder(t *testing.T) (*QueryBuilder, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return &QueryBuilder{store: s}, s
}

func seedQueryStore(t *testing.T, s *store.Store) (mainID, utilID int64) {
	t.Helper()
	var err error
	mainID, err = s.InsertFile(&store.File{Path: "/proj/main.py", Module: "main", Hash: "h1", LastChecked: time.Now()})
	require.NoError(t, err)
	utilID, err = s.InsertFile(&store.File{Path: "/proj/util.py", Module: "util", Hash: "h2", LastChecked: time.Now()})
	require.NoError(t, err)

	for i, d := range []store.Diagnostic{
		{FileID: mainID, Lint: "unresolved-reference", Severity: "error", Message: "Name `nope` used when not defined"},
		{FileID: mainID, Lint: "revealed-type", Severity: "info", Message: "Revealed type is `int`"},
		{FileID: utilID, Lint: "possibly-unresolved-reference", Severity: "warning", Message: "Name `x` used when possibly not defined"},
	} {
		d.StartLine, d.EndLine = i+1, i+1
		d.StartOffset, d.EndOffset = i*10, i*10+3
		_, err := s.InsertDiagnostic(&d)
		require.NoError(t, err)
	}

	path, hash := "/proj/util.py", "h2"
	_, err = s.InsertImport(&store.Import{FileID: mainID, Module: "util", Path: &path, Hash: &hash, Direct: true})
	require.NoError(t, err)
	_, err = s.InsertImport(&store.Import{FileID: mainID, Module: "missing", Direct: true})
	require.NoError(t, err)
	return mainID, utilID
}

func TestQueryDiagnostics_Filters(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedQueryStore(t, s)

	all, err := q.Diagnostics(DiagnosticFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/proj/main.py", all[0].Path)
	assert.Equal(t, "/proj/util.py", all[2].Path)

	byFile, err := q.Diagnostics(DiagnosticFilter{Path: "/proj/main.py"})
	require.NoError(t, err)
	assert.Len(t, byFile, 2)

	byLint, err := q.Diagnostics(DiagnosticFilter{Lint: "revealed-type"})
	require.NoError(t, err)
	require.Len(t, byLint, 1)
	assert.Equal(t, "Revealed type is `int`", byLint[0].Message)

	// "warn" is accepted as a spelling of "warning".
	bySeverity, err := q.Diagnostics(DiagnosticFilter{Severity: "warn"})
	require.NoError(t, err)
	require.Len(t, bySeverity, 1)
	assert.Equal(t, "possibly-unresolved-reference", bySeverity[0].Lint)

	page, err := q.Diagnostics(DiagnosticFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "revealed-type", page[0].Lint)
}

func TestQueryDiagnostics_RejectsUnknownFilters(t *testing.T) {
	q, _ := newTestQueryBuilder(t)

	_, err := q.Diagnostics(DiagnosticFilter{Lint: "no-such-lint"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-lint")

	_, err = q.Diagnostics(DiagnosticFilter{Severity: "fatal"})
	require.Error(t, err)
}

func TestQuerySummary(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedQueryStore(t, s)

	sum, err := q.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, 1, sum.Clean)
	assert.Equal(t, map[string]int{"error": 1, "info": 1, "warning": 1}, sum.BySeverity)
	assert.Equal(t, 1, sum.ByLint["revealed-type"])
}

func TestQuerySummary_Empty(t *testing.T) {
	q, _ := newTestQueryBuilder(t)

	sum, err := q.Summary()
	require.NoError(t, err)
	assert.Zero(t, sum.Files)
	assert.Empty(t, sum.BySeverity)
}

func TestQueryDependencies(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedQueryStore(t, s)

	deps, err := q.Dependencies("/proj/main.py")
	require.NoError(t, err)
	require.Len(t, deps, 2)
	byModule := map[string]*Import{}
	for _, d := range deps {
		byModule[d.Module] = d
	}
	require.NotNil(t, byModule["util"].Path)
	assert.Equal(t, "/proj/util.py", *byModule["util"].Path)
	assert.Nil(t, byModule["missing"].Path, "unresolved modules have no path")

	none, err := q.Dependencies("/proj/unknown.py")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestQueryDependents(t *testing.T) {
	q, s := newTestQueryBuilder(t)
	seedQueryStore(t, s)

	files, err := q.Dependents("/proj/util.py")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "/proj/main.py", files[0].Path)

	files, err = q.Dependents("/proj/main.py")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestQueryRuns(t *testing.T) {
	q, s := newTestQueryBuilder(t)

	base := time.Now().Truncate(time.Second)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		_, err := s.BeginRun(id, "/proj", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	runs, err := q.Runs(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)

	r, err := q.Run("run-a")
	require.NoError(t, err)
	assert.Equal(t, store.RunRunning, r.Status)
	assert.Nil(t, r.FinishedAt)

	_, err = q.Run("run-z")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
