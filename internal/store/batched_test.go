package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_FakeIDs(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore()

	fileID := batch.AddFile(&File{Path: "/main.py", Module: "main", Hash: "h"})
	assert.Negative(t, fileID, "batched IDs should be negative")

	id, err := batch.InsertDiagnostic(&Diagnostic{FileID: fileID, Lint: "not-iterable", Severity: "error"})
	require.NoError(t, err)
	assert.Negative(t, id)
	assert.NotEqual(t, fileID, id)
	assert.Equal(t, 1, batch.Len())
}

func TestBatchedStore_ConcurrentWorkers(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fileID := batch.AddFile(&File{Path: "/f" + string(rune('a'+i)) + ".py", Module: "m", Hash: "h"})
			_, _ = batch.InsertDiagnostic(&Diagnostic{FileID: fileID, Lint: "revealed-type", Severity: "info"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, batch.Len())
	seen := map[int64]bool{}
	for _, f := range batch.Files {
		assert.False(t, seen[f.ID], "fake IDs are unique")
		seen[f.ID] = true
	}
}

func TestCommitBatch_RemapsAndReplaces(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	// A previous run left stale results for /main.py.
	old := insertTestFile(t, s, "/main.py", "main")
	insertTestDiagnostic(t, s, old.ID, "unresolved-import", "error", 0)

	batch := NewBatchedStore()
	now := time.Now().Truncate(time.Second)
	mainID := batch.AddFile(&File{Path: "/main.py", Module: "main", Hash: "new-hash", LastChecked: now, RunID: "r2"})
	utilID := batch.AddFile(&File{Path: "/util.py", Module: "util", Hash: "u", LastChecked: now, RunID: "r2"})
	_, err := batch.InsertDiagnostic(&Diagnostic{FileID: mainID, Lint: "revealed-type", Severity: "info", Message: "Revealed type is `int`"})
	require.NoError(t, err)
	_, err = batch.InsertImport(&Import{FileID: mainID, Module: "util", Path: ptr("/util.py"), Hash: ptr("u"), Direct: true})
	require.NoError(t, err)
	_, err = batch.InsertImport(&Import{FileID: utilID, Module: "missing", Direct: true})
	require.NoError(t, err)

	require.NoError(t, s.CommitBatch(batch))

	main, err := s.FileByPath("/main.py")
	require.NoError(t, err)
	require.NotNil(t, main)
	assert.Equal(t, old.ID, main.ID, "upsert keeps the row")
	assert.Equal(t, "new-hash", main.Hash)
	assert.Equal(t, "r2", main.RunID)

	ds, err := s.DiagnosticsByFile(main.ID)
	require.NoError(t, err)
	require.Len(t, ds, 1, "stale diagnostics replaced")
	assert.Equal(t, "revealed-type", ds[0].Lint)

	imps, err := s.ImportsByFile(main.ID)
	require.NoError(t, err)
	require.Len(t, imps, 1)
	assert.Equal(t, "/util.py", *imps[0].Path)

	util, err := s.FileByPath("/util.py")
	require.NoError(t, err)
	require.NotNil(t, util)
	utilImports, err := s.ImportsByFile(util.ID)
	require.NoError(t, err)
	require.Len(t, utilImports, 1)
	assert.Equal(t, "missing", utilImports[0].Module)
}

func TestCommitBatch_Empty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.CommitBatch(NewBatchedStore()))
	files, err := s.Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}
