package knot

import (
	"fmt"
	"path/filepath"

	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/store"
)

// QueryBuilder provides read access to stored check results.
type QueryBuilder struct {
	store *store.Store
}

// Diagnostics returns stored diagnostics matching filter, ordered by path
// and position. A relative filter path is made absolute.
func (q *QueryBuilder) Diagnostics(filter DiagnosticFilter) ([]*FileDiagnostic, error) {
	if filter.Severity != "" {
		sev, err := diag.ParseSeverity(filter.Severity)
		if err != nil {
			return nil, fmt.Errorf("diagnostics: %w", err)
		}
		filter.Severity = sev.String()
	}
	if filter.Lint != "" {
		if _, ok := diag.Lookup(filter.Lint); !ok {
			return nil, fmt.Errorf("diagnostics: unknown lint %q", filter.Lint)
		}
	}
	if filter.Path != "" {
		filter.Path = absPath(filter.Path)
	}
	ds, err := q.store.Diagnostics(filter)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	return ds, nil
}

// Summary counts stored files and diagnostics.
func (q *QueryBuilder) Summary() (*Summary, error) {
	s, err := q.store.Summary()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return s, nil
}

// Runs returns recorded check runs, most recent first. limit <= 0 returns
// all of them.
func (q *QueryBuilder) Runs(limit int) ([]*Run, error) {
	runs, err := q.store.Runs(limit)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	return runs, nil
}

// Run returns one run by ID. The error wraps store.ErrNotFound when there is
// no such run.
func (q *QueryBuilder) Run(id string) (*Run, error) {
	return q.store.RunByID(id)
}

// Files returns every stored file ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	files, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

// Dependencies returns the import closure recorded for the file at path, or
// nil when the file has not been checked.
func (q *QueryBuilder) Dependencies(path string) ([]*Import, error) {
	f, err := q.store.FileByPath(absPath(path))
	if err != nil {
		return nil, fmt.Errorf("dependencies: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	imports, err := q.store.ImportsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("dependencies: %w", err)
	}
	return imports, nil
}

// Dependents returns the stored files whose results depend on the file at
// path: those a change to it invalidates.
func (q *QueryBuilder) Dependents(path string) ([]*File, error) {
	files, err := q.store.Dependents([]string{absPath(path)})
	if err != nil {
		return nil, fmt.Errorf("dependents: %w", err)
	}
	return files, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
