package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, module, hash, last_checked, run_id) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Module, f.Hash, f.LastChecked, f.RunID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileCols = "id, path, module, hash, last_checked, COALESCE(run_id, '')"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	if err := scanner.Scan(&f.ID, &f.Path, &f.Module, &f.Hash, &f.LastChecked, &f.RunID); err != nil {
		return nil, err
	}
	return f, nil
}

// FileByPath returns the stored file, or nil when the path was never
// checked.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every stored file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FilesUnder returns stored files whose path starts with prefix.
func (s *Store) FilesUnder(prefix string) ([]*File, error) {
	all, err := s.Files()
	if err != nil {
		return nil, err
	}
	var out []*File
	for _, f := range all {
		if strings.HasPrefix(f.Path, prefix) {
			out = append(out, f)
		}
	}
	return out, nil
}

// --- Diagnostic operations ---

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	id, err := insertDiagnostic(s.db, d)
	if err != nil {
		return 0, fmt.Errorf("insert diagnostic: %w", err)
	}
	d.ID = id
	return id, nil
}

const diagnosticCols = `d.id, d.file_id, d.lint, d.severity, d.message,
	d.start_line, d.start_col, d.end_line, d.end_col, d.start_offset, d.end_offset`

func scanDiagnostic(scanner interface{ Scan(...any) error }, extra ...any) (*Diagnostic, error) {
	d := &Diagnostic{}
	dest := append([]any{
		&d.ID, &d.FileID, &d.Lint, &d.Severity, &d.Message,
		&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol, &d.StartOffset, &d.EndOffset,
	}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	return d, nil
}

// DiagnosticsByFile returns a file's cached diagnostics in source order.
func (s *Store) DiagnosticsByFile(fileID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		"SELECT "+diagnosticCols+" FROM diagnostics d WHERE d.file_id = ? ORDER BY d.start_offset, d.lint, d.id", fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by file: %w", err)
	}
	defer rows.Close()
	var out []*Diagnostic
	for rows.Next() {
		d, err := scanDiagnostic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Diagnostics returns stored diagnostics matching filter, ordered by path
// and position.
func (s *Store) Diagnostics(filter DiagnosticFilter) ([]*FileDiagnostic, error) {
	var where []string
	var args []any
	if filter.Path != "" {
		where = append(where, "f.path = ?")
		args = append(args, filter.Path)
	}
	if filter.Lint != "" {
		where = append(where, "d.lint = ?")
		args = append(args, filter.Lint)
	}
	if filter.Severity != "" {
		where = append(where, "d.severity = ?")
		args = append(args, filter.Severity)
	}
	q := "SELECT " + diagnosticCols + ", f.path FROM diagnostics d JOIN files f ON f.id = d.file_id"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY f.path, d.start_offset, d.lint, d.id"
	if filter.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	defer rows.Close()
	var out []*FileDiagnostic
	for rows.Next() {
		var path string
		d, err := scanDiagnostic(rows, &path)
		if err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		out = append(out, &FileDiagnostic{Diagnostic: *d, Path: path})
	}
	return out, rows.Err()
}

// Summary counts files and diagnostics by severity and lint.
func (s *Store) Summary() (*Summary, error) {
	sum := &Summary{BySeverity: map[string]int{}, ByLint: map[string]int{}}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&sum.Files); err != nil {
		return nil, fmt.Errorf("summary: count files: %w", err)
	}
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM files WHERE id NOT IN (SELECT file_id FROM diagnostics WHERE severity = 'error')",
	).Scan(&sum.Clean); err != nil {
		return nil, fmt.Errorf("summary: count clean files: %w", err)
	}
	for _, group := range []struct {
		col string
		m   map[string]int
	}{{"severity", sum.BySeverity}, {"lint", sum.ByLint}} {
		if err := countBy(s.db, group.col, group.m); err != nil {
			return nil, err
		}
	}
	return sum, nil
}

func countBy(db *sql.DB, col string, into map[string]int) error {
	rows, err := db.Query("SELECT " + col + ", COUNT(*) FROM diagnostics GROUP BY " + col)
	if err != nil {
		return fmt.Errorf("summary: count by %s: %w", col, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("summary: scan %s count: %w", col, err)
		}
		into[key] = n
	}
	return rows.Err()
}

// --- Import operations ---

func (s *Store) InsertImport(imp *Import) (int64, error) {
	id, err := insertImport(s.db, imp)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	imp.ID = id
	return id, nil
}

// ImportsByFile returns the import closure recorded for a file.
func (s *Store) ImportsByFile(fileID int64) ([]*Import, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, module, path, hash, direct FROM imports WHERE file_id = ? ORDER BY id", fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("imports by file: %w", err)
	}
	defer rows.Close()
	var out []*Import
	for rows.Next() {
		imp := &Import{}
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Module, &imp.Path, &imp.Hash, &imp.Direct); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertDiagnostic(ex execer, d *Diagnostic) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO diagnostics (file_id, lint, severity, message,
			start_line, start_col, end_line, end_col, start_offset, end_offset)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.Lint, d.Severity, d.Message,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol, d.StartOffset, d.EndOffset,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertImport(ex execer, imp *Import) (int64, error) {
	res, err := ex.Exec(
		"INSERT INTO imports (file_id, module, path, hash, direct) VALUES (?, ?, ?, ?, ?)",
		imp.FileID, imp.Module, imp.Path, imp.Hash, imp.Direct,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
