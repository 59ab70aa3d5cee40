package store

import "fmt"

// Dependents returns the stored files whose import closure contains any of
// paths: the files whose cached diagnostics a change to paths invalidates.
func (s *Store) Dependents(paths []string) ([]*File, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT `+fileCols+` FROM files WHERE id IN (
			SELECT DISTINCT file_id FROM imports WHERE path IN (`+placeholderList(len(paths))+`)
		) ORDER BY path`,
		stringsToArgs(paths)...,
	)
	if err != nil {
		return nil, fmt.Errorf("dependents: %w", err)
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

// DeleteFiles removes the given files and their cached results.
func (s *Store) DeleteFiles(fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := placeholderList(len(fileIDs))
	args := int64sToArgs(fileIDs)
	for _, q := range []string{
		"DELETE FROM diagnostics WHERE file_id IN (" + placeholders + ")",
		"DELETE FROM imports WHERE file_id IN (" + placeholders + ")",
		"DELETE FROM files WHERE id IN (" + placeholders + ")",
	} {
		if _, err := tx.Exec(q, args...); err != nil {
			return fmt.Errorf("delete files: %w", err)
		}
	}
	return tx.Commit()
}
