package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch writes all buffered results from a BatchedStore into SQLite
// within a single transaction. Each buffered file replaces the stored row
// for its path along with that row's diagnostics and imports. Fake file IDs
// are remapped to the real row IDs.
//
// Insert order respects FK dependencies:
//  1. Files (upserted by path, old results deleted)
//  2. Diagnostics (depend on file_id)
//  3. Imports (depend on file_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64, len(batch.Files))

	// 1. Files
	for _, f := range batch.Files {
		realID, err := upsertFileTx(tx, &f)
		if err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
		if err := deleteFileDataTx(tx, realID); err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
		fakeToReal[f.ID] = realID
	}

	// 2. Diagnostics
	for _, d := range batch.Diagnostics {
		if d.FileID < 0 {
			realID, ok := fakeToReal[d.FileID]
			if !ok {
				return fmt.Errorf("commit batch: diagnostic %q has file_id=%d not in fakeToReal map (have %d files)", d.Lint, d.FileID, len(batch.Files))
			}
			d.FileID = realID
		}
		if _, err := insertDiagnostic(tx, &d); err != nil {
			return fmt.Errorf("commit batch: diagnostic %q: %w", d.Lint, err)
		}
	}

	// 3. Imports
	for _, imp := range batch.Imports {
		if imp.FileID < 0 {
			imp.FileID = fakeToReal[imp.FileID]
		}
		if _, err := insertImport(tx, &imp); err != nil {
			return fmt.Errorf("commit batch: import %q: %w", imp.Module, err)
		}
	}

	return tx.Commit()
}

// upsertFileTx inserts or updates the row for f.Path and returns its ID.
func upsertFileTx(tx *sql.Tx, f *File) (int64, error) {
	var id int64
	err := tx.QueryRow(
		`INSERT INTO files (path, module, hash, last_checked, run_id) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET module = excluded.module, hash = excluded.hash,
			last_checked = excluded.last_checked, run_id = excluded.run_id
		 RETURNING id`,
		f.Path, f.Module, f.Hash, f.LastChecked, f.RunID,
	).Scan(&id)
	return id, err
}
