package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BeginRun records the start of a check run.
func (s *Store) BeginRun(id, root string, startedAt time.Time) (*Run, error) {
	_, err := s.db.Exec(
		"INSERT INTO runs (id, root, started_at, status) VALUES (?, ?, ?, ?)",
		id, root, startedAt, RunRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return &Run{ID: id, Root: root, StartedAt: startedAt, Status: RunRunning}, nil
}

// FinishRun stores the final counters and status of r.
func (s *Store) FinishRun(r *Run) error {
	res, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, files_checked = ?, files_cached = ?,
			diagnostics = ?, errors = ?, status = ? WHERE id = ?`,
		r.FinishedAt, r.FilesChecked, r.FilesCached, r.Diagnostics, r.Errors, r.Status, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

const runCols = `id, root, started_at, finished_at, files_checked, files_cached, diagnostics, errors, status`

func scanRun(scanner interface{ Scan(...any) error }) (*Run, error) {
	r := &Run{}
	var finished sql.NullTime
	err := scanner.Scan(&r.ID, &r.Root, &r.StartedAt, &finished,
		&r.FilesChecked, &r.FilesCached, &r.Diagnostics, &r.Errors, &r.Status)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return r, nil
}

// RunByID returns one run or ErrNotFound.
func (s *Store) RunByID(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runCols+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("run by id: %w", err)
	}
	return r, nil
}

// Runs returns the most recent runs first. limit <= 0 returns all.
func (s *Store) Runs(limit int) ([]*Run, error) {
	q := "SELECT " + runCols + " FROM runs ORDER BY started_at DESC, id"
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()
	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
