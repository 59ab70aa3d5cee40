package store

import "time"

type File struct {
	ID          int64
	Path        string
	Module      string
	Hash        string
	LastChecked time.Time
	RunID       string
}

type Diagnostic struct {
	ID          int64
	FileID      int64
	Lint        string
	Severity    string
	Message     string
	StartLine   int
	StartCol    int
	EndLine     int
	EndCol      int
	StartOffset int
	EndOffset   int
}

// Import is one module of a file's import closure. Path and Hash are nil
// when the module did not resolve.
type Import struct {
	ID     int64
	FileID int64
	Module string
	Path   *string
	Hash   *string
	Direct bool
}

// Run statuses.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

type Run struct {
	ID           string
	Root         string
	StartedAt    time.Time
	FinishedAt   *time.Time
	FilesChecked int
	FilesCached  int
	Diagnostics  int
	Errors       int
	Status       string
}

// DiagnosticFilter narrows a diagnostics query. Empty fields match all.
type DiagnosticFilter struct {
	Path     string
	Lint     string
	Severity string
	Limit    int
	Offset   int
}

// FileDiagnostic is a diagnostic joined with its file path.
type FileDiagnostic struct {
	Diagnostic
	Path string
}

// Summary counts the stored diagnostics.
type Summary struct {
	Files      int
	Clean      int
	BySeverity map[string]int
	ByLint     map[string]int
}
