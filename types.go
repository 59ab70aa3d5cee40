package knot

import (
	"github.com/jward/knot/internal/diag"
	"github.com/jward/knot/internal/runtime"
	"github.com/jward/knot/internal/store"
)

// Public type aliases for internal types used in the Engine and QueryBuilder
// APIs. These are Go type aliases (=), identical to the internal types at
// compile time, so external consumers need no conversion.

type Store = store.Store
type File = store.File
type Import = store.Import
type Run = store.Run
type Summary = store.Summary
type DiagnosticFilter = store.DiagnosticFilter
type FileDiagnostic = store.FileDiagnostic

type Diagnostic = diag.Diagnostic
type Severity = diag.Severity
type Lint = diag.Lint

// SymbolType is the public type of one module-level name.
type SymbolType = runtime.SymbolType

// Severity levels.
const (
	SeverityIgnore  = diag.Ignore
	SeverityInfo    = diag.Info
	SeverityWarning = diag.Warning
	SeverityError   = diag.Error
)

// Lints returns every lint the checker can report, sorted by name.
func Lints() []Lint {
	return diag.All()
}
