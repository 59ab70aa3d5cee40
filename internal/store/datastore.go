package store

// DataStore is the interface for writing check results. Both Store (direct
// SQLite) and BatchedStore (in-memory buffering for parallel checking)
// implement this interface.
type DataStore interface {
	// Each insert returns the assigned ID.
	InsertDiagnostic(d *Diagnostic) (int64, error)
	InsertImport(imp *Import) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
