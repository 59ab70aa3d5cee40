package store

import "sync"

// BatchedStore buffers check results in memory using fake (negative) file
// IDs. Workers record into it without touching SQLite; CommitBatch writes
// everything in one transaction.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
type BatchedStore struct {
	mu sync.Mutex

	Files       []File
	Diagnostics []Diagnostic
	Imports     []Import

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

func NewBatchedStore() *BatchedStore {
	return &BatchedStore{nextFakeID: -1}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

// AddFile buffers a checked file and returns its fake ID for the
// diagnostics and imports recorded against it.
func (b *BatchedStore) AddFile(f *File) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	f.ID = b.allocFakeID()
	b.Files = append(b.Files, *f)
	return f.ID
}

func (b *BatchedStore) InsertDiagnostic(d *Diagnostic) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d.ID = b.allocFakeID()
	b.Diagnostics = append(b.Diagnostics, *d)
	return d.ID, nil
}

func (b *BatchedStore) InsertImport(imp *Import) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	imp.ID = b.allocFakeID()
	b.Imports = append(b.Imports, *imp)
	return imp.ID, nil
}

// Len reports the number of buffered files.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Files)
}
