package store

import "sync"

// BatchedStore buffers a worker's inserts in memory using fake (negative)
// IDs. It implements Writer so the classification pipeline can record
// results without knowing whether they go straight to a backend or wait
// for the serial commit phase.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
type BatchedStore struct {
	mu sync.Mutex

	// Buffered classification data.
	Units     []Unit
	Decisions []Decision
	Imports   []Import

	nextFakeID int64 // starts at -1, decrements
}

// NewBatchedStore creates an empty BatchedStore.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{nextFakeID: -1}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertUnit(u *Unit) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	u.ID = fakeID
	b.Units = append(b.Units, *u)
	return fakeID, nil
}

func (b *BatchedStore) InsertDecision(d *Decision) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Decisions = append(b.Decisions, *d)
	return fakeID, nil
}

func (b *BatchedStore) InsertImport(imp *Import) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	imp.ID = fakeID
	b.Imports = append(b.Imports, *imp)
	return fakeID, nil
}

// Len returns the number of buffered units.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Units)
}

// remap rewrites a fake unit reference to the real ID assigned at commit.
func remap(fakeToReal map[int64]int64, id int64) int64 {
	if id < 0 {
		return fakeToReal[id]
	}
	return id
}
