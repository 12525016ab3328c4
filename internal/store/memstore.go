package store

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"

	memdb "github.com/hashicorp/go-memdb"
)

const (
	tableUnits     = "units"
	tableDecisions = "decisions"
	tableImports   = "imports"
	tableMetadata  = "metadata"
)

// metaEntry is a metadata row in the in-memory backend.
type metaEntry struct {
	Key   string
	Value string
}

func memSchema() *memdb.DBSchema {
	id := &memdb.IndexSchema{Name: "id", Unique: true, Indexer: &memdb.IntFieldIndex{Field: "ID"}}
	unitID := &memdb.IndexSchema{Name: "unit_id", Indexer: &memdb.IntFieldIndex{Field: "UnitID"}}
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableUnits: {
				Name: tableUnits,
				Indexes: map[string]*memdb.IndexSchema{
					"id":   id,
					"path": {Name: "path", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Path"}},
				},
			},
			tableDecisions: {
				Name: tableDecisions,
				Indexes: map[string]*memdb.IndexSchema{
					"id":      id,
					"unit_id": unitID,
					"kind":    {Name: "kind", Indexer: &memdb.StringFieldIndex{Field: "Kind"}},
				},
			},
			tableImports: {
				Name: tableImports,
				Indexes: map[string]*memdb.IndexSchema{
					"id":      id,
					"unit_id": unitID,
				},
			},
			tableMetadata: {
				Name: tableMetadata,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Key"}},
				},
			},
		},
	}
}

// MemStore is an in-memory Backend on go-memdb. Nothing outlives the
// process, which makes it the backend for dry runs and tests.
type MemStore struct {
	db *memdb.MemDB

	mu     sync.Mutex // serializes ID allocation and write transactions
	nextID int64
}

// NewMemStore creates an empty in-memory backend.
func NewMemStore() (*MemStore, error) {
	db, err := memdb.NewMemDB(memSchema())
	if err != nil {
		return nil, fmt.Errorf("memstore: %w", err)
	}
	return &MemStore{db: db}, nil
}

// Migrate is a no-op; the schema is fixed at construction.
func (m *MemStore) Migrate() error { return nil }

// Close is a no-op.
func (m *MemStore) Close() error { return nil }

func (m *MemStore) allocID() int64 {
	m.nextID++
	return m.nextID
}

// write runs fn in a write transaction and commits when fn succeeds.
func (m *MemStore) write(fn func(txn *memdb.Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn := m.db.Txn(true)
	defer txn.Abort()
	if err := fn(txn); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (m *MemStore) insertUnit(txn *memdb.Txn, u *Unit) (int64, error) {
	// memdb does not enforce uniqueness on secondary indexes.
	old, err := txn.First(tableUnits, "path", u.Path)
	if err != nil {
		return 0, fmt.Errorf("insert unit: %w", err)
	}
	if old != nil {
		return 0, fmt.Errorf("insert unit: path %q already stored", u.Path)
	}
	u.ID = m.allocID()
	row := *u
	if err := txn.Insert(tableUnits, &row); err != nil {
		return 0, fmt.Errorf("insert unit: %w", err)
	}
	return u.ID, nil
}

func (m *MemStore) insertDecision(txn *memdb.Txn, d *Decision) (int64, error) {
	d.ID = m.allocID()
	row := *d
	row.Metadata = maps.Clone(d.Metadata)
	if err := txn.Insert(tableDecisions, &row); err != nil {
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	return d.ID, nil
}

func (m *MemStore) insertImport(txn *memdb.Txn, imp *Import) (int64, error) {
	imp.ID = m.allocID()
	row := *imp
	if err := txn.Insert(tableImports, &row); err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	return imp.ID, nil
}

func (m *MemStore) InsertUnit(u *Unit) (id int64, err error) {
	err = m.write(func(txn *memdb.Txn) error {
		id, err = m.insertUnit(txn, u)
		return err
	})
	return id, err
}

func (m *MemStore) InsertDecision(d *Decision) (id int64, err error) {
	err = m.write(func(txn *memdb.Txn) error {
		id, err = m.insertDecision(txn, d)
		return err
	})
	return id, err
}

func (m *MemStore) InsertImport(imp *Import) (id int64, err error) {
	err = m.write(func(txn *memdb.Txn) error {
		id, err = m.insertImport(txn, imp)
		return err
	})
	return id, err
}

func (m *MemStore) UnitByPath(path string) (*Unit, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableUnits, "path", path)
	if err != nil {
		return nil, fmt.Errorf("unit by path: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	u := *raw.(*Unit)
	return &u, nil
}

func (m *MemStore) Units() ([]*Unit, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	// The path index iterates in path order.
	it, err := txn.Get(tableUnits, "path")
	if err != nil {
		return nil, fmt.Errorf("units: %w", err)
	}
	var out []*Unit
	for raw := it.Next(); raw != nil; raw = it.Next() {
		u := *raw.(*Unit)
		out = append(out, &u)
	}
	return out, nil
}

func (m *MemStore) decisions(index string, arg any) ([]*Decision, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableDecisions, index, arg)
	if err != nil {
		return nil, err
	}
	var out []*Decision
	for raw := it.Next(); raw != nil; raw = it.Next() {
		d := *raw.(*Decision)
		d.Metadata = maps.Clone(d.Metadata)
		out = append(out, &d)
	}
	slices.SortFunc(out, func(a, b *Decision) int {
		return cmp.Or(
			cmp.Compare(a.UnitID, b.UnitID),
			cmp.Compare(a.StartLine, b.StartLine),
			cmp.Compare(a.StartCol, b.StartCol),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

// DecisionsByUnit returns a unit's decisions in source order.
func (m *MemStore) DecisionsByUnit(unitID int64) ([]*Decision, error) {
	ds, err := m.decisions("unit_id", unitID)
	if err != nil {
		return nil, fmt.Errorf("decisions by unit: %w", err)
	}
	return ds, nil
}

// DecisionsByKind returns every decision of a node kind across units.
func (m *MemStore) DecisionsByKind(kind string) ([]*Decision, error) {
	ds, err := m.decisions("kind", kind)
	if err != nil {
		return nil, fmt.Errorf("decisions by kind: %w", err)
	}
	return ds, nil
}

// ImportsByUnit returns a unit's imports in request order.
func (m *MemStore) ImportsByUnit(unitID int64) ([]*Import, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableImports, "unit_id", unitID)
	if err != nil {
		return nil, fmt.Errorf("imports by unit: %w", err)
	}
	var out []*Import
	for raw := it.Next(); raw != nil; raw = it.Next() {
		imp := *raw.(*Import)
		out = append(out, &imp)
	}
	slices.SortFunc(out, func(a, b *Import) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemStore) DeleteUnitData(unitID int64) error {
	return m.DeleteUnits([]int64{unitID})
}

func (m *MemStore) DeleteUnits(unitIDs []int64) error {
	if len(unitIDs) == 0 {
		return nil
	}
	return m.write(func(txn *memdb.Txn) error {
		for _, id := range unitIDs {
			if err := deleteUnitTxn(txn, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteUnitTxn(txn *memdb.Txn, unitID int64) error {
	for _, table := range []string{tableDecisions, tableImports} {
		if _, err := txn.DeleteAll(table, "unit_id", unitID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := txn.DeleteAll(tableUnits, "id", unitID); err != nil {
		return fmt.Errorf("delete units: %w", err)
	}
	return nil
}

// CommitBatch applies a batch in one write transaction.
func (m *MemStore) CommitBatch(batch *BatchedStore) error {
	err := m.write(func(txn *memdb.Txn) error {
		fakeToReal := make(map[int64]int64, len(batch.Units))
		for _, u := range batch.Units {
			old, err := txn.First(tableUnits, "path", u.Path)
			if err != nil {
				return fmt.Errorf("unit %q: %w", u.Path, err)
			}
			if old != nil {
				if err := deleteUnitTxn(txn, old.(*Unit).ID); err != nil {
					return fmt.Errorf("unit %q: %w", u.Path, err)
				}
			}
			fakeID := u.ID
			realID, err := m.insertUnit(txn, &u)
			if err != nil {
				return fmt.Errorf("unit %q: %w", u.Path, err)
			}
			fakeToReal[fakeID] = realID
		}
		for _, d := range batch.Decisions {
			d.UnitID = remap(fakeToReal, d.UnitID)
			if _, err := m.insertDecision(txn, &d); err != nil {
				return fmt.Errorf("decision %q: %w", d.Name, err)
			}
		}
		for _, imp := range batch.Imports {
			imp.UnitID = remap(fakeToReal, imp.UnitID)
			if _, err := m.insertImport(txn, &imp); err != nil {
				return fmt.Errorf("import %q: %w", imp.Symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// GetMetadata returns the value stored under key.
func (m *MemStore) GetMetadata(key string) (string, bool, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableMetadata, "id", key)
	if err != nil {
		return "", false, fmt.Errorf("get metadata %s: %w", key, err)
	}
	if raw == nil {
		return "", false, nil
	}
	return raw.(*metaEntry).Value, true, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (m *MemStore) SetMetadata(key, value string) error {
	return m.write(func(txn *memdb.Txn) error {
		if err := txn.Insert(tableMetadata, &metaEntry{Key: key, Value: value}); err != nil {
			return fmt.Errorf("set metadata %s: %w", key, err)
		}
		return nil
	})
}
