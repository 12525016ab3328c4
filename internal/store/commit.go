package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// IDs, and unit references within the batch are rewritten using the
// fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Units (a previously stored unit with the same path is deleted first)
//  2. Decisions (depend on unit_id)
//  3. Imports (depend on unit_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64, len(batch.Units))

	// 1. Units
	for _, u := range batch.Units {
		if err := replaceUnitTx(tx, u.Path); err != nil {
			return fmt.Errorf("commit batch: unit %q: %w", u.Path, err)
		}
		fakeID := u.ID
		realID, err := insertUnit(tx, &u)
		if err != nil {
			return fmt.Errorf("commit batch: unit %q: %w", u.Path, err)
		}
		fakeToReal[fakeID] = realID
	}

	// 2. Decisions
	for _, d := range batch.Decisions {
		d.UnitID = remap(fakeToReal, d.UnitID)
		if _, err := insertDecision(tx, &d); err != nil {
			return fmt.Errorf("commit batch: decision %q: %w", d.Name, err)
		}
	}

	// 3. Imports
	for _, imp := range batch.Imports {
		imp.UnitID = remap(fakeToReal, imp.UnitID)
		if _, err := insertImport(tx, &imp); err != nil {
			return fmt.Errorf("commit batch: import %q: %w", imp.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// replaceUnitTx drops the unit already stored at path, if any.
func replaceUnitTx(tx *sql.Tx, path string) error {
	var id int64
	err := tx.QueryRow("SELECT id FROM units WHERE path = ?", path).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	return deleteUnitsTx(tx, []int64{id})
}
