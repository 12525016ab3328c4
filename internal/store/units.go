package store

import (
	"database/sql"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// --- Unit operations ---

func (s *Store) InsertUnit(u *Unit) (int64, error) {
	return insertUnit(s.db, u)
}

func insertUnit(ex execer, u *Unit) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO units (path, module, hash, run_id, decision_count, last_classified)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Path, u.Module, u.Hash, u.RunID, u.DecisionCount, u.LastClassified,
	)
	if err != nil {
		return 0, fmt.Errorf("insert unit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	return id, nil
}

// UnitCols is the column list for unit queries.
const UnitCols = `id, path, module, hash, run_id, decision_count, last_classified`

func scanUnit(scanner interface{ Scan(...any) error }) (*Unit, error) {
	u := &Unit{}
	var hash, runID sql.NullString
	var lastClassified sql.NullTime
	if err := scanner.Scan(&u.ID, &u.Path, &u.Module, &hash, &runID, &u.DecisionCount, &lastClassified); err != nil {
		return nil, err
	}
	u.Hash = hash.String
	u.RunID = runID.String
	u.LastClassified = lastClassified.Time
	return u, nil
}

func (s *Store) UnitByPath(path string) (*Unit, error) {
	u, err := scanUnit(s.db.QueryRow("SELECT "+UnitCols+" FROM units WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unit by path: %w", err)
	}
	return u, nil
}

func (s *Store) Units() ([]*Unit, error) {
	rows, err := s.db.Query("SELECT " + UnitCols + " FROM units ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("units: %w", err)
	}
	defer rows.Close()
	var units []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// --- Decision operations ---

func (s *Store) InsertDecision(d *Decision) (int64, error) {
	return insertDecision(s.db, d)
}

func insertDecision(ex execer, d *Decision) (int64, error) {
	md, err := marshalMetadata(d.Metadata)
	if err != nil {
		return 0, fmt.Errorf("insert decision: metadata: %w", err)
	}
	res, err := ex.Exec(
		`INSERT INTO decisions (unit_id, node_id, kind, name, start_line, start_col, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.UnitID, d.NodeID, d.Kind, d.Name, d.StartLine, d.StartCol, md,
	)
	if err != nil {
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return id, nil
}

// DecisionCols is the column list for decision queries.
const DecisionCols = `id, unit_id, node_id, kind, name, start_line, start_col, metadata`

func scanDecision(scanner interface{ Scan(...any) error }) (*Decision, error) {
	d := &Decision{}
	var name, md sql.NullString
	if err := scanner.Scan(&d.ID, &d.UnitID, &d.NodeID, &d.Kind, &name, &d.StartLine, &d.StartCol, &md); err != nil {
		return nil, err
	}
	d.Name = name.String
	meta, err := unmarshalMetadata(md.String)
	if err != nil {
		return nil, fmt.Errorf("decision %d metadata: %w", d.ID, err)
	}
	d.Metadata = meta
	return d, nil
}

func (s *Store) queryDecisions(query string, args ...any) ([]*Decision, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DecisionsByUnit returns a unit's decisions in source order.
func (s *Store) DecisionsByUnit(unitID int64) ([]*Decision, error) {
	ds, err := s.queryDecisions(
		"SELECT "+DecisionCols+" FROM decisions WHERE unit_id = ? ORDER BY start_line, start_col, id", unitID)
	if err != nil {
		return nil, fmt.Errorf("decisions by unit: %w", err)
	}
	return ds, nil
}

// DecisionsByKind returns every decision of a node kind across units.
func (s *Store) DecisionsByKind(kind string) ([]*Decision, error) {
	ds, err := s.queryDecisions(
		"SELECT "+DecisionCols+" FROM decisions WHERE kind = ? ORDER BY unit_id, start_line, start_col, id", kind)
	if err != nil {
		return nil, fmt.Errorf("decisions by kind: %w", err)
	}
	return ds, nil
}

// --- Import operations ---

func (s *Store) InsertImport(imp *Import) (int64, error) {
	return insertImport(s.db, imp)
}

func insertImport(ex execer, imp *Import) (int64, error) {
	res, err := ex.Exec(
		"INSERT INTO imports (unit_id, symbol, source) VALUES (?, ?, ?)",
		imp.UnitID, imp.Symbol, imp.Source,
	)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	imp.ID = id
	return id, nil
}

// ImportsByUnit returns a unit's imports in request order.
func (s *Store) ImportsByUnit(unitID int64) ([]*Import, error) {
	rows, err := s.db.Query(
		"SELECT id, unit_id, symbol, source FROM imports WHERE unit_id = ? ORDER BY id", unitID,
	)
	if err != nil {
		return nil, fmt.Errorf("imports by unit: %w", err)
	}
	defer rows.Close()
	var out []*Import
	for rows.Next() {
		imp := &Import{}
		if err := rows.Scan(&imp.ID, &imp.UnitID, &imp.Symbol, &imp.Source); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}
