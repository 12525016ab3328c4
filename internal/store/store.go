package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for classification results.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS units (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  module          TEXT NOT NULL,
  hash            TEXT,
  run_id          TEXT,
  decision_count  INTEGER DEFAULT 0,
  last_classified TIMESTAMP
);

CREATE TABLE IF NOT EXISTS decisions (
  id              INTEGER PRIMARY KEY,
  unit_id         INTEGER NOT NULL REFERENCES units(id),
  node_id         INTEGER NOT NULL,
  kind            TEXT NOT NULL,
  name            TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  metadata        TEXT
);

CREATE TABLE IF NOT EXISTS imports (
  id              INTEGER PRIMARY KEY,
  unit_id         INTEGER NOT NULL REFERENCES units(id),
  symbol          TEXT NOT NULL,
  source          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE INDEX IF NOT EXISTS idx_units_hash ON units(hash);
CREATE INDEX IF NOT EXISTS idx_decisions_unit ON decisions(unit_id);
CREATE INDEX IF NOT EXISTS idx_decisions_kind ON decisions(kind);
CREATE INDEX IF NOT EXISTS idx_decisions_position ON decisions(unit_id, start_line, start_col);
CREATE INDEX IF NOT EXISTS idx_imports_unit ON imports(unit_id);
CREATE INDEX IF NOT EXISTS idx_imports_source ON imports(source);
`

// DeleteUnitData transactionally removes a unit and all rows that reference it.
func (s *Store) DeleteUnitData(unitID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteUnitsTx(tx, []int64{unitID}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteUnits transactionally removes several units and everything they own.
func (s *Store) DeleteUnits(unitIDs []int64) error {
	if len(unitIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteUnitsTx(tx, unitIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteUnitsTx deletes child rows before the units to respect FK constraints.
func deleteUnitsTx(tx *sql.Tx, unitIDs []int64) error {
	ph := placeholderList(len(unitIDs))
	args := int64sToArgs(unitIDs)
	for _, q := range []struct{ table, column string }{
		{"decisions", "unit_id"},
		{"imports", "unit_id"},
		{"units", "id"},
	} {
		if _, err := tx.Exec("DELETE FROM "+q.table+" WHERE "+q.column+" IN ("+ph+")", args...); err != nil {
			return fmt.Errorf("delete %s: %w", q.table, err)
		}
	}
	return nil
}

// --- Metadata ---

// GetMetadata returns the value stored under key.
func (s *Store) GetMetadata(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, true, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
