package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestMemStore(t *testing.T) *MemStore {
	t.Helper()
	m, err := NewMemStore()
	require.NoError(t, err)
	return m
}

// backends runs fn once per Backend implementation.
func backends(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Helper()
	t.Parallel()
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		fn(t, newTestStore(t))
	})
	t.Run("memdb", func(t *testing.T) {
		t.Parallel()
		fn(t, newTestMemStore(t))
	})
}

// insertTestUnit is a helper that inserts a unit and returns it with ID set.
func insertTestUnit(t *testing.T, w Writer, path string) *Unit {
	t.Helper()
	u := &Unit{
		Path:           path,
		Module:         path[:len(path)-len(filepath.Ext(path))],
		Hash:           HashContent([]byte(path)),
		RunID:          "run-1",
		LastClassified: time.Now().UTC().Truncate(time.Second),
	}
	id, err := w.InsertUnit(u)
	require.NoError(t, err)
	require.NotZero(t, id)
	return u
}

func insertTestDecision(t *testing.T, w Writer, unitID int64, name, kind string, line, col int) *Decision {
	t.Helper()
	d := &Decision{
		UnitID:    unitID,
		NodeID:    int64(line*100 + col),
		Kind:      kind,
		Name:      name,
		StartLine: line,
		StartCol:  col,
	}
	_, err := w.InsertDecision(d)
	require.NoError(t, err)
	return d
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"units", "decisions", "imports", "metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		u := insertTestUnit(t, b, "pages/index.ets")
		require.NoError(t, b.Migrate())
		got, err := b.UnitByPath(u.Path)
		require.NoError(t, err)
		require.NotNil(t, got, "migrate must not drop data")
	})
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// Units
// =============================================================================

func TestUnit_InsertAndRetrieve(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		u := insertTestUnit(t, b, "pages/index.ets")

		got, err := b.UnitByPath("pages/index.ets")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "pages/index", got.Module)
		assert.Equal(t, u.Hash, got.Hash)
		assert.Equal(t, "run-1", got.RunID)
		assert.True(t, u.LastClassified.Equal(got.LastClassified))
	})
}

func TestUnit_ByPathNotFound(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		got, err := b.UnitByPath("missing.ets")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestUnit_ListOrderedByPath(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		insertTestUnit(t, b, "pages/z.ets")
		insertTestUnit(t, b, "common/a.ets")
		insertTestUnit(t, b, "pages/b.ets")

		units, err := b.Units()
		require.NoError(t, err)
		var paths []string
		for _, u := range units {
			paths = append(paths, u.Path)
		}
		assert.Equal(t, []string{"common/a.ets", "pages/b.ets", "pages/z.ets"}, paths)
	})
}

func TestUnit_PathUnique(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		insertTestUnit(t, b, "a.ets")
		_, err := b.InsertUnit(&Unit{Path: "a.ets", Module: "a"})
		assert.Error(t, err)
	})
}

// =============================================================================
// Decisions & Imports
// =============================================================================

func TestDecision_MetadataRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		u := insertTestUnit(t, b, "a.ets")
		d := &Decision{
			UnitID:    u.ID,
			NodeID:    7,
			Kind:      "Call",
			Name:      "content",
			StartLine: 3,
			StartCol:  4,
			Metadata:  map[string]any{"hasMemoSkip": true, "callName": "content"},
		}
		_, err := b.InsertDecision(d)
		require.NoError(t, err)

		got, err := b.DecisionsByUnit(u.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, d.ID, got[0].ID)
		assert.Equal(t, int64(7), got[0].NodeID)
		assert.Equal(t, "Call", got[0].Kind)
		assert.Equal(t, map[string]any{"hasMemoSkip": true, "callName": "content"}, got[0].Metadata)
	})
}

func TestDecision_EmptyMetadataIsNil(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		u := insertTestUnit(t, b, "a.ets")
		insertTestDecision(t, b, u.ID, "f", "FuncDecl", 0, 0)

		got, err := b.DecisionsByUnit(u.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Empty(t, got[0].Metadata)
	})
}

func TestDecision_ByUnitSourceOrder(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		u := insertTestUnit(t, b, "a.ets")
		insertTestDecision(t, b, u.ID, "late", "Call", 9, 0)
		insertTestDecision(t, b, u.ID, "second", "Call", 2, 8)
		insertTestDecision(t, b, u.ID, "first", "FuncDecl", 2, 1)

		got, err := b.DecisionsByUnit(u.ID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "first", got[0].Name)
		assert.Equal(t, "second", got[1].Name)
		assert.Equal(t, "late", got[2].Name)
	})
}

func TestDecision_ByKindAcrossUnits(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		a := insertTestUnit(t, b, "a.ets")
		c := insertTestUnit(t, b, "c.ets")
		insertTestDecision(t, b, a.ID, "f", "FuncDecl", 0, 0)
		insertTestDecision(t, b, a.ID, "x", "Call", 1, 2)
		insertTestDecision(t, b, c.ID, "y", "Call", 0, 2)

		calls, err := b.DecisionsByKind("Call")
		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.Equal(t, "x", calls[0].Name)
		assert.Equal(t, "y", calls[1].Name)

		none, err := b.DecisionsByKind("Arrow")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestImport_InsertAndQuery(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		u := insertTestUnit(t, b, "a.ets")
		for _, sym := range []string{"memo", "memo_skip"} {
			_, err := b.InsertImport(&Import{UnitID: u.ID, Symbol: sym, Source: "arkui.stateManagement.runtime"})
			require.NoError(t, err)
		}

		got, err := b.ImportsByUnit(u.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "memo", got[0].Symbol)
		assert.Equal(t, "memo_skip", got[1].Symbol)
		assert.Equal(t, "arkui.stateManagement.runtime", got[1].Source)
	})
}

// =============================================================================
// Deletion
// =============================================================================

func TestDeleteUnitData(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		keep := insertTestUnit(t, b, "keep.ets")
		drop := insertTestUnit(t, b, "drop.ets")
		insertTestDecision(t, b, keep.ID, "k", "Call", 0, 0)
		insertTestDecision(t, b, drop.ID, "d", "Call", 0, 0)
		_, err := b.InsertImport(&Import{UnitID: drop.ID, Symbol: "memo", Source: "m"})
		require.NoError(t, err)

		require.NoError(t, b.DeleteUnitData(drop.ID))

		got, err := b.UnitByPath("drop.ets")
		require.NoError(t, err)
		assert.Nil(t, got)
		ds, err := b.DecisionsByUnit(drop.ID)
		require.NoError(t, err)
		assert.Empty(t, ds)
		imps, err := b.ImportsByUnit(drop.ID)
		require.NoError(t, err)
		assert.Empty(t, imps)

		ds, err = b.DecisionsByUnit(keep.ID)
		require.NoError(t, err)
		assert.Len(t, ds, 1)
	})
}

func TestDeleteUnits_Several(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		a := insertTestUnit(t, b, "a.ets")
		c := insertTestUnit(t, b, "c.ets")
		insertTestUnit(t, b, "e.ets")
		insertTestDecision(t, b, a.ID, "x", "Call", 0, 0)

		require.NoError(t, b.DeleteUnits([]int64{a.ID, c.ID}))
		require.NoError(t, b.DeleteUnits(nil))

		units, err := b.Units()
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, "e.ets", units[0].Path)
		calls, err := b.DecisionsByKind("Call")
		require.NoError(t, err)
		assert.Empty(t, calls)
	})
}

// =============================================================================
// Metadata
// =============================================================================

func TestMeta_SetAndReplace(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		_, ok, err := b.GetMetadata("config_fingerprint")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, b.SetMetadata("config_fingerprint", "one"))
		require.NoError(t, b.SetMetadata("config_fingerprint", "two"))

		v, ok, err := b.GetMetadata("config_fingerprint")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "two", v)
	})
}

// =============================================================================
// Hashing
// =============================================================================

func TestHashContent(t *testing.T) {
	t.Parallel()
	a := HashContent([]byte("@memo function f() {}"))
	assert.Len(t, a, 16)
	assert.Equal(t, a, HashContent([]byte("@memo function f() {}")))
	assert.NotEqual(t, a, HashContent([]byte("function f() {}")))
}

func TestMarshalMetadata_Deterministic(t *testing.T) {
	t.Parallel()
	md := map[string]any{"isSetter": true, "callName": "x", "hasMemoSkip": false}
	first, err := marshalMetadata(md)
	require.NoError(t, err)
	for range 10 {
		again, err := marshalMetadata(md)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, `{"callName":"x","hasMemoSkip":false,"isSetter":true}`, first)
}
