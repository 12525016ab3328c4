package store

// Writer is the insert surface of a backend. Store and MemStore write
// directly; BatchedStore buffers with fake IDs for a later CommitBatch.
type Writer interface {
	// Each insert returns the assigned ID and sets it on the argument.
	InsertUnit(u *Unit) (int64, error)
	InsertDecision(d *Decision) (int64, error)
	InsertImport(imp *Import) (int64, error)
}

// Backend is the persistence layer the engine and queries run against.
type Backend interface {
	Writer

	Migrate() error
	Close() error

	// UnitByPath returns nil, nil when no unit has been stored for path.
	UnitByPath(path string) (*Unit, error)
	// Units lists every unit ordered by path.
	Units() ([]*Unit, error)
	DecisionsByUnit(unitID int64) ([]*Decision, error)
	DecisionsByKind(kind string) ([]*Decision, error)
	ImportsByUnit(unitID int64) ([]*Import, error)

	// DeleteUnitData removes a unit together with its decisions and imports.
	DeleteUnitData(unitID int64) error
	// DeleteUnits removes several units and everything they own.
	DeleteUnits(unitIDs []int64) error

	// CommitBatch persists a worker's buffered units atomically. A unit whose
	// path is already stored replaces the stored one.
	CommitBatch(batch *BatchedStore) error

	// GetMetadata returns ok == false when key was never set.
	GetMetadata(key string) (value string, ok bool, err error)
	SetMetadata(key, value string) error
}

// Compile-time checks.
var (
	_ Backend = (*Store)(nil)
	_ Backend = (*MemStore)(nil)
	_ Writer  = (*BatchedStore)(nil)
)
