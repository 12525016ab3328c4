package store

import "time"

// Classification domain types

// Unit is one classified compilation unit.
type Unit struct {
	ID             int64
	Path           string
	Module         string
	Hash           string
	RunID          string
	DecisionCount  int
	LastClassified time.Time
}

// Decision is one node the classifier marked capable.
type Decision struct {
	ID        int64
	UnitID    int64
	NodeID    int64
	Kind      string
	Name      string
	StartLine int
	StartCol  int
	Metadata  map[string]any
}

// Import is one marker import a unit requested.
type Import struct {
	ID     int64
	UnitID int64
	Symbol string
	Source string
}
