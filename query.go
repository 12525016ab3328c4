package memocap

import (
	"fmt"

	"github.com/jward/memocap/internal/arkast"
	"github.com/jward/memocap/internal/store"
)

// QueryBuilder provides read access to stored classification results.
// Unknown paths yield empty results, not errors.
type QueryBuilder struct {
	store store.Backend
}

// NewQueryBuilder creates a QueryBuilder over an already-open backend, for
// readers that do not need an Engine.
func NewQueryBuilder(s Backend) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// Units lists every stored unit ordered by path.
func (q *QueryBuilder) Units() ([]*Unit, error) {
	units, err := q.store.Units()
	if err != nil {
		return nil, fmt.Errorf("units: %w", err)
	}
	return units, nil
}

// Unit returns the stored unit for path, or nil.
func (q *QueryBuilder) Unit(path string) (*Unit, error) {
	u, err := q.store.UnitByPath(path)
	if err != nil {
		return nil, fmt.Errorf("unit: %w", err)
	}
	return u, nil
}

// Decisions returns the decisions stored for a file in source order.
func (q *QueryBuilder) Decisions(path string) ([]*Decision, error) {
	u, err := q.Unit(path)
	if err != nil || u == nil {
		return nil, err
	}
	ds, err := q.store.DecisionsByUnit(u.ID)
	if err != nil {
		return nil, fmt.Errorf("decisions: %w", err)
	}
	return ds, nil
}

// DecisionsByKind returns every stored decision of a node kind, such as
// "Call" or "Parameter", across all units.
func (q *QueryBuilder) DecisionsByKind(kind string) ([]*Decision, error) {
	ds, err := q.store.DecisionsByKind(kind)
	if err != nil {
		return nil, fmt.Errorf("decisions by kind: %w", err)
	}
	return ds, nil
}

// MemoCalls returns the call expressions in a file that were classified as
// invoking memo-capable callees.
func (q *QueryBuilder) MemoCalls(path string) ([]*Decision, error) {
	ds, err := q.Decisions(path)
	if err != nil {
		return nil, fmt.Errorf("memo calls: %w", err)
	}
	var calls []*Decision
	for _, d := range ds {
		if d.Kind == arkast.KindCall.String() {
			calls = append(calls, d)
		}
	}
	return calls, nil
}

// Imports returns the marker imports a file requested, in request order.
func (q *QueryBuilder) Imports(path string) ([]*Import, error) {
	u, err := q.Unit(path)
	if err != nil || u == nil {
		return nil, err
	}
	imps, err := q.store.ImportsByUnit(u.ID)
	if err != nil {
		return nil, fmt.Errorf("imports: %w", err)
	}
	return imps, nil
}

// DecisionAt finds the decision for the node starting nearest before the
// given 0-based position on the same line. Returns nil when no decision
// starts on that line at or before col.
func (q *QueryBuilder) DecisionAt(path string, line, col int) (*Decision, error) {
	ds, err := q.Decisions(path)
	if err != nil {
		return nil, fmt.Errorf("decision at: %w", err)
	}
	var best *Decision
	for _, d := range ds {
		if d.StartLine != line || d.StartCol > col {
			continue
		}
		// Decisions are in source order, so a later match starts closer.
		best = d
	}
	return best, nil
}
