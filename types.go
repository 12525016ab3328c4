package memocap

import (
	"time"

	"github.com/jward/memocap/internal/frontend"
	"github.com/jward/memocap/internal/imports"
	"github.com/jward/memocap/internal/memo"
	"github.com/jward/memocap/internal/store"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder APIs. These are Go type aliases (=), identical to the
// internal types at compile time. External consumers use these names; no
// conversion is needed.

type Backend = store.Backend
type Unit = store.Unit
type Decision = store.Decision
type Import = store.Import

type Config = memo.Config
type Marker = memo.Marker
type Metadata = memo.Metadata
type NodeDecision = memo.Decision
type MarkerImport = imports.Import

// UnitResult is the classification of one compilation unit.
type UnitResult struct {
	memo.Result
	// Hash is the content hash change detection compares against.
	Hash string
}

// relocate returns a copy of r attributed to another path. Decisions and
// imports are shared, so callers must treat them as read-only.
func (r *UnitResult) relocate(path, module string) *UnitResult {
	out := *r
	out.Path = path
	if module == "" {
		module = frontend.DefaultModule(path)
	}
	out.Module = module
	return &out
}

// RunSummary reports what one ClassifyFiles or ClassifyDirectory call did.
type RunSummary struct {
	RunID      string
	Classified int
	Unchanged  int
	Removed    int
	Failed     int
	Decisions  int
	Duration   time.Duration
}
