package memocap

import (
	"cmp"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/jward/memocap/internal/store"
)

// --- Common Types ---

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByFile SortField = "file" // path, then source position
	SortByName SortField = "name"
	SortByKind SortField = "kind"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// DecisionResult is a decision together with the path of its unit.
type DecisionResult struct {
	store.Decision
	Path string
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// DecisionFilter specifies which decisions to include.
type DecisionFilter struct {
	Kinds      []string // match any of these kinds
	PathPrefix string   // unit path starts with this
	Module     string   // exact module name
}

func (f DecisionFilter) matchUnit(u *store.Unit) bool {
	if f.PathPrefix != "" && !strings.HasPrefix(u.Path, f.PathPrefix) {
		return false
	}
	return f.Module == "" || u.Module == f.Module
}

func (f DecisionFilter) matchDecision(d *store.Decision) bool {
	return len(f.Kinds) == 0 || slices.Contains(f.Kinds, d.Kind)
}

// SearchDecisions returns decisions whose name matches a glob pattern
// ("*" matches everything, "render*" matches a prefix).
func (q *QueryBuilder) SearchDecisions(pattern string, filter DecisionFilter, sort Sort, page Pagination) (*PagedResult[DecisionResult], error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("search decisions: pattern %q: %w", pattern, err)
	}
	all, err := q.collect(filter, func(d *store.Decision) bool {
		ok, _ := path.Match(pattern, d.Name)
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("search decisions: %w", err)
	}
	return paginate(sortDecisions(all, sort), page), nil
}

// ListDecisions returns every decision passing filter.
func (q *QueryBuilder) ListDecisions(filter DecisionFilter, sort Sort, page Pagination) (*PagedResult[DecisionResult], error) {
	all, err := q.collect(filter, nil)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	return paginate(sortDecisions(all, sort), page), nil
}

func (q *QueryBuilder) collect(filter DecisionFilter, match func(*store.Decision) bool) ([]DecisionResult, error) {
	units, err := q.store.Units()
	if err != nil {
		return nil, err
	}
	var out []DecisionResult
	for _, u := range units {
		if !filter.matchUnit(u) {
			continue
		}
		ds, err := q.store.DecisionsByUnit(u.ID)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", u.Path, err)
		}
		for _, d := range ds {
			if !filter.matchDecision(d) || (match != nil && !match(d)) {
				continue
			}
			out = append(out, DecisionResult{Decision: *d, Path: u.Path})
		}
	}
	return out, nil
}

func sortDecisions(rs []DecisionResult, s Sort) []DecisionResult {
	byFile := func(a, b DecisionResult) int {
		return cmp.Or(
			strings.Compare(a.Path, b.Path),
			cmp.Compare(a.StartLine, b.StartLine),
			cmp.Compare(a.StartCol, b.StartCol),
		)
	}
	var compare func(a, b DecisionResult) int
	switch s.Field {
	case SortByName:
		compare = func(a, b DecisionResult) int { return cmp.Or(strings.Compare(a.Name, b.Name), byFile(a, b)) }
	case SortByKind:
		compare = func(a, b DecisionResult) int { return cmp.Or(strings.Compare(a.Kind, b.Kind), byFile(a, b)) }
	default:
		compare = byFile
	}
	if s.Order == Desc {
		asc := compare
		compare = func(a, b DecisionResult) int { return asc(b, a) }
	}
	slices.SortStableFunc(rs, compare)
	return rs
}

func paginate[T any](all []T, page Pagination) *PagedResult[T] {
	page = page.normalize()
	res := &PagedResult[T]{Items: []T{}, TotalCount: len(all)}
	if page.Offset >= len(all) {
		return res
	}
	end := min(page.Offset+page.Limit, len(all))
	res.Items = all[page.Offset:end]
	return res
}

// --- Digest Endpoints ---

// UnitStats is one unit's entry in ProjectSummary.
type UnitStats struct {
	Path      string
	Module    string
	Decisions int
}

// ProjectSummary provides a high-level overview of the classified codebase.
type ProjectSummary struct {
	UnitCount     int
	DecisionCount int
	ImportCount   int
	KindCounts    map[string]int
	TopUnits      []UnitStats // units with the most decisions
}

// ProjectSummary returns an overview of every stored unit. topN bounds
// TopUnits; zero leaves it empty.
func (q *QueryBuilder) ProjectSummary(topN int) (*ProjectSummary, error) {
	units, err := q.store.Units()
	if err != nil {
		return nil, fmt.Errorf("project summary: units: %w", err)
	}

	summary := &ProjectSummary{
		UnitCount:  len(units),
		KindCounts: make(map[string]int),
		TopUnits:   []UnitStats{},
	}
	stats := make([]UnitStats, 0, len(units))
	for _, u := range units {
		ds, err := q.store.DecisionsByUnit(u.ID)
		if err != nil {
			return nil, fmt.Errorf("project summary: decisions for %s: %w", u.Path, err)
		}
		for _, d := range ds {
			summary.KindCounts[d.Kind]++
		}
		summary.DecisionCount += len(ds)

		imps, err := q.store.ImportsByUnit(u.ID)
		if err != nil {
			return nil, fmt.Errorf("project summary: imports for %s: %w", u.Path, err)
		}
		summary.ImportCount += len(imps)

		if len(ds) > 0 {
			stats = append(stats, UnitStats{Path: u.Path, Module: u.Module, Decisions: len(ds)})
		}
	}

	if topN > 0 {
		slices.SortStableFunc(stats, func(a, b UnitStats) int {
			return cmp.Compare(b.Decisions, a.Decisions)
		})
		summary.TopUnits = stats[:min(topN, len(stats))]
	}
	return summary, nil
}
