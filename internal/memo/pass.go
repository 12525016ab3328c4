package memo

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"github.com/jward/memocap/internal/arkast"
	"github.com/jward/memocap/internal/imports"
)

// Decision is one cached node in a pass result.
type Decision struct {
	ID       arkast.NodeID
	Kind     arkast.Kind
	Name     string
	Pos      arkast.Pos
	Metadata Metadata
}

// Result is everything a pass decided for one unit.
type Result struct {
	Path      string
	Module    string
	Decisions []Decision
	Imports   []imports.Import
}

// Count returns the number of decisions of kind k.
func (r *Result) Count(k arkast.Kind) int {
	n := 0
	for _, d := range r.Decisions {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Pass classifies a whole unit bottom-up: every understood node is
// classified, approved nodes are annotated, and the bodies of capable
// functions are propagated.
type Pass struct {
	c *Classifier
}

// NewPass prepares a pass over tree. The tree must already be bound.
func NewPass(tree *arkast.Tree, opts ...Option) *Pass {
	return &Pass{c: NewClassifier(tree, opts...)}
}

// Classifier exposes the pass's classifier, for consumers that need the
// per-kind entry points or the cache.
func (p *Pass) Classifier() *Classifier { return p.c }

// Run executes the pass and returns its decisions.
func (p *Pass) Run() *Result {
	if f := p.c.tree.File; f != nil {
		arkast.PostOrder(f, p.visit)
	}
	res := p.c.Result()
	p.c.log.Debug("memo: pass done",
		zap.String("path", res.Path),
		zap.Int("decisions", len(res.Decisions)),
		zap.Int("imports", len(res.Imports)))
	return res
}

func (p *Pass) visit(n arkast.Node) {
	c := p.c
	if c.Classify(n) {
		c.writer.Annotate(n)
	}
	switch x := n.(type) {
	case *arkast.FuncDecl:
		if c.cache.Has(x) {
			c.Propagate(x.Func)
		}
	case *arkast.Method:
		if c.cache.Has(x) {
			c.Propagate(x.Func)
		}
	case *arkast.Arrow:
		if c.cache.Has(x) {
			c.Propagate(x.Func)
		}
	case *arkast.ClassProperty:
		if a := unwrapArrow(x.Value); a != nil && c.cache.Has(x) {
			c.adoptArrow(a, c.ClassPropertyInfo(x))
		}
	case *arkast.Property:
		if a := unwrapArrow(x.Value); a != nil && c.cache.Has(x) {
			c.adoptArrow(a, c.PropertyInfo(x))
		}
	}
}

// Result snapshots the cache as decisions ordered by source position.
func (c *Classifier) Result() *Result {
	res := &Result{Path: c.tree.Path(), Module: c.tree.Module()}
	for _, e := range c.cache.Entries() {
		d := Decision{ID: e.ID, Kind: e.Kind, Metadata: e.Metadata}
		if n, ok := c.tree.Lookup(e.ID); ok {
			d.Name = arkast.Name(n)
			d.Pos = n.Pos()
		}
		res.Decisions = append(res.Decisions, d)
	}
	slices.SortStableFunc(res.Decisions, func(a, b Decision) int {
		return cmp.Or(
			cmp.Compare(a.Pos.Line, b.Pos.Line),
			cmp.Compare(a.Pos.Col, b.Pos.Col),
			cmp.Compare(a.ID, b.ID),
		)
	})
	if lister, ok := c.imports.(interface{ Imports() []imports.Import }); ok {
		res.Imports = lister.Imports()
	}
	return res
}
