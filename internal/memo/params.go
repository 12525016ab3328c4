package memo

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jward/memocap/internal/arkast"
)

// ParamMap holds the classification of a function's parameters for one body
// walk, keyed by the handle of the binding the body actually reads: the
// parameter itself, or for a synthesized parameter the hoisted declarator
// that replaces it.
type ParamMap struct {
	infos map[arkast.NodeID]MemoableInfo
	names map[arkast.NodeID]string
	order []arkast.NodeID

	// GensymCount is the number of synthesized parameters consumed.
	GensymCount int
}

func newParamMap() *ParamMap {
	return &ParamMap{
		infos: make(map[arkast.NodeID]MemoableInfo),
		names: make(map[arkast.NodeID]string),
	}
}

func (m *ParamMap) add(n arkast.Node, info MemoableInfo) {
	if _, ok := m.infos[n.ID()]; !ok {
		m.order = append(m.order, n.ID())
	}
	m.infos[n.ID()] = info
	m.names[n.ID()] = arkast.Name(n)
}

// Lookup returns the classification bound to a declaration handle.
func (m *ParamMap) Lookup(id arkast.NodeID) (MemoableInfo, bool) {
	if m == nil {
		return MemoableInfo{}, false
	}
	info, ok := m.infos[id]
	return info, ok
}

// Has reports whether id is a binding in the map.
func (m *ParamMap) Has(id arkast.NodeID) bool {
	_, ok := m.Lookup(id)
	return ok
}

// Capable reports whether the binding is capable. Parameter types were
// checked when the map was built, so the marker is trusted.
func (m *ParamMap) Capable(id arkast.NodeID) bool {
	info, ok := m.Lookup(id)
	return ok && info.Capable(true)
}

// CapableNames lists the bound names of capable bindings in parameter
// order.
func (m *ParamMap) CapableNames() []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, id := range m.order {
		if m.infos[id].Capable(true) {
			out = append(out, m.names[id])
		}
	}
	return out
}

// Len returns the number of bindings.
func (m *ParamMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// BuildParamMap classifies fn's parameters. A synthesized parameter consumes
// the next leading body statement; when that statement binds
// `cond ? intrinsic : user`, the user arrow is annotated with the
// parameter's classification and the declarator takes the parameter's place.
func (c *Classifier) BuildParamMap(fn *arkast.Function) *ParamMap {
	pm := newParamMap()
	if fn == nil {
		return pm
	}
	for _, p := range fn.Params {
		info := c.ParameterInfo(p)
		if c.isGensym(p) {
			if d := leadingDeclarator(fn, pm.GensymCount); d != nil {
				pm.GensymCount++
				c.forwardGensym(p, d, info)
				pm.add(d, info)
				continue
			}
		}
		if info.Capable(false) && info.Marked() {
			c.cache.Collect(p, info.Metadata())
		}
		pm.add(p, info)
	}
	return pm
}

func (c *Classifier) isGensym(p *arkast.Parameter) bool {
	return c.cfg.GensymPrefix != "" && p.Name != nil &&
		strings.HasPrefix(p.Name.Name, c.cfg.GensymPrefix)
}

// leadingDeclarator returns the single declarator of fn's n-th body
// statement, if that statement is a variable declaration.
func leadingDeclarator(fn *arkast.Function, n int) *arkast.VarDeclarator {
	if fn.Body == nil || n >= len(fn.Body.Stmts) {
		return nil
	}
	vd, ok := fn.Body.Stmts[n].(*arkast.VarDecl)
	if !ok || len(vd.Decls) != 1 {
		return nil
	}
	return vd.Decls[0]
}

func (c *Classifier) forwardGensym(p *arkast.Parameter, d *arkast.VarDeclarator, info MemoableInfo) {
	if !info.Capable(true) {
		return
	}
	md := info.Metadata()
	c.cache.Collect(p, md)
	c.cache.Collect(d, md)

	cond, ok := d.Init.(*arkast.Conditional)
	if !ok {
		return
	}
	if a := unwrapArrow(cond.Else); a != nil {
		c.adoptArrow(a, info)
	}
	c.log.Debug("memo: gensym forwarded",
		zap.String("param", arkast.Name(p)),
		zap.String("binding", arkast.Name(d)))
}
