package memo

import "github.com/jward/memocap/internal/arkast"

// scopeWalker propagates capability through one function body. Nested
// functions get their own walker.
type scopeWalker struct {
	c      *Classifier
	params *ParamMap
	ret    MemoableInfo

	// collecting is cleared for the rest of the scope once a plain closure
	// is crossed.
	collecting bool
	// forceDisable is set for entry and intrinsic functions, whose returns
	// never contribute.
	forceDisable bool
	// override re-enables return collection after a capable declarator.
	override bool
	// passive counts enclosing capable calls whose arguments are walked
	// without promoting identifiers or collecting returns.
	passive int
}

// Propagate walks fn's body under fn's own parameter and return context,
// caching capable calls, reads of capable parameters, returns, and nested
// capable closures.
func (c *Classifier) Propagate(fn *arkast.Function) {
	if fn == nil {
		return
	}
	own := infoFromAnnotations(fn.Anns)
	w := &scopeWalker{
		c:            c,
		params:       c.BuildParamMap(fn),
		ret:          c.FunctionReturnInfo(fn),
		collecting:   true,
		forceDisable: own.HasMemoEntry || own.HasMemoIntrinsic,
	}
	switch {
	case fn.Body != nil:
		for _, st := range fn.Body.Stmts {
			w.node(st)
		}
	case fn.ExprBody != nil:
		// An expression body is an implicit return.
		if w.returns() {
			w.result(fn.ExprBody)
		} else {
			w.node(fn.ExprBody)
		}
	}
}

func (w *scopeWalker) returns() bool {
	return (w.collecting || w.override) && !w.forceDisable && w.passive == 0
}

func (w *scopeWalker) node(n arkast.Node) {
	switch x := n.(type) {
	case *arkast.VarDecl:
		for _, d := range x.Decls {
			w.declarator(d)
		}
	case *arkast.VarDeclarator:
		w.declarator(x)
	case *arkast.Call:
		w.call(x)
	case *arkast.Identifier:
		w.ident(x)
	case *arkast.Return:
		w.returnStmt(x)
	case *arkast.Arrow:
		w.arrow(x)
	case *arkast.FuncDecl:
		if w.c.cache.Has(x) {
			w.c.Propagate(x.Func)
		}
	case *arkast.Member:
		w.node(x.Object)
	case *arkast.Property:
		if x.Value != nil {
			w.node(x.Value)
		}
	case *arkast.ClassDecl, *arkast.TypeAlias, *arkast.Annotation, arkast.TypeNode:
	default:
		for _, child := range arkast.Children(n) {
			w.node(child)
		}
	}
}

func (w *scopeWalker) declarator(d *arkast.VarDeclarator) {
	info, fromParam := w.params.Lookup(d.ID())
	if !fromParam {
		info = w.c.VarDeclaratorInfo(d)
	}
	capable := info.Capable(fromParam)
	if capable {
		w.c.cache.Collect(d, info.Metadata())
		w.override = true
	}
	if fromParam {
		return
	}
	switch a := unwrapArrow(d.Init); {
	case a != nil && capable:
		w.c.adoptArrow(a, info)
	case a != nil:
		w.c.Propagate(a.Func)
	case d.Init != nil:
		w.node(d.Init)
	}
}

func (w *scopeWalker) call(x *arkast.Call) {
	capable := w.c.collectCall(x, w.params)
	w.c.promoteArguments(x)
	if capable {
		w.passive++
		defer func() { w.passive-- }()
	}
	switch callee := x.Callee.(type) {
	case *arkast.Identifier:
	case *arkast.Member:
		w.node(callee.Object)
	default:
		w.node(callee)
	}
	for _, arg := range x.Args {
		w.node(arg)
	}
}

func (w *scopeWalker) ident(x *arkast.Identifier) {
	if w.passive > 0 {
		return
	}
	decl := w.c.tree.Declaration(x)
	if decl == nil {
		return
	}
	if info, ok := w.params.Lookup(decl.ID()); ok && info.Capable(true) {
		w.c.cache.Collect(x, info.Metadata())
	}
}

func (w *scopeWalker) returnStmt(r *arkast.Return) {
	if !w.returns() {
		if r.Arg != nil {
			w.node(r.Arg)
		}
		return
	}
	if r.Arg != nil {
		w.result(r.Arg)
	}
	w.c.cache.Collect(r, nil)
}

// result handles a returned value: an arrow literal returned from a
// function with a capable return type becomes capable itself.
func (w *scopeWalker) result(x arkast.Expr) {
	if a := unwrapArrow(x); a != nil && w.ret.Capable(false) {
		w.c.adoptArrow(a, w.ret)
		return
	}
	w.node(x)
}

// arrow handles a closure met inside the body. A capable closure is its own
// scope; a plain one ends return collection for this scope.
func (w *scopeWalker) arrow(a *arkast.Arrow) {
	if w.c.cache.Has(a) {
		w.c.Propagate(a.Func)
		return
	}
	if info := w.c.ArrowInfo(a); info.Marked() {
		w.c.confirm(a, nil, info)
		w.c.Propagate(a.Func)
		return
	}
	w.collecting = false
}

// adoptArrow makes a an independently analyzed capable closure.
func (c *Classifier) adoptArrow(a *arkast.Arrow, info MemoableInfo) {
	c.markArrow(a, info)
	c.Propagate(a.Func)
}

// markArrow records a as capable, writing the marker unless a already
// carries one.
func (c *Classifier) markArrow(a *arkast.Arrow, info MemoableInfo) {
	if c.cache.Has(a) {
		return
	}
	if own := c.ArrowInfo(a); own.Marked() {
		c.confirm(a, nil, own)
		return
	}
	c.writer.Annotate(a, WithMetadata(info.Metadata()))
}
