package memo

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jward/memocap/internal/arkast"
	"github.com/jward/memocap/internal/imports"
)

// Classifier decides memo capability for nodes of one compilation unit.
// All decisions land in a shared Cache; computing a node twice converges to
// the same merged entry. A Classifier is single-threaded.
type Classifier struct {
	tree     *arkast.Tree
	cache    *Cache
	resolver *Resolver
	writer   *Writer
	imports  ImportCollector
	cfg      Config
	log      *zap.Logger

	// visiting guards recursion through type aliases and declarations.
	visiting map[arkast.NodeID]bool
}

// NewClassifier creates a classifier for tree. Without options it uses a
// fresh cache, a fresh import collector, DefaultConfig and a no-op logger.
func NewClassifier(tree *arkast.Tree, opts ...Option) *Classifier {
	s := settings{cfg: DefaultConfig(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.cache == nil {
		s.cache = NewCache()
	}
	if s.imports == nil {
		s.imports = imports.NewCollector()
	}
	c := &Classifier{
		tree:     tree,
		cache:    s.cache,
		resolver: NewResolver(tree),
		imports:  s.imports,
		cfg:      s.cfg,
		log:      s.log,
		visiting: make(map[arkast.NodeID]bool),
	}
	c.writer = &Writer{tree: tree, cache: s.cache, imports: s.imports, cfg: s.cfg, log: s.log}
	return c
}

func (c *Classifier) Cache() *Cache            { return c.cache }
func (c *Classifier) Writer() *Writer          { return c.writer }
func (c *Classifier) Resolver() *Resolver      { return c.resolver }
func (c *Classifier) Tree() *arkast.Tree       { return c.tree }
func (c *Classifier) Config() Config           { return c.cfg }
func (c *Classifier) Imports() ImportCollector { return c.imports }

// Classify runs the classification rule for n's kind and reports whether n
// qualifies to be newly marked. Calls and declarators are recorded as a side
// effect and never qualify.
func (c *Classifier) Classify(n arkast.Node) bool {
	switch n.Kind() {
	case arkast.KindProperty:
		return c.QualifiesProperty(n.(*arkast.Property))
	case arkast.KindClassProperty:
		return c.QualifiesClassProperty(n.(*arkast.ClassProperty))
	case arkast.KindTypeAlias:
		return c.QualifiesTypeAlias(n.(*arkast.TypeAlias))
	case arkast.KindParameter:
		return c.QualifiesParameter(n.(*arkast.Parameter))
	case arkast.KindMethod:
		return c.QualifiesMethod(n.(*arkast.Method))
	case arkast.KindArrow:
		return c.QualifiesArrow(n.(*arkast.Arrow))
	case arkast.KindFuncDecl:
		return c.QualifiesFuncDecl(n.(*arkast.FuncDecl))
	case arkast.KindCall:
		c.CollectCall(n.(*arkast.Call))
		return false
	case arkast.KindVarDeclarator:
		c.collectDeclarator(n.(*arkast.VarDeclarator))
		return false
	case arkast.KindSourceFile, arkast.KindBlock, arkast.KindExprStmt,
		arkast.KindReturn, arkast.KindVarDecl, arkast.KindClassDecl,
		arkast.KindOtherStmt, arkast.KindFunction, arkast.KindMember,
		arkast.KindIdentifier, arkast.KindThis, arkast.KindAs,
		arkast.KindNonNull, arkast.KindConditional, arkast.KindObject,
		arkast.KindLiteral, arkast.KindOtherExpr, arkast.KindFunctionType,
		arkast.KindUnionType, arkast.KindTypeRef, arkast.KindOtherType,
		arkast.KindAnnotation:
		return false
	default:
		panic(fmt.Sprintf("memo: no classification rule for %s", n.Kind()))
	}
}

func (c *Classifier) cached(n arkast.Node) (MemoableInfo, bool) {
	e, ok := c.cache.Get(n)
	if !ok {
		return MemoableInfo{}, false
	}
	return infoFromMetadata(e.Metadata), true
}

func (c *Classifier) enter(n arkast.Node) bool {
	if c.visiting[n.ID()] {
		return false
	}
	c.visiting[n.ID()] = true
	return true
}

func (c *Classifier) leave(n arkast.Node) {
	delete(c.visiting, n.ID())
}

// confirm records a node whose function type has been confirmed, and its
// type node. A type found inside generic arguments is recorded as not to be
// rewritten.
func (c *Classifier) confirm(n arkast.Node, typ arkast.TypeNode, info MemoableInfo) {
	if !info.HasProperType || !(info.Capable(false) || info.Qualifies()) {
		return
	}
	if info.Marked() && !c.cache.Has(n) {
		md := info.Metadata()
		if info.IsWithinTypeParams {
			md[MetaIsWithinTypeParams] = true
		}
		if fn := functionOf(n); fn != nil {
			functionFlags(fn, md)
		}
		c.cache.Collect(n, md)
		c.log.Debug("memo: confirmed",
			zap.Stringer("kind", n.Kind()),
			zap.String("name", arkast.Name(n)),
			zap.Stringer("pos", n.Pos()))
	}
	if typ != nil && !c.cache.Has(typ) {
		md := Metadata{}
		if info.IsWithinTypeParams {
			md[MetaForbidTypeRewrite] = true
			md[MetaIsWithinTypeParams] = true
		}
		c.cache.Collect(typ, md)
	}
}

// =============================================================================
// Types
// =============================================================================

// TypeInfo classifies a type node. Function types are proper; a union is
// the merge of its members; a reference follows its alias and takes on any
// capable generic argument, flagged as within type params.
func (c *Classifier) TypeInfo(t arkast.TypeNode) MemoableInfo {
	if t == nil {
		return MemoableInfo{}
	}
	if info, ok := c.cached(t); ok {
		return info
	}
	switch x := t.(type) {
	case *arkast.FunctionType:
		info := infoFromAnnotations(x.Anns)
		info.HasProperType = true
		return info
	case *arkast.UnionType:
		var info MemoableInfo
		for _, m := range x.Types {
			info = info.merge(c.TypeInfo(m))
		}
		return info
	case *arkast.TypeRef:
		return c.typeRefInfo(x)
	default:
		return MemoableInfo{}
	}
}

func (c *Classifier) typeRefInfo(r *arkast.TypeRef) MemoableInfo {
	var info MemoableInfo
	if alias, ok := c.tree.Declaration(r).(*arkast.TypeAlias); ok {
		info = c.TypeAliasInfo(alias)
	}
	for _, arg := range r.Args {
		if ai := c.TypeInfo(arg); ai.Capable(false) {
			info = info.merge(ai)
			info.IsWithinTypeParams = true
		}
	}
	return info
}

// TypeAliasInfo classifies an alias from its own markers and its target
// type. A cycle of aliases contributes nothing.
func (c *Classifier) TypeAliasInfo(a *arkast.TypeAlias) MemoableInfo {
	if info, ok := c.cached(a); ok {
		return info
	}
	if !c.enter(a) {
		return MemoableInfo{}
	}
	defer c.leave(a)
	return infoFromAnnotations(a.Anns).merge(c.TypeInfo(a.Type))
}

func (c *Classifier) QualifiesTypeAlias(a *arkast.TypeAlias) bool {
	info := c.TypeAliasInfo(a)
	c.confirm(a, a.Type, info)
	return info.Qualifies()
}

// FunctionReturnInfo classifies fn's declared return type and records it
// when capable.
func (c *Classifier) FunctionReturnInfo(fn *arkast.Function) MemoableInfo {
	if fn == nil || fn.ReturnType == nil {
		return MemoableInfo{}
	}
	info := c.TypeInfo(fn.ReturnType)
	if info.Capable(false) && !info.IsWithinTypeParams {
		c.cache.Collect(fn.ReturnType, info.Metadata())
	}
	return info
}

// =============================================================================
// Declarations
// =============================================================================

func (c *Classifier) ParameterInfo(p *arkast.Parameter) MemoableInfo {
	if info, ok := c.cached(p); ok {
		return info
	}
	return infoFromAnnotations(p.Anns).merge(c.TypeInfo(p.Type))
}

func (c *Classifier) QualifiesParameter(p *arkast.Parameter) bool {
	info := c.ParameterInfo(p)
	c.confirm(p, p.Type, info)
	return info.Qualifies()
}

func (c *Classifier) ClassPropertyInfo(p *arkast.ClassProperty) MemoableInfo {
	if info, ok := c.cached(p); ok {
		return info
	}
	if !c.enter(p) {
		return MemoableInfo{}
	}
	defer c.leave(p)
	info := infoFromAnnotations(p.Anns).merge(c.TypeInfo(p.Type))
	return info.merge(c.initializerInfo(p.Value))
}

func (c *Classifier) QualifiesClassProperty(p *arkast.ClassProperty) bool {
	info := c.ClassPropertyInfo(p)
	c.confirm(p, p.Type, info)
	return info.Qualifies()
}

// MethodInfo classifies a method. Methods are proper by construction;
// accessors also take the type of the value they carry.
func (c *Classifier) MethodInfo(m *arkast.Method) MemoableInfo {
	if info, ok := c.cached(m); ok {
		return info
	}
	fn := m.Func
	if fn == nil {
		return MemoableInfo{}
	}
	info := infoFromAnnotations(fn.Anns)
	info.HasProperType = true
	switch {
	case fn.Getter:
		info = info.merge(c.TypeInfo(fn.ReturnType))
	case fn.Setter && len(fn.Params) > 0:
		info = info.merge(c.TypeInfo(fn.Params[0].Type))
	}
	return info
}

func (c *Classifier) QualifiesMethod(m *arkast.Method) bool {
	info := c.MethodInfo(m)
	c.confirm(m, nil, info)
	return info.Qualifies()
}

func (c *Classifier) FuncDeclInfo(f *arkast.FuncDecl) MemoableInfo {
	if info, ok := c.cached(f); ok {
		return info
	}
	if f.Func == nil {
		return MemoableInfo{}
	}
	info := infoFromAnnotations(f.Func.Anns)
	info.HasProperType = true
	return info
}

func (c *Classifier) QualifiesFuncDecl(f *arkast.FuncDecl) bool {
	info := c.FuncDeclInfo(f)
	c.confirm(f, nil, info)
	return info.Qualifies()
}

// ArrowInfo classifies an arrow literal. Arrows are proper by construction.
func (c *Classifier) ArrowInfo(a *arkast.Arrow) MemoableInfo {
	if info, ok := c.cached(a); ok {
		return info
	}
	if a.Func == nil {
		return MemoableInfo{}
	}
	info := infoFromAnnotations(a.Func.Anns)
	info.HasProperType = true
	return info
}

func (c *Classifier) QualifiesArrow(a *arkast.Arrow) bool {
	info := c.ArrowInfo(a)
	c.confirm(a, nil, info)
	return info.Qualifies()
}

// PropertyInfo classifies an object-literal property by its value.
func (c *Classifier) PropertyInfo(p *arkast.Property) MemoableInfo {
	if info, ok := c.cached(p); ok {
		return info
	}
	if !c.enter(p) {
		return MemoableInfo{}
	}
	defer c.leave(p)
	return c.initializerInfo(p.Value)
}

func (c *Classifier) QualifiesProperty(p *arkast.Property) bool {
	info := c.PropertyInfo(p)
	c.confirm(p, nil, info)
	return info.Qualifies()
}

// VarDeclaratorInfo classifies a variable from its declared type and the
// declaration behind its initializer.
func (c *Classifier) VarDeclaratorInfo(d *arkast.VarDeclarator) MemoableInfo {
	if info, ok := c.cached(d); ok {
		return info
	}
	if !c.enter(d) {
		return MemoableInfo{}
	}
	defer c.leave(d)
	return c.TypeInfo(d.Type).merge(c.initializerInfo(d.Init))
}

func (c *Classifier) collectDeclarator(d *arkast.VarDeclarator) {
	info := c.VarDeclaratorInfo(d)
	if info.Marked() && info.HasProperType && !c.cache.Has(d) {
		c.cache.Collect(d, info.Metadata())
	}
}

// initializerInfo classifies the value bound to a variable-like node.
func (c *Classifier) initializerInfo(init arkast.Expr) MemoableInfo {
	if init == nil {
		return MemoableInfo{}
	}
	if a := unwrapArrow(init); a != nil {
		return c.ArrowInfo(a)
	}
	decl := c.resolver.Declaration(init)
	if decl == nil {
		return MemoableInfo{}
	}
	return c.DeclarationInfo(decl)
}

// DeclarationInfo classifies any declaring node. Kinds that declare nothing
// callable classify as empty.
func (c *Classifier) DeclarationInfo(decl arkast.Node) MemoableInfo {
	switch x := decl.(type) {
	case *arkast.FuncDecl:
		return c.FuncDeclInfo(x)
	case *arkast.Method:
		return c.MethodInfo(x)
	case *arkast.ClassProperty:
		return c.ClassPropertyInfo(x)
	case *arkast.Parameter:
		return c.ParameterInfo(x)
	case *arkast.VarDeclarator:
		return c.VarDeclaratorInfo(x)
	case *arkast.Property:
		return c.PropertyInfo(x)
	case *arkast.TypeAlias:
		return c.TypeAliasInfo(x)
	case *arkast.Arrow:
		return c.ArrowInfo(x)
	}
	return MemoableInfo{}
}

// =============================================================================
// Calls
// =============================================================================

// CollectCall records call when its callee resolves to a capable
// declaration. A call is never annotated, only cached.
func (c *Classifier) CollectCall(call *arkast.Call) {
	c.collectCall(call, nil)
}

func (c *Classifier) collectCall(call *arkast.Call, params *ParamMap) bool {
	if c.cache.Has(call) {
		return true
	}
	decl := c.resolver.Declaration(call.Callee)
	if decl == nil {
		return false
	}

	var info MemoableInfo
	if cached, ok := c.cached(decl); ok {
		info = cached
	} else if pinfo, ok := params.Lookup(decl.ID()); ok {
		if !pinfo.Capable(true) {
			return false
		}
		info = pinfo
	} else {
		info = c.DeclarationInfo(decl)
		if !info.Capable(false) {
			return false
		}
		if info.Marked() {
			c.cache.Collect(decl, functionFlags(functionOf(decl), info.Metadata()))
		}
	}

	md := functionFlags(functionOf(decl), info.Metadata())
	md[MetaCallName] = arkast.Name(call.Callee)
	c.cache.Collect(call, md)
	c.log.Debug("memo: call",
		zap.String("callee", arkast.Name(call.Callee)),
		zap.Stringer("pos", call.Pos()))
	return true
}

// promoteArguments marks arrow literals passed where the callee declares a
// capable parameter. The body walk then analyzes each as its own scope.
func (c *Classifier) promoteArguments(call *arkast.Call) {
	if len(call.Args) == 0 {
		return
	}
	decl := c.resolver.Declaration(call.Callee)
	if decl == nil {
		return
	}
	params := paramsOf(decl)
	for i, arg := range call.Args {
		if i >= len(params) {
			break
		}
		a := unwrapArrow(arg)
		if a == nil {
			continue
		}
		if info := c.ParameterInfo(params[i]); info.Capable(false) {
			c.markArrow(a, info)
		}
	}
}
