package arkast

import "fmt"

// Tree is the arena for one compilation unit. It allocates handles, indexes
// nodes by handle, and holds the binder's declaration links.
type Tree struct {
	path   string
	module string
	next   NodeID
	nodes  map[NodeID]Node
	decls  map[NodeID]Node

	File *SourceFile
}

// NewTree creates an empty arena for the unit at path, declared in module.
func NewTree(path, module string) *Tree {
	return &Tree{
		path:   path,
		module: module,
		nodes:  make(map[NodeID]Node),
		decls:  make(map[NodeID]Node),
	}
}

// Path returns the unit's source path.
func (t *Tree) Path() string { return t.path }

// Module returns the declaring module of every node in the unit.
func (t *Tree) Module() string { return t.module }

// Len returns the number of allocated nodes, clones included.
func (t *Tree) Len() int { return len(t.nodes) }

// Lookup returns the node with the given handle.
func (t *Tree) Lookup(id NodeID) (Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

func register[T interface {
	Node
	setID(NodeID)
}](t *Tree, n T) T {
	t.next++
	n.setID(t.next)
	t.nodes[t.next] = n
	return n
}

// Clone returns a shallow copy of n under a fresh handle. Child pointers are
// shared; slices owned by n are copied. Declaration links follow the clone,
// but nothing else keyed by n's handle does.
func (t *Tree) Clone(n Node) Node {
	var c Node
	switch x := n.(type) {
	case *SourceFile:
		v := *x
		v.Stmts = append([]Stmt(nil), x.Stmts...)
		c = register(t, &v)
	case *Block:
		v := *x
		v.Stmts = append([]Stmt(nil), x.Stmts...)
		c = register(t, &v)
	case *ExprStmt:
		v := *x
		c = register(t, &v)
	case *Return:
		v := *x
		c = register(t, &v)
	case *VarDecl:
		v := *x
		v.Decls = append([]*VarDeclarator(nil), x.Decls...)
		c = register(t, &v)
	case *VarDeclarator:
		v := *x
		c = register(t, &v)
	case *FuncDecl:
		v := *x
		c = register(t, &v)
	case *ClassDecl:
		v := *x
		v.Members = append([]Node(nil), x.Members...)
		c = register(t, &v)
	case *TypeAlias:
		v := *x
		v.Anns = copyAnnotations(x.Anns)
		c = register(t, &v)
	case *OtherStmt:
		v := *x
		v.Children = append([]Node(nil), x.Children...)
		c = register(t, &v)
	case *Function:
		v := *x
		v.Params = append([]*Parameter(nil), x.Params...)
		v.Anns = copyAnnotations(x.Anns)
		c = register(t, &v)
	case *Parameter:
		v := *x
		v.Anns = copyAnnotations(x.Anns)
		c = register(t, &v)
	case *Method:
		v := *x
		c = register(t, &v)
	case *ClassProperty:
		v := *x
		v.Anns = copyAnnotations(x.Anns)
		c = register(t, &v)
	case *Arrow:
		v := *x
		c = register(t, &v)
	case *Call:
		v := *x
		v.Args = append([]Expr(nil), x.Args...)
		c = register(t, &v)
	case *Member:
		v := *x
		c = register(t, &v)
	case *Identifier:
		v := *x
		c = register(t, &v)
	case *This:
		v := *x
		c = register(t, &v)
	case *As:
		v := *x
		c = register(t, &v)
	case *NonNull:
		v := *x
		c = register(t, &v)
	case *Conditional:
		v := *x
		c = register(t, &v)
	case *Object:
		v := *x
		v.Props = append([]*Property(nil), x.Props...)
		c = register(t, &v)
	case *Property:
		v := *x
		c = register(t, &v)
	case *Literal:
		v := *x
		c = register(t, &v)
	case *OtherExpr:
		v := *x
		v.Children = append([]Node(nil), x.Children...)
		c = register(t, &v)
	case *FunctionType:
		v := *x
		v.Params = append([]*Parameter(nil), x.Params...)
		v.Anns = copyAnnotations(x.Anns)
		c = register(t, &v)
	case *UnionType:
		v := *x
		v.Types = append([]TypeNode(nil), x.Types...)
		c = register(t, &v)
	case *TypeRef:
		v := *x
		v.Args = append([]TypeNode(nil), x.Args...)
		c = register(t, &v)
	case *OtherType:
		v := *x
		v.Children = append([]Node(nil), x.Children...)
		c = register(t, &v)
	case *Annotation:
		v := *x
		c = register(t, &v)
	default:
		panic(fmt.Sprintf("arkast: clone of unknown node %T", n))
	}
	if d, ok := t.decls[n.ID()]; ok {
		t.decls[c.ID()] = d
	}
	return c
}

// --- Builders ---
//
// Builders allocate a handle for every node they create. Annotation names
// passed as trailing strings become Annotation nodes.

func (t *Tree) annotations(names []string) []*Annotation {
	if len(names) == 0 {
		return nil
	}
	out := make([]*Annotation, len(names))
	for i, name := range names {
		out[i] = t.Annotation(name)
	}
	return out
}

func (t *Tree) Annotation(name string) *Annotation {
	return register(t, &Annotation{Name: name})
}

// SetFile installs the unit's root.
func (t *Tree) SetFile(stmts ...Stmt) *SourceFile {
	t.File = register(t, &SourceFile{Path: t.path, Stmts: stmts})
	return t.File
}

func (t *Tree) Block(stmts ...Stmt) *Block {
	return register(t, &Block{Stmts: stmts})
}

func (t *Tree) ExprStmt(x Expr) *ExprStmt {
	return register(t, &ExprStmt{X: x})
}

func (t *Tree) Return(arg Expr) *Return {
	return register(t, &Return{Arg: arg})
}

func (t *Tree) Var(flavor string, decls ...*VarDeclarator) *VarDecl {
	return register(t, &VarDecl{Flavor: flavor, Decls: decls})
}

func (t *Tree) Declarator(name string, typ TypeNode, init Expr) *VarDeclarator {
	return register(t, &VarDeclarator{Name: t.Ident(name), Type: typ, Init: init})
}

// Const builds `const name = init`.
func (t *Tree) Const(name string, init Expr) *VarDecl {
	return t.Var("const", t.Declarator(name, nil, init))
}

func (t *Tree) FuncDecl(name string, fn *Function) *FuncDecl {
	return register(t, &FuncDecl{Name: t.Ident(name), Func: fn})
}

func (t *Tree) Class(name string, flavor ClassFlavor, members ...Node) *ClassDecl {
	return register(t, &ClassDecl{Name: t.Ident(name), Flavor: flavor, Members: members})
}

func (t *Tree) TypeAlias(name string, typ TypeNode, anns ...string) *TypeAlias {
	return register(t, &TypeAlias{Name: t.Ident(name), Type: typ, Anns: t.annotations(anns)})
}

func (t *Tree) OtherStmt(label string, children ...Node) *OtherStmt {
	return register(t, &OtherStmt{Label: label, Children: children})
}

// Func builds a script function with a block body (body may be nil).
func (t *Tree) Func(params []*Parameter, ret TypeNode, body *Block, anns ...string) *Function {
	return register(t, &Function{Params: params, ReturnType: ret, Body: body, Anns: t.annotations(anns)})
}

// ExprFunc builds a script function with an expression body.
func (t *Tree) ExprFunc(params []*Parameter, ret TypeNode, body Expr, anns ...string) *Function {
	return register(t, &Function{Params: params, ReturnType: ret, ExprBody: body, Anns: t.annotations(anns)})
}

func (t *Tree) Param(name string, typ TypeNode, anns ...string) *Parameter {
	return register(t, &Parameter{Name: t.Ident(name), Type: typ, Anns: t.annotations(anns)})
}

func (t *Tree) Method(name string, fn *Function) *Method {
	return register(t, &Method{Name: t.Ident(name), Func: fn})
}

func (t *Tree) ClassProp(name string, typ TypeNode, value Expr, anns ...string) *ClassProperty {
	return register(t, &ClassProperty{Name: t.Ident(name), Type: typ, Value: value, Anns: t.annotations(anns)})
}

func (t *Tree) Arrow(fn *Function) *Arrow {
	return register(t, &Arrow{Func: fn})
}

func (t *Tree) Call(callee Expr, args ...Expr) *Call {
	return register(t, &Call{Callee: callee, Args: args})
}

func (t *Tree) Member(obj Expr, prop string) *Member {
	return register(t, &Member{Object: obj, Property: t.Ident(prop)})
}

func (t *Tree) Ident(name string) *Identifier {
	return register(t, &Identifier{Name: name})
}

func (t *Tree) This() *This {
	return register(t, &This{})
}

func (t *Tree) As(x Expr, typ TypeNode) *As {
	return register(t, &As{X: x, Type: typ})
}

func (t *Tree) NonNull(x Expr) *NonNull {
	return register(t, &NonNull{X: x})
}

func (t *Tree) Cond(test, then, els Expr) *Conditional {
	return register(t, &Conditional{Test: test, Then: then, Else: els})
}

func (t *Tree) Object(props ...*Property) *Object {
	return register(t, &Object{Props: props})
}

func (t *Tree) Prop(key string, value Expr) *Property {
	return register(t, &Property{Key: t.Ident(key), Value: value})
}

func (t *Tree) Lit(raw string) *Literal {
	return register(t, &Literal{Raw: raw})
}

func (t *Tree) OtherExpr(label string, children ...Node) *OtherExpr {
	return register(t, &OtherExpr{Label: label, Children: children})
}

func (t *Tree) FuncType(params []*Parameter, ret TypeNode, anns ...string) *FunctionType {
	return register(t, &FunctionType{Params: params, ReturnType: ret, Anns: t.annotations(anns)})
}

func (t *Tree) Union(types ...TypeNode) *UnionType {
	return register(t, &UnionType{Types: types})
}

func (t *Tree) TypeRef(name string, args ...TypeNode) *TypeRef {
	return register(t, &TypeRef{Name: name, Args: args})
}

func (t *Tree) OtherType(text string, children ...Node) *OtherType {
	return register(t, &OtherType{Text: text, Children: children})
}
