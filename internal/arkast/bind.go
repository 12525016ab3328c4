package arkast

// Bind resolves identifier, this-member and type references in t.File to the
// nodes that declare them. Function declarations, classes, type aliases and
// variables are hoisted per block. Types live in their own namespace.
// Bind may be called again after the tree changes; links are rebuilt.
func (t *Tree) Bind() {
	t.decls = make(map[NodeID]Node)
	if t.File == nil {
		return
	}
	b := &binder{t: t}
	s := newScope(nil)
	b.hoist(s, t.File.Stmts)
	for _, st := range t.File.Stmts {
		b.stmt(s, st)
	}
}

// Declaration returns the node that declares what n refers to: a FuncDecl,
// VarDeclarator, Parameter, Method, ClassProperty, ClassDecl or TypeAlias.
// It returns nil when n is unresolved (for example an import).
func (t *Tree) Declaration(n Node) Node {
	if n == nil {
		return nil
	}
	if m, ok := n.(*Member); ok {
		if m.Property != nil {
			if d, ok := t.decls[m.Property.ID()]; ok {
				return d
			}
		}
	}
	return t.decls[n.ID()]
}

// Link records decl as the declaration of ref. Frontends that resolve
// references themselves use it instead of Bind.
func (t *Tree) Link(ref, decl Node) {
	t.decls[ref.ID()] = decl
}

type scope struct {
	parent *scope
	values map[string]Node
	types  map[string]Node
	class  *ClassDecl
}

func newScope(parent *scope) *scope {
	s := &scope{
		parent: parent,
		values: make(map[string]Node),
		types:  make(map[string]Node),
	}
	if parent != nil {
		s.class = parent.class
	}
	return s
}

func (s *scope) value(name string) Node {
	for cur := s; cur != nil; cur = cur.parent {
		if d, ok := cur.values[name]; ok {
			return d
		}
	}
	return nil
}

func (s *scope) typ(name string) Node {
	for cur := s; cur != nil; cur = cur.parent {
		if d, ok := cur.types[name]; ok {
			return d
		}
	}
	return nil
}

type binder struct {
	t *Tree
}

func (b *binder) hoist(s *scope, stmts []Stmt) {
	for _, st := range stmts {
		switch x := st.(type) {
		case *FuncDecl:
			if x.Name != nil {
				s.values[x.Name.Name] = x
			}
		case *ClassDecl:
			if x.Name != nil {
				s.values[x.Name.Name] = x
				s.types[x.Name.Name] = x
			}
		case *TypeAlias:
			if x.Name != nil {
				s.types[x.Name.Name] = x
			}
		case *VarDecl:
			for _, d := range x.Decls {
				if d.Name != nil {
					s.values[d.Name.Name] = d
				}
			}
		}
	}
}

func (b *binder) stmt(s *scope, st Stmt) {
	switch x := st.(type) {
	case *Block:
		inner := newScope(s)
		b.hoist(inner, x.Stmts)
		for _, c := range x.Stmts {
			b.stmt(inner, c)
		}
	case *ExprStmt:
		b.expr(s, x.X)
	case *Return:
		b.expr(s, x.Arg)
	case *VarDecl:
		for _, d := range x.Decls {
			b.typ(s, d.Type)
			b.expr(s, d.Init)
		}
	case *FuncDecl:
		b.function(s, x.Func)
	case *ClassDecl:
		b.class(s, x)
	case *TypeAlias:
		b.typ(s, x.Type)
	case *OtherStmt:
		b.any(s, x.Children)
	}
}

func (b *binder) class(s *scope, c *ClassDecl) {
	cs := newScope(s)
	cs.class = c
	for _, m := range c.Members {
		switch x := m.(type) {
		case *Method:
			b.function(cs, x.Func)
		case *ClassProperty:
			b.typ(cs, x.Type)
			b.expr(cs, x.Value)
		}
	}
}

func (b *binder) function(s *scope, fn *Function) {
	if fn == nil {
		return
	}
	fs := newScope(s)
	for _, p := range fn.Params {
		if p.Name != nil {
			fs.values[p.Name.Name] = p
		}
		b.typ(s, p.Type)
	}
	for _, p := range fn.Params {
		b.expr(fs, p.Default)
	}
	b.typ(s, fn.ReturnType)
	if fn.Body != nil {
		b.hoist(fs, fn.Body.Stmts)
		for _, st := range fn.Body.Stmts {
			b.stmt(fs, st)
		}
	}
	b.expr(fs, fn.ExprBody)
}

func (b *binder) expr(s *scope, e Expr) {
	switch x := e.(type) {
	case nil:
	case *Identifier:
		if d := s.value(x.Name); d != nil {
			b.t.decls[x.ID()] = d
		}
	case *Member:
		b.expr(s, x.Object)
		if _, ok := x.Object.(*This); ok && s.class != nil && x.Property != nil {
			if d := classMember(s.class, x.Property.Name); d != nil {
				b.t.decls[x.Property.ID()] = d
				b.t.decls[x.ID()] = d
			}
		}
	case *Call:
		b.expr(s, x.Callee)
		for _, a := range x.Args {
			b.expr(s, a)
		}
	case *Arrow:
		b.function(s, x.Func)
	case *As:
		b.expr(s, x.X)
		b.typ(s, x.Type)
	case *NonNull:
		b.expr(s, x.X)
	case *Conditional:
		b.expr(s, x.Test)
		b.expr(s, x.Then)
		b.expr(s, x.Else)
	case *Object:
		for _, p := range x.Props {
			b.expr(s, p.Value)
		}
	case *OtherExpr:
		b.any(s, x.Children)
	}
}

func (b *binder) typ(s *scope, t TypeNode) {
	switch x := t.(type) {
	case nil:
	case *TypeRef:
		if d := s.typ(x.Name); d != nil {
			b.t.decls[x.ID()] = d
		}
		for _, a := range x.Args {
			b.typ(s, a)
		}
	case *FunctionType:
		for _, p := range x.Params {
			b.typ(s, p.Type)
		}
		b.typ(s, x.ReturnType)
	case *UnionType:
		for _, m := range x.Types {
			b.typ(s, m)
		}
	case *OtherType:
		b.any(s, x.Children)
	}
}

// any binds children of opaque nodes, whatever position they occupy.
func (b *binder) any(s *scope, nodes []Node) {
	for _, n := range nodes {
		switch x := n.(type) {
		case Stmt:
			b.stmt(s, x)
		case Expr:
			b.expr(s, x)
		case TypeNode:
			b.typ(s, x)
		case *VarDeclarator:
			b.typ(s, x.Type)
			b.expr(s, x.Init)
		case *Property:
			b.expr(s, x.Value)
		}
	}
}

func classMember(c *ClassDecl, name string) Node {
	for _, m := range c.Members {
		if Name(m) == name {
			return m
		}
	}
	return nil
}
