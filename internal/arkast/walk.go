package arkast

import "fmt"

// Children returns the direct children of n in source order. Nil fields are
// skipped.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) { out = append(out, c) }

	switch x := n.(type) {
	case *SourceFile:
		for _, s := range x.Stmts {
			add(s)
		}
	case *Block:
		for _, s := range x.Stmts {
			add(s)
		}
	case *ExprStmt:
		if x.X != nil {
			add(x.X)
		}
	case *Return:
		if x.Arg != nil {
			add(x.Arg)
		}
	case *VarDecl:
		for _, d := range x.Decls {
			add(d)
		}
	case *VarDeclarator:
		if x.Name != nil {
			add(x.Name)
		}
		if x.Type != nil {
			add(x.Type)
		}
		if x.Init != nil {
			add(x.Init)
		}
	case *FuncDecl:
		if x.Name != nil {
			add(x.Name)
		}
		if x.Func != nil {
			add(x.Func)
		}
	case *ClassDecl:
		if x.Name != nil {
			add(x.Name)
		}
		for _, m := range x.Members {
			add(m)
		}
	case *TypeAlias:
		for _, a := range x.Anns {
			add(a)
		}
		if x.Name != nil {
			add(x.Name)
		}
		if x.Type != nil {
			add(x.Type)
		}
	case *OtherStmt:
		out = append(out, x.Children...)
	case *Function:
		for _, a := range x.Anns {
			add(a)
		}
		for _, p := range x.Params {
			add(p)
		}
		if x.ReturnType != nil {
			add(x.ReturnType)
		}
		if x.Body != nil {
			add(x.Body)
		}
		if x.ExprBody != nil {
			add(x.ExprBody)
		}
	case *Parameter:
		for _, a := range x.Anns {
			add(a)
		}
		if x.Name != nil {
			add(x.Name)
		}
		if x.Type != nil {
			add(x.Type)
		}
		if x.Default != nil {
			add(x.Default)
		}
	case *Method:
		if x.Name != nil {
			add(x.Name)
		}
		if x.Func != nil {
			add(x.Func)
		}
	case *ClassProperty:
		for _, a := range x.Anns {
			add(a)
		}
		if x.Name != nil {
			add(x.Name)
		}
		if x.Type != nil {
			add(x.Type)
		}
		if x.Value != nil {
			add(x.Value)
		}
	case *Arrow:
		if x.Func != nil {
			add(x.Func)
		}
	case *Call:
		if x.Callee != nil {
			add(x.Callee)
		}
		for _, a := range x.Args {
			add(a)
		}
	case *Member:
		if x.Object != nil {
			add(x.Object)
		}
		if x.Property != nil {
			add(x.Property)
		}
	case *Identifier, *This, *Literal, *Annotation:
	case *As:
		if x.X != nil {
			add(x.X)
		}
		if x.Type != nil {
			add(x.Type)
		}
	case *NonNull:
		if x.X != nil {
			add(x.X)
		}
	case *Conditional:
		for _, e := range []Expr{x.Test, x.Then, x.Else} {
			if e != nil {
				add(e)
			}
		}
	case *Object:
		for _, p := range x.Props {
			add(p)
		}
	case *Property:
		if x.Key != nil {
			add(x.Key)
		}
		if x.Value != nil {
			add(x.Value)
		}
	case *OtherExpr:
		out = append(out, x.Children...)
	case *FunctionType:
		for _, a := range x.Anns {
			add(a)
		}
		for _, p := range x.Params {
			add(p)
		}
		if x.ReturnType != nil {
			add(x.ReturnType)
		}
	case *UnionType:
		for _, m := range x.Types {
			add(m)
		}
	case *TypeRef:
		for _, a := range x.Args {
			add(a)
		}
	case *OtherType:
		out = append(out, x.Children...)
	default:
		panic(fmt.Sprintf("arkast: children of unknown node %T", n))
	}
	return out
}

// Inspect walks the subtree rooted at n in pre-order. Returning false from f
// skips the node's children.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// PostOrder calls f on every node of the subtree after its children.
func PostOrder(n Node, f func(Node)) {
	if n == nil {
		return
	}
	for _, c := range Children(n) {
		PostOrder(c, f)
	}
	f(n)
}
