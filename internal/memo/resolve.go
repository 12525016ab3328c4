package memo

import "github.com/jward/memocap/internal/arkast"

// Resolver follows callee expressions through alias chains such as
// `const g = f` and `const g = this.f` to the originating declaration.
type Resolver struct {
	tree *arkast.Tree
}

// NewResolver returns a resolver over tree's declaration links.
func NewResolver(tree *arkast.Tree) *Resolver {
	return &Resolver{tree: tree}
}

// Declaration returns the ultimate declaration behind expr, or nil when it
// cannot be resolved. A nil result means "unknown": callers must not
// classify.
func (r *Resolver) Declaration(expr arkast.Node) arkast.Node {
	return r.resolve(expr, make(map[arkast.NodeID]bool))
}

func (r *Resolver) resolve(expr arkast.Node, seen map[arkast.NodeID]bool) arkast.Node {
	target := unwrapCallee(expr)
	if target == nil {
		return nil
	}
	decl := r.tree.Declaration(target)
	d, ok := decl.(*arkast.VarDeclarator)
	if !ok || !isAliasInit(d.Init) {
		return decl
	}
	if seen[d.ID()] {
		return d
	}
	seen[d.ID()] = true
	if next := r.resolve(d.Init, seen); next != nil {
		return next
	}
	return d
}

// unwrapCallee strips assertions and member access down to the node whose
// declaration names the callee.
func unwrapCallee(n arkast.Node) arkast.Node {
	for {
		switch x := n.(type) {
		case *arkast.Member:
			if x.Property == nil {
				return nil
			}
			return x
		case *arkast.As:
			n = x.X
		case *arkast.NonNull:
			n = x.X
		case *arkast.Identifier:
			return x
		default:
			return nil
		}
	}
}

func isAliasInit(e arkast.Expr) bool {
	switch x := e.(type) {
	case *arkast.Identifier:
		return true
	case *arkast.Member:
		_, ok := x.Object.(*arkast.This)
		return ok
	case *arkast.As:
		return isAliasInit(x.X)
	case *arkast.NonNull:
		return isAliasInit(x.X)
	}
	return false
}

// unwrapArrow returns the arrow inside e when e is an arrow literal, possibly
// wrapped in assertions.
func unwrapArrow(e arkast.Expr) *arkast.Arrow {
	for {
		switch x := e.(type) {
		case *arkast.Arrow:
			return x
		case *arkast.As:
			e = x.X
		case *arkast.NonNull:
			e = x.X
		default:
			return nil
		}
	}
}

// functionOf returns the script function a declaration stands for.
func functionOf(decl arkast.Node) *arkast.Function {
	switch x := decl.(type) {
	case *arkast.FuncDecl:
		return x.Func
	case *arkast.Method:
		return x.Func
	case *arkast.Arrow:
		return x.Func
	case *arkast.VarDeclarator:
		if a := unwrapArrow(x.Init); a != nil {
			return a.Func
		}
	case *arkast.ClassProperty:
		if a := unwrapArrow(x.Value); a != nil {
			return a.Func
		}
	case *arkast.Property:
		if a := unwrapArrow(x.Value); a != nil {
			return a.Func
		}
	}
	return nil
}

// paramsOf returns the parameter list of whatever a declaration calls into:
// its own function, or the function type it is declared with.
func paramsOf(decl arkast.Node) []*arkast.Parameter {
	if fn := functionOf(decl); fn != nil {
		return fn.Params
	}
	var typ arkast.TypeNode
	switch x := decl.(type) {
	case *arkast.Parameter:
		typ = x.Type
	case *arkast.ClassProperty:
		typ = x.Type
	case *arkast.VarDeclarator:
		typ = x.Type
	}
	if ft := functionTypeOf(typ); ft != nil {
		return ft.Params
	}
	return nil
}

func functionTypeOf(t arkast.TypeNode) *arkast.FunctionType {
	switch x := t.(type) {
	case *arkast.FunctionType:
		return x
	case *arkast.UnionType:
		for _, m := range x.Types {
			if ft, ok := m.(*arkast.FunctionType); ok {
				return ft
			}
		}
	}
	return nil
}
