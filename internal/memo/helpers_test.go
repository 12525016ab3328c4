package memo

import (
	"testing"

	"github.com/jward/memocap/internal/arkast"
)

func newTestTree() *arkast.Tree {
	return arkast.NewTree("pages/index.ets", "pages/index")
}

// runPass binds tree and runs a pass over it with a fresh cache.
func runPass(t *testing.T, tree *arkast.Tree, opts ...Option) (*Classifier, *Result) {
	t.Helper()
	tree.Bind()
	p := NewPass(tree, opts...)
	return p.Classifier(), p.Run()
}

func memoFunc(tree *arkast.Tree, name string, params []*arkast.Parameter, body ...arkast.Stmt) *arkast.FuncDecl {
	return tree.FuncDecl(name, tree.Func(params, nil, tree.Block(body...), "memo"))
}

func plainArrow(tree *arkast.Tree, body ...arkast.Stmt) *arkast.Arrow {
	return tree.Arrow(tree.Func(nil, nil, tree.Block(body...)))
}

func callStmt(tree *arkast.Tree, name string, args ...arkast.Expr) *arkast.ExprStmt {
	return tree.ExprStmt(tree.Call(tree.Ident(name), args...))
}

func hasMemo(a arkast.Annotatable) bool {
	return arkast.HasAnnotation(a, string(MarkerMemo))
}
