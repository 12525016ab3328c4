package frontend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/memocap/internal/arkast"
)

func parse(t *testing.T, src string) *arkast.Tree {
	t.Helper()
	tree, err := Parse(context.Background(), []byte(src), "pages/index.ets")
	require.NoError(t, err)
	return tree
}

func find[T arkast.Node](tree *arkast.Tree, match func(T) bool) T {
	var out T
	found := false
	arkast.Inspect(tree.File, func(n arkast.Node) bool {
		if found {
			return false
		}
		if x, ok := n.(T); ok && match(x) {
			out, found = x, true
			return false
		}
		return true
	})
	return out
}

func byName[T arkast.Node](name string) func(T) bool {
	return func(n T) bool { return arkast.Name(n) == name }
}

// =============================================================================
// Languages
// =============================================================================

func TestLanguageForFile(t *testing.T) {
	t.Parallel()
	for _, path := range []string{"a.ets", "b.ts", "C.ETS", "d.mts"} {
		lang, ok := LanguageForFile(path)
		assert.True(t, ok, path)
		assert.Equal(t, "typescript", lang)
	}
	_, ok := LanguageForFile("main.go")
	assert.False(t, ok)
	assert.Equal(t, []string{".cts", ".ets", ".mts", ".ts"}, Extensions())
}

// =============================================================================
// Pre-pass
// =============================================================================

func TestPrepare_RewritesMarkersIntoComments(t *testing.T) {
	t.Parallel()
	p := prepare([]byte("const a = @memo () => {}\nfoo(@memo_skip x)"), DefaultMarkers())

	assert.Equal(t, "const a = /*@memo*/ () => {}\nfoo(/*@memo_skip*/ x)", string(p.src))
}

func TestPrepare_IgnoresUnknownAndQualifiedNames(t *testing.T) {
	t.Parallel()
	src := "@State count = 0; a.@memo; x@memo; @memoize f"
	p := prepare([]byte(src), DefaultMarkers())

	assert.Equal(t, src, string(p.src))
}

func TestPrepare_MapsColumnsBack(t *testing.T) {
	t.Parallel()
	p := prepare([]byte("f(@memo a, @memo b)"), []string{"memo"})
	// f(/*@memo*/ a, /*@memo*/ b)
	// 0123456789012345678901234567
	require.Equal(t, "f(/*@memo*/ a, /*@memo*/ b)", string(p.src))

	assert.Equal(t, 2, p.column(0, 2))
	assert.Equal(t, 8, p.column(0, 12), "a")
	assert.Equal(t, 17, p.column(0, 25), "b")
	assert.Equal(t, 3, p.column(1, 3), "other lines are untouched")
}

func TestPrepare_StructParsesAsClass(t *testing.T) {
	t.Parallel()
	p := prepare([]byte("@Component\nstruct Index {}"), DefaultMarkers())

	assert.Equal(t, "@Component\nclass  Index {}", string(p.src))
	assert.True(t, p.structs["Index"])
}

func TestMarkerName(t *testing.T) {
	t.Parallel()
	name, ok := markerName("/*@memo_intrinsic*/")
	assert.True(t, ok)
	assert.Equal(t, "memo_intrinsic", name)

	_, ok = markerName("/* memo */")
	assert.False(t, ok)
}

// =============================================================================
// Lowering
// =============================================================================

func TestParse_FunctionAndParameterMarkers(t *testing.T) {
	t.Parallel()
	tree := parse(t, `
@memo function render(@memo content: () => void, label: string) {
  content()
}
`)
	fn := find(tree, byName[*arkast.FuncDecl]("render"))
	require.NotNil(t, fn)
	assert.True(t, arkast.HasAnnotation(fn.Func, "memo"))
	require.Len(t, fn.Func.Params, 2)
	assert.True(t, arkast.HasAnnotation(fn.Func.Params[0], "memo"))
	assert.False(t, arkast.HasAnnotation(fn.Func.Params[1], "memo"))
	assert.IsType(t, &arkast.FunctionType{}, fn.Func.Params[0].Type)

	call := find(tree, func(*arkast.Call) bool { return true })
	require.NotNil(t, call)
	assert.Same(t, fn.Func.Params[0], tree.Declaration(call.Callee))
	assert.Equal(t, arkast.Pos{Line: 2, Col: 2}, call.Pos())
}

func TestParse_ArrowMarker(t *testing.T) {
	t.Parallel()
	tree := parse(t, `const wrap = @memo () => {}
const plain = () => 1
`)
	wrap := find(tree, byName[*arkast.VarDeclarator]("wrap"))
	require.NotNil(t, wrap)
	a, ok := wrap.Init.(*arkast.Arrow)
	require.True(t, ok)
	assert.True(t, arkast.HasAnnotation(a.Func, "memo"))
	assert.NotNil(t, a.Func.Body)

	plain := find(tree, byName[*arkast.VarDeclarator]("plain"))
	require.NotNil(t, plain)
	pa, ok := plain.Init.(*arkast.Arrow)
	require.True(t, ok)
	assert.Empty(t, pa.Func.Anns)
	assert.NotNil(t, pa.Func.ExprBody)
}

func TestParse_TypeAliasFunctionType(t *testing.T) {
	t.Parallel()
	tree := parse(t, `type Content = @memo () => void
function show(c: Content) { c() }
`)
	alias := find(tree, byName[*arkast.TypeAlias]("Content"))
	require.NotNil(t, alias)
	ft, ok := alias.Type.(*arkast.FunctionType)
	require.True(t, ok)
	assert.True(t, arkast.HasAnnotation(ft, "memo"))

	show := find(tree, byName[*arkast.FuncDecl]("show"))
	require.NotNil(t, show)
	require.Len(t, show.Func.Params, 1)
	assert.Same(t, alias, tree.Declaration(show.Func.Params[0].Type))
}

func TestParse_UnionPushesMarkerToFunctionMember(t *testing.T) {
	t.Parallel()
	tree := parse(t, `function show(content?: @memo (() => void) | undefined) {}`)
	show := find(tree, byName[*arkast.FuncDecl]("show"))
	require.NotNil(t, show)
	require.Len(t, show.Func.Params, 1)
	p := show.Func.Params[0]
	assert.True(t, p.Optional)

	u, ok := p.Type.(*arkast.UnionType)
	require.True(t, ok)
	require.Len(t, u.Types, 2)
	ft, ok := u.Types[0].(*arkast.FunctionType)
	require.True(t, ok)
	assert.True(t, arkast.HasAnnotation(ft, "memo"))
}

func TestParse_StructMembers(t *testing.T) {
	t.Parallel()
	tree := parse(t, `@Component
struct Card {
  @BuilderParam content: () => void
  get label(): string { return "x" }
  build() {
    this.content()
  }
}
`)
	card := find(tree, byName[*arkast.ClassDecl]("Card"))
	require.NotNil(t, card)
	assert.Equal(t, arkast.FlavorStruct, card.Flavor)
	require.Len(t, card.Members, 3)

	prop, ok := card.Members[0].(*arkast.ClassProperty)
	require.True(t, ok)
	assert.Equal(t, "content", prop.Name.Name)
	assert.True(t, arkast.HasAnnotation(prop, "BuilderParam"))

	getter, ok := card.Members[1].(*arkast.Method)
	require.True(t, ok)
	assert.True(t, getter.Func.Getter)

	call := find(tree, func(*arkast.Call) bool { return true })
	require.NotNil(t, call)
	assert.Same(t, prop, tree.Declaration(call.Callee))
}

func TestParse_InterfaceMembers(t *testing.T) {
	t.Parallel()
	tree := parse(t, `interface Options {
  content: () => void
  render(): void
}`)
	opts := find(tree, byName[*arkast.ClassDecl]("Options"))
	require.NotNil(t, opts)
	assert.Equal(t, arkast.FlavorInterface, opts.Flavor)
	require.Len(t, opts.Members, 2)
	m, ok := opts.Members[1].(*arkast.Method)
	require.True(t, ok)
	assert.Nil(t, m.Func.Body)
}

func TestParse_ExportedDeclaration(t *testing.T) {
	t.Parallel()
	tree := parse(t, `export @memo function exported() {}`)
	fn := find(tree, byName[*arkast.FuncDecl]("exported"))
	require.NotNil(t, fn)
	assert.True(t, arkast.HasAnnotation(fn.Func, "memo"))
}

func TestParse_ReceiverParameter(t *testing.T) {
	t.Parallel()
	tree := parse(t, `function ext(this: Page, n: number) {}`)
	fn := find(tree, byName[*arkast.FuncDecl]("ext"))
	require.NotNil(t, fn)
	assert.True(t, fn.Func.HasReceiver)
	require.Len(t, fn.Func.Params, 1)
	assert.Equal(t, "n", fn.Func.Params[0].Name.Name)
}

func TestParse_ExpressionsLowered(t *testing.T) {
	t.Parallel()
	tree := parse(t, `const h = (cond ? a : (b as F))!
const o = { render, build: () => {} }
`)
	h := find(tree, byName[*arkast.VarDeclarator]("h"))
	require.NotNil(t, h)
	nn, ok := h.Init.(*arkast.NonNull)
	require.True(t, ok)
	c, ok := nn.X.(*arkast.Conditional)
	require.True(t, ok)
	_, ok = c.Else.(*arkast.As)
	assert.True(t, ok)

	o := find(tree, byName[*arkast.VarDeclarator]("o"))
	require.NotNil(t, o)
	obj, ok := o.Init.(*arkast.Object)
	require.True(t, ok)
	require.Len(t, obj.Props, 2)
	assert.Equal(t, "render", obj.Props[0].Key.Name)
	_, ok = obj.Props[1].Value.(*arkast.Arrow)
	assert.True(t, ok)
}

func TestParse_UnsupportedSyntaxKeepsCallsVisible(t *testing.T) {
	t.Parallel()
	tree := parse(t, `function f() {
  if (ready) {
    for (const x of xs) { render(x) }
  }
}`)
	call := find(tree, func(c *arkast.Call) bool { return arkast.Name(c) == "render" })
	require.NotNil(t, call)
}

func TestParse_CustomMarkersOnly(t *testing.T) {
	t.Parallel()
	tree, err := Parse(context.Background(), []byte("const a = () => {}\n"), "a.ts",
		WithMarkers("memo"), WithModule("custom/a"))
	require.NoError(t, err)
	assert.Equal(t, "custom/a", tree.Module())
	assert.Equal(t, "a.ts", tree.Path())
}

func TestParse_DefaultModuleIsPathWithoutExtension(t *testing.T) {
	t.Parallel()
	tree := parse(t, "const a = 1\n")
	assert.Equal(t, "pages/index", tree.Module())
}

func TestParse_SyntaxErrorReturnsPartialTree(t *testing.T) {
	t.Parallel()
	tree, err := Parse(context.Background(), []byte("@memo function ok() {}\nfunction broken( {\n"), "bad.ets")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyntax)
	require.NotNil(t, tree)
	assert.NotNil(t, find(tree, byName[*arkast.FuncDecl]("ok")))
}

func TestParse_UnsupportedExtension(t *testing.T) {
	t.Parallel()
	_, err := Parse(context.Background(), []byte("x"), "main.go")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSyntax)
}
