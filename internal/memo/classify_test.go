package memo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/memocap/internal/arkast"
)

// =============================================================================
// Decision rule
// =============================================================================

func TestMemoableInfo_Qualifies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		info MemoableInfo
		want bool
	}{
		{"builder with proper type", MemoableInfo{HasBuilder: true, HasProperType: true}, true},
		{"builder param with proper type", MemoableInfo{HasBuilderParam: true, HasProperType: true}, true},
		{"already memo", MemoableInfo{HasBuilder: true, HasMemo: true, HasProperType: true}, false},
		{"type not confirmed", MemoableInfo{HasBuilder: true}, false},
		{"within type params", MemoableInfo{HasBuilder: true, HasProperType: true, IsWithinTypeParams: true}, false},
		{"no builder", MemoableInfo{HasProperType: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.info.Qualifies())
		})
	}
}

func TestMemoableInfo_Capable(t *testing.T) {
	t.Parallel()
	untyped := MemoableInfo{HasMemo: true}
	assert.False(t, untyped.Capable(false))
	assert.True(t, untyped.Capable(true))

	skipOnly := MemoableInfo{HasMemoSkip: true, HasProperType: true}
	assert.False(t, skipOnly.Capable(true))

	intrinsic := MemoableInfo{HasMemoIntrinsic: true, HasProperType: true}
	assert.True(t, intrinsic.Capable(false))
}

// =============================================================================
// Idempotence
// =============================================================================

func TestClassify_SameNodeTwiceSameDecision(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	fn := tree.FuncDecl("card", tree.Func(nil, nil, tree.Block(), "Builder"))
	tree.SetFile(fn)
	tree.Bind()
	c := NewClassifier(tree)

	assert.True(t, c.QualifiesFuncDecl(fn))
	assert.True(t, c.QualifiesFuncDecl(fn))
	assert.Zero(t, c.Cache().Len())
}

func TestPass_RerunDoesNotDuplicateMarkers(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	fn := tree.FuncDecl("card", tree.Func(nil, nil, tree.Block(), "Builder"))
	tree.SetFile(fn)
	tree.Bind()
	cache := NewCache()

	first := NewPass(tree, WithCache(cache)).Run()
	second := NewPass(tree, WithCache(cache)).Run()

	assert.Equal(t, 1, arkast.CountAnnotation(fn.Func, "memo"))
	assert.Equal(t, first.Decisions, second.Decisions)
}

// =============================================================================
// Type properness
// =============================================================================

func TestClassProperty_BuilderWithoutFunctionTypeNotMutated(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	label := tree.ClassProp("label", tree.TypeRef("string"), nil, "Builder")
	tree.SetFile(tree.Class("Card", arkast.FlavorStruct, label))

	c, res := runPass(t, tree)

	assert.False(t, hasMemo(label))
	assert.False(t, c.Cache().Has(label))
	assert.Empty(t, res.Imports)
}

func TestClassProperty_BuilderParamWithFunctionTypeAnnotated(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	content := tree.ClassProp("content", tree.FuncType(nil, nil), nil, "BuilderParam")
	tree.SetFile(tree.Class("Card", arkast.FlavorStruct, content))

	c, res := runPass(t, tree)

	assert.True(t, hasMemo(content))
	assert.True(t, arkast.HasAnnotation(content, "BuilderParam"))
	assert.True(t, c.Cache().Has(content))
	assert.True(t, c.Cache().Has(content.Type), "confirmed type node is recorded")
	require.Len(t, res.Imports, 1)
	assert.Equal(t, DefaultRuntimeModule, res.Imports[0].Source)
}

func TestParameter_UnionWithFunctionMemberIsProper(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	p := tree.Param("content", tree.Union(tree.FuncType(nil, nil), tree.TypeRef("undefined")), "BuilderParam")
	tree.SetFile(tree.FuncDecl("card", tree.Func([]*arkast.Parameter{p}, nil, tree.Block())))

	c, _ := runPass(t, tree)

	assert.True(t, hasMemo(p))
	assert.True(t, c.Cache().Has(p))
}

func TestTypeInfo_UnionCapableIfAnyMemberCapable(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	u := tree.Union(tree.TypeRef("undefined"), tree.FuncType(nil, nil, "memo"))
	tree.SetFile()
	tree.Bind()

	info := NewClassifier(tree).TypeInfo(u)

	assert.True(t, info.HasMemo)
	assert.True(t, info.Capable(false))
}

func TestParameter_AliasTargetConfirmsType(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	alias := tree.TypeAlias("Content", tree.FuncType(nil, nil))
	p := tree.Param("content", tree.TypeRef("Content"), "BuilderParam")
	tree.SetFile(alias, tree.FuncDecl("card", tree.Func([]*arkast.Parameter{p}, nil, tree.Block())))

	_, _ = runPass(t, tree)

	assert.True(t, hasMemo(p))
}

func TestTypeAlias_MemoMarkerIsTransitive(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	alias := tree.TypeAlias("Content", tree.FuncType(nil, nil), "memo")
	p := tree.Param("content", tree.TypeRef("Content"))
	tree.SetFile(alias, tree.FuncDecl("card", tree.Func([]*arkast.Parameter{p}, nil, tree.Block())))
	tree.Bind()

	info := NewClassifier(tree).ParameterInfo(p)

	assert.True(t, info.HasMemo)
	assert.True(t, info.HasProperType)
}

func TestTypeAlias_CycleContributesNothing(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	a := tree.TypeAlias("A", tree.TypeRef("B"))
	b := tree.TypeAlias("B", tree.TypeRef("A"))
	p := tree.Param("content", tree.TypeRef("A"), "BuilderParam")
	tree.SetFile(a, b, tree.FuncDecl("card", tree.Func([]*arkast.Parameter{p}, nil, tree.Block())))

	c, _ := runPass(t, tree)

	assert.False(t, hasMemo(p))
	assert.False(t, c.Cache().Has(p))
	assert.Equal(t, MemoableInfo{}, c.TypeAliasInfo(a))
}

func TestTypeRef_CapableArgumentIsWithinTypeParams(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	box := tree.TypeAlias("Box", tree.FuncType(nil, nil))
	ref := tree.TypeRef("Box", tree.FuncType(nil, nil, "memo"))
	p := tree.Param("items", ref, "BuilderParam")
	tree.SetFile(box, tree.FuncDecl("list", tree.Func([]*arkast.Parameter{p}, nil, tree.Block())))

	c, _ := runPass(t, tree)

	info := c.TypeInfo(ref)
	assert.True(t, info.IsWithinTypeParams)
	assert.False(t, hasMemo(p), "a capable generic argument blocks the rewrite")

	e, ok := c.Cache().Get(ref)
	require.True(t, ok)
	assert.True(t, e.Metadata.Bool(MetaForbidTypeRewrite))
	assert.True(t, e.Metadata.Bool(MetaIsWithinTypeParams))
}

func TestClassProperty_MarkedWithCapableTypeArgument(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	ref := tree.TypeRef("Array", tree.FuncType(nil, nil, "memo"))
	prop := tree.ClassProp("items", ref, nil, "memo")
	tree.SetFile(tree.Class("A", arkast.FlavorClass, prop))

	c, _ := runPass(t, tree)

	pe, ok := c.Cache().Get(prop)
	require.True(t, ok, "the marked owner is confirmed through its type argument")
	assert.True(t, pe.Metadata.Bool(MetaIsWithinTypeParams))

	te, ok := c.Cache().Get(ref)
	require.True(t, ok)
	assert.True(t, te.Metadata.Bool(MetaForbidTypeRewrite))
}

func TestTypeRef_PlainArgumentRecordsNothing(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	ref := tree.TypeRef("Array", tree.FuncType(nil, nil))
	p := tree.Param("items", ref)
	tree.SetFile(tree.FuncDecl("list", tree.Func([]*arkast.Parameter{p}, nil, tree.Block())))

	c, _ := runPass(t, tree)

	assert.False(t, c.TypeInfo(ref).IsWithinTypeParams)
	assert.False(t, c.Cache().Has(ref))
	assert.False(t, c.Cache().Has(p))
}

func TestClassProperty_ArrowInitializerIsProper(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	value := plainArrow(tree)
	prop := tree.ClassProp("content", nil, value, "BuilderParam")
	tree.SetFile(tree.Class("Card", arkast.FlavorStruct, prop))

	c, _ := runPass(t, tree)

	assert.True(t, hasMemo(prop))
	assert.True(t, hasMemo(value.Func))
	assert.True(t, c.Cache().Has(value))
}

// =============================================================================
// Declarations
// =============================================================================

func TestMethod_AccessorMetadata(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	fn := tree.Func(nil, tree.FuncType(nil, nil), tree.Block(), "memo")
	fn.Getter = true
	getter := tree.Method("content", fn)
	tree.SetFile(tree.Class("Card", arkast.FlavorClass, getter))

	c, _ := runPass(t, tree)

	e, ok := c.Cache().Get(getter)
	require.True(t, ok)
	assert.True(t, e.Metadata.Bool(MetaIsGetter))
}

func TestFuncDecl_BuilderAnnotatedAndPropagated(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	text := memoFunc(tree, "Text", nil)
	inner := tree.Call(tree.Ident("Text"))
	card := tree.FuncDecl("card", tree.Func(nil, nil, tree.Block(tree.ExprStmt(inner)), "Builder"))
	tree.SetFile(text, card)

	c, res := runPass(t, tree)

	assert.True(t, hasMemo(card.Func))
	assert.True(t, c.Cache().Has(card))
	assert.True(t, c.Cache().Has(inner))
	assert.Equal(t, 1, res.Count(arkast.KindCall))
}

func TestObjectProperty_FollowsResolvedValue(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	f := memoFunc(tree, "render", nil)
	prop := tree.Prop("content", tree.Ident("render"))
	tree.SetFile(f, tree.Const("opts", tree.Object(prop)))

	c, _ := runPass(t, tree)

	assert.True(t, c.Cache().Has(prop))
}

func TestObjectProperty_BuilderArrowAnnotated(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	value := tree.Arrow(tree.Func(nil, nil, tree.Block(), "Builder"))
	prop := tree.Prop("content", value)
	tree.SetFile(tree.Const("opts", tree.Object(prop)))

	c, _ := runPass(t, tree)

	assert.True(t, hasMemo(value.Func))
	assert.True(t, c.Cache().Has(value))
}

// =============================================================================
// Calls & aliases
// =============================================================================

func TestCall_AliasOfCapableFunction(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	f := memoFunc(tree, "f", nil)
	call := tree.Call(tree.Ident("g"))
	tree.SetFile(f, tree.Const("g", tree.Ident("f")), tree.ExprStmt(call))

	c, _ := runPass(t, tree)

	e, ok := c.Cache().Get(call)
	require.True(t, ok)
	assert.Equal(t, "g", e.Metadata.String(MetaCallName))
}

func TestCall_AliasOfThisMember(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	render := tree.Method("render", tree.Func(nil, nil, tree.Block(), "memo"))
	call := tree.Call(tree.Ident("h"))
	build := tree.Method("build", tree.Func(nil, nil, tree.Block(
		tree.Const("h", tree.Member(tree.This(), "render")),
		tree.ExprStmt(call)), "memo"))
	tree.SetFile(tree.Class("Page", arkast.FlavorStruct, render, build))

	c, _ := runPass(t, tree)

	assert.True(t, c.Cache().Has(call))
}

func TestCall_DeclaredLaterStillCollected(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	call := tree.Call(tree.Ident("later"))
	later := memoFunc(tree, "later", nil)
	tree.SetFile(tree.ExprStmt(call), later)

	c, _ := runPass(t, tree)

	assert.True(t, c.Cache().Has(call))
	assert.True(t, c.Cache().Has(later))
}

func TestCall_UnresolvedNotCollected(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	call := tree.Call(tree.Ident("external"))
	tree.SetFile(tree.ExprStmt(call))

	c, res := runPass(t, tree)

	assert.False(t, c.Cache().Has(call))
	assert.Empty(t, res.Decisions)
}

func TestCall_HasReceiverMetadata(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	fn := tree.Func(nil, nil, tree.Block(), "memo")
	fn.HasReceiver = true
	ext := tree.FuncDecl("ext", fn)
	call := tree.Call(tree.Ident("ext"))
	tree.SetFile(ext, tree.ExprStmt(call))

	c, _ := runPass(t, tree)

	e, ok := c.Cache().Get(call)
	require.True(t, ok)
	assert.True(t, e.Metadata.Bool(MetaHasReceiver))
}

// =============================================================================
// Exhaustiveness
// =============================================================================

func TestClassify_HandlesEveryKind(t *testing.T) {
	t.Parallel()
	tree := newTestTree()
	nodes := []arkast.Node{
		tree.SetFile(),
		tree.Block(),
		tree.ExprStmt(tree.Lit("1")),
		tree.Return(nil),
		tree.Const("x", nil),
		tree.Declarator("y", nil, nil),
		tree.FuncDecl("f", tree.Func(nil, nil, nil)),
		tree.Class("C", arkast.FlavorClass),
		tree.TypeAlias("T", nil),
		tree.OtherStmt("if"),
		tree.Func(nil, nil, nil),
		tree.Param("p", nil),
		tree.Method("m", tree.Func(nil, nil, nil)),
		tree.ClassProp("cp", nil, nil),
		tree.Arrow(tree.Func(nil, nil, nil)),
		tree.Call(tree.Ident("g")),
		tree.Member(tree.This(), "k"),
		tree.Ident("z"),
		tree.This(),
		tree.As(tree.Ident("z"), nil),
		tree.NonNull(tree.Ident("z")),
		tree.Cond(tree.Lit("a"), tree.Lit("b"), tree.Lit("c")),
		tree.Object(),
		tree.Prop("k", nil),
		tree.Lit("0"),
		tree.OtherExpr("await"),
		tree.FuncType(nil, nil),
		tree.Union(),
		tree.TypeRef("R"),
		tree.OtherType("string[]"),
		tree.Annotation("memo"),
	}
	tree.Bind()
	c := NewClassifier(tree)

	seen := make(map[arkast.Kind]bool)
	for _, n := range nodes {
		assert.NotPanics(t, func() { c.Classify(n) }, n.Kind().String())
		seen[n.Kind()] = true
	}
	assert.Len(t, seen, len(arkast.Kinds()))
}
