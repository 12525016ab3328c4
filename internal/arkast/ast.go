// Package arkast is the host AST model the memo classifier runs against.
//
// Nodes live in a per-unit arena ([Tree]) and are identified by an opaque
// [NodeID] handle. Identity is the handle, never the Go pointer: a clone made
// with [Tree.Clone] is a different node even though its content is equal, and
// anything keyed by the original handle must be carried over explicitly.
//
// The node set is closed. Every concrete node type reports a [Kind], and
// [Kinds] lists them all so consumers can check that a switch is exhaustive.
package arkast

import "fmt"

// NodeID is an opaque arena handle. The zero value is never assigned.
type NodeID uint32

// Pos is a 0-based source position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Kind discriminates the closed set of node types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindSourceFile
	KindBlock
	KindExprStmt
	KindReturn
	KindVarDecl
	KindVarDeclarator
	KindFuncDecl
	KindClassDecl
	KindTypeAlias
	KindOtherStmt
	KindFunction
	KindParameter
	KindMethod
	KindClassProperty
	KindArrow
	KindCall
	KindMember
	KindIdentifier
	KindThis
	KindAs
	KindNonNull
	KindConditional
	KindObject
	KindProperty
	KindLiteral
	KindOtherExpr
	KindFunctionType
	KindUnionType
	KindTypeRef
	KindOtherType
	KindAnnotation

	kindCount
)

var kindNames = [...]string{
	KindInvalid:       "Invalid",
	KindSourceFile:    "SourceFile",
	KindBlock:         "Block",
	KindExprStmt:      "ExprStmt",
	KindReturn:        "Return",
	KindVarDecl:       "VarDecl",
	KindVarDeclarator: "VarDeclarator",
	KindFuncDecl:      "FuncDecl",
	KindClassDecl:     "ClassDecl",
	KindTypeAlias:     "TypeAlias",
	KindOtherStmt:     "OtherStmt",
	KindFunction:      "Function",
	KindParameter:     "Parameter",
	KindMethod:        "Method",
	KindClassProperty: "ClassProperty",
	KindArrow:         "Arrow",
	KindCall:          "Call",
	KindMember:        "Member",
	KindIdentifier:    "Identifier",
	KindThis:          "This",
	KindAs:            "As",
	KindNonNull:       "NonNull",
	KindConditional:   "Conditional",
	KindObject:        "Object",
	KindProperty:      "Property",
	KindLiteral:       "Literal",
	KindOtherExpr:     "OtherExpr",
	KindFunctionType:  "FunctionType",
	KindUnionType:     "UnionType",
	KindTypeRef:       "TypeRef",
	KindOtherType:     "OtherType",
	KindAnnotation:    "Annotation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s && Kind(k) != KindInvalid {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// Kinds returns every valid node kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindSourceFile; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Node is implemented by every AST node.
type Node interface {
	ID() NodeID
	Kind() Kind
	Pos() Pos
}

// Stmt is a statement-position node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression-position node.
type Expr interface {
	Node
	exprNode()
}

// TypeNode is a type-position node.
type TypeNode interface {
	Node
	typeNode()
}

// Annotatable nodes carry an annotation list. SetAnnotations stores a fresh
// copy of the list and returns the same node (same handle); callers decide
// whether anything else in the tree needs to change.
type Annotatable interface {
	Node
	Annotations() []*Annotation
	SetAnnotations(list []*Annotation) Annotatable
}

type base struct {
	id  NodeID
	pos Pos
}

func (b *base) ID() NodeID      { return b.id }
func (b *base) Pos() Pos        { return b.pos }
func (b *base) setPos(p Pos)    { b.pos = p }
func (b *base) setID(id NodeID) { b.id = id }

// SetPos records the source position of n.
func SetPos(n Node, p Pos) {
	if s, ok := n.(interface{ setPos(Pos) }); ok {
		s.setPos(p)
	}
}

// --- Statements ---

type SourceFile struct {
	base
	Path  string
	Stmts []Stmt
}

type Block struct {
	base
	Stmts []Stmt
}

type ExprStmt struct {
	base
	X Expr
}

// Return's Arg is nil for a bare return.
type Return struct {
	base
	Arg Expr
}

// VarDecl is a let/const/var statement.
type VarDecl struct {
	base
	Flavor string
	Decls  []*VarDeclarator
}

type VarDeclarator struct {
	base
	Name *Identifier
	Type TypeNode
	Init Expr
}

type FuncDecl struct {
	base
	Name *Identifier
	Func *Function
}

// ClassFlavor distinguishes class-like declarations.
type ClassFlavor uint8

const (
	FlavorClass ClassFlavor = iota
	FlavorStruct
	FlavorInterface
)

func (f ClassFlavor) String() string {
	switch f {
	case FlavorStruct:
		return "struct"
	case FlavorInterface:
		return "interface"
	default:
		return "class"
	}
}

// ClassDecl members are *Method or *ClassProperty.
type ClassDecl struct {
	base
	Name    *Identifier
	Flavor  ClassFlavor
	Members []Node
}

type TypeAlias struct {
	base
	Name *Identifier
	Type TypeNode
	Anns []*Annotation
}

// OtherStmt stands in for statement syntax the classifier has no rule for.
// Children keeps nested nodes reachable.
type OtherStmt struct {
	base
	Label    string
	Children []Node
}

// --- Functions and members ---

// Function is the script function shared by declarations, methods and
// arrows. Exactly one of Body and ExprBody is set when the function has a
// body.
type Function struct {
	base
	Params      []*Parameter
	ReturnType  TypeNode
	Body        *Block
	ExprBody    Expr
	Anns        []*Annotation
	Getter      bool
	Setter      bool
	HasReceiver bool
}

type Parameter struct {
	base
	Name     *Identifier
	Type     TypeNode
	Default  Expr
	Optional bool
	Anns     []*Annotation
}

type Method struct {
	base
	Name   *Identifier
	Func   *Function
	Static bool
}

type ClassProperty struct {
	base
	Name   *Identifier
	Type   TypeNode
	Value  Expr
	Static bool
	Anns   []*Annotation
}

// --- Expressions ---

type Arrow struct {
	base
	Func *Function
}

type Call struct {
	base
	Callee Expr
	Args   []Expr
}

type Member struct {
	base
	Object   Expr
	Property *Identifier
}

type Identifier struct {
	base
	Name string
}

type This struct {
	base
}

// As is a type assertion.
type As struct {
	base
	X    Expr
	Type TypeNode
}

type NonNull struct {
	base
	X Expr
}

type Conditional struct {
	base
	Test Expr
	Then Expr
	Else Expr
}

type Object struct {
	base
	Props []*Property
}

// Property is an object-literal property.
type Property struct {
	base
	Key   *Identifier
	Value Expr
}

type Literal struct {
	base
	Raw string
}

type OtherExpr struct {
	base
	Label    string
	Children []Node
}

// --- Types ---

type FunctionType struct {
	base
	Params     []*Parameter
	ReturnType TypeNode
	Anns       []*Annotation
}

type UnionType struct {
	base
	Types []TypeNode
}

// TypeRef names a type, optionally with generic arguments.
type TypeRef struct {
	base
	Name string
	Args []TypeNode
}

type OtherType struct {
	base
	Text     string
	Children []Node
}

// Annotation is one marker usage, e.g. @memo.
type Annotation struct {
	base
	Name string
}

// --- Kind ---

func (*SourceFile) Kind() Kind    { return KindSourceFile }
func (*Block) Kind() Kind         { return KindBlock }
func (*ExprStmt) Kind() Kind      { return KindExprStmt }
func (*Return) Kind() Kind        { return KindReturn }
func (*VarDecl) Kind() Kind       { return KindVarDecl }
func (*VarDeclarator) Kind() Kind { return KindVarDeclarator }
func (*FuncDecl) Kind() Kind      { return KindFuncDecl }
func (*ClassDecl) Kind() Kind     { return KindClassDecl }
func (*TypeAlias) Kind() Kind     { return KindTypeAlias }
func (*OtherStmt) Kind() Kind     { return KindOtherStmt }
func (*Function) Kind() Kind      { return KindFunction }
func (*Parameter) Kind() Kind     { return KindParameter }
func (*Method) Kind() Kind        { return KindMethod }
func (*ClassProperty) Kind() Kind { return KindClassProperty }
func (*Arrow) Kind() Kind         { return KindArrow }
func (*Call) Kind() Kind          { return KindCall }
func (*Member) Kind() Kind        { return KindMember }
func (*Identifier) Kind() Kind    { return KindIdentifier }
func (*This) Kind() Kind          { return KindThis }
func (*As) Kind() Kind            { return KindAs }
func (*NonNull) Kind() Kind       { return KindNonNull }
func (*Conditional) Kind() Kind   { return KindConditional }
func (*Object) Kind() Kind        { return KindObject }
func (*Property) Kind() Kind      { return KindProperty }
func (*Literal) Kind() Kind       { return KindLiteral }
func (*OtherExpr) Kind() Kind     { return KindOtherExpr }
func (*FunctionType) Kind() Kind  { return KindFunctionType }
func (*UnionType) Kind() Kind     { return KindUnionType }
func (*TypeRef) Kind() Kind       { return KindTypeRef }
func (*OtherType) Kind() Kind     { return KindOtherType }
func (*Annotation) Kind() Kind    { return KindAnnotation }

// --- Position markers ---

func (*Block) stmtNode()     {}
func (*ExprStmt) stmtNode()  {}
func (*Return) stmtNode()    {}
func (*VarDecl) stmtNode()   {}
func (*FuncDecl) stmtNode()  {}
func (*ClassDecl) stmtNode() {}
func (*TypeAlias) stmtNode() {}
func (*OtherStmt) stmtNode() {}

func (*Arrow) exprNode()       {}
func (*Call) exprNode()        {}
func (*Member) exprNode()      {}
func (*Identifier) exprNode()  {}
func (*This) exprNode()        {}
func (*As) exprNode()          {}
func (*NonNull) exprNode()     {}
func (*Conditional) exprNode() {}
func (*Object) exprNode()      {}
func (*Literal) exprNode()     {}
func (*OtherExpr) exprNode()   {}

func (*FunctionType) typeNode() {}
func (*UnionType) typeNode()    {}
func (*TypeRef) typeNode()      {}
func (*OtherType) typeNode()    {}

// --- Annotations ---

func (f *Function) Annotations() []*Annotation      { return f.Anns }
func (p *Parameter) Annotations() []*Annotation     { return p.Anns }
func (p *ClassProperty) Annotations() []*Annotation { return p.Anns }
func (a *TypeAlias) Annotations() []*Annotation     { return a.Anns }
func (t *FunctionType) Annotations() []*Annotation  { return t.Anns }

func (f *Function) SetAnnotations(list []*Annotation) Annotatable {
	f.Anns = copyAnnotations(list)
	return f
}

func (p *Parameter) SetAnnotations(list []*Annotation) Annotatable {
	p.Anns = copyAnnotations(list)
	return p
}

func (p *ClassProperty) SetAnnotations(list []*Annotation) Annotatable {
	p.Anns = copyAnnotations(list)
	return p
}

func (a *TypeAlias) SetAnnotations(list []*Annotation) Annotatable {
	a.Anns = copyAnnotations(list)
	return a
}

func (t *FunctionType) SetAnnotations(list []*Annotation) Annotatable {
	t.Anns = copyAnnotations(list)
	return t
}

func copyAnnotations(list []*Annotation) []*Annotation {
	if len(list) == 0 {
		return nil
	}
	out := make([]*Annotation, len(list))
	copy(out, list)
	return out
}

// HasAnnotation reports whether a carries an annotation called name.
func HasAnnotation(a Annotatable, name string) bool {
	for _, ann := range a.Annotations() {
		if ann.Name == name {
			return true
		}
	}
	return false
}

// CountAnnotation counts annotations called name on a.
func CountAnnotation(a Annotatable, name string) int {
	n := 0
	for _, ann := range a.Annotations() {
		if ann.Name == name {
			n++
		}
	}
	return n
}

// Name returns the declared or referenced name of n, or "" when n has none.
func Name(n Node) string {
	switch x := n.(type) {
	case *Identifier:
		return x.Name
	case *FuncDecl:
		return identName(x.Name)
	case *Method:
		return identName(x.Name)
	case *ClassProperty:
		return identName(x.Name)
	case *ClassDecl:
		return identName(x.Name)
	case *Parameter:
		return identName(x.Name)
	case *VarDeclarator:
		return identName(x.Name)
	case *TypeAlias:
		return identName(x.Name)
	case *Property:
		return identName(x.Key)
	case *Member:
		return identName(x.Property)
	case *Call:
		return Name(x.Callee)
	case *As:
		return Name(x.X)
	case *NonNull:
		return Name(x.X)
	case *TypeRef:
		return x.Name
	case *Annotation:
		return x.Name
	case *This:
		return "this"
	}
	return ""
}

func identName(id *Identifier) string {
	if id == nil {
		return ""
	}
	return id.Name
}
