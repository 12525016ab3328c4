package frontend

import (
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/memocap/internal/arkast"
)

// lowerer converts tree-sitter TypeScript nodes into arkast nodes.
type lowerer struct {
	t       *arkast.Tree
	prep    *prepared
	markers map[string]bool
}

func (l *lowerer) text(n *sitter.Node) string {
	return n.Content(l.prep.src)
}

func (l *lowerer) pos(n *sitter.Node) arkast.Pos {
	p := n.StartPoint()
	row := int(p.Row)
	return arkast.Pos{Line: row, Col: l.prep.column(row, int(p.Column))}
}

func at[T arkast.Node](l *lowerer, n *sitter.Node, node T) T {
	arkast.SetPos(node, l.pos(n))
	return node
}

// named returns n's named children other than comments.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

func first(n *sitter.Node) *sitter.Node {
	if cs := named(n); len(cs) > 0 {
		return cs[0]
	}
	return nil
}

func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

// --- Markers ---

// skippable nodes may sit between a marker comment and what it marks.
var skippable = map[string]bool{
	"decorator":              true,
	"accessibility_modifier": true,
	"override_modifier":      true,
}

// markersOf collects marker comments attached to n: its own leading
// comment children, the comments immediately preceding it, and for a
// declaration those preceding its export statement.
func (l *lowerer) markersOf(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "comment" {
			out = l.appendMarker(out, c)
			continue
		}
		if c.IsNamed() && !skippable[c.Type()] {
			break
		}
	}
	var before []string
	for s := n.PrevSibling(); s != nil; s = s.PrevSibling() {
		if s.Type() == "comment" {
			before = l.appendMarker(before, s)
			continue
		}
		if !skippable[s.Type()] {
			break
		}
	}
	// Preceding comments were gathered nearest first.
	for i := len(before) - 1; i >= 0; i-- {
		out = append(out, before[i])
	}
	if p := n.Parent(); p != nil && p.Type() == "export_statement" {
		out = append(out, l.markersOf(p)...)
	}
	return out
}

func (l *lowerer) appendMarker(out []string, c *sitter.Node) []string {
	if name, ok := markerName(l.text(c)); ok && l.markers[name] {
		out = append(out, name)
	}
	return out
}

// --- Statements ---

func (l *lowerer) stmts(n *sitter.Node) []arkast.Stmt {
	var out []arkast.Stmt
	for _, c := range named(n) {
		if st := l.stmt(c); st != nil {
			out = append(out, st)
		}
	}
	return out
}

func (l *lowerer) stmt(n *sitter.Node) arkast.Stmt {
	switch n.Type() {
	case "expression_statement":
		if x := l.expr(first(n)); x != nil {
			return at(l, n, l.t.ExprStmt(x))
		}
		return nil
	case "return_statement":
		return at(l, n, l.t.Return(l.expr(first(n))))
	case "statement_block":
		return l.block(n)
	case "lexical_declaration", "variable_declaration":
		return l.varDecl(n)
	case "function_declaration", "generator_function_declaration":
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		d := at(l, n, l.t.FuncDecl(l.text(name), l.function(n)))
		arkast.SetPos(d.Name, l.pos(name))
		return d
	case "class_declaration", "abstract_class_declaration":
		return l.class(n, arkast.FlavorClass)
	case "interface_declaration":
		return l.class(n, arkast.FlavorInterface)
	case "type_alias_declaration":
		return l.typeAlias(n)
	case "export_statement":
		if d := n.ChildByFieldName("declaration"); d != nil {
			return l.stmt(d)
		}
		return l.other(n)
	case "import_statement":
		return at(l, n, l.t.OtherStmt(n.Type()))
	case "comment", "empty_statement":
		return nil
	}
	return l.other(n)
}

func (l *lowerer) block(n *sitter.Node) *arkast.Block {
	return at(l, n, l.t.Block(l.stmts(n)...))
}

func (l *lowerer) other(n *sitter.Node) arkast.Stmt {
	return at(l, n, l.t.OtherStmt(n.Type(), l.children(n)...))
}

// children lowers every named child of an unsupported node so nested
// calls and closures stay visible.
func (l *lowerer) children(n *sitter.Node) []arkast.Node {
	var out []arkast.Node
	for _, c := range named(n) {
		if x := l.any(c); x != nil {
			out = append(out, x)
		}
	}
	return out
}

var statementTypes = map[string]bool{
	"expression_statement": true, "return_statement": true,
	"statement_block": true, "lexical_declaration": true,
	"variable_declaration": true, "function_declaration": true,
	"generator_function_declaration": true, "class_declaration": true,
	"abstract_class_declaration": true, "interface_declaration": true,
	"type_alias_declaration": true, "export_statement": true,
	"import_statement": true, "if_statement": true, "for_statement": true,
	"for_in_statement": true, "while_statement": true, "do_statement": true,
	"try_statement": true, "switch_statement": true, "switch_case": true,
	"switch_default": true, "switch_body": true, "else_clause": true,
	"catch_clause": true, "finally_clause": true, "throw_statement": true,
	"break_statement": true, "continue_statement": true,
	"labeled_statement": true, "enum_declaration": true,
}

func (l *lowerer) any(n *sitter.Node) arkast.Node {
	switch t := n.Type(); {
	case statementTypes[t]:
		if st := l.stmt(n); st != nil {
			return st
		}
		return nil
	case t == "variable_declarator":
		return l.declarator(n)
	case t == "pair":
		if p := l.pair(n); p != nil {
			return p
		}
		return nil
	case t == "type_annotation" || t == "type_identifier" || t == "predefined_type" ||
		strings.HasSuffix(t, "_type"):
		if ty := l.typ(n); ty != nil {
			return ty
		}
		return nil
	}
	if x := l.expr(n); x != nil {
		return x
	}
	return nil
}

func (l *lowerer) varDecl(n *sitter.Node) arkast.Stmt {
	flavor := "var"
	if k := n.ChildByFieldName("kind"); k != nil {
		flavor = l.text(k)
	} else if n.ChildCount() > 0 {
		flavor = n.Child(0).Type()
	}
	var decls []*arkast.VarDeclarator
	for _, c := range named(n) {
		if c.Type() == "variable_declarator" {
			decls = append(decls, l.declarator(c))
		}
	}
	return at(l, n, l.t.Var(flavor, decls...))
}

func (l *lowerer) declarator(n *sitter.Node) *arkast.VarDeclarator {
	var ident string
	name := n.ChildByFieldName("name")
	if name != nil {
		ident = l.text(name)
	}
	d := at(l, n, l.t.Declarator(ident,
		l.typ(n.ChildByFieldName("type")),
		l.expr(n.ChildByFieldName("value"))))
	if name != nil {
		arkast.SetPos(d.Name, l.pos(name))
	}
	return d
}

func (l *lowerer) typeAlias(n *sitter.Node) arkast.Stmt {
	name := n.ChildByFieldName("name")
	if name == nil {
		return l.other(n)
	}
	return at(l, n, l.t.TypeAlias(l.text(name), l.typ(n.ChildByFieldName("value")), l.markersOf(n)...))
}

// --- Classes ---

func (l *lowerer) class(n *sitter.Node, flavor arkast.ClassFlavor) arkast.Stmt {
	name := n.ChildByFieldName("name")
	if name == nil {
		return l.other(n)
	}
	if flavor == arkast.FlavorClass && l.prep.structs[l.text(name)] {
		flavor = arkast.FlavorStruct
	}
	var members []arkast.Node
	for _, m := range named(n.ChildByFieldName("body")) {
		if member := l.member(m); member != nil {
			members = append(members, member)
		}
	}
	return at(l, n, l.t.Class(l.text(name), flavor, members...))
}

func (l *lowerer) member(n *sitter.Node) arkast.Node {
	switch n.Type() {
	case "method_definition", "method_signature", "abstract_method_signature":
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		fn := l.function(n)
		fn.Getter = hasToken(n, "get")
		fn.Setter = hasToken(n, "set")
		m := at(l, n, l.t.Method(l.text(name), fn))
		m.Static = hasToken(n, "static")
		return m
	case "public_field_definition", "property_signature":
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		p := at(l, n, l.t.ClassProp(l.text(name),
			l.typ(n.ChildByFieldName("type")),
			l.expr(n.ChildByFieldName("value")),
			l.markersOf(n)...))
		p.Static = hasToken(n, "static")
		return p
	}
	return nil
}

// --- Functions ---

// function lowers anything with parameters and an optional body. Markers
// attached to n go on the function.
func (l *lowerer) function(n *sitter.Node) *arkast.Function {
	var params []*arkast.Parameter
	receiver := false
	if ps := n.ChildByFieldName("parameters"); ps != nil {
		params, receiver = l.params(ps)
	} else if p := n.ChildByFieldName("parameter"); p != nil {
		params = append(params, at(l, p, l.t.Param(l.text(p), nil)))
	}
	ret := l.typ(n.ChildByFieldName("return_type"))
	anns := l.markersOf(n)

	var fn *arkast.Function
	body := n.ChildByFieldName("body")
	switch {
	case body == nil:
		fn = l.t.Func(params, ret, nil, anns...)
	case body.Type() == "statement_block":
		fn = l.t.Func(params, ret, l.block(body), anns...)
	default:
		fn = l.t.ExprFunc(params, ret, l.expr(body), anns...)
	}
	fn.HasReceiver = receiver
	return at(l, n, fn)
}

// params lowers formal parameters. A leading `this` parameter is dropped
// and reported as a receiver.
func (l *lowerer) params(ps *sitter.Node) (out []*arkast.Parameter, receiver bool) {
	for _, c := range named(ps) {
		if c.Type() != "required_parameter" && c.Type() != "optional_parameter" {
			continue
		}
		pattern := c.ChildByFieldName("pattern")
		if pattern == nil {
			continue
		}
		if pattern.Type() == "this" {
			receiver = true
			continue
		}
		p := at(l, c, l.t.Param(strings.TrimPrefix(l.text(pattern), "..."),
			l.typ(c.ChildByFieldName("type")),
			l.markersOf(c)...))
		arkast.SetPos(p.Name, l.pos(pattern))
		p.Default = l.expr(c.ChildByFieldName("value"))
		p.Optional = c.Type() == "optional_parameter"
		out = append(out, p)
	}
	return out, receiver
}

// --- Expressions ---

func (l *lowerer) ident(n *sitter.Node) *arkast.Identifier {
	return at(l, n, l.t.Ident(l.text(n)))
}

var literalTypes = map[string]bool{
	"string": true, "template_string": true, "number": true, "true": true,
	"false": true, "null": true, "undefined": true, "regex": true,
}

func (l *lowerer) expr(n *sitter.Node) arkast.Expr {
	if n == nil {
		return nil
	}
	switch t := n.Type(); {
	case t == "identifier" || t == "shorthand_property_identifier":
		return l.ident(n)
	case t == "this":
		return at(l, n, l.t.This())
	case t == "parenthesized_expression":
		return l.expr(first(n))
	case t == "call_expression":
		return l.call(n)
	case t == "member_expression":
		obj := l.expr(n.ChildByFieldName("object"))
		prop := n.ChildByFieldName("property")
		if obj == nil || prop == nil {
			return l.otherExpr(n)
		}
		m := at(l, n, l.t.Member(obj, l.text(prop)))
		arkast.SetPos(m.Property, l.pos(prop))
		return m
	case t == "as_expression" || t == "satisfies_expression":
		cs := named(n)
		if len(cs) == 0 {
			return l.otherExpr(n)
		}
		x := l.expr(cs[0])
		if x == nil {
			return l.otherExpr(n)
		}
		var ty arkast.TypeNode
		if len(cs) > 1 {
			ty = l.typ(cs[1])
		}
		return at(l, n, l.t.As(x, ty))
	case t == "non_null_expression":
		x := l.expr(first(n))
		if x == nil {
			return l.otherExpr(n)
		}
		return at(l, n, l.t.NonNull(x))
	case t == "ternary_expression":
		return at(l, n, l.t.Cond(
			l.expr(n.ChildByFieldName("condition")),
			l.expr(n.ChildByFieldName("consequence")),
			l.expr(n.ChildByFieldName("alternative"))))
	case t == "arrow_function" || t == "function_expression" || t == "function":
		return at(l, n, l.t.Arrow(l.function(n)))
	case t == "object":
		return l.object(n)
	case literalTypes[t]:
		return at(l, n, l.t.Lit(l.text(n)))
	case t == "comment":
		return nil
	}
	return l.otherExpr(n)
}

func (l *lowerer) otherExpr(n *sitter.Node) arkast.Expr {
	return at(l, n, l.t.OtherExpr(n.Type(), l.children(n)...))
}

func (l *lowerer) call(n *sitter.Node) arkast.Expr {
	callee := l.expr(n.ChildByFieldName("function"))
	if callee == nil {
		return l.otherExpr(n)
	}
	var args []arkast.Expr
	for _, a := range named(n.ChildByFieldName("arguments")) {
		if x := l.expr(a); x != nil {
			args = append(args, x)
		}
	}
	return at(l, n, l.t.Call(callee, args...))
}

func (l *lowerer) object(n *sitter.Node) arkast.Expr {
	var props []*arkast.Property
	for _, c := range named(n) {
		switch c.Type() {
		case "pair":
			if p := l.pair(c); p != nil {
				props = append(props, p)
			}
		case "shorthand_property_identifier":
			props = append(props, at(l, c, l.t.Prop(l.text(c), l.ident(c))))
		case "method_definition":
			name := c.ChildByFieldName("name")
			if name == nil {
				continue
			}
			value := at(l, c, l.t.Arrow(l.function(c)))
			props = append(props, at(l, c, l.t.Prop(l.text(name), value)))
		}
	}
	return at(l, n, l.t.Object(props...))
}

func (l *lowerer) pair(n *sitter.Node) *arkast.Property {
	key := n.ChildByFieldName("key")
	if key == nil {
		return nil
	}
	p := at(l, n, l.t.Prop(strings.Trim(l.text(key), `"'`), l.expr(n.ChildByFieldName("value"))))
	arkast.SetPos(p.Key, l.pos(key))
	return p
}

// --- Types ---

func (l *lowerer) typ(n *sitter.Node) arkast.TypeNode {
	return l.typeWith(n, nil)
}

// typeWith lowers a type. Markers found on wrappers (annotations,
// parentheses, unions) are pushed down to the function types inside.
func (l *lowerer) typeWith(n *sitter.Node, inherited []string) arkast.TypeNode {
	if n == nil {
		return nil
	}
	anns := inherited
	for _, m := range l.markersOf(n) {
		if !slices.Contains(anns, m) {
			anns = append(slices.Clip(anns), m)
		}
	}
	switch t := n.Type(); t {
	case "type_annotation", "parenthesized_type", "readonly_type":
		return l.typeWith(first(n), anns)
	case "function_type", "constructor_type":
		var params []*arkast.Parameter
		if ps := n.ChildByFieldName("parameters"); ps != nil {
			params, _ = l.params(ps)
		}
		return at(l, n, l.t.FuncType(params, l.typ(n.ChildByFieldName("return_type")), anns...))
	case "union_type":
		var members []arkast.TypeNode
		for _, m := range named(n) {
			member := l.typeWith(m, anns)
			if inner, ok := member.(*arkast.UnionType); ok {
				members = append(members, inner.Types...)
				continue
			}
			if member != nil {
				members = append(members, member)
			}
		}
		return at(l, n, l.t.Union(members...))
	case "generic_type":
		var name string
		if nm := n.ChildByFieldName("name"); nm != nil {
			name = l.text(nm)
		}
		var args []arkast.TypeNode
		for _, a := range named(n.ChildByFieldName("type_arguments")) {
			if ty := l.typ(a); ty != nil {
				args = append(args, ty)
			}
		}
		return at(l, n, l.t.TypeRef(name, args...))
	case "type_identifier", "predefined_type", "nested_type_identifier":
		return at(l, n, l.t.TypeRef(l.text(n)))
	case "comment":
		return nil
	}
	var kids []arkast.Node
	for _, c := range named(n) {
		if ty := l.typ(c); ty != nil {
			kids = append(kids, ty)
		}
	}
	return at(l, n, l.t.OtherType(l.text(n), kids...))
}
