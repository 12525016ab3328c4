// Package frontend turns ArkTS source into an [arkast.Tree].
//
// Sources are parsed with the tree-sitter TypeScript grammar. A textual
// pre-pass first rewrites marker usages such as @memo into marker comments,
// so they may appear on parameters, arrows and types where TypeScript has
// no decorator syntax, and lets struct declarations parse as classes. The
// lowering then attaches each marker comment to the node that follows it.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/memocap/internal/arkast"
	"github.com/jward/memocap/internal/memo"
)

// ErrSyntax reports that the source did not parse cleanly. The tree
// returned alongside it holds whatever could be recovered.
var ErrSyntax = errors.New("syntax error")

type options struct {
	module  string
	markers []string
}

// Option configures Parse.
type Option func(*options)

// WithModule sets the unit's module name. The default is the path without
// its extension.
func WithModule(module string) Option {
	return func(o *options) { o.module = module }
}

// WithMarkers sets the marker names the pre-pass recognizes. The default is
// every memo marker.
func WithMarkers(names ...string) Option {
	return func(o *options) { o.markers = names }
}

// DefaultMarkers returns the marker names recognized when WithMarkers is
// not given.
func DefaultMarkers() []string {
	ms := memo.Markers()
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = string(m)
	}
	return out
}

// DefaultModule is the module name of a unit parsed without WithModule.
func DefaultModule(path string) string {
	return strings.TrimSuffix(filepath.ToSlash(path), filepath.Ext(path))
}

// Parse parses src and lowers it into a bound tree for path. When the
// source has syntax errors, the partial tree is returned together with an
// error wrapping ErrSyntax.
func Parse(ctx context.Context, src []byte, path string, opts ...Option) (*arkast.Tree, error) {
	o := options{
		module:  DefaultModule(path),
		markers: DefaultMarkers(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if _, ok := LanguageForFile(path); !ok {
		return nil, fmt.Errorf("frontend: parse %s: unsupported file type", path)
	}

	prep := prepare(src, o.markers)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(typescript())

	st, err := parser.ParseCtx(ctx, nil, prep.src)
	if err != nil {
		return nil, fmt.Errorf("frontend: parse %s: %w", path, err)
	}
	defer st.Close()

	tree := arkast.NewTree(path, o.module)
	markers := make(map[string]bool, len(o.markers))
	for _, m := range o.markers {
		markers[m] = true
	}
	l := &lowerer{t: tree, prep: prep, markers: markers}
	root := st.RootNode()
	file := tree.SetFile(l.stmts(root)...)
	arkast.SetPos(file, arkast.Pos{})
	tree.Bind()

	if root.HasError() {
		if at := firstError(root); at != nil {
			p := l.pos(at)
			return tree, fmt.Errorf("frontend: parse %s:%d:%d: %w", path, p.Line+1, p.Col+1, ErrSyntax)
		}
		return tree, fmt.Errorf("frontend: parse %s: %w", path, ErrSyntax)
	}
	return tree, nil
}

// firstError returns the first ERROR or missing node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if at := firstError(n.Child(i)); at != nil {
			return at
		}
	}
	return nil
}
