package memo

import (
	"slices"

	"go.uber.org/zap"

	"github.com/jward/memocap/internal/arkast"
)

// Writer attaches markers to approved nodes and records them in the cache.
type Writer struct {
	tree    *arkast.Tree
	cache   *Cache
	imports ImportCollector
	cfg     Config
	log     *zap.Logger
}

type annotateOptions struct {
	marker Marker
	noop   []Marker
	md     Metadata
}

// AnnotateOption configures a single Annotate call.
type AnnotateOption func(*annotateOptions)

// WithMarker selects the variant to write. The default is MarkerMemo.
func WithMarker(m Marker) AnnotateOption {
	return func(o *annotateOptions) { o.marker = m }
}

// WithNoopMarkers lists variants that are recorded but never written.
func WithNoopMarkers(ms ...Marker) AnnotateOption {
	return func(o *annotateOptions) { o.noop = append(o.noop, ms...) }
}

// WithMetadata adds md to the cache entry of the annotated node.
func WithMetadata(md Metadata) AnnotateOption {
	return func(o *annotateOptions) { o.md = md }
}

func variantMetadata(m Marker) string {
	switch m {
	case MarkerMemoSkip:
		return MetaHasMemoSkip
	case MarkerMemoIntrinsic:
		return MetaHasMemoIntrinsic
	case MarkerMemoEntry:
		return MetaHasMemoEntry
	}
	return ""
}

// Annotate marks n and returns it. Existing annotations of the same variant
// are replaced; other variants are kept. Unions annotate their function-type
// members, and properties and declarators annotate their arrow value.
// A no-op variant skips the write and the import but is still cached.
func (w *Writer) Annotate(n arkast.Node, opts ...AnnotateOption) arkast.Node {
	o := annotateOptions{marker: MarkerMemo}
	for _, opt := range opts {
		opt(&o)
	}
	md := o.md.clone()
	if key := variantMetadata(o.marker); key != "" {
		md[key] = true
	}
	write := !slices.Contains(o.noop, o.marker)

	switch x := n.(type) {
	case *arkast.UnionType:
		for _, m := range x.Types {
			if ft, ok := m.(*arkast.FunctionType); ok {
				w.Annotate(ft, opts...)
			}
		}
		return x
	case *arkast.Property:
		if a := unwrapArrow(x.Value); a != nil {
			w.Annotate(a, opts...)
		}
	case *arkast.VarDeclarator:
		if a := unwrapArrow(x.Init); a != nil {
			w.Annotate(a, opts...)
		}
	case *arkast.Arrow:
		w.writeFunc(x.Func, o.marker, write)
		functionFlags(x.Func, md)
	case *arkast.FuncDecl:
		w.writeFunc(x.Func, o.marker, write)
		functionFlags(x.Func, md)
	case *arkast.Method:
		w.writeFunc(x.Func, o.marker, write)
		functionFlags(x.Func, md)
	case arkast.Annotatable:
		w.write(x, o.marker, write)
	}

	w.cache.Collect(n, md)
	w.log.Debug("memo: annotate",
		zap.Stringer("kind", n.Kind()),
		zap.String("name", arkast.Name(n)),
		zap.String("marker", string(o.marker)),
		zap.Bool("written", write),
		zap.Stringer("pos", n.Pos()))
	return n
}

func (w *Writer) writeFunc(fn *arkast.Function, m Marker, write bool) {
	if fn != nil {
		w.write(fn, m, write)
	}
}

func (w *Writer) write(a arkast.Annotatable, m Marker, write bool) {
	if !write {
		return
	}
	if module, ok := w.cfg.Markers[m]; ok {
		w.imports.CollectSource(string(m), module)
	}
	w.imports.CollectImport(string(m))

	list := make([]*arkast.Annotation, 0, len(a.Annotations())+1)
	for _, ann := range a.Annotations() {
		if ann.Name != string(m) {
			list = append(list, ann)
		}
	}
	list = append(list, w.tree.Annotation(string(m)))
	a.SetAnnotations(list)
}
